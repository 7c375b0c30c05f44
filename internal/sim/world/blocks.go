package world

import (
	"fmt"

	"raidcraft.ai/internal/sim/world/kernel/model"
)

// groundLocked is the flat terrain under all edits.
func (w *World) groundLocked(pos Vec3i) uint16 {
	switch {
	case pos.Y <= 0:
		return w.ids.bedrock
	case pos.Y < w.cfg.GroundY-1:
		return w.ids.stone
	case pos.Y == w.cfg.GroundY-1:
		return w.ids.grass
	default:
		return w.ids.air
	}
}

func (w *World) blockIDLocked(pos Vec3i) uint16 {
	if id, ok := w.blocks[pos]; ok {
		return id
	}
	return w.groundLocked(pos)
}

func (w *World) setBlockIDLocked(pos Vec3i, id uint16) {
	if id == w.groundLocked(pos) {
		delete(w.blocks, pos)
	} else {
		w.blocks[pos] = id
	}
	col := [2]int{pos.X, pos.Z}
	if top, ok := w.columnTop[col]; !ok || pos.Y > top {
		w.columnTop[col] = pos.Y
	}
}

func (w *World) nameOf(id uint16) string {
	pal := w.catalogs.Materials.Palette
	if int(id) >= len(pal) {
		return AirBlock
	}
	return pal[id]
}

func (w *World) inBounds(pos Vec3i) bool {
	r := w.cfg.BoundaryR
	return pos.X >= -r && pos.X <= r && pos.Z >= -r && pos.Z <= r && pos.Y >= 0
}

func (w *World) solidLocked(pos Vec3i) bool {
	return w.catalogs.Materials.Defs[w.nameOf(w.blockIDLocked(pos))].Solid
}

func (w *World) Block(pos Vec3i) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.nameOf(w.blockIDLocked(pos))
}

// IsSolid is the agent view of the world.
func (w *World) IsSolid(pos Vec3i) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.solidLocked(pos)
}

func (w *World) Hardness(pos Vec3i) float64 {
	return w.catalogs.Materials.Hardness(w.Block(pos))
}

// SurfaceY is the first non-solid layer above the highest solid block of a column.
func (w *World) SurfaceY(x, z int) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	top := w.cfg.GroundY - 1
	if t, ok := w.columnTop[[2]int{x, z}]; ok && t > top {
		top = t
	}
	for y := top; y >= 0; y-- {
		if w.solidLocked(model.Vec3i{X: x, Y: y, Z: z}) {
			return y + 1
		}
	}
	return 0
}

// SetBlock writes a material on behalf of the raid (ledger restores).
func (w *World) SetBlock(pos Vec3i, block string) error {
	from, err := w.setBlock(pos, block)
	if err != nil {
		return err
	}
	w.audit("RAID", "SET_BLOCK", pos, from, block, "RESTORE")
	return nil
}

// RemoveBlock clears a block broken by raid progress.
func (w *World) RemoveBlock(pos Vec3i) error {
	from, err := w.setBlock(pos, AirBlock)
	if err != nil {
		return err
	}
	w.audit("RAID", "SET_BLOCK", pos, from, AirBlock, "BREAK_PROGRESS")
	return nil
}

func (w *World) setBlock(pos Vec3i, block string) (string, error) {
	id, ok := w.catalogs.Materials.Index[block]
	if !ok {
		return "", fmt.Errorf("unknown material %q", block)
	}
	if !w.inBounds(pos) {
		return "", fmt.Errorf("position %s out of bounds", pos)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	from := w.nameOf(w.blockIDLocked(pos))
	w.setBlockIDLocked(pos, id)
	if w.anchor != nil && *w.anchor == pos && id != w.ids.anchor {
		w.anchor = nil
	}
	return from, nil
}
