package world

import (
	"errors"
	"fmt"

	"raidcraft.ai/internal/protocol"
)

// BlockEdit is a player action applied at the next tick boundary.
type BlockEdit struct {
	PlayerID string
	Kind     string
	Pos      Vec3i
	Block    string
}

func (w *World) applyEdit(e BlockEdit) RecordedEdit {
	rec := RecordedEdit{PlayerID: e.PlayerID, Kind: e.Kind, Pos: e.Pos.ToArray(), Block: e.Block}
	if err := w.applyEditErr(e); err != nil {
		code := protocol.ErrInternal
		var rej *editError
		if errors.As(err, &rej) {
			code = rej.code
		}
		rec.Code = code
		rec.Result = err.Error()
		w.enqueue(protocol.ErrorMsg{Type: protocol.TypeError, Tick: w.tick.Load(), To: e.PlayerID, Code: code, Message: err.Error()})
	} else {
		rec.Result = "OK"
	}
	return rec
}

// editError is a rejected edit carrying its protocol error code.
type editError struct {
	code string
	msg  string
}

func (e *editError) Error() string { return e.msg }

func reject(code, format string, args ...any) error {
	return &editError{code: code, msg: fmt.Sprintf(format, args...)}
}

func (w *World) applyEditErr(e BlockEdit) error {
	w.mu.RLock()
	_, ok := w.players[e.PlayerID]
	w.mu.RUnlock()
	if !ok {
		return reject(protocol.ErrNoPermission, "unknown player")
	}
	if e.Kind != protocol.ActSleep && !w.inBounds(e.Pos) {
		return reject(protocol.ErrInvalidTarget, "position %s out of bounds", e.Pos)
	}

	switch e.Kind {
	case protocol.ActMove:
		w.mu.Lock()
		if p := w.players[e.PlayerID]; p != nil {
			p.Pos = e.Pos
		}
		w.mu.Unlock()
		return nil

	case protocol.ActSleep:
		if !w.sleep(e.PlayerID) {
			return reject(protocol.ErrBlocked, "cannot sleep now")
		}
		return nil

	case protocol.ActPlace, protocol.ActFluid:
		def, ok := w.catalogs.Materials.Defs[e.Block]
		if !ok || e.Block == AirBlock {
			return reject(protocol.ErrBadRequest, "unknown material %q", e.Block)
		}
		if def.Fluid != (e.Kind == protocol.ActFluid) {
			return reject(protocol.ErrBadRequest, "%s cannot be placed with %s", e.Block, e.Kind)
		}
		if w.IsSolid(e.Pos) {
			return reject(protocol.ErrConflict, "position %s occupied", e.Pos)
		}
		if e.Block == AnchorBlock {
			return w.placeAnchor(e.PlayerID, e.Pos)
		}
		from, err := w.setBlock(e.Pos, e.Block)
		if err != nil {
			return err
		}
		w.audit(e.PlayerID, "SET_BLOCK", e.Pos, from, e.Block, e.Kind)
		if def.Fluid {
			w.raid.OnFluidPlaced(e.Pos)
		} else {
			w.raid.OnBlockPlaced(e.Pos)
		}
		return nil

	case protocol.ActBreak:
		prior := w.Block(e.Pos)
		if prior == AirBlock {
			return reject(protocol.ErrInvalidTarget, "nothing to break at %s", e.Pos)
		}
		if w.catalogs.Materials.Hardness(prior) < 0 {
			return reject(protocol.ErrBlocked, "%s is unbreakable", prior)
		}
		if prior == AnchorBlock && w.raid.IsActive() {
			return reject(protocol.ErrBlocked, "the nexus cannot be moved during a raid")
		}
		if _, err := w.setBlock(e.Pos, AirBlock); err != nil {
			return err
		}
		w.audit(e.PlayerID, "SET_BLOCK", e.Pos, prior, AirBlock, e.Kind)
		w.raid.OnBlockBrokenByPlayer(e.Pos, prior)
		return nil
	}
	return reject(protocol.ErrBadRequest, "unknown action %q", e.Kind)
}

// placeAnchor puts the nexus down. Only one nexus may exist.
func (w *World) placeAnchor(actor string, pos Vec3i) error {
	w.mu.Lock()
	if w.anchor != nil && w.blockIDLocked(*w.anchor) == w.ids.anchor {
		w.mu.Unlock()
		return reject(protocol.ErrConflict, "a nexus already exists at %s", *w.anchor)
	}
	from := w.nameOf(w.blockIDLocked(pos))
	w.setBlockIDLocked(pos, w.ids.anchor)
	p := pos
	w.anchor = &p
	w.mu.Unlock()
	w.audit(actor, "SET_BLOCK", pos, from, AnchorBlock, "PLACE_ANCHOR")
	w.raid.OnBlockPlaced(pos)
	return nil
}
