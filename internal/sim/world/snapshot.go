package world

import (
	"fmt"
	"sort"

	"raidcraft.ai/internal/persistence/snapshot"
	"raidcraft.ai/internal/sim/raid"
	"raidcraft.ai/internal/sim/raid/threshold"
)

// ExportSnapshot must be called from the world loop goroutine or while the world is stopped.
func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	blob, err := w.raid.Save()
	if err != nil {
		w.logger.Printf("snapshot: raid state: %v", err)
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	s := snapshot.SnapshotV1{
		Header:        snapshot.Header{Version: snapshot.Version, WorldID: w.cfg.ID, Tick: nowTick},
		Seed:          w.cfg.Seed,
		TickRate:      w.cfg.TickRateHz,
		DayTicks:      w.cfg.DayTicks,
		Difficulty:    string(w.difficulty),
		GameTime:      int64(nowTick),
		DayTime:       w.dayTime,
		SnapshotEvery: w.cfg.SnapshotEveryTicks,
		GroundY:       w.cfg.GroundY,
		Palette:       append([]string(nil), w.catalogs.Materials.Palette...),
		Raid:          blob,
	}
	for _, p := range sortedPositions(w.blocks) {
		s.Blocks = append(s.Blocks, snapshot.BlockV1{Pos: p.ToArray(), Block: w.blocks[p]})
	}
	if w.anchor != nil {
		s.Anchor = &snapshot.AnchorV1{Pos: w.anchor.ToArray()}
	}

	pids := make([]string, 0, len(w.players))
	for id := range w.players {
		pids = append(pids, id)
	}
	sort.Strings(pids)
	for _, id := range pids {
		p := w.players[id]
		ps := snapshot.PlayerV1{ID: p.ID, Name: p.Name, Pos: p.Pos.ToArray()}
		names := make([]string, 0, len(p.Effects))
		for n := range p.Effects {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			e := p.Effects[n]
			ps.Effects = append(ps.Effects, snapshot.ActiveEffectV1{Name: n, Amplifier: e.Amplifier, UntilTick: e.UntilTick})
		}
		s.Players = append(s.Players, ps)
	}
	for _, a := range w.sortedAgentsLocked() {
		s.Agents = append(s.Agents, snapshot.AgentV1{ID: string(a.ID), Kind: a.Kind, Pos: a.Pos.ToArray(), HP: a.HP})
	}
	for _, p := range sortedPositions(w.containers) {
		c := w.containers[p]
		s.Containers = append(s.Containers, snapshot.ContainerV1{Pos: p.ToArray(), LootTables: append([]string(nil), c.LootTables...)})
	}
	return s
}

// ImportSnapshot replaces the current in-memory world state with the snapshot.
// It sets the world's tick to snapshotTick+1 (the next tick to simulate) and
// returns the raid state fields that fell back to defaults.
//
// This must be called only when the world is stopped.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) ([]string, error) {
	if s.Header.Version != snapshot.Version {
		return nil, fmt.Errorf("unsupported snapshot version: %d", s.Header.Version)
	}
	if w.cfg.Seed != s.Seed {
		return nil, fmt.Errorf("snapshot seed mismatch: cfg=%d snap=%d", w.cfg.Seed, s.Seed)
	}
	if w.cfg.DayTicks != s.DayTicks {
		return nil, fmt.Errorf("snapshot day_ticks mismatch: cfg=%d snap=%d", w.cfg.DayTicks, s.DayTicks)
	}
	if w.cfg.GroundY != s.GroundY {
		return nil, fmt.Errorf("snapshot ground_y mismatch: cfg=%d snap=%d", w.cfg.GroundY, s.GroundY)
	}

	// Palette ids are remapped by name so catalogs may grow between runs.
	remap := make([]uint16, len(s.Palette))
	for i, name := range s.Palette {
		id, ok := w.catalogs.Materials.Index[name]
		if !ok {
			return nil, fmt.Errorf("snapshot material %s missing from catalog", name)
		}
		remap[i] = id
	}

	blocks := make(map[Vec3i]uint16, len(s.Blocks))
	columnTop := map[[2]int]int{}
	for _, b := range s.Blocks {
		if int(b.Block) >= len(remap) {
			return nil, fmt.Errorf("snapshot block id %d out of palette", b.Block)
		}
		p := Vec3i{X: b.Pos[0], Y: b.Pos[1], Z: b.Pos[2]}
		blocks[p] = remap[b.Block]
		col := [2]int{p.X, p.Z}
		if top, ok := columnTop[col]; !ok || p.Y > top {
			columnTop[col] = p.Y
		}
	}

	players := make(map[string]*Player, len(s.Players))
	for _, ps := range s.Players {
		p := &Player{ID: ps.ID, Name: ps.Name, Pos: Vec3i{X: ps.Pos[0], Y: ps.Pos[1], Z: ps.Pos[2]}, Effects: map[string]ActiveEffect{}}
		for _, e := range ps.Effects {
			p.Effects[e.Name] = ActiveEffect{Amplifier: e.Amplifier, UntilTick: e.UntilTick}
		}
		players[p.ID] = p
	}
	agents := make(map[raid.AgentID]*Agent, len(s.Agents))
	for _, as := range s.Agents {
		def, ok := w.catalogs.Agents.ByKind[as.Kind]
		if !ok {
			// Unknown kinds are dropped and count as dead for the raid.
			w.logger.Printf("snapshot: dropping agent %s of unknown kind %s", as.ID, as.Kind)
			continue
		}
		agents[raid.AgentID(as.ID)] = &Agent{
			ID:      raid.AgentID(as.ID),
			Kind:    as.Kind,
			Pos:     Vec3i{X: as.Pos[0], Y: as.Pos[1], Z: as.Pos[2]},
			HP:      as.HP,
			profile: def.Profile(),
		}
	}
	containers := make(map[Vec3i]*Container, len(s.Containers))
	for _, cs := range s.Containers {
		p := Vec3i{X: cs.Pos[0], Y: cs.Pos[1], Z: cs.Pos[2]}
		containers[p] = &Container{Pos: p, LootTables: append([]string(nil), cs.LootTables...)}
	}

	w.mu.Lock()
	w.blocks = blocks
	w.columnTop = columnTop
	w.players = players
	w.agents = agents
	w.containers = containers
	w.dayTime = s.DayTime
	w.anchor = nil
	if s.Anchor != nil {
		p := Vec3i{X: s.Anchor.Pos[0], Y: s.Anchor.Pos[1], Z: s.Anchor.Pos[2]}
		w.anchor = &p
	}
	w.mu.Unlock()

	if s.SnapshotEvery > 0 {
		w.cfg.SnapshotEveryTicks = s.SnapshotEvery
	}
	switch d := threshold.Difficulty(s.Difficulty); d {
	case threshold.Peaceful, threshold.Easy, threshold.Normal, threshold.Hard:
		w.difficulty = d
	}
	w.tick.Store(s.Header.Tick + 1)

	fallback := w.raid.Load(s.Raid)
	w.lastPhase = w.raid.Phase()
	w.publishMetrics(0, 0)
	return fallback, nil
}
