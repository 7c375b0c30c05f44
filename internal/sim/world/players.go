package world

import (
	"fmt"
	"sort"

	"raidcraft.ai/internal/sim/raid"
)

type Player struct {
	ID      string
	Name    string
	Pos     Vec3i
	Effects map[string]ActiveEffect
}

type ActiveEffect struct {
	Amplifier int
	UntilTick int64
}

type Container struct {
	Pos        Vec3i
	LootTables []string
}

func (w *World) Players() []raid.Player {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]raid.Player, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, raid.Player{ID: p.ID, Pos: p.Pos})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (w *World) PlayerCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.players)
}

// PlaceContainer puts the loot chest down, replacing whatever was there.
func (w *World) PlaceContainer(pos Vec3i) error {
	from, err := w.setBlock(pos, ChestBlock)
	if err != nil {
		return err
	}
	w.mu.Lock()
	if _, ok := w.containers[pos]; !ok {
		w.containers[pos] = &Container{Pos: pos}
	}
	w.mu.Unlock()
	w.audit("RAID", "SET_BLOCK", pos, from, ChestBlock, "LOOT_CHEST")
	return nil
}

func (w *World) FillContainer(pos Vec3i, lootTable string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	c := w.containers[pos]
	if c == nil || w.blockIDLocked(pos) != w.ids.chest {
		return fmt.Errorf("no container at %s", pos)
	}
	c.LootTables = append(c.LootTables, lootTable)
	return nil
}

func (w *World) ApplyEffect(playerID string, e raid.Effect) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p := w.players[playerID]
	if p == nil {
		return
	}
	until := int64(w.tick.Load()) + int64(e.Duration)
	if cur, ok := p.Effects[e.Name]; ok && cur.Amplifier > e.Amplifier && cur.UntilTick > until {
		return
	}
	p.Effects[e.Name] = ActiveEffect{Amplifier: e.Amplifier, UntilTick: until}
}

// Container returns a copy of the container at pos.
func (w *World) Container(pos Vec3i) (Container, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c := w.containers[pos]
	if c == nil {
		return Container{}, false
	}
	return Container{Pos: c.Pos, LootTables: append([]string(nil), c.LootTables...)}, true
}

// PlayerEffects returns a copy of a player's active effects.
func (w *World) PlayerEffects(playerID string) map[string]ActiveEffect {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p := w.players[playerID]
	if p == nil {
		return nil
	}
	out := make(map[string]ActiveEffect, len(p.Effects))
	for k, v := range p.Effects {
		out[k] = v
	}
	return out
}

func (w *World) expireEffects(now int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.players {
		for name, e := range p.Effects {
			if e.UntilTick <= now {
				delete(p.Effects, name)
			}
		}
	}
}

func (w *World) addPlayer(id, name string, pos Vec3i) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.players[id] = &Player{ID: id, Name: name, Pos: pos, Effects: map[string]ActiveEffect{}}
}

func (w *World) removePlayer(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.players[id]; !ok {
		return false
	}
	delete(w.players, id)
	return true
}

// sleep skips the rest of the night for the whole world when the raid allows it.
func (w *World) sleep(playerID string) bool {
	if !w.raid.TrySleep(playerID) {
		return false
	}
	w.mu.Lock()
	day := int64(w.cfg.DayTicks)
	skipped := day - w.dayTime%day
	w.dayTime += skipped
	w.mu.Unlock()
	w.raid.OnSleepFinished(skipped)
	w.logger.Printf("player %s slept; skipped %d ticks", playerID, skipped)
	return true
}
