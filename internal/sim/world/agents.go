package world

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"raidcraft.ai/internal/sim/raid"
	"raidcraft.ai/internal/sim/raid/behavior"
	"raidcraft.ai/internal/sim/world/kernel/model"
)

const defaultAgentHP = 20

type Agent struct {
	ID   raid.AgentID
	Kind string
	Pos  Vec3i
	HP   int

	profile behavior.Profile
}

func (w *World) CanSpawn(kind string, pos Vec3i) bool {
	def, ok := w.catalogs.Agents.ByKind[kind]
	if !ok || !w.inBounds(pos) {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.solidLocked(pos) {
		return false
	}
	return def.Flying || !w.solidLocked(pos.Up(1))
}

func (w *World) Spawn(kind string, pos Vec3i) (raid.AgentID, error) {
	def, ok := w.catalogs.Agents.ByKind[kind]
	if !ok {
		return "", fmt.Errorf("unknown agent kind %q", kind)
	}
	hp := def.HP
	if hp <= 0 {
		hp = defaultAgentHP
	}
	a := &Agent{
		ID:      raid.AgentID(uuid.NewString()),
		Kind:    kind,
		Pos:     pos,
		HP:      hp,
		profile: def.Profile(),
	}
	w.mu.Lock()
	w.agents[a.ID] = a
	w.mu.Unlock()
	return a.ID, nil
}

func (w *World) IsAlive(id raid.AgentID) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.agents[id]
	return ok
}

func (w *World) Despawn(id raid.AgentID) {
	w.mu.Lock()
	delete(w.agents, id)
	w.mu.Unlock()
}

func (w *World) AgentCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.agents)
}

// sortedAgentsLocked lists agents by id.
func (w *World) sortedAgentsLocked() []*Agent {
	out := make([]*Agent, 0, len(w.agents))
	for _, a := range w.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// systemAgents runs every agent's behaviour for this tick on a bounded
// worker pool. Break callbacks from the raid may fire on any worker.
func (w *World) systemAgents() []RecordedAction {
	if !w.raid.IsActive() {
		return nil
	}
	anchor := anchorPort{w}
	if !anchor.Placed() {
		return nil
	}
	target := anchor.Pos()

	w.mu.RLock()
	list := w.sortedAgentsLocked()
	w.mu.RUnlock()
	if len(list) == 0 {
		return nil
	}

	results := make([]RecordedAction, len(list))
	var g errgroup.Group
	g.SetLimit(w.cfg.AgentWorkers)
	for i, a := range list {
		i, a := i, a
		g.Go(func() error {
			next, act := behavior.Step(a.profile, a.Pos, target, w, w.raid)
			a.Pos = next
			results[i] = RecordedAction{
				AgentID: string(a.ID),
				Kind:    a.Kind,
				Action:  actionName(act.Kind),
				Pos:     next.ToArray(),
				Target:  act.Target.ToArray(),
				Broke:   act.Broke,
			}
			return nil
		})
	}
	_ = g.Wait()

	out := results[:0]
	for _, r := range results {
		if r.Action != "IDLE" {
			out = append(out, r)
		}
	}
	return out
}

// systemDefense lets every player hit each raid agent within reach once per tick.
func (w *World) systemDefense() []raid.AgentID {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.players) == 0 || len(w.agents) == 0 {
		return nil
	}
	reachSq := w.cfg.DefenseReach * w.cfg.DefenseReach
	var killed []raid.AgentID
	for _, a := range w.sortedAgentsLocked() {
		for _, p := range w.players {
			if model.DistSq(a.Pos, p.Pos) <= reachSq {
				a.HP--
			}
		}
		if a.HP <= 0 {
			delete(w.agents, a.ID)
			killed = append(killed, a.ID)
		}
	}
	return killed
}

func actionName(k behavior.ActionKind) string {
	switch k {
	case behavior.Move:
		return "MOVE"
	case behavior.HitBlock:
		return "HIT_BLOCK"
	case behavior.HitAnchor:
		return "HIT_ANCHOR"
	default:
		return "IDLE"
	}
}
