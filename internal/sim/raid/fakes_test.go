package raid

import (
	"fmt"
	"strings"
	"sync"

	"raidcraft.ai/internal/sim/world/kernel/model"
)

type fakeWorld struct {
	mu       sync.Mutex
	time     int64
	day      int64
	blocks   map[model.Vec3i]string
	hardness map[string]float64
	players  []Player
	removed  []model.Vec3i
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		day:      1000,
		blocks:   map[model.Vec3i]string{},
		hardness: map[string]float64{"NEXUS": 50, "PLANK": 2, "DIRT": 0.5, "GLASS": 0},
	}
}

func (w *fakeWorld) GameTime() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.time
}

func (w *fakeWorld) setTime(t int64) {
	w.mu.Lock()
	w.time = t
	w.mu.Unlock()
}

func (w *fakeWorld) DayTime() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.day
}

func (w *fakeWorld) SetDayTime(t int64) {
	w.mu.Lock()
	w.day = t
	w.mu.Unlock()
}

func (w *fakeWorld) Block(pos model.Vec3i) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if b, ok := w.blocks[pos]; ok {
		return b
	}
	return "AIR"
}

func (w *fakeWorld) SetBlock(pos model.Vec3i, block string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.blocks[pos] = block
	return nil
}

func (w *fakeWorld) RemoveBlock(pos model.Vec3i) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.blocks, pos)
	w.removed = append(w.removed, pos)
	return nil
}

func (w *fakeWorld) Hardness(pos model.Vec3i) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if h, ok := w.hardness[w.blocks[pos]]; ok {
		return h
	}
	return 1
}

func (w *fakeWorld) SurfaceY(x, z int) int { return 64 }

func (w *fakeWorld) Players() []Player {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Player(nil), w.players...)
}

type fakeAnchor struct {
	pos    model.Vec3i
	placed bool
}

func (a *fakeAnchor) Pos() model.Vec3i { return a.pos }
func (a *fakeAnchor) Placed() bool     { return a.placed }

type fakePlacement struct {
	mu    sync.Mutex
	next  int
	alive map[AgentID]bool
	kinds map[AgentID]string
}

func newFakePlacement() *fakePlacement {
	return &fakePlacement{alive: map[AgentID]bool{}, kinds: map[AgentID]string{}}
}

func (p *fakePlacement) CanSpawn(string, model.Vec3i) bool { return true }

func (p *fakePlacement) Spawn(kind string, pos model.Vec3i) (AgentID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	id := AgentID(fmt.Sprintf("agent-%d", p.next))
	p.alive[id] = true
	p.kinds[id] = kind
	return id, nil
}

func (p *fakePlacement) IsAlive(id AgentID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive[id]
}

func (p *fakePlacement) Despawn(id AgentID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive[id] = false
}

func (p *fakePlacement) killAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range p.alive {
		p.alive[id] = false
	}
}

func (p *fakePlacement) countKind(kind string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, k := range p.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

func (p *fakePlacement) aliveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, a := range p.alive {
		if a {
			n++
		}
	}
	return n
}

type fakeMessenger struct {
	mu         sync.Mutex
	broadcasts []string
	direct     map[string][]string
	sounds     []Cue
}

func (m *fakeMessenger) Broadcast(text string) {
	m.mu.Lock()
	m.broadcasts = append(m.broadcasts, text)
	m.mu.Unlock()
}

func (m *fakeMessenger) SendTo(playerID, text string) {
	m.mu.Lock()
	if m.direct == nil {
		m.direct = map[string][]string{}
	}
	m.direct[playerID] = append(m.direct[playerID], text)
	m.mu.Unlock()
}

func (m *fakeMessenger) PlaySound(_ model.Vec3i, cue Cue) {
	m.mu.Lock()
	m.sounds = append(m.sounds, cue)
	m.mu.Unlock()
}

func (m *fakeMessenger) count(substr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.broadcasts {
		if strings.Contains(b, substr) {
			n++
		}
	}
	return n
}

func (m *fakeMessenger) soundCount(cue Cue) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.sounds {
		if c == cue {
			n++
		}
	}
	return n
}

type fakeRewards struct {
	mu        sync.Mutex
	container []model.Vec3i
	fills     []string
	effects   map[string][]Effect
}

func (r *fakeRewards) PlaceContainer(pos model.Vec3i) error {
	r.mu.Lock()
	r.container = append(r.container, pos)
	r.mu.Unlock()
	return nil
}

func (r *fakeRewards) FillContainer(_ model.Vec3i, table string) error {
	r.mu.Lock()
	r.fills = append(r.fills, table)
	r.mu.Unlock()
	return nil
}

func (r *fakeRewards) ApplyEffect(playerID string, e Effect) {
	r.mu.Lock()
	if r.effects == nil {
		r.effects = map[string][]Effect{}
	}
	r.effects[playerID] = append(r.effects[playerID], e)
	r.mu.Unlock()
}

type fakeHistory struct {
	mu     sync.Mutex
	raids  []RaidRecord
	breaks []BreakRecord
}

func (h *fakeHistory) RecordRaid(r RaidRecord) {
	h.mu.Lock()
	h.raids = append(h.raids, r)
	h.mu.Unlock()
}

func (h *fakeHistory) RecordBreak(b BreakRecord) {
	h.mu.Lock()
	h.breaks = append(h.breaks, b)
	h.mu.Unlock()
}

type harness struct {
	m         *Manager
	world     *fakeWorld
	anchor    *fakeAnchor
	placement *fakePlacement
	msg       *fakeMessenger
	rewards   *fakeRewards
	history   *fakeHistory
}

func newHarness(cfg Config) *harness {
	h := &harness{
		world:     newFakeWorld(),
		anchor:    &fakeAnchor{pos: model.Vec3i{X: 0, Y: 64, Z: 0}, placed: true},
		placement: newFakePlacement(),
		msg:       &fakeMessenger{},
		rewards:   &fakeRewards{},
		history:   &fakeHistory{},
	}
	h.world.blocks[h.anchor.pos] = "NEXUS"
	h.world.players = []Player{{ID: "p1", Pos: model.Vec3i{X: 3, Y: 64, Z: 0}}}
	m, err := New(cfg, Deps{
		World:     h.world,
		Anchor:    h.anchor,
		Placement: h.placement,
		Messenger: h.msg,
		Rewards:   h.rewards,
		History:   h.history,
		Seed:      1,
	})
	if err != nil {
		panic(err)
	}
	h.m = m
	return h
}

// startRaid advances the clock to the scheduled raid and ticks once.
func (h *harness) startRaid() {
	now := h.m.NextRaidTime()
	h.world.setTime(now)
	h.m.OnTick(now, "normal", len(h.world.Players()))
}

func (h *harness) tick() {
	now := h.world.GameTime() + 1
	h.world.setTime(now)
	h.m.OnTick(now, "normal", len(h.world.Players()))
}
