package world

import (
	"path/filepath"
	"sync"
	"testing"

	"raidcraft.ai/internal/sim/catalogs"
	"raidcraft.ai/internal/sim/raid"
	"raidcraft.ai/internal/sim/raid/waves"
)

func loadTestCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

// oneZombieConfig spawns a single zombie three blocks east of the anchor.
func oneZombieConfig() raid.Config {
	cfg := raid.DefaultConfig()
	counts := make([]int, waves.MaxLevel)
	for i := range counts {
		counts[i] = 1
	}
	cfg.SpawnTable = waves.Table{"zombie": counts}
	cfg.Waves = waves.Config{SpawnRadius: 3, AngleSteps: 1, FlyingOffset: 5, RetryTicks: 200}
	return cfg
}

type memHistory struct {
	mu     sync.Mutex
	raids  []raid.RaidRecord
	breaks []raid.BreakRecord
}

func (h *memHistory) RecordRaid(r raid.RaidRecord) {
	h.mu.Lock()
	h.raids = append(h.raids, r)
	h.mu.Unlock()
}

func (h *memHistory) RecordBreak(b raid.BreakRecord) {
	h.mu.Lock()
	h.breaks = append(h.breaks, b)
	h.mu.Unlock()
}

type memAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (a *memAudit) WriteAudit(e AuditEntry) error {
	a.mu.Lock()
	a.entries = append(a.entries, e)
	a.mu.Unlock()
	return nil
}

type memTicks struct {
	entries []TickLogEntry
}

func (m *memTicks) WriteTick(e TickLogEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

type testWorld struct {
	*World
	history *memHistory
	audit   *memAudit
	ticks   *memTicks
	out     chan []byte
	player  string
}

func newTestWorld(t *testing.T, cfg raid.Config) *testWorld {
	t.Helper()
	tw := &testWorld{history: &memHistory{}, audit: &memAudit{}, ticks: &memTicks{}, out: make(chan []byte, 4096)}
	w, err := New(WorldConfig{ID: "test", Seed: 7, AgentWorkers: 4}, loadTestCatalogs(t), cfg, Options{
		History:     tw.history,
		AuditLogger: tw.audit,
		TickLogger:  tw.ticks,
	})
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	tw.World = w
	return tw
}

// join adds a player at pos through a tick boundary.
func (tw *testWorld) join(t *testing.T, name string, pos Vec3i) string {
	t.Helper()
	resp := make(chan JoinResponse, 1)
	tw.StepOnce([]JoinRequest{{Name: name, Spawn: &pos, Out: tw.out, Resp: resp}}, nil, nil)
	r := <-resp
	if r.PlayerID == "" {
		t.Fatalf("join: empty player id")
	}
	tw.player = r.PlayerID
	return r.PlayerID
}

func (tw *testWorld) edit(kind string, pos Vec3i, block string) {
	tw.StepOnce(nil, nil, []BlockEdit{{PlayerID: tw.player, Kind: kind, Pos: pos, Block: block}})
}

func (tw *testWorld) steps(n int) {
	for i := 0; i < n; i++ {
		tw.StepOnce(nil, nil, nil)
	}
}
