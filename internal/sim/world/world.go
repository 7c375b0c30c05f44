package world

import (
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"raidcraft.ai/internal/persistence/snapshot"
	"raidcraft.ai/internal/sim/catalogs"
	"raidcraft.ai/internal/sim/raid"
	"raidcraft.ai/internal/sim/raid/threshold"
)

const (
	AirBlock     = "AIR"
	AnchorBlock  = "NEXUS"
	ChestBlock   = "CHEST"
	bedrockBlock = "BEDROCK"
	stoneBlock   = "STONE"
	grassBlock   = "GRASS"
)

type Options struct {
	Logger      *log.Logger
	TickLogger  TickLogger
	AuditLogger AuditLogger
	History     raid.HistoryRecorder

	// SnapshotSink receives periodic snapshots; writing happens off the loop.
	SnapshotSink chan<- snapshot.SnapshotV1
}

// World hosts one raid session. Loop state is owned by the goroutine running
// Run; block, player and agent tables are behind mu because raid callbacks
// reach them from concurrent agent steps.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs
	logger   *log.Logger
	ids      blockIDs

	tick atomic.Uint64

	mu         sync.RWMutex
	blocks     map[Vec3i]uint16
	columnTop  map[[2]int]int
	dayTime    int64
	anchor     *Vec3i
	players    map[string]*Player
	agents     map[raid.AgentID]*Agent
	containers map[Vec3i]*Container

	// Loop goroutine only.
	difficulty threshold.Difficulty
	lastPhase  raid.Phase
	observers  map[string]*observer

	raid *raid.Manager

	outMu  sync.Mutex
	outbox []any

	join     chan JoinRequest
	leave    chan string
	edits    chan BlockEdit
	admin    chan adminReq
	stop     chan struct{}
	stopOnce sync.Once

	tickLogger   TickLogger
	auditLogger  AuditLogger
	snapshotSink chan<- snapshot.SnapshotV1

	metrics atomic.Value
}

type blockIDs struct {
	air, bedrock, stone, grass, anchor, chest uint16
}

func New(cfg WorldConfig, cats *catalogs.Catalogs, raidCfg raid.Config, opts Options) (*World, error) {
	cfg.applyDefaults()
	if cats == nil {
		return nil, fmt.Errorf("world: catalogs required")
	}
	if err := cats.Agents.Covers(raidCfg.SpawnTable); err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	w := &World{
		cfg:          cfg,
		catalogs:     cats,
		logger:       logger,
		blocks:       map[Vec3i]uint16{},
		columnTop:    map[[2]int]int{},
		players:      map[string]*Player{},
		agents:       map[raid.AgentID]*Agent{},
		containers:   map[Vec3i]*Container{},
		difficulty:   cfg.Difficulty,
		lastPhase:    raid.PhaseIdle,
		observers:    map[string]*observer{},
		join:         make(chan JoinRequest, 64),
		leave:        make(chan string, 64),
		edits:        make(chan BlockEdit, 1024),
		admin:        make(chan adminReq, 64),
		stop:         make(chan struct{}),
		tickLogger:   opts.TickLogger,
		auditLogger:  opts.AuditLogger,
		snapshotSink: opts.SnapshotSink,
	}
	if err := w.resolveBlockIDs(); err != nil {
		return nil, err
	}

	m, err := raid.New(raidCfg, raid.Deps{
		World:     w,
		Anchor:    anchorPort{w},
		Placement: w,
		Messenger: w,
		Progress:  w,
		Rewards:   w,
		History:   opts.History,
		Flying:    cats.Agents.IsFlying,
		Seed:      cfg.Seed,
		Logger:    log.New(logger.Writer(), "[raid] ", logger.Flags()),
	})
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	w.raid = m
	w.publishMetrics(0, 0)
	return w, nil
}

func (w *World) resolveBlockIDs() error {
	idx := w.catalogs.Materials.Index
	lookup := func(name string) (uint16, error) {
		id, ok := idx[name]
		if !ok {
			return 0, fmt.Errorf("world: material %s missing from catalog", name)
		}
		return id, nil
	}
	var err error
	for _, f := range []struct {
		dst  *uint16
		name string
	}{
		{&w.ids.air, AirBlock},
		{&w.ids.bedrock, bedrockBlock},
		{&w.ids.stone, stoneBlock},
		{&w.ids.grass, grassBlock},
		{&w.ids.anchor, AnchorBlock},
		{&w.ids.chest, ChestBlock},
	} {
		if *f.dst, err = lookup(f.name); err != nil {
			return err
		}
	}
	return nil
}

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.TickRateHz
}

func (w *World) Config() WorldConfig          { return w.cfg }
func (w *World) Catalogs() *catalogs.Catalogs { return w.catalogs }
func (w *World) CurrentTick() uint64          { return w.tick.Load() }
func (w *World) Raid() *raid.Manager          { return w.raid }
func (w *World) GameTime() int64              { return int64(w.tick.Load()) }

func (w *World) DayTime() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dayTime
}

func (w *World) SetDayTime(t int64) {
	w.mu.Lock()
	w.dayTime = t
	w.mu.Unlock()
}

// enqueue buffers an outbound stream message until the end of the tick.
func (w *World) enqueue(msg any) {
	w.outMu.Lock()
	w.outbox = append(w.outbox, msg)
	w.outMu.Unlock()
}

func (w *World) drainOutbox() []any {
	w.outMu.Lock()
	defer w.outMu.Unlock()
	out := w.outbox
	w.outbox = nil
	return out
}

func (w *World) audit(actor, action string, pos Vec3i, from, to, reason string) {
	if w.auditLogger == nil {
		return
	}
	_ = w.auditLogger.WriteAudit(AuditEntry{
		Tick:   w.tick.Load(),
		Actor:  actor,
		Action: action,
		Pos:    pos.ToArray(),
		From:   from,
		To:     to,
		Reason: reason,
	})
}
