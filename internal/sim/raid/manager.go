// Package raid runs the raid session of one world: countdown, waves,
// resolution and the destruction bookkeeping in between.
package raid

import (
	"errors"
	"io"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"raidcraft.ai/internal/sim/raid/breakprogress"
	"raidcraft.ai/internal/sim/raid/ledger"
	"raidcraft.ai/internal/sim/raid/threshold"
	"raidcraft.ai/internal/sim/raid/waves"
	"raidcraft.ai/internal/sim/world/kernel/model"
)

var ErrNoAnchor = errors.New("no anchor placed")

type Deps struct {
	World     World
	Anchor    Anchor
	Placement Placement
	Messenger Messenger
	Progress  ProgressSink
	Rewards   Rewards
	History   HistoryRecorder

	// Flying reports whether an agent kind spawns in the air.
	Flying func(kind string) bool
	Seed   int64
	Logger *log.Logger
}

type Manager struct {
	cfg    Config
	deps   Deps
	logger *log.Logger

	tracker   *breakprogress.Tracker
	scheduler *waves.Scheduler
	ledger    *ledger.Ledger

	// active mirrors the phase for callbacks that must not take mu.
	active atomic.Bool
	// multBits holds the float64 threshold multiplier for the current difficulty.
	multBits atomic.Uint64
	// breakMu orders block removals against raid end.
	breakMu sync.RWMutex

	mu                sync.Mutex
	phase             *phaseMachine
	raidLevel         int
	nextRaidTime      int64
	activeRaidTicks   int64
	daytimeBeforeRaid int64
	hasDaytime        bool
	lastWarnedSecond  int64
	lastWonRaidLevel  int

	raidStartedAt   int64
	raidFoughtLevel int
	raidPlayers     int
	raidAgents      int
	raidWaves       int
	destroyed       atomic.Int64
}

func New(cfg Config, deps Deps) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.World == nil || deps.Anchor == nil {
		return nil, errors.New("raid: world and anchor are required")
	}
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard, "", 0)
	}
	if deps.Messenger == nil {
		deps.Messenger = nopMessenger{}
	}
	if deps.Rewards == nil {
		deps.Rewards = nopRewards{}
	}

	m := &Manager{
		cfg:              cfg,
		deps:             deps,
		logger:           deps.Logger,
		ledger:           ledger.New(),
		phase:            newPhaseMachine(deps.Logger),
		raidLevel:        MinLevel,
		lastWarnedSecond: -1,
	}
	m.nextRaidTime = deps.World.GameTime() + cfg.TimeBetweenRaids
	m.setMultiplier(cfg.Multipliers.For(threshold.Normal))

	m.tracker = breakprogress.New(breakprogress.Options{
		Threshold: m.thresholdFor,
		OnBreak:   m.onBlockBroken,
		Emit: func(ev breakprogress.Event) {
			if deps.Progress != nil {
				deps.Progress.EmitProgress(ev)
			}
		},
	})
	m.scheduler = waves.NewScheduler(cfg.Waves, deps.Placement, deps.World, deps.Flying, deps.Seed, deps.Logger)
	return m, nil
}

func (m *Manager) Config() Config                  { return m.cfg }
func (m *Manager) Tracker() *breakprogress.Tracker { return m.tracker }
func (m *Manager) IsActive() bool                  { return m.active.Load() }

func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase.Current()
}

// AddProgress is the damage entry point for agent behaviours. It is a no-op
// outside an active raid. A call racing with raid end drops its own entry,
// since endRaid may already have swept the tracker.
func (m *Manager) AddProgress(pos model.Vec3i, damage int) bool {
	if !m.active.Load() {
		return false
	}
	broke := m.tracker.AddProgress(pos, damage)
	if !broke && !m.active.Load() {
		m.tracker.ResetProgress(pos)
	}
	return broke
}

// isAnchor reports whether pos holds the placed anchor.
func (m *Manager) isAnchor(pos model.Vec3i) bool {
	return m.deps.Anchor.Placed() && pos == m.deps.Anchor.Pos()
}

func (m *Manager) setMultiplier(f float64) { m.multBits.Store(math.Float64bits(f)) }
func (m *Manager) multiplier() float64     { return math.Float64frombits(m.multBits.Load()) }

func (m *Manager) thresholdFor(pos model.Vec3i) int {
	if m.isAnchor(pos) {
		return threshold.AnchorThreshold
	}
	return threshold.ForHardness(m.deps.World.Hardness(pos), m.multiplier())
}

// OnTick advances the session by one game tick. The host calls it once per
// tick after every agent behaviour for that tick has finished.
func (m *Manager) OnTick(now int64, difficulty Difficulty, playerCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setMultiplier(m.cfg.Multipliers.For(difficulty))

	if difficulty == threshold.Peaceful {
		if m.phase.Current() == PhaseActive {
			m.deps.Messenger.Broadcast("The raid was called off: difficulty is peaceful")
			m.abortLocked(now)
		}
		return
	}

	if m.phase.Current() == PhaseIdle {
		m.warnLocked(now)
		if now >= m.nextRaidTime && m.deps.Anchor.Placed() {
			m.startRaidLocked(now, playerCount)
		}
		return
	}

	if m.phase.Current() != PhaseActive {
		return
	}
	m.activeRaidTicks++
	anchor := m.deps.Anchor.Pos()
	if iv := m.cfg.RaidSoundIntervalTicks; iv > 0 && m.activeRaidTicks%iv == 0 {
		m.deps.Messenger.PlaySound(anchor, CueRaidLoop)
	}
	m.scheduler.Tick(anchor, now)

	if m.scheduler.Exhausted() && m.scheduler.AllSpawnedDead() {
		m.logger.Printf("raid won: all agents dead (level=%d ticks=%d)", m.raidLevel, m.activeRaidTicks)
		m.winRaidLocked(now)
		return
	}
	if m.activeRaidTicks > m.cfg.MaxRaidDuration {
		m.logger.Printf("raid won: max duration reached (level=%d ticks=%d)", m.raidLevel, m.activeRaidTicks)
		m.winRaidLocked(now)
	}
}

type nopMessenger struct{}

func (nopMessenger) Broadcast(string)           {}
func (nopMessenger) SendTo(string, string)      {}
func (nopMessenger) PlaySound(model.Vec3i, Cue) {}

type nopRewards struct{}

func (nopRewards) PlaceContainer(model.Vec3i) error        { return nil }
func (nopRewards) FillContainer(model.Vec3i, string) error { return nil }
func (nopRewards) ApplyEffect(string, Effect)              {}
