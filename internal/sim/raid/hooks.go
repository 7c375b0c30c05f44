package raid

import (
	"errors"

	"raidcraft.ai/internal/sim/world/kernel/model"
)

var ErrRaidActive = errors.New("raid already active")

// onBlockBroken runs after the tracker dropped a broken position.
func (m *Manager) onBlockBroken(pos model.Vec3i) {
	if m.isAnchor(pos) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.phase.Current() == PhaseActive {
			m.logger.Printf("anchor destroyed at %s", pos)
			m.loseRaidLocked(m.deps.World.GameTime())
		}
		return
	}

	m.breakMu.RLock()
	defer m.breakMu.RUnlock()
	if !m.active.Load() {
		return
	}
	prior := m.deps.World.Block(pos)
	m.ledger.Record(pos, prior)
	if err := m.deps.World.RemoveBlock(pos); err != nil {
		m.logger.Printf("remove broken block at %s: %v", pos, err)
		return
	}
	m.destroyed.Add(1)
	if m.deps.History != nil {
		m.deps.History.RecordBreak(BreakRecord{Tick: m.deps.World.GameTime(), Pos: pos, Block: prior})
	}
}

// OnBlockPlaced drops stale progress where a block was placed during a raid.
func (m *Manager) OnBlockPlaced(pos model.Vec3i) {
	if m.active.Load() {
		m.tracker.ResetProgress(pos)
	}
}

func (m *Manager) OnFluidPlaced(pos model.Vec3i) {
	if m.active.Load() {
		m.tracker.ResetProgress(pos)
	}
}

// OnBlockBrokenByPlayer records blocks removed by non-raid means during a raid
// so they are restored with the rest.
func (m *Manager) OnBlockBrokenByPlayer(pos model.Vec3i, prior string) {
	if !m.active.Load() {
		return
	}
	m.tracker.ResetProgress(pos)
	m.breakMu.RLock()
	defer m.breakMu.RUnlock()
	if m.active.Load() {
		m.ledger.Record(pos, prior)
	}
}

func (m *Manager) ForceStart() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.deps.Anchor.Placed() {
		return ErrNoAnchor
	}
	if m.phase.Current() != PhaseIdle {
		return ErrRaidActive
	}
	m.startRaidLocked(m.deps.World.GameTime(), len(m.deps.World.Players()))
	return nil
}

func (m *Manager) ForceWin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.winRaidLocked(m.deps.World.GameTime())
}

func (m *Manager) ForceLose() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loseRaidLocked(m.deps.World.GameTime())
}

// RestoreDestroyed writes every ledger record back into the world now.
func (m *Manager) RestoreDestroyed() (int, error) {
	m.breakMu.Lock()
	defer m.breakMu.Unlock()
	return m.ledger.Restore(m.deps.World)
}

type Status struct {
	Phase            Phase `json:"phase"`
	RaidLevel        int   `json:"raid_level"`
	LastWonRaidLevel int   `json:"last_won_raid_level"`
	NextRaidTime     int64 `json:"next_raid_time"`
	TimeUntilRaid    int64 `json:"time_until_raid_ticks"`
	ActiveRaidTicks  int64 `json:"active_raid_ticks"`
	TrackedBlocks    int   `json:"tracked_blocks"`
	LedgerRecords    int   `json:"ledger_records"`
	SpawnedAgents    int   `json:"spawned_agents"`
	PendingWaves     int   `json:"pending_waves"`
	PendingRetries   int   `json:"pending_retries"`
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Phase:            m.phase.Current(),
		RaidLevel:        m.raidLevel,
		LastWonRaidLevel: m.lastWonRaidLevel,
		NextRaidTime:     m.nextRaidTime,
		TimeUntilRaid:    m.nextRaidTime - m.deps.World.GameTime(),
		ActiveRaidTicks:  m.activeRaidTicks,
		TrackedBlocks:    m.tracker.Len(),
		LedgerRecords:    m.ledger.Len(),
		SpawnedAgents:    len(m.scheduler.Spawned()),
		PendingWaves:     m.scheduler.PendingWaves(),
		PendingRetries:   m.scheduler.PendingRetries(),
	}
}
