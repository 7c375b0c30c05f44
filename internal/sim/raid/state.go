package raid

import (
	"raidcraft.ai/internal/sim/raid/io/statecodec"
	"raidcraft.ai/internal/sim/raid/waves"
)

// ExportState captures the session for persistence.
func (m *Manager) ExportState() statecodec.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return statecodec.State{
		Version:           statecodec.Version,
		RaidLevel:         m.raidLevel,
		IsRaidActive:      m.phase.Current() == PhaseActive,
		NextRaidTime:      m.nextRaidTime,
		ActiveRaidTicks:   m.activeRaidTicks,
		DaytimeBeforeRaid: m.daytimeBeforeRaid,
		HasDaytime:        m.hasDaytime,
		LastWonRaidLevel:  m.lastWonRaidLevel,
		Progress:          m.tracker.Entries(),
		Ledger:            m.ledger.Snapshot(),
		Waves:             m.scheduler.Export(),
	}
}

// Save encodes the session blob.
func (m *Manager) Save() ([]byte, error) {
	return statecodec.Encode(m.ExportState())
}

// Load replaces the session with a saved blob. Unreadable fields fall back to
// defaults; Load never fails.
func (m *Manager) Load(blob []byte) []string {
	now := m.deps.World.GameTime()
	st, fallback := statecodec.Decode(blob, statecodec.State{
		RaidLevel:    MinLevel,
		NextRaidTime: now + m.cfg.TimeBetweenRaids,
	})
	if len(fallback) > 0 {
		m.logger.Printf("raid state: defaults used for %v", fallback)
	}
	m.ImportState(st)
	return fallback
}

func (m *Manager) ImportState(st statecodec.State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.raidLevel = st.RaidLevel
	if m.raidLevel < MinLevel || m.raidLevel > MaxLevel {
		m.raidLevel = MinLevel
	}
	m.nextRaidTime = st.NextRaidTime
	m.activeRaidTicks = st.ActiveRaidTicks
	m.daytimeBeforeRaid = st.DaytimeBeforeRaid
	m.hasDaytime = st.HasDaytime
	m.lastWonRaidLevel = st.LastWonRaidLevel
	m.lastWarnedSecond = -1

	if st.IsRaidActive {
		m.phase.force(PhaseActive)
		m.raidFoughtLevel = m.raidLevel
		m.breakMu.Lock()
		m.active.Store(true)
		m.breakMu.Unlock()
		m.tracker.Restore(st.Progress)
		m.ledger.Load(st.Ledger)
		m.scheduler.Attach(st.Waves)
		return
	}
	m.phase.force(PhaseIdle)
	m.breakMu.Lock()
	m.active.Store(false)
	m.breakMu.Unlock()
	m.tracker.ResetAll()
	m.ledger.Load(st.Ledger)
	m.scheduler.Attach(waves.State{})
}
