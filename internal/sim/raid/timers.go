package raid

import (
	"raidcraft.ai/internal/sim/raid/duration"
)

func (m *Manager) warnLocked(now int64) {
	until := duration.Ticks(m.nextRaidTime - now)
	sec := until.Seconds()
	if sec <= 0 || sec == m.lastWarnedSecond || !containsInt(m.cfg.WarnSeconds, sec) {
		return
	}
	m.lastWarnedSecond = sec
	m.deps.Messenger.Broadcast("Time until next raid: " + until.Display())
	if m.cfg.EnableCountdownSound && sec <= m.cfg.CountdownSoundSeconds {
		m.deps.Messenger.PlaySound(m.deps.Anchor.Pos(), CueCountdown)
	}
}

func containsInt(list []int64, v int64) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// setNextRaidTimeLocked refuses times before now.
func (m *Manager) setNextRaidTimeLocked(t, now int64) bool {
	if t < now {
		return false
	}
	m.nextRaidTime = t
	return true
}

func (m *Manager) NextRaidTime() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextRaidTime
}

// SetNextRaidTime is a no-op returning false when t lies in the past.
func (m *Manager) SetNextRaidTime(t int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setNextRaidTimeLocked(t, m.deps.World.GameTime())
}

func (m *Manager) TimeUntilRaid() duration.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return duration.Ticks(m.nextRaidTime - m.deps.World.GameTime())
}

func (m *Manager) SetTimeUntilRaid(d duration.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.deps.World.GameTime()
	return m.setNextRaidTimeLocked(now+d.Ticks(), now)
}

func (m *Manager) AddTimeUntilRaid(d duration.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setNextRaidTimeLocked(m.nextRaidTime+d.Ticks(), m.deps.World.GameTime())
}

func (m *Manager) RaidLevel() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raidLevel
}

// SetRaidLevel rejects levels outside [MinLevel, MaxLevel].
func (m *Manager) SetRaidLevel(level int) bool {
	if level < MinLevel || level > MaxLevel {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raidLevel = level
	return true
}

func (m *Manager) LastWonRaidLevel() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastWonRaidLevel
}

func (m *Manager) ActiveRaidTicks() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeRaidTicks
}

// TrySleep reports whether playerID may sleep now and tells them when not.
func (m *Manager) TrySleep(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase.Current() != PhaseIdle {
		m.deps.Messenger.SendTo(playerID, "You cannot sleep during a raid!")
		return false
	}
	if m.nextRaidTime-m.deps.World.GameTime() < m.cfg.SleepBlackoutTicks {
		m.deps.Messenger.SendTo(playerID, "You cannot sleep before a raid!")
		return false
	}
	return true
}

// OnSleepFinished shortens the countdown by the day time skipped while
// sleeping. It refuses a reduction that would move the raid into the past.
func (m *Manager) OnSleepFinished(skipped int64) bool {
	if !m.cfg.SleepReducesTimeUntilRaid || skipped <= 0 {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase.Current() != PhaseIdle {
		return false
	}
	ok := m.setNextRaidTimeLocked(m.nextRaidTime-skipped, m.deps.World.GameTime())
	if ok {
		m.logger.Printf("sleep skipped %d ticks; next raid at %d", skipped, m.nextRaidTime)
	}
	return ok
}
