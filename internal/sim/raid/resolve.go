package raid

import (
	"fmt"

	"raidcraft.ai/internal/sim/raid/waves"
	"raidcraft.ai/internal/sim/world/kernel/model"
)

func (m *Manager) startRaidLocked(now int64, players int) {
	if !m.phase.fire(evStart) {
		return
	}
	m.activeRaidTicks = 0
	m.setNextRaidTimeLocked(now+m.cfg.TimeBetweenRaids, now)
	m.ledger.Clear()
	m.tracker.ResetAll()
	m.destroyed.Store(0)

	m.daytimeBeforeRaid = m.deps.World.DayTime()
	m.hasDaytime = true
	m.deps.World.SetDayTime(m.cfg.RaidStartDayTime)

	m.active.Store(true)

	alloc, err := waves.ComputeAllocation(m.cfg.SpawnTable, m.raidLevel, players)
	if err != nil {
		m.logger.Printf("raid allocation: %v", err)
		alloc = waves.Allocation{Waves: []map[string]int{{}}}
	}
	m.raidStartedAt = now
	m.raidFoughtLevel = m.raidLevel
	m.raidPlayers = players
	m.raidAgents = alloc.Total()
	m.raidWaves = alloc.NumWaves()
	m.scheduler.Begin(alloc, m.deps.Anchor.Pos(), now)

	m.logger.Printf("raid started: level=%d players=%d agents=%d waves=%d", m.raidLevel, players, m.raidAgents, m.raidWaves)
	m.deps.Messenger.Broadcast("You are being raided!")
}

func (m *Manager) winRaidLocked(now int64) bool {
	if !m.phase.fire(evWin) {
		return false
	}
	anchor := m.deps.Anchor.Pos()
	m.deps.Messenger.Broadcast("You have won the raid!")

	m.placeRewardsLocked(anchor)
	m.applyEffectsLocked(anchor)

	m.lastWonRaidLevel = m.raidLevel
	if m.raidLevel < MaxLevel {
		m.raidLevel++
	}
	m.endRaidLocked(now, OutcomeWon)
	m.deps.Messenger.PlaySound(anchor, CueWin)
	return true
}

func (m *Manager) placeRewardsLocked(anchor model.Vec3i) {
	chest := anchor.Add(m.cfg.LootChestOffset)
	if err := m.deps.Rewards.PlaceContainer(chest); err != nil {
		m.logger.Printf("place loot container at %s: %v", chest, err)
		m.deps.Messenger.Broadcast("Could not add reward to the loot chest")
		return
	}
	table := m.cfg.lootTable(m.raidLevel)
	for _, p := range m.deps.World.Players() {
		if err := m.deps.Rewards.FillContainer(chest, table); err != nil {
			m.logger.Printf("fill loot container for %s: %v", p.ID, err)
			m.deps.Messenger.Broadcast("Could not add reward to the loot chest")
			return
		}
	}
}

func (m *Manager) applyEffectsLocked(anchor model.Vec3i) {
	effects := append([]Effect(nil), m.cfg.Effects[m.raidLevel]...)
	if m.cfg.WinEffect.Name != "" {
		effects = append(effects, m.cfg.WinEffect)
	}
	r2 := m.cfg.EffectRadius * m.cfg.EffectRadius
	for _, p := range m.deps.World.Players() {
		if model.DistSq(p.Pos, anchor) > r2 {
			continue
		}
		for _, e := range effects {
			m.deps.Rewards.ApplyEffect(p.ID, e)
		}
	}
}

func (m *Manager) loseRaidLocked(now int64) bool {
	if !m.phase.fire(evLose) {
		return false
	}
	m.deps.Messenger.Broadcast("You have lost the raid!")
	// The level must drop before endRaid announces it.
	m.raidLevel = MinLevel
	m.endRaidLocked(now, OutcomeLost)
	m.deps.Messenger.PlaySound(m.deps.Anchor.Pos(), CueLose)
	return true
}

func (m *Manager) abortLocked(now int64) bool {
	if !m.phase.fire(evAbort) {
		return false
	}
	m.endRaidLocked(now, OutcomeAborted)
	return true
}

func (m *Manager) endRaidLocked(now int64, outcome Outcome) {
	m.deps.Messenger.Broadcast(fmt.Sprintf("Your next raid will have level %d", m.raidLevel))

	m.breakMu.Lock()
	m.active.Store(false)
	m.breakMu.Unlock()
	m.phase.fire(evEnd)

	m.tracker.ResetAll()
	m.scheduler.Reset()

	if m.cfg.RestoreDestroyedBlocks {
		n, err := m.ledger.Restore(m.deps.World)
		if err != nil {
			m.logger.Printf("restore destroyed blocks: restored=%d err=%v", n, err)
		}
	} else {
		m.ledger.Clear()
	}

	if m.hasDaytime {
		m.deps.World.SetDayTime(m.daytimeBeforeRaid)
		m.hasDaytime = false
	}

	m.logger.Printf("raid ended: outcome=%s next_level=%d destroyed=%d", outcome, m.raidLevel, m.destroyed.Load())
	if m.deps.History != nil {
		m.deps.History.RecordRaid(RaidRecord{
			Level:       m.raidFoughtLevel,
			Outcome:     outcome,
			StartedAt:   m.raidStartedAt,
			EndedAt:     now,
			Players:     m.raidPlayers,
			AgentsTotal: m.raidAgents,
			Waves:       m.raidWaves,
			Destroyed:   int(m.destroyed.Load()),
		})
	}
}
