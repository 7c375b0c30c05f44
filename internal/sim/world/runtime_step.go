package world

import (
	"time"

	"raidcraft.ai/internal/protocol"
	"raidcraft.ai/internal/sim/raid"
)

func (w *World) stepInternal(joins []JoinRequest, leaves []string, edits []BlockEdit) {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	// Leaves and joins apply at the tick boundary.
	recordedLeaves := make([]string, 0, len(leaves))
	for _, id := range leaves {
		if pid := w.handleLeave(id); pid != "" {
			recordedLeaves = append(recordedLeaves, pid)
		}
	}
	recordedJoins := make([]RecordedJoin, 0, len(joins))
	for _, req := range joins {
		resp := w.joinPlayer(req)
		if req.Resp != nil {
			req.Resp <- resp
		}
		recordedJoins = append(recordedJoins, RecordedJoin{PlayerID: resp.PlayerID, Name: req.Name, Pos: resp.Spawn.ToArray()})
	}

	// Player edits in receive order, before agents act.
	recordedEdits := make([]RecordedEdit, 0, len(edits))
	for _, e := range edits {
		recordedEdits = append(recordedEdits, w.applyEdit(e))
	}

	w.mu.Lock()
	w.dayTime++
	w.mu.Unlock()

	// Systems: agents -> defense -> raid session.
	actions := w.systemAgents()
	for _, id := range w.systemDefense() {
		recordedEdits = append(recordedEdits, RecordedEdit{Kind: "KILL", Result: string(id)})
	}
	w.raid.OnTick(int64(nowTick), w.difficulty, w.PlayerCount())
	w.expireEffects(int64(nowTick))

	status := w.raid.Status()
	if status.Phase != w.lastPhase || (w.cfg.StatusEveryTicks > 0 && nowTick%uint64(w.cfg.StatusEveryTicks) == 0) {
		w.lastPhase = status.Phase
		w.enqueue(w.statusMsg(nowTick, status))
	}
	w.flushOutbox()

	digest := w.stateDigest(nowTick)
	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:    nowTick,
			Phase:   string(status.Phase),
			Joins:   recordedJoins,
			Leaves:  recordedLeaves,
			Edits:   recordedEdits,
			Actions: actions,
			Digest:  digest,
		})
	}

	// Snapshot every N ticks, starting after tick 0.
	if w.snapshotSink != nil && nowTick != 0 && w.cfg.SnapshotEveryTicks > 0 {
		if nowTick%uint64(w.cfg.SnapshotEveryTicks) == 0 {
			snap := w.ExportSnapshot(nowTick)
			select {
			case w.snapshotSink <- snap:
			default:
				// Drop snapshot if sink is backed up.
			}
		}
	}

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	w.tick.Add(1)
	w.publishMetrics(stepMS, len(recordedEdits))
}

func (w *World) statusMsg(nowTick uint64, s raid.Status) protocol.StatusMsg {
	return protocol.StatusMsg{
		Type:            protocol.TypeStatus,
		Tick:            nowTick,
		Phase:           string(s.Phase),
		RaidLevel:       s.RaidLevel,
		TimeUntilRaid:   s.TimeUntilRaid,
		ActiveRaidTicks: s.ActiveRaidTicks,
		Agents:          w.AgentCount(),
		TrackedBlocks:   s.TrackedBlocks,
		LedgerRecords:   s.LedgerRecords,
	}
}
