package world

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Players   int `json:"players"`
	Agents    int `json:"agents"`
	Observers int `json:"observers"`

	Phase         string `json:"phase"`
	RaidLevel     int    `json:"raid_level"`
	TimeUntilRaid int64  `json:"time_until_raid_ticks"`
	TrackedBlocks int    `json:"tracked_blocks"`
	LedgerRecords int    `json:"ledger_records"`
	EditsApplied  int    `json:"edits_applied"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Join  int `json:"join"`
	Leave int `json:"leave"`
	Edits int `json:"edits"`
	Admin int `json:"admin"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	m, _ := w.metrics.Load().(WorldMetrics)
	return m
}

func (w *World) publishMetrics(stepMS float64, edits int) {
	s := w.raid.Status()
	w.metrics.Store(WorldMetrics{
		Tick:          w.tick.Load(),
		Players:       w.PlayerCount(),
		Agents:        w.AgentCount(),
		Observers:     len(w.observers),
		Phase:         string(s.Phase),
		RaidLevel:     s.RaidLevel,
		TimeUntilRaid: s.TimeUntilRaid,
		TrackedBlocks: s.TrackedBlocks,
		LedgerRecords: s.LedgerRecords,
		EditsApplied:  edits,
		QueueDepths: QueueDepths{
			Join:  len(w.join),
			Leave: len(w.leave),
			Edits: len(w.edits),
			Admin: len(w.admin),
		},
		StepMS: stepMS,
	})
}
