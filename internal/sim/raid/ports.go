package raid

import (
	"raidcraft.ai/internal/sim/raid/breakprogress"
	"raidcraft.ai/internal/sim/raid/threshold"
	"raidcraft.ai/internal/sim/raid/waves"
	"raidcraft.ai/internal/sim/world/kernel/model"
)

type (
	AgentID       = waves.AgentID
	Placement     = waves.Placement
	ProgressEvent = breakprogress.Event
	Difficulty    = threshold.Difficulty
)

type Player struct {
	ID  string
	Pos model.Vec3i
}

// World is the block and clock surface of the host.
type World interface {
	GameTime() int64
	DayTime() int64
	SetDayTime(t int64)

	Block(pos model.Vec3i) string
	SetBlock(pos model.Vec3i, block string) error
	RemoveBlock(pos model.Vec3i) error
	Hardness(pos model.Vec3i) float64
	SurfaceY(x, z int) int

	Players() []Player
}

// Anchor is the nexus block agents are sent to destroy.
type Anchor interface {
	Pos() model.Vec3i
	Placed() bool
}

type Cue string

const (
	CueCountdown Cue = "raid_countdown"
	CueRaidLoop  Cue = "raid_ambience"
	CueWin       Cue = "raid_win"
	CueLose      Cue = "raid_lose"
)

type Messenger interface {
	Broadcast(text string)
	SendTo(playerID, text string)
	PlaySound(pos model.Vec3i, cue Cue)
}

type ProgressSink interface {
	EmitProgress(ev ProgressEvent)
}

type Effect struct {
	Name      string `json:"name" yaml:"name"`
	Duration  int    `json:"duration" yaml:"duration"`
	Amplifier int    `json:"amplifier" yaml:"amplifier"`
}

type Rewards interface {
	PlaceContainer(pos model.Vec3i) error
	FillContainer(pos model.Vec3i, lootTable string) error
	ApplyEffect(playerID string, e Effect)
}

type Outcome string

const (
	OutcomeWon     Outcome = "won"
	OutcomeLost    Outcome = "lost"
	OutcomeAborted Outcome = "aborted"
)

// RaidRecord summarizes a finished raid for the history index.
type RaidRecord struct {
	Level       int
	Outcome     Outcome
	StartedAt   int64
	EndedAt     int64
	Players     int
	AgentsTotal int
	Waves       int
	Destroyed   int
}

type BreakRecord struct {
	Tick  int64
	Pos   model.Vec3i
	Block string
}

// HistoryRecorder receives finished raids and block breaks. Implementations must not block.
type HistoryRecorder interface {
	RecordRaid(r RaidRecord)
	RecordBreak(b BreakRecord)
}
