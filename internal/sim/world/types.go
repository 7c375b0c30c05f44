package world

import "raidcraft.ai/internal/sim/world/kernel/model"

type Vec3i = model.Vec3i

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick    uint64           `json:"tick"`
	Phase   string           `json:"phase"`
	Joins   []RecordedJoin   `json:"joins,omitempty"`
	Leaves  []string         `json:"leaves,omitempty"`
	Edits   []RecordedEdit   `json:"edits,omitempty"`
	Actions []RecordedAction `json:"actions,omitempty"`
	Digest  string           `json:"digest"`
}

type RecordedJoin struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Pos      [3]int `json:"pos"`
}

type RecordedEdit struct {
	PlayerID string `json:"player_id"`
	Kind     string `json:"kind"`
	Pos      [3]int `json:"pos"`
	Block    string `json:"block,omitempty"`
	Code     string `json:"code,omitempty"`
	Result   string `json:"result,omitempty"`
}

// RecordedAction is one agent behaviour step.
type RecordedAction struct {
	AgentID string `json:"agent_id"`
	Kind    string `json:"kind"`
	Action  string `json:"action"`
	Pos     [3]int `json:"pos"`
	Target  [3]int `json:"target,omitempty"`
	Broke   bool   `json:"broke,omitempty"`
}

type AuditEntry struct {
	Tick    uint64         `json:"tick"`
	Actor   string         `json:"actor"`
	Action  string         `json:"action"`
	Pos     [3]int         `json:"pos"`
	From    string         `json:"from,omitempty"`
	To      string         `json:"to,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}
