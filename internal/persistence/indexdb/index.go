package indexdb

import (
	"context"
	"sync/atomic"

	"raidcraft.ai/internal/persistence/snapshot"
	"raidcraft.ai/internal/sim/raid"
	"raidcraft.ai/internal/sim/world"
)

// Index is a secondary, queryable copy of raid history. JSONL logs and
// snapshots remain the source of truth; writes are dropped when the
// writer falls behind.
type Index interface {
	raid.HistoryRecorder
	world.AuditLogger

	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	ListRaids(ctx context.Context, limit int) ([]RaidRow, error)
	ListBreaks(ctx context.Context, sinceTick int64, limit int) ([]BreakRow, error)
	Stats() Stats
	Close() error
}

type RaidRow struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	WorldID     string `gorm:"index;not null" json:"world_id"`
	Level       int    `gorm:"not null" json:"level"`
	Outcome     string `gorm:"not null" json:"outcome"`
	StartedAt   int64  `gorm:"not null" json:"started_at"`
	EndedAt     int64  `gorm:"index;not null" json:"ended_at"`
	Players     int    `gorm:"not null" json:"players"`
	AgentsTotal int    `gorm:"not null" json:"agents_total"`
	Waves       int    `gorm:"not null" json:"waves"`
	Destroyed   int    `gorm:"not null" json:"destroyed"`
}

func (RaidRow) TableName() string { return "raids" }

type BreakRow struct {
	ID      int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	WorldID string `gorm:"index;not null" json:"world_id"`
	Tick    int64  `gorm:"index;not null" json:"tick"`
	X       int    `gorm:"not null" json:"x"`
	Y       int    `gorm:"not null" json:"y"`
	Z       int    `gorm:"not null" json:"z"`
	Block   string `gorm:"not null" json:"block"`
}

func (BreakRow) TableName() string { return "breaks" }

type AuditRow struct {
	ID      int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	WorldID string `gorm:"index;not null" json:"world_id"`
	Tick    int64  `gorm:"index;not null" json:"tick"`
	Actor   string `gorm:"not null" json:"actor"`
	Action  string `gorm:"not null" json:"action"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Z       int    `json:"z"`
	From    string `gorm:"column:from_block" json:"from"`
	To      string `gorm:"column:to_block" json:"to"`
	Reason  string `json:"reason"`
}

func (AuditRow) TableName() string { return "audits" }

type SnapshotRow struct {
	Tick    int64  `gorm:"primaryKey;autoIncrement:false" json:"tick"`
	WorldID string `gorm:"primaryKey" json:"world_id"`
	Path    string `gorm:"not null" json:"path"`
	Seed    int64  `json:"seed"`
	Blocks  int    `json:"blocks"`
	Players int    `json:"players"`
	Agents  int    `json:"agents"`
	Anchor  bool   `json:"anchor"`
}

func (SnapshotRow) TableName() string { return "snapshots" }

// Stats reports queue pressure on the async writer.
type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropRaid      uint64 `json:"drop_raid_total"`
	DropBreak     uint64 `json:"drop_break_total"`
	DropAudit     uint64 `json:"drop_audit_total"`
	DropSnapshot  uint64 `json:"drop_snapshot_total"`
}

type reqKind int

const (
	reqRaid reqKind = iota + 1
	reqBreak
	reqAudit
	reqSnapshot
	reqFlush
)

type req struct {
	kind reqKind

	raid     RaidRow
	brk      BreakRow
	audit    AuditRow
	snapshot SnapshotRow
	done     chan struct{}
}

func raidRow(worldID string, r raid.RaidRecord) RaidRow {
	return RaidRow{
		WorldID:     worldID,
		Level:       r.Level,
		Outcome:     string(r.Outcome),
		StartedAt:   r.StartedAt,
		EndedAt:     r.EndedAt,
		Players:     r.Players,
		AgentsTotal: r.AgentsTotal,
		Waves:       r.Waves,
		Destroyed:   r.Destroyed,
	}
}

func breakRow(worldID string, b raid.BreakRecord) BreakRow {
	return BreakRow{WorldID: worldID, Tick: b.Tick, X: b.Pos.X, Y: b.Pos.Y, Z: b.Pos.Z, Block: b.Block}
}

func auditRow(worldID string, a world.AuditEntry) AuditRow {
	return AuditRow{
		WorldID: worldID,
		Tick:    int64(a.Tick),
		Actor:   a.Actor,
		Action:  a.Action,
		X:       a.Pos[0],
		Y:       a.Pos[1],
		Z:       a.Pos[2],
		From:    a.From,
		To:      a.To,
		Reason:  a.Reason,
	}
}

func snapshotRow(worldID, path string, snap snapshot.SnapshotV1) SnapshotRow {
	return SnapshotRow{
		Tick:    int64(snap.Header.Tick),
		WorldID: worldID,
		Path:    path,
		Seed:    snap.Seed,
		Blocks:  len(snap.Blocks),
		Players: len(snap.Players),
		Agents:  len(snap.Agents),
		Anchor:  snap.Anchor != nil,
	}
}

// queue is the non-blocking producer side shared by both backends.
type queue struct {
	ch chan req

	dropRaid     atomic.Uint64
	dropBreak    atomic.Uint64
	dropAudit    atomic.Uint64
	dropSnapshot atomic.Uint64
}

func (q *queue) offer(r req) {
	select {
	case q.ch <- r:
		return
	default:
	}
	switch r.kind {
	case reqRaid:
		q.dropRaid.Add(1)
	case reqBreak:
		q.dropBreak.Add(1)
	case reqAudit:
		q.dropAudit.Add(1)
	case reqSnapshot:
		q.dropSnapshot.Add(1)
	}
}

func (q *queue) stats() Stats {
	return Stats{
		QueueDepth:    len(q.ch),
		QueueCapacity: cap(q.ch),
		DropRaid:      q.dropRaid.Load(),
		DropBreak:     q.dropBreak.Load(),
		DropAudit:     q.dropAudit.Load(),
		DropSnapshot:  q.dropSnapshot.Load(),
	}
}

// flush blocks until every request queued before it has been committed.
func (q *queue) flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case q.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
