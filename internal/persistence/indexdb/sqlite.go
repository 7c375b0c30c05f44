package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"raidcraft.ai/internal/persistence/snapshot"
	"raidcraft.ai/internal/sim/raid"
	"raidcraft.ai/internal/sim/world"
)

type SQLiteIndex struct {
	db      *sql.DB
	worldID string

	queue
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

var _ Index = (*SQLiteIndex)(nil)

func OpenSQLite(path, worldID string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:      db,
		worldID: worldID,
		// Raids cause bursts of break records when many agents dig at once.
		queue: queue{ch: make(chan req, 65536)},
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS raids (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			world_id TEXT NOT NULL,
			level INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			ended_at INTEGER NOT NULL,
			players INTEGER NOT NULL,
			agents_total INTEGER NOT NULL,
			waves INTEGER NOT NULL,
			destroyed INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_raids_world_ended ON raids(world_id, ended_at);`,
		`CREATE TABLE IF NOT EXISTS breaks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			world_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			block TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_breaks_world_tick ON breaks(world_id, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_breaks_pos ON breaks(x, z, y);`,
		`CREATE TABLE IF NOT EXISTS audits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			world_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			from_block TEXT,
			to_block TEXT,
			reason TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_tick ON audits(actor, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER NOT NULL,
			world_id TEXT NOT NULL,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			blocks INTEGER NOT NULL,
			players INTEGER NOT NULL,
			agents INTEGER NOT NULL,
			anchor INTEGER NOT NULL,
			PRIMARY KEY (world_id, tick)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) RecordRaid(r raid.RaidRecord) {
	if s == nil || s.closed.Load() {
		return
	}
	s.offer(req{kind: reqRaid, raid: raidRow(s.worldID, r)})
}

func (s *SQLiteIndex) RecordBreak(b raid.BreakRecord) {
	if s == nil || s.closed.Load() {
		return
	}
	s.offer(req{kind: reqBreak, brk: breakRow(s.worldID, b)})
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.offer(req{kind: reqAudit, audit: auditRow(s.worldID, entry)})
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	s.offer(req{kind: reqSnapshot, snapshot: snapshotRow(s.worldID, path, snap)})
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return s.stats()
}

// Flush waits until everything queued so far is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	return s.flush(ctx)
}

func (s *SQLiteIndex) ListRaids(ctx context.Context, limit int) ([]RaidRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id,world_id,level,outcome,started_at,ended_at,players,agents_total,waves,destroyed
		FROM raids WHERE world_id=? ORDER BY ended_at DESC, id DESC LIMIT ?`, s.worldID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RaidRow
	for rows.Next() {
		var r RaidRow
		if err := rows.Scan(&r.ID, &r.WorldID, &r.Level, &r.Outcome, &r.StartedAt, &r.EndedAt, &r.Players, &r.AgentsTotal, &r.Waves, &r.Destroyed); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) ListBreaks(ctx context.Context, sinceTick int64, limit int) ([]BreakRow, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id,world_id,tick,x,y,z,block
		FROM breaks WHERE world_id=? AND tick>=? ORDER BY tick ASC, id ASC LIMIT ?`, s.worldID, sinceTick, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BreakRow
	for rows.Next() {
		var b BreakRow
		if err := rows.Scan(&b.ID, &b.WorldID, &b.Tick, &b.X, &b.Y, &b.Z, &b.Block); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRaid, _ := s.db.Prepare(`INSERT INTO raids(world_id,level,outcome,started_at,ended_at,players,agents_total,waves,destroyed) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertBreak, _ := s.db.Prepare(`INSERT INTO breaks(world_id,tick,x,y,z,block) VALUES(?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT INTO audits(world_id,tick,actor,action,x,y,z,from_block,to_block,reason) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,world_id,path,seed,blocks,players,agents,anchor) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertRaid, insertBreak, insertAudit, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 1000
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRaid:
			x := r.raid
			exec(insertRaid, x.WorldID, x.Level, x.Outcome, x.StartedAt, x.EndedAt, x.Players, x.AgentsTotal, x.Waves, x.Destroyed)
		case reqBreak:
			b := r.brk
			exec(insertBreak, b.WorldID, b.Tick, b.X, b.Y, b.Z, b.Block)
		case reqAudit:
			a := r.audit
			exec(insertAudit, a.WorldID, a.Tick, a.Actor, a.Action, a.X, a.Y, a.Z, a.From, a.To, a.Reason)
		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, sn.Tick, sn.WorldID, sn.Path, sn.Seed, sn.Blocks, sn.Players, sn.Agents, sn.Anchor)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
