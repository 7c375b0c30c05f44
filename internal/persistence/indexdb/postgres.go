package indexdb

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"raidcraft.ai/internal/persistence/snapshot"
	"raidcraft.ai/internal/sim/raid"
	"raidcraft.ai/internal/sim/world"
)

type PostgresConfig struct {
	DSN           string
	WorldID       string
	BatchSize     int
	FlushInterval time.Duration
	Logger        *log.Logger
}

// PostgresIndex mirrors raid history into a shared Postgres database so
// several worlds can be queried together.
type PostgresIndex struct {
	cfg PostgresConfig
	db  *gorm.DB

	queue
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

var _ Index = (*PostgresIndex)(nil)

func OpenPostgres(cfg PostgresConfig) (*PostgresIndex, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("empty postgres dsn")
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&RaidRow{}, &BreakRow{}, &AuditRow{}, &SnapshotRow{}); err != nil {
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return newPostgresIndex(cfg, db), nil
}

func newPostgresIndex(cfg PostgresConfig, db *gorm.DB) *PostgresIndex {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	p := &PostgresIndex{
		cfg:   cfg,
		db:    db,
		queue: queue{ch: make(chan req, 65536)},
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.loop()
	}()
	return p
}

func (p *PostgresIndex) Close() error {
	var err error
	p.once.Do(func() {
		p.closed.Store(true)
		close(p.ch)
		p.wg.Wait()
		if sqlDB, e := p.db.DB(); e == nil {
			err = sqlDB.Close()
		}
	})
	return err
}

func (p *PostgresIndex) RecordRaid(r raid.RaidRecord) {
	if p == nil || p.closed.Load() {
		return
	}
	p.offer(req{kind: reqRaid, raid: raidRow(p.cfg.WorldID, r)})
}

func (p *PostgresIndex) RecordBreak(b raid.BreakRecord) {
	if p == nil || p.closed.Load() {
		return
	}
	p.offer(req{kind: reqBreak, brk: breakRow(p.cfg.WorldID, b)})
}

func (p *PostgresIndex) WriteAudit(entry world.AuditEntry) error {
	if p == nil || p.closed.Load() {
		return nil
	}
	p.offer(req{kind: reqAudit, audit: auditRow(p.cfg.WorldID, entry)})
	return nil
}

func (p *PostgresIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if p == nil || p.closed.Load() {
		return
	}
	p.offer(req{kind: reqSnapshot, snapshot: snapshotRow(p.cfg.WorldID, path, snap)})
}

func (p *PostgresIndex) Stats() Stats {
	if p == nil {
		return Stats{}
	}
	return p.stats()
}

func (p *PostgresIndex) Flush(ctx context.Context) error {
	if p == nil || p.closed.Load() {
		return nil
	}
	return p.flush(ctx)
}

func (p *PostgresIndex) ListRaids(ctx context.Context, limit int) ([]RaidRow, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []RaidRow
	err := p.db.WithContext(ctx).
		Where(&RaidRow{WorldID: p.cfg.WorldID}).
		Clauses(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "ended_at"}, Desc: true},
			{Column: clause.Column{Name: "id"}, Desc: true},
		}}).
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (p *PostgresIndex) ListBreaks(ctx context.Context, sinceTick int64, limit int) ([]BreakRow, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []BreakRow
	err := p.db.WithContext(ctx).
		Where("world_id = ? AND tick >= ?", p.cfg.WorldID, sinceTick).
		Order("tick ASC").Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

type pgBatch struct {
	raids     []RaidRow
	breaks    []BreakRow
	audits    []AuditRow
	snapshots []SnapshotRow
}

func (b *pgBatch) size() int {
	return len(b.raids) + len(b.breaks) + len(b.audits) + len(b.snapshots)
}

func (p *PostgresIndex) loop() {
	var batch pgBatch
	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case r, ok := <-p.ch:
			if !ok {
				p.write(&batch)
				return
			}
			switch r.kind {
			case reqRaid:
				batch.raids = append(batch.raids, r.raid)
			case reqBreak:
				batch.breaks = append(batch.breaks, r.brk)
			case reqAudit:
				batch.audits = append(batch.audits, r.audit)
			case reqSnapshot:
				batch.snapshots = append(batch.snapshots, r.snapshot)
			case reqFlush:
				p.write(&batch)
				close(r.done)
				continue
			}
			if batch.size() >= p.cfg.BatchSize {
				p.write(&batch)
			}
		case <-ticker.C:
			p.write(&batch)
		}
	}
}

// write commits the batch in one transaction. A failed batch is kept and
// retried with the next flush.
func (p *PostgresIndex) write(b *pgBatch) {
	if b.size() == 0 {
		return
	}
	err := p.db.Transaction(func(tx *gorm.DB) error {
		if len(b.raids) > 0 {
			if err := tx.Create(&b.raids).Error; err != nil {
				return err
			}
		}
		if len(b.breaks) > 0 {
			if err := tx.Create(&b.breaks).Error; err != nil {
				return err
			}
		}
		if len(b.audits) > 0 {
			if err := tx.Create(&b.audits).Error; err != nil {
				return err
			}
		}
		if len(b.snapshots) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&b.snapshots).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		p.cfg.Logger.Printf("postgres index flush (%d rows): %v", b.size(), err)
		// Give up on a batch that has grown past 16 flushes worth of rows.
		if b.size() > 16*p.cfg.BatchSize {
			*b = pgBatch{}
		}
		return
	}
	*b = pgBatch{}
}
