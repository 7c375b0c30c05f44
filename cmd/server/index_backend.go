package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"raidcraft.ai/internal/persistence/indexdb"
	"raidcraft.ai/internal/sim/raid"
	"raidcraft.ai/internal/sim/world"
)

func openRuntimeIndex(worldDir, worldID string, disableDB bool, logger *log.Logger) (indexdb.Index, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("VC_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(worldDir, "index", "world.sqlite")
		return indexdb.OpenSQLite(dbPath, worldID)
	case "postgres", "pg":
		dsn := strings.TrimSpace(os.Getenv("VC_INDEX_PG_DSN"))
		if dsn == "" {
			return nil, fmt.Errorf("VC_INDEX_BACKEND=postgres but VC_INDEX_PG_DSN is empty")
		}
		flushMS := envInt("VC_INDEX_PG_FLUSH_MS", 1000)
		batchSize := envInt("VC_INDEX_PG_BATCH_SIZE", 200)
		return indexdb.OpenPostgres(indexdb.PostgresConfig{
			DSN:           dsn,
			WorldID:       worldID,
			BatchSize:     batchSize,
			FlushInterval: time.Duration(flushMS) * time.Millisecond,
			Logger:        log.New(logger.Writer(), "[index] ", logger.Flags()),
		})
	default:
		return nil, fmt.Errorf("unsupported VC_INDEX_BACKEND: %s", backend)
	}
}

// historyFanout sends raid history to every configured recorder.
type historyFanout []raid.HistoryRecorder

func (f historyFanout) RecordRaid(r raid.RaidRecord) {
	for _, h := range f {
		h.RecordRaid(r)
	}
}

func (f historyFanout) RecordBreak(b raid.BreakRecord) {
	for _, h := range f {
		h.RecordBreak(b)
	}
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
