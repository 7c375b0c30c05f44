package log

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"raidcraft.ai/internal/sim/raid"
	"raidcraft.ai/internal/sim/world"
	"raidcraft.ai/internal/sim/world/kernel/model"
)

func TestWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, Events)
	now := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.clock = func() time.Time { return now }

	if err := w.Append(map[string]int{"n": 1}); err != nil {
		t.Fatalf("append: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Append(map[string]int{"n": 2}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Events.Files(Events.Dir(dir))
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "events-2026-03-01-10.jsonl.zst" || filepath.Base(files[1]) != "events-2026-03-01-11.jsonl.zst" {
		t.Fatalf("files=%v", files)
	}
	var got []int
	err = Events.Scan(Events.Dir(dir), func(_ string, line json.RawMessage) error {
		var v struct{ N int }
		if err := json.Unmarshal(line, &v); err != nil {
			return err
		}
		got = append(got, v.N)
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("scan order: %v", got)
	}
}

func TestReadFile_KeepsUnterminatedLastLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit-2026-03-01-10.jsonl.zst")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	if _, err := enc.Write([]byte("{\"n\":1}\n\n{\"n\":2}")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	_ = f.Close()

	var got []int
	err = ReadFile(path, func(line json.RawMessage) error {
		var v struct{ N int }
		if err := json.Unmarshal(line, &v); err != nil {
			return fmt.Errorf("line %q: %w", line, err)
		}
		got = append(got, v.N)
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[1] != 2 {
		t.Fatalf("got %v want [1 2]", got)
	}
}

func TestHistoryLogger_RecordsRaidsAndBreaks(t *testing.T) {
	dir := t.TempDir()
	var errs []error
	l := NewHistoryLogger(dir, func(err error) { errs = append(errs, err) })
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l.clock = func() time.Time { return fixed }

	var _ raid.HistoryRecorder = l
	l.RecordBreak(raid.BreakRecord{Tick: 40, Pos: model.Vec3i{X: 2, Y: 64, Z: 0}, Block: "PLANK"})
	l.RecordRaid(raid.RaidRecord{Level: 3, Outcome: raid.OutcomeWon, StartedAt: 10, EndedAt: 90, Destroyed: 1})
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	var entries []HistoryEntry
	err := ReadFile(filepath.Join(dir, "raids", "raids-2026-03-01-10.jsonl.zst"), func(line json.RawMessage) error {
		var e HistoryEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries=%d want 2", len(entries))
	}
	if entries[0].Kind != HistoryBreak || entries[0].Break == nil || entries[0].Break.Block != "PLANK" {
		t.Fatalf("first entry: %+v", entries[0])
	}
	if entries[1].Kind != HistoryRaid || entries[1].Raid == nil || entries[1].Raid.Outcome != raid.OutcomeWon || entries[1].Raid.Level != 3 {
		t.Fatalf("second entry: %+v", entries[1])
	}
}

func TestTickAndAuditLoggers_WriteUnderWorldDir(t *testing.T) {
	dir := t.TempDir()
	tl := NewTickLogger(dir)
	al := NewAuditLogger(dir)
	var _ world.TickLogger = tl
	var _ world.AuditLogger = al

	if err := tl.WriteTick(world.TickLogEntry{Tick: 7, Phase: "idle", Digest: "abc"}); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if err := al.WriteAudit(world.AuditEntry{Tick: 7, Actor: "raid", Action: "SET_BLOCK", Reason: "RESTORE"}); err != nil {
		t.Fatalf("audit: %v", err)
	}
	tickPath := tl.path()
	auditPath := al.path()
	if filepath.Dir(tickPath) != Events.Dir(dir) || filepath.Dir(auditPath) != Audit.Dir(dir) {
		t.Fatalf("paths: %s %s", tickPath, auditPath)
	}
	if err := tl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := al.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var tick world.TickLogEntry
	if err := ReadFile(tickPath, func(line json.RawMessage) error { return json.Unmarshal(line, &tick) }); err != nil {
		t.Fatalf("read tick: %v", err)
	}
	if tick.Tick != 7 || tick.Digest != "abc" {
		t.Fatalf("tick entry: %+v", tick)
	}
	var audit world.AuditEntry
	if err := ReadFile(auditPath, func(line json.RawMessage) error { return json.Unmarshal(line, &audit) }); err != nil {
		t.Fatalf("read audit: %v", err)
	}
	if audit.Reason != "RESTORE" {
		t.Fatalf("audit entry: %+v", audit)
	}
}
