package log

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"raidcraft.ai/internal/sim/raid"
	"raidcraft.ai/internal/sim/world"
)

// Stream names one family of hourly JSONL+zstd files under a world directory.
// Files live at <worldDir>/<stream>/<stream>-YYYY-MM-DD-HH.jsonl.zst.
type Stream string

const (
	Events Stream = "events"
	Audit  Stream = "audit"
	Raids  Stream = "raids"
)

const fileSuffix = ".jsonl.zst"

func (s Stream) Dir(worldDir string) string { return filepath.Join(worldDir, string(s)) }

func (s Stream) fileName(hour string) string {
	return fmt.Sprintf("%s-%s%s", s, hour, fileSuffix)
}

// Files lists the stream's files in dir, oldest hour first.
func (s Stream) Files(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	prefix := string(s) + "-"
	var out []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

// Scan reads every line of every file of the stream in dir, in order.
func (s Stream) Scan(dir string, fn func(file string, line json.RawMessage) error) error {
	files, err := s.Files(dir)
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := ReadFile(path, func(line json.RawMessage) error { return fn(path, line) }); err != nil {
			return err
		}
	}
	return nil
}

// Writer appends one JSON document per line to the current hour's file of a
// stream. Rotation happens on the first write of a new UTC hour.
type Writer struct {
	dir    string
	stream Stream
	clock  func() time.Time

	mu  sync.Mutex
	seg *segment
}

func NewWriter(worldDir string, s Stream) *Writer {
	return &Writer{dir: s.Dir(worldDir), stream: s, clock: time.Now}
}

func (w *Writer) Append(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.clock().UTC().Format("2006-01-02-15")
	if w.seg == nil || w.seg.hour != hour {
		if err := w.seg.close(); err != nil {
			return err
		}
		w.seg = nil
		seg, err := openSegment(filepath.Join(w.dir, w.stream.fileName(hour)), hour)
		if err != nil {
			return err
		}
		w.seg = seg
	}
	return w.seg.appendLine(b)
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.seg.close()
	w.seg = nil
	return err
}

// path is the file currently written, or "" before the first write.
func (w *Writer) path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seg == nil {
		return ""
	}
	return w.seg.f.Name()
}

type segment struct {
	hour string
	f    *os.File
	enc  *zstd.Encoder
	buf  *bufio.Writer
}

func openSegment(path, hour string) (*segment, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{hour: hour, f: f, enc: enc, buf: bufio.NewWriterSize(enc, 128*1024)}, nil
}

// appendLine flushes through the encoder so a crash loses at most one line.
func (s *segment) appendLine(b []byte) error {
	if _, err := s.buf.Write(b); err != nil {
		return err
	}
	if err := s.buf.WriteByte('\n'); err != nil {
		return err
	}
	return s.buf.Flush()
}

func (s *segment) close() error {
	if s == nil {
		return nil
	}
	ferr := s.buf.Flush()
	eerr := s.enc.Close()
	cerr := s.f.Close()
	return errors.Join(ferr, eerr, cerr)
}

// ReadFile calls fn for every non-empty line of a compressed JSONL file. A
// final line without a newline, as left by a crash, is passed through whole.
func ReadFile(path string, fn func(line json.RawMessage) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 128*1024)
	for {
		line, err := br.ReadBytes('\n')
		line = bytes.TrimSuffix(line, []byte{'\n'})
		if len(line) > 0 {
			if ferr := fn(json.RawMessage(line)); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// TickLogger records one entry per tick for replay.
type TickLogger struct{ *Writer }

func NewTickLogger(worldDir string) *TickLogger {
	return &TickLogger{NewWriter(worldDir, Events)}
}

func (l *TickLogger) WriteTick(v world.TickLogEntry) error { return l.Append(v) }

// AuditLogger records every block change with its actor and reason.
type AuditLogger struct{ *Writer }

func NewAuditLogger(worldDir string) *AuditLogger {
	return &AuditLogger{NewWriter(worldDir, Audit)}
}

func (l *AuditLogger) WriteAudit(v world.AuditEntry) error { return l.Append(v) }

type HistoryKind string

const (
	HistoryRaid  HistoryKind = "raid"
	HistoryBreak HistoryKind = "break"
)

// HistoryEntry is one line of the raid history stream. Exactly one of Raid
// and Break is set, matching Kind.
type HistoryEntry struct {
	Kind  HistoryKind       `json:"kind"`
	Raid  *raid.RaidRecord  `json:"raid,omitempty"`
	Break *raid.BreakRecord `json:"break,omitempty"`
}

// HistoryLogger implements raid.HistoryRecorder on the raids stream. The
// recorder interface has no error return, so failures go to onError.
type HistoryLogger struct {
	*Writer
	onError func(error)
}

func NewHistoryLogger(worldDir string, onError func(error)) *HistoryLogger {
	if onError == nil {
		onError = func(error) {}
	}
	return &HistoryLogger{Writer: NewWriter(worldDir, Raids), onError: onError}
}

func (l *HistoryLogger) RecordRaid(r raid.RaidRecord) {
	l.record(HistoryEntry{Kind: HistoryRaid, Raid: &r})
}

func (l *HistoryLogger) RecordBreak(b raid.BreakRecord) {
	l.record(HistoryEntry{Kind: HistoryBreak, Break: &b})
}

func (l *HistoryLogger) record(e HistoryEntry) {
	if err := l.Append(e); err != nil {
		l.onError(fmt.Errorf("raid history %s: %w", e.Kind, err))
	}
}
