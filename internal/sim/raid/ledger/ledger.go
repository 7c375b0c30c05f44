// Package ledger remembers what raid agents destroyed so it can be put back.
package ledger

import (
	"sort"
	"sync"

	"raidcraft.ai/internal/sim/world/kernel/model"
)

// Record is the material that stood at Pos before the raid destroyed it.
type Record struct {
	Pos   model.Vec3i `json:"pos"`
	Block string      `json:"block"`
}

// Setter writes a block back into the world.
type Setter interface {
	SetBlock(pos model.Vec3i, block string) error
}

type Ledger struct {
	m sync.Map // model.Vec3i -> string
}

func New() *Ledger { return &Ledger{} }

// Record stores the prior state of pos. Only the first record per position is kept.
func (l *Ledger) Record(pos model.Vec3i, block string) bool {
	_, loaded := l.m.LoadOrStore(pos, block)
	return !loaded
}

func (l *Ledger) Len() int {
	n := 0
	l.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (l *Ledger) Clear() {
	l.m.Range(func(k, _ any) bool {
		l.m.Delete(k)
		return true
	})
}

// Snapshot returns all records sorted by position.
func (l *Ledger) Snapshot() []Record {
	var out []Record
	l.m.Range(func(k, v any) bool {
		out = append(out, Record{Pos: k.(model.Vec3i), Block: v.(string)})
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Pos, out[j].Pos
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Z < b.Z
	})
	return out
}

// Load replaces the ledger contents.
func (l *Ledger) Load(recs []Record) {
	l.Clear()
	for _, r := range recs {
		l.Record(r.Pos, r.Block)
	}
}

// Restore writes every record back bottom-up and empties the ledger.
// Records that fail to restore are returned with the first error.
func (l *Ledger) Restore(w Setter) (int, error) {
	recs := l.Snapshot()
	l.Clear()
	var firstErr error
	n := 0
	for _, r := range recs {
		if err := w.SetBlock(r.Pos, r.Block); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		n++
	}
	return n, firstErr
}
