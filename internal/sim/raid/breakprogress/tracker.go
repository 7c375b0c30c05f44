// Package breakprogress accumulates raid damage per block position and
// breaks a block once its damage reaches the position's threshold.
package breakprogress

import (
	"sort"
	"sync"
	"sync/atomic"

	"raidcraft.ai/internal/sim/world/kernel/model"
)

// ClearStage is emitted to remove a crack overlay.
const ClearStage = -1

// MaxStage is the last visible crack stage.
const MaxStage = 10

type Event struct {
	Pos       model.Vec3i
	ChannelID int64
	Stage     int
}

// Entry is a point-in-time copy of a tracked position.
type Entry struct {
	Pos       model.Vec3i `json:"pos"`
	Absolute  int64       `json:"abs"`
	Relative  int         `json:"rel"`
	Threshold int         `json:"threshold"`
	ChannelID int64       `json:"channel"`
}

type Options struct {
	// Threshold is called once when a position is first damaged.
	Threshold func(pos model.Vec3i) int
	// OnBreak runs after the entry is gone and no tracker lock is held.
	OnBreak func(pos model.Vec3i)
	// Emit receives crack overlay updates. It must not block.
	Emit func(Event)
}

type entry struct {
	mu        sync.Mutex
	pos       model.Vec3i
	absolute  int64
	relative  int
	threshold int
	channel   int64
	removed   bool
}

type Tracker struct {
	opts Options

	mu      sync.Mutex
	entries map[model.Vec3i]*entry

	nextChannel atomic.Int64
}

func New(opts Options) *Tracker {
	if opts.Threshold == nil {
		opts.Threshold = func(model.Vec3i) int { return 1 }
	}
	if opts.OnBreak == nil {
		opts.OnBreak = func(model.Vec3i) {}
	}
	if opts.Emit == nil {
		opts.Emit = func(Event) {}
	}
	return &Tracker{opts: opts, entries: map[model.Vec3i]*entry{}}
}

func (t *Tracker) getOrCreate(pos model.Vec3i) *entry {
	t.mu.Lock()
	e := t.entries[pos]
	t.mu.Unlock()
	if e != nil {
		return e
	}

	th := t.opts.Threshold(pos)
	if th < 1 {
		th = 1
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e := t.entries[pos]; e != nil {
		return e
	}
	e = &entry{pos: pos, threshold: th, channel: t.nextChannel.Add(1)}
	t.entries[pos] = e
	return e
}

func (t *Tracker) drop(e *entry) {
	t.mu.Lock()
	if cur := t.entries[e.pos]; cur == e {
		delete(t.entries, e.pos)
	}
	t.mu.Unlock()
}

// AddProgress adds damage at pos and reports whether this call broke the block.
// Exactly one caller observes true per entry lifetime.
func (t *Tracker) AddProgress(pos model.Vec3i, damage int) bool {
	if damage <= 0 {
		return false
	}
	e := t.getOrCreate(pos)

	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return false
	}
	e.absolute += int64(damage)
	if e.absolute >= int64(e.threshold) {
		e.removed = true
		e.relative = MaxStage
		t.drop(e)
		t.opts.Emit(Event{Pos: e.pos, ChannelID: e.channel, Stage: ClearStage})
		e.mu.Unlock()

		t.opts.OnBreak(pos)
		return true
	}
	rel := relative(e.absolute, e.threshold)
	if rel != e.relative {
		e.relative = rel
		t.opts.Emit(Event{Pos: e.pos, ChannelID: e.channel, Stage: ClearStage})
		t.opts.Emit(Event{Pos: e.pos, ChannelID: e.channel, Stage: rel})
	}
	e.mu.Unlock()
	return false
}

func relative(abs int64, threshold int) int {
	r := abs * MaxStage / int64(threshold)
	if r > MaxStage {
		return MaxStage
	}
	return int(r)
}

// ResetProgress forgets pos and clears its overlay. It is a no-op for untracked positions.
func (t *Tracker) ResetProgress(pos model.Vec3i) {
	t.mu.Lock()
	e := t.entries[pos]
	delete(t.entries, pos)
	t.mu.Unlock()
	if e != nil {
		t.retire(e)
	}
}

// ResetAll forgets every position.
func (t *Tracker) ResetAll() {
	t.mu.Lock()
	old := t.entries
	t.entries = map[model.Vec3i]*entry{}
	t.mu.Unlock()
	for _, e := range old {
		t.retire(e)
	}
}

func (t *Tracker) retire(e *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return
	}
	e.removed = true
	t.opts.Emit(Event{Pos: e.pos, ChannelID: e.channel, Stage: ClearStage})
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Get returns a copy of the entry at pos.
func (t *Tracker) Get(pos model.Vec3i) (Entry, bool) {
	t.mu.Lock()
	e := t.entries[pos]
	t.mu.Unlock()
	if e == nil {
		return Entry{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return Entry{}, false
	}
	return e.snapshot(), true
}

func (e *entry) snapshot() Entry {
	return Entry{Pos: e.pos, Absolute: e.absolute, Relative: e.relative, Threshold: e.threshold, ChannelID: e.channel}
}

// Entries returns all live entries ordered by channel id.
func (t *Tracker) Entries() []Entry {
	t.mu.Lock()
	list := make([]*entry, 0, len(t.entries))
	for _, e := range t.entries {
		list = append(list, e)
	}
	t.mu.Unlock()

	out := make([]Entry, 0, len(list))
	for _, e := range list {
		e.mu.Lock()
		if !e.removed {
			out = append(out, e.snapshot())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out
}

// Restore replaces all entries with saved ones and re-emits their overlays.
// Entries with a non-positive threshold or already at threshold are skipped.
func (t *Tracker) Restore(entries []Entry) {
	t.ResetAll()

	t.mu.Lock()
	var maxCh int64
	restored := make([]*entry, 0, len(entries))
	for _, in := range entries {
		if in.Threshold < 1 || in.Absolute < 0 || in.Absolute >= int64(in.Threshold) {
			continue
		}
		if _, dup := t.entries[in.Pos]; dup {
			continue
		}
		e := &entry{
			pos:       in.Pos,
			absolute:  in.Absolute,
			relative:  relative(in.Absolute, in.Threshold),
			threshold: in.Threshold,
			channel:   in.ChannelID,
		}
		t.entries[in.Pos] = e
		restored = append(restored, e)
		if in.ChannelID > maxCh {
			maxCh = in.ChannelID
		}
	}
	t.mu.Unlock()

	for {
		cur := t.nextChannel.Load()
		if cur >= maxCh || t.nextChannel.CompareAndSwap(cur, maxCh) {
			break
		}
	}
	for _, e := range restored {
		e.mu.Lock()
		if !e.removed && e.relative > 0 {
			t.opts.Emit(Event{Pos: e.pos, ChannelID: e.channel, Stage: e.relative})
		}
		e.mu.Unlock()
	}
}
