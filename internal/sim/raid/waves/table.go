package waves

import (
	"errors"
	"fmt"
	"sort"
)

const (
	MinLevel         = 1
	MaxLevel         = 10
	MaxAgentsPerWave = 20
)

var (
	ErrLevelOutOfRange = errors.New("raid level out of range")
	ErrUnknownKind     = errors.New("unknown agent kind")
)

// Table holds per-kind agent counts for each raid level; index 0 is level 1.
type Table map[string][]int

func DefaultTable() Table {
	return Table{
		"zombie":           {8, 8, 7, 5, 5, 5, 5, 5, 3, 3},
		"skeleton":         {0, 2, 2, 4, 5, 5, 8, 5, 5, 5},
		"spider":           {0, 0, 2, 5, 5, 5, 5, 8, 5, 5},
		"phantom":          {0, 0, 0, 0, 0, 1, 1, 3, 3, 5},
		"zombified_piglin": {0, 0, 0, 0, 2, 3, 5, 8, 8, 8},
		"wither_skeleton":  {0, 0, 0, 0, 0, 0, 0, 1, 2, 3},
		"cave_spider":      {0, 0, 0, 0, 0, 0, 1, 1, 2, 3},
	}
}

func (t Table) Validate() error {
	for kind, counts := range t {
		if kind == "" {
			return fmt.Errorf("spawn table: empty kind")
		}
		if len(counts) != MaxLevel-MinLevel+1 {
			return fmt.Errorf("spawn table %s: want %d levels, got %d", kind, MaxLevel-MinLevel+1, len(counts))
		}
		for i, c := range counts {
			if c < 0 {
				return fmt.Errorf("spawn table %s level %d: negative count", kind, i+MinLevel)
			}
		}
	}
	return nil
}

// Kinds returns the table's kinds sorted by name.
func (t Table) Kinds() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Count is the per-player count of kind at level.
func (t Table) Count(kind string, level int) (int, error) {
	if level < MinLevel || level > MaxLevel {
		return 0, fmt.Errorf("%w: %d", ErrLevelOutOfRange, level)
	}
	counts, ok := t[kind]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if level-MinLevel >= len(counts) {
		return 0, nil
	}
	return counts[level-MinLevel], nil
}
