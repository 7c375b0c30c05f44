package waves

import "fmt"

// Allocation splits a raid's agents into waves. Waves[0] is wave 1.
type Allocation struct {
	Waves []map[string]int `json:"waves"`
}

func (a Allocation) NumWaves() int { return len(a.Waves) }

// Total sums every wave.
func (a Allocation) Total() int {
	n := 0
	for _, w := range a.Waves {
		for _, c := range w {
			n += c
		}
	}
	return n
}

// TotalOf sums kind over every wave.
func (a Allocation) TotalOf(kind string) int {
	n := 0
	for _, w := range a.Waves {
		n += w[kind]
	}
	return n
}

// ComputeAllocation scales the table row for level by the player count and
// spreads it over total/MaxAgentsPerWave+1 waves. Each wave gets count/N of a
// kind; the last wave also takes the remainder.
func ComputeAllocation(t Table, level, players int) (Allocation, error) {
	if level < MinLevel || level > MaxLevel {
		return Allocation{}, fmt.Errorf("%w: %d", ErrLevelOutOfRange, level)
	}
	if players < 0 {
		players = 0
	}

	counts := map[string]int{}
	total := 0
	for _, kind := range t.Kinds() {
		per, err := t.Count(kind, level)
		if err != nil {
			return Allocation{}, err
		}
		if c := per * players; c > 0 {
			counts[kind] = c
			total += c
		}
	}

	n := total/MaxAgentsPerWave + 1
	out := Allocation{Waves: make([]map[string]int, n)}
	for i := range out.Waves {
		out.Waves[i] = map[string]int{}
	}
	for kind, c := range counts {
		share := c / n
		for i := 0; i < n-1; i++ {
			if share > 0 {
				out.Waves[i][kind] = share
			}
		}
		if last := c - share*(n-1); last > 0 {
			out.Waves[n-1][kind] = last
		}
	}
	return out, nil
}
