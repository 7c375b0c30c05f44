package world

import "raidcraft.ai/internal/sim/raid/threshold"

type WorldConfig struct {
	ID         string
	TickRateHz int
	DayTicks   int
	Seed       int64
	Difficulty threshold.Difficulty

	// GroundY is the first air layer of the flat terrain.
	GroundY int
	// BoundaryR limits |x| and |z| for spawns and edits.
	BoundaryR int

	// AgentWorkers bounds concurrent agent behaviour steps per tick.
	AgentWorkers int
	// DefenseReach is the distance at which players hit raid agents each tick.
	DefenseReach int

	// Operational parameters. These are included in snapshots for resume.
	SnapshotEveryTicks int
	StatusEveryTicks   int
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "overworld"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.DayTicks <= 0 {
		c.DayTicks = 24000
	}
	if c.Difficulty == "" {
		c.Difficulty = threshold.Normal
	}
	if c.GroundY <= 0 {
		c.GroundY = 64
	}
	if c.BoundaryR <= 0 {
		c.BoundaryR = 512
	}
	if c.AgentWorkers <= 0 {
		c.AgentWorkers = 4
	}
	if c.DefenseReach <= 0 {
		c.DefenseReach = 3
	}
	if c.SnapshotEveryTicks < 0 {
		c.SnapshotEveryTicks = 0
	}
	if c.StatusEveryTicks <= 0 {
		c.StatusEveryTicks = c.TickRateHz
	}
}
