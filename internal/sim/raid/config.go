package raid

import (
	"fmt"

	"raidcraft.ai/internal/sim/raid/threshold"
	"raidcraft.ai/internal/sim/raid/waves"
	"raidcraft.ai/internal/sim/world/kernel/model"
)

const (
	MinLevel = waves.MinLevel
	MaxLevel = waves.MaxLevel
)

type Config struct {
	TimeBetweenRaids   int64
	MaxRaidDuration    int64
	RaidStartDayTime   int64
	SleepBlackoutTicks int64
	DayLengthTicks     int64

	WarnSeconds               []int64
	CountdownSoundSeconds     int64
	EnableCountdownSound      bool
	RaidSoundIntervalTicks    int64
	SleepReducesTimeUntilRaid bool
	RestoreDestroyedBlocks    bool

	EffectRadius    int
	LootChestOffset model.Vec3i
	LootTablePrefix string
	Effects         map[int][]Effect
	WinEffect       Effect

	Multipliers threshold.Multipliers
	SpawnTable  waves.Table
	Waves       waves.Config
}

func DefaultConfig() Config {
	return Config{
		TimeBetweenRaids:   24000,
		MaxRaidDuration:    3600,
		RaidStartDayTime:   14000,
		SleepBlackoutTicks: 12020,
		DayLengthTicks:     24000,

		WarnSeconds:            []int64{4800, 3600, 2400, 1800, 1200, 900, 600, 300, 120, 60, 30, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1},
		CountdownSoundSeconds:  5,
		EnableCountdownSound:   true,
		RaidSoundIntervalTicks: 60,
		RestoreDestroyedBlocks: true,

		EffectRadius:    32,
		LootChestOffset: model.Vec3i{Y: 1},
		LootTablePrefix: "chests/raid_level_",
		Effects:         DefaultEffects(),
		WinEffect:       Effect{Name: "regeneration", Duration: 200},

		Multipliers: threshold.DefaultMultipliers(),
		SpawnTable:  waves.DefaultTable(),
		Waves:       waves.DefaultConfig(),
	}
}

// DefaultEffects is the reward effect set granted per raid level.
func DefaultEffects() map[int][]Effect {
	speed := func(d, a int) Effect { return Effect{Name: "speed", Duration: d, Amplifier: a} }
	haste := func(d int) Effect { return Effect{Name: "haste", Duration: d} }
	lvl9 := []Effect{
		speed(600, 1),
		haste(1200),
		{Name: "luck", Duration: 1200},
		{Name: "water_breathing", Duration: 200},
	}
	return map[int][]Effect{
		1:  nil,
		2:  {speed(200, 0)},
		3:  {speed(200, 0)},
		4:  {speed(400, 0)},
		5:  {speed(400, 1)},
		6:  {speed(400, 1)},
		7:  {speed(400, 1), haste(600)},
		8:  {speed(400, 1), haste(1200)},
		9:  lvl9,
		10: append(append([]Effect(nil), lvl9...), Effect{Name: "saturation", Duration: 200}),
	}
}

func (c Config) Validate() error {
	if c.TimeBetweenRaids <= 0 {
		return fmt.Errorf("time between raids must be > 0")
	}
	if c.MaxRaidDuration <= 0 {
		return fmt.Errorf("max raid duration must be > 0")
	}
	if c.DayLengthTicks <= 0 {
		return fmt.Errorf("day length must be > 0")
	}
	if c.EffectRadius < 0 {
		return fmt.Errorf("effect radius must be >= 0")
	}
	if err := c.SpawnTable.Validate(); err != nil {
		return err
	}
	for lvl := range c.Effects {
		if lvl < MinLevel || lvl > MaxLevel {
			return fmt.Errorf("effects for level %d out of range", lvl)
		}
	}
	return nil
}

func (c Config) lootTable(level int) string {
	return fmt.Sprintf("%s%d", c.LootTablePrefix, level)
}
