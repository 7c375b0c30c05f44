package tuning

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"raidcraft.ai/internal/sim/raid"
	"raidcraft.ai/internal/sim/raid/duration"
	"raidcraft.ai/internal/sim/raid/threshold"
	"raidcraft.ai/internal/sim/raid/waves"
	"raidcraft.ai/internal/sim/world/kernel/model"
)

//go:embed tuning.schema.json
var schemaJSON []byte

type Tuning struct {
	TickRateHz         int    `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	DayTicks           int    `yaml:"day_ticks" json:"day_ticks"`
	SnapshotEveryTicks int    `yaml:"snapshot_every_ticks" json:"snapshot_every_ticks"`
	AgentWorkers       int    `yaml:"agent_workers" json:"agent_workers"`
	Difficulty         string `yaml:"difficulty" json:"difficulty"`

	Raid Raid `yaml:"raid" json:"raid"`
}

// Span is a duration written with an explicit unit, e.g. {value: 20, unit: min}.
type Span struct {
	Value int64  `yaml:"value" json:"value"`
	Unit  string `yaml:"unit" json:"unit"`
}

func (s Span) Ticks() (int64, error) {
	d, ok := duration.Unit(s.Unit).Of(s.Value)
	if !ok {
		return 0, fmt.Errorf("unknown time unit %q", s.Unit)
	}
	return d.Ticks(), nil
}

type Raid struct {
	TimeBetweenRaids   Span  `yaml:"time_between_raids" json:"time_between_raids"`
	MaxRaidDuration    Span  `yaml:"max_raid_duration" json:"max_raid_duration"`
	RaidStartDayTime   int64 `yaml:"raid_start_day_time" json:"raid_start_day_time"`
	SleepBlackoutTicks int64 `yaml:"sleep_blackout_ticks" json:"sleep_blackout_ticks"`

	WarnSeconds               []int64 `yaml:"warn_seconds" json:"warn_seconds"`
	CountdownSoundSeconds     int64   `yaml:"countdown_sound_seconds" json:"countdown_sound_seconds"`
	EnableCountdownSound      bool    `yaml:"enable_countdown_sound" json:"enable_countdown_sound"`
	RaidSoundIntervalTicks    int64   `yaml:"raid_sound_interval_ticks" json:"raid_sound_interval_ticks"`
	SleepReducesTimeUntilRaid bool    `yaml:"sleep_reduces_time_until_raid" json:"sleep_reduces_time_until_raid"`
	RestoreDestroyedBlocks    bool    `yaml:"restore_destroyed_blocks" json:"restore_destroyed_blocks"`

	EffectRadius    int                   `yaml:"effect_radius" json:"effect_radius"`
	LootChestOffset [3]int                `yaml:"loot_chest_offset" json:"loot_chest_offset"`
	LootTablePrefix string                `yaml:"loot_table_prefix" json:"loot_table_prefix"`
	Effects         map[int][]raid.Effect `yaml:"effects" json:"effects,omitempty"`
	WinEffect       raid.Effect           `yaml:"win_effect" json:"win_effect"`

	Multipliers Multipliers      `yaml:"multipliers" json:"multipliers"`
	SpawnTable  map[string][]int `yaml:"spawn_table" json:"spawn_table,omitempty"`
	Waves       Waves            `yaml:"waves" json:"waves"`
}

type Multipliers struct {
	Easy   float64 `yaml:"easy" json:"easy"`
	Normal float64 `yaml:"normal" json:"normal"`
	Hard   float64 `yaml:"hard" json:"hard"`
}

type Waves struct {
	SpawnRadius       int   `yaml:"spawn_radius" json:"spawn_radius"`
	AngleSteps        int   `yaml:"angle_steps" json:"angle_steps"`
	FlyingOffset      int   `yaml:"flying_offset" json:"flying_offset"`
	RetryTicks        int64 `yaml:"retry_ticks" json:"retry_ticks"`
	WaveIntervalTicks int64 `yaml:"wave_interval_ticks" json:"wave_interval_ticks"`
}

// Defaults mirrors raid.DefaultConfig. Spawn table and effects are filled by
// Normalize so a file can replace them wholesale.
func Defaults() Tuning {
	rc := raid.DefaultConfig()
	return Tuning{
		TickRateHz:         duration.TicksPerSecond,
		DayTicks:           int(rc.DayLengthTicks),
		SnapshotEveryTicks: 6000,
		AgentWorkers:       8,
		Difficulty:         string(threshold.Normal),
		Raid: Raid{
			TimeBetweenRaids:          Span{Value: rc.TimeBetweenRaids, Unit: string(duration.UnitTicks)},
			MaxRaidDuration:           Span{Value: rc.MaxRaidDuration, Unit: string(duration.UnitTicks)},
			RaidStartDayTime:          rc.RaidStartDayTime,
			SleepBlackoutTicks:        rc.SleepBlackoutTicks,
			WarnSeconds:               rc.WarnSeconds,
			CountdownSoundSeconds:     rc.CountdownSoundSeconds,
			EnableCountdownSound:      rc.EnableCountdownSound,
			RaidSoundIntervalTicks:    rc.RaidSoundIntervalTicks,
			SleepReducesTimeUntilRaid: rc.SleepReducesTimeUntilRaid,
			RestoreDestroyedBlocks:    rc.RestoreDestroyedBlocks,
			EffectRadius:              rc.EffectRadius,
			LootChestOffset:           rc.LootChestOffset.ToArray(),
			LootTablePrefix:           rc.LootTablePrefix,
			WinEffect:                 rc.WinEffect,
			Multipliers: Multipliers{
				Easy:   rc.Multipliers.Easy,
				Normal: rc.Multipliers.Normal,
				Hard:   rc.Multipliers.Hard,
			},
			Waves: Waves{
				SpawnRadius:       rc.Waves.SpawnRadius,
				AngleSteps:        rc.Waves.AngleSteps,
				FlyingOffset:      rc.Waves.FlyingOffset,
				RetryTicks:        rc.Waves.RetryTicks,
				WaveIntervalTicks: rc.Waves.WaveIntervalTicks,
			},
		},
	}
}

// Load reads a tuning file over Defaults, then normalizes and validates it.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	if t.TickRateHz <= 0 {
		t.TickRateHz = duration.TicksPerSecond
	}
	if t.AgentWorkers <= 0 {
		t.AgentWorkers = 1
	}
	if t.Difficulty == "" {
		t.Difficulty = string(threshold.Normal)
	}
	if len(t.Raid.SpawnTable) == 0 {
		t.Raid.SpawnTable = waves.DefaultTable()
	}
	if t.Raid.Effects == nil {
		t.Raid.Effects = raid.DefaultEffects()
	}
	if t.Raid.TimeBetweenRaids.Unit == "" {
		t.Raid.TimeBetweenRaids.Unit = string(duration.UnitTicks)
	}
	if t.Raid.MaxRaidDuration.Unit == "" {
		t.Raid.MaxRaidDuration.Unit = string(duration.UnitTicks)
	}
}

// Validate checks the document shape against the embedded schema, then the
// cross-field rules of the raid configuration.
func (t Tuning) Validate() error {
	schema, err := compileSchema()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return err
	}
	_, err = t.RaidConfig()
	return err
}

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("tuning.schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile("tuning.schema.json")
}

func (t Tuning) DifficultyLevel() threshold.Difficulty {
	return threshold.Difficulty(t.Difficulty)
}

// RaidConfig converts the raid section into a validated raid.Config.
func (t Tuning) RaidConfig() (raid.Config, error) {
	r := t.Raid
	between, err := r.TimeBetweenRaids.Ticks()
	if err != nil {
		return raid.Config{}, fmt.Errorf("time_between_raids: %w", err)
	}
	maxDur, err := r.MaxRaidDuration.Ticks()
	if err != nil {
		return raid.Config{}, fmt.Errorf("max_raid_duration: %w", err)
	}
	cfg := raid.Config{
		TimeBetweenRaids:          between,
		MaxRaidDuration:           maxDur,
		RaidStartDayTime:          r.RaidStartDayTime,
		SleepBlackoutTicks:        r.SleepBlackoutTicks,
		DayLengthTicks:            int64(t.DayTicks),
		WarnSeconds:               r.WarnSeconds,
		CountdownSoundSeconds:     r.CountdownSoundSeconds,
		EnableCountdownSound:      r.EnableCountdownSound,
		RaidSoundIntervalTicks:    r.RaidSoundIntervalTicks,
		SleepReducesTimeUntilRaid: r.SleepReducesTimeUntilRaid,
		RestoreDestroyedBlocks:    r.RestoreDestroyedBlocks,
		EffectRadius:              r.EffectRadius,
		LootChestOffset:           model.FromArray(r.LootChestOffset),
		LootTablePrefix:           r.LootTablePrefix,
		Effects:                   r.Effects,
		WinEffect:                 r.WinEffect,
		Multipliers: threshold.Multipliers{
			Easy:   r.Multipliers.Easy,
			Normal: r.Multipliers.Normal,
			Hard:   r.Multipliers.Hard,
		},
		SpawnTable: waves.Table(r.SpawnTable),
		Waves: waves.Config{
			SpawnRadius:       r.Waves.SpawnRadius,
			AngleSteps:        r.Waves.AngleSteps,
			FlyingOffset:      r.Waves.FlyingOffset,
			RetryTicks:        r.Waves.RetryTicks,
			WaveIntervalTicks: r.Waves.WaveIntervalTicks,
		},
	}
	if err := cfg.Validate(); err != nil {
		return raid.Config{}, err
	}
	return cfg, nil
}
