// Package statecodec encodes the raid session into a compressed blob and
// decodes it field by field, falling back to defaults for anything unreadable.
package statecodec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"raidcraft.ai/internal/sim/raid/breakprogress"
	"raidcraft.ai/internal/sim/raid/ledger"
	"raidcraft.ai/internal/sim/raid/waves"
)

const Version = 1

// State is the persisted raid session.
type State struct {
	Version           int                   `json:"version"`
	RaidLevel         int                   `json:"raid_level"`
	IsRaidActive      bool                  `json:"is_raid_active"`
	NextRaidTime      int64                 `json:"next_raid_time"`
	ActiveRaidTicks   int64                 `json:"active_raid_ticks"`
	DaytimeBeforeRaid int64                 `json:"daytime_before_raid"`
	HasDaytime        bool                  `json:"has_daytime"`
	LastWonRaidLevel  int                   `json:"last_won_raid_level"`
	Progress          []breakprogress.Entry `json:"progress,omitempty"`
	Ledger            []ledger.Record       `json:"ledger,omitempty"`
	Waves             waves.State           `json:"waves"`
}

// Encode writes s as zstd-compressed JSON.
func Encode(s State) ([]byte, error) {
	s.Version = Version
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("raid state encode: %w", err)
	}
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return nil, fmt.Errorf("raid state compress: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("raid state compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode never fails: fields that are missing or malformed keep their value
// from def. The returned list names every field that fell back.
func Decode(blob []byte, def State) (State, []string) {
	out := def
	out.Version = Version
	if len(blob) == 0 {
		return out, []string{"*"}
	}

	dec, err := zstd.NewReader(bytes.NewReader(blob))
	if err != nil {
		return out, []string{"*"}
	}
	defer dec.Close()
	raw, err := io.ReadAll(dec)
	if err != nil {
		return out, []string{"*"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return out, []string{"*"}
	}

	var fallback []string
	miss := func(name string) { fallback = append(fallback, name) }

	if v, ok := get[int](fields, "raid_level"); ok && v >= waves.MinLevel && v <= waves.MaxLevel {
		out.RaidLevel = v
	} else {
		miss("raid_level")
	}
	if v, ok := get[bool](fields, "is_raid_active"); ok {
		out.IsRaidActive = v
	} else {
		miss("is_raid_active")
	}
	if v, ok := get[int64](fields, "next_raid_time"); ok && v >= 0 {
		out.NextRaidTime = v
	} else {
		miss("next_raid_time")
	}
	if v, ok := get[int64](fields, "active_raid_ticks"); ok && v >= 0 {
		out.ActiveRaidTicks = v
	} else {
		miss("active_raid_ticks")
	}
	if v, ok := get[int64](fields, "daytime_before_raid"); ok {
		out.DaytimeBeforeRaid = v
	} else {
		miss("daytime_before_raid")
	}
	if v, ok := get[bool](fields, "has_daytime"); ok {
		out.HasDaytime = v
	} else {
		miss("has_daytime")
	}
	if v, ok := get[int](fields, "last_won_raid_level"); ok && v >= 0 && v <= waves.MaxLevel {
		out.LastWonRaidLevel = v
	} else {
		miss("last_won_raid_level")
	}

	// Collections are optional: absent means empty.
	if _, present := fields["progress"]; present {
		if v, ok := get[[]breakprogress.Entry](fields, "progress"); ok {
			out.Progress = v
		} else {
			miss("progress")
		}
	}
	if _, present := fields["ledger"]; present {
		if v, ok := get[[]ledger.Record](fields, "ledger"); ok {
			out.Ledger = v
		} else {
			miss("ledger")
		}
	}
	if _, present := fields["waves"]; present {
		if v, ok := get[waves.State](fields, "waves"); ok {
			out.Waves = v
		} else {
			miss("waves")
		}
	}
	return out, fallback
}

func get[T any](fields map[string]json.RawMessage, name string) (T, bool) {
	var v T
	msg, ok := fields[name]
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(msg, &v); err != nil {
		return v, false
	}
	return v, true
}
