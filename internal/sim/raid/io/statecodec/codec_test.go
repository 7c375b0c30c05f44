package statecodec

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/klauspost/compress/zstd"

	"raidcraft.ai/internal/sim/raid/breakprogress"
	"raidcraft.ai/internal/sim/raid/ledger"
	"raidcraft.ai/internal/sim/raid/waves"
	"raidcraft.ai/internal/sim/world/kernel/model"
)

func defaults() State {
	return State{RaidLevel: waves.MinLevel, NextRaidTime: 24000}
}

func compress(t *testing.T, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	_, _ = enc.Write(raw)
	_ = enc.Close()
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	in := State{
		RaidLevel:         4,
		IsRaidActive:      true,
		NextRaidTime:      96000,
		ActiveRaidTicks:   120,
		DaytimeBeforeRaid: 6000,
		HasDaytime:        true,
		LastWonRaidLevel:  3,
		Progress:          []breakprogress.Entry{{Pos: model.Vec3i{X: 1}, Absolute: 10, Relative: 1, Threshold: 84, ChannelID: 5}},
		Ledger:            []ledger.Record{{Pos: model.Vec3i{X: 1, Y: 2}, Block: "PLANK"}},
		Waves: waves.State{
			Allocation: waves.Allocation{Waves: []map[string]int{{"zombie": 8}}},
			NextWave:   1,
			Spawned:    []waves.AgentID{"a1", "a2"},
		},
	}
	blob, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, fallback := Decode(blob, defaults())
	if len(fallback) != 0 {
		t.Fatalf("unexpected fallback: %v", fallback)
	}
	in.Version = Version
	a, _ := json.Marshal(in)
	b, _ := json.Marshal(out)
	if !bytes.Equal(a, b) {
		t.Fatalf("round trip mismatch:\n%s\n%s", a, b)
	}
}

func TestEmptyAndCorruptBlobUseDefaults(t *testing.T) {
	for name, blob := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("not zstd at all"),
		"notjson": compress(t, []byte("{{{")),
	} {
		out, fallback := Decode(blob, defaults())
		if out.RaidLevel != waves.MinLevel || out.IsRaidActive || out.NextRaidTime != 24000 {
			t.Fatalf("%s: out=%+v", name, out)
		}
		if len(fallback) == 0 {
			t.Fatalf("%s: expected fallback report", name)
		}
	}
}

func TestFieldLevelFallback(t *testing.T) {
	raw := []byte(`{"raid_level":"seven","is_raid_active":true,"next_raid_time":5000,"ledger":"oops"}`)
	out, fallback := Decode(compress(t, raw), defaults())
	if out.RaidLevel != waves.MinLevel {
		t.Fatalf("raid_level=%d want default", out.RaidLevel)
	}
	if !out.IsRaidActive || out.NextRaidTime != 5000 {
		t.Fatalf("good fields lost: %+v", out)
	}
	if out.Ledger != nil {
		t.Fatalf("malformed ledger should stay empty")
	}
	want := map[string]bool{"raid_level": true, "ledger": true}
	for _, f := range fallback {
		delete(want, f)
	}
	if len(want) != 0 {
		t.Fatalf("fallback=%v missing %v", fallback, want)
	}
}

func TestOutOfRangeLevelFallsBack(t *testing.T) {
	raw := []byte(`{"raid_level":42,"is_raid_active":false,"next_raid_time":1}`)
	out, _ := Decode(compress(t, raw), defaults())
	if out.RaidLevel != waves.MinLevel {
		t.Fatalf("raid_level=%d", out.RaidLevel)
	}
}
