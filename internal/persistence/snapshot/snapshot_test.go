package snapshot

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := Path(dir, 42)
	in := SnapshotV1{
		Header:   Header{Version: Version, WorldID: "w1", Tick: 42},
		Seed:     7,
		TickRate: 20,
		DayTicks: 24000,
		GameTime: 42,
		Palette:  []string{"AIR", "NEXUS", "PLANK"},
		Blocks:   []BlockV1{{Pos: [3]int{0, 64, 0}, Block: 1}, {Pos: [3]int{1, 64, 0}, Block: 2}},
		Anchor:   &AnchorV1{Pos: [3]int{0, 64, 0}},
		Players:  []PlayerV1{{ID: "p1", Name: "alice", Pos: [3]int{3, 64, 0}}},
		Agents:   []AgentV1{{ID: "a1", Kind: "zombie", Pos: [3]int{40, 64, 0}}},
		Raid:     []byte{1, 2, 3},
	}
	if err := WriteSnapshot(p, in); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := ReadHeader(p)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if h.WorldID != "w1" || h.Tick != 42 {
		t.Fatalf("header: %+v", h)
	}

	out, err := ReadSnapshot(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out.Blocks) != 2 || out.Blocks[1].Block != 2 {
		t.Fatalf("blocks: %+v", out.Blocks)
	}
	if out.Anchor == nil || out.Anchor.Pos != [3]int{0, 64, 0} {
		t.Fatalf("anchor: %+v", out.Anchor)
	}
	if !bytes.Equal(out.Raid, in.Raid) {
		t.Fatalf("raid blob: %v", out.Raid)
	}
}

func TestReadSnapshot_RejectsUnknownVersion(t *testing.T) {
	p := filepath.Join(t.TempDir(), "v9.snap.zst")
	if err := WriteSnapshot(p, SnapshotV1{Header: Header{Version: 9}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(p); err == nil {
		t.Fatalf("expected version error")
	}
}
