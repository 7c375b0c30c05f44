package main

import (
	"net/http"
	"testing"

	persistlog "raidcraft.ai/internal/persistence/log"
	"raidcraft.ai/internal/persistence/snapshot"
	"raidcraft.ai/internal/sim/raid/io/statecodec"
	"raidcraft.ai/internal/sim/world"
)

func TestRollback_RevertsRaidDamageInAABB(t *testing.T) {
	worldDir := t.TempDir()
	al := persistlog.NewAuditLogger(worldDir)
	entries := []world.AuditEntry{
		{Tick: 10, Actor: "p1", Action: "SET_BLOCK", Pos: [3]int{2, 64, 0}, From: "AIR", To: "PLANK", Reason: "PLACE"},
		{Tick: 40, Actor: "RAID", Action: "SET_BLOCK", Pos: [3]int{2, 64, 0}, From: "PLANK", To: "AIR", Reason: "BREAK_PROGRESS"},
		{Tick: 41, Actor: "RAID", Action: "SET_BLOCK", Pos: [3]int{2, 65, 0}, From: "GLASS", To: "AIR", Reason: "BREAK_PROGRESS"},
		{Tick: 42, Actor: "RAID", Action: "SET_BLOCK", Pos: [3]int{30, 64, 0}, From: "STONE", To: "AIR", Reason: "BREAK_PROGRESS"},
	}
	for _, e := range entries {
		if err := al.WriteAudit(e); err != nil {
			t.Fatalf("write audit: %v", err)
		}
	}
	if err := al.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	min, max, err := parseAABB("5,70,5:0,60,-5")
	if err != nil {
		t.Fatalf("aabb: %v", err)
	}
	recs, err := readAudit(worldDir, auditFilter{To: 100, Min: min, Max: max, Reason: "BREAK_PROGRESS"})
	if err != nil {
		t.Fatalf("read audit: %v", err)
	}
	if len(recs) != 2 || recs[0].Entry.Tick != 41 || recs[1].Entry.Tick != 40 {
		t.Fatalf("records: %+v", recs)
	}

	snap := snapshot.SnapshotV1{
		Palette: []string{"AIR", "PLANK"},
		Blocks:  []snapshot.BlockV1{{Pos: [3]int{2, 64, 0}, Block: 0}},
	}
	if n := applyRollback(&snap, recs); n != 2 {
		t.Fatalf("applied=%d want 2", n)
	}
	got := map[[3]int]string{}
	for _, b := range snap.Blocks {
		got[b.Pos] = snap.Palette[b.Block]
	}
	if got[[3]int{2, 64, 0}] != "PLANK" || got[[3]int{2, 65, 0}] != "GLASS" || len(got) != 2 {
		t.Fatalf("blocks after rollback: %v", got)
	}
}

func TestSummarize_DecodesRaidBlob(t *testing.T) {
	blob, err := statecodec.Encode(statecodec.State{RaidLevel: 5, LastWonRaidLevel: 4, IsRaidActive: true, NextRaidTime: 1500, ActiveRaidTicks: 30})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	snap := snapshot.SnapshotV1{
		Header:   snapshot.Header{Version: snapshot.Version, WorldID: "w", Tick: 99},
		GameTime: 1000,
		Anchor:   &snapshot.AnchorV1{Pos: [3]int{0, 64, 0}},
		Agents:   []snapshot.AgentV1{{Kind: "zombie"}, {Kind: "zombie"}, {Kind: "phantom"}},
		Players:  []snapshot.PlayerV1{{Name: "p", Effects: []snapshot.ActiveEffectV1{{Name: "regeneration", Amplifier: 1}}}},
		Raid:     blob,
	}
	s := summarize("x.snap.zst", snap)
	if s.Raid.Level != 5 || !s.Raid.Active || s.Raid.TimeUntilRaid != 500 || s.Raid.LastWonRaidLevel != 4 {
		t.Fatalf("raid summary: %+v", s.Raid)
	}
	if s.Agents["zombie"] != 2 || s.Agents["phantom"] != 1 || s.Anchor == nil {
		t.Fatalf("summary: %+v", s)
	}
	if got := s.Effects["p"]; len(got) != 1 || got[0] != "regeneration:1" {
		t.Fatalf("effects: %v", got)
	}

	broken := summarize("x", snapshot.SnapshotV1{Raid: []byte("junk")})
	if len(broken.Fallbacks) == 0 || broken.Raid.Level != 1 {
		t.Fatalf("corrupt blob summary: %+v", broken)
	}
}

func TestRaidRequest_BuildsAdminCalls(t *testing.T) {
	method, path, q, err := raidRequest([]string{"time", "add", "30", "sec"})
	if err != nil || method != http.MethodPost || path != "/admin/v1/raid/time" {
		t.Fatalf("time: %s %s %v", method, path, err)
	}
	if q.Get("op") != "add" || q.Get("value") != "30" || q.Get("unit") != "sec" {
		t.Fatalf("time query: %v", q)
	}
	if method, _, _, _ := raidRequest([]string{"status"}); method != http.MethodGet {
		t.Fatalf("status method=%s", method)
	}
	if _, _, q, err := raidRequest([]string{"anchor", "1", "64", "-2"}); err != nil || q.Get("z") != "-2" {
		t.Fatalf("anchor: %v %v", q, err)
	}
	if _, _, _, err := raidRequest([]string{"level"}); err == nil {
		t.Fatalf("expected usage error for level without value")
	}
	if _, _, _, err := raidRequest([]string{"explode"}); err == nil {
		t.Fatalf("expected error for unknown command")
	}
}
