package world

import (
	"encoding/json"
	"strings"
	"testing"

	"raidcraft.ai/internal/protocol"
	"raidcraft.ai/internal/sim/raid"
)

var anchorPos = Vec3i{X: 0, Y: 64, Z: 0}

func TestWorld_FlatTerrain(t *testing.T) {
	tw := newTestWorld(t, oneZombieConfig())
	if got := tw.SurfaceY(10, -4); got != 64 {
		t.Fatalf("surface: got %d", got)
	}
	if got := tw.Block(Vec3i{Y: 63}); got != "GRASS" {
		t.Fatalf("top soil: got %s", got)
	}
	if got := tw.Block(Vec3i{Y: 0}); got != "BEDROCK" {
		t.Fatalf("floor: got %s", got)
	}
	if err := tw.SetBlock(Vec3i{X: 10, Y: 70, Z: -4}, "PLANK"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := tw.SurfaceY(10, -4); got != 71 {
		t.Fatalf("surface after pillar: got %d", got)
	}
	if err := tw.SetBlock(Vec3i{}, "UNOBTAINIUM"); err == nil {
		t.Fatalf("expected unknown material error")
	}
}

func TestWorld_PlayerEditsAndAnchor(t *testing.T) {
	tw := newTestWorld(t, oneZombieConfig())
	tw.join(t, "alice", Vec3i{X: 5, Y: 64})

	tw.edit(protocol.ActPlace, anchorPos, AnchorBlock)
	if !(anchorPort{tw.World}).Placed() {
		t.Fatalf("anchor not placed")
	}
	tw.edit(protocol.ActPlace, Vec3i{X: 1, Y: 64}, AnchorBlock)
	if tw.Block(Vec3i{X: 1, Y: 64}) == AnchorBlock {
		t.Fatalf("second nexus placed")
	}

	tw.edit(protocol.ActBreak, Vec3i{Y: 0}, "")
	if tw.Block(Vec3i{Y: 0}) != "BEDROCK" {
		t.Fatalf("bedrock broken")
	}
	tw.edit(protocol.ActFluid, Vec3i{X: 2, Y: 64}, "PLANK")
	if tw.Block(Vec3i{X: 2, Y: 64}) != AirBlock {
		t.Fatalf("solid placed as fluid")
	}

	tw.edit(protocol.ActBreak, anchorPos, "")
	if (anchorPort{tw.World}).Placed() {
		t.Fatalf("anchor should be picked up while idle")
	}
}

func TestWorld_ZombieDigsThroughWallAndRaidIsWon(t *testing.T) {
	tw := newTestWorld(t, oneZombieConfig())
	tw.join(t, "alice", Vec3i{X: -20, Y: 64})
	tw.edit(protocol.ActPlace, anchorPos, AnchorBlock)
	tw.edit(protocol.ActPlace, Vec3i{X: 2, Y: 64}, "PLANK")
	tw.edit(protocol.ActPlace, Vec3i{X: 2, Y: 65}, "PLANK")

	if err := tw.Raid().ForceStart(); err != nil {
		t.Fatalf("force start: %v", err)
	}
	if tw.AgentCount() != 1 {
		t.Fatalf("agents: got %d", tw.AgentCount())
	}
	if tw.DayTime() != 14000 {
		t.Fatalf("day time: got %d", tw.DayTime())
	}

	// PLANK at normal difficulty needs 169 damage; a zombie deals 4 per hit.
	for i := 0; i < 60 && tw.Block(Vec3i{X: 2, Y: 64}) != AirBlock; i++ {
		tw.StepOnce(nil, nil, nil)
	}
	if tw.Block(Vec3i{X: 2, Y: 64}) != AirBlock {
		t.Fatalf("wall not broken")
	}
	if len(tw.history.breaks) != 1 || tw.history.breaks[0].Block != "PLANK" {
		t.Fatalf("break history: %+v", tw.history.breaks)
	}
	if tw.Raid().Status().LedgerRecords != 1 {
		t.Fatalf("ledger: %+v", tw.Raid().Status())
	}

	// Kill the raider.
	for id := range tw.agents {
		tw.Despawn(id)
	}
	tw.StepOnce(nil, nil, nil)

	if tw.Raid().Phase() != raid.PhaseIdle || tw.Raid().RaidLevel() != 2 {
		t.Fatalf("raid not won: phase=%s level=%d", tw.Raid().Phase(), tw.Raid().RaidLevel())
	}
	if tw.Block(Vec3i{X: 2, Y: 64}) != "PLANK" {
		t.Fatalf("wall not restored: %s", tw.Block(Vec3i{X: 2, Y: 64}))
	}
	c, ok := tw.Container(anchorPos.Up(1))
	if !ok || len(c.LootTables) != 1 || c.LootTables[0] != "chests/raid_level_1" {
		t.Fatalf("loot chest: %+v ok=%v", c, ok)
	}
	if len(tw.history.raids) != 1 || tw.history.raids[0].Outcome != raid.OutcomeWon {
		t.Fatalf("raid history: %+v", tw.history.raids)
	}
}

func TestWorld_AgentHitsAnchorAndRaidIsLost(t *testing.T) {
	tw := newTestWorld(t, oneZombieConfig())
	tw.join(t, "alice", Vec3i{X: -20, Y: 64})
	tw.edit(protocol.ActPlace, anchorPos, AnchorBlock)
	if err := tw.Raid().ForceStart(); err != nil {
		t.Fatalf("force start: %v", err)
	}
	// 500 anchor damage at 4 per hit, plus the walk in.
	for i := 0; i < 200 && tw.Raid().Phase() == raid.PhaseActive; i++ {
		tw.StepOnce(nil, nil, nil)
	}
	if tw.Raid().Phase() != raid.PhaseIdle {
		t.Fatalf("raid still %s", tw.Raid().Phase())
	}
	if len(tw.history.raids) != 1 || tw.history.raids[0].Outcome != raid.OutcomeLost {
		t.Fatalf("raid history: %+v", tw.history.raids)
	}
	if tw.AgentCount() != 0 {
		t.Fatalf("agents left after loss: %d", tw.AgentCount())
	}
}

func TestWorld_SecondHitAfterAnchorBreakLeavesNoProgress(t *testing.T) {
	tw := newTestWorld(t, oneZombieConfig())
	tw.cfg.AgentWorkers = 1
	tw.join(t, "alice", Vec3i{X: -20, Y: 64})
	tw.edit(protocol.ActPlace, anchorPos, AnchorBlock)
	if err := tw.Raid().ForceStart(); err != nil {
		t.Fatalf("force start: %v", err)
	}
	if _, err := tw.Spawn("zombie", Vec3i{X: -3, Y: 64}); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	// Both zombies stand next to the anchor and hit it in the same tick.
	sides := []Vec3i{{X: 1, Y: 64}, {X: -1, Y: 64}}
	i := 0
	for _, a := range tw.agents {
		a.Pos = sides[i]
		i++
	}
	tw.Raid().AddProgress(anchorPos, 496)

	tw.StepOnce(nil, nil, nil)
	if tw.Raid().Phase() != raid.PhaseIdle || tw.Raid().RaidLevel() != raid.MinLevel {
		t.Fatalf("raid not lost: phase=%s level=%d", tw.Raid().Phase(), tw.Raid().RaidLevel())
	}
	if n := tw.Raid().Tracker().Len(); n != 0 {
		e, _ := tw.Raid().Tracker().Get(anchorPos)
		t.Fatalf("tracker holds %d entries after the raid ended: %+v", n, e)
	}
	if st := tw.Raid().Status(); st.TrackedBlocks != 0 {
		t.Fatalf("status tracked=%d", st.TrackedBlocks)
	}
}

func TestWorld_PlayersDefendAnchor(t *testing.T) {
	tw := newTestWorld(t, oneZombieConfig())
	tw.join(t, "alice", Vec3i{X: 2, Y: 64})
	tw.edit(protocol.ActPlace, anchorPos, AnchorBlock)
	if err := tw.Raid().ForceStart(); err != nil {
		t.Fatalf("force start: %v", err)
	}
	for i := 0; i < 40 && tw.Raid().Phase() == raid.PhaseActive; i++ {
		tw.StepOnce(nil, nil, nil)
	}
	if tw.Raid().Phase() != raid.PhaseIdle || tw.Raid().LastWonRaidLevel() != 1 {
		t.Fatalf("defense did not win: phase=%s", tw.Raid().Phase())
	}
	if _, ok := tw.PlayerEffects(tw.player)["regeneration"]; !ok {
		t.Fatalf("win effect missing: %+v", tw.PlayerEffects(tw.player))
	}
}

func TestWorld_StreamCarriesRaidEvents(t *testing.T) {
	tw := newTestWorld(t, oneZombieConfig())
	tw.join(t, "alice", Vec3i{X: -20, Y: 64})
	tw.edit(protocol.ActPlace, anchorPos, AnchorBlock)
	if err := tw.Raid().ForceStart(); err != nil {
		t.Fatalf("force start: %v", err)
	}
	tw.steps(3)

	seen := map[string]bool{}
	for len(tw.out) > 0 {
		b := <-tw.out
		if err := protocol.ValidateEvent(b); err != nil {
			t.Fatalf("invalid event %s: %v", b, err)
		}
		var m struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		_ = json.Unmarshal(b, &m)
		seen[m.Type] = true
		if m.Type == protocol.TypeChat && strings.Contains(m.Text, "raided") {
			seen["raided"] = true
		}
	}
	if !seen["raided"] || !seen[protocol.TypeStatus] {
		t.Fatalf("missing events: %v", seen)
	}
}

func TestWorld_SleepRefusedDuringRaid(t *testing.T) {
	tw := newTestWorld(t, oneZombieConfig())
	tw.join(t, "alice", Vec3i{X: -20, Y: 64})
	tw.edit(protocol.ActPlace, anchorPos, AnchorBlock)
	if err := tw.Raid().ForceStart(); err != nil {
		t.Fatalf("force start: %v", err)
	}
	day := tw.DayTime()
	tw.edit(protocol.ActSleep, Vec3i{}, "")
	if tw.DayTime() != day+1 {
		t.Fatalf("sleep skipped time during raid: %d -> %d", day, tw.DayTime())
	}
	last := tw.ticks.entries[len(tw.ticks.entries)-1]
	if len(last.Edits) != 1 || last.Edits[0].Result == "OK" {
		t.Fatalf("sleep edit: %+v", last.Edits)
	}
}

func TestWorld_StepDigestDeterministic(t *testing.T) {
	run := func() string {
		tw := newTestWorld(t, oneZombieConfig())
		tw.join(t, "alice", Vec3i{X: -20, Y: 64})
		tw.edit(protocol.ActPlace, anchorPos, AnchorBlock)
		_ = tw.Raid().ForceStart()
		var d string
		for i := 0; i < 20; i++ {
			_, d = tw.StepOnce(nil, nil, nil)
		}
		return d
	}
	if a, b := run(), run(); a != b {
		t.Fatalf("digest differs: %s vs %s", a, b)
	}
}

func TestWorld_RejectedEditsCarryCodes(t *testing.T) {
	tw := newTestWorld(t, oneZombieConfig())
	tw.join(t, "alice", Vec3i{X: 5, Y: 64})
	tw.edit(protocol.ActPlace, anchorPos, AnchorBlock)
	for len(tw.out) > 0 {
		<-tw.out
	}

	lastEdit := func() RecordedEdit {
		t.Helper()
		e := tw.ticks.entries[len(tw.ticks.entries)-1]
		if len(e.Edits) != 1 {
			t.Fatalf("edits=%+v", e.Edits)
		}
		return e.Edits[0]
	}
	cases := []struct {
		kind  string
		pos   Vec3i
		block string
		code  string
	}{
		{protocol.ActPlace, Vec3i{X: 10000, Y: 64}, "PLANK", protocol.ErrInvalidTarget},
		{protocol.ActPlace, Vec3i{X: 2, Y: 64}, "UNOBTAINIUM", protocol.ErrBadRequest},
		{protocol.ActPlace, anchorPos, "PLANK", protocol.ErrConflict},
		{protocol.ActBreak, Vec3i{Y: 0}, "", protocol.ErrBlocked},
		{protocol.ActBreak, Vec3i{X: 2, Y: 70}, "", protocol.ErrInvalidTarget},
	}
	for _, c := range cases {
		tw.edit(c.kind, c.pos, c.block)
		if got := lastEdit(); got.Code != c.code || got.Result == "OK" {
			t.Fatalf("%s %s: recorded %+v want code %s", c.kind, c.pos, got, c.code)
		}
	}

	tw.StepOnce(nil, nil, []BlockEdit{{PlayerID: "ghost", Kind: protocol.ActPlace, Pos: Vec3i{X: 2, Y: 64}, Block: "PLANK"}})
	if got := lastEdit(); got.Code != protocol.ErrNoPermission {
		t.Fatalf("unknown player: %+v", got)
	}

	errs := 0
	for len(tw.out) > 0 {
		b := <-tw.out
		if err := protocol.ValidateEvent(b); err != nil {
			t.Fatalf("invalid event %s: %v", b, err)
		}
		var m protocol.ErrorMsg
		_ = json.Unmarshal(b, &m)
		if m.Type != protocol.TypeError {
			continue
		}
		if m.To != tw.player {
			t.Fatalf("error for %q delivered to %s", m.To, tw.player)
		}
		errs++
	}
	if errs != len(cases) {
		t.Fatalf("error events=%d want %d", errs, len(cases))
	}
}
