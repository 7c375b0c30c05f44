package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	persistlog "raidcraft.ai/internal/persistence/log"
	"raidcraft.ai/internal/persistence/snapshot"
	"raidcraft.ai/internal/sim/raid"
	"raidcraft.ai/internal/sim/raid/io/statecodec"
	"raidcraft.ai/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "rollback":
			rollbackCmd(os.Args[2:])
			return
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "history":
			historyCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "raid":
			raidCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID, "snapshots")
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// inspectCmd prints a snapshot header and the decoded raid session.
func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (used when -snapshot is empty)")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -snapshot")
			os.Exit(2)
		}
		path = latestSnapshot(filepath.Join(*dataDir, "worlds", *worldID))
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	printJSON(summarize(path, snap))
}

type snapshotSummary struct {
	Path       string              `json:"path"`
	Header     snapshot.Header     `json:"header"`
	Seed       int64               `json:"seed"`
	Difficulty string              `json:"difficulty"`
	DayTime    int64               `json:"day_time"`
	Blocks     int                 `json:"blocks"`
	Anchor     *[3]int             `json:"anchor,omitempty"`
	Players    int                 `json:"players"`
	Agents     map[string]int      `json:"agents"`
	Containers int                 `json:"containers"`
	Raid       raidSummary         `json:"raid"`
	Fallbacks  []string            `json:"raid_fallbacks,omitempty"`
	Effects    map[string][]string `json:"effects,omitempty"`
}

type raidSummary struct {
	Level            int   `json:"raid_level"`
	LastWonRaidLevel int   `json:"last_won_raid_level"`
	Active           bool  `json:"is_raid_active"`
	NextRaidTime     int64 `json:"next_raid_time"`
	TimeUntilRaid    int64 `json:"time_until_raid_ticks"`
	ActiveRaidTicks  int64 `json:"active_raid_ticks"`
	Progress         int   `json:"progress_entries"`
	Ledger           int   `json:"ledger_records"`
	PendingWaves     int   `json:"pending_waves"`
	SpawnedAgents    int   `json:"spawned_agents"`
}

func summarize(path string, snap snapshot.SnapshotV1) snapshotSummary {
	def := statecodec.State{RaidLevel: raid.MinLevel}
	st, fallbacks := statecodec.Decode(snap.Raid, def)

	out := snapshotSummary{
		Path:       path,
		Header:     snap.Header,
		Seed:       snap.Seed,
		Difficulty: snap.Difficulty,
		DayTime:    snap.DayTime,
		Blocks:     len(snap.Blocks),
		Players:    len(snap.Players),
		Agents:     map[string]int{},
		Containers: len(snap.Containers),
		Fallbacks:  fallbacks,
		Raid: raidSummary{
			Level:            st.RaidLevel,
			LastWonRaidLevel: st.LastWonRaidLevel,
			Active:           st.IsRaidActive,
			NextRaidTime:     st.NextRaidTime,
			TimeUntilRaid:    st.NextRaidTime - snap.GameTime,
			ActiveRaidTicks:  st.ActiveRaidTicks,
			Progress:         len(st.Progress),
			Ledger:           len(st.Ledger),
			PendingWaves:     max(0, st.Waves.Allocation.NumWaves()-st.Waves.NextWave),
			SpawnedAgents:    len(st.Waves.Spawned),
		},
	}
	if snap.Anchor != nil {
		p := snap.Anchor.Pos
		out.Anchor = &p
	}
	for _, a := range snap.Agents {
		out.Agents[a.Kind]++
	}
	for _, p := range snap.Players {
		for _, e := range p.Effects {
			if out.Effects == nil {
				out.Effects = map[string][]string{}
			}
			out.Effects[p.Name] = append(out.Effects[p.Name], fmt.Sprintf("%s:%d", e.Name, e.Amplifier))
		}
	}
	return out
}

// historyCmd prints raid history from the JSONL logs.
func historyCmd(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	breaks := fs.Bool("breaks", false, "include block breaks")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	dir := persistlog.Raids.Dir(filepath.Join(*dataDir, "worlds", *worldID))
	err := persistlog.Raids.Scan(dir, func(file string, line json.RawMessage) error {
		var e persistlog.HistoryEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(file), err)
		}
		if e.Kind == persistlog.HistoryBreak && !*breaks {
			return nil
		}
		fmt.Println(string(line))
		return nil
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "history:", err)
		os.Exit(1)
	}
}

// rollbackCmd writes a copy of a snapshot with audited block changes in an
// AABB reverted. By default only raid damage (BREAK_PROGRESS) is reverted.
func rollbackCmd(args []string) {
	fs := flag.NewFlagSet("rollback", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	snapPath := fs.String("snapshot", "", "snapshot path to rollback from (optional; defaults to latest)")
	aabb := fs.String("aabb", "", "AABB filter: x1,y1,z1:x2,y2,z2 (required)")
	sinceTick := fs.Uint64("since_tick", 0, "rollback changes since tick (inclusive)")
	toTick := fs.Uint64("to_tick", 0, "rollback changes up to tick (inclusive, optional; defaults to snapshot tick)")
	reason := fs.String("reason", "BREAK_PROGRESS", "only revert entries with this reason (empty for all)")
	outPath := fs.String("out", "", "output snapshot path (optional)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	if strings.TrimSpace(*aabb) == "" {
		fmt.Fprintln(os.Stderr, "missing -aabb")
		os.Exit(2)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" {
		snapshotToLoad = latestSnapshot(worldDir)
	}
	if snapshotToLoad == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run server until it writes one")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(snapshotToLoad)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	min, max, err := parseAABB(*aabb)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -aabb:", err)
		os.Exit(2)
	}

	endTick := *toTick
	if endTick == 0 || endTick > snap.Header.Tick {
		endTick = snap.Header.Tick
	}

	recs, err := readAudit(worldDir, auditFilter{Since: *sinceTick, To: endTick, Min: min, Max: max, Reason: *reason})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	if len(recs) == 0 {
		fmt.Println("no matching audit entries; nothing to rollback")
		return
	}

	applied := applyRollback(&snap, recs)

	if strings.TrimSpace(*outPath) == "" {
		*outPath = filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.rollback.snap.zst", snap.Header.Tick))
	}
	if err := snapshot.WriteSnapshot(*outPath, snap); err != nil {
		fmt.Fprintln(os.Stderr, "write snapshot:", err)
		os.Exit(1)
	}

	fmt.Printf("rollback ok: snapshot=%s tick=%d aabb=%s since=%d to=%d entries=%d applied=%d out=%s\n",
		filepath.Base(snapshotToLoad), snap.Header.Tick, *aabb, *sinceTick, endTick, len(recs), applied, *outPath)
}

type auditFilter struct {
	Since, To uint64
	Min, Max  [3]int
	Reason    string
}

type auditRec struct {
	Seq   uint64
	Entry world.AuditEntry
}

func readAudit(worldDir string, f auditFilter) ([]auditRec, error) {
	out := make([]auditRec, 0, 1024)
	var seq uint64
	err := persistlog.Audit.Scan(persistlog.Audit.Dir(worldDir), func(file string, line json.RawMessage) error {
		var e world.AuditEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(file), err)
		}
		seq++
		if e.Action != "SET_BLOCK" {
			return nil
		}
		if e.Tick < f.Since || e.Tick > f.To {
			return nil
		}
		if f.Reason != "" && e.Reason != f.Reason {
			return nil
		}
		if !withinAABB(e.Pos, f.Min, f.Max) {
			return nil
		}
		out = append(out, auditRec{Seq: seq, Entry: e})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Reverse chronological apply: highest tick first; for same tick use reverse read order.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Entry.Tick != out[j].Entry.Tick {
			return out[i].Entry.Tick > out[j].Entry.Tick
		}
		return out[i].Seq > out[j].Seq
	})
	return out, nil
}

// applyRollback writes each entry's From block into the snapshot overrides.
func applyRollback(snap *snapshot.SnapshotV1, recs []auditRec) int {
	if snap == nil || len(recs) == 0 {
		return 0
	}
	palette := map[string]uint16{}
	for i, name := range snap.Palette {
		palette[name] = uint16(i)
	}
	byPos := map[[3]int]int{}
	for i, b := range snap.Blocks {
		byPos[b.Pos] = i
	}

	applied := 0
	for _, r := range recs {
		name := r.Entry.From
		if name == "" {
			continue
		}
		id, ok := palette[name]
		if !ok {
			id = uint16(len(snap.Palette))
			snap.Palette = append(snap.Palette, name)
			palette[name] = id
		}
		if i, ok := byPos[r.Entry.Pos]; ok {
			snap.Blocks[i].Block = id
		} else {
			byPos[r.Entry.Pos] = len(snap.Blocks)
			snap.Blocks = append(snap.Blocks, snapshot.BlockV1{Pos: r.Entry.Pos, Block: id})
		}
		applied++
	}
	return applied
}

func withinAABB(pos [3]int, min, max [3]int) bool {
	return pos[0] >= min[0] && pos[0] <= max[0] &&
		pos[1] >= min[1] && pos[1] <= max[1] &&
		pos[2] >= min[2] && pos[2] <= max[2]
}

func parseAABB(s string) (min, max [3]int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return min, max, fmt.Errorf("expected x1,y1,z1:x2,y2,z2")
	}
	a, err := parseVec3(parts[0])
	if err != nil {
		return min, max, err
	}
	b, err := parseVec3(parts[1])
	if err != nil {
		return min, max, err
	}
	for i := 0; i < 3; i++ {
		if a[i] <= b[i] {
			min[i], max[i] = a[i], b[i]
		} else {
			min[i], max[i] = b[i], a[i]
		}
	}
	return min, max, nil
}

func parseVec3(s string) ([3]int, error) {
	var v [3]int
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("expected x,y,z")
	}
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return v, err
		}
		v[i] = n
	}
	return v, nil
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}
