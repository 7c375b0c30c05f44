package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	persistlog "raidcraft.ai/internal/persistence/log"
	"raidcraft.ai/internal/persistence/snapshot"
	"raidcraft.ai/internal/sim/catalogs"
	"raidcraft.ai/internal/sim/raid/threshold"
	"raidcraft.ai/internal/sim/tuning"
	"raidcraft.ai/internal/sim/world"
	"raidcraft.ai/internal/sim/world/kernel/model"
)

func main() {
	var (
		snapPath   = flag.String("snapshot", "", "path to .snap.zst")
		eventsDir  = flag.String("events", "", "events dir containing events-*.jsonl.zst (optional)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		fromTick   = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	fmt.Printf("snapshot v%d world=%s tick=%d seed=%d blocks=%d players=%d agents=%d containers=%d raid_blob=%dB\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.Seed,
		len(snap.Blocks), len(snap.Players), len(snap.Agents), len(snap.Containers), len(snap.Raid))

	if *eventsDir == "" {
		return
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}
	raidCfg, err := tune.RaidConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "raid config:", err)
		os.Exit(1)
	}

	w, err := world.New(world.WorldConfig{
		ID:           snap.Header.WorldID,
		TickRateHz:   snap.TickRate,
		DayTicks:     snap.DayTicks,
		Seed:         snap.Seed,
		Difficulty:   threshold.Difficulty(snap.Difficulty),
		GroundY:      snap.GroundY,
		AgentWorkers: tune.AgentWorkers,
	}, cats, raidCfg, world.Options{})
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}
	warnings, err := w.ImportSnapshot(snap)
	if err != nil {
		fmt.Fprintln(os.Stderr, "import snapshot:", err)
		os.Exit(1)
	}
	for _, msg := range warnings {
		fmt.Fprintln(os.Stderr, "import snapshot:", msg)
	}

	startTick := w.CurrentTick()
	verifyFrom := *fromTick
	if verifyFrom == 0 {
		verifyFrom = startTick
	}

	files, err := persistlog.Events.Files(*eventsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no events files found in", *eventsDir)
		os.Exit(1)
	}

	r := &replayer{w: w, startTick: startTick, verifyFrom: verifyFrom, toTick: *toTick}
	for _, path := range files {
		if err := r.file(path); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		if r.done {
			break
		}
	}
	fmt.Printf("replay ok: checked=%d ticks (from snapshot tick=%d) phase=%s\n", r.checked, snap.Header.Tick, w.Raid().Phase())
}

type replayer struct {
	w          *world.World
	startTick  uint64
	verifyFrom uint64
	toTick     uint64

	checked uint64
	done    bool
}

var errStop = errors.New("stop")

func (r *replayer) file(path string) error {
	err := persistlog.ReadFile(path, func(line json.RawMessage) error {
		var entry world.TickLogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if entry.Tick < r.startTick {
			return nil
		}
		if r.toTick != 0 && entry.Tick > r.toTick {
			r.done = true
			return errStop
		}
		if entry.Tick != r.w.CurrentTick() {
			return fmt.Errorf("tick mismatch: want=%d got=%d (file=%s)", r.w.CurrentTick(), entry.Tick, filepath.Base(path))
		}
		tick, digest := r.step(entry)
		if tick != entry.Tick {
			return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d (file=%s)", tick, entry.Tick, filepath.Base(path))
		}
		if tick >= r.verifyFrom {
			r.checked++
			if digest != entry.Digest {
				return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, digest, entry.Digest)
			}
		}
		return nil
	})
	if errors.Is(err, errStop) {
		return nil
	}
	return err
}

// step re-applies one logged tick. Defense kills are re-simulated, not replayed.
func (r *replayer) step(entry world.TickLogEntry) (uint64, string) {
	joins := make([]world.JoinRequest, 0, len(entry.Joins))
	for _, j := range entry.Joins {
		pos := model.FromArray(j.Pos)
		joins = append(joins, world.JoinRequest{Name: j.Name, PlayerID: j.PlayerID, Spawn: &pos})
	}
	edits := make([]world.BlockEdit, 0, len(entry.Edits))
	for _, e := range entry.Edits {
		if e.Kind == "KILL" {
			continue
		}
		edits = append(edits, world.BlockEdit{
			PlayerID: e.PlayerID,
			Kind:     e.Kind,
			Pos:      model.FromArray(e.Pos),
			Block:    e.Block,
		})
	}
	return r.w.StepOnce(joins, entry.Leaves, edits)
}
