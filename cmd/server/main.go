package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	persistlog "raidcraft.ai/internal/persistence/log"
	"raidcraft.ai/internal/persistence/snapshot"
	"raidcraft.ai/internal/sim/catalogs"
	"raidcraft.ai/internal/sim/raid"
	"raidcraft.ai/internal/sim/tuning"
	"raidcraft.ai/internal/sim/world"
	"raidcraft.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		seed       = flag.Int64("seed", 1337, "raid seed (used only when starting a fresh world)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the raid history index")
		tickLogs   = flag.Bool("tick_logs", false, "write per-tick JSONL logs (verbose)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
		tune.Normalize()
	}
	raidCfg, err := tune.RaidConfig()
	if err != nil {
		logger.Fatalf("raid config: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	// Optional read-model index (does not affect sim determinism).
	idx, err := openRuntimeIndex(worldDir, *worldID, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
	}

	historyLog := persistlog.NewHistoryLogger(worldDir, func(err error) {
		logger.Printf("raid history log: %v", err)
	})
	defer historyLog.Close()
	history := historyFanout{historyLog}
	if idx != nil {
		history = append(history, idx)
	}

	auditLog := persistlog.NewAuditLogger(worldDir)
	defer auditLog.Close()

	var tickLogger world.TickLogger
	if *tickLogs {
		tl := persistlog.NewTickLogger(worldDir)
		defer tl.Close()
		tickLogger = tl
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}

	cfg := world.WorldConfig{
		ID:                 *worldID,
		TickRateHz:         tune.TickRateHz,
		DayTicks:           tune.DayTicks,
		Seed:               *seed,
		Difficulty:         tune.DifficultyLevel(),
		AgentWorkers:       tune.AgentWorkers,
		SnapshotEveryTicks: tune.SnapshotEveryTicks,
	}
	var snap *snapshot.SnapshotV1
	if snapshotToLoad != "" {
		s, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if s.Header.WorldID != "" && s.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, s.Header.WorldID)
		}
		cfg.Seed = s.Seed
		cfg.TickRateHz = s.TickRate
		cfg.DayTicks = s.DayTicks
		cfg.GroundY = s.GroundY
		snap = &s
	}

	snapCh := make(chan snapshot.SnapshotV1, 2)
	w, err := world.New(cfg, cats, raidCfg, world.Options{
		Logger:       log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds),
		TickLogger:   tickLogger,
		AuditLogger:  multiAuditLogger{a: auditLog, b: idx},
		History:      history,
		SnapshotSink: snapCh,
	})
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	if snap != nil {
		warnings, err := w.ImportSnapshot(*snap)
		if err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		for _, msg := range warnings {
			logger.Printf("import snapshot: %s", msg)
		}
		logger.Printf("resumed from snapshot=%s tick=%d phase=%s", filepath.Base(snapshotToLoad), w.CurrentTick(), w.Raid().Phase())
	}

	ctx, cancel := signalContext()
	defer cancel()

	// Snapshot writer.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := snapshot.Path(filepath.Join(worldDir, "snapshots"), snap.Header.Tick)
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, snap)
				}
			}
		}
	}()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, *worldID, w)
	})

	enableAdminHTTP := envBool("VC_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("VC_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		api := &adminAPI{worldID: *worldID, w: w, idx: idx}
		api.register(mux)
	} else {
		logger.Printf("admin endpoints disabled (VC_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(w, log.New(os.Stdout, "[ws] ", log.LstdFlags)).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (world=%s phase=%s)", *addr, *worldID, w.Raid().Phase())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// writeMetrics renders the Prometheus text format.
func writeMetrics(rw io.Writer, worldID string, w *world.World) {
	m := w.Metrics()
	tick := w.CurrentTick()
	if m.Tick != 0 {
		tick = m.Tick
	}

	fmt.Fprintf(rw, "# HELP raidcraft_world_tick Current world tick.\n")
	fmt.Fprintf(rw, "# TYPE raidcraft_world_tick gauge\n")
	fmt.Fprintf(rw, "raidcraft_world_tick{world=%q} %d\n", worldID, tick)

	fmt.Fprintf(rw, "# HELP raidcraft_world_players Connected players.\n")
	fmt.Fprintf(rw, "# TYPE raidcraft_world_players gauge\n")
	fmt.Fprintf(rw, "raidcraft_world_players{world=%q} %d\n", worldID, m.Players)

	fmt.Fprintf(rw, "# HELP raidcraft_world_observers Connected observers.\n")
	fmt.Fprintf(rw, "# TYPE raidcraft_world_observers gauge\n")
	fmt.Fprintf(rw, "raidcraft_world_observers{world=%q} %d\n", worldID, m.Observers)

	fmt.Fprintf(rw, "# HELP raidcraft_raid_agents Raid agents alive.\n")
	fmt.Fprintf(rw, "# TYPE raidcraft_raid_agents gauge\n")
	fmt.Fprintf(rw, "raidcraft_raid_agents{world=%q} %d\n", worldID, m.Agents)

	fmt.Fprintf(rw, "# HELP raidcraft_raid_active 1 while a raid is running.\n")
	fmt.Fprintf(rw, "# TYPE raidcraft_raid_active gauge\n")
	active := 0
	if m.Phase == string(raid.PhaseActive) {
		active = 1
	}
	fmt.Fprintf(rw, "raidcraft_raid_active{world=%q} %d\n", worldID, active)

	fmt.Fprintf(rw, "# HELP raidcraft_raid_level Current raid level.\n")
	fmt.Fprintf(rw, "# TYPE raidcraft_raid_level gauge\n")
	fmt.Fprintf(rw, "raidcraft_raid_level{world=%q} %d\n", worldID, m.RaidLevel)

	fmt.Fprintf(rw, "# HELP raidcraft_raid_time_until_ticks Ticks until the next raid.\n")
	fmt.Fprintf(rw, "# TYPE raidcraft_raid_time_until_ticks gauge\n")
	fmt.Fprintf(rw, "raidcraft_raid_time_until_ticks{world=%q} %d\n", worldID, m.TimeUntilRaid)

	fmt.Fprintf(rw, "# HELP raidcraft_raid_tracked_blocks Blocks with accumulated break progress.\n")
	fmt.Fprintf(rw, "# TYPE raidcraft_raid_tracked_blocks gauge\n")
	fmt.Fprintf(rw, "raidcraft_raid_tracked_blocks{world=%q} %d\n", worldID, m.TrackedBlocks)

	fmt.Fprintf(rw, "# HELP raidcraft_raid_ledger_records Destroyed blocks awaiting restore.\n")
	fmt.Fprintf(rw, "# TYPE raidcraft_raid_ledger_records gauge\n")
	fmt.Fprintf(rw, "raidcraft_raid_ledger_records{world=%q} %d\n", worldID, m.LedgerRecords)

	fmt.Fprintf(rw, "# HELP raidcraft_world_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE raidcraft_world_queue_depth gauge\n")
	fmt.Fprintf(rw, "raidcraft_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "join", m.QueueDepths.Join)
	fmt.Fprintf(rw, "raidcraft_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "leave", m.QueueDepths.Leave)
	fmt.Fprintf(rw, "raidcraft_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "edits", m.QueueDepths.Edits)
	fmt.Fprintf(rw, "raidcraft_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "admin", m.QueueDepths.Admin)

	fmt.Fprintf(rw, "# HELP raidcraft_world_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE raidcraft_world_step_ms gauge\n")
	fmt.Fprintf(rw, "raidcraft_world_step_ms{world=%q} %.3f\n", worldID, m.StepMS)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
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

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
