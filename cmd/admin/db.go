package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"raidcraft.ai/internal/persistence/indexdb"
)

// dbCmd queries the raid history index: raids, breaks or snapshots.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	pgDSN := fs.String("pg", "", "postgres dsn (optional; overrides sqlite)")
	since := fs.Int64("since_tick", 0, "breaks: first tick (inclusive)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "raids"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}

	idx, err := openIndex(*dataDir, *worldID, *dbPath, *pgDSN)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer idx.Close()

	ctx := context.Background()
	switch q {
	case "raids":
		rows, err := idx.ListRaids(ctx, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			printJSON(r)
		}
	case "breaks":
		rows, err := idx.ListBreaks(ctx, *since, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			printJSON(r)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown query %q (want raids|breaks)\n", q)
		os.Exit(2)
	}
}

func openIndex(dataDir, worldID, dbPath, pgDSN string) (indexdb.Index, error) {
	if dsn := strings.TrimSpace(pgDSN); dsn != "" {
		return indexdb.OpenPostgres(indexdb.PostgresConfig{DSN: dsn, WorldID: worldID})
	}
	path := strings.TrimSpace(dbPath)
	if path == "" {
		path = filepath.Join(dataDir, "worlds", worldID, "index", "world.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return indexdb.OpenSQLite(path, worldID)
}
