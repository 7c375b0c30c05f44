package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"raidcraft.ai/internal/persistence/indexdb"
	"raidcraft.ai/internal/sim/catalogs"
	"raidcraft.ai/internal/sim/raid"
	"raidcraft.ai/internal/sim/world"
)

func startAdmin(t *testing.T) (*httptest.Server, *world.World, *indexdb.SQLiteIndex) {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "configs"))
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	idx, err := indexdb.OpenSQLite(filepath.Join(t.TempDir(), "world.sqlite"), "admin")
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	w, err := world.New(world.WorldConfig{ID: "admin", TickRateHz: 50}, cats, raid.DefaultConfig(), world.Options{History: idx})
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()
	t.Cleanup(cancel)

	mux := http.NewServeMux()
	(&adminAPI{worldID: "admin", w: w, idx: idx}).register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, w, idx
}

func call(t *testing.T, srv *httptest.Server, method, path string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func TestAdminAPI_RaidCommands(t *testing.T) {
	srv, w, idx := startAdmin(t)

	// A raid with nobody online allocates no agents and ends at once.
	jctx, jcancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer jcancel()
	if _, err := w.Join(jctx, world.JoinRequest{Name: "defender", Out: make(chan []byte, 1024)}); err != nil {
		t.Fatalf("join: %v", err)
	}

	var st raid.Status
	if code := call(t, srv, http.MethodGet, "/admin/v1/raid/status", &st); code != http.StatusOK {
		t.Fatalf("status code=%d", code)
	}
	if st.Phase != raid.PhaseIdle || st.RaidLevel != raid.MinLevel {
		t.Fatalf("initial status: %+v", st)
	}

	if code := call(t, srv, http.MethodPost, "/admin/v1/raid/start", nil); code != http.StatusConflict {
		t.Fatalf("start without anchor code=%d want 409", code)
	}
	if code := call(t, srv, http.MethodGet, "/admin/v1/raid/start", nil); code != http.StatusMethodNotAllowed {
		t.Fatalf("GET start code=%d want 405", code)
	}
	if code := call(t, srv, http.MethodPost, "/admin/v1/raid/anchor?x=0&y=64&z=0", nil); code != http.StatusOK {
		t.Fatalf("anchor code=%d", code)
	}
	if code := call(t, srv, http.MethodPost, "/admin/v1/raid/anchor?x=0&y=oops&z=0", nil); code != http.StatusBadRequest {
		t.Fatalf("bad anchor code=%d want 400", code)
	}

	if code := call(t, srv, http.MethodPost, "/admin/v1/raid/time?op=set&value=3&unit=min", &st); code != http.StatusOK {
		t.Fatalf("time set code=%d", code)
	}
	if st.TimeUntilRaid > 3600 || st.TimeUntilRaid < 3500 {
		t.Fatalf("time until raid=%d want ~3600", st.TimeUntilRaid)
	}
	if code := call(t, srv, http.MethodPost, "/admin/v1/raid/time?value=1&unit=hours", nil); code != http.StatusBadRequest {
		t.Fatalf("bad unit code=%d want 400", code)
	}

	if code := call(t, srv, http.MethodPost, "/admin/v1/raid/level?value=4", &st); code != http.StatusOK || st.RaidLevel != 4 {
		t.Fatalf("level code=%d status=%+v", code, st)
	}
	if code := call(t, srv, http.MethodPost, "/admin/v1/raid/level?value=99", nil); code != http.StatusConflict {
		t.Fatalf("level 99 code=%d want 409", code)
	}
	if code := call(t, srv, http.MethodPost, "/admin/v1/raid/difficulty?value=hard", nil); code != http.StatusOK {
		t.Fatalf("difficulty code=%d", code)
	}
	if code := call(t, srv, http.MethodPost, "/admin/v1/raid/difficulty?value=brutal", nil); code != http.StatusConflict {
		t.Fatalf("bad difficulty code=%d want 409", code)
	}

	if code := call(t, srv, http.MethodPost, "/admin/v1/raid/start", nil); code != http.StatusOK {
		t.Fatalf("start code=%d", code)
	}
	if code := call(t, srv, http.MethodGet, "/admin/v1/raid/status", &st); code != http.StatusOK || st.Phase != raid.PhaseActive {
		t.Fatalf("after start code=%d status=%+v", code, st)
	}
	if code := call(t, srv, http.MethodPost, "/admin/v1/raid/start", nil); code != http.StatusConflict {
		t.Fatalf("second start code=%d want 409", code)
	}
	if code := call(t, srv, http.MethodPost, "/admin/v1/raid/win", nil); code != http.StatusOK {
		t.Fatalf("win code=%d", code)
	}
	if code := call(t, srv, http.MethodPost, "/admin/v1/raid/lose", nil); code != http.StatusConflict {
		t.Fatalf("lose after win code=%d want 409", code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	var hist struct {
		Raids []indexdb.RaidRow `json:"raids"`
	}
	if code := call(t, srv, http.MethodGet, "/admin/v1/raid/history", &hist); code != http.StatusOK {
		t.Fatalf("history code=%d", code)
	}
	if len(hist.Raids) != 1 || hist.Raids[0].Outcome != string(raid.OutcomeWon) || hist.Raids[0].Level != 4 {
		t.Fatalf("history: %+v", hist.Raids)
	}
}

func TestAdminAPI_RejectsRemoteCallers(t *testing.T) {
	api := &adminAPI{worldID: "x"}
	mux := http.NewServeMux()
	api.register(mux)

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/raid/status", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("code=%d want 403", rec.Code)
	}

	if !isLoopbackRemote("[::1]:8080") || !isLoopbackRemote("127.0.0.1:1") || isLoopbackRemote("example.com:80") {
		t.Fatalf("loopback detection mismatch")
	}
}
