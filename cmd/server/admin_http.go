package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"raidcraft.ai/internal/persistence/indexdb"
	"raidcraft.ai/internal/sim/raid"
	"raidcraft.ai/internal/sim/raid/duration"
	"raidcraft.ai/internal/sim/raid/threshold"
	"raidcraft.ai/internal/sim/world"
)

// adminAPI exposes operator raid commands. Every route is loopback-only.
type adminAPI struct {
	worldID string
	w       *world.World
	idx     indexdb.Index
}

func (a *adminAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/v1/state", a.get(a.state))
	mux.HandleFunc("/admin/v1/snapshot", a.post(a.snapshot))
	mux.HandleFunc("/admin/v1/raid/status", a.get(a.status))
	mux.HandleFunc("/admin/v1/raid/history", a.get(a.history))
	mux.HandleFunc("/admin/v1/raid/start", a.post(func(ctx context.Context, _ *http.Request) (any, error) {
		return nil, a.w.ForceStartRaid(ctx)
	}))
	mux.HandleFunc("/admin/v1/raid/win", a.post(func(ctx context.Context, _ *http.Request) (any, error) {
		return nil, a.w.ForceWinRaid(ctx)
	}))
	mux.HandleFunc("/admin/v1/raid/lose", a.post(func(ctx context.Context, _ *http.Request) (any, error) {
		return nil, a.w.ForceLoseRaid(ctx)
	}))
	mux.HandleFunc("/admin/v1/raid/time", a.post(a.setTime))
	mux.HandleFunc("/admin/v1/raid/level", a.post(a.setLevel))
	mux.HandleFunc("/admin/v1/raid/restore", a.post(func(ctx context.Context, _ *http.Request) (any, error) {
		n, err := a.w.RestoreDestroyed(ctx)
		return map[string]int{"restored": n}, err
	}))
	mux.HandleFunc("/admin/v1/raid/difficulty", a.post(a.setDifficulty))
	mux.HandleFunc("/admin/v1/raid/anchor", a.post(a.placeAnchor))
}

type handlerFn func(ctx context.Context, r *http.Request) (any, error)

var errBadParam = errors.New("bad parameter")

func (a *adminAPI) get(fn handlerFn) http.HandlerFunc  { return a.wrap(http.MethodGet, fn) }
func (a *adminAPI) post(fn handlerFn) http.HandlerFunc { return a.wrap(http.MethodPost, fn) }

func (a *adminAPI) wrap(method string, fn handlerFn) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		v, err := fn(ctx, r)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(adminStatusCode(err))
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		if v == nil {
			v = map[string]any{"ok": true}
		}
		_ = json.NewEncoder(rw).Encode(v)
	}
}

func adminStatusCode(err error) int {
	switch {
	case errors.Is(err, errBadParam):
		return http.StatusBadRequest
	case errors.Is(err, world.ErrRejected), errors.Is(err, raid.ErrNoAnchor), errors.Is(err, raid.ErrRaidActive):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *adminAPI) state(_ context.Context, _ *http.Request) (any, error) {
	return struct {
		WorldID string             `json:"world_id"`
		Tick    uint64             `json:"tick"`
		Metrics world.WorldMetrics `json:"metrics"`
	}{
		WorldID: a.worldID,
		Tick:    a.w.CurrentTick(),
		Metrics: a.w.Metrics(),
	}, nil
}

func (a *adminAPI) snapshot(ctx context.Context, _ *http.Request) (any, error) {
	tick, err := a.w.RequestSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"ok": true, "tick": tick}, nil
}

func (a *adminAPI) status(ctx context.Context, _ *http.Request) (any, error) {
	s, err := a.w.RaidStatus(ctx)
	if err != nil {
		return nil, err
	}
	return struct {
		raid.Status
		TimeUntilRaidDisplay string `json:"time_until_raid"`
	}{s, duration.Ticks(s.TimeUntilRaid).Display()}, nil
}

func (a *adminAPI) history(ctx context.Context, r *http.Request) (any, error) {
	if a.idx == nil {
		return nil, errors.New("history index disabled")
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	raids, err := a.idx.ListRaids(ctx, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"raids": raids, "stats": a.idx.Stats()}, nil
}

// setTime handles op=set|add with value and unit (ticks, sec, min).
func (a *adminAPI) setTime(ctx context.Context, r *http.Request) (any, error) {
	q := r.URL.Query()
	v, err := strconv.ParseInt(q.Get("value"), 10, 64)
	if err != nil {
		return nil, errBadParam
	}
	unit := duration.Unit(q.Get("unit"))
	if unit == "" {
		unit = duration.UnitTicks
	}
	d, ok := unit.Of(v)
	if !ok {
		return nil, errBadParam
	}
	switch q.Get("op") {
	case "", "set":
		err = a.w.SetTimeUntilRaid(ctx, d)
	case "add":
		err = a.w.AddTimeUntilRaid(ctx, d)
	default:
		return nil, errBadParam
	}
	if err != nil {
		return nil, err
	}
	return a.status(ctx, r)
}

func (a *adminAPI) setLevel(ctx context.Context, r *http.Request) (any, error) {
	level, err := strconv.Atoi(r.URL.Query().Get("value"))
	if err != nil {
		return nil, errBadParam
	}
	if err := a.w.SetRaidLevel(ctx, level); err != nil {
		return nil, err
	}
	return a.status(ctx, r)
}

func (a *adminAPI) setDifficulty(ctx context.Context, r *http.Request) (any, error) {
	d := threshold.Difficulty(strings.ToLower(r.URL.Query().Get("value")))
	return nil, a.w.SetDifficulty(ctx, d)
}

func (a *adminAPI) placeAnchor(ctx context.Context, r *http.Request) (any, error) {
	var pos [3]int
	for i, k := range []string{"x", "y", "z"} {
		n, err := strconv.Atoi(r.URL.Query().Get(k))
		if err != nil {
			return nil, errBadParam
		}
		pos[i] = n
	}
	return nil, a.w.PlaceAnchor(ctx, world.Vec3i{X: pos[0], Y: pos[1], Z: pos[2]})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
