package world

import (
	"context"
	"errors"

	"raidcraft.ai/internal/sim/raid"
	"raidcraft.ai/internal/sim/raid/duration"
	"raidcraft.ai/internal/sim/raid/threshold"
)

var ErrRejected = errors.New("request rejected")

type adminReq struct {
	fn   func() (any, error)
	resp chan adminResp
}

type adminResp struct {
	v   any
	err error
}

// Join queues a session. Player sessions join at the next tick boundary.
func (w *World) Join(ctx context.Context, req JoinRequest) (JoinResponse, error) {
	resp := make(chan JoinResponse, 1)
	req.Resp = resp
	select {
	case w.join <- req:
	case <-ctx.Done():
		return JoinResponse{}, ctx.Err()
	}
	select {
	case r := <-resp:
		return r, nil
	case <-ctx.Done():
		return JoinResponse{}, ctx.Err()
	}
}

// Leave drops a session. It never blocks the caller for long.
func (w *World) Leave(sessionID string) {
	select {
	case w.leave <- sessionID:
	case <-w.stop:
	}
}

// Submit queues a player edit; it fails fast when the queue is full.
func (w *World) Submit(e BlockEdit) bool {
	select {
	case w.edits <- e:
		return true
	default:
		return false
	}
}

// do runs fn on the world loop after the next tick.
func (w *World) do(ctx context.Context, fn func() (any, error)) (any, error) {
	resp := make(chan adminResp, 1)
	select {
	case w.admin <- adminReq{fn: fn, resp: resp}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.v, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (w *World) handleAdminRequests(reqs []adminReq) {
	for _, r := range reqs {
		v, err := r.fn()
		select {
		case r.resp <- adminResp{v: v, err: err}:
		default:
			// Client timed out; don't block the sim loop.
		}
	}
}

// RequestSnapshot asks the world loop goroutine to enqueue a snapshot.
// It is safe to call from other goroutines (e.g. HTTP handlers).
func (w *World) RequestSnapshot(ctx context.Context) (uint64, error) {
	v, err := w.do(ctx, func() (any, error) {
		cur := w.tick.Load()
		snapTick := uint64(0)
		if cur > 0 {
			snapTick = cur - 1
		}
		if w.snapshotSink == nil {
			return snapTick, errors.New("snapshot sink not configured")
		}
		select {
		case w.snapshotSink <- w.ExportSnapshot(snapTick):
			return snapTick, nil
		default:
			return snapTick, errors.New("snapshot sink backpressure")
		}
	})
	tick, _ := v.(uint64)
	return tick, err
}

func (w *World) RaidStatus(ctx context.Context) (raid.Status, error) {
	v, err := w.do(ctx, func() (any, error) { return w.raid.Status(), nil })
	s, _ := v.(raid.Status)
	return s, err
}

func (w *World) ForceStartRaid(ctx context.Context) error {
	_, err := w.do(ctx, func() (any, error) { return nil, w.raid.ForceStart() })
	return err
}

func (w *World) ForceWinRaid(ctx context.Context) error {
	return w.doBool(ctx, w.raid.ForceWin)
}

func (w *World) ForceLoseRaid(ctx context.Context) error {
	return w.doBool(ctx, w.raid.ForceLose)
}

func (w *World) SetTimeUntilRaid(ctx context.Context, d duration.Duration) error {
	return w.doBool(ctx, func() bool { return w.raid.SetTimeUntilRaid(d) })
}

func (w *World) AddTimeUntilRaid(ctx context.Context, d duration.Duration) error {
	return w.doBool(ctx, func() bool { return w.raid.AddTimeUntilRaid(d) })
}

func (w *World) SetRaidLevel(ctx context.Context, level int) error {
	return w.doBool(ctx, func() bool { return w.raid.SetRaidLevel(level) })
}

func (w *World) RestoreDestroyed(ctx context.Context) (int, error) {
	v, err := w.do(ctx, func() (any, error) { return w.raid.RestoreDestroyed() })
	n, _ := v.(int)
	return n, err
}

func (w *World) SetDifficulty(ctx context.Context, d threshold.Difficulty) error {
	switch d {
	case threshold.Peaceful, threshold.Easy, threshold.Normal, threshold.Hard:
	default:
		return ErrRejected
	}
	_, err := w.do(ctx, func() (any, error) {
		w.difficulty = d
		return nil, nil
	})
	return err
}

func (w *World) PlaceAnchor(ctx context.Context, pos Vec3i) error {
	_, err := w.do(ctx, func() (any, error) {
		if !w.inBounds(pos) {
			return nil, ErrRejected
		}
		return nil, w.placeAnchor("ADMIN", pos)
	})
	return err
}

func (w *World) doBool(ctx context.Context, fn func() bool) error {
	_, err := w.do(ctx, func() (any, error) {
		if !fn() {
			return nil, ErrRejected
		}
		return nil, nil
	})
	return err
}
