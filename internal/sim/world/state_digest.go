package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteVec(h hashWriter, tmp *[8]byte, v Vec3i) {
	digestWriteI64(h, tmp, int64(v.X))
	digestWriteI64(h, tmp, int64(v.Y))
	digestWriteI64(h, tmp, int64(v.Z))
}

// stateDigest hashes the deterministic world state. Agent and player ids are
// random, so only their positions and kinds are included.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	s := w.raid.Status()
	digestWriteU64(h, &tmp, nowTick)
	digestWriteU64(h, &tmp, uint64(w.cfg.Seed))
	h.Write([]byte(s.Phase))
	digestWriteU64(h, &tmp, uint64(s.RaidLevel))
	digestWriteI64(h, &tmp, s.NextRaidTime)
	digestWriteI64(h, &tmp, s.ActiveRaidTicks)

	w.mu.RLock()
	defer w.mu.RUnlock()
	digestWriteI64(h, &tmp, w.dayTime)

	keys := sortedPositions(w.blocks)
	digestWriteU64(h, &tmp, uint64(len(keys)))
	for _, p := range keys {
		digestWriteVec(h, &tmp, p)
		digestWriteU64(h, &tmp, uint64(w.blocks[p]))
	}

	agents := w.sortedAgentsLocked()
	sort.SliceStable(agents, func(i, j int) bool {
		return lessVec(agents[i].Pos, agents[j].Pos) || (agents[i].Pos == agents[j].Pos && agents[i].Kind < agents[j].Kind)
	})
	digestWriteU64(h, &tmp, uint64(len(agents)))
	for _, a := range agents {
		h.Write([]byte(a.Kind))
		digestWriteVec(h, &tmp, a.Pos)
		digestWriteI64(h, &tmp, int64(a.HP))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func lessVec(a, b Vec3i) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Z < b.Z
}

func sortedPositions[T any](m map[Vec3i]T) []Vec3i {
	out := make([]Vec3i, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return lessVec(out[i], out[j]) })
	return out
}
