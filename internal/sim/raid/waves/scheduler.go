package waves

import (
	"io"
	"log"
	"math"
	"math/rand"
	"sort"
	"sync"

	"raidcraft.ai/internal/sim/world/kernel/model"
)

type AgentID string

// Placement is the host's spawn surface.
type Placement interface {
	CanSpawn(kind string, pos model.Vec3i) bool
	Spawn(kind string, pos model.Vec3i) (AgentID, error)
	IsAlive(id AgentID) bool
	Despawn(id AgentID)
}

// Terrain answers the ground height at a column.
type Terrain interface {
	SurfaceY(x, z int) int
}

type Config struct {
	SpawnRadius  int
	AngleSteps   int
	FlyingOffset int
	// RetryTicks bounds how long a failed placement is retried.
	RetryTicks int64
	// WaveIntervalTicks releases the next wave even if the current one is alive. 0 disables.
	WaveIntervalTicks int64
}

func DefaultConfig() Config {
	return Config{SpawnRadius: 50, AngleSteps: 100, FlyingOffset: 5, RetryTicks: 200}
}

type pendingSpawn struct {
	kind  string
	since int64
}

type Scheduler struct {
	cfg       Config
	placement Placement
	terrain   Terrain
	flying    func(kind string) bool
	logger    *log.Logger

	mu        sync.Mutex
	rng       *rand.Rand
	alloc     Allocation
	nextWave  int
	waveStart int64
	spawned   []AgentID
	current   []AgentID
	pending   []pendingSpawn
}

func NewScheduler(cfg Config, placement Placement, terrain Terrain, flying func(string) bool, seed int64, logger *log.Logger) *Scheduler {
	if cfg.SpawnRadius <= 0 {
		cfg.SpawnRadius = DefaultConfig().SpawnRadius
	}
	if cfg.AngleSteps <= 0 {
		cfg.AngleSteps = DefaultConfig().AngleSteps
	}
	if flying == nil {
		flying = func(string) bool { return false }
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Scheduler{
		cfg:       cfg,
		placement: placement,
		terrain:   terrain,
		flying:    flying,
		logger:    logger,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Begin installs a fresh allocation and spawns wave 1.
func (s *Scheduler) Begin(alloc Allocation, anchor model.Vec3i, now int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alloc = alloc
	s.nextWave = 0
	s.spawned = nil
	s.current = nil
	s.pending = nil
	s.spawnNextLocked(anchor, now)
}

// Tick retries failed placements and releases the next wave when the current
// wave is dead or the wave interval elapsed.
func (s *Scheduler) Tick(anchor model.Vec3i, now int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) > 0 {
		retry := s.pending
		s.pending = nil
		for _, p := range retry {
			if s.cfg.RetryTicks > 0 && now-p.since > s.cfg.RetryTicks {
				s.logger.Printf("spawn retry expired: kind=%s since=%d", p.kind, p.since)
				continue
			}
			s.spawnOneLocked(p.kind, anchor, p.since)
		}
	}

	if s.nextWave >= len(s.alloc.Waves) {
		return
	}
	waveDead := len(s.pending) == 0 && s.allDeadLocked(s.current)
	intervalDone := s.cfg.WaveIntervalTicks > 0 && now-s.waveStart >= s.cfg.WaveIntervalTicks
	if waveDead || intervalDone {
		s.spawnNextLocked(anchor, now)
	}
}

func (s *Scheduler) spawnNextLocked(anchor model.Vec3i, now int64) {
	if s.nextWave >= len(s.alloc.Waves) {
		return
	}
	wave := s.alloc.Waves[s.nextWave]
	s.nextWave++
	s.waveStart = now
	s.current = nil

	kinds := make([]string, 0, len(wave))
	for k := range wave {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	n := 0
	for _, kind := range kinds {
		for i := 0; i < wave[kind]; i++ {
			s.spawnOneLocked(kind, anchor, now)
			n++
		}
	}
	s.logger.Printf("wave %d/%d: requested=%d spawned=%d pending=%d", s.nextWave, len(s.alloc.Waves), n, len(s.current), len(s.pending))
}

func (s *Scheduler) spawnOneLocked(kind string, anchor model.Vec3i, since int64) {
	pos := s.spawnPosLocked(kind, anchor)
	if s.placement == nil || !s.placement.CanSpawn(kind, pos) {
		s.logger.Printf("spawn %s at %s: position not legal, retrying", kind, pos)
		s.pending = append(s.pending, pendingSpawn{kind: kind, since: since})
		return
	}
	id, err := s.placement.Spawn(kind, pos)
	if err != nil {
		s.logger.Printf("spawn %s at %s: %v", kind, pos, err)
		s.pending = append(s.pending, pendingSpawn{kind: kind, since: since})
		return
	}
	s.spawned = append(s.spawned, id)
	s.current = append(s.current, id)
}

// spawnPosLocked picks a point on the spawn circle around the block above the anchor.
func (s *Scheduler) spawnPosLocked(kind string, anchor model.Vec3i) model.Vec3i {
	center := anchor.Up(1)
	step := 2 * math.Pi / float64(s.cfg.AngleSteps)
	angle := float64(s.rng.Intn(s.cfg.AngleSteps)) * step
	x := center.X + int(float64(s.cfg.SpawnRadius)*math.Cos(angle))
	z := center.Z + int(float64(s.cfg.SpawnRadius)*math.Sin(angle))
	if s.flying(kind) {
		return model.Vec3i{X: x, Y: anchor.Y + s.cfg.FlyingOffset, Z: z}
	}
	y := center.Y
	if s.terrain != nil {
		y = s.terrain.SurfaceY(x, z)
	}
	return model.Vec3i{X: x, Y: y, Z: z}
}

func (s *Scheduler) allDeadLocked(ids []AgentID) bool {
	for _, id := range ids {
		if s.placement != nil && s.placement.IsAlive(id) {
			return false
		}
	}
	return true
}

// AllSpawnedDead reports whether no spawned agent is alive. Unknown ids count as dead.
func (s *Scheduler) AllSpawnedDead() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allDeadLocked(s.spawned)
}

// Exhausted reports that every wave was released and no placement is waiting for a retry.
func (s *Scheduler) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextWave >= len(s.alloc.Waves) && len(s.pending) == 0
}

func (s *Scheduler) PendingWaves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alloc.Waves) - s.nextWave
}

func (s *Scheduler) PendingRetries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Scheduler) Spawned() []AgentID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AgentID(nil), s.spawned...)
}

// State is the persisted scheduler progress.
type State struct {
	Allocation Allocation `json:"allocation"`
	NextWave   int        `json:"next_wave"`
	WaveStart  int64      `json:"wave_start"`
	Spawned    []AgentID  `json:"spawned"`
	Current    []AgentID  `json:"current"`
}

func (s *Scheduler) Export() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Allocation: s.alloc,
		NextWave:   s.nextWave,
		WaveStart:  s.waveStart,
		Spawned:    append([]AgentID(nil), s.spawned...),
		Current:    append([]AgentID(nil), s.current...),
	}
}

// Attach restores saved progress. Pending retries are not persisted.
func (s *Scheduler) Attach(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alloc = st.Allocation
	s.nextWave = st.NextWave
	if s.nextWave < 0 {
		s.nextWave = 0
	}
	if s.nextWave > len(s.alloc.Waves) {
		s.nextWave = len(s.alloc.Waves)
	}
	s.waveStart = st.WaveStart
	s.spawned = append([]AgentID(nil), st.Spawned...)
	s.current = append([]AgentID(nil), st.Current...)
	s.pending = nil
}

// Reset despawns every spawned agent and forgets the allocation.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	ids := s.spawned
	s.alloc = Allocation{}
	s.nextWave = 0
	s.spawned = nil
	s.current = nil
	s.pending = nil
	s.mu.Unlock()

	if s.placement == nil {
		return
	}
	for _, id := range ids {
		s.placement.Despawn(id)
	}
}
