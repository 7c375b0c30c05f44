package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed          int64  `json:"seed"`
	TickRate      int    `json:"tick_rate_hz"`
	DayTicks      int    `json:"day_ticks"`
	Difficulty    string `json:"difficulty"`
	GameTime      int64  `json:"game_time"`
	DayTime       int64  `json:"day_time"`
	SnapshotEvery int    `json:"snapshot_every_ticks,omitempty"`
	GroundY       int    `json:"ground_y"`

	// Palette maps block ids in Blocks to material names.
	Palette []string  `json:"palette"`
	Blocks  []BlockV1 `json:"blocks"`

	Anchor     *AnchorV1     `json:"anchor,omitempty"`
	Players    []PlayerV1    `json:"players"`
	Agents     []AgentV1     `json:"agents"`
	Containers []ContainerV1 `json:"containers,omitempty"`

	// Raid is the zstd state blob produced by the raid manager.
	Raid []byte `json:"raid,omitempty"`
}

// BlockV1 is a cell that differs from the flat ground.
type BlockV1 struct {
	Pos   [3]int `json:"pos"`
	Block uint16 `json:"block"`
}

type AnchorV1 struct {
	Pos [3]int `json:"pos"`
}

type PlayerV1 struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Pos     [3]int           `json:"pos"`
	Effects []ActiveEffectV1 `json:"effects,omitempty"`
}

type ActiveEffectV1 struct {
	Name      string `json:"name"`
	Amplifier int    `json:"amplifier"`
	UntilTick int64  `json:"until_tick"`
}

type AgentV1 struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Pos  [3]int `json:"pos"`
	HP   int    `json:"hp"`
}

type ContainerV1 struct {
	Pos        [3]int   `json:"pos"`
	LootTables []string `json:"loot_tables"`
}

func WriteSnapshot(path string, snap SnapshotV1) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// Path returns the canonical file name for a world snapshot at tick.
func Path(dir string, tick uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d.snap.zst", tick))
}
