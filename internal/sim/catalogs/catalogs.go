package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"raidcraft.ai/internal/sim/raid/behavior"
	"raidcraft.ai/internal/sim/raid/waves"
)

type Catalogs struct {
	Materials MaterialCatalog
	Agents    AgentCatalog
}

type MaterialCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]MaterialDef
	PaletteDigest string
	DefsDigest    string
}

type MaterialDef struct {
	ID string `json:"id"`
	// Hardness feeds the break threshold curve; negative means unbreakable.
	Hardness float64 `json:"hardness"`
	Solid    bool    `json:"solid"`
	Fluid    bool    `json:"fluid,omitempty"`
}

type AgentCatalog struct {
	ByKind map[string]AgentDef
	Digest string
}

type AgentDef struct {
	Kind       string              `json:"kind"`
	Flying     bool                `json:"flying,omitempty"`
	Strategies []behavior.Strategy `json:"strategies"`
	Damage     int                 `json:"damage"`
	Reach      int                 `json:"reach"`
	HP         int                 `json:"hp,omitempty"`
}

func (d AgentDef) Profile() behavior.Profile {
	return behavior.Profile{
		Strategies: d.Strategies,
		Flying:     d.Flying,
		Damage:     d.Damage,
		ReachSq:    d.Reach * d.Reach,
	}
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadMaterials(filepath.Join(configDir, "materials.json"), &c.Materials); err != nil {
		return nil, err
	}
	if err := loadAgents(filepath.Join(configDir, "agents.json"), &c.Agents); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadMaterials(path string, out *MaterialCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []MaterialDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("materials.json: %w", err)
	}
	out.Defs = map[string]MaterialDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("materials.json: empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("materials.json: duplicate id %s", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		if id != "AIR" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	// AIR is palette id 0.
	if _, ok := out.Defs["AIR"]; !ok {
		return fmt.Errorf("materials.json: missing AIR")
	}
	ids = append([]string{"AIR"}, ids...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func loadAgents(path string, out *AgentCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []AgentDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("agents.json: %w", err)
	}
	out.ByKind = make(map[string]AgentDef, len(defs))
	for _, d := range defs {
		if d.Kind == "" {
			return fmt.Errorf("agents.json: empty kind")
		}
		if err := d.Profile().Validate(); err != nil {
			return fmt.Errorf("agents.json %s: %w", d.Kind, err)
		}
		out.ByKind[d.Kind] = d
	}
	return nil
}

// Covers reports the first spawn-table kind without an agent definition.
func (a AgentCatalog) Covers(t waves.Table) error {
	for _, kind := range t.Kinds() {
		if _, ok := a.ByKind[kind]; !ok {
			return fmt.Errorf("%w: %s has no agent definition", waves.ErrUnknownKind, kind)
		}
	}
	return nil
}

func (a AgentCatalog) IsFlying(kind string) bool {
	return a.ByKind[kind].Flying
}

func (m MaterialCatalog) Hardness(id string) float64 {
	return m.Defs[id].Hardness
}
