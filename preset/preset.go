/*
Package preset provides JSON to scenario-input conversion.

PURPOSE:
  Converts JSON preset definitions into engine.ScenarioInputs. This enables
  scenario templates without code changes - comp analysts can define common
  what-ifs in JSON, and the preset layer creates the proper Go structs.

JSON SCHEMA:
  {
    "id": "median-cf",
    "name": "Median CF",
    "description": "Pay the 50th percentile conversion factor",
    "inputs": {
      "proposed_cf_percentile": 50,
      "psq_percent": 5,
      "psq_basis": "base_salary"
    },
    "chunk_size": 50
  }

KEY FEATURES:
  - Validates identity fields and clamps numeric ranges
  - Ships a built-in library of common scenarios
  - Batch presets bundle several scenarios plus a chunk size

USAGE:
  p, err := preset.Parse(jsonStr)
  results := engine.Evaluate(provider, row, p.Inputs)

SEE ALSO:
  - engine/types.go: ScenarioInputs
  - api: GET /api/presets
*/
package preset

import (
	"encoding/json"
	"fmt"

	"github.com/warp/comp-engine/engine"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// Preset is a named ScenarioInputs template.
type Preset struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Inputs      engine.ScenarioInputs `json:"inputs"`

	// ChunkSize applies when the preset seeds a batch run; 0 means the
	// driver default.
	ChunkSize int `json:"chunk_size,omitempty"`
}

// BatchPreset bundles several scenarios into one batch configuration.
type BatchPreset struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Scenarios []string `json:"scenarios"` // preset ids
	ChunkSize int      `json:"chunk_size,omitempty"`
}

// =============================================================================
// PARSING
// =============================================================================

// Parse decodes and validates a single preset document.
func Parse(jsonStr string) (Preset, error) {
	var p Preset
	if err := json.Unmarshal([]byte(jsonStr), &p); err != nil {
		return Preset{}, fmt.Errorf("failed to parse preset JSON: %w", err)
	}
	return normalize(p)
}

// ParseLibrary decodes a JSON array of presets.
func ParseLibrary(jsonStr string) ([]Preset, error) {
	var raw []Preset
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse preset library JSON: %w", err)
	}
	out := make([]Preset, 0, len(raw))
	seen := make(map[string]bool)
	for _, p := range raw {
		np, err := normalize(p)
		if err != nil {
			return nil, err
		}
		if seen[np.ID] {
			return nil, fmt.Errorf("preset %q: %w", np.ID, engine.ErrDuplicateID)
		}
		seen[np.ID] = true
		out = append(out, np)
	}
	return out, nil
}

// normalize validates identity and clamps numeric inputs into their legal
// ranges; a preset is authored config, so out-of-range values are an error
// here rather than a silent clamp.
func normalize(p Preset) (Preset, error) {
	if p.ID == "" {
		return Preset{}, fmt.Errorf("preset missing id")
	}
	if p.Name == "" {
		p.Name = p.ID
	}

	in := p.Inputs
	if in.ProposedCFPercentile != nil {
		if v := *in.ProposedCFPercentile; v < 0 || v > 100 {
			return Preset{}, fmt.Errorf("preset %q: proposed_cf_percentile %v out of range [0,100]", p.ID, v)
		}
	}
	if in.PSQPercent != nil {
		if v := *in.PSQPercent; v < 0 || v > 50 {
			return Preset{}, fmt.Errorf("preset %q: psq_percent %v out of range [0,50]", p.ID, v)
		}
	}
	switch in.CFSrc {
	case "", engine.CFSourceTarget, engine.CFSourceOverride:
	default:
		return Preset{}, fmt.Errorf("preset %q: unknown cf_source %q", p.ID, in.CFSrc)
	}
	switch in.Basis {
	case "", engine.PSQBasisBaseSalary, engine.PSQBasisTotalPay:
	default:
		return Preset{}, fmt.Errorf("preset %q: unknown psq_basis %q", p.ID, in.Basis)
	}
	if in.CFSrc == engine.CFSourceOverride && in.OverrideCF == nil {
		return Preset{}, fmt.Errorf("preset %q: cf_source override requires override_cf", p.ID)
	}

	if p.ChunkSize < 0 {
		p.ChunkSize = 0
	}
	return p, nil
}

// =============================================================================
// BUILT-IN LIBRARY
// =============================================================================

func pctPtr(v float64) *float64 { return &v }

// Builtin returns the presets every deployment ships with.
func Builtin() []Preset {
	return []Preset{
		{
			ID:          "baseline",
			Name:        "Baseline",
			Description: "No changes; current compensation restated through the model",
		},
		{
			ID:          "median-cf",
			Name:        "Median CF",
			Description: "Target the 50th percentile conversion factor",
			Inputs: engine.ScenarioInputs{
				ProposedCFPercentile: pctPtr(50),
			},
		},
		{
			ID:          "cf-p75",
			Name:        "75th Percentile CF",
			Description: "Target the 75th percentile conversion factor",
			Inputs: engine.ScenarioInputs{
				ProposedCFPercentile: pctPtr(75),
			},
		},
		{
			ID:          "median-cf-psq5",
			Name:        "Median CF + 5% PSQ",
			Description: "Median conversion factor with a 5% quality bonus on base salary",
			Inputs: engine.ScenarioInputs{
				ProposedCFPercentile: pctPtr(50),
				PSQPercent:           pctPtr(5),
				Basis:                engine.PSQBasisBaseSalary,
			},
		},
	}
}

// Find returns the preset with the given id from a library.
func Find(lib []Preset, id string) (Preset, bool) {
	for _, p := range lib {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}
