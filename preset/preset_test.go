package preset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/comp-engine/engine"
	"github.com/warp/comp-engine/preset"
)

func TestParse_FullDocument(t *testing.T) {
	doc := `{
		"id": "median-cf",
		"name": "Median CF",
		"inputs": {
			"proposed_cf_percentile": 50,
			"psq_percent": 5,
			"psq_basis": "base_salary"
		},
		"chunk_size": 25
	}`

	p, err := preset.Parse(doc)
	require.NoError(t, err)

	assert.Equal(t, "median-cf", p.ID)
	assert.Equal(t, 25, p.ChunkSize)
	require.NotNil(t, p.Inputs.ProposedCFPercentile)
	assert.Equal(t, 50.0, *p.Inputs.ProposedCFPercentile)
	assert.Equal(t, engine.PSQBasisBaseSalary, p.Inputs.Basis)
}

func TestParse_NameDefaultsToID(t *testing.T) {
	p, err := preset.Parse(`{"id": "x"}`)
	require.NoError(t, err)
	assert.Equal(t, "x", p.Name)
}

func TestParse_Rejections(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"missing id", `{"name": "anonymous"}`},
		{"percentile out of range", `{"id": "p", "inputs": {"proposed_cf_percentile": 120}}`},
		{"psq out of range", `{"id": "p", "inputs": {"psq_percent": 80}}`},
		{"unknown cf_source", `{"id": "p", "inputs": {"cf_source": "vibes"}}`},
		{"unknown psq_basis", `{"id": "p", "inputs": {"psq_basis": "gross"}}`},
		{"override without value", `{"id": "p", "inputs": {"cf_source": "override"}}`},
		{"not json", `{"id":`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := preset.Parse(c.doc)
			assert.Error(t, err)
		})
	}
}

func TestParseLibrary_DuplicateIDs(t *testing.T) {
	_, err := preset.ParseLibrary(`[{"id": "a"}, {"id": "a"}]`)
	assert.ErrorIs(t, err, engine.ErrDuplicateID)
}

func TestBuiltin_AllValid(t *testing.T) {
	lib := preset.Builtin()
	require.NotEmpty(t, lib)

	seen := make(map[string]bool)
	for _, p := range lib {
		assert.NotEmpty(t, p.ID)
		assert.NotEmpty(t, p.Name)
		assert.False(t, seen[p.ID], "duplicate builtin id %s", p.ID)
		seen[p.ID] = true
	}

	median, ok := preset.Find(lib, "median-cf")
	require.True(t, ok)
	require.NotNil(t, median.Inputs.ProposedCFPercentile)
	assert.Equal(t, 50.0, *median.Inputs.ProposedCFPercentile)

	_, ok = preset.Find(lib, "nope")
	assert.False(t, ok)
}
