package engine_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/warp/comp-engine/engine"
)

// =============================================================================
// TRI-STATE DECODE TESTS
// =============================================================================

func TestPatch_OmittedVsNullVsValue(t *testing.T) {
	// GIVEN: one field set, one cleared, the rest omitted
	var patch engine.Patch
	doc := `{"psq_percent": 7.5, "override_cf": null}`
	if err := json.Unmarshal([]byte(doc), &patch); err != nil {
		t.Fatal(err)
	}

	if !patch.PSQPercent.Present || patch.PSQPercent.Value == nil {
		t.Fatal("psq_percent should decode as a set value")
	}
	if *patch.PSQPercent.Value != 7.5 {
		t.Errorf("psq_percent = %v, want 7.5", *patch.PSQPercent.Value)
	}

	if !patch.OverrideCF.Present || patch.OverrideCF.Value != nil {
		t.Fatal("override_cf should decode as an explicit clear")
	}

	if patch.ModeledWRVUs.Present {
		t.Error("modeled_wrvus was omitted and must not be marked present")
	}
}

// =============================================================================
// MERGE TESTS
// =============================================================================

func TestPatch_Apply_UntouchedFieldsSurvive(t *testing.T) {
	in := engine.ScenarioInputs{
		ProposedCFPercentile: fp(65),
		ModeledWRVUs:         dp(5200),
		PSQPercent:           fp(5),
	}

	patch := engine.Patch{PSQPercent: engine.Set(10.0)}
	out := patch.Apply(in)

	if out.PSQPercent == nil || *out.PSQPercent != 10 {
		t.Error("patched field should carry the new value")
	}
	if out.ProposedCFPercentile == nil || *out.ProposedCFPercentile != 65 {
		t.Error("untouched percentile must survive the patch")
	}
	if out.ModeledWRVUs == nil || !out.ModeledWRVUs.Equal(d(5200)) {
		t.Error("untouched wRVU override must survive the patch")
	}
}

func TestPatch_Apply_ClearResetsToInherit(t *testing.T) {
	in := engine.ScenarioInputs{ModeledWRVUs: dp(5200)}

	patch := engine.Patch{ModeledWRVUs: engine.Clear[decimal.Decimal]()}
	out := patch.Apply(in)

	if out.ModeledWRVUs != nil {
		t.Error("cleared field should reset to nil (inherit baseline)")
	}
	if in.ModeledWRVUs == nil || !in.ModeledWRVUs.Equal(d(5200)) {
		t.Error("Apply must not mutate its argument")
	}
}

func TestPatch_Apply_EnumFields(t *testing.T) {
	var patch engine.Patch
	doc := `{"cf_source": "override", "psq_basis": null}`
	if err := json.Unmarshal([]byte(doc), &patch); err != nil {
		t.Fatal(err)
	}

	in := engine.ScenarioInputs{Basis: engine.PSQBasisTotalPay}
	out := patch.Apply(in)

	if out.CFSrc != engine.CFSourceOverride {
		t.Errorf("cf_source = %q, want override", out.CFSrc)
	}
	if out.Basis != "" {
		t.Errorf("psq_basis should clear to empty, got %q", out.Basis)
	}
}

func TestPatch_Apply_NormalizesAtBoundary(t *testing.T) {
	// Replacement values are normalized where the user write enters the
	// system: money to cents, wRVUs floored at zero, rates clamped.
	var patch engine.Patch
	doc := `{
		"modeled_base_pay": 210000.999,
		"modeled_wrvus": -12,
		"psq_percent": 80,
		"proposed_cf_percentile": 62.5
	}`
	if err := json.Unmarshal([]byte(doc), &patch); err != nil {
		t.Fatal(err)
	}

	out := patch.Apply(engine.ScenarioInputs{})

	if !out.ModeledBasePay.Equal(d(210001)) {
		t.Errorf("base pay should round to cents, got %s", out.ModeledBasePay)
	}
	if !out.ModeledWRVUs.Equal(decimal.Zero) {
		t.Errorf("negative wRVUs should clamp to zero, got %s", out.ModeledWRVUs)
	}
	if *out.PSQPercent != 50 {
		t.Errorf("psq rate should clamp to 50, got %v", *out.PSQPercent)
	}
	if *out.ProposedCFPercentile != 62.5 {
		t.Errorf("in-range percentile should pass through, got %v", *out.ProposedCFPercentile)
	}
}

func TestPatch_Apply_SequentialWrites(t *testing.T) {
	// Two control writes in sequence: the second must not undo the first.
	in := engine.ScenarioInputs{}

	first := engine.Patch{ProposedCFPercentile: engine.Set(50.0)}
	second := engine.Patch{ModeledWRVUs: engine.Set(decimal.NewFromInt(5000))}

	out := second.Apply(first.Apply(in))

	if out.ProposedCFPercentile == nil || *out.ProposedCFPercentile != 50 {
		t.Error("first write lost after second patch")
	}
	if out.ModeledWRVUs == nil || !out.ModeledWRVUs.Equal(d(5000)) {
		t.Error("second write not applied")
	}
}
