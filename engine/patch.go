/*
patch.go - Partial-merge updates for scenario inputs

PURPOSE:
  Scenario controls write one field at a time. An update is therefore a
  PATCH, never a full replace: fields the user has not touched must survive.

TRI-STATE FIELDS:
  Each patch field distinguishes three states:
    omitted  -> leave the current value unchanged
    null     -> clear the field (reset to "inherit baseline")
    value    -> replace the current value
  JSON cannot express this with plain pointers (omitted and null both decode
  to nil), so Field wraps a presence flag set during unmarshaling.

INPUT-BOUNDARY ROUNDING:
  Currency values are rounded to cents and wRVU quantities to two decimals
  here, at the user-input boundary. Internal engine math keeps full
  precision.

SEE ALSO:
  - types.go: ScenarioInputs
  - api: PATCH /api/scenarios/{id}/inputs
*/
package engine

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FIELD - Tri-state patch cell
// =============================================================================

// Field is a tri-state patch cell: absent, explicit clear, or a new value.
type Field[T any] struct {
	// Present is true when the field appeared in the patch at all.
	Present bool

	// Value is nil for an explicit clear (JSON null), set otherwise.
	Value *T
}

// Set returns a Field carrying a replacement value.
func Set[T any](v T) Field[T] {
	return Field[T]{Present: true, Value: &v}
}

// Clear returns a Field that resets its target to "inherit baseline".
func Clear[T any]() Field[T] {
	return Field[T]{Present: true}
}

var jsonNull = []byte("null")

// UnmarshalJSON is only invoked for fields present in the document, which is
// exactly the presence signal Field needs.
func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Present = true
	if bytes.Equal(bytes.TrimSpace(b), jsonNull) {
		f.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	f.Value = &v
	return nil
}

// MarshalJSON round-trips Set/Clear fields; absent fields marshal as null
// (callers serializing patches should use omitzero-style wrappers, the API
// only ever decodes patches).
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Present || f.Value == nil {
		return jsonNull, nil
	}
	return json.Marshal(*f.Value)
}

// =============================================================================
// PATCH - One control write
// =============================================================================

// Patch is a partial update to ScenarioInputs. Zero-value fields were not
// part of the write and leave their targets untouched.
type Patch struct {
	ProposedCFPercentile Field[float64]         `json:"proposed_cf_percentile"`
	OverrideCF           Field[decimal.Decimal] `json:"override_cf"`
	CFSource             Field[string]          `json:"cf_source"`

	ModeledWRVUs      Field[decimal.Decimal] `json:"modeled_wrvus"`
	ModeledWorkWRVUs  Field[decimal.Decimal] `json:"modeled_work_wrvus"`
	ModeledOtherWRVUs Field[decimal.Decimal] `json:"modeled_other_wrvus"`

	ModeledBasePay        Field[decimal.Decimal] `json:"modeled_base_pay"`
	ModeledNonClinicalPay Field[decimal.Decimal] `json:"modeled_non_clinical_pay"`

	PSQPercent Field[float64] `json:"psq_percent"`
	PSQBasis   Field[string]  `json:"psq_basis"`
}

// Apply merges the patch onto existing inputs and returns the result. The
// receiver inputs are not mutated. Replacement values are normalized at this
// boundary: money to cents, wRVUs to two decimals, rates clamped to their
// legal ranges.
func (patch Patch) Apply(in ScenarioInputs) ScenarioInputs {
	out := in

	applyFloat(&out.ProposedCFPercentile, patch.ProposedCFPercentile, clampPct)
	applyDecimal(&out.OverrideCF, patch.OverrideCF, clampMoneyRate)

	if patch.CFSource.Present {
		if patch.CFSource.Value == nil {
			out.CFSrc = ""
		} else {
			out.CFSrc = CFSource(*patch.CFSource.Value)
		}
	}

	applyDecimal(&out.ModeledWRVUs, patch.ModeledWRVUs, clampWRVU)
	applyDecimal(&out.ModeledWorkWRVUs, patch.ModeledWorkWRVUs, clampWRVU)
	applyDecimal(&out.ModeledOtherWRVUs, patch.ModeledOtherWRVUs, clampWRVU)

	applyDecimal(&out.ModeledBasePay, patch.ModeledBasePay, clampMoney)
	applyDecimal(&out.ModeledNonClinicalPay, patch.ModeledNonClinicalPay, clampMoney)

	applyFloat(&out.PSQPercent, patch.PSQPercent, clampPSQPercent)

	if patch.PSQBasis.Present {
		if patch.PSQBasis.Value == nil {
			out.Basis = ""
		} else {
			out.Basis = PSQBasis(*patch.PSQBasis.Value)
		}
	}

	return out
}

func applyFloat(dst **float64, f Field[float64], norm func(float64) float64) {
	if !f.Present {
		return
	}
	if f.Value == nil {
		*dst = nil
		return
	}
	v := norm(*f.Value)
	*dst = &v
}

func applyDecimal(dst **decimal.Decimal, f Field[decimal.Decimal], norm func(decimal.Decimal) decimal.Decimal) {
	if !f.Present {
		return
	}
	if f.Value == nil {
		*dst = nil
		return
	}
	v := norm(*f.Value)
	*dst = &v
}

func clampPSQPercent(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 50 {
		return 50
	}
	return v
}
