/*
Package engine provides the core compensation scenario calculation engine.

PURPOSE:
  This package contains the pure, deterministic math behind the modeler:
  given a provider's baseline facts, a market benchmark row, and a set of
  scenario inputs, it produces a ScenarioResults record comparing current
  and modeled compensation.

KEY CONCEPTS IN THIS FILE (types.go):
  - ProviderRow: One clinician's baseline facts for a compensation period
  - MarketRow: A specialty benchmark with 25/50/75/90 percentile bands
  - ScenarioInputs: The user-adjustable control surface for one what-if
  - ScenarioResults: The engine's derived output, recomputed on every change

DESIGN PRINCIPLES:
  1. Purity: Evaluate() has no I/O, no randomness, no hidden state
  2. Precision: Uses decimal.Decimal for currency and wRVU quantities
  3. Lenience: Dirty or missing numeric input resolves to zero, never panics
  4. Derivation: ScenarioResults is never stored or mutated, only recomputed

USAGE:
  results := engine.Evaluate(provider, &marketRow, inputs)
  fmt.Println(results.ModeledTCC, results.ChangeInTCC)

SEE ALSO:
  - scenario.go: The Evaluate calculation itself
  - percentile.go: Benchmark band interpolation
  - patch.go: Partial-merge updates for ScenarioInputs
*/
package engine

import (
	"math"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY AND QUANTITY HELPERS
// =============================================================================

// Money converts a raw float into a currency amount rounded to cents.
// Non-finite input (NaN, ±Inf) resolves to zero: uploaded spreadsheets are
// dirty by default and the modeler must never crash on partial data.
func Money(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(2)
}

// WRVUs converts a raw float into a productivity quantity rounded to two
// decimals and clamped at zero. Same lenience rules as Money.
func WRVUs(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(2)
}

// Rate converts a raw float into a $/wRVU conversion factor. Negative and
// non-finite values resolve to zero.
func Rate(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// =============================================================================
// PROVIDER ROW - Baseline facts for one clinician
// =============================================================================

// PayComponent is one labeled slice of a provider's guaranteed base pay,
// e.g. "Clinical" plus a medical-directorship stipend.
type PayComponent struct {
	Label  string
	Amount decimal.Decimal
}

// ProviderRow holds one provider's baseline compensation facts. Rows are
// created by file upload or the edit API and are read-only inputs to the
// engine: a scenario run never mutates them.
type ProviderRow struct {
	ProviderID   string
	ProviderName string

	// Categorical attributes used for grouping and market matching.
	Specialty    string
	Division     string
	ProviderType string

	// Total guaranteed base pay. When BasePayComponents sums to a positive
	// total, the component sum wins over this field.
	BaseSalary decimal.Decimal

	// Ordered base pay breakdown; optional.
	BasePayComponents []PayComponent

	// Portion of base attributable to non-clinical duties. Derivable from
	// BasePayComponents when present.
	NonClinicalPay decimal.Decimal

	// Baseline productivity. OutsideWRVUs is the subset of TotalWRVUs earned
	// outside the standard work measure.
	TotalWRVUs   decimal.Decimal
	OutsideWRVUs decimal.Decimal

	// File-supplied incentive amounts, added into baseline TCC when present.
	QualityPayments decimal.Decimal
	OtherIncentives decimal.Decimal

	// File-supplied current conversion factor ($/wRVU); zero means absent.
	CurrentCF decimal.Decimal

	// Authoritative file-supplied baseline TCC. When set it is trusted over
	// the sum of modeled components, even when the two disagree; the engine
	// flags the discrepancy instead of reconciling it.
	CurrentTCC *decimal.Decimal
}

// ID returns the provider identity, defaulting to the name when the file
// carried no explicit id column.
func (p ProviderRow) ID() string {
	if p.ProviderID != "" {
		return p.ProviderID
	}
	return p.ProviderName
}

// BasePay resolves total guaranteed base: the component sum when positive,
// otherwise the flat BaseSalary field.
func (p ProviderRow) BasePay() decimal.Decimal {
	total := decimal.Zero
	for _, c := range p.BasePayComponents {
		total = total.Add(c.Amount)
	}
	if total.IsPositive() {
		return total
	}
	return p.BaseSalary
}

// ClinicalBase resolves the clinical share of base pay: base minus the
// non-clinical portion, floored at zero.
func (p ProviderRow) ClinicalBase() decimal.Decimal {
	clinical := p.BasePay().Sub(p.NonClinical())
	if clinical.IsNegative() {
		return decimal.Zero
	}
	return clinical
}

// NonClinical resolves the non-clinical share of base. When components are
// present, it is the component total minus the clinical component; otherwise
// the flat NonClinicalPay field.
func (p ProviderRow) NonClinical() decimal.Decimal {
	total := decimal.Zero
	clinical := decimal.Zero
	for _, c := range p.BasePayComponents {
		total = total.Add(c.Amount)
		if isClinicalLabel(c.Label) {
			clinical = clinical.Add(c.Amount)
		}
	}
	if total.IsPositive() && clinical.IsPositive() {
		derived := total.Sub(clinical)
		if derived.IsNegative() {
			return decimal.Zero
		}
		return derived
	}
	if p.NonClinicalPay.IsNegative() {
		return decimal.Zero
	}
	return p.NonClinicalPay
}

// WorkWRVUs returns baseline wRVUs under the standard work measure
// (total minus outside), floored at zero.
func (p ProviderRow) WorkWRVUs() decimal.Decimal {
	work := p.TotalWRVUs.Sub(p.OutsideWRVUs)
	if work.IsNegative() {
		return decimal.Zero
	}
	return work
}

func isClinicalLabel(label string) bool {
	switch label {
	case "Clinical", "clinical", "Clinical Base", "clinical_base":
		return true
	}
	return false
}

// =============================================================================
// MARKET ROW - Four-point benchmark distributions
// =============================================================================

// Band is a four-point empirical market distribution: the 25th, 50th, 75th
// and 90th percentile values. Anchors are assumed monotonic non-decreasing;
// the interpolation routines guard degenerate (flat) segments but do not
// validate ordering.
type Band struct {
	P25 float64
	P50 float64
	P75 float64
	P90 float64
}

// IsZero reports whether the band carries no benchmark data at all.
func (b Band) IsZero() bool {
	return b.P25 == 0 && b.P50 == 0 && b.P75 == 0 && b.P90 == 0
}

// MarketRow is one specialty/region/provider-type benchmark. Immutable
// reference data for a scenario run.
type MarketRow struct {
	Specialty    string
	ProviderType string
	Region       string

	TCC  Band // Total cash compensation ($)
	WRVU Band // Work RVU productivity
	CF   Band // Conversion factor ($/wRVU)
}

// =============================================================================
// SCENARIO INPUTS - The what-if control surface
// =============================================================================

// CFSource selects how the modeled conversion factor is derived.
type CFSource string

const (
	// CFSourceTarget derives the modeled CF from a target market percentile.
	CFSourceTarget CFSource = "target_haircut"

	// CFSourceOverride uses an explicit $/wRVU value, ignoring the percentile.
	CFSourceOverride CFSource = "override"
)

// PSQBasis selects the pay basis for the quality (PSQ/VBP) bonus.
type PSQBasis string

const (
	PSQBasisBaseSalary PSQBasis = "base_salary"
	PSQBasisTotalPay   PSQBasis = "total_pay"
)

// ScenarioInputs is the user-adjustable control surface for one what-if.
// Every numeric field is optional: nil means "inherit the baseline value".
// Inputs are only ever mutated through Patch (partial-field merge); a control
// write never replaces the whole struct.
type ScenarioInputs struct {
	// Market percentile (0-100) to target for the conversion factor.
	ProposedCFPercentile *float64 `json:"proposed_cf_percentile,omitempty"`

	// Explicit $/wRVU override, honored when CFSrc is CFSourceOverride.
	OverrideCF *decimal.Decimal `json:"override_cf,omitempty"`

	// Which CF derivation wins. Empty defaults to CFSourceTarget.
	CFSrc CFSource `json:"cf_source,omitempty"`

	// Productivity overrides. Other is clamped to Total; Work defaults to
	// Total minus Other when not explicitly set.
	ModeledWRVUs      *decimal.Decimal `json:"modeled_wrvus,omitempty"`
	ModeledWorkWRVUs  *decimal.Decimal `json:"modeled_work_wrvus,omitempty"`
	ModeledOtherWRVUs *decimal.Decimal `json:"modeled_other_wrvus,omitempty"`

	// Base-pay overrides.
	ModeledBasePay        *decimal.Decimal `json:"modeled_base_pay,omitempty"`
	ModeledNonClinicalPay *decimal.Decimal `json:"modeled_non_clinical_pay,omitempty"`

	// Quality bonus rate (0-50, percent) and its pay basis.
	PSQPercent *float64 `json:"psq_percent,omitempty"`
	Basis      PSQBasis `json:"psq_basis,omitempty"`
}

// =============================================================================
// SCENARIO RESULTS - Derived output, never stored
// =============================================================================

// ScenarioResults is the engine's pure output for one
// (provider, market row, inputs) triple. Percentile fields are nil when no
// market benchmark matched the provider.
type ScenarioResults struct {
	CurrentCF decimal.Decimal `json:"current_cf"`
	ModeledCF decimal.Decimal `json:"modeled_cf"`

	// Incentive for the current and modeled columns. Negative values are
	// reported as-is but excluded from the TCC sums.
	CurrentIncentive decimal.Decimal `json:"current_incentive"`
	AnnualIncentive  decimal.Decimal `json:"annual_incentive"`

	CurrentTCC  decimal.Decimal `json:"current_tcc"`
	ModeledTCC  decimal.Decimal `json:"modeled_tcc"`
	ChangeInTCC decimal.Decimal `json:"change_in_tcc"`

	CurrentPSQDollars decimal.Decimal `json:"current_psq_dollars"`
	PSQDollars        decimal.Decimal `json:"psq_dollars"`

	TotalWRVUs          decimal.Decimal `json:"total_wrvus"`
	WRVUsAboveThreshold decimal.Decimal `json:"wrvus_above_threshold"`
	AnnualThreshold     decimal.Decimal `json:"annual_threshold"`

	TCCPercentile        *float64 `json:"tcc_percentile,omitempty"`
	ModeledTCCPercentile *float64 `json:"modeled_tcc_percentile,omitempty"`
	WRVUPercentile       *float64 `json:"wrvu_percentile,omitempty"`
	CFPercentileCurrent  *float64 `json:"cf_percentile_current,omitempty"`
	CFPercentileModeled  *float64 `json:"cf_percentile_modeled,omitempty"`

	// Effective pay per unit of productivity, an FMV risk signal.
	ImputedTCCPerWRVUCurrent decimal.Decimal `json:"imputed_tcc_per_wrvu_current"`
	ImputedTCCPerWRVUModeled decimal.Decimal `json:"imputed_tcc_per_wrvu_modeled"`

	// Modeled TCC percentile minus wRVU percentile: signed over/under-pay
	// relative to productivity rank. Nil without a market match.
	AlignmentGapModeled *float64 `json:"alignment_gap_modeled,omitempty"`

	// True when the baseline TCC came from the uploaded file rather than the
	// component sum. The two are never silently reconciled.
	CurrentTCCFromFile bool `json:"current_tcc_from_file"`
}
