/*
scenario.go - Baseline vs modeled compensation calculation

PURPOSE:
  Evaluate is the whole engine: a pure function from
  (ProviderRow, *MarketRow, ScenarioInputs) to ScenarioResults. Every number
  the modeler displays is derived here and recomputed on each input change.

CALCULATION ORDER:
  1. Resolve baseline figures (base pay split, wRVU split, current CF)
  2. Resolve the modeled conversion factor (override beats percentile)
  3. Resolve modeled wRVUs (overrides, clamps, split invariant)
  4. Compute incentive per column: (wRVUs - clinicalBase/CF) * CF
  5. Compute PSQ dollars from rate and basis
  6. Compute TCC sums (only positive incentive counts)
  7. Map TCC/wRVU/CF values to market percentiles
  8. Deltas, imputed $/wRVU ratios, alignment gap

FALLBACK RULES (the engine never errors on business data):
  - Zero conversion factor: threshold and imputed ratio become zero
  - Zero wRVUs: imputed ratio becomes zero
  - No market row, or an empty benchmark band: percentile fields are nil
  - Negative incentive: reported as-is, excluded from the TCC sum

BUSINESS RULES PRESERVED DELIBERATELY:
  Excluding negative incentive from TCC while still displaying it mirrors
  the production comp plans this models: a provider below threshold is not
  clawed back, but the shortfall is surfaced.

SEE ALSO:
  - types.go: Input/output shapes
  - percentile.go: Band interpolation
*/
package engine

import "github.com/shopspring/decimal"

// =============================================================================
// EVALUATE - The engine
// =============================================================================

// Evaluate computes ScenarioResults for one provider under one scenario.
// market may be nil when no benchmark matched the provider's specialty;
// percentile fields are then omitted. Evaluate is deterministic, reentrant
// and side-effect free: identical inputs always produce identical outputs.
func Evaluate(p ProviderRow, market *MarketRow, in ScenarioInputs) ScenarioResults {
	// --- 1. Baseline figures ---------------------------------------------
	basePay := p.BasePay()
	clinicalBase := p.ClinicalBase()
	baseTotalWRVUs, baseOtherWRVUs := splitWRVUs(p.TotalWRVUs, p.OutsideWRVUs)

	currentCF := p.CurrentCF
	if !currentCF.IsPositive() {
		// Impute the effective rate the provider is paid today.
		currentCF = safeDiv(clinicalBase, baseTotalWRVUs)
	}

	// --- 2. Modeled conversion factor ------------------------------------
	modeledCF := resolveModeledCF(currentCF, market, in)

	// --- 3. Modeled base pay and wRVUs ------------------------------------
	modeledBase := basePay
	if in.ModeledBasePay != nil {
		modeledBase = clampMoney(*in.ModeledBasePay)
	}
	modeledNonClinical := p.NonClinical()
	if in.ModeledNonClinicalPay != nil {
		modeledNonClinical = clampMoney(*in.ModeledNonClinicalPay)
	}
	modeledClinical := modeledBase.Sub(modeledNonClinical)
	if modeledClinical.IsNegative() {
		modeledClinical = decimal.Zero
	}

	modeledTotal, modeledWork, modeledOther := resolveModeledWRVUs(baseTotalWRVUs, baseOtherWRVUs, in)
	_ = modeledWork
	_ = modeledOther // split invariant holds: work + other == total

	// --- 4. Incentive per column ------------------------------------------
	currentThreshold := safeDiv(clinicalBase, currentCF)
	currentIncentive := baseTotalWRVUs.Sub(currentThreshold).Mul(currentCF)

	annualThreshold := safeDiv(modeledClinical, modeledCF)
	wrvusAbove := modeledTotal.Sub(annualThreshold)
	annualIncentive := wrvusAbove.Mul(modeledCF)

	// --- 5. PSQ / VBP dollars ---------------------------------------------
	psqRate := resolvePSQRate(in.PSQPercent)
	basis := in.Basis
	if basis == "" {
		basis = PSQBasisBaseSalary
	}
	currentPSQ := psqRate.Mul(psqBasisAmount(basis, basePay, currentIncentive))
	modeledPSQ := psqRate.Mul(psqBasisAmount(basis, modeledBase, annualIncentive))

	// --- 6. TCC sums -------------------------------------------------------
	// Baseline: the file-supplied figure is authoritative when present, even
	// when it disagrees with the component sum. The discrepancy is flagged,
	// never reconciled. Uploaded qualityPayments stand in for quality pay in
	// the current column; the modeled column adds the PSQ plan on top.
	currentTCCFromFile := false
	var currentTCC decimal.Decimal
	if p.CurrentTCC != nil && p.CurrentTCC.IsPositive() {
		currentTCC = *p.CurrentTCC
		currentTCCFromFile = true
	} else {
		currentTCC = basePay.
			Add(positivePart(currentIncentive)).
			Add(p.QualityPayments).
			Add(p.OtherIncentives)
	}

	modeledTCC := modeledBase.
		Add(positivePart(annualIncentive)).
		Add(modeledPSQ).
		Add(p.QualityPayments).
		Add(p.OtherIncentives)

	// --- 7. Market percentiles --------------------------------------------
	res := ScenarioResults{
		CurrentCF:           currentCF,
		ModeledCF:           modeledCF,
		CurrentIncentive:    currentIncentive,
		AnnualIncentive:     annualIncentive,
		CurrentTCC:          currentTCC,
		ModeledTCC:          modeledTCC,
		ChangeInTCC:         modeledTCC.Sub(currentTCC),
		CurrentPSQDollars:   currentPSQ,
		PSQDollars:          modeledPSQ,
		TotalWRVUs:          modeledTotal,
		WRVUsAboveThreshold: wrvusAbove,
		AnnualThreshold:     annualThreshold,
		CurrentTCCFromFile:  currentTCCFromFile,
	}

	if market != nil {
		res.TCCPercentile = bandPercentile(market.TCC, currentTCC)
		res.ModeledTCCPercentile = bandPercentile(market.TCC, modeledTCC)
		res.WRVUPercentile = bandPercentile(market.WRVU, modeledTotal)
		res.CFPercentileCurrent = bandPercentile(market.CF, currentCF)
		res.CFPercentileModeled = bandPercentile(market.CF, modeledCF)

		if res.ModeledTCCPercentile != nil && res.WRVUPercentile != nil {
			gap := *res.ModeledTCCPercentile - *res.WRVUPercentile
			res.AlignmentGapModeled = &gap
		}
	}

	// --- 8. Imputed $/wRVU ratios -----------------------------------------
	// A zero conversion factor short-circuits the modeled ratio to zero,
	// matching the threshold guard: a plan with no $/wRVU rate has no
	// meaningful effective rate either.
	res.ImputedTCCPerWRVUCurrent = safeDiv(currentTCC, baseTotalWRVUs)
	if modeledCF.IsZero() {
		res.ImputedTCCPerWRVUModeled = decimal.Zero
	} else {
		res.ImputedTCCPerWRVUModeled = safeDiv(modeledTCC, modeledTotal)
	}

	return res
}

// =============================================================================
// RESOLUTION HELPERS
// =============================================================================

// resolveModeledCF applies the CF source precedence: an explicit override
// wins; otherwise the target percentile is read off the market CF band;
// with neither (or no market data) the baseline CF is inherited.
func resolveModeledCF(currentCF decimal.Decimal, market *MarketRow, in ScenarioInputs) decimal.Decimal {
	if in.CFSrc == CFSourceOverride && in.OverrideCF != nil {
		return clampMoneyRate(*in.OverrideCF)
	}
	if in.ProposedCFPercentile != nil && market != nil && !market.CF.IsZero() {
		return decimal.NewFromFloat(market.CF.ValueAtPercentile(*in.ProposedCFPercentile))
	}
	return currentCF
}

// resolveModeledWRVUs applies productivity overrides while keeping the split
// invariant: other <= total and work + other == total.
//
// Precedence: an explicit total wins; an explicit work backs out the other
// share (or, with no explicit total, extends the total to work + other).
func resolveModeledWRVUs(baseTotal, baseOther decimal.Decimal, in ScenarioInputs) (total, work, other decimal.Decimal) {
	total = baseTotal
	other = baseOther

	totalSet := in.ModeledWRVUs != nil
	if totalSet {
		total = clampWRVU(*in.ModeledWRVUs)
	}
	if in.ModeledOtherWRVUs != nil {
		other = clampWRVU(*in.ModeledOtherWRVUs)
	}

	if in.ModeledWorkWRVUs != nil {
		work = clampWRVU(*in.ModeledWorkWRVUs)
		if totalSet {
			// Total is authoritative; the other share absorbs the remainder.
			other = total.Sub(work)
			if other.IsNegative() {
				other = decimal.Zero
				work = total
			}
		} else {
			total = work.Add(other)
		}
	} else {
		if other.GreaterThan(total) {
			other = total
		}
		work = total.Sub(other)
	}

	if other.GreaterThan(total) {
		other = total
	}
	return total, work, other
}

// resolvePSQRate turns the 0-50 percent input into a multiplier. Out-of-range
// and missing values resolve to the nearest legal rate, never an error.
func resolvePSQRate(pct *float64) decimal.Decimal {
	if pct == nil {
		return decimal.Zero
	}
	v := *pct
	if v != v || v < 0 { // NaN or negative
		v = 0
	}
	if v > 50 {
		v = 50
	}
	return decimal.NewFromFloat(v).Div(decimal.NewFromInt(100))
}

// psqBasisAmount returns the pay basis the PSQ rate applies to. The total-pay
// basis is base plus the positive incentive; the PSQ amount itself and
// file-supplied incentives are excluded to keep the rate non-circular.
func psqBasisAmount(basis PSQBasis, base, incentive decimal.Decimal) decimal.Decimal {
	if basis == PSQBasisTotalPay {
		return base.Add(positivePart(incentive))
	}
	return base
}

func bandPercentile(b Band, v decimal.Decimal) *float64 {
	if b.IsZero() {
		return nil
	}
	pct := b.ClampedPercentileOfValue(v.InexactFloat64())
	return &pct
}

// safeDiv divides guarding the zero-denominator hazards the engine must not
// propagate: the result short-circuits to zero instead of NaN/Infinity.
func safeDiv(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}

func positivePart(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}

func clampMoney(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v.Round(2)
}

func clampMoneyRate(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}

func clampWRVU(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v.Round(2)
}

// splitWRVUs normalizes the baseline productivity split: outside is clamped
// to total, both floored at zero.
func splitWRVUs(total, outside decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if total.IsNegative() {
		total = decimal.Zero
	}
	if outside.IsNegative() {
		outside = decimal.Zero
	}
	if outside.GreaterThan(total) {
		outside = total
	}
	return total, outside
}
