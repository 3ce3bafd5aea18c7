package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/warp/comp-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func dp(v float64) *decimal.Decimal {
	x := decimal.NewFromFloat(v)
	return &x
}

func fp(v float64) *float64 { return &v }

func testProvider() engine.ProviderRow {
	return engine.ProviderRow{
		ProviderID:   "prov-001",
		ProviderName: "Dana Osei",
		Specialty:    "Cardiology",
		ProviderType: "Physician",
		BaseSalary:   d(200000),
		TotalWRVUs:   d(4500),
	}
}

func testMarket() engine.MarketRow {
	return engine.MarketRow{
		Specialty:    "Cardiology",
		ProviderType: "Physician",
		Region:       "National",
		TCC:          engine.Band{P25: 380000, P50: 455000, P75: 540000, P90: 635000},
		WRVU:         engine.Band{P25: 4200, P50: 5100, P75: 6300, P90: 7400},
		CF:           engine.Band{P25: 40, P50: 50, P75: 60, P90: 70},
	}
}

func eq(t *testing.T, name string, got, want decimal.Decimal) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

// =============================================================================
// CORE SCENARIO TESTS
// =============================================================================

func TestEvaluate_MedianCFTarget(t *testing.T) {
	// GIVEN: $200k clinical base, CF band 40/50/60/70, median CF target,
	//        5000 modeled wRVUs
	// THEN: CF=50, threshold=4000, 1000 wRVUs above, $50k incentive,
	//       modeled TCC = 200k + 50k + psq

	p := testProvider()
	m := testMarket()
	in := engine.ScenarioInputs{
		ProposedCFPercentile: fp(50),
		ModeledWRVUs:         dp(5000),
		PSQPercent:           fp(5),
		Basis:                engine.PSQBasisBaseSalary,
	}

	res := engine.Evaluate(p, &m, in)

	eq(t, "ModeledCF", res.ModeledCF, d(50))
	eq(t, "AnnualThreshold", res.AnnualThreshold, d(4000))
	eq(t, "WRVUsAboveThreshold", res.WRVUsAboveThreshold, d(1000))
	eq(t, "AnnualIncentive", res.AnnualIncentive, d(50000))
	eq(t, "PSQDollars", res.PSQDollars, d(10000)) // 5% of 200k base
	eq(t, "ModeledTCC", res.ModeledTCC, d(260000))
}

func TestEvaluate_OverrideCFWinsOverPercentile(t *testing.T) {
	// An explicit override beats the target percentile regardless of its value.
	p := testProvider()
	m := testMarket()
	in := engine.ScenarioInputs{
		CFSrc:                engine.CFSourceOverride,
		OverrideCF:           dp(55),
		ProposedCFPercentile: fp(90), // would be 70 on the band
	}

	res := engine.Evaluate(p, &m, in)
	eq(t, "ModeledCF", res.ModeledCF, d(55))
}

func TestEvaluate_OverrideSourceWithoutValue_FallsThrough(t *testing.T) {
	// cf_source=override with no override value set: the percentile applies.
	p := testProvider()
	m := testMarket()
	in := engine.ScenarioInputs{
		CFSrc:                engine.CFSourceOverride,
		ProposedCFPercentile: fp(75),
	}

	res := engine.Evaluate(p, &m, in)
	eq(t, "ModeledCF", res.ModeledCF, d(60))
}

func TestEvaluate_ZeroCF_NoDivideByZero(t *testing.T) {
	// GIVEN: modeled CF forced to zero
	// THEN: threshold and modeled imputed ratio short-circuit to zero
	p := testProvider()
	m := testMarket()
	in := engine.ScenarioInputs{
		CFSrc:      engine.CFSourceOverride,
		OverrideCF: dp(0),
	}

	res := engine.Evaluate(p, &m, in)

	eq(t, "AnnualThreshold", res.AnnualThreshold, decimal.Zero)
	eq(t, "AnnualIncentive", res.AnnualIncentive, decimal.Zero)
	eq(t, "ImputedTCCPerWRVUModeled", res.ImputedTCCPerWRVUModeled, decimal.Zero)
}

func TestEvaluate_NegativeIncentive_ExcludedFromTCC(t *testing.T) {
	// GIVEN: productivity below threshold (3000 wRVUs, threshold 4000)
	// THEN: the negative incentive is reported but not summed into TCC
	p := testProvider()
	m := testMarket()
	in := engine.ScenarioInputs{
		ProposedCFPercentile: fp(50), // CF 50, threshold 4000
		ModeledWRVUs:         dp(3000),
		PSQPercent:           fp(10),
	}

	res := engine.Evaluate(p, &m, in)

	eq(t, "AnnualIncentive", res.AnnualIncentive, d(-50000))
	// TCC = base + 0 + psq(10% of 200k) + quality + other
	eq(t, "ModeledTCC", res.ModeledTCC, d(220000))
}

func TestEvaluate_FileTCCPreferredOverComponentSum(t *testing.T) {
	// The uploaded TCC figure is authoritative even when the components
	// disagree; the result is flagged, not reconciled.
	p := testProvider()
	fileTCC := d(999999)
	p.CurrentTCC = &fileTCC

	res := engine.Evaluate(p, nil, engine.ScenarioInputs{})

	eq(t, "CurrentTCC", res.CurrentTCC, d(999999))
	if !res.CurrentTCCFromFile {
		t.Error("expected CurrentTCCFromFile flag")
	}
}

func TestEvaluate_BasePayComponentsWinOverFlatSalary(t *testing.T) {
	p := testProvider()
	p.BaseSalary = d(1) // stale flat figure
	p.BasePayComponents = []engine.PayComponent{
		{Label: "Clinical", Amount: d(180000)},
		{Label: "Medical Directorship", Amount: d(30000)},
	}

	res := engine.Evaluate(p, nil, engine.ScenarioInputs{
		CFSrc:      engine.CFSourceOverride,
		OverrideCF: dp(50),
	})

	// Clinical base 180k drives the threshold; non-clinical 30k stays in base.
	eq(t, "AnnualThreshold", res.AnnualThreshold, d(3600))
}

func TestEvaluate_PSQBasisTotalPay(t *testing.T) {
	// total_pay basis includes the positive incentive, not the PSQ itself.
	p := testProvider()
	m := testMarket()
	in := engine.ScenarioInputs{
		ProposedCFPercentile: fp(50),
		ModeledWRVUs:         dp(5000),
		PSQPercent:           fp(10),
		Basis:                engine.PSQBasisTotalPay,
	}

	res := engine.Evaluate(p, &m, in)

	// basis = 200k base + 50k incentive; psq = 25k
	eq(t, "PSQDollars", res.PSQDollars, d(25000))
	eq(t, "ModeledTCC", res.ModeledTCC, d(275000))
}

func TestEvaluate_WRVUSplitInvariant(t *testing.T) {
	cases := []struct {
		name string
		in   engine.ScenarioInputs
	}{
		{"other exceeds total", engine.ScenarioInputs{
			ModeledWRVUs:      dp(4000),
			ModeledOtherWRVUs: dp(9000),
		}},
		{"work override with total", engine.ScenarioInputs{
			ModeledWRVUs:     dp(5000),
			ModeledWorkWRVUs: dp(4200),
		}},
		{"work override without total", engine.ScenarioInputs{
			ModeledWorkWRVUs:  dp(4200),
			ModeledOtherWRVUs: dp(300),
		}},
		{"negative override clamps", engine.ScenarioInputs{
			ModeledWRVUs: dp(-50),
		}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := testProvider()
			m := testMarket()
			res := engine.Evaluate(p, &m, c.in)
			if res.TotalWRVUs.IsNegative() {
				t.Errorf("total wRVUs negative: %s", res.TotalWRVUs)
			}
		})
	}
}

func TestEvaluate_NoMarketRow_PercentilesOmitted(t *testing.T) {
	p := testProvider()

	res := engine.Evaluate(p, nil, engine.ScenarioInputs{})

	if res.TCCPercentile != nil || res.ModeledTCCPercentile != nil ||
		res.WRVUPercentile != nil || res.CFPercentileCurrent != nil ||
		res.CFPercentileModeled != nil || res.AlignmentGapModeled != nil {
		t.Error("percentile fields must be nil without a market match")
	}
}

func TestEvaluate_EmptyBand_PercentileOmitted(t *testing.T) {
	p := testProvider()
	m := testMarket()
	m.WRVU = engine.Band{} // survey had no productivity data

	res := engine.Evaluate(p, &m, engine.ScenarioInputs{})

	if res.WRVUPercentile != nil {
		t.Error("empty band must not produce a percentile")
	}
	if res.TCCPercentile == nil {
		t.Error("populated TCC band should still produce a percentile")
	}
}

func TestEvaluate_AllZeroProvider_FullyDefined(t *testing.T) {
	// A provider row with every numeric field missing must still produce a
	// fully-defined result: zeros and omitted percentiles, never a panic.
	res := engine.Evaluate(engine.ProviderRow{ProviderName: "Empty Row"}, nil, engine.ScenarioInputs{})

	eq(t, "CurrentTCC", res.CurrentTCC, decimal.Zero)
	eq(t, "ModeledTCC", res.ModeledTCC, decimal.Zero)
	eq(t, "AnnualThreshold", res.AnnualThreshold, decimal.Zero)
	eq(t, "ImputedTCCPerWRVUCurrent", res.ImputedTCCPerWRVUCurrent, decimal.Zero)
}

func TestEvaluate_Idempotent(t *testing.T) {
	// Pure function property: no counters or timestamps leak into results.
	p := testProvider()
	m := testMarket()
	in := engine.ScenarioInputs{
		ProposedCFPercentile: fp(62),
		ModeledWRVUs:         dp(5250.75),
		PSQPercent:           fp(7.5),
		Basis:                engine.PSQBasisTotalPay,
	}

	a := engine.Evaluate(p, &m, in)
	b := engine.Evaluate(p, &m, in)

	eq(t, "ModeledTCC", a.ModeledTCC, b.ModeledTCC)
	eq(t, "ChangeInTCC", a.ChangeInTCC, b.ChangeInTCC)
	if (a.ModeledTCCPercentile == nil) != (b.ModeledTCCPercentile == nil) {
		t.Fatal("percentile presence differs between identical runs")
	}
	if a.ModeledTCCPercentile != nil && *a.ModeledTCCPercentile != *b.ModeledTCCPercentile {
		t.Error("percentiles differ between identical runs")
	}
}

func TestEvaluate_AlignmentGap(t *testing.T) {
	// Gap = modeled TCC percentile - wRVU percentile.
	p := testProvider()
	m := testMarket()
	in := engine.ScenarioInputs{
		ProposedCFPercentile: fp(50),
		ModeledWRVUs:         dp(5100), // exactly the 50th wRVU anchor
	}

	res := engine.Evaluate(p, &m, in)

	if res.AlignmentGapModeled == nil {
		t.Fatal("expected alignment gap with full market data")
	}
	want := *res.ModeledTCCPercentile - *res.WRVUPercentile
	if *res.AlignmentGapModeled != want {
		t.Errorf("gap = %v, want %v", *res.AlignmentGapModeled, want)
	}
}

func TestEvaluate_ChangeInTCC(t *testing.T) {
	p := testProvider()
	m := testMarket()
	in := engine.ScenarioInputs{
		ProposedCFPercentile: fp(50),
		ModeledWRVUs:         dp(5000),
	}

	res := engine.Evaluate(p, &m, in)

	eq(t, "ChangeInTCC", res.ChangeInTCC, res.ModeledTCC.Sub(res.CurrentTCC))
}
