package engine_test

import (
	"math"
	"testing"

	"github.com/warp/comp-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func cfBand() engine.Band {
	return engine.Band{P25: 40, P50: 50, P75: 60, P90: 70}
}

func tccBand() engine.Band {
	return engine.Band{P25: 380000, P50: 455000, P75: 540000, P90: 635000}
}

// =============================================================================
// INTERPOLATION TESTS
// =============================================================================

func TestPercentileOfValue_AtAnchors(t *testing.T) {
	b := cfBand()

	cases := []struct {
		value float64
		want  float64
	}{
		{40, 25},
		{50, 50},
		{60, 75},
		{70, 90},
	}
	for _, c := range cases {
		got := b.PercentileOfValue(c.value)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("PercentileOfValue(%v) = %v, want %v", c.value, got, c.want)
		}
	}
}

func TestPercentileOfValue_MidSegment(t *testing.T) {
	b := cfBand()

	// Halfway between the 50th and 75th anchors.
	got := b.PercentileOfValue(55)
	if math.Abs(got-62.5) > 1e-9 {
		t.Errorf("expected 62.5, got %v", got)
	}
}

func TestPercentileOfValue_ExtrapolatesBelowP25(t *testing.T) {
	b := cfBand()

	// 25-50 segment slope: 25 percentile points per $10, so $35 sits at 12.5.
	got := b.PercentileOfValue(35)
	if math.Abs(got-12.5) > 1e-9 {
		t.Errorf("expected 12.5, got %v", got)
	}
}

func TestPercentileOfValue_ExtrapolatesAboveP90(t *testing.T) {
	b := cfBand()

	// 75-90 segment slope: 15 percentile points per $10, so $80 sits at 105.
	got := b.PercentileOfValue(80)
	if math.Abs(got-105) > 1e-9 {
		t.Errorf("expected 105, got %v", got)
	}
}

func TestClampedPercentile_StaysInRange(t *testing.T) {
	b := cfBand()

	if got := b.ClampedPercentileOfValue(1000); got != 100 {
		t.Errorf("expected clamp to 100, got %v", got)
	}
	if got := b.ClampedPercentileOfValue(-1000); got != 0 {
		t.Errorf("expected clamp to 0, got %v", got)
	}
}

func TestValueAtPercentile_AtAnchors(t *testing.T) {
	b := tccBand()

	cases := []struct {
		pct  float64
		want float64
	}{
		{25, 380000},
		{50, 455000},
		{75, 540000},
		{90, 635000},
	}
	for _, c := range cases {
		got := b.ValueAtPercentile(c.pct)
		if math.Abs(got-c.want) > 1e-6 {
			t.Errorf("ValueAtPercentile(%v) = %v, want %v", c.pct, got, c.want)
		}
	}
}

func TestValueAtPercentile_ClampsInput(t *testing.T) {
	b := cfBand()

	// 150 clamps to 100: ten points beyond the 90th anchor on the 75-90 slope.
	want := 70 + 10*(10.0/15.0)
	if got := b.ValueAtPercentile(150); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %v at clamped 100th, got %v", want, got)
	}
}

func TestDegenerateSegment_NoDivideByZero(t *testing.T) {
	// Flat 25-50 segment: every value on it maps to the segment's fixed
	// endpoint, and values below extrapolate to the same endpoint.
	b := engine.Band{P25: 50, P50: 50, P75: 60, P90: 70}

	if got := b.PercentileOfValue(50); got != 25 {
		t.Errorf("flat segment should return its low endpoint, got %v", got)
	}
	if got := b.PercentileOfValue(10); got != 25 {
		t.Errorf("below a flat first segment should return 25, got %v", got)
	}

	// Fully flat band.
	flat := engine.Band{P25: 55, P50: 55, P75: 55, P90: 55}
	got := flat.PercentileOfValue(55)
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Errorf("flat band must not produce NaN/Inf, got %v", got)
	}
}

// =============================================================================
// PROPERTY TESTS
// =============================================================================

func TestRoundTrip_InsideBand(t *testing.T) {
	// valueAtPercentile(percentileOfValue(v)) == v for v strictly inside
	// (p25, p90), within float tolerance.
	bands := []engine.Band{
		cfBand(),
		tccBand(),
		{P25: 4200, P50: 5100, P75: 6300, P90: 7400},
		{P25: 40, P50: 40, P75: 60, P90: 70}, // flat first segment
	}

	for _, b := range bands {
		for v := b.P25 + 0.5; v < b.P90; v += (b.P90 - b.P25) / 37 {
			pct := b.PercentileOfValue(v)
			back := b.ValueAtPercentile(pct)
			if math.Abs(back-v) > 1e-6 {
				t.Fatalf("round-trip failed for %v on %+v: pct=%v back=%v", v, b, pct, back)
			}
		}
	}
}

func TestMonotonicity(t *testing.T) {
	// v1 < v2 implies percentile(v1) <= percentile(v2).
	b := tccBand()

	prev := math.Inf(-1)
	for v := 300000.0; v <= 700000; v += 3500 {
		got := b.PercentileOfValue(v)
		if got < prev {
			t.Fatalf("monotonicity violated at %v: %v < %v", v, got, prev)
		}
		prev = got
	}
}
