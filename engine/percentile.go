/*
percentile.go - Four-point benchmark band interpolation

PURPOSE:
  Maps a scalar value to the market percentile it would occupy, and back,
  against a 25/50/75/90 benchmark band. This is the leaf utility every
  percentile field in ScenarioResults is computed with.

ALGORITHM:
  Piecewise-linear interpolation between consecutive anchors:
    [p25,p50] -> 25..50, [p50,p75] -> 50..75, [p75,p90] -> 75..90
  Values below p25 extrapolate backward using the 25-50 segment's slope;
  values above p90 extrapolate forward using the 75-90 segment's slope.
  Degenerate segments (equal anchors) return the segment's fixed percentile
  endpoint instead of dividing by zero.

ROUND-TRIP PROPERTY:
  For monotonic bands, PercentileOfValue and ValueAtPercentile are exact
  inverses for values strictly inside (p25, p90), within float tolerance.

CLAMPING:
  PercentileOfValue is unclamped: callers that present percentiles clamp to
  [0,100]. ValueAtPercentile clamps its input percentile to [0,100] because
  scenario inputs target a real market position.

SEE ALSO:
  - scenario.go: The only internal consumer
*/
package engine

import "math"

// segment anchors shared by both directions of the map.
type bandSegment struct {
	loPct, hiPct float64
	loVal, hiVal float64
}

func (b Band) segments() [3]bandSegment {
	return [3]bandSegment{
		{25, 50, b.P25, b.P50},
		{50, 75, b.P50, b.P75},
		{75, 90, b.P75, b.P90},
	}
}

// PercentileOfValue returns the percentile position v would occupy on the
// band. The result is unclamped: extrapolation below p25 or above p90 can
// produce values outside [0,100].
func (b Band) PercentileOfValue(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	segs := b.segments()

	// Inside one of the three segments.
	for _, s := range segs {
		if v >= s.loVal && v <= s.hiVal {
			if s.hiVal == s.loVal {
				return s.loPct
			}
			frac := (v - s.loVal) / (s.hiVal - s.loVal)
			return s.loPct + frac*(s.hiPct-s.loPct)
		}
	}

	// Below p25: extrapolate with the 25-50 slope.
	if v < b.P25 {
		s := segs[0]
		if s.hiVal == s.loVal {
			return s.loPct
		}
		slope := (s.hiPct - s.loPct) / (s.hiVal - s.loVal)
		return s.loPct + (v-s.loVal)*slope
	}

	// Above p90: extrapolate with the 75-90 slope.
	s := segs[2]
	if s.hiVal == s.loVal {
		return s.hiPct
	}
	slope := (s.hiPct - s.loPct) / (s.hiVal - s.loVal)
	return s.hiPct + (v-s.hiVal)*slope
}

// ValueAtPercentile evaluates the same piecewise-linear map in reverse:
// the dollar (or wRVU) value at a target market percentile. The input
// percentile is clamped to [0,100] before evaluation.
func (b Band) ValueAtPercentile(pct float64) float64 {
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		pct = 0
	}
	pct = clampPct(pct)
	segs := b.segments()

	for _, s := range segs {
		if pct >= s.loPct && pct <= s.hiPct {
			frac := (pct - s.loPct) / (s.hiPct - s.loPct)
			return s.loVal + frac*(s.hiVal-s.loVal)
		}
	}

	// pct < 25: extrapolate backward with the 25-50 slope.
	if pct < 25 {
		s := segs[0]
		slope := (s.hiVal - s.loVal) / (s.hiPct - s.loPct)
		return s.loVal + (pct-s.loPct)*slope
	}

	// pct > 90: extrapolate forward with the 75-90 slope.
	s := segs[2]
	slope := (s.hiVal - s.loVal) / (s.hiPct - s.loPct)
	return s.hiVal + (pct-s.hiPct)*slope
}

// ClampedPercentileOfValue maps a value to its percentile and clamps the
// result to [0,100] for display.
func (b Band) ClampedPercentileOfValue(v float64) float64 {
	return clampPct(b.PercentileOfValue(v))
}

func clampPct(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
