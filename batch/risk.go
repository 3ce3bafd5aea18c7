/*
risk.go - FMV risk flags on batch result rows

PURPOSE:
  Reviewers scan batch output for rows worth a second look. The driver tags
  those rows with coarse flags; the engine stays pure and flag-free.

FLAGS:
  no_benchmark          No market row matched; percentile fields are absent
  tcc_above_p90         Modeled TCC sits above the 90th market percentile
  rate_above_cf_p90     Imputed modeled $/wRVU exceeds the CF band's p90
  pay_productivity_gap  Modeled TCC percentile exceeds the wRVU percentile
                        by more than the alignment threshold

  Flags are advisory. Nothing blocks a run or a result row.
*/
package batch

import (
	"github.com/shopspring/decimal"

	"github.com/warp/comp-engine/engine"
	"github.com/warp/comp-engine/market"
)

const (
	FlagNoBenchmark        = "no_benchmark"
	FlagTCCAboveP90        = "tcc_above_p90"
	FlagRateAboveCFP90     = "rate_above_cf_p90"
	FlagPayProductivityGap = "pay_productivity_gap"
)

// alignmentGapThreshold is the percentile-point spread between modeled TCC
// and wRVU position beyond which a row is flagged.
const alignmentGapThreshold = 15.0

// assessRisk derives the advisory flag set for one result row.
func assessRisk(res engine.ScenarioResults, row *engine.MarketRow, status market.MatchStatus) []string {
	var flags []string

	if status == market.StatusMissing || row == nil {
		return append(flags, FlagNoBenchmark)
	}

	if res.ModeledTCCPercentile != nil && *res.ModeledTCCPercentile >= 90 {
		flags = append(flags, FlagTCCAboveP90)
	}

	if !row.CF.IsZero() && res.ImputedTCCPerWRVUModeled.IsPositive() {
		p90 := decimal.NewFromFloat(row.CF.P90)
		if res.ImputedTCCPerWRVUModeled.GreaterThan(p90) {
			flags = append(flags, FlagRateAboveCFP90)
		}
	}

	if res.AlignmentGapModeled != nil && *res.AlignmentGapModeled > alignmentGapThreshold {
		flags = append(flags, FlagPayProductivityGap)
	}

	return flags
}
