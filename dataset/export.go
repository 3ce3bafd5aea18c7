/*
export.go - Batch result export as CSV

PURPOSE:
  Writes a completed batch run as a CSV download. Output targets Excel: a
  UTF-8 BOM up front, money to two decimals, percentiles to one.

SEE ALSO:
  - batch: The RowResult shape being exported
*/
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/comp-engine/batch"
)

// BOM is written before the header so Excel detects UTF-8.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// resultColumns defines the export header row (20 columns).
var resultColumns = []string{
	"Provider ID",
	"Provider Name",
	"Specialty",
	"Scenario",
	"Match Status",
	"Current TCC",
	"Modeled TCC",
	"Change In TCC",
	"Current CF",
	"Modeled CF",
	"Annual Threshold",
	"wRVUs Above Threshold",
	"Annual Incentive",
	"PSQ Dollars",
	"Total wRVUs",
	"Current TCC Percentile",
	"Modeled TCC Percentile",
	"wRVU Percentile",
	"Alignment Gap",
	"Risk Flags",
}

// ResultWriter streams batch result rows as CSV.
type ResultWriter struct {
	csv *csv.Writer
}

// NewResultWriter writes the BOM and returns a writer ready for rows.
func NewResultWriter(w io.Writer) (*ResultWriter, error) {
	if _, err := w.Write(BOM); err != nil {
		return nil, err
	}
	rw := &ResultWriter{csv: csv.NewWriter(w)}
	if err := rw.csv.Write(resultColumns); err != nil {
		return nil, err
	}
	return rw, nil
}

// WriteResults appends one CSV row per result row.
func (rw *ResultWriter) WriteResults(rows []batch.RowResult) error {
	for i := range rows {
		if err := rw.csv.Write(resultToRecord(&rows[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer and returns its error.
func (rw *ResultWriter) Flush() error {
	rw.csv.Flush()
	return rw.csv.Error()
}

func resultToRecord(row *batch.RowResult) []string {
	res := row.Results
	return []string{
		row.ProviderID,
		row.ProviderName,
		row.Specialty,
		row.ScenarioName,
		string(row.MatchStatus),
		formatMoney(res.CurrentTCC),
		formatMoney(res.ModeledTCC),
		formatMoney(res.ChangeInTCC),
		formatMoney(res.CurrentCF),
		formatMoney(res.ModeledCF),
		formatQty(res.AnnualThreshold),
		formatQty(res.WRVUsAboveThreshold),
		formatMoney(res.AnnualIncentive),
		formatMoney(res.PSQDollars),
		formatQty(res.TotalWRVUs),
		formatPct(res.TCCPercentile),
		formatPct(res.ModeledTCCPercentile),
		formatPct(res.WRVUPercentile),
		formatPct(res.AlignmentGapModeled),
		strings.Join(row.RiskFlags, "; "),
	}
}

func formatMoney(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func formatQty(v decimal.Decimal) string {
	return v.StringFixed(2)
}

// formatPct renders a percentile to one decimal; absent market data exports
// as an empty cell, not a zero.
func formatPct(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// ExportFilename builds a Content-Disposition filename for a run export.
func ExportFilename(runID string) string {
	id := nonAlphanumeric.ReplaceAllString(runID, "_")
	if len(id) > 40 {
		id = id[:40]
	}
	return fmt.Sprintf("batch_%s_%s.csv", id, time.Now().Format("2006-01-02"))
}
