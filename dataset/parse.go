/*
Package dataset ingests and exports provider and benchmark files.

PURPOSE:
  The modeler is fed by compensation spreadsheets exported from payroll and
  survey systems. This package turns those files (CSV or XLSX) into
  ProviderRow/MarketRow slices and writes result exports back out.

KEY CONCEPTS IN THIS FILE (parse.go):
  - Row: One data row keyed by normalized header name
  - Header normalization: "Total wRVUs", "total_wrvus" and "TOTAL WRVUS"
    all address the same column
  - Lenient numerics: "$1,234.50", "(500)", "12%", "" and "n/a" all parse;
    anything unparseable resolves to zero rather than failing the upload

COLUMN ALIASES:
  Real exports never agree on header names, so each logical field carries a
  small alias list ("provider" / "provider name" / "name"). First populated
  alias wins.

SEE ALSO:
  - csv.go, xlsx.go: File decoding into Rows
  - export.go: Batch result export
*/
package dataset

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/comp-engine/engine"
)

// Row is one data row keyed by normalized header name.
type Row map[string]string

// NormalizeHeader lowercases and strips everything but letters and digits so
// header spelling variants collapse to one key.
func NormalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// get returns the first populated value among the aliases.
func (r Row) get(aliases ...string) string {
	for _, a := range aliases {
		if v, ok := r[a]; ok {
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// =============================================================================
// LENIENT NUMERIC PARSING
// =============================================================================

// ParseNumber parses a spreadsheet numeric cell. Currency symbols, thousands
// separators and a trailing percent sign are stripped; accounting-style
// parentheses mean negative. Empty or unparseable cells resolve to zero.
func ParseNumber(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}

	s = strings.TrimSuffix(s, "%")
	s = strings.Map(func(r rune) rune {
		switch r {
		case '$', ',', ' ':
			return -1
		}
		return r
	}, s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if neg {
		return d.Neg()
	}
	return d
}

func parseFloat(s string) float64 {
	f, _ := ParseNumber(s).Float64()
	return f
}

// =============================================================================
// ROW -> DOMAIN MAPPING
// =============================================================================

// ProviderFromRow maps a normalized-header row onto a ProviderRow.
func ProviderFromRow(r Row) engine.ProviderRow {
	p := engine.ProviderRow{
		ProviderID:      r.get("providerid", "id", "employeeid"),
		ProviderName:    r.get("providername", "provider", "name"),
		Specialty:       r.get("specialty", "specialtyname"),
		Division:        r.get("division", "department"),
		ProviderType:    r.get("providertype", "type"),
		BaseSalary:      ParseNumber(r.get("basesalary", "basepay", "salary")),
		NonClinicalPay:  ParseNumber(r.get("nonclinicalpay", "nonclinical", "adminpay")),
		TotalWRVUs:      ParseNumber(r.get("totalwrvus", "wrvus", "totalrvus")),
		OutsideWRVUs:    ParseNumber(r.get("outsidewrvus", "otherwrvus", "nonworkwrvus")),
		QualityPayments: ParseNumber(r.get("qualitypayments", "quality", "psqpayments")),
		OtherIncentives: ParseNumber(r.get("otherincentives", "otherpay", "otherincentive")),
		CurrentCF:       ParseNumber(r.get("currentcf", "cf", "conversionfactor")),
	}

	if s := r.get("currenttcc", "tcc", "totalcashcompensation"); s != "" {
		tcc := ParseNumber(s)
		if !tcc.IsZero() {
			p.CurrentTCC = &tcc
		}
	}

	// Optional labeled base components (e.g. "Component: Clinical").
	for key, val := range r {
		label, ok := strings.CutPrefix(key, "component")
		if !ok || label == "" {
			continue
		}
		amt := ParseNumber(val)
		if amt.IsZero() {
			continue
		}
		p.BasePayComponents = append(p.BasePayComponents, engine.PayComponent{
			Label:  componentLabel(label),
			Amount: amt,
		})
	}

	return p
}

// componentLabel restores a display label from a normalized component key.
func componentLabel(key string) string {
	switch key {
	case "clinical", "clinicalbase":
		return "Clinical"
	}
	return strings.ToUpper(key[:1]) + key[1:]
}

// MarketFromRow maps a normalized-header row onto a MarketRow.
func MarketFromRow(r Row) engine.MarketRow {
	return engine.MarketRow{
		Specialty:    r.get("specialty", "specialtyname"),
		ProviderType: r.get("providertype", "type"),
		Region:       r.get("region", "geography"),
		TCC: engine.Band{
			P25: parseFloat(r.get("tcc25", "tcc25th", "tccp25")),
			P50: parseFloat(r.get("tcc50", "tcc50th", "tccp50", "tccmedian")),
			P75: parseFloat(r.get("tcc75", "tcc75th", "tccp75")),
			P90: parseFloat(r.get("tcc90", "tcc90th", "tccp90")),
		},
		WRVU: engine.Band{
			P25: parseFloat(r.get("wrvu25", "wrvu25th", "wrvup25")),
			P50: parseFloat(r.get("wrvu50", "wrvu50th", "wrvup50", "wrvumedian")),
			P75: parseFloat(r.get("wrvu75", "wrvu75th", "wrvup75")),
			P90: parseFloat(r.get("wrvu90", "wrvu90th", "wrvup90")),
		},
		CF: engine.Band{
			P25: parseFloat(r.get("cf25", "cf25th", "cfp25")),
			P50: parseFloat(r.get("cf50", "cf50th", "cfp50", "cfmedian")),
			P75: parseFloat(r.get("cf75", "cf75th", "cfp75")),
			P90: parseFloat(r.get("cf90", "cf90th", "cfp90")),
		},
	}
}

// Providers converts parsed rows, skipping rows with no identity at all.
func Providers(rows []Row) []engine.ProviderRow {
	out := make([]engine.ProviderRow, 0, len(rows))
	for _, r := range rows {
		p := ProviderFromRow(r)
		if p.ID() == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// MarketRows converts parsed rows, skipping rows with no specialty.
func MarketRows(rows []Row) []engine.MarketRow {
	out := make([]engine.MarketRow, 0, len(rows))
	for _, r := range rows {
		m := MarketFromRow(r)
		if m.Specialty == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}
