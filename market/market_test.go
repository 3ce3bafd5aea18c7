package market_test

import (
	"testing"

	"github.com/warp/comp-engine/engine"
	"github.com/warp/comp-engine/market"
)

func benchRows() []engine.MarketRow {
	return []engine.MarketRow{
		{Specialty: "Cardiology", ProviderType: "Physician", Region: "National",
			CF: engine.Band{P25: 40, P50: 50, P75: 60, P90: 70}},
		{Specialty: "Cardiology", ProviderType: "APP", Region: "National",
			CF: engine.Band{P25: 30, P50: 35, P75: 40, P90: 45}},
		{Specialty: "Family Medicine", ProviderType: "Physician", Region: "National",
			CF: engine.Band{P25: 38, P50: 44, P75: 50, P90: 58}},
	}
}

func TestMatch_DirectWithProviderType(t *testing.T) {
	c := market.NewCatalog(benchRows(), nil)

	row, status := c.Match(engine.ProviderRow{Specialty: "Cardiology", ProviderType: "APP"})

	if status != market.StatusMatched {
		t.Fatalf("status = %s, want matched", status)
	}
	if row.CF.P50 != 35 {
		t.Errorf("matched the wrong provider-type row: %+v", row)
	}
}

func TestMatch_FallsBackAcrossProviderType(t *testing.T) {
	c := market.NewCatalog(benchRows(), nil)

	// No "Locum" benchmark exists; any Cardiology row still beats no match.
	row, status := c.Match(engine.ProviderRow{Specialty: "Cardiology", ProviderType: "Locum"})

	if status != market.StatusMatched || row == nil {
		t.Fatalf("expected specialty-level fallback, got %s", status)
	}
}

func TestMatch_NormalizesSpelling(t *testing.T) {
	c := market.NewCatalog(benchRows(), nil)

	row, status := c.Match(engine.ProviderRow{Specialty: "  family   MEDICINE ", ProviderType: "Physician"})

	if status != market.StatusMatched || row == nil {
		t.Fatalf("normalization should make these equal, got %s", status)
	}
}

func TestMatch_ViaSynonym(t *testing.T) {
	syn := market.NewSynonymMap(map[string]string{
		"Cardiovascular Disease": "Cardiology",
	})
	c := market.NewCatalog(benchRows(), syn)

	row, status := c.Match(engine.ProviderRow{
		Specialty:    "cardiovascular disease",
		ProviderType: "Physician",
	})

	if status != market.StatusSynonym {
		t.Fatalf("status = %s, want synonym", status)
	}
	if row.CF.P50 != 50 {
		t.Errorf("synonym should land on the Physician Cardiology row: %+v", row)
	}
}

func TestMatch_Missing(t *testing.T) {
	c := market.NewCatalog(benchRows(), nil)

	cases := []engine.ProviderRow{
		{Specialty: "Dermatology"},
		{Specialty: ""},
	}
	for _, p := range cases {
		row, status := c.Match(p)
		if status != market.StatusMissing || row != nil {
			t.Errorf("%q: expected missing/nil, got %s/%v", p.Specialty, status, row)
		}
	}
}

func TestSynonymMap_DropsDegenerateEntries(t *testing.T) {
	syn := market.NewSynonymMap(map[string]string{
		"Cardiology": "cardiology", // self-referential after normalization
		"":           "Cardiology",
		"Heme/Onc":   "",
		"CV Disease": "Cardiology",
	})

	if len(syn) != 1 {
		t.Fatalf("expected only the real alias to survive, got %d entries", len(syn))
	}
	if got, ok := syn.Resolve("cv disease"); !ok || got != "cardiology" {
		t.Errorf("Resolve = %q/%v", got, ok)
	}
}

func TestCatalog_DuplicateRows_FirstWins(t *testing.T) {
	rows := []engine.MarketRow{
		{Specialty: "Cardiology", ProviderType: "Physician",
			CF: engine.Band{P25: 1, P50: 2, P75: 3, P90: 4}},
		{Specialty: "Cardiology", ProviderType: "Physician",
			CF: engine.Band{P25: 9, P50: 9, P75: 9, P90: 9}},
	}
	c := market.NewCatalog(rows, nil)

	row, _ := c.Match(engine.ProviderRow{Specialty: "Cardiology", ProviderType: "Physician"})
	if row.CF.P50 != 2 {
		t.Errorf("upload order should win on duplicates, got %+v", row)
	}
}
