/*
demo.go - Demo dataset loaders for testing and demonstrations

PURPOSE:

	Provides pre-built datasets that populate the database with realistic
	data for testing and demos. Each dataset creates providers, benchmark
	rows, synonyms and scenarios that demonstrate specific features.

AVAILABLE DATASETS:

	cardiology-group: Small single-specialty roster, clean benchmark match
	multispecialty:   Mixed roster with synonym matches and a missing
	                  benchmark, for exercising match statuses and risk flags

HOW LOADERS WORK:
 1. Reset database (clear all data)
 2. Save providers and benchmark rows
 3. Save the synonym table
 4. Save scenarios from the built-in presets

USAGE VIA API:

	POST /api/demo/load
	{"dataset_id": "multispecialty"}

NOTE:

	Loaders reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: The rest of the API surface
  - preset: The scenario templates being saved
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/comp-engine/engine"
	"github.com/warp/comp-engine/preset"
	"github.com/warp/comp-engine/store/sqlite"
)

// =============================================================================
// DATASET CATALOG
// =============================================================================

// DemoDataset describes one loadable dataset.
type DemoDataset struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var demoDatasets = []DemoDataset{
	{
		ID:          "cardiology-group",
		Name:        "Cardiology Group",
		Description: "Four cardiologists against a national benchmark; every row matches directly",
	},
	{
		ID:          "multispecialty",
		Name:        "Multispecialty Clinic",
		Description: "Mixed roster exercising synonym matches, a missing benchmark, and FMV flags",
	},
}

// LoadDemoRequest selects the dataset to load.
type LoadDemoRequest struct {
	DatasetID string `json:"dataset_id"`
}

// ListDemoDatasets handles GET /api/demo.
func (h *Handler) ListDemoDatasets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, demoDatasets)
}

// LoadDemoDataset handles POST /api/demo/load.
func (h *Handler) LoadDemoDataset(w http.ResponseWriter, r *http.Request) {
	var req LoadDemoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.DatasetID == "" {
		req.DatasetID = "cardiology-group"
	}
	if err := h.LoadDemo(r.Context(), req.DatasetID); err != nil {
		if errors.Is(err, errUnknownDataset) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown dataset %q", req.DatasetID), nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load dataset", err)
		return
	}

	log.Printf("[Demo] Loaded dataset %s", req.DatasetID)
	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.DatasetID})
}

// ResetDatabase handles POST /api/reset.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	log.Println("[Demo] Database reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// DATASET LOADERS
// =============================================================================

var errUnknownDataset = errors.New("unknown demo dataset")

// LoadDemo resets the database and seeds the named dataset. Used by the HTTP
// handler above and by the -demo startup flag.
func (h *Handler) LoadDemo(ctx context.Context, datasetID string) error {
	switch datasetID {
	case "cardiology-group":
		return h.loadCardiologyGroup(ctx)
	case "multispecialty":
		return h.loadMultispecialty(ctx)
	default:
		return errUnknownDataset
	}
}

func money(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func moneyPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func cardiologyBenchmark() engine.MarketRow {
	return engine.MarketRow{
		Specialty:    "Cardiology",
		ProviderType: "Physician",
		Region:       "National",
		TCC:          engine.Band{P25: 380000, P50: 455000, P75: 540000, P90: 635000},
		WRVU:         engine.Band{P25: 4200, P50: 5100, P75: 6300, P90: 7400},
		CF:           engine.Band{P25: 40, P50: 50, P75: 60, P90: 70},
	}
}

func (h *Handler) loadCardiologyGroup(ctx context.Context) error {
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}

	providers := []engine.ProviderRow{
		{
			ProviderID: "card-01", ProviderName: "Dana Osei",
			Specialty: "Cardiology", Division: "Heart Institute", ProviderType: "Physician",
			BaseSalary: money(420000), TotalWRVUs: decimal.RequireFromString("5150.50"),
			CurrentCF: decimal.RequireFromString("48.50"), CurrentTCC: moneyPtr(452000),
		},
		{
			ProviderID: "card-02", ProviderName: "Miguel Ferreira",
			Specialty: "Cardiology", Division: "Heart Institute", ProviderType: "Physician",
			BasePayComponents: []engine.PayComponent{
				{Label: "Clinical", Amount: money(380000)},
				{Label: "Directorship", Amount: money(40000)},
			},
			TotalWRVUs: money(4650), OutsideWRVUs: money(150),
			QualityPayments: money(12000),
		},
		{
			ProviderID: "card-03", ProviderName: "Priya Natarajan",
			Specialty: "Cardiology", Division: "Heart Institute", ProviderType: "Physician",
			BaseSalary: money(510000), TotalWRVUs: money(7100),
			CurrentCF: money(55), OtherIncentives: money(8000),
		},
		{
			ProviderID: "card-04", ProviderName: "Tom Becker",
			Specialty: "Cardiology", Division: "Heart Institute", ProviderType: "APP",
			BaseSalary: money(145000), TotalWRVUs: money(2900),
		},
	}
	if err := h.Store.SaveProviders(ctx, providers); err != nil {
		return err
	}

	rows := []engine.MarketRow{
		cardiologyBenchmark(),
		{
			Specialty: "Cardiology", ProviderType: "APP", Region: "National",
			TCC:  engine.Band{P25: 120000, P50: 138000, P75: 158000, P90: 182000},
			WRVU: engine.Band{P25: 2400, P50: 3000, P75: 3700, P90: 4300},
			CF:   engine.Band{P25: 28, P50: 33, P75: 38, P90: 44},
		},
	}
	if err := h.Store.SaveMarketRows(ctx, rows); err != nil {
		return err
	}

	return h.saveScenariosFromPresets(ctx)
}

func (h *Handler) loadMultispecialty(ctx context.Context) error {
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}

	providers := []engine.ProviderRow{
		{
			ProviderID: "ms-01", ProviderName: "Dana Osei",
			Specialty: "Cardiovascular Disease", ProviderType: "Physician",
			BaseSalary: money(430000), TotalWRVUs: money(5300),
		},
		{
			ProviderID: "ms-02", ProviderName: "Lena Fischer",
			Specialty: "Family Medicine", ProviderType: "Physician",
			BaseSalary: money(235000), TotalWRVUs: money(4450),
			QualityPayments: money(9000),
		},
		{
			// High pay, modest productivity: trips the FMV flags.
			ProviderID: "ms-03", ProviderName: "Gregor Ilyin",
			Specialty: "Family Medicine", ProviderType: "Physician",
			BaseSalary: money(410000), TotalWRVUs: money(3900),
			CurrentTCC: moneyPtr(415000),
		},
		{
			// No benchmark row exists for this specialty.
			ProviderID: "ms-04", ProviderName: "Sun-Hee Cho",
			Specialty: "Medical Genetics", ProviderType: "Physician",
			BaseSalary: money(260000), TotalWRVUs: money(3100),
		},
	}
	if err := h.Store.SaveProviders(ctx, providers); err != nil {
		return err
	}

	rows := []engine.MarketRow{
		cardiologyBenchmark(),
		{
			Specialty: "Family Medicine", ProviderType: "Physician", Region: "National",
			TCC:  engine.Band{P25: 220000, P50: 252000, P75: 292000, P90: 340000},
			WRVU: engine.Band{P25: 3800, P50: 4500, P75: 5400, P90: 6300},
			CF:   engine.Band{P25: 38, P50: 44, P75: 50, P90: 58},
		},
	}
	if err := h.Store.SaveMarketRows(ctx, rows); err != nil {
		return err
	}

	if err := h.Store.PutSynonyms(ctx, map[string]string{
		"Cardiovascular Disease": "Cardiology",
	}); err != nil {
		return err
	}

	return h.saveScenariosFromPresets(ctx)
}

// saveScenariosFromPresets seeds one saved scenario per built-in preset so
// the demo UI has something to model and batch immediately.
func (h *Handler) saveScenariosFromPresets(ctx context.Context) error {
	for _, p := range preset.Builtin() {
		rec := sqlite.ScenarioRecord{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Inputs:      p.Inputs,
		}
		if err := h.Store.SaveScenario(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
