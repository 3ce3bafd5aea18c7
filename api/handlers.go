/*
handlers.go - HTTP API handlers for the compensation modeler

PURPOSE:
  Exposes the scenario engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Providers:
    GET    /api/providers              List roster
    POST   /api/providers              Create/update one provider
    GET    /api/providers/{id}         Get provider
    DELETE /api/providers/{id}         Delete provider
    POST   /api/providers/upload       Upload CSV/XLSX roster

  Market:
    GET    /api/market                 List benchmark rows
    POST   /api/market                 Upsert benchmark rows
    POST   /api/market/upload          Upload CSV/XLSX benchmarks
    GET    /api/market/synonyms        Get specialty alias table
    PUT    /api/market/synonyms        Replace specialty alias table

  Scenarios:
    GET    /api/scenarios              List saved scenarios
    POST   /api/scenarios              Create scenario (inline or preset)
    GET    /api/scenarios/{id}         Get scenario
    DELETE /api/scenarios/{id}         Delete scenario
    PATCH  /api/scenarios/{id}/inputs  Partial-merge input update
    POST   /api/scenarios/{id}/model   Evaluate against one provider

  Modeling:
    POST   /api/model                  Ad-hoc evaluation, nothing persisted

  Batch:
    POST   /api/batch/runs             Start run
    GET    /api/batch/runs             List runs
    GET    /api/batch/runs/{id}        Status + progress
    GET    /api/batch/runs/{id}/results Result rows (done runs only)
    GET    /api/batch/runs/{id}/export CSV download
    DELETE /api/batch/runs/{id}        Cancel

  Presets:
    GET    /api/presets                Built-in scenario templates

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate id, run still active)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - demo.go: Demo dataset loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/comp-engine/batch"
	"github.com/warp/comp-engine/dataset"
	"github.com/warp/comp-engine/engine"
	"github.com/warp/comp-engine/market"
	"github.com/warp/comp-engine/preset"
	"github.com/warp/comp-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Runs    *batch.Registry
	Presets []preset.Preset
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:   store,
		Runs:    batch.NewRegistry(),
		Presets: preset.Builtin(),
	}
}

// catalog builds the benchmark catalog from the store's current rows and
// synonym table.
func (h *Handler) catalog(ctx context.Context) (*market.Catalog, error) {
	rows, err := h.Store.ListMarketRows(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := h.Store.GetSynonyms(ctx)
	if err != nil {
		return nil, err
	}
	return market.NewCatalog(rows, market.NewSynonymMap(raw)), nil
}

// =============================================================================
// PROVIDER HANDLERS
// =============================================================================

// ListProviders handles GET /api/providers.
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.Store.ListProviders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list providers", err)
		return
	}

	dtos := make([]ProviderDTO, 0, len(providers))
	for _, p := range providers {
		dtos = append(dtos, toProviderDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProvider handles POST /api/providers (upsert).
func (h *Handler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	var dto ProviderDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p := dto.toDomain()
	if p.ID() == "" {
		writeError(w, http.StatusBadRequest, "Provider needs an id or name", nil)
		return
	}
	if err := h.Store.SaveProvider(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save provider", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProviderDTO(p))
}

// GetProvider handles GET /api/providers/{id}.
func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.Store.GetProvider(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get provider", err)
		return
	}
	writeJSON(w, http.StatusOK, toProviderDTO(p))
}

// DeleteProvider handles DELETE /api/providers/{id}.
func (h *Handler) DeleteProvider(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteProvider(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete provider", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadProviders handles POST /api/providers/upload.
func (h *Handler) UploadProviders(w http.ResponseWriter, r *http.Request) {
	rows, err := readUpload(r)
	if err != nil {
		writeDomainError(w, "Failed to read upload", err)
		return
	}

	providers := dataset.Providers(rows)
	if len(providers) == 0 {
		writeError(w, http.StatusBadRequest, "Upload contains no usable provider rows", engine.ErrEmptyUpload)
		return
	}
	if err := h.Store.SaveProviders(r.Context(), providers); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save providers", err)
		return
	}

	log.Printf("[API] Provider upload: %d rows", len(providers))
	writeJSON(w, http.StatusCreated, UploadResponse{Rows: len(providers)})
}

// =============================================================================
// MARKET HANDLERS
// =============================================================================

// ListMarketRows handles GET /api/market.
func (h *Handler) ListMarketRows(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.ListMarketRows(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list market rows", err)
		return
	}

	dtos := make([]MarketRowDTO, 0, len(rows))
	for _, m := range rows {
		dtos = append(dtos, toMarketDTO(m))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateMarketRows handles POST /api/market (bulk upsert).
func (h *Handler) CreateMarketRows(w http.ResponseWriter, r *http.Request) {
	var dtos []MarketRowDTO
	if err := json.NewDecoder(r.Body).Decode(&dtos); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rows := make([]engine.MarketRow, 0, len(dtos))
	for _, dto := range dtos {
		if strings.TrimSpace(dto.Specialty) == "" {
			writeError(w, http.StatusBadRequest, "Market row needs a specialty", nil)
			return
		}
		rows = append(rows, dto.toDomain())
	}
	if err := h.Store.SaveMarketRows(r.Context(), rows); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save market rows", err)
		return
	}
	writeJSON(w, http.StatusCreated, UploadResponse{Rows: len(rows)})
}

// UploadMarketRows handles POST /api/market/upload.
func (h *Handler) UploadMarketRows(w http.ResponseWriter, r *http.Request) {
	rows, err := readUpload(r)
	if err != nil {
		writeDomainError(w, "Failed to read upload", err)
		return
	}

	ms := dataset.MarketRows(rows)
	if len(ms) == 0 {
		writeError(w, http.StatusBadRequest, "Upload contains no usable benchmark rows", engine.ErrEmptyUpload)
		return
	}
	if err := h.Store.SaveMarketRows(r.Context(), ms); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save market rows", err)
		return
	}

	log.Printf("[API] Market upload: %d rows", len(ms))
	writeJSON(w, http.StatusCreated, UploadResponse{Rows: len(ms)})
}

// GetSynonyms handles GET /api/market/synonyms.
func (h *Handler) GetSynonyms(w http.ResponseWriter, r *http.Request) {
	syn, err := h.Store.GetSynonyms(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get synonyms", err)
		return
	}
	writeJSON(w, http.StatusOK, SynonymsDTO{Synonyms: syn})
}

// PutSynonyms handles PUT /api/market/synonyms (replace all).
func (h *Handler) PutSynonyms(w http.ResponseWriter, r *http.Request) {
	var dto SynonymsDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Store.PutSynonyms(r.Context(), dto.Synonyms); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save synonyms", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios handles GET /api/scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListScenarios(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list scenarios", err)
		return
	}

	dtos := make([]ScenarioDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toScenarioDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateScenario handles POST /api/scenarios.
func (h *Handler) CreateScenario(w http.ResponseWriter, r *http.Request) {
	var req CreateScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec := sqlite.ScenarioRecord{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Inputs:      req.Inputs,
	}
	if req.PresetID != "" {
		p, ok := preset.Find(h.Presets, req.PresetID)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown preset %q", req.PresetID), nil)
			return
		}
		rec.Inputs = p.Inputs
		if rec.Name == "" {
			rec.Name = p.Name
		}
		if rec.Description == "" {
			rec.Description = p.Description
		}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Name == "" {
		writeError(w, http.StatusBadRequest, "Scenario needs a name", nil)
		return
	}

	if err := h.Store.SaveScenario(r.Context(), rec); err != nil {
		writeDomainError(w, "Failed to save scenario", err)
		return
	}

	saved, err := h.Store.GetScenario(r.Context(), rec.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload scenario", err)
		return
	}
	writeJSON(w, http.StatusCreated, toScenarioDTO(*saved))
}

// GetScenario handles GET /api/scenarios/{id}.
func (h *Handler) GetScenario(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Store.GetScenario(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, toScenarioDTO(*rec))
}

// DeleteScenario handles DELETE /api/scenarios/{id}.
func (h *Handler) DeleteScenario(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteScenario(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete scenario", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PatchScenarioInputs handles PATCH /api/scenarios/{id}/inputs.
// The body is a partial document: omitted fields keep their values, null
// clears a field back to "inherit baseline".
func (h *Handler) PatchScenarioInputs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch engine.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid patch body", err)
		return
	}

	rec, err := h.Store.GetScenario(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get scenario", err)
		return
	}

	merged := patch.Apply(rec.Inputs)
	if err := h.Store.UpdateScenarioInputs(r.Context(), id, merged); err != nil {
		writeDomainError(w, "Failed to update scenario", err)
		return
	}

	rec.Inputs = merged
	writeJSON(w, http.StatusOK, toScenarioDTO(*rec))
}

// ModelScenario handles POST /api/scenarios/{id}/model.
func (h *Handler) ModelScenario(w http.ResponseWriter, r *http.Request) {
	var req ModelScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec, err := h.Store.GetScenario(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get scenario", err)
		return
	}

	p, err := h.Store.GetProvider(r.Context(), req.ProviderID)
	if err != nil {
		writeDomainError(w, "Failed to get provider", err)
		return
	}

	cat, err := h.catalog(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load benchmarks", err)
		return
	}
	row, status := cat.Match(p)

	writeJSON(w, http.StatusOK, ModelResponse{
		MatchStatus: string(status),
		Results:     engine.Evaluate(p, row, rec.Inputs),
	})
}

// ModelAdhoc handles POST /api/model: evaluate inline data, persist nothing.
func (h *Handler) ModelAdhoc(w http.ResponseWriter, r *http.Request) {
	var req ModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p := req.Provider.toDomain()

	var row *engine.MarketRow
	status := market.StatusMissing
	if req.Market != nil {
		m := req.Market.toDomain()
		row = &m
		status = market.StatusMatched
	} else {
		cat, err := h.catalog(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load benchmarks", err)
			return
		}
		row, status = cat.Match(p)
	}

	writeJSON(w, http.StatusOK, ModelResponse{
		MatchStatus: string(status),
		Results:     engine.Evaluate(p, row, req.Inputs),
	})
}

// ListPresets handles GET /api/presets.
func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Presets)
}

// =============================================================================
// BATCH HANDLERS
// =============================================================================

// StartRun handles POST /api/batch/runs.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.ScenarioIDs) == 0 && len(req.PresetIDs) == 0 {
		writeError(w, http.StatusBadRequest, "Run needs at least one scenario or preset", nil)
		return
	}

	ctx := r.Context()
	scenarios := make([]batch.Scenario, 0, len(req.ScenarioIDs)+len(req.PresetIDs))
	for _, id := range req.ScenarioIDs {
		rec, err := h.Store.GetScenario(ctx, id)
		if err != nil {
			writeDomainError(w, fmt.Sprintf("Failed to get scenario %q", id), err)
			return
		}
		scenarios = append(scenarios, batch.Scenario{ID: rec.ID, Name: rec.Name, Inputs: rec.Inputs})
	}
	for _, id := range req.PresetIDs {
		p, ok := preset.Find(h.Presets, id)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown preset %q", id), nil)
			return
		}
		scenarios = append(scenarios, batch.Scenario{ID: p.ID, Name: p.Name, Inputs: p.Inputs})
	}

	providers, err := h.Store.ListProviders(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list providers", err)
		return
	}
	if len(providers) == 0 {
		writeError(w, http.StatusBadRequest, "No providers loaded; upload a roster first", nil)
		return
	}
	rows, err := h.Store.ListMarketRows(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list market rows", err)
		return
	}
	raw, err := h.Store.GetSynonyms(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get synonyms", err)
		return
	}

	// The run outlives the request; it is tied to the server, not to r.
	run := h.Runs.Start(context.Background(), batch.Job{
		Providers:  providers,
		MarketRows: rows,
		Scenarios:  scenarios,
		Synonyms:   market.NewSynonymMap(raw),
		ChunkSize:  req.ChunkSize,
	})
	go h.persistRun(run)

	writeJSON(w, http.StatusAccepted, toRunDTO(run))
}

// persistRun waits for a run to reach a terminal state and writes it (plus
// result rows for completed runs) to the store so it survives a restart.
func (h *Handler) persistRun(run *batch.Run) {
	<-run.Done()

	rec := sqlite.RunRecord{
		ID:         run.ID,
		Status:     run.Status(),
		Progress:   run.Progress(),
		CreatedAt:  run.CreatedAt,
		FinishedAt: run.FinishedAt(),
	}
	if err := run.Err(); err != nil {
		rec.Error = err.Error()
	}

	var results []batch.RowResult
	if rec.Status == batch.StatusDone {
		results, _ = run.Results()
	}
	if err := h.Store.SaveRun(context.Background(), rec, results); err != nil {
		log.Printf("[API] Failed to persist run %s: %v", run.ID, err)
	}
}

// ListRuns handles GET /api/batch/runs. In-memory runs win over their
// persisted copies; persisted-only runs (from before a restart) follow.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	dtos := []RunDTO{}
	seen := make(map[string]bool)
	for _, run := range h.Runs.List() {
		dtos = append(dtos, toRunDTO(run))
		seen[run.ID] = true
	}

	records, err := h.Store.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	for _, rec := range records {
		if !seen[rec.ID] {
			dtos = append(dtos, recordToRunDTO(rec))
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun handles GET /api/batch/runs/{id}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if run, err := h.Runs.Get(id); err == nil {
		writeJSON(w, http.StatusOK, toRunDTO(run))
		return
	}

	rec, err := h.Store.GetRun(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get run", err)
		return
	}
	writeJSON(w, http.StatusOK, recordToRunDTO(*rec))
}

// runResults resolves result rows from memory first, then the store.
func (h *Handler) runResults(ctx context.Context, id string) ([]batch.RowResult, error) {
	if run, err := h.Runs.Get(id); err == nil {
		return run.Results()
	}
	if _, err := h.Store.GetRun(ctx, id); err != nil {
		return nil, err
	}
	return h.Store.GetRunResults(ctx, id)
}

// GetRunResults handles GET /api/batch/runs/{id}/results.
func (h *Handler) GetRunResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.runResults(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get run results", err)
		return
	}
	if results == nil {
		results = []batch.RowResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

// ExportRun handles GET /api/batch/runs/{id}/export.
func (h *Handler) ExportRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	results, err := h.runResults(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get run results", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", dataset.ExportFilename(id)))

	cw, err := dataset.NewResultWriter(w)
	if err != nil {
		return
	}
	if err := cw.WriteResults(results); err != nil {
		log.Printf("[API] Export of run %s aborted: %v", id, err)
		return
	}
	if err := cw.Flush(); err != nil {
		log.Printf("[API] Export of run %s aborted: %v", id, err)
	}
}

// CancelRun handles DELETE /api/batch/runs/{id}.
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	if err := h.Runs.Cancel(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to cancel run", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// UPLOAD AND RESPONSE HELPERS
// =============================================================================

// readUpload decodes the uploaded file from either a multipart "file" field
// or the raw body (with ?filename= hinting the format).
func readUpload(r *http.Request) ([]dataset.Row, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("missing multipart field %q: %w", "file", err)
		}
		defer file.Close()
		return dataset.Read(file, header.Filename)
	}

	var body io.Reader = r.Body
	return dataset.Read(body, r.URL.Query().Get("filename"))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain sentinel errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, engine.ErrDuplicateID), errors.Is(err, engine.ErrRunActive):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, engine.ErrRunCancelled):
		writeError(w, http.StatusConflict, message, err)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
