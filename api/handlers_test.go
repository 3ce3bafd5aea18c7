package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/comp-engine/api"
	"github.com/warp/comp-engine/store/sqlite"
)

func decimalFromInt(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T) (*api.Handler, *httptest.Server) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := api.NewHandler(store)
	t.Cleanup(h.Runs.Shutdown)

	srv := httptest.NewServer(api.NewRouter(h))
	t.Cleanup(srv.Close)
	return h, srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func loadDemo(t *testing.T, srv *httptest.Server, dataset string) {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/demo/load",
		map[string]string{"dataset_id": dataset})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// =============================================================================
// PROVIDER ENDPOINTS
// =============================================================================

func TestProviderLifecycle(t *testing.T) {
	_, srv := newTestServer(t)

	// Create
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/providers", map[string]any{
		"id": "p-1", "name": "Dana Osei", "specialty": "Cardiology",
		"base_salary": 200000, "total_wrvus": 4500,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Get
	var dto api.ProviderDTO
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/providers/p-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &dto)
	assert.Equal(t, "Dana Osei", dto.Name)
	assert.Equal(t, "200000", dto.BaseSalary.String())

	// List
	var list []api.ProviderDTO
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/providers", nil)
	decodeBody(t, resp, &list)
	assert.Len(t, list, 1)

	// Delete, then 404
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/providers/p-1", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/providers/p-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestProviderUpload_Multipart(t *testing.T) {
	_, srv := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "roster.csv")
	require.NoError(t, err)
	fmt.Fprint(fw, "Provider Name,Specialty,Base Salary,Total wRVUs\n")
	fmt.Fprint(fw, "Dana Osei,Cardiology,\"$200,000\",4500\n")
	fmt.Fprint(fw, "Lee Park,Family Medicine,185000,4100\n")
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/providers/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var up api.UploadResponse
	decodeBody(t, resp, &up)
	assert.Equal(t, 2, up.Rows)
}

func TestProviderUpload_Empty(t *testing.T) {
	_, srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost,
		srv.URL+"/api/providers/upload?filename=roster.csv",
		strings.NewReader("Provider Name,Specialty\n"))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// MARKET ENDPOINTS
// =============================================================================

func TestSynonymsRoundTrip(t *testing.T) {
	_, srv := newTestServer(t)

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/market/synonyms", map[string]any{
		"synonyms": map[string]string{"Cardiovascular Disease": "Cardiology"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var dto api.SynonymsDTO
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/market/synonyms", nil)
	decodeBody(t, resp, &dto)
	assert.Equal(t, "Cardiology", dto.Synonyms["Cardiovascular Disease"])
}

// =============================================================================
// SCENARIO ENDPOINTS
// =============================================================================

func TestScenarioPatch_TriState(t *testing.T) {
	_, srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/scenarios", map[string]any{
		"id": "sc-1", "name": "Tune CF",
		"inputs": map[string]any{
			"proposed_cf_percentile": 50,
			"psq_percent":            5,
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Patch: change one field, clear another, leave the rest alone.
	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/api/scenarios/sc-1/inputs",
		strings.NewReader(`{"proposed_cf_percentile": 75, "psq_percent": null}`))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dto api.ScenarioDTO
	decodeBody(t, resp, &dto)
	require.NotNil(t, dto.Inputs.ProposedCFPercentile)
	assert.Equal(t, 75.0, *dto.Inputs.ProposedCFPercentile)
	assert.Nil(t, dto.Inputs.PSQPercent, "null must clear the field")
}

func TestScenarioCreate_FromPreset(t *testing.T) {
	_, srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/scenarios", map[string]any{
		"preset_id": "median-cf",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var dto api.ScenarioDTO
	decodeBody(t, resp, &dto)
	assert.Equal(t, "Median CF", dto.Name)
	require.NotNil(t, dto.Inputs.ProposedCFPercentile)
	assert.Equal(t, 50.0, *dto.Inputs.ProposedCFPercentile)
}

func TestScenarioCreate_DuplicateID(t *testing.T) {
	_, srv := newTestServer(t)

	body := map[string]any{"id": "sc-1", "name": "One"}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/scenarios", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/scenarios", body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestModelScenario_AgainstDemoData(t *testing.T) {
	_, srv := newTestServer(t)
	loadDemo(t, srv, "cardiology-group")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/scenarios/median-cf/model",
		map[string]string{"provider_id": "card-01"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var mr api.ModelResponse
	decodeBody(t, resp, &mr)
	assert.Equal(t, "matched", mr.MatchStatus)
	assert.True(t, mr.Results.ModeledCF.Equal(decimalFromInt(50)),
		"median of the demo CF band is 50, got %s", mr.Results.ModeledCF)
	assert.NotNil(t, mr.Results.ModeledTCCPercentile)
}

func TestModelAdhoc_InlineMarket(t *testing.T) {
	_, srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/model", map[string]any{
		"provider": map[string]any{
			"name": "Inline", "specialty": "Cardiology",
			"base_salary": 200000, "total_wrvus": 5000,
		},
		"market": map[string]any{
			"specialty": "Cardiology",
			"tcc":       map[string]float64{"p25": 380000, "p50": 455000, "p75": 540000, "p90": 635000},
			"wrvu":      map[string]float64{"p25": 4200, "p50": 5100, "p75": 6300, "p90": 7400},
			"cf":        map[string]float64{"p25": 40, "p50": 50, "p75": 60, "p90": 70},
		},
		"inputs": map[string]any{"proposed_cf_percentile": 50},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var mr api.ModelResponse
	decodeBody(t, resp, &mr)
	assert.Equal(t, "matched", mr.MatchStatus)
	assert.True(t, mr.Results.AnnualIncentive.Equal(decimalFromInt(50000)),
		"5000 wRVUs at CF 50 over a 4000 threshold pays 50000, got %s", mr.Results.AnnualIncentive)
}

// =============================================================================
// BATCH ENDPOINTS
// =============================================================================

func TestBatchRun_EndToEnd(t *testing.T) {
	_, srv := newTestServer(t)
	loadDemo(t, srv, "multispecialty")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/batch/runs", map[string]any{
		"scenario_ids": []string{"median-cf"},
		"preset_ids":   []string{"baseline"},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var run api.RunDTO
	decodeBody(t, resp, &run)
	require.NotEmpty(t, run.ID)

	// Poll until terminal.
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp = doJSON(t, http.MethodGet, srv.URL+"/api/batch/runs/"+run.ID, nil)
		decodeBody(t, resp, &run)
		if run.Status.Terminal() {
			break
		}
		require.True(t, time.Now().Before(deadline), "run never finished")
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, "done", string(run.Status))
	assert.Equal(t, 8, run.Progress.Total) // 4 providers x 2 scenarios
	assert.Equal(t, 8, run.Progress.Processed)

	// Results include every match status from the demo roster.
	var results []map[string]any
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/batch/runs/"+run.ID+"/results", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &results)
	require.Len(t, results, 8)

	statuses := map[string]bool{}
	for _, row := range results {
		statuses[row["match_status"].(string)] = true
	}
	assert.True(t, statuses["matched"])
	assert.True(t, statuses["synonym"])
	assert.True(t, statuses["missing"])

	// Export
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/batch/runs/"+run.ID+"/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
	body := new(bytes.Buffer)
	_, err := body.ReadFrom(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, body.String(), "Provider ID,Provider Name")
	assert.Contains(t, body.String(), "no_benchmark")
}

func TestBatchRun_RequiresScenarios(t *testing.T) {
	_, srv := newTestServer(t)
	loadDemo(t, srv, "cardiology-group")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/batch/runs", map[string]any{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBatchRun_UnknownID(t *testing.T) {
	_, srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/batch/runs/nope", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// PRESETS AND DEMO
// =============================================================================

func TestListPresets(t *testing.T) {
	_, srv := newTestServer(t)

	var presets []map[string]any
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/presets", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &presets)
	assert.NotEmpty(t, presets)
}

func TestReset(t *testing.T) {
	_, srv := newTestServer(t)
	loadDemo(t, srv, "cardiology-group")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var list []api.ProviderDTO
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/providers", nil)
	decodeBody(t, resp, &list)
	assert.Empty(t, list)
}
