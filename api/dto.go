/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - engine/types.go: The domain shapes behind them
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/comp-engine/batch"
	"github.com/warp/comp-engine/engine"
	"github.com/warp/comp-engine/store/sqlite"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// PROVIDERS
// =============================================================================

// PayComponentDTO is one labeled base pay slice.
type PayComponentDTO struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// ProviderDTO represents a provider row in API requests and responses.
type ProviderDTO struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Specialty       string            `json:"specialty,omitempty"`
	Division        string            `json:"division,omitempty"`
	ProviderType    string            `json:"provider_type,omitempty"`
	BaseSalary      decimal.Decimal   `json:"base_salary"`
	Components      []PayComponentDTO `json:"base_pay_components,omitempty"`
	NonClinicalPay  decimal.Decimal   `json:"non_clinical_pay"`
	TotalWRVUs      decimal.Decimal   `json:"total_wrvus"`
	OutsideWRVUs    decimal.Decimal   `json:"outside_wrvus"`
	QualityPayments decimal.Decimal   `json:"quality_payments"`
	OtherIncentives decimal.Decimal   `json:"other_incentives"`
	CurrentCF       decimal.Decimal   `json:"current_cf"`
	CurrentTCC      *decimal.Decimal  `json:"current_tcc,omitempty"`
}

func toProviderDTO(p engine.ProviderRow) ProviderDTO {
	dto := ProviderDTO{
		ID:              p.ID(),
		Name:            p.ProviderName,
		Specialty:       p.Specialty,
		Division:        p.Division,
		ProviderType:    p.ProviderType,
		BaseSalary:      p.BaseSalary,
		NonClinicalPay:  p.NonClinicalPay,
		TotalWRVUs:      p.TotalWRVUs,
		OutsideWRVUs:    p.OutsideWRVUs,
		QualityPayments: p.QualityPayments,
		OtherIncentives: p.OtherIncentives,
		CurrentCF:       p.CurrentCF,
		CurrentTCC:      p.CurrentTCC,
	}
	for _, c := range p.BasePayComponents {
		dto.Components = append(dto.Components, PayComponentDTO{Label: c.Label, Amount: c.Amount})
	}
	return dto
}

func (dto ProviderDTO) toDomain() engine.ProviderRow {
	p := engine.ProviderRow{
		ProviderID:      dto.ID,
		ProviderName:    dto.Name,
		Specialty:       dto.Specialty,
		Division:        dto.Division,
		ProviderType:    dto.ProviderType,
		BaseSalary:      dto.BaseSalary,
		NonClinicalPay:  dto.NonClinicalPay,
		TotalWRVUs:      dto.TotalWRVUs,
		OutsideWRVUs:    dto.OutsideWRVUs,
		QualityPayments: dto.QualityPayments,
		OtherIncentives: dto.OtherIncentives,
		CurrentCF:       dto.CurrentCF,
		CurrentTCC:      dto.CurrentTCC,
	}
	for _, c := range dto.Components {
		p.BasePayComponents = append(p.BasePayComponents, engine.PayComponent{Label: c.Label, Amount: c.Amount})
	}
	return p
}

// =============================================================================
// MARKET
// =============================================================================

// BandDTO is a four-point percentile band.
type BandDTO struct {
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
}

// MarketRowDTO represents one benchmark row.
type MarketRowDTO struct {
	Specialty    string  `json:"specialty"`
	ProviderType string  `json:"provider_type,omitempty"`
	Region       string  `json:"region,omitempty"`
	TCC          BandDTO `json:"tcc"`
	WRVU         BandDTO `json:"wrvu"`
	CF           BandDTO `json:"cf"`
}

func toMarketDTO(m engine.MarketRow) MarketRowDTO {
	return MarketRowDTO{
		Specialty:    m.Specialty,
		ProviderType: m.ProviderType,
		Region:       m.Region,
		TCC:          BandDTO(m.TCC),
		WRVU:         BandDTO(m.WRVU),
		CF:           BandDTO(m.CF),
	}
}

func (dto MarketRowDTO) toDomain() engine.MarketRow {
	return engine.MarketRow{
		Specialty:    dto.Specialty,
		ProviderType: dto.ProviderType,
		Region:       dto.Region,
		TCC:          engine.Band(dto.TCC),
		WRVU:         engine.Band(dto.WRVU),
		CF:           engine.Band(dto.CF),
	}
}

// SynonymsDTO is the alias -> canonical specialty table.
type SynonymsDTO struct {
	Synonyms map[string]string `json:"synonyms"`
}

// =============================================================================
// SCENARIOS AND MODELING
// =============================================================================

// ScenarioDTO represents a saved scenario.
type ScenarioDTO struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Inputs      engine.ScenarioInputs `json:"inputs"`
	CreatedAt   string                `json:"created_at,omitempty"`
	UpdatedAt   string                `json:"updated_at,omitempty"`
}

func toScenarioDTO(rec sqlite.ScenarioRecord) ScenarioDTO {
	return ScenarioDTO{
		ID:          rec.ID,
		Name:        rec.Name,
		Description: rec.Description,
		Inputs:      rec.Inputs,
		CreatedAt:   formatTime(rec.CreatedAt),
		UpdatedAt:   formatTime(rec.UpdatedAt),
	}
}

// CreateScenarioRequest creates a scenario, either from inline inputs or
// from a named preset (preset wins when both are given).
type CreateScenarioRequest struct {
	ID          string                `json:"id,omitempty"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Inputs      engine.ScenarioInputs `json:"inputs"`
	PresetID    string                `json:"preset_id,omitempty"`
}

// ModelScenarioRequest evaluates a saved scenario against one provider.
type ModelScenarioRequest struct {
	ProviderID string `json:"provider_id"`
}

// ModelRequest evaluates ad-hoc inputs without persisting anything. The
// market row is optional; when absent the store's benchmark catalog is used.
type ModelRequest struct {
	Provider ProviderDTO           `json:"provider"`
	Market   *MarketRowDTO         `json:"market,omitempty"`
	Inputs   engine.ScenarioInputs `json:"inputs"`
}

// ModelResponse carries the evaluation plus how the benchmark was found.
type ModelResponse struct {
	MatchStatus string                 `json:"match_status"`
	Results     engine.ScenarioResults `json:"results"`
}

// =============================================================================
// BATCH RUNS
// =============================================================================

// StartRunRequest starts a batch run over the stored roster.
type StartRunRequest struct {
	// ScenarioIDs selects saved scenarios; PresetIDs selects built-ins.
	// At least one of the two must be non-empty.
	ScenarioIDs []string `json:"scenario_ids,omitempty"`
	PresetIDs   []string `json:"preset_ids,omitempty"`
	ChunkSize   int      `json:"chunk_size,omitempty"`
}

// RunDTO represents a batch run's externally visible state.
type RunDTO struct {
	ID         string         `json:"id"`
	Status     batch.Status   `json:"status"`
	Progress   batch.Progress `json:"progress"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  string         `json:"created_at"`
	FinishedAt string         `json:"finished_at,omitempty"`
}

func toRunDTO(run *batch.Run) RunDTO {
	dto := RunDTO{
		ID:        run.ID,
		Status:    run.Status(),
		Progress:  run.Progress(),
		CreatedAt: run.CreatedAt.UTC().Format(time.RFC3339),
	}
	if err := run.Err(); err != nil {
		dto.Error = err.Error()
	}
	if fin := run.FinishedAt(); !fin.IsZero() {
		dto.FinishedAt = fin.UTC().Format(time.RFC3339)
	}
	return dto
}

func recordToRunDTO(rec sqlite.RunRecord) RunDTO {
	return RunDTO{
		ID:         rec.ID,
		Status:     rec.Status,
		Progress:   rec.Progress,
		Error:      rec.Error,
		CreatedAt:  formatTime(rec.CreatedAt),
		FinishedAt: formatTime(rec.FinishedAt),
	}
}

// UploadResponse reports how many rows an upload produced.
type UploadResponse struct {
	Rows int `json:"rows"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
