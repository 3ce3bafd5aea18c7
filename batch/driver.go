/*
Package batch runs scenario evaluations across whole rosters.

PURPOSE:
  Interactive modeling evaluates one provider at a time; batch runs apply a
  set of scenarios to every provider and collect the cross product. The
  driver owns chunked iteration, progress reporting, cancellation and the
  FMV risk flags attached to each result row.

DESIGN (this file - driver.go):
  - One background worker goroutine per run; runs are independent
  - Job data is snapshotted at submission: later edits to providers or
    scenarios never leak into an in-flight run
  - Progress is emitted after each chunk and is strictly monotonic
  - Cancellation and worker panics are all-or-nothing: a non-completed run
    exposes zero result rows

SEE ALSO:
  - registry.go: Run lifecycle and lookup
  - risk.go: FMV flag assignment
  - engine: The per-row calculation
*/
package batch

import (
	"context"
	"log"
	"time"

	"github.com/warp/comp-engine/engine"
	"github.com/warp/comp-engine/market"
)

// DefaultChunkSize is used when a job does not specify a positive chunk size.
const DefaultChunkSize = 50

// =============================================================================
// JOB AND RESULT SHAPES
// =============================================================================

// Scenario pairs a named scenario with its inputs for a batch run.
type Scenario struct {
	ID     string                `json:"id"`
	Name   string                `json:"name"`
	Inputs engine.ScenarioInputs `json:"inputs"`
}

// Job is everything a batch run needs, captured at submission time.
type Job struct {
	Providers  []engine.ProviderRow
	MarketRows []engine.MarketRow
	Scenarios  []Scenario
	Synonyms   market.SynonymMap

	// ChunkSize controls how many rows are evaluated between progress
	// updates. Non-positive values fall back to DefaultChunkSize.
	ChunkSize int
}

// snapshot deep-copies the slices so the caller can keep mutating its own
// data while the run is in flight.
func (j Job) snapshot() Job {
	out := j
	out.Providers = append([]engine.ProviderRow(nil), j.Providers...)
	out.MarketRows = append([]engine.MarketRow(nil), j.MarketRows...)
	out.Scenarios = append([]Scenario(nil), j.Scenarios...)
	if j.Synonyms != nil {
		out.Synonyms = make(market.SynonymMap, len(j.Synonyms))
		for k, v := range j.Synonyms {
			out.Synonyms[k] = v
		}
	}
	return out
}

// RowResult is one (provider, scenario) evaluation within a run.
type RowResult struct {
	ProviderID   string                 `json:"provider_id"`
	ProviderName string                 `json:"provider_name"`
	Specialty    string                 `json:"specialty"`
	ScenarioID   string                 `json:"scenario_id"`
	ScenarioName string                 `json:"scenario_name"`
	MatchStatus  market.MatchStatus     `json:"match_status"`
	Results      engine.ScenarioResults `json:"results"`
	RiskFlags    []string               `json:"risk_flags,omitempty"`
}

// Progress is the driver's externally visible counter. Processed only ever
// increases within a run.
type Progress struct {
	Processed int   `json:"processed"`
	Total     int   `json:"total"`
	ElapsedMs int64 `json:"elapsed_ms"`
}

// =============================================================================
// WORKER
// =============================================================================

// execute is the run's worker body. It evaluates the provider x scenario
// cross product in chunks, reporting progress into the run after each chunk.
// Results are accumulated locally and committed only on completion.
func execute(ctx context.Context, run *Run, job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Batch] Run %s: worker panic: %v", run.ID, r)
			run.fail(ErrWorkerPanic)
		}
	}()

	chunk := job.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	catalog := market.NewCatalog(job.MarketRows, job.Synonyms)
	total := len(job.Providers) * len(job.Scenarios)
	started := time.Now()

	run.begin(total)
	log.Printf("[Batch] Run %s: started (%d providers x %d scenarios, chunk=%d)",
		run.ID, len(job.Providers), len(job.Scenarios), chunk)

	results := make([]RowResult, 0, total)
	sinceReport := 0

	for _, p := range job.Providers {
		row, status := catalog.Match(p)

		for _, sc := range job.Scenarios {
			if err := ctx.Err(); err != nil {
				log.Printf("[Batch] Run %s: cancelled after %d/%d rows", run.ID, len(results), total)
				run.cancelTerminal()
				return
			}

			res := engine.Evaluate(p, row, sc.Inputs)
			results = append(results, RowResult{
				ProviderID:   p.ID(),
				ProviderName: p.ProviderName,
				Specialty:    p.Specialty,
				ScenarioID:   sc.ID,
				ScenarioName: sc.Name,
				MatchStatus:  status,
				Results:      res,
				RiskFlags:    assessRisk(res, row, status),
			})

			sinceReport++
			if sinceReport >= chunk {
				run.report(len(results), total, time.Since(started))
				sinceReport = 0
			}
		}
	}

	run.report(len(results), total, time.Since(started))
	run.complete(results)
	log.Printf("[Batch] Run %s: completed %d rows in %v", run.ID, total, time.Since(started))
}
