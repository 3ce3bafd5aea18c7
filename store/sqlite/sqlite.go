/*
Package sqlite provides SQLite-backed persistence for the modeler.

PURPOSE:
  Stores everything the API serves between requests: provider rosters,
  market benchmark rows, the specialty synonym table, saved scenarios, and
  terminal batch runs with their result rows. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  providers:      Uploaded roster rows (indexed columns + full row as JSON)
  market_rows:    Benchmark bands per specialty/type/region
  synonyms:       Specialty alias -> canonical specialty
  scenarios:      Saved what-ifs; inputs stored as JSON
  batch_runs:     Terminal batch runs (status, progress, error)
  batch_results:  Result rows of completed runs, JSON per row

JSON COLUMNS:
  Nested shapes (base pay components, scenario inputs, result rows) are
  stored as JSON rather than exploded into columns. They are read and
  written whole; nothing queries inside them.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened in WAL mode:
  multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/comp.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - api: The only consumer
  - engine/types.go: The shapes being persisted
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/comp-engine/batch"
	"github.com/warp/comp-engine/engine"
)

// Store implements modeler persistence using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS providers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		specialty TEXT,
		division TEXT,
		provider_type TEXT,
		row_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_providers_specialty
		ON providers(specialty);

	CREATE TABLE IF NOT EXISTS market_rows (
		specialty TEXT NOT NULL,
		provider_type TEXT NOT NULL DEFAULT '',
		region TEXT NOT NULL DEFAULT '',
		row_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (specialty, provider_type, region)
	);

	CREATE TABLE IF NOT EXISTS synonyms (
		alias TEXT PRIMARY KEY,
		canonical TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS scenarios (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		inputs_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS batch_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0,
		total INTEGER NOT NULL DEFAULT 0,
		elapsed_ms INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at TEXT NOT NULL,
		finished_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_batch_runs_status
		ON batch_runs(status);

	CREATE TABLE IF NOT EXISTS batch_results (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		row_json TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// =============================================================================
// PROVIDERS
// =============================================================================

// SaveProvider upserts one provider row.
func (s *Store) SaveProvider(ctx context.Context, p engine.ProviderRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveProvider(ctx, s.db, p)
}

// SaveProviders upserts a whole upload in one transaction.
func (s *Store) SaveProviders(ctx context.Context, providers []engine.ProviderRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range providers {
		if err := s.saveProvider(ctx, tx, p); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) saveProvider(ctx context.Context, db execer, p engine.ProviderRow) error {
	if p.ID() == "" {
		return fmt.Errorf("provider row has no id or name")
	}
	rowJSON, err := json.Marshal(providerDoc(p))
	if err != nil {
		return fmt.Errorf("failed to encode provider: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO providers (id, name, specialty, division, provider_type, row_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			specialty = excluded.specialty,
			division = excluded.division,
			provider_type = excluded.provider_type,
			row_json = excluded.row_json,
			updated_at = excluded.updated_at
	`, p.ID(), p.ProviderName, p.Specialty, p.Division, p.ProviderType, string(rowJSON), now(), now())
	if err != nil {
		return fmt.Errorf("failed to save provider %s: %w", p.ID(), err)
	}
	return nil
}

// GetProvider returns one provider by id.
func (s *Store) GetProvider(ctx context.Context, id string) (engine.ProviderRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rowJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT row_json FROM providers WHERE id = ?`, id).Scan(&rowJSON)
	if err == sql.ErrNoRows {
		return engine.ProviderRow{}, engine.ErrProviderNotFound
	}
	if err != nil {
		return engine.ProviderRow{}, fmt.Errorf("failed to get provider %s: %w", id, err)
	}
	return decodeProvider(rowJSON)
}

// ListProviders returns all provider rows ordered by name.
func (s *Store) ListProviders(ctx context.Context) ([]engine.ProviderRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT row_json FROM providers ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	defer rows.Close()

	var out []engine.ProviderRow
	for rows.Next() {
		var rowJSON string
		if err := rows.Scan(&rowJSON); err != nil {
			return nil, err
		}
		p, err := decodeProvider(rowJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProvider removes one provider row.
func (s *Store) DeleteProvider(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM providers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete provider %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrProviderNotFound
	}
	return nil
}

// =============================================================================
// MARKET ROWS AND SYNONYMS
// =============================================================================

// SaveMarketRows upserts benchmark rows in one transaction.
func (s *Store) SaveMarketRows(ctx context.Context, rows []engine.MarketRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range rows {
		if strings.TrimSpace(m.Specialty) == "" {
			continue
		}
		rowJSON, err := json.Marshal(marketDoc(m))
		if err != nil {
			return fmt.Errorf("failed to encode market row: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO market_rows (specialty, provider_type, region, row_json, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(specialty, provider_type, region) DO UPDATE SET
				row_json = excluded.row_json
		`, m.Specialty, m.ProviderType, m.Region, string(rowJSON), now())
		if err != nil {
			return fmt.Errorf("failed to save market row %s: %w", m.Specialty, err)
		}
	}
	return tx.Commit()
}

// ListMarketRows returns all benchmark rows ordered by specialty.
func (s *Store) ListMarketRows(ctx context.Context) ([]engine.MarketRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT row_json FROM market_rows ORDER BY specialty, provider_type, region`)
	if err != nil {
		return nil, fmt.Errorf("failed to list market rows: %w", err)
	}
	defer rows.Close()

	var out []engine.MarketRow
	for rows.Next() {
		var rowJSON string
		if err := rows.Scan(&rowJSON); err != nil {
			return nil, err
		}
		m, err := decodeMarket(rowJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetSynonyms returns the full alias table.
func (s *Store) GetSynonyms(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT alias, canonical FROM synonyms`)
	if err != nil {
		return nil, fmt.Errorf("failed to list synonyms: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var alias, canonical string
		if err := rows.Scan(&alias, &canonical); err != nil {
			return nil, err
		}
		out[alias] = canonical
	}
	return out, rows.Err()
}

// PutSynonyms replaces the whole alias table. The synonym map is small
// admin config; replace-all keeps the edit surface simple.
func (s *Store) PutSynonyms(ctx context.Context, synonyms map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM synonyms`); err != nil {
		return fmt.Errorf("failed to clear synonyms: %w", err)
	}
	for alias, canonical := range synonyms {
		if strings.TrimSpace(alias) == "" || strings.TrimSpace(canonical) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO synonyms (alias, canonical) VALUES (?, ?)`, alias, canonical); err != nil {
			return fmt.Errorf("failed to save synonym %s: %w", alias, err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioRecord is a saved what-if.
type ScenarioRecord struct {
	ID          string
	Name        string
	Description string
	Inputs      engine.ScenarioInputs
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SaveScenario inserts a new scenario. The id must be unused.
func (s *Store) SaveScenario(ctx context.Context, rec ScenarioRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inputsJSON, err := json.Marshal(rec.Inputs)
	if err != nil {
		return fmt.Errorf("failed to encode scenario inputs: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scenarios (id, name, description, inputs_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Name, rec.Description, string(inputsJSON), now(), now())
	if err != nil {
		if isUniqueConstraintError(err) {
			return engine.ErrDuplicateID
		}
		return fmt.Errorf("failed to save scenario %s: %w", rec.ID, err)
	}
	return nil
}

// UpdateScenarioInputs replaces a scenario's inputs (used after a patch
// merge; the merge itself happens in the handler).
func (s *Store) UpdateScenarioInputs(ctx context.Context, id string, in engine.ScenarioInputs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inputsJSON, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode scenario inputs: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE scenarios SET inputs_json = ?, updated_at = ? WHERE id = ?
	`, string(inputsJSON), now(), id)
	if err != nil {
		return fmt.Errorf("failed to update scenario %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrScenarioNotFound
	}
	return nil
}

// GetScenario returns one scenario by id.
func (s *Store) GetScenario(ctx context.Context, id string) (*ScenarioRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, inputs_json, created_at, updated_at
		FROM scenarios WHERE id = ?
	`, id)

	rec, err := scanScenario(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrScenarioNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scenario %s: %w", id, err)
	}
	return rec, nil
}

// ListScenarios returns all scenarios ordered by creation time.
func (s *Store) ListScenarios(ctx context.Context) ([]ScenarioRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, inputs_json, created_at, updated_at
		FROM scenarios ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	defer rows.Close()

	var out []ScenarioRecord
	for rows.Next() {
		rec, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// DeleteScenario removes one scenario.
func (s *Store) DeleteScenario(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM scenarios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scenario %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrScenarioNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScenario(row rowScanner) (*ScenarioRecord, error) {
	var rec ScenarioRecord
	var inputsJSON, createdAt, updatedAt string
	var description sql.NullString

	if err := row.Scan(&rec.ID, &rec.Name, &description, &inputsJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	rec.Description = description.String
	if err := json.Unmarshal([]byte(inputsJSON), &rec.Inputs); err != nil {
		return nil, fmt.Errorf("failed to decode scenario inputs: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &rec, nil
}

// =============================================================================
// BATCH RUNS
// =============================================================================

// RunRecord is the persisted form of a terminal batch run.
type RunRecord struct {
	ID         string
	Status     batch.Status
	Progress   batch.Progress
	Error      string
	CreatedAt  time.Time
	FinishedAt time.Time
}

// SaveRun persists a run's terminal state, and its result rows when the run
// completed. In-flight progress is served from memory; only terminal runs
// survive a restart.
func (s *Store) SaveRun(ctx context.Context, rec RunRecord, results []batch.RowResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var finished any
	if !rec.FinishedAt.IsZero() {
		finished = rec.FinishedAt.UTC().Format(time.RFC3339)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO batch_runs (id, status, processed, total, elapsed_ms, error, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			processed = excluded.processed,
			total = excluded.total,
			elapsed_ms = excluded.elapsed_ms,
			error = excluded.error,
			finished_at = excluded.finished_at
	`, rec.ID, string(rec.Status), rec.Progress.Processed, rec.Progress.Total,
		rec.Progress.ElapsedMs, nullString(rec.Error),
		rec.CreatedAt.UTC().Format(time.RFC3339), finished)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}

	for i, row := range results {
		rowJSON, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to encode result row: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO batch_results (run_id, seq, row_json) VALUES (?, ?, ?)
			ON CONFLICT(run_id, seq) DO UPDATE SET row_json = excluded.row_json
		`, rec.ID, i, string(rowJSON))
		if err != nil {
			return fmt.Errorf("failed to save result row: %w", err)
		}
	}
	return tx.Commit()
}

// GetRun returns a persisted run.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec RunRecord
	var status, createdAt string
	var errMsg, finishedAt sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, status, processed, total, elapsed_ms, error, created_at, finished_at
		FROM batch_runs WHERE id = ?
	`, id).Scan(&rec.ID, &status, &rec.Progress.Processed, &rec.Progress.Total,
		&rec.Progress.ElapsedMs, &errMsg, &createdAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, engine.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}

	rec.Status = batch.Status(status)
	rec.Error = errMsg.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if finishedAt.Valid {
		rec.FinishedAt, _ = time.Parse(time.RFC3339, finishedAt.String)
	}
	return &rec, nil
}

// ListRuns returns persisted runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, processed, total, elapsed_ms, error, created_at, finished_at
		FROM batch_runs ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var status, createdAt string
		var errMsg, finishedAt sql.NullString
		if err := rows.Scan(&rec.ID, &status, &rec.Progress.Processed, &rec.Progress.Total,
			&rec.Progress.ElapsedMs, &errMsg, &createdAt, &finishedAt); err != nil {
			return nil, err
		}
		rec.Status = batch.Status(status)
		rec.Error = errMsg.String
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if finishedAt.Valid {
			rec.FinishedAt, _ = time.Parse(time.RFC3339, finishedAt.String)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetRunResults returns the persisted result rows of a completed run.
func (s *Store) GetRunResults(ctx context.Context, id string) ([]batch.RowResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT row_json FROM batch_results WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list results for run %s: %w", id, err)
	}
	defer rows.Close()

	var out []batch.RowResult
	for rows.Next() {
		var rowJSON string
		if err := rows.Scan(&rowJSON); err != nil {
			return nil, err
		}
		var row batch.RowResult
		if err := json.Unmarshal([]byte(rowJSON), &row); err != nil {
			return nil, fmt.Errorf("failed to decode result row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// =============================================================================
// RESET
// =============================================================================

// Reset wipes every table. Used by the demo loaders and tests.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{
		"providers", "market_rows", "synonyms", "scenarios", "batch_runs", "batch_results",
	} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
