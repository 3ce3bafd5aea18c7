/*
errors.go - Centralized error types for the modeler

PURPOSE:
  All sentinel errors in one place for consistency and discoverability.
  Note the deliberate asymmetry: Evaluate itself NEVER returns an error for
  business-data problems (missing numbers, zero divisors, absent benchmarks
  all resolve to defined fallback values). These sentinels cover everything
  around the engine: persistence, batch orchestration, file ingest.

USAGE:
  if errors.Is(err, engine.ErrProviderNotFound) {
      writeError(w, http.StatusNotFound, ...)
  }

SEE ALSO:
  - scenario.go: The fallback rules that replace engine-level errors
  - store/sqlite: Wraps these with storage context
*/
package engine

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrProviderNotFound is returned when a referenced provider row
	// doesn't exist.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrScenarioNotFound is returned when a referenced scenario doesn't exist.
	ErrScenarioNotFound = errors.New("scenario not found")

	// ErrRunNotFound is returned when a referenced batch run doesn't exist.
	ErrRunNotFound = errors.New("batch run not found")

	// ErrRunActive is returned when a batch run is still in flight and the
	// requested operation needs a terminal run.
	ErrRunActive = errors.New("batch run still active")

	// ErrRunCancelled is the terminal error of a cancelled batch run. A
	// cancelled run commits no partial results.
	ErrRunCancelled = errors.New("batch run cancelled")

	// ErrDuplicateID is returned when creating a record whose id already
	// exists.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrEmptyUpload is returned when an uploaded file contains no data rows.
	ErrEmptyUpload = errors.New("upload contains no data rows")

	// ErrUnknownFormat is returned for uploads that are neither CSV nor XLSX.
	ErrUnknownFormat = errors.New("unsupported upload format")
)

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProviderNotFound) ||
		errors.Is(err, ErrScenarioNotFound) ||
		errors.Is(err, ErrRunNotFound)
}

// IsClientError returns true if the error is due to invalid client input
// rather than a server-side failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDuplicateID) ||
		errors.Is(err, ErrEmptyUpload) ||
		errors.Is(err, ErrUnknownFormat) ||
		errors.Is(err, ErrRunActive)
}
