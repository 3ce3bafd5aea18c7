/*
Package market resolves providers to benchmark rows.

PURPOSE:
  A scenario can only produce percentile fields when the provider's specialty
  maps to a market benchmark. This package owns that mapping: specialty
  normalization, the synonym table ("Cardiovascular Disease" -> "Cardiology"),
  and the lookup itself.

KEY CONCEPTS:
  - Catalog: An in-memory index over a slice of MarketRows
  - SynonymMap: Admin-maintained specialty aliases, normalized on both sides
  - MatchStatus: Whether a provider matched directly, via synonym, or not
    at all. Surfaced per row in batch results so reviewers can spot
    providers silently modeled without benchmarks.

MATCHING RULES:
  1. Normalize (trim, lowercase, collapse inner whitespace)
  2. Direct: same specialty AND same provider type
  3. Direct: same specialty, any provider type
  4. Synonym: translate the specialty through the synonym map, retry 2-3
  5. Otherwise: no match; the engine still runs, percentiles are omitted

SEE ALSO:
  - engine: Consumes the matched row (nil is legal)
  - store/sqlite: Persists rows and synonyms
*/
package market

import (
	"strings"

	"github.com/warp/comp-engine/engine"
)

// =============================================================================
// MATCH STATUS
// =============================================================================

// MatchStatus describes how (or whether) a provider found a benchmark row.
type MatchStatus string

const (
	// StatusMatched is a direct specialty match.
	StatusMatched MatchStatus = "matched"

	// StatusSynonym matched after translating the specialty through the
	// synonym map.
	StatusSynonym MatchStatus = "synonym"

	// StatusMissing means no benchmark row covers the provider. Scenarios
	// still evaluate; percentile fields are omitted.
	StatusMissing MatchStatus = "missing"
)

// =============================================================================
// SYNONYM MAP
// =============================================================================

// SynonymMap maps alternate specialty spellings to the canonical benchmark
// specialty. Keys and values are stored normalized.
type SynonymMap map[string]string

// NewSynonymMap normalizes a raw alias table. Self-referential and empty
// entries are dropped.
func NewSynonymMap(raw map[string]string) SynonymMap {
	m := make(SynonymMap, len(raw))
	for alias, canonical := range raw {
		a := Normalize(alias)
		c := Normalize(canonical)
		if a == "" || c == "" || a == c {
			continue
		}
		m[a] = c
	}
	return m
}

// Resolve translates a specialty through the map, returning the canonical
// name and whether a translation happened. One hop only: synonym chains are
// an authoring mistake, not a feature.
func (m SynonymMap) Resolve(specialty string) (string, bool) {
	canonical, ok := m[Normalize(specialty)]
	return canonical, ok
}

// Normalize trims, lowercases and collapses inner whitespace so that
// "  Internal  Medicine " and "internal medicine" compare equal.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// =============================================================================
// CATALOG
// =============================================================================

type catalogKey struct {
	specialty    string
	providerType string
}

// Catalog is an in-memory benchmark index. Build it once per request or per
// batch run; it is cheap and read-only after construction.
type Catalog struct {
	byKey       map[catalogKey]*engine.MarketRow
	bySpecialty map[string]*engine.MarketRow
	synonyms    SynonymMap
}

// NewCatalog indexes rows for lookup. On duplicate keys the first row wins,
// matching upload order. synonyms may be nil.
func NewCatalog(rows []engine.MarketRow, synonyms SynonymMap) *Catalog {
	c := &Catalog{
		byKey:       make(map[catalogKey]*engine.MarketRow, len(rows)),
		bySpecialty: make(map[string]*engine.MarketRow, len(rows)),
		synonyms:    synonyms,
	}
	for i := range rows {
		row := &rows[i]
		spec := Normalize(row.Specialty)
		if spec == "" {
			continue
		}
		key := catalogKey{spec, Normalize(row.ProviderType)}
		if _, dup := c.byKey[key]; !dup {
			c.byKey[key] = row
		}
		if _, dup := c.bySpecialty[spec]; !dup {
			c.bySpecialty[spec] = row
		}
	}
	return c
}

// Match resolves a provider to its benchmark row. The returned row is nil
// exactly when the status is StatusMissing.
func (c *Catalog) Match(p engine.ProviderRow) (*engine.MarketRow, MatchStatus) {
	spec := Normalize(p.Specialty)
	if spec == "" {
		return nil, StatusMissing
	}

	if row := c.lookup(spec, Normalize(p.ProviderType)); row != nil {
		return row, StatusMatched
	}

	if canonical, ok := c.synonyms.Resolve(spec); ok {
		if row := c.lookup(canonical, Normalize(p.ProviderType)); row != nil {
			return row, StatusSynonym
		}
	}

	return nil, StatusMissing
}

// lookup prefers the exact (specialty, provider type) row, falling back to
// any row for the specialty.
func (c *Catalog) lookup(specialty, providerType string) *engine.MarketRow {
	if row, ok := c.byKey[catalogKey{specialty, providerType}]; ok {
		return row
	}
	return c.bySpecialty[specialty]
}
