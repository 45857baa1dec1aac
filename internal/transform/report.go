package transform

import (
	"sort"

	"github.com/pgEdge/pgedge-starload/internal/logging"
)

// maxSamples bounds how many offending values are kept per column.
const maxSamples = 5

// SourceReport carries the data-quality counters for one cleaned source.
type SourceReport struct {
	// Source is the catalog name of the cleaned source.
	Source string

	// RowsIn is the number of raw rows read.
	RowsIn int

	// RowsOut is the number of cleaned rows produced.
	RowsOut int

	// DuplicatesDropped counts exact duplicate raw rows that were removed.
	DuplicatesDropped int

	// DomainViolations counts flagged values per column. Flagged rows are kept.
	DomainViolations map[string]int

	// Clipped counts numeric values clamped into their allowed range per column.
	Clipped map[string]int

	// Samples holds a few offending values per column for diagnostics.
	Samples map[string][]string
}

func newSourceReport(source string, rowsIn int) *SourceReport {
	return &SourceReport{
		Source:           source,
		RowsIn:           rowsIn,
		DomainViolations: make(map[string]int),
		Clipped:          make(map[string]int),
		Samples:          make(map[string][]string),
	}
}

func (r *SourceReport) violation(column, value string) {
	r.DomainViolations[column]++
	if len(r.Samples[column]) < maxSamples {
		r.Samples[column] = append(r.Samples[column], value)
	}
}

func (r *SourceReport) clip(column string) {
	r.Clipped[column]++
}

// TotalViolations returns the number of flagged values across all columns.
func (r *SourceReport) TotalViolations() int {
	total := 0
	for _, n := range r.DomainViolations {
		total += n
	}
	return total
}

// TotalClipped returns the number of clipped values across all columns.
func (r *SourceReport) TotalClipped() int {
	total := 0
	for _, n := range r.Clipped {
		total += n
	}
	return total
}

func (r *SourceReport) log() {
	logging.Info().
		Str("source", r.Source).
		Int("rows_in", r.RowsIn).
		Int("rows_out", r.RowsOut).
		Int("duplicates_dropped", r.DuplicatesDropped).
		Msg("Cleaned source")

	for _, col := range sortedKeys(r.DomainViolations) {
		logging.Warn().
			Str("source", r.Source).
			Str("column", col).
			Int("count", r.DomainViolations[col]).
			Strs("samples", r.Samples[col]).
			Msg("Domain violations flagged")
	}
	for _, col := range sortedKeys(r.Clipped) {
		logging.Info().
			Str("source", r.Source).
			Str("column", col).
			Int("count", r.Clipped[col]).
			Msg("Values clipped")
	}
}

// Report aggregates the per-source reports of one transform phase.
type Report struct {
	Sources []*SourceReport
}

// Get returns the report for a source, or nil.
func (r *Report) Get(source string) *SourceReport {
	for _, s := range r.Sources {
		if s != nil && s.Source == source {
			return s
		}
	}
	return nil
}

// DuplicatesDropped returns the total number of duplicate rows removed.
func (r *Report) DuplicatesDropped() int {
	total := 0
	for _, s := range r.Sources {
		total += s.DuplicatesDropped
	}
	return total
}

// DomainViolations returns the total number of flagged values.
func (r *Report) DomainViolations() int {
	total := 0
	for _, s := range r.Sources {
		total += s.TotalViolations()
	}
	return total
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
