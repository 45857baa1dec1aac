package star

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pgEdge/pgedge-starload/internal/logging"
)

// ErrUnresolvedThreshold is returned when too many fact rows carry an
// unresolved foreign key.
var ErrUnresolvedThreshold = errors.New("unresolved foreign keys above threshold")

const maxSamples = 5

// FactReport carries the referential anomalies found while building facts.
type FactReport struct {
	// Rows is the number of fact rows produced.
	Rows int

	// DuplicateLines counts repeated (order_id, order_item_id) pairs dropped.
	DuplicateLines int

	// OrphanLines counts line items whose order is missing.
	OrphanLines int

	// Unresolved counts nil foreign keys per fact column.
	Unresolved map[string]int

	// Samples holds a few offending natural keys per column.
	Samples map[string][]string
}

func newFactReport() *FactReport {
	return &FactReport{
		Unresolved: make(map[string]int),
		Samples:    make(map[string][]string),
	}
}

func (r *FactReport) unresolved(column, natural string) {
	r.Unresolved[column]++
	r.sample(column, natural)
}

func (r *FactReport) sample(column, natural string) {
	if len(r.Samples[column]) < maxSamples {
		r.Samples[column] = append(r.Samples[column], natural)
	}
}

// TotalUnresolved returns the number of nil foreign keys across all columns.
func (r *FactReport) TotalUnresolved() int {
	total := 0
	for _, n := range r.Unresolved {
		total += n
	}
	return total
}

// WorstRatio returns the column with the highest share of unresolved keys.
func (r *FactReport) WorstRatio() (string, float64) {
	if r.Rows == 0 {
		return "", 0
	}
	var worst string
	var ratio float64
	for _, col := range r.columns() {
		if v := float64(r.Unresolved[col]) / float64(r.Rows); v > ratio {
			worst, ratio = col, v
		}
	}
	return worst, ratio
}

// Check fails when any column's unresolved ratio exceeds maxRatio.
// A maxRatio of zero disables the check.
func (r *FactReport) Check(maxRatio float64) error {
	if maxRatio <= 0 {
		return nil
	}
	col, ratio := r.WorstRatio()
	if ratio > maxRatio {
		return fmt.Errorf("%w: %s at %.2f%% (limit %.2f%%)",
			ErrUnresolvedThreshold, col, ratio*100, maxRatio*100)
	}
	return nil
}

func (r *FactReport) log() {
	logging.Info().
		Int("rows", r.Rows).
		Int("duplicate_lines", r.DuplicateLines).
		Int("orphan_lines", r.OrphanLines).
		Msg("Fact table built")

	for _, col := range r.columns() {
		logging.Warn().
			Str("column", col).
			Int("count", r.Unresolved[col]).
			Strs("samples", r.Samples[col]).
			Msg("Unresolved foreign keys")
	}
}

func (r *FactReport) columns() []string {
	cols := make([]string, 0, len(r.Unresolved))
	for col := range r.Unresolved {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// Dimension names used in dimension reports.
const (
	DimGeolocation = "geolocation"
	DimCustomers   = "customers"
	DimSellers     = "sellers"
	DimProducts    = "products"
)

// DimensionReport counts the cleaned rows a dimension build did not key.
type DimensionReport struct {
	Dimension string

	// RowsIn is the number of cleaned rows offered to the builder.
	RowsIn int

	// Rows is the number of dimension rows produced.
	Rows int

	// EmptyKeys counts rows skipped for an empty natural key.
	EmptyKeys int

	// RepeatedKeys counts later rows repeating an already keyed natural key.
	RepeatedKeys int

	// Samples holds a few repeated natural keys.
	Samples []string
}

// Skipped is the number of rows that did not become dimension rows.
func (r *DimensionReport) Skipped() int {
	return r.EmptyKeys + r.RepeatedKeys
}

func (r *DimensionReport) sample(natural string) {
	if len(r.Samples) < maxSamples {
		r.Samples = append(r.Samples, natural)
	}
}

func (r *DimensionReport) log() {
	if r.Skipped() == 0 {
		logging.Debug().Str("dimension", r.Dimension).Int("rows", r.Rows).Msg("Dimension built")
		return
	}
	logging.Warn().
		Str("dimension", r.Dimension).
		Int("rows", r.Rows).
		Int("empty_keys", r.EmptyKeys).
		Int("repeated_keys", r.RepeatedKeys).
		Strs("samples", r.Samples).
		Msg("Dimension rows skipped")
}
