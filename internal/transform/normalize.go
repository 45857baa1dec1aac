//-------------------------------------------------------------------------
//
// pgEdge Star Schema Loader
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package transform

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pgEdge/pgedge-starload/internal/model"
)

// ZipWidth is the fixed width of a zip-code prefix join key.
const ZipWidth = 5

// Unknown is the sentinel used for missing categorical text.
const Unknown = "unknown"

// timestampLayouts are tried in order; the first match wins.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
}

// cells gives by-name access to the cells of a raw row.
type cells struct {
	index map[string]int
}

func newCells(t *model.RawTable) cells {
	index := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	return cells{index: index}
}

// get returns the trimmed cell, or "" when the column is absent.
func (c cells) get(row []string, column string) string {
	i, ok := c.index[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// dropDuplicates removes rows whose cells are all identical to an earlier row.
// The first occurrence is kept and input order is preserved.
func dropDuplicates(rows [][]string) ([][]string, int) {
	seen := make(map[string]struct{}, len(rows))
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		key := strings.Join(row, "\x1f")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out, len(rows) - len(out)
}

// ParseTimestamp parses s leniently. Unparsable or empty values yield nil.
func ParseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// parseFloat returns nil for empty or non-numeric cells.
func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// parseInt accepts integral floats such as "3.0", which spreadsheet exports produce.
func parseInt(s string) *int {
	f := parseFloat(s)
	if f == nil || *f != math.Trunc(*f) {
		return nil
	}
	v := int(*f)
	return &v
}

// PadZip left-pads a zip-code prefix with zeros. Numeric renderings such as
// "1234.0" are normalized first. Empty values stay empty.
func PadZip(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && f >= 0 {
		s = strconv.FormatInt(int64(f), 10)
	}
	if len(s) >= ZipWidth {
		return s
	}
	return strings.Repeat("0", ZipWidth-len(s)) + s
}

// geoNormalizer title-cases cities and upper-cases states. A letter after
// an apostrophe starts a word ("D'Oeste").
// A cases.Caser is stateful, so each cleaner call owns its own normalizer.
type geoNormalizer struct {
	title cases.Caser
}

func newGeoNormalizer() *geoNormalizer {
	return &geoNormalizer{title: cases.Title(language.Und)}
}

func (g *geoNormalizer) city(s string) string {
	if s == "" {
		return ""
	}
	parts := strings.Split(s, "'")
	for i, p := range parts {
		parts[i] = g.title.String(p)
	}
	return strings.Join(parts, "'")
}

func (g *geoNormalizer) state(s string) string {
	return strings.ToUpper(s)
}

// Median returns the median of values, or nil when values is empty.
func Median(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	m := sorted[mid]
	if len(sorted)%2 == 0 {
		m = (sorted[mid-1] + sorted[mid]) / 2
	}
	return &m
}

// Mode returns the most frequent non-empty value. Ties resolve to the
// lexicographically smallest value. An empty group yields fallback.
func Mode(values []string, fallback string) string {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		if v != "" {
			counts[v]++
		}
	}
	best, bestCount := fallback, 0
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v < best) {
			best, bestCount = v, n
		}
	}
	return best
}

// clipNonNegative clamps a required amount at zero. Unparsable amounts count
// as a domain violation and become zero.
func clipNonNegative(raw, column string, rep *SourceReport) float64 {
	v := parseFloat(raw)
	if v == nil {
		rep.violation(column, raw)
		return 0
	}
	if *v < 0 {
		rep.clip(column)
		return 0
	}
	return *v
}
