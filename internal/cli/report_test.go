package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pgEdge/pgedge-starload/internal/pipeline"
	"github.com/pgEdge/pgedge-starload/internal/star"
	"github.com/pgEdge/pgedge-starload/internal/transform"
	"github.com/pgEdge/pgedge-starload/internal/warehouse"
)

func TestFormatCounts(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]int
		want string
	}{
		{"empty", nil, "-"},
		{"single", map[string]int{"price": 2}, "price=2"},
		{"sorted", map[string]int{"zeta": 1, "alpha": 3}, "alpha=3 zeta=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatCounts(tt.in); got != tt.want {
				t.Errorf("formatCounts() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintReport(t *testing.T) {
	report := &pipeline.Report{
		Transform: &transform.Report{Sources: []*transform.SourceReport{{
			Source:            "orders",
			RowsIn:            3,
			RowsOut:           2,
			DuplicatesDropped: 1,
			DomainViolations:  map[string]int{"order_status": 1},
		}}},
		Dimensions: []*star.DimensionReport{
			{Dimension: star.DimCustomers, RowsIn: 3, Rows: 2, RepeatedKeys: 1},
		},
		Fact: &star.FactReport{
			Rows:       4,
			Unresolved: map[string]int{star.ColSellerKey: 1},
		},
		Load: &warehouse.LoadResult{
			RunID:    "run-42",
			LoadedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Rows:     map[string]int64{warehouse.TableFacts: 4},
		},
		Elapsed: map[pipeline.Phase]time.Duration{pipeline.PhaseExtract: time.Second},
	}

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()

	for _, want := range []string{"order_status=1", star.DimCustomers, "25.00%", "run-42", warehouse.TableFacts, "extract=1s"} {
		if !strings.Contains(out, want) {
			t.Errorf("report output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintReportPartial(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &pipeline.Report{})
	if buf.Len() != 0 {
		t.Errorf("expected no output for an empty report, got %q", buf.String())
	}
}

func TestPrintStatus(t *testing.T) {
	st := &warehouse.Status{
		Metadata: map[string]string{"run_id": "abc", "version": "0.3.0"},
		Tables:   []warehouse.TableCount{{Table: warehouse.TableDates, Rows: 12}},
	}

	var buf bytes.Buffer
	printStatus(&buf, st)
	out := buf.String()

	if strings.Index(out, "abc") > strings.Index(out, "0.3.0") {
		t.Error("metadata keys should be sorted")
	}
	if !strings.Contains(out, warehouse.TableDates) || !strings.Contains(out, "12") {
		t.Errorf("status output missing table counts:\n%s", out)
	}
}
