package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/pgEdge/pgedge-starload/internal/pipeline"
	"github.com/pgEdge/pgedge-starload/internal/star"
	"github.com/pgEdge/pgedge-starload/internal/transform"
	"github.com/pgEdge/pgedge-starload/internal/warehouse"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// printReport renders whatever part of a run report is available.
func printReport(w io.Writer, r *pipeline.Report) {
	if r.Transform != nil {
		fmt.Fprintln(w, "\nData quality:")
		printTransformReport(w, r.Transform)
	}
	if len(r.Dimensions) > 0 {
		fmt.Fprintln(w, "\nDimensions:")
		printDimensionReports(w, r.Dimensions)
	}
	if r.Fact != nil {
		fmt.Fprintln(w, "\nFact table:")
		printFactReport(w, r.Fact)
	}
	if r.Load != nil {
		fmt.Fprintf(w, "\nLoaded run %s at %s:\n", r.Load.RunID, r.Load.LoadedAt.Format(time.RFC3339))
		printLoadResult(w, r.Load)
	}
	if len(r.Elapsed) > 0 {
		var parts []string
		for _, ph := range pipeline.Phases {
			if d, ok := r.Elapsed[ph]; ok {
				parts = append(parts, fmt.Sprintf("%s=%s", ph, d.Round(time.Millisecond)))
			}
		}
		fmt.Fprintf(w, "\nElapsed: %s\n", strings.Join(parts, " "))
	}
}

func printTransformReport(w io.Writer, r *transform.Report) {
	table := newTable(w, "Source", "Rows In", "Rows Out", "Duplicates", "Violations", "Clipped")
	for _, s := range r.Sources {
		table.Append([]string{
			s.Source,
			fmt.Sprintf("%d", s.RowsIn),
			fmt.Sprintf("%d", s.RowsOut),
			fmt.Sprintf("%d", s.DuplicatesDropped),
			formatCounts(s.DomainViolations),
			formatCounts(s.Clipped),
		})
	}
	table.Render()
}

func printDimensionReports(w io.Writer, reports []*star.DimensionReport) {
	table := newTable(w, "Dimension", "Rows In", "Rows", "Empty Keys", "Repeated Keys")
	for _, r := range reports {
		table.Append([]string{
			r.Dimension,
			fmt.Sprintf("%d", r.RowsIn),
			fmt.Sprintf("%d", r.Rows),
			fmt.Sprintf("%d", r.EmptyKeys),
			fmt.Sprintf("%d", r.RepeatedKeys),
		})
	}
	table.Render()
}

func printFactReport(w io.Writer, r *star.FactReport) {
	table := newTable(w, "Column", "Unresolved", "Ratio")
	for _, col := range star.ForeignKeyColumns {
		n := r.Unresolved[col]
		ratio := 0.0
		if r.Rows > 0 {
			ratio = float64(n) / float64(r.Rows)
		}
		table.Append([]string{col, fmt.Sprintf("%d", n), fmt.Sprintf("%.2f%%", ratio*100)})
	}
	table.Render()
	fmt.Fprintf(w, "rows=%d duplicate_lines=%d orphan_lines=%d\n", r.Rows, r.DuplicateLines, r.OrphanLines)
}

func printLoadResult(w io.Writer, r *warehouse.LoadResult) {
	table := newTable(w, "Table", "Rows")
	for _, name := range warehouse.TableNames {
		if n, ok := r.Rows[name]; ok {
			table.Append([]string{name, fmt.Sprintf("%d", n)})
		}
	}
	table.Render()
}

func printStatus(w io.Writer, st *warehouse.Status) {
	keys := make([]string, 0, len(st.Metadata))
	for k := range st.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	meta := newTable(w, "Key", "Value")
	for _, k := range keys {
		meta.Append([]string{k, st.Metadata[k]})
	}
	meta.Render()

	fmt.Fprintln(w)
	counts := newTable(w, "Table", "Rows")
	for _, t := range st.Tables {
		counts.Append([]string{t.Table, fmt.Sprintf("%d", t.Rows)})
	}
	counts.Render()
}

// formatCounts renders a per-column count map as "col=n col=n", sorted.
func formatCounts(m map[string]int) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return strings.Join(parts, " ")
}
