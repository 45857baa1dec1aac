package warehouse

import (
	"github.com/pgEdge/pgedge-starload/internal/logging"
)

// progressReporter logs COPY progress for one table each time another
// interval of rows has been sent.
type progressReporter struct {
	table    string
	total    int64
	current  int64
	interval int64
}

func newProgressReporter(table string, total, interval int64) *progressReporter {
	if interval <= 0 {
		interval = total + 1
	}
	return &progressReporter{table: table, total: total, interval: interval}
}

// Update records copied rows and logs when an interval boundary is crossed.
func (p *progressReporter) Update(rows int64) {
	old := p.current
	p.current += rows

	if p.current/p.interval > old/p.interval {
		pct := float64(p.current) / float64(p.total) * 100
		logging.Info().
			Str("table", p.table).
			Int64("rows", p.current).
			Int64("total", p.total).
			Float64("percent", pct).
			Msg("Copying rows")
	}
}

// Done logs completion of the table.
func (p *progressReporter) Done() {
	logging.Info().
		Str("table", p.table).
		Int64("rows", p.current).
		Msg("Table loaded")
}
