package warehouse

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pgEdge/pgedge-starload/internal/db"
)

var (
	// ErrSchemaMissing is returned when a star table does not exist.
	ErrSchemaMissing = errors.New("star schema not found")

	// ErrEmptyTable is returned when a star table holds no rows.
	ErrEmptyTable = errors.New("star table is empty")
)

// TableCount is the row count of one star table.
type TableCount struct {
	Table string
	Rows  int64
}

// Status summarizes the persisted star schema.
type Status struct {
	Metadata map[string]string
	Tables   []TableCount
}

// ReadStatus reads row counts for every star table and the run metadata.
// It fails with ErrSchemaMissing when a table is absent.
func ReadStatus(ctx context.Context, q db.Querier) (*Status, error) {
	st := &Status{Metadata: map[string]string{}}

	for _, name := range TableNames {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, name).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check table %s: %w", name, err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrSchemaMissing, name)
		}

		var n int64
		sql := fmt.Sprintf("SELECT COUNT(*) FROM %s", pgx.Identifier{name}.Sanitize())
		if err := q.QueryRow(ctx, sql).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", name, err)
		}
		st.Tables = append(st.Tables, TableCount{Table: name, Rows: n})
	}

	exists, err := db.MetadataExists(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to check metadata table: %w", err)
	}
	if exists {
		meta, err := db.GetAllMetadata(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("failed to read metadata: %w", err)
		}
		st.Metadata = meta
	}
	return st, nil
}

// Validate fails with ErrEmptyTable when any star table has no rows.
func (s *Status) Validate() error {
	for _, t := range s.Tables {
		if t.Rows == 0 {
			return fmt.Errorf("%w: %s", ErrEmptyTable, t.Table)
		}
	}
	return nil
}
