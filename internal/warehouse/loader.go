//-------------------------------------------------------------------------
//
// pgEdge Star Schema Loader
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pgEdge/pgedge-starload/internal/db"
	"github.com/pgEdge/pgedge-starload/internal/logging"
	"github.com/pgEdge/pgedge-starload/pkg/version"
)

// TxBeginner starts the load transaction. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Config configures bulk copy behavior.
type Config struct {
	// BatchSize is the number of rows per COPY statement.
	BatchSize int

	// ProgressInterval is how often to log progress (in rows).
	ProgressInterval int64
}

// DefaultConfig returns default loader configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:        5000,
		ProgressInterval: 100000,
	}
}

// LoadResult describes a committed load.
type LoadResult struct {
	RunID    string
	LoadedAt time.Time
	Rows     map[string]int64
	Duration time.Duration
}

// Loader writes star tables to PostgreSQL atomically.
type Loader struct {
	db  TxBeginner
	cfg Config
	now func() time.Time
}

// NewLoader creates a loader. Zero config values fall back to defaults.
func NewLoader(beginner TxBeginner, cfg Config) *Loader {
	defaults := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = defaults.ProgressInterval
	}
	return &Loader{db: beginner, cfg: cfg, now: time.Now}
}

// Load executes ddl and copies every table, in order, within one
// transaction, then records run metadata in the same transaction. On any
// error the transaction is rolled back and the database is left as it was.
func (l *Loader) Load(ctx context.Context, ddl string, tables []Table) (*LoadResult, error) {
	start := l.now()
	result := &LoadResult{
		RunID: uuid.NewString(),
		Rows:  make(map[string]int64, len(tables)),
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		// Roll back even when ctx is already canceled.
		rbErr := tx.Rollback(context.WithoutCancel(ctx))
		if rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			logging.Error().Err(rbErr).Msg("Failed to roll back load transaction")
			return
		}
		logging.Warn().Str("run_id", result.RunID).Msg("Load rolled back")
	}()

	if _, err := tx.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	for _, t := range tables {
		n, err := l.copyTable(ctx, tx, t)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", t.Name, err)
		}
		result.Rows[t.Name] = n
	}

	result.LoadedAt = l.now().UTC()
	meta := map[string]string{
		db.KeyRunID:    result.RunID,
		db.KeyLoadedAt: result.LoadedAt.Format(time.RFC3339Nano),
		db.KeyVersion:  version.Short(),
	}
	for name, n := range result.Rows {
		meta[db.RowsKey(name)] = strconv.FormatInt(n, 10)
	}
	if err := db.SaveMetadata(ctx, tx, meta); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit load: %w", err)
	}
	committed = true
	result.Duration = l.now().Sub(start)

	logging.Info().
		Str("run_id", result.RunID).
		Int("tables", len(tables)).
		Dur("duration", result.Duration).
		Msg("All tables loaded")

	return result, nil
}

// copyTable streams a table through COPY in batches.
func (l *Loader) copyTable(ctx context.Context, tx pgx.Tx, t Table) (int64, error) {
	total := int64(len(t.Rows))
	logging.Info().Str("table", t.Name).Int64("rows", total).Msg("Loading table")

	progress := newProgressReporter(t.Name, total, l.cfg.ProgressInterval)
	var copied int64
	for start := 0; start < len(t.Rows); start += l.cfg.BatchSize {
		end := min(start+l.cfg.BatchSize, len(t.Rows))
		n, err := tx.CopyFrom(ctx, pgx.Identifier{t.Name}, t.Columns, pgx.CopyFromRows(t.Rows[start:end]))
		if err != nil {
			return copied, err
		}
		copied += n
		progress.Update(n)
	}
	progress.Done()
	return copied, nil
}
