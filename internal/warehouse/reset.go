package warehouse

import (
	"context"
	"fmt"

	"github.com/pgEdge/pgedge-starload/internal/db"
	"github.com/pgEdge/pgedge-starload/internal/logging"
)

// Reset drops every star table and the run metadata in one transaction.
// Afterwards the next run rebuilds unconditionally.
func Reset(ctx context.Context, beginner TxBeginner) error {
	tx, err := beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if _, err := tx.Exec(ctx, DropSchemaSQL); err != nil {
		return fmt.Errorf("failed to drop star tables: %w", err)
	}
	if err := db.DropMetadata(ctx, tx); err != nil {
		return fmt.Errorf("failed to drop metadata: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}

	logging.Info().Int("tables", len(TableNames)).Msg("Star schema dropped")
	return nil
}
