package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-starload/internal/db"
	"github.com/pgEdge/pgedge-starload/internal/warehouse"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop the star schema and its load metadata",
	Long: `Drop every star table and the load metadata table in one transaction.
The next 'run' rebuilds regardless of extract modification times.`,
	RunE: runReset,
}

func runReset(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateStatus(); err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Connection)
	if err != nil {
		return err
	}
	defer pool.Close()

	return warehouse.Reset(ctx, pool)
}
