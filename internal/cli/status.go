package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-starload/internal/db"
	"github.com/pgEdge/pgedge-starload/internal/warehouse"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted star schema and its last load",
	Long: `Print the metadata recorded by the last committed load (run id, load
time, version) and the row count of every star table.

Fails when a star table is missing or empty.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateStatus(); err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Connection)
	if err != nil {
		return err
	}
	defer pool.Close()

	st, err := warehouse.ReadStatus(ctx, pool)
	if err != nil {
		return err
	}
	printStatus(cmd.OutOrStdout(), st)

	return st.Validate()
}
