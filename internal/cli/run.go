package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-starload/internal/config"
	"github.com/pgEdge/pgedge-starload/internal/db"
	"github.com/pgEdge/pgedge-starload/internal/extract"
	"github.com/pgEdge/pgedge-starload/internal/logging"
	"github.com/pgEdge/pgedge-starload/internal/pipeline"
	"github.com/pgEdge/pgedge-starload/internal/warehouse"
)

var (
	runForce              bool
	runSerial             bool
	runBatchSize          int
	runMaxUnresolvedRatio float64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Rebuild the star schema from the CSV extracts",
	Long: `Read every extract from the data directory, clean it, build the star
schema and replace the persisted tables in one transaction.

Without --force the run is skipped when no extract changed since the last
successful load.

Example:
  pgedge-starload run --data-dir ./data --connection "postgres://..."
  pgedge-starload run --force --max-unresolved-ratio 0.05`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runForce, "force", false,
		"rebuild even when the extracts are older than the last load")
	runCmd.Flags().BoolVar(&runSerial, "serial", false,
		"run the cleaners one at a time")
	runCmd.Flags().IntVar(&runBatchSize, "batch-size", 0,
		"rows per COPY statement (default: 5000)")
	runCmd.Flags().Float64Var(&runMaxUnresolvedRatio, "max-unresolved-ratio", 0,
		"fail when a fact foreign key is unresolved for a larger share of rows (0 = disabled)")
}

// applyRunFlags overrides c with the run flags the user set.
func applyRunFlags(cmd *cobra.Command, c *config.Config) {
	if runSerial {
		c.Pipeline.ParallelTransform = false
	}
	if runBatchSize > 0 {
		c.Load.CopyBatchSize = runBatchSize
	}
	// An explicit 0 disables a threshold set in the config file.
	if cmd.Flags().Changed("max-unresolved-ratio") {
		c.Pipeline.MaxUnresolvedRatio = runMaxUnresolvedRatio
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	applyRunFlags(cmd, cfg)

	if err := cfg.ValidateRun(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logging.Info().
				Str("signal", sig.String()).
				Msg("Received shutdown signal, rolling back")
			cancel()
		case <-ctx.Done():
		}
	}()

	pool, err := db.Connect(ctx, cfg.Connection)
	if err != nil {
		return err
	}
	defer pool.Close()

	reader := extract.NewReader(afero.NewOsFs(), cfg.DataDir, cfg.Sources)

	if !runForce {
		fresh, err := pipeline.CheckFreshness(ctx, reader, func(ctx context.Context) (time.Time, bool, error) {
			return db.LastLoadedAt(ctx, pool)
		})
		if err != nil {
			return err
		}
		if !fresh.Rebuild {
			logging.Info().
				Time("sources_modified", fresh.SourcesAt).
				Time("last_loaded", fresh.LastLoadedAt).
				Msg("Star schema is up to date; use --force to rebuild")
			return nil
		}
		logging.Info().Str("reason", fresh.Reason).Msg("Rebuilding star schema")
	}

	loader := warehouse.NewLoader(pool, warehouse.Config{
		BatchSize:        cfg.Load.CopyBatchSize,
		ProgressInterval: int64(cfg.Load.ProgressInterval),
	})
	p := pipeline.New(reader, loader, pipeline.Config{
		ParallelTransform:  cfg.Pipeline.ParallelTransform,
		MaxUnresolvedRatio: cfg.Pipeline.MaxUnresolvedRatio,
	})

	report, runErr := p.Run(ctx)
	if report != nil {
		printReport(cmd.OutOrStdout(), report)
	}
	if runErr != nil {
		return fmt.Errorf("star schema was not replaced: %w", runErr)
	}
	return nil
}
