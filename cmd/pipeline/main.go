package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/propintel/pipeline/internal/config"
	"github.com/propintel/pipeline/internal/database"
	"github.com/propintel/pipeline/internal/logger"
	"github.com/propintel/pipeline/internal/pipeline"
	"github.com/propintel/pipeline/internal/repository"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pipeline",
		Short: "Entity-resolution and valuation pipeline",
		Long: `Reconciles raw sale transactions, the condo-unit registry, and the
canonical parcel table into a single property/unit graph, then derives
comparable-sales groupings and opportunity scores.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newStageCmd("match", "Resolve raw sales against the identity graph",
			func(ctx context.Context, p *pipeline.Pipeline) (interface{}, error) {
				return p.MatchSales(ctx)
			}),
		newStageCmd("populate-units", "Rebuild the condo_units table",
			func(ctx context.Context, p *pipeline.Pipeline) (interface{}, error) {
				return p.PopulateUnits(ctx)
			}),
		newStageCmd("score", "Select comparables and recompute opportunity scores",
			func(ctx context.Context, p *pipeline.Pipeline) (interface{}, error) {
				return p.ScoreProperties(ctx)
			}),
		newStageCmd("enrich", "Geocode units missing coordinates",
			func(ctx context.Context, p *pipeline.Pipeline) (interface{}, error) {
				return p.EnrichUnits(ctx)
			}),
		newStageCmd("run", "Run every pipeline stage in order",
			func(ctx context.Context, p *pipeline.Pipeline) (interface{}, error) {
				return p.Run(ctx)
			}),
	)

	return root
}

// newStageCmd wraps one pipeline stage as a subcommand. Every stage prints
// its summary as JSON on stdout; that output is the contract dashboards
// and alerting scrape.
func newStageCmd(name, short string, stage func(context.Context, *pipeline.Pipeline) (interface{}, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, cleanup, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			summary, err := stage(ctx, p)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to render summary: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

// bootstrap loads configuration, connects the database pool, and wires
// repositories into a Pipeline. The caller owns the returned cleanup.
func bootstrap(ctx context.Context) (*pipeline.Pipeline, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(cfg.Env)
	log.Info("Starting pipeline", map[string]interface{}{
		"environment": cfg.Env,
	})

	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	p := pipeline.New(
		cfg,
		log,
		repository.NewParcelRepository(db),
		repository.NewRegistryRepository(db),
		repository.NewSaleRepository(db),
		repository.NewUnitRepository(db),
		repository.NewPropertyRepository(db),
		nil, // geocoding service is wired by the enrichment deployment
	)

	return p, db.Close, nil
}
