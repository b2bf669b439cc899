/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Full & Final settlement server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (flags > FNF_* env > config file > defaults)
  2. Initialize SQLite store
  3. Build the baseline fetcher (remote client, or fixtures when no URL)
  4. Build rules and line schema
  5. Register Prometheus metrics
  6. Configure HTTP router and start serving

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Fixture mode, in-memory database
  ./server --db=":memory:"

  # Against the remote computation service
  FNF_BASELINE_URL=https://erp.example.com FNF_BASELINE_TOKEN=key:secret ./server

  # Extra capped components
  ./server --rules=./rules.json

SEE ALSO:
  - config/config.go: Configuration keys
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/warp/settlement-engine/api"
	"github.com/warp/settlement-engine/baseline"
	"github.com/warp/settlement-engine/config"
	"github.com/warp/settlement-engine/factory"
	"github.com/warp/settlement-engine/metrics"
	"github.com/warp/settlement-engine/settlement"
	"github.com/warp/settlement-engine/store/sqlite"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Full & Final settlement recalculation server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	config.RegisterFlags(cmd.Flags())

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	store, err := sqlite.New(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	fetcher, fixtures, err := buildFetcher(cfg.Baseline)
	if err != nil {
		return err
	}
	applicator, err := buildApplicator(cfg.Engine)
	if err != nil {
		return err
	}

	opts := []api.HandlerOption{
		api.WithApplicator(applicator),
		api.WithRecorder(metrics.New(prometheus.DefaultRegisterer)),
	}
	if fixtures != nil {
		opts = append(opts, api.WithFixtures(fixtures))
	}
	handler := api.NewHandler(store, fetcher, opts...)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handler, cfg.Server.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Baseline.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Server starting on http://localhost:%d", cfg.Server.Port)
		if fixtures != nil {
			log.Printf("Baseline: %d fixtures (no baseline URL configured)", len(fixtures.List()))
		} else {
			log.Printf("Baseline: %s", cfg.Baseline.URL)
		}
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Println("Server stopped")
	return nil
}

func buildFetcher(cfg config.BaselineConfig) (settlement.Fetcher, *baseline.FixtureFetcher, error) {
	if !cfg.UseFixtures() {
		opts := []baseline.ClientOption{
			baseline.WithTimeout(cfg.Timeout),
			baseline.WithToken(cfg.Token),
		}
		if cfg.Method != "" {
			opts = append(opts, baseline.WithMethod(cfg.Method))
		}
		return baseline.NewClient(cfg.URL, opts...), nil, nil
	}

	fixtures := baseline.DefaultFixtures()
	if cfg.Fixtures != "" {
		loaded, err := baseline.LoadFixtures(cfg.Fixtures)
		if err != nil {
			return nil, nil, err
		}
		fixtures = loaded
	}
	ff := baseline.NewFixtureFetcher(fixtures)
	return ff, ff, nil
}

func buildApplicator(cfg config.EngineConfig) (*settlement.Applicator, error) {
	schema, err := cfg.Schema()
	if err != nil {
		return nil, err
	}
	rules := settlement.NewRules()
	if cfg.RulesPath != "" {
		rules, err = factory.NewRuleFactory().LoadRuleSet(cfg.RulesPath)
		if err != nil {
			return nil, err
		}
	}
	return &settlement.Applicator{Rules: rules, Schema: schema}, nil
}
