/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payout settlement server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Build the zap logger and Prometheus metrics
  3. Open the configured store (sqlite, postgres or memory)
  4. Wire Aggregator, Controller and Reports
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides APP_ADDR)
  -db      SQLite database path (overrides SQLITE_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (APP_SHUTDOWN_TIMEOUT)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/payouts.db"

  # Run against the salon Postgres database
  STORE_DRIVER=postgres PG_DSN=postgres://... ./server

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/warp/payout-engine/api"
	"github.com/warp/payout-engine/config"
	"github.com/warp/payout-engine/observability"
	"github.com/warp/payout-engine/settlement"
	"github.com/warp/payout-engine/settlement/store"
	"github.com/warp/payout-engine/store/postgres"
	"github.com/warp/payout-engine/store/sqlite"
)

// backend is what every store driver provides to the server.
type backend interface {
	settlement.TxStore
	settlement.WorkerDirectory
	settlement.AppointmentLedger
	api.Seeder
}

func main() {
	// Flags
	port := flag.Int("port", 0, "HTTP server port (overrides APP_ADDR)")
	dbPath := flag.String("db", "", "SQLite database path (overrides SQLITE_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.AppAddr = fmt.Sprintf(":%d", *port)
	}
	if *dbPath != "" {
		cfg.SQLitePath = *dbPath
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	db, sales, closeDB, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer closeDB()
	if sales == nil {
		logger.Info("sales ledger not available, suggestions fall back to commission")
	}

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	agg := settlement.NewAggregator(db, sales, logger.Named("aggregator"))
	agg.CommissionRate = cfg.CommissionRate
	ctrl := settlement.NewController(db, db, agg, logger.Named("settlement"))
	if metrics != nil {
		agg.Observer = metrics
		ctrl.Observer = metrics
	}
	reports := &settlement.Reports{Store: db, Workers: db, Aggregator: agg}

	handler := api.NewHandler(ctrl, reports, logger.Named("http"))
	if !cfg.IsProduction() {
		handler.Seeder = db
	}
	if p, ok := db.(api.Pinger); ok {
		handler.Health = p
	}

	router := api.NewRouter(handler, api.RouterOptions{
		Metrics:            metrics,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Production:         cfg.IsProduction(),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
		IdleTimeout:  cfg.AppIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.AppAddr),
			zap.String("store", cfg.StoreDriver),
			zap.String("commission_rate", cfg.CommissionRate.String()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// openStore returns the configured backend and its sales ledger, which is
// nil when the deployment has no point-of-sale module.
func openStore(ctx context.Context, cfg *config.Config) (backend, settlement.SalesLedger, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pg, err := postgres.New(ctx, cfg.PGDSN, postgres.WithSalesTable(cfg.SalesLedgerEnabled))
		if err != nil {
			return nil, nil, nil, err
		}
		return pg, pg.Sales(), func() { pg.Close() }, nil
	case config.DriverMemory:
		mem := store.NewMemory()
		if !cfg.SalesLedgerEnabled {
			return mem, nil, func() {}, nil
		}
		return mem, mem, func() {}, nil
	default:
		db, err := sqlite.New(cfg.SQLitePath, sqlite.WithSalesTable(cfg.SalesLedgerEnabled))
		if err != nil {
			return nil, nil, nil, err
		}
		return db, db.Sales(), func() { db.Close() }, nil
	}
}
