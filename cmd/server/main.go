package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/kalshiplus/paper-engine/internal/alert"
	"github.com/kalshiplus/paper-engine/internal/api"
	"github.com/kalshiplus/paper-engine/internal/config"
	"github.com/kalshiplus/paper-engine/internal/kalshi"
	"github.com/kalshiplus/paper-engine/internal/ledger"
	"github.com/kalshiplus/paper-engine/internal/logging"
	"github.com/kalshiplus/paper-engine/internal/market"
	"github.com/kalshiplus/paper-engine/internal/store"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(cfg.Log, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("paper-engine exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Store ---
	st, rdb, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// --- Engines ---
	ledgerEngine := ledger.NewEngine(st, ledger.WithLogger(logger))
	if err := ledgerEngine.Load(ctx); err != nil {
		return err
	}
	alertEngine := alert.NewEngine(st, alert.WithLogger(logger))
	if err := alertEngine.Load(ctx); err != nil {
		return err
	}

	// --- Quote source ---
	client := kalshi.NewClient(cfg.Kalshi.RestURL, cfg.Kalshi.APIKey,
		kalshi.WithTimeout(cfg.Kalshi.Timeout),
		kalshi.WithRetries(cfg.Kalshi.MaxRetries, cfg.Kalshi.RetryBackoff),
		kalshi.WithLogger(logger),
	)
	marketOpts := []market.ServiceOption{market.WithUpstreamTimeout(cfg.Kalshi.ListingTimeout)}
	if rdb != nil {
		marketOpts = append(marketOpts, market.WithCache(store.NewQuoteCache(rdb, cfg.Redis.CacheTTL)))
	}
	markets := market.NewService(client, logger, marketOpts...)

	// --- WebSocket hub ---
	hub := api.NewHub(logger)
	go hub.Run(ctx)

	// --- Alert evaluator ---
	evaluator := alert.NewEvaluator(alert.EvaluatorConfig{
		Interval:     cfg.Alerts.Interval,
		Concurrency:  cfg.Alerts.Concurrency,
		FetchTimeout: cfg.Alerts.FetchTimeout,
	}, alertEngine, kalshi.PricedQuotes{Client: client}, hub, logger)
	evaluator.Start(ctx)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      api.NewServer(ledgerEngine, alertEngine, markets, hub, logger).Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("paper-engine listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	logger.Info("shutting down paper-engine")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}
	if err := evaluator.Stop(shutdownCtx); err != nil {
		logger.Error("alert evaluator shutdown error", "err", err)
	}
	logger.Info("paper-engine stopped")
	return nil
}

// openStore picks Postgres (optionally behind Redis) when a database URL is
// configured and falls back to memory otherwise. The Redis client, when
// one is configured, is returned for the listing cache.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, *redis.Client, func(), error) {
	var cleanup []func()
	closeAll := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}

	if cfg.Database.URL == "" {
		logger.Warn("database.url not set, using in-memory store (data will not persist)")
		return store.NewMemoryStore(), nil, closeAll, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("database connection: %w", err)
	}
	cleanup = append(cleanup, pool.Close)

	pg := store.NewPostgresStore(pool)
	if err := pg.Migrate(ctx); err != nil {
		closeAll()
		return nil, nil, nil, fmt.Errorf("database migrate: %w", err)
	}
	logger.Info("connected to PostgreSQL")

	var (
		st  store.Store = pg
		rdb *redis.Client
	)
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		rdb = redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		st = store.NewCachedStore(st, rdb, cfg.Redis.CacheTTL)
		logger.Info("Redis cache enabled", "ttl", cfg.Redis.CacheTTL)
	}

	return st, rdb, closeAll, nil
}
