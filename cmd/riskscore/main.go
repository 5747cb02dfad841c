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
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MikeSquared-Agency/RiskScore/internal/api"
	"github.com/MikeSquared-Agency/RiskScore/internal/audit"
	"github.com/MikeSquared-Agency/RiskScore/internal/config"
	"github.com/MikeSquared-Agency/RiskScore/internal/evaluator"
	"github.com/MikeSquared-Agency/RiskScore/internal/hermes"
	"github.com/MikeSquared-Agency/RiskScore/internal/metrics"
	"github.com/MikeSquared-Agency/RiskScore/internal/population"
	"github.com/MikeSquared-Agency/RiskScore/internal/ratios"
	"github.com/MikeSquared-Agency/RiskScore/internal/scoring"
	"github.com/MikeSquared-Agency/RiskScore/internal/store"
	"github.com/MikeSquared-Agency/RiskScore/internal/ticker"
)

func main() {
	os.Exit(run())
}

// run wires and serves the service and returns the process exit code.
// Deferred cleanup always runs before main exits.
func run() int {
	configPath := flag.String("config", "", "path to config file")
	envFile := flag.String("env", ".env", "dotenv file loaded before the config (missing file is ignored)")
	migrate := flag.Bool("migrate", true, "apply the database schema on startup")
	company := flag.String("company", "", "score one company and exit instead of serving")
	tickerFlag := flag.String("ticker", "", "ticker for -company (resolved when empty)")
	loan := flag.Float64("loan", 0, "loan value for -company")
	collateral := flag.Float64("collateral", 0, "collateral value for -company")
	credit := flag.Float64("credit-score", 0, "credit score for -company")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database (optional unless the population lives there)
	var db *store.PostgresStore
	if cfg.Database.URL != "" {
		db, err = store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			return 1
		}
		defer db.Close()
		logger.Info("connected to database")
		if *migrate {
			if err := db.Migrate(ctx); err != nil {
				logger.Error("failed to migrate database", "error", err)
				return 1
			}
		}
	}

	// Hermes (optional)
	var hermesClient hermes.Client
	if cfg.Hermes.URL != "" && *company == "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			hermesClient = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}

	// Reference population
	src, err := buildPopulationSource(cfg, db)
	if err != nil {
		logger.Error("failed to configure population", "error", err)
		return 1
	}
	var loader evaluator.PopulationLoader = src
	var cache *population.Cache
	if cfg.Population.Cache {
		cache = population.NewCache(src, logger)
		loader = cache
		if interval := cfg.PopulationRefreshInterval(); interval > 0 && *company == "" {
			refresher := population.NewRefresher(cache, interval, logger)
			refresher.Start(ctx)
			defer refresher.Stop()
			logger.Info("population refresher started", "interval", interval)
		}
	}

	scorer, err := scoring.NewScorer(cfg.Scoring.Weights, logger)
	if err != nil {
		logger.Error("failed to build scorer", "error", err)
		return 1
	}

	deps := evaluator.Deps{
		Scorer:     scorer,
		Population: loader,
		Fetcher:    buildFetcher(cfg),
		Resolver:   buildResolver(cfg),
		Audit:      buildAuditSink(cfg, db),
		Metrics:    metrics.New(prometheus.DefaultRegisterer),
	}
	var s store.Store
	if db != nil {
		deps.Store = db
		s = db
	}
	if hermesClient != nil {
		deps.Hermes = hermesClient
	}
	ev, err := evaluator.New(deps, logger)
	if err != nil {
		logger.Error("failed to build evaluator", "error", err)
		return 1
	}

	if *company != "" {
		return scoreOnce(ctx, ev, evaluator.Request{
			CompanyName:     *company,
			Ticker:          *tickerFlag,
			LoanValue:       *loan,
			CollateralValue: *collateral,
			CreditScore:     *credit,
		}, logger)
	}

	instanceID := uuid.New().String()
	var invalidator evaluator.Invalidator
	if cache != nil {
		invalidator = cache
		if hermesClient != nil {
			if err := evaluator.WatchInvalidation(hermesClient, cache, instanceID, logger); err != nil {
				logger.Warn("failed to subscribe to population invalidation", "error", err)
			}
		}
	}

	// API server
	router := api.NewRouter(ev, s, invalidator, api.Options{
		AdminToken: cfg.Server.AdminToken,
		RateLimit:  cfg.Server.RateLimit,
		InstanceID: instanceID,
	}, logger)
	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Metrics server
	metricsRouter := api.NewMetricsRouter()
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: metricsRouter,
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port,
			"population", src.Describe(), "ratios", cfg.Ratios.Source)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
	return 0
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func buildPopulationSource(cfg *config.Config, db *store.PostgresStore) (population.Source, error) {
	switch cfg.Population.Source {
	case config.PopulationPostgres:
		if db == nil {
			return nil, errors.New("postgres population source requires database.url")
		}
		return population.NewStoreSource(db), nil
	default:
		return population.NewCSVSource(cfg.Population.Path), nil
	}
}

// buildFetcher returns nil for the "none" source; evaluations must then
// carry their ratios inline.
func buildFetcher(cfg *config.Config) ratios.Fetcher {
	switch cfg.Ratios.Source {
	case config.RatiosSpreadsheet:
		return ratios.NewSpreadsheetFetcher(cfg.Ratios.SpreadsheetPath)
	case config.RatiosPage:
		return ratios.NewPageFetcher(cfg.Ratios.PageURL, cfg.RatiosTimeout())
	case config.RatiosFirecrawl:
		return ratios.NewFirecrawlFetcher(cfg.Ratios.FirecrawlURL, cfg.Ratios.FirecrawlAPIKey, cfg.Ratios.PageURL, cfg.RatiosTimeout())
	default:
		return nil
	}
}

func buildResolver(cfg *config.Config) ticker.Resolver {
	if cfg.Ticker.SearchURL == "" {
		return nil
	}
	return ticker.NewHTTPClient(cfg.Ticker.SearchURL, cfg.Ticker.ExchangeSuffix, cfg.Ticker.AltSuffix, cfg.TickerTimeout())
}

func buildAuditSink(cfg *config.Config, db *store.PostgresStore) audit.Sink {
	var sinks audit.Multi
	if cfg.Audit.Dir != "" {
		sinks = append(sinks, audit.NewCSVSink(cfg.Audit.Dir))
	}
	if cfg.Audit.StoreEnabled && db != nil {
		sinks = append(sinks, audit.NewStoreSink(db))
	}
	if len(sinks) == 0 {
		return nil
	}
	return sinks
}

func scoreOnce(ctx context.Context, ev *evaluator.Evaluator, req evaluator.Request, logger *slog.Logger) int {
	eval, err := ev.Evaluate(ctx, req)
	if err != nil {
		logger.Error("evaluation failed", "error", err)
		return 1
	}
	fmt.Println(eval.Result().String())
	return 0
}
