package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/catalogfill/enricher/config"
	"github.com/catalogfill/enricher/internal/domain"
	"github.com/catalogfill/enricher/internal/infrastructure/cache"
	"github.com/catalogfill/enricher/internal/infrastructure/csvstore"
	"github.com/catalogfill/enricher/internal/infrastructure/ebay"
	"github.com/catalogfill/enricher/internal/infrastructure/postgres"
	"github.com/catalogfill/enricher/internal/logging"
	"github.com/catalogfill/enricher/internal/usecase"
)

const janitorInterval = 10 * time.Minute

// app bundles everything a command needs, plus the cleanup for it
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *usecase.EnrichmentService
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := logging.New(cfg.App.Environment, cfg.App.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

// buildApp wires the enrichment service from cfg. withStore controls whether
// the CSV input/output store is attached (the HTTP server works in memory).
func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, withStore bool) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if !cfg.Ebay.HasCredentials() {
		logger.Warn("eBay credentials not configured, lookups will run unauthenticated")
	}

	httpCfg := ebay.ClientConfig{
		Timeout:           cfg.Ebay.Timeout,
		RequestsPerSecond: cfg.Ebay.RequestsPerSecond,
		Burst:             cfg.Ebay.Burst,
	}
	client := ebay.NewClient(cfg.Ebay.BaseURL, httpCfg, logger)
	tokens := ebay.NewTokenClient(cfg.Ebay.BaseURL, cfg.Ebay.Scope, httpCfg, logger)

	lookupCache, err := a.buildCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	lookup := usecase.NewLookupService(client, lookupCache, usecase.LookupServiceConfig{
		CandidateFields: cfg.Enrich.CandidateFields,
		MaxAttempts:     cfg.Enrich.MaxAttempts,
		RetryBackoff:    cfg.Enrich.RetryBackoff,
		CacheTTL:        cfg.Cache.TTL,
	}, logger)

	pacing := cfg.Enrich.PacingDelay
	if pacing == 0 {
		pacing = -1 // explicit zero in config means no pacing
	}
	orch := usecase.NewOrchestrator(lookup, usecase.OrchestratorConfig{
		MaxConcurrency: cfg.Enrich.MaxConcurrency,
		PacingDelay:    pacing,
	}, logger)

	var store domain.RecordStore
	if withStore {
		store = csvstore.NewStore(cfg.IO.InputDir, cfg.IO.OutputPath, cfg.IO.IDColumn, logger)
	}

	sink := a.buildSink(ctx)

	a.service = usecase.NewEnrichmentService(store, tokens, orch, sink, usecase.Credentials{
		ClientID:     cfg.Ebay.ClientID,
		ClientSecret: cfg.Ebay.ClientSecret,
	}, logger)

	logger.Info("enricher configured",
		zap.String("environment", cfg.App.Environment),
		zap.String("ebay_base_url", cfg.Ebay.BaseURL),
		zap.String("cache", cfg.Cache.Type),
		zap.Bool("results_sink", sink != nil),
		zap.Int("max_concurrency", cfg.Enrich.MaxConcurrency),
		zap.Int("max_attempts", cfg.Enrich.MaxAttempts),
		zap.Duration("pacing_delay", cfg.Enrich.PacingDelay))

	return a, nil
}

func (a *app) buildCache(ctx context.Context) (domain.CacheRepository, error) {
	switch a.cfg.Cache.Type {
	case "redis":
		rc, err := cache.NewRedisCacheFromURL(ctx, a.cfg.Cache.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rc.Close() })
		return rc, nil
	case "memory":
		mc := cache.NewMemoryCache()
		janitorCtx, cancel := context.WithCancel(context.Background())
		mc.StartJanitor(janitorCtx, janitorInterval)
		a.closers = append(a.closers, cancel)
		return mc, nil
	default:
		return nil, nil
	}
}

// buildSink connects the optional results table. Connection problems are
// logged and the run continues without it.
func (a *app) buildSink(ctx context.Context) domain.ResultSink {
	dsn := a.cfg.Results.PostgresDSN
	if dsn == "" {
		return nil
	}
	pool, err := postgres.Open(ctx, dsn, 4)
	if err != nil {
		a.logger.Error("results database unavailable, continuing without it", zap.Error(err))
		return nil
	}
	a.closers = append(a.closers, pool.Close)

	sink, err := postgres.NewSink(pool, a.cfg.Results.Table, a.cfg.Results.BatchSize, a.logger)
	if err != nil {
		a.logger.Error("invalid results sink configuration", zap.Error(err))
		return nil
	}
	return sink
}
