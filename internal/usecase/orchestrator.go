package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/catalogfill/enricher/internal/domain"
	"github.com/catalogfill/enricher/internal/logging"
)

// Defaults used when OrchestratorConfig leaves a value unset
const (
	DefaultMaxConcurrency = 100
	DefaultPacingDelay    = 200 * time.Millisecond
)

// RecordLookup enriches a single record; implemented by LookupService
type RecordLookup interface {
	Lookup(ctx context.Context, index int, rec *domain.Record, token domain.AccessToken) domain.Outcome
}

// OrchestratorConfig holds configuration for the orchestrator
type OrchestratorConfig struct {
	MaxConcurrency int
	// PacingDelay is held after each lookup before its slot is released.
	// Negative disables pacing.
	PacingDelay time.Duration
}

// Orchestrator runs lookups over every record under a concurrency cap
type Orchestrator struct {
	lookup         RecordLookup
	maxConcurrency int
	pacingDelay    time.Duration
	logger         *zap.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(lookup RecordLookup, config OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	maxConcurrency := config.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	pacing := config.PacingDelay
	if pacing == 0 {
		pacing = DefaultPacingDelay
	}
	if pacing < 0 {
		pacing = 0
	}

	return &Orchestrator{
		lookup:         lookup,
		maxConcurrency: maxConcurrency,
		pacingDelay:    pacing,
		logger:         logging.OrNop(logger).Named("orchestrator"),
	}
}

// Run looks up every record and applies each enrichment to its own record.
// It returns once all lookups have finished; outcomes are indexed by input position.
func (o *Orchestrator) Run(ctx context.Context, records []*domain.Record, token domain.AccessToken) []domain.Outcome {
	outcomes := make([]domain.Outcome, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxConcurrency)

	o.logger.Info("starting lookups",
		zap.Int("records", len(records)),
		zap.Int("max_concurrency", o.maxConcurrency),
		zap.Duration("pacing_delay", o.pacingDelay))

	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			out := o.lookup.Lookup(gctx, i, rec, token)
			if out.Enrichment != nil {
				rec.Apply(*out.Enrichment)
			}
			outcomes[i] = out

			o.pace(gctx)
			return nil
		})
	}
	_ = g.Wait() // lookups never return errors

	return outcomes
}

func (o *Orchestrator) pace(ctx context.Context) {
	if o.pacingDelay <= 0 {
		return
	}
	t := time.NewTimer(o.pacingDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
