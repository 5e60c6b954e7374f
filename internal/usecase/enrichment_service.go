package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/catalogfill/enricher/internal/domain"
	"github.com/catalogfill/enricher/internal/logging"
)

// Credentials are the client id/secret pair exchanged for an access token
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// EnrichmentService runs the whole pipeline: load, authenticate, enrich, save
type EnrichmentService struct {
	store        domain.RecordStore
	tokens       domain.TokenProvider
	orchestrator *Orchestrator
	sink         domain.ResultSink
	creds        Credentials
	logger       *zap.Logger
	now          func() time.Time
}

// NewEnrichmentService creates a new enrichment service. store and sink may be
// nil; without a store only EnrichRecords is usable.
func NewEnrichmentService(
	store domain.RecordStore,
	tokens domain.TokenProvider,
	orchestrator *Orchestrator,
	sink domain.ResultSink,
	creds Credentials,
	logger *zap.Logger,
) *EnrichmentService {
	return &EnrichmentService{
		store:        store,
		tokens:       tokens,
		orchestrator: orchestrator,
		sink:         sink,
		creds:        creds,
		logger:       logging.OrNop(logger).Named("enrichment"),
		now:          time.Now,
	}
}

// Run enriches every input record and writes the result file.
// Only missing input and failure to write the output are returned as errors;
// per-record failures are reported in the outcomes.
func (s *EnrichmentService) Run(ctx context.Context) (*domain.RunReport, error) {
	if s.store == nil {
		return nil, eris.New("enrichment: no record store configured")
	}

	records, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	report := s.EnrichRecords(ctx, records)

	if err := s.store.Save(records); err != nil {
		return report, eris.Wrap(err, "enrichment: save output")
	}
	report.OutputPath = s.store.OutputPath()

	s.logger.Info("results written",
		zap.String("run_id", report.RunID),
		zap.String("path", report.OutputPath),
		zap.Int("rows", len(records)))

	s.saveToSink(ctx, report, records)
	return report, nil
}

// EnrichRecords enriches records in place and returns the run report.
// A failed token fetch does not stop the run: lookups proceed unauthenticated.
func (s *EnrichmentService) EnrichRecords(ctx context.Context, records []*domain.Record) *domain.RunReport {
	report := &domain.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: s.now(),
	}
	log := s.logger.With(zap.String("run_id", report.RunID))
	log.Info("run started", zap.Int("records", len(records)))

	token := s.fetchToken(ctx, log)

	report.Outcomes = s.orchestrator.Run(ctx, records, token)
	report.Duration = s.now().Sub(report.StartedAt)
	report.Tally()

	log.Info("run finished",
		zap.Int("total", report.Total),
		zap.Int("enriched", report.Enriched),
		zap.Int("skipped", report.Skipped),
		zap.Int("exhausted", report.Exhausted),
		zap.Duration("duration", report.Duration))

	return report
}

// SaveResults hands a finished report to the results sink, if any
func (s *EnrichmentService) SaveResults(ctx context.Context, report *domain.RunReport, records []*domain.Record) {
	s.saveToSink(ctx, report, records)
}

func (s *EnrichmentService) fetchToken(ctx context.Context, log *zap.Logger) domain.AccessToken {
	if s.tokens == nil {
		log.Warn("no token provider configured, continuing without authorization")
		return ""
	}
	token, err := s.tokens.FetchToken(ctx, s.creds.ClientID, s.creds.ClientSecret)
	if err != nil {
		log.Error("token fetch failed, continuing without authorization", zap.Error(err))
		return ""
	}
	return token
}

func (s *EnrichmentService) saveToSink(ctx context.Context, report *domain.RunReport, records []*domain.Record) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Save(ctx, report, records); err != nil {
		s.logger.Error("failed to store results",
			zap.String("run_id", report.RunID),
			zap.Error(err))
	}
}
