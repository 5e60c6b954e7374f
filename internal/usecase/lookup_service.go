package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/catalogfill/enricher/internal/domain"
	"github.com/catalogfill/enricher/internal/infrastructure/ebay"
	"github.com/catalogfill/enricher/internal/logging"
)

// Defaults used when LookupServiceConfig leaves a value unset
const (
	DefaultMaxAttempts = 3
	DefaultCacheTTL    = 720 * time.Hour
)

// DefaultCandidateFields is the fallback order of query fields
var DefaultCandidateFields = []string{"upc", "name"}

// LookupServiceConfig holds configuration for the lookup service
type LookupServiceConfig struct {
	CandidateFields []string
	MaxAttempts     int
	RetryBackoff    time.Duration // base delay before attempt n>1, doubled each time; 0 retries immediately
	CacheTTL        time.Duration
}

// LookupService fills missing catalog fields for a single record
type LookupService struct {
	client     domain.CatalogClient
	cache      domain.CacheRepository
	normalizer *QueryNormalizer
	fields     []string
	attempts   int
	backoff    time.Duration
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewLookupService creates a new lookup service. cache may be nil.
func NewLookupService(
	client domain.CatalogClient,
	cache domain.CacheRepository,
	config LookupServiceConfig,
	logger *zap.Logger,
) *LookupService {
	fields := config.CandidateFields
	if len(fields) == 0 {
		fields = DefaultCandidateFields
	}
	attempts := config.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = DefaultCacheTTL
	}

	return &LookupService{
		client:     client,
		cache:      cache,
		normalizer: NewQueryNormalizer(),
		fields:     append([]string(nil), fields...),
		attempts:   attempts,
		backoff:    config.RetryBackoff,
		cacheTTL:   cacheTTL,
		logger:     logging.OrNop(logger).Named("lookup"),
	}
}

// Lookup tries each candidate field in order until one search yields a result.
// The record is only read; the caller applies the returned enrichment.
// Failures never escape: they end up in the outcome as status exhausted.
func (s *LookupService) Lookup(ctx context.Context, index int, rec *domain.Record, token domain.AccessToken) domain.Outcome {
	out := domain.Outcome{Index: index}
	log := s.logger.With(zap.Int("row", index))

	if rec.IsComplete() {
		log.Info("product name already set, skipping")
		out.Status = domain.OutcomeSkipped
		return out
	}

	var lastErr error
	for _, field := range s.fields {
		if rec.IsComplete() {
			out.Status = domain.OutcomeSkipped
			return out
		}

		query, ok := s.normalizer.Candidate(rec, field)
		if !ok {
			log.Debug("candidate field empty, skipping", zap.String("field", field))
			continue
		}

		if e, ok := s.fromCache(ctx, query); ok {
			log.Info("enriched from cache", zap.String("field", field), zap.String("query", query))
			return enriched(out, field, query, e, true)
		}

		e, err := s.searchField(ctx, log, field, query, token, &out.Attempts)
		if err == nil {
			s.toCache(ctx, query, e)
			return enriched(out, field, query, e, false)
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		log.Warn("giving up on field",
			zap.String("field", field),
			zap.Int("attempts", s.attempts),
			zap.Error(err))
	}

	if err := ctx.Err(); err != nil {
		lastErr = err
	}
	log.Warn("no valid data found in any field", zap.Int("attempts", out.Attempts))
	out.Status = domain.OutcomeExhausted
	out.Err = lastErr
	if lastErr != nil {
		out.Error = lastErr.Error()
	}
	return out
}

// searchField runs the attempt loop for one candidate field. Soft misses,
// HTTP errors and transport errors all consume an attempt.
func (s *LookupService) searchField(
	ctx context.Context,
	log *zap.Logger,
	field, query string,
	token domain.AccessToken,
	attempts *int,
) (domain.Enrichment, error) {
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if attempt > 1 {
			if err := s.wait(ctx, attempt); err != nil {
				return domain.Enrichment{}, err
			}
		}
		if err := ctx.Err(); err != nil {
			return domain.Enrichment{}, err
		}

		*attempts++
		log.Info("searching",
			zap.String("field", field),
			zap.String("query", query),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.attempts))

		resp, err := s.client.Search(ctx, query, token)
		if err == nil && (resp == nil || len(resp.ItemSummaries) == 0) {
			err = domain.ErrSoftMiss
		}
		if err == nil {
			return ebay.MapToEnrichment(resp.ItemSummaries[0]), nil
		}

		lastErr = err
		fields := []zap.Field{
			zap.String("field", field),
			zap.Int("attempt", attempt),
			zap.Error(err),
		}
		var statusErr *domain.StatusError
		switch {
		case errors.Is(err, domain.ErrSoftMiss):
			log.Info("no results, retrying", fields...)
		case errors.As(err, &statusErr):
			log.Warn("search failed", append(fields, zap.Int("status", statusErr.Code))...)
		default:
			log.Warn("search failed", fields...)
		}
	}
	return domain.Enrichment{}, lastErr
}

// wait sleeps before retry k (attempt k+1) for backoff * 2^(k-1)
func (s *LookupService) wait(ctx context.Context, attempt int) error {
	if s.backoff <= 0 {
		return nil
	}
	d := s.backoff << uint(attempt-2)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *LookupService) fromCache(ctx context.Context, query string) (domain.Enrichment, bool) {
	if s.cache == nil {
		return domain.Enrichment{}, false
	}
	data, err := s.cache.Get(ctx, CacheKey(query))
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Debug("cache read failed", zap.Error(err))
		}
		return domain.Enrichment{}, false
	}
	var e domain.Enrichment
	if err := json.Unmarshal(data, &e); err != nil {
		s.logger.Debug("discarding unreadable cache entry", zap.String("query", query), zap.Error(err))
		return domain.Enrichment{}, false
	}
	return e, true
}

func (s *LookupService) toCache(ctx context.Context, query string, e domain.Enrichment) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	// Log but don't fail if caching fails
	if err := s.cache.Set(ctx, CacheKey(query), data, s.cacheTTL); err != nil {
		s.logger.Debug("cache write failed", zap.Error(err))
	}
}

func enriched(out domain.Outcome, field, query string, e domain.Enrichment, cached bool) domain.Outcome {
	out.Status = domain.OutcomeEnriched
	out.Field = field
	out.Query = query
	out.Cached = cached
	out.Enrichment = &e
	return out
}
