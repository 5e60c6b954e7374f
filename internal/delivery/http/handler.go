package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/catalogfill/enricher/internal/domain"
	"github.com/catalogfill/enricher/internal/logging"
)

const (
	serviceName = "catalog-enricher"
	version     = "1.0.0"
)

// Enricher is the part of the enrichment service the handlers need
type Enricher interface {
	EnrichRecords(ctx context.Context, records []*domain.Record) *domain.RunReport
	SaveResults(ctx context.Context, report *domain.RunReport, records []*domain.Record)
}

// EnrichRequest is the body of POST /api/v1/enrich
type EnrichRequest struct {
	Records []*domain.Record `json:"records" binding:"required,min=1"`
}

// RunSummary holds per-status counts for one request
type RunSummary struct {
	Total      int   `json:"total"`
	Enriched   int   `json:"enriched"`
	Skipped    int   `json:"skipped"`
	Exhausted  int   `json:"exhausted"`
	DurationMS int64 `json:"duration_ms"`
}

// EnrichResponse is returned by POST /api/v1/enrich
type EnrichResponse struct {
	RunID    string           `json:"run_id"`
	Records  []*domain.Record `json:"records"`
	Outcomes []domain.Outcome `json:"outcomes"`
	Summary  RunSummary       `json:"summary"`
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	enricher   Enricher
	maxRecords int
	logger     *zap.Logger
}

// NewHandler creates a new HTTP handler. enricher may be nil, in which case
// the enrich endpoint answers 503.
func NewHandler(enricher Enricher, maxRecords int, logger *zap.Logger) *Handler {
	if maxRecords <= 0 {
		maxRecords = 1000
	}
	return &Handler{
		enricher:   enricher,
		maxRecords: maxRecords,
		logger:     logging.OrNop(logger).Named("http"),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": version,
	})
}

// Enrich runs the lookup pipeline over the posted records and returns them
// with their outcomes. Records that could not be enriched come back unchanged.
func (h *Handler) Enrich(c *gin.Context) {
	if h.enricher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "enrichment service not configured",
		})
		return
	}

	var req EnrichRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if len(req.Records) > h.maxRecords {
		h.badRequest(c, fmt.Errorf("%w: at most %d records per request, got %d",
			domain.ErrInvalidRequest, h.maxRecords, len(req.Records)))
		return
	}
	for i, rec := range req.Records {
		if rec == nil {
			h.badRequest(c, fmt.Errorf("%w: record %d is null", domain.ErrInvalidRequest, i))
			return
		}
	}

	ctx := c.Request.Context()
	report := h.enricher.EnrichRecords(ctx, req.Records)
	h.enricher.SaveResults(ctx, report, req.Records)

	c.JSON(http.StatusOK, EnrichResponse{
		RunID:    report.RunID,
		Records:  req.Records,
		Outcomes: report.Outcomes,
		Summary: RunSummary{
			Total:      report.Total,
			Enriched:   report.Enriched,
			Skipped:    report.Skipped,
			Exhausted:  report.Exhausted,
			DurationMS: report.Duration.Milliseconds(),
		},
	})
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	msg := err.Error()
	if !errors.Is(err, domain.ErrInvalidRequest) {
		msg = fmt.Sprintf("%s: %s", domain.ErrInvalidRequest, err)
	}
	h.logger.Debug("rejected request", zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
