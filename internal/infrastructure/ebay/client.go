package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/catalogfill/enricher/internal/domain"
	"github.com/catalogfill/enricher/internal/logging"
)

const searchPath = "/buy/browse/v1/item_summary/search"

// ClientConfig tunes the HTTP behaviour shared by the search and token clients
type ClientConfig struct {
	// Timeout bounds a single request; 0 leaves requests unbounded
	Timeout time.Duration
	// RequestsPerSecond throttles search calls; 0 disables the limiter
	RequestsPerSecond float64
	Burst             int
}

// Client handles search calls against the Browse API
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *rate.Limiter
	logger      *zap.Logger
	now         func() time.Time
}

// NewClient creates a new Browse API client
func NewClient(baseURL string, cfg ClientConfig, logger *zap.Logger) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		rateLimiter: rate.NewLimiter(limit, burst),
		logger:      logging.OrNop(logger).Named("ebay"),
		now:         time.Now,
	}
}

// Search runs one item summary search for query. It makes a single attempt;
// retry policy belongs to the caller.
//
// Errors: domain.ErrSoftMiss when the result list is empty, *domain.StatusError
// for non-200 responses, domain.ErrTransport for network failures and
// domain.ErrDecode for malformed bodies.
func (c *Client) Search(ctx context.Context, query string, token domain.AccessToken) (*domain.SearchResponse, error) {
	params := url.Values{}
	params.Set("q", query)
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, searchPath, params.Encode())

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+string(token))
	}

	body, status, err := doLogged(c.httpClient, c.logger, c.now(), req)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, &domain.StatusError{Code: status, Body: truncate(string(body))}
	}

	var searchResp domain.SearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}

	if len(searchResp.ItemSummaries) == 0 {
		return nil, domain.ErrSoftMiss
	}

	return &searchResp, nil
}
