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

	"github.com/catalogfill/enricher/internal/domain"
	"github.com/catalogfill/enricher/internal/logging"
)

const tokenPath = "/identity/v1/oauth2/token"

// DefaultScope is the public Browse API scope
const DefaultScope = "https://api.ebay.com/oauth/api_scope"

// TokenClient exchanges client credentials for an application access token
type TokenClient struct {
	httpClient *http.Client
	baseURL    string
	scope      string
	logger     *zap.Logger
	now        func() time.Time
}

// NewTokenClient creates a token client. An empty scope falls back to DefaultScope.
func NewTokenClient(baseURL, scope string, cfg ClientConfig, logger *zap.Logger) *TokenClient {
	if scope == "" {
		scope = DefaultScope
	}
	return &TokenClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		scope:      scope,
		logger:     logging.OrNop(logger).Named("auth"),
		now:        time.Now,
	}
}

// FetchToken performs one client-credentials grant. It never retries.
// On any failure it returns an empty token and an error wrapping
// domain.ErrAuthFailure; callers may carry on without auth.
func (c *TokenClient) FetchToken(ctx context.Context, clientID, clientSecret string) (domain.AccessToken, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", c.scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", domain.ErrAuthFailure, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(clientID, clientSecret)

	body, status, err := doLogged(c.httpClient, c.logger, c.now(), req)
	if err != nil {
		c.logger.Warn("failed to obtain token", zap.Error(err))
		return "", fmt.Errorf("%w: %w", domain.ErrAuthFailure, err)
	}

	if status != http.StatusOK {
		statusErr := &domain.StatusError{Code: status, Body: truncate(string(body))}
		c.logger.Warn("failed to obtain token",
			zap.Int("status", status),
			zap.String("body", statusErr.Body))
		return "", fmt.Errorf("%w: %w", domain.ErrAuthFailure, statusErr)
	}

	var tokenResp domain.TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		c.logger.Warn("failed to decode token response", zap.Error(err))
		return "", fmt.Errorf("%w: %w: %v", domain.ErrAuthFailure, domain.ErrDecode, err)
	}
	if tokenResp.AccessToken == "" {
		c.logger.Warn("token response carried no access_token")
		return "", fmt.Errorf("%w: empty access_token", domain.ErrAuthFailure)
	}

	c.logger.Info("access token obtained",
		zap.String("token_type", tokenResp.TokenType),
		zap.Int("expires_in", tokenResp.ExpiresIn))

	return domain.AccessToken(tokenResp.AccessToken), nil
}
