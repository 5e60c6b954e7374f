package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// CatalogClient defines the interface for one search call against the catalog API
type CatalogClient interface {
	Search(ctx context.Context, query string, token AccessToken) (*SearchResponse, error)
}

// TokenProvider defines the interface for obtaining an access token
type TokenProvider interface {
	FetchToken(ctx context.Context, clientID, clientSecret string) (AccessToken, error)
}

// RecordStore loads input records and saves the enriched result
type RecordStore interface {
	Load() ([]*Record, error)
	Save(records []*Record) error
	OutputPath() string
}

// ResultSink receives a copy of every finished run
// (optional: the CSV written by RecordStore is the primary output)
type ResultSink interface {
	Save(ctx context.Context, report *RunReport, records []*Record) error
}
