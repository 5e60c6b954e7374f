package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/catalogfill/enricher/internal/domain"
)

func alwaysFail(err error) func(string, int) (*domain.SearchResponse, error) {
	return func(string, int) (*domain.SearchResponse, error) { return nil, err }
}

func TestNewLookupService(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		svc := NewLookupService(NewMockCatalogClient(nil), nil, LookupServiceConfig{}, nil)
		assert.Equal(t, []string{"upc", "name"}, svc.fields)
		assert.Equal(t, 3, svc.attempts)
		assert.Equal(t, 720*time.Hour, svc.cacheTTL)
	})

	t.Run("keeps custom values", func(t *testing.T) {
		svc := NewLookupService(NewMockCatalogClient(nil), nil, LookupServiceConfig{
			CandidateFields: []string{"sku"},
			MaxAttempts:     5,
			CacheTTL:        time.Hour,
		}, nil)
		assert.Equal(t, []string{"sku"}, svc.fields)
		assert.Equal(t, 5, svc.attempts)
		assert.Equal(t, time.Hour, svc.cacheTTL)
	})
}

func TestLookup(t *testing.T) {
	ctx := context.Background()

	t.Run("skips records whose product name is set", func(t *testing.T) {
		client := NewMockCatalogClient(alwaysFail(errors.New("must not be called")))
		svc := NewLookupService(client, nil, LookupServiceConfig{}, nil)

		out := svc.Lookup(ctx, 7, newRecord("upc", "1", "Product name", "Existing"), "tok")

		assert.Equal(t, domain.OutcomeSkipped, out.Status)
		assert.Equal(t, 7, out.Index)
		assert.Zero(t, out.Attempts)
		assert.Empty(t, client.Queries())
	})

	t.Run("placeholder product name is treated as missing", func(t *testing.T) {
		client := NewMockCatalogClient(func(string, int) (*domain.SearchResponse, error) {
			return hit("Widget", "999", "Home"), nil
		})
		svc := NewLookupService(client, nil, LookupServiceConfig{}, nil)

		out := svc.Lookup(ctx, 0, newRecord("upc", "nan", "name", "Gadget", "Product name", "nan"), "tok")

		assert.Equal(t, domain.OutcomeEnriched, out.Status)
		assert.Equal(t, "name", out.Field)
		assert.Equal(t, []string{"Gadget"}, client.Queries())
	})

	t.Run("tries upc before name and stops at first success", func(t *testing.T) {
		client := NewMockCatalogClient(func(q string, _ int) (*domain.SearchResponse, error) {
			return hit("Widget", "999", "Home", "Tools"), nil
		})
		svc := NewLookupService(client, nil, LookupServiceConfig{}, nil)

		out := svc.Lookup(ctx, 0, newRecord("upc", "012345", "name", "widget thing", "Product name", "<null>"), "tok")

		require.Equal(t, domain.OutcomeEnriched, out.Status)
		assert.Equal(t, []string{"012345"}, client.Queries())
		assert.Equal(t, "upc", out.Field)
		assert.Equal(t, 1, out.Attempts)
		assert.Equal(t, &domain.Enrichment{ProductName: "Widget", CategoryID: "999", CategoryPath: "Home > Tools"}, out.Enrichment)
	})

	t.Run("does not mutate the record", func(t *testing.T) {
		client := NewMockCatalogClient(func(string, int) (*domain.SearchResponse, error) {
			return hit("Widget", "999", "Home"), nil
		})
		svc := NewLookupService(client, nil, LookupServiceConfig{}, nil)
		rec := newRecord("upc", "1")

		svc.Lookup(ctx, 0, rec, "tok")

		assert.False(t, rec.Has(domain.FieldProductName))
	})

	t.Run("soft miss consumes all attempts before falling through to name", func(t *testing.T) {
		client := NewMockCatalogClient(func(q string, _ int) (*domain.SearchResponse, error) {
			if q == "012345" {
				return &domain.SearchResponse{}, nil
			}
			return hit("Widget", "999", "Home", "Tools"), nil
		})
		svc := NewLookupService(client, nil, LookupServiceConfig{}, nil)

		out := svc.Lookup(ctx, 0, newRecord("upc", "012345", "name", "Widget"), "tok")

		assert.Equal(t, []string{"012345", "012345", "012345", "Widget"}, client.Queries())
		assert.Equal(t, domain.OutcomeEnriched, out.Status)
		assert.Equal(t, "name", out.Field)
		assert.Equal(t, 4, out.Attempts)
	})

	t.Run("soft miss error from client is retried", func(t *testing.T) {
		client := NewMockCatalogClient(func(q string, call int) (*domain.SearchResponse, error) {
			if call < 3 {
				return nil, domain.ErrSoftMiss
			}
			return hit("Widget", "1"), nil
		})
		svc := NewLookupService(client, nil, LookupServiceConfig{}, nil)

		out := svc.Lookup(ctx, 0, newRecord("upc", "1"), "tok")

		assert.Equal(t, domain.OutcomeEnriched, out.Status)
		assert.Equal(t, 3, out.Attempts)
	})

	errs := map[string]error{
		"http status": &domain.StatusError{Code: 500, Body: "boom"},
		"transport":   fmt.Errorf("%w: connection refused", domain.ErrTransport),
		"decode":      fmt.Errorf("%w: unexpected EOF", domain.ErrDecode),
		"soft miss":   domain.ErrSoftMiss,
	}
	for name, err := range errs {
		err := err
		t.Run("exhausts every field on "+name+" errors", func(t *testing.T) {
			client := NewMockCatalogClient(alwaysFail(err))
			svc := NewLookupService(client, nil, LookupServiceConfig{}, nil)

			out := svc.Lookup(ctx, 3, newRecord("upc", "1", "name", "Widget"), "tok")

			assert.Equal(t, domain.OutcomeExhausted, out.Status)
			assert.Equal(t, 6, out.Attempts)
			assert.Len(t, client.Queries(), 6)
			assert.Nil(t, out.Enrichment)
			assert.ErrorIs(t, out.Err, err)
			assert.NotEmpty(t, out.Error)
		})
	}

	t.Run("null and placeholder candidates do not consume attempts", func(t *testing.T) {
		client := NewMockCatalogClient(func(string, int) (*domain.SearchResponse, error) {
			return hit("Widget", "1"), nil
		})
		svc := NewLookupService(client, nil, LookupServiceConfig{}, nil)

		out := svc.Lookup(ctx, 0, newRecord("upc", "<null>", "name", "Widget"), "tok")
		assert.Equal(t, "name", out.Field)
		assert.Equal(t, 1, out.Attempts)

		out = svc.Lookup(ctx, 0, newRecord("upc", "nan", "name", "  Widget   Pro "), "tok")
		assert.Equal(t, "name", out.Field)
		assert.Equal(t, "Widget Pro", out.Query)
		assert.Equal(t, []string{"Widget", "Widget Pro"}, client.Queries())
	})

	t.Run("no candidate fields at all", func(t *testing.T) {
		client := NewMockCatalogClient(alwaysFail(errors.New("must not be called")))
		svc := NewLookupService(client, nil, LookupServiceConfig{}, nil)

		out := svc.Lookup(ctx, 0, newRecord("sku", "x"), "tok")

		assert.Equal(t, domain.OutcomeExhausted, out.Status)
		assert.Zero(t, out.Attempts)
		assert.NoError(t, out.Err)
	})

	t.Run("passes the token through, empty included", func(t *testing.T) {
		client := NewMockCatalogClient(func(string, int) (*domain.SearchResponse, error) {
			return hit("Widget", "1"), nil
		})
		svc := NewLookupService(client, nil, LookupServiceConfig{}, nil)

		svc.Lookup(ctx, 0, newRecord("upc", "1"), "abc")
		svc.Lookup(ctx, 1, newRecord("upc", "2"), "")

		assert.Equal(t, []domain.AccessToken{"abc", ""}, client.tokens)
	})

	t.Run("respects custom max attempts", func(t *testing.T) {
		client := NewMockCatalogClient(alwaysFail(domain.ErrSoftMiss))
		svc := NewLookupService(client, nil, LookupServiceConfig{MaxAttempts: 1}, nil)

		out := svc.Lookup(ctx, 0, newRecord("upc", "1", "name", "x"), "tok")

		assert.Equal(t, 2, out.Attempts)
	})

	t.Run("cancelled context ends the lookup as exhausted", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		client := NewMockCatalogClient(alwaysFail(errors.New("must not be called")))
		svc := NewLookupService(client, nil, LookupServiceConfig{}, nil)

		out := svc.Lookup(cctx, 0, newRecord("upc", "1", "name", "x"), "tok")

		assert.Equal(t, domain.OutcomeExhausted, out.Status)
		assert.ErrorIs(t, out.Err, context.Canceled)
		assert.Empty(t, client.Queries())
	})

	t.Run("backoff is interrupted by cancellation", func(t *testing.T) {
		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		client := NewMockCatalogClient(alwaysFail(domain.ErrSoftMiss))
		svc := NewLookupService(client, nil, LookupServiceConfig{RetryBackoff: time.Hour}, nil)

		start := time.Now()
		out := svc.Lookup(cctx, 0, newRecord("upc", "1", "name", "x"), "tok")

		assert.Less(t, time.Since(start), 5*time.Second)
		assert.Equal(t, domain.OutcomeExhausted, out.Status)
		assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
		assert.Equal(t, 1, out.Attempts)
	})
}

func TestLookup_Logging(t *testing.T) {
	ctx := context.Background()
	newService := func(client *MockCatalogClient) (*LookupService, *observer.ObservedLogs) {
		core, logs := observer.New(zap.InfoLevel)
		return NewLookupService(client, nil, LookupServiceConfig{}, zap.New(core)), logs
	}

	t.Run("skip decision is logged", func(t *testing.T) {
		svc, logs := newService(NewMockCatalogClient(alwaysFail(errors.New("must not be called"))))

		svc.Lookup(ctx, 4, newRecord("upc", "1", "Product name", "Existing"), "tok")

		entries := logs.FilterMessage("product name already set, skipping").All()
		require.Len(t, entries, 1)
		assert.Equal(t, int64(4), entries[0].ContextMap()["row"])
	})

	t.Run("every attempt and the final miss are logged", func(t *testing.T) {
		svc, logs := newService(NewMockCatalogClient(alwaysFail(domain.ErrSoftMiss)))

		out := svc.Lookup(ctx, 2, newRecord("upc", "1", "name", "Widget"), "tok")
		require.Equal(t, domain.OutcomeExhausted, out.Status)

		searches := logs.FilterMessage("searching").All()
		require.Len(t, searches, 6)
		assert.Equal(t, "upc", searches[0].ContextMap()["field"])
		assert.Equal(t, int64(1), searches[0].ContextMap()["attempt"])
		assert.Equal(t, "name", searches[5].ContextMap()["field"])
		assert.Equal(t, int64(3), searches[5].ContextMap()["attempt"])

		assert.Equal(t, 6, logs.FilterMessage("no results, retrying").Len())
		assert.Equal(t, 2, logs.FilterMessage("giving up on field").Len())

		final := logs.FilterMessage("no valid data found in any field").All()
		require.Len(t, final, 1)
		assert.Equal(t, int64(2), final[0].ContextMap()["row"])
	})

	t.Run("http failures carry the status code", func(t *testing.T) {
		svc, logs := newService(NewMockCatalogClient(alwaysFail(&domain.StatusError{Code: 401, Body: "unauthorized"})))

		svc.Lookup(ctx, 0, newRecord("upc", "1"), "")

		failures := logs.FilterMessage("search failed").All()
		require.Len(t, failures, 3)
		assert.Equal(t, int64(401), failures[0].ContextMap()["status"])
	})
}

func TestLookup_Cache(t *testing.T) {
	ctx := context.Background()

	t.Run("serves cached results without a network call", func(t *testing.T) {
		cache := NewMockCacheRepository()
		data, _ := json.Marshal(domain.Enrichment{ProductName: "Cached", CategoryID: "5", CategoryPath: "A > B"})
		cache.data[CacheKey("012345")] = data

		client := NewMockCatalogClient(alwaysFail(errors.New("must not be called")))
		svc := NewLookupService(client, cache, LookupServiceConfig{}, nil)

		out := svc.Lookup(ctx, 0, newRecord("upc", "012345"), "tok")

		assert.Equal(t, domain.OutcomeEnriched, out.Status)
		assert.True(t, out.Cached)
		assert.Zero(t, out.Attempts)
		assert.Equal(t, "Cached", out.Enrichment.ProductName)
	})

	t.Run("stores successful lookups", func(t *testing.T) {
		cache := NewMockCacheRepository()
		client := NewMockCatalogClient(func(string, int) (*domain.SearchResponse, error) {
			return hit("Widget", "999", "Home", "Tools"), nil
		})
		svc := NewLookupService(client, cache, LookupServiceConfig{}, nil)

		svc.Lookup(ctx, 0, newRecord("upc", "012345"), "tok")
		out := svc.Lookup(ctx, 1, newRecord("upc", "012345"), "tok")

		assert.True(t, cache.setCalled)
		assert.True(t, out.Cached)
		assert.Len(t, client.Queries(), 1)
	})

	t.Run("does not cache failures", func(t *testing.T) {
		cache := NewMockCacheRepository()
		client := NewMockCatalogClient(alwaysFail(domain.ErrSoftMiss))
		svc := NewLookupService(client, cache, LookupServiceConfig{}, nil)

		svc.Lookup(ctx, 0, newRecord("upc", "1"), "tok")

		assert.False(t, cache.setCalled)
	})

	t.Run("cache errors fall back to the network", func(t *testing.T) {
		cache := NewMockCacheRepository()
		cache.getError = domain.ErrCacheUnavailable
		cache.setError = domain.ErrCacheUnavailable
		client := NewMockCatalogClient(func(string, int) (*domain.SearchResponse, error) {
			return hit("Widget", "1"), nil
		})
		svc := NewLookupService(client, cache, LookupServiceConfig{}, nil)

		out := svc.Lookup(ctx, 0, newRecord("upc", "1"), "tok")

		assert.Equal(t, domain.OutcomeEnriched, out.Status)
		assert.False(t, out.Cached)
	})

	t.Run("unreadable entries are ignored", func(t *testing.T) {
		cache := NewMockCacheRepository()
		cache.data[CacheKey("1")] = []byte("not json")
		client := NewMockCatalogClient(func(string, int) (*domain.SearchResponse, error) {
			return hit("Widget", "1"), nil
		})
		svc := NewLookupService(client, cache, LookupServiceConfig{}, nil)

		out := svc.Lookup(ctx, 0, newRecord("upc", "1"), "tok")

		assert.False(t, out.Cached)
		assert.Equal(t, 1, out.Attempts)
	})
}
