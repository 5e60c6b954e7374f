package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/catalogfill/enricher/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	mu        sync.Mutex
	data      map[string][]byte
	getError  error
	setError  error
	setCalled bool
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		data: make(map[string][]byte),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalled = true
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

// MockCatalogClient is a mock implementation of domain.CatalogClient.
// respond decides the answer for each call; calls are recorded in order.
type MockCatalogClient struct {
	mu      sync.Mutex
	respond func(query string, call int) (*domain.SearchResponse, error)
	queries []string
	tokens  []domain.AccessToken
}

func NewMockCatalogClient(respond func(query string, call int) (*domain.SearchResponse, error)) *MockCatalogClient {
	return &MockCatalogClient{respond: respond}
}

func (m *MockCatalogClient) Search(ctx context.Context, query string, token domain.AccessToken) (*domain.SearchResponse, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.tokens = append(m.tokens, token)
	call := len(m.queries)
	m.mu.Unlock()
	return m.respond(query, call)
}

func (m *MockCatalogClient) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// MockTokenProvider is a mock implementation of domain.TokenProvider
type MockTokenProvider struct {
	token  domain.AccessToken
	err    error
	called int
}

func (m *MockTokenProvider) FetchToken(ctx context.Context, clientID, clientSecret string) (domain.AccessToken, error) {
	m.called++
	if m.err != nil {
		return "", m.err
	}
	return m.token, nil
}

// MockRecordStore keeps records in memory
type MockRecordStore struct {
	records []*domain.Record
	loadErr error
	saveErr error
	saved   []*domain.Record
}

func (m *MockRecordStore) Load() ([]*domain.Record, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.records, nil
}

func (m *MockRecordStore) Save(records []*domain.Record) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = records
	return nil
}

func (m *MockRecordStore) OutputPath() string {
	return "mock://results.csv"
}

// MockResultSink records what it was handed
type MockResultSink struct {
	err     error
	reports []*domain.RunReport
}

func (m *MockResultSink) Save(ctx context.Context, report *domain.RunReport, records []*domain.Record) error {
	m.reports = append(m.reports, report)
	return m.err
}

func hit(title, leaf string, path ...string) *domain.SearchResponse {
	cats := make([]domain.Category, 0, len(path))
	for _, name := range path {
		cats = append(cats, domain.Category{CategoryName: name})
	}
	var leaves []string
	if leaf != "" {
		leaves = []string{leaf}
	}
	return &domain.SearchResponse{
		Total: 1,
		ItemSummaries: []domain.ItemSummary{
			{Title: title, LeafCategoryIDs: leaves, Categories: cats},
		},
	}
}

func newRecord(pairs ...string) *domain.Record {
	rec := domain.NewRecord()
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "<null>" {
			rec.SetNull(pairs[i])
			continue
		}
		rec.SetString(pairs[i], pairs[i+1])
	}
	return rec
}
