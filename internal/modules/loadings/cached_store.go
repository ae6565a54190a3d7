package loadings

import (
	"context"
	"sync"

	"github.com/aristath/factorlab/internal/domain"
	"github.com/aristath/factorlab/internal/metrics"
	"github.com/aristath/factorlab/pkg/lru"
)

// CachedStore serves repeated loads of the same (store id, date key) from a
// bounded recency cache. Writes go to the inner store and then drop the
// cached entry. A load that raced with a write does not populate the cache.
type CachedStore struct {
	inner   Store
	cache   *lru.Cache[string, domain.FactorTable]
	metrics *metrics.Registry

	mu          sync.Mutex
	generations map[string]uint64 // bumped on every write of a key
}

// NewCachedStore wraps inner with a cache of the given capacity
func NewCachedStore(inner Store, capacity int, m *metrics.Registry) *CachedStore {
	return &CachedStore{
		inner:       inner,
		cache:       lru.New[string, domain.FactorTable](capacity),
		metrics:     m,
		generations: make(map[string]uint64),
	}
}

func cacheKey(storeID, dateKey string) string {
	return storeID + "|" + dateKey
}

// Persist implements Store
func (s *CachedStore) Persist(ctx context.Context, storeID, dateKey string, table domain.FactorTable) error {
	err := s.inner.Persist(ctx, storeID, dateKey, table)

	key := cacheKey(storeID, dateKey)
	s.mu.Lock()
	s.generations[key]++
	s.cache.Remove(key)
	s.mu.Unlock()
	return err
}

// Load implements Store. Errors are never cached.
func (s *CachedStore) Load(ctx context.Context, storeID, dateKey string) (domain.FactorTable, error) {
	key := cacheKey(storeID, dateKey)
	if table, ok := s.cache.Get(key); ok {
		s.metrics.RecordCacheLookup(storeID, true)
		return table, nil
	}
	s.metrics.RecordCacheLookup(storeID, false)

	s.mu.Lock()
	generation := s.generations[key]
	s.mu.Unlock()

	table, err := s.inner.Load(ctx, storeID, dateKey)
	if err != nil {
		return domain.FactorTable{}, err
	}

	s.mu.Lock()
	if s.generations[key] == generation {
		s.cache.Set(key, table)
	}
	s.mu.Unlock()
	return table, nil
}

// Purge drops every cached table.
func (s *CachedStore) Purge() {
	s.cache.Purge()
}

// Len returns the number of cached tables.
func (s *CachedStore) Len() int {
	return s.cache.Len()
}
