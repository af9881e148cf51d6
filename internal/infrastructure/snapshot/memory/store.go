package memory

import (
	"context"
	"sync"

	"github.com/ivanldv/sportcal/internal/domain/classification"
	"github.com/ivanldv/sportcal/internal/domain/event"
	"github.com/ivanldv/sportcal/internal/domain/snapshot"
)

// Store is an in-memory snapshot store for tests and dry runs. Loads
// and saves copy their maps so callers never share backing storage.
type Store struct {
	mu sync.RWMutex

	events   map[string]event.Record
	obsolete map[string]snapshot.ObsoleteRecord
	cache    classification.Cache
}

func New() *Store {
	return &Store{
		events:   make(map[string]event.Record),
		obsolete: make(map[string]snapshot.ObsoleteRecord),
		cache:    make(classification.Cache),
	}
}

func (s *Store) LoadEvents(ctx context.Context) (map[string]event.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMap(s.events), nil
}

func (s *Store) SaveEvents(ctx context.Context, events map[string]event.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = copyMap(events)
	return nil
}

func (s *Store) LoadObsolete(ctx context.Context) (map[string]snapshot.ObsoleteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMap(s.obsolete), nil
}

func (s *Store) SaveObsolete(ctx context.Context, obsolete map[string]snapshot.ObsoleteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obsolete = copyMap(obsolete)
	return nil
}

func (s *Store) LoadClassificationCache(ctx context.Context) (classification.Cache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMap(s.cache), nil
}

func (s *Store) SaveClassificationCache(ctx context.Context, cache classification.Cache) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = copyMap(cache)
	return nil
}

func copyMap[M ~map[K]V, K comparable, V any](in M) M {
	out := make(M, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
