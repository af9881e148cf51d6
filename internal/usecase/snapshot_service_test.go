package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ivanldv/sportcal/internal/domain/classification"
	"github.com/ivanldv/sportcal/internal/domain/event"
	"github.com/ivanldv/sportcal/internal/domain/snapshot"
)

type fakeStore struct {
	events   map[string]event.Record
	obsolete map[string]snapshot.ObsoleteRecord
	cache    classification.Cache

	saveEventsErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:   make(map[string]event.Record),
		obsolete: make(map[string]snapshot.ObsoleteRecord),
		cache:    make(classification.Cache),
	}
}

func (s *fakeStore) LoadEvents(ctx context.Context) (map[string]event.Record, error) {
	return s.events, nil
}

func (s *fakeStore) SaveEvents(ctx context.Context, events map[string]event.Record) error {
	if s.saveEventsErr != nil {
		return s.saveEventsErr
	}
	s.events = events
	return nil
}

func (s *fakeStore) LoadObsolete(ctx context.Context) (map[string]snapshot.ObsoleteRecord, error) {
	return s.obsolete, nil
}

func (s *fakeStore) SaveObsolete(ctx context.Context, obsolete map[string]snapshot.ObsoleteRecord) error {
	s.obsolete = obsolete
	return nil
}

func (s *fakeStore) LoadClassificationCache(ctx context.Context) (classification.Cache, error) {
	return s.cache, nil
}

func (s *fakeStore) SaveClassificationCache(ctx context.Context, cache classification.Cache) error {
	s.cache = cache
	return nil
}

func TestSnapshotService_RetiresDroppedEventsAsObsolete(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()

	svc := NewSnapshotService(store, 30, nil)
	svc.now = fixedClock(now)

	previous := map[string]event.Record{
		"kept":    {ID: "kept", Status: event.StatusScheduled, StartAt: now.Add(24 * time.Hour)},
		"dropped": {ID: "dropped", Status: event.StatusFinished, StartAt: now.Add(-24 * time.Hour)},
	}
	working := map[string]event.Record{
		"kept": previous["kept"],
	}

	err := svc.Persist(context.Background(), working, previous, nil, classification.Cache{})
	if err != nil {
		t.Fatalf("persist: %v", err)
	}

	if _, ok := store.obsolete["dropped"]; !ok {
		t.Fatalf("expected dropped event retained as obsolete, got %+v", store.obsolete)
	}
	if _, ok := store.events["dropped"]; ok {
		t.Fatalf("dropped event must not stay in the events snapshot")
	}
}

func TestSnapshotService_PrunesBeyondLookback(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()

	svc := NewSnapshotService(store, 30, nil)
	svc.now = fixedClock(now)

	working := map[string]event.Record{
		"old":    {ID: "old", StartAt: now.AddDate(0, 0, -45)},
		"recent": {ID: "recent", StartAt: now.AddDate(0, 0, -5)},
	}
	obsolete := map[string]snapshot.ObsoleteRecord{
		"stale": {Record: event.Record{ID: "stale"}, LastSeen: now.AddDate(0, 0, -60)},
		"fresh": {Record: event.Record{ID: "fresh"}, LastSeen: now.AddDate(0, 0, -3)},
	}

	err := svc.Persist(context.Background(), working, nil, obsolete, classification.Cache{})
	if err != nil {
		t.Fatalf("persist: %v", err)
	}

	if _, ok := store.events["old"]; ok {
		t.Fatalf("event older than lookback must be purged")
	}
	if _, ok := store.events["recent"]; !ok {
		t.Fatalf("recent event must survive")
	}
	if _, ok := store.obsolete["stale"]; ok {
		t.Fatalf("obsolete entry past lookback must be purged")
	}
	if _, ok := store.obsolete["fresh"]; !ok {
		t.Fatalf("tracked obsolete entry must survive")
	}
}

func TestSnapshotService_CommitFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.saveEventsErr = errors.New("disk full")

	svc := NewSnapshotService(store, 30, nil)
	svc.now = fixedClock(time.Now())

	err := svc.Persist(context.Background(), map[string]event.Record{}, nil, nil, classification.Cache{})
	if err == nil {
		t.Fatalf("expected persistence error")
	}
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}
