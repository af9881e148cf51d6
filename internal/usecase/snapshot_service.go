package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/ivanldv/sportcal/internal/domain/classification"
	"github.com/ivanldv/sportcal/internal/domain/event"
	"github.com/ivanldv/sportcal/internal/domain/snapshot"
	"github.com/ivanldv/sportcal/internal/platform/logging"
)

// SnapshotService reconciles a run's output with durable state and is
// the only writer of the snapshot store.
type SnapshotService struct {
	store           snapshot.Store
	pastResultsDays int
	logger          *logging.Logger
	now             func() time.Time
}

func NewSnapshotService(store snapshot.Store, pastResultsDays int, logger *logging.Logger) *SnapshotService {
	if logger == nil {
		logger = logging.Default()
	}
	return &SnapshotService{
		store:           store,
		pastResultsDays: pastResultsDays,
		logger:          logger,
		now:             time.Now,
	}
}

// Persist commits the event set, the recomputed obsolete set, and the
// classification cache. Any commit error is fatal for the run; the
// store keeps its previous, whole snapshots.
func (s *SnapshotService) Persist(
	ctx context.Context,
	working map[string]event.Record,
	previous map[string]event.Record,
	obsolete map[string]snapshot.ObsoleteRecord,
	cache classification.Cache,
) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.SnapshotService.Persist")
	defer span.End()

	now := s.now()
	cutoff := now.AddDate(0, 0, -s.pastResultsDays)

	events := make(map[string]event.Record, len(working))
	for id, record := range working {
		if record.StartAt.Before(cutoff) {
			continue
		}
		events[id] = record
	}

	nextObsolete := make(map[string]snapshot.ObsoleteRecord)
	for id, entry := range obsolete {
		if _, live := events[id]; live {
			continue
		}
		if entry.LastSeen.Before(cutoff) {
			continue
		}
		nextObsolete[id] = entry
	}
	for id, record := range previous {
		if _, live := events[id]; live {
			continue
		}
		if _, have := nextObsolete[id]; have {
			continue
		}
		if record.StartAt.Before(cutoff) {
			continue
		}
		nextObsolete[id] = snapshot.ObsoleteRecord{Record: record, LastSeen: now}
	}

	if err := s.store.SaveEvents(ctx, events); err != nil {
		return fmt.Errorf("%w: events: %v", ErrPersistence, err)
	}
	if err := s.store.SaveObsolete(ctx, nextObsolete); err != nil {
		return fmt.Errorf("%w: obsolete: %v", ErrPersistence, err)
	}
	if err := s.store.SaveClassificationCache(ctx, cache); err != nil {
		return fmt.Errorf("%w: classification cache: %v", ErrPersistence, err)
	}

	s.logger.InfoContext(ctx, "snapshots committed",
		"events", len(events), "obsolete", len(nextObsolete), "cache_entries", len(cache))

	return nil
}
