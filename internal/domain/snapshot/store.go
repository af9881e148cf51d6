package snapshot

import (
	"context"

	"github.com/ivanldv/sportcal/internal/domain/classification"
	"github.com/ivanldv/sportcal/internal/domain/event"
)

// Store persists the three durable snapshots across runs. Each save
// replaces the whole snapshot; partial writes must never become visible.
type Store interface {
	LoadEvents(ctx context.Context) (map[string]event.Record, error)
	SaveEvents(ctx context.Context, events map[string]event.Record) error

	LoadObsolete(ctx context.Context) (map[string]ObsoleteRecord, error)
	SaveObsolete(ctx context.Context, obsolete map[string]ObsoleteRecord) error

	LoadClassificationCache(ctx context.Context) (classification.Cache, error)
	SaveClassificationCache(ctx context.Context, cache classification.Cache) error
}
