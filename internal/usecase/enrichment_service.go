package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/ivanldv/sportcal/internal/domain/classification"
	"github.com/ivanldv/sportcal/internal/domain/event"
	"github.com/ivanldv/sportcal/internal/platform/logging"
)

// ClassificationFetcher is the external standings collaborator.
// Timeouts are its concern; the enricher treats any error alike.
type ClassificationFetcher interface {
	Fetch(ctx context.Context, key string) (classification.Payload, error)
}

type EnrichmentConfig struct {
	Workers              int
	CacheTTL             time.Duration
	RefreshEmptyCache    bool
	SkipFetchWhenPresent bool
	IndividualSports     map[string]struct{}
	TeamSports           map[string]struct{}
}

// EnrichmentService attaches standings to events, fetching through a
// bounded pool and reusing fresh cache entries. Only the coordinating
// goroutine writes events or cache; workers report over a channel.
type EnrichmentService struct {
	cfg     EnrichmentConfig
	fetcher ClassificationFetcher
	logger  *logging.Logger
	now     func() time.Time
}

type EnrichStats struct {
	// Requested counts events wanting enrichment this run, before
	// shared cache keys collapse them into fewer fetches.
	Requested int `json:"requested"`
	Reused    int `json:"reused"`
	Skipped   int `json:"skipped"`
	Fetched   int `json:"fetched"`
	Failed    int `json:"failed"`
}

type enrichResult struct {
	key     string
	payload classification.Payload
	err     error
}

func NewEnrichmentService(cfg EnrichmentConfig, fetcher ClassificationFetcher, logger *logging.Logger) *EnrichmentService {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &EnrichmentService{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
}

// Enrich runs one enrichment pass and returns once every in-flight
// fetch has drained. Fetch failures are non-fatal: affected events
// keep any stale payload and are marked enrichment-failed.
func (s *EnrichmentService) Enrich(ctx context.Context, working map[string]event.Record, cache classification.Cache) (EnrichStats, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.EnrichmentService.Enrich")
	defer span.End()

	var stats EnrichStats
	now := s.now()

	// One request per cache key, fanned back out to every event that
	// shares it.
	eventsByKey := make(map[string][]string)
	for id, record := range working {
		key, ok := s.requestKey(record)
		if !ok {
			continue
		}
		if s.cfg.SkipFetchWhenPresent && record.Classification != nil && !record.Classification.Empty() {
			stats.Skipped++
			continue
		}
		eventsByKey[key] = append(eventsByKey[key], id)
		stats.Requested++
	}

	pending := make([]string, 0, len(eventsByKey))
	for key := range eventsByKey {
		if entry, ok := cache.Fresh(key, now); ok {
			if entry.Payload.Empty() && s.cfg.RefreshEmptyCache {
				pending = append(pending, key)
				continue
			}
			s.attach(working, eventsByKey[key], entry.Payload)
			stats.Reused++
			continue
		}
		pending = append(pending, key)
	}

	if len(pending) == 0 {
		return stats, nil
	}

	results := make(chan enrichResult, len(pending))

	var fetched atomic.Int32
	var failed atomic.Int32

	pool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		return stats, fmt.Errorf("create enrichment pool: %w", err)
	}
	defer pool.Release()

	var workers sync.WaitGroup
	for _, key := range pending {
		key := key
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()

			payload, err := s.fetcher.Fetch(ctx, key)
			if err != nil {
				failed.Add(1)
				results <- enrichResult{key: key, err: err}
				return
			}
			fetched.Add(1)
			results <- enrichResult{key: key, payload: payload}
		}); err != nil {
			workers.Done()
			failed.Add(1)
			results <- enrichResult{key: key, err: err}
		}
	}

	workers.Wait()
	close(results)

	// Single-writer apply: workers never touch the map or the cache.
	for result := range results {
		ids := eventsByKey[result.key]
		if result.err != nil {
			s.logger.WarnContext(ctx, "classification fetch failed",
				"key", result.key, "reason", fmt.Errorf("%w: %v", ErrFetchFailure, result.err))
			if stale, ok := cache[result.key]; ok && !stale.Payload.Empty() {
				s.attach(working, ids, stale.Payload)
			}
			for _, id := range ids {
				record := working[id]
				record.EnrichFailed = true
				working[id] = record
			}
			continue
		}

		cache.Put(classification.CacheEntry{
			Key:       result.key,
			Payload:   result.payload,
			FetchedAt: s.now(),
			TTL:       s.cfg.CacheTTL,
		})
		s.attach(working, ids, result.payload)
	}

	stats.Fetched = int(fetched.Load())
	stats.Failed = int(failed.Load())

	return stats, nil
}

func (s *EnrichmentService) requestKey(record event.Record) (string, bool) {
	switch record.Kind {
	case event.KindTeam:
		if _, ok := s.cfg.TeamSports[record.Sport]; ok && record.Competition != "" {
			return classification.TableKey(record.Competition), true
		}
	case event.KindIndividual:
		if _, ok := s.cfg.IndividualSports[record.Sport]; ok && record.Competition != "" {
			return classification.RankingKey(record.Competition), true
		}
	}
	return "", false
}

func (s *EnrichmentService) attach(working map[string]event.Record, ids []string, payload classification.Payload) {
	for _, id := range ids {
		record := working[id]
		attached := payload
		record.Classification = &attached
		record.EnrichFailed = false
		working[id] = record
	}
}
