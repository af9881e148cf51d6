package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ivanldv/sportcal/internal/domain/classification"
	"github.com/ivanldv/sportcal/internal/domain/event"
	"github.com/ivanldv/sportcal/internal/domain/snapshot"
	"github.com/ivanldv/sportcal/internal/platform/logging"
)

// ScrapeResult is what the external scraping collaborator hands back
// for one cycle. Complete is true only when every configured source
// finished without fatal error.
type ScrapeResult struct {
	Fragments     []event.Fragment
	Complete      bool
	FailedSources int
}

// FragmentSource collects raw per-source event fragments.
type FragmentSource interface {
	Collect(ctx context.Context) (ScrapeResult, error)
}

// PipelineService wires the consolidation stages into one run. The run
// lock guarantees a new cycle never starts before the previous commit
// finished.
type PipelineService struct {
	runMu sync.Mutex

	source   FragmentSource
	merge    *MergeService
	fusion   *FusionService
	cancel   *CancellationService
	enrich   *EnrichmentService
	overrun  *OverrunService
	persist  *SnapshotService
	calendar *CalendarService
	writer   CalendarWriter
	store    snapshot.Store
	logger   *logging.Logger
}

type RunReport struct {
	Fragments      int           `json:"fragments"`
	Events         int           `json:"events"`
	Cancelled      int           `json:"cancelled"`
	Extended       int           `json:"extended"`
	ScrapeComplete bool          `json:"scrape_complete"`
	Ingest         IngestStats   `json:"ingest"`
	Enrichment     EnrichStats   `json:"enrichment"`
	Duration       time.Duration `json:"duration"`
}

func NewPipelineService(
	source FragmentSource,
	merge *MergeService,
	fusion *FusionService,
	cancel *CancellationService,
	enrich *EnrichmentService,
	overrun *OverrunService,
	persist *SnapshotService,
	calendar *CalendarService,
	writer CalendarWriter,
	store snapshot.Store,
	logger *logging.Logger,
) *PipelineService {
	if logger == nil {
		logger = logging.Default()
	}
	return &PipelineService{
		source:   source,
		merge:    merge,
		fusion:   fusion,
		cancel:   cancel,
		enrich:   enrich,
		overrun:  overrun,
		persist:  persist,
		calendar: calendar,
		writer:   writer,
		store:    store,
		logger:   logger,
	}
}

// Run executes one full consolidation cycle. Per-fragment and
// per-enrichment errors never abort the run; persistence errors do.
func (s *PipelineService) Run(ctx context.Context) (RunReport, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx, span := startUsecaseSpan(ctx, "usecase.PipelineService.Run")
	defer span.End()

	started := time.Now()
	var report RunReport

	previous, err := s.store.LoadEvents(ctx)
	if err != nil {
		return report, fmt.Errorf("load events snapshot: %w", err)
	}
	obsolete, err := s.store.LoadObsolete(ctx)
	if err != nil {
		return report, fmt.Errorf("load obsolete snapshot: %w", err)
	}
	cache, err := s.store.LoadClassificationCache(ctx)
	if err != nil {
		return report, fmt.Errorf("load classification cache: %w", err)
	}
	if cache == nil {
		cache = make(classification.Cache)
	}

	scrape, err := s.source.Collect(ctx)
	if err != nil {
		// A collector-level failure still lets the run continue from
		// whatever came back, it just can never prove a cancellation.
		s.logger.ErrorContext(ctx, "scrape failed", "error", err)
		scrape.Complete = false
	}
	if len(scrape.Fragments) == 0 && scrape.Complete {
		// Nothing came back at all; treat like an outage so the last
		// snapshot is carried forward instead of cancelling everything.
		s.logger.WarnContext(ctx, "scrape returned no fragments, keeping previous snapshot")
		scrape.Complete = false
	}
	report.Fragments = len(scrape.Fragments)
	report.ScrapeComplete = scrape.Complete
	if !scrape.Complete {
		s.logger.WarnContext(ctx, "partial scrape",
			"failed_sources", scrape.FailedSources, "reason", ErrPartialScrape)
	}

	working, ingest := s.merge.Ingest(ctx, scrape.Fragments)
	report.Ingest = ingest

	working, fusionAliases := s.fusion.Fuse(ctx, working)

	// Previous view for cancellation: the last committed events plus
	// still-tracked obsolete records.
	prevView := make(map[string]event.Record, len(previous)+len(obsolete))
	for id, record := range previous {
		prevView[id] = record
	}
	for id, entry := range obsolete {
		if _, ok := prevView[id]; !ok {
			prevView[id] = entry.Record
		}
	}
	report.Cancelled = s.cancel.Detect(ctx, working, prevView, fusionAliases, scrape.Complete)

	enrichStats, err := s.enrich.Enrich(ctx, working, cache)
	if err != nil {
		return report, err
	}
	report.Enrichment = enrichStats

	report.Extended = s.overrun.Extend(ctx, working)

	if err := s.persist.Persist(ctx, working, previous, obsolete, cache); err != nil {
		return report, err
	}

	entries := s.calendar.Build(ctx, working, prevView)
	if err := s.writer.Write(ctx, entries); err != nil {
		return report, fmt.Errorf("write calendar: %w", err)
	}

	report.Events = len(working)
	report.Duration = time.Since(started)

	s.logger.InfoContext(ctx, "run finished",
		"fragments", report.Fragments,
		"events", report.Events,
		"cancelled", report.Cancelled,
		"extended", report.Extended,
		"fetched", enrichStats.Fetched,
		"reused", enrichStats.Reused,
		"failed", enrichStats.Failed,
		"scrape_complete", report.ScrapeComplete,
		"duration", report.Duration,
	)

	return report, nil
}
