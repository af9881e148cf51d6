package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/ivanldv/sportcal/internal/domain/classification"
	"github.com/ivanldv/sportcal/internal/domain/event"
)

type stubSource struct {
	result ScrapeResult
}

func (s *stubSource) Collect(ctx context.Context) (ScrapeResult, error) {
	return s.result, nil
}

type captureWriter struct {
	entries []CalendarEntry
}

func (w *captureWriter) Write(ctx context.Context, entries []CalendarEntry) error {
	w.entries = entries
	return nil
}

func newTestPipeline(store *fakeStore, source FragmentSource, fetcher ClassificationFetcher, writer CalendarWriter) *PipelineService {
	cfg := enrichmentConfig()
	return NewPipelineService(
		source,
		NewMergeService(nil, nil),
		NewFusionService(fusionSports(), nil),
		NewCancellationService(nil),
		NewEnrichmentService(cfg, fetcher, nil),
		NewOverrunService(overrunSports(), 30, 12, nil),
		NewSnapshotService(store, 30, nil),
		NewCalendarService("Misc", nil),
		writer,
		store,
		nil,
	)
}

func TestPipelineService_EndToEndRun(t *testing.T) {
	start := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	store := newFakeStore()
	writer := &captureWriter{}
	source := &stubSource{result: ScrapeResult{
		Complete: true,
		Fragments: []event.Fragment{
			{Source: "alpha", GameID: "g1", Sport: "FOOTBALL", Competition: "Premier League",
				StartAt: start, Status: "LIVE", HomeTeam: "Arsenal", AwayTeam: "Chelsea", Score: ""},
			{Source: "beta", GameID: "g1", Sport: "FOOTBALL", Competition: "Premier League",
				StartAt: start, Status: "LIVE", HomeTeam: "Arsenal", AwayTeam: "Chelsea", Score: "1-0"},
		},
	}}
	fetcher := &stubFetcher{payload: tablePayload()}

	pipeline := newTestPipeline(store, source, fetcher, writer)

	report, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Events != 1 {
		t.Fatalf("expected 1 consolidated event, got %d", report.Events)
	}

	record, ok := store.events["g1"]
	if !ok {
		t.Fatalf("expected g1 committed to the store")
	}
	if record.Score != "1-0" {
		t.Fatalf("expected merged score 1-0, got %q", record.Score)
	}
	if record.Classification == nil || record.Classification.Empty() {
		t.Fatalf("expected classification attached")
	}
	if len(writer.entries) != 1 {
		t.Fatalf("expected 1 calendar entry, got %d", len(writer.entries))
	}
	if len(store.cache) != 1 {
		t.Fatalf("expected classification cache committed, got %d entries", len(store.cache))
	}
}

func TestPipelineService_PartialScrapeEmitsBestEffortWithoutCancellations(t *testing.T) {
	start := time.Now().Add(24 * time.Hour).UTC()
	store := newFakeStore()
	store.events = map[string]event.Record{
		"gone": {ID: "gone", Sport: "FOOTBALL", Kind: event.KindTeam,
			HomeTeam: "X", AwayTeam: "Y", Status: event.StatusScheduled, StartAt: start},
	}
	writer := &captureWriter{}
	source := &stubSource{result: ScrapeResult{Complete: false, FailedSources: 1}}
	fetcher := &stubFetcher{payload: classification.Payload{}}

	pipeline := newTestPipeline(store, source, fetcher, writer)

	report, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Cancelled != 0 {
		t.Fatalf("partial scrape must not cancel, got %d", report.Cancelled)
	}
	if store.events["gone"].Status != event.StatusScheduled {
		t.Fatalf("expected SCHEDULED carried forward, got %s", store.events["gone"].Status)
	}
	if len(writer.entries) != 1 {
		t.Fatalf("expected best-effort calendar output, got %d entries", len(writer.entries))
	}
}

func TestPipelineService_CompleteScrapeCancelsMissingEvent(t *testing.T) {
	start := time.Now().Add(24 * time.Hour).UTC()
	store := newFakeStore()
	store.events = map[string]event.Record{
		"gone": {ID: "gone", Sport: "FOOTBALL", Kind: event.KindTeam,
			HomeTeam: "X", AwayTeam: "Y", Status: event.StatusScheduled, StartAt: start},
	}
	writer := &captureWriter{}
	source := &stubSource{result: ScrapeResult{
		Complete: true,
		Fragments: []event.Fragment{
			{Source: "alpha", GameID: "g9", Sport: "FOOTBALL", Competition: "Premier League",
				StartAt: start, Status: "SCHEDULED", HomeTeam: "Arsenal", AwayTeam: "Chelsea"},
		},
	}}
	fetcher := &stubFetcher{payload: classification.Payload{}}

	pipeline := newTestPipeline(store, source, fetcher, writer)

	report, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Cancelled != 1 {
		t.Fatalf("expected 1 cancellation, got %d", report.Cancelled)
	}
	if store.events["gone"].Status != event.StatusCancelled {
		t.Fatalf("expected CANCELLED committed, got %s", store.events["gone"].Status)
	}
}

func TestPipelineService_EmptyScrapeKeepsPreviousSnapshot(t *testing.T) {
	start := time.Now().Add(24 * time.Hour).UTC()
	store := newFakeStore()
	store.events = map[string]event.Record{
		"keep": {ID: "keep", Sport: "FOOTBALL", Kind: event.KindTeam,
			HomeTeam: "X", AwayTeam: "Y", Status: event.StatusScheduled, StartAt: start},
	}
	writer := &captureWriter{}
	source := &stubSource{result: ScrapeResult{Complete: true}}
	fetcher := &stubFetcher{payload: classification.Payload{}}

	pipeline := newTestPipeline(store, source, fetcher, writer)

	report, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.ScrapeComplete {
		t.Fatal("empty scrape must be treated as incomplete")
	}
	if report.Cancelled != 0 {
		t.Fatalf("empty scrape must not cancel, got %d", report.Cancelled)
	}
	if store.events["keep"].Status != event.StatusScheduled {
		t.Fatalf("expected previous event carried forward, got %s", store.events["keep"].Status)
	}
	if len(writer.entries) != 1 {
		t.Fatalf("expected calendar rebuilt from previous snapshot, got %d entries", len(writer.entries))
	}
}

func TestPipelineService_FusionGroupGrowthIsNotACancellation(t *testing.T) {
	day := time.Now().Add(48 * time.Hour).UTC().Truncate(24 * time.Hour)
	store := newFakeStore()
	writer := &captureWriter{}
	fetcher := &stubFetcher{payload: classification.Payload{}}

	session := func(gameID string, hour int) event.Fragment {
		return event.Fragment{Source: "alpha", GameID: gameID, Sport: "MOTORSPORT",
			Competition: "Grand Prix of Spain", StartAt: day.Add(time.Duration(hour) * time.Hour),
			Status: "SCHEDULED", Entrants: []event.Entrant{{Name: "Driver One"}}}
	}

	// Run 1: a lone session commits under its source id.
	source := &stubSource{result: ScrapeResult{Complete: true,
		Fragments: []event.Fragment{session("g1", 10)}}}
	pipeline := newTestPipeline(store, source, fetcher, writer)
	if _, err := pipeline.Run(context.Background()); err != nil {
		t.Fatalf("run 1: %v", err)
	}
	if _, ok := store.events["g1"]; !ok {
		t.Fatalf("expected singleton committed under source id, got %v", store.events)
	}

	// Run 2: a second session joins the group, so the day commits
	// under the derived group id. The old id moved, it did not vanish.
	source.result = ScrapeResult{Complete: true,
		Fragments: []event.Fragment{session("g1", 10), session("g2", 14)}}
	report, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("run 2: %v", err)
	}
	if report.Cancelled != 0 {
		t.Fatalf("group growth must not cancel, got %d", report.Cancelled)
	}
	var fusedID string
	for id, record := range store.events {
		if record.Status == event.StatusCancelled {
			t.Fatalf("unexpected cancelled record %q after fusion regrouping", id)
		}
		if event.IsFusedID(id) {
			fusedID = id
		}
	}
	if fusedID == "" {
		t.Fatalf("expected group committed under derived id, got %v", store.events)
	}

	// Run 3: the group shrinks back to one session. The derived id
	// retires without a cancellation either.
	source.result = ScrapeResult{Complete: true,
		Fragments: []event.Fragment{session("g1", 10)}}
	report, err = pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("run 3: %v", err)
	}
	if report.Cancelled != 0 {
		t.Fatalf("group shrinkage must not cancel, got %d", report.Cancelled)
	}
	for id, record := range store.events {
		if record.Status == event.StatusCancelled {
			t.Fatalf("unexpected cancelled record %q after group shrank", id)
		}
	}
}
