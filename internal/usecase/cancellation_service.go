package usecase

import (
	"context"
	"time"

	"github.com/ivanldv/sportcal/internal/domain/event"
	"github.com/ivanldv/sportcal/internal/platform/logging"
)

// CancellationService tells a vanished event apart from a scrape gap.
// An event may only be flagged cancelled when every configured source
// finished this run.
type CancellationService struct {
	logger *logging.Logger
	now    func() time.Time
}

func NewCancellationService(logger *logging.Logger) *CancellationService {
	if logger == nil {
		logger = logging.Default()
	}
	return &CancellationService{
		logger: logger,
		now:    time.Now,
	}
}

// Detect mutates current in place: previous-run records missing from
// the current set either transition to CANCELLED (complete scrape,
// non-terminal status) or are carried forward untouched (partial
// scrape). Terminal records are never re-flagged; persistence retires
// them as obsolete.
//
// fusionAliases names ids superseded this run by a fusion group
// growing or shrinking: the record is still live under another id, so
// its old id is neither cancelled nor carried forward.
func (s *CancellationService) Detect(ctx context.Context, current, previous map[string]event.Record, fusionAliases map[string]struct{}, scrapeComplete bool) int {
	ctx, span := startUsecaseSpan(ctx, "usecase.CancellationService.Detect")
	defer span.End()

	if !scrapeComplete {
		s.logger.WarnContext(ctx, "cancellation detection disabled this run", "reason", ErrPartialScrape)
	}

	cancelled := 0
	for id, prev := range previous {
		if _, ok := current[id]; ok {
			continue
		}
		if _, ok := fusionAliases[id]; ok {
			continue
		}

		if !scrapeComplete {
			current[id] = prev
			continue
		}

		if event.IsTerminalStatus(prev.Status) {
			continue
		}

		prev.Status = event.StatusCancelled
		prev.LastUpdated = s.now()
		current[id] = prev
		cancelled++
		s.logger.InfoContext(ctx, "event cancelled",
			"id", id, "sport", prev.Sport, "competition", prev.Competition)
	}

	return cancelled
}
