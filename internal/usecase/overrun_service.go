package usecase

import (
	"context"
	"time"

	"github.com/ivanldv/sportcal/internal/domain/event"
	"github.com/ivanldv/sportcal/internal/platform/logging"
)

// OverrunService pushes out the projected end of live events that run
// past their expected duration, one increment per run, capped.
type OverrunService struct {
	sports           map[string]struct{}
	extensionMinutes int
	maxMinutes       int
	logger           *logging.Logger
	now              func() time.Time
}

func NewOverrunService(sports map[string]struct{}, extensionMinutes, maxHours int, logger *logging.Logger) *OverrunService {
	if logger == nil {
		logger = logging.Default()
	}
	return &OverrunService{
		sports:           sports,
		extensionMinutes: extensionMinutes,
		maxMinutes:       maxHours * 60,
		logger:           logger,
		now:              time.Now,
	}
}

// Extend applies at most one extension per record and returns how many
// records were extended. Applied minutes never decrease and never
// exceed the cap, so repeated runs converge.
func (s *OverrunService) Extend(ctx context.Context, working map[string]event.Record) int {
	ctx, span := startUsecaseSpan(ctx, "usecase.OverrunService.Extend")
	defer span.End()

	now := s.now()
	extended := 0

	for id, record := range working {
		if event.NormalizeStatus(record.Status) != event.StatusLive {
			continue
		}
		if _, ok := s.sports[record.Sport]; !ok {
			continue
		}
		if !now.After(record.ProjectedEnd()) {
			continue
		}
		if record.OverrunMinutes >= s.maxMinutes {
			continue
		}

		increment := s.extensionMinutes
		if record.OverrunMinutes+increment > s.maxMinutes {
			increment = s.maxMinutes - record.OverrunMinutes
		}
		record.OverrunMinutes += increment
		record.LastUpdated = now
		working[id] = record
		extended++

		s.logger.DebugContext(ctx, "overrun extended",
			"id", id, "sport", record.Sport, "applied_minutes", record.OverrunMinutes)
	}

	return extended
}
