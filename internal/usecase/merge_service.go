package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ivanldv/sportcal/internal/domain/event"
	"github.com/ivanldv/sportcal/internal/platform/logging"
)

// MergeService folds per-source fragments into consolidated records.
// It is the only writer of the working set while a run is ingesting.
type MergeService struct {
	mu sync.Mutex

	authoritativeBySport map[string]string
	logger               *logging.Logger
	now                  func() time.Time
}

type IngestStats struct {
	Accepted   int `json:"accepted"`
	MissingKey int `json:"missing_key"`
	Ambiguous  int `json:"ambiguous"`
}

func NewMergeService(authoritativeBySport map[string]string, logger *logging.Logger) *MergeService {
	if logger == nil {
		logger = logging.Default()
	}
	return &MergeService{
		authoritativeBySport: authoritativeBySport,
		logger:               logger,
		now:                  time.Now,
	}
}

// Ingest merges every fragment into the working set. Fragment-level
// failures are logged and skipped, never fatal.
func (s *MergeService) Ingest(ctx context.Context, fragments []event.Fragment) (map[string]event.Record, IngestStats) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MergeService.Ingest")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	working := make(map[string]event.Record, len(fragments))
	var stats IngestStats

	for _, fragment := range fragments {
		key := fragment.Key()
		if key == "" {
			stats.MissingKey++
			s.logger.WarnContext(ctx, "fragment dropped",
				"reason", fmt.Errorf("%w: source %s", ErrMissingKey, fragment.Source))
			continue
		}

		existing, ok := working[key]
		if !ok {
			record, err := s.newRecord(key, fragment)
			if err != nil {
				stats.Ambiguous++
				s.logger.WarnContext(ctx, "fragment dropped", "key", key, "reason", err)
				continue
			}
			working[key] = record
			stats.Accepted++
			continue
		}

		working[key] = s.merge(ctx, existing, fragment)
		stats.Accepted++
	}

	return working, stats
}

// MergeInto applies one fragment against an optional existing record.
// Exposed for deterministic re-merging of retained prior-run records.
func (s *MergeService) MergeInto(ctx context.Context, existing *event.Record, fragment event.Fragment) (event.Record, error) {
	if fragment.Key() == "" {
		return event.Record{}, fmt.Errorf("%w: source %s", ErrMissingKey, fragment.Source)
	}
	if existing == nil {
		return s.newRecord(fragment.Key(), fragment)
	}
	return s.merge(ctx, *existing, fragment), nil
}

func (s *MergeService) newRecord(key string, fragment event.Fragment) (event.Record, error) {
	kind, ok := fragment.Shape()
	if !ok {
		return event.Record{}, fmt.Errorf("%w: source %s key %s", ErrAmbiguousShape, fragment.Source, key)
	}

	record := event.Record{
		ID:          key,
		Sport:       strings.ToUpper(strings.TrimSpace(fragment.Sport)),
		Competition: strings.TrimSpace(fragment.Competition),
		StartAt:     fragment.StartAt,
		Status:      event.NormalizeStatus(fragment.Status),
		Kind:        kind,
		HomeTeam:    strings.TrimSpace(fragment.HomeTeam),
		AwayTeam:    strings.TrimSpace(fragment.AwayTeam),
		Entrants:    mergeEntrants(nil, fragment.Entrants),
		LastUpdated: s.now(),
	}
	record.Provenance = event.AddProvenance(record.Provenance, fragment.Source)
	if fragment.Score != "" {
		record.Score = fragment.Score
		record.ScoreSource = fragment.Source
	}
	for _, card := range fragment.Cards {
		if !event.CardSeen(record.Cards, card) {
			record.Cards = append(record.Cards, card)
		}
	}

	return record, nil
}

// merge applies the field reconciliation rules. Merging the same
// fragment twice yields the same record as merging it once.
func (s *MergeService) merge(ctx context.Context, existing event.Record, fragment event.Fragment) event.Record {
	out := existing

	out.Status = event.RaiseStatus(out.Status, fragment.Status)
	out.Score, out.ScoreSource = s.mergeScore(out, fragment)

	for _, card := range fragment.Cards {
		if !event.CardSeen(out.Cards, card) {
			out.Cards = append(out.Cards, card)
		}
	}

	// First non-empty wins for identity-ish fields. A later source
	// disagreeing is recorded via provenance, never applied.
	if out.Competition == "" {
		out.Competition = strings.TrimSpace(fragment.Competition)
	} else if conflicts(out.Competition, fragment.Competition) {
		s.logger.DebugContext(ctx, "competition conflict ignored",
			"id", out.ID, "source", fragment.Source, "incoming", fragment.Competition)
	}
	if out.StartAt.IsZero() {
		out.StartAt = fragment.StartAt
	}
	if out.HomeTeam == "" {
		out.HomeTeam = strings.TrimSpace(fragment.HomeTeam)
	}
	if out.AwayTeam == "" {
		out.AwayTeam = strings.TrimSpace(fragment.AwayTeam)
	}
	out.Entrants = mergeEntrants(out.Entrants, fragment.Entrants)

	out.Provenance = event.AddProvenance(out.Provenance, fragment.Source)
	out.LastUpdated = s.now()

	return out
}

func (s *MergeService) mergeScore(existing event.Record, fragment event.Fragment) (string, string) {
	incoming := strings.TrimSpace(fragment.Score)
	if incoming == "" {
		return existing.Score, existing.ScoreSource
	}
	if existing.Score == "" {
		return incoming, fragment.Source
	}

	if authoritative, ok := s.authoritativeBySport[existing.Sport]; ok {
		if fragment.Source == authoritative {
			return incoming, fragment.Source
		}
		if existing.ScoreSource == authoritative {
			return existing.Score, existing.ScoreSource
		}
	}

	// No authoritative claim on either side: most recent non-empty wins.
	return incoming, fragment.Source
}

// mergeEntrants unions entrant lists by normalized name, first-seen
// order preserved. Ranking and result follow first-non-empty.
// Incoming names packing several participants into one "/"-separated
// field are split first, so each participant dedupes on its own.
func mergeEntrants(existing, incoming []event.Entrant) []event.Entrant {
	if len(incoming) == 0 {
		return existing
	}

	out := make([]event.Entrant, len(existing))
	copy(out, existing)

	index := make(map[string]int, len(out))
	for i, entrant := range out {
		index[event.NormalizeName(entrant.Name)] = i
	}

	for _, entrant := range splitEntrants(incoming) {
		name := event.NormalizeName(entrant.Name)
		if name == "" {
			continue
		}
		i, ok := index[name]
		if !ok {
			out = append(out, entrant)
			index[name] = len(out) - 1
			continue
		}
		if out[i].Ranking == 0 {
			out[i].Ranking = entrant.Ranking
		}
		if out[i].Result == "" {
			out[i].Result = entrant.Result
		}
	}

	return out
}

// splitEntrants expands combined "/" participant fields. Ranking and
// result describe the combined field, not any single participant, so
// split-off entrants carry only their name.
func splitEntrants(incoming []event.Entrant) []event.Entrant {
	out := make([]event.Entrant, 0, len(incoming))
	for _, entrant := range incoming {
		names := event.SplitCombinedName(entrant.Name)
		if len(names) <= 1 {
			out = append(out, entrant)
			continue
		}
		for _, name := range names {
			out = append(out, event.Entrant{Name: name})
		}
	}
	return out
}

func conflicts(current, incoming string) bool {
	incoming = strings.TrimSpace(incoming)
	return incoming != "" && event.NormalizeName(incoming) != event.NormalizeName(current)
}
