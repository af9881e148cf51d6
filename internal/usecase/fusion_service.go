package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/ivanldv/sportcal/internal/domain/event"
	"github.com/ivanldv/sportcal/internal/platform/logging"
)

// FusionService collapses multi-session individual events (practice,
// qualifying, heats) sharing a competition and day into one record.
type FusionService struct {
	sports map[string]struct{}
	logger *logging.Logger
	now    func() time.Time
}

func NewFusionService(sports map[string]struct{}, logger *logging.Logger) *FusionService {
	if logger == nil {
		logger = logging.Default()
	}
	return &FusionService{
		sports: sports,
		now:    time.Now,
		logger: logger,
	}
}

// Fuse returns a new working set where fusion-eligible groups are
// replaced by single fused records. Singleton groups pass through
// unchanged, so re-running fusion is a no-op.
//
// The second return value holds every id a fusion group can be known
// by across runs: each member's source id plus the derived group id.
// A group fusing or unfusing between runs flips the id the record is
// committed under, so cancellation detection must treat these aliases
// as present rather than vanished.
func (s *FusionService) Fuse(ctx context.Context, working map[string]event.Record) (map[string]event.Record, map[string]struct{}) {
	ctx, span := startUsecaseSpan(ctx, "usecase.FusionService.Fuse")
	defer span.End()

	out := make(map[string]event.Record, len(working))
	groups := make(map[string][]event.Record)
	aliases := make(map[string]struct{})

	for id, record := range working {
		if record.Kind != event.KindIndividual {
			out[id] = record
			continue
		}
		if _, ok := s.sports[record.Sport]; !ok {
			out[id] = record
			continue
		}
		key := event.FusionKey(record)
		groups[key] = append(groups[key], record)
	}

	for key, members := range groups {
		aliases[event.FusedID(key)] = struct{}{}
		for _, member := range members {
			aliases[member.ID] = struct{}{}
		}

		if len(members) == 1 {
			out[members[0].ID] = members[0]
			continue
		}

		fused := s.fuseGroup(key, members)
		out[fused.ID] = fused
		s.logger.DebugContext(ctx, "fused session group",
			"key", key, "members", len(members), "id", fused.ID)
	}

	return out, aliases
}

func (s *FusionService) fuseGroup(key string, members []event.Record) event.Record {
	// Deterministic fold order regardless of map iteration.
	sort.Slice(members, func(i, j int) bool {
		if !members[i].StartAt.Equal(members[j].StartAt) {
			return members[i].StartAt.Before(members[j].StartAt)
		}
		return members[i].ID < members[j].ID
	})

	fused := members[0]
	fused.ID = event.FusedID(key)
	fused.LastUpdated = s.now()

	for _, member := range members[1:] {
		if member.StartAt.Before(fused.StartAt) {
			fused.StartAt = member.StartAt
		}
		if fused.Competition == "" {
			fused.Competition = member.Competition
		}
		incoming := make([]event.Entrant, len(member.Entrants))
		copy(incoming, member.Entrants)
		fused.Entrants = mergeEntrants(fused.Entrants, incoming)
		for _, card := range member.Cards {
			if !event.CardSeen(fused.Cards, card) {
				fused.Cards = append(fused.Cards, card)
			}
		}
		for _, src := range member.Provenance {
			fused.Provenance = event.AddProvenance(fused.Provenance, src)
		}
	}

	fused.Status = fusedStatus(members)

	return fused
}

// fusedStatus: any live session keeps the group live; the group is
// finished or cancelled only when every session is.
func fusedStatus(members []event.Record) string {
	allFinished, allCancelled := true, true
	for _, member := range members {
		status := event.NormalizeStatus(member.Status)
		if status == event.StatusLive {
			return event.StatusLive
		}
		if status != event.StatusFinished {
			allFinished = false
		}
		if status != event.StatusCancelled {
			allCancelled = false
		}
	}
	if allCancelled {
		return event.StatusCancelled
	}
	if allFinished {
		return event.StatusFinished
	}
	return event.StatusScheduled
}
