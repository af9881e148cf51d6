package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ivanldv/sportcal/internal/domain/event"
	"github.com/ivanldv/sportcal/internal/platform/logging"
)

// CalendarEntry is one renderable slot for the calendar writer.
type CalendarEntry struct {
	UID         string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Cancelled   bool
}

// CalendarWriter serializes entries to the output target.
type CalendarWriter interface {
	Write(ctx context.Context, entries []CalendarEntry) error
}

// CalendarService renders consolidated records into calendar entries.
type CalendarService struct {
	leagueFallback string
	logger         *logging.Logger
}

func NewCalendarService(leagueFallback string, logger *logging.Logger) *CalendarService {
	if logger == nil {
		logger = logging.Default()
	}
	return &CalendarService{
		leagueFallback: leagueFallback,
		logger:         logger,
	}
}

// Build returns one entry per record, ordered by start time then id
// for stable output. history supplies prior-run records (including
// retired ones) so return legs of a knockout tie can cite the first
// leg even after it left the live working set.
func (s *CalendarService) Build(ctx context.Context, working, history map[string]event.Record) []CalendarEntry {
	_, span := startUsecaseSpan(ctx, "usecase.CalendarService.Build")
	defer span.End()

	firstLegs := firstLegLines(working, history)

	entries := make([]CalendarEntry, 0, len(working))
	for _, record := range working {
		entries = append(entries, CalendarEntry{
			UID:         record.ID,
			Title:       s.title(record),
			Description: s.description(record, firstLegs[record.ID]),
			Start:       record.StartAt,
			End:         record.ProjectedEnd(),
			Cancelled:   event.NormalizeStatus(record.Status) == event.StatusCancelled,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Start.Equal(entries[j].Start) {
			return entries[i].Start.Before(entries[j].Start)
		}
		return entries[i].UID < entries[j].UID
	})

	return entries
}

func (s *CalendarService) title(record event.Record) string {
	competition := record.Competition
	if competition == "" {
		competition = s.leagueFallback
	}

	var core string
	switch record.Kind {
	case event.KindTeam:
		score := record.Score
		if score == "" {
			score = "vs"
		}
		core = fmt.Sprintf("%s%s %s %s%s",
			record.HomeTeam, cardMarkers(record.Cards, event.SideHome),
			score,
			record.AwayTeam, cardMarkers(record.Cards, event.SideAway))
	default:
		core = competition
		if core == "" {
			core = record.Sport
		}
	}

	title := titleCaseSport(record.Sport) + ": " + core
	if record.Kind == event.KindTeam && competition != "" {
		title += " / " + competition
	}
	if event.NormalizeStatus(record.Status) == event.StatusCancelled {
		title = "[CANCELLED] " + title
	}

	return title
}

func (s *CalendarService) description(record event.Record, firstLeg string) string {
	var parts []string

	if record.Classification != nil {
		if lines := classificationLines(record); len(lines) > 0 {
			parts = append(parts, strings.Join(lines, "\n"))
		}
	}

	if firstLeg != "" {
		parts = append(parts, firstLeg)
	}

	if summary := cardSummary(record.Cards, record.HomeTeam, record.AwayTeam); summary != "" {
		parts = append(parts, summary)
	}

	if record.Kind == event.KindIndividual && len(record.Entrants) > 0 {
		names := make([]string, 0, len(record.Entrants))
		for _, entrant := range record.Entrants {
			label := entrant.Name
			if entrant.Ranking > 0 {
				label = fmt.Sprintf("%s (#%d)", entrant.Name, entrant.Ranking)
			}
			names = append(names, label)
		}
		parts = append(parts, "Entrants: "+strings.Join(names, ", "))
	}

	return strings.Join(parts, "\n\n")
}

// twoLegHints marks competitions played as home-and-away ties. Only
// matchups in these competitions earn a first-leg note.
var twoLegHints = []string{
	"COPA", "PLAYOFF", "PLAY-OFF", "CHAMPIONS", "EUROPA", "CONFERENCE",
	"SUPERCOPA", "ELIMINATORIA", "QUALIFICATION", "QUALIFIER",
}

// firstLegLines maps a working record id to a first-leg note when an
// earlier meeting of the same pair, in the same competition, finished
// with a score. The latest such meeting wins.
func firstLegLines(working, history map[string]event.Record) map[string]string {
	pool := make(map[string]event.Record, len(working)+len(history))
	for id, record := range history {
		pool[id] = record
	}
	for id, record := range working {
		pool[id] = record
	}

	groups := make(map[string][]event.Record)
	for _, record := range pool {
		key := matchupKey(record)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], record)
	}

	lines := make(map[string]string)
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool {
			if !members[i].StartAt.Equal(members[j].StartAt) {
				return members[i].StartAt.Before(members[j].StartAt)
			}
			return members[i].ID < members[j].ID
		})
		for i, record := range members {
			if _, live := working[record.ID]; !live {
				continue
			}
			if !twoLegCompetition(record.Competition) {
				continue
			}
			for j := i - 1; j >= 0; j-- {
				prev := members[j]
				if !prev.StartAt.Before(record.StartAt) || strings.TrimSpace(prev.Score) == "" {
					continue
				}
				lines[record.ID] = fmt.Sprintf("First leg: %s %s %s",
					prev.HomeTeam, strings.TrimSpace(prev.Score), prev.AwayTeam)
				break
			}
		}
	}

	return lines
}

// matchupKey identifies a tie regardless of which side hosts a given
// leg. Empty when the record cannot belong to one.
func matchupKey(record event.Record) string {
	if record.Kind != event.KindTeam {
		return ""
	}
	home := event.NormalizeName(record.HomeTeam)
	away := event.NormalizeName(record.AwayTeam)
	competition := event.NormalizeName(record.Competition)
	if home == "" || away == "" || competition == "" {
		return ""
	}
	if away < home {
		home, away = away, home
	}
	return competition + "|" + home + "|" + away
}

func twoLegCompetition(competition string) bool {
	upper := strings.ToUpper(competition)
	for _, hint := range twoLegHints {
		if strings.Contains(upper, hint) {
			return true
		}
	}
	return false
}

func classificationLines(record event.Record) []string {
	const maxRows = 10

	var lines []string
	for i, row := range record.Classification.Table {
		if i >= maxRows {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s (%d pts)", row.Position, row.Team, row.Points))
	}
	for i, row := range record.Classification.Ranking {
		if i >= maxRows {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s", row.Position, row.Name))
	}

	return lines
}

// cardMarkers renders 🟨/🟥 icons for one side, with a multiplier when
// a side collected more than one of a kind.
func cardMarkers(cards []event.Card, side string) string {
	yellow, red := 0, 0
	for _, card := range cards {
		if card.Side != side {
			continue
		}
		switch card.Kind {
		case event.CardYellow:
			yellow++
		case event.CardRed:
			red++
		}
	}

	var b strings.Builder
	if yellow > 0 {
		b.WriteString(" 🟨")
		if yellow > 1 {
			fmt.Fprintf(&b, "x%d", yellow)
		}
	}
	if red > 0 {
		b.WriteString(" 🟥")
		if red > 1 {
			fmt.Fprintf(&b, "x%d", red)
		}
	}

	return b.String()
}

func cardSummary(cards []event.Card, home, away string) string {
	if len(cards) == 0 {
		return ""
	}

	lines := make([]string, 0, len(cards))
	for _, card := range cards {
		side := home
		if card.Side == event.SideAway {
			side = away
		}
		kind := strings.ToLower(card.Kind)
		if kind != "" {
			kind = strings.ToUpper(kind[:1]) + kind[1:]
		}
		line := fmt.Sprintf("%s card: %s", kind, side)
		if card.Minute >= 0 {
			line += fmt.Sprintf(" (%d')", card.Minute)
		}
		lines = append(lines, line)
	}

	return "Cards:\n" + strings.Join(lines, "\n")
}

func titleCaseSport(sport string) string {
	sport = strings.TrimSpace(sport)
	if sport == "" {
		return "Event"
	}
	words := strings.Fields(strings.ToLower(sport))
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
