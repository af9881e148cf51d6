package event

import (
	"strings"
	"time"

	"github.com/ivanldv/sportcal/internal/domain/classification"
)

const (
	StatusScheduled = "SCHEDULED"
	StatusLive      = "LIVE"
	StatusFinished  = "FINISHED"
	StatusCancelled = "CANCELLED"
)

const (
	KindTeam       = "TEAM"
	KindIndividual = "INDIVIDUAL"
)

const (
	CardYellow = "YELLOW"
	CardRed    = "RED"

	SideHome = "HOME"
	SideAway = "AWAY"
)

// Entrant is one participant of an individual-sport event.
type Entrant struct {
	Name    string `json:"name"`
	Ranking int    `json:"ranking,omitempty"`
	Result  string `json:"result,omitempty"`
}

// Card is a single disciplinary incident. Minute is -1 when unknown.
type Card struct {
	Side   string `json:"side"`
	Kind   string `json:"kind"`
	Minute int    `json:"minute"`
}

// Record is the consolidated view of one event across all sources.
type Record struct {
	ID          string    `json:"id"`
	Sport       string    `json:"sport"`
	Competition string    `json:"competition"`
	StartAt     time.Time `json:"start_at"`
	Status      string    `json:"status"`
	Kind        string    `json:"kind"`

	HomeTeam string    `json:"home_team,omitempty"`
	AwayTeam string    `json:"away_team,omitempty"`
	Entrants []Entrant `json:"entrants,omitempty"`

	Score       string `json:"score,omitempty"`
	ScoreSource string `json:"score_source,omitempty"`
	Cards       []Card `json:"cards,omitempty"`

	Classification *classification.Payload `json:"classification,omitempty"`

	Provenance     []string  `json:"provenance,omitempty"`
	LastUpdated    time.Time `json:"last_updated"`
	OverrunMinutes int       `json:"overrun_minutes_applied"`
	EnrichFailed   bool      `json:"enrich_failed,omitempty"`
}

// Fragment is one source's report of one event, before consolidation.
type Fragment struct {
	Source      string    `json:"source"`
	GameID      string    `json:"game_id"`
	Sport       string    `json:"sport"`
	Competition string    `json:"competition"`
	StartAt     time.Time `json:"start_at"`
	Status      string    `json:"status"`
	HomeTeam    string    `json:"home_team,omitempty"`
	AwayTeam    string    `json:"away_team,omitempty"`
	Entrants    []Entrant `json:"entrants,omitempty"`
	Score       string    `json:"score,omitempty"`
	Cards       []Card    `json:"cards,omitempty"`
}

// Key returns the source-reported identity, empty when the fragment
// carries none.
func (f Fragment) Key() string {
	return strings.TrimSpace(f.GameID)
}

// Shape infers whether the fragment describes a team pairing or an
// individual field. Reporting both, or neither, is ambiguous.
func (f Fragment) Shape() (string, bool) {
	hasTeams := strings.TrimSpace(f.HomeTeam) != "" || strings.TrimSpace(f.AwayTeam) != ""
	hasEntrants := len(f.Entrants) > 0

	switch {
	case hasTeams && !hasEntrants:
		return KindTeam, true
	case hasEntrants && !hasTeams:
		return KindIndividual, true
	default:
		return "", false
	}
}

func NormalizeStatus(value string) string {
	status := strings.ToUpper(strings.TrimSpace(value))
	switch status {
	case "":
		return StatusScheduled
	case "IN_PLAY", "HT", "1H", "2H", "ET":
		return StatusLive
	case "FT", "AET", "PEN", "ENDED":
		return StatusFinished
	case "POSTPONED", "ABANDONED", "CANCELED":
		return StatusCancelled
	default:
		return status
	}
}

func statusRank(status string) int {
	switch NormalizeStatus(status) {
	case StatusCancelled:
		return 3
	case StatusFinished:
		return 2
	case StatusLive:
		return 1
	default:
		return 0
	}
}

// RaiseStatus moves current toward incoming only when incoming sits
// higher in the precedence order. Cancellation is sticky.
func RaiseStatus(current, incoming string) string {
	if statusRank(incoming) > statusRank(current) {
		return NormalizeStatus(incoming)
	}
	return NormalizeStatus(current)
}

func IsTerminalStatus(status string) bool {
	switch NormalizeStatus(status) {
	case StatusFinished, StatusCancelled:
		return true
	default:
		return false
	}
}

// CardSeen reports whether an equal (side, kind, minute) incident is
// already recorded.
func CardSeen(cards []Card, c Card) bool {
	for _, have := range cards {
		if have.Side == c.Side && have.Kind == c.Kind && have.Minute == c.Minute {
			return true
		}
	}
	return false
}

// AddProvenance appends src to the set, keeping order of first sight.
func AddProvenance(set []string, src string) []string {
	src = strings.TrimSpace(src)
	if src == "" {
		return set
	}
	for _, have := range set {
		if have == src {
			return set
		}
	}
	return append(set, src)
}
