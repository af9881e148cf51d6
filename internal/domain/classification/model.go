package classification

import (
	"strings"
	"time"
)

// TableRow is one line of a team competition table.
type TableRow struct {
	Position int    `json:"position"`
	Team     string `json:"team"`
	Played   int    `json:"played,omitempty"`
	Points   int    `json:"points"`
}

// RankingRow is one line of an individual ranking.
type RankingRow struct {
	Position int    `json:"position"`
	Name     string `json:"name"`
	Points   int    `json:"points,omitempty"`
}

// Payload carries either a team table or an individual ranking,
// depending on the sport that requested it.
type Payload struct {
	Table   []TableRow   `json:"table,omitempty"`
	Ranking []RankingRow `json:"ranking,omitempty"`
}

func (p Payload) Empty() bool {
	return len(p.Table) == 0 && len(p.Ranking) == 0
}

// CacheEntry is a fetched payload plus its freshness bookkeeping.
// Stale entries are retained until overwritten.
type CacheEntry struct {
	Key       string        `json:"key"`
	Payload   Payload       `json:"payload"`
	FetchedAt time.Time     `json:"fetched_at"`
	TTL       time.Duration `json:"ttl"`
}

func (e CacheEntry) Fresh(now time.Time) bool {
	if e.FetchedAt.IsZero() || e.TTL <= 0 {
		return false
	}
	return now.Sub(e.FetchedAt) < e.TTL
}

// Cache maps classification keys to their latest fetched entries.
type Cache map[string]CacheEntry

// Fresh returns the entry for key only when it is within its ttl.
func (c Cache) Fresh(key string, now time.Time) (CacheEntry, bool) {
	entry, ok := c[key]
	if !ok || !entry.Fresh(now) {
		return CacheEntry{}, false
	}
	return entry, true
}

func (c Cache) Put(entry CacheEntry) {
	c[entry.Key] = entry
}

// TableKey identifies a team competition table request.
func TableKey(competition string) string {
	return "table:" + canonical(competition)
}

// RankingKey identifies an individual ranking request.
func RankingKey(competition string) string {
	return "ranking:" + canonical(competition)
}

func canonical(v string) string {
	return strings.Join(strings.Fields(strings.ToUpper(v)), " ")
}
