package postgres

import "time"

type eventRow struct {
	ID        string    `db:"id"`
	Payload   []byte    `db:"payload"`
	StartAt   time.Time `db:"start_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type obsoleteRow struct {
	ID       string    `db:"id"`
	Payload  []byte    `db:"payload"`
	LastSeen time.Time `db:"last_seen"`
}

type cacheRow struct {
	CacheKey   string    `db:"cache_key"`
	Payload    []byte    `db:"payload"`
	FetchedAt  time.Time `db:"fetched_at"`
	TTLSeconds int64     `db:"ttl_seconds"`
}
