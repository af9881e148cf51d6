package postgres

import (
	"context"
	"fmt"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"

	"github.com/ivanldv/sportcal/internal/domain/classification"
	"github.com/ivanldv/sportcal/internal/domain/event"
	"github.com/ivanldv/sportcal/internal/domain/snapshot"
	qb "github.com/ivanldv/sportcal/internal/platform/querybuilder"
)

// Store keeps the snapshots in postgres, one table per snapshot. Each
// save replaces the whole table inside a transaction, mirroring the
// atomic file-replace semantics of the default backend.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) LoadEvents(ctx context.Context) (map[string]event.Record, error) {
	query, args, err := qb.Select("id", "payload", "start_at", "updated_at").
		From("snapshot_events").
		OrderBy("start_at", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select events query: %w", err)
	}

	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select events snapshot: %w", err)
	}

	out := make(map[string]event.Record, len(rows))
	for _, row := range rows {
		var record event.Record
		if err := sonic.Unmarshal(row.Payload, &record); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", row.ID, err)
		}
		out[row.ID] = record
	}

	return out, nil
}

func (s *Store) SaveEvents(ctx context.Context, events map[string]event.Record) error {
	return s.replace(ctx, "snapshot_events", len(events), func(tx *sqlx.Tx) error {
		if len(events) == 0 {
			return nil
		}
		builder := qb.InsertInto("snapshot_events").Columns("id", "payload", "start_at", "updated_at")
		for id, record := range events {
			payload, err := sonic.Marshal(record)
			if err != nil {
				return fmt.Errorf("encode event %s: %w", id, err)
			}
			builder.Values(id, payload, record.StartAt, record.LastUpdated)
		}
		query, args, err := builder.ToSQL()
		if err != nil {
			return fmt.Errorf("build insert events query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert events snapshot: %w", err)
		}
		return nil
	})
}

func (s *Store) LoadObsolete(ctx context.Context) (map[string]snapshot.ObsoleteRecord, error) {
	query, args, err := qb.Select("id", "payload", "last_seen").
		From("snapshot_obsolete").
		OrderBy("last_seen", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select obsolete query: %w", err)
	}

	var rows []obsoleteRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select obsolete snapshot: %w", err)
	}

	out := make(map[string]snapshot.ObsoleteRecord, len(rows))
	for _, row := range rows {
		var record event.Record
		if err := sonic.Unmarshal(row.Payload, &record); err != nil {
			return nil, fmt.Errorf("decode obsolete %s: %w", row.ID, err)
		}
		out[row.ID] = snapshot.ObsoleteRecord{Record: record, LastSeen: row.LastSeen}
	}

	return out, nil
}

func (s *Store) SaveObsolete(ctx context.Context, obsolete map[string]snapshot.ObsoleteRecord) error {
	return s.replace(ctx, "snapshot_obsolete", len(obsolete), func(tx *sqlx.Tx) error {
		if len(obsolete) == 0 {
			return nil
		}
		builder := qb.InsertInto("snapshot_obsolete").Columns("id", "payload", "last_seen")
		for id, entry := range obsolete {
			payload, err := sonic.Marshal(entry.Record)
			if err != nil {
				return fmt.Errorf("encode obsolete %s: %w", id, err)
			}
			builder.Values(id, payload, entry.LastSeen)
		}
		query, args, err := builder.ToSQL()
		if err != nil {
			return fmt.Errorf("build insert obsolete query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert obsolete snapshot: %w", err)
		}
		return nil
	})
}

func (s *Store) LoadClassificationCache(ctx context.Context) (classification.Cache, error) {
	query, args, err := qb.Select("cache_key", "payload", "fetched_at", "ttl_seconds").
		From("classification_cache").
		OrderBy("cache_key").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select cache query: %w", err)
	}

	var rows []cacheRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select classification cache: %w", err)
	}

	out := make(classification.Cache, len(rows))
	for _, row := range rows {
		var payload classification.Payload
		if err := sonic.Unmarshal(row.Payload, &payload); err != nil {
			return nil, fmt.Errorf("decode cache entry %s: %w", row.CacheKey, err)
		}
		out[row.CacheKey] = classification.CacheEntry{
			Key:       row.CacheKey,
			Payload:   payload,
			FetchedAt: row.FetchedAt,
			TTL:       time.Duration(row.TTLSeconds) * time.Second,
		}
	}

	return out, nil
}

func (s *Store) SaveClassificationCache(ctx context.Context, cache classification.Cache) error {
	return s.replace(ctx, "classification_cache", len(cache), func(tx *sqlx.Tx) error {
		if len(cache) == 0 {
			return nil
		}
		builder := qb.InsertInto("classification_cache").
			Columns("cache_key", "payload", "fetched_at", "ttl_seconds")
		for key, entry := range cache {
			payload, err := sonic.Marshal(entry.Payload)
			if err != nil {
				return fmt.Errorf("encode cache entry %s: %w", key, err)
			}
			builder.Values(key, payload, entry.FetchedAt, int64(entry.TTL/time.Second))
		}
		query, args, err := builder.ToSQL()
		if err != nil {
			return fmt.Errorf("build insert cache query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert classification cache: %w", err)
		}
		return nil
	})
}

// replace truncates a snapshot table and repopulates it in one
// transaction, so readers only ever see a whole snapshot.
func (s *Store) replace(ctx context.Context, table string, size int, insert func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s replace: %w", table, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	if err := insert(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s replace (%d rows): %w", table, size, err)
	}

	return nil
}
