package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ivanldv/sportcal/internal/domain/classification"
	"github.com/ivanldv/sportcal/internal/domain/event"
	"github.com/ivanldv/sportcal/internal/domain/snapshot"
)

func TestStore_RoundTrip(t *testing.T) {
	store, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	start := time.Date(2026, 7, 1, 18, 0, 0, 0, time.UTC)

	events := map[string]event.Record{
		"g1": {
			ID: "g1", Sport: "FOOTBALL", Kind: event.KindTeam,
			Competition: "La Liga", HomeTeam: "A", AwayTeam: "B",
			Status: event.StatusScheduled, StartAt: start,
			Provenance: []string{"alpha"},
		},
	}
	require.NoError(t, store.SaveEvents(ctx, events))

	loaded, err := store.LoadEvents(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "La Liga", loaded["g1"].Competition)
	require.True(t, loaded["g1"].StartAt.Equal(start))

	obsolete := map[string]snapshot.ObsoleteRecord{
		"g0": {Record: event.Record{ID: "g0", Status: event.StatusFinished}, LastSeen: start},
	}
	require.NoError(t, store.SaveObsolete(ctx, obsolete))
	loadedObsolete, err := store.LoadObsolete(ctx)
	require.NoError(t, err)
	require.Contains(t, loadedObsolete, "g0")

	cache := classification.Cache{
		"table:LA LIGA": {
			Key:       "table:LA LIGA",
			Payload:   classification.Payload{Table: []classification.TableRow{{Position: 1, Team: "A", Points: 3}}},
			FetchedAt: start,
			TTL:       14 * 24 * time.Hour,
		},
	}
	require.NoError(t, store.SaveClassificationCache(ctx, cache))
	loadedCache, err := store.LoadClassificationCache(ctx)
	require.NoError(t, err)
	require.True(t, loadedCache["table:LA LIGA"].Fresh(start.Add(24*time.Hour)))
}

func TestStore_MissingSnapshotIsEmpty(t *testing.T) {
	store, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	events, err := store.LoadEvents(context.Background())
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestStore_CorruptSnapshotIsToleratedAsEmpty(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "events.json"), []byte("{not json"), 0o644))

	events, err := store.LoadEvents(context.Background())
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, nil)
	require.NoError(t, err)

	require.NoError(t, store.SaveEvents(context.Background(), map[string]event.Record{}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "events.json", entries[0].Name())
}
