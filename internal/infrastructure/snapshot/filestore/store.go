package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/ivanldv/sportcal/internal/domain/classification"
	"github.com/ivanldv/sportcal/internal/domain/event"
	"github.com/ivanldv/sportcal/internal/domain/snapshot"
	"github.com/ivanldv/sportcal/internal/platform/logging"
)

const (
	eventsFile   = "events.json"
	obsoleteFile = "obsolete.json"
	cacheFile    = "classification_cache.json"

	snapshotVersion = 1
)

// envelope wraps a snapshot so the schema can grow across versions.
type envelope[T any] struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Data    T         `json:"data"`
}

// Store keeps the three snapshots as JSON files in one directory.
// Every save writes to a temp file and renames it into place, so a
// crash mid-write never exposes a torn snapshot.
type Store struct {
	dir    string
	logger *logging.Logger
}

func New(dir string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

func (s *Store) LoadEvents(ctx context.Context) (map[string]event.Record, error) {
	return load[map[string]event.Record](ctx, s, eventsFile)
}

func (s *Store) SaveEvents(ctx context.Context, events map[string]event.Record) error {
	return s.save(eventsFile, events)
}

func (s *Store) LoadObsolete(ctx context.Context) (map[string]snapshot.ObsoleteRecord, error) {
	return load[map[string]snapshot.ObsoleteRecord](ctx, s, obsoleteFile)
}

func (s *Store) SaveObsolete(ctx context.Context, obsolete map[string]snapshot.ObsoleteRecord) error {
	return s.save(obsoleteFile, obsolete)
}

func (s *Store) LoadClassificationCache(ctx context.Context) (classification.Cache, error) {
	return load[classification.Cache](ctx, s, cacheFile)
}

func (s *Store) SaveClassificationCache(ctx context.Context, cache classification.Cache) error {
	return s.save(cacheFile, cache)
}

// load returns the zero map for a missing or unreadable snapshot. An
// unreadable file is logged and treated as empty rather than blocking
// every future run behind a corrupt byte.
func load[T any](ctx context.Context, s *Store, name string) (T, error) {
	var zero T

	path := filepath.Join(s.dir, name)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return zero, nil
		}
		return zero, fmt.Errorf("read snapshot %s: %w", name, err)
	}

	var wrapped envelope[T]
	if err := sonic.Unmarshal(raw, &wrapped); err != nil {
		s.logger.WarnContext(ctx, "snapshot unreadable, starting empty", "file", name, "error", err)
		return zero, nil
	}

	return wrapped.Data, nil
}

func (s *Store) save(name string, data any) error {
	raw, err := sonic.Marshal(envelope[any]{
		Version: snapshotVersion,
		SavedAt: time.Now().UTC(),
		Data:    data,
	})
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot %s: %w", name, err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("replace snapshot %s: %w", name, err)
	}

	return nil
}
