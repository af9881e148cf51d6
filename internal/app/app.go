package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"

	"github.com/ivanldv/sportcal/external/eventsapi"
	"github.com/ivanldv/sportcal/external/ics"
	"github.com/ivanldv/sportcal/external/standings"
	"github.com/ivanldv/sportcal/internal/config"
	"github.com/ivanldv/sportcal/internal/domain/snapshot"
	"github.com/ivanldv/sportcal/internal/infrastructure/snapshot/filestore"
	snapshotpg "github.com/ivanldv/sportcal/internal/infrastructure/snapshot/postgres"
	"github.com/ivanldv/sportcal/internal/platform/logging"
	"github.com/ivanldv/sportcal/internal/platform/resilience"
	"github.com/ivanldv/sportcal/internal/usecase"
)

// Syncer is the assembled consolidation pipeline plus the resources it
// owns. Close releases the database handle when the postgres backend is
// active.
type Syncer struct {
	Pipeline *usecase.PipelineService

	db *sqlx.DB
}

func (s *Syncer) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewSyncer wires config into the full pipeline: scraping source,
// consolidation services, snapshot store and calendar writer.
func NewSyncer(cfg config.Config, logger *logging.Logger) (*Syncer, error) {
	if logger == nil {
		logger = logging.Default()
	}

	store, db, err := newSnapshotStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	location, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		location = time.UTC
	}

	source := eventsapi.NewClient(eventsapi.ClientConfig{
		BaseURLs:        cfg.EventsAPIBaseURLs,
		Pages:           cfg.EventsAPIPages,
		Workers:         cfg.ScrapeWorkers,
		Timeout:         cfg.FetchTimeout,
		IncludeSessions: cfg.IncludeMotorsportSessions,
		Location:        location,
		Logger:          logger,
	})

	fetcher := standings.NewClient(standings.ClientConfig{
		HTTPClient: &http.Client{Timeout: cfg.StandingsTimeout},
		BaseURL:    cfg.StandingsBaseURL,
		Timeout:    cfg.StandingsTimeout,
		MaxRetries: cfg.StandingsMaxRetries,
		Logger:     logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.StandingsCircuitEnabled,
			FailureThreshold: cfg.StandingsCircuitFailureCount,
			OpenTimeout:      cfg.StandingsCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.StandingsCircuitHalfOpenMaxReq,
		},
	})

	writer, err := ics.NewWriter(cfg.OutputDir, logger)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, fmt.Errorf("build calendar writer: %w", err)
	}

	enrich := usecase.NewEnrichmentService(usecase.EnrichmentConfig{
		Workers:              cfg.ClassificationWorkers,
		CacheTTL:             cfg.ClassificationCacheTTL,
		RefreshEmptyCache:    cfg.ClassificationRefreshEmpty,
		SkipFetchWhenPresent: cfg.ClassificationSkipWhenPresent,
		IndividualSports:     cfg.ClassificationSports,
		TeamSports:           cfg.TeamClassificationSports,
	}, fetcher, logger)

	pipeline := usecase.NewPipelineService(
		source,
		usecase.NewMergeService(cfg.AuthoritativeSourceBySport, logger),
		usecase.NewFusionService(cfg.IndividualMergeSports, logger),
		usecase.NewCancellationService(logger),
		enrich,
		usecase.NewOverrunService(cfg.OverrunSports, cfg.OverrunExtensionMinutes, cfg.OverrunMaxHours, logger),
		usecase.NewSnapshotService(store, cfg.PastResultsDays, logger),
		usecase.NewCalendarService(cfg.LeagueFallback, logger),
		writer,
		store,
		logger,
	)

	return &Syncer{Pipeline: pipeline, db: db}, nil
}

func newSnapshotStore(cfg config.Config, logger *logging.Logger) (snapshot.Store, *sqlx.DB, error) {
	switch cfg.SnapshotBackend {
	case config.SnapshotBackendPostgres:
		dsn := normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary)
		db, err := otelsqlx.Connect("postgres", dsn,
			otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
			otelsql.WithQueryFormatter(formatDBQueryForTrace),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("connect snapshot database: %w", err)
		}
		db.SetMaxOpenConns(8)
		db.SetMaxIdleConns(4)
		db.SetConnMaxLifetime(30 * time.Minute)
		logger.Info("snapshot backend ready", "backend", cfg.SnapshotBackend, "database", dbNameFromURL(cfg.DBURL))
		return snapshotpg.New(db), db, nil
	default:
		store, err := filestore.New(cfg.OutputDir, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("build snapshot file store: %w", err)
		}
		logger.Info("snapshot backend ready", "backend", cfg.SnapshotBackend, "dir", cfg.OutputDir)
		return store, nil, nil
	}
}
