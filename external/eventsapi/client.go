package eventsapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/sourcegraph/conc/pool"

	"github.com/ivanldv/sportcal/internal/domain/event"
	"github.com/ivanldv/sportcal/internal/platform/logging"
	"github.com/ivanldv/sportcal/internal/usecase"
)

const (
	defaultTimeout = 20 * time.Second
	defaultPages   = 3

	// Layout of zone-less listing timestamps some sources report
	// instead of an RFC 3339 start_at.
	listingTimeLayout = "02/01/2006 15:04"
)

// buckets are fetched in this order so past results land before
// upcoming fixtures when a source truncates mid-scrape. The sessions
// bucket carries per-session motorsport rows and is optional.
var (
	baseBuckets    = []string{"last", "next"}
	sessionsBucket = "sessions"
)

var errEventsAPIFailure = crerr.New("events api request failed")

type ClientConfig struct {
	HTTPClient      *http.Client
	BaseURLs        []string
	Pages           int
	Workers         int
	Timeout         time.Duration
	IncludeSessions bool
	Location        *time.Location
	Logger          *logging.Logger
}

// Client scrapes event fragments from the configured source endpoints.
// It satisfies usecase.FragmentSource.
type Client struct {
	httpClient *http.Client
	baseURLs   []string
	buckets    []string
	pages      int
	workers    int
	timeout    time.Duration
	location   *time.Location
	logger     *logging.Logger
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	pages := cfg.Pages
	if pages < 1 {
		pages = defaultPages
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = len(cfg.BaseURLs)
	}
	if workers < 1 {
		workers = 1
	}

	urls := make([]string, 0, len(cfg.BaseURLs))
	for _, raw := range cfg.BaseURLs {
		trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
		if trimmed != "" {
			urls = append(urls, trimmed)
		}
	}

	bucketList := baseBuckets
	if cfg.IncludeSessions {
		bucketList = append(append([]string{}, baseBuckets...), sessionsBucket)
	}

	location := cfg.Location
	if location == nil {
		location = time.UTC
	}

	return &Client{
		httpClient: httpClient,
		baseURLs:   urls,
		buckets:    bucketList,
		pages:      pages,
		workers:    workers,
		timeout:    timeout,
		location:   location,
		logger:     logger,
	}
}

// wireFragment adds the zone-less start_local variant some sources
// report. It is resolved against the configured location when start_at
// is missing.
type wireFragment struct {
	event.Fragment
	StartLocal string `json:"start_local,omitempty"`
}

type eventsPage struct {
	Events      []wireFragment `json:"events"`
	HasNextPage *bool          `json:"hasNextPage"`
}

// Collect fans out over every configured source and gathers their
// fragments. A source that fails any page counts as failed; the scrape
// is complete only when no source failed.
func (c *Client) Collect(ctx context.Context) (usecase.ScrapeResult, error) {
	if len(c.baseURLs) == 0 {
		return usecase.ScrapeResult{Complete: true}, nil
	}

	var (
		mu        sync.Mutex
		fragments []event.Fragment
		failed    int
	)

	workers := pool.New().WithMaxGoroutines(c.workers)
	for _, baseURL := range c.baseURLs {
		workers.Go(func() {
			collected, err := c.collectSource(ctx, baseURL)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				c.logger.WarnContext(ctx, "source scrape failed", "source", sourceName(baseURL), "error", err)
				return
			}
			fragments = append(fragments, collected...)
		})
	}
	workers.Wait()

	if err := ctx.Err(); err != nil {
		return usecase.ScrapeResult{}, err
	}

	return usecase.ScrapeResult{
		Fragments:     fragments,
		Complete:      failed == 0,
		FailedSources: failed,
	}, nil
}

func (c *Client) collectSource(ctx context.Context, baseURL string) ([]event.Fragment, error) {
	source := sourceName(baseURL)
	var out []event.Fragment

	for _, bucket := range c.buckets {
		for page := 0; page < c.pages; page++ {
			pageData, err := c.fetchPage(ctx, baseURL, bucket, page)
			if err != nil {
				return nil, err
			}
			if len(pageData.Events) == 0 {
				break
			}

			for _, wire := range pageData.Events {
				fragment := wire.Fragment
				if fragment.StartAt.IsZero() && strings.TrimSpace(wire.StartLocal) != "" {
					startAt, err := time.ParseInLocation(listingTimeLayout, strings.TrimSpace(wire.StartLocal), c.location)
					if err != nil {
						c.logger.WarnContext(ctx, "skipping fragment with unparseable start",
							"source", source, "game_id", fragment.GameID, "start_local", wire.StartLocal)
						continue
					}
					fragment.StartAt = startAt.UTC()
				}
				if strings.TrimSpace(fragment.Source) == "" {
					fragment.Source = source
				}
				out = append(out, fragment)
			}

			if pageData.HasNextPage != nil && !*pageData.HasNextPage {
				break
			}
		}
	}

	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, baseURL, bucket string, page int) (eventsPage, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	fullURL := baseURL + "/events/" + bucket + "/" + strconv.Itoa(page)
	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, fullURL, nil)
	if err != nil {
		return eventsPage{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return eventsPage{}, crerr.Wrapf(errEventsAPIFailure, "send request to %s: %v", fullURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return eventsPage{}, crerr.Wrapf(errEventsAPIFailure, "read response body: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return eventsPage{}, crerr.Wrapf(errEventsAPIFailure, "status=%d url=%s", resp.StatusCode, fullURL)
	}

	var pageData eventsPage
	if err := sonic.Unmarshal(raw, &pageData); err != nil {
		return eventsPage{}, fmt.Errorf("decode events page: %w", err)
	}
	return pageData, nil
}

func sourceName(baseURL string) string {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		return baseURL
	}
	return parsed.Host
}
