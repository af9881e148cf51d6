package standings

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/ivanldv/sportcal/internal/domain/classification"
	"github.com/ivanldv/sportcal/internal/platform/logging"
	"github.com/ivanldv/sportcal/internal/platform/resilience"
)

const defaultTimeout = 20 * time.Second

var errStandingsTransient = crerr.New("standings transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client fetches competition tables and individual rankings from the
// standings endpoint. It satisfies usecase.ClassificationFetcher.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	maxRetries     int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = defaultTimeout
	}

	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		maxRetries:     maxInt(cfg.MaxRetries, 0),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

type classificationEnvelope struct {
	Data classification.Payload `json:"data"`
}

// Fetch resolves one classification key, for example "table:LA LIGA" or
// "ranking:ATP TOUR". Concurrent requests for the same key collapse into
// a single upstream call.
func (c *Client) Fetch(ctx context.Context, key string) (classification.Payload, error) {
	kind, competition, err := splitKey(key)
	if err != nil {
		return classification.Payload{}, err
	}

	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "standings circuit breaker rejected request", "state", c.breaker.State(), "key", key)
			return classification.Payload{}, fmt.Errorf("standings endpoint temporarily unavailable: %w", err)
		}
	}

	values := url.Values{}
	values.Set("competition", competition)
	fullURL := c.baseURL + "/classifications/" + kind + "?" + values.Encode()

	out, err, _ := c.flight.Do(key, func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if reqErr != nil && stderrors.Is(reqErr, errStandingsTransient) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		return classification.Payload{}, err
	}

	raw, ok := out.([]byte)
	if !ok {
		return classification.Payload{}, fmt.Errorf("unexpected response payload type %T", out)
	}

	var envelope classificationEnvelope
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return classification.Payload{}, fmt.Errorf("decode classification payload: %w", err)
	}
	return envelope.Data, nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %v", errStandingsTransient, err)
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%w: read response body: %v", errStandingsTransient, readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case isRetryableStatus(resp.StatusCode):
				lastErr = fmt.Errorf("%w: standings status=%d body=%s", errStandingsTransient, resp.StatusCode, abbreviateBody(raw))
			default:
				return nil, fmt.Errorf("standings status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("standings request failed")
	}
	c.logger.WarnContext(ctx, "standings request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

func splitKey(key string) (kind, competition string, err error) {
	kind, competition, ok := strings.Cut(key, ":")
	if !ok || strings.TrimSpace(competition) == "" {
		return "", "", fmt.Errorf("malformed classification key %q", key)
	}
	switch kind {
	case "table", "ranking":
		return kind, strings.TrimSpace(competition), nil
	default:
		return "", "", fmt.Errorf("unknown classification kind %q", kind)
	}
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}

func maxInt(left, right int) int {
	if left > right {
		return left
	}
	return right
}
