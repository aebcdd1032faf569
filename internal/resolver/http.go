package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/eramap/internal/regions"
	"github.com/ppiankov/eramap/internal/util"
	"github.com/ppiankov/eramap/internal/worker"
)

const maxResponseBytes = 1 << 20

// retrySleepFunc waits between attempts; tests replace it
var retrySleepFunc = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// HTTPConfig configures the HTTP resolver client
type HTTPConfig struct {
	Endpoint    string
	Timeout     time.Duration
	MaxAttempts int
	UserAgent   string
	HTTPProxy   string
	HTTPSProxy  string
	NoProxy     string
}

// HTTPResolver calls a remote endpoint with GET ?period=&title=
type HTTPResolver struct {
	endpoint    *url.URL
	client      *http.Client
	limiter     *worker.Limiter
	maxAttempts int
	userAgent   string
}

// NewHTTPResolver creates a resolver for cfg.Endpoint. limiter may be nil.
func NewHTTPResolver(cfg HTTPConfig, limiter *worker.Limiter) (*HTTPResolver, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, eris.Wrap(ErrNotConfigured, "http resolver endpoint is empty")
	}
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, eris.Errorf("invalid resolver endpoint %q", cfg.Endpoint)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 2
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "eramap"
	}

	client := util.NewHTTPClient(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)
	client.Timeout = timeout

	return &HTTPResolver{
		endpoint:    endpoint,
		client:      client,
		limiter:     limiter,
		maxAttempts: attempts,
		userAgent:   userAgent,
	}, nil
}

// Name returns the resolver name
func (r *HTTPResolver) Name() string {
	return "http"
}

// Resolve queries the endpoint, retrying transient failures
func (r *HTTPResolver) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := retryBackoff(attempt)
			zap.L().Warn("retrying resolver request",
				zap.String("period", req.Period),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			if err := retrySleepFunc(ctx, backoff); err != nil {
				return nil, eris.Wrap(err, "resolver: retry wait")
			}
		}

		res, retryable, err := r.do(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (r *HTTPResolver) do(ctx context.Context, req Request) (*Resolution, bool, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, r.endpoint.String()); err != nil {
			return nil, false, eris.Wrap(err, "resolver: rate limit wait")
		}
	}

	u := *r.endpoint
	q := u.Query()
	q.Set("period", req.Period)
	if req.Title != "" {
		q.Set("title", req.Title)
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, false, eris.Wrap(err, "resolver: create request")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, eris.Wrap(ctx.Err(), "resolver: request")
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, true, eris.Wrap(err, "resolver: request timed out")
		}
		return nil, true, eris.Wrapf(ErrUnavailable, "request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, isRetryableStatus(resp.StatusCode), eris.Wrapf(ErrUnavailable, "unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, true, eris.Wrapf(ErrUnavailable, "read body: %v", err)
	}

	res, err := decodeResolution(body)
	return res, false, err
}

type wireResolution struct {
	Type        string   `json:"type"`
	Countries   []string `json:"countries"`
	Timeframe   string   `json:"timeframe"`
	Description string   `json:"description"`
	Confidence  string   `json:"confidence"`
}

func decodeResolution(body []byte) (*Resolution, error) {
	var wire wireResolution
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, eris.Wrapf(ErrMalformed, "decode: %v", err)
	}
	countries := regions.NormalizeCodes(wire.Countries)
	if len(countries) == 0 {
		return nil, ErrEmpty
	}
	return &Resolution{
		Type:        strings.TrimSpace(wire.Type),
		Countries:   countries,
		Timeframe:   strings.TrimSpace(wire.Timeframe),
		Description: strings.TrimSpace(wire.Description),
		Confidence:  ParseConfidence(wire.Confidence),
	}, nil
}

func isRetryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= 500
}

func retryBackoff(attempt int) time.Duration {
	d := 500 * time.Millisecond << (attempt - 2)
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
