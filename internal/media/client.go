package media

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/eramap/internal/model"
	"github.com/ppiankov/eramap/internal/regions"
	"github.com/ppiankov/eramap/internal/util"
	"github.com/ppiankov/eramap/internal/worker"
)

// ErrNotConfigured is returned when no media store URL is set
var ErrNotConfigured = eris.New("media store base URL is not configured")

const maxBodyBytes = 8 << 20

// ClientConfig configures the media store client
type ClientConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string

	// RequestsPerSecond and Burst give the media host its own bucket on a
	// shared limiter. Zero leaves writes at the limiter's default rate.
	RequestsPerSecond float64
	Burst             int
}

// Client talks to the media store REST API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *worker.Limiter
}

type updateRequest struct {
	Countries []string `json:"countries"`
}

// NewClient creates a media store client. limiter paces writes and may be
// nil; it is typically the resolver's limiter with a separate media bucket.
func NewClient(cfg ClientConfig, limiter *worker.Limiter) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, ErrNotConfigured
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, eris.Errorf("invalid media store URL %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := util.NewHTTPClient(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)
	client.Timeout = timeout

	if limiter != nil && cfg.RequestsPerSecond > 0 {
		limiter.SetHostRate(u.Host, cfg.RequestsPerSecond, cfg.Burst)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(base, "/"),
		token:      cfg.Token,
		httpClient: client,
		limiter:    limiter,
	}, nil
}

// List fetches every media item
func (c *Client) List(ctx context.Context) ([]model.MediaItem, error) {
	body, err := c.do(ctx, http.MethodGet, c.baseURL+"/media", nil)
	if err != nil {
		return nil, eris.Wrap(err, "list media")
	}

	var items []model.MediaItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, eris.Wrap(err, "decode media list")
	}
	return items, nil
}

// UpdateCountries replaces the countries of one media item
func (c *Client) UpdateCountries(ctx context.Context, id string, countries []string) error {
	if strings.TrimSpace(id) == "" {
		return eris.New("media id must not be empty")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, c.baseURL); err != nil {
			return eris.Wrap(err, "rate limit wait")
		}
	}

	payload, err := json.Marshal(updateRequest{Countries: regions.NormalizeCodes(countries)})
	if err != nil {
		return eris.Wrap(err, "marshal update")
	}

	endpoint := c.baseURL + "/media/" + url.PathEscape(id)
	if _, err := c.do(ctx, http.MethodPatch, endpoint, payload); err != nil {
		return eris.Wrapf(err, "update media %s", id)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "execute request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, eris.Errorf("media store error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
