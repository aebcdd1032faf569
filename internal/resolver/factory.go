package resolver

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/eramap/internal/llm"
	"github.com/ppiankov/eramap/internal/worker"
)

// Config selects and configures the AI resolver
type Config struct {
	Provider          string // http, openai, anthropic, ollama, "" (disabled)
	Endpoint          string // http provider only
	Model             string
	APIKey            string
	BaseURL           string
	TimeoutSecs       int
	RequestsPerSecond float64
	Burst             int
	MaxAttempts       int
	HTTPProxy         string
	HTTPSProxy        string
	NoProxy           string

	// Limiter is shared with other outbound clients when set; otherwise
	// one is built from RequestsPerSecond and Burst.
	Limiter *worker.Limiter
}

// New builds the configured resolver. It returns nil, nil when no provider is
// configured; the engine then reports every AI step as not-configured.
func New(cfg Config) (Resolver, error) {
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "":
		return nil, nil

	case "http":
		r, err := NewHTTPResolver(HTTPConfig{
			Endpoint:    cfg.Endpoint,
			Timeout:     time.Duration(cfg.TimeoutSecs) * time.Second,
			MaxAttempts: cfg.MaxAttempts,
			HTTPProxy:   cfg.HTTPProxy,
			HTTPSProxy:  cfg.HTTPSProxy,
			NoProxy:     cfg.NoProxy,
		}, limiter)
		if err != nil {
			return nil, err
		}
		return r, nil

	case "openai", "anthropic", "claude", "ollama":
		provider, err := llm.NewProvider(llm.Config{
			Provider:   cfg.Provider,
			Model:      cfg.Model,
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Timeout:    cfg.TimeoutSecs,
			MaxTokens:  llm.DefaultConfig().MaxTokens,
			HTTPProxy:  cfg.HTTPProxy,
			HTTPSProxy: cfg.HTTPSProxy,
			NoProxy:    cfg.NoProxy,
		})
		if err != nil {
			return nil, eris.Wrap(err, "resolver: create llm provider")
		}
		return NewLLMResolver(provider, limiter), nil

	default:
		return nil, eris.Errorf("unknown resolver provider: %s (supported: http, openai, anthropic, ollama)", cfg.Provider)
	}
}
