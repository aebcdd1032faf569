package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/eramap/internal/regions"
)

// ErrMalformedAnswer is returned when a model reply carries no parseable JSON object
var ErrMalformedAnswer = eris.New("llm: malformed answer")

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// ResolvePeriod asks the model which present-day countries a historical period covers
	ResolvePeriod(ctx context.Context, req PeriodRequest) (*PeriodResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// PeriodRequest contains the input for one period resolution
type PeriodRequest struct {
	// Period is the free-text era or civilization name
	Period string

	// Title is an optional media title used to disambiguate the period
	Title string

	// Prompt is an optional custom prompt (if empty, use default)
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// PeriodResponse is the model's structured answer
type PeriodResponse struct {
	Type        string   `json:"type,omitempty"` // e.g. empire, era, culture, event
	Countries   []string `json:"countries"`
	Timeframe   string   `json:"timeframe,omitempty"`
	Description string   `json:"description,omitempty"`
	Confidence  string   `json:"confidence,omitempty"`

	// Model is the model that generated the response
	Model string `json:"-"`

	// TokensUsed tracks token consumption
	TokensUsed int `json:"-"`
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Model:     "",
		Timeout:   30,
		MaxTokens: 400,
	}
}

const systemPrompt = "You map historical periods to the present-day countries whose territory they covered. Answer with JSON only."

// BuildPrompt constructs the default prompt for one period
func BuildPrompt(period, title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Historical period or civilization: %q\n", period)
	if title != "" {
		fmt.Fprintf(&b, "It appears in a media item titled %q. Use the title to pick the most likely interpretation.\n", title)
	}
	b.WriteString(`
Reply with a single JSON object and nothing else:
{
  "type": "empire | kingdom | era | culture | event | region",
  "countries": ["ISO 3166-1 alpha-2 codes of present-day countries covering the core territory"],
  "timeframe": "human readable date range, e.g. 793–1066 CE",
  "description": "one sentence",
  "confidence": "high | medium | low"
}

RULES:
1. Use uppercase two-letter codes only.
2. List at most 12 countries, most central first.
3. If the period is unknown or not historical, return an empty countries list and confidence "low".
`)
	return b.String()
}

// ParseAnswer extracts the JSON object from a model reply. Code fences and
// surrounding prose are tolerated; country codes are normalized.
func ParseAnswer(text string) (*PeriodResponse, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, eris.Wrapf(ErrMalformedAnswer, "no JSON object in %q", truncate(text, 80))
	}

	var resp PeriodResponse
	if err := json.Unmarshal([]byte(text[start:end+1]), &resp); err != nil {
		return nil, eris.Wrap(ErrMalformedAnswer, err.Error())
	}
	resp.Countries = regions.NormalizeCodes(resp.Countries)
	resp.Confidence = strings.ToLower(strings.TrimSpace(resp.Confidence))
	resp.Timeframe = strings.TrimSpace(resp.Timeframe)
	resp.Description = strings.TrimSpace(resp.Description)
	return &resp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// resolveModel picks the request model, then the configured one, then fallback
func resolveModel(req PeriodRequest, config Config, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if config.Model != "" {
		return config.Model
	}
	return fallback
}

func resolveMaxTokens(req PeriodRequest, config Config) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if config.MaxTokens > 0 {
		return config.MaxTokens
	}
	return 400
}

func resolvePrompt(req PeriodRequest) string {
	if req.Prompt != "" {
		return req.Prompt
	}
	return BuildPrompt(req.Period, req.Title)
}
