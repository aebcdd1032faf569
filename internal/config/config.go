package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ppiankov/eramap/internal/resolver"
	"github.com/ppiankov/eramap/internal/store"
)

// EnvPrefix prefixes every environment override, e.g. ERAMAP_RESOLVER_ENDPOINT
const EnvPrefix = "ERAMAP"

// Config holds the full application configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir" mapstructure:"data_dir"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Resolver  ResolverConfig  `yaml:"resolver" mapstructure:"resolver"`
	Inference InferenceConfig `yaml:"inference" mapstructure:"inference"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Media     MediaConfig     `yaml:"media" mapstructure:"media"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver     string `yaml:"driver" mapstructure:"driver"` // layered, disk, sqlite, memory
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ResolverConfig configures the AI resolver.
type ResolverConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"` // http, openai, anthropic, ollama or empty
	Endpoint          string  `yaml:"endpoint" mapstructure:"endpoint"`
	Model             string  `yaml:"model" mapstructure:"model"`
	APIKey            string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	HTTPProxy         string  `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy        string  `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy           string  `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// InferenceConfig tunes the inference engine.
type InferenceConfig struct {
	RequestTimeoutSecs int `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	NegativeTTLSecs    int `yaml:"negative_ttl_secs" mapstructure:"negative_ttl_secs"`
}

// BatchConfig tunes the batch orchestrator.
type BatchConfig struct {
	DelayMS     int `yaml:"delay_ms" mapstructure:"delay_ms"`
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// MediaConfig points at the media store REST API.
type MediaConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	Token             string  `yaml:"token" mapstructure:"token"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	// Per-client limit on resolver-bound routes; 0 disables it
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultDir returns ~/.eramap, or .eramap when the home directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".eramap"
	}
	return filepath.Join(home, ".eramap")
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDir())
	v.SetDefault("store.driver", "layered")
	v.SetDefault("store.sqlite_path", "")
	v.SetDefault("resolver.provider", "")
	v.SetDefault("resolver.endpoint", "")
	v.SetDefault("resolver.model", "")
	v.SetDefault("resolver.api_key", "")
	v.SetDefault("resolver.base_url", "")
	v.SetDefault("resolver.timeout_secs", 15)
	v.SetDefault("resolver.requests_per_second", 2.0)
	v.SetDefault("resolver.burst", 2)
	v.SetDefault("resolver.max_attempts", 2)
	v.SetDefault("resolver.http_proxy", "")
	v.SetDefault("resolver.https_proxy", "")
	v.SetDefault("resolver.no_proxy", "")
	v.SetDefault("inference.request_timeout_secs", 20)
	v.SetDefault("inference.negative_ttl_secs", 60)
	v.SetDefault("batch.delay_ms", 200)
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("media.base_url", "")
	v.SetDefault("media.token", "")
	v.SetDefault("media.requests_per_second", 5.0)
	v.SetDefault("media.burst", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.requests_per_second", 0.0)
	v.SetDefault("server.burst", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads configuration from file and environment. An empty path
// searches ~/.eramap and the working directory for config.yaml; a missing
// file is not an error unless path was given explicitly.
func Load(path string) (*Config, string, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, "", eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, v.ConfigFileUsed(), nil
}

// StoreOptions maps the store section onto store.Options.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Driver:     c.Store.Driver,
		DataDir:    c.DataDir,
		SQLitePath: c.Store.SQLitePath,
	}
}

// ResolverOptions maps the resolver section onto resolver.Config. A missing
// API key falls back to the provider's conventional environment variable.
func (c *Config) ResolverOptions() resolver.Config {
	r := c.Resolver
	apiKey := r.APIKey
	if apiKey == "" {
		switch strings.ToLower(r.Provider) {
		case "openai":
			apiKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	baseURL := r.BaseURL
	if baseURL == "" && strings.EqualFold(r.Provider, "ollama") {
		baseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	return resolver.Config{
		Provider:          r.Provider,
		Endpoint:          r.Endpoint,
		Model:             r.Model,
		APIKey:            apiKey,
		BaseURL:           baseURL,
		TimeoutSecs:       r.TimeoutSecs,
		RequestsPerSecond: r.RequestsPerSecond,
		Burst:             r.Burst,
		MaxAttempts:       r.MaxAttempts,
		HTTPProxy:         r.HTTPProxy,
		HTTPSProxy:        r.HTTPSProxy,
		NoProxy:           r.NoProxy,
	}
}

// RequestTimeout is the engine's per-call resolver budget.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Inference.RequestTimeoutSecs) * time.Second
}

// NegativeTTL is how long resolver failures are remembered. Zero or less
// disables the memo.
func (c *Config) NegativeTTL() time.Duration {
	if c.Inference.NegativeTTLSecs <= 0 {
		return -1
	}
	return time.Duration(c.Inference.NegativeTTLSecs) * time.Second
}

// BatchDelay is the pause between batch items. Zero disables pacing.
func (c *Config) BatchDelay() time.Duration {
	if c.Batch.DelayMS <= 0 {
		return -1
	}
	return time.Duration(c.Batch.DelayMS) * time.Millisecond
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(parsed)
	zapCfg.OutputPaths = []string{"stderr"}

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
