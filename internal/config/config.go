package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultHTTPPort     = 8080
	DefaultRunInterval  = 5 * time.Minute
	DefaultStoragePath  = "plantpulse.db"
	DefaultFetchTimeout = 30 * time.Second
)

// Config is the top-level plantpulse configuration.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Runner  RunnerConfig  `yaml:"runner"`
	Storage StorageConfig `yaml:"storage"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Alerts  AlertsConfig  `yaml:"alerts"`
	Rules   Rules         `yaml:"rules"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the server authenticates incoming REST clients.
	Auth AuthConfig `yaml:"auth"`
}

// RunnerConfig controls the periodic analysis scheduler.
type RunnerConfig struct {
	// Interval is how often the current date is re-analyzed (default 5m).
	Interval time.Duration `yaml:"interval"`
}

// StorageConfig configures the SQLite persistence backend.
type StorageConfig struct {
	// Path is the filesystem path for the SQLite database file.
	Path string `yaml:"path"`
}

// IngestConfig holds the optional upstream pull sources.
// When empty, the raw tables are expected to be populated externally.
type IngestConfig struct {
	// FetchTimeout bounds one HTTP fetch against a source.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// Sources is the list of upstream gateway endpoints to pull rows from.
	Sources []Source `yaml:"sources"`
}

// Source describes one upstream row feed.
type Source struct {
	// ID is a unique, human-readable identifier for this source.
	ID string `yaml:"id"`

	// Feed is the row kind this source serves:
	// telemetry | annotations | production | quality.
	Feed string `yaml:"feed"`

	// Endpoint is the full URL returning a JSON array of rows.
	Endpoint string `yaml:"endpoint"`

	// Auth configures how the collector authenticates to this source.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// AuthConfig specifies an authentication mode. It is shared between the
// ingest collector (outgoing) and the REST API (incoming).
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields - used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// API key fields - used when Mode == "apikey".
	// Header is the HTTP header name the key is carried in.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// Bearer token fields - used when Mode == "bearer".
	TokenEnv string `yaml:"token_env"`

	// Basic auth fields - used when Mode == "basic".
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition evaluated against
// freshly computed indicator rows.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Kind restricts the rule to one indicator kind; empty matches all.
	Kind string `yaml:"kind"`

	// Condition is a simple expression: "value < 0.7", "surplus > 120",
	// "expected_time == 0".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse parses raw YAML config bytes. Exposed for tests.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
		},
		Runner: RunnerConfig{
			Interval: DefaultRunInterval,
		},
		Storage: StorageConfig{
			Path: DefaultStoragePath,
		},
		Ingest: IngestConfig{
			FetchTimeout: DefaultFetchTimeout,
		},
		Rules: DefaultRules(),
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	if cfg.Runner.Interval <= 0 {
		return fmt.Errorf("runner.interval must be positive")
	}
	if cfg.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	seen := make(map[string]bool, len(cfg.Ingest.Sources))
	for _, src := range cfg.Ingest.Sources {
		if src.ID == "" {
			return fmt.Errorf("ingest source with empty id")
		}
		if seen[src.ID] {
			return fmt.Errorf("duplicate ingest source id %q", src.ID)
		}
		seen[src.ID] = true
		switch src.Feed {
		case "telemetry", "annotations", "production", "quality":
		default:
			return fmt.Errorf("ingest source %q: feed %q unknown: want telemetry|annotations|production|quality", src.ID, src.Feed)
		}
		if src.Endpoint == "" {
			return fmt.Errorf("ingest source %q: endpoint must not be empty", src.ID)
		}
	}
	return cfg.Rules.validate()
}
