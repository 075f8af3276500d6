package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/prometheus/common/model"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultScrapeInterval = 15 * time.Second
	DefaultNamespace      = "apache"
	DefaultExportListen   = ":9117"
	DefaultSeriesTTL      = 5 * time.Minute
)

// Config is the top-level configuration for the agent.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ScrapeInterval controls how often every target is polled.
	ScrapeInterval time.Duration `yaml:"scrape_interval"`

	// Namespace is the prefix applied to every emitted metric name.
	// An empty string disables prefixing.
	Namespace string `yaml:"namespace"`

	// Tags is the base tag set attached to every metric from every target.
	Tags map[string]string `yaml:"tags"`

	// Targets is the list of httpd status endpoints to scrape.
	Targets []Target `yaml:"targets"`

	// Export configures the local HTTP server exposing collected metrics.
	Export ExportConfig `yaml:"export"`
}

// rawConfig mirrors just enough of the document to detect whether the
// namespace key appeared in the YAML at all, distinguishing an explicit
// empty namespace from an absent one.
type rawConfig struct {
	Agent rawAgent `yaml:"agent"`
}
type rawAgent struct {
	Namespace *string `yaml:"namespace"`
}

// Target describes one monitored httpd instance.
type Target struct {
	// ID is a unique, human-readable identifier for this target.
	ID string `yaml:"id"`

	// Endpoint is the full URL of the mod_status page, typically ending
	// in "?auto".
	Endpoint string `yaml:"endpoint"`

	// Auth configures how the agent authenticates to this target.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// AuthConfig specifies the authentication mode for a target.
type AuthConfig struct {
	// Mode is one of: apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// API key fields — used when Mode == "apikey".
	// Header is the HTTP header name to send the key in.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// Bearer token fields — used when Mode == "bearer".
	TokenEnv string `yaml:"token_env"`

	// Basic auth fields — used when Mode == "basic".
	// Username is the literal username (safe to store in config).
	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
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

// TLSConfig holds per-target TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// ExportConfig configures the local exposition/status HTTP server.
type ExportConfig struct {
	// Listen is the address of the HTTP server serving /metrics, the
	// status API and the WebSocket stream. Empty disables the server.
	Listen string `yaml:"listen"`

	// SeriesTTL is how long a series stays on /metrics after its last
	// sample; series of removed or dead targets age out.
	SeriesTTL time.Duration `yaml:"series_ttl"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	// yaml cannot distinguish `namespace: ""` from an absent key once the
	// default is pre-populated, so probe the raw document for the key.
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err == nil && raw.Agent.Namespace != nil {
		cfg.Agent.Namespace = *raw.Agent.Namespace
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			ScrapeInterval: DefaultScrapeInterval,
			Namespace:      DefaultNamespace,
			Export: ExportConfig{
				Listen:    DefaultExportListen,
				SeriesTTL: DefaultSeriesTTL,
			},
		},
	}
}

// validate checks required fields and structural constraints.
// Endpoint URLs are validated here so a bad target fails at startup rather
// than on every tick.
func validate(cfg *Config) error {
	if cfg.Agent.ScrapeInterval <= 0 {
		return fmt.Errorf("agent.scrape_interval must be positive")
	}
	if cfg.Agent.Export.SeriesTTL <= 0 {
		return fmt.Errorf("agent.export.series_ttl must be positive")
	}
	if cfg.Agent.Namespace != "" && !model.IsValidMetricName(model.LabelValue(cfg.Agent.Namespace)) {
		return fmt.Errorf("agent.namespace %q is not a valid metric name prefix", cfg.Agent.Namespace)
	}
	for k, v := range cfg.Agent.Tags {
		if !model.LabelName(k).IsValid() {
			return fmt.Errorf("agent.tags: invalid tag name %q", k)
		}
		if v == "" {
			return fmt.Errorf("agent.tags: tag %q has an empty value", k)
		}
	}
	if len(cfg.Agent.Targets) == 0 {
		return fmt.Errorf("agent.targets must not be empty")
	}

	seen := make(map[string]struct{}, len(cfg.Agent.Targets))
	for i, t := range cfg.Agent.Targets {
		if t.ID == "" {
			return fmt.Errorf("targets[%d]: id is required", i)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("targets[%d]: duplicate id %q", i, t.ID)
		}
		seen[t.ID] = struct{}{}

		if t.Endpoint == "" {
			return fmt.Errorf("targets[%d] %q: endpoint is required", i, t.ID)
		}
		u, err := url.Parse(t.Endpoint)
		if err != nil {
			return fmt.Errorf("targets[%d] %q: invalid endpoint: %w", i, t.ID, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("targets[%d] %q: endpoint must be an absolute http(s) URL", i, t.ID)
		}
		if u.Host == "" {
			return fmt.Errorf("targets[%d] %q: endpoint is missing a host", i, t.ID)
		}

		switch t.Auth.Mode {
		case "apikey", "bearer", "basic", "none", "":
		default:
			return fmt.Errorf("targets[%d] %q: unknown auth mode %q", i, t.ID, t.Auth.Mode)
		}
		if t.Auth.Mode == "apikey" && t.Auth.Header == "" {
			return fmt.Errorf("targets[%d] %q: auth.header is required for apikey mode", i, t.ID)
		}
	}
	return nil
}
