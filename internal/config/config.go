// ABOUTME: Configuration loading and parsing for todo-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Supported values for database.driver.
const (
	DriverSQLite   = "sqlite"
	DriverSQLite3  = "sqlite3"
	DriverPostgres = "postgres"
)

// Supported values for agent.provider.
const (
	ProviderOpenAI = "openai"
	ProviderRules  = "rules"
)

// Defaults applied when a field is left empty.
const (
	DefaultHTTPAddr       = "127.0.0.1:8080"
	DefaultTokenTTL       = 30 * 24 * time.Hour
	DefaultAgentTimeout   = 60 * time.Second
	DefaultRequestTimeout = 45 * time.Second
	DefaultMaxRounds      = 6
	DefaultBaseURL        = "https://api.openai.com/v1"
	DefaultModel          = "gpt-4o-mini"
)

// Config represents the complete todo-gateway configuration
type Config struct {
	Server       ServerConfig       `yaml:"server" toml:"server"`
	Database     DatabaseConfig     `yaml:"database" toml:"database"`
	Auth         AuthConfig         `yaml:"auth" toml:"auth"`
	Agent        AgentConfig        `yaml:"agent" toml:"agent"`
	Conversation ConversationConfig `yaml:"conversation" toml:"conversation"`
	Logging      LoggingConfig      `yaml:"logging" toml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// DatabaseConfig selects the SQL driver and where data lives.
// Path is used by the SQLite drivers, DSN by postgres.
type DatabaseConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"`
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// Source returns the driver-specific connection string.
func (d DatabaseConfig) Source() string {
	if d.Driver == DriverPostgres {
		return d.DSN
	}
	return d.Path
}

// AuthConfig holds authentication configuration.
// An empty JWTSecret enables the development X-User-ID header instead.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" toml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"-" toml:"-"`

	TokenTTLRaw string `yaml:"token_ttl" toml:"token_ttl"`
}

// AgentConfig selects and configures the agent that answers turns
type AgentConfig struct {
	Provider       string        `yaml:"provider" toml:"provider"`
	BaseURL        string        `yaml:"base_url" toml:"base_url"`
	APIKey         string        `yaml:"api_key" toml:"api_key"`
	Model          string        `yaml:"model" toml:"model"`
	MaxRounds      int           `yaml:"max_rounds" toml:"max_rounds"`
	SystemPrompt   string        `yaml:"system_prompt" toml:"system_prompt"`
	RequestTimeout time.Duration `yaml:"-" toml:"-"`

	RequestTimeoutRaw string `yaml:"request_timeout" toml:"request_timeout"`
}

// ConversationConfig holds turn orchestration settings
type ConversationConfig struct {
	AgentTimeout time.Duration `yaml:"-" toml:"-"`

	AgentTimeoutRaw string `yaml:"agent_timeout" toml:"agent_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// DefaultPath returns the config location.
// Priority: TODO_GATEWAY_CONFIG env var > XDG_CONFIG_HOME/todo-gateway/gateway.yaml > ~/.config/todo-gateway/gateway.yaml
func DefaultPath() string {
	if p := os.Getenv("TODO_GATEWAY_CONFIG"); p != "" {
		return p
	}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml"
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "todo-gateway", "gateway.yaml")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(string(data), formatFor(path))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Format names a config file encoding.
type Format string

// Supported config encodings.
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

func formatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Parse decodes config text in the given format, then applies defaults and validates.
func Parse(text string, format Format) (*Config, error) {
	expanded := expandEnvVars(text)

	var cfg Config
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}
	if c.Agent.Provider == "" {
		c.Agent.Provider = ProviderOpenAI
	}
	if c.Agent.BaseURL == "" {
		c.Agent.BaseURL = DefaultBaseURL
	}
	if c.Agent.Model == "" {
		c.Agent.Model = DefaultModel
	}
	if c.Agent.MaxRounds == 0 {
		c.Agent.MaxRounds = DefaultMaxRounds
	}
	if c.Agent.RequestTimeout == 0 {
		c.Agent.RequestTimeout = DefaultRequestTimeout
	}
	if c.Conversation.AgentTimeout == 0 {
		c.Conversation.AgentTimeout = DefaultAgentTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverSQLite3:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for driver %q", c.Database.Driver)
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver %q is not supported (use sqlite, sqlite3 or postgres)", c.Database.Driver)
	}

	switch c.Agent.Provider {
	case ProviderOpenAI:
		u, err := url.Parse(c.Agent.BaseURL)
		if err != nil {
			return fmt.Errorf("agent.base_url is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("agent.base_url must use http or https scheme")
		}
		if c.Agent.APIKey == "" {
			return fmt.Errorf("agent.api_key is required for provider %q", ProviderOpenAI)
		}
	case ProviderRules:
	default:
		return fmt.Errorf("agent.provider %q is not supported (use openai or rules)", c.Agent.Provider)
	}

	if c.Agent.MaxRounds < 0 {
		return fmt.Errorf("agent.max_rounds must not be negative")
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (use text or json)", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.TokenTTLRaw != "" {
		cfg.Auth.TokenTTL, err = time.ParseDuration(cfg.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_ttl %q: %w", cfg.Auth.TokenTTLRaw, err)
		}
	}

	if cfg.Agent.RequestTimeoutRaw != "" {
		cfg.Agent.RequestTimeout, err = time.ParseDuration(cfg.Agent.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Agent.RequestTimeoutRaw, err)
		}
	}

	if cfg.Conversation.AgentTimeoutRaw != "" {
		cfg.Conversation.AgentTimeout, err = time.ParseDuration(cfg.Conversation.AgentTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing agent_timeout %q: %w", cfg.Conversation.AgentTimeoutRaw, err)
		}
	}

	return nil
}
