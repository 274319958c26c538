// ABOUTME: Configuration loading and parsing for mediline
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete mediline configuration. The gateway and
// the terminal client read the same file; each validates only the
// sections it needs.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Gemini      GeminiConfig      `yaml:"gemini"`
	Database    DatabaseConfig    `yaml:"database"`
	Auth        AuthConfig        `yaml:"auth"`
	Agents      AgentsConfig      `yaml:"agents"`
	Client      ClientConfig      `yaml:"client"`
	Attachments AttachmentsConfig `yaml:"attachments"`
	Voice       VoiceConfig       `yaml:"voice"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds gateway listen configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// GeminiConfig holds generative model configuration
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// DatabaseConfig holds exchange ledger configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration. An empty secret disables
// bearer auth on the gateway.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// AgentsConfig holds the optional agent catalog override
type AgentsConfig struct {
	Catalog string `yaml:"catalog"`
}

// ClientConfig holds terminal client configuration
type ClientConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`

	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// AttachmentsConfig bounds what the client will attach
type AttachmentsConfig struct {
	MaxBytes     int64    `yaml:"max_bytes"`
	AllowedTypes []string `yaml:"allowed_types"`
}

// VoiceConfig names the host speech-to-text command, if any
type VoiceConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	return &cfg, nil
}

// DefaultPath returns the config file location.
// Priority: MEDILINE_CONFIG env var > XDG_CONFIG_HOME/mediline/mediline.yaml > ~/.config/mediline/mediline.yaml
func DefaultPath() string {
	if envPath := os.Getenv("MEDILINE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "mediline.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "mediline", "mediline.yaml")
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

// ValidateServer checks the fields the gateway needs. The Gemini API key
// is deliberately not required: a missing key surfaces per-request as an
// application-level failure in the chat response body.
func (c *Config) ValidateServer() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}

// ValidateClient checks the fields the terminal client needs.
func (c *Config) ValidateClient() error {
	if c.Client.BaseURL == "" {
		return fmt.Errorf("client.base_url is required")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Client.TimeoutRaw != "" {
		var err error
		cfg.Client.Timeout, err = time.ParseDuration(cfg.Client.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing client timeout %q: %w", cfg.Client.TimeoutRaw, err)
		}
	}
	return nil
}
