package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"maps"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort          = 27123
	DefaultHost          = "127.0.0.1"
	DefaultLocale        = "en"
	DefaultConfigDir     = ".obsidian"
	DefaultSettleDelayMS = 500
	DefaultBindAttempts  = 3
	DefaultBackoffMS     = 250
)

var ErrInvalidPort = errors.New("invalid port number")

// Config represents the gateway configuration
type Config struct {
	Name           string          `json:"name" yaml:"name" toml:"name"`
	Version        string          `json:"version" yaml:"version" toml:"version"`
	Host           string          `json:"host" yaml:"host" toml:"host"`
	Port           int             `json:"port" yaml:"port" toml:"port"`
	StartOnStartup bool            `json:"startOnStartup" yaml:"startOnStartup" toml:"startOnStartup"`
	Tools          map[string]bool `json:"tools" yaml:"tools" toml:"tools"`
	Locale         string          `json:"locale" yaml:"locale" toml:"locale"`
	Vault          Vault           `json:"vault" yaml:"vault" toml:"vault"`
	Restart        Restart         `json:"restart" yaml:"restart" toml:"restart"`
	Logging        Logging         `json:"logging" yaml:"logging" toml:"logging"`
	WatchConfig    bool            `json:"watchConfig" yaml:"watchConfig" toml:"watchConfig"`
}

// Vault locates the served vault on disk. An empty root serves an empty
// in-memory vault.
type Vault struct {
	Root      string `json:"root" yaml:"root" toml:"root"`
	ConfigDir string `json:"configDir" yaml:"configDir" toml:"configDir"`
	Watch     bool   `json:"watch" yaml:"watch" toml:"watch"`
}

// Restart tunes the restart settle delay and the rebind retry.
type Restart struct {
	SettleDelayMS int `json:"settleDelayMs" yaml:"settleDelayMs" toml:"settleDelayMs"`
	BindAttempts  int `json:"bindAttempts" yaml:"bindAttempts" toml:"bindAttempts"`
	BackoffMS     int `json:"backoffMs" yaml:"backoffMs" toml:"backoffMs"`
}

// Logging represents logging configuration
type Logging struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"`
	Path   string `json:"path" yaml:"path" toml:"path"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = os.TempDir()
	}
	return &Config{
		Name:           "vault-mcp-go",
		Version:        "0.1.0",
		Host:           DefaultHost,
		Port:           DefaultPort,
		StartOnStartup: true,
		Tools:          map[string]bool{},
		Locale:         DefaultLocale,
		Vault: Vault{
			ConfigDir: DefaultConfigDir,
			Watch:     true,
		},
		Restart: Restart{
			SettleDelayMS: DefaultSettleDelayMS,
			BindAttempts:  DefaultBindAttempts,
			BackoffMS:     DefaultBackoffMS,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
			Path:   filepath.Join(home, ".vault-mcp", "logs", "mcp.log"),
		},
		WatchConfig: true,
	}
}

// LoadConfig loads the configuration from a file. The codec is chosen by
// extension: .yaml/.yml, .toml, anything else is JSON.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	// Read config file if it exists
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	// Override with environment variables (highest priority).
	applyEnvOverrides(cfg)
	cfg.Normalize()

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	default:
		return json.Unmarshal(data, cfg)
	}
}

func encode(path string, cfg *Config) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Marshal(cfg)
	case ".toml":
		var b strings.Builder
		if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
			return nil, err
		}
		return []byte(b.String()), nil
	default:
		return json.MarshalIndent(cfg, "", "  ")
	}
}

// SaveConfig saves the configuration to a file
func SaveConfig(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	data, err := encode(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func applyEnvOverrides(cfg *Config) {
	if portStr := os.Getenv("MCP_PORT"); portStr != "" {
		if port, err := ParsePort(portStr); err == nil {
			cfg.Port = port
		} else {
			log.Printf("warning: ignoring invalid MCP_PORT value %q: %v", portStr, err)
		}
	}

	if host := os.Getenv("MCP_HOST"); host != "" {
		cfg.Host = host
	}

	if startup := os.Getenv("MCP_START_ON_STARTUP"); startup != "" {
		if parsed, err := strconv.ParseBool(startup); err == nil {
			cfg.StartOnStartup = parsed
		} else {
			log.Printf("warning: ignoring invalid MCP_START_ON_STARTUP value %q: %v", startup, err)
		}
	}

	if disabled := os.Getenv("MCP_DISABLED_TOOLS"); disabled != "" {
		if cfg.Tools == nil {
			cfg.Tools = map[string]bool{}
		}
		for _, name := range parseCSV(disabled) {
			cfg.Tools[name] = false
		}
	}

	if locale := os.Getenv("MCP_LOCALE"); locale != "" {
		cfg.Locale = locale
	}

	if logLevel := os.Getenv("MCP_LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if logPath := os.Getenv("MCP_LOG_PATH"); logPath != "" {
		cfg.Logging.Path = logPath
	}

	if root := os.Getenv("VAULT_ROOT"); root != "" {
		cfg.Vault.Root = root
	}
}

// Normalize canonicalizes config values so downstream validation and runtime
// logic operate on stable representations.
func (c *Config) Normalize() {
	c.Host = strings.TrimSpace(c.Host)
	c.Locale = strings.ToLower(strings.TrimSpace(c.Locale))
	if c.Locale == "" {
		c.Locale = DefaultLocale
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Path = strings.TrimSpace(c.Logging.Path)
	c.Vault.Root = strings.TrimSpace(c.Vault.Root)
	c.Vault.ConfigDir = strings.TrimSpace(c.Vault.ConfigDir)
	if c.Vault.ConfigDir == "" {
		c.Vault.ConfigDir = DefaultConfigDir
	}
	if c.Restart.SettleDelayMS == 0 {
		c.Restart.SettleDelayMS = DefaultSettleDelayMS
	}
	if c.Restart.BindAttempts == 0 {
		c.Restart.BindAttempts = DefaultBindAttempts
	}
	if c.Restart.BackoffMS == 0 {
		c.Restart.BackoffMS = DefaultBackoffMS
	}
	tools := make(map[string]bool, len(c.Tools))
	for name, enabled := range c.Tools {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			tools[trimmed] = enabled
		}
	}
	c.Tools = tools
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := ValidatePort(c.Port); err != nil {
		return err
	}

	if c.Host == "" {
		return errors.New("host cannot be empty")
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return errors.New("invalid log level")
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return errors.New("invalid log format")
	}

	if c.Restart.SettleDelayMS < 0 || c.Restart.SettleDelayMS > 60000 {
		return fmt.Errorf("invalid restart settle delay %dms: expected range 0..60000", c.Restart.SettleDelayMS)
	}
	if c.Restart.BindAttempts < 1 || c.Restart.BindAttempts > 20 {
		return fmt.Errorf("invalid restart bind attempts %d: expected range 1..20", c.Restart.BindAttempts)
	}
	if c.Restart.BackoffMS < 1 {
		return fmt.Errorf("invalid restart backoff %dms: must be positive", c.Restart.BackoffMS)
	}

	return nil
}

// ValidatePort rejects ports outside 1..65535.
func ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	return nil
}

// ParsePort parses a user-entered port, rejecting non-numeric and out of
// range values.
func ParsePort(raw string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, raw)
	}
	if err := ValidatePort(port); err != nil {
		return 0, err
	}
	return port, nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Tools = maps.Clone(c.Tools)
	return &out
}

// ToolEnabled reports the toggle for name. Unlisted tools are enabled.
func (c *Config) ToolEnabled(name string) bool {
	enabled, ok := c.Tools[name]
	return !ok || enabled
}

// Addr is the listen address for the HTTP transport.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SettleDelay is the wait between stop and start during a restart.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Restart.SettleDelayMS) * time.Millisecond
}

// Backoff is the initial wait between rebind attempts.
func (c *Config) Backoff() time.Duration {
	return time.Duration(c.Restart.BackoffMS) * time.Millisecond
}

// ResolveConfigPath returns the path that should be used for configuration.
func ResolveConfigPath() (string, error) {
	// First check environment variable
	if path := strings.TrimSpace(os.Getenv("MCP_CONFIG_PATH")); path != "" {
		return path, nil
	}

	// Then check config/vault_mcp.json in current directory
	if _, err := os.Stat("config/vault_mcp.json"); err == nil {
		return "config/vault_mcp.json", nil
	}

	// Finally check home directory
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".vault-mcp", "config", "vault_mcp.json"), nil
}

// EnsureDefaultConfig creates a default config file if one does not exist.
func EnsureDefaultConfig(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config path cannot be empty")
	}

	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	defaultConfig := NewConfig()
	if err := SaveConfig(defaultConfig, path); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}

func parseCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
