// ABOUTME: Configuration loading and parsing for toolgate.
// ABOUTME: Supports YAML files with environment variable expansion.

package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config represents the complete toolgate configuration. All values are
// fixed at startup; there is no runtime reload.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Tools   ToolsConfig   `yaml:"tools"`
	Limits  LimitsConfig  `yaml:"limits"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the bind addresses for both transports.
type ServerConfig struct {
	WSAddr   string `yaml:"ws_addr"`
	HTTPAddr string `yaml:"http_addr"`
}

// ToolsConfig holds tool-facing settings.
type ToolsConfig struct {
	// BasePath is the sandbox boundary for filesystem-capable tools.
	BasePath string `yaml:"base_path"`
}

// LimitsConfig holds protocol limits.
type LimitsConfig struct {
	// MaxFrameSize bounds inbound frames in bytes; oversize frames close
	// the connection.
	MaxFrameSize int64 `yaml:"max_frame_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns a configuration with the built-in defaults applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			WSAddr:   ":8765",
			HTTPAddr: ":8080",
		},
		Tools: ToolsConfig{
			BasePath: ".",
		},
		Limits: LimitsConfig{
			MaxFrameSize: 1 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded.
// Missing fields fall back to defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and
// valid. Returns an error describing the first validation failure.
func (c *Config) Validate() error {
	if c.Server.WSAddr == "" {
		return fmt.Errorf("server.ws_addr is required")
	}
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Tools.BasePath == "" {
		return fmt.Errorf("tools.base_path is required")
	}
	if c.Limits.MaxFrameSize <= 0 {
		return fmt.Errorf("limits.max_frame_size must be positive")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}

	return nil
}
