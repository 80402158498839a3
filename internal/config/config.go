package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// LogFormat selects the slog handler
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// DefaultDebounce is the quiet period before a watch re-run
const DefaultDebounce = 300 * time.Millisecond

// Config represents the complete gemmirror configuration
type Config struct {
	Workers int         `yaml:"workers"`
	Verbose bool        `yaml:"verbose"`
	Log     LogConfig   `yaml:"log"`
	Watch   WatchConfig `yaml:"watch"`

	// Paths come from the command line, never from the file.
	Paths PathsConfig `yaml:"-"`
}

// LogConfig configures diagnostic logging
type LogConfig struct {
	Level  string    `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// WatchConfig configures watch mode
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// PathsConfig holds the input and output trees
type PathsConfig struct {
	Input  string
	Output string
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.validateSettings(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Log.Level = os.ExpandEnv(c.Log.Level)
	c.Log.Format = LogFormat(os.ExpandEnv(string(c.Log.Format)))
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = LogFormatText
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = DefaultDebounce
	}
}

// Validate checks the configuration for errors, including the paths
func (c *Config) Validate() error {
	if err := c.validateSettings(); err != nil {
		return err
	}

	if c.Paths.Input == "" {
		return fmt.Errorf("input directory is required")
	}
	if c.Paths.Output == "" {
		return fmt.Errorf("output directory is required")
	}

	return nil
}

func (c *Config) validateSettings() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative: %d", c.Workers)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid log.level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	switch c.Log.Format {
	case LogFormatText, LogFormatJSON:
		// valid
	default:
		return fmt.Errorf("invalid log.format: %s (must be text or json)", c.Log.Format)
	}

	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative: %s", c.Watch.Debounce)
	}

	return nil
}

// Resolve makes the paths usable by the mirror engine: the input becomes
// its canonical absolute form and must exist, the output becomes absolute.
func (c *Config) Resolve() error {
	in, err := filepath.Abs(c.Paths.Input)
	if err != nil {
		return fmt.Errorf("failed to resolve input directory: %w", err)
	}
	in, err = filepath.EvalSymlinks(in)
	if err != nil {
		return fmt.Errorf("failed to resolve input directory: %w", err)
	}

	out, err := filepath.Abs(c.Paths.Output)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}

	c.Paths.Input = in
	c.Paths.Output = out
	return nil
}
