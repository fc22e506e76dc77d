// Package config loads the abiprobe configuration from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tmaxmax/abiprobe/pkg/logger"
	"github.com/tmaxmax/abiprobe/pkg/toolchain"
)

// Config represents the abiprobe configuration
type Config struct {
	Toolchains []toolchain.Spec `yaml:"toolchains"`
	Probe      ProbeConfig      `yaml:"probe"`
	Logging    LoggingConfig    `yaml:"logging"`
	History    HistoryConfig    `yaml:"history"`
}

// ProbeConfig represents matrix runner settings
type ProbeConfig struct {
	ScratchDir    string        `yaml:"scratch_dir"`
	Timeout       time.Duration `yaml:"timeout"`
	Parallelism   int           `yaml:"parallelism"`
	FailFast      bool          `yaml:"fail_fast"`
	Inspect       bool          `yaml:"inspect"`
	KeepArtifacts bool          `yaml:"keep_artifacts"`
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// HistoryConfig represents run history settings. An empty path disables history.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// Environment variables overriding the configuration file.
const (
	EnvScratchDir = "ABIPROBE_SCRATCH_DIR"
	EnvTimeout    = "ABIPROBE_TIMEOUT"
	EnvParallel   = "ABIPROBE_PARALLEL"
	EnvLogLevel   = "ABIPROBE_LOG_LEVEL"
	EnvLogFormat  = "ABIPROBE_LOG_FORMAT"
	EnvHistory    = "ABIPROBE_HISTORY"
)

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Toolchains: toolchain.DefaultSpecs(),
		Probe: ProbeConfig{
			Timeout:     2 * time.Minute,
			Parallelism: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from file and environment variables
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		if err := loadFromFile(path, config); err != nil {
			return nil, fmt.Errorf("config: failed to load %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file. Toolchains listed in the
// file replace the default ones; fields they leave out are taken from the
// default toolchain of their family.
func loadFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return err
	}

	for i, spec := range config.Toolchains {
		config.Toolchains[i] = completeSpec(spec)
	}

	return nil
}

func completeSpec(spec toolchain.Spec) toolchain.Spec {
	for _, def := range toolchain.DefaultSpecs() {
		if def.Family != spec.Family {
			continue
		}

		if spec.ID == "" {
			spec.ID = def.ID
		}
		if spec.Compiler == "" {
			spec.Compiler = def.Compiler
		}
		if spec.Archiver == "" {
			spec.Archiver = def.Archiver
		}
		if spec.Target == "" {
			spec.Target = def.Target
		}
		break
	}

	return spec
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(config *Config) error {
	if dir := os.Getenv(EnvScratchDir); dir != "" {
		config.Probe.ScratchDir = dir
	}

	if timeout := os.Getenv(EnvTimeout); timeout != "" {
		val, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		config.Probe.Timeout = val
	}

	if parallel := os.Getenv(EnvParallel); parallel != "" {
		val, err := strconv.Atoi(parallel)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvParallel, err)
		}
		config.Probe.Parallelism = val
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		config.Logging.Level = level
	}

	if format := os.Getenv(EnvLogFormat); format != "" {
		config.Logging.Format = format
	}

	if history := os.Getenv(EnvHistory); history != "" {
		config.History.Path = history
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Toolchains) == 0 {
		return fmt.Errorf("at least one toolchain must be configured")
	}

	seen := map[string]bool{}
	for _, spec := range c.Toolchains {
		if err := spec.Validate(); err != nil {
			return err
		}

		if seen[spec.ID] {
			return fmt.Errorf("duplicate toolchain id %q", spec.ID)
		}
		seen[spec.ID] = true
	}

	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("probe timeout must be positive")
	}

	if c.Probe.Parallelism < 1 {
		return fmt.Errorf("probe parallelism must be at least 1")
	}

	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// Select returns the toolchains with the given IDs in the requested order.
// All toolchains are returned if no ID is given.
func (c *Config) Select(ids []string) ([]toolchain.Spec, error) {
	if len(ids) == 0 {
		return append([]toolchain.Spec(nil), c.Toolchains...), nil
	}

	specs := make([]toolchain.Spec, 0, len(ids))
	seen := map[string]bool{}

	for _, id := range ids {
		id = strings.TrimSpace(id)
		if seen[id] {
			return nil, fmt.Errorf("config: toolchain %q requested twice", id)
		}
		seen[id] = true

		spec, ok := c.toolchain(id)
		if !ok {
			return nil, fmt.Errorf("config: unknown toolchain %q (configured: %s)", id, strings.Join(c.ids(), ", "))
		}
		specs = append(specs, spec)
	}

	return specs, nil
}

func (c *Config) toolchain(id string) (toolchain.Spec, bool) {
	for _, spec := range c.Toolchains {
		if spec.ID == id {
			return spec, true
		}
	}
	return toolchain.Spec{}, false
}

func (c *Config) ids() []string {
	ids := make([]string, 0, len(c.Toolchains))
	for _, spec := range c.Toolchains {
		ids = append(ids, spec.ID)
	}
	return ids
}

// String returns a string representation of the configuration (for logging)
func (c *Config) String() string {
	return fmt.Sprintf("Config{Toolchains: %s, Timeout: %s, Parallelism: %d, LogLevel: %s, History: %q}",
		strings.Join(c.ids(), ","), c.Probe.Timeout, c.Probe.Parallelism, c.Logging.Level, c.History.Path)
}
