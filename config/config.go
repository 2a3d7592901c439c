// Package config provides configuration loading and management for paramspec.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete paramspec configuration
type Config struct {
	Spec        SpecConfig        `yaml:"spec"`
	Propagation PropagationConfig `yaml:"propagation"`
	Scan        ScanConfig        `yaml:"scan"`
	Export      ExportConfig      `yaml:"export"`
	Watch       WatchConfig       `yaml:"watch"`
}

// SpecConfig configures the parameter specification source
type SpecConfig struct {
	// Path is the parameter spec file (default: parameters.yaml)
	Path string `yaml:"path"`
}

// PropagationConfig configures uncertainty propagation
type PropagationConfig struct {
	// Samples is the Monte Carlo sample count
	Samples int `yaml:"samples"`
	// Seed is the Monte Carlo RNG seed
	Seed uint64 `yaml:"seed"`
	// Workers is the Monte Carlo worker count (0 = GOMAXPROCS)
	Workers int `yaml:"workers"`
	// Timeout is the Monte Carlo budget before degrading to analytic (e.g., "30s")
	Timeout string `yaml:"timeout"`
}

// ToleranceConfig configures a per-category comparison tolerance.
// Exactly one of absolute or relative should be set.
type ToleranceConfig struct {
	Absolute float64 `yaml:"absolute,omitempty"`
	Relative float64 `yaml:"relative,omitempty"`
}

// ScanConfig configures the document scanner
type ScanConfig struct {
	// Root is the document corpus root (default: current directory)
	Root string `yaml:"root"`
	// Globs select corpus files relative to Root
	Globs []string `yaml:"globs"`
	// ExcludeDirs are directory names skipped during corpus resolution
	ExcludeDirs []string `yaml:"exclude_dirs"`
	// Tolerances maps a parameter category to its comparison tolerance
	Tolerances map[string]ToleranceConfig `yaml:"tolerances"`
	// DefaultTolerance applies to categories with no entry in Tolerances
	DefaultTolerance *ToleranceConfig `yaml:"default_tolerance"`
	// NumberingPattern matches sequence markers; must have one capture group
	NumberingPattern string `yaml:"numbering_pattern"`
	// Workers is the scanner worker count (0 = GOMAXPROCS)
	Workers int `yaml:"workers"`
}

// ExportConfig configures artifact export
type ExportConfig struct {
	// Dir is the artifact output directory (default: dist)
	Dir string `yaml:"dir"`
}

// WatchConfig configures watch mode
type WatchConfig struct {
	// Debounce is the quiet interval before a rebuild (e.g., "500ms")
	Debounce string `yaml:"debounce"`
	// MetricsAddr is the Prometheus listen address (empty = disabled)
	MetricsAddr string `yaml:"metrics_addr"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Spec: SpecConfig{
			Path: "parameters.yaml",
		},
		Propagation: PropagationConfig{
			Samples: 10000,
			Seed:    1,
			Workers: 0,
			Timeout: "30s",
		},
		Scan: ScanConfig{
			Root:             ".",
			Globs:            []string{"**/*.md", "**/*.html"},
			ExcludeDirs:      []string{".git", "node_modules", "dist"},
			NumberingPattern: `\(S(\d+)\)`,
			Workers:          0,
		},
		Export: ExportConfig{
			Dir: "dist",
		},
		Watch: WatchConfig{
			Debounce:    "500ms",
			MetricsAddr: "",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Spec.Path == "" {
		return fmt.Errorf("spec.path is required")
	}
	if c.Propagation.Samples <= 0 {
		return fmt.Errorf("propagation.samples must be positive")
	}
	if c.Propagation.Workers < 0 {
		return fmt.Errorf("propagation.workers must not be negative")
	}
	if _, err := c.PropagationTimeout(); err != nil {
		return fmt.Errorf("propagation.timeout: %w", err)
	}
	if len(c.Scan.Globs) == 0 {
		return fmt.Errorf("scan.globs must not be empty")
	}
	for cat, tol := range c.Scan.Tolerances {
		if err := tol.validate(); err != nil {
			return fmt.Errorf("scan.tolerances[%s]: %w", cat, err)
		}
	}
	if c.Scan.DefaultTolerance != nil {
		if err := c.Scan.DefaultTolerance.validate(); err != nil {
			return fmt.Errorf("scan.default_tolerance: %w", err)
		}
	}
	if c.Export.Dir == "" {
		return fmt.Errorf("export.dir is required")
	}
	if _, err := c.WatchDebounce(); err != nil {
		return fmt.Errorf("watch.debounce: %w", err)
	}
	return nil
}

func (t ToleranceConfig) validate() error {
	if t.Absolute < 0 || t.Relative < 0 {
		return fmt.Errorf("tolerance must not be negative")
	}
	if t.Absolute > 0 && t.Relative > 0 {
		return fmt.Errorf("absolute and relative tolerance are mutually exclusive")
	}
	return nil
}

// PropagationTimeout parses the Monte Carlo timeout
func (c *Config) PropagationTimeout() (time.Duration, error) {
	if c.Propagation.Timeout == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(c.Propagation.Timeout)
}

// WatchDebounce parses the watch debounce interval
func (c *Config) WatchDebounce() (time.Duration, error) {
	if c.Watch.Debounce == "" {
		return 500 * time.Millisecond, nil
	}
	return time.ParseDuration(c.Watch.Debounce)
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Spec
	if other.Spec.Path != "" {
		c.Spec.Path = other.Spec.Path
	}

	// Propagation
	if other.Propagation.Samples != 0 {
		c.Propagation.Samples = other.Propagation.Samples
	}
	if other.Propagation.Seed != 0 {
		c.Propagation.Seed = other.Propagation.Seed
	}
	if other.Propagation.Workers != 0 {
		c.Propagation.Workers = other.Propagation.Workers
	}
	if other.Propagation.Timeout != "" {
		c.Propagation.Timeout = other.Propagation.Timeout
	}

	// Scan
	if other.Scan.Root != "" {
		c.Scan.Root = other.Scan.Root
	}
	if len(other.Scan.Globs) > 0 {
		c.Scan.Globs = other.Scan.Globs
	}
	if len(other.Scan.ExcludeDirs) > 0 {
		c.Scan.ExcludeDirs = other.Scan.ExcludeDirs
	}
	if len(other.Scan.Tolerances) > 0 {
		c.Scan.Tolerances = other.Scan.Tolerances
	}
	if other.Scan.DefaultTolerance != nil {
		c.Scan.DefaultTolerance = other.Scan.DefaultTolerance
	}
	if other.Scan.NumberingPattern != "" {
		c.Scan.NumberingPattern = other.Scan.NumberingPattern
	}
	if other.Scan.Workers != 0 {
		c.Scan.Workers = other.Scan.Workers
	}

	// Export
	if other.Export.Dir != "" {
		c.Export.Dir = other.Export.Dir
	}

	// Watch
	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if other.Watch.MetricsAddr != "" {
		c.Watch.MetricsAddr = other.Watch.MetricsAddr
	}
}
