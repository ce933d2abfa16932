// Package config provides the ProjectConfig struct and loader for
// .reasonbench.yaml project-level configuration files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default values for project configuration. These are the single source of
// truth; New() references them and no other code should duplicate them.
const (
	DefaultDatasetsDir    = "datasets/"
	DefaultExperimentsDir = ".reasonbench/experiments"

	DefaultProvider    = "scripted"
	DefaultModel       = "demo"
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 1024
	DefaultWorkers     = 4

	DefaultServerHost = "127.0.0.1"
	DefaultServerPort = 8080

	DefaultProgressRetentionMinutes = 10
)

// ConfigFileName is the project configuration file searched for by Load.
const ConfigFileName = ".reasonbench.yaml"

// PathsConfig holds directory paths for datasets and experiments.
type PathsConfig struct {
	Datasets    string `yaml:"datasets,omitempty"`
	Experiments string `yaml:"experiments,omitempty"`
}

// DefaultsConfig holds default evaluation parameters.
type DefaultsConfig struct {
	Provider    string   `yaml:"provider,omitempty"`
	Model       string   `yaml:"model,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   int      `yaml:"max_tokens,omitempty"`
	CoT         *bool    `yaml:"cot,omitempty"`
	Parallel    *bool    `yaml:"parallel,omitempty"`
	Workers     int      `yaml:"workers,omitempty"`
}

// ServerConfig holds API server settings.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// ProgressConfig holds progress tracker settings.
type ProgressConfig struct {
	RetentionMinutes int `yaml:"retention_minutes,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .reasonbench.yaml.
type ProjectConfig struct {
	Paths    PathsConfig    `yaml:"paths,omitempty"`
	Defaults DefaultsConfig `yaml:"defaults,omitempty"`
	Server   ServerConfig   `yaml:"server,omitempty"`
	Progress ProgressConfig `yaml:"progress,omitempty"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Paths: PathsConfig{
			Datasets:    DefaultDatasetsDir,
			Experiments: DefaultExperimentsDir,
		},
		Defaults: DefaultsConfig{
			Provider:    DefaultProvider,
			Model:       DefaultModel,
			Temperature: floatPtr(DefaultTemperature),
			MaxTokens:   DefaultMaxTokens,
			CoT:         boolPtr(true),
			Parallel:    boolPtr(true),
			Workers:     DefaultWorkers,
		},
		Server: ServerConfig{
			Host: DefaultServerHost,
			Port: DefaultServerPort,
		},
		Progress: ProgressConfig{
			RetentionMinutes: DefaultProgressRetentionMinutes,
		},
	}
}

// Load finds .reasonbench.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // no file found → return defaults
		}
		return nil, fmt.Errorf("loading %s: %w", ConfigFileName, err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ConfigFileName, err)
	}

	mergeConfig(cfg, &fileCfg)
	return cfg, nil
}

// findConfigFile walks up from dir looking for .reasonbench.yaml (max 10
// levels). Returns os.ErrNotExist if no config file is found. Propagates
// real I/O errors (e.g. permission denied) instead of silently swallowing
// them.
func findConfigFile(dir string) ([]byte, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, ConfigFileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Paths
	if src.Paths.Datasets != "" {
		dst.Paths.Datasets = src.Paths.Datasets
	}
	if src.Paths.Experiments != "" {
		dst.Paths.Experiments = src.Paths.Experiments
	}

	// Defaults
	if src.Defaults.Provider != "" {
		dst.Defaults.Provider = src.Defaults.Provider
	}
	if src.Defaults.Model != "" {
		dst.Defaults.Model = src.Defaults.Model
	}
	if src.Defaults.Temperature != nil {
		dst.Defaults.Temperature = src.Defaults.Temperature
	}
	if src.Defaults.MaxTokens != 0 {
		dst.Defaults.MaxTokens = src.Defaults.MaxTokens
	}
	if src.Defaults.CoT != nil {
		dst.Defaults.CoT = src.Defaults.CoT
	}
	if src.Defaults.Parallel != nil {
		dst.Defaults.Parallel = src.Defaults.Parallel
	}
	if src.Defaults.Workers != 0 {
		dst.Defaults.Workers = src.Defaults.Workers
	}

	// Server
	if src.Server.Host != "" {
		dst.Server.Host = src.Server.Host
	}
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}

	// Progress
	if src.Progress.RetentionMinutes != 0 {
		dst.Progress.RetentionMinutes = src.Progress.RetentionMinutes
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func floatPtr(f float64) *float64 {
	return &f
}
