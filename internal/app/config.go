package app

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds everything an App instance needs to run.
type Config struct {
	// ManifestPath is a manifest file or a directory searched for
	// manifest files.
	ManifestPath string
	// Targets are the node addresses to bring up to date; empty means
	// every sink of the graph.
	Targets []string
	// Vars override same-named entries of the manifest's vars blocks.
	Vars map[string]string

	Jobs      int
	LogLevel  string
	LogFormat string
}

// NewConfig validates a configuration.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ManifestPath == "" {
		return nil, errors.New("ManifestPath is a required configuration field and cannot be empty")
	}
	if cfg.Jobs < 1 {
		return nil, fmt.Errorf("Jobs must be at least 1, got %d", cfg.Jobs)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid LogFormat %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid LogLevel %q", cfg.LogLevel)
	}
	return &cfg, nil
}

// FileConfig is the optional YAML configuration file. Values from the file
// sit between built-in defaults and explicit command-line flags.
type FileConfig struct {
	Jobs      int               `yaml:"jobs"`
	LogLevel  string            `yaml:"log_level"`
	LogFormat string            `yaml:"log_format"`
	Vars      map[string]string `yaml:"vars"`
}

// LoadFileConfig reads and decodes the YAML configuration file at path.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return &fc, nil
}
