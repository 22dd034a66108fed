package excelgrid

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the viewer command: what to serve and where from.
type ServerConfig struct {
	// Listen is the address the HTTP server binds to.
	Listen string `yaml:"listen"`
	// File is the .xlsx workbook to load the grid from.
	File string `yaml:"file"`
	// Sheet is the workbook sheet holding the grid.
	Sheet string `yaml:"sheet"`
	// Store is an optional bbolt database path. When set, edits persist
	// there and a restarted server resumes from the stored state instead of
	// the workbook.
	Store string `yaml:"store"`
}

// DefaultServerConfig returns the config used when no file is given.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{Listen: ":8080"}
}

// LoadServerConfig reads a YAML config file on top of the defaults.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("cannot parse config %s: %w", path, err)
	}
	return cfg, nil
}
