// CLAUDE:SUMMARY Configuration for domfinder: storage paths, exclusions, fetch settings, palette; YAML loading with defaults.
package domfinder

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/domfinder/domfinder/internal/resolve"
	"github.com/hazyhaar/domfinder/horosafe"
)

// Config holds the domfinder configuration.
type Config struct {
	// DataDir is the directory holding the storage file. Default: ".".
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// StorageFile is the CSV file name, relative to DataDir.
	// Default: "found_domains.csv".
	StorageFile string `json:"storage_file" yaml:"storage_file"`

	// HistoryDB is the SQLite history path. Empty disables history.
	HistoryDB string `json:"history_db" yaml:"history_db"`

	// Exclude lists URL prefixes dropped from every extraction.
	// Nil means the built-in list.
	Exclude []string `json:"exclude" yaml:"exclude"`

	Fetch resolve.Config `json:"fetch" yaml:"fetch"`

	// Palette holds the row background colours of the result table.
	Palette []string `json:"palette" yaml:"palette"`

	// MaxFormBytes caps the submitted form. Default: 1 MiB.
	MaxFormBytes int64 `json:"max_form_bytes" yaml:"max_form_bytes"`
}

func (c *Config) defaults() {
	if c.DataDir == "" {
		c.DataDir = "."
	}
	if c.StorageFile == "" {
		c.StorageFile = "found_domains.csv"
	}
	if c.MaxFormBytes <= 0 {
		c.MaxFormBytes = 1 << 20
	}
}

// StoragePath joins StorageFile under DataDir, refusing names that escape it.
func (c Config) StoragePath() (string, error) {
	c.defaults()
	p, err := horosafe.SafePath(c.DataDir, c.StorageFile)
	if err != nil {
		return "", fmt.Errorf("domfinder: storage file %q: %w", c.StorageFile, err)
	}
	return p, nil
}

// LoadConfigFile reads a YAML configuration file. Missing fields keep their
// zero value and are defaulted by New.
func LoadConfigFile(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("domfinder: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("domfinder: parse config %s: %w", path, err)
	}
	return cfg, nil
}
