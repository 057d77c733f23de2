// Package config loads rsnap's optional persistent configuration file,
// which pre-populates command-line flag defaults (exclusion pattern,
// one-filesystem, nobackup handling). It is grounded on the
// internal/config package used by the faize CLI: a YAML file under the
// user's home directory, loaded with gopkg.in/yaml.v3, with ~ expansion via
// go-homedir.
package config

import (
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Config represents rsnap's persisted defaults.
type Config struct {
	OneFilesystem   bool   `yaml:"one_filesystem"`
	RespectNobackup *bool  `yaml:"respect_nobackup"`
	Exclude         string `yaml:"exclude"`
	MaxSize         int64  `yaml:"max_size"`
	Format          string `yaml:"format"`
}

// ShouldRespectNobackup returns whether .nobackup markers should halt
// descent. It defaults to true (rdup's historical default) when unset.
func (c *Config) ShouldRespectNobackup() bool {
	if c.RespectNobackup == nil {
		return true
	}
	return *c.RespectNobackup
}

// DefaultPath returns ~/.rsnap/config.yaml.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".rsnap", "config.yaml"), nil
}

// Load reads and parses the configuration file at path. A missing file is
// not an error: it yields the zero Config, which ShouldRespectNobackup
// resolves to rsnap's built-in defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
