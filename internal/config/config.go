// Package config loads stratum's runtime configuration from an HCL file.
// Flags override file values; the file overrides built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Config is the stratum.hcl document.
//
//	db_path   = "/var/lib/stratum/nodes.db"
//	owner     = "team-platform"
//	log_level = "debug"
type Config struct {
	DBPath   string `hcl:"db_path,optional"`
	Owner    string `hcl:"owner,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath:   "stratum.db",
		LogLevel: "warn",
	}
}

// Load reads the config file at path. A missing file is not an error —
// defaults apply. Fields left unset in the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	var loaded Config
	if err := hclsimple.DecodeFile(path, nil, &loaded); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if loaded.DBPath != "" {
		cfg.DBPath = loaded.DBPath
	}
	if loaded.Owner != "" {
		cfg.Owner = loaded.Owner
	}
	if loaded.LogLevel != "" {
		cfg.LogLevel = loaded.LogLevel
	}
	return cfg, nil
}
