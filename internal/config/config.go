// Package config loads engine settings from an optional loom.hcl file.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// DefaultFileName is looked up in the project directory.
const DefaultFileName = "loom.hcl"

// Sync tunes disk synchronization.
type Sync struct {
	Parallelism int
	Validate    bool
	Format      bool
}

// Journal tunes turn journaling.
type Journal struct {
	Enabled bool
}

// Mount tunes the staging NFS mount.
type Mount struct {
	Port int
}

// Config is the full engine configuration with defaults applied.
type Config struct {
	LogLevel string
	Sync     *Sync
	Journal  *Journal
	Mount    *Mount
}

// Default returns the configuration used when no loom.hcl exists.
func Default() Config {
	return Config{
		LogLevel: "info",
		Sync:     &Sync{Parallelism: 8, Validate: true, Format: true},
		Journal:  &Journal{Enabled: true},
		Mount:    &Mount{Port: 0},
	}
}

// fileConfig mirrors Config with pointer fields so only attributes the
// file actually sets overlay the defaults.
type fileConfig struct {
	LogLevel string       `hcl:"log_level,optional"`
	Sync     *fileSync    `hcl:"sync,block"`
	Journal  *fileJournal `hcl:"journal,block"`
	Mount    *fileMount   `hcl:"mount,block"`
}

type fileSync struct {
	Parallelism *int  `hcl:"parallelism,optional"`
	Validate    *bool `hcl:"validate,optional"`
	Format      *bool `hcl:"format,optional"`
}

type fileJournal struct {
	Enabled *bool `hcl:"enabled,optional"`
}

type fileMount struct {
	Port *int `hcl:"port,optional"`
}

// Load reads path and overlays it onto the defaults. A missing file is
// not an error; the defaults are returned. Attributes absent from the
// file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	var file fileConfig
	if err := hclsimple.DecodeFile(path, nil, &file); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}

	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.Sync != nil {
		if file.Sync.Parallelism != nil && *file.Sync.Parallelism > 0 {
			cfg.Sync.Parallelism = *file.Sync.Parallelism
		}
		if file.Sync.Validate != nil {
			cfg.Sync.Validate = *file.Sync.Validate
		}
		if file.Sync.Format != nil {
			cfg.Sync.Format = *file.Sync.Format
		}
	}
	if file.Journal != nil && file.Journal.Enabled != nil {
		cfg.Journal.Enabled = *file.Journal.Enabled
	}
	if file.Mount != nil && file.Mount.Port != nil && *file.Mount.Port > 0 {
		cfg.Mount.Port = *file.Mount.Port
	}
	return cfg, nil
}
