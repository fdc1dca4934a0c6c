/*
Package config loads the process-level configuration every embedding
binary needs: where on disk a boltprovider-backed deployment stores its
state, the local client identity, how aggressively to debounce saves, and
whether to additionally write the human-readable JSON mirror.

Config loads from a YAML file (gopkg.in/yaml.v3, the same serialization
library the rest of the core uses for schema export/import) with cobra +
pflag-bound flags taking precedence over the file: flags are the
operator's override, the file is the durable default.
*/
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config holds the settings a boltprovider-backed embedding process
// needs at startup.
type Config struct {
	// DataDir is the directory boltprovider's state.bolt (and, with
	// JSONMirror, its snapshots/ directory) lives in.
	DataDir string `yaml:"data_dir"`
	// ClientID identifies this process as a CRDT client across every
	// document it opens.
	ClientID string `yaml:"client_id"`
	// Debounce coalesces rapid commits into one provider save.
	Debounce time.Duration `yaml:"debounce"`
	// JSONMirror additionally writes a readable snapshot per save.
	JSONMirror bool `yaml:"json_mirror"`
	// LogLevel is one of debug/info/warn/error.
	LogLevel string `yaml:"log_level"`
	// LogJSON selects structured JSON log output over the console writer.
	LogJSON bool `yaml:"log_json"`
}

// Default returns a Config with sensible defaults for local development:
// a "./data" data directory, the fixed client ID "local",
// a 250ms debounce, no JSON mirror, info logging.
func Default() Config {
	return Config{
		DataDir:    "./data",
		ClientID:   "local",
		Debounce:   250 * time.Millisecond,
		JSONMirror: false,
		LogLevel:   "info",
		LogJSON:    false,
	}
}

// Load reads path as YAML over Default(), returning Default() unchanged
// if path is empty or does not exist (a missing config file is not an
// error: every field has a usable default).
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating the file if needed.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %q: %w", path, err)
	}
	return nil
}

// BindFlags registers one flag per Config field on fs, each defaulting to
// Default()'s value. Call this once at command construction, before
// cobra parses args, then call ApplyFlags after parsing to layer the
// parsed values over a file-loaded Config.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("data-dir", d.DataDir, "directory for persisted workspace state")
	fs.String("client-id", d.ClientID, "local client identity")
	fs.Duration("debounce", d.Debounce, "delay before a provider flushes a commit to disk")
	fs.Bool("json-mirror", d.JSONMirror, "also write a human-readable JSON snapshot per save")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.Bool("log-json", d.LogJSON, "output logs in JSON format")
}

// ApplyFlags overlays every flag on fs that was explicitly set by the
// operator onto cfg, so an on-disk config file provides defaults while a
// flag always wins.
func ApplyFlags(fs *pflag.FlagSet, cfg *Config) {
	if fs.Changed("data-dir") {
		cfg.DataDir, _ = fs.GetString("data-dir")
	}
	if fs.Changed("client-id") {
		cfg.ClientID, _ = fs.GetString("client-id")
	}
	if fs.Changed("debounce") {
		cfg.Debounce, _ = fs.GetDuration("debounce")
	}
	if fs.Changed("json-mirror") {
		cfg.JSONMirror, _ = fs.GetBool("json-mirror")
	}
	if fs.Changed("log-level") {
		cfg.LogLevel, _ = fs.GetString("log-level")
	}
	if fs.Changed("log-json") {
		cfg.LogJSON, _ = fs.GetBool("log-json")
	}
}

// FromCommand loads Config from the optional --config file, then layers
// cmd's parsed persistent flags over it.
func FromCommand(cmd *cobra.Command, configPath string) (Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return cfg, err
	}
	ApplyFlags(cmd.Flags(), &cfg)
	return cfg, nil
}
