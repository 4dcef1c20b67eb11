package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds client preferences
type Config struct {
	BackendURL string `json:"backend_url"` // RAG backend base URL
	Theme      string `json:"theme"`       // "light" or "dark"
	StateDir   string `json:"state_dir"`   // where settings/upload snapshots live
	HistoryDB  string `json:"history_db"`  // sqlite turn archive path
	// WatchDebounceSeconds is how long a dropped file must sit quiet before
	// the watch command uploads it.
	WatchDebounceSeconds int `json:"watch_debounce_seconds"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BackendURL:           "http://127.0.0.1:8000",
		Theme:                "light",
		WatchDebounceSeconds: 2,
	}
}

// ConfigDir returns the directory where config is stored
func ConfigDir() (string, error) {
	// Prefer project-local .ragbench directory if present
	if cwd, err := os.Getwd(); err == nil {
		localDir := filepath.Join(cwd, ".ragbench")
		if stat, err := os.Stat(localDir); err == nil && stat.IsDir() {
			return localDir, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ragbench"), nil
}

// ConfigFile returns the full path to the config file
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the configuration from disk, filling defaults for fields the
// file leaves empty.
func Load() (Config, error) {
	path, err := ConfigFile()
	if err != nil {
		return DefaultConfig(), err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return DefaultConfig(), err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), err
	}
	return cfg, nil
}

// Save writes the configuration to disk
func Save(cfg Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(dir, "config.json")
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// StateDir resolves the state directory, defaulting next to the config.
func (c Config) ResolveStateDir() string {
	if c.StateDir != "" {
		return c.StateDir
	}
	dir, err := ConfigDir()
	if err != nil {
		return ".ragbench-state"
	}
	return filepath.Join(dir, "state")
}

// ResolveHistoryDB resolves the turn archive path, defaulting next to the
// config.
func (c Config) ResolveHistoryDB() string {
	if c.HistoryDB != "" {
		return c.HistoryDB
	}
	dir, err := ConfigDir()
	if err != nil {
		return "ragbench-history.db"
	}
	return filepath.Join(dir, "history.db")
}
