// Package daemon wires the long-running haggle service: configuration,
// store, actors, and the HTTP API.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level daemon configuration, loaded from TOML.
type Config struct {
	API        APIConfig        `toml:"api"`
	Store      StoreConfig      `toml:"store"`
	LLM        LLMConfig        `toml:"llm"`
	Settlement SettlementConfig `toml:"settlement"`
}

// APIConfig controls the HTTP server.
type APIConfig struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	AuthSecret string `toml:"auth_secret"` // empty disables bearer auth
	Metrics    bool   `toml:"metrics"`
}

// StoreConfig controls the SQLite trade store.
type StoreConfig struct {
	Path string `toml:"path"`
}

// LLMConfig controls the Gemini-backed dialogue actors.
type LLMConfig struct {
	APIKey  string `toml:"api_key"` // falls back to GEMINI_API_KEY
	Model   string `toml:"model"`
	Timeout string `toml:"timeout"` // per-utterance deadline, e.g. "30s"
}

// SettlementConfig controls the settlement engine.
type SettlementConfig struct {
	MaxRetries int `toml:"max_retries"`
}

// DefaultConfig returns the daemon defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    8753,
			Metrics: true,
		},
		Store: StoreConfig{
			Path: defaultStorePath(),
		},
		LLM: LLMConfig{
			Model:   "gemini-2.0-flash-001",
			Timeout: "30s",
		},
		Settlement: SettlementConfig{
			MaxRetries: 3,
		},
	}
}

// LoadConfig reads the TOML config at path, layered over the defaults.
// A missing file is not an error; defaults apply.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	return cfg, nil
}

// DefaultConfigPath returns the standard config location.
func DefaultConfigPath() string {
	return filepath.Join(homeDir(), "config.toml")
}

// LLMTimeout parses the configured per-utterance deadline.
func (c LLMConfig) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

func defaultStorePath() string {
	return filepath.Join(homeDir(), "haggle.db")
}

// homeDir returns the haggle state directory, honoring HAGGLE_HOME.
func homeDir() string {
	if env := os.Getenv("HAGGLE_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".haggle")
}
