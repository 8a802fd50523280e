package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" || cfg.API.Port != 8753 {
		t.Errorf("API defaults = %s:%d", cfg.API.Host, cfg.API.Port)
	}
	if !cfg.API.Metrics {
		t.Error("metrics should default on")
	}
	if cfg.API.AuthSecret != "" {
		t.Error("auth should default off")
	}
	if cfg.Settlement.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.Settlement.MaxRetries)
	}
	if cfg.LLM.Model == "" {
		t.Error("default model missing")
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != 8753 {
		t.Errorf("Port = %d, want default", cfg.API.Port)
	}
}

func TestLoadConfig_LayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	raw := `
[api]
port = 9000
auth_secret = "hunter2"

[llm]
api_key = "k"
timeout = "5s"

[settlement]
max_retries = 7
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("Host = %q, want default to survive", cfg.API.Host)
	}
	if cfg.API.AuthSecret != "hunter2" {
		t.Errorf("AuthSecret = %q", cfg.API.AuthSecret)
	}
	if cfg.Settlement.MaxRetries != 7 {
		t.Errorf("MaxRetries = %d, want 7", cfg.Settlement.MaxRetries)
	}
	if got := cfg.LLM.LLMTimeout(); got != 5*time.Second {
		t.Errorf("LLMTimeout() = %v, want 5s", got)
	}
}

func TestLoadConfig_EnvKeyFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "from-env" {
		t.Errorf("APIKey = %q, want env fallback", cfg.LLM.APIKey)
	}
}

func TestLLMTimeout_Invalid(t *testing.T) {
	c := LLMConfig{Timeout: "bogus"}
	if got := c.LLMTimeout(); got != 30*time.Second {
		t.Errorf("LLMTimeout() = %v, want 30s fallback", got)
	}
}
