package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigLayersFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "focusdojo.yaml")
	raw := strings.Join([]string{
		"history_backend: sqlite",
		"completion_delay_ms: 250",
		"audio: bell",
		"ui:",
		"  style_variant: cozy_clean",
		"  motion_level: off",
	}, "\n")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path, map[string]string{
		"FOCUSDOJO_AUDIO":           "off",
		"FOCUSDOJO_UI_MOTION_LEVEL": "reduced",
		"FOCUSDOJO_GEMINI_BASE_URL": "http://localhost:9999",
		"GEMINI_API_KEY":            "secret",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HistoryBackend != "sqlite" || cfg.CompletionDelayMS != 250 {
		t.Fatalf("expected file values, got %+v", cfg)
	}
	if cfg.Audio != "off" {
		t.Fatalf("expected env to override audio, got %q", cfg.Audio)
	}
	if cfg.UI.StyleVariant != "cozy_clean" || cfg.UI.MotionLevel != "reduced" {
		t.Fatalf("unexpected ui config %+v", cfg.UI)
	}
	if cfg.Gemini.APIKey != "secret" || cfg.Gemini.BaseURL != "http://localhost:9999" {
		t.Fatalf("unexpected gemini config %+v", cfg.Gemini)
	}
	if cfg.Gemini.ImageModel == "" {
		t.Fatalf("expected default image model to survive layering")
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Provider != "gemini" {
		t.Fatalf("expected gemini when a key is present, got %q", cfg.Provider)
	}
}

func TestLoadConfigPrefixedKeyWins(t *testing.T) {
	cfg, err := LoadConfig("", map[string]string{
		"FOCUSDOJO_GEMINI_API_KEY": "prefixed",
		"GEMINI_API_KEY":           "plain",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gemini.APIKey != "prefixed" {
		t.Fatalf("expected prefixed key, got %q", cfg.Gemini.APIKey)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), map[string]string{}); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadConfigRejectsBadEnvValue(t *testing.T) {
	if _, err := LoadConfig("", map[string]string{"FOCUSDOJO_COMPLETION_DELAY_MS": "soon"}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := Config{CacheDir: t.TempDir()}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Provider != "procedural" {
		t.Fatalf("expected procedural without a key, got %q", cfg.Provider)
	}
	if cfg.CompletionDelayMS != 1000 {
		t.Fatalf("expected default completion delay, got %d", cfg.CompletionDelayMS)
	}
	if cfg.HistoryBackend != "memory" || cfg.Audio != "speech" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.UI.StyleVariant != "modern_arcade" || cfg.UI.MotionLevel != "full" {
		t.Fatalf("unexpected ui defaults %+v", cfg.UI)
	}
	if got := msDuration(cfg.CompletionDelayMS); got != time.Second {
		t.Fatalf("expected 1s, got %s", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown provider": func(c *Config) { c.Provider = "dalle" },
		"gemini no key":    func(c *Config) { c.Provider = "gemini" },
		"negative delay":   func(c *Config) { c.CompletionDelayMS = -1 },
		"negative latency": func(c *Config) { c.ProviderLatencyMS = -5 },
		"history backend":  func(c *Config) { c.HistoryBackend = "postgres" },
		"audio":            func(c *Config) { c.Audio = "loud" },
		"style":            func(c *Config) { c.UI.StyleVariant = "neon" },
		"motion":           func(c *Config) { c.UI.MotionLevel = "wild" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.CacheDir = t.TempDir()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestValidateDemoImpliesDev(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheDir = t.TempDir()
	cfg.DevHTTP = ""
	cfg.DemoScenario = "guide"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !cfg.Dev {
		t.Fatalf("expected demo scenario to enable dev mode")
	}
	if cfg.DevHTTP == "" {
		t.Fatalf("expected default dev http address")
	}
}

func TestProviderConfigCarriesLatency(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = "procedural"
	cfg.ProviderLatencyMS = 40
	pc := cfg.providerConfig()
	if pc.Name != "procedural" || pc.Latency != 40*time.Millisecond {
		t.Fatalf("unexpected provider config %+v", pc)
	}
	if pc.Gemini.TextModel != cfg.Gemini.TextModel {
		t.Fatalf("expected text model to be carried")
	}
}
