package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"focusdojo/internal/provider"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "FOCUSDOJO_"

// Config controls runtime behavior for the TUI app.
type Config struct {
	Provider          string       `yaml:"provider" env:"PROVIDER"`
	Gemini            GeminiConfig `yaml:"gemini" envPrefix:"GEMINI_"`
	ProviderLatencyMS int          `yaml:"provider_latency_ms" env:"PROVIDER_LATENCY_MS"`
	CompletionDelayMS int          `yaml:"completion_delay_ms" env:"COMPLETION_DELAY_MS"`
	HistoryBackend    string       `yaml:"history_backend" env:"HISTORY_BACKEND"`
	CurriculumDir     string       `yaml:"curriculum_dir" env:"CURRICULUM_DIR"`
	Audio             string       `yaml:"audio" env:"AUDIO"`
	LogPath           string       `yaml:"log_path" env:"LOG_PATH"`
	Dev               bool         `yaml:"dev" env:"DEV"`
	DevHTTP           string       `yaml:"dev_http" env:"DEV_HTTP"`
	DemoScenario      string       `yaml:"demo" env:"DEMO"`
	CacheDir          string       `yaml:"cache_dir" env:"CACHE_DIR"`
	UI                UIConfig     `yaml:"ui" envPrefix:"UI_"`
}

type GeminiConfig struct {
	APIKey       string `yaml:"api_key" env:"API_KEY"`
	ImageModel   string `yaml:"image_model" env:"IMAGE_MODEL"`
	VariantModel string `yaml:"variant_model" env:"VARIANT_MODEL"`
	TextModel    string `yaml:"text_model" env:"TEXT_MODEL"`
	BaseURL      string `yaml:"base_url" env:"BASE_URL"`
}

type UIConfig struct {
	StyleVariant string `yaml:"style_variant" env:"STYLE_VARIANT"`
	MotionLevel  string `yaml:"motion_level" env:"MOTION_LEVEL"`
	ASCIIOnly    bool   `yaml:"ascii" env:"ASCII"`
	DebugLayout  bool   `yaml:"debug_layout" env:"DEBUG_LAYOUT"`
}

// apiKeyEnv picks up the key under its conventional unprefixed name.
type apiKeyEnv struct {
	APIKey string `env:"GEMINI_API_KEY"`
}

func DefaultConfig() Config {
	return Config{
		Gemini: GeminiConfig{
			ImageModel:   provider.DefaultImageModel,
			VariantModel: provider.DefaultVariantModel,
			TextModel:    provider.DefaultTextModel,
		},
		CompletionDelayMS: 1000,
		HistoryBackend:    "memory",
		Audio:             "speech",
		DevHTTP:           "127.0.0.1:17421",
		UI: UIConfig{
			StyleVariant: "modern_arcade",
			MotionLevel:  "full",
		},
	}
}

// LoadConfig layers defaults, the optional YAML file at path and the
// environment. A nil environ reads the process environment.
func LoadConfig(path string, environ map[string]string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.Gemini.APIKey == "" {
		var key apiKeyEnv
		if err := env.ParseWithOptions(&key, env.Options{Environment: environ}); err != nil {
			return cfg, fmt.Errorf("parse environment: %w", err)
		}
		cfg.Gemini.APIKey = key.APIKey
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = "procedural"
		if c.Gemini.APIKey != "" {
			c.Provider = "gemini"
		}
	}
	switch c.Provider {
	case "gemini":
		if c.Gemini.APIKey == "" {
			return errors.New("gemini provider requires GEMINI_API_KEY")
		}
	case "procedural", "offline":
	default:
		return fmt.Errorf("invalid provider %q", c.Provider)
	}
	if c.ProviderLatencyMS < 0 {
		return fmt.Errorf("invalid provider latency %dms", c.ProviderLatencyMS)
	}

	if c.CompletionDelayMS < 0 {
		return fmt.Errorf("invalid completion delay %dms", c.CompletionDelayMS)
	}
	if c.CompletionDelayMS == 0 {
		c.CompletionDelayMS = 1000
	}

	switch c.HistoryBackend {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("invalid history backend %q", c.HistoryBackend)
	}
	if c.HistoryBackend == "" {
		c.HistoryBackend = "memory"
	}

	switch c.Audio {
	case "", "off", "bell", "speech":
	default:
		return fmt.Errorf("invalid audio mode %q", c.Audio)
	}
	if c.Audio == "" {
		c.Audio = "speech"
	}

	switch c.UI.StyleVariant {
	case "", "modern_arcade", "cozy_clean", "retro_terminal":
	default:
		return fmt.Errorf("invalid ui style variant %q", c.UI.StyleVariant)
	}
	if c.UI.StyleVariant == "" {
		c.UI.StyleVariant = "modern_arcade"
	}
	switch c.UI.MotionLevel {
	case "", "off", "reduced", "full":
	default:
		return fmt.Errorf("invalid ui motion level %q", c.UI.MotionLevel)
	}
	if c.UI.MotionLevel == "" {
		c.UI.MotionLevel = "full"
	}

	if c.DemoScenario != "" {
		c.Dev = true
	}
	if c.Dev && c.DevHTTP == "" {
		c.DevHTTP = "127.0.0.1:17421"
	}

	if c.CacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.New("cannot resolve user home directory")
		}
		c.CacheDir = filepath.Join(home, ".cache", "focusdojo")
	}
	return nil
}

func (c Config) providerConfig() provider.Config {
	return provider.Config{
		Name: c.Provider,
		Gemini: provider.GeminiConfig{
			APIKey:       c.Gemini.APIKey,
			ImageModel:   c.Gemini.ImageModel,
			VariantModel: c.Gemini.VariantModel,
			TextModel:    c.Gemini.TextModel,
			BaseURL:      c.Gemini.BaseURL,
		},
		Latency: msDuration(c.ProviderLatencyMS),
	}
}
