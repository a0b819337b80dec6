package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"focusdojo/internal/generation"
)

type Config struct {
	Name    string
	Gemini  GeminiConfig
	Latency time.Duration
}

// New builds the content provider named by cfg.Name ("gemini" or
// "procedural").
func New(ctx context.Context, cfg Config) (generation.ContentProvider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "gemini":
		return NewGemini(ctx, cfg.Gemini)
	case "procedural", "offline":
		return NewProcedural(WithLatency(cfg.Latency)), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}
