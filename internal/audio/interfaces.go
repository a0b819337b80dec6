package audio

import "context"

type Tone string

const (
	ToneClick   Tone = "click"
	ToneSuccess Tone = "success"
)

// Notifier plays feedback. Callers treat it as fire-and-forget.
type Notifier interface {
	PlayTone(ctx context.Context, kind Tone) error
	Speak(ctx context.Context, text string) error
}

type EngineInfo struct {
	Name string
	Path string
}

type Nop struct{}

func (Nop) PlayTone(context.Context, Tone) error { return nil }
func (Nop) Speak(context.Context, string) error  { return nil }
