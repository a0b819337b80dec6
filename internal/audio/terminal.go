package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

var speechEngines = []string{"spd-say", "espeak-ng", "espeak", "say"}

var ErrNoSpeechEngine = errors.New("no speech engine found in PATH")

// Terminal rings the terminal bell for tones and shells out to a local
// speech engine for speech.
type Terminal struct {
	mode string
	out  io.Writer

	mu       sync.Mutex
	engine   EngineInfo
	detected bool

	lookPath func(string) (string, error)
	command  func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewTerminal builds a notifier for mode "bell" (tones only) or "speech"
// (tones and speech). Any other mode behaves like "bell".
func NewTerminal(mode string, out io.Writer) *Terminal {
	if out == nil {
		out = os.Stderr
	}
	if mode == "" {
		mode = "speech"
	}
	return &Terminal{
		mode:     mode,
		out:      out,
		lookPath: exec.LookPath,
		command:  exec.CommandContext,
	}
}

// New returns the notifier for a configured audio mode.
func New(mode string, out io.Writer) Notifier {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "off", "none":
		return Nop{}
	default:
		return NewTerminal(mode, out)
	}
}

func (t *Terminal) PlayTone(_ context.Context, kind Tone) error {
	bells := "\a"
	if kind == ToneSuccess {
		bells = "\a\a"
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.out, bells)
	return err
}

func (t *Terminal) Speak(ctx context.Context, text string) error {
	if t.mode != "speech" {
		return nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	info, err := t.Detect(ctx, "")
	if err != nil {
		return err
	}
	out, err := t.command(ctx, info.Path, text).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %s", info.Name, strings.TrimSpace(string(out)))
	}
	return nil
}

// Detect finds the first available speech engine, or validates forceEngine
// when set. The result is cached.
func (t *Terminal) Detect(_ context.Context, forceEngine string) (EngineInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if forceEngine == "" && t.detected {
		if t.engine.Name == "" {
			return EngineInfo{}, ErrNoSpeechEngine
		}
		return t.engine, nil
	}
	candidates := speechEngines
	if forceEngine != "" {
		candidates = []string{forceEngine}
	}
	for _, name := range candidates {
		path, err := t.lookPath(name)
		if err != nil {
			continue
		}
		t.engine = EngineInfo{Name: name, Path: path}
		t.detected = true
		return t.engine, nil
	}
	if forceEngine != "" {
		return EngineInfo{}, fmt.Errorf("%s not found in PATH", forceEngine)
	}
	t.detected = true
	return EngineInfo{}, ErrNoSpeechEngine
}
