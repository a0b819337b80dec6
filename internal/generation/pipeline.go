package generation

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"focusdojo/internal/puzzle"
	"focusdojo/internal/telemetry"

	"golang.org/x/sync/errgroup"
)

const DefaultAspectRatio = "16:9"

type Pipeline struct {
	provider    ContentProvider
	logger      *telemetry.Logger
	aspectRatio string
	busy        atomic.Bool
}

type Option func(*Pipeline)

func WithAspectRatio(ratio string) Option {
	return func(p *Pipeline) {
		if strings.TrimSpace(ratio) != "" {
			p.aspectRatio = ratio
		}
	}
}

func NewPipeline(provider ContentProvider, logger *telemetry.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{provider: provider, logger: logger, aspectRatio: DefaultAspectRatio}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Busy reports whether a run is outstanding.
func (p *Pipeline) Busy() bool { return p.busy.Load() }

// GeneratePuzzle produces a reference image, a variant with the difficulty's
// target number of changes, and a textual list of those changes. Only one run
// may be outstanding at a time.
func (p *Pipeline) GeneratePuzzle(ctx context.Context, prompt string, difficulty puzzle.Difficulty) (puzzle.Assets, error) {
	subject := strings.TrimSpace(prompt)
	if subject == "" {
		return puzzle.Assets{}, ErrEmptyPrompt
	}
	if !p.busy.CompareAndSwap(false, true) {
		return puzzle.Assets{}, ErrConcurrentGeneration
	}
	defer p.busy.Store(false)

	count := difficulty.TargetCount()
	started := time.Now()
	p.logger.Info("generation.begin", map[string]any{"difficulty": difficulty.String(), "target": count})

	reference, err := p.provider.GenerateImage(ctx, imagePrompt(subject), p.aspectRatio)
	if err != nil {
		return p.fail(StepImage, err)
	}
	if reference.Empty() {
		return p.fail(StepImage, ErrNoImage)
	}
	p.logger.Info("generation.image.done", map[string]any{"bytes": len(reference.Data), "mime": reference.MIMEType})

	var (
		variant puzzle.Image
		text    string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := p.provider.GenerateImageVariant(gctx, reference, variantInstruction(count))
		if err != nil {
			return &GenerationError{Step: StepVariant, Err: err}
		}
		variant = v
		return nil
	})
	g.Go(func() error {
		t, err := p.provider.GenerateText(gctx, differencesPrompt(subject, count))
		if err != nil {
			return &GenerationError{Step: StepText, Err: err}
		}
		text = t
		return nil
	})
	if err := g.Wait(); err != nil {
		p.logger.Error("generation.failed", map[string]any{"error": err.Error()})
		return puzzle.Assets{}, err
	}
	if variant.Empty() {
		p.logger.Error("generation.variant.empty", map[string]any{"target": count})
	}

	assets := puzzle.Assets{
		Reference:   reference,
		Variant:     variant,
		Differences: ParseDifferences(text, count),
	}
	p.logger.Info("generation.done", map[string]any{
		"differences": len(assets.Differences),
		"variant":     !variant.Empty(),
		"duration_ms": time.Since(started).Milliseconds(),
	})
	return assets, nil
}

func (p *Pipeline) fail(step Step, err error) (puzzle.Assets, error) {
	gerr := &GenerationError{Step: step, Err: err}
	p.logger.Error("generation.failed", map[string]any{"step": string(step), "error": err.Error()})
	return puzzle.Assets{}, gerr
}
