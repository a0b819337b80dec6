package generation

import (
	"errors"
	"fmt"
)

type Step string

const (
	StepImage   Step = "image"
	StepVariant Step = "variant"
	StepText    Step = "text"
)

// GenerationError reports the pipeline step that failed.
type GenerationError struct {
	Step Step
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s: %v", e.Step, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ConcurrentGenerationError is returned while another run is outstanding.
type ConcurrentGenerationError struct{}

func (ConcurrentGenerationError) Error() string {
	return "a puzzle is already being generated"
}

var ErrConcurrentGeneration error = ConcurrentGenerationError{}

var (
	ErrNoImage     = errors.New("provider returned no image")
	ErrEmptyPrompt = errors.New("prompt is empty")
)
