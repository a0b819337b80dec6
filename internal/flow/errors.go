package flow

import (
	"errors"
	"fmt"

	"focusdojo/internal/generation"
)

// InvalidInputError rejects user input without changing screens.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransitionError is returned for an intent the current screen does not offer.
type TransitionError struct {
	Op   string
	From Screen
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s is not available on %s", e.Op, e.From)
}

var ErrClosed = errors.New("flow machine closed")

// userMessage is the text shown on the origin screen after a failed run.
func userMessage(err error) string {
	var genErr *generation.GenerationError
	switch {
	case errors.Is(err, generation.ErrConcurrentGeneration):
		return "A puzzle is already being generated. Please wait a moment and try again."
	case errors.As(err, &genErr):
		return fmt.Sprintf("Could not create the puzzle (%s step): %v", genErr.Step, genErr.Err)
	case errors.Is(err, generation.ErrEmptyPrompt):
		return "Please describe a scene first."
	default:
		return fmt.Sprintf("Could not create the puzzle: %v", err)
	}
}
