package generation

import (
	"context"

	"focusdojo/internal/puzzle"
)

// ContentProvider is the generative backend consumed by the pipeline.
type ContentProvider interface {
	GenerateImage(ctx context.Context, prompt string, aspectRatio string) (puzzle.Image, error)
	// GenerateImageVariant may return an empty image without an error.
	GenerateImageVariant(ctx context.Context, base puzzle.Image, instruction string) (puzzle.Image, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
}

type Generator interface {
	GeneratePuzzle(ctx context.Context, prompt string, difficulty puzzle.Difficulty) (puzzle.Assets, error)
}
