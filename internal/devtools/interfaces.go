package devtools

import (
	"context"
	"time"

	"focusdojo/internal/interaction"
	"focusdojo/internal/puzzle"
)

type Demo interface {
	Resolve(name string) Scenario
	Names() []string
	Play(ctx context.Context, d Driver, sc Scenario, advance func(time.Duration)) error
	SetState(ctx context.Context, cacheDir string, state string, rendered bool) error
}

// Driver is the set of intents a scenario can issue.
type Driver interface {
	Home() error
	OpenModeSelect() error
	ChooseClassic() error
	ChooseCustom() error
	PickLevel(n int) error
	SubmitPrompt(prompt string, difficulty puzzle.Difficulty) error
	Tap(px, py, w, h float64) (interaction.Tap, error)
	Abort() error
	TryAnother() error
	OpenHistory() error
	OpenGuide() error
}
