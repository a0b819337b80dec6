package devtools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"focusdojo/internal/puzzle"
)

type StepOp string

const (
	OpHome       StepOp = "home"
	OpModeSelect StepOp = "mode_select"
	OpClassic    StepOp = "classic"
	OpCustom     StepOp = "custom"
	OpPickLevel  StepOp = "pick_level"
	OpSubmit     StepOp = "submit"
	OpTap        StepOp = "tap"
	OpAbort      StepOp = "abort"
	OpTryAnother StepOp = "try_another"
	OpHistory    StepOp = "history"
	OpGuide      StepOp = "guide"
	OpWait       StepOp = "wait"
)

type Step struct {
	Op         StepOp
	Level      int
	Prompt     string
	Difficulty puzzle.Difficulty
	Count      int
	Wait       time.Duration
}

type Scenario struct {
	Name  string
	Steps []Step
}

const tapSurface = 1000

var scenarioNames = []string{
	"home", "mode_select", "classic_levels", "custom_prompt", "active",
	"report_success", "report_abort", "history", "guide",
}

type Manager struct{}

func NewManager() *Manager { return &Manager{} }

func (m *Manager) Names() []string { return append([]string(nil), scenarioNames...) }

func (m *Manager) Resolve(name string) Scenario {
	home := []Step{{Op: OpHome}}
	modes := append(home, Step{Op: OpModeSelect})
	success := append(append([]Step(nil), modes...),
		Step{Op: OpCustom},
		Step{Op: OpSubmit, Prompt: "a sunny kitchen with a fruit bowl and a teapot", Difficulty: puzzle.Easy},
		Step{Op: OpTap, Count: 3},
		Step{Op: OpWait, Wait: time.Second},
	)
	abort := append(append([]Step(nil), modes...),
		Step{Op: OpClassic},
		Step{Op: OpPickLevel, Level: 5},
		Step{Op: OpTap, Count: 2},
		Step{Op: OpAbort},
	)

	switch name {
	case "home":
		return Scenario{Name: name, Steps: home}
	case "mode_select":
		return Scenario{Name: name, Steps: modes}
	case "classic_levels":
		return Scenario{Name: name, Steps: append(modes, Step{Op: OpClassic})}
	case "custom_prompt":
		return Scenario{Name: name, Steps: append(modes, Step{Op: OpCustom})}
	case "active":
		return Scenario{Name: name, Steps: append(modes,
			Step{Op: OpClassic},
			Step{Op: OpPickLevel, Level: 4},
			Step{Op: OpTap, Count: 2},
			Step{Op: OpWait, Wait: 12 * time.Second},
		)}
	case "report_success":
		return Scenario{Name: name, Steps: success}
	case "report_abort":
		return Scenario{Name: name, Steps: abort}
	case "history":
		steps := append(success, Step{Op: OpTryAnother})
		steps = append(steps, abort[2:]...)
		return Scenario{Name: name, Steps: append(steps, Step{Op: OpHistory})}
	case "guide":
		return Scenario{Name: name, Steps: append(home, Step{Op: OpGuide})}
	default:
		return Scenario{Name: "home", Steps: home}
	}
}

// Play runs the scenario's steps against d. advance moves the clock used by
// the machine's scheduler; it may be nil when no step waits.
func (m *Manager) Play(ctx context.Context, d Driver, sc Scenario, advance func(time.Duration)) error {
	taps := 0
	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch step.Op {
		case OpHome:
			err = d.Home()
		case OpModeSelect:
			err = d.OpenModeSelect()
		case OpClassic:
			err = d.ChooseClassic()
		case OpCustom:
			err = d.ChooseCustom()
		case OpPickLevel:
			err = d.PickLevel(step.Level)
		case OpSubmit:
			err = d.SubmitPrompt(step.Prompt, step.Difficulty)
		case OpTap:
			for n := 0; n < step.Count && err == nil; n++ {
				x, y := TapPoint(taps)
				taps++
				_, err = d.Tap(x, y, tapSurface, tapSurface)
			}
		case OpAbort:
			err = d.Abort()
		case OpTryAnother:
			err = d.TryAnother()
		case OpHistory:
			err = d.OpenHistory()
		case OpGuide:
			err = d.OpenGuide()
		case OpWait:
			if advance != nil {
				advance(step.Wait)
			}
		default:
			err = fmt.Errorf("unknown step %q", step.Op)
		}
		if err != nil {
			return fmt.Errorf("demo %s step %d (%s): %w", sc.Name, i, step.Op, err)
		}
	}
	return nil
}

// TapPoint spreads demo taps over the image in pixels of a 1000x1000 surface.
func TapPoint(i int) (float64, float64) {
	x := float64((15+23*i)%90+5) * tapSurface / 100
	y := float64((30+37*i)%80+10) * tapSurface / 100
	return x, y
}

func (m *Manager) SetState(ctx context.Context, cacheDir string, state string, rendered bool) error {
	_ = ctx
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		cacheDir = filepath.Join(home, ".cache", "focusdojo")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return err
	}
	payload := map[string]any{
		"state":    strings.TrimSpace(state),
		"rendered": rendered,
	}
	b, _ := json.Marshal(payload)
	return os.WriteFile(filepath.Join(cacheDir, "dev_state.json"), b, 0o644)
}
