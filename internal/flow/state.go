package flow

import (
	"time"

	"focusdojo/internal/curriculum"
	"focusdojo/internal/history"
	"focusdojo/internal/puzzle"
	"focusdojo/internal/scoring"
)

type Screen string

const (
	ScreenHome          Screen = "home"
	ScreenModeSelect    Screen = "mode_select"
	ScreenClassicLevels Screen = "classic_levels"
	ScreenCustomPrompt  Screen = "custom_prompt"
	ScreenGenerating    Screen = "generating"
	ScreenActive        Screen = "active_session"
	ScreenReport        Screen = "session_report"
	ScreenHistory       Screen = "history"
	ScreenGuide         Screen = "guide"
)

// State is one of the *State structs below. Presentation code switches on
// the concrete type.
type State interface {
	Screen() Screen
}

type HomeState struct{}

type ModeSelectState struct{}

type ClassicLevelsState struct {
	Levels []curriculum.Level
	// Error is the message of the last failed generation, if any.
	Error string
}

type CustomPromptState struct {
	Prompt     string
	Difficulty puzzle.Difficulty
	Error      string
}

type GeneratingState struct {
	Attempt     uint64
	Origin      Screen
	Mode        puzzle.Mode
	Difficulty  puzzle.Difficulty
	Prompt      string
	LevelNumber int
	Started     time.Time
}

type ActiveSessionState struct {
	Session           puzzle.Session
	Assets            puzzle.Assets
	Elapsed           time.Duration
	CompletionPending bool
}

type SessionReportState struct {
	Summary     puzzle.Summary
	Report      scoring.Report
	Differences []string
}

type HistoryState struct {
	Entries []puzzle.Summary
	Stats   history.Stats
	From    Screen
}

type GuideState struct {
	From Screen
}

func (HomeState) Screen() Screen          { return ScreenHome }
func (ModeSelectState) Screen() Screen    { return ScreenModeSelect }
func (ClassicLevelsState) Screen() Screen { return ScreenClassicLevels }
func (CustomPromptState) Screen() Screen  { return ScreenCustomPrompt }
func (GeneratingState) Screen() Screen    { return ScreenGenerating }
func (ActiveSessionState) Screen() Screen { return ScreenActive }
func (SessionReportState) Screen() Screen { return ScreenReport }
func (HistoryState) Screen() Screen       { return ScreenHistory }
func (GuideState) Screen() Screen         { return ScreenGuide }

// Snapshot is what observers receive after every change.
type Snapshot struct {
	State   State
	Last    *puzzle.Summary
	History []puzzle.Summary
	Stats   history.Stats
}

func (s Snapshot) Screen() Screen {
	if s.State == nil {
		return ScreenHome
	}
	return s.State.Screen()
}
