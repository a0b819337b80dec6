package ui

import (
	"focusdojo/internal/flow"
	"focusdojo/internal/puzzle"
)

// Controller receives user intents. Calls are made off the UI goroutine.
type Controller interface {
	OnHome()
	OnOpenModeSelect()
	OnChooseClassic()
	OnChooseCustom()
	OnPickLevel(n int)
	OnSubmitPrompt(prompt string, difficulty puzzle.Difficulty)
	// OnTap reports a pointer press at (px,py) inside a w x h element.
	OnTap(px, py, w, h float64)
	OnAbort()
	OnTryAnother()
	OnOpenHistory()
	OnOpenGuide()
	OnBack()
	OnQuit()
}

type View interface {
	Run() error
	Stop()
	SetController(Controller)
	SetSnapshot(snap flow.Snapshot)
	FlashStatus(msg string)
}

type LayoutMode int

const (
	LayoutWide LayoutMode = iota
	LayoutStacked
	LayoutTooSmall
)

func (m LayoutMode) String() string {
	switch m {
	case LayoutStacked:
		return "stacked"
	case LayoutTooSmall:
		return "too_small"
	default:
		return "wide"
	}
}
