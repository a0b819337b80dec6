package app

import (
	"focusdojo/internal/devtools"
	"focusdojo/internal/flow"
)

// Flow is the part of the session state machine the app drives.
type Flow interface {
	devtools.Driver
	Back() error
	Subscribe(fn func(flow.Snapshot))
	Snapshot() flow.Snapshot
	Close() error
}

var _ Flow = (*flow.Machine)(nil)
