package interaction

import "time"

// Timer is a cancellable scheduled action.
type Timer interface {
	// Stop reports whether the action was prevented from running.
	Stop() bool
}

type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
	Now() time.Time
}

type realScheduler struct{}

func RealScheduler() Scheduler { return realScheduler{} }

func (realScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

func (realScheduler) Now() time.Time { return time.Now() }
