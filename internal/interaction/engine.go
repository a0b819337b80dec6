package interaction

import (
	"errors"
	"math"
	"time"

	"focusdojo/internal/puzzle"

	"github.com/google/uuid"
)

const DefaultCompletionDelay = time.Second

var (
	ErrInvalidGeometry = errors.New("element geometry must be positive")
	ErrSessionFinished = errors.New("session already finalized")
)

// Tap describes the outcome of one pointer event.
type Tap struct {
	Accepted bool
	Marker   puzzle.Marker
	// Completed is true when this tap reached the target count.
	Completed bool
}

// Engine turns pointer events into markers for one session. It is not safe
// for concurrent use; callers serialize access, including from the onDue
// callback which runs on the scheduler's goroutine.
type Engine struct {
	session *puzzle.Session
	sched   Scheduler
	delay   time.Duration
	onDue   func()

	pending   Timer
	finalized bool
	summary   puzzle.Summary
}

func NewEngine(session *puzzle.Session, sched Scheduler, delay time.Duration, onDue func()) *Engine {
	if sched == nil {
		sched = RealScheduler()
	}
	if delay < 0 {
		delay = 0
	}
	return &Engine{session: session, sched: sched, delay: delay, onDue: onDue}
}

func (e *Engine) SessionID() string { return e.session.ID }

func (e *Engine) Session() puzzle.Session { return e.session.Snapshot() }

func (e *Engine) Finalized() bool { return e.finalized }

// CompletionPending reports whether auto-completion is scheduled.
func (e *Engine) CompletionPending() bool { return e.pending != nil && !e.finalized }

// AcceptPointerEvent records a tap at pixel (px,py) inside an element of
// w x h pixels. Taps arriving after the target was reached are ignored and
// do not count as attempts.
func (e *Engine) AcceptPointerEvent(px, py, w, h float64) (Tap, error) {
	if e.finalized {
		return Tap{}, ErrSessionFinished
	}
	if e.session.Complete() {
		return Tap{}, nil
	}
	if !(w > 0) || !(h > 0) {
		return Tap{}, ErrInvalidGeometry
	}
	m := puzzle.Marker{
		ID: uuid.NewString(),
		X:  Normalize(px, w),
		Y:  Normalize(py, h),
		At: e.sched.Now(),
	}
	if err := e.session.AddMarker(m); err != nil {
		return Tap{}, nil
	}
	tap := Tap{Accepted: true, Marker: m}
	if e.session.Complete() {
		tap.Completed = true
		e.scheduleCompletion()
	}
	return tap, nil
}

func (e *Engine) scheduleCompletion() {
	if e.pending != nil || e.onDue == nil {
		return
	}
	e.pending = e.sched.AfterFunc(e.delay, e.onDue)
}

// Complete finalizes a session whose target was reached. It is the handler
// for the scheduled completion and is a no-op once finalized.
func (e *Engine) Complete() (puzzle.Summary, bool) {
	if e.finalized || !e.session.Complete() {
		return puzzle.Summary{}, false
	}
	e.pending = nil
	return e.finalize(false), true
}

// Abort finalizes immediately with whatever has been found and cancels any
// scheduled completion.
func (e *Engine) Abort() (puzzle.Summary, bool) {
	if e.finalized {
		return puzzle.Summary{}, false
	}
	e.cancelPending()
	return e.finalize(true), true
}

// Discard drops the session without producing a summary.
func (e *Engine) Discard() {
	e.cancelPending()
	e.finalized = true
}

func (e *Engine) cancelPending() {
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
}

func (e *Engine) finalize(aborted bool) puzzle.Summary {
	e.finalized = true
	e.summary = e.session.Finalize(e.sched.Now(), aborted)
	return e.summary
}

// Normalize maps a pixel offset to a percentage of length, clamped to [0,100].
func Normalize(offset, length float64) float64 {
	if !(length > 0) {
		return 0
	}
	v := offset / length * 100
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
