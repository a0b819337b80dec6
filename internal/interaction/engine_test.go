package interaction

import (
	"errors"
	"testing"
	"time"

	"focusdojo/internal/puzzle"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2026, time.May, 4, 9, 0, 0, 0, time.UTC)

func newEngine(d puzzle.Difficulty) (*Engine, *ManualScheduler, *int) {
	sched := NewManualScheduler(epoch)
	s := puzzle.NewSession("s", puzzle.ModeClassic, d, "prompt", sched.Now())
	due := 0
	var e *Engine
	e = NewEngine(s, sched, DefaultCompletionDelay, func() {
		due++
		e.Complete()
	})
	return e, sched, &due
}

func TestCoordinateTransformIsResolutionIndependent(t *testing.T) {
	for _, dims := range [][2]float64{{640, 360}, {1, 1}, {1920, 1080}, {37, 913}} {
		w, h := dims[0], dims[1]
		checks := []struct {
			px, py, x, y float64
		}{
			{0, 0, 0, 0},
			{w, h, 100, 100},
			{w / 2, h / 2, 50, 50},
		}
		for _, c := range checks {
			e, _, _ := newEngine(puzzle.Hard)
			tap, err := e.AcceptPointerEvent(c.px, c.py, w, h)
			if err != nil {
				t.Fatalf("tap: %v", err)
			}
			if tap.Marker.X != c.x || tap.Marker.Y != c.y {
				t.Fatalf("%vx%v tap (%v,%v): expected (%v,%v), got (%v,%v)", w, h, c.px, c.py, c.x, c.y, tap.Marker.X, tap.Marker.Y)
			}
		}
	}
}

func TestMediumPerfectRunCompletesAfterDelay(t *testing.T) {
	e, sched, due := newEngine(puzzle.Medium)
	for i := 0; i < 5; i++ {
		tap, err := e.AcceptPointerEvent(float64(i*10), 5, 100, 100)
		if err != nil || !tap.Accepted {
			t.Fatalf("tap %d not accepted: %+v %v", i, tap, err)
		}
		if tap.Completed != (i == 4) {
			t.Fatalf("tap %d: unexpected completed=%v", i, tap.Completed)
		}
	}
	if e.Finalized() {
		t.Fatalf("expected finalization to wait for the presentation delay")
	}
	sched.Advance(999 * time.Millisecond)
	if *due != 0 {
		t.Fatalf("completion fired early")
	}
	sched.Advance(time.Millisecond)
	if *due != 1 || !e.Finalized() {
		t.Fatalf("expected completion after 1000ms")
	}
	sum := e.summary
	if sum.Attempts != 5 || sum.Found() != 5 || !sum.Success || sum.Accuracy != 100 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestHardRunIgnoresTapsAfterTarget(t *testing.T) {
	e, sched, _ := newEngine(puzzle.Hard)
	accepted := 0
	for i := 0; i < 10; i++ {
		tap, err := e.AcceptPointerEvent(1, 1, 10, 10)
		if err != nil {
			t.Fatalf("tap %d: %v", i, err)
		}
		if tap.Accepted {
			accepted++
		}
	}
	if accepted != 8 {
		t.Fatalf("expected 8 accepted taps, got %d", accepted)
	}
	s := e.Session()
	if s.Attempts != 8 || s.Found() != 8 {
		t.Fatalf("expected attempts=8 found=8, got %d/%d", s.Attempts, s.Found())
	}
	if sched.Pending() != 1 {
		t.Fatalf("expected exactly one scheduled completion, got %d", sched.Pending())
	}
	sched.Advance(DefaultCompletionDelay)
	if !e.summary.Success {
		t.Fatalf("expected success")
	}
}

func TestAbortBeforeTarget(t *testing.T) {
	e, _, _ := newEngine(puzzle.Medium)
	_, _ = e.AcceptPointerEvent(1, 1, 10, 10)
	_, _ = e.AcceptPointerEvent(2, 2, 10, 10)

	sum, ok := e.Abort()
	if !ok {
		t.Fatalf("expected abort to finalize")
	}
	if sum.Success || !sum.Aborted {
		t.Fatalf("expected unsuccessful aborted summary, got %+v", sum)
	}
	if sum.Accuracy != puzzle.Accuracy(2, sum.Attempts) {
		t.Fatalf("unexpected accuracy %d", sum.Accuracy)
	}
	if _, ok := e.Abort(); ok {
		t.Fatalf("second abort must be a no-op")
	}
	if _, err := e.AcceptPointerEvent(1, 1, 10, 10); !errors.Is(err, ErrSessionFinished) {
		t.Fatalf("expected ErrSessionFinished after finalization, got %v", err)
	}
}

func TestAbortCancelsScheduledCompletion(t *testing.T) {
	e, sched, due := newEngine(puzzle.Easy)
	for i := 0; i < 3; i++ {
		_, _ = e.AcceptPointerEvent(1, 1, 10, 10)
	}
	sum, ok := e.Abort()
	if !ok || !sum.Success {
		t.Fatalf("abort racing completion should still finalize once with success, got %+v", sum)
	}
	sched.Advance(2 * DefaultCompletionDelay)
	if *due != 0 {
		t.Fatalf("expected scheduled completion to be cancelled")
	}
}

func TestCompleteAfterAbortIsNoop(t *testing.T) {
	e, _, _ := newEngine(puzzle.Easy)
	for i := 0; i < 3; i++ {
		_, _ = e.AcceptPointerEvent(1, 1, 10, 10)
	}
	first, _ := e.Abort()
	if _, ok := e.Complete(); ok {
		t.Fatalf("complete after abort must not finalize twice")
	}
	if e.summary.ID != first.ID || e.summary.End != first.End {
		t.Fatalf("summary replaced by a second finalization")
	}
}

func TestRejectsInvalidGeometry(t *testing.T) {
	e, _, _ := newEngine(puzzle.Easy)
	if _, err := e.AcceptPointerEvent(1, 1, 0, 10); !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry, got %v", err)
	}
	if e.Session().Attempts != 0 {
		t.Fatalf("invalid taps must not count as attempts")
	}
}

func TestNormalizeClamps(t *testing.T) {
	if got := Normalize(-5, 10); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := Normalize(15, 10); got != 100 {
		t.Fatalf("expected 100, got %v", got)
	}
}
