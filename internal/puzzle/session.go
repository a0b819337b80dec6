package puzzle

import (
	"errors"
	"time"
)

var ErrTargetReached = errors.New("target already reached")

// Session is the mutable record of one puzzle attempt. It is owned by a
// single interaction engine and must not be shared across goroutines.
type Session struct {
	ID          string
	Mode        Mode
	Difficulty  Difficulty
	Prompt      string
	LevelNumber int
	Start       time.Time
	Markers     []Marker
	Attempts    int
}

func NewSession(id string, mode Mode, difficulty Difficulty, prompt string, start time.Time) *Session {
	return &Session{
		ID:         id,
		Mode:       mode,
		Difficulty: difficulty,
		Prompt:     prompt,
		Start:      start,
		Markers:    make([]Marker, 0, difficulty.TargetCount()),
	}
}

func (s Session) Target() int { return s.Difficulty.TargetCount() }

func (s Session) Found() int { return len(s.Markers) }

func (s Session) Complete() bool { return len(s.Markers) >= s.Target() }

// AddMarker counts an attempt and records the marker.
func (s *Session) AddMarker(m Marker) error {
	if s.Complete() {
		return ErrTargetReached
	}
	s.Attempts++
	s.Markers = append(s.Markers, m)
	return nil
}

// Finalize freezes the session into a Summary.
func (s *Session) Finalize(end time.Time, aborted bool) Summary {
	found := len(s.Markers)
	return Summary{
		ID:          s.ID,
		Mode:        s.Mode,
		Difficulty:  s.Difficulty,
		Prompt:      s.Prompt,
		LevelNumber: s.LevelNumber,
		Start:       s.Start,
		End:         end,
		Markers:     append([]Marker(nil), s.Markers...),
		Attempts:    s.Attempts,
		Target:      s.Target(),
		Success:     found == s.Target(),
		Accuracy:    Accuracy(found, s.Attempts),
		Aborted:     aborted,
	}
}

// Snapshot copies the live session for presentation.
func (s *Session) Snapshot() Session {
	cp := *s
	cp.Markers = append([]Marker(nil), s.Markers...)
	return cp
}

// Summary is a finalized, immutable session as stored in history.
type Summary struct {
	ID          string
	Mode        Mode
	Difficulty  Difficulty
	Prompt      string
	LevelNumber int
	Start       time.Time
	End         time.Time
	Markers     []Marker
	Attempts    int
	Target      int
	Success     bool
	Accuracy    int
	Aborted     bool
}

func (s Summary) Found() int { return len(s.Markers) }

func (s Summary) Duration() time.Duration {
	if s.End.Before(s.Start) {
		return 0
	}
	return s.End.Sub(s.Start)
}
