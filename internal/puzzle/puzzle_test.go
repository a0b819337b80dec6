package puzzle

import (
	"testing"
	"time"
)

func TestTargetCountIsFixedPerDifficulty(t *testing.T) {
	want := map[Difficulty]int{Easy: 3, Medium: 5, Hard: 8}
	for d, n := range want {
		if got := d.TargetCount(); got != n {
			t.Fatalf("expected %s target %d, got %d", d, n, got)
		}
	}
}

func TestParseDifficulty(t *testing.T) {
	cases := map[string]Difficulty{"easy": Easy, " Medium ": Medium, "HARD": Hard, "3": Hard}
	for raw, want := range cases {
		got, err := ParseDifficulty(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %s, got %s", raw, want, got)
		}
	}
	if _, err := ParseDifficulty("nightmare"); err == nil {
		t.Fatalf("expected error for unknown difficulty")
	}
}

func TestAccuracyRoundsAndStaysInRange(t *testing.T) {
	cases := []struct {
		found, attempts, want int
	}{
		{0, 0, 0},
		{5, 5, 100},
		{2, 3, 67},
		{1, 3, 33},
		{2, 0, 100},
		{1, 8, 13},
	}
	for _, c := range cases {
		got := Accuracy(c.found, c.attempts)
		if got != c.want {
			t.Fatalf("Accuracy(%d,%d): expected %d, got %d", c.found, c.attempts, c.want, got)
		}
		if got < 0 || got > 100 {
			t.Fatalf("accuracy out of range: %d", got)
		}
	}
}

func TestSessionRejectsMarkersPastTarget(t *testing.T) {
	s := NewSession("s1", ModeClassic, Easy, "garden", time.Now())
	for i := 0; i < 3; i++ {
		if err := s.AddMarker(Marker{ID: string(rune('a' + i))}); err != nil {
			t.Fatalf("add marker %d: %v", i, err)
		}
	}
	if err := s.AddMarker(Marker{ID: "d"}); err != ErrTargetReached {
		t.Fatalf("expected ErrTargetReached, got %v", err)
	}
	if s.Attempts != 3 || s.Found() != 3 {
		t.Fatalf("expected 3 attempts and 3 found, got %d/%d", s.Attempts, s.Found())
	}
}

func TestFinalizeCopiesMarkersAndScores(t *testing.T) {
	start := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	s := NewSession("s2", ModeAiCustom, Medium, "harbor", start)
	_ = s.AddMarker(Marker{ID: "m1", X: 10, Y: 20})
	_ = s.AddMarker(Marker{ID: "m2", X: 30, Y: 40})

	sum := s.Finalize(start.Add(42*time.Second), true)
	if sum.Success {
		t.Fatalf("expected unsuccessful summary with 2 of 5 found")
	}
	if sum.Accuracy != 100 {
		t.Fatalf("expected accuracy 100, got %d", sum.Accuracy)
	}
	if sum.Duration() != 42*time.Second {
		t.Fatalf("unexpected duration %v", sum.Duration())
	}
	s.Markers[0].X = 99
	if sum.Markers[0].X != 10 {
		t.Fatalf("summary markers must not alias the live session")
	}
}

func TestNormalizeMode(t *testing.T) {
	if NormalizeMode("custom") != ModeAiCustom {
		t.Fatalf("expected custom to map to ai_custom")
	}
	if NormalizeMode("whatever") != ModeClassic {
		t.Fatalf("expected fallback to classic")
	}
}

func TestSessionCountsReadableFromValues(t *testing.T) {
	byID := map[string]Session{
		"s-1": {Difficulty: Easy, Markers: []Marker{{ID: "m-1"}, {ID: "m-2"}, {ID: "m-3"}}},
	}
	if got := byID["s-1"].Found(); got != 3 {
		t.Fatalf("expected 3 found, got %d", got)
	}
	if got := byID["s-1"].Target(); got != 3 {
		t.Fatalf("expected target 3, got %d", got)
	}
	if !byID["s-1"].Complete() {
		t.Fatalf("expected complete session")
	}
}
