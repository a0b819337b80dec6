package history

import (
	"context"

	"focusdojo/internal/puzzle"
)

// Ledger is the process-lifetime log of finalized sessions, newest first.
type Ledger interface {
	Record(ctx context.Context, s puzzle.Summary) error
	All(ctx context.Context) ([]puzzle.Summary, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

type Stats struct {
	Sessions     int
	Successes    int
	MeanAccuracy int
	BestStreak   int
}

func computeStats(newestFirst []puzzle.Summary) Stats {
	st := Stats{Sessions: len(newestFirst)}
	if st.Sessions == 0 {
		return st
	}
	total := 0
	streak := 0
	for i := len(newestFirst) - 1; i >= 0; i-- {
		s := newestFirst[i]
		total += s.Accuracy
		if s.Success {
			st.Successes++
			streak++
			if streak > st.BestStreak {
				st.BestStreak = streak
			}
		} else {
			streak = 0
		}
	}
	st.MeanAccuracy = (total + st.Sessions/2) / st.Sessions
	return st
}
