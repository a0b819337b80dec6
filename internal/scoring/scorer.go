package scoring

import (
	"fmt"

	"focusdojo/internal/puzzle"
)

type Scorer interface {
	Score(s puzzle.Summary) Report
}

type DefaultScorer struct {
	opts Options
}

func NewScorer(opts Options) *DefaultScorer {
	opts.PointsPerDifference = defaultInt(opts.PointsPerDifference, 100)
	opts.GraceSecondsPerDifference = defaultInt(opts.GraceSecondsPerDifference, 10)
	opts.TimePenaltyPerSecond = defaultInt(opts.TimePenaltyPerSecond, 2)
	opts.PerfectBonusPoints = defaultInt(opts.PerfectBonusPoints, 100)
	opts.QuickFocusSeconds = defaultInt(opts.QuickFocusSeconds, 30)
	return &DefaultScorer{opts: opts}
}

func (g *DefaultScorer) Score(s puzzle.Summary) Report {
	target := s.Target
	if target <= 0 {
		target = s.Difficulty.TargetCount()
	}
	found := s.Found()
	durationMS := s.Duration().Milliseconds()
	if durationMS < 0 {
		durationMS = 0
	}

	r := Report{
		Kind:          ReportKind,
		SchemaVersion: SchemaVersion,
		SessionID:     s.ID,
		Mode:          string(s.Mode),
		Difficulty:    s.Difficulty.String(),
		LevelNumber:   s.LevelNumber,
		Success:       s.Success,
		Aborted:       s.Aborted,
		Found:         found,
		Target:        target,
		Attempts:      s.Attempts,
		Accuracy:      s.Accuracy,
		DurationMS:    durationMS,
	}

	base := target * g.opts.PointsPerDifference
	foundPoints := found * g.opts.PointsPerDifference
	accuracyPenalty := foundPoints * (100 - clamp(s.Accuracy, 0, 100)) / 100
	if found == 0 {
		accuracyPenalty = 0
	}

	grace := target * g.opts.GraceSecondsPerDifference
	durationSec := int(durationMS / 1000)
	timePenalty := 0
	if durationSec > grace {
		timePenalty = (durationSec - grace) * g.opts.TimePenaltyPerSecond
	}
	// Time can take at most half of what was earned.
	if maxPenalty := (foundPoints - accuracyPenalty) / 2; timePenalty > maxPenalty {
		timePenalty = maxPenalty
	}

	bonus := 0
	if s.Success && s.Accuracy == 100 {
		bonus = g.opts.PerfectBonusPoints
	}

	total := foundPoints - accuracyPenalty - timePenalty + bonus
	if total < 0 {
		total = 0
	}
	r.Score = Score{
		BasePoints:         base,
		FoundPoints:        foundPoints,
		AccuracyPenalty:    accuracyPenalty,
		TimeGraceSeconds:   grace,
		TimePenaltyPoints:  timePenalty,
		PerfectBonusPoints: bonus,
		TotalPoints:        total,
		Breakdown: []ScoreDelta{
			{Kind: "found", Points: foundPoints, Description: fmt.Sprintf("%d of %d differences found", found, target)},
			{Kind: "accuracy", Points: -accuracyPenalty, Description: "Missed taps"},
			{Kind: "time", Points: -timePenalty, Description: "Time penalty after grace"},
			{Kind: "bonus", Points: bonus, Description: "Perfect run"},
		},
	}
	r.Rating = rate(r, base+g.opts.PerfectBonusPoints)
	r.Badges = g.badges(r)
	return r
}

func rate(r Report, maxPoints int) Rating {
	switch {
	case r.Found == 0:
		return RatingNone
	case !r.Success:
		return RatingC
	case r.Score.TotalPoints*100 >= maxPoints*90:
		return RatingS
	case r.Score.TotalPoints*100 >= maxPoints*75:
		return RatingA
	default:
		return RatingB
	}
}

func (g *DefaultScorer) badges(r Report) []string {
	var out []string
	if r.Found > 0 && r.Accuracy == 100 {
		out = append(out, BadgeSharpEye)
	}
	if r.Success && r.DurationMS < int64(g.opts.QuickFocusSeconds)*1000 {
		out = append(out, BadgeQuickFocus)
	}
	if r.Aborted && r.Found > 0 {
		out = append(out, BadgePersistent)
	}
	return out
}

func defaultInt(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
