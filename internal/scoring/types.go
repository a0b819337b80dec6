package scoring

const (
	ReportKind    = "session_report"
	SchemaVersion = 1
)

type Rating string

const (
	RatingS    Rating = "S"
	RatingA    Rating = "A"
	RatingB    Rating = "B"
	RatingC    Rating = "C"
	RatingNone Rating = "-"
)

const (
	BadgeSharpEye   = "Sharp Eye"
	BadgeQuickFocus = "Quick Focus"
	BadgePersistent = "Persistent"
)

type Options struct {
	PointsPerDifference       int
	GraceSecondsPerDifference int
	TimePenaltyPerSecond      int
	PerfectBonusPoints        int
	QuickFocusSeconds         int
}

type Report struct {
	Kind          string `json:"kind"`
	SchemaVersion int    `json:"schema_version"`

	SessionID   string `json:"session_id"`
	Mode        string `json:"mode"`
	Difficulty  string `json:"difficulty"`
	LevelNumber int    `json:"level_number,omitempty"`

	Success    bool  `json:"success"`
	Aborted    bool  `json:"aborted"`
	Found      int   `json:"found"`
	Target     int   `json:"target"`
	Attempts   int   `json:"attempts"`
	Accuracy   int   `json:"accuracy"`
	DurationMS int64 `json:"duration_ms"`

	Score  Score    `json:"score"`
	Rating Rating   `json:"rating"`
	Badges []string `json:"badges,omitempty"`
}

type Score struct {
	BasePoints         int          `json:"base_points"`
	FoundPoints        int          `json:"found_points"`
	AccuracyPenalty    int          `json:"accuracy_penalty_points,omitempty"`
	TimeGraceSeconds   int          `json:"time_grace_seconds,omitempty"`
	TimePenaltyPoints  int          `json:"time_penalty_points,omitempty"`
	PerfectBonusPoints int          `json:"perfect_bonus_points,omitempty"`
	TotalPoints        int          `json:"total_points"`
	Breakdown          []ScoreDelta `json:"breakdown,omitempty"`
}

type ScoreDelta struct {
	Kind        string `json:"kind"`
	Points      int    `json:"points"`
	Description string `json:"description"`
}
