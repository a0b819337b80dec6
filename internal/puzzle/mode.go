package puzzle

import "strings"

type Mode string

const (
	ModeClassic  Mode = "classic"
	ModeAiCustom Mode = "ai_custom"
)

func (m Mode) Label() string {
	if m == ModeAiCustom {
		return "AI Custom"
	}
	return "Classic"
}

func NormalizeMode(raw string) Mode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeAiCustom), "custom", "ai", "aicustom":
		return ModeAiCustom
	default:
		return ModeClassic
	}
}
