package puzzle

import (
	"fmt"
	"strings"
)

type Difficulty int

const (
	Easy Difficulty = iota
	Medium
	Hard
)

// TargetCount is the number of differences a player must mark.
func (d Difficulty) TargetCount() int {
	switch d {
	case Medium:
		return 5
	case Hard:
		return 8
	default:
		return 3
	}
}

func (d Difficulty) String() string {
	switch d {
	case Medium:
		return "medium"
	case Hard:
		return "hard"
	default:
		return "easy"
	}
}

func (d Difficulty) Label() string {
	switch d {
	case Medium:
		return "Medium"
	case Hard:
		return "Hard"
	default:
		return "Easy"
	}
}

func (d Difficulty) Valid() bool {
	return d >= Easy && d <= Hard
}

func ParseDifficulty(raw string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "easy", "e", "1":
		return Easy, nil
	case "medium", "m", "2":
		return Medium, nil
	case "hard", "h", "3":
		return Hard, nil
	default:
		return Easy, fmt.Errorf("unknown difficulty %q", raw)
	}
}

func Difficulties() []Difficulty {
	return []Difficulty{Easy, Medium, Hard}
}
