package curriculum

import (
	"fmt"
	"regexp"
	"strings"

	"focusdojo/internal/puzzle"
)

const (
	CurriculumKind         = "curriculum"
	SupportedSchemaVersion = 1
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{2,63}$`)

type Pack struct {
	Kind          string  `yaml:"kind"`
	SchemaVersion int     `yaml:"schema_version"`
	PackID        string  `yaml:"pack_id"`
	Name          string  `yaml:"name"`
	DescriptionMD string  `yaml:"description_md"`
	Style         string  `yaml:"style"`
	Levels        []Level `yaml:"levels"`

	Path string `yaml:"-"`
}

type Level struct {
	Number     int    `yaml:"number"`
	Title      string `yaml:"title"`
	Subject    string `yaml:"subject"`
	Difficulty string `yaml:"difficulty"`
	SummaryMD  string `yaml:"summary_md"`

	style string
}

// DifficultyForLevel is the tier used when a level does not name one.
func DifficultyForLevel(n int) puzzle.Difficulty {
	switch {
	case n <= 3:
		return puzzle.Easy
	case n <= 6:
		return puzzle.Medium
	default:
		return puzzle.Hard
	}
}

func (l Level) Tier() puzzle.Difficulty {
	if d, err := puzzle.ParseDifficulty(l.Difficulty); err == nil {
		return d
	}
	return DifficultyForLevel(l.Number)
}

// Prompt is the generation prompt for the level's scene.
func (l Level) Prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Focus training level %d (%s): %s", l.Number, l.Title, strings.TrimSpace(l.Subject))
	if style := strings.TrimSpace(l.style); style != "" {
		b.WriteString(". Style: ")
		b.WriteString(style)
	}
	return b.String()
}

func (p Pack) Validate() error {
	if p.Kind != CurriculumKind {
		return fmt.Errorf("kind must be %q", CurriculumKind)
	}
	if p.SchemaVersion == 0 {
		return fmt.Errorf("schema_version is required")
	}
	if p.SchemaVersion > SupportedSchemaVersion {
		return fmt.Errorf("unsupported curriculum schema_version %d (max supported %d)", p.SchemaVersion, SupportedSchemaVersion)
	}
	if !idPattern.MatchString(p.PackID) {
		return fmt.Errorf("invalid pack_id %q", p.PackID)
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(p.Levels) == 0 {
		return fmt.Errorf("levels must contain at least one item")
	}
	seen := map[int]struct{}{}
	for _, l := range p.Levels {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("level %d: %w", l.Number, err)
		}
		if _, ok := seen[l.Number]; ok {
			return fmt.Errorf("duplicate level number %d", l.Number)
		}
		seen[l.Number] = struct{}{}
	}
	return nil
}

func (l Level) Validate() error {
	if l.Number <= 0 {
		return fmt.Errorf("number must be >0")
	}
	if strings.TrimSpace(l.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if strings.TrimSpace(l.Subject) == "" {
		return fmt.Errorf("subject is required")
	}
	if l.Difficulty != "" {
		if _, err := puzzle.ParseDifficulty(l.Difficulty); err != nil {
			return err
		}
	}
	return nil
}
