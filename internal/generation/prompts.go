package generation

import (
	"fmt"
	"regexp"
	"strings"
)

const qualityQualifiers = "highly detailed, rich in distinct objects, even lighting, sharp focus, no text, no watermark"

var changeClasses = []string{
	"change the color of an object",
	"remove a small object",
	"move an object slightly",
	"change the state of an object (open/closed, on/off, full/empty)",
}

func imagePrompt(subject string) string {
	return fmt.Sprintf("%s. %s.", strings.TrimRight(strings.TrimSpace(subject), "."), qualityQualifiers)
}

func variantInstruction(count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Edit this image to create a spot-the-difference puzzle with exactly %d subtle differences.\n", count)
	b.WriteString("Use only these kinds of change:\n")
	for i, c := range changeClasses {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}
	b.WriteString("Keep the composition, framing, style and lighting identical. Do not add text.")
	return b.String()
}

func differencesPrompt(subject string, count int) string {
	return fmt.Sprintf(
		"List exactly %d subtle differences a puzzle artist could introduce into this scene: %q. "+
			"Use one short line per difference, no introduction and no closing remarks.",
		count, strings.TrimSpace(subject))
}

var (
	listPrefix = regexp.MustCompile(`^\s*(?:[-*•]+\s+|\d+[.)]\s*|\(\d+\)\s*)`)
	boldStars  = regexp.MustCompile(`\*\*(.+?)\*\*`)
	boldUnders = regexp.MustCompile(`__(.+?)__`)
)

func stripEmphasis(s string) string {
	s = boldStars.ReplaceAllString(s, "$1")
	return boldUnders.ReplaceAllString(s, "$1")
}

// ParseDifferences splits provider text into non-empty lines, dropping list
// markers. The result is capped at limit when limit is positive.
func ParseDifferences(text string, limit int) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Trim(stripEmphasis(strings.TrimSpace(line)), "*_ ")
		for {
			stripped := strings.TrimSpace(listPrefix.ReplaceAllString(line, ""))
			if stripped == line {
				break
			}
			line = stripped
		}
		line = strings.Trim(stripEmphasis(line), "*_ ")
		if line == "" {
			continue
		}
		out = append(out, line)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
