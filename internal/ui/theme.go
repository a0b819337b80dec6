package ui

import "github.com/charmbracelet/lipgloss"

type Theme struct {
	Header      lipgloss.Style
	Status      lipgloss.Style
	PanelTitle  lipgloss.Style
	PanelBorder lipgloss.Style
	PanelBody   lipgloss.Style
	Accent      lipgloss.Style
	Pass        lipgloss.Style
	Fail        lipgloss.Style
	Pending     lipgloss.Style
	Muted       lipgloss.Style
	Info        lipgloss.Style
	Selected    lipgloss.Style
	Marker      lipgloss.Style
	MarkerNew   lipgloss.Style
	Cursor      lipgloss.Style

	// ProgressFrom and ProgressTo are the gradient ends of progress bars.
	ProgressFrom string
	ProgressTo   string
}

func DefaultTheme() Theme {
	return ThemeForVariant("modern_arcade")
}

func ThemeForVariant(variant string) Theme {
	switch variant {
	case "cozy_clean":
		return cozyCleanTheme()
	case "retro_terminal":
		return retroTerminalTheme()
	default:
		return modernArcadeTheme()
	}
}

func normalizeStyleVariant(v string) string {
	switch v {
	case "cozy_clean", "retro_terminal":
		return v
	default:
		return "modern_arcade"
	}
}

func modernArcadeTheme() Theme {
	amber := lipgloss.Color("#FFC857")
	mint := lipgloss.Color("#67F0A8")
	brick := lipgloss.Color("#FF6F91")
	ink := lipgloss.Color("#0E1420")
	slate := lipgloss.Color("#1B2740")
	powder := lipgloss.Color("#EAF2FF")
	blue := lipgloss.Color("#5EEBFF")
	border := lipgloss.Color("#4B5F8A")

	return Theme{
		Header: lipgloss.NewStyle().
			Background(ink).
			Foreground(powder).
			Padding(0, 1),
		Status: lipgloss.NewStyle().
			Background(slate).
			Foreground(powder).
			Padding(0, 1),
		PanelTitle: lipgloss.NewStyle().
			Foreground(blue).
			Bold(true),
		PanelBorder: lipgloss.NewStyle().
			Foreground(border),
		PanelBody: lipgloss.NewStyle().
			Foreground(powder),
		Accent: lipgloss.NewStyle().
			Foreground(blue).
			Bold(true),
		Pass: lipgloss.NewStyle().
			Foreground(mint).
			Bold(true),
		Fail: lipgloss.NewStyle().
			Foreground(brick).
			Bold(true),
		Pending: lipgloss.NewStyle().
			Foreground(amber),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CAAC6")),
		Info: lipgloss.NewStyle().
			Foreground(blue),
		Selected: lipgloss.NewStyle().
			Foreground(ink).
			Background(blue).
			Bold(true),
		Marker: lipgloss.NewStyle().
			Foreground(brick).
			Background(ink).
			Bold(true),
		MarkerNew: lipgloss.NewStyle().
			Foreground(amber).
			Background(ink).
			Bold(true),
		Cursor: lipgloss.NewStyle().
			Foreground(ink).
			Background(amber),
		ProgressFrom: "#5EC2FF",
		ProgressTo:   "#79E6A6",
	}
}

func cozyCleanTheme() Theme {
	honey := lipgloss.Color("#F2B872")
	sage := lipgloss.Color("#80C4A3")
	rose := lipgloss.Color("#D17A86")
	night := lipgloss.Color("#1E2430")
	slate := lipgloss.Color("#30394A")
	paper := lipgloss.Color("#F4F6FA")
	sky := lipgloss.Color("#86B6F6")

	return Theme{
		Header:       lipgloss.NewStyle().Background(night).Foreground(paper).Padding(0, 1),
		Status:       lipgloss.NewStyle().Background(slate).Foreground(paper).Padding(0, 1),
		PanelTitle:   lipgloss.NewStyle().Foreground(honey).Bold(true),
		PanelBorder:  lipgloss.NewStyle().Foreground(slate),
		PanelBody:    lipgloss.NewStyle().Foreground(paper),
		Accent:       lipgloss.NewStyle().Foreground(sky).Bold(true),
		Pass:         lipgloss.NewStyle().Foreground(sage).Bold(true),
		Fail:         lipgloss.NewStyle().Foreground(rose).Bold(true),
		Pending:      lipgloss.NewStyle().Foreground(honey),
		Muted:        lipgloss.NewStyle().Foreground(lipgloss.Color("#A3ACC2")),
		Info:         lipgloss.NewStyle().Foreground(sky),
		Selected:     lipgloss.NewStyle().Foreground(night).Background(honey).Bold(true),
		Marker:       lipgloss.NewStyle().Foreground(rose).Background(night).Bold(true),
		MarkerNew:    lipgloss.NewStyle().Foreground(honey).Background(night).Bold(true),
		Cursor:       lipgloss.NewStyle().Foreground(night).Background(sky),
		ProgressFrom: "#86B6F6",
		ProgressTo:   "#80C4A3",
	}
}

func retroTerminalTheme() Theme {
	lime := lipgloss.Color("#9CF5A2")
	amber := lipgloss.Color("#E5D47A")
	red := lipgloss.Color("#FF6B6B")
	deep := lipgloss.Color("#07150A")
	forest := lipgloss.Color("#12301A")
	glow := lipgloss.Color("#C5F7C4")

	return Theme{
		Header:       lipgloss.NewStyle().Background(deep).Foreground(glow).Padding(0, 1),
		Status:       lipgloss.NewStyle().Background(forest).Foreground(glow).Padding(0, 1),
		PanelTitle:   lipgloss.NewStyle().Foreground(amber).Bold(true),
		PanelBorder:  lipgloss.NewStyle().Foreground(lipgloss.Color("#1F5C2F")),
		PanelBody:    lipgloss.NewStyle().Foreground(glow),
		Accent:       lipgloss.NewStyle().Foreground(lime).Bold(true),
		Pass:         lipgloss.NewStyle().Foreground(lime).Bold(true),
		Fail:         lipgloss.NewStyle().Foreground(red).Bold(true),
		Pending:      lipgloss.NewStyle().Foreground(amber),
		Muted:        lipgloss.NewStyle().Foreground(lipgloss.Color("#73A17A")),
		Info:         lipgloss.NewStyle().Foreground(lime),
		Selected:     lipgloss.NewStyle().Foreground(deep).Background(lime).Bold(true),
		Marker:       lipgloss.NewStyle().Foreground(red).Background(deep).Bold(true),
		MarkerNew:    lipgloss.NewStyle().Foreground(amber).Background(deep).Bold(true),
		Cursor:       lipgloss.NewStyle().Foreground(deep).Background(amber),
		ProgressFrom: "#1F5C2F",
		ProgressTo:   "#9CF5A2",
	}
}
