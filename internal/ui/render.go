package ui

import (
	"fmt"
	"strings"
	"time"

	"focusdojo/internal/flow"
	"focusdojo/internal/history"
	"focusdojo/internal/puzzle"
	"focusdojo/internal/scoring"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
)

func (r *Root) bodyHeight() int {
	return max(3, r.rows-1-footerRows)
}

// frame stacks the header, body and footer. The footer always takes
// footerRows lines: hints, a spacer and the status bar.
func (r *Root) frame(title, body, hints, status string) string {
	header := r.theme.Header.Width(max(1, r.cols)).Render(trimForWidth("FocusDojo - "+title, max(1, r.cols-2)))
	if r.statusFlash != "" {
		status = r.statusFlash
	}
	bar := r.theme.Status.Width(max(1, r.cols)).Render(trimForWidth(status, max(1, r.cols-2)))
	footer := []string{r.theme.Muted.Render(trimForWidth(hints, r.cols)), "", bar}
	return header + "\n" + body + "\n" + strings.Join(footer, "\n")
}

func (r *Root) renderTooSmall() string {
	lines := []string{
		"Terminal too small.",
		fmt.Sprintf("Need at least %dx%d, have %dx%d.", minCols, minRows, r.cols, r.rows),
		"Resize the window or press ctrl+c to quit.",
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = r.theme.Fail.Render(trimForWidth(l, max(1, r.cols)))
	}
	return strings.Join(out, "\n")
}

func (r *Root) renderMenu(title string, items []menuItem, index int, infoTitle string, info []string) string {
	w := r.menuWidth()
	h := r.bodyHeight()
	lines := make([]string, len(items))
	for i, item := range items {
		if i == index {
			lines[i] = r.theme.Selected.Render(padRight(r.pointer(true)+item.Label, w-2))
			continue
		}
		lines[i] = r.pointer(false) + item.Label
	}
	left := r.drawPanel(title, lines, w, h)
	right := r.drawPanel(infoTitle, info, max(20, r.cols-w), h)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (r *Root) pointer(selected bool) string {
	if !selected {
		return "  "
	}
	if r.ascii {
		return "> "
	}
	return "▸ "
}

func (r *Root) renderHome() string {
	items := r.homeItems()
	idx := clampInt(r.homeIndex, 0, len(items)-1)
	info := []string{r.theme.Info.Render(items[idx].Detail), ""}
	info = append(info, r.statsLines(r.snap.Stats)...)
	if last := r.snap.Last; last != nil {
		info = append(info, "", r.theme.PanelTitle.Render("Last session"), r.summaryLine(*last))
	}
	body := r.renderMenu("Menu", items, idx, "Overview", info)
	return r.frame("Home", body, "↑/↓ select  enter open  p play  h history  g guide  q quit", "Train your attention one picture at a time.")
}

func (r *Root) renderModeSelect() string {
	items := r.modeItems()
	idx := clampInt(r.modeIndex, 0, len(items)-1)
	info := []string{r.theme.Info.Render(items[idx].Detail)}
	body := r.renderMenu("Mode", items, idx, "About", info)
	return r.frame("Choose a mode", body, "↑/↓ select  enter choose  c classic  a custom  esc back", "Classic follows the curriculum. AI Custom uses your own scene.")
}

func (r *Root) renderClassicLevels(st flow.ClassicLevelsState) string {
	w := r.menuWidth()
	h := r.bodyHeight()
	visible := r.listHeight()
	start := levelWindowStart(r.levelIndex, len(st.Levels), visible)

	lines := make([]string, 0, visible)
	for i := start; i < len(st.Levels) && len(lines) < visible; i++ {
		lv := st.Levels[i]
		label := fmt.Sprintf("%d. %s", lv.Number, lv.Title)
		if i == r.levelIndex {
			lines = append(lines, r.theme.Selected.Render(padRight(r.pointer(true)+label, w-2)))
			continue
		}
		lines = append(lines, r.pointer(false)+label)
	}
	if len(lines) == 0 {
		lines = append(lines, r.theme.Muted.Render("No levels loaded."))
	}
	left := r.drawPanel("Levels", lines, w, h)

	var detail []string
	if st.Error != "" {
		detail = append(detail, r.theme.Fail.Render(st.Error), "")
	}
	if r.levelIndex >= 0 && r.levelIndex < len(st.Levels) {
		lv := st.Levels[r.levelIndex]
		d := lv.Tier()
		detail = append(detail,
			r.theme.PanelTitle.Render(lv.Title),
			fmt.Sprintf("Subject: %s", lv.Subject),
			fmt.Sprintf("Difficulty: %s (%d differences)", d.Label(), d.TargetCount()),
		)
		if s := strings.TrimSpace(lv.SummaryMD); s != "" {
			detail = append(detail, "")
			detail = append(detail, wrapLines(s, max(10, r.cols-w-4))...)
		}
	}
	right := r.drawPanel("Details", detail, max(20, r.cols-w), h)
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	return r.frame("Classic levels", body, "↑/↓ select  enter start  1-9 jump  g guide  esc back", "Levels get harder as you go.")
}

func (r *Root) renderCustomPrompt(st flow.CustomPromptState) string {
	width := min(r.cols, 90)
	r.prompt.Width = max(10, width-8)
	lines := []string{
		r.theme.PanelTitle.Render("Describe a scene"),
		"",
		r.prompt.View(),
		"",
		fmt.Sprintf("Difficulty: %s  (%d differences)", r.difficultyPicker(), r.difficulty.TargetCount()),
	}
	if st.Error != "" {
		lines = append(lines, "", r.theme.Fail.Render(st.Error))
	}
	body := r.drawPanel("AI Custom", lines, width, r.bodyHeight())
	status := firstNonEmpty(st.Error, "The picture is generated from your description.")
	return r.frame("AI Custom", body, "enter generate  tab difficulty  ctrl+g guide  esc back", status)
}

func (r *Root) difficultyPicker() string {
	parts := make([]string, 0, 3)
	for _, d := range puzzle.Difficulties() {
		if d == r.difficulty {
			parts = append(parts, r.theme.Selected.Render(" "+d.Label()+" "))
			continue
		}
		parts = append(parts, r.theme.Muted.Render(" "+d.Label()+" "))
	}
	return strings.Join(parts, " ")
}

func (r *Root) renderGenerating(st flow.GeneratingState) string {
	elapsed := r.now().Sub(st.Started)
	if st.Started.IsZero() || elapsed < 0 {
		elapsed = 0
	}
	lines := []string{
		r.spin.View() + " " + r.theme.Accent.Render("Creating your puzzle..."),
		"",
		fmt.Sprintf("Mode: %s", st.Mode.Label()),
	}
	if st.LevelNumber > 0 {
		lines = append(lines, fmt.Sprintf("Level: %d", st.LevelNumber))
	}
	lines = append(lines,
		fmt.Sprintf("Difficulty: %s (%d differences)", st.Difficulty.Label(), st.Difficulty.TargetCount()),
		fmt.Sprintf("Elapsed: %s", formatClock(elapsed)),
		"",
	)
	lines = append(lines, wrapLines("Scene: "+st.Prompt, max(10, min(r.cols, 90)-4))...)
	body := r.drawPanel("Generating", lines, min(r.cols, 90), r.bodyHeight())
	return r.frame("Generating", body, "esc cancel", "Drawing the reference, the variant and the answer list.")
}

func (r *Root) renderActive(st flow.ActiveSessionState) string {
	s := st.Session
	found, target := s.Found(), s.Target()
	pct := 0.0
	if target > 0 {
		pct = float64(found) / float64(target)
	}
	meter := r.meter
	meter.Width = 16
	hud := fmt.Sprintf("Found %d/%d %s  Attempts %d  Time %s", found, target, meter.ViewAs(pct), s.Attempts, formatClock(st.Elapsed))
	if st.CompletionPending {
		hud += "  " + r.theme.Pass.Render("All differences found!")
	}

	area := r.pictures
	ref := r.drawPanel("Reference", renderPicture(r.reference, area.Reference.W, area.Reference.H, nil, r.ascii, "Reference image unavailable", r.theme.Muted), area.Reference.W+2, area.Reference.H+2)
	variant := r.drawPanel("Find the differences", renderPicture(r.variant, area.Variant.W, area.Variant.H, r.sessionOverlays(s), r.ascii, "Variant image unavailable", r.theme.Muted), area.Variant.W+2, area.Variant.H+2)

	var body string
	if area.Mode == LayoutWide {
		body = lipgloss.JoinHorizontal(lipgloss.Top, ref, " ", variant)
	} else {
		body = ref + "\n" + variant
	}
	status := "Click the variant where it differs, or move with the arrows and press space."
	if r.pictureErr != "" {
		status = r.pictureErr
	}
	return r.frame(sessionTitle(s), hud+"\n"+body, r.help.ShortHelpView(r.keys.ShortHelp()), status)
}

// sessionOverlays draws accepted markers and the keyboard cursor.
func (r *Root) sessionOverlays(s puzzle.Session) map[cellPos]cell {
	area := r.pictures.Variant
	out := make(map[cellPos]cell, len(s.Markers)+1)
	for i, m := range s.Markers {
		pos := markerCell(m.X, m.Y, area.W, area.H)
		c := cell{glyph: "●", style: r.theme.Marker}
		if r.ascii {
			c.glyph = "X"
		}
		if i == len(s.Markers)-1 && m.ID == r.lastMarker && r.pulsePos < 0.999 {
			c = cell{glyph: pulseGlyph(r.pulsePos, r.ascii), style: r.theme.MarkerNew}
		}
		out[pos] = c
	}
	if _, taken := out[r.cursor]; !taken && !area.Empty() {
		out[r.cursor] = cell{glyph: "+", style: r.theme.Cursor}
	}
	return out
}

func pulseGlyph(pos float64, ascii bool) string {
	frames := []string{"·", "○", "◎", "●"}
	if ascii {
		frames = []string{".", "o", "O", "X"}
	}
	idx := int(pos * float64(len(frames)))
	return frames[clampInt(idx, 0, len(frames)-1)]
}

func sessionTitle(s puzzle.Session) string {
	if s.Mode == puzzle.ModeClassic && s.LevelNumber > 0 {
		return fmt.Sprintf("Level %d (%s)", s.LevelNumber, s.Difficulty.Label())
	}
	return fmt.Sprintf("%s (%s)", s.Mode.Label(), s.Difficulty.Label())
}

func (r *Root) renderReport(st flow.SessionReportState) string {
	sum := st.Summary
	rep := st.Report
	outcome := r.theme.Pass.Render("Success")
	switch {
	case sum.Aborted && !sum.Success:
		outcome = r.theme.Fail.Render("Gave up")
	case !sum.Success:
		outcome = r.theme.Fail.Render("Incomplete")
	}
	meter := r.meter
	meter.Width = 20
	left := []string{
		fmt.Sprintf("Outcome: %s", outcome),
		fmt.Sprintf("Rating: %s", r.theme.Accent.Render(string(rep.Rating))),
		fmt.Sprintf("Points: %s", humanize.Comma(int64(rep.Score.TotalPoints))),
		"",
		fmt.Sprintf("Found: %d/%d", sum.Found(), sum.Target),
		fmt.Sprintf("Attempts: %d", sum.Attempts),
		fmt.Sprintf("Accuracy: %d%% %s", sum.Accuracy, meter.ViewAs(float64(sum.Accuracy)/100)),
		fmt.Sprintf("Time: %s", formatClock(sum.Duration())),
	}
	if len(rep.Badges) > 0 {
		left = append(left, "", r.theme.PanelTitle.Render("Badges"))
		for _, b := range rep.Badges {
			left = append(left, r.theme.Pending.Render("★ "+b))
		}
	}
	left = append(left, "", r.theme.PanelTitle.Render("Score"))
	left = append(left, breakdownLines(rep.Score)...)

	right := make([]string, 0, len(st.Differences))
	for i, d := range st.Differences {
		right = append(right, wrapLines(fmt.Sprintf("%d. %s", i+1, d), max(10, r.cols/2-4))...)
	}
	if len(right) == 0 {
		right = append(right, r.theme.Muted.Render("No answer list for this puzzle."))
	}

	w := max(30, r.cols/2)
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		r.drawPanel("Result", left, w, r.bodyHeight()),
		r.drawPanel("Differences", right, max(20, r.cols-w), r.bodyHeight()),
	)
	return r.frame("Session report", body, "enter try another  h history  esc home  q quit", r.summaryLine(sum))
}

func breakdownLines(s scoring.Score) []string {
	out := make([]string, 0, len(s.Breakdown))
	for _, d := range s.Breakdown {
		out = append(out, fmt.Sprintf("%+5d  %s", d.Points, d.Description))
	}
	return out
}

func (r *Root) renderHistory(st flow.HistoryState) string {
	lines := r.statsLines(st.Stats)
	lines = append(lines, "")
	if len(st.Entries) == 0 {
		lines = append(lines, r.theme.Muted.Render("No sessions yet. Finish a puzzle to see it here."))
	}
	room := r.bodyHeight() - 2 - len(lines)
	offset := clampInt(r.historyOffset, 0, len(st.Entries)-1)
	for i := offset; i < len(st.Entries) && room > 0; i++ {
		lines = append(lines, r.historyLine(st.Entries[i]))
		room--
	}
	body := r.drawPanel("History", lines, r.cols, r.bodyHeight())
	return r.frame("History", body, "↑/↓ scroll  esc back  m home", fmt.Sprintf("%d sessions, newest first.", len(st.Entries)))
}

func (r *Root) historyLine(s puzzle.Summary) string {
	mark := r.theme.Pass.Render("✓")
	if r.ascii {
		mark = r.theme.Pass.Render("+")
	}
	if !s.Success {
		mark = r.theme.Fail.Render("✗")
		if r.ascii {
			mark = r.theme.Fail.Render("x")
		}
	}
	when := humanize.RelTime(s.End, r.now(), "ago", "from now")
	return fmt.Sprintf("%s %-14s %s", mark, when, r.summaryLine(s))
}

func (r *Root) summaryLine(s puzzle.Summary) string {
	what := s.Mode.Label()
	if s.Mode == puzzle.ModeClassic && s.LevelNumber > 0 {
		what = fmt.Sprintf("Level %d", s.LevelNumber)
	}
	line := fmt.Sprintf("%s %s: %d/%d found, %d%% accuracy, %s", what, s.Difficulty.Label(), s.Found(), s.Target, s.Accuracy, formatClock(s.Duration()))
	if s.Aborted {
		line += " (gave up)"
	}
	return line
}

func (r *Root) statsLines(st history.Stats) []string {
	if st.Sessions == 0 {
		return []string{r.theme.Muted.Render("No sessions recorded yet.")}
	}
	return []string{
		fmt.Sprintf("Sessions: %d", st.Sessions),
		fmt.Sprintf("Completed: %d (%d%%)", st.Successes, st.Successes*100/st.Sessions),
		fmt.Sprintf("Mean accuracy: %d%%", st.MeanAccuracy),
		fmt.Sprintf("Best streak: %d", st.BestStreak),
	}
}

func (r *Root) renderGuide() string {
	all := r.guideLines()
	room := r.bodyHeight() - 2
	offset := clampInt(r.guideOffset, 0, len(all)-1)
	end := min(len(all), offset+room)
	body := r.drawPanel("Guide", all[offset:end], r.cols, r.bodyHeight())
	return r.frame("Guide", body, "↑/↓ scroll  esc back  m home", "How FocusDojo works.")
}

func (r *Root) guideLines() []string {
	if r.guideText == "" {
		r.guideText = guideMarkdown
		if r.markdown != nil && !r.ascii {
			if out, err := r.markdown.Render(guideMarkdown); err == nil {
				r.guideText = out
			}
		}
	}
	return strings.Split(strings.TrimRight(r.guideText, "\n"), "\n")
}

func (r *Root) drawPanel(title string, lines []string, width, height int) string {
	width = max(4, width)
	height = max(3, height)
	innerW := width - 2
	innerH := height - 2

	h, v := "─", "│"
	tl, tr, bl, br := "╭", "╮", "╰", "╯"
	if r.ascii {
		h, v = "-", "|"
		tl, tr, bl, br = "+", "+", "+", "+"
	}

	top := r.theme.PanelBorder.Render(tl + strings.Repeat(h, innerW) + tr)
	if title != "" && innerW > 4 {
		t := trimForWidth(title, innerW-4)
		fill := innerW - 1 - lipgloss.Width(t) - 2
		top = r.theme.PanelBorder.Render(tl+h) + " " + r.theme.PanelTitle.Render(t) + " " +
			r.theme.PanelBorder.Render(strings.Repeat(h, max(0, fill))+tr)
	}

	out := make([]string, 0, height)
	out = append(out, top)
	side := r.theme.PanelBorder.Render(v)
	for row := 0; row < innerH; row++ {
		line := ""
		if row < len(lines) {
			line = lines[row]
		}
		out = append(out, side+padRight(line, innerW)+side)
	}
	out = append(out, r.theme.PanelBorder.Render(bl+strings.Repeat(h, innerW)+br))
	return strings.Join(out, "\n")
}

// padRight truncates or pads s to exactly width visible cells.
func padRight(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = strings.ReplaceAll(s, "\t", "    ")
	if ansi.StringWidth(s) > width {
		s = ansi.Truncate(s, width, "")
	}
	if pad := width - ansi.StringWidth(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

func trimForWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(strings.ReplaceAll(ansi.Strip(s), "\n", " "))
	if len(r) <= width {
		return string(r)
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

func wrapLines(s string, width int) []string {
	var out []string
	for _, para := range strings.Split(s, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if len([]rune(line))+1+len([]rune(w)) > width {
				out = append(out, line)
				line = w
				continue
			}
			line += " " + w
		}
		out = append(out, line)
	}
	return out
}

func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
