package ui

import (
	"strings"

	"focusdojo/internal/flow"
	"focusdojo/internal/puzzle"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Menu rows start below the header line and the panel's top border.
const menuTop = 2

func (r *Root) homeItems() []menuItem {
	return []menuItem{
		{Label: "Start training", Detail: "Pick a mode and find the differences.", Action: func(c Controller) { c.OnOpenModeSelect() }},
		{Label: "History", Detail: "Past sessions and your statistics.", Action: func(c Controller) { c.OnOpenHistory() }},
		{Label: "Guide", Detail: "How to play, difficulty and scoring.", Action: func(c Controller) { c.OnOpenGuide() }},
		{Label: "Quit", Detail: "Leave FocusDojo.", Action: func(c Controller) { c.OnQuit() }},
	}
}

func (r *Root) modeItems() []menuItem {
	return []menuItem{
		{Label: puzzle.ModeClassic.Label(), Detail: "Work through the curriculum. Difficulty rises with the level.", Action: func(c Controller) { c.OnChooseClassic() }},
		{Label: puzzle.ModeAiCustom.Label(), Detail: "Describe any scene and pick a difficulty.", Action: func(c Controller) { c.OnChooseCustom() }},
		{Label: "Back", Detail: "Return to the main menu.", Action: func(c Controller) { c.OnBack() }},
	}
}

func (r *Root) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		r.dispatchController(func(c Controller) { c.OnQuit() })
		return r, nil
	}

	switch st := r.snap.State.(type) {
	case flow.ModeSelectState:
		return r.handleMenuKey(msg, r.modeItems(), &r.modeIndex, map[string]int{"c": 0, "a": 1})
	case flow.ClassicLevelsState:
		return r.handleLevelsKey(msg, st)
	case flow.CustomPromptState:
		return r.handlePromptKey(msg)
	case flow.GeneratingState:
		if msg.String() == "esc" {
			r.dispatchController(func(c Controller) { c.OnBack() })
		}
		return r, nil
	case flow.ActiveSessionState:
		return r.handleSessionKey(msg)
	case flow.SessionReportState:
		return r.handleReportKey(msg)
	case flow.HistoryState:
		return r.handleScrollKey(msg, &r.historyOffset, len(st.Entries))
	case flow.GuideState:
		return r.handleScrollKey(msg, &r.guideOffset, len(r.guideLines()))
	default:
		return r.handleMenuKey(msg, r.homeItems(), &r.homeIndex, map[string]int{"p": 0, "h": 1, "g": 2, "?": 2})
	}
}

func (r *Root) handleMenuKey(msg tea.KeyMsg, items []menuItem, index *int, hotkeys map[string]int) (tea.Model, tea.Cmd) {
	k := msg.String()
	switch k {
	case "up", "k":
		*index = wrapIndex(*index-1, len(items))
	case "down", "j":
		*index = wrapIndex(*index+1, len(items))
	case "enter", " ", "space":
		r.activate(items, *index)
	case "esc":
		if r.snap.Screen() != flow.ScreenHome {
			r.dispatchController(func(c Controller) { c.OnBack() })
		}
	case "q":
		r.dispatchController(func(c Controller) { c.OnQuit() })
	default:
		if i, ok := hotkeys[k]; ok {
			*index = i
			r.activate(items, i)
		}
	}
	return r, nil
}

func (r *Root) activate(items []menuItem, i int) {
	if i < 0 || i >= len(items) || items[i].Action == nil {
		return
	}
	r.dispatchController(items[i].Action)
}

func (r *Root) handleLevelsKey(msg tea.KeyMsg, st flow.ClassicLevelsState) (tea.Model, tea.Cmd) {
	k := msg.String()
	switch k {
	case "up", "k":
		r.levelIndex = wrapIndex(r.levelIndex-1, len(st.Levels))
	case "down", "j":
		r.levelIndex = wrapIndex(r.levelIndex+1, len(st.Levels))
	case "enter", " ", "space":
		r.pickLevel(st, r.levelIndex)
	case "esc", "backspace":
		r.dispatchController(func(c Controller) { c.OnBack() })
	case "g", "?":
		r.dispatchController(func(c Controller) { c.OnOpenGuide() })
	case "q":
		r.dispatchController(func(c Controller) { c.OnQuit() })
	default:
		if len(k) == 1 && k[0] >= '1' && k[0] <= '9' {
			n := int(k[0] - '0')
			for i, lv := range st.Levels {
				if lv.Number == n {
					r.levelIndex = i
					r.pickLevel(st, i)
					break
				}
			}
		}
	}
	return r, nil
}

func (r *Root) pickLevel(st flow.ClassicLevelsState, i int) {
	if i < 0 || i >= len(st.Levels) {
		return
	}
	n := st.Levels[i].Number
	r.dispatchController(func(c Controller) { c.OnPickLevel(n) })
}

func (r *Root) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		prompt := r.prompt.Value()
		d := r.difficulty
		r.dispatchController(func(c Controller) { c.OnSubmitPrompt(prompt, d) })
		return r, nil
	case "tab":
		r.difficulty = cycleDifficulty(r.difficulty, 1)
		return r, nil
	case "shift+tab":
		r.difficulty = cycleDifficulty(r.difficulty, -1)
		return r, nil
	case "esc":
		r.dispatchController(func(c Controller) { c.OnBack() })
		return r, nil
	case "ctrl+g":
		r.dispatchController(func(c Controller) { c.OnOpenGuide() })
		return r, nil
	}
	var cmd tea.Cmd
	r.prompt, cmd = r.prompt.Update(msg)
	return r, cmd
}

func cycleDifficulty(d puzzle.Difficulty, step int) puzzle.Difficulty {
	all := puzzle.Difficulties()
	idx := 0
	for i, v := range all {
		if v == d {
			idx = i
		}
	}
	return all[wrapIndex(idx+step, len(all))]
}

func (r *Root) handleSessionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	area := r.pictures.Variant
	switch {
	case key.Matches(msg, r.keys.Abort):
		r.dispatchController(func(c Controller) { c.OnAbort() })
	case key.Matches(msg, r.keys.Tap):
		if area.Empty() {
			return r, nil
		}
		r.tapAt(r.cursor.X, r.cursor.Y)
	case key.Matches(msg, r.keys.Move):
		switch msg.String() {
		case "up":
			r.cursor.Y--
		case "down":
			r.cursor.Y++
		case "left":
			r.cursor.X--
		case "right":
			r.cursor.X++
		}
		r.cursor.X = clampInt(r.cursor.X, 0, area.W-1)
		r.cursor.Y = clampInt(r.cursor.Y, 0, area.H-1)
	}
	return r, nil
}

// tapAt reports a press at the centre of cell (x,y) of the variant area.
func (r *Root) tapAt(x, y int) {
	area := r.pictures.Variant
	px := float64(x) + 0.5
	py := float64(y) + 0.5
	w := float64(area.W)
	h := float64(area.H)
	r.dispatchController(func(c Controller) { c.OnTap(px, py, w, h) })
}

func (r *Root) handleReportKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "t", "n":
		r.dispatchController(func(c Controller) { c.OnTryAnother() })
	case "h":
		r.dispatchController(func(c Controller) { c.OnOpenHistory() })
	case "esc", "m":
		r.dispatchController(func(c Controller) { c.OnHome() })
	case "q":
		r.dispatchController(func(c Controller) { c.OnQuit() })
	}
	return r, nil
}

func (r *Root) handleScrollKey(msg tea.KeyMsg, offset *int, total int) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		*offset = max(0, *offset-1)
	case "down", "j":
		*offset = min(max(0, total-1), *offset+1)
	case "pgup":
		*offset = max(0, *offset-10)
	case "pgdown":
		*offset = min(max(0, total-1), *offset+10)
	case "esc", "backspace":
		r.dispatchController(func(c Controller) { c.OnBack() })
	case "m":
		r.dispatchController(func(c Controller) { c.OnHome() })
	case "q":
		r.dispatchController(func(c Controller) { c.OnQuit() })
	}
	return r, nil
}

func (r *Root) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch msg.Button {
	case tea.MouseButtonWheelUp, tea.MouseButtonWheelDown:
		if msg.Action != tea.MouseActionPress {
			return r, nil
		}
		delta := 1
		if msg.Button == tea.MouseButtonWheelUp {
			delta = -1
		}
		switch st := r.snap.State.(type) {
		case flow.HistoryState:
			r.historyOffset = clampInt(r.historyOffset+delta, 0, len(st.Entries)-1)
		case flow.GuideState:
			r.guideOffset = clampInt(r.guideOffset+delta, 0, len(r.guideLines())-1)
		}
		return r, nil
	case tea.MouseButtonLeft:
	default:
		return r, nil
	}
	if msg.Action != tea.MouseActionPress {
		return r, nil
	}

	x, y := msg.X, msg.Y
	switch st := r.snap.State.(type) {
	case flow.HomeState:
		r.clickMenu(r.homeItems(), &r.homeIndex, x, y)
	case flow.ModeSelectState:
		r.clickMenu(r.modeItems(), &r.modeIndex, x, y)
	case flow.ClassicLevelsState:
		if x >= r.menuWidth() {
			return r, nil
		}
		start := levelWindowStart(r.levelIndex, len(st.Levels), r.listHeight())
		idx := start + y - menuTop
		if y >= menuTop && idx >= 0 && idx < len(st.Levels) {
			r.levelIndex = idx
			r.pickLevel(st, idx)
		}
	case flow.ActiveSessionState:
		area := r.pictures.Variant
		if !area.Contains(x, y) {
			return r, nil
		}
		r.cursor = cellPos{X: x - area.X, Y: y - area.Y}
		r.tapAt(r.cursor.X, r.cursor.Y)
	}
	return r, nil
}

func (r *Root) clickMenu(items []menuItem, index *int, x, y int) {
	if x < 1 || x >= r.menuWidth()-1 {
		return
	}
	idx := y - menuTop
	if idx < 0 || idx >= len(items) {
		return
	}
	*index = idx
	r.activate(items, idx)
}

func (r *Root) menuWidth() int {
	return min(36, max(24, r.cols/3))
}

// listHeight is the number of list rows inside a full height panel.
func (r *Root) listHeight() int {
	return max(1, r.rows-1-footerRows-2)
}

func levelWindowStart(index, total, visible int) int {
	if total <= visible || index < visible {
		return 0
	}
	return min(index-visible+1, total-visible)
}

func wrapIndex(i, n int) int {
	if n <= 0 {
		return 0
	}
	return ((i % n) + n) % n
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}
