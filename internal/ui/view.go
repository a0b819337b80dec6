package ui

import (
	_ "embed"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"focusdojo/internal/flow"
	"focusdojo/internal/puzzle"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/harmonica"
	clog "github.com/charmbracelet/log"
)

//go:embed guide.md
var guideMarkdown string

type applyMsg struct {
	fn func(*Root)
}

type clockMsg time.Time
type animateMsg time.Time

type sessionKeyMap struct {
	Move  key.Binding
	Tap   key.Binding
	Abort key.Binding
	Quit  key.Binding
}

func (k sessionKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Move, k.Tap, k.Abort, k.Quit}
}

func (k sessionKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Move, k.Tap}, {k.Abort, k.Quit}}
}

type menuItem struct {
	Label  string
	Detail string
	Action func(Controller)
}

type Root struct {
	theme        Theme
	ascii        bool
	debug        bool
	styleVariant string
	motionLevel  string
	now          func() time.Time

	ctrl     Controller
	intents  intentQueue
	dispatch func(func())

	mu      sync.Mutex
	program *tea.Program
	running bool

	layout LayoutMode
	cols   int
	rows   int

	snap        flow.Snapshot
	statusFlash string

	homeIndex     int
	modeIndex     int
	levelIndex    int
	historyOffset int
	guideOffset   int
	difficulty    puzzle.Difficulty
	prompt        textinput.Model

	sessionID  string
	reference  *picture
	variant    *picture
	pictureErr string
	pictures   pictureLayout
	cursor     cellPos
	lastMarker string
	pulsePos   float64
	pulseVel   float64

	help      help.Model
	keys      sessionKeyMap
	meter     progress.Model
	spin      spinner.Model
	markdown  *glamour.TermRenderer
	guideText string
	logger    *clog.Logger
	spring    harmonica.Spring
}

type Options struct {
	ASCIIOnly    bool
	Debug        bool
	StyleVariant string
	MotionLevel  string
	// Now defaults to time.Now. Used for relative times and elapsed counters.
	Now func() time.Time
}

func New(opts Options) *Root {
	logger := clog.NewWithOptions(os.Stderr, clog.Options{Prefix: "focusdojo-ui", Level: clog.WarnLevel})
	if opts.Debug {
		logger.SetLevel(clog.DebugLevel)
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(78),
	)
	if err != nil {
		renderer = nil
	}

	motionLevel := normalizeMotionLevel(opts.MotionLevel)
	styleVariant := normalizeStyleVariant(opts.StyleVariant)
	theme := ThemeForVariant(styleVariant)
	spring := harmonica.NewSpring(harmonica.FPS(60), 8.0, 0.35)
	if motionLevel == "reduced" {
		spring = harmonica.NewSpring(harmonica.FPS(30), 9.0, 0.92)
	}
	meter := progress.New(
		progress.WithWidth(20),
		progress.WithGradient(theme.ProgressFrom, theme.ProgressTo),
		progress.WithoutPercentage(),
	)
	spin := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(theme.Accent),
	)
	prompt := textinput.New()
	prompt.Placeholder = "a lighthouse on a rocky island at dusk"
	prompt.CharLimit = 240
	prompt.Width = 60
	prompt.Prompt = "> "

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	r := &Root{
		theme:        theme,
		ascii:        opts.ASCIIOnly,
		debug:        opts.Debug,
		styleVariant: styleVariant,
		motionLevel:  motionLevel,
		now:          now,
		layout:       LayoutWide,
		cols:         120,
		rows:         36,
		snap:         flow.Snapshot{State: flow.HomeState{}},
		difficulty:   puzzle.Medium,
		prompt:       prompt,
		pulsePos:     1,
		help:         help.New(),
		meter:        meter,
		spin:         spin,
		markdown:     renderer,
		logger:       logger,
		spring:       spring,
	}
	r.dispatch = r.intents.push
	r.keys = sessionKeyMap{
		Move:  key.NewBinding(key.WithKeys("up", "down", "left", "right"), key.WithHelp("←↑↓→", "move")),
		Tap:   key.NewBinding(key.WithKeys(" ", "space", "enter"), key.WithHelp("space", "mark")),
		Abort: key.NewBinding(key.WithKeys("esc", "a"), key.WithHelp("esc", "give up")),
		Quit:  key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
	return r
}

func normalizeMotionLevel(v string) string {
	switch v {
	case "reduced", "off":
		return v
	default:
		return "full"
	}
}

func (r *Root) Init() tea.Cmd {
	return tea.Batch(clockTickCmd(), r.spin.Tick, textinput.Blink)
}

func (r *Root) Update(msg tea.Msg) (model tea.Model, cmd tea.Cmd) {
	defer func() {
		if rec := recover(); rec != nil {
			r.onModelPanic("update", rec, msg)
			model = r
			cmd = nil
		}
	}()

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.cols = msg.Width
		r.rows = msg.Height
		r.layout = DetermineLayoutMode(r.cols, r.rows)
		r.relayout()
		return r, nil
	case applyMsg:
		if msg.fn != nil {
			msg.fn(r)
		}
		return r, r.animateIfNeeded()
	case clockMsg:
		return r, clockTickCmd()
	case animateMsg:
		r.pulsePos, r.pulseVel = r.spring.Update(r.pulsePos, r.pulseVel, 1)
		if r.shouldAnimate() {
			return r, animateTickCmd()
		}
		r.pulsePos, r.pulseVel = 1, 0
		return r, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		r.spin, cmd = r.spin.Update(msg)
		return r, cmd
	case tea.MouseMsg:
		return r.handleMouse(msg)
	case tea.KeyMsg:
		return r.handleKey(msg)
	}
	if r.snap.Screen() == flow.ScreenCustomPrompt {
		var cmd tea.Cmd
		r.prompt, cmd = r.prompt.Update(msg)
		return r, cmd
	}
	return r, nil
}

func (r *Root) View() (view string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.onModelPanic("view", rec, nil)
			width := max(1, r.cols)
			view = r.theme.Fail.Width(width).Render(trimForWidth("UI recovered from a rendering panic. Check logs.", max(1, width-1)))
		}
	}()

	if r.cols < 1 {
		r.cols = 120
	}
	if r.rows < 1 {
		r.rows = 36
	}
	if DetermineLayoutMode(r.cols, r.rows) == LayoutTooSmall {
		return r.renderTooSmall()
	}

	switch st := r.snap.State.(type) {
	case flow.ModeSelectState:
		return r.renderModeSelect()
	case flow.ClassicLevelsState:
		return r.renderClassicLevels(st)
	case flow.CustomPromptState:
		return r.renderCustomPrompt(st)
	case flow.GeneratingState:
		return r.renderGenerating(st)
	case flow.ActiveSessionState:
		return r.renderActive(st)
	case flow.SessionReportState:
		return r.renderReport(st)
	case flow.HistoryState:
		return r.renderHistory(st)
	case flow.GuideState:
		return r.renderGuide()
	default:
		return r.renderHome()
	}
}

func (r *Root) Run() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	p := tea.NewProgram(r, tea.WithAltScreen(), tea.WithMouseCellMotion())
	r.program = p
	r.running = true
	r.mu.Unlock()

	_, err := p.Run()

	r.mu.Lock()
	r.program = nil
	r.running = false
	r.mu.Unlock()
	return err
}

func (r *Root) Stop() {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Quit()
	}
}

func (r *Root) SetController(c Controller) {
	r.ctrl = c
}

func (r *Root) SetSnapshot(snap flow.Snapshot) {
	r.apply(func(m *Root) {
		m.setSnapshot(snap)
	})
}

func (r *Root) FlashStatus(msg string) {
	r.apply(func(m *Root) {
		m.statusFlash = msg
	})
}

func (r *Root) setSnapshot(snap flow.Snapshot) {
	prev := r.snap.Screen()
	r.snap = snap
	screen := snap.Screen()
	if screen != prev {
		r.statusFlash = ""
		r.historyOffset = 0
		r.guideOffset = 0
	}
	if screen != flow.ScreenCustomPrompt {
		r.prompt.Blur()
	}

	switch st := snap.State.(type) {
	case flow.ClassicLevelsState:
		r.levelIndex = clampInt(r.levelIndex, 0, len(st.Levels)-1)
	case flow.CustomPromptState:
		if prev != flow.ScreenCustomPrompt {
			r.prompt.SetValue(st.Prompt)
			r.prompt.CursorEnd()
			r.prompt.Focus()
			if st.Difficulty.Valid() {
				r.difficulty = st.Difficulty
			}
		}
	case flow.ActiveSessionState:
		r.syncSession(st)
	}
}

// syncSession decodes new pictures when the session changes and starts the
// pulse animation for a new marker.
func (r *Root) syncSession(st flow.ActiveSessionState) {
	if st.Session.ID != r.sessionID {
		r.sessionID = st.Session.ID
		r.lastMarker = ""
		r.pulsePos, r.pulseVel = 1, 0
		r.pictureErr = ""
		var err error
		if r.reference, err = decodePicture(st.Assets.Reference); err != nil {
			r.reference = nil
			r.pictureErr = "Reference image unavailable"
			r.logger.Warn("ui.picture_decode_failed", "which", "reference", "err", err)
		}
		if r.variant, err = decodePicture(st.Assets.Variant); err != nil {
			r.variant = nil
			r.pictureErr = "Variant image unavailable"
			r.logger.Warn("ui.picture_decode_failed", "which", "variant", "err", err)
		}
		r.relayout()
		r.cursor = cellPos{X: r.pictures.Variant.W / 2, Y: r.pictures.Variant.H / 2}
	}
	if n := len(st.Session.Markers); n > 0 {
		newest := st.Session.Markers[n-1].ID
		if newest != r.lastMarker {
			r.lastMarker = newest
			if r.motionLevel == "off" {
				r.pulsePos, r.pulseVel = 1, 0
			} else {
				r.pulsePos, r.pulseVel = 0, 0
			}
		}
	}
}

func (r *Root) relayout() {
	w, h := r.reference.Size()
	if w == 0 {
		w, h = r.variant.Size()
	}
	if w == 0 {
		w, h = 16, 9
	}
	r.pictures = computePictureLayout(r.cols, r.rows, w, h)
	r.cursor = cellPos{
		X: clampInt(r.cursor.X, 0, r.pictures.Variant.W-1),
		Y: clampInt(r.cursor.Y, 0, r.pictures.Variant.H-1),
	}
}

func (r *Root) apply(fn func(*Root)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	p := r.program
	running := r.running
	if !running || p == nil {
		fn(r)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	p.Send(applyMsg{fn: fn})
}

// intentQueue runs controller calls one at a time, in the order they were
// queued, off the UI goroutine. The worker exits when the queue is empty.
type intentQueue struct {
	mu      sync.Mutex
	pending []func()
	running bool
}

func (q *intentQueue) push(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()
	go q.drain()
}

func (q *intentQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		fn := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()
		fn()
	}
}

func (r *Root) dispatchController(fn func(Controller)) {
	if fn == nil || r.ctrl == nil {
		return
	}
	ctrl := r.ctrl
	r.dispatch(func() { fn(ctrl) })
}

func (r *Root) animateIfNeeded() tea.Cmd {
	if r.shouldAnimate() {
		return animateTickCmd()
	}
	return nil
}

func (r *Root) shouldAnimate() bool {
	if r.motionLevel == "off" || r.snap.Screen() != flow.ScreenActive {
		return false
	}
	return r.pulsePos < 0.999 || abs(r.pulseVel) > 0.001
}

func (r *Root) onModelPanic(where string, recovered any, msg tea.Msg) {
	if r.statusFlash == "" {
		r.statusFlash = "Recovered UI panic"
	}
	msgType := ""
	if msg != nil {
		msgType = fmt.Sprintf("%T", msg)
	}
	r.logger.Error("ui.panic_recovered",
		"where", where,
		"panic", fmt.Sprintf("%v", recovered),
		"messageType", msgType,
		"screen", r.snap.Screen(),
		"layout", r.layout,
		"cols", r.cols,
		"rows", r.rows,
		"stack", string(debug.Stack()),
	)
}

func clockTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}

func animateTickCmd() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return animateMsg(t) })
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

var _ tea.Model = (*Root)(nil)
var _ View = (*Root)(nil)
