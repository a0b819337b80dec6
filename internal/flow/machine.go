package flow

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"focusdojo/internal/audio"
	"focusdojo/internal/curriculum"
	"focusdojo/internal/generation"
	"focusdojo/internal/history"
	"focusdojo/internal/interaction"
	"focusdojo/internal/puzzle"
	"focusdojo/internal/scoring"
	"focusdojo/internal/telemetry"

	"github.com/google/uuid"
)

const tickInterval = time.Second

type Deps struct {
	Generator       generation.Generator
	Ledger          history.Ledger
	Notifier        audio.Notifier
	Scorer          scoring.Scorer
	Catalog         *curriculum.Catalog
	Scheduler       interaction.Scheduler
	CompletionDelay time.Duration
	Logger          *telemetry.Logger
	// Spawn runs generation work off the caller's goroutine. Defaults to a
	// plain goroutine.
	Spawn func(func())
}

// Machine owns the current screen and the active session. All methods are
// safe for concurrent use; observers are called in order, outside the
// machine lock, and must not call back into the machine synchronously.
type Machine struct {
	deps Deps
	ctx  context.Context
	stop context.CancelFunc

	mu     sync.Mutex
	state  State
	closed bool

	attempt   uint64
	pending   uint64
	cancelGen context.CancelFunc

	engine  *interaction.Engine
	assets  puzzle.Assets
	elapsed int
	tick    interaction.Timer

	last      *puzzle.Summary
	lastDiffs []string
	entries   []puzzle.Summary
	stats     history.Stats
	observers []func(Snapshot)

	notifyMu sync.Mutex
	wg       sync.WaitGroup
}

func New(deps Deps) (*Machine, error) {
	if deps.Generator == nil {
		return nil, fmt.Errorf("flow: generator is required")
	}
	if deps.Ledger == nil {
		deps.Ledger = history.NewMemory()
	}
	if deps.Notifier == nil {
		deps.Notifier = audio.Nop{}
	}
	if deps.Scorer == nil {
		deps.Scorer = scoring.NewScorer(scoring.Options{})
	}
	if deps.Scheduler == nil {
		deps.Scheduler = interaction.RealScheduler()
	}
	if deps.CompletionDelay <= 0 {
		deps.CompletionDelay = interaction.DefaultCompletionDelay
	}
	if deps.Spawn == nil {
		deps.Spawn = func(fn func()) { go fn() }
	}
	ctx, stop := context.WithCancel(context.Background())
	m := &Machine{deps: deps, ctx: ctx, stop: stop, state: HomeState{}}
	m.refreshHistoryLocked()
	return m, nil
}

// Subscribe registers fn and immediately sends it the current snapshot.
func (m *Machine) Subscribe(fn func(Snapshot)) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	snap := m.snapshotLocked()
	m.notifyMu.Lock()
	m.mu.Unlock()
	defer m.notifyMu.Unlock()
	fn(snap)
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) Screen() Screen {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Screen()
}

// Wait blocks until in-flight generation and audio work has returned.
func (m *Machine) Wait() { m.wg.Wait() }

func (m *Machine) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.stop()
	m.cancelGenerationLocked()
	m.discardSessionLocked()
	m.mu.Unlock()
	m.wg.Wait()
	return nil
}

func (m *Machine) OpenModeSelect() error {
	return m.navigate("open_mode_select", func(from State) (State, bool) {
		switch from.(type) {
		case HomeState, ModeSelectState, SessionReportState, HistoryState, GuideState, ClassicLevelsState, CustomPromptState:
			return ModeSelectState{}, true
		}
		return nil, false
	})
}

func (m *Machine) ChooseClassic() error {
	return m.navigate("choose_classic", func(from State) (State, bool) {
		if _, ok := from.(ModeSelectState); !ok {
			return nil, false
		}
		return ClassicLevelsState{Levels: m.deps.Catalog.Levels()}, true
	})
}

func (m *Machine) ChooseCustom() error {
	return m.navigate("choose_custom", func(from State) (State, bool) {
		if _, ok := from.(ModeSelectState); !ok {
			return nil, false
		}
		return CustomPromptState{Difficulty: puzzle.Easy}, true
	})
}

// TryAnother leaves the report for a fresh mode choice.
func (m *Machine) TryAnother() error {
	return m.navigate("try_another", func(from State) (State, bool) {
		if _, ok := from.(SessionReportState); !ok {
			return nil, false
		}
		return ModeSelectState{}, true
	})
}

func (m *Machine) OpenHistory() error {
	return m.navigate("open_history", func(from State) (State, bool) {
		switch from.(type) {
		case HomeState, ModeSelectState, SessionReportState:
			return HistoryState{Entries: cloneSummaries(m.entries), Stats: m.stats, From: from.Screen()}, true
		}
		return nil, false
	})
}

func (m *Machine) OpenGuide() error {
	return m.navigate("open_guide", func(from State) (State, bool) {
		switch from.(type) {
		case HomeState, ModeSelectState, ClassicLevelsState, CustomPromptState:
			return GuideState{From: from.Screen()}, true
		}
		return nil, false
	})
}

// Home is available everywhere. It discards an in-flight session or
// generation without recording anything.
func (m *Machine) Home() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if a, ok := m.state.(ActiveSessionState); ok {
		m.deps.Logger.Info("session.discarded", map[string]any{
			"session_id": a.Session.ID,
			"found":      a.Session.Found(),
		})
	}
	m.cancelGenerationLocked()
	m.discardSessionLocked()
	m.setStateLocked(HomeState{})
	m.commit()
	return nil
}

// Back returns to the previous screen. ActiveSession has no back; use Abort.
func (m *Machine) Back() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	var next State
	switch s := m.state.(type) {
	case HomeState:
		m.mu.Unlock()
		return nil
	case ModeSelectState, SessionReportState:
		next = HomeState{}
	case ClassicLevelsState, CustomPromptState:
		next = ModeSelectState{}
	case GeneratingState:
		m.cancelGenerationLocked()
		next = m.originStateLocked(s, "")
	case HistoryState:
		next = m.stateForScreenLocked(s.From)
	case GuideState:
		next = m.stateForScreenLocked(s.From)
	default:
		from := m.state.Screen()
		m.mu.Unlock()
		return &TransitionError{Op: "back", From: from}
	}
	m.setStateLocked(next)
	m.commit()
	return nil
}

// PickLevel starts generation for classic level n.
func (m *Machine) PickLevel(n int) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if _, ok := m.state.(ClassicLevelsState); !ok {
		from := m.state.Screen()
		m.mu.Unlock()
		return &TransitionError{Op: "pick_level", From: from}
	}
	level, err := m.deps.Catalog.Level(n)
	if err != nil {
		m.mu.Unlock()
		return &InvalidInputError{Field: "level", Reason: err.Error()}
	}
	run := m.startGenerationLocked(GeneratingState{
		Origin:      ScreenClassicLevels,
		Mode:        puzzle.ModeClassic,
		Difficulty:  level.Tier(),
		Prompt:      level.Prompt(),
		LevelNumber: level.Number,
	})
	m.commit()
	m.deps.Spawn(run)
	return nil
}

// SubmitPrompt starts generation for a custom prompt. A blank prompt keeps
// the prompt screen and reports InvalidInputError.
func (m *Machine) SubmitPrompt(prompt string, difficulty puzzle.Difficulty) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	cur, ok := m.state.(CustomPromptState)
	if !ok {
		from := m.state.Screen()
		m.mu.Unlock()
		return &TransitionError{Op: "submit_prompt", From: from}
	}
	var inputErr *InvalidInputError
	switch {
	case strings.TrimSpace(prompt) == "":
		inputErr = &InvalidInputError{Field: "prompt", Reason: "describe a scene to generate"}
	case !difficulty.Valid():
		inputErr = &InvalidInputError{Field: "difficulty", Reason: fmt.Sprintf("unknown difficulty %d", int(difficulty))}
	}
	if inputErr != nil {
		cur.Prompt = prompt
		cur.Error = inputErr.Error()
		m.setStateLocked(cur)
		m.commit()
		return inputErr
	}
	run := m.startGenerationLocked(GeneratingState{
		Origin:     ScreenCustomPrompt,
		Mode:       puzzle.ModeAiCustom,
		Difficulty: difficulty,
		Prompt:     strings.TrimSpace(prompt),
	})
	m.commit()
	m.deps.Spawn(run)
	return nil
}

// Tap forwards a pointer event on the variant image.
func (m *Machine) Tap(px, py, w, h float64) (interaction.Tap, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return interaction.Tap{}, ErrClosed
	}
	if _, ok := m.state.(ActiveSessionState); !ok || m.engine == nil {
		from := m.state.Screen()
		m.mu.Unlock()
		return interaction.Tap{}, &TransitionError{Op: "tap", From: from}
	}
	tap, err := m.engine.AcceptPointerEvent(px, py, w, h)
	if err != nil {
		m.mu.Unlock()
		return tap, err
	}
	if !tap.Accepted {
		m.deps.Logger.Debug("session.tap.ignored", map[string]any{"session_id": m.engine.SessionID()})
		m.mu.Unlock()
		return tap, nil
	}
	s := m.engine.Session()
	m.deps.Logger.Info("session.tap", map[string]any{
		"session_id": s.ID,
		"x":          tap.Marker.X,
		"y":          tap.Marker.Y,
		"found":      s.Found(),
		"target":     s.Target(),
		"completed":  tap.Completed,
	})
	m.playToneLocked(audio.ToneClick)
	m.refreshActiveLocked()
	m.commit()
	return tap, nil
}

// Abort finalizes the active session with what has been found so far.
func (m *Machine) Abort() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if _, ok := m.state.(ActiveSessionState); !ok || m.engine == nil {
		from := m.state.Screen()
		m.mu.Unlock()
		return &TransitionError{Op: "abort", From: from}
	}
	summary, ok := m.engine.Abort()
	if !ok {
		m.mu.Unlock()
		return nil
	}
	m.finishSessionLocked(summary)
	m.commit()
	return nil
}

func (m *Machine) navigate(op string, next func(from State) (State, bool)) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	to, ok := next(m.state)
	if !ok {
		from := m.state.Screen()
		m.mu.Unlock()
		return &TransitionError{Op: op, From: from}
	}
	m.setStateLocked(to)
	m.commit()
	return nil
}

func (m *Machine) startGenerationLocked(gs GeneratingState) func() {
	m.cancelGenerationLocked()
	m.attempt++
	gs.Attempt = m.attempt
	gs.Started = m.deps.Scheduler.Now()
	m.pending = gs.Attempt
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelGen = cancel
	m.setStateLocked(gs)
	m.deps.Logger.Info("generation.requested", map[string]any{
		"attempt":    gs.Attempt,
		"mode":       string(gs.Mode),
		"difficulty": gs.Difficulty.String(),
		"level":      gs.LevelNumber,
	})

	m.wg.Add(1)
	return func() {
		defer m.wg.Done()
		assets, err := m.deps.Generator.GeneratePuzzle(ctx, gs.Prompt, gs.Difficulty)
		m.finishGeneration(gs.Attempt, assets, err)
	}
}

func (m *Machine) finishGeneration(attempt uint64, assets puzzle.Assets, err error) {
	m.mu.Lock()
	gs, ok := m.state.(GeneratingState)
	if m.closed || !ok || gs.Attempt != attempt || m.pending != attempt {
		m.deps.Logger.Info("generation.stale", map[string]any{"attempt": attempt})
		m.mu.Unlock()
		return
	}
	m.cancelGenerationLocked()
	if err != nil {
		m.deps.Logger.Error("generation.failed", map[string]any{"attempt": attempt, "error": err.Error()})
		m.setStateLocked(m.originStateLocked(gs, userMessage(err)))
		m.commit()
		return
	}

	session := puzzle.NewSession(uuid.NewString(), gs.Mode, gs.Difficulty, gs.Prompt, m.deps.Scheduler.Now())
	session.LevelNumber = gs.LevelNumber
	id := session.ID
	m.engine = interaction.NewEngine(session, m.deps.Scheduler, m.deps.CompletionDelay, func() { m.completeDue(id) })
	m.assets = assets.Clone()
	m.elapsed = 0
	m.deps.Logger.Info("session.started", map[string]any{
		"session_id":  id,
		"attempt":     attempt,
		"mode":        string(gs.Mode),
		"difficulty":  gs.Difficulty.String(),
		"target":      session.Target(),
		"differences": len(assets.Differences),
		"variant":     !assets.Variant.Empty(),
	})
	m.setStateLocked(ActiveSessionState{})
	m.refreshActiveLocked()
	m.armTickLocked(id)
	m.commit()
}

// completeDue is the engine's scheduled completion for session id.
func (m *Machine) completeDue(id string) {
	m.mu.Lock()
	if m.closed || m.engine == nil || m.engine.SessionID() != id {
		m.mu.Unlock()
		return
	}
	summary, ok := m.engine.Complete()
	if !ok {
		m.mu.Unlock()
		return
	}
	m.finishSessionLocked(summary)
	m.commit()
}

func (m *Machine) finishSessionLocked(summary puzzle.Summary) {
	m.stopTickLocked()
	m.engine = nil
	if err := m.deps.Ledger.Record(m.ctx, summary); err != nil {
		m.deps.Logger.Error("history.record.failed", map[string]any{"session_id": summary.ID, "error": err.Error()})
	}
	m.refreshHistoryLocked()
	last := summary
	m.last = &last
	report := m.deps.Scorer.Score(summary)
	m.deps.Logger.Info("session.finalized", map[string]any{
		"session_id": summary.ID,
		"success":    summary.Success,
		"aborted":    summary.Aborted,
		"found":      summary.Found(),
		"attempts":   summary.Attempts,
		"accuracy":   summary.Accuracy,
		"points":     report.Score.TotalPoints,
		"rating":     string(report.Rating),
	})
	m.lastDiffs = append([]string(nil), m.assets.Differences...)
	m.setStateLocked(SessionReportState{
		Summary:     summary,
		Report:      report,
		Differences: slices.Clone(m.lastDiffs),
	})
	m.assets = puzzle.Assets{}
	if summary.Success {
		m.playToneLocked(audio.ToneSuccess)
		m.speakLocked(fmt.Sprintf("Well done. You found all %d differences.", summary.Target))
	}
}

func (m *Machine) discardSessionLocked() {
	m.stopTickLocked()
	if m.engine != nil {
		m.engine.Discard()
		m.engine = nil
	}
	m.assets = puzzle.Assets{}
}

func (m *Machine) cancelGenerationLocked() {
	if m.cancelGen != nil {
		m.cancelGen()
		m.cancelGen = nil
	}
	m.pending = 0
}

func (m *Machine) armTickLocked(id string) {
	m.tick = m.deps.Scheduler.AfterFunc(tickInterval, func() { m.onTick(id) })
}

func (m *Machine) stopTickLocked() {
	if m.tick != nil {
		m.tick.Stop()
		m.tick = nil
	}
	m.elapsed = 0
}

func (m *Machine) onTick(id string) {
	m.mu.Lock()
	if m.closed || m.engine == nil || m.engine.SessionID() != id || m.engine.Finalized() {
		m.mu.Unlock()
		return
	}
	if _, ok := m.state.(ActiveSessionState); !ok {
		m.mu.Unlock()
		return
	}
	m.elapsed++
	m.refreshActiveLocked()
	m.armTickLocked(id)
	m.commit()
}

func (m *Machine) refreshActiveLocked() {
	if m.engine == nil {
		return
	}
	m.state = ActiveSessionState{
		Session:           m.engine.Session(),
		Assets:            m.assets.Clone(),
		Elapsed:           time.Duration(m.elapsed) * tickInterval,
		CompletionPending: m.engine.CompletionPending(),
	}
}

func (m *Machine) refreshHistoryLocked() {
	entries, err := m.deps.Ledger.All(m.ctx)
	if err != nil {
		m.deps.Logger.Error("history.read.failed", map[string]any{"error": err.Error()})
		return
	}
	stats, err := m.deps.Ledger.Stats(m.ctx)
	if err != nil {
		m.deps.Logger.Error("history.stats.failed", map[string]any{"error": err.Error()})
	}
	m.entries = entries
	m.stats = stats
}

func (m *Machine) originStateLocked(gs GeneratingState, msg string) State {
	if gs.Origin == ScreenClassicLevels {
		return ClassicLevelsState{Levels: m.deps.Catalog.Levels(), Error: msg}
	}
	return CustomPromptState{Prompt: gs.Prompt, Difficulty: gs.Difficulty, Error: msg}
}

func (m *Machine) stateForScreenLocked(s Screen) State {
	switch s {
	case ScreenModeSelect:
		return ModeSelectState{}
	case ScreenClassicLevels:
		return ClassicLevelsState{Levels: m.deps.Catalog.Levels()}
	case ScreenCustomPrompt:
		return CustomPromptState{Difficulty: puzzle.Easy}
	case ScreenReport:
		if m.last != nil {
			return SessionReportState{
				Summary:     *m.last,
				Report:      m.deps.Scorer.Score(*m.last),
				Differences: slices.Clone(m.lastDiffs),
			}
		}
	}
	return HomeState{}
}

func (m *Machine) setStateLocked(next State) {
	prev := m.state.Screen()
	if _, leaving := m.state.(ActiveSessionState); leaving {
		if _, staying := next.(ActiveSessionState); !staying {
			m.stopTickLocked()
		}
	}
	m.state = next
	if prev != next.Screen() {
		m.deps.Logger.Info("flow.transition", map[string]any{"from": string(prev), "to": string(next.Screen())})
	}
}

func (m *Machine) playToneLocked(kind audio.Tone) {
	n := m.deps.Notifier
	logger := m.deps.Logger
	ctx := m.ctx
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := n.PlayTone(ctx, kind); err != nil {
			logger.Error("audio.tone.failed", map[string]any{"kind": string(kind), "error": err.Error()})
		}
	}()
}

func (m *Machine) speakLocked(text string) {
	n := m.deps.Notifier
	logger := m.deps.Logger
	ctx := m.ctx
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := n.Speak(ctx, text); err != nil {
			logger.Error("audio.speak.failed", map[string]any{"error": err.Error()})
		}
	}()
}

func (m *Machine) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:   m.state,
		History: cloneSummaries(m.entries),
		Stats:   m.stats,
	}
	if m.last != nil {
		last := *m.last
		last.Markers = append([]puzzle.Marker(nil), last.Markers...)
		snap.Last = &last
	}
	return snap
}

// commit releases m.mu and delivers the new snapshot to observers in order.
func (m *Machine) commit() {
	snap := m.snapshotLocked()
	observers := slices.Clone(m.observers)
	m.notifyMu.Lock()
	m.mu.Unlock()
	defer m.notifyMu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}
}

func cloneSummaries(in []puzzle.Summary) []puzzle.Summary {
	out := make([]puzzle.Summary, len(in))
	for i, s := range in {
		s.Markers = append([]puzzle.Marker(nil), s.Markers...)
		out[i] = s
	}
	return out
}
