package flow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"focusdojo/internal/audio"
	"focusdojo/internal/curriculum"
	"focusdojo/internal/generation"
	"focusdojo/internal/history"
	"focusdojo/internal/interaction"
	"focusdojo/internal/puzzle"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type genCall struct {
	ctx        context.Context
	prompt     string
	difficulty puzzle.Difficulty
}

type fakeGenerator struct {
	mu     sync.Mutex
	calls  []genCall
	result func(prompt string) (puzzle.Assets, error)
}

func (g *fakeGenerator) GeneratePuzzle(ctx context.Context, prompt string, d puzzle.Difficulty) (puzzle.Assets, error) {
	g.mu.Lock()
	g.calls = append(g.calls, genCall{ctx: ctx, prompt: prompt, difficulty: d})
	result := g.result
	g.mu.Unlock()
	if result != nil {
		return result(prompt)
	}
	return sampleAssets(prompt), nil
}

func (g *fakeGenerator) call(t *testing.T, i int) genCall {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	if i >= len(g.calls) {
		t.Fatalf("expected generator call %d, got %d calls", i, len(g.calls))
	}
	return g.calls[i]
}

func sampleAssets(prompt string) puzzle.Assets {
	return puzzle.Assets{
		Reference:   puzzle.Image{Data: []byte("ref:" + prompt), MIMEType: "image/png"},
		Variant:     puzzle.Image{Data: []byte("var:" + prompt), MIMEType: "image/png"},
		Differences: []string{"Red door", "Missing bird", "Moved chair"},
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	tones  []audio.Tone
	speech []string
	err    error
}

func (n *recordingNotifier) PlayTone(_ context.Context, kind audio.Tone) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tones = append(n.tones, kind)
	return n.err
}

func (n *recordingNotifier) Speak(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.speech = append(n.speech, text)
	return n.err
}

type harness struct {
	m        *Machine
	sched    *interaction.ManualScheduler
	gen      *fakeGenerator
	ledger   *history.MemoryLedger
	notifier *recordingNotifier

	mu      sync.Mutex
	runs    []func()
	screens []Screen
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	catalog, err := curriculum.Builtin(context.Background())
	if err != nil {
		t.Fatalf("builtin curriculum: %v", err)
	}
	h := &harness{
		sched:    interaction.NewManualScheduler(time.Date(2026, time.May, 4, 8, 0, 0, 0, time.UTC)),
		gen:      &fakeGenerator{},
		ledger:   history.NewMemory(),
		notifier: &recordingNotifier{},
	}
	h.m, err = New(Deps{
		Generator: h.gen,
		Ledger:    h.ledger,
		Notifier:  h.notifier,
		Catalog:   catalog,
		Scheduler: h.sched,
		Spawn: func(fn func()) {
			h.mu.Lock()
			h.runs = append(h.runs, fn)
			h.mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("new machine: %v", err)
	}
	h.m.Subscribe(func(s Snapshot) {
		h.mu.Lock()
		h.screens = append(h.screens, s.Screen())
		h.mu.Unlock()
	})
	t.Cleanup(func() { _ = h.m.Close() })
	return h
}

// run executes the i-th spawned generation on the test goroutine.
func (h *harness) run(t *testing.T, i int) {
	t.Helper()
	h.mu.Lock()
	if i >= len(h.runs) {
		h.mu.Unlock()
		t.Fatalf("expected spawned run %d, got %d", i, len(h.runs))
	}
	fn := h.runs[i]
	h.mu.Unlock()
	fn()
}

func (h *harness) startCustom(t *testing.T, prompt string, d puzzle.Difficulty) {
	t.Helper()
	must(t, h.m.OpenModeSelect())
	must(t, h.m.ChooseCustom())
	must(t, h.m.SubmitPrompt(prompt, d))
	if got := h.m.Screen(); got != ScreenGenerating {
		t.Fatalf("expected generating, got %s", got)
	}
	h.mu.Lock()
	n := len(h.runs)
	h.mu.Unlock()
	h.run(t, n-1)
	if got := h.m.Screen(); got != ScreenActive {
		t.Fatalf("expected active session, got %s", got)
	}
}

func (h *harness) tap(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := h.m.Tap(float64(10*i), 20, 200, 100); err != nil {
			t.Fatalf("tap %d: %v", i, err)
		}
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func activeState(t *testing.T, m *Machine) ActiveSessionState {
	t.Helper()
	a, ok := m.Snapshot().State.(ActiveSessionState)
	if !ok {
		t.Fatalf("expected ActiveSessionState, got %T", m.Snapshot().State)
	}
	return a
}

func reportState(t *testing.T, m *Machine) SessionReportState {
	t.Helper()
	r, ok := m.Snapshot().State.(SessionReportState)
	if !ok {
		t.Fatalf("expected SessionReportState, got %T", m.Snapshot().State)
	}
	return r
}

func TestInitialStateIsHome(t *testing.T) {
	h := newHarness(t)
	snap := h.m.Snapshot()
	if _, ok := snap.State.(HomeState); !ok {
		t.Fatalf("expected HomeState, got %T", snap.State)
	}
	if snap.Last != nil || len(snap.History) != 0 {
		t.Fatalf("expected empty history, got last=%v history=%d", snap.Last, len(snap.History))
	}
}

func TestPerfectMediumRunCompletesAfterDelay(t *testing.T) {
	h := newHarness(t)
	h.startCustom(t, "a quiet harbour", puzzle.Medium)

	a := activeState(t, h.m)
	if string(a.Assets.Reference.Data) != "ref:a quiet harbour" {
		t.Fatalf("expected generated assets on the session, got %q", a.Assets.Reference.Data)
	}
	h.tap(t, 5)
	a = activeState(t, h.m)
	if !a.CompletionPending {
		t.Fatalf("expected completion to be pending after reaching target")
	}

	h.sched.Advance(999 * time.Millisecond)
	if got := h.m.Screen(); got != ScreenActive {
		t.Fatalf("expected active session before delay elapsed, got %s", got)
	}
	h.sched.Advance(time.Millisecond)

	r := reportState(t, h.m)
	s := r.Summary
	if s.Attempts != 5 || s.Found() != 5 || !s.Success || s.Accuracy != 100 || s.Aborted {
		t.Fatalf("unexpected summary %+v", s)
	}
	if len(r.Differences) != 3 {
		t.Fatalf("expected differences on report, got %v", r.Differences)
	}
	snap := h.m.Snapshot()
	if len(snap.History) != 1 || snap.History[0].ID != s.ID {
		t.Fatalf("expected finalized session at head of history, got %+v", snap.History)
	}
	if snap.Last == nil || snap.Last.ID != s.ID {
		t.Fatalf("expected last summary %s, got %+v", s.ID, snap.Last)
	}
	if h.sched.Pending() != 0 {
		t.Fatalf("expected no pending timers after finalization, got %d", h.sched.Pending())
	}

	h.m.Wait()
	h.notifier.mu.Lock()
	defer h.notifier.mu.Unlock()
	clicks, successes := 0, 0
	for _, tone := range h.notifier.tones {
		switch tone {
		case audio.ToneClick:
			clicks++
		case audio.ToneSuccess:
			successes++
		}
	}
	if clicks != 5 || successes != 1 {
		t.Fatalf("expected 5 clicks and 1 success tone, got %d and %d", clicks, successes)
	}
	if len(h.notifier.speech) != 1 || !strings.Contains(h.notifier.speech[0], "5 differences") {
		t.Fatalf("unexpected speech %v", h.notifier.speech)
	}
}

func TestHardRunIgnoresTapsAfterTarget(t *testing.T) {
	h := newHarness(t)
	h.startCustom(t, "a coral reef", puzzle.Hard)

	accepted := 0
	for i := 0; i < 10; i++ {
		tap, err := h.m.Tap(50, 50, 100, 100)
		if err != nil {
			t.Fatalf("tap %d: %v", i, err)
		}
		if tap.Accepted {
			accepted++
		}
	}
	if accepted != 8 {
		t.Fatalf("expected 8 accepted taps, got %d", accepted)
	}
	h.sched.Advance(time.Second)
	s := reportState(t, h.m).Summary
	if s.Attempts != 8 || s.Found() != 8 || !s.Success {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestAbortMidSession(t *testing.T) {
	h := newHarness(t)
	h.startCustom(t, "a bakery window", puzzle.Easy)
	h.tap(t, 1)
	must(t, h.m.Abort())
	first := reportState(t, h.m).Summary
	must(t, h.m.Home())

	h.startCustom(t, "a market stall", puzzle.Medium)
	h.tap(t, 2)
	must(t, h.m.Abort())

	s := reportState(t, h.m).Summary
	if s.Success || !s.Aborted || s.Found() != 2 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if want := puzzle.Accuracy(2, s.Attempts); s.Accuracy != want {
		t.Fatalf("expected accuracy %d, got %d", want, s.Accuracy)
	}
	all, _ := h.ledger.All(context.Background())
	if len(all) != 2 || all[0].ID != s.ID || all[1].ID != first.ID {
		t.Fatalf("expected aborted session at head of the ledger, got %+v", all)
	}
	snap := h.m.Snapshot()
	if len(snap.History) != 2 || snap.History[0].ID != s.ID {
		t.Fatalf("expected aborted session at head of history, got %+v", snap.History)
	}
	if h.sched.Pending() != 0 {
		t.Fatalf("expected timers stopped, got %d pending", h.sched.Pending())
	}
	if err := h.m.Abort(); err == nil {
		t.Fatalf("expected abort on report screen to fail")
	}
}

func TestAbortBeforeScheduledCompletionFinalizesOnce(t *testing.T) {
	h := newHarness(t)
	h.startCustom(t, "a toy workshop", puzzle.Easy)
	h.tap(t, 3)
	must(t, h.m.Abort())

	s := reportState(t, h.m).Summary
	if !s.Success || !s.Aborted {
		t.Fatalf("expected success with abort flag after reaching target, got %+v", s)
	}
	h.sched.Advance(2 * time.Second)
	all, _ := h.ledger.All(context.Background())
	if len(all) != 1 {
		t.Fatalf("expected exactly one finalization, got %d", len(all))
	}
	if got := h.m.Screen(); got != ScreenReport {
		t.Fatalf("expected to stay on report, got %s", got)
	}
}

func TestElapsedCounterRunsOnlyWhileActive(t *testing.T) {
	h := newHarness(t)
	h.startCustom(t, "a night train", puzzle.Medium)
	h.sched.Advance(3 * time.Second)
	if got := activeState(t, h.m).Elapsed; got != 3*time.Second {
		t.Fatalf("expected 3s elapsed, got %s", got)
	}
	must(t, h.m.Abort())
	h.sched.Advance(5 * time.Second)

	must(t, h.m.TryAnother())
	must(t, h.m.ChooseCustom())
	must(t, h.m.SubmitPrompt("a winter festival", puzzle.Easy))
	h.run(t, 1)
	if got := activeState(t, h.m).Elapsed; got != 0 {
		t.Fatalf("expected counter reset for new session, got %s", got)
	}
	h.sched.Advance(time.Second)
	if got := activeState(t, h.m).Elapsed; got != time.Second {
		t.Fatalf("expected 1s elapsed, got %s", got)
	}
}

func TestGenerationFailureReturnsToOrigin(t *testing.T) {
	h := newHarness(t)
	h.gen.result = func(string) (puzzle.Assets, error) {
		return puzzle.Assets{}, &generation.GenerationError{Step: generation.StepImage, Err: errors.New("quota exceeded")}
	}

	must(t, h.m.OpenModeSelect())
	must(t, h.m.ChooseClassic())
	must(t, h.m.PickLevel(2))
	h.run(t, 0)
	cl, ok := h.m.Snapshot().State.(ClassicLevelsState)
	if !ok {
		t.Fatalf("expected ClassicLevelsState, got %T", h.m.Snapshot().State)
	}
	if !strings.Contains(cl.Error, "image") || !strings.Contains(cl.Error, "quota exceeded") {
		t.Fatalf("unexpected error message %q", cl.Error)
	}

	must(t, h.m.Back())
	must(t, h.m.ChooseCustom())
	must(t, h.m.SubmitPrompt("a garden gate", puzzle.Hard))
	h.run(t, 1)
	cp, ok := h.m.Snapshot().State.(CustomPromptState)
	if !ok {
		t.Fatalf("expected CustomPromptState, got %T", h.m.Snapshot().State)
	}
	if cp.Prompt != "a garden gate" || cp.Difficulty != puzzle.Hard || cp.Error == "" {
		t.Fatalf("expected prompt kept with error, got %+v", cp)
	}
	if all, _ := h.ledger.All(context.Background()); len(all) != 0 {
		t.Fatalf("expected no history after failures, got %d", len(all))
	}
}

func TestConcurrentGenerationErrorIsSurfaced(t *testing.T) {
	h := newHarness(t)
	h.gen.result = func(string) (puzzle.Assets, error) {
		return puzzle.Assets{}, generation.ErrConcurrentGeneration
	}
	must(t, h.m.OpenModeSelect())
	must(t, h.m.ChooseCustom())
	must(t, h.m.SubmitPrompt("a reading nook", puzzle.Easy))
	h.run(t, 0)
	cp := h.m.Snapshot().State.(CustomPromptState)
	if !strings.Contains(cp.Error, "already being generated") {
		t.Fatalf("unexpected error message %q", cp.Error)
	}
}

func TestBlankPromptIsInvalidInput(t *testing.T) {
	h := newHarness(t)
	must(t, h.m.OpenModeSelect())
	must(t, h.m.ChooseCustom())

	err := h.m.SubmitPrompt("   ", puzzle.Easy)
	var inputErr *InvalidInputError
	if !errors.As(err, &inputErr) || inputErr.Field != "prompt" {
		t.Fatalf("expected InvalidInputError for prompt, got %v", err)
	}
	cp, ok := h.m.Snapshot().State.(CustomPromptState)
	if !ok || cp.Error == "" {
		t.Fatalf("expected prompt screen with error, got %#v", h.m.Snapshot().State)
	}
	h.mu.Lock()
	spawned := len(h.runs)
	h.mu.Unlock()
	if spawned != 0 {
		t.Fatalf("expected no generation to start, got %d", spawned)
	}

	err = h.m.SubmitPrompt("a kitchen", puzzle.Difficulty(9))
	if !errors.As(err, &inputErr) || inputErr.Field != "difficulty" {
		t.Fatalf("expected InvalidInputError for difficulty, got %v", err)
	}
}

func TestStaleGenerationResultIsDiscarded(t *testing.T) {
	h := newHarness(t)
	must(t, h.m.OpenModeSelect())
	must(t, h.m.ChooseCustom())
	must(t, h.m.SubmitPrompt("first scene", puzzle.Easy))

	must(t, h.m.Home())
	must(t, h.m.OpenModeSelect())
	must(t, h.m.ChooseCustom())
	must(t, h.m.SubmitPrompt("second scene", puzzle.Medium))

	// The first run resolves late, while the second is pending.
	h.run(t, 0)
	if got := h.m.Screen(); got != ScreenGenerating {
		t.Fatalf("expected stale result to be ignored, got %s", got)
	}
	if err := h.gen.call(t, 0).ctx.Err(); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected abandoned run's context to be cancelled, got %v", err)
	}

	h.run(t, 1)
	a := activeState(t, h.m)
	if a.Session.Prompt != "second scene" || a.Session.Difficulty != puzzle.Medium {
		t.Fatalf("expected second session, got %+v", a.Session)
	}
	if string(a.Assets.Reference.Data) != "ref:second scene" {
		t.Fatalf("expected second scene assets, got %q", a.Assets.Reference.Data)
	}
}

func TestBackFromGeneratingCancels(t *testing.T) {
	h := newHarness(t)
	must(t, h.m.OpenModeSelect())
	must(t, h.m.ChooseClassic())
	must(t, h.m.PickLevel(1))
	must(t, h.m.Back())
	if got := h.m.Screen(); got != ScreenClassicLevels {
		t.Fatalf("expected classic levels, got %s", got)
	}
	h.run(t, 0)
	if got := h.m.Screen(); got != ScreenClassicLevels {
		t.Fatalf("expected late result to be dropped, got %s", got)
	}
}

func TestPickLevelUsesCurriculum(t *testing.T) {
	h := newHarness(t)
	must(t, h.m.OpenModeSelect())
	must(t, h.m.ChooseClassic())
	cl := h.m.Snapshot().State.(ClassicLevelsState)
	if len(cl.Levels) != 9 {
		t.Fatalf("expected 9 levels listed, got %d", len(cl.Levels))
	}
	must(t, h.m.PickLevel(5))
	h.run(t, 0)

	call := h.gen.call(t, 0)
	if call.difficulty != puzzle.Medium || !strings.Contains(call.prompt, "market") {
		t.Fatalf("unexpected generation request %+v", call)
	}
	a := activeState(t, h.m)
	if a.Session.Mode != puzzle.ModeClassic || a.Session.LevelNumber != 5 {
		t.Fatalf("unexpected classic session %+v", a.Session)
	}
	if err := h.m.PickLevel(0); err == nil {
		t.Fatalf("expected pick level to fail outside the level list")
	}
}

func TestTransitionErrors(t *testing.T) {
	h := newHarness(t)
	var te *TransitionError
	if _, err := h.m.Tap(1, 1, 10, 10); !errors.As(err, &te) || te.From != ScreenHome {
		t.Fatalf("expected TransitionError from home, got %v", err)
	}
	if err := h.m.ChooseClassic(); !errors.As(err, &te) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if err := h.m.TryAnother(); !errors.As(err, &te) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	h.startCustom(t, "a harbour", puzzle.Easy)
	if err := h.m.Back(); !errors.As(err, &te) || te.From != ScreenActive {
		t.Fatalf("expected back to be refused during a session, got %v", err)
	}
	if _, err := h.m.Tap(1, 1, 0, 10); !errors.Is(err, interaction.ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry, got %v", err)
	}
}

func TestHomeDiscardsActiveSession(t *testing.T) {
	h := newHarness(t)
	h.startCustom(t, "a harbour", puzzle.Easy)
	h.tap(t, 3)
	must(t, h.m.Home())
	h.sched.Advance(2 * time.Second)
	if got := h.m.Screen(); got != ScreenHome {
		t.Fatalf("expected home, got %s", got)
	}
	if all, _ := h.ledger.All(context.Background()); len(all) != 0 {
		t.Fatalf("expected discarded session to stay out of history, got %d", len(all))
	}
	if h.sched.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", h.sched.Pending())
	}
}

func TestHistoryAndGuideNavigation(t *testing.T) {
	h := newHarness(t)
	h.startCustom(t, "a harbour", puzzle.Easy)
	must(t, h.m.Abort())
	must(t, h.m.OpenHistory())
	hs := h.m.Snapshot().State.(HistoryState)
	if len(hs.Entries) != 1 || hs.From != ScreenReport || hs.Stats.Sessions != 1 {
		t.Fatalf("unexpected history state %+v", hs)
	}
	must(t, h.m.Back())
	r := reportState(t, h.m)
	if len(r.Differences) != 3 {
		t.Fatalf("expected report differences restored, got %v", r.Differences)
	}
	must(t, h.m.Home())
	must(t, h.m.OpenGuide())
	must(t, h.m.Back())
	if got := h.m.Screen(); got != ScreenHome {
		t.Fatalf("expected home after guide, got %s", got)
	}
}

func TestObserversSeeEveryChange(t *testing.T) {
	h := newHarness(t)
	h.startCustom(t, "a harbour", puzzle.Easy)
	h.tap(t, 3)
	h.sched.Advance(time.Second)

	h.mu.Lock()
	defer h.mu.Unlock()
	want := []Screen{ScreenHome, ScreenModeSelect, ScreenCustomPrompt, ScreenGenerating, ScreenActive}
	if len(h.screens) < len(want) {
		t.Fatalf("expected at least %d snapshots, got %v", len(want), h.screens)
	}
	for i, s := range want {
		if h.screens[i] != s {
			t.Fatalf("snapshot %d: expected %s, got %s", i, s, h.screens[i])
		}
	}
	if last := h.screens[len(h.screens)-1]; last != ScreenReport {
		t.Fatalf("expected final snapshot on report, got %s", last)
	}
}

func TestAudioFailuresDoNotAffectSession(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = errors.New("no sound card")
	h.startCustom(t, "a harbour", puzzle.Easy)
	h.tap(t, 3)
	h.sched.Advance(time.Second)
	h.m.Wait()
	if s := reportState(t, h.m).Summary; !s.Success {
		t.Fatalf("expected success despite audio errors, got %+v", s)
	}
}

func TestGenerationRunsOffCallerGoroutine(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	gen := &fakeGenerator{result: func(p string) (puzzle.Assets, error) {
		close(entered)
		<-release
		return sampleAssets(p), nil
	}}
	m, err := New(Deps{Generator: gen, Scheduler: interaction.NewManualScheduler(time.Now())})
	if err != nil {
		t.Fatalf("new machine: %v", err)
	}
	defer func() { _ = m.Close() }()

	active := make(chan struct{}, 1)
	m.Subscribe(func(s Snapshot) {
		if s.Screen() == ScreenActive {
			select {
			case active <- struct{}{}:
			default:
			}
		}
	})
	must(t, m.OpenModeSelect())
	must(t, m.ChooseCustom())
	must(t, m.SubmitPrompt("a harbour", puzzle.Easy))
	<-entered
	if got := m.Screen(); got != ScreenGenerating {
		t.Fatalf("expected generating while provider runs, got %s", got)
	}
	close(release)
	select {
	case <-active:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for active session")
	}
}

func TestNewRequiresGenerator(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Fatalf("expected error without generator")
	}
}
