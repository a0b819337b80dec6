package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"focusdojo/internal/audio"
	"focusdojo/internal/curriculum"
	"focusdojo/internal/devtools"
	"focusdojo/internal/flow"
	"focusdojo/internal/generation"
	"focusdojo/internal/history"
	"focusdojo/internal/interaction"
	"focusdojo/internal/provider"
	"focusdojo/internal/puzzle"
	"focusdojo/internal/scoring"
	"focusdojo/internal/telemetry"
	"focusdojo/internal/ui"

	"github.com/google/uuid"
)

const pumpInterval = 100 * time.Millisecond

type App struct {
	cfg Config

	logger   *telemetry.Logger
	ledger   history.Ledger
	catalog  *curriculum.Catalog
	provider generation.ContentProvider
	machine  Flow
	view     ui.View
	demo     *devtools.Manager

	// sched is set in dev mode, where demos move the clock by hand.
	sched *interaction.ManualScheduler

	sessionID string

	runCtx    context.Context
	runCancel context.CancelFunc
	pumpDone  chan struct{}

	devMu     sync.Mutex
	devServer *http.Server
	demoMu    sync.Mutex
	devState  struct {
		State     string
		Demo      string
		RenderSeq int
		Rendered  bool
		Pending   bool
		Error     string
	}
}

type Option func(*appOptions)

type appOptions struct {
	view     ui.View
	provider generation.ContentProvider
}

// WithView replaces the terminal UI, mainly for tests.
func WithView(v ui.View) Option {
	return func(o *appOptions) { o.view = v }
}

// WithProvider replaces the provider named in the config.
func WithProvider(p generation.ContentProvider) Option {
	return func(o *appOptions) { o.provider = p }
}

func New(ctx context.Context, cfg Config, opts ...Option) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	logger, err := telemetry.NewLogger(cfg.LogPath)
	if err != nil {
		return nil, err
	}

	ledger, err := history.New(ctx, cfg.HistoryBackend)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	catalog, err := loadCatalog(ctx, cfg.CurriculumDir)
	if err != nil {
		_ = ledger.Close()
		_ = logger.Close()
		return nil, err
	}

	contentProvider := o.provider
	if contentProvider == nil {
		contentProvider, err = provider.New(ctx, cfg.providerConfig())
		if err != nil {
			_ = ledger.Close()
			_ = logger.Close()
			return nil, err
		}
	}

	view := o.view
	if view == nil {
		view = ui.New(ui.Options{
			ASCIIOnly:    cfg.UI.ASCIIOnly,
			Debug:        cfg.UI.DebugLayout,
			StyleVariant: cfg.UI.StyleVariant,
			MotionLevel:  cfg.UI.MotionLevel,
		})
	}

	a := &App{
		cfg:       cfg,
		logger:    logger,
		ledger:    ledger,
		catalog:   catalog,
		provider:  contentProvider,
		view:      view,
		demo:      devtools.NewManager(),
		sessionID: uuid.NewString(),
	}

	deps := flow.Deps{
		Generator:       generation.NewPipeline(contentProvider, logger),
		Ledger:          ledger,
		Notifier:        audio.New(cfg.Audio, nil),
		Scorer:          scoring.NewScorer(scoring.Options{}),
		Catalog:         catalog,
		CompletionDelay: msDuration(cfg.CompletionDelayMS),
		Logger:          logger,
	}
	if cfg.Dev {
		a.sched = interaction.NewManualScheduler(time.Now())
		deps.Scheduler = a.sched
		deps.Spawn = func(fn func()) { fn() }
	}
	machine, err := flow.New(deps)
	if err != nil {
		_ = ledger.Close()
		_ = logger.Close()
		return nil, err
	}
	a.machine = machine
	view.SetController(a)
	return a, nil
}

func loadCatalog(ctx context.Context, dir string) (*curriculum.Catalog, error) {
	if dir == "" {
		return curriculum.Builtin(ctx)
	}
	packs, err := curriculum.NewLoader().LoadPacks(ctx, dir)
	if err != nil {
		return nil, err
	}
	if len(packs) == 0 {
		return nil, fmt.Errorf("no curriculum packs under %s", dir)
	}
	return curriculum.NewCatalog(packs)
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("app.start", map[string]any{
		"session":  a.sessionID,
		"provider": a.cfg.Provider,
		"history":  a.cfg.HistoryBackend,
		"audio":    a.cfg.Audio,
		"levels":   len(a.catalog.Levels()),
	})

	a.runCtx, a.runCancel = context.WithCancel(ctx)
	a.machine.Subscribe(a.onSnapshot)

	if a.cfg.Dev {
		a.startPump()
		if err := a.startDevHTTP(); err != nil {
			return err
		}
		if a.cfg.DemoScenario != "" {
			if _, err := a.runDemoScenario(a.runCtx, a.cfg.DemoScenario); err != nil {
				a.logger.Error("dev.demo.initial_failed", map[string]any{"demo": a.cfg.DemoScenario, "error": err.Error()})
			}
		}
	}

	return a.view.Run()
}

func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.runCancel != nil {
		a.runCancel()
	}
	if a.pumpDone != nil {
		<-a.pumpDone
	}
	a.devMu.Lock()
	srv := a.devServer
	a.devMu.Unlock()
	if srv != nil {
		_ = srv.Shutdown(ctx)
	}
	_ = a.machine.Close()
	_ = a.ledger.Close()
	a.logger.Info("app.stop", map[string]any{"session": a.sessionID})
	_ = a.logger.Close()
}

func (a *App) onSnapshot(snap flow.Snapshot) {
	a.view.SetSnapshot(snap)
	if a.cfg.Dev {
		a.noteScreen(snap.Screen())
	}
}

// startPump advances the manual clock in real time between demo steps.
func (a *App) startPump() {
	a.pumpDone = make(chan struct{})
	go func() {
		defer close(a.pumpDone)
		t := time.NewTicker(pumpInterval)
		defer t.Stop()
		for {
			select {
			case <-a.runCtx.Done():
				return
			case <-t.C:
				a.sched.Advance(pumpInterval)
			}
		}
	}()
}

func (a *App) advance(d time.Duration) {
	if a.sched != nil {
		a.sched.Advance(d)
	}
}

// intent runs a machine call and reports refusals in the log. Invalid input
// is already shown by the state itself.
func (a *App) intent(op string, fn func() error) {
	err := fn()
	if err == nil {
		return
	}
	var invalid *flow.InvalidInputError
	var transition *flow.TransitionError
	switch {
	case errors.As(err, &invalid):
		a.logger.Debug("intent.invalid_input", map[string]any{"op": op, "error": err.Error()})
	case errors.As(err, &transition):
		a.logger.Debug("intent.refused", map[string]any{"op": op, "error": err.Error()})
	case errors.Is(err, flow.ErrClosed):
	default:
		a.logger.Error("intent.failed", map[string]any{"op": op, "error": err.Error()})
		a.view.FlashStatus(err.Error())
	}
}

func (a *App) OnHome()           { a.intent("home", a.machine.Home) }
func (a *App) OnOpenModeSelect() { a.intent("open_mode_select", a.machine.OpenModeSelect) }
func (a *App) OnChooseClassic()  { a.intent("choose_classic", a.machine.ChooseClassic) }
func (a *App) OnChooseCustom()   { a.intent("choose_custom", a.machine.ChooseCustom) }
func (a *App) OnTryAnother()     { a.intent("try_another", a.machine.TryAnother) }
func (a *App) OnOpenHistory()    { a.intent("open_history", a.machine.OpenHistory) }
func (a *App) OnOpenGuide()      { a.intent("open_guide", a.machine.OpenGuide) }
func (a *App) OnBack()           { a.intent("back", a.machine.Back) }
func (a *App) OnAbort()          { a.intent("abort", a.machine.Abort) }

func (a *App) OnPickLevel(n int) {
	a.intent("pick_level", func() error { return a.machine.PickLevel(n) })
}

func (a *App) OnSubmitPrompt(prompt string, difficulty puzzle.Difficulty) {
	a.intent("submit_prompt", func() error { return a.machine.SubmitPrompt(prompt, difficulty) })
}

func (a *App) OnTap(px, py, w, h float64) {
	a.intent("tap", func() error {
		_, err := a.machine.Tap(px, py, w, h)
		return err
	})
}

func (a *App) OnQuit() {
	a.logger.Info("app.quit", map[string]any{"screen": string(a.machine.Snapshot().Screen())})
	a.view.Stop()
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

var _ ui.Controller = (*App)(nil)
