package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"focusdojo/internal/app"
	"focusdojo/internal/devtools"

	"github.com/spf13/cobra"
)

type flagValues struct {
	configPath      string
	provider        string
	history         string
	audio           string
	logPath         string
	dev             bool
	devHTTP         string
	demo            string
	style           string
	motion          string
	ascii           bool
	debugLayout     bool
	completionDelay int
	latency         int
	curriculumDir   string
	cacheDir        string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var fv flagValues
	root := &cobra.Command{
		Use:   "focusdojo",
		Short: "Spot-the-difference training in the terminal",
		Long: `FocusDojo shows a reference picture next to a subtly altered copy.
Tap every difference on the altered copy to finish a session.

Pictures come from Gemini when GEMINI_API_KEY is set, and from a built-in
procedural painter otherwise.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, fv)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	f := root.Flags()
	f.StringVar(&fv.configPath, "config", "", "path to a YAML config file")
	f.StringVar(&fv.provider, "provider", "", "content provider: gemini or procedural")
	f.StringVar(&fv.history, "history", "", "history backend: memory or sqlite")
	f.StringVar(&fv.audio, "audio", "", "audio feedback: off, bell or speech")
	f.StringVar(&fv.logPath, "log", "", "write JSON logs to this file")
	f.BoolVar(&fv.dev, "dev", false, "enable the dev HTTP server and manual clock")
	f.StringVar(&fv.devHTTP, "dev-http", "", "dev HTTP listen address")
	f.StringVar(&fv.demo, "demo", "", "play a demo scenario on start (implies --dev)")
	f.StringVar(&fv.style, "style", "", "ui style: modern_arcade, cozy_clean or retro_terminal")
	f.StringVar(&fv.motion, "motion", "", "ui motion: full, reduced or off")
	f.BoolVar(&fv.ascii, "ascii", false, "draw pictures and borders with ASCII only")
	f.BoolVar(&fv.debugLayout, "debug-layout", false, "show layout diagnostics in the status bar")
	f.IntVar(&fv.completionDelay, "completion-delay-ms", 0, "pause between the last tap and the report")
	f.IntVar(&fv.latency, "provider-latency-ms", 0, "artificial latency for the procedural provider")
	f.StringVar(&fv.curriculumDir, "curriculum-dir", "", "load classic levels from YAML packs in this directory")
	f.StringVar(&fv.cacheDir, "cache-dir", "", "directory for dev state files")

	root.AddCommand(newDemosCmd())
	return root
}

func newDemosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demos",
		Short: "List demo scenarios accepted by --demo",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range devtools.NewManager().Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

// resolveConfig layers explicitly set flags over file and environment values.
func resolveConfig(cmd *cobra.Command, fv flagValues) (app.Config, error) {
	cfg, err := app.LoadConfig(fv.configPath, nil)
	if err != nil {
		return cfg, err
	}
	changed := cmd.Flags().Changed
	if changed("provider") {
		cfg.Provider = fv.provider
	}
	if changed("history") {
		cfg.HistoryBackend = fv.history
	}
	if changed("audio") {
		cfg.Audio = fv.audio
	}
	if changed("log") {
		cfg.LogPath = fv.logPath
	}
	if changed("dev") {
		cfg.Dev = fv.dev
	}
	if changed("dev-http") {
		cfg.DevHTTP = fv.devHTTP
	}
	if changed("demo") {
		cfg.DemoScenario = fv.demo
	}
	if changed("style") {
		cfg.UI.StyleVariant = fv.style
	}
	if changed("motion") {
		cfg.UI.MotionLevel = fv.motion
	}
	if changed("ascii") {
		cfg.UI.ASCIIOnly = fv.ascii
	}
	if changed("debug-layout") {
		cfg.UI.DebugLayout = fv.debugLayout
	}
	if changed("completion-delay-ms") {
		cfg.CompletionDelayMS = fv.completionDelay
	}
	if changed("provider-latency-ms") {
		cfg.ProviderLatencyMS = fv.latency
	}
	if changed("curriculum-dir") {
		cfg.CurriculumDir = fv.curriculumDir
	}
	if changed("cache-dir") {
		cfg.CacheDir = fv.cacheDir
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(parent context.Context, cfg app.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			a.OnQuit()
		case <-done:
		}
	}()
	return a.Run(ctx)
}
