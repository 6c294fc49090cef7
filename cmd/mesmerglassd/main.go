// Command mesmerglassd is the demo harness for the MesmerGlass core
// engine: it loads a session file, runs one cuelist through the
// Session Runner, and logs the resulting cue/transition/error events.
// Flag and config-file wiring live here, on spf13/cobra + spf13/viper;
// the core engine itself never parses a session file or a flag.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/mesmerglass/engine/internal/audio"
	"github.com/mesmerglass/engine/internal/compositor"
	"github.com/mesmerglass/engine/internal/config"
	"github.com/mesmerglass/engine/internal/director"
	"github.com/mesmerglass/engine/internal/events"
	"github.com/mesmerglass/engine/internal/media"
	"github.com/mesmerglass/engine/internal/runner"
	"github.com/mesmerglass/engine/internal/telemetry"
)

const version = "0.1.0"

var (
	cfgFile    string
	cuelistKey string
	logLevel   string
	width      int
	height     int
)

var log = logrus.NewEntry(logrus.StandardLogger())

var rootCmd = &cobra.Command{
	Use:   "mesmerglassd",
	Short: "MesmerGlass core engine demo harness",
}

var playCmd = &cobra.Command{
	Use:   "play <session.json>",
	Short: "Load a session file and run one cuelist until it stops or is interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlay(args[0])
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <session.json>",
	Short: "Load a session file and report whether it passes the engine's invariant checks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(args[0])
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mesmerglassd v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (overrides engine defaults)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	playCmd.Flags().StringVar(&cuelistKey, "cuelist", "main", "cuelist key to run")
	playCmd.Flags().IntVar(&width, "width", 1280, "surface width in pixels")
	playCmd.Flags().IntVar(&height, "height", 720, "surface height in pixels")

	rootCmd.AddCommand(playCmd, validateCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig builds the engine's tuning config, starting from
// config.Default() and layering any overrides bound via viper: the
// only place the engine's timing/capacity constants are ever
// overridden from outside.
func loadConfig() config.Config {
	cfg := config.Default()
	if cfgFile == "" {
		return cfg
	}
	v := viper.New()
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		log.WithError(err).Warn("config file not readable, using defaults")
		return cfg
	}
	if v.IsSet("max_transition_wait_s") {
		cfg.MaxTransitionWait = time.Duration(v.GetFloat64("max_transition_wait_s") * float64(time.Second))
	}
	if v.IsSet("prefetch_block_limit_ms") {
		cfg.PrefetchBlockLimit = time.Duration(v.GetFloat64("prefetch_block_limit_ms") * float64(time.Millisecond))
	}
	if v.IsSet("n_lookahead") {
		cfg.NLookahead = v.GetInt("n_lookahead")
	}
	if v.IsSet("image_workers") {
		cfg.ImageWorkers = v.GetInt("image_workers")
	}
	if v.IsSet("target_fps") {
		cfg.TargetFPS = v.GetFloat64("target_fps")
	}
	return cfg
}

func initLogging() {
	lvl, err := logrus.ParseLevel(logLevel)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   term.IsTerminal(int(os.Stdout.Fd())),
	})
	log = logrus.NewEntry(logrus.StandardLogger())
}

func runValidate(path string) error {
	initLogging()
	sess, err := LoadSession(path)
	if err != nil {
		return err
	}
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("invalid: %w", err)
	}
	fmt.Printf("%s: valid (%d playbacks, %d cuelists)\n", path, len(sess.Playbacks), len(sess.Cuelists))
	return nil
}

func runPlay(path string) error {
	initLogging()
	cfg := loadConfig()

	sess, err := LoadSession(path)
	if err != nil {
		return err
	}

	dispatch := events.New()
	dispatch.OnCueStarted(func(idx int, name string) {
		log.WithField("cue", idx).WithField("name", name).Info("cue started")
	})
	dispatch.OnCueEnded(func(idx int) {
		log.WithField("cue", idx).Info("cue ended")
	})
	dispatch.OnTransitionPending(func(reason string) {
		log.WithField("reason", reason).Info("transition pending")
	})
	dispatch.OnError(func(kind events.ErrorKind, detail string) {
		log.WithField("kind", kind.String()).WithField("detail", detail).Error("engine error")
	})

	renderer, err := newSurfaceRenderer()
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	comp := compositor.New(log, dispatch)
	comp.AttachSurface("main", renderer)

	cache := media.NewCache(log, cfg.ImageWorkers, placeholderFrameDecoder{})
	defer cache.Close()

	d := director.New(log, comp, cache, dispatch, cfg.TargetFPS, cfg.FadeQueueCapacity)

	eng := audio.NewEngine(cfg.AudioSampleRate, placeholderAudioDecoder{sampleRate: cfg.AudioSampleRate}, log)
	defer eng.Close()
	sink, err := audio.NewOtoSink(cfg.AudioSampleRate, eng)
	if err != nil {
		log.WithError(err).Warn("audio sink unavailable, continuing silently")
	} else {
		sink.Start()
		defer sink.Close()
	}

	tel := telemetry.New()

	run := runner.New(log, dispatch, tel, d, eng, cfg)
	run.SetDeviceController(loggingDeviceController{log: log})
	d.RegisterCycleBoundary(run.OnCycleBoundary)

	if err := run.Load(sess, cuelistKey); err != nil {
		return fmt.Errorf("load cuelist %q: %w", cuelistKey, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		run.Stop()
		cancel()
	}()

	if err := run.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	return runLoop(renderer, d, run, tel, width, height, cfg.TargetFPS)
}
