package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/woxQAQ/fchost/internal/bridge"
	"github.com/woxQAQ/fchost/internal/config"
	"github.com/woxQAQ/fchost/internal/display"
	"github.com/woxQAQ/fchost/internal/guest"
	"github.com/woxQAQ/fchost/internal/host"
	"github.com/woxQAQ/fchost/internal/wasm"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to configuration file")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	module := flag.String("module", "", "Path or URL of the guest .wasm module")
	payload := flag.String("payload", "", "File to start the guest with")
	frontend := flag.String("frontend", "", "Frontend (terminal, window, headless)")
	watch := flag.Bool("watch", false, "Reload the guest when its module file changes")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadHostConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fchost: failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *module != "" {
		cfg.Guest.Module = *module
	}
	if *payload != "" {
		cfg.Payload = *payload
	}
	if *frontend != "" {
		cfg.Frontend = *frontend
	}
	if *watch {
		cfg.Watch = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "fchost: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fchost: failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting fchost",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("date", date),
		zap.String("frontend", cfg.Frontend),
	)

	name, err := resolveGuest(logger, cfg)
	if err != nil {
		logger.Fatal("Failed to resolve guest", zap.Error(err))
	}

	if err := run(logger, cfg, name); err != nil {
		logger.Fatal("fchost stopped with error", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}

func run(logger *zap.Logger, cfg *config.HostConfig, name string) error {
	// Handle shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	front := newFrontend(logger, cfg, name)

	audio, closeAudio, err := newAudioDevice(cfg)
	if err != nil {
		return err
	}
	defer closeAudio()

	hostConfig := host.DefaultConfig()
	hostConfig.Runtime = &wasm.RuntimeConfig{
		MemoryPages:  cfg.Wasm.MemoryPages,
		DebugEnabled: cfg.Wasm.Debug,
		CacheDir:     cfg.Wasm.CacheDir,
		WASI:         cfg.Wasm.WASI,
		MaxInstances: cfg.Wasm.MaxInstances,
	}
	hostConfig.Session.Width = cfg.Display.Width
	hostConfig.Session.Height = cfg.Display.Height
	hostConfig.Session.Audio = bridge.AudioConfig{
		Enabled:      cfg.Audio.Enabled,
		SampleRate:   cfg.Audio.SampleRate,
		RenderPeriod: cfg.Audio.RenderPeriod,
	}
	hostConfig.Session.FrameDevice = front
	hostConfig.Session.AudioDevice = audio
	hostConfig.FramePeriod = cfg.Display.FramePeriod

	h, err := host.New(ctx, logger, hostConfig)
	if err != nil {
		return fmt.Errorf("failed to create host: %w", err)
	}
	defer h.Close(context.Background())

	if err := h.Load(ctx, wasm.SourceFor(cfg.Guest.Module)); err != nil {
		// Interactive frontends stay up to show the failure.
		if cfg.Frontend == config.FrontendHeadless {
			return err
		}
		logger.Error("Failed to load guest", zap.Error(err))
	}

	if cfg.Payload != "" {
		data, err := os.ReadFile(cfg.Payload)
		if err != nil {
			return fmt.Errorf("failed to read payload: %w", err)
		}
		switch err := h.SubmitPayload(filepath.Base(cfg.Payload), data); {
		case errors.Is(err, host.ErrNotReady):
			// The guest failed to load; the status already says why.
			logger.Warn("Payload not submitted", zap.String("payload", cfg.Payload), zap.Error(err))
		case err != nil:
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return h.Run(gctx) })

	if cfg.Watch {
		if isURL(cfg.Guest.Module) {
			logger.Warn("Ignoring watch for a remote module", zap.String("module", cfg.Guest.Module))
		} else {
			g.Go(func() error { return h.Watch(gctx, cfg.Guest.Module) })
		}
	}

	// Window toolkits want the main goroutine.
	frontErr := front.Run(gctx, h)
	cancel()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return frontErr
}

func newLogger(cfg *config.HostConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if cfg.LogLevel == "debug" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level

	// The terminal frontend owns the screen.
	if cfg.Frontend == config.FrontendTerminal {
		zcfg.OutputPaths = []string{cfg.LogFile}
		zcfg.ErrorOutputPaths = []string{cfg.LogFile}
	}
	return zcfg.Build()
}

// resolveGuest points cfg.Guest.Module at the guest named by manifest_dir
// or name and returns a display name for it.
func resolveGuest(logger *zap.Logger, cfg *config.HostConfig) (string, error) {
	loader := guest.NewLoader(logger)

	var g *guest.Guest
	switch {
	case cfg.Guest.ManifestDir != "":
		var err error
		if g, err = loader.LoadGuest(cfg.Guest.ManifestDir); err != nil {
			return "", err
		}

	case cfg.Guest.Name != "":
		guests, err := loader.Discover(cfg.GuestPaths)
		if err != nil {
			return "", err
		}
		catalog := guest.NewCatalog(logger)
		catalog.RegisterAll(guests)
		if g, err = catalog.Resolve(cfg.Guest.Name); err != nil {
			return "", err
		}

	default:
		return strings.TrimSuffix(filepath.Base(cfg.Guest.Module), ".wasm"), nil
	}

	g.Manifest.Apply(cfg)
	logger.Info("Guest resolved",
		zap.String("name", g.Name()),
		zap.String("version", g.Version()),
		zap.String("module", cfg.Guest.Module),
	)
	return g.Name(), nil
}

func newFrontend(logger *zap.Logger, cfg *config.HostConfig, name string) display.Frontend {
	switch cfg.Frontend {
	case config.FrontendWindow:
		return display.NewWindow(logger, display.WindowConfig{
			Title:  "fchost: " + name,
			Width:  cfg.Display.Width,
			Height: cfg.Display.Height,
			Scale:  cfg.Display.Scale,
		})
	case config.FrontendHeadless:
		return display.NewHeadless(logger, display.HeadlessConfig{
			Dir:   cfg.Display.SnapshotDir,
			Every: cfg.Display.SnapshotEvery,
			Scale: cfg.Display.Scale,
		})
	default:
		return display.NewTerminal(logger, display.TerminalConfig{
			ReleaseDelay: cfg.Input.ReleaseDelay,
			Payload:      cfg.Payload,
		})
	}
}

func newAudioDevice(cfg *config.HostConfig) (bridge.AudioDevice, func(), error) {
	if !cfg.Audio.Enabled || cfg.Audio.WavPath == "" {
		return display.Discard, func() {}, nil
	}
	w, err := display.CreateWAV(cfg.Audio.WavPath, cfg.Audio.SampleRate)
	if err != nil {
		return nil, nil, err
	}
	return w, func() { w.Close() }, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
