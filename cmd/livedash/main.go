package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/netspec/livedash/internal/api"
	"github.com/netspec/livedash/internal/config"
	"github.com/netspec/livedash/internal/feed"
	"github.com/netspec/livedash/internal/poller"
	"github.com/netspec/livedash/internal/tui"
	"github.com/netspec/livedash/internal/version"
	"github.com/netspec/livedash/internal/view"
	"github.com/netspec/livedash/internal/webui"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

// overrides holds command-line values that replace config file settings
// when non-empty.
type overrides struct {
	origin   string
	logLevel string
	ui       string
	listen   string
}

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration (optional)")
	var ov overrides
	flag.StringVar(&ov.origin, "origin", "", "Middleware origin, e.g. http://localhost:8090")
	flag.StringVar(&ov.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&ov.ui, "ui", "", "Renderer: auto, tui, web or headless")
	flag.StringVar(&ov.listen, "listen", "", "Web UI listen address")
	once := flag.Bool("once", false, "Poll the status endpoints once, print the panels as JSON and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		bootstrap := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootstrap.Fatal().
			Err(err).
			Str("config_path", *configPath).
			Msg("Failed to load configuration")
	}
	applyOverrides(cfg, ov)
	if *once {
		cfg.UI.Mode = config.ModeHeadless
		cfg.UI.Listen = ""
	}
	if err := cfg.Finalize(); err != nil {
		bootstrap := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootstrap.Fatal().Err(err).Msg("Invalid configuration")
	}
	mode := resolveMode(cfg.UI.Mode, term.IsTerminal(int(os.Stdout.Fd())))

	doc := view.New()

	// Create log buffer for web UI (captures last 1000 log entries)
	logBuffer := webui.NewLogBuffer(1000)

	var dash *tui.Dashboard
	var sink io.Writer = os.Stdout
	switch {
	case *once:
		sink = os.Stderr
	case mode == config.ModeTUI:
		dash = tui.New(doc)
		sink = dash.LogWriter()
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	build := version.Info()
	logger := zerolog.New(io.MultiWriter(sink, logBuffer)).With().
		Timestamp().
		Str("version", build.Version).
		Str("commit", build.Commit).
		Logger()

	logger.Info().
		Str("origin", cfg.Origin).
		Str("transport", cfg.Stream.Transport).
		Str("ui", mode).
		Msg("Starting livedash")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	statusPoller := poller.NewFromConfig(cfg, doc, logger.With().Str("component", "poller").Logger())

	if *once {
		if err := runOnce(ctx, statusPoller, doc, os.Stdout); err != nil {
			logger.Error().Err(err).Msg("Status poll failed")
			os.Exit(1)
		}
		return
	}

	feedClient, err := feed.NewClientFromConfig(cfg, doc, logger.With().Str("component", "feed").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create push-stream client")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return feedClient.Run(gctx)
	})
	g.Go(func() error {
		return statusPoller.Run(gctx)
	})

	if cfg.UI.Listen != "" {
		apiServer := api.NewServer(doc, logger.With().Str("component", "api").Logger(), cfg.UI.Listen)
		apiServer.SetLogBuffer(logBuffer)
		apiServer.SetVersion(build)
		apiServer.SetHealthGetter(feedClient.Health)
		apiServer.SetPollStatusGetter(statusPoller.Status)
		g.Go(func() error {
			return apiServer.Start(gctx)
		})
	}

	if dash != nil {
		g.Go(func() error {
			err := dash.Run(gctx)
			// quitting the terminal UI ends the program
			stop()
			return err
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("Shutting down after failure")
		os.Exit(1)
	}
	logger.Info().Msg("Shutdown complete")
}

func applyOverrides(cfg *config.Config, ov overrides) {
	if ov.origin != "" {
		cfg.Origin = ov.origin
	}
	if ov.logLevel != "" {
		cfg.Log.Level = ov.logLevel
	}
	if ov.ui != "" {
		cfg.UI.Mode = ov.ui
	}
	if ov.listen != "" {
		cfg.UI.Listen = ov.listen
	}
}

// resolveMode turns auto into tui on a terminal and headless otherwise.
func resolveMode(mode string, isTerminal bool) string {
	if mode != config.ModeAuto {
		return mode
	}
	if isTerminal {
		return config.ModeTUI
	}
	return config.ModeHeadless
}

// runOnce performs a single poll cycle and prints the status panels.
func runOnce(ctx context.Context, p *poller.Poller, doc *view.Document, out io.Writer) error {
	pollErr := p.PollOnce(ctx)

	panels := make(map[view.ElementID][]view.Block, len(view.Panels))
	for _, id := range view.Panels {
		blocks, err := doc.Panel(id)
		if err != nil {
			return err
		}
		panels[id] = blocks
	}
	body, err := jsoniter.MarshalIndent(panels, "", "  ")
	if err != nil {
		return fmt.Errorf("encode panels: %w", err)
	}
	if _, err := fmt.Fprintln(out, string(body)); err != nil {
		return err
	}
	return pollErr
}
