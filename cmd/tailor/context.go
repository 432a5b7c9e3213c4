package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"tailor/internal/artifacts"
	"tailor/internal/audio"
	"tailor/internal/bus"
	"tailor/internal/chat"
	"tailor/internal/config"
	"tailor/internal/gateway"
	"tailor/internal/logging"
	"tailor/internal/pipeline"
	"tailor/internal/requirements"
	"tailor/internal/session"
	"tailor/internal/store"
	"tailor/internal/upload"
)

type commandContext struct {
	configFlag  *string
	verboseFlag *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	appOnce sync.Once
	app     *app
	appErr  error
}

func newCommandContext(configFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{configFlag: configFlag, verboseFlag: verboseFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// app bundles the wired orchestrators behind a single build step so every
// command shares one store handle and one event bus.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *store.Store
	bus          *bus.Bus
	gateway      *gateway.Client
	sessions     *session.Manager
	uploads      *upload.Orchestrator
	requirements *requirements.Orchestrator
	writer       *artifacts.Service
	chat         *chat.Orchestrator
	transcriber  *audio.Transcriber
	recorder     *audio.Recorder
	pipeline     *pipeline.Controller
	monitor      *audio.DeviceMonitor
}

func (c *commandContext) ensureApp(ctx context.Context) (*app, error) {
	c.appOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.appErr = err
			return
		}

		logger, err := buildLogger(cfg, c.verboseFlag != nil && *c.verboseFlag)
		if err != nil {
			c.appErr = err
			return
		}

		st, err := store.Open(cfg)
		if err != nil {
			c.appErr = err
			return
		}

		eventBus := bus.New(logger)
		gw := gateway.New(cfg, logger)
		sessions := session.NewManager(gw, st, eventBus, logger)
		uploads := upload.New(gw, logger)
		reqs := requirements.New(gw, eventBus, logger)
		writer := artifacts.NewService(gw, cfg, logger)
		chatter := chat.New(gw, sessions, st, writer, logger)
		transcriber := audio.NewTranscriber(gw, cfg, logger)
		recorder := audio.NewRecorder(cfg, transcriber, &chatter.Input, logger)
		controller := pipeline.NewController(sessions, uploads, reqs, writer, logger)

		c.app = &app{
			cfg:          cfg,
			logger:       logger,
			store:        st,
			bus:          eventBus,
			gateway:      gw,
			sessions:     sessions,
			uploads:      uploads,
			requirements: reqs,
			writer:       writer,
			chat:         chatter,
			transcriber:  transcriber,
			recorder:     recorder,
			pipeline:     controller,
			monitor:      audio.NewDeviceMonitor(cfg, logger),
		}

		if err := restoreWorkspace(ctx, c.app); err != nil {
			logger.Warn("workspace not restored", logging.Error(err))
		}
	})
	return c.app, c.appErr
}

func (c *commandContext) close() {
	if c.app == nil {
		return
	}
	c.app.monitor.Stop()
	if c.app.bus != nil {
		_ = c.app.bus.Close()
	}
	if c.app.store != nil {
		_ = c.app.store.Close()
	}
}

func buildLogger(cfg *config.Config, verbose bool) (*slog.Logger, error) {
	format := cfg.Logging.Format
	if format == "" || format == "auto" {
		format = "json"
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			format = "console"
		}
	}
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	return logging.New(logging.Options{Level: level, Format: format})
}
