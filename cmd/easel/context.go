package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/seantiz/easel/internal/artifact"
	"github.com/seantiz/easel/internal/backend"
	"github.com/seantiz/easel/internal/backend/webui"
	"github.com/seantiz/easel/internal/config"
	"github.com/seantiz/easel/internal/engine"
	"github.com/seantiz/easel/internal/prompts"
	"github.com/seantiz/easel/internal/store"
)

const pushgatewayJob = "easel"

type commandContext struct {
	backendsFlag *string
	configFlag   *string
}

func newCommandContext(backendsFlag, configFlag *string) *commandContext {
	return &commandContext{
		backendsFlag: backendsFlag,
		configFlag:   configFlag,
	}
}

// loadConfig loads the environment configuration with command-line overrides
// applied.
func (c *commandContext) loadConfig() config.Config {
	cfg := config.Load()
	if c.backendsFlag != nil && strings.TrimSpace(*c.backendsFlag) != "" {
		cfg.Backends = backend.Normalize(backend.ParseList(*c.backendsFlag))
	}
	if c.configFlag != nil && strings.TrimSpace(*c.configFlag) != "" {
		cfg.PipelinePath = strings.TrimSpace(*c.configFlag)
	}
	return cfg
}

// app is the fully wired dispatcher and its collaborators.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	store      store.Store
	dispatcher *engine.Dispatcher
	source     *prompts.Source
}

// open wires the application. The caller must close it.
func (c *commandContext) open(logger func(config.Config) *slog.Logger) (*app, error) {
	cfg := c.loadConfig()
	log := logger(cfg)

	pipeline, err := config.LoadPipeline(cfg.PipelinePath)
	if err != nil {
		return nil, err
	}

	var reference []byte
	if cfg.ReferenceImage != "" {
		reference, err = os.ReadFile(cfg.ReferenceImage)
		if err != nil {
			return nil, fmt.Errorf("read reference image: %w", err)
		}
	}

	arts, err := artifact.NewStore(cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	client := webui.NewClient(cfg.RenderTimeout)
	deps := engine.Deps{
		Registry:      backend.NewRegistry(cfg.Backends...),
		Prober:        backend.NewProber(client, cfg.ProbeTimeout, log),
		Renderer:      client,
		Artifacts:     arts,
		ParamsLogPath: cfg.ParamsLogPath,
		Store:         db,
		Logger:        log,
	}
	if cfg.PushgatewayURL != "" {
		deps.Pusher = engine.NewPushgatewayPusher(cfg.PushgatewayURL, pushgatewayJob)
	}

	return &app{
		cfg:        cfg,
		logger:     log,
		store:      db,
		dispatcher: engine.NewDispatcher(deps),
		source: &prompts.Source{
			Path:           cfg.PromptsPath,
			Params:         pipeline.Generation,
			NegativePrompt: pipeline.NegativePrompt,
			Reference:      reference,
		},
	}, nil
}

func (a *app) close() {
	a.dispatcher.Wait()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close database", "error", err)
	}
}

// consoleLogger is used by the one-shot commands.
func consoleLogger(cfg config.Config) *slog.Logger {
	return config.NewConsoleLogger(os.Stderr, cfg.LogLevel)
}

// serverLogger is used by serve.
func serverLogger(cfg config.Config) *slog.Logger {
	return config.NewLogger(os.Stdout, cfg.LogLevel)
}
