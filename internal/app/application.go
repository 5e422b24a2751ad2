package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/Rorical/RoriAgent/internal/approval"
	"github.com/Rorical/RoriAgent/internal/bridge"
	"github.com/Rorical/RoriAgent/internal/config"
	"github.com/Rorical/RoriAgent/internal/core"
	"github.com/Rorical/RoriAgent/internal/dispatcher"
	"github.com/Rorical/RoriAgent/internal/eventbus"
	"github.com/Rorical/RoriAgent/internal/logging"
	"github.com/Rorical/RoriAgent/internal/metrics"
	"github.com/Rorical/RoriAgent/internal/models"
	"github.com/Rorical/RoriAgent/internal/terminal"
	"github.com/Rorical/RoriAgent/internal/update"
)

type Options struct {
	Config *config.Config
	// Task is sent as the first message before the host is ready.
	Task string
	// Model overrides the profile's model for this session.
	Model         string
	MetricsListen string
	Logger        *zap.Logger
}

// Application manages the complete application lifecycle
type Application struct {
	config     *config.Config
	log        *zap.Logger
	metrics    *metrics.Metrics
	eventBus   *eventbus.EventBus
	engine     *approval.Engine
	bridge     *bridge.Bridge
	dispatcher *dispatcher.EventDispatcher
	service    *core.ChatService
	model      *AppModel

	metricsListen string
	metricsServer *http.Server
}

func NewApplication(opts Options) (*Application, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.LoadConfig()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	logger := opts.Logger
	if logger == nil {
		l, err := logging.New(cfg.Logging.File, cfg.Logging.Level)
		if err != nil {
			return nil, err
		}
		logger = l
	}

	root, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	m := metrics.New()
	eb := eventbus.NewEventBus(eventbus.Options{Logger: logger})
	engine := approval.NewEngine(approval.EngineOptions{Logger: logger, Metrics: m})

	chatService, err := core.NewChatService(core.Options{
		Config:  cfg,
		Bus:     eb,
		Engine:  engine,
		Root:    root,
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat service: %w", err)
	}
	br := bridge.New(chatService.HandleMessage, bridge.Options{Logger: logger, Metrics: m})

	app := &Application{
		config:        cfg,
		log:           logger.Named("app"),
		metrics:       m,
		eventBus:      eb,
		engine:        engine,
		bridge:        br,
		dispatcher:    dispatcher.NewEventDispatcher(eb, logger),
		service:       chatService,
		metricsListen: cfg.Metrics.Listen,
	}
	if opts.MetricsListen != "" {
		app.metricsListen = opts.MetricsListen
	}
	app.model = newAppModel(update.Deps{Engine: engine, Bridge: br, Keys: update.DefaultKeyMap()})

	if err := app.queueStartup(opts); err != nil {
		return nil, err
	}
	return app, nil
}

// queueStartup queues the command line overrides and task. The bridge
// holds them until the host is ready.
func (app *Application) queueStartup(opts Options) error {
	ctx := context.Background()
	if opts.Model != "" {
		err := app.bridge.Send(ctx, bridge.Message{Kind: bridge.KindConfig, Payload: core.ConfigUpdate{Model: opts.Model}})
		if err != nil {
			return err
		}
	}
	if opts.Task != "" {
		if err := app.bridge.Send(ctx, bridge.Message{Kind: bridge.KindTask, Payload: opts.Task}); err != nil {
			return err
		}
		app.model.appModel.TaskSent = true
	}
	return nil
}

func (app *Application) Start() error {
	term := terminal.NewTerminal(os.Stdin, os.Stdout, terminal.TerminalOptions{
		Kitty:  app.config.Terminal.KittyKeyboard,
		Logger: app.log,
	})
	if err := term.Setup(); err != nil {
		return err
	}
	defer func() {
		if err := term.Restore(); err != nil {
			app.log.Warn("failed to restore terminal", zap.Error(err))
		}
	}()

	reader, err := terminal.NewReader(os.Stdin, app.log)
	if err != nil {
		return err
	}
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	decoder := terminal.NewDecoder(terminal.Options{
		MaxSequenceLen:       app.config.Terminal.MaxSequenceLen,
		BackslashEnterWindow: app.config.BackslashEnterWindow(),
		EscapeTimeout:        app.config.EscapeTimeout(),
		OptionAsMeta:         app.config.Terminal.OptionAsMeta,
		Logger:               app.log,
		Metrics:              app.metrics,
	})

	// Input is read and decoded here; bubbletea only renders.
	p := tea.NewProgram(app.model, tea.WithInput(nil), tea.WithoutBracketedPaste())

	app.startMetricsServer()
	app.dispatcher.Start(p)
	go func() {
		if err := app.dispatcher.RunInput(decoder, reader.Start(ctx), p); err != nil && !errors.Is(err, context.Canceled) {
			app.log.Warn("input loop stopped", zap.Error(err))
		}
	}()
	app.service.Start(app.bridge)

	_, err = p.Run()
	reader.Cancel()
	select {
	case <-reader.Done():
	case <-time.After(time.Second):
		app.log.Warn("input reader did not stop")
	}
	return err
}

func (app *Application) Stop() {
	app.service.Stop()
	app.bridge.Close()
	app.dispatcher.Stop()
	app.eventBus.Close()
	if app.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := app.metricsServer.Shutdown(ctx); err != nil {
			app.log.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}
	_ = app.log.Sync()
}

func (app *Application) startMetricsServer() {
	if app.metricsListen == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())
	app.metricsServer = &http.Server{
		Addr:              app.metricsListen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		app.log.Info("serving metrics", zap.String("addr", app.metricsListen))
		if err := app.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.log.Warn("metrics server failed", zap.Error(err))
		}
	}()
}

func newAppModel(deps update.Deps) *AppModel {
	return &AppModel{
		appModel: models.AppModel{
			Status:  "Starting agent",
			Spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		},
		deps: deps,
	}
}
