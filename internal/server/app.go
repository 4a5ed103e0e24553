package server

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/manimforge/manimforge/internal/config"
	"github.com/manimforge/manimforge/internal/database"
	"github.com/manimforge/manimforge/internal/events"
	"github.com/manimforge/manimforge/internal/metrics"
	"github.com/manimforge/manimforge/internal/modules/generatormodule"
	"github.com/manimforge/manimforge/internal/modules/modulemanager"
	"github.com/manimforge/manimforge/internal/modules/projectmodule"
	"github.com/manimforge/manimforge/internal/modules/rendermodule"
	"gorm.io/gorm"
)

const eventBufferSize = 1000

// App holds the process-wide collaborators shared by every module.
type App struct {
	Configs  *config.ConfigManager
	DB       *gorm.DB
	Bus      *events.Bus
	Metrics  *metrics.Metrics
	Registry *modulemanager.ModuleRegistry
	Render   *rendermodule.Module
	Projects *projectmodule.Module

	logger hclog.Logger
}

// NewApp opens the history database and registers all modules. Nothing is
// started until Start.
func NewApp(configs *config.ConfigManager, logger hclog.Logger) (*App, error) {
	cfg := configs.GetConfig()

	db, err := database.Open(database.Config{
		Type:       cfg.Database.Type,
		Path:       cfg.Database.Path,
		DSN:        cfg.Database.DSN,
		LogQueries: cfg.Database.LogQueries,
	}, logger)
	if err != nil {
		return nil, err
	}

	app := &App{
		Configs:  configs,
		DB:       db,
		Bus:      events.NewBus(events.BusConfig{BufferSize: eventBufferSize}, logger),
		Metrics:  metrics.New(true),
		Registry: modulemanager.NewRegistry(logger),
		logger:   logger,
	}

	app.Projects = projectmodule.NewModule(cfg.Projects, logger)
	app.Render = rendermodule.NewModule(cfg, db, app.Bus, app.Metrics, logger)
	app.Render.SetProjectRecorder(app.Projects)

	for _, m := range []modulemanager.Module{
		app.Projects,
		app.Render,
		generatormodule.NewModule(configs, logger),
	} {
		if err := app.Registry.Register(m); err != nil {
			_ = database.Close(db)
			return nil, err
		}
	}
	return app, nil
}

// Start runs the event bus and initializes modules in registration order.
func (a *App) Start(ctx context.Context) error {
	if err := a.Bus.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}
	if err := a.Registry.LoadAll(ctx); err != nil {
		_ = a.Bus.Stop(ctx)
		return err
	}

	a.Configs.AddWatcher(func(oldConfig, newConfig *config.Config) {
		if err := a.Registry.Reload(context.Background()); err != nil {
			a.logger.Warn("module reload failed", "error", err)
		}
	})

	if err := a.Bus.Publish(events.NewEvent(events.EventSystemStarted, "server", "", "manimforge started", nil)); err != nil {
		a.logger.Debug("failed to publish start event", "error", err)
	}
	return nil
}

// Stop shuts modules down in reverse order, then the bus and database.
func (a *App) Stop(ctx context.Context) error {
	_ = a.Bus.Publish(events.NewEvent(events.EventSystemStopped, "server", "", "manimforge stopping", nil))

	var firstErr error
	if err := a.Registry.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if err := a.Bus.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := database.Close(a.DB); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
