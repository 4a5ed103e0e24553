package generatormodule

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/manimforge/manimforge/internal/config"
	"github.com/manimforge/manimforge/internal/modules/modulemanager"
	"github.com/manimforge/manimforge/internal/utils"
)

const (
	// ModuleID is the unique identifier for the generator module
	ModuleID = "system.generator"

	// ModuleName is the display name for the generator module
	ModuleName = "Scene Generator"
)

// ConfigSource supplies the current configuration.
type ConfigSource interface {
	GetConfig() *config.Config
}

// Factory builds a generator from settings. It returns nil, nil when
// generation is disabled.
type Factory func(ctx context.Context, cfg config.GeneratorConfig) (Generator, error)

// DefaultFactory understands the "gemini" and "none" providers.
func DefaultFactory(ctx context.Context, cfg config.GeneratorConfig) (Generator, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model)
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported generator provider: %s", cfg.Provider)
	}
}

// Module implements the generator as a module
type Module struct {
	source  ConfigSource
	factory Factory
	handler *APIHandler
	logger  hclog.Logger
}

// NewModule creates a new generator module
func NewModule(source ConfigSource, logger hclog.Logger) *Module {
	return &Module{source: source, factory: DefaultFactory, logger: logger.Named("generator")}
}

// WithFactory replaces the generator factory.
func (m *Module) WithFactory(f Factory) *Module {
	m.factory = f
	return m
}

// ID returns the unique module identifier
func (m *Module) ID() string {
	return ModuleID
}

// Name returns the module display name
func (m *Module) Name() string {
	return ModuleName
}

// Core returns whether this is a core module
func (m *Module) Core() bool {
	return false
}

// Init creates the configured generator.
func (m *Module) Init(ctx context.Context) error {
	cfg := m.source.GetConfig().Generator
	generator, limiter, err := m.build(ctx, cfg)
	if err != nil {
		return err
	}
	m.handler = NewAPIHandler(generator, limiter, cfg.Timeout, m.logger)
	m.logger.Info("generator initialized", "provider", cfg.Provider, "enabled", generator != nil)
	return nil
}

func (m *Module) build(ctx context.Context, cfg config.GeneratorConfig) (Generator, *utils.RateLimiter, error) {
	generator, err := m.factory(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if generator == nil {
		return nil, nil, nil
	}
	limiter := utils.NewRateLimiter(cfg.RequestsPerMin, time.Minute)
	limiter.Start()
	return generator, limiter, nil
}

// RegisterRoutes registers the generate route
func (m *Module) RegisterRoutes(router *gin.Engine) {
	if m.handler == nil {
		m.logger.Error("cannot register routes: generator not initialized")
		return
	}
	RegisterRoutes(router, m.handler)
}

// ReloadConfig rebuilds the generator from the current configuration. The
// previous generator stays active when the new one cannot be built.
func (m *Module) ReloadConfig(ctx context.Context) error {
	if m.handler == nil {
		return nil
	}
	cfg := m.source.GetConfig().Generator
	generator, limiter, err := m.build(ctx, cfg)
	if err != nil {
		return err
	}
	oldGen, oldLimiter := m.handler.swap(generator, limiter, cfg.Timeout)
	release(oldGen, oldLimiter, m.logger)
	m.logger.Info("generator reloaded", "provider", cfg.Provider, "enabled", generator != nil)
	return nil
}

// HealthCheck reports whether generation is enabled.
func (m *Module) HealthCheck(ctx context.Context) modulemanager.HealthStatus {
	status := modulemanager.HealthStatus{Status: modulemanager.HealthStateHealthy, LastChecked: time.Now()}
	if m.handler == nil {
		status.Status = modulemanager.HealthStateUnknown
		return status
	}
	m.handler.mu.RLock()
	enabled := m.handler.generator != nil
	m.handler.mu.RUnlock()
	status.Details = map[string]interface{}{"enabled": enabled}
	return status
}

// Shutdown closes the generator client.
func (m *Module) Shutdown(ctx context.Context) error {
	if m.handler == nil {
		return nil
	}
	oldGen, oldLimiter := m.handler.swap(nil, nil, 0)
	release(oldGen, oldLimiter, m.logger)
	return nil
}

func release(generator Generator, limiter *utils.RateLimiter, logger hclog.Logger) {
	if limiter != nil {
		limiter.Stop()
	}
	if generator != nil {
		if err := generator.Close(); err != nil {
			logger.Warn("failed to close generator", "error", err)
		}
	}
}
