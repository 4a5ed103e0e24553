package modulemanager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
)

// ModuleRegistry manages module registration and initialization. Modules are
// initialised in registration order and shut down in reverse.
type ModuleRegistry struct {
	modules         []Module
	byID            map[string]Module
	disabledModules map[string]bool
	initialized     []Module
	logger          hclog.Logger
	mu              sync.RWMutex
}

// NewRegistry creates an empty module registry
func NewRegistry(logger hclog.Logger) *ModuleRegistry {
	return &ModuleRegistry{
		byID:            make(map[string]Module),
		disabledModules: make(map[string]bool),
		logger:          logger.Named("modules"),
	}
}

// Register adds a module to the registry
func (r *ModuleRegistry) Register(m Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[m.ID()]; exists {
		return fmt.Errorf("module already registered: %s", m.ID())
	}
	r.modules = append(r.modules, m)
	r.byID[m.ID()] = m
	r.logger.Debug("module registered", "id", m.ID(), "name", m.Name())
	return nil
}

// DisableModule marks a module as disabled. Core modules cannot be disabled.
func (r *ModuleRegistry) DisableModule(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	module, exists := r.byID[id]
	if !exists {
		return fmt.Errorf("module not found: %s", id)
	}
	if module.Core() {
		return fmt.Errorf("cannot disable core module: %s", id)
	}
	r.disabledModules[id] = true
	r.logger.Info("module disabled", "id", id)
	return nil
}

// LoadAll initializes all enabled modules in registration order. On failure
// the modules already initialised are shut down.
func (r *ModuleRegistry) LoadAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.initialized) > 0 {
		r.logger.Warn("module system already initialized")
		return nil
	}

	for i, module := range r.modules {
		if r.disabledModules[module.ID()] {
			r.logger.Warn("skipping disabled module", "id", module.ID())
			continue
		}
		r.logger.Info("initializing module", "id", module.ID(), "step", i+1, "total", len(r.modules))
		if err := module.Init(ctx); err != nil {
			shutdownErr := r.shutdownLocked(ctx)
			return errors.Join(fmt.Errorf("failed to initialize %s: %w", module.Name(), err), shutdownErr)
		}
		r.initialized = append(r.initialized, module)
	}
	r.logger.Info("modules loaded", "count", len(r.initialized))
	return nil
}

// GetModule returns a module by ID
func (r *ModuleRegistry) GetModule(id string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	module, exists := r.byID[id]
	return module, exists
}

// ListModules returns all registered modules in registration order
func (r *ModuleRegistry) ListModules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Module(nil), r.modules...)
}

// RegisterRoutes registers routes for all initialised modules that implement RouteRegistrar
func (r *ModuleRegistry) RegisterRoutes(router *gin.Engine) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, module := range r.initialized {
		if routeRegistrar, ok := module.(RouteRegistrar); ok {
			r.logger.Debug("registering routes", "id", module.ID())
			routeRegistrar.RegisterRoutes(router)
		}
	}
}

// Health collects the status of every initialised module that reports one.
func (r *ModuleRegistry) Health(ctx context.Context) map[string]HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]HealthStatus, len(r.initialized))
	for _, module := range r.initialized {
		if checker, ok := module.(HealthChecker); ok {
			out[module.ID()] = checker.HealthCheck(ctx)
		}
	}
	return out
}

// Reload forwards a configuration change to modules that support it.
func (r *ModuleRegistry) Reload(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, module := range r.initialized {
		if reloadable, ok := module.(ConfigReloadable); ok {
			if err := reloadable.ReloadConfig(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", module.ID(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Shutdown stops initialised modules in reverse order.
func (r *ModuleRegistry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shutdownLocked(ctx)
}

func (r *ModuleRegistry) shutdownLocked(ctx context.Context) error {
	var errs []error
	for i := len(r.initialized) - 1; i >= 0; i-- {
		module := r.initialized[i]
		if s, ok := module.(Shutdowner); ok {
			if err := s.Shutdown(ctx); err != nil {
				r.logger.Warn("module shutdown failed", "id", module.ID(), "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", module.ID(), err))
			}
		}
	}
	r.initialized = nil
	return errors.Join(errs...)
}
