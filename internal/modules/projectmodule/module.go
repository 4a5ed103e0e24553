// Package projectmodule stores client projects (prompt, source and the
// latest render) behind a small key-value port with redis and in-memory
// adapters.
package projectmodule

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/manimforge/manimforge/internal/config"
	"github.com/manimforge/manimforge/internal/modules/modulemanager"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/types"
	"github.com/redis/go-redis/v9"
)

const (
	// ModuleID is the unique identifier for the project module
	ModuleID = "system.projects"

	// ModuleName is the display name for the project module
	ModuleName = "Project Store"

	pingTimeout = 5 * time.Second
)

// Module implements the project store as a module
type Module struct {
	config config.ProjectsConfig
	store  Store
	logger hclog.Logger
}

// NewModule creates a new project module
func NewModule(cfg config.ProjectsConfig, logger hclog.Logger) *Module {
	return &Module{config: cfg, logger: logger.Named("projects")}
}

// WithStore replaces the configured backend.
func (m *Module) WithStore(store Store) *Module {
	m.store = store
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

// Init opens the configured backend. An unreachable redis falls back to
// the in-memory store.
func (m *Module) Init(ctx context.Context) error {
	if m.store != nil {
		return nil
	}

	switch m.config.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     m.config.RedisAddr,
			Password: m.config.RedisPassword,
			DB:       m.config.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			client.Close()
			m.logger.Warn("redis unavailable, keeping projects in memory", "addr", m.config.RedisAddr, "error", err)
			m.store = NewMemoryStore()
			return nil
		}
		m.store = NewRedisStore(client, m.config.KeyPrefix, m.config.TTL)
		m.logger.Info("project store ready", "backend", "redis", "addr", m.config.RedisAddr, "db", m.config.RedisDB)
	case "memory", "":
		m.store = NewMemoryStore()
		m.logger.Info("project store ready", "backend", "memory")
	default:
		return fmt.Errorf("unsupported project backend: %s", m.config.Backend)
	}
	return nil
}

// Store returns the active backend, nil before Init.
func (m *Module) Store() Store {
	return m.store
}

// RegisterRoutes registers the project routes
func (m *Module) RegisterRoutes(router *gin.Engine) {
	if m.store == nil {
		m.logger.Error("cannot register routes: store not initialized")
		return
	}
	RegisterRoutes(router, NewAPIHandler(m.store, m.logger))
}

// RecordRender saves the outcome of an execute request that named a
// project. Outcomes without a project id are ignored.
func (m *Module) RecordRender(ctx context.Context, outcome types.ProjectOutcome) error {
	if outcome.ProjectID == "" || m.store == nil {
		return nil
	}
	if !validID.MatchString(outcome.ProjectID) {
		return fmt.Errorf("invalid project id %q", outcome.ProjectID)
	}
	return m.store.Save(ctx, &Project{
		ID:               outcome.ProjectID,
		Prompt:           outcome.Prompt,
		Code:             outcome.Code,
		Scenes:           outcome.Scenes,
		VideoURL:         outcome.VideoURL,
		IndividualScenes: outcome.IndividualScenes,
		UpdatedAt:        time.Now().UTC(),
	})
}

// HealthCheck pings the backend.
func (m *Module) HealthCheck(ctx context.Context) modulemanager.HealthStatus {
	status := modulemanager.HealthStatus{Status: modulemanager.HealthStateHealthy, LastChecked: time.Now()}
	if m.store == nil {
		status.Status = modulemanager.HealthStateUnknown
		return status
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := m.store.Ping(ctx); err != nil {
		status.Status = modulemanager.HealthStateDegraded
		status.Message = err.Error()
	}
	return status
}

// Shutdown closes the backend connection.
func (m *Module) Shutdown(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}
