// Package rendermodule compiles manim scene sources into videos.
//
// A request names one or more scene classes, either inside a single code
// string or spread over several files. Each class is compiled on its own in
// a throwaway container, the produced file is located and published under a
// deterministic name, and the published segments are optionally joined into
// one combined video.
//
// Architecture:
//
//	API → Service → WorkerPool → Orchestrator → Builder (Docker) / Concatenator (ffmpeg)
//
// The module owns:
//   - the container runtime and its image provisioning
//   - the bounded worker pool that serialises batches
//   - compilation history and the retention sweep
//   - the HTTP routes and the live event stream
package rendermodule

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/manimforge/manimforge/internal/config"
	"github.com/manimforge/manimforge/internal/events"
	"github.com/manimforge/manimforge/internal/metrics"
	"github.com/manimforge/manimforge/internal/modules/modulemanager"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/api"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/core/cleanup"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/core/concat"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/core/extractor"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/core/locator"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/core/repository"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/core/sandbox"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/core/thumbnail"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/utils/workspace"
	"github.com/manimforge/manimforge/internal/utils"
	"gorm.io/gorm"
)

const (
	// ModuleID is the unique identifier for the render module
	ModuleID = "system.render"

	// ModuleName is the display name for the render module
	ModuleName = "Scene Renderer"

	healthTimeout = 5 * time.Second
)

// Pipeline bundles the stateless pipeline components built from config.
type Pipeline struct {
	Extractor *extractor.PatternExtractor
	Builder   *sandbox.Builder
	Combiner  *concat.Concatenator
}

// NewPipeline builds the extractor, scene builder and concatenator over the
// given container runtime.
func NewPipeline(cfg config.RenderConfig, runtime sandbox.Runtime, logger hclog.Logger) *Pipeline {
	builder := sandbox.NewBuilder(sandbox.Config{
		Quality:   cfg.Quality,
		Timeout:   cfg.SceneTimeout,
		OutputDir: cfg.OutputDir,
		URLPrefix: cfg.URLPrefix,
	}, runtime, workspace.NewManager(cfg.TempDir, logger), locator.New(logger), logger)

	if cfg.Thumbnails {
		builder.WithPoster(thumbnail.New(thumbnail.Config{
			FFmpegPath: cfg.FFmpegPath,
			Width:      cfg.ThumbnailWidth,
			Quality:    cfg.ThumbnailQuality,
		}, logger))
	}

	return &Pipeline{
		Extractor: extractor.New(),
		Builder:   builder,
		Combiner: concat.New(concat.Config{
			FFmpegPath: cfg.FFmpegPath,
			TempDir:    cfg.TempDir,
			OutputDir:  cfg.OutputDir,
			URLPrefix:  cfg.URLPrefix,
		}, logger),
	}
}

// DockerConfigFrom maps render settings onto the Docker runtime config.
func DockerConfigFrom(cfg config.RenderConfig) sandbox.DockerConfig {
	return sandbox.DockerConfig{
		Image:           cfg.Image,
		DockerfileDir:   cfg.DockerfileDir,
		Dockerfile:      cfg.Dockerfile,
		MemoryBytes:     cfg.MemoryLimitMB * 1024 * 1024,
		NanoCPUs:        int64(cfg.CPULimit * 1e9),
		NetworkDisabled: cfg.NetworkDisabled,
	}
}

// pinger is implemented by runtimes that can report daemon reachability.
type pinger interface {
	Ping(ctx context.Context) error
}

// Module implements the render pipeline as a module
type Module struct {
	config  *config.Config
	db      *gorm.DB
	bus     *events.Bus
	metrics *metrics.Metrics
	logger  hclog.Logger

	runtime   sandbox.Runtime
	ownsRT    bool
	projects  ProjectRecorder
	pool      *utils.WorkerPool
	service   *Service
	retention *cleanup.Service

	mu          sync.Mutex
	initialized bool
}

// NewModule creates a new render module. db, bus and m may be nil.
func NewModule(cfg *config.Config, db *gorm.DB, bus *events.Bus, m *metrics.Metrics, logger hclog.Logger) *Module {
	return &Module{
		config:  cfg,
		db:      db,
		bus:     bus,
		metrics: m,
		logger:  logger.Named("render"),
	}
}

// WithRuntime replaces the Docker runtime, mainly for tests.
func (m *Module) WithRuntime(rt sandbox.Runtime) *Module {
	m.runtime = rt
	return m
}

// SetProjectRecorder attaches the project store that receives outcomes of
// requests carrying a project id.
func (m *Module) SetProjectRecorder(p ProjectRecorder) {
	m.projects = p
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
	return true
}

// Init wires the pipeline, the worker pool and the retention schedule.
func (m *Module) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return nil
	}

	cfg := m.config.Render
	for _, dir := range []string{cfg.TempDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if m.runtime == nil {
		rt, err := sandbox.NewDockerRuntime(DockerConfigFrom(cfg), m.logger)
		if err != nil {
			return fmt.Errorf("failed to create container runtime: %w", err)
		}
		m.runtime = rt
		m.ownsRT = true
	}

	pipeline := NewPipeline(cfg, m.runtime, m.logger)

	m.pool = utils.NewWorkerPool(cfg.MaxConcurrentBatches, cfg.QueueSize)
	m.pool.Start()

	deps := Dependencies{
		Extractor: pipeline.Extractor,
		Builder:   pipeline.Builder,
		Combiner:  pipeline.Combiner,
		Pool:      m.pool,
		Metrics:   m.metrics,
	}
	var repo *repository.CompilationRepository
	if m.db != nil {
		repo = repository.NewCompilationRepository(m.db)
		deps.History = repo
	}
	if m.projects != nil {
		deps.Projects = m.projects
	}
	if m.bus != nil {
		deps.Events = m.bus
	}

	m.service = NewService(ServiceConfig{OutputDir: cfg.OutputDir, URLPrefix: cfg.URLPrefix}, deps, m.logger)
	pipeline.Builder.WithObserver(m.service.ObserveScene)

	if m.config.Retention.Enabled {
		var history cleanup.HistoryStore
		if repo != nil {
			history = repo
		}
		var publisher cleanup.EventPublisher
		if m.bus != nil {
			publisher = m.bus
		}
		m.retention = cleanup.NewService(cleanup.Config{
			Schedule:  m.config.Retention.Schedule,
			MaxAge:    m.config.Retention.MaxAge,
			OutputDir: cfg.OutputDir,
			TempDir:   cfg.TempDir,
		}, history, publisher, m.logger)
		if err := m.retention.Start(); err != nil {
			m.pool.Stop()
			return fmt.Errorf("failed to start retention: %w", err)
		}
	}

	m.initialized = true
	m.logger.Info("render module initialized",
		"output_dir", cfg.OutputDir,
		"workers", cfg.MaxConcurrentBatches,
		"queue_size", cfg.QueueSize,
		"history", repo != nil,
		"retention", m.retention != nil)
	return nil
}

// Service returns the request-level service, nil before Init.
func (m *Module) Service() *Service {
	return m.service
}

// Retention returns the retention service, nil when disabled.
func (m *Module) Retention() *cleanup.Service {
	return m.retention
}

// RegisterRoutes registers all render module HTTP routes
func (m *Module) RegisterRoutes(router *gin.Engine) {
	if m.service == nil {
		m.logger.Error("cannot register routes: service not initialized")
		return
	}

	var stream *api.StreamHandler
	if m.bus != nil {
		stream = api.NewStreamHandler(m.bus, m.logger)
	}
	api.RegisterRoutes(router, api.NewAPIHandler(m.service, m.logger), stream)
}

// HealthCheck reports whether the container daemon is reachable.
func (m *Module) HealthCheck(ctx context.Context) modulemanager.HealthStatus {
	status := modulemanager.HealthStatus{
		Status:      modulemanager.HealthStateHealthy,
		LastChecked: time.Now(),
		Details:     map[string]interface{}{},
	}
	if m.pool != nil {
		status.Details["queue_depth"] = m.pool.QueueDepth()
		status.Details["active_batches"] = m.pool.Active()
	}

	p, ok := m.runtime.(pinger)
	if !ok {
		return status
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		status.Status = modulemanager.HealthStateDegraded
		status.Message = "container daemon unreachable: " + err.Error()
	}
	return status
}

// Shutdown stops the retention schedule and the worker pool.
func (m *Module) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return nil
	}

	if m.retention != nil {
		m.retention.Stop()
	}
	m.service.Stop()
	m.pool.Stop()

	if closer, ok := m.runtime.(interface{ Close() error }); ok && m.ownsRT {
		if err := closer.Close(); err != nil {
			m.logger.Warn("failed to close container runtime", "error", err)
		}
	}
	m.initialized = false
	m.logger.Info("render module stopped")
	return nil
}
