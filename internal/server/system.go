package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/manimforge/manimforge/internal/modules/modulemanager"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

const (
	healthTimeout = 5 * time.Second
	redacted      = "[redacted]"
)

// SystemHandler serves health, host and configuration endpoints.
type SystemHandler struct {
	app     *App
	started time.Time
}

// NewSystemHandler creates a system handler.
func NewSystemHandler(app *App, started time.Time) *SystemHandler {
	return &SystemHandler{app: app, started: started}
}

// Health handles GET /api/health. Any unhealthy module or an unreachable
// database turns the response into 503.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := modulemanager.HealthStateHealthy
	modules := h.app.Registry.Health(ctx)
	for _, m := range modules {
		switch m.Status {
		case modulemanager.HealthStateUnhealthy:
			status = modulemanager.HealthStateUnhealthy
		case modulemanager.HealthStateDegraded:
			if status == modulemanager.HealthStateHealthy {
				status = modulemanager.HealthStateDegraded
			}
		}
	}

	dbStatus := "connected"
	if sqlDB, err := h.app.DB.DB(); err != nil {
		dbStatus = err.Error()
		status = modulemanager.HealthStateUnhealthy
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = err.Error()
		status = modulemanager.HealthStateUnhealthy
	}

	code := http.StatusOK
	if status == modulemanager.HealthStateUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":   status,
		"service":  "manimforge",
		"uptime":   time.Since(h.started).Round(time.Second).String(),
		"database": dbStatus,
		"modules":  modules,
	})
}

// Info handles GET /api/system with host load and capacity.
func (h *SystemHandler) Info(c *gin.Context) {
	ctx := c.Request.Context()
	cfg := h.app.Configs.GetConfig()

	info := gin.H{
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
		"num_cpu":    runtime.NumCPU(),
		"uptime":     time.Since(h.started).Round(time.Second).String(),
	}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		info["cpu_percent"] = percents[0]
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		info["load"] = gin.H{"load1": avg.Load1, "load5": avg.Load5, "load15": avg.Load15}
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info["memory"] = gin.H{"total": vm.Total, "available": vm.Available, "used_percent": vm.UsedPercent}
	}
	if usage, err := disk.UsageWithContext(ctx, cfg.Render.OutputDir); err == nil {
		info["output_disk"] = gin.H{"path": usage.Path, "free": usage.Free, "used_percent": usage.UsedPercent}
	}

	c.JSON(http.StatusOK, info)
}

// Config handles GET /api/config with secrets redacted.
func (h *SystemHandler) Config(c *gin.Context) {
	cfg := h.app.Configs.GetConfig()
	if cfg.Database.DSN != "" {
		cfg.Database.DSN = redacted
	}
	c.JSON(http.StatusOK, cfg)
}

// Modules handles GET /api/modules
func (h *SystemHandler) Modules(c *gin.Context) {
	modules := h.app.Registry.ListModules()
	out := make([]gin.H, 0, len(modules))
	for _, m := range modules {
		out = append(out, gin.H{"id": m.ID(), "name": m.Name(), "core": m.Core()})
	}
	c.JSON(http.StatusOK, gin.H{"modules": out, "count": len(out)})
}

// Sweep handles POST /api/retention/sweep by running one retention pass
// immediately.
func (h *SystemHandler) Sweep(c *gin.Context) {
	if h.app.Render == nil || h.app.Render.Retention() == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Retention disabled"})
		return
	}
	report := h.app.Render.Retention().Sweep(c.Request.Context())
	c.JSON(http.StatusOK, report)
}
