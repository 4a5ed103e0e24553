// Package modulemanager provides interfaces for the module system
package modulemanager

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// Module defines the interface that all modules must implement
type Module interface {
	ID() string                     // Unique identifier for the module
	Name() string                   // Display name for the module
	Core() bool                     // Whether this is a core module (cannot be disabled)
	Init(ctx context.Context) error // Initialize the module
}

// RouteRegistrar is an optional interface for modules that need to register routes
type RouteRegistrar interface {
	RegisterRoutes(router *gin.Engine)
}

// Shutdowner is an optional interface for modules holding background work
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// HealthChecker is an optional interface for modules that can report health status
type HealthChecker interface {
	// HealthCheck returns the current health status of the module
	HealthCheck(ctx context.Context) HealthStatus
}

// HealthStatus represents the health of a module
type HealthStatus struct {
	Status      HealthState            `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// HealthState represents the state of a module's health
type HealthState string

const (
	HealthStateHealthy   HealthState = "healthy"
	HealthStateDegraded  HealthState = "degraded"
	HealthStateUnhealthy HealthState = "unhealthy"
	HealthStateUnknown   HealthState = "unknown"
)

// ConfigReloadable is an optional interface for modules that can reload configuration
type ConfigReloadable interface {
	// ReloadConfig applies a new configuration without restart
	ReloadConfig(ctx context.Context) error
}
