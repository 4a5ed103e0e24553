// Package server provides the HTTP server for manimforge: the gin engine,
// shared middleware, static video serving, system endpoints and the routes
// of every registered module.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/manimforge/manimforge/internal/middleware"
)

// Server serves the HTTP API of an App.
type Server struct {
	app     *App
	engine  *gin.Engine
	logger  hclog.Logger
	started time.Time
}

// New builds the router for app. Modules must already be started so that
// their routes can be registered.
func New(app *App, logger hclog.Logger) *Server {
	s := &Server{app: app, logger: logger.Named("server"), started: time.Now()}
	s.engine = s.setupRouter()
	return s
}

// Router returns the configured gin engine.
func (s *Server) Router() *gin.Engine {
	return s.engine
}

func (s *Server) setupRouter() *gin.Engine {
	cfg := s.app.Configs.GetConfig()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(s.logger, "/api/health", cfg.Metrics.Path))
	r.Use(middleware.ErrorLogger(s.logger))
	if cfg.Server.EnableCORS {
		r.Use(middleware.CORS())
	}
	r.Use(middleware.BodyLimit(cfg.Server.MaxRequestBytes))

	r.Static(cfg.Render.URLPrefix, cfg.Render.OutputDir)

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(s.app.Metrics.Handler()))
	}

	system := NewSystemHandler(s.app, s.started)
	api := r.Group("/api")
	{
		api.GET("/health", system.Health)
		api.GET("/system", system.Info)
		api.GET("/config", system.Config)
		api.GET("/modules", system.Modules)
		api.POST("/retention/sweep", system.Sweep)
	}

	s.app.Registry.RegisterRoutes(r)
	return r
}

// Run serves until ctx is done, then drains in-flight requests within the
// configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	cfg := s.app.Configs.GetConfig().Server
	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      s.engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
