// Package cleanup removes expired render artifacts, orphaned workspaces and
// compilation history on a cron schedule.
package cleanup

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/manimforge/manimforge/internal/events"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/utils/workspace"
	"github.com/robfig/cron/v3"
)

// HistoryStore deletes expired history rows.
type HistoryStore interface {
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventPublisher receives sweep notifications.
type EventPublisher interface {
	Publish(event events.Event) error
}

// Config contains retention configuration
type Config struct {
	Schedule  string
	MaxAge    time.Duration
	OutputDir string
	TempDir   string
	// SweepTimeout bounds a single scheduled sweep.
	SweepTimeout time.Duration
}

// Report summarises one sweep.
type Report struct {
	ArtifactsRemoved  int   `json:"artifactsRemoved"`
	WorkspacesRemoved int   `json:"workspacesRemoved"`
	HistoryRemoved    int64 `json:"historyRemoved"`
	BytesFreed        int64 `json:"bytesFreed"`
	Errors            int   `json:"errors"`
}

// Service runs retention sweeps
type Service struct {
	config  Config
	history HistoryStore
	events  EventPublisher
	logger  hclog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	last    *Report
	lastRun time.Time
}

// NewService creates a new retention service. history and publisher may be nil.
func NewService(config Config, history HistoryStore, publisher EventPublisher, logger hclog.Logger) *Service {
	if config.SweepTimeout <= 0 {
		config.SweepTimeout = 10 * time.Minute
	}
	return &Service{
		config:  config,
		history: history,
		events:  publisher,
		logger:  logger.Named("retention"),
	}
}

// Start schedules periodic sweeps.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if s.config.MaxAge <= 0 {
		return fmt.Errorf("retention max age must be positive, got %s", s.config.MaxAge)
	}

	c := cron.New()
	if _, err := c.AddFunc(s.config.Schedule, s.scheduledSweep); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", s.config.Schedule, err)
	}
	c.Start()

	s.cron = c
	s.running = true
	s.logger.Info("retention scheduled", "schedule", s.config.Schedule, "max_age", s.config.MaxAge)
	return nil
}

// Stop cancels future sweeps and waits for a running one to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		s.logger.Info("retention stopped")
	}
}

// LastReport returns the most recent sweep report, if any.
func (s *Service) LastReport() (*Report, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastRun
}

func (s *Service) scheduledSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.SweepTimeout)
	defer cancel()
	s.Sweep(ctx)
}

// Sweep removes everything older than the configured max age. Failures are
// logged and counted, never returned.
func (s *Service) Sweep(ctx context.Context) Report {
	cutoff := time.Now().Add(-s.config.MaxAge)
	report := Report{}

	removed, freed, failed := s.sweepDir(s.config.OutputDir, cutoff)
	report.ArtifactsRemoved, report.BytesFreed, report.Errors = removed, freed, failed

	removed, freed, failed = s.sweepDir(s.config.TempDir, cutoff)
	report.WorkspacesRemoved = removed
	report.BytesFreed += freed
	report.Errors += failed

	if s.history != nil && ctx.Err() == nil {
		n, err := s.history.DeleteFinishedBefore(ctx, cutoff)
		if err != nil {
			s.logger.Warn("failed to expire compilation history", "error", err)
			report.Errors++
		}
		report.HistoryRemoved = n
	}

	s.logger.Info("retention sweep complete",
		"artifacts", report.ArtifactsRemoved,
		"workspaces", report.WorkspacesRemoved,
		"history", report.HistoryRemoved,
		"bytes_freed", report.BytesFreed,
		"errors", report.Errors)

	s.mu.Lock()
	s.last = &report
	s.lastRun = time.Now()
	s.mu.Unlock()

	if s.events != nil {
		evt := events.NewEvent(events.EventRetentionSwept, "retention", "", "retention sweep complete", map[string]interface{}{
			"artifacts_removed":  report.ArtifactsRemoved,
			"workspaces_removed": report.WorkspacesRemoved,
			"history_removed":    report.HistoryRemoved,
			"bytes_freed":        report.BytesFreed,
		})
		if err := s.events.Publish(evt); err != nil {
			s.logger.Debug("failed to publish retention event", "error", err)
		}
	}
	return report
}

func (s *Service) sweepDir(dir string, cutoff time.Time) (removed int, freed int64, failed int) {
	if dir == "" {
		return 0, 0, 0
	}
	entries, err := workspace.ListOlderThan(dir, cutoff)
	if err != nil {
		s.logger.Warn("failed to list directory", "dir", dir, "error", err)
		return 0, 0, 1
	}
	for _, e := range entries {
		if err := os.RemoveAll(e.Path); err != nil {
			s.logger.Warn("failed to remove expired entry", "path", e.Path, "error", err)
			failed++
			continue
		}
		s.logger.Debug("removed expired entry", "path", e.Path, "age", time.Since(e.LastModified).Round(time.Second))
		removed++
		freed += e.Size
	}
	return removed, freed, failed
}
