// Package sandbox compiles a single manim scene inside an isolated container
// and publishes the resulting video under a deterministic name.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/core/locator"
	rendererrors "github.com/manimforge/manimforge/internal/modules/rendermodule/errors"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/types"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/utils/paths"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/utils/workspace"
)

// State is the lifecycle position of one scene build.
type State string

const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateLocating  State = "LOCATING"
	StatePublished State = "PUBLISHED"
	StateFailed    State = "FAILED"
)

const maxLogTail = 2048

// PosterGenerator renders a still image for a published video.
type PosterGenerator interface {
	Generate(ctx context.Context, videoPath, posterPath string) error
}

// StateObserver is notified on every state transition of a build.
type StateObserver func(compilationID, className string, state State)

// Config holds scene build settings.
type Config struct {
	// Quality is the renderer preset flag: l, m, h, p or k.
	Quality string
	// Timeout bounds one renderer invocation. Zero disables the bound.
	Timeout   time.Duration
	OutputDir string
	URLPrefix string
}

// Builder is the isolated scene builder.
type Builder struct {
	config     Config
	runtime    Runtime
	workspaces *workspace.Manager
	locator    *locator.Locator
	poster     PosterGenerator
	observer   StateObserver
	logger     hclog.Logger

	envMu    sync.Mutex
	envReady bool
}

// NewBuilder creates a scene builder.
func NewBuilder(config Config, runtime Runtime, workspaces *workspace.Manager, loc *locator.Locator, logger hclog.Logger) *Builder {
	if config.Quality == "" {
		config.Quality = "m"
	}
	return &Builder{
		config:     config,
		runtime:    runtime,
		workspaces: workspaces,
		locator:    loc,
		logger:     logger.Named("scene-builder"),
	}
}

// WithPoster enables poster generation for published videos.
func (b *Builder) WithPoster(p PosterGenerator) *Builder {
	b.poster = p
	return b
}

// WithObserver registers a state observer.
func (b *Builder) WithObserver(o StateObserver) *Builder {
	b.observer = o
	return b
}

// RenderCommand returns the renderer argv for a staged script.
func RenderCommand(compilationID, className, quality string) []string {
	return []string{
		"python", "-m", "manim",
		ContainerInputDir + "/" + paths.ScriptName(compilationID),
		className,
		"-q", quality,
		"--output_file", className,
		"--media_dir", ContainerOutputDir,
	}
}

// Build compiles className from source. It never returns an error: every
// failure is reported in the result, and the workspace is released on all
// paths.
func (b *Builder) Build(ctx context.Context, source, className, compilationID string) types.BuildResult {
	if compilationID == "" {
		compilationID = uuid.New().String()
	}
	start := time.Now()
	b.notify(compilationID, className, StatePending)

	result := b.build(ctx, source, className, compilationID)
	result.Duration = time.Since(start)

	if result.Success {
		b.notify(compilationID, className, StatePublished)
		b.logger.Info("scene built", "compilation_id", compilationID, "class_name", className, "duration", result.Duration)
	} else {
		b.notify(compilationID, className, StateFailed)
		b.logger.Warn("scene build failed", "compilation_id", compilationID, "class_name", className, "error", result.Error)
	}
	return result
}

func (b *Builder) build(ctx context.Context, source, className, compilationID string) types.BuildResult {
	if err := b.ensureEnvironment(ctx); err != nil {
		cause := rendererrors.EnvironmentError("ensure_environment", fmt.Errorf("%w: %v", rendererrors.ErrEnvironmentUnavailable, err)).
			WithCompilation(compilationID)
		return types.FailedWith(compilationID, fmt.Sprintf("build environment unavailable: %v", err), cause)
	}

	ws, err := b.workspaces.Acquire(compilationID)
	if err != nil {
		return types.FailedWith(compilationID, err.Error(),
			rendererrors.StorageError("acquire_workspace", err).WithCompilation(compilationID))
	}
	defer ws.Release()

	if _, err := ws.WriteSource(paths.ScriptName(compilationID), source); err != nil {
		return types.FailedWith(compilationID, err.Error(),
			rendererrors.StorageError("write_source", err).WithCompilation(compilationID))
	}

	runCtx := ctx
	if b.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, b.config.Timeout)
		defer cancel()
	}

	b.notify(compilationID, className, StateRunning)
	run, err := b.runtime.Run(runCtx, RunSpec{
		CompilationID: compilationID,
		Command:       RenderCommand(compilationID, className, b.config.Quality),
		InputDir:      ws.InputDir,
		OutputDir:     ws.OutputDir,
	})
	if err != nil {
		return b.runFailure(ctx, runCtx, compilationID, err)
	}
	if run.ExitCode != 0 {
		diag := fmt.Sprintf("renderer exited with status %d", run.ExitCode)
		if tail := logTail(run.Logs); tail != "" {
			diag += ": " + tail
		}
		cause := rendererrors.BuildError("run_renderer", rendererrors.ErrBuildFailed).
			WithCompilation(compilationID).
			WithDetail("exit_code", run.ExitCode)
		return types.FailedWith(compilationID, diag, cause)
	}

	b.notify(compilationID, className, StateLocating)
	found, ok := b.locator.Locate(ws.OutputDir, className, compilationID)
	if !ok {
		cause := rendererrors.OutputError("locate_output", rendererrors.ErrNoVideoGenerated).WithCompilation(compilationID)
		return types.FailedWith(compilationID, fmt.Sprintf("No video file generated for scene: %s", className), cause)
	}

	name := paths.SceneVideoName(compilationID, className)
	dest := filepath.Join(b.config.OutputDir, name)
	if err := publish(found, dest); err != nil {
		return types.FailedWith(compilationID, fmt.Sprintf("failed to publish video: %v", err),
			rendererrors.StorageError("publish_video", err).WithCompilation(compilationID))
	}

	result := types.Succeeded(compilationID, dest, paths.PublicURL(b.config.URLPrefix, name))
	result.ThumbnailURL = b.generatePoster(ctx, dest, compilationID, className)
	return result
}

func (b *Builder) runFailure(ctx, runCtx context.Context, compilationID string, err error) types.BuildResult {
	switch {
	case ctx.Err() != nil:
		cause := rendererrors.BuildError("run_renderer", rendererrors.FromContext(ctx.Err())).WithCompilation(compilationID)
		return types.FailedWith(compilationID, fmt.Sprintf("scene build cancelled: %v", ctx.Err()), cause)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		cause := rendererrors.BuildError("run_renderer", rendererrors.ErrTimeout).WithCompilation(compilationID)
		return types.FailedWith(compilationID, fmt.Sprintf("scene build timed out after %s", b.config.Timeout), cause)
	}
	cause := rendererrors.BuildError("run_renderer", err).WithCompilation(compilationID)
	return types.FailedWith(compilationID, fmt.Sprintf("failed to run renderer: %v", err), cause)
}

// ensureEnvironment provisions the image once. A failed attempt is retried by
// the next build.
func (b *Builder) ensureEnvironment(ctx context.Context) error {
	b.envMu.Lock()
	defer b.envMu.Unlock()

	if b.envReady {
		return nil
	}
	if err := b.runtime.EnsureImage(ctx); err != nil {
		return err
	}
	b.envReady = true
	return nil
}

func (b *Builder) generatePoster(ctx context.Context, videoPath, compilationID, className string) string {
	if b.poster == nil {
		return ""
	}
	name := paths.SceneThumbnailName(compilationID, className)
	dest := filepath.Join(b.config.OutputDir, name)
	if err := b.poster.Generate(ctx, videoPath, dest); err != nil {
		b.logger.Warn("failed to generate poster", "compilation_id", compilationID, "error", err)
		return ""
	}
	return paths.PublicURL(b.config.URLPrefix, name)
}

func (b *Builder) notify(compilationID, className string, state State) {
	b.logger.Trace("scene state", "compilation_id", compilationID, "class_name", className, "state", state)
	if b.observer != nil {
		b.observer(compilationID, className, state)
	}
}

// publish copies src to dest through a temp file so readers never see a
// partial video.
func publish(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".publish-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

func logTail(logs string) string {
	s := strings.TrimSpace(logs)
	if len(s) > maxLogTail {
		s = s[len(s)-maxLogTail:]
	}
	return s
}
