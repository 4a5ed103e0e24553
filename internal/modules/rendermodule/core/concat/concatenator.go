// Package concat joins rendered scene videos into one file with ffmpeg's
// concat demuxer in stream-copy mode. Inputs all come from the same render
// preset, so no re-encode is needed.
package concat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/core/process"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/types"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/utils/paths"
)

// maxDiagnostic bounds how much multiplexer output is kept in an error.
const maxDiagnostic = 4096

// Config holds concatenation settings.
type Config struct {
	FFmpegPath string
	TempDir    string
	OutputDir  string
	URLPrefix  string
}

// Concatenator implements video combination.
type Concatenator struct {
	config Config
	execer process.CommandRunner
	logger hclog.Logger
}

// New creates a Concatenator that shells out to ffmpeg.
func New(config Config, logger hclog.Logger) *Concatenator {
	return NewWithRunner(config, logger, &process.DefaultCommandRunner{})
}

// NewWithRunner creates a Concatenator with a custom command runner (for testing).
func NewWithRunner(config Config, logger hclog.Logger, execer process.CommandRunner) *Concatenator {
	if config.FFmpegPath == "" {
		config.FFmpegPath = "ffmpeg"
	}
	return &Concatenator{
		config: config,
		execer: execer,
		logger: logger.Named("concat"),
	}
}

// Combine joins videoPaths in order. A single input is passed through
// untouched. Failures are reported in the result, never retried.
func (c *Concatenator) Combine(ctx context.Context, videoPaths []string, combinationID string) types.BuildResult {
	if combinationID == "" {
		combinationID = uuid.New().String()
	}

	switch len(videoPaths) {
	case 0:
		return types.Failed(combinationID, "No videos to combine")
	case 1:
		p := videoPaths[0]
		return types.Succeeded(combinationID, p, paths.PublicURL(c.config.URLPrefix, filepath.Base(p)))
	}

	start := time.Now()
	outputName := paths.CombinedVideoName(combinationID)
	outputPath := filepath.Join(c.config.OutputDir, outputName)

	manifest, release, err := c.writeManifest(videoPaths, combinationID)
	if err != nil {
		return types.Failed(combinationID, err.Error())
	}
	defer release()

	if err := os.MkdirAll(c.config.OutputDir, 0755); err != nil {
		return types.Failed(combinationID, fmt.Sprintf("failed to create output directory: %v", err))
	}

	args := BuildConcatArgs(manifest, outputPath)
	c.logger.Info("combining videos", "combination_id", combinationID, "inputs", len(videoPaths), "output", outputPath)

	output, err := c.execer.Run(ctx, c.config.FFmpegPath, args...)
	if err != nil {
		if rmErr := os.Remove(outputPath); rmErr != nil && !os.IsNotExist(rmErr) {
			c.logger.Warn("failed to remove partial output", "path", outputPath, "error", rmErr)
		}
		diag := fmt.Sprintf("ffmpeg concat failed: %v", err)
		if ctx.Err() != nil {
			diag = fmt.Sprintf("ffmpeg concat interrupted: %v", ctx.Err())
		}
		if tail := tailOf(output); tail != "" {
			diag += ": " + tail
		}
		c.logger.Error("video combination failed", "combination_id", combinationID, "error", err)
		return types.Failed(combinationID, diag)
	}

	result := types.Succeeded(combinationID, outputPath, paths.PublicURL(c.config.URLPrefix, outputName))
	result.Duration = time.Since(start)
	c.logger.Info("videos combined", "combination_id", combinationID, "duration", result.Duration)
	return result
}

// BuildConcatArgs returns the ffmpeg arguments for a stream-copy concat.
func BuildConcatArgs(manifestPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", manifestPath,
		"-c", "copy",
		outputPath,
	}
}

// ManifestContent renders the concat demuxer list for videoPaths.
func ManifestContent(videoPaths []string) (string, error) {
	var b strings.Builder
	for i, p := range videoPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "file '%s'", strings.ReplaceAll(abs, "'", `'\''`))
	}
	return b.String(), nil
}

// writeManifest stages the list file and returns a release func that removes
// it. The release func is always non-nil.
func (c *Concatenator) writeManifest(videoPaths []string, combinationID string) (string, func(), error) {
	noop := func() {}

	content, err := ManifestContent(videoPaths)
	if err != nil {
		return "", noop, err
	}
	if err := os.MkdirAll(c.config.TempDir, 0755); err != nil {
		return "", noop, fmt.Errorf("failed to create temp directory: %w", err)
	}

	manifest := filepath.Join(c.config.TempDir, paths.ManifestName(combinationID))
	if err := os.WriteFile(manifest, []byte(content), 0644); err != nil {
		return "", noop, fmt.Errorf("failed to write concat manifest: %w", err)
	}

	return manifest, func() {
		if err := os.Remove(manifest); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("failed to remove concat manifest", "path", manifest, "error", err)
		}
	}, nil
}

func tailOf(output []byte) string {
	s := strings.TrimSpace(string(output))
	if len(s) > maxDiagnostic {
		s = s[len(s)-maxDiagnostic:]
	}
	return s
}
