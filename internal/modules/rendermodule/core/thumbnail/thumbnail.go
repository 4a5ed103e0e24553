// Package thumbnail renders WebP posters for published scene videos.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strconv"

	"github.com/chai2010/webp"
	"github.com/hashicorp/go-hclog"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/core/process"
)

// Config holds poster settings.
type Config struct {
	FFmpegPath string
	// SeekSeconds is the frame offset; videos shorter than that fall back
	// to the first frame.
	SeekSeconds float64
	Width       int
	Quality     int
}

// Generator extracts one frame with ffmpeg and encodes it as WebP.
type Generator struct {
	config Config
	execer process.CommandRunner
	logger hclog.Logger
}

// New creates a Generator that shells out to ffmpeg.
func New(config Config, logger hclog.Logger) *Generator {
	return NewWithRunner(config, logger, &process.DefaultCommandRunner{})
}

// NewWithRunner creates a Generator with a custom command runner.
func NewWithRunner(config Config, logger hclog.Logger, execer process.CommandRunner) *Generator {
	if config.FFmpegPath == "" {
		config.FFmpegPath = "ffmpeg"
	}
	if config.Width <= 0 {
		config.Width = 480
	}
	if config.Quality < 1 || config.Quality > 100 {
		config.Quality = 80
	}
	return &Generator{
		config: config,
		execer: execer,
		logger: logger.Named("thumbnail"),
	}
}

// BuildFrameArgs returns the ffmpeg arguments that write one scaled PNG frame.
func BuildFrameArgs(videoPath, framePath string, seek float64, width int) []string {
	return []string{
		"-hide_banner",
		"-y",
		"-ss", strconv.FormatFloat(seek, 'f', 2, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-2", width),
		"-c:v", "png",
		"-f", "image2",
		framePath,
	}
}

// Generate writes a WebP poster for videoPath to posterPath.
func (g *Generator) Generate(ctx context.Context, videoPath, posterPath string) error {
	frame, err := os.CreateTemp(filepath.Dir(posterPath), ".frame-*.png")
	if err != nil {
		return fmt.Errorf("failed to create frame file: %w", err)
	}
	framePath := frame.Name()
	frame.Close()
	defer os.Remove(framePath)

	if err := g.extract(ctx, videoPath, framePath, g.config.SeekSeconds); err != nil {
		return err
	}
	if empty(framePath) && g.config.SeekSeconds > 0 {
		g.logger.Debug("no frame at offset, using first frame", "video", videoPath, "seek", g.config.SeekSeconds)
		if err := g.extract(ctx, videoPath, framePath, 0); err != nil {
			return err
		}
	}
	if empty(framePath) {
		return fmt.Errorf("ffmpeg produced no frame for %s", filepath.Base(videoPath))
	}

	data, err := os.ReadFile(framePath)
	if err != nil {
		return err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode frame: %w", err)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(g.config.Quality)}); err != nil {
		return fmt.Errorf("failed to encode as WebP: %w", err)
	}

	tmp := posterPath + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write poster: %w", err)
	}
	if err := os.Rename(tmp, posterPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write poster: %w", err)
	}

	g.logger.Debug("poster generated", "video", filepath.Base(videoPath), "poster", posterPath, "bytes", buf.Len())
	return nil
}

func (g *Generator) extract(ctx context.Context, videoPath, framePath string, seek float64) error {
	output, err := g.execer.Run(ctx, g.config.FFmpegPath, BuildFrameArgs(videoPath, framePath, seek, g.config.Width)...)
	if err != nil {
		return fmt.Errorf("ffmpeg frame extraction failed: %w: %s", err, bytes.TrimSpace(output))
	}
	return nil
}

func empty(p string) bool {
	info, err := os.Stat(p)
	return err != nil || info.Size() == 0
}
