package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/manimforge/manimforge/internal/modules/rendermodule"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/core/concat"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/core/extractor"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/core/orchestrator"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/core/sandbox"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/types"
	"github.com/spf13/cobra"
)

func newCompileCmd(flags *globalFlags) *cobra.Command {
	var combine bool

	cmd := &cobra.Command{
		Use:   "compile [flags] <file.py>...",
		Short: "Compile every scene declared in the given files",
		Long: `Compile runs each declared scene class in its own container, in file order,
and stops at the first failure. With --combine the scene videos are joined
into one video.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenes, err := describeFiles(extractor.New(), args)
			if err != nil {
				return err
			}
			if len(scenes) == 0 {
				return errors.New("no scene classes found")
			}

			cm, log, cleanup, err := setup(flags)
			if err != nil {
				return err
			}
			defer cleanup()
			cfg := cm.GetConfig()

			for _, dir := range []string{cfg.Render.TempDir, cfg.Render.OutputDir} {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create %s: %w", dir, err)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runtime, err := sandbox.NewDockerRuntime(rendermodule.DockerConfigFrom(cfg.Render), log)
			if err != nil {
				return err
			}
			defer runtime.Close()

			pipeline := rendermodule.NewPipeline(cfg.Render, runtime, log)
			result, err := orchestrator.New(pipeline.Builder, pipeline.Combiner, log).Run(ctx, scenes, combine)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("compilation failed at scene %s", result.FailedScene)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&combine, "combine", false, "join the scene videos into one video")
	return cmd
}

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file.py>...",
		Short: "List the scene classes declared in the given files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenes, err := describeFiles(extractor.New(), args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range scenes {
				fmt.Fprintf(out, "%s\t%s\n", s.FileName, s.ClassName)
			}
			return nil
		},
	}
}

func newCombineCmd(flags *globalFlags) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "combine [flags] <video.mp4>...",
		Short: "Join videos into one with ffmpeg",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, log, cleanup, err := setup(flags)
			if err != nil {
				return err
			}
			defer cleanup()
			cfg := cm.GetConfig()

			if id == "" {
				id = uuid.NewString()
			}
			if err := os.MkdirAll(cfg.Render.OutputDir, 0755); err != nil {
				return err
			}

			combiner := concat.New(concat.Config{
				FFmpegPath: cfg.Render.FFmpegPath,
				TempDir:    cfg.Render.TempDir,
				OutputDir:  cfg.Render.OutputDir,
				URLPrefix:  cfg.Render.URLPrefix,
			}, log)
			result := combiner.Combine(cmd.Context(), args, id)
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Success {
				return errors.New(result.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "combination id used in the output name (default: random)")
	return cmd
}

// describeFiles reads each file and expands it into one descriptor per
// declared scene, keeping file order.
func describeFiles(e extractor.Extractor, paths []string) ([]types.SceneDescriptor, error) {
	var scenes []types.SceneDescriptor
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		scenes = append(scenes, extractor.Describe(e, filepath.Base(p), string(content))...)
	}
	return scenes, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
