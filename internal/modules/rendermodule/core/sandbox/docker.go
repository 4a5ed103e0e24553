package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/hashicorp/go-hclog"
)

const (
	compilationLabel = "manimforge.compilation"
	removeTimeout    = 10 * time.Second
	maxLogBytes      = 64 * 1024
)

// DockerConfig configures the Docker-backed runtime.
type DockerConfig struct {
	// Image is the tag of the render image, e.g. "manim-platform".
	Image string
	// DockerfileDir is the build context used when Image is missing. When
	// empty, the image is pulled instead.
	DockerfileDir string
	Dockerfile    string
	// MemoryBytes and NanoCPUs cap the container; zero means unlimited.
	MemoryBytes     int64
	NanoCPUs        int64
	NetworkDisabled bool
}

// DockerRuntime runs scenes in throwaway containers through the Docker API.
type DockerRuntime struct {
	cli    *client.Client
	config DockerConfig
	logger hclog.Logger
}

// NewDockerRuntime connects to the daemon described by the environment
// (DOCKER_HOST and friends).
func NewDockerRuntime(config DockerConfig, logger hclog.Logger) (*DockerRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	if config.Dockerfile == "" {
		config.Dockerfile = "Dockerfile"
	}
	return &DockerRuntime{
		cli:    cli,
		config: config,
		logger: logger.Named("docker-runtime"),
	}, nil
}

// Close releases the client connection.
func (r *DockerRuntime) Close() error {
	return r.cli.Close()
}

// Ping checks that the daemon is reachable.
func (r *DockerRuntime) Ping(ctx context.Context) error {
	_, err := r.cli.Ping(ctx)
	return err
}

// EnsureImage makes the render image available, building or pulling it when
// the daemon does not have it.
func (r *DockerRuntime) EnsureImage(ctx context.Context) error {
	_, _, err := r.cli.ImageInspectWithRaw(ctx, r.config.Image)
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to inspect image %s: %w", r.config.Image, err)
	}

	if r.config.DockerfileDir != "" {
		return r.buildImage(ctx)
	}
	return r.pullImage(ctx)
}

func (r *DockerRuntime) buildImage(ctx context.Context) error {
	r.logger.Info("building render image", "image", r.config.Image, "context", r.config.DockerfileDir)
	start := time.Now()

	buildCtx, err := archive.TarWithOptions(r.config.DockerfileDir, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("failed to archive build context: %w", err)
	}
	defer buildCtx.Close()

	resp, err := r.cli.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:        []string{r.config.Image},
		Dockerfile:  r.config.Dockerfile,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build image %s: %w", r.config.Image, err)
	}
	defer resp.Body.Close()

	// build errors are reported inside the progress stream
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, io.Discard, 0, false, nil); err != nil {
		return fmt.Errorf("image build %s failed: %w", r.config.Image, err)
	}

	r.logger.Info("render image built", "image", r.config.Image, "duration", time.Since(start))
	return nil
}

func (r *DockerRuntime) pullImage(ctx context.Context) error {
	r.logger.Info("pulling render image", "image", r.config.Image)

	reader, err := r.cli.ImagePull(ctx, r.config.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", r.config.Image, err)
	}
	defer reader.Close()

	if err := jsonmessage.DisplayJSONMessagesStream(reader, io.Discard, 0, false, nil); err != nil {
		return fmt.Errorf("image pull %s failed: %w", r.config.Image, err)
	}
	return nil
}

// Run creates, starts, and waits for a render container. The container is
// always force-removed, which also stops it when ctx is cancelled first.
func (r *DockerRuntime) Run(ctx context.Context, spec RunSpec) (RunResult, error) {
	inputDir, err := filepath.Abs(spec.InputDir)
	if err != nil {
		return RunResult{}, err
	}
	outputDir, err := filepath.Abs(spec.OutputDir)
	if err != nil {
		return RunResult{}, err
	}

	containerConfig := &container.Config{
		Image:           r.config.Image,
		Cmd:             spec.Command,
		WorkingDir:      ContainerOutputDir,
		AttachStdout:    true,
		AttachStderr:    true,
		NetworkDisabled: r.config.NetworkDisabled,
		Labels:          map[string]string{compilationLabel: spec.CompilationID},
	}
	hostConfig := &container.HostConfig{
		Binds: []string{
			fmt.Sprintf("%s:%s:ro", inputDir, ContainerInputDir),
			fmt.Sprintf("%s:%s", outputDir, ContainerOutputDir),
		},
		Resources: container.Resources{
			Memory:   r.config.MemoryBytes,
			NanoCPUs: r.config.NanoCPUs,
		},
	}
	if r.config.NetworkDisabled {
		hostConfig.NetworkMode = "none"
	}

	resp, err := r.cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, "")
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to create render container: %w", err)
	}
	defer r.remove(resp.ID, spec.CompilationID)

	if err := r.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return RunResult{}, fmt.Errorf("failed to start render container: %w", err)
	}
	r.logger.Debug("render container started", "compilation_id", spec.CompilationID, "container_id", resp.ID[:12])

	var exitCode int64
	statusCh, errCh := r.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			if ctx.Err() != nil {
				return RunResult{}, ctx.Err()
			}
			return RunResult{}, fmt.Errorf("failed waiting for render container: %w", err)
		}
	case status := <-statusCh:
		exitCode = status.StatusCode
		if status.Error != nil && status.Error.Message != "" {
			return RunResult{}, fmt.Errorf("render container wait error: %s", status.Error.Message)
		}
	case <-ctx.Done():
		return RunResult{}, ctx.Err()
	}

	return RunResult{
		ExitCode: exitCode,
		Logs:     r.collectLogs(resp.ID),
	}, nil
}

func (r *DockerRuntime) collectLogs(containerID string) string {
	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()

	rc, err := r.cli.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		r.logger.Debug("failed to read container logs", "container_id", containerID, "error", err)
		return ""
	}
	defer rc.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, io.LimitReader(rc, maxLogBytes*2)); err != nil {
		r.logger.Debug("failed to demultiplex container logs", "container_id", containerID, "error", err)
	}
	return stdout.String() + stderr.String()
}

func (r *DockerRuntime) remove(containerID, compilationID string) {
	// detached context so removal still runs after cancellation
	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()

	if err := r.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		r.logger.Warn("failed to remove render container", "compilation_id", compilationID, "container_id", containerID, "error", err)
	}
}
