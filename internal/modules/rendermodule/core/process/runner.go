// Package process wraps external command execution for the render pipeline.
package process

import (
	"context"
	"os/exec"
)

// CommandRunner executes external commands (enables mocking in tests).
type CommandRunner interface {
	Run(ctx context.Context, cmd string, args ...string) ([]byte, error)
}

// DefaultCommandRunner implements CommandRunner using os/exec.
type DefaultCommandRunner struct{}

// Run executes cmd and returns its combined stdout and stderr.
func (r *DefaultCommandRunner) Run(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, cmd, args...).CombinedOutput()
}
