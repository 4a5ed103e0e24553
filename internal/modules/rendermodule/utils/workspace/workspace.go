// Package workspace manages the per-compilation temp directories used by
// scene builds. A Workspace is acquired before a build and released on every
// exit path; release is best-effort and never fails the caller.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	inputDirName  = "input"
	outputDirName = "output"
)

// Manager creates workspaces under a base directory.
type Manager struct {
	baseDir string
	logger  hclog.Logger
}

// NewManager creates a workspace manager rooted at baseDir.
func NewManager(baseDir string, logger hclog.Logger) *Manager {
	return &Manager{
		baseDir: baseDir,
		logger:  logger.Named("workspace"),
	}
}

// BaseDir returns the root under which workspaces are created.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Workspace is one compilation's scratch area.
type Workspace struct {
	ID        string
	Root      string
	InputDir  string
	OutputDir string

	logger   hclog.Logger
	once     sync.Once
	released bool
}

// Acquire creates a fresh workspace for compilationID. It fails if the
// directory already exists, since that would mean two builds share files.
func (m *Manager) Acquire(compilationID string) (*Workspace, error) {
	if err := os.MkdirAll(m.baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp base directory: %w", err)
	}

	root := filepath.Join(m.baseDir, compilationID)
	if err := os.Mkdir(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace %s: %w", compilationID, err)
	}

	ws := &Workspace{
		ID:        compilationID,
		Root:      root,
		InputDir:  filepath.Join(root, inputDirName),
		OutputDir: filepath.Join(root, outputDirName),
		logger:    m.logger,
	}
	for _, dir := range []string{ws.InputDir, ws.OutputDir} {
		// The sandbox user is not the host user; output must be writable by it.
		if err := os.MkdirAll(dir, 0777); err != nil {
			ws.Release()
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		_ = os.Chmod(dir, 0777)
	}

	m.logger.Debug("acquired workspace", "compilation_id", compilationID, "path", root)
	return ws, nil
}

// WriteSource stages a source file in the input directory.
func (w *Workspace) WriteSource(name, content string) (string, error) {
	p := filepath.Join(w.InputDir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write source %s: %w", name, err)
	}
	return p, nil
}

// Release removes the workspace. Safe to call more than once.
func (w *Workspace) Release() {
	w.once.Do(func() {
		w.released = true
		if err := os.RemoveAll(w.Root); err != nil {
			w.logger.Warn("failed to remove workspace", "compilation_id", w.ID, "path", w.Root, "error", err)
			return
		}
		w.logger.Debug("released workspace", "compilation_id", w.ID)
	})
}

// Released reports whether Release has run.
func (w *Workspace) Released() bool {
	return w.released
}

// Entry describes a directory entry under the base directory.
type Entry struct {
	Path         string
	Name         string
	IsDir        bool
	Size         int64
	LastModified time.Time
}

// ListOlderThan returns entries of dir last modified before cutoff, oldest first.
func ListOlderThan(dir string, cutoff time.Time) ([]Entry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var out []Entry
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		size := info.Size()
		if e.IsDir() {
			size, _ = DirectorySize(p)
		}
		out = append(out, Entry{
			Path:         p,
			Name:         e.Name(),
			IsDir:        e.IsDir(),
			Size:         size,
			LastModified: info.ModTime(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastModified.Before(out[j].LastModified)
	})
	return out, nil
}

// DirectorySize returns the total size of the regular files under path.
func DirectorySize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
