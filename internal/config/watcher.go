package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 250 * time.Millisecond

// Watch reloads the configuration whenever its file changes, until ctx is
// done. The parent directory is watched so editors that replace the file
// are handled. A failed reload keeps the previous configuration.
func (cm *ConfigManager) Watch(ctx context.Context) error {
	path := cm.ConfigPath()
	if path == "" {
		return fmt.Errorf("no config path to watch")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()

		var debounce <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				debounce = time.After(reloadDebounce)
			case <-debounce:
				debounce = nil
				if err := cm.Reload(); err != nil {
					cm.logger.Warn("config reload failed, keeping previous configuration", "path", abs, "error", err)
					continue
				}
				cm.logger.Info("configuration reloaded", "path", abs)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				cm.logger.Warn("config watcher error", "error", err)
			}
		}
	}()
	return nil
}
