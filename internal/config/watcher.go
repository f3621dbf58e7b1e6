package config

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"

	"github.com/codefionn/threadgate/internal/logger"
)

// Watch watches the config source file and calls onReload with the freshly
// parsed configuration whenever it changes. Parse failures keep the previous
// configuration and are logged. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, onReload func(*Config)) error {
	if path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch config file %s: %w", path, err)
	}

	logger.Debug("Watching config file %s", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				logger.Warn("Config reload failed, keeping previous config: %v", err)
				continue
			}

			logger.Info("Config reloaded from %s", path)
			onReload(cfg)

			// Some editors replace the file; re-add the watch in case the
			// inode changed.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Config watcher error: %v", err)
		}
	}
}
