package config

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch watches path for changes and hot-reloads cfg's AutoApprove and
// DangerousPatterns fields in place, leaving every other field untouched
// — provider, model, and iteration limits are fixed once a run starts.
// Readers see the reloaded policy only by calling cfg.Snapshot(); an
// agent loop, gate or filter already built from earlier values keeps
// those values. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, cfg *Config, logger *slog.Logger) error {
	if path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			reloaded, err := Load(path)
			if err != nil {
				logger.Warn("config reload failed, keeping previous policy", "path", path, "error", err)
				continue
			}
			cfg.applyPolicyReload(reloaded.AutoApprove, reloaded.DangerousPatterns)
			logger.Info("reloaded approval policy", "path", path,
				"auto_approve", len(reloaded.AutoApprove), "dangerous_patterns", len(reloaded.DangerousPatterns))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}
