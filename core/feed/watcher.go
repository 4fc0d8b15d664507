package feed

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"Praetorius/logger"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the feed file and calls onChange with each freshly
// loaded document after writes settle. Editors replace files on save,
// so the parent directory is watched and events are filtered by name.
// Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Document)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create feed watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch feed dir %s: %w", dir, err)
	}
	logger.Info("watching works feed", logger.String("path", path))

	// 短暂防抖，等待编辑器完成写入
	const settle = 200 * time.Millisecond
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(settle)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(settle)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			doc, err := Load(path)
			if err != nil {
				logger.Warn("feed reload failed, keeping previous catalog",
					logger.ErrorField(err),
					logger.String("path", path))
				continue
			}
			logger.Info("works feed reloaded",
				logger.String("path", path),
				logger.Int("works", len(doc.Works)))
			onChange(doc)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("feed watcher error", logger.ErrorField(err))
		}
	}
}
