package main

import (
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// watchConfig reloads a one-line log-level file ("debug", "info",
// "warn", "error") whenever it changes on disk, applying the new
// level to level without requiring a restart. Errors reading the
// initial file or setting up the watcher are logged, not fatal — a
// missing config file just means the level stays at its default.
func watchConfig(logger *zap.Logger, path string, level *zap.AtomicLevel) {
	applyLevel(logger, path, level)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("config watch disabled: failed to create fsnotify watcher", zap.Error(err))
		return
	}
	if err := watcher.Add(path); err != nil {
		logger.Warn("config watch disabled: failed to watch file", zap.String("path", path), zap.Error(err))
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					applyLevel(logger, path, level)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", zap.Error(err))
			}
		}
	}()
}

func applyLevel(logger *zap.Logger, path string, level *zap.AtomicLevel) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("failed to read config file", zap.String("path", path), zap.Error(err))
		return
	}

	var parsed zapcore.Level
	if err := parsed.Set(strings.TrimSpace(string(data))); err != nil {
		logger.Warn("invalid log level in config file", zap.String("path", path), zap.Error(err))
		return
	}
	level.SetLevel(parsed)
	logger.Info("log level updated from config file", zap.String("level", parsed.String()))
}
