package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Loader handles configuration loading with layered precedence.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. Config file (explicit path, or CFG_PATH)
// 3. Environment variables
func (l *Loader) Load(path string) (*Config, error) {
	config := DefaultConfig()

	if path == "" {
		path = os.Getenv("CFG_PATH")
	}
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded config file", slog.String("path", path))
		config.Merge(fileConfig)
	}

	config.ApplyEnv()
	return config, nil
}

// Watch reloads the config file whenever it changes and hands the result
// to onChange. Editors often replace config files instead of writing in
// place, so the parent directory is watched and events are filtered by
// name. Returns a stop function.
func (l *Loader) Watch(path string, onChange func(*Config)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch config directory: %w", err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := l.Load(path)
				if err != nil {
					l.logger.Warn("Config reload failed", slog.String("path", path), slog.String("error", err.Error()))
					continue
				}
				if err := cfg.Validate(); err != nil {
					l.logger.Warn("Reloaded config is invalid, keeping previous", slog.String("error", err.Error()))
					continue
				}
				l.logger.Info("Config reloaded", slog.String("path", path))
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Warn("Config watcher error", slog.String("error", err.Error()))
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
