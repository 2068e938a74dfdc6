package config

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	gwerrors "github.com/modelrelay/modelrelay/pkg/errors"
	"github.com/modelrelay/modelrelay/pkg/types"
)

// Manager handles configuration loading and hot-reload.
// It uses atomic pointer swaps to ensure thread-safe config updates.
//
// Manager implements PresetSource and ProviderSource, so the resolver
// and dispatcher always observe the most recently loaded file.
type Manager struct {
	config   atomic.Pointer[File]
	path     string
	watcher  *fsnotify.Watcher
	onChange []func(*File)
	logger   *slog.Logger
}

// NewManager loads the file at path and returns a manager holding it.
func NewManager(path string, logger *slog.Logger) (*Manager, error) {
	cfg, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		path:   path,
		logger: logger,
	}
	m.config.Store(cfg)

	return m, nil
}

// Get returns the current configuration.
// This is safe to call concurrently from multiple goroutines.
func (m *Manager) Get() *File {
	return m.config.Load()
}

// Preset implements PresetSource against the current file.
func (m *Manager) Preset(name string) (*types.Preset, error) {
	if p, ok := m.Get().Presets[name]; ok {
		return &p, nil
	}
	if name == types.DefaultPreset {
		return &types.Preset{}, nil
	}
	return nil, gwerrors.NewPresetNotFound(name)
}

// Provider implements ProviderSource against the current file.
func (m *Manager) Provider(name string) (*types.ProviderConfig, error) {
	for _, p := range m.Get().Providers {
		if p.Name == name {
			cfg := p
			return &cfg, nil
		}
	}
	return nil, gwerrors.NewProviderConfigMissing(name)
}

// OnChange registers a callback to be invoked when configuration changes.
// Callbacks must be registered before Watch is started.
func (m *Manager) OnChange(fn func(*File)) {
	m.onChange = append(m.onChange, fn)
}

// Watch starts watching the configuration file for changes.
// It debounces rapid changes and reloads configuration atomically.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	m.watcher = watcher

	if err := watcher.Add(m.path); err != nil {
		_ = watcher.Close()
		return err
	}

	go m.watchLoop(ctx)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context) {
	// Debounce timer to avoid rapid reloads
	const debounceDelay = 500 * time.Millisecond
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			_ = m.watcher.Close()
			return

		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDelay, func() {
					if err := m.Reload(); err != nil {
						m.logger.Error("failed to reload config, keeping current",
							"error", err,
						)
					}
				})
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error("config watcher error", "error", err)
		}
	}
}

// Reload re-reads the file and swaps the configuration atomically. On
// error the current configuration is kept.
func (m *Manager) Reload() error {
	newCfg, err := LoadFromFile(m.path)
	if err != nil {
		return err
	}

	m.config.Store(newCfg)
	m.logger.Info("configuration reloaded")

	for _, fn := range m.onChange {
		fn(newCfg)
	}
	return nil
}
