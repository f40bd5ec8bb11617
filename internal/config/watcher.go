package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/bnema/rulekit/internal/models"
)

// Watch reloads the configuration whenever the file changes and passes valid
// results to the registered callbacks. Invalid edits are logged and ignored.
func (m *Manager) Watch(log zerolog.Logger) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watching {
		return nil
	}
	if m.viper.ConfigFileUsed() == "" {
		return fmt.Errorf("no config file to watch")
	}

	m.viper.OnConfigChange(func(e fsnotify.Event) {
		log.Debug().Str("op", e.Op.String()).Str("file", e.Name).Msg("config change detected")

		m.mu.Lock()
		cfg, err := m.decode()
		if err != nil {
			m.mu.Unlock()
			log.Warn().Err(err).Msg("ignoring invalid config change")
			return
		}
		m.config = cfg
		callbacks := make([]func(*models.Config), len(m.callbacks))
		copy(callbacks, m.callbacks)
		m.mu.Unlock()

		for _, cb := range callbacks {
			cb(cfg)
		}
	})
	m.viper.WatchConfig()

	m.watching = true
	return nil
}

// OnConfigChange registers a callback for reloaded configurations
func (m *Manager) OnConfigChange(callback func(*models.Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callbacks = append(m.callbacks, callback)
}
