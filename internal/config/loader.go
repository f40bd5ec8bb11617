// Package config loads rulekit's TOML configuration through viper and keeps
// it current while the daemon runs.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/bnema/rulekit/internal/models"
)

const (
	envPrefix  = "RULEKIT"
	configName = "rulekit"
)

// Manager handles configuration loading, watching, and reloading.
type Manager struct {
	viper     *viper.Viper
	mu        sync.RWMutex
	config    *models.Config
	callbacks []func(*models.Config)
	watching  bool
}

// NewManager creates a manager reading configFile, or searching
// ./configs, the user config dir and . for rulekit.toml when it is empty.
func NewManager(configFile string) (*Manager, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("toml")
		v.AddConfigPath("./configs")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, configName))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("logging.level", "RULEKIT_LOG_LEVEL"); err != nil {
		return nil, fmt.Errorf("failed to bind RULEKIT_LOG_LEVEL: %w", err)
	}
	if err := v.BindEnv("logging.format", "RULEKIT_LOG_FORMAT"); err != nil {
		return nil, fmt.Errorf("failed to bind RULEKIT_LOG_FORMAT: %w", err)
	}

	setDefaults(v)

	return &Manager{viper: v}, nil
}

// Load reads the config file (a missing file leaves defaults in place),
// applies the environment and validates the result.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := m.decode()
	if err != nil {
		return err
	}
	m.config = cfg
	return nil
}

func (m *Manager) decode() (*models.Config, error) {
	cfg := &models.Config{}
	if err := m.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", m.viper.ConfigFileUsed(), err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Get returns the current configuration
func (m *Manager) Get() *models.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// ConfigFileUsed returns the path of the loaded file, empty when running on defaults
func (m *Manager) ConfigFileUsed() string {
	return m.viper.ConfigFileUsed()
}
