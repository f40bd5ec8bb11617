package models

import (
	"path/filepath"
	"time"
)

// Config represents the main configuration
type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	Storage StorageConfig `mapstructure:"storage"`
	Rules   RulesConfig   `mapstructure:"rules"`
	Update  UpdateConfig  `mapstructure:"update"`
	API     APIConfig     `mapstructure:"api"`
	Logging LoggingConfig `mapstructure:"logging"`
	Output  OutputConfig  `mapstructure:"output"`
	Lists   []FilterList  `mapstructure:"lists" validate:"dive"`
}

// HTTPConfig contains HTTP client settings
type HTTPConfig struct {
	Timeout         time.Duration `mapstructure:"timeout" validate:"gte=0"`
	ResourceTimeout time.Duration `mapstructure:"resource_timeout" validate:"gte=0"`
	Retries         int           `mapstructure:"retries" validate:"gte=0,lte=10"`
	MaxConnsPerHost int           `mapstructure:"max_conns_per_host" validate:"gte=0"`
	UserAgent       string        `mapstructure:"user_agent"`
}

// StorageConfig locates persisted state
type StorageConfig struct {
	DataDir  string `mapstructure:"data_dir" validate:"required"`
	Database string `mapstructure:"database"`
}

// RulesConfig controls rule composition
type RulesConfig struct {
	MaxRules   int      `mapstructure:"max_rules" validate:"gt=0,lte=150000"`
	Categories []string `mapstructure:"categories" validate:"dive,oneof=ads trackers social annoyances"`
}

// UpdateConfig controls scheduled subscription updates
type UpdateConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"gte=0"`
	OnStart  bool          `mapstructure:"on_start"`
}

// APIConfig configures the local control API
type APIConfig struct {
	Listen string `mapstructure:"listen" validate:"omitempty,hostname_port"`
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=console json"`
}

// OutputConfig contains output settings for offline conversion
type OutputConfig struct {
	MaxRulesPerFile  int  `mapstructure:"max_rules_per_file" validate:"gte=0"`
	GenerateCombined bool `mapstructure:"generate_combined"`
	GenerateManifest bool `mapstructure:"generate_manifest"`
}

// FilterList represents a single filter list configuration
type FilterList struct {
	Name    string `mapstructure:"name" validate:"required"`
	URL     string `mapstructure:"url" validate:"required,url"`
	Enabled bool   `mapstructure:"enabled"`
}

// EnabledLists returns only enabled filter lists
func (c *Config) EnabledLists() []FilterList {
	var enabled []FilterList
	for _, l := range c.Lists {
		if l.Enabled {
			enabled = append(enabled, l)
		}
	}
	return enabled
}

// DatabasePath returns the state database file, defaulting to data_dir/rulekit.db
func (s StorageConfig) DatabasePath() string {
	if s.Database != "" {
		return s.Database
	}
	return filepath.Join(s.DataDir, "rulekit.db")
}

// RulesDir holds one compiled rule blob per subscription
func (s StorageConfig) RulesDir() string {
	return filepath.Join(s.DataDir, "rules")
}

// RuntimeDir holds the published rule documents
func (s StorageConfig) RuntimeDir() string {
	return filepath.Join(s.DataDir, "runtime")
}
