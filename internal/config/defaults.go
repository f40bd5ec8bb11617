package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// DefaultListen is the control API address
const DefaultListen = "127.0.0.1:8787"

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.resource_timeout", "2m")
	v.SetDefault("http.retries", 3)
	v.SetDefault("http.max_conns_per_host", 2)
	v.SetDefault("http.user_agent", "rulekit/1.0")

	v.SetDefault("storage.data_dir", DefaultDataDir())

	v.SetDefault("rules.max_rules", 50000)
	v.SetDefault("rules.categories", []string{"ads", "trackers"})

	v.SetDefault("update.interval", "24h")
	v.SetDefault("update.on_start", true)

	v.SetDefault("api.listen", DefaultListen)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("output.max_rules_per_file", 50000)
	v.SetDefault("output.generate_combined", true)
	v.SetDefault("output.generate_manifest", true)
}

// DefaultDataDir follows XDG_DATA_HOME, falling back to ~/.local/share/rulekit
func DefaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, configName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", configName)
	}
	return filepath.Join(".", "data")
}

// DefaultPath is where `rulekit init` writes when no path is given
const DefaultPath = "./configs/rulekit.toml"

const defaultConfig = `# rulekit configuration

[http]
timeout = "30s"
resource_timeout = "2m"
retries = 3
max_conns_per_host = 2

[storage]
# data_dir = "~/.local/share/rulekit"

[rules]
max_rules = 50000
# Built-in categories: ads, trackers, social, annoyances
categories = ["ads", "trackers"]

[update]
interval = "24h"
on_start = true

[api]
listen = "127.0.0.1:8787"

[logging]
level = "info"
format = "console"

# Offline conversion (rulekit convert)
[output]
max_rules_per_file = 50000
generate_combined = true
generate_manifest = true

# Built-in subscriptions. They can be disabled but not removed.

[[lists]]
name = "easylist"
url = "https://easylist.to/easylist/easylist.txt"
enabled = true

[[lists]]
name = "easyprivacy"
url = "https://easylist.to/easylist/easyprivacy.txt"
enabled = true

[[lists]]
name = "ublock-filters"
url = "https://ublockorigin.github.io/uAssets/filters/filters.txt"
enabled = false

[[lists]]
name = "ublock-privacy"
url = "https://ublockorigin.github.io/uAssets/filters/privacy.txt"
enabled = false

[[lists]]
name = "ublock-badware"
url = "https://ublockorigin.github.io/uAssets/filters/badware.txt"
enabled = false

[[lists]]
name = "peter-lowe"
url = "https://pgl.yoyo.org/adservers/serverlist.php?hostformat=adblockplus&showintro=0&mimetype=plaintext"
enabled = false
`

// WriteDefault writes the default config file, refusing to overwrite
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
