package paths

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	daemonName = "extauthd"

	// Name of the configuration file inside a config directory.
	configFile = "config.toml"

	// System-wide configuration directory.
	systemConfigDir = "/etc/extauthd"
)

// Path to the per-user configuration file.
//
//	Linux:   $XDG_CONFIG_HOME/extauthd/config.toml
//	macOS:   ~/Library/Application Support/extauthd/config.toml
func UserConfig() string {
	return filepath.Join(xdg.ConfigHome, daemonName, configFile)
}

// Path to the system-wide configuration file.
func SystemConfig() string {
	return filepath.Join(systemConfigDir, configFile)
}

// Default configuration file path.
//
// Returns the first candidate that exists, preferring the per-user file. When
// neither exists, returns "" and the daemon runs on built-in defaults.
func DefaultConfig() string {
	return firstExisting(UserConfig(), SystemConfig())
}

func firstExisting(candidates ...string) string {
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		} else if !errors.Is(err, fs.ErrNotExist) {
			// unreadable but present; let the loader report it
			return p
		}
	}
	return ""
}
