// Package paths resolves the per-user directories insights uses outside the
// run output folder.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "insights"

// ConfigDir returns the config directory for insights.
// Order: XDG_CONFIG_HOME/insights, platform-specific fallback.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("AppData"); appData != "" {
			return filepath.Join(appData, "Insights")
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName)
}

// DataDir returns the data directory for insights.
// Order: XDG_DATA_HOME/insights, platform-specific fallback.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	if runtime.GOOS == "windows" {
		if localAppData := os.Getenv("LocalAppData"); localAppData != "" {
			return filepath.Join(localAppData, "Insights")
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appName)
}

// DefaultConfigFile is read when no --config is given. A missing file is
// not an error.
func DefaultConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LockDir holds the per-owner run locks shared by every insights process of
// this user.
func LockDir() string {
	return filepath.Join(DataDir(), "locks")
}
