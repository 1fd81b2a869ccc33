package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// GetDataDir returns the per-user directory holding the snapshot and
// history.
func GetDataDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, "mcpscope")
		}
		return filepath.Join(home, "AppData", "Local", "mcpscope")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "mcpscope")
	default:
		if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
			return filepath.Join(dir, "mcpscope")
		}
		return filepath.Join(home, ".local", "state", "mcpscope")
	}
}

// GetUserConfigDir returns the user-specific config directory.
func GetUserConfigDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			return filepath.Join(appdata, "mcpscope")
		}
		return filepath.Join(home, "AppData", "Roaming", "mcpscope")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "mcpscope")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "mcpscope")
		}
		return filepath.Join(home, ".config", "mcpscope")
	}
}

// DefaultConfigPath is config.yaml in the user config directory.
func DefaultConfigPath() string {
	return filepath.Join(GetUserConfigDir(), "config.yaml")
}
