// Package storage persists engine options and finished analyses.
package storage

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "smpchess"

// DataDir returns the platform-specific data directory for the engine,
// creating it if needed.
// - macOS: ~/Library/Application Support/smpchess/
// - Linux: ~/.local/share/smpchess/
// - Windows: %APPDATA%/smpchess/
func DataDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		baseDir = filepath.Join(homeDir, "Library", "Application Support")

	case "windows":
		baseDir = os.Getenv("APPDATA")
		if baseDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			baseDir = filepath.Join(homeDir, "AppData", "Roaming")
		}

	default:
		// Check XDG_DATA_HOME first
		baseDir = os.Getenv("XDG_DATA_HOME")
		if baseDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			baseDir = filepath.Join(homeDir, ".local", "share")
		}
	}

	dataDir := filepath.Join(baseDir, appName)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", err
	}
	return dataDir, nil
}

// DatabaseDir returns the badger directory inside base, or inside DataDir
// when base is empty.
func DatabaseDir(base string) (string, error) {
	if base == "" {
		var err error
		if base, err = DataDir(); err != nil {
			return "", err
		}
	}
	dbDir := filepath.Join(base, "db")
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return "", err
	}
	return dbDir, nil
}
