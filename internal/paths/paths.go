// Package paths centralizes file and directory names used across the project.
// All data directory file names are defined here as the single source of truth.
package paths

import (
	"os"
	"path/filepath"
)

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	SettingsFile = "settings.json"
	ConfigFile   = "config.toml"
	LogFile      = "cordpush.log"
	PIDFile      = "cordpush.pid"
)

// Binary and data directory names.
const (
	BinaryName = "cordpush"
	DataDirRel = ".cordpush" // relative to $HOME
)

// ReleaseManifest is the repo-relative path of the release manifest consulted
// by the version check.
const ReleaseManifest = ".release-manifest.json"

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir provides path construction methods rooted at a data directory.
type DataDir struct {
	Root string
}

// Default returns the DataDir under the user's home directory, falling back
// to the working directory when home cannot be resolved.
func Default() DataDir {
	home, err := os.UserHomeDir()
	if err != nil {
		return DataDir{Root: filepath.Join(".", DataDirRel)}
	}
	return DataDir{Root: filepath.Join(home, DataDirRel)}
}

// Ensure creates the data directory if it does not exist.
func (d DataDir) Ensure() error {
	return os.MkdirAll(d.Root, 0o755)
}

// Settings returns the full path to the persisted settings file.
func (d DataDir) Settings() string { return filepath.Join(d.Root, SettingsFile) }

// Config returns the full path to the config file.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Log returns the full path to the log file.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }

// PID returns the full path to the PID lock file.
func (d DataDir) PID() string { return filepath.Join(d.Root, PIDFile) }
