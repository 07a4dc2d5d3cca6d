package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the converter home directory.
	DefaultDirName = ".pdf-converter"

	// RunsDirName is the subdirectory holding one directory per capture run.
	RunsDirName = "runs"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// EnvFileName is an optional dotenv file read before the config.
	EnvFileName = ".env"
)

// Dir represents the converter home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.pdf-converter).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// RunsPath returns the directory that holds all runs.
func (d *Dir) RunsPath() string {
	return filepath.Join(d.path, RunsDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnvPath returns the path to the optional dotenv file.
func (d *Dir) EnvPath() string {
	return filepath.Join(d.path, EnvFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.RunsPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create runs directory: %w", err)
	}
	return nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// RunDir returns the directory for a single capture run.
func (d *Dir) RunDir(runID string) string {
	return filepath.Join(d.RunsPath(), runID)
}

// FramesDir returns the directory holding the captured frames of a run.
func (d *Dir) FramesDir(runID string) string {
	return filepath.Join(d.RunDir(runID), "frames")
}

// DebugDir returns the directory for diagnostic images (overlays, test captures).
func (d *Dir) DebugDir(runID string) string {
	return filepath.Join(d.RunDir(runID), "debug")
}

// EnsureRunDirs creates the frames and debug directories for a run.
func (d *Dir) EnsureRunDirs(runID string) error {
	if err := os.MkdirAll(d.FramesDir(runID), 0o755); err != nil {
		return fmt.Errorf("failed to create frames directory: %w", err)
	}
	if err := os.MkdirAll(d.DebugDir(runID), 0o755); err != nil {
		return fmt.Errorf("failed to create debug directory: %w", err)
	}
	return nil
}

// FrameName returns the file name used for a page image.
func FrameName(pageNum int) string {
	return fmt.Sprintf("page_%04d.png", pageNum)
}
