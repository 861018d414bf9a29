package config

import (
	"os"
	"path/filepath"
	"sync"
)

const envHome = "MAESTRO_FLOW_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the orchestra's home directory, used as the base for the
// stateDir/screenshotsDir defaults when a flow config leaves them unset.
//
// Resolution order:
//  1. $MAESTRO_FLOW_HOME environment variable
//  2. Parent of the binary's directory (if binary is in <home>/bin/)
//  3. Current working directory (development fallback)
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// GetStateDir returns <home>/state, the default stateDir used to stash
// init-flow app-state dumps when the flow config doesn't set one.
func GetStateDir() string {
	return filepath.Join(GetHome(), "state")
}

// GetScreenshotsDir returns <home>/screenshots, the default screenshotsDir
// used by TakeScreenshot when the flow config doesn't set one.
func GetScreenshotsDir() string {
	return filepath.Join(GetHome(), "screenshots")
}

func resolveHome() string {
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		binDir := filepath.Dir(execPath)
		if filepath.Base(binDir) == "bin" {
			return filepath.Dir(binDir)
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}

	return "."
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
