package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetHome_EnvVar(t *testing.T) {
	ResetHome()
	t.Setenv("MAESTRO_FLOW_HOME", "/custom/path")

	got := GetHome()
	if got != "/custom/path" {
		t.Errorf("GetHome() = %q, want %q", got, "/custom/path")
	}
}

func TestGetHome_EnvVarTakesPrecedence(t *testing.T) {
	ResetHome()
	t.Setenv("MAESTRO_FLOW_HOME", "/override")

	got := GetHome()
	if got != "/override" {
		t.Errorf("GetHome() = %q, want %q", got, "/override")
	}
}

func TestGetHome_FallbackToCwd(t *testing.T) {
	ResetHome()
	t.Setenv("MAESTRO_FLOW_HOME", "")

	got := GetHome()
	cwd, _ := os.Getwd()

	if got == "" {
		t.Error("GetHome() returned empty string")
	}
	if got != cwd {
		t.Errorf("GetHome() = %q, want cwd %q", got, cwd)
	}
}

func TestGetHome_Cached(t *testing.T) {
	ResetHome()
	t.Setenv("MAESTRO_FLOW_HOME", "/first")

	first := GetHome()

	t.Setenv("MAESTRO_FLOW_HOME", "/second")
	second := GetHome()

	if first != second {
		t.Errorf("GetHome() not cached: first=%q, second=%q", first, second)
	}
}

func TestGetStateDir(t *testing.T) {
	ResetHome()
	t.Setenv("MAESTRO_FLOW_HOME", "/test/home")

	got := GetStateDir()
	want := filepath.Join("/test/home", "state")
	if got != want {
		t.Errorf("GetStateDir() = %q, want %q", got, want)
	}
}

func TestGetScreenshotsDir(t *testing.T) {
	ResetHome()
	t.Setenv("MAESTRO_FLOW_HOME", "/test/home")

	got := GetScreenshotsDir()
	want := filepath.Join("/test/home", "screenshots")
	if got != want {
		t.Errorf("GetScreenshotsDir() = %q, want %q", got, want)
	}
}

func TestGetHome_EnvVarDirWithBinSubdir(t *testing.T) {
	tmpDir := t.TempDir()
	binDir := filepath.Join(tmpDir, "bin")
	if err := os.MkdirAll(binDir, 0755); err != nil {
		t.Fatal(err)
	}

	ResetHome()
	t.Setenv("MAESTRO_FLOW_HOME", tmpDir)

	got := GetHome()
	if got != tmpDir {
		t.Errorf("GetHome() = %q, want %q", got, tmpDir)
	}
}
