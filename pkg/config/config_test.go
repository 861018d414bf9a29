package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "maestro-flow.yaml")

	content := `
appId: com.example.app
lookupTimeoutMs: 20000
optionalLookupTimeoutMs: 5000
stateDir: /tmp/state
screenshotsDir: /tmp/shots
networkProxyPort: 9090
env:
  USER: test
  PASS: secret
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.AppID != "com.example.app" {
		t.Errorf("expected appId com.example.app, got %s", cfg.AppID)
	}
	if cfg.LookupTimeoutMs != 20000 {
		t.Errorf("expected lookupTimeoutMs 20000, got %d", cfg.LookupTimeoutMs)
	}
	if cfg.OptionalLookupTimeoutMs != 5000 {
		t.Errorf("expected optionalLookupTimeoutMs 5000, got %d", cfg.OptionalLookupTimeoutMs)
	}
	if cfg.StateDir != "/tmp/state" {
		t.Errorf("expected stateDir /tmp/state, got %s", cfg.StateDir)
	}
	if cfg.ScreenshotsDir != "/tmp/shots" {
		t.Errorf("expected screenshotsDir /tmp/shots, got %s", cfg.ScreenshotsDir)
	}
	if cfg.NetworkProxyPort != 9090 {
		t.Errorf("expected networkProxyPort 9090, got %d", cfg.NetworkProxyPort)
	}
	if cfg.Env["USER"] != "test" || cfg.Env["PASS"] != "secret" {
		t.Errorf("expected env {USER:test, PASS:secret}, got %v", cfg.Env)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/maestro-flow.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "maestro-flow.yaml")

	content := `lookupTimeoutMs: [invalid yaml`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_EmptyConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "maestro-flow.yaml")

	if err := os.WriteFile(configPath, []byte(""), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AppID != "" {
		t.Errorf("expected empty appId, got %s", cfg.AppID)
	}
}

func TestToOrchestraConfig_BlankTimeoutsLeftForOrchestraDefaults(t *testing.T) {
	cfg := &Config{}
	oc := cfg.ToOrchestraConfig()

	if oc.LookupTimeout != 0 {
		t.Errorf("expected zero LookupTimeout so orchestra applies its own default, got %v", oc.LookupTimeout)
	}
	if oc.OptionalLookupTimeout != 0 {
		t.Errorf("expected zero OptionalLookupTimeout so orchestra applies its own default, got %v", oc.OptionalLookupTimeout)
	}
}

func TestToOrchestraConfig_ExplicitTimeoutsConverted(t *testing.T) {
	cfg := &Config{LookupTimeoutMs: 20000, OptionalLookupTimeoutMs: 5000, NetworkProxyPort: 9090}
	oc := cfg.ToOrchestraConfig()

	if oc.LookupTimeout.Milliseconds() != 20000 {
		t.Errorf("expected LookupTimeout 20000ms, got %v", oc.LookupTimeout)
	}
	if oc.OptionalLookupTimeout.Milliseconds() != 5000 {
		t.Errorf("expected OptionalLookupTimeout 5000ms, got %v", oc.OptionalLookupTimeout)
	}
	if oc.NetworkProxyPort != 9090 {
		t.Errorf("expected NetworkProxyPort 9090, got %d", oc.NetworkProxyPort)
	}
}

func TestToOrchestraConfig_DirsDefaultToHome(t *testing.T) {
	ResetHome()
	t.Setenv("MAESTRO_FLOW_HOME", "/test/home")

	cfg := &Config{}
	oc := cfg.ToOrchestraConfig()

	if oc.StateDir != GetStateDir() {
		t.Errorf("expected StateDir %s, got %s", GetStateDir(), oc.StateDir)
	}
	if oc.ScreenshotsDir != GetScreenshotsDir() {
		t.Errorf("expected ScreenshotsDir %s, got %s", GetScreenshotsDir(), oc.ScreenshotsDir)
	}
}
