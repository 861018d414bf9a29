// Package config loads the orchestra's construction-time knobs from a YAML
// file: lookup timeouts, the state and
// screenshots directories, and the network proxy port. It is deliberately
// narrow — flow authoring concerns (which
// files to run, tag filters, device selection) belong to a host CLI, not
// to the interpreter core this module ships.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/timehop/maestro/pkg/orchestra"
)

// Config is the on-disk shape of a maestro-flow.yaml knob file.
type Config struct {
	AppID                   string            `yaml:"appId"`
	LookupTimeoutMs         int               `yaml:"lookupTimeoutMs"`
	OptionalLookupTimeoutMs int               `yaml:"optionalLookupTimeoutMs"`
	StateDir                string            `yaml:"stateDir"`
	ScreenshotsDir          string            `yaml:"screenshotsDir"`
	NetworkProxyPort        int               `yaml:"networkProxyPort"`
	Env                     map[string]string `yaml:"env"`
}

// Load reads and parses a knob file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ToOrchestraConfig maps the on-disk knobs onto orchestra.Config,
// substituting config.GetHome()-relative defaults for StateDir/
// ScreenshotsDir when the file left them blank. Zero timeout/port fields
// are left at zero so orchestra.Config.withDefaults applies its own
// defaults (17s/7s/8085) rather than this package re-stating them.
func (c *Config) ToOrchestraConfig() orchestra.Config {
	stateDir := c.StateDir
	if stateDir == "" {
		stateDir = GetStateDir()
	}
	screenshotsDir := c.ScreenshotsDir
	if screenshotsDir == "" {
		screenshotsDir = GetScreenshotsDir()
	}

	oc := orchestra.Config{
		StateDir:         stateDir,
		ScreenshotsDir:   screenshotsDir,
		NetworkProxyPort: c.NetworkProxyPort,
	}
	if c.LookupTimeoutMs > 0 {
		oc.LookupTimeout = time.Duration(c.LookupTimeoutMs) * time.Millisecond
	}
	if c.OptionalLookupTimeoutMs > 0 {
		oc.OptionalLookupTimeout = time.Duration(c.OptionalLookupTimeoutMs) * time.Millisecond
	}
	return oc
}
