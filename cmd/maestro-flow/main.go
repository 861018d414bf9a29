// Command maestro-flow is a smoke CLI wiring a parsed flow file through the
// orchestra against the in-memory mock driver: pkg/flow → pkg/orchestra,
// reporting per-command lifecycle events to stdout as they fire. It exists
// to exercise the interpreter core end to end without a real device; a
// production host wires the same orchestra.New/RunFlow call against a real
// driver.Driver implementation instead of pkg/driver/mock.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/timehop/maestro/pkg/config"
	"github.com/timehop/maestro/pkg/driver/mock"
	flowpkg "github.com/timehop/maestro/pkg/flow"
	"github.com/timehop/maestro/pkg/logger"
	"github.com/timehop/maestro/pkg/orchestra"
	"github.com/timehop/maestro/pkg/proxy"
	"github.com/timehop/maestro/pkg/scripting"
)

// Version is set at build time.
var Version = "0.1.0"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "maestro-flow:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "maestro-flow",
		Usage:     "Run a Maestro-style flow file against the mock driver",
		Version:   Version,
		ArgsUsage: "<flow-file>",
		Description: `maestro-flow parses a single flow YAML file and runs it through the
orchestra core against pkg/driver/mock, printing each command's lifecycle
as it fires.

Examples:
  maestro-flow flow.yaml
  maestro-flow --config maestro-flow.yaml flow.yaml`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a maestro-flow.yaml knob file",
				EnvVars: []string{"MAESTRO_FLOW_CONFIG"},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Also log each command's start to stderr",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit("expected exactly one flow file argument", 1)
	}
	flowPath := c.Args().First()

	oc := orchestra.Config{}
	if cfgPath := c.String("config"); cfgPath != "" {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		oc = cfg.ToOrchestraConfig()
	}

	if c.Bool("verbose") {
		logger.Init(os.Stderr)
	} else {
		logger.Init(io.Discard)
	}

	f, err := flowpkg.ParseFile(flowPath)
	if err != nil {
		return fmt.Errorf("parsing flow: %w", err)
	}

	d := mock.New(mock.Config{})
	script := scripting.New()

	o := orchestra.New(d, script, reportingCallbacks(), oc)
	o.Proxy = proxy.New(o.Config.NetworkProxyPort)

	start := time.Now()
	ok, err := o.RunFlow(f, nil)
	elapsed := time.Since(start)

	if err != nil {
		fmt.Printf("FAIL (%s): %v\n", elapsed, err)
		return cli.Exit("flow failed", 1)
	}
	if !ok {
		fmt.Printf("FAIL (%s)\n", elapsed)
		return cli.Exit("flow failed", 1)
	}
	fmt.Printf("PASS (%s)\n", elapsed)
	return nil
}

// reportingCallbacks prints one line per terminal lifecycle event, the
// simplest possible consumer of the callback surface.
func reportingCallbacks() orchestra.Callbacks {
	return orchestra.Callbacks{
		OnCommandStart: func(index int, cmd flowpkg.Command) {
			logger.Info("start  [%d] %s", index, cmd.Describe())
		},
		OnCommandComplete: func(index int, cmd flowpkg.Command) {
			fmt.Printf("  ok   [%d] %s\n", index, cmd.Describe())
		},
		OnCommandSkipped: func(index int, cmd flowpkg.Command) {
			fmt.Printf("  skip [%d] %s\n", index, cmd.Describe())
		},
		OnCommandFailed: func(index int, cmd flowpkg.Command, err error) orchestra.ErrorResolution {
			fmt.Printf("  fail [%d] %s: %v\n", index, cmd.Describe(), err)
			return orchestra.ResolutionFail
		},
	}
}
