package orchestra

import (
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/timehop/maestro/pkg/flow"
	"github.com/timehop/maestro/pkg/scripting"
)

const unboundedRepeat = math.MaxInt32

// RunFlow is the flow entry point: initialize the script engine, reset
// the interaction clock, resolve an AppState (provided, produced by an
// init-flow, or none), push it into the app if produced, then execute the
// command list. Returns true iff the flow completed without an
// unresolved failure.
func (o *Orchestra) RunFlow(f *flow.Flow, initState *flow.AppState) (bool, error) {
	o.Script.Init()
	o.resetInteractionClock()

	cfg, err := extractConfig(f.Commands)
	if err != nil {
		return false, err
	}

	state := initState
	if state == nil && cfg.InitFlow != nil {
		produced, err := o.runInitFlow(cfg.InitFlow, cfg.AppID)
		if err != nil {
			return false, err
		}
		state = produced
	}

	if state != nil {
		if err := o.Driver.ClearAppState(state.AppID); err != nil {
			return false, err
		}
		if err := o.Driver.PushAppState(state.AppID, state.StateFile); err != nil {
			return false, err
		}
	}

	o.Callbacks.fireFlowStart(f.Commands)
	return o.executeCommands(f.Commands, cfg)
}

// extractConfig finds the ApplyConfiguration command's payload, if any.
// More than one configuration in a flow is a collision.
func extractConfig(commands []flow.Command) (flow.MaestroConfig, error) {
	var found *flow.ApplyConfigurationCommand
	for _, cmd := range commands {
		apply, ok := cmd.(*flow.ApplyConfigurationCommand)
		if !ok {
			continue
		}
		if found != nil {
			return flow.MaestroConfig{}, ErrInvalidCommand("flow contains more than one applyConfiguration command")
		}
		found = apply
	}
	if found == nil {
		return flow.MaestroConfig{}, nil
	}
	return found.Config, nil
}

// executeCommands runs commands in order, firing the lifecycle callbacks
// for each and consulting OnCommandFailed's resolution on error.
func (o *Orchestra) executeCommands(commands []flow.Command, cfg flow.MaestroConfig) (bool, error) {
	_, err := o.runCommandList(commands, cfg)
	return err == nil, err
}

// runSubFlow executes a nested command list: push a script-engine scope,
// run the nested command list, always pop the scope on exit (success or
// error), and re-raise FAIL-resolution errors to the caller. Returns
// whether any sub-command mutated.
func (o *Orchestra) runSubFlow(commands []flow.Command, cfg flow.MaestroConfig) (bool, error) {
	o.Script.EnterScope()
	defer o.Script.LeaveScope()
	return o.runCommandList(commands, cfg)
}

// runCommandList is the shared per-command loop behind executeCommands
// and runSubFlow: evaluate, update metadata, execute, fire exactly one
// terminal callback, and stop (returning the triggering error) on a
// FAIL-resolution failure. Returns whether any command mutated.
func (o *Orchestra) runCommandList(commands []flow.Command, cfg flow.MaestroConfig) (bool, error) {
	mutatedAny := false
	for index, cmd := range commands {
		o.Callbacks.fireCommandStart(index, cmd)

		current := cmd
		o.Script.OnLog(func(level scripting.LogLevel, message string) {
			o.metadata.appendLog(current, message)
			o.Callbacks.fireMetadataUpdate(current, o.metadata.get(current))
		})

		evaluated, err := o.evaluateCommand(cmd)
		if err != nil {
			if o.Callbacks.fireCommandFailed(index, cmd, err) == ResolutionFail {
				return mutatedAny, err
			}
			continue
		}
		o.metadata.setEvaluated(cmd, evaluated)
		o.metadata.incrementRuns(cmd)
		o.Callbacks.fireMetadataUpdate(cmd, o.metadata.get(cmd))

		mutating, err := o.executeCommand(evaluated, cfg)
		if mutating {
			mutatedAny = true
			o.markInteraction()
		}
		if err != nil {
			if IsSkipped(err) {
				o.Callbacks.fireCommandSkipped(index, cmd)
				continue
			}
			if o.Callbacks.fireCommandFailed(index, cmd, err) == ResolutionFail {
				return mutatedAny, err
			}
			continue
		}
		o.Callbacks.fireCommandComplete(index, cmd)
	}
	return mutatedAny, nil
}

// runInitFlow runs the init-flow's commands, then stops the app and pulls
// its state to a temp file so the next RunFlow can push the same starting
// state.
func (o *Orchestra) runInitFlow(initFlow *flow.Flow, appID string) (*flow.AppState, error) {
	ok, err := o.RunFlow(initFlow, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	if err := o.Driver.StopApp(appID); err != nil {
		return nil, err
	}

	dir := o.Config.StateDir
	if dir == "" {
		dir = os.TempDir()
	}
	statePath := filepath.Join(dir, "maestro-state-"+uuid.New().String()+".state")

	if err := o.Driver.PullAppState(appID, statePath); err != nil {
		return nil, err
	}
	return &flow.AppState{AppID: appID, StateFile: statePath}, nil
}

func (o *Orchestra) execRunFlow(c *flow.RunFlowCommand, cfg flow.MaestroConfig) (bool, error) {
	if c.Condition != nil && !o.evaluateCondition(c.Condition, 0, o.platform()) {
		return false, ErrCommandSkipped("runFlow condition evaluated false")
	}
	return o.runSubFlow(c.Commands, cfg)
}

func (o *Orchestra) execRepeat(c *flow.RepeatCommand, cfg flow.MaestroConfig) (bool, error) {
	max := unboundedRepeat
	if c.Times != "" {
		if f, err := strconv.ParseFloat(c.Times, 64); err == nil {
			max = int(f)
		}
	}

	o.metadata.resetComposite(c)

	// The While condition is re-evaluated from its raw form before every
	// iteration, so a scriptCondition can observe bindings the loop body
	// just changed.
	checkCondition := func() (bool, error) {
		if c.While == nil {
			return true, nil
		}
		cond, err := o.evaluateConditionScript(*c.While)
		if err != nil {
			return false, err
		}
		return o.evaluateCondition(&cond, 0, o.platform()), nil
	}

	mutatedAny := false
	counter := 0
	for counter < max {
		proceed, err := checkCondition()
		if err != nil {
			return mutatedAny, err
		}
		if !proceed {
			break
		}
		if counter > 0 {
			for _, sub := range c.Commands {
				o.Callbacks.fireCommandReset(sub)
			}
		}
		o.metadata.incrementRuns(c)
		mutated, err := o.runSubFlow(c.Commands, cfg)
		if mutated {
			mutatedAny = true
		}
		if err != nil {
			return mutatedAny, err
		}
		counter++
	}

	if counter == 0 {
		return false, ErrCommandSkipped("repeat condition evaluated false on entry")
	}
	return mutatedAny, nil
}
