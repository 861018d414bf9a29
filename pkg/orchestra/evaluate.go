package orchestra

import (
	"strings"

	"github.com/timehop/maestro/pkg/flow"
	"github.com/timehop/maestro/pkg/scripting"
)

// evaluateCommand produces the evaluated command: every user-visible string
// field containing ${...} placeholders is run through the script engine, and
// the result is what actually executes and what the UI is told about.
// Commands with nothing to expand are returned unchanged.
func (o *Orchestra) evaluateCommand(cmd flow.Command) (flow.Command, error) {
	x := &expander{engine: o.Script}
	evaluated := x.command(cmd)
	if x.err != nil {
		return nil, x.err
	}
	return evaluated, nil
}

// evaluateConditionScript expands a Condition's selectors and replaces its
// raw scriptCondition source (as stored by the parser) with its evaluated
// result string. Used by execRepeat to re-evaluate the while condition
// before each iteration.
func (o *Orchestra) evaluateConditionScript(cond flow.Condition) (flow.Condition, error) {
	x := &expander{engine: o.Script}
	out := x.condition(cond)
	return out, x.err
}

// expander walks a command's user-visible string fields through
// ExpandPlaceholders, capturing the first evaluation error and passing
// later fields through untouched once one occurs.
type expander struct {
	engine *scripting.Engine
	err    error
}

func (x *expander) command(cmd flow.Command) flow.Command {
	switch c := cmd.(type) {
	case *flow.TapOnElementCommand:
		clone := *c
		clone.Selector = x.selector(c.Selector)
		clone.AppID = x.str(c.AppID)
		return &clone

	case *flow.TapOnPointV2Command:
		clone := *c
		clone.Point = x.str(c.Point)
		return &clone

	case *flow.SwipeCommand:
		clone := *c
		clone.Selector = x.selectorPtr(c.Selector)
		clone.Direction = x.str(c.Direction)
		clone.StartRel = x.str(c.StartRel)
		clone.EndRel = x.str(c.EndRel)
		clone.StartPoint = x.str(c.StartPoint)
		clone.EndPoint = x.str(c.EndPoint)
		return &clone

	case *flow.ScrollUntilVisibleCommand:
		clone := *c
		clone.Selector = x.selector(c.Selector)
		clone.Direction = x.str(c.Direction)
		return &clone

	case *flow.CopyTextFromCommand:
		clone := *c
		clone.Selector = x.selector(c.Selector)
		return &clone

	case *flow.AssertConditionCommand:
		clone := *c
		clone.Condition = x.condition(c.Condition)
		return &clone

	case *flow.InputTextCommand:
		clone := *c
		clone.Text = x.str(c.Text)
		return &clone

	case *flow.LaunchAppCommand:
		clone := *c
		clone.AppID = x.str(c.AppID)
		clone.Permissions = x.strMap(c.Permissions)
		clone.LaunchArguments = x.strMap(c.LaunchArguments)
		return &clone

	case *flow.OpenLinkCommand:
		clone := *c
		clone.Link = x.str(c.Link)
		return &clone

	case *flow.PressKeyCommand:
		clone := *c
		clone.Code = x.str(c.Code)
		return &clone

	case *flow.TakeScreenshotCommand:
		clone := *c
		clone.Path = x.str(c.Path)
		return &clone

	case *flow.StopAppCommand:
		clone := *c
		clone.AppID = x.str(c.AppID)
		return &clone

	case *flow.ClearStateCommand:
		clone := *c
		clone.AppID = x.str(c.AppID)
		return &clone

	case *flow.RunFlowCommand:
		clone := *c
		clone.Condition = x.conditionPtr(c.Condition)
		return &clone

	case *flow.RepeatCommand:
		// Only Times is expanded here. The While condition stays raw: the
		// Flow Driver re-evaluates it before every iteration, so a script
		// condition can observe state the loop body changed.
		clone := *c
		clone.Times = x.str(c.Times)
		return &clone

	case *flow.DefineVariablesCommand:
		clone := *c
		clone.Variables = x.strMap(c.Variables)
		return &clone

	case *flow.RunScriptCommand:
		// The script body is evaluated by the engine itself, not expanded
		// as placeholder text; only the env overlay values are.
		clone := *c
		clone.Env = x.strMap(c.Env)
		return &clone

	case *flow.MockNetworkCommand:
		clone := *c
		clone.RulesPath = x.str(c.RulesPath)
		return &clone

	case *flow.TravelCommand:
		clone := *c
		clone.Points = x.strSlice(c.Points)
		return &clone

	case *flow.AssertOutgoingRequestsCommand:
		clone := *c
		clone.Path = x.str(c.Path)
		clone.HTTPMethodIs = x.str(c.HTTPMethodIs)
		clone.RequestBodyContains = x.str(c.RequestBodyContains)
		clone.HeadersPresent = x.strSlice(c.HeadersPresent)
		clone.HeadersAndValues = x.strMap(c.HeadersAndValues)
		return &clone

	default:
		// No user-visible string fields (backPress, scroll, tapOnPoint,
		// eraseText, ...), or script source evaluated as-is (evalScript).
		return cmd
	}
}

func (x *expander) str(s string) string {
	if x.err != nil || s == "" || !strings.Contains(s, "${") {
		return s
	}
	out, err := x.engine.ExpandPlaceholders(s)
	if err != nil {
		x.err = err
		return s
	}
	return out
}

func (x *expander) strSlice(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = x.str(v)
	}
	return out
}

func (x *expander) strMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return m
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = x.str(v)
	}
	return out
}

func (x *expander) selector(sel flow.ElementSelector) flow.ElementSelector {
	sel.TextRegex = x.str(sel.TextRegex)
	sel.IDRegex = x.str(sel.IDRegex)
	sel.Below = x.selectorPtr(sel.Below)
	sel.Above = x.selectorPtr(sel.Above)
	sel.LeftOf = x.selectorPtr(sel.LeftOf)
	sel.RightOf = x.selectorPtr(sel.RightOf)
	sel.ContainsChild = x.selectorPtr(sel.ContainsChild)
	if len(sel.ContainsDescendants) > 0 {
		out := make([]*flow.ElementSelector, len(sel.ContainsDescendants))
		for i, d := range sel.ContainsDescendants {
			out[i] = x.selectorPtr(d)
		}
		sel.ContainsDescendants = out
	}
	return sel
}

func (x *expander) selectorPtr(sel *flow.ElementSelector) *flow.ElementSelector {
	if sel == nil {
		return nil
	}
	out := x.selector(*sel)
	return &out
}

func (x *expander) condition(cond flow.Condition) flow.Condition {
	cond.Visible = x.selectorPtr(cond.Visible)
	cond.NotVisible = x.selectorPtr(cond.NotVisible)
	cond.ScriptResult = x.scriptCondition(cond.ScriptResult)
	return cond
}

func (x *expander) conditionPtr(cond *flow.Condition) *flow.Condition {
	if cond == nil {
		return nil
	}
	out := x.condition(*cond)
	return &out
}

// scriptCondition accepts both surface forms: "${expr}" (placeholder spans
// expanded in place) and a bare expression (evaluated whole). The result
// string then goes through the falsey-string rules.
func (x *expander) scriptCondition(src string) string {
	if x.err != nil || src == "" {
		return src
	}
	var result string
	var err error
	if strings.Contains(src, "${") {
		result, err = x.engine.ExpandPlaceholders(src)
	} else {
		result, err = x.engine.Evaluate(src, nil, "scriptCondition", false)
	}
	if err != nil {
		x.err = err
		return src
	}
	return result
}
