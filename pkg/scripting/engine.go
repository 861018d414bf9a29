// Package scripting wraps a goja JavaScript runtime behind the Script
// Evaluator Adapter contract the orchestra depends on: init, evaluate,
// EnterScope/LeaveScope, OnLog, Sanitize. goja has no native notion of
// a lexical scope stack, so enter/leave is implemented by snapshotting the
// set of global bindings on push and diffing against it on pop.
package scripting

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// LogLevel mirrors the orchestra's log callback levels.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogFunc receives console.log/warn/error calls made from inside evaluated
// scripts.
type LogFunc func(level LogLevel, message string)

// Engine is the orchestra's embedded script evaluator.
type Engine struct {
	mu     sync.Mutex
	rt     *goja.Runtime
	onLog  LogFunc
	scopes []map[string]bool // stack of global-binding snapshots
}

// New creates an Engine and runs Init.
func New() *Engine {
	e := &Engine{}
	e.Init()
	return e
}

// Init resets all global state: a fresh runtime with console/maestro
// globals installed, an empty scope stack, and no log sink.
func (e *Engine) Init() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rt = goja.New()
	e.scopes = nil
	e.onLog = nil
	e.setupConsole()
	e.rt.Set("maestro", e.rt.NewObject())
}

func (e *Engine) setupConsole() {
	logger := func(level LogLevel) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = fmt.Sprintf("%v", arg.Export())
			}
			if e.onLog != nil {
				e.onLog(level, strings.Join(parts, " "))
			}
			return goja.Undefined()
		}
	}
	console := e.rt.NewObject()
	console.Set("log", logger(LogInfo))
	console.Set("warn", logger(LogWarn))
	console.Set("error", logger(LogError))
	console.Set("debug", logger(LogDebug))
	e.rt.Set("console", console)
}

// OnLog registers the log sink invoked for console.* calls made during
// evaluation.
func (e *Engine) OnLog(fn LogFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onLog = fn
}

// SetVariable binds name to value as a script-visible global.
func (e *Engine) SetVariable(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rt.Set(name, value)
}

// SetMaestroProperty sets a property on the maestro.* namespace object
// (e.g. copiedText, platform).
func (e *Engine) SetMaestroProperty(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	obj, ok := e.rt.Get("maestro").(*goja.Object)
	if !ok {
		obj = e.rt.NewObject()
		e.rt.Set("maestro", obj)
	}
	obj.Set(name, value)
}

// Evaluate runs script with env bound as additional globals beforehand,
// returning its last expression as a string. sourceName is used only for
// error messages. When runInSubScope is true the evaluation happens
// between an implicit EnterScope/LeaveScope pair.
func (e *Engine) Evaluate(script string, env map[string]string, sourceName string, runInSubScope bool) (string, error) {
	if runInSubScope {
		e.EnterScope()
		defer e.LeaveScope()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for k, v := range env {
		e.rt.Set(k, v)
	}

	result, err := e.rt.RunString(script)
	if err != nil {
		name := sourceName
		if name == "" {
			name = "<script>"
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return exportToString(result), nil
}

func exportToString(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return fmt.Sprintf("%v", v.Export())
}

// EnterScope pushes a snapshot of the current global bindings, establishing
// a baseline that LeaveScope will restore.
func (e *Engine) EnterScope() {
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot := map[string]bool{}
	for _, key := range e.rt.GlobalObject().Keys() {
		snapshot[key] = true
	}
	e.scopes = append(e.scopes, snapshot)
}

// LeaveScope pops the most recent scope, deleting any global binding
// introduced since the matching EnterScope (a var-declared one, which
// cannot be deleted, is set to undefined) and leaving prior bindings
// (including ones shadowed inside the scope) untouched. Values assigned
// to names that existed before EnterScope are NOT rolled back — matching
// the orchestra's "child scripts observe and extend, not clobber and
// forget" variable semantics.
func (e *Engine) LeaveScope() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.scopes) == 0 {
		return
	}
	snapshot := e.scopes[len(e.scopes)-1]
	e.scopes = e.scopes[:len(e.scopes)-1]

	global := e.rt.GlobalObject()
	for _, key := range global.Keys() {
		if !snapshot[key] {
			// Globals declared with var are non-configurable and survive
			// Delete; those are reset to undefined instead.
			if err := global.Delete(key); err != nil || global.Get(key) != nil {
				_ = global.Set(key, goja.Undefined())
			}
		}
	}
}

// Sanitize escapes s for embedding in a single-quoted JS string literal,
// as used by DefineVariables ("var name = 'sanitized'") and
// maestro.copiedText publication.
func Sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ExpandPlaceholders replaces every ${...} span in text with the result of
// evaluating its contents, matching the orchestra's rule that any
// user-visible string field starting as a placeholder is evaluated before
// execution.
func (e *Engine) ExpandPlaceholders(text string) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(text) {
		start := strings.Index(text[i:], "${")
		if start == -1 {
			out.WriteString(text[i:])
			break
		}
		start += i
		out.WriteString(text[i:start])

		depth := 1
		end := start + 2
		for end < len(text) && depth > 0 {
			switch text[end] {
			case '{':
				depth++
			case '}':
				depth--
			}
			end++
		}
		if depth != 0 {
			out.WriteString(text[start:])
			break
		}

		expr := text[start+2 : end-1]
		val, err := e.Evaluate(expr, nil, "", false)
		if err != nil {
			return "", err
		}
		out.WriteString(val)
		i = end
	}
	return out.String(), nil
}

// IsBlank reports whether a script-evaluated string counts as "falsey" per
// the condition evaluator's scriptCondition rule: blank, "false"
// (case-insensitive), "undefined", "null", or numerically 0.0.
func IsBlank(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return true
	}
	switch strings.ToLower(trimmed) {
	case "false", "undefined", "null":
		return true
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && f == 0.0 {
		return true
	}
	return false
}
