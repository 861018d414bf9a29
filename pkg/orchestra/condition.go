package orchestra

import (
	"time"

	"github.com/timehop/maestro/pkg/flow"
	"github.com/timehop/maestro/pkg/scripting"
	"github.com/timehop/maestro/pkg/selector"
)

// evaluateCondition interprets cond against driver state. A zero
// timeoutMs lets each sub-condition pick its own default.
func (o *Orchestra) evaluateCondition(cond *flow.Condition, timeoutMs int, platform string) bool {
	if cond.IsZero() {
		return true
	}

	if cond.Platform != "" && !equalFoldASCII(cond.Platform, platform) {
		return false
	}

	if cond.Visible != nil {
		sel := *cond.Visible
		base := timeoutMs
		if base == 0 {
			sel.Optional = true // no explicit timeout: use the optional lookup window
		}
		if _, _, err := o.findElement(sel, base); err != nil {
			return false
		}
	}

	if cond.NotVisible != nil {
		if o.stillVisibleWithinDeadline(*cond.NotVisible, timeoutMs) {
			return false
		}
	}

	if cond.ScriptResult != "" && scripting.IsBlank(cond.ScriptResult) {
		return false
	}

	return true
}

// stillVisibleWithinDeadline implements notVisible's polling rule:
// repeatedly probe with a short per-attempt timeout until the adjusted
// overall deadline passes; true iff the element was still found at the
// very end of the window.
func (o *Orchestra) stillVisibleWithinDeadline(sel flow.ElementSelector, timeoutMs int) bool {
	base := o.Config.OptionalLookupTimeout
	if timeoutMs > 0 {
		base = time.Duration(timeoutMs) * time.Millisecond
	}
	overall := o.adjustTimeout(base)
	deadline := time.Now().Add(overall)

	filter := selector.Build(sel)
	lastSeen := false
	for {
		_, _, err := o.pollForElement(notVisiblePollInterval, filter)
		lastSeen = err == nil
		if time.Now().After(deadline) {
			return lastSeen
		}
	}
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'a' && ca <= 'z' {
			ca -= 'a' - 'A'
		}
		if cb >= 'a' && cb <= 'z' {
			cb -= 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
