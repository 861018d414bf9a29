package orchestra

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/timehop/maestro/pkg/driver"
	"github.com/timehop/maestro/pkg/flow"
	"github.com/timehop/maestro/pkg/selector"
)

// findElement resolves an interaction-
// adjusted timeout, compile sel into a driver.Filter, and poll the view
// hierarchy until it matches or the deadline passes.
func (o *Orchestra) findElement(sel flow.ElementSelector, timeoutMs int) (*driver.Node, *driver.Hierarchy, error) {
	base := o.baseLookupTimeout(sel, timeoutMs)
	timeout := o.adjustTimeout(base)
	filter := selector.Build(sel)
	return o.pollForElement(timeout, filter)
}

// baseLookupTimeout picks the un-adjusted deadline: the explicit override
// if given, else the optional or ordinary lookup timeout depending on
// sel.Optional.
func (o *Orchestra) baseLookupTimeout(sel flow.ElementSelector, timeoutMs int) time.Duration {
	if timeoutMs > 0 {
		return time.Duration(timeoutMs) * time.Millisecond
	}
	if sel.Optional {
		return o.Config.OptionalLookupTimeout
	}
	return o.Config.LookupTimeout
}

// pollForElement drives the Driver's FindElementWithTimeout-equivalent
// loop directly against ViewHierarchy. The poll cadence (<=250ms) is
// owned by the orchestra rather than the backend, paced by a token-bucket
// limiter rather than a raw time.Sleep so a caller with a live context could
// later cancel a stuck lookup without the orchestra having to grow its own
// cancellation plumbing.
func (o *Orchestra) pollForElement(timeout time.Duration, filter driver.Filter) (*driver.Node, *driver.Hierarchy, error) {
	deadline := time.Now().Add(timeout)
	limiter := rate.NewLimiter(rate.Every(lookupPollInterval), 1)
	var lastHierarchy *driver.Hierarchy

	for {
		hierarchy, err := o.Driver.ViewHierarchy()
		if err != nil {
			return nil, nil, err
		}
		lastHierarchy = hierarchy

		if node := filter.Match(hierarchy.Root); node != nil {
			return node, hierarchy, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, lastHierarchy, ErrElementNotFound(filter.Description, lastHierarchy)
		}

		ctx, cancel := context.WithTimeout(context.Background(), remaining)
		err = limiter.Wait(ctx)
		cancel()
		if err != nil {
			return nil, lastHierarchy, ErrElementNotFound(filter.Description, lastHierarchy)
		}
	}
}
