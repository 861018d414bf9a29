package orchestra

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/timehop/maestro/pkg/driver"
	"github.com/timehop/maestro/pkg/scripting"
)

// NetworkProxy is the contract the Command Executor depends on for
// MockNetwork (AssertOutgoingRequests goes to the driver instead).
// pkg/proxy.Proxy implements it.
type NetworkProxy interface {
	Port() int
	IsStarted() bool
	Start(rulesPath string) error
	ReplaceRules(rulesPath string) error
}

// Orchestra is the interpreter core: one instance owns a driver handle, a
// script engine, the copied-text buffer, the interaction clock, and the
// per-command metadata map for the lifetime of one or more RunFlow calls.
type Orchestra struct {
	Driver    driver.Driver
	Script    *scripting.Engine
	Callbacks Callbacks
	Config    Config
	Proxy     NetworkProxy

	mu                      sync.Mutex
	copiedText              string
	timeMsOfLastInteraction int64
	deviceInfo              *driver.DeviceInfo
	deviceInfoGroup         singleflight.Group
	metadata                *metadataStore
}

// New constructs an Orchestra. A nil Proxy is valid until a flow actually
// issues MockNetwork.
func New(d driver.Driver, script *scripting.Engine, callbacks Callbacks, cfg Config) *Orchestra {
	return &Orchestra{
		Driver:    d,
		Script:    script,
		Callbacks: callbacks,
		Config:    cfg.withDefaults(),
		metadata:  newMetadataStore(),
	}
}

func nowMs() int64 { return time.Now().UnixMilli() }

// resetInteractionClock is called at the start of every RunFlow.
func (o *Orchestra) resetInteractionClock() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.timeMsOfLastInteraction = nowMs()
}

// markInteraction refreshes the interaction clock; called after any
// mutating command.
func (o *Orchestra) markInteraction() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.timeMsOfLastInteraction = nowMs()
}

// adjustTimeout computes max(0, base - (now - lastInteraction)).
func (o *Orchestra) adjustTimeout(base time.Duration) time.Duration {
	o.mu.Lock()
	last := o.timeMsOfLastInteraction
	o.mu.Unlock()

	elapsed := time.Duration(nowMs()-last) * time.Millisecond
	adjusted := base - elapsed
	if adjusted < 0 {
		return 0
	}
	return adjusted
}

// setCopiedText stores text in the copied-text buffer and mirrors it into
// the script engine as maestro.copiedText, embedded as a sanitized literal.
func (o *Orchestra) setCopiedText(text string) {
	o.mu.Lock()
	o.copiedText = text
	o.mu.Unlock()
	_, _ = o.Script.Evaluate("maestro.copiedText = '"+scripting.Sanitize(text)+"'", nil, "copyTextFrom", false)
}

func (o *Orchestra) getCopiedText() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.copiedText, o.copiedText != ""
}

// resolveDeviceInfo lazily fetches and caches the driver's device info for
// the life of this orchestra. singleflight collapses concurrent
// first-callers into one driver round trip.
func (o *Orchestra) resolveDeviceInfo() (driver.DeviceInfo, error) {
	o.mu.Lock()
	cached := o.deviceInfo
	o.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	v, err, _ := o.deviceInfoGroup.Do("device_info", func() (interface{}, error) {
		info, err := o.Driver.DeviceInfo()
		if err != nil {
			return driver.DeviceInfo{}, err
		}
		o.mu.Lock()
		o.deviceInfo = &info
		o.mu.Unlock()
		return info, nil
	})
	if err != nil {
		return driver.DeviceInfo{}, err
	}
	return v.(driver.DeviceInfo), nil
}
