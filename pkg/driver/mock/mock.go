// Package mock provides a driver.Driver implementation for running flows
// without a real device, used by orchestra tests and local smoke-running.
package mock

import (
	"fmt"
	"sync"
	"time"

	"github.com/timehop/maestro/pkg/driver"
)

// Config configures mock driver behavior.
type Config struct {
	Platform     string
	DeviceID     string
	WidthGrid    int
	HeightGrid   int
	UnicodeInput bool

	// FailCommand, when set, makes the named method return an error the
	// first time it is called (e.g. "TapOnElement").
	FailCommand string
}

// Driver is a mock implementation of driver.Driver.
type Driver struct {
	mu sync.Mutex

	cfg Config

	root          *Node
	appState      map[string]bool // appID -> running
	permissions   map[string]map[string]string
	keychain      bool
	proxyPort     int
	location      [2]float64
	screenshots   []string
	failuresFired map[string]bool
	calls         []string
}

// Node is the mock hierarchy node stored by the fixture; it is an alias of
// driver.Node, so no conversion is needed.
type Node = driver.Node

// New creates a mock driver with a small static view hierarchy fixture.
func New(cfg Config) *Driver {
	if cfg.Platform == "" {
		cfg.Platform = "ANDROID"
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = "mock-device"
	}
	if cfg.WidthGrid == 0 {
		cfg.WidthGrid = 1080
	}
	if cfg.HeightGrid == 0 {
		cfg.HeightGrid = 2400
	}
	return &Driver{
		cfg:           cfg,
		root:          defaultFixture(cfg.WidthGrid, cfg.HeightGrid),
		appState:      map[string]bool{},
		permissions:   map[string]map[string]string{},
		failuresFired: map[string]bool{},
	}
}

func defaultFixture(w, h int) *Node {
	return &Node{
		Bounds: driver.Bounds{X: 0, Y: 0, Width: w, Height: h},
		Children: []*Node{
			{
				Attributes: map[string]string{"text": "Welcome", "resource-id": "welcome-label"},
				Bounds:     driver.Bounds{X: 100, Y: 200, Width: 400, Height: 60},
				Enabled:    true,
			},
			{
				Attributes: map[string]string{"text": "Login", "resource-id": "login-button"},
				Bounds:     driver.Bounds{X: 100, Y: 400, Width: 300, Height: 80},
				Enabled:    true,
				Clickable:  true,
			},
		},
	}
}

// SetHierarchy replaces the fixture a test drives lookups against.
func (d *Driver) SetHierarchy(root *Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.root = root
}

func (d *Driver) shouldFail(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, name)
	if d.cfg.FailCommand == name && !d.failuresFired[name] {
		d.failuresFired[name] = true
		return fmt.Errorf("mock failure injected for %s", name)
	}
	return nil
}

// Calls returns the method names recorded by shouldFail, in invocation
// order, for tests asserting on call sequencing (e.g. an init-flow's
// stopApp/pullAppState/clearAppState/pushAppState round trip).
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	copy(out, d.calls)
	return out
}

func (d *Driver) DeviceInfo() (driver.DeviceInfo, error) {
	return driver.DeviceInfo{
		Platform:     d.cfg.Platform,
		WidthGrid:    d.cfg.WidthGrid,
		HeightGrid:   d.cfg.HeightGrid,
		WidthPoints:  d.cfg.WidthGrid,
		HeightPoints: d.cfg.HeightGrid,
	}, nil
}

func (d *Driver) ViewHierarchy() (*driver.Hierarchy, error) {
	d.mu.Lock()
	root := d.root
	d.mu.Unlock()
	info, _ := d.DeviceInfo()
	return &driver.Hierarchy{Root: root, Info: info}, nil
}

func (d *Driver) FindElementWithTimeout(timeout time.Duration, filter driver.Filter) (*Node, *driver.Hierarchy, error) {
	deadline := time.Now().Add(timeout)
	for {
		h, err := d.ViewHierarchy()
		if err != nil {
			return nil, nil, err
		}
		if n := filter.Match(h.Root); n != nil {
			return n, h, nil
		}
		if time.Now().After(deadline) {
			return nil, h, fmt.Errorf("element not found: %s", filter.Description)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (d *Driver) TapOnElement(n *Node, h *driver.Hierarchy, retryIfNoChange, waitUntilVisible, longPress bool, appID string) error {
	return d.shouldFail("TapOnElement")
}
func (d *Driver) TapOnPoint(x, y int, retryIfNoChange, longPress bool) error {
	return d.shouldFail("TapOnPoint")
}
func (d *Driver) TapOnRelative(rel driver.SwipeRelative, retryIfNoChange, longPress bool) error {
	return d.shouldFail("TapOnRelative")
}

func (d *Driver) SwipeDirection(direction string, duration time.Duration) error {
	return d.shouldFail("SwipeDirection")
}
func (d *Driver) SwipeElement(n *Node, direction string, duration time.Duration) error {
	return d.shouldFail("SwipeElement")
}
func (d *Driver) SwipeRelativePoints(start, end driver.SwipeRelative, duration time.Duration) error {
	return d.shouldFail("SwipeRelativePoints")
}
func (d *Driver) SwipeAbsolutePoints(startX, startY, endX, endY int, duration time.Duration) error {
	return d.shouldFail("SwipeAbsolutePoints")
}
func (d *Driver) SwipeFromCenter(direction string, duration time.Duration) error {
	return d.shouldFail("SwipeFromCenter")
}

func (d *Driver) BackPress() error    { return d.shouldFail("BackPress") }
func (d *Driver) HideKeyboard() error { return d.shouldFail("HideKeyboard") }
func (d *Driver) ScrollVertical() error {
	return d.shouldFail("ScrollVertical")
}
func (d *Driver) PressKey(code string) error { return d.shouldFail("PressKey") }
func (d *Driver) WaitForAnimationToEnd(timeout time.Duration) error {
	return d.shouldFail("WaitForAnimationToEnd")
}
func (d *Driver) WaitForAppToSettle() error { return d.shouldFail("WaitForAppToSettle") }

func (d *Driver) InputText(text string) error   { return d.shouldFail("InputText") }
func (d *Driver) IsUnicodeInputSupported() bool { return d.cfg.UnicodeInput }
func (d *Driver) EraseText(n int) error         { return d.shouldFail("EraseText") }

func (d *Driver) LaunchApp(appID string, launchArguments map[string]string, stopIfRunning bool) error {
	if err := d.shouldFail("LaunchApp"); err != nil {
		return err
	}
	d.mu.Lock()
	d.appState[appID] = true
	d.mu.Unlock()
	return nil
}
func (d *Driver) StopApp(appID string) error {
	if err := d.shouldFail("StopApp"); err != nil {
		return err
	}
	d.mu.Lock()
	d.appState[appID] = false
	d.mu.Unlock()
	return nil
}
func (d *Driver) OpenLink(link, appID string, autoVerify, browser bool) error {
	return d.shouldFail("OpenLink")
}

func (d *Driver) ClearAppState(appID string) error { return d.shouldFail("ClearAppState") }
func (d *Driver) PushAppState(appID, file string) error {
	return d.shouldFail("PushAppState")
}
func (d *Driver) PullAppState(appID, file string) error {
	return d.shouldFail("PullAppState")
}
func (d *Driver) SetPermissions(appID string, permissions map[string]string) error {
	if err := d.shouldFail("SetPermissions"); err != nil {
		return err
	}
	d.mu.Lock()
	d.permissions[appID] = permissions
	d.mu.Unlock()
	return nil
}

func (d *Driver) ClearKeychain() error {
	if err := d.shouldFail("ClearKeychain"); err != nil {
		return err
	}
	d.mu.Lock()
	d.keychain = false
	d.mu.Unlock()
	return nil
}
func (d *Driver) TakeScreenshot(file string) error {
	if err := d.shouldFail("TakeScreenshot"); err != nil {
		return err
	}
	d.mu.Lock()
	d.screenshots = append(d.screenshots, file)
	d.mu.Unlock()
	return nil
}
func (d *Driver) SetLocation(lat, lng float64) error {
	if err := d.shouldFail("SetLocation"); err != nil {
		return err
	}
	d.mu.Lock()
	d.location = [2]float64{lat, lng}
	d.mu.Unlock()
	return nil
}
func (d *Driver) SetProxy(port int) error {
	if err := d.shouldFail("SetProxy"); err != nil {
		return err
	}
	d.mu.Lock()
	d.proxyPort = port
	d.mu.Unlock()
	return nil
}

func (d *Driver) AssertOutgoingRequest(m driver.OutgoingRequestMatcher) error {
	return d.shouldFail("AssertOutgoingRequest")
}

// Screenshots returns the paths recorded by TakeScreenshot, for assertions
// in tests that drive this mock directly.
func (d *Driver) Screenshots() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.screenshots))
	copy(out, d.screenshots)
	return out
}

// Permissions returns the permissions map last set for appID, for
// assertions in tests that drive this mock directly.
func (d *Driver) Permissions(appID string) map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.permissions[appID]
}
