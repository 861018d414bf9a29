// Package driver declares the capability contract the orchestra depends on
// to talk to a device, plus the wire types (Node, Bounds, DeviceInfo) that
// cross that boundary. Concrete backends implement Driver (this module
// ships only pkg/driver/mock); the orchestra never depends on a backend
// directly.
package driver

import "time"

// Bounds is a node's on-screen rectangle, in device pixels.
type Bounds struct {
	X, Y, Width, Height int
}

// Center returns the bounds' midpoint.
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// CenterInside reports whether b's center point falls within outer.
func (b Bounds) CenterInside(outer Bounds) bool {
	cx, cy := b.Center()
	return cx >= outer.X && cx < outer.X+outer.Width && cy >= outer.Y && cy < outer.Y+outer.Height
}

// Node is one element in a view-hierarchy snapshot. Attributes carries
// backend-specific fields (resource-id, class, hint, content-desc, ...)
// so the selector package stays driver-agnostic: only the attribute keys
// it knows how to read need to be present.
type Node struct {
	Attributes map[string]string
	Bounds     Bounds
	Enabled    bool
	Selected   bool
	Checked    bool
	Focused    bool
	Clickable  bool
	Children   []*Node
}

// DeviceInfo is the device/platform summary returned by device_info().
// widthGrid/heightGrid are the UI-coordinate grid (points); widthPoints/
// heightPoints carry the same points-space extent under the wire naming,
// kept distinct from pixel dimensions some backends additionally report.
type DeviceInfo struct {
	Platform     string
	WidthGrid    int
	HeightGrid   int
	WidthPoints  int
	HeightPoints int
}

// Hierarchy is a view-hierarchy snapshot: its Root plus the DeviceInfo in
// effect when it was captured, so lookup failures can report both.
type Hierarchy struct {
	Root *Node
	Info DeviceInfo
	Raw  string // backend-native serialization, for diagnostics/screenshots-on-fail
}

// Filter is the compiled predicate a Selector Filter Builder produces:
// Match walks a hierarchy and returns the chosen node, if any.
type Filter struct {
	Description string
	Match       func(root *Node) *Node
}

// SwipeRelative is a "p%,p%" relative point, p in [0,100].
type SwipeRelative struct {
	PercentX, PercentY int
}

// OutgoingRequestMatcher is the AssertOutgoingRequestsCommand payload
// forwarded to the driver for proxy-backed assertion.
type OutgoingRequestMatcher struct {
	Path                string
	HeadersPresent      []string
	HTTPMethodIs        string
	RequestBodyContains string
	HeadersAndValues    map[string]string
}

// Driver is the capability set the orchestra depends on. Every method is
// synchronous; implementations raise ordinary Go errors, which the
// orchestra translates into its own error kinds (pkg/orchestra/errors.go).
type Driver interface {
	DeviceInfo() (DeviceInfo, error)
	ViewHierarchy() (*Hierarchy, error)
	FindElementWithTimeout(timeout time.Duration, filter Filter) (*Node, *Hierarchy, error)

	TapOnElement(n *Node, h *Hierarchy, retryIfNoChange, waitUntilVisible, longPress bool, appID string) error
	TapOnPoint(x, y int, retryIfNoChange, longPress bool) error
	TapOnRelative(rel SwipeRelative, retryIfNoChange, longPress bool) error

	SwipeDirection(direction string, duration time.Duration) error
	SwipeElement(n *Node, direction string, duration time.Duration) error
	SwipeRelativePoints(start, end SwipeRelative, duration time.Duration) error
	SwipeAbsolutePoints(startX, startY, endX, endY int, duration time.Duration) error
	SwipeFromCenter(direction string, duration time.Duration) error

	BackPress() error
	HideKeyboard() error
	ScrollVertical() error
	PressKey(code string) error
	WaitForAnimationToEnd(timeout time.Duration) error
	WaitForAppToSettle() error

	InputText(text string) error
	IsUnicodeInputSupported() bool
	EraseText(n int) error

	LaunchApp(appID string, launchArguments map[string]string, stopIfRunning bool) error
	StopApp(appID string) error
	OpenLink(link, appID string, autoVerify, browser bool) error

	ClearAppState(appID string) error
	PushAppState(appID, file string) error
	PullAppState(appID, file string) error
	SetPermissions(appID string, permissions map[string]string) error

	ClearKeychain() error
	TakeScreenshot(file string) error
	SetLocation(lat, lng float64) error
	SetProxy(port int) error

	AssertOutgoingRequest(m OutgoingRequestMatcher) error
}
