package orchestra

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/timehop/maestro/pkg/driver"
	"github.com/timehop/maestro/pkg/flow"
	"github.com/timehop/maestro/pkg/scripting"
	"github.com/timehop/maestro/pkg/selector"
)

// errScrollNotYetVisible signals execScrollUntilVisible's backoff loop to
// keep retrying; it never escapes to the caller.
var errScrollNotYetVisible = errors.New("scrollUntilVisible: element not yet visible")

// executeCommand dispatches a single evaluated command to the driver. It
// returns whether the command mutated device state.
func (o *Orchestra) executeCommand(cmd flow.Command, cfg flow.MaestroConfig) (bool, error) {
	switch c := cmd.(type) {
	case *flow.AssertConditionCommand:
		return o.execAssertCondition(c, cfg)
	case *flow.TapOnElementCommand:
		return o.execTapOnElement(c, cfg)
	case *flow.TapOnPointCommand:
		return o.execTapOnPoint(c)
	case *flow.TapOnPointV2Command:
		return o.execTapOnPointV2(c)
	case *flow.BackPressCommand:
		return true, o.Driver.BackPress()
	case *flow.HideKeyboardCommand:
		return true, o.Driver.HideKeyboard()
	case *flow.ScrollCommand:
		return true, o.Driver.ScrollVertical()
	case *flow.ClearKeychainCommand:
		return true, o.Driver.ClearKeychain()
	case *flow.PasteCommand:
		return o.execPaste()
	case *flow.ApplyConfigurationCommand:
		return false, nil // consumed by the Flow Driver before dispatch
	case *flow.SwipeCommand:
		return o.execSwipe(c)
	case *flow.ScrollUntilVisibleCommand:
		return o.execScrollUntilVisible(c)
	case *flow.CopyTextFromCommand:
		return o.execCopyTextFrom(c)
	case *flow.InputTextCommand:
		return o.execInputText(c.Text)
	case *flow.InputRandomCommand:
		return o.execInputRandom(c)
	case *flow.LaunchAppCommand:
		return o.execLaunchApp(c)
	case *flow.OpenLinkCommand:
		return o.execOpenLink(c, cfg)
	case *flow.PressKeyCommand:
		return true, o.Driver.PressKey(c.Code)
	case *flow.EraseTextCommand:
		return o.execEraseText(c)
	case *flow.TakeScreenshotCommand:
		return o.execTakeScreenshot(c)
	case *flow.StopAppCommand:
		return true, o.Driver.StopApp(c.AppID)
	case *flow.ClearStateCommand:
		return o.execClearState(c)
	case *flow.SetLocationCommand:
		return true, o.Driver.SetLocation(c.Latitude, c.Longitude)
	case *flow.DefineVariablesCommand:
		return o.execDefineVariables(c)
	case *flow.RunScriptCommand:
		return o.execRunScript(c)
	case *flow.EvalScriptCommand:
		return o.execEvalScript(c)
	case *flow.WaitForAnimationToEndCommand:
		timeout := time.Duration(c.TimeoutMs) * time.Millisecond
		return false, o.Driver.WaitForAnimationToEnd(timeout)
	case *flow.MockNetworkCommand:
		return o.execMockNetwork(c)
	case *flow.TravelCommand:
		return o.execTravel(c)
	case *flow.AssertOutgoingRequestsCommand:
		return o.execAssertOutgoingRequests(c)
	case *flow.RunFlowCommand:
		return o.execRunFlow(c, cfg)
	case *flow.RepeatCommand:
		return o.execRepeat(c, cfg)
	default:
		return false, ErrInvalidCommand(fmt.Sprintf("unsupported command type: %T", cmd))
	}
}

func (o *Orchestra) execAssertCondition(c *flow.AssertConditionCommand, cfg flow.MaestroConfig) (bool, error) {
	ok := o.evaluateCondition(&c.Condition, c.TimeoutMs, o.platform())
	if ok {
		return false, nil
	}
	if isOptionalCondition(&c.Condition) {
		return false, ErrCommandSkipped("optional condition evaluated false")
	}
	hierarchy, _ := o.Driver.ViewHierarchy()
	return false, ErrAssertionFailure(describeCondition(&c.Condition), hierarchy)
}

func isOptionalCondition(cond *flow.Condition) bool {
	if cond.Visible != nil && cond.Visible.Optional {
		return true
	}
	if cond.NotVisible != nil && cond.NotVisible.Optional {
		return true
	}
	return false
}

func describeCondition(cond *flow.Condition) string {
	var parts []string
	if cond.Platform != "" {
		parts = append(parts, "platform="+cond.Platform)
	}
	if cond.Visible != nil {
		parts = append(parts, "visible("+cond.Visible.Describe()+")")
	}
	if cond.NotVisible != nil {
		parts = append(parts, "notVisible("+cond.NotVisible.Describe()+")")
	}
	if cond.ScriptResult != "" {
		parts = append(parts, "scriptCondition="+cond.ScriptResult)
	}
	if len(parts) == 0 {
		return "<condition>"
	}
	return strings.Join(parts, ", ")
}

func (o *Orchestra) platform() string {
	info, err := o.resolveDeviceInfo()
	if err != nil {
		return ""
	}
	return info.Platform
}

func (o *Orchestra) execTapOnElement(c *flow.TapOnElementCommand, cfg flow.MaestroConfig) (bool, error) {
	retryIfNoChange := boolOr(c.RetryIfNoChange, true)
	waitUntilVisible := boolOr(c.WaitUntilVisible, false)
	appID := c.AppID
	if appID == "" {
		appID = cfg.AppID
	}

	node, hierarchy, err := o.findElement(c.Selector, 0)
	if err != nil {
		// Optional only absorbs a missing element; driver failures during
		// the lookup still propagate.
		if c.Selector.Optional && IsElementNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if err := o.Driver.TapOnElement(node, hierarchy, retryIfNoChange, waitUntilVisible, c.LongPress, appID); err != nil {
		return false, err
	}
	return true, nil
}

func (o *Orchestra) execTapOnPoint(c *flow.TapOnPointCommand) (bool, error) {
	retryIfNoChange := boolOr(c.RetryIfNoChange, true)
	return true, o.Driver.TapOnPoint(c.X, c.Y, retryIfNoChange, c.LongPress)
}

func (o *Orchestra) execTapOnPointV2(c *flow.TapOnPointV2Command) (bool, error) {
	retryIfNoChange := boolOr(c.RetryIfNoChange, true)
	x, y, relative, err := parseTapPointV2(c.Point)
	if err != nil {
		return false, err
	}
	if relative {
		return true, o.Driver.TapOnRelative(driver.SwipeRelative{PercentX: x, PercentY: y}, retryIfNoChange, c.LongPress)
	}
	return true, o.Driver.TapOnPoint(x, y, retryIfNoChange, c.LongPress)
}

// parseTapPointV2 parses "x,y" (absolute) or "p%,p%" (relative). Mixed
// forms ("50%,200") and out-of-range percentages are InvalidCommand.
func parseTapPointV2(point string) (x, y int, relative bool, err error) {
	parts := strings.SplitN(point, ",", 2)
	if len(parts) != 2 {
		return 0, 0, false, ErrInvalidCommand("invalid point: " + point)
	}
	a, b := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

	aPct, bPct := strings.HasSuffix(a, "%"), strings.HasSuffix(b, "%")
	if aPct != bPct {
		return 0, 0, false, ErrInvalidCommand("invalid point: " + point)
	}
	if aPct {
		px, ok1 := selector.ParsePercent(a)
		py, ok2 := selector.ParsePercent(b)
		if !ok1 || !ok2 {
			return 0, 0, false, ErrInvalidCommand("invalid relative point: " + point)
		}
		return px, py, true, nil
	}

	ax, errA := strconv.Atoi(a)
	ay, errB := strconv.Atoi(b)
	if errA != nil || errB != nil {
		return 0, 0, false, ErrInvalidCommand("invalid point: " + point)
	}
	return ax, ay, false, nil
}

func (o *Orchestra) execPaste() (bool, error) {
	text, ok := o.getCopiedText()
	if !ok {
		return false, nil
	}
	return o.execInputText(text)
}

func (o *Orchestra) execSwipe(c *flow.SwipeCommand) (bool, error) {
	duration := time.Duration(c.Duration) * time.Millisecond

	switch {
	case c.Selector != nil && c.Direction != "":
		node, _, err := o.findElement(*c.Selector, 0)
		if err != nil {
			return false, err
		}
		return true, o.Driver.SwipeElement(node, c.Direction, duration)
	case c.StartRel != "" && c.EndRel != "":
		start, err := parseSwipeRelative(c.StartRel)
		if err != nil {
			return false, err
		}
		end, err := parseSwipeRelative(c.EndRel)
		if err != nil {
			return false, err
		}
		return true, o.Driver.SwipeRelativePoints(start, end, duration)
	case c.Direction != "":
		return true, o.Driver.SwipeDirection(c.Direction, duration)
	case c.StartPoint != "" && c.EndPoint != "":
		sx, sy, err := parseAbsolutePoint(c.StartPoint)
		if err != nil {
			return false, err
		}
		ex, ey, err := parseAbsolutePoint(c.EndPoint)
		if err != nil {
			return false, err
		}
		return true, o.Driver.SwipeAbsolutePoints(sx, sy, ex, ey, duration)
	default:
		return false, ErrInvalidCommand("Illegal arguments for swiping")
	}
}

func parseSwipeRelative(s string) (driver.SwipeRelative, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return driver.SwipeRelative{}, ErrInvalidCommand("invalid relative point: " + s)
	}
	px, ok1 := selector.ParsePercent(parts[0])
	py, ok2 := selector.ParsePercent(parts[1])
	if !ok1 || !ok2 {
		return driver.SwipeRelative{}, ErrInvalidCommand("invalid relative point: " + s)
	}
	return driver.SwipeRelative{PercentX: px, PercentY: py}, nil
}

func parseAbsolutePoint(s string) (int, int, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0, ErrInvalidCommand("invalid point: " + s)
	}
	x, errA := strconv.Atoi(strings.TrimSpace(parts[0]))
	y, errB := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errA != nil || errB != nil {
		return 0, 0, ErrInvalidCommand("invalid point: " + s)
	}
	return x, y, nil
}

// execScrollUntilVisible swipes c.Direction repeatedly, checking visibility
// after each swipe, until the element clears threshold or timeout elapses.
// The retry cadence backs off exponentially between swipes rather than
// polling at a fixed interval, since a view that hasn't settled after one
// swipe is unlikely to settle in exactly one more poll tick.
func (o *Orchestra) execScrollUntilVisible(c *flow.ScrollUntilVisibleCommand) (bool, error) {
	timeout := time.Duration(c.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = o.Config.LookupTimeout
	}
	scrollDuration := time.Duration(c.ScrollDurationMs) * time.Millisecond
	threshold := c.VisibilityPercentageNormal
	if threshold <= 0 {
		threshold = 100
	}
	filter := selector.Build(c.Selector)

	var lastHierarchy *driver.Hierarchy
	mutated := false

	attempt := func() error {
		node, hierarchy, err := o.pollForElement(0, filter)
		lastHierarchy = hierarchy
		if err == nil && visiblePercentage(node, hierarchy) >= threshold {
			return nil
		}
		if swipeErr := o.Driver.SwipeFromCenter(c.Direction, scrollDuration); swipeErr != nil {
			return backoff.Permanent(swipeErr)
		}
		mutated = true
		return errScrollNotYetVisible
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = scrollUntilVisibleInitialInterval
	eb.MaxInterval = scrollUntilVisibleMaxInterval
	eb.MaxElapsedTime = timeout

	if err := backoff.Retry(attempt, eb); err != nil {
		if !errors.Is(err, errScrollNotYetVisible) {
			// A swipe failure was marked permanent; Retry hands back the
			// underlying driver error.
			return mutated, err
		}
		return mutated, ErrElementNotFound(c.Selector.Describe(), lastHierarchy)
	}
	return true, nil
}

// visiblePercentage is the share of node's bounds falling inside the
// device's screen grid.
func visiblePercentage(node *driver.Node, hierarchy *driver.Hierarchy) int {
	if node == nil || hierarchy == nil {
		return 0
	}
	area := node.Bounds.Width * node.Bounds.Height
	if area <= 0 {
		return 0
	}
	screen := driver.Bounds{X: 0, Y: 0, Width: hierarchy.Info.WidthGrid, Height: hierarchy.Info.HeightGrid}
	clipped := intersectBounds(node.Bounds, screen)
	clippedArea := clipped.Width * clipped.Height
	return clippedArea * 100 / area
}

func intersectBounds(a, b driver.Bounds) driver.Bounds {
	x1 := maxInt(a.X, b.X)
	y1 := maxInt(a.Y, b.Y)
	x2 := minInt(a.X+a.Width, b.X+b.Width)
	y2 := minInt(a.Y+a.Height, b.Y+b.Height)
	if x2 <= x1 || y2 <= y1 {
		return driver.Bounds{}
	}
	return driver.Bounds{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (o *Orchestra) execCopyTextFrom(c *flow.CopyTextFromCommand) (bool, error) {
	node, _, err := o.findElement(c.Selector, 0)
	if err != nil {
		return false, err
	}
	text := firstNonEmpty(node.Attributes["text"], node.Attributes["hintText"], node.Attributes["accessibilityText"])
	if text == "" {
		return false, ErrUnableToCopyTextFromElement(c.Selector.Describe())
	}
	o.setCopiedText(text)
	return false, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (o *Orchestra) execInputText(text string) (bool, error) {
	if !o.Driver.IsUnicodeInputSupported() && !isASCII(text) {
		return false, ErrUnicodeNotSupported(text)
	}
	return true, o.Driver.InputText(text)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

const randomAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
const randomDigits = "0123456789"

func (o *Orchestra) execInputRandom(c *flow.InputRandomCommand) (bool, error) {
	length := c.Length
	if length <= 0 {
		length = 8
	}
	var text string
	switch c.Kind {
	case flow.RandomNumber:
		text = randomString(randomDigits, length)
	case flow.RandomEmail:
		text = randomString(randomAlphabet, length) + "@example.com"
	default:
		text = randomString(randomAlphabet, length)
	}
	return o.execInputText(text)
}

func randomString(alphabet string, length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}

func (o *Orchestra) execLaunchApp(c *flow.LaunchAppCommand) (bool, error) {
	if c.ClearKeychain {
		if err := o.Driver.ClearKeychain(); err != nil {
			return false, ErrUnableToClearState(c.AppID, err)
		}
	}
	if c.ClearState {
		if err := o.Driver.ClearAppState(c.AppID); err != nil {
			return false, ErrUnableToClearState(c.AppID, err)
		}
	}

	permissions := c.Permissions
	if len(permissions) == 0 {
		permissions = map[string]string{"all": "allow"}
	}
	if err := o.Driver.SetPermissions(c.AppID, permissions); err != nil {
		return false, ErrUnableToClearState(c.AppID, err)
	}

	stopIfRunning := boolOr(c.StopApp, true)
	if err := o.Driver.LaunchApp(c.AppID, c.LaunchArguments, stopIfRunning); err != nil {
		return false, ErrUnableToLaunchApp(c.AppID, err)
	}
	return true, nil
}

func (o *Orchestra) execOpenLink(c *flow.OpenLinkCommand, cfg flow.MaestroConfig) (bool, error) {
	autoVerify := boolOr(c.AutoVerify, false)
	browser := boolOr(c.Browser, false)
	return true, o.Driver.OpenLink(c.Link, cfg.AppID, autoVerify, browser)
}

func (o *Orchestra) execEraseText(c *flow.EraseTextCommand) (bool, error) {
	n := c.CharactersToErase
	if n <= 0 {
		n = MaxEraseCharacters
	}
	if err := o.Driver.EraseText(n); err != nil {
		return false, err
	}
	if err := o.Driver.WaitForAppToSettle(); err != nil {
		return false, err
	}
	return true, nil
}

func (o *Orchestra) execTakeScreenshot(c *flow.TakeScreenshotCommand) (bool, error) {
	path := c.Path
	if !strings.HasSuffix(path, ".png") {
		path += ".png"
	}
	if o.Config.ScreenshotsDir != "" {
		path = filepath.Join(o.Config.ScreenshotsDir, path)
	}
	return false, o.Driver.TakeScreenshot(path)
}

func (o *Orchestra) execClearState(c *flow.ClearStateCommand) (bool, error) {
	if err := o.Driver.ClearAppState(c.AppID); err != nil {
		return false, ErrUnableToClearState(c.AppID, err)
	}
	if err := o.Driver.SetPermissions(c.AppID, map[string]string{"all": "unset"}); err != nil {
		return false, ErrUnableToClearState(c.AppID, err)
	}
	return true, nil
}

func (o *Orchestra) execDefineVariables(c *flow.DefineVariablesCommand) (bool, error) {
	for name, value := range c.Variables {
		script := "var " + name + " = '" + scripting.Sanitize(value) + "'"
		if _, err := o.Script.Evaluate(script, nil, "defineVariables", false); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (o *Orchestra) execRunScript(c *flow.RunScriptCommand) (bool, error) {
	if _, err := o.Script.Evaluate(c.Script, c.Env, c.SourceDescription, false); err != nil {
		return true, err
	}
	return true, nil
}

func (o *Orchestra) execEvalScript(c *flow.EvalScriptCommand) (bool, error) {
	if _, err := o.Script.Evaluate(c.ScriptString, nil, "evalScript", false); err != nil {
		return true, err
	}
	return true, nil
}

func (o *Orchestra) execMockNetwork(c *flow.MockNetworkCommand) (bool, error) {
	if o.Proxy == nil {
		return false, fmt.Errorf("mockNetwork: no network proxy configured")
	}
	if err := o.Driver.SetProxy(o.Proxy.Port()); err != nil {
		return false, err
	}
	if o.Proxy.IsStarted() {
		return false, o.Proxy.ReplaceRules(c.RulesPath)
	}
	return false, o.Proxy.Start(c.RulesPath)
}

func (o *Orchestra) execTravel(c *flow.TravelCommand) (bool, error) {
	speed := c.SpeedMPS
	if speed <= 0 {
		speed = defaultTravelSpeedMPS
	}
	var prevLat, prevLng float64
	for i, p := range c.Points {
		lat, lng, err := parseGeoPoint(p)
		if err != nil {
			return false, err
		}
		if i > 0 {
			meters := haversineMeters(prevLat, prevLng, lat, lng)
			time.Sleep(time.Duration(meters / speed * float64(time.Second)))
		}
		if err := o.Driver.SetLocation(lat, lng); err != nil {
			return false, err
		}
		prevLat, prevLng = lat, lng
	}
	return true, nil
}

func parseGeoPoint(s string) (lat, lng float64, err error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0, ErrInvalidCommand("invalid geo point: " + s)
	}
	lat, errA := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, errB := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errA != nil || errB != nil {
		return 0, 0, ErrInvalidCommand("invalid geo point: " + s)
	}
	return lat, lng, nil
}

// haversineMeters returns the great-circle distance between two
// lat/lng points, used to pace Travel's SetLocation calls at speedMPS.
func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusM = 6371000.0
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

func (o *Orchestra) execAssertOutgoingRequests(c *flow.AssertOutgoingRequestsCommand) (bool, error) {
	matcher := driver.OutgoingRequestMatcher{
		Path:                c.Path,
		HeadersPresent:      c.HeadersPresent,
		HTTPMethodIs:        c.HTTPMethodIs,
		RequestBodyContains: c.RequestBodyContains,
		HeadersAndValues:    c.HeadersAndValues,
	}
	if err := o.Driver.AssertOutgoingRequest(matcher); err != nil {
		return false, ErrOutgoingRequestAssertionFailure(c.Path)
	}
	return false, nil
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
