// Package flow holds the in-memory command model the orchestra interprets:
// the tagged union of command variants, the element selector record, the
// condition record, and the flow-level configuration. Nothing in this
// package reads YAML directly from disk beyond the convenience parser in
// parser.go; it assumes a parsed command list, matching the orchestra's
// contract.
package flow

// CommandType identifies a Command variant.
type CommandType string

// Command type constants, one per spec variant.
const (
	CommandTapOnElement        CommandType = "tapOnElement"
	CommandTapOnPoint          CommandType = "tapOnPoint"
	CommandTapOnPointV2        CommandType = "tapOnPointV2"
	CommandBackPress           CommandType = "backPress"
	CommandHideKeyboard        CommandType = "hideKeyboard"
	CommandScroll              CommandType = "scroll"
	CommandClearKeychain       CommandType = "clearKeychain"
	CommandPaste               CommandType = "paste"
	CommandApplyConfiguration  CommandType = "applyConfiguration"
	CommandSwipe               CommandType = "swipe"
	CommandScrollUntilVisible  CommandType = "scrollUntilVisible"
	CommandCopyTextFrom        CommandType = "copyTextFrom"
	CommandAssertCondition     CommandType = "assertCondition"
	CommandInputText           CommandType = "inputText"
	CommandInputRandom         CommandType = "inputRandom"
	CommandLaunchApp           CommandType = "launchApp"
	CommandOpenLink            CommandType = "openLink"
	CommandPressKey            CommandType = "pressKey"
	CommandEraseText           CommandType = "eraseText"
	CommandTakeScreenshot      CommandType = "takeScreenshot"
	CommandStopApp             CommandType = "stopApp"
	CommandClearState          CommandType = "clearState"
	CommandRunFlow             CommandType = "runFlow"
	CommandSetLocation         CommandType = "setLocation"
	CommandRepeat              CommandType = "repeat"
	CommandDefineVariables     CommandType = "defineVariables"
	CommandRunScript           CommandType = "runScript"
	CommandEvalScript          CommandType = "evalScript"
	CommandWaitForAnimationEnd CommandType = "waitForAnimationToEnd"
	CommandMockNetwork         CommandType = "mockNetwork"
	CommandTravel              CommandType = "travel"
	CommandAssertOutgoing      CommandType = "assertOutgoingRequests"
)

// Command is the interface every command variant implements.
type Command interface {
	Type() CommandType
	Describe() string
}

// BaseCommand carries fields common to every variant.
type BaseCommand struct {
	CmdType CommandType `yaml:"-"`
	Label   string      `yaml:"label"`
}

// Type returns the command's variant tag.
func (b *BaseCommand) Type() CommandType { return b.CmdType }

// Describe returns a default human-readable description; most variants
// override this with something more specific.
func (b *BaseCommand) Describe() string { return string(b.CmdType) }

// CompositeCommand is implemented by commands that recurse through the
// Flow Driver over a nested command list (Repeat, RunFlow). Exposing
// SubCommands lets the Flow Driver's reset walk (OnCommandReset)
// traverse nested structure without runtime type tests.
type CompositeCommand interface {
	Command
	SubCommands() []Command
}

// TapOnElementCommand taps an element matched by Selector.
type TapOnElementCommand struct {
	BaseCommand
	Selector         ElementSelector
	RetryIfNoChange  *bool
	WaitUntilVisible *bool
	LongPress        bool
	AppID            string
}

func (c *TapOnElementCommand) Describe() string { return "tapOnElement: " + c.Selector.Describe() }

// TapOnPointCommand taps absolute device coordinates.
type TapOnPointCommand struct {
	BaseCommand
	X, Y            int
	RetryIfNoChange *bool
	LongPress       bool
}

func (c *TapOnPointCommand) Describe() string { return "tapOnPoint" }

// TapOnPointV2Command taps a point expressed as "x,y" or "p%,p%".
type TapOnPointV2Command struct {
	BaseCommand
	Point           string
	RetryIfNoChange *bool
	LongPress       bool
}

func (c *TapOnPointV2Command) Describe() string { return "tapOnPoint: " + c.Point }

// BackPressCommand presses the system back button.
type BackPressCommand struct{ BaseCommand }

// HideKeyboardCommand dismisses the software keyboard.
type HideKeyboardCommand struct{ BaseCommand }

// ScrollCommand performs a single vertical scroll.
type ScrollCommand struct{ BaseCommand }

// ClearKeychainCommand clears the device keychain.
type ClearKeychainCommand struct{ BaseCommand }

// PasteCommand pastes the current copied-text buffer.
type PasteCommand struct{ BaseCommand }

// ApplyConfigurationCommand carries a MaestroConfig payload. It is consumed
// by the Flow Driver before dispatch and is a no-op at execution time.
type ApplyConfigurationCommand struct {
	BaseCommand
	Config MaestroConfig
}

// SwipeCommand performs a swipe gesture. Exactly one of the four forms
// (selector+direction, startRel/endRel, direction, startPoint/endPoint) is
// populated, checked in that priority order by the executor.
type SwipeCommand struct {
	BaseCommand
	Selector   *ElementSelector
	Direction  string
	Duration   int
	StartRel   string
	EndRel     string
	StartPoint string
	EndPoint   string
}

func (c *SwipeCommand) Describe() string {
	if c.Direction != "" {
		return "swipe: " + c.Direction
	}
	return "swipe"
}

// ScrollUntilVisibleCommand scrolls repeatedly until Selector clears the
// visibility threshold or Timeout elapses.
type ScrollUntilVisibleCommand struct {
	BaseCommand
	Selector                   ElementSelector
	Direction                  string
	TimeoutMs                  int
	ScrollDurationMs           int
	VisibilityPercentageNormal int
}

func (c *ScrollUntilVisibleCommand) Describe() string {
	return "scrollUntilVisible: " + c.Selector.Describe()
}

// CopyTextFromCommand copies an element's text into the copied-text buffer.
type CopyTextFromCommand struct {
	BaseCommand
	Selector ElementSelector
}

func (c *CopyTextFromCommand) Describe() string { return "copyTextFrom: " + c.Selector.Describe() }

// AssertConditionCommand asserts a Condition evaluates true.
type AssertConditionCommand struct {
	BaseCommand
	Condition Condition
	TimeoutMs int
}

func (c *AssertConditionCommand) Describe() string { return "assertCondition" }

// InputTextCommand types literal text into the focused element.
type InputTextCommand struct {
	BaseCommand
	Text string
}

func (c *InputTextCommand) Describe() string { return "inputText: \"" + c.Text + "\"" }

// RandomKind enumerates InputRandomCommand's value kinds.
type RandomKind string

const (
	RandomText   RandomKind = "TEXT"
	RandomNumber RandomKind = "NUMBER"
	RandomEmail  RandomKind = "EMAIL"
)

// InputRandomCommand synthesizes a random value of Kind and types it.
type InputRandomCommand struct {
	BaseCommand
	Kind   RandomKind
	Length int
}

// LaunchAppCommand launches (or re-launches) an app.
type LaunchAppCommand struct {
	BaseCommand
	AppID           string
	ClearState      bool
	ClearKeychain   bool
	Permissions     map[string]string
	LaunchArguments map[string]string
	StopApp         *bool
}

func (c *LaunchAppCommand) Describe() string {
	if c.ClearState {
		return "launchApp (clearState)"
	}
	return "launchApp"
}

// OpenLinkCommand opens a deep link or URL.
type OpenLinkCommand struct {
	BaseCommand
	Link       string
	AutoVerify *bool
	Browser    *bool
}

func (c *OpenLinkCommand) Describe() string { return "openLink: " + c.Link }

// PressKeyCommand presses a named hardware/virtual key.
type PressKeyCommand struct {
	BaseCommand
	Code string
}

func (c *PressKeyCommand) Describe() string { return "pressKey: " + c.Code }

// EraseTextCommand erases characters from the focused field.
type EraseTextCommand struct {
	BaseCommand
	CharactersToErase int // 0 means "use default" (resolved by the executor)
}

// TakeScreenshotCommand writes a screenshot to Path.
type TakeScreenshotCommand struct {
	BaseCommand
	Path string
}

func (c *TakeScreenshotCommand) Describe() string { return "takeScreenshot: " + c.Path }

// StopAppCommand stops a running app.
type StopAppCommand struct {
	BaseCommand
	AppID string
}

// ClearStateCommand clears an app's on-disk state.
type ClearStateCommand struct {
	BaseCommand
	AppID string
}

// RunFlowCommand executes a nested command list, optionally gated by Condition.
type RunFlowCommand struct {
	BaseCommand
	Commands  []Command
	Condition *Condition
}

func (c *RunFlowCommand) Describe() string       { return "runFlow" }
func (c *RunFlowCommand) SubCommands() []Command { return c.Commands }

// SetLocationCommand mocks the device's GPS location.
type SetLocationCommand struct {
	BaseCommand
	Latitude, Longitude float64
}

// RepeatCommand executes Commands repeatedly while While holds, up to Times.
type RepeatCommand struct {
	BaseCommand
	Commands []Command
	Times    string // empty means unbounded (subject to While)
	While    *Condition
}

func (c *RepeatCommand) Describe() string       { return "repeat" }
func (c *RepeatCommand) SubCommands() []Command { return c.Commands }

// DefineVariablesCommand binds name→value pairs into the script engine.
type DefineVariablesCommand struct {
	BaseCommand
	Variables map[string]string
}

// RunScriptCommand evaluates a script file/body with an env overlay.
type RunScriptCommand struct {
	BaseCommand
	Script            string
	Env               map[string]string
	SourceDescription string
}

// EvalScriptCommand evaluates an inline script string.
type EvalScriptCommand struct {
	BaseCommand
	ScriptString string
}

// WaitForAnimationToEndCommand blocks until the UI stops animating.
type WaitForAnimationToEndCommand struct {
	BaseCommand
	TimeoutMs int
}

// MockNetworkCommand (re)configures the network proxy from a YAML rules file.
type MockNetworkCommand struct {
	BaseCommand
	RulesPath string
}

func (c *MockNetworkCommand) Describe() string { return "mockNetwork: " + c.RulesPath }

// TravelCommand mock-locates the device along a sequence of geo points.
type TravelCommand struct {
	BaseCommand
	Points   []string
	SpeedMPS float64 // 0 means "use default" (resolved by the executor)
}

// AssertOutgoingRequestsCommand asserts a matching outgoing network request
// was observed by the proxy.
type AssertOutgoingRequestsCommand struct {
	BaseCommand
	Path                string
	HeadersPresent      []string
	HTTPMethodIs        string
	RequestBodyContains string
	HeadersAndValues    map[string]string
}

func (c *AssertOutgoingRequestsCommand) Describe() string {
	return "assertOutgoingRequests: " + c.Path
}
