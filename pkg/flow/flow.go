package flow

// Flow is a parsed flow file: a flow-level Config plus the ordered list of
// Commands the Flow Driver executes.
type Flow struct {
	SourcePath string
	Config     Config
	Commands   []Command
}

// Config carries flow-level, authoring-time metadata (tags, env, lifecycle
// hooks). It is distinct from MaestroConfig (below), which is the
// ApplyConfiguration payload the orchestra itself consumes at runtime —
// Config is how the file is organized, MaestroConfig is what the orchestra
// interprets from within the command list.
type Config struct {
	AppID          string            `yaml:"appId"`
	Name           string            `yaml:"name"`
	Tags           []string          `yaml:"tags"`
	Env            map[string]string `yaml:"env"`
	OnFlowStart    []Command         `yaml:"-"`
	OnFlowComplete []Command         `yaml:"-"`
}

// MaestroConfig is the ApplyConfigurationCommand payload: the appId
// under automation and an optional nested init-flow run once per
// orchestra.RunFlow to produce an AppState.
type MaestroConfig struct {
	AppID    string
	InitFlow *Flow
}

// AppState is the opaque, on-disk state dump produced by running an
// init-flow and consumed by the next
// RunFlow call.
type AppState struct {
	AppID     string
	StateFile string
}

// CommandMetadata tracks per-command bookkeeping the Flow Driver reports
// through the Metadata & Callback Bus: how many times a composite command
// ran (Repeat), the command as evaluated by the script engine, and the
// ordered log messages captured while it executed.
type CommandMetadata struct {
	NumberOfRuns     int
	EvaluatedCommand Command
	LogMessages      []string
}
