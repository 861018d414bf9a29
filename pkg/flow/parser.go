package flow

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseError reports a flow file parse failure with source location.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseFile parses a single flow YAML file from disk.
func ParseFile(path string) (*Flow, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is caller-provided flow file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses flow YAML content. A flow file is either a single `---`
// document of commands, or a config document followed by a commands document.
func Parse(data []byte, sourcePath string) (*Flow, error) {
	parts := splitYAMLDocuments(string(data))

	f := &Flow{SourcePath: sourcePath}

	if len(parts) == 0 {
		return nil, &ParseError{Path: sourcePath, Line: 1, Message: "empty flow file"}
	}

	if len(parts) == 1 {
		if err := parseCommands(parts[0], f); err != nil {
			return nil, err
		}
		return f, nil
	}

	if err := parseConfig(parts[0], f); err != nil {
		return nil, err
	}
	if err := parseCommands(parts[1], f); err != nil {
		return nil, err
	}
	return f, nil
}

func splitYAMLDocuments(content string) []string {
	var parts []string
	var current strings.Builder
	inMultiline := false
	multilineIndent := 0

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if !inMultiline {
			if strings.HasSuffix(trimmed, "|") || strings.HasSuffix(trimmed, ">") ||
				strings.HasSuffix(trimmed, "|-") || strings.HasSuffix(trimmed, ">-") {
				inMultiline = true
				if i+1 < len(lines) {
					next := lines[i+1]
					multilineIndent = len(next) - len(strings.TrimLeft(next, " \t"))
				}
			}
		} else {
			indent := len(line) - len(strings.TrimLeft(line, " \t"))
			if trimmed != "" && indent < multilineIndent {
				inMultiline = false
			}
		}

		if !inMultiline && trimmed == "---" && strings.TrimLeft(line, " \t") == "---" {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		} else {
			current.WriteString(line)
			current.WriteString("\n")
		}
	}

	if current.Len() > 0 {
		if s := strings.TrimSpace(current.String()); s != "" {
			parts = append(parts, current.String())
		}
	}

	return parts
}

func parseConfig(content string, f *Flow) error {
	var cfg Config
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return &ParseError{Path: f.SourcePath, Message: fmt.Sprintf("invalid config: %v", err)}
	}

	var raw struct {
		OnFlowStart    []yaml.Node `yaml:"onFlowStart"`
		OnFlowComplete []yaml.Node `yaml:"onFlowComplete"`
	}
	if err := yaml.Unmarshal([]byte(content), &raw); err != nil {
		return &ParseError{Path: f.SourcePath, Message: fmt.Sprintf("invalid config: %v", err)}
	}
	for _, n := range raw.OnFlowStart {
		cmd, err := parseCommand(&n, f.SourcePath)
		if err != nil {
			return err
		}
		cfg.OnFlowStart = append(cfg.OnFlowStart, cmd)
	}
	for _, n := range raw.OnFlowComplete {
		cmd, err := parseCommand(&n, f.SourcePath)
		if err != nil {
			return err
		}
		cfg.OnFlowComplete = append(cfg.OnFlowComplete, cmd)
	}

	f.Config = cfg
	return nil
}

func parseCommands(content string, f *Flow) error {
	var rawCommands []yaml.Node
	if err := yaml.Unmarshal([]byte(content), &rawCommands); err != nil {
		return &ParseError{Path: f.SourcePath, Message: fmt.Sprintf("invalid commands: %v", err)}
	}
	for _, n := range rawCommands {
		cmd, err := parseCommand(&n, f.SourcePath)
		if err != nil {
			return err
		}
		f.Commands = append(f.Commands, cmd)
	}
	return nil
}

func parseCommand(node *yaml.Node, sourcePath string) (Command, error) {
	if node.Kind == yaml.ScalarNode {
		t := yamlAlias(node.Value)
		if !isCommandType(t) {
			return nil, &ParseError{Path: sourcePath, Line: node.Line, Message: "unknown command type: " + node.Value}
		}
		return decodeCommand(CommandType(t), &yaml.Node{Kind: yaml.MappingNode}, sourcePath)
	}

	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{Path: sourcePath, Line: node.Line, Message: "command must be a mapping or bare command name"}
	}

	t, valueNode := extractCommandType(node)
	if t == "" || valueNode == nil {
		return nil, &ParseError{Path: sourcePath, Line: node.Line, Message: "unknown command type"}
	}
	return decodeCommand(CommandType(t), valueNode, sourcePath)
}

func extractCommandType(node *yaml.Node) (string, *yaml.Node) {
	for i := 0; i < len(node.Content)-1; i += 2 {
		key := yamlAlias(node.Content[i].Value)
		if isCommandType(key) {
			return key, node.Content[i+1]
		}
	}
	return "", nil
}

// yamlAlias maps the surface YAML key spelling (as flow authors write it)
// onto the CommandType constants above.
func yamlAlias(key string) string {
	switch key {
	case "tapOn":
		return string(CommandTapOnElement)
	case "tapOnPoint":
		return string(CommandTapOnPointV2)
	case "back":
		return string(CommandBackPress)
	case "assertVisible":
		return string(CommandAssertCondition)
	case "assertTrue":
		return string(CommandAssertCondition)
	default:
		return key
	}
}

func isCommandType(key string) bool {
	switch CommandType(key) {
	case CommandTapOnElement, CommandTapOnPoint, CommandTapOnPointV2, CommandBackPress,
		CommandHideKeyboard, CommandScroll, CommandClearKeychain, CommandPaste,
		CommandApplyConfiguration, CommandSwipe, CommandScrollUntilVisible, CommandCopyTextFrom,
		CommandAssertCondition, CommandInputText, CommandInputRandom, CommandLaunchApp,
		CommandOpenLink, CommandPressKey, CommandEraseText, CommandTakeScreenshot,
		CommandStopApp, CommandClearState, CommandRunFlow, CommandSetLocation, CommandRepeat,
		CommandDefineVariables, CommandRunScript, CommandEvalScript, CommandWaitForAnimationEnd,
		CommandMockNetwork, CommandTravel, CommandAssertOutgoing:
		return true
	}
	return false
}

//nolint:gocyclo
func decodeCommand(t CommandType, v *yaml.Node, sourcePath string) (Command, error) {
	switch t {
	case CommandTapOnElement:
		var raw selectorRaw
		if v.Kind == yaml.ScalarNode {
			raw.Text = v.Value
		} else if err := v.Decode(&raw); err != nil {
			return nil, wrapErr(sourcePath, v.Line, err)
		}
		sel := raw.toSelector()
		return &TapOnElementCommand{BaseCommand: base(t), Selector: sel}, nil

	case CommandTapOnPointV2:
		var raw struct {
			Point           string `yaml:"point"`
			RetryIfNoChange *bool  `yaml:"retryTapIfNoChange"`
			LongPress       bool   `yaml:"longPress"`
		}
		if v.Kind == yaml.ScalarNode {
			raw.Point = v.Value
		} else if err := v.Decode(&raw); err != nil {
			return nil, wrapErr(sourcePath, v.Line, err)
		}
		return &TapOnPointV2Command{BaseCommand: base(t), Point: raw.Point, RetryIfNoChange: raw.RetryIfNoChange, LongPress: raw.LongPress}, nil

	case CommandTapOnPoint:
		var raw struct {
			X, Y            int
			RetryIfNoChange *bool `yaml:"retryTapIfNoChange"`
			LongPress       bool  `yaml:"longPress"`
		}
		if err := v.Decode(&raw); err != nil {
			return nil, wrapErr(sourcePath, v.Line, err)
		}
		return &TapOnPointCommand{BaseCommand: base(t), X: raw.X, Y: raw.Y, RetryIfNoChange: raw.RetryIfNoChange, LongPress: raw.LongPress}, nil

	case CommandBackPress:
		return &BackPressCommand{base(t)}, nil
	case CommandHideKeyboard:
		return &HideKeyboardCommand{base(t)}, nil
	case CommandScroll:
		return &ScrollCommand{base(t)}, nil
	case CommandClearKeychain:
		return &ClearKeychainCommand{base(t)}, nil
	case CommandPaste:
		return &PasteCommand{base(t)}, nil

	case CommandSwipe:
		var raw struct {
			Selector   *selectorRaw `yaml:"selector"`
			Direction  string       `yaml:"direction"`
			Duration   int          `yaml:"duration"`
			Start      string       `yaml:"start"`
			End        string       `yaml:"end"`
			StartPoint string       `yaml:"startPoint"`
			EndPoint   string       `yaml:"endPoint"`
		}
		if v.Kind == yaml.ScalarNode {
			raw.Direction = v.Value
		} else if err := v.Decode(&raw); err != nil {
			return nil, wrapErr(sourcePath, v.Line, err)
		}
		c := &SwipeCommand{BaseCommand: base(t), Direction: raw.Direction, Duration: raw.Duration,
			StartRel: raw.Start, EndRel: raw.End, StartPoint: raw.StartPoint, EndPoint: raw.EndPoint}
		if raw.Selector != nil {
			sel := raw.Selector.toSelector()
			c.Selector = &sel
		}
		return c, nil

	case CommandScrollUntilVisible:
		var raw struct {
			Selector             selectorRaw `yaml:",inline"`
			Direction            string      `yaml:"direction"`
			TimeoutMs            int         `yaml:"timeout"`
			ScrollDuration       int         `yaml:"scrollDuration"`
			VisibilityPercentage int         `yaml:"visibilityPercentage"`
		}
		raw.VisibilityPercentage = 100
		if err := v.Decode(&raw); err != nil {
			return nil, wrapErr(sourcePath, v.Line, err)
		}
		sel := raw.Selector.toSelector()
		return &ScrollUntilVisibleCommand{BaseCommand: base(t), Selector: sel, Direction: raw.Direction,
			TimeoutMs: raw.TimeoutMs, ScrollDurationMs: raw.ScrollDuration, VisibilityPercentageNormal: raw.VisibilityPercentage}, nil

	case CommandCopyTextFrom:
		var raw selectorRaw
		if v.Kind == yaml.ScalarNode {
			raw.Text = v.Value
		} else if err := v.Decode(&raw); err != nil {
			return nil, wrapErr(sourcePath, v.Line, err)
		}
		return &CopyTextFromCommand{BaseCommand: base(t), Selector: raw.toSelector()}, nil

	case CommandAssertCondition:
		var raw struct {
			Visible    *selectorRaw `yaml:"visible"`
			NotVisible *selectorRaw `yaml:"notVisible"`
			Script     string       `yaml:"scriptCondition"`
			Platform   string       `yaml:"platform"`
			TimeoutMs  int          `yaml:"timeout"`
		}
		if v.Kind == yaml.ScalarNode {
			sel := selectorRaw{Text: v.Value}
			raw.Visible = &sel
		} else if err := v.Decode(&raw); err != nil {
			return nil, wrapErr(sourcePath, v.Line, err)
		}
		cond := Condition{Platform: raw.Platform, ScriptResult: raw.Script}
		if raw.Visible != nil {
			sel := raw.Visible.toSelector()
			cond.Visible = &sel
		}
		if raw.NotVisible != nil {
			sel := raw.NotVisible.toSelector()
			cond.NotVisible = &sel
		}
		return &AssertConditionCommand{BaseCommand: base(t), Condition: cond, TimeoutMs: raw.TimeoutMs}, nil

	case CommandInputText:
		var raw struct {
			Text string `yaml:"text"`
		}
		if v.Kind == yaml.ScalarNode {
			raw.Text = v.Value
		} else if err := v.Decode(&raw); err != nil {
			return nil, wrapErr(sourcePath, v.Line, err)
		}
		return &InputTextCommand{BaseCommand: base(t), Text: raw.Text}, nil

	case CommandInputRandom:
		var raw struct {
			Kind   string `yaml:"type"`
			Length int    `yaml:"length"`
		}
		if v.Kind == yaml.ScalarNode {
			raw.Kind = v.Value
		} else if err := v.Decode(&raw); err != nil {
			return nil, wrapErr(sourcePath, v.Line, err)
		}
		if raw.Kind == "" {
			raw.Kind = string(RandomText)
		}
		return &InputRandomCommand{BaseCommand: base(t), Kind: RandomKind(strings.ToUpper(raw.Kind)), Length: raw.Length}, nil

	case CommandLaunchApp:
		var raw struct {
			AppID         string            `yaml:"appId"`
			ClearState    bool              `yaml:"clearState"`
			ClearKeychain bool              `yaml:"clearKeychain"`
			Permissions   map[string]string `yaml:"permissions"`
			Arguments     map[string]string `yaml:"arguments"`
			StopApp       *bool             `yaml:"stopApp"`
		}
		if v.Kind == yaml.ScalarNode {
			raw.AppID = v.Value
		} else if err := v.Decode(&raw); err != nil {
			return nil, wrapErr(sourcePath, v.Line, err)
		}
		return &LaunchAppCommand{BaseCommand: base(t), AppID: raw.AppID, ClearState: raw.ClearState,
			ClearKeychain: raw.ClearKeychain, Permissions: raw.Permissions, LaunchArguments: raw.Arguments, StopApp: raw.StopApp}, nil

	case CommandOpenLink:
		var raw struct {
			Link       string `yaml:"link"`
			AutoVerify *bool  `yaml:"autoVerify"`
			Browser    *bool  `yaml:"browser"`
		}
		if v.Kind == yaml.ScalarNode {
			raw.Link = v.Value
		} else if err := v.Decode(&raw); err != nil {
			return nil, wrapErr(sourcePath, v.Line, err)
		}
		return &OpenLinkCommand{BaseCommand: base(t), Link: raw.Link, AutoVerify: raw.AutoVerify, Browser: raw.Browser}, nil

	case CommandPressKey:
		var raw struct {
			Key string `yaml:"key"`
		}
		if v.Kind == yaml.ScalarNode {
			raw.Key = v.Value
		} else if err := v.Decode(&raw); err != nil {
			return nil, wrapErr(sourcePath, v.Line, err)
		}
		return &PressKeyCommand{BaseCommand: base(t), Code: raw.Key}, nil

	case CommandEraseText:
		var n int
		if v.Kind == yaml.ScalarNode {
			n, _ = strconv.Atoi(v.Value)
		} else {
			var raw struct {
				Characters int `yaml:"characters"`
			}
			if err := v.Decode(&raw); err != nil {
				return nil, wrapErr(sourcePath, v.Line, err)
			}
			n = raw.Characters
		}
		return &EraseTextCommand{BaseCommand: base(t), CharactersToErase: n}, nil

	case CommandTakeScreenshot:
		var raw struct {
			Path string `yaml:"path"`
		}
		if v.Kind == yaml.ScalarNode {
			raw.Path = v.Value
		} else if err := v.Decode(&raw); err != nil {
			return nil, wrapErr(sourcePath, v.Line, err)
		}
		return &TakeScreenshotCommand{BaseCommand: base(t), Path: raw.Path}, nil

	case CommandStopApp:
		var raw struct {
			AppID string `yaml:"appId"`
		}
		if v.Kind == yaml.ScalarNode {
			raw.AppID = v.Value
		} else if err := v.Decode(&raw); err != nil {
			return nil, wrapErr(sourcePath, v.Line, err)
		}
		return &StopAppCommand{BaseCommand: base(t), AppID: raw.AppID}, nil

	case CommandClearState:
		var raw struct {
			AppID string `yaml:"appId"`
		}
		if v.Kind == yaml.ScalarNode {
			raw.AppID = v.Value
		} else if err := v.Decode(&raw); err != nil {
			return nil, wrapErr(sourcePath, v.Line, err)
		}
		return &ClearStateCommand{BaseCommand: base(t), AppID: raw.AppID}, nil

	case CommandRunFlow:
		return parseRunFlow(v, sourcePath)

	case CommandSetLocation:
		var raw struct {
			Latitude  float64 `yaml:"latitude"`
			Longitude float64 `yaml:"longitude"`
		}
		if err := v.Decode(&raw); err != nil {
			return nil, wrapErr(sourcePath, v.Line, err)
		}
		return &SetLocationCommand{BaseCommand: base(t), Latitude: raw.Latitude, Longitude: raw.Longitude}, nil

	case CommandRepeat:
		return parseRepeat(v, sourcePath)

	case CommandDefineVariables:
		vars := map[string]string{}
		if v.Kind == yaml.MappingNode {
			for i := 0; i < len(v.Content)-1; i += 2 {
				vars[v.Content[i].Value] = v.Content[i+1].Value
			}
		}
		return &DefineVariablesCommand{BaseCommand: base(t), Variables: vars}, nil

	case CommandRunScript:
		var raw struct {
			Script string            `yaml:"script"`
			File   string            `yaml:"file"`
			Env    map[string]string `yaml:"env"`
		}
		if v.Kind == yaml.ScalarNode {
			raw.Script = v.Value
		} else if err := v.Decode(&raw); err != nil {
			return nil, wrapErr(sourcePath, v.Line, err)
		}
		script := raw.Script
		desc := "inline script"
		if raw.File != "" {
			script = raw.File
			desc = raw.File
		}
		return &RunScriptCommand{BaseCommand: base(t), Script: script, Env: raw.Env, SourceDescription: desc}, nil

	case CommandEvalScript:
		var raw struct {
			Script string `yaml:"script"`
		}
		if v.Kind == yaml.ScalarNode {
			raw.Script = v.Value
		} else if err := v.Decode(&raw); err != nil {
			return nil, wrapErr(sourcePath, v.Line, err)
		}
		return &EvalScriptCommand{BaseCommand: base(t), ScriptString: raw.Script}, nil

	case CommandWaitForAnimationEnd:
		var raw struct {
			TimeoutMs int `yaml:"timeout"`
		}
		_ = v.Decode(&raw)
		return &WaitForAnimationToEndCommand{BaseCommand: base(t), TimeoutMs: raw.TimeoutMs}, nil

	case CommandMockNetwork:
		var path string
		if v.Kind == yaml.ScalarNode {
			path = v.Value
		} else {
			var raw struct {
				Path string `yaml:"path"`
			}
			if err := v.Decode(&raw); err != nil {
				return nil, wrapErr(sourcePath, v.Line, err)
			}
			path = raw.Path
		}
		return &MockNetworkCommand{BaseCommand: base(t), RulesPath: path}, nil

	case CommandTravel:
		var raw struct {
			Points   []string `yaml:"points"`
			SpeedMPS float64  `yaml:"speed"`
		}
		if err := v.Decode(&raw); err != nil {
			return nil, wrapErr(sourcePath, v.Line, err)
		}
		return &TravelCommand{BaseCommand: base(t), Points: raw.Points, SpeedMPS: raw.SpeedMPS}, nil

	case CommandAssertOutgoing:
		var raw struct {
			Path                string            `yaml:"path"`
			HeadersPresent      []string          `yaml:"headersPresent"`
			HTTPMethodIs        string            `yaml:"httpMethodIs"`
			RequestBodyContains string            `yaml:"requestBodyContains"`
			HeadersAndValues    map[string]string `yaml:"headersAndValues"`
		}
		if err := v.Decode(&raw); err != nil {
			return nil, wrapErr(sourcePath, v.Line, err)
		}
		return &AssertOutgoingRequestsCommand{BaseCommand: base(t), Path: raw.Path, HeadersPresent: raw.HeadersPresent,
			HTTPMethodIs: raw.HTTPMethodIs, RequestBodyContains: raw.RequestBodyContains, HeadersAndValues: raw.HeadersAndValues}, nil

	case CommandApplyConfiguration:
		// Surface syntax for ApplyConfiguration is host-defined; the core
		// only needs an AppID and nested init-flow commands, if present.
		var raw struct {
			AppID    string      `yaml:"appId"`
			InitFlow []yaml.Node `yaml:"initFlow"`
		}
		if err := v.Decode(&raw); err != nil {
			return nil, wrapErr(sourcePath, v.Line, err)
		}
		cfg := MaestroConfig{AppID: raw.AppID}
		if len(raw.InitFlow) > 0 {
			init := &Flow{SourcePath: sourcePath}
			for _, n := range raw.InitFlow {
				cmd, err := parseCommand(&n, sourcePath)
				if err != nil {
					return nil, err
				}
				init.Commands = append(init.Commands, cmd)
			}
			cfg.InitFlow = init
		}
		return &ApplyConfigurationCommand{BaseCommand: base(t), Config: cfg}, nil

	default:
		return nil, &ParseError{Path: sourcePath, Line: v.Line, Message: "unhandled command type: " + string(t)}
	}
}

func parseRepeat(v *yaml.Node, sourcePath string) (Command, error) {
	var raw struct {
		Times    string `yaml:"times"`
		WhileRaw struct {
			Visible    *selectorRaw `yaml:"visible"`
			NotVisible *selectorRaw `yaml:"notVisible"`
			Script     string       `yaml:"scriptCondition"`
			Platform   string       `yaml:"platform"`
		} `yaml:"while"`
		Commands []yaml.Node `yaml:"commands"`
		Label    string      `yaml:"label"`
	}
	if err := v.Decode(&raw); err != nil {
		return nil, wrapErr(sourcePath, v.Line, err)
	}
	c := &RepeatCommand{BaseCommand: base(CommandRepeat), Times: raw.Times}
	c.Label = raw.Label
	if raw.WhileRaw.Visible != nil || raw.WhileRaw.NotVisible != nil || raw.WhileRaw.Script != "" || raw.WhileRaw.Platform != "" {
		cond := Condition{Platform: raw.WhileRaw.Platform, ScriptResult: raw.WhileRaw.Script}
		if raw.WhileRaw.Visible != nil {
			sel := raw.WhileRaw.Visible.toSelector()
			cond.Visible = &sel
		}
		if raw.WhileRaw.NotVisible != nil {
			sel := raw.WhileRaw.NotVisible.toSelector()
			cond.NotVisible = &sel
		}
		c.While = &cond
	}
	for _, n := range raw.Commands {
		cmd, err := parseCommand(&n, sourcePath)
		if err != nil {
			return nil, err
		}
		c.Commands = append(c.Commands, cmd)
	}
	return c, nil
}

func parseRunFlow(v *yaml.Node, sourcePath string) (Command, error) {
	if v.Kind == yaml.ScalarNode {
		// A bare file reference has no commands to carry inline; the host's
		// parsed-command-list contract means file-based runFlow
		// resolution happens upstream of the orchestra, so this only
		// produces an empty composite command.
		return &RunFlowCommand{BaseCommand: base(CommandRunFlow)}, nil
	}
	var raw struct {
		Commands []yaml.Node `yaml:"commands"`
		When     struct {
			Visible    *selectorRaw `yaml:"visible"`
			NotVisible *selectorRaw `yaml:"notVisible"`
			Script     string       `yaml:"scriptCondition"`
			Platform   string       `yaml:"platform"`
		} `yaml:"when"`
		Label string `yaml:"label"`
	}
	if err := v.Decode(&raw); err != nil {
		return nil, wrapErr(sourcePath, v.Line, err)
	}
	c := &RunFlowCommand{BaseCommand: base(CommandRunFlow)}
	c.Label = raw.Label
	if raw.When.Visible != nil || raw.When.NotVisible != nil || raw.When.Script != "" || raw.When.Platform != "" {
		cond := Condition{Platform: raw.When.Platform, ScriptResult: raw.When.Script}
		if raw.When.Visible != nil {
			sel := raw.When.Visible.toSelector()
			cond.Visible = &sel
		}
		if raw.When.NotVisible != nil {
			sel := raw.When.NotVisible.toSelector()
			cond.NotVisible = &sel
		}
		c.Condition = &cond
	}
	for _, n := range raw.Commands {
		cmd, err := parseCommand(&n, sourcePath)
		if err != nil {
			return nil, err
		}
		c.Commands = append(c.Commands, cmd)
	}
	return c, nil
}

func base(t CommandType) BaseCommand { return BaseCommand{CmdType: t} }

func wrapErr(path string, line int, err error) error {
	return &ParseError{Path: path, Line: line, Message: err.Error()}
}
