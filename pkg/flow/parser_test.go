package flow

import "testing"

func TestParse_SingleDocument(t *testing.T) {
	src := `
- tapOn: "Login"
- inputText: "hunter2"
- assertVisible: "Welcome"
`
	f, err := Parse([]byte(src), "login.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Commands) != 3 {
		t.Fatalf("got %d commands, want 3", len(f.Commands))
	}
	tap, ok := f.Commands[0].(*TapOnElementCommand)
	if !ok {
		t.Fatalf("commands[0] = %T, want *TapOnElementCommand", f.Commands[0])
	}
	if tap.Selector.TextRegex != "Login" {
		t.Errorf("got TextRegex=%q, want Login", tap.Selector.TextRegex)
	}
	input, ok := f.Commands[1].(*InputTextCommand)
	if !ok {
		t.Fatalf("commands[1] = %T, want *InputTextCommand", f.Commands[1])
	}
	if input.Text != "hunter2" {
		t.Errorf("got Text=%q, want hunter2", input.Text)
	}
	assert, ok := f.Commands[2].(*AssertConditionCommand)
	if !ok {
		t.Fatalf("commands[2] = %T, want *AssertConditionCommand", f.Commands[2])
	}
	if assert.Condition.Visible == nil || assert.Condition.Visible.TextRegex != "Welcome" {
		t.Errorf("expected visible condition with text=Welcome")
	}
}

func TestParse_ConfigAndCommands(t *testing.T) {
	src := `appId: com.example.app
name: login flow
tags:
  - smoke
---
- tapOn: "Login"
- back
`
	f, err := Parse([]byte(src), "login.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Config.AppID != "com.example.app" {
		t.Errorf("got AppID=%q, want com.example.app", f.Config.AppID)
	}
	if len(f.Config.Tags) != 1 || f.Config.Tags[0] != "smoke" {
		t.Errorf("got Tags=%v, want [smoke]", f.Config.Tags)
	}
	if len(f.Commands) != 2 {
		t.Fatalf("got %d commands, want 2", len(f.Commands))
	}
	if f.Commands[1].Type() != CommandBackPress {
		t.Errorf("got commands[1].Type()=%q, want backPress", f.Commands[1].Type())
	}
}

func TestParse_BareCommandName(t *testing.T) {
	src := `
- back
- hideKeyboard
- scroll
`
	f, err := Parse([]byte(src), "bare.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []CommandType{CommandBackPress, CommandHideKeyboard, CommandScroll}
	if len(f.Commands) != len(want) {
		t.Fatalf("got %d commands, want %d", len(f.Commands), len(want))
	}
	for i, w := range want {
		if f.Commands[i].Type() != w {
			t.Errorf("commands[%d].Type()=%q, want %q", i, f.Commands[i].Type(), w)
		}
	}
}

func TestParse_RepeatWithNestedCommands(t *testing.T) {
	src := `
- repeat:
    times: "3"
    commands:
      - tapOn: "Next"
`
	f, err := Parse([]byte(src), "repeat.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	repeat, ok := f.Commands[0].(*RepeatCommand)
	if !ok {
		t.Fatalf("commands[0] = %T, want *RepeatCommand", f.Commands[0])
	}
	if repeat.Times != "3" {
		t.Errorf("got Times=%q, want 3", repeat.Times)
	}
	if len(repeat.Commands) != 1 {
		t.Fatalf("got %d nested commands, want 1", len(repeat.Commands))
	}
	var sub CompositeCommand = repeat
	if len(sub.SubCommands()) != 1 {
		t.Errorf("SubCommands() len = %d, want 1", len(sub.SubCommands()))
	}
}

func TestParse_RunFlowWithCondition(t *testing.T) {
	src := `
- runFlow:
    when:
      visible: "Onboarding"
    commands:
      - tapOn: "Skip"
`
	f, err := Parse([]byte(src), "runflow.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rf, ok := f.Commands[0].(*RunFlowCommand)
	if !ok {
		t.Fatalf("commands[0] = %T, want *RunFlowCommand", f.Commands[0])
	}
	if rf.Condition == nil || rf.Condition.Visible == nil || rf.Condition.Visible.TextRegex != "Onboarding" {
		t.Fatalf("expected condition with visible=Onboarding")
	}
	if len(rf.Commands) != 1 {
		t.Fatalf("got %d nested commands, want 1", len(rf.Commands))
	}
}

func TestParse_UnknownCommand(t *testing.T) {
	src := `
- notACommand: "whatever"
`
	_, err := Parse([]byte(src), "bad.yaml")
	if err == nil {
		t.Fatal("expected error for unknown command type")
	}
}

func TestParse_EmptyFile(t *testing.T) {
	_, err := Parse([]byte(""), "empty.yaml")
	if err == nil {
		t.Fatal("expected error for empty flow file")
	}
}

func TestParse_EraseTextScalarForm(t *testing.T) {
	src := `
- eraseText: 10
`
	f, err := Parse([]byte(src), "erase.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	erase, ok := f.Commands[0].(*EraseTextCommand)
	if !ok {
		t.Fatalf("commands[0] = %T, want *EraseTextCommand", f.Commands[0])
	}
	if erase.CharactersToErase != 10 {
		t.Errorf("got CharactersToErase=%d, want 10", erase.CharactersToErase)
	}
}

func TestParse_ApplyConfigurationWithInitFlow(t *testing.T) {
	src := `
- applyConfiguration:
    appId: com.example.app
    initFlow:
      - launchApp
`
	f, err := Parse([]byte(src), "applyconfig.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ac, ok := f.Commands[0].(*ApplyConfigurationCommand)
	if !ok {
		t.Fatalf("commands[0] = %T, want *ApplyConfigurationCommand", f.Commands[0])
	}
	if ac.Config.AppID != "com.example.app" {
		t.Errorf("got AppID=%q, want com.example.app", ac.Config.AppID)
	}
	if ac.Config.InitFlow == nil || len(ac.Config.InitFlow.Commands) != 1 {
		t.Fatalf("expected init flow with 1 command")
	}
}
