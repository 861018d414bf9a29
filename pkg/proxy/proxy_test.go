package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeRulesFile(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("writing rules file: %v", err)
	}
	return path
}

func TestLoadRules(t *testing.T) {
	path := writeRulesFile(t, t.TempDir(), `
rules:
  - match:
      path: /api/login
      method: POST
    response:
      status: 200
      body: '{"ok":true}'
`)
	set, err := LoadRules(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set.Rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(set.Rules))
	}
	if set.Rules[0].Match.Path != "/api/login" || set.Rules[0].Match.Method != "POST" {
		t.Errorf("got match %+v", set.Rules[0].Match)
	}
	if set.Rules[0].Response.Status != 200 || set.Rules[0].Response.Body != `{"ok":true}` {
		t.Errorf("got response %+v", set.Rules[0].Response)
	}
}

func TestRule_Matches(t *testing.T) {
	rule := Rule{}
	rule.Match.Path = "/api/login"
	rule.Match.Method = "POST"

	req := httptest.NewRequest("POST", "/api/login", nil)
	if !rule.matches(req) {
		t.Errorf("expected match")
	}

	other := httptest.NewRequest("GET", "/api/login", nil)
	if rule.matches(other) {
		t.Errorf("expected method mismatch to not match")
	}
}

func TestProxy_ServeHTTP_MatchedRuleReturnsCannedResponse(t *testing.T) {
	path := writeRulesFile(t, t.TempDir(), `
rules:
  - match:
      path: /api/ping
    response:
      status: 201
      headers:
        X-Mock: "true"
      body: pong
`)
	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := &Proxy{port: 0, rules: rules, started: true}

	req := httptest.NewRequest("GET", "/api/ping", nil)
	rec := httptest.NewRecorder()
	p.serveHTTP(rec, req)

	if rec.Code != 201 {
		t.Errorf("got status %d, want 201", rec.Code)
	}
	if rec.Body.String() != "pong" {
		t.Errorf("got body %q, want pong", rec.Body.String())
	}
	if rec.Header().Get("X-Mock") != "true" {
		t.Errorf("missing X-Mock header")
	}
}

func TestProxy_ServeHTTP_UnmatchedWithNoHostFails(t *testing.T) {
	p := &Proxy{port: 0}
	req := httptest.NewRequest("GET", "/unmatched", nil)
	rec := httptest.NewRecorder()
	p.serveHTTP(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestProxy_IsStarted_DefaultFalse(t *testing.T) {
	p := New(8085)
	if p.IsStarted() {
		t.Errorf("new proxy should not be started")
	}
	if p.Port() != 8085 {
		t.Errorf("got port %d, want 8085", p.Port())
	}
}

func TestProxy_StartThenReplaceRules(t *testing.T) {
	dir := t.TempDir()
	initial := writeRulesFile(t, dir, "rules: []\n")

	p := New(0)
	if err := p.Start(initial); err != nil {
		t.Fatalf("unexpected error starting: %v", err)
	}
	defer p.Stop(context.Background())
	if !p.IsStarted() {
		t.Fatalf("expected started after Start")
	}

	replacement := filepath.Join(dir, "replacement.yaml")
	os.WriteFile(replacement, []byte(`
rules:
  - match:
      path: /x
    response:
      status: 200
      body: hit
`), 0644)
	if err := p.ReplaceRules(replacement); err != nil {
		t.Fatalf("unexpected error replacing rules: %v", err)
	}
	if len(p.rules.Rules) != 1 {
		t.Fatalf("got %d rules after replace, want 1", len(p.rules.Rules))
	}
}
