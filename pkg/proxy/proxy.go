// Package proxy implements the network-mocking proxy: a small HTTP
// server, reconfigurable from inside a
// running flow, that serves canned responses for matching requests and
// otherwise passes traffic through untouched.
package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Rule is one mockNetwork rule: requests matching Match get Response
// instead of being forwarded.
type Rule struct {
	Match struct {
		Path   string `yaml:"path"`
		Method string `yaml:"method"`
	} `yaml:"match"`
	Response struct {
		Status  int               `yaml:"status"`
		Headers map[string]string `yaml:"headers"`
		Body    string            `yaml:"body"`
	} `yaml:"response"`
}

// RuleSet is a parsed rules file's full contents.
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads and parses a rules YAML file at path.
func LoadRules(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("reading rules file %s: %w", path, err)
	}
	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return RuleSet{}, fmt.Errorf("parsing rules file %s: %w", path, err)
	}
	return set, nil
}

func (r Rule) matches(req *http.Request) bool {
	if r.Match.Method != "" && !strings.EqualFold(r.Match.Method, req.Method) {
		return false
	}
	if r.Match.Path != "" && r.Match.Path != req.URL.Path {
		return false
	}
	return true
}

// Proxy is the orchestra's NetworkProxy implementation: it listens on
// Port, and for each request checks the current RuleSet (swappable at
// runtime via ReplaceRules) before falling back to a transparent reverse
// proxy to the request's original host.
type Proxy struct {
	mu      sync.Mutex
	port    int
	started bool
	rules   RuleSet
	server  *http.Server
}

// New constructs a Proxy bound to port. The HTTP listener is not started
// until Start is called.
func New(port int) *Proxy {
	return &Proxy{port: port}
}

// Port returns the configured listening port.
func (p *Proxy) Port() int { return p.port }

// IsStarted reports whether the listener is currently running.
func (p *Proxy) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// Start loads rulesPath and begins serving on Port. Calling Start while
// already started is a no-op beyond reloading the rules (mockNetwork's
// idempotent start-or-replace behavior is implemented by the executor
// checking IsStarted before choosing Start vs ReplaceRules).
func (p *Proxy) Start(rulesPath string) error {
	rules, err := LoadRules(rulesPath)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.rules = rules
	if p.started {
		p.mu.Unlock()
		return nil
	}
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", p.port),
		Handler: http.HandlerFunc(p.serveHTTP),
	}
	p.server = server
	p.started = true
	p.mu.Unlock()

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		p.mu.Lock()
		p.started = false
		p.mu.Unlock()
		return err
	}
	go server.Serve(listener)
	return nil
}

// ReplaceRules swaps in a freshly loaded rule set without restarting the
// listener.
func (p *Proxy) ReplaceRules(rulesPath string) error {
	rules, err := LoadRules(rulesPath)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.rules = rules
	p.mu.Unlock()
	return nil
}

// Stop shuts the listener down; safe to call even if never started.
func (p *Proxy) Stop(ctx context.Context) error {
	p.mu.Lock()
	server := p.server
	p.started = false
	p.server = nil
	p.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

func (p *Proxy) serveHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	rules := p.rules.Rules
	p.mu.Unlock()

	for _, rule := range rules {
		if rule.matches(req) {
			for k, v := range rule.Response.Headers {
				w.Header().Set(k, v)
			}
			status := rule.Response.Status
			if status == 0 {
				status = http.StatusOK
			}
			w.WriteHeader(status)
			w.Write([]byte(rule.Response.Body))
			return
		}
	}

	target := req.URL
	if target.Host == "" {
		http.Error(w, "mock proxy: no rule matched and request has no forwarding target", http.StatusBadGateway)
		return
	}
	scheme := target.Scheme
	if scheme == "" {
		scheme = "https"
	}
	reverseProxy := httputil.NewSingleHostReverseProxy(&url.URL{Scheme: scheme, Host: target.Host})
	reverseProxy.ServeHTTP(w, req)
}
