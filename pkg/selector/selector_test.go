package selector

import (
	"testing"

	"github.com/timehop/maestro/pkg/driver"
	"github.com/timehop/maestro/pkg/flow"
)

func fixture() *driver.Node {
	return &driver.Node{
		Bounds: driver.Bounds{X: 0, Y: 0, Width: 1080, Height: 2400},
		Children: []*driver.Node{
			{
				Attributes: map[string]string{"text": "Username", "resource-id": "username-field"},
				Bounds:     driver.Bounds{X: 100, Y: 200, Width: 300, Height: 60},
				Enabled:    true,
			},
			{
				Attributes: map[string]string{"text": "Login", "resource-id": "login-button"},
				Bounds:     driver.Bounds{X: 100, Y: 400, Width: 300, Height: 80},
				Enabled:    true,
				Clickable:  true,
			},
			{
				Attributes: map[string]string{"text": "Login", "resource-id": "disabled-login"},
				Bounds:     driver.Bounds{X: 500, Y: 400, Width: 300, Height: 80},
				Enabled:    false,
			},
		},
	}
}

func TestBuild_TextMatch(t *testing.T) {
	f := Build(flow.ElementSelector{TextRegex: "Username"})
	n := f.Match(fixture())
	if n == nil || n.Attributes["resource-id"] != "username-field" {
		t.Fatalf("expected username-field match, got %+v", n)
	}
}

func TestBuild_TextMatch_PrefersClickable(t *testing.T) {
	f := Build(flow.ElementSelector{TextRegex: "Login"})
	n := f.Match(fixture())
	if n == nil || n.Attributes["resource-id"] != "login-button" {
		t.Fatalf("expected login-button (clickable) to win, got %+v", n)
	}
}

func TestBuild_IDMatch(t *testing.T) {
	f := Build(flow.ElementSelector{IDRegex: "username\\-field"})
	n := f.Match(fixture())
	if n == nil || n.Attributes["text"] != "Username" {
		t.Fatalf("expected username-field match, got %+v", n)
	}
}

func TestBuild_Enabled(t *testing.T) {
	enabled := false
	f := Build(flow.ElementSelector{TextRegex: "Login", Enabled: &enabled})
	n := f.Match(fixture())
	if n == nil || n.Attributes["resource-id"] != "disabled-login" {
		t.Fatalf("expected disabled-login match, got %+v", n)
	}
}

func TestBuild_Below(t *testing.T) {
	f := Build(flow.ElementSelector{
		TextRegex: "Login",
		Below:     &flow.ElementSelector{TextRegex: "Username"},
	})
	n := f.Match(fixture())
	if n == nil || n.Attributes["resource-id"] != "login-button" {
		t.Fatalf("expected login-button below Username, got %+v", n)
	}
}

func TestBuild_NoMatch(t *testing.T) {
	f := Build(flow.ElementSelector{TextRegex: "Nonexistent"})
	if n := f.Match(fixture()); n != nil {
		t.Fatalf("expected no match, got %+v", n)
	}
}

func TestBuild_Index(t *testing.T) {
	idx := 1
	f := Build(flow.ElementSelector{TextRegex: "Login", Index: &idx})
	n := f.Match(fixture())
	if n == nil || n.Attributes["resource-id"] != "disabled-login" {
		t.Fatalf("expected second Login match (index 1), got %+v", n)
	}
}

func TestBuild_ContainsChild(t *testing.T) {
	root := &driver.Node{
		Attributes: map[string]string{"resource-id": "list-item"},
		Bounds:     driver.Bounds{X: 0, Y: 0, Width: 200, Height: 100},
		Children: []*driver.Node{
			{Attributes: map[string]string{"text": "Item One"}, Bounds: driver.Bounds{X: 10, Y: 10, Width: 50, Height: 20}},
		},
	}
	f := Build(flow.ElementSelector{ContainsChild: &flow.ElementSelector{TextRegex: "Item One"}})
	n := f.Match(root)
	if n == nil || n.Attributes["resource-id"] != "list-item" {
		t.Fatalf("expected list-item to match containsChild, got %+v", n)
	}
}

// containsChild only looks one level down; a match two levels deep belongs
// to containsDescendants.
func TestBuild_ContainsChild_IgnoresGrandchildren(t *testing.T) {
	root := &driver.Node{
		Attributes: map[string]string{"resource-id": "outer"},
		Children: []*driver.Node{
			{
				Attributes: map[string]string{"resource-id": "inner"},
				Children: []*driver.Node{
					{Attributes: map[string]string{"text": "Deep Item"}},
				},
			},
		},
	}

	child := Build(flow.ElementSelector{ContainsChild: &flow.ElementSelector{TextRegex: "Deep Item"}})
	if n := child.Match(root); n == nil || n.Attributes["resource-id"] != "inner" {
		t.Fatalf("expected only the direct parent to match containsChild, got %+v", n)
	}

	descendants := Build(flow.ElementSelector{ContainsDescendants: []*flow.ElementSelector{{TextRegex: "Deep Item"}}})
	if n := descendants.Match(root); n == nil || n.Attributes["resource-id"] != "outer" {
		t.Fatalf("expected containsDescendants to match at any depth, got %+v", n)
	}
}

// textRegex/idRegex matching ignores case, matches across newlines, and
// lets "." match a newline.
func TestBuild_RegexOptions(t *testing.T) {
	root := &driver.Node{
		Children: []*driver.Node{
			{Attributes: map[string]string{"text": "Sign In", "resource-id": "multi"}},
			{Attributes: map[string]string{"text": "first line\nsecond line", "resource-id": "wrapped"}},
		},
	}

	tests := []struct {
		name    string
		pattern string
		wantID  string
	}{
		{"case insensitive", "sign in", "multi"},
		{"dot matches newline", "first line.second line", "wrapped"},
		{"multiline anchors", "^second line$", "wrapped"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Build(flow.ElementSelector{TextRegex: tt.pattern})
			n := f.Match(root)
			if n == nil || n.Attributes["resource-id"] != tt.wantID {
				t.Fatalf("pattern %q: got %+v, want resource-id=%s", tt.pattern, n, tt.wantID)
			}
		})
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"50%", 50, true},
		{"0%", 0, true},
		{"100%", 100, true},
		{"101%", 0, false},
		{"-1%", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParsePercent(tt.in)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("ParsePercent(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
