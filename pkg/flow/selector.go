package flow

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Size constrains a matched element's bounds to width×height within
// ±Tolerance pixels.
type Size struct {
	Width, Height, Tolerance int
}

// ElementSelector declares, independently-composable, the criteria an
// element must satisfy. Every field is optional; the Selector Filter
// Builder (pkg/selector) AND-combines whichever are set.
type ElementSelector struct {
	TextRegex string
	IDRegex   string
	Size      *Size

	Below               *ElementSelector
	Above               *ElementSelector
	LeftOf              *ElementSelector
	RightOf             *ElementSelector
	ContainsChild       *ElementSelector
	ContainsDescendants []*ElementSelector

	Traits []string

	Enabled  *bool
	Selected *bool
	Checked  *bool
	Focused  *bool

	Index *int

	Optional bool
}

// selectorRaw mirrors ElementSelector for YAML decoding, supporting the
// scalar-or-struct convenience ("tapOn: Login" as shorthand for
// "tapOn: {text: Login}") and an "element"/"text" alias.
type selectorRaw struct {
	Text                string         `yaml:"text"`
	Element             string         `yaml:"element"`
	TextRegex           string         `yaml:"textRegex"`
	ID                  string         `yaml:"id"`
	IDRegex             string         `yaml:"idRegex"`
	Width               int            `yaml:"width"`
	Height              int            `yaml:"height"`
	Tolerance           int            `yaml:"tolerance"`
	Below               *selectorRaw   `yaml:"below"`
	Above               *selectorRaw   `yaml:"above"`
	LeftOf              *selectorRaw   `yaml:"leftOf"`
	RightOf             *selectorRaw   `yaml:"rightOf"`
	ContainsChild       *selectorRaw   `yaml:"containsChild"`
	ContainsDescendants []*selectorRaw `yaml:"containsDescendants"`
	Traits              string         `yaml:"traits"`
	Enabled             *bool          `yaml:"enabled"`
	Selected            *bool          `yaml:"selected"`
	Checked             *bool          `yaml:"checked"`
	Focused             *bool          `yaml:"focused"`
	Index               *int           `yaml:"index"`
	Optional            bool           `yaml:"optional"`
}

// UnmarshalYAML accepts a bare scalar as shorthand for {text: <scalar>}.
func (r *selectorRaw) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		*r = selectorRaw{Text: n.Value}
		return nil
	}
	type plain selectorRaw
	return n.Decode((*plain)(r))
}

func (r *selectorRaw) toSelector() ElementSelector {
	s := ElementSelector{
		TextRegex: r.TextRegex,
		IDRegex:   r.IDRegex,
		Enabled:   r.Enabled,
		Selected:  r.Selected,
		Checked:   r.Checked,
		Focused:   r.Focused,
		Index:     r.Index,
		Optional:  r.Optional,
	}
	text := r.Text
	if text == "" {
		text = r.Element
	}
	// A bare "text" field matches literally; textRegex is the explicit
	// regex form. When only "text" is given we escape it into a literal
	// pattern, so the same matcher code path (regex-based) serves both; the
	// pattern is not anchored, so it matches anywhere in the attribute.
	if text != "" && s.TextRegex == "" {
		s.TextRegex = regexEscape(text)
	}
	if r.ID != "" && s.IDRegex == "" {
		s.IDRegex = regexEscape(r.ID)
	}
	if r.Width != 0 || r.Height != 0 {
		s.Size = &Size{Width: r.Width, Height: r.Height, Tolerance: r.Tolerance}
	}
	if r.Below != nil {
		sub := r.Below.toSelector()
		s.Below = &sub
	}
	if r.Above != nil {
		sub := r.Above.toSelector()
		s.Above = &sub
	}
	if r.LeftOf != nil {
		sub := r.LeftOf.toSelector()
		s.LeftOf = &sub
	}
	if r.RightOf != nil {
		sub := r.RightOf.toSelector()
		s.RightOf = &sub
	}
	if r.ContainsChild != nil {
		sub := r.ContainsChild.toSelector()
		s.ContainsChild = &sub
	}
	for _, cd := range r.ContainsDescendants {
		sub := cd.toSelector()
		s.ContainsDescendants = append(s.ContainsDescendants, &sub)
	}
	if r.Traits != "" {
		for _, t := range strings.Split(r.Traits, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				s.Traits = append(s.Traits, t)
			}
		}
	}
	return s
}

func regexEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`\.+*?()|[]{}^$-`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsEmpty reports whether no selector criteria are set at all.
func (s *ElementSelector) IsEmpty() bool {
	return s.TextRegex == "" &&
		s.IDRegex == "" &&
		s.Size == nil &&
		s.Below == nil &&
		s.Above == nil &&
		s.LeftOf == nil &&
		s.RightOf == nil &&
		s.ContainsChild == nil &&
		len(s.ContainsDescendants) == 0 &&
		len(s.Traits) == 0
}

// Describe returns a human-readable, order-stable description used in error
// messages: constraints accumulate in the order added, joined with ", ".
func (s *ElementSelector) Describe() string {
	var parts []string
	if s.TextRegex != "" {
		parts = append(parts, "text="+s.TextRegex)
	}
	if s.IDRegex != "" {
		parts = append(parts, "id="+s.IDRegex)
	}
	if s.Size != nil {
		parts = append(parts, "size="+strconv.Itoa(s.Size.Width)+"x"+strconv.Itoa(s.Size.Height))
	}
	if s.Below != nil {
		parts = append(parts, "below("+s.Below.Describe()+")")
	}
	if s.Above != nil {
		parts = append(parts, "above("+s.Above.Describe()+")")
	}
	if s.LeftOf != nil {
		parts = append(parts, "leftOf("+s.LeftOf.Describe()+")")
	}
	if s.RightOf != nil {
		parts = append(parts, "rightOf("+s.RightOf.Describe()+")")
	}
	if s.ContainsChild != nil {
		parts = append(parts, "containsChild("+s.ContainsChild.Describe()+")")
	}
	for _, cd := range s.ContainsDescendants {
		parts = append(parts, "containsDescendants("+cd.Describe()+")")
	}
	if len(s.Traits) > 0 {
		parts = append(parts, "traits="+strings.Join(s.Traits, "+"))
	}
	if s.Enabled != nil {
		parts = append(parts, boolPart("enabled", *s.Enabled))
	}
	if s.Selected != nil {
		parts = append(parts, boolPart("selected", *s.Selected))
	}
	if s.Checked != nil {
		parts = append(parts, boolPart("checked", *s.Checked))
	}
	if s.Focused != nil {
		parts = append(parts, boolPart("focused", *s.Focused))
	}
	if s.Index != nil {
		parts = append(parts, "index="+strconv.Itoa(*s.Index))
	}
	if len(parts) == 0 {
		return "<any>"
	}
	return strings.Join(parts, ", ")
}

func boolPart(name string, v bool) string {
	if v {
		return name
	}
	return "!" + name
}

// Condition gates AssertCondition, Repeat's While, and RunFlow's When. All
// set sub-conditions are AND-combined.
type Condition struct {
	Platform     string // IOS, ANDROID, WEB
	Visible      *ElementSelector
	NotVisible   *ElementSelector
	ScriptResult string // evaluated result string, judged by the falsey-string rules
}

// IsZero reports whether no sub-condition is set (a null condition, which
// is always true).
func (c *Condition) IsZero() bool {
	return c == nil || (c.Platform == "" && c.Visible == nil && c.NotVisible == nil && c.ScriptResult == "")
}
