// Package selector turns a flow.ElementSelector into a compiled
// driver.Filter: a (description, predicate) pair that walks a view
// hierarchy and returns the matched node, if any. Every present
// constraint on the selector is AND-combined; relative constraints
// (below/above/leftOf/rightOf/containsChild/containsDescendants) recurse
// through this same builder to resolve their anchor.
package selector

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/timehop/maestro/pkg/driver"
	"github.com/timehop/maestro/pkg/flow"
)

// regexOptions mirrors the orchestra's REGEX_OPTIONS knob: case-insensitive,
// dot-matches-newline, multiline.
const regexOptions = regexp2.IgnoreCase | regexp2.Singleline | regexp2.Multiline

// traitPredicates maps a selector trait name onto a node predicate. New
// traits are added here as backends surface more element classes.
var traitPredicates = map[string]func(n *driver.Node) bool{
	"text":      func(n *driver.Node) bool { return n.Attributes["text"] != "" },
	"enabled":   func(n *driver.Node) bool { return n.Enabled },
	"clickable": func(n *driver.Node) bool { return n.Clickable },
}

// Build compiles sel into a driver.Filter.
func Build(sel flow.ElementSelector) driver.Filter {
	desc := sel.Describe()
	return driver.Filter{
		Description: desc,
		Match: func(root *driver.Node) *driver.Node {
			nodes := flatten(root)
			matches := filterAll(nodes, sel)
			return choose(matches, sel)
		},
	}
}

func flatten(root *driver.Node) []*driver.Node {
	if root == nil {
		return nil
	}
	result := []*driver.Node{root}
	for _, c := range root.Children {
		result = append(result, flatten(c)...)
	}
	return result
}

func filterAll(nodes []*driver.Node, sel flow.ElementSelector) []*driver.Node {
	result := nodes

	if sel.TextRegex != "" {
		result = filterText(result, sel.TextRegex)
	}
	if sel.IDRegex != "" {
		result = filterID(result, sel.IDRegex)
	}
	if sel.Size != nil {
		result = filterSize(result, *sel.Size)
	}
	if sel.Below != nil {
		if anchor := resolveAnchor(nodes, *sel.Below); anchor != nil {
			result = intersect(result, below(nodes, anchor))
		} else {
			result = nil
		}
	}
	if sel.Above != nil {
		if anchor := resolveAnchor(nodes, *sel.Above); anchor != nil {
			result = intersect(result, above(nodes, anchor))
		} else {
			result = nil
		}
	}
	if sel.LeftOf != nil {
		if anchor := resolveAnchor(nodes, *sel.LeftOf); anchor != nil {
			result = intersect(result, leftOf(nodes, anchor))
		} else {
			result = nil
		}
	}
	if sel.RightOf != nil {
		if anchor := resolveAnchor(nodes, *sel.RightOf); anchor != nil {
			result = intersect(result, rightOf(nodes, anchor))
		} else {
			result = nil
		}
	}
	if sel.ContainsChild != nil {
		result = filterFunc(result, func(n *driver.Node) bool {
			return containsMatch(n, 1, *sel.ContainsChild)
		})
	}
	for _, desc := range sel.ContainsDescendants {
		d := *desc
		result = filterFunc(result, func(n *driver.Node) bool {
			return containsMatch(n, -1, d)
		})
	}
	for _, trait := range sel.Traits {
		if pred, ok := traitPredicates[trait]; ok {
			result = filterFunc(result, pred)
		}
	}
	if sel.Enabled != nil {
		want := *sel.Enabled
		result = filterFunc(result, func(n *driver.Node) bool { return n.Enabled == want })
	}
	if sel.Selected != nil {
		want := *sel.Selected
		result = filterFunc(result, func(n *driver.Node) bool { return n.Selected == want })
	}
	if sel.Checked != nil {
		want := *sel.Checked
		result = filterFunc(result, func(n *driver.Node) bool { return n.Checked == want })
	}
	if sel.Focused != nil {
		want := *sel.Focused
		result = filterFunc(result, func(n *driver.Node) bool { return n.Focused == want })
	}

	return result
}

// choose applies the index selector if present, else prefers the first
// clickable candidate, else the first match.
func choose(nodes []*driver.Node, sel flow.ElementSelector) *driver.Node {
	if len(nodes) == 0 {
		return nil
	}
	if sel.Index != nil {
		if *sel.Index < 0 || *sel.Index >= len(nodes) {
			return nil
		}
		return nodes[*sel.Index]
	}
	for _, n := range nodes {
		if n.Clickable {
			return n
		}
	}
	return nodes[0]
}

func resolveAnchor(nodes []*driver.Node, sub flow.ElementSelector) *driver.Node {
	return choose(filterAll(nodes, sub), sub)
}

func filterFunc(nodes []*driver.Node, pred func(*driver.Node) bool) []*driver.Node {
	var result []*driver.Node
	for _, n := range nodes {
		if pred(n) {
			result = append(result, n)
		}
	}
	return result
}

func intersect(a, b []*driver.Node) []*driver.Node {
	set := make(map[*driver.Node]bool, len(b))
	for _, n := range b {
		set[n] = true
	}
	var result []*driver.Node
	for _, n := range a {
		if set[n] {
			result = append(result, n)
		}
	}
	return result
}

func filterText(nodes []*driver.Node, pattern string) []*driver.Node {
	re, err := regexp2.Compile(pattern, regexOptions)
	if err != nil {
		return nil
	}
	return filterFunc(nodes, func(n *driver.Node) bool {
		for _, key := range []string{"text", "content-desc", "hint"} {
			if v := n.Attributes[key]; v != "" && matchesRegex(re, v) {
				return true
			}
		}
		return false
	})
}

func filterID(nodes []*driver.Node, pattern string) []*driver.Node {
	re, err := regexp2.Compile(pattern, regexOptions)
	if err != nil {
		return nil
	}
	return filterFunc(nodes, func(n *driver.Node) bool {
		id := n.Attributes["resource-id"]
		return id != "" && matchesRegex(re, id)
	})
}

func matchesRegex(re *regexp2.Regexp, s string) bool {
	if ok, _ := re.MatchString(s); ok {
		return true
	}
	stripped := strings.ReplaceAll(s, "\n", " ")
	ok, _ := re.MatchString(stripped)
	return ok
}

func filterSize(nodes []*driver.Node, size flow.Size) []*driver.Node {
	tolerance := size.Tolerance
	if tolerance == 0 {
		tolerance = 5
	}
	return filterFunc(nodes, func(n *driver.Node) bool {
		if size.Width > 0 && !withinTolerance(n.Bounds.Width, size.Width, tolerance) {
			return false
		}
		if size.Height > 0 && !withinTolerance(n.Bounds.Height, size.Height, tolerance) {
			return false
		}
		return true
	})
}

func withinTolerance(actual, expected, tolerance int) bool {
	diff := actual - expected
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

func below(nodes []*driver.Node, anchor *driver.Node) []*driver.Node {
	anchorBottom := anchor.Bounds.Y + anchor.Bounds.Height
	result := filterFunc(nodes, func(n *driver.Node) bool { return n.Bounds.Y >= anchorBottom })
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Bounds.Y-anchorBottom < result[j].Bounds.Y-anchorBottom
	})
	return result
}

func above(nodes []*driver.Node, anchor *driver.Node) []*driver.Node {
	anchorTop := anchor.Bounds.Y
	result := filterFunc(nodes, func(n *driver.Node) bool {
		return n.Bounds.Y+n.Bounds.Height <= anchorTop
	})
	sort.SliceStable(result, func(i, j int) bool {
		bi := result[i].Bounds.Y + result[i].Bounds.Height
		bj := result[j].Bounds.Y + result[j].Bounds.Height
		return anchorTop-bi < anchorTop-bj
	})
	return result
}

func leftOf(nodes []*driver.Node, anchor *driver.Node) []*driver.Node {
	anchorLeft := anchor.Bounds.X
	result := filterFunc(nodes, func(n *driver.Node) bool {
		return n.Bounds.X+n.Bounds.Width <= anchorLeft
	})
	sort.SliceStable(result, func(i, j int) bool {
		ri := result[i].Bounds.X + result[i].Bounds.Width
		rj := result[j].Bounds.X + result[j].Bounds.Width
		return anchorLeft-ri < anchorLeft-rj
	})
	return result
}

func rightOf(nodes []*driver.Node, anchor *driver.Node) []*driver.Node {
	anchorRight := anchor.Bounds.X + anchor.Bounds.Width
	result := filterFunc(nodes, func(n *driver.Node) bool { return n.Bounds.X >= anchorRight })
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Bounds.X-anchorRight < result[j].Bounds.X-anchorRight
	})
	return result
}

// containsMatch reports whether n has a descendant matching sub, within
// maxDepth levels (-1 means unbounded, for containsDescendants).
func containsMatch(n *driver.Node, maxDepth int, sub flow.ElementSelector) bool {
	var descendants []*driver.Node
	var walk func(node *driver.Node, depth int)
	walk = func(node *driver.Node, depth int) {
		if maxDepth >= 0 && depth >= maxDepth {
			return
		}
		for _, c := range node.Children {
			descendants = append(descendants, c)
			walk(c, depth+1)
		}
	}
	walk(n, 0)
	return choose(filterAll(descendants, sub), sub) != nil
}

// ParsePercent parses a "N%" component into an integer percent in [0,100].
// Used by the executor for tapOnPointV2 and swipe relative-point forms.
func ParsePercent(s string) (int, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > 100 {
		return 0, false
	}
	return n, true
}
