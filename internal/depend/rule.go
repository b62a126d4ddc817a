// Package depend implements the rule/ruleset model (C4) and the dependency
// engine built on it (C6): transitive predecessors and successors, wildcard
// expansion, and unused-label analysis, per spec.md §4.2. Grounded on the
// teacher's selectionSet / orderedStringSet idiom (surgeon/selection.go,
// which wraps github.com/emirpasic/gods to keep iteration order
// deterministic) and on original_source/muddled's (inferred) depend.py
// Rule/RuleSet/Label-matching model described in spec.md §3/§4.
package depend

import (
	"sort"

	"github.com/muddle-build/muddle/internal/action"
	"github.com/muddle-build/muddle/internal/label"
)

// Rule is (target label, action, set of dep labels), per spec.md §3.
type Rule struct {
	Target label.Label
	Action action.Action // nil is permitted ("action: Action | none")
	Deps   map[label.Key]label.Label
}

// NewRule builds a Rule with a fresh, empty dep set.
func NewRule(target label.Label, act action.Action, deps ...label.Label) *Rule {
	r := &Rule{Target: target, Action: act, Deps: map[label.Key]label.Label{}}
	for _, d := range deps {
		r.Deps[d.Key()] = d
	}
	return r
}

// AddDep records an additional dependency.
func (r *Rule) AddDep(d label.Label) {
	r.Deps[d.Key()] = d
}

// sortedDeps returns Deps in a stable, deterministic order.
func (r *Rule) sortedDeps() []label.Label {
	out := make([]label.Label, 0, len(r.Deps))
	for _, d := range r.Deps {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return label.Less(out[i], out[j]) })
	return out
}

// DepsList is sortedDeps exported for callers outside this package (the
// scheduler and tag store need to walk a rule's deps deterministically too).
func (r *Rule) DepsList() []label.Label {
	return r.sortedDeps()
}

// RequiresMaster reports whether this rule's action (if any) must run only
// on the scheduler's master process.
func (r *Rule) RequiresMaster() bool {
	return r.Action != nil && r.Action.RequiresMaster()
}
