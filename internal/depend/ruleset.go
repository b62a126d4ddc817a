package depend

import (
	"crypto/sha1"
	"fmt"
	"sort"
	"strings"

	orderedset "github.com/emirpasic/gods/sets/linkedhashset"

	"github.com/muddle-build/muddle/internal/label"
	"github.com/muddle-build/muddle/internal/merrors"
)

// identity is a target/dep label stripped of its tag - the "same artifact,
// any lifecycle stage" grouping that ExpandWildcards needs when a
// required_tag is supplied, per spec.md §4.2.
type identity struct {
	typ    label.Type
	name   string
	role   string
	domain string
}

func identityOf(l label.Label) identity {
	return identity{l.Type, l.Name, l.Role, l.Domain}
}

// RuleSet is an indexed collection of rules keyed by target label, per
// spec.md §4.2. Uses an ordered set (github.com/emirpasic/gods, as the
// teacher's selectionSet does) to keep registration order for deterministic
// iteration over rules and known identities.
type RuleSet struct {
	byTarget map[label.Key]*Rule
	order    *orderedset.Set // of label.Key, insertion order of rules
	idents   map[identity]bool
	identOrd *orderedset.Set // of identity, insertion order
}

// NewRuleSet returns an empty RuleSet.
func NewRuleSet() *RuleSet {
	return &RuleSet{
		byTarget: map[label.Key]*Rule{},
		order:    orderedset.New(),
		idents:   map[identity]bool{},
		identOrd: orderedset.New(),
	}
}

// Add inserts rule, or unions its deps into the existing rule for the same
// target if one is already registered, per spec.md §4.2's add() contract.
func (rs *RuleSet) Add(rule *Rule) {
	key := rule.Target.Key()
	if existing, ok := rs.byTarget[key]; ok {
		for k, d := range rule.Deps {
			existing.Deps[k] = d
		}
		if existing.Action == nil {
			existing.Action = rule.Action
		}
	} else {
		rs.byTarget[key] = rule
		rs.order.Add(key)
	}
	rs.noteIdentity(rule.Target)
	for _, d := range rule.Deps {
		rs.noteIdentity(d)
	}
}

func (rs *RuleSet) noteIdentity(l label.Label) {
	if l.IsWildcard() {
		// Still note the parts that are concrete, so that a wildcard name
		// dep alongside concrete deps of the same type doesn't vanish from
		// the known set; but a fully wildcarded identity carries nothing
		// useful to remember.
		if l.Name == label.Wildcard {
			return
		}
	}
	id := identityOf(l)
	if !rs.idents[id] {
		rs.idents[id] = true
		rs.identOrd.Add(id)
	}
}

// Rules is allRules exported for callers outside this package that need to
// walk every registered rule deterministically (internal/builder's domain
// rewrite, internal/stamp's checkout enumeration).
func (rs *RuleSet) Rules() []*Rule {
	return rs.allRules()
}

// allRules returns every registered rule, in registration order.
func (rs *RuleSet) allRules() []*Rule {
	out := make([]*Rule, 0, rs.order.Size())
	it := rs.order.Iterator()
	for it.Next() {
		out = append(out, rs.byTarget[it.Value().(label.Key)])
	}
	return out
}

// RulesForTarget returns the rule(s) whose target equals L (useMatch=false)
// or matches L (useMatch=true), per spec.md §4.2.
func (rs *RuleSet) RulesForTarget(l label.Label, useMatch bool) []*Rule {
	if !useMatch {
		if r, ok := rs.byTarget[l.Key()]; ok {
			return []*Rule{r}
		}
		return nil
	}
	var matches []*Rule
	for _, r := range rs.allRules() {
		if r.Target.Match(l) != nil {
			matches = append(matches, r)
		}
	}
	return matches
}

// RuleForTarget returns the single unambiguous rule for L, or (nil, false)
// if there is none or more than one.
func (rs *RuleSet) RuleForTarget(l label.Label) (*Rule, bool) {
	rules := rs.RulesForTarget(l, false)
	if len(rules) == 1 {
		return rules[0], true
	}
	return nil, false
}

// TargetsMatch returns all known registered targets matching l, per
// spec.md §4.2.
func (rs *RuleSet) TargetsMatch(l label.Label) []label.Label {
	var out []label.Label
	for _, r := range rs.allRules() {
		if l.Match(r.Target) != nil {
			out = append(out, r.Target)
		}
	}
	sort.Slice(out, func(i, j int) bool { return label.Less(out[i], out[j]) })
	return out
}

// ExpandWildcards substitutes, in the set of known identities of the same
// type as pattern, every identity pattern matches - per spec.md §4.2. If
// pattern is already definite, it is returned unchanged as the sole result.
// If requiredTag is non-empty and pattern.Tag is the wildcard, the tag of
// every expansion is forced to requiredTag rather than left at whatever the
// matched identity's natural tag would be (identities don't carry a tag at
// all; requiredTag is what lets callers ask "the same artifacts, but at
// this lifecycle stage").
func (rs *RuleSet) ExpandWildcards(pattern label.Label, requiredTag string) []label.Label {
	if pattern.IsDefinite() {
		return []label.Label{pattern}
	}

	matchPattern := pattern
	rewriteTag := requiredTag != "" && pattern.Tag == label.Wildcard
	if rewriteTag {
		matchPattern = pattern.CopyWithTag(label.Wildcard)
	}

	seen := map[label.Key]bool{}
	var out []label.Label
	it := rs.identOrd.Iterator()
	for it.Next() {
		id := it.Value().(identity)
		if id.typ != pattern.Type {
			continue
		}
		candidate := label.New(id.typ, id.name, id.role, pattern.Tag, id.domain)
		if rewriteTag {
			candidate = candidate.CopyWithTag(requiredTag)
		}
		if matchPattern.Match(candidate) == nil {
			continue
		}
		key := candidate.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, candidate)
	}
	sort.Slice(out, func(i, j int) bool { return label.Less(out[i], out[j]) })
	return out
}

// WildcardRulesMatching returns every registered rule whose target is
// wildcarded and matches target, in target order - used by the tag store's
// set_rule_done to find the wildcard rules that "realise" a given concrete
// label, per spec.md §4.3.
func (rs *RuleSet) WildcardRulesMatching(target label.Label) []*Rule {
	var out []*Rule
	for _, r := range rs.allRules() {
		if r.Target.IsWildcard() && r.Target.Match(target) != nil {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return label.Less(out[i].Target, out[j].Target) })
	return out
}

// expandDep turns a (possibly wildcarded) dependency label into the
// concrete labels it stands for, for graph traversal purposes: the dep's
// own tag is used as-is (no requiredTag rewrite - a rule declares exactly
// which tag it depends on).
func (rs *RuleSet) expandDep(dep label.Label) []label.Label {
	return rs.ExpandWildcards(dep, "")
}

// NeededToBuild returns a topologically ordered list of rules whose targets
// are the transitive prerequisites of target, with (a rule matching) target
// last, per spec.md §4.2/§8 scenario 1. Cycles are reported as a user
// error (GiveUp), per spec.md §4.2.
func (rs *RuleSet) NeededToBuild(target label.Label, useMatch bool) ([]*Rule, error) {
	rules := rs.RulesForTarget(target, useMatch)
	if len(rules) == 0 {
		return nil, nil
	}
	sort.Slice(rules, func(i, j int) bool { return label.Less(rules[i].Target, rules[j].Target) })

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[label.Key]int{}
	var order []*Rule

	var visit func(r *Rule) error
	visit = func(r *Rule) error {
		key := r.Target.Key()
		switch color[key] {
		case black:
			return nil
		case gray:
			return merrors.NewGiveUp("dependency cycle detected at rule target %s", r.Target)
		}
		color[key] = gray
		for _, dep := range r.sortedDeps() {
			for _, concreteDep := range rs.expandDep(dep) {
				depRules := rs.RulesForTarget(concreteDep, false)
				if len(depRules) == 0 {
					depRules = rs.RulesForTarget(concreteDep, true)
				}
				for _, dr := range depRules {
					if err := visit(dr); err != nil {
						return err
					}
				}
			}
		}
		color[key] = black
		order = append(order, r)
		return nil
	}

	for _, r := range rules {
		if err := visit(r); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// RequiredBy returns the set of labels that (transitively) depend on
// target, per spec.md §4.2/§8: L is in RequiredBy(K) iff K is in
// NeededToBuild(L).
func (rs *RuleSet) RequiredBy(target label.Label) []label.Label {
	visited := map[label.Key]bool{target.Key(): true}
	queue := []label.Label{target}
	var result []label.Label

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, r := range rs.allRules() {
			if visited[r.Target.Key()] {
				continue
			}
			for _, dep := range r.sortedDeps() {
				for _, concreteDep := range rs.expandDep(dep) {
					if concreteDep.Equal(cur) {
						visited[r.Target.Key()] = true
						result = append(result, r.Target)
						queue = append(queue, r.Target)
						break
					}
				}
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return label.Less(result[i], result[j]) })
	return result
}

// Fingerprint returns a stable SHA-1 digest of every registered rule's
// target and deps, in registration order - used by internal/tagdb's rule
// cache to detect when a previously computed needed_to_build order has gone
// stale (spec.md §3 supplement, grounded on original_source's rules_cache.py).
func (rs *RuleSet) Fingerprint() string {
	var b strings.Builder
	for _, r := range rs.allRules() {
		b.WriteString(r.Target.String())
		b.WriteByte('<')
		for _, d := range r.sortedDeps() {
			b.WriteString(d.String())
			b.WriteByte(',')
		}
		b.WriteString(">;")
	}
	sum := sha1.Sum([]byte(b.String()))
	return fmt.Sprintf("%x", sum)
}

// Unify replaces every occurrence of source (as a rule's target, or as any
// rule's dep) with target, throughout the ruleset - spec.md §4.5's builder
// operation `unify(source_label, target_label)`. Must be a total
// substitution: a rule registered under source is re-keyed to target
// (merging with any rule already at target, the same way Add merges), and
// every dep equal to source anywhere is rewritten to target. Also updates
// the known-identity set so ExpandWildcards sees the unified shape.
func (rs *RuleSet) Unify(source, target label.Label) {
	if source.Equal(target) {
		return
	}

	if old, ok := rs.byTarget[source.Key()]; ok {
		delete(rs.byTarget, source.Key())
		rs.order.Remove(source.Key())
		old.Target = target
		rs.Add(old)
	}

	for _, r := range rs.allRules() {
		for depKey, dep := range r.Deps {
			if dep.Equal(source) {
				delete(r.Deps, depKey)
				r.Deps[target.Key()] = target
			}
		}
	}

	rs.noteIdentity(target)
}

// UnusedLabels returns every identity known to the ruleset (as a target or
// a dep) that is neither a registered rule target nor named as a dep of any
// registered rule target that is itself reachable from some definite,
// registered target - i.e. labels the build description mentioned that
// nothing in the graph actually needs. This realises the "unused-label
// analysis" named in spec.md §4.2's component description.
func (rs *RuleSet) UnusedLabels() []label.Label {
	reachable := map[label.Key]bool{}
	for _, r := range rs.allRules() {
		if !r.Target.IsDefinite() {
			continue
		}
		needed, err := rs.NeededToBuild(r.Target, false)
		if err != nil {
			continue
		}
		for _, n := range needed {
			reachable[n.Target.Key()] = true
		}
	}
	var unused []label.Label
	for _, r := range rs.allRules() {
		if r.Target.IsDefinite() && !reachable[r.Target.Key()] {
			unused = append(unused, r.Target)
		}
	}
	sort.Slice(unused, func(i, j int) bool { return label.Less(unused[i], unused[j]) })
	return unused
}
