package depend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/muddle-build/muddle/internal/action"
	"github.com/muddle-build/muddle/internal/label"
)

func mklabel(t label.Type, name, role, tag string) label.Label {
	return label.New(t, name, role, tag, "")
}

// TestScenario1BasicRuleset is spec.md §8 scenario 1.
func TestScenario1BasicRuleset(t *testing.T) {
	l1 := mklabel(label.Checkout, "co_1", "role_1", label.CheckedOut)
	l2 := mklabel(label.Checkout, "co_1", "role_1", label.Pulled)
	l3 := mklabel(label.Package, "pkg_1", "role_1", label.PreConfig)
	l4 := mklabel(label.Deployment, "dep_1", "role_2", label.Built)

	rs := NewRuleSet()
	rs.Add(NewRule(l1, action.NoOp{}))
	rs.Add(NewRule(l2, action.NoOp{}, l1))
	rs.Add(NewRule(l3, action.NoOp{}, l2))
	rs.Add(NewRule(l4, action.NoOp{}, l3, l2))

	order, err := rs.NeededToBuild(l4, false)
	assert.NoError(t, err)

	var gotTargets []label.Label
	for _, r := range order {
		gotTargets = append(gotTargets, r.Target)
	}
	assert.Equal(t, []label.Label{l1, l2, l3, l4}, gotTargets)
}

func TestNeededToBuildDetectsCycles(t *testing.T) {
	a := mklabel(label.Package, "a", "", label.Built)
	b := mklabel(label.Package, "b", "", label.Built)

	rs := NewRuleSet()
	rs.Add(NewRule(a, action.NoOp{}, b))
	rs.Add(NewRule(b, action.NoOp{}, a))

	_, err := rs.NeededToBuild(a, false)
	assert.Error(t, err)
}

func TestRequiredByIsInverseOfNeededToBuild(t *testing.T) {
	l1 := mklabel(label.Checkout, "co_1", "role_1", label.CheckedOut)
	l2 := mklabel(label.Checkout, "co_1", "role_1", label.Pulled)
	l3 := mklabel(label.Package, "pkg_1", "role_1", label.PreConfig)
	l4 := mklabel(label.Deployment, "dep_1", "role_2", label.Built)

	rs := NewRuleSet()
	rs.Add(NewRule(l1, action.NoOp{}))
	rs.Add(NewRule(l2, action.NoOp{}, l1))
	rs.Add(NewRule(l3, action.NoOp{}, l2))
	rs.Add(NewRule(l4, action.NoOp{}, l3, l2))

	all := []label.Label{l1, l2, l3, l4}
	for _, k := range all {
		for _, l := range all {
			reqBy := rs.RequiredBy(k)
			needed, err := rs.NeededToBuild(l, false)
			assert.NoError(t, err)

			lInReqBy := containsLabel(reqBy, l)
			kInNeeded := false
			for _, r := range needed {
				if r.Target.Equal(k) {
					kInNeeded = true
				}
			}
			assert.Equal(t, kInNeeded, lInReqBy, "K=%s L=%s", k, l)
		}
	}
}

func containsLabel(set []label.Label, l label.Label) bool {
	for _, s := range set {
		if s.Equal(l) {
			return true
		}
	}
	return false
}

func TestExpandWildcardsRewritesTagOnly(t *testing.T) {
	rs := NewRuleSet()
	rs.Add(NewRule(mklabel(label.Package, "a", "role_1", label.PreConfig), action.NoOp{}))
	rs.Add(NewRule(mklabel(label.Package, "b", "role_1", label.PreConfig), action.NoOp{}))

	pattern := label.New(label.Package, label.Wildcard, "role_1", label.Wildcard, "")
	expanded := rs.ExpandWildcards(pattern, label.Built)

	assert.Len(t, expanded, 2)
	for _, e := range expanded {
		assert.Equal(t, label.Built, e.Tag)
	}
}

func TestWildcardMatchScenario2(t *testing.T) {
	a := label.New(label.Package, label.Wildcard, "role_1", label.PreConfig, "")
	b := label.New(label.Package, "pkg_1", "role_1", label.PreConfig, "")

	rs := NewRuleSet()
	rs.Add(NewRule(a, action.NoOp{}))

	// Matching is symmetric regardless of which side carries the wildcard
	// (spec.md §8 Scenario 2), so a concrete query label finds a registered
	// wildcard target just as readily as a wildcard query finds itself.
	matches := rs.TargetsMatch(b)
	if assert.Len(t, matches, 1) {
		assert.True(t, matches[0].Equal(a))
	}

	matches2 := rs.TargetsMatch(a)
	if assert.Len(t, matches2, 1) {
		assert.True(t, matches2[0].Equal(a))
	}
}
