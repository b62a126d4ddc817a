// rules_cache.py's Go equivalent: a small YAML side-cache of the last
// computed needed_to_build traversal, invalidated whenever the ruleset's
// Fingerprint changes. Not a second source of truth - only a memo of a
// computation the store could always redo, per SPEC_FULL.md §4.
package tagdb

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/muddle-build/muddle/internal/depend"
	"github.com/muddle-build/muddle/internal/label"
)

// RuleCache is the on-disk cache format: the ruleset fingerprint it was
// computed against, the target it was computed for, and the resulting
// target order.
type RuleCache struct {
	Fingerprint string   `yaml:"fingerprint"`
	Target      string   `yaml:"target"`
	Order       []string `yaml:"order"`
}

// LoadRuleCache reads path, returning (nil, nil) if it doesn't exist yet.
func LoadRuleCache(path string) (*RuleCache, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tagdb: reading rule cache %s: %w", path, err)
	}
	var rc RuleCache
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("tagdb: parsing rule cache %s: %w", path, err)
	}
	return &rc, nil
}

// Save writes rc to path as YAML.
func (rc *RuleCache) Save(path string) error {
	data, err := yaml.Marshal(rc)
	if err != nil {
		return fmt.Errorf("tagdb: marshalling rule cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("tagdb: writing rule cache %s: %w", path, err)
	}
	return nil
}

// Valid reports whether rc still matches rs and was computed for target.
func (rc *RuleCache) Valid(rs *depend.RuleSet, target label.Label) bool {
	return rc != nil && rc.Fingerprint == rs.Fingerprint() && rc.Target == target.String()
}

// Rules resolves the cached target-text order back into *depend.Rule
// values against rs. If any cached target fails to parse or is no longer
// known to rs, it returns (nil, false), which NeededToBuildCached treats as
// a cache miss.
func (rc *RuleCache) Rules(rs *depend.RuleSet) ([]*depend.Rule, bool) {
	out := make([]*depend.Rule, 0, len(rc.Order))
	for _, text := range rc.Order {
		l, err := label.Parse(text, label.Defaults{})
		if err != nil {
			return nil, false
		}
		r, ok := rs.RuleForTarget(l)
		if !ok {
			return nil, false
		}
		out = append(out, r)
	}
	return out, true
}

// NeededToBuildCached returns rs.NeededToBuild(target, false), transparently
// consulting and refreshing the cache file at cachePath.
func NeededToBuildCached(rs *depend.RuleSet, target label.Label, cachePath string) ([]*depend.Rule, error) {
	if cached, err := LoadRuleCache(cachePath); err == nil && cached.Valid(rs, target) {
		if rules, ok := cached.Rules(rs); ok {
			return rules, nil
		}
	}

	order, err := rs.NeededToBuild(target, false)
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(order))
	for _, r := range order {
		texts = append(texts, r.Target.String())
	}
	rc := &RuleCache{Fingerprint: rs.Fingerprint(), Target: target.String(), Order: texts}
	_ = rc.Save(cachePath) // best-effort: a failed cache write never blocks a build

	return order, nil
}
