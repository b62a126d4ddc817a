// Package licensepolicy loads an optional `.muddle/license_policy.toml`
// file that supplements the license exception tables a build description
// registers in code, per SPEC_FULL.md §2. This has no direct counterpart
// in original_source/muddled/licenses.py (its exception tables are
// code-only); a checked-in policy file lets a release engineer override
// them without editing the build description.
package licensepolicy

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/muddle-build/muddle/internal/label"
	"github.com/muddle-build/muddle/internal/license"
	"github.com/muddle-build/muddle/internal/merrors"
)

// Policy is the decoded shape of license_policy.toml.
type Policy struct {
	NotAffectedBy        []Exception `toml:"not_affected_by"`
	NothingBuildsAgainst []string    `toml:"nothing_builds_against"`
}

// Exception is one [[not_affected_by]] table: subject is exempted from
// gpl_checkout's propagation.
type Exception struct {
	Subject     string `toml:"subject"`
	GPLCheckout string `toml:"gpl_checkout"`
}

// Load parses path into a Policy. license_policy.toml is optional: a
// missing file is returned as the unwrapped open error, so callers can test
// it with os.IsNotExist to tell "absent" from a parse failure (which is
// reported as a GiveUp).
func Load(path string) (*Policy, error) {
	var p Policy
	if _, err := toml.DecodeFile(path, &p); err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, merrors.NewGiveUp("parsing %s: %v", path, err)
	}
	return &p, nil
}

// Apply registers every exception and nothing_builds_against entry in p
// against reg, parsing each label text with label.Parse using checkout
// defaults (labels in a policy file are always checkouts).
func (p *Policy) Apply(reg *license.Registry) error {
	defaults := label.Defaults{Type: label.Checkout, Tag: label.CheckedOut}
	for _, exc := range p.NotAffectedBy {
		subject, err := label.Parse(exc.Subject, defaults)
		if err != nil {
			return merrors.NewGiveUp("license_policy.toml: not_affected_by.subject: %v", err)
		}
		gplCheckout, err := label.Parse(exc.GPLCheckout, defaults)
		if err != nil {
			return merrors.NewGiveUp("license_policy.toml: not_affected_by.gpl_checkout: %v", err)
		}
		reg.AddNotAffectedBy(subject, gplCheckout)
	}
	for _, text := range p.NothingBuildsAgainst {
		l, err := label.Parse(text, defaults)
		if err != nil {
			return merrors.NewGiveUp("license_policy.toml: nothing_builds_against: %v", err)
		}
		reg.MarkNothingBuildsAgainst(l)
	}
	return nil
}

// LoadAndApply is the common case: load path if present and apply it to
// reg; a missing file is treated as an empty policy.
func LoadAndApply(path string, reg *license.Registry) error {
	p, err := Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return p.Apply(reg)
}
