// Package license implements license bookkeeping (C11): registering a
// license per checkout, propagation exceptions, the implicit-GPL set, and
// clash detection, per spec.md §3/§4.8.
package license

import (
	"sort"

	"github.com/muddle-build/muddle/internal/depend"
	"github.com/muddle-build/muddle/internal/label"
)

// Category is one of spec.md §3's five license categories.
type Category string

const (
	GPL        Category = "gpl"
	OpenSource Category = "open-source"
	PropSource Category = "prop-source"
	Binary     Category = "binary"
	Private    Category = "private"
)

// License is spec.md §3's license value: name, category, optional version,
// and for GPL, whether an exception clause exempts it from propagating.
type License struct {
	Name          string
	Category      Category
	Version       string
	WithException bool
}

// PropagatesGPL reports whether this license causes GPL propagation to
// dependents - true for plain GPL, false for GPL-with-exception and every
// other category.
func (l License) PropagatesGPL() bool {
	return l.Category == GPL && !l.WithException
}

// Registry holds every checkout's registered license, its license-file
// path, the license_not_affected_by exception table, and the
// nothing_builds_against set, per spec.md §3.
type Registry struct {
	licenses     map[label.Key]License
	licenseFiles map[label.Key]string

	// notAffectedBy[subject][gplCheckout] records that GPL propagation from
	// gplCheckout to subject is asserted not to apply.
	notAffectedBy map[label.Key]map[label.Key]bool

	nothingBuildsAgainst map[label.Key]bool
}

// NewRegistry returns an empty license Registry.
func NewRegistry() *Registry {
	return &Registry{
		licenses:             map[label.Key]License{},
		licenseFiles:         map[label.Key]string{},
		notAffectedBy:        map[label.Key]map[label.Key]bool{},
		nothingBuildsAgainst: map[label.Key]bool{},
	}
}

// SetLicense registers lic against checkout (or package - spec.md §4.8
// allows either to carry a license).
func (r *Registry) SetLicense(target label.Label, lic License) {
	r.licenses[target.Key()] = lic
}

// License returns the license registered for target, if any.
func (r *Registry) License(target label.Label) (License, bool) {
	lic, ok := r.licenses[target.Key()]
	return lic, ok
}

// SetLicenseFile records a distributable license-file path for a checkout.
func (r *Registry) SetLicenseFile(checkout label.Label, path string) {
	r.licenseFiles[checkout.Key()] = path
}

// LicenseFile returns the license-file path registered for checkout, if
// any.
func (r *Registry) LicenseFile(checkout label.Label) (string, bool) {
	path, ok := r.licenseFiles[checkout.Key()]
	return path, ok
}

// AddNotAffectedBy asserts that GPL propagation from gplCheckout does not
// apply to subject, per spec.md §3's license_not_affected_by mapping.
func (r *Registry) AddNotAffectedBy(subject, gplCheckout label.Label) {
	set, ok := r.notAffectedBy[subject.Key()]
	if !ok {
		set = map[label.Key]bool{}
		r.notAffectedBy[subject.Key()] = set
	}
	set[gplCheckout.Key()] = true
}

func (r *Registry) isExempt(subject, gplCheckout label.Label) bool {
	set, ok := r.notAffectedBy[subject.Key()]
	return ok && set[gplCheckout.Key()]
}

// MarkNothingBuildsAgainst records that nothing GPL-relevant is reachable
// starting the walk from checkout - spec.md §3's nothing_builds_against
// set.
func (r *Registry) MarkNothingBuildsAgainst(checkout label.Label) {
	r.nothingBuildsAgainst[checkout.Key()] = true
}

// Merge folds other's registrations into r, rewriting every label through
// rewrite first - used by subdomain inclusion (C10) to pull in a
// sub-builder's license data under its new domain prefix, per spec.md
// §4.7's "Merge its... license data, license_not_affected_by,
// nothing_builds_against".
func (r *Registry) Merge(other *Registry, rewrite func(label.Label) label.Label) {
	for k, lic := range other.licenses {
		r.SetLicense(rewrite(keyToLabel(k)), lic)
	}
	for k, path := range other.licenseFiles {
		r.SetLicenseFile(rewrite(keyToLabel(k)), path)
	}
	for subjectKey, gplSet := range other.notAffectedBy {
		subject := rewrite(keyToLabel(subjectKey))
		for gplKey := range gplSet {
			r.AddNotAffectedBy(subject, rewrite(keyToLabel(gplKey)))
		}
	}
	for k := range other.nothingBuildsAgainst {
		r.MarkNothingBuildsAgainst(rewrite(keyToLabel(k)))
	}
}

// gplSources returns every registered target whose license propagates GPL
// and that isn't marked nothing_builds_against, in deterministic order.
func (r *Registry) gplSources() []label.Label {
	var out []label.Label
	for key, lic := range r.licenses {
		if !lic.PropagatesGPL() {
			continue
		}
		if r.nothingBuildsAgainst[key] {
			continue
		}
		out = append(out, keyToLabel(key))
	}
	sort.Slice(out, func(i, j int) bool { return label.Less(out[i], out[j]) })
	return out
}

func keyToLabel(k label.Key) label.Label {
	return label.New(k.Type, k.Name, k.Role, k.Tag, k.Domain)
}

// ImplicitGPL computes the implicit-GPL set, per spec.md §4.8: for every
// GPL-propagating checkout not marked nothing_builds_against, walk
// required_by and collect every dependent not specifically exempted via
// license_not_affected_by.
func (r *Registry) ImplicitGPL(rs *depend.RuleSet) []label.Label {
	seen := map[label.Key]bool{}
	var out []label.Label
	for _, src := range r.gplSources() {
		for _, dependent := range rs.RequiredBy(src) {
			if r.isExempt(dependent, src) {
				continue
			}
			key := dependent.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, dependent)
		}
	}
	sort.Slice(out, func(i, j int) bool { return label.Less(out[i], out[j]) })
	return out
}

// Clash records a label whose license registration conflicts with the
// implicit-GPL set it was found to fall under.
type Clash struct {
	Label    label.Label
	Category Category
}

// DetectGPLClashes finds every implicit-GPL label that is also registered
// with a Binary or Private license - the incompatible combination spec.md
// §4.8 names.
func (r *Registry) DetectGPLClashes(rs *depend.RuleSet) []Clash {
	var clashes []Clash
	for _, l := range r.ImplicitGPL(rs) {
		lic, ok := r.License(l)
		if !ok {
			continue
		}
		if lic.Category == Binary || lic.Category == Private {
			clashes = append(clashes, Clash{Label: l, Category: lic.Category})
		}
	}
	return clashes
}

// RoleMixingClash names a role where both Binary- and Private-licensed
// artifacts were found registered together.
type RoleMixingClash struct {
	Role string
}

// DetectRoleMixing finds every role (an install root) where Binary and
// Private licensed packages are both registered, per spec.md §4.8's
// per-role mixing check.
func (r *Registry) DetectRoleMixing() []RoleMixingClash {
	hasBinary := map[string]bool{}
	hasPrivate := map[string]bool{}
	for key, lic := range r.licenses {
		if key.Role == "" {
			continue
		}
		switch lic.Category {
		case Binary:
			hasBinary[key.Role] = true
		case Private:
			hasPrivate[key.Role] = true
		}
	}
	var out []RoleMixingClash
	var roles []string
	for role := range hasBinary {
		if hasPrivate[role] {
			roles = append(roles, role)
		}
	}
	sort.Strings(roles)
	for _, role := range roles {
		out = append(out, RoleMixingClash{Role: role})
	}
	return out
}
