package repo

import (
	"path"

	"github.com/muddle-build/muddle/internal/merrors"
)

// CheckoutData is the per-checkout record keyed by the checkout's label
// (tag-normalised to "*" by the caller, per spec.md §3). Grounded on
// original_source/muddled/db.py's CheckoutData class.
type CheckoutData struct {
	Repo Repository

	Dir  string // optional subdirectory, "" if none
	Leaf string // defaults to the checkout label's name

	Options map[string]interface{} // values restricted to bool/int/string

	SourceLicense  string // license name, "" if none registered
	LicenseFile    string // path to the distributable license file, if any

	// SubdomainPrefix is "" for a checkout local to this build tree, or
	// "domains/<D>[/<E>...]" once subdomain inclusion (C10) has pulled this
	// checkout in from a mounted subtree - Location() then reports the
	// prefixed path, matching original_source's CheckoutData.move_to_subdomain.
	SubdomainPrefix string

	vcs VCSKind
}

// NewCheckoutData builds a CheckoutData, defaulting Leaf to name if empty.
func NewCheckoutData(vcs VCSKind, r Repository, dir, leaf, name string) *CheckoutData {
	if leaf == "" {
		leaf = name
	}
	return &CheckoutData{
		Repo:    r,
		Dir:     dir,
		Leaf:    leaf,
		Options: map[string]interface{}{},
		vcs:     vcs,
	}
}

// Location computes [<subdomain-prefix>/]src/[<dir>/]<leaf>, per spec.md
// §3, extended by §4.7's move_to_subdomain once SubdomainPrefix is set.
func (c *CheckoutData) Location() string {
	loc := path.Join("src", c.Leaf)
	if c.Dir != "" {
		loc = path.Join("src", c.Dir, c.Leaf)
	}
	if c.SubdomainPrefix != "" {
		return path.Join(c.SubdomainPrefix, loc)
	}
	return loc
}

// MovedToSubdomain returns a shallow copy of c with SubdomainPrefix set to
// domainSubpath (typically "domains/<name>"), as happens once a checkout is
// pulled in via subdomain inclusion (C10). Direct adaptation of
// original_source's CheckoutData.move_to_subdomain.
func (c *CheckoutData) MovedToSubdomain(domainSubpath string) *CheckoutData {
	clone := *c
	clone.SubdomainPrefix = path.Join(domainSubpath, c.SubdomainPrefix)
	return &clone
}

// SetOption validates and records a VCS option, per spec.md §3: option
// values are restricted to bool/int/string, and only allow-listed option
// names per VCS are accepted. Direct adaptation of
// original_source/muddled/db.py's CheckoutData.set_option.
func (c *CheckoutData) SetOption(name string, value interface{}) error {
	if !c.vcs.Allows(name) {
		return merrors.NewGiveUp("option %q is not allowed for VCS %s", name, c.vcs.Name)
	}
	switch value.(type) {
	case bool, int, string:
		// allowed
	default:
		return merrors.NewGiveUp("options to VCS must be bool, int or string; option %q is %T", name, value)
	}
	c.Options[name] = value
	return nil
}
