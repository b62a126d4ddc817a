// Package repo implements the repository descriptor (C2), the per-VCS
// option allow-lists and canonical-URL builder (adapted from the teacher's
// VCS capability table in surgeon/vcs.go), the checkout registry (C3) and
// the upstream table, per spec.md §3/§4 and grounded on
// original_source/muddled/db.py's CheckoutData and
// original_source/muddled/utils.py's split_vcs_url.
package repo

import (
	"fmt"
	"regexp"
)

// Repository is an immutable description of a source location.
type Repository struct {
	VCS          string
	BaseURL      string
	RelativePath string
	Branch       string // "" means unset
	Revision     string // "" means unset / floating
}

// URL renders the canonical <vcs>+<url> form, per spec.md §3.
func (r Repository) URL() string {
	return fmt.Sprintf("%s+%s/%s", r.VCS, r.BaseURL, r.RelativePath)
}

func (r Repository) String() string { return r.URL() }

// SplitVCSURL splits a "<vcs>+<scheme>:<rest>" URL into (vcs, bareURL),
// or returns ("", "", false) if there is no recognisable VCS prefix.
// Direct port of original_source's utils.split_vcs_url.
var vcsURLRE = regexp.MustCompile(`^([A-Za-z]+)\+([A-Za-z+]+:.*)$`)

func SplitVCSURL(url string) (vcs string, bareURL string, ok bool) {
	m := vcsURLRE.FindStringSubmatch(url)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
