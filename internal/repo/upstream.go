package repo

import "github.com/muddle-build/muddle/internal/merrors"

// UpstreamTable maps repo -> { repo -> set<name> }, per spec.md §3. Sub-
// building may add additional upstream entries; a subdomain adding an
// upstream for a repository the parent already uses under a different name
// set is fine (names are unioned), but a genuine conflict - the same
// (repo, upstream-repo) pair claimed with different name sets by two
// independent sources - must surface as an error rather than be silently
// merged, per spec.md §4.7.
type UpstreamTable struct {
	entries map[string]map[string]map[string]bool // repo -> upstreamRepo -> names
}

// NewUpstreamTable returns an empty table.
func NewUpstreamTable() *UpstreamTable {
	return &UpstreamTable{entries: map[string]map[string]map[string]bool{}}
}

// Add records that `upstreamRepoURL` is an upstream of `repoURL` under
// `name`. Adding the same (repo, upstream, name) triple twice is a no-op;
// this is how identical upstreams contributed by independent subdomains get
// unioned per spec.md §4.7.
func (t *UpstreamTable) Add(repoURL, upstreamRepoURL, name string) {
	byUpstream, ok := t.entries[repoURL]
	if !ok {
		byUpstream = map[string]map[string]bool{}
		t.entries[repoURL] = byUpstream
	}
	names, ok := byUpstream[upstreamRepoURL]
	if !ok {
		names = map[string]bool{}
		byUpstream[upstreamRepoURL] = names
	}
	names[name] = true
}

// Names returns the set of names under which upstreamRepoURL is recorded as
// an upstream of repoURL.
func (t *UpstreamTable) Names(repoURL, upstreamRepoURL string) []string {
	var out []string
	if byUpstream, ok := t.entries[repoURL]; ok {
		for n := range byUpstream[upstreamRepoURL] {
			out = append(out, n)
		}
	}
	return out
}

// Merge merges other into t, per spec.md §4.7's subdomain-inclusion rule:
// identical upstreams (same repo, same upstream-repo, same name) are
// unioned; a name introduced by `other` for a (repo, upstream-repo) pair
// that the parent does not yet have for that exact pair is a hard,
// explained error when the parent already has *some* upstream set for that
// repo under a different upstream-repo binding using the same name - i.e.
// the same name would now resolve ambiguously for that repo.
func (t *UpstreamTable) Merge(other *UpstreamTable, sourceDescription string) error {
	for repoURL, byUpstream := range other.entries {
		for upstreamRepoURL, names := range byUpstream {
			for name := range names {
				if conflict := t.nameConflict(repoURL, upstreamRepoURL, name); conflict != "" {
					return merrors.NewGiveUp(
						"%s adds upstream %q=%q for repository %q, "+
							"which conflicts with the existing upstream %q=%q already recorded for it",
						sourceDescription, name, upstreamRepoURL, repoURL, name, conflict)
				}
				t.Add(repoURL, upstreamRepoURL, name)
			}
		}
	}
	return nil
}

// nameConflict returns the upstream repo URL already bound to `name` for
// `repoURL`, if that binding differs from upstreamRepoURL; "" if there's no
// conflict.
func (t *UpstreamTable) nameConflict(repoURL, upstreamRepoURL, name string) string {
	byUpstream, ok := t.entries[repoURL]
	if !ok {
		return ""
	}
	for existingUpstream, names := range byUpstream {
		if existingUpstream == upstreamRepoURL {
			continue
		}
		if names[name] {
			return existingUpstream
		}
	}
	return ""
}
