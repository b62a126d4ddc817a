package repo

import "github.com/muddle-build/muddle/internal/merrors"

// VCSKind describes the capabilities of a version-control system relevant
// to the core: which checkout options it allows. The full command-table
// shape (exporter/importer/styleflags/...) lives in the teacher's
// surgeon/vcs.go; per spec.md §1 the actual VCS plugins are external
// collaborators, so we keep only the part of that table the core
// consults - the option allow-list CheckoutData.SetOption enforces.
type VCSKind struct {
	Name           string
	AllowedOptions map[string]bool
}

var registry = map[string]VCSKind{
	"git": {
		Name: "git",
		AllowedOptions: map[string]bool{
			"shallow":         true,
			"no_follow_tags":  true,
			"monitor_branch":  true,
		},
	},
	"bzr": {
		Name:           "bzr",
		AllowedOptions: map[string]bool{},
	},
	"svn": {
		Name: "svn",
		AllowedOptions: map[string]bool{
			"revision": true,
		},
	},
}

// Lookup returns the VCSKind for a vcs name, or a GiveUp if it's unknown.
func Lookup(name string) (VCSKind, error) {
	kind, ok := registry[name]
	if !ok {
		return VCSKind{}, merrors.NewGiveUp("unknown VCS kind %q", name)
	}
	return kind, nil
}

// Allows reports whether option is a recognised option name for this VCS.
func (k VCSKind) Allows(option string) bool {
	return k.AllowedOptions[option]
}
