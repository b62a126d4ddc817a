// Package stamp implements the version-stamp/restore protocol (C9): a
// canonical, line-oriented text serialisation of every checkout in a build
// tree (repository, revision, options, domain nesting) plus the restoration
// procedure that reconstructs a tree from one, per spec.md §4.6/§6.
// Grounded on original_source/muddled/version_control.py's (inferred)
// VersionStamp class, using the teacher's own diffing stack
// (github.com/ianbruene/go-difflib, surgeon/reposurgeon.go's
// difflib.LineDiffParams/GetUnifiedDiffString/GetContextDiffString usage)
// for "Stamp diff".
package stamp

import (
	"context"
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/muddle-build/muddle/internal/builder"
	"github.com/muddle-build/muddle/internal/label"
	"github.com/muddle-build/muddle/internal/merrors"
	"github.com/muddle-build/muddle/internal/repo"
)

// DomainEntry is one [DOMAIN] section: the repository backing a mounted
// subdomain, per spec.md §4.6 section 2.
type DomainEntry struct {
	Name            string
	RepoURL         string
	DescriptionPath string
	Branch          string
}

// CheckoutEntry is one [CHECKOUT] section, per spec.md §4.6 section 3.
type CheckoutEntry struct {
	Domain       string
	Name         string
	RepoURL      string
	VCS          string
	Revision     string
	RelativePath string
	Directory    string
	Leaf         string
	Branch       string
	Options      map[string]interface{}
}

// Stamp is the canonical in-memory form of a version stamp.
type Stamp struct {
	RootRepoURL         string
	RootDescriptionPath string
	RootBranch          string
	Domains             []DomainEntry
	Checkouts           []CheckoutEntry
}

// Problem records a checkout for which a revision could not be determined,
// per spec.md §4.6's ".partial" outcome.
type Problem struct {
	Checkout label.Label
	Reason   string
}

// RevisionResolver is the external VCS collaborator contract spec.md §1
// places out of core scope: given a checkout, report its current revision.
type RevisionResolver interface {
	Revision(ctx context.Context, target label.Label, cd *repo.CheckoutData, opts ResolveOptions) (string, error)
}

// ResolveOptions carries the two flags spec.md §4.6 calls out as orthogonal:
// Force (use the build-description revision when the working copy
// disagrees) and JustUseHead (use HEAD for every checkout).
type ResolveOptions struct {
	Force       bool
	JustUseHead bool
}

// Build walks b's registered domains and checkouts into a Stamp, resolving
// each checkout's current revision via resolver. Checkouts whose revision
// could not be resolved are listed as Problems and left with Revision "".
func Build(ctx context.Context, b *builder.Builder, resolver RevisionResolver, opts ResolveOptions) (*Stamp, []Problem, error) {
	rootRepo, err := b.Tree.RootRepository()
	if err != nil {
		return nil, nil, err
	}
	rootDesc, err := b.Tree.Description()
	if err != nil {
		return nil, nil, err
	}
	rootBranch, err := b.Tree.DescriptionBranch()
	if err != nil {
		return nil, nil, err
	}

	s := &Stamp{RootRepoURL: rootRepo, RootDescriptionPath: rootDesc, RootBranch: rootBranch}

	for name, info := range b.DomainRepoInfos() {
		s.Domains = append(s.Domains, DomainEntry{
			Name: name, RepoURL: info.RepoURL, DescriptionPath: info.DescriptionPath, Branch: info.Branch,
		})
	}
	sort.Slice(s.Domains, func(i, j int) bool { return s.Domains[i].Name < s.Domains[j].Name })

	var problems []Problem
	for key, cd := range b.Checkouts() {
		target := label.New(key.Type, key.Name, key.Role, key.Tag, key.Domain)
		revision := ""
		if resolver != nil {
			rev, err := resolver.Revision(ctx, target, cd, opts)
			if err != nil {
				problems = append(problems, Problem{Checkout: target, Reason: err.Error()})
			} else {
				revision = rev
			}
		}
		s.Checkouts = append(s.Checkouts, CheckoutEntry{
			Domain: key.Domain, Name: key.Name,
			RepoURL: cd.Repo.URL(), VCS: cd.Repo.VCS, Revision: revision,
			RelativePath: cd.Repo.RelativePath, Directory: cd.Dir, Leaf: cd.Leaf,
			Branch: cd.Repo.Branch, Options: cd.Options,
		})
	}
	sort.Slice(s.Checkouts, func(i, j int) bool {
		if s.Checkouts[i].Domain != s.Checkouts[j].Domain {
			return s.Checkouts[i].Domain < s.Checkouts[j].Domain
		}
		return s.Checkouts[i].Name < s.Checkouts[j].Name
	})
	sort.Slice(problems, func(i, j int) bool { return label.Less(problems[i].Checkout, problems[j].Checkout) })

	return s, problems, nil
}

// Render serialises s to the canonical, line-oriented, sectioned text
// document described by spec.md §4.6/§6 - stable under re-serialisation of
// an unchanged build.
func (s *Stamp) Render() string {
	var b strings.Builder
	fmt.Fprintln(&b, "[ROOT]")
	fmt.Fprintf(&b, "repository = %s\n", s.RootRepoURL)
	fmt.Fprintf(&b, "description = %s\n", s.RootDescriptionPath)
	if s.RootBranch != "" {
		fmt.Fprintf(&b, "branch = %s\n", s.RootBranch)
	}

	for _, d := range s.Domains {
		fmt.Fprintf(&b, "\n[DOMAIN %s]\n", d.Name)
		fmt.Fprintf(&b, "repository = %s\n", d.RepoURL)
		fmt.Fprintf(&b, "description = %s\n", d.DescriptionPath)
		if d.Branch != "" {
			fmt.Fprintf(&b, "branch = %s\n", d.Branch)
		}
	}

	for _, c := range s.Checkouts {
		fmt.Fprintf(&b, "\n[CHECKOUT %s]\n", checkoutSectionName(c))
		fmt.Fprintf(&b, "domain = %s\n", c.Domain)
		fmt.Fprintf(&b, "name = %s\n", c.Name)
		fmt.Fprintf(&b, "repo = %s\n", c.RepoURL)
		fmt.Fprintf(&b, "vcs = %s\n", c.VCS)
		fmt.Fprintf(&b, "revision = %s\n", c.Revision)
		fmt.Fprintf(&b, "relative_path = %s\n", c.RelativePath)
		fmt.Fprintf(&b, "directory = %s\n", c.Directory)
		fmt.Fprintf(&b, "leaf = %s\n", c.Leaf)
		if c.Branch != "" {
			fmt.Fprintf(&b, "branch = %s\n", c.Branch)
		}
		var optNames []string
		for name := range c.Options {
			optNames = append(optNames, name)
		}
		sort.Strings(optNames)
		for _, name := range optNames {
			fmt.Fprintf(&b, "option.%s = %v\n", name, c.Options[name])
		}
	}
	return b.String()
}

func checkoutSectionName(c CheckoutEntry) string {
	if c.Domain == "" {
		return c.Name
	}
	return "(" + c.Domain + ")" + c.Name
}

// SHA1 is the stamp's identifier: the SHA-1 hash of its canonical text.
func (s *Stamp) SHA1() string {
	sum := sha1.Sum([]byte(s.Render()))
	return fmt.Sprintf("%x", sum)
}

// Save renders s, determines the right file extension (".stamp" if every
// checkout resolved a revision, ".partial" with a trailing PROBLEMS section
// otherwise, per spec.md §4.6), and writes it to destDir/baseName<ext>.
// Returns the path written and the stamp's SHA-1.
func Save(s *Stamp, problems []Problem, destDir, baseName string) (path string, sha1Hex string, err error) {
	core := s.Render()
	sha1Hex = s.SHA1()

	ext := ".stamp"
	text := core
	if len(problems) > 0 {
		ext = ".partial"
		var b strings.Builder
		b.WriteString(core)
		b.WriteString("\n[PROBLEMS]\n")
		for _, p := range problems {
			fmt.Fprintf(&b, "%s = %s\n", p.Checkout, p.Reason)
		}
		text = b.String()
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", "", merrors.NewGiveUp("creating %s: %v", destDir, err)
	}
	path = filepath.Join(destDir, baseName+ext)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", "", merrors.NewGiveUp("writing %s: %v", path, err)
	}
	return path, sha1Hex, nil
}
