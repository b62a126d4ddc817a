package stamp

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/muddle-build/muddle/internal/builder"
	"github.com/muddle-build/muddle/internal/label"
	"github.com/muddle-build/muddle/internal/layout"
	"github.com/muddle-build/muddle/internal/merrors"
)

// Checkout is the external VCS collaborator contract restoration drives:
// check out entry at its recorded revision into destPath, per spec.md §1's
// "does not mediate network I/O for VCSs" - the core only sequences the
// call.
type Checkout func(ctx context.Context, entry CheckoutEntry, destPath string) error

// domainDirSegments splits a (possibly nested) domain name like
// "sub1(sub2)" into its path components ["sub1", "sub2"], per spec.md §3's
// domain grammar.
func domainDirSegments(domain string) []string {
	domain = strings.TrimSuffix(domain, ")")
	return strings.FieldsFunc(domain, func(r rune) bool { return r == '(' || r == ')' })
}

// domainRoot returns the filesystem root a domain's own .muddle/ tree lives
// at, relative to the overall restoration root.
func domainRoot(root, domain string) string {
	if domain == "" {
		return root
	}
	dir := root
	for _, seg := range domainDirSegments(domain) {
		dir = filepath.Join(dir, "domains", seg)
	}
	return dir
}

// checkoutDestPath computes the destination directory for a checkout entry,
// honoring Directory/Leaf and the subdomain nesting its Domain implies.
func checkoutDestPath(root string, c CheckoutEntry) string {
	base := domainRoot(root, c.Domain)
	if c.Directory != "" {
		return filepath.Join(base, "src", c.Directory, c.Leaf)
	}
	return filepath.Join(base, "src", c.Leaf)
}

// Restore reconstructs a minimal build tree from a stamp's text at root:
// it refuses a root that already has a .muddle/ (spec.md §7), lays down
// each (sub)domain's .muddle/ with its recorded root-repository and
// description path, then drives checkout for every recorded checkout at its
// recorded revision, per spec.md §4.6's "unstamp".
func Restore(ctx context.Context, text string, root string, checkout Checkout) (*Stamp, error) {
	s, err := Parse(text)
	if err != nil {
		return nil, err
	}

	if info, err := os.Stat(filepath.Join(root, ".muddle")); err == nil && info.IsDir() {
		return nil, merrors.NewGiveUp("%s already contains a .muddle/ tree; refusing to unstamp over it", root)
	}

	rootTree, err := layout.Init(root)
	if err != nil {
		return nil, err
	}
	if err := rootTree.SetRootRepository(s.RootRepoURL); err != nil {
		return nil, err
	}
	if err := rootTree.SetDescription(s.RootDescriptionPath); err != nil {
		return nil, err
	}
	if s.RootBranch != "" {
		if err := rootTree.SetDescriptionBranch(s.RootBranch); err != nil {
			return nil, err
		}
	}

	for _, d := range s.Domains {
		domTree, err := layout.Init(domainRoot(root, d.Name))
		if err != nil {
			return nil, err
		}
		if err := domTree.SetRootRepository(d.RepoURL); err != nil {
			return nil, err
		}
		if err := domTree.SetDescription(d.DescriptionPath); err != nil {
			return nil, err
		}
		if d.Branch != "" {
			if err := domTree.SetDescriptionBranch(d.Branch); err != nil {
				return nil, err
			}
		}
		if err := domTree.MarkAsSubdomain(d.Name); err != nil {
			return nil, err
		}
	}

	if checkout != nil {
		for _, c := range s.Checkouts {
			dest := checkoutDestPath(root, c)
			if err := checkout(ctx, c, dest); err != nil {
				return nil, err
			}
		}
	}

	return s, nil
}

// Discrepancy records one mismatch Verify found between a freshly reloaded
// build's checkout set and the stamp it was restored from.
type Discrepancy struct {
	Checkout label.Label
	Reason   string
}

// Verify compares b's currently registered checkouts (after the restored
// tree's build description has been reloaded) against stamp, per spec.md
// §4.6's "re-reads the newly materialised build description and verifies
// that its checkout set matches the stamp; discrepancies are reported."
func Verify(b *builder.Builder, s *Stamp) []Discrepancy {
	byKey := map[string]CheckoutEntry{}
	for _, c := range s.Checkouts {
		byKey[c.Domain+"\x00"+c.Name] = c
	}

	var discrepancies []Discrepancy
	seen := map[string]bool{}
	for key, cd := range b.Checkouts() {
		target := label.New(key.Type, key.Name, key.Role, key.Tag, key.Domain)
		k := key.Domain + "\x00" + key.Name
		seen[k] = true
		entry, ok := byKey[k]
		if !ok {
			discrepancies = append(discrepancies, Discrepancy{Checkout: target, Reason: "present in build description but not in stamp"})
			continue
		}
		if entry.RepoURL != cd.Repo.URL() {
			discrepancies = append(discrepancies, Discrepancy{
				Checkout: target,
				Reason:   "repository mismatch: stamp has " + entry.RepoURL + ", build description has " + cd.Repo.URL(),
			})
		}
	}
	for k, entry := range byKey {
		if seen[k] {
			continue
		}
		target := label.New(label.Checkout, entry.Name, "", label.Wildcard, entry.Domain)
		discrepancies = append(discrepancies, Discrepancy{Checkout: target, Reason: "present in stamp but not in reloaded build description"})
	}
	return discrepancies
}
