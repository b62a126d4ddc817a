// Package subdomain implements subdomain inclusion (C10): mounting another
// build tree as a sub-tree of the current one, rewriting the domain
// component of every label it contributes, and merging its checkout data,
// license data and upstream table into the parent, per spec.md §4.7. The
// just_pulled table is not read or re-labelled here. Grounded on original_source/muddled/mechanics.py's
// (inferred) include_domain, using the already-built internal/builder,
// internal/tagdb and internal/license primitives rather than reimplementing
// any of their bookkeeping here.
package subdomain

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"github.com/muddle-build/muddle/internal/builder"
	"github.com/muddle-build/muddle/internal/label"
	"github.com/muddle-build/muddle/internal/layout"
	"github.com/muddle-build/muddle/internal/merrors"
	"github.com/muddle-build/muddle/internal/mlog"
	"github.com/muddle-build/muddle/internal/tagdb"
)

// CheckoutFunc drives the actual checkout of a subtree's root repository
// into destDir - the external VCS collaborator contract spec.md §1 places
// out of core scope. Called only the first time a given subdomain root is
// mounted (a pre-existing .muddle/ there is treated as already checked
// out).
type CheckoutFunc func(ctx context.Context, repoURL, branch, destDir string) error

// LoadFunc loads a sub-builder's build description - normally
// internal/dsl's Starlark host, injected here (as internal/builder's own
// LoadDescription takes a callback) to avoid a subdomain<->dsl import
// cycle.
type LoadFunc func(ctx context.Context, sub *builder.Builder) error

// Options bundles the inputs Include needs beyond the parent and the
// subdomain's name.
type Options struct {
	RepoURL         string
	DescriptionPath string
	Branch          string // "" if unset
	Checkout        CheckoutFunc
	Load            LoadFunc
}

// Include mounts another build tree as domain `name` under parent, per
// spec.md §4.7's four-step contract. On return, every label the sub-builder
// registered - rule targets/deps, checkouts, licenses - carries the
// composed domain (parent(name), or just name at the top level), and the
// sub-tree's own labels table has been registered with the parent's tag
// store so the scheduler can resolve cross-domain dependencies uniformly.
func Include(ctx context.Context, parent *builder.Builder, name string, opts Options) error {
	fullDomain := composeDomain(parent.Domain, name)
	subRoot := filepath.Join(parent.Tree.Domains(), name)
	subTree := layout.Tree{Root: subRoot}

	alreadyCheckedOut := true
	if _, err := os.Stat(subTree.MuddleDir()); os.IsNotExist(err) {
		alreadyCheckedOut = false
	}

	if !alreadyCheckedOut {
		if opts.Checkout != nil {
			if err := opts.Checkout(ctx, opts.RepoURL, opts.Branch, subRoot); err != nil {
				return err
			}
		}
		initedTree, err := layout.Init(subRoot)
		if err != nil {
			return err
		}
		subTree = initedTree
		if err := subTree.SetRootRepository(opts.RepoURL); err != nil {
			return err
		}
		if err := subTree.SetDescription(opts.DescriptionPath); err != nil {
			return err
		}
		if opts.Branch != "" {
			if err := subTree.SetDescriptionBranch(opts.Branch); err != nil {
				return err
			}
		}
		if err := subTree.MarkAsSubdomain(fullDomain); err != nil {
			return err
		}
	}

	sub := parent.SubBuilder(name)
	sub.Tree = subTree

	labelStore, err := tagdb.OpenLabelStore(fullDomain, subTree.TagDBPath())
	if err != nil {
		return merrors.NewGiveUp("opening labels table for subdomain %q: %v", fullDomain, err)
	}
	parent.Store().RegisterDomainLabelStore(fullDomain, labelStore)

	if opts.Load != nil {
		if err := sub.LoadDescription(ctx, opts.Load); err != nil {
			return merrors.NewGiveUp("loading build description for subdomain %q: %v", fullDomain, err)
		}
	}

	sub.RewriteDomain("", fullDomain)
	parent.SetDomainRepoInfo(fullDomain, builder.DomainRepoInfo{
		RepoURL:         opts.RepoURL,
		DescriptionPath: opts.DescriptionPath,
		Branch:          opts.Branch,
	})
	if descLabel, ok := sub.DomainBuildDescLabel(""); ok {
		parent.SetDomainBuildDescLabel(fullDomain, descLabel.CopyWithDomain(fullDomain))
	}

	if err := mergeRuleSet(parent, sub); err != nil {
		return err
	}
	mergeCheckouts(parent, sub, name)
	parent.Licenses().Merge(sub.Licenses(), domainRewriter(fullDomain))
	if err := parent.Upstreams().Merge(sub.Upstreams(), "subdomain "+fullDomain); err != nil {
		return err
	}

	mlog.Logit(mlog.DSL, "included subdomain", map[string]interface{}{
		"domain": fullDomain, "repo": opts.RepoURL,
	})
	return nil
}

// composeDomain builds the nested domain name "parent(child)", or just
// child at the top level, per spec.md §3's domain grammar.
func composeDomain(parentDomain, name string) string {
	if parentDomain == "" {
		return name
	}
	return parentDomain + "(" + name + ")"
}

// domainRewriter returns a function rewriting a label's Domain field to
// domain, for use with license.Registry.Merge - every label the sub-builder
// registered came in domain "" relative to itself.
func domainRewriter(domain string) func(label.Label) label.Label {
	return func(l label.Label) label.Label {
		if l.Domain == "" {
			return l.CopyWithDomain(domain)
		}
		return l
	}
}

// mergeRuleSet copies every rule sub registered (already domain-rewritten by
// RewriteDomain) into parent's ruleset.
func mergeRuleSet(parent, sub *builder.Builder) error {
	for _, r := range sub.RuleSet().Rules() {
		parent.RuleSet().Add(r)
	}
	return nil
}

// mergeCheckouts copies every checkout sub registered into parent, prefixing
// each one's on-disk location with domains/<name> (spec.md §4.7's "has
// location = domains/sub1/src/first_co").
func mergeCheckouts(parent, sub *builder.Builder, name string) {
	prefix := path.Join("domains", name)
	rewrite := domainRewriter(sub.Domain)
	for key, cd := range sub.Checkouts() {
		l := label.New(key.Type, key.Name, key.Role, key.Tag, key.Domain)
		parent.AddCheckout(rewrite(l), cd.MovedToSubdomain(prefix))
	}
}
