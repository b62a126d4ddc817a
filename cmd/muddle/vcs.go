package main

import (
	"context"
	"os"
	"os/exec"

	"github.com/muddle-build/muddle/internal/dsl"
	"github.com/muddle-build/muddle/internal/merrors"
	"github.com/muddle-build/muddle/internal/repo"
	"github.com/muddle-build/muddle/internal/subdomain"
)

// shellVCS drives the real `git`/`bzr`/`svn` binaries for the checkout
// actions and subdomain-mount checkouts dsl.Host needs, per spec.md §1's
// "does not mediate network I/O for VCSs" - this is that out-of-core
// collaborator, realised the simplest way the teacher's own
// runProcess/exec.Command idiom (surgeon/inner.go) supports: one binary
// invocation per operation, no attempt at a pure-Go VCS implementation.
type shellVCS struct{}

func (shellVCS) Checkout(ctx context.Context, r repo.Repository, destDir string) error {
	switch r.VCS {
	case "git":
		args := []string{"clone"}
		if r.Branch != "" {
			args = append(args, "--branch", r.Branch)
		}
		args = append(args, r.BaseURL+"/"+r.RelativePath, destDir)
		return run(ctx, "git", args...)
	case "bzr":
		return run(ctx, "bzr", "branch", r.BaseURL+"/"+r.RelativePath, destDir)
	case "svn":
		return run(ctx, "svn", "checkout", r.BaseURL+"/"+r.RelativePath, destDir)
	default:
		return merrors.NewGiveUp("no checkout support for VCS %q", r.VCS)
	}
}

func (shellVCS) Pull(ctx context.Context, r repo.Repository, destDir string) error {
	switch r.VCS {
	case "git":
		return runIn(ctx, destDir, "git", "pull", "--ff-only")
	case "bzr":
		return runIn(ctx, destDir, "bzr", "pull")
	case "svn":
		return runIn(ctx, destDir, "svn", "update")
	default:
		return merrors.NewGiveUp("no pull support for VCS %q", r.VCS)
	}
}

func (shellVCS) Merge(ctx context.Context, r repo.Repository, destDir string) error {
	switch r.VCS {
	case "git":
		return runIn(ctx, destDir, "git", "merge", "--no-edit", "origin/"+r.Branch)
	case "bzr":
		return runIn(ctx, destDir, "bzr", "merge")
	default:
		return merrors.NewUnsupported("no merge support for VCS %q", r.VCS)
	}
}

func run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		return merrors.NewGiveUp("%s %v: %v", name, args, err)
	}
	return nil
}

func runIn(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		return merrors.NewGiveUp("%s %v (in %s): %v", name, args, dir, err)
	}
	return nil
}

// subdomainCheckout adapts shellVCS's git path to subdomain.CheckoutFunc's
// simpler (url, branch, dest) signature for mounting an included subdomain.
func subdomainCheckout(ctx context.Context, repoURL, branch, destDir string) error {
	vcs, bareURL, ok := repo.SplitVCSURL(repoURL)
	if !ok {
		return merrors.NewGiveUp("cannot parse subdomain repository URL %q", repoURL)
	}
	r := repo.Repository{VCS: vcs, BaseURL: bareURL, Branch: branch}
	return shellVCS{}.Checkout(ctx, r, destDir)
}

// dslHost builds the dsl.Host every build-description load uses, wiring the
// real VCS fetcher and subdomain checkout collaborators.
func dslHost() dsl.Host {
	return dsl.Host{Fetcher: shellVCS{}, SubdomainCheckout: subdomain.CheckoutFunc(subdomainCheckout)}
}

func cmdContext() context.Context {
	return context.Background()
}
