package action

import (
	"context"

	"github.com/muddle-build/muddle/internal/label"
	"github.com/muddle-build/muddle/internal/merrors"
	"github.com/muddle-build/muddle/internal/mlog"
	"github.com/muddle-build/muddle/internal/repo"
)

// VCSFetcher is the external VCS collaborator contract spec.md §1 draws:
// "does not mediate network I/O for VCSs". The checkout-from-VCS action
// sequences calls to it but never talks to a VCS binary itself.
type VCSFetcher interface {
	// Checkout clones repository into destDir.
	Checkout(ctx context.Context, repository repo.Repository, destDir string) error
	// Pull fetches and fast-forwards destDir against repository.
	Pull(ctx context.Context, repository repo.Repository, destDir string) error
	// Merge fetches and merges repository's upstream into destDir.
	Merge(ctx context.Context, repository repo.Repository, destDir string) error
}

// Checkout realises a checkout label's lifecycle tags (checked_out, pulled,
// merged) by driving an injected VCSFetcher, per spec.md §1/§4.1's
// checkout-from-VCS action and Design Note 9's action taxonomy.
type Checkout struct {
	Repo    repo.Repository
	DestDir string
	Fetcher VCSFetcher
}

func (c Checkout) BuildLabel(ctx context.Context, b Builder, target Label) error {
	lbl, ok := target.(label.Label)
	if !ok {
		return merrors.NewMuddleBug("checkout action received a non-label.Label target: %v", target)
	}
	if c.Fetcher == nil {
		return merrors.NewGiveUp("no VCS fetcher configured for checkout %s", lbl)
	}

	if b.JustPrint() {
		mlog.Logit(mlog.Action, "would run VCS operation", map[string]interface{}{
			"target": lbl.String(), "tag": lbl.Tag, "dest": c.DestDir,
		})
		return nil
	}

	mlog.Logit(mlog.Action, "running VCS operation", map[string]interface{}{
		"target": lbl.String(), "tag": lbl.Tag, "dest": c.DestDir,
	})
	switch lbl.Tag {
	case label.CheckedOut:
		return c.Fetcher.Checkout(ctx, c.Repo, c.DestDir)
	case label.Pulled:
		return c.Fetcher.Pull(ctx, c.Repo, c.DestDir)
	case label.Merged:
		return c.Fetcher.Merge(ctx, c.Repo, c.DestDir)
	default:
		return merrors.NewUnsupported("checkout action has no VCS operation for tag %q", lbl.Tag)
	}
}

func (Checkout) RequiresMaster() bool { return false }
func (Checkout) Name() string         { return "checkout-from-vcs" }
