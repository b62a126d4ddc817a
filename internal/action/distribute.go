package action

import (
	"context"
	"path/filepath"

	"github.com/muddle-build/muddle/internal/fsutil"
	"github.com/muddle-build/muddle/internal/label"
	"github.com/muddle-build/muddle/internal/layout"
	"github.com/muddle-build/muddle/internal/merrors"
	"github.com/muddle-build/muddle/internal/mlog"
)

// DistributePackage copies a package's install tree into a named
// distribution directory under deploy/, per SPEC_FULL.md's distribute.py
// supplement ("distribute-package ... copying installed ... trees into a
// distribution root"). Grounded on internal/fsutil's shutil-backed copy
// helpers (themselves grounded on surgeon/inner.go's repo-preservation
// restore).
type DistributePackage struct {
	// RoleDir is the role subdirectory under install/ this package's
	// files live in, e.g. "<role>" for install/<role>.
	RoleDir string
	// DistributionName names the deploy/<name> directory files land in.
	DistributionName string
}

func (d DistributePackage) BuildLabel(ctx context.Context, b Builder, target Label) error {
	lbl, ok := target.(label.Label)
	if !ok {
		return merrors.NewMuddleBug("distribute-package action received a non-label.Label target: %v", target)
	}
	tree := layout.Tree{Root: b.RootPath()}
	src := filepath.Join(tree.Install(), d.RoleDir)
	dst := filepath.Join(tree.Deploy(), d.DistributionName, d.RoleDir)

	if b.JustPrint() {
		mlog.Logit(mlog.Action, "would distribute package install tree", map[string]interface{}{
			"target": lbl.String(), "from": src, "to": dst,
		})
		return nil
	}
	mlog.Logit(mlog.Action, "distributing package install tree", map[string]interface{}{
		"target": lbl.String(), "from": src, "to": dst,
	})
	return fsutil.RecursivelyCopy(src, dst)
}

func (DistributePackage) RequiresMaster() bool { return false }
func (DistributePackage) Name() string         { return "distribute-package" }

// DistributeCheckout copies a checkout's working tree (rather than a
// package's install tree) into a distribution directory, per
// SPEC_FULL.md's "distribute-checkout" - used for source distributions.
type DistributeCheckout struct {
	CheckoutDir      string
	DistributionName string
	// Exclude names entries to skip (typically VCS metadata directories
	// like ".git"), per original_source's copy_without.
	Exclude []string
}

func (d DistributeCheckout) BuildLabel(ctx context.Context, b Builder, target Label) error {
	lbl, ok := target.(label.Label)
	if !ok {
		return merrors.NewMuddleBug("distribute-checkout action received a non-label.Label target: %v", target)
	}
	tree := layout.Tree{Root: b.RootPath()}
	src := filepath.Join(tree.Src(), d.CheckoutDir)
	dst := filepath.Join(tree.Deploy(), d.DistributionName, "src", d.CheckoutDir)

	if b.JustPrint() {
		mlog.Logit(mlog.Action, "would distribute checkout", map[string]interface{}{
			"target": lbl.String(), "from": src, "to": dst,
		})
		return nil
	}
	mlog.Logit(mlog.Action, "distributing checkout", map[string]interface{}{
		"target": lbl.String(), "from": src, "to": dst,
	})
	if len(d.Exclude) == 0 {
		return fsutil.RecursivelyCopy(src, dst)
	}
	return fsutil.CopyWithout(src, dst, d.Exclude)
}

func (DistributeCheckout) RequiresMaster() bool { return false }
func (DistributeCheckout) Name() string         { return "distribute-checkout" }
