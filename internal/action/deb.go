package action

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/muddle-build/muddle/internal/label"
	"github.com/muddle-build/muddle/internal/layout"
	"github.com/muddle-build/muddle/internal/merrors"
	"github.com/muddle-build/muddle/internal/mlog"
)

// DebExtract realises a package's "installed" tag by extracting a
// pre-built .deb archive's data into the role's install directory, per
// SPEC_FULL.md's pkgs/deb.py supplement ("Debian-extraction" collaborator).
// Per spec.md §1 the real dpkg semantics (dependency resolution, postinst
// scripts, control-file parsing) are out of core scope; this shells out to
// the system `dpkg-deb` the way the supplement calls for, rather than
// reimplementing the archive format.
type DebExtract struct {
	// PackagePath is the .deb file to extract, relative to root/pkgs/.
	PackagePath string
	// RoleDir is the install/<role> directory to extract into.
	RoleDir string
}

func (d DebExtract) BuildLabel(ctx context.Context, b Builder, target Label) error {
	lbl, ok := target.(label.Label)
	if !ok {
		return merrors.NewMuddleBug("deb action received a non-label.Label target: %v", target)
	}
	if lbl.Tag != label.Installed {
		return merrors.NewUnsupported("deb action only realises the %q tag, got %q for %s", label.Installed, lbl.Tag, lbl)
	}

	tree := layout.Tree{Root: b.RootPath()}
	debPath := filepath.Join(tree.Root, "pkgs", d.PackagePath)
	dest := filepath.Join(tree.Install(), d.RoleDir)

	if b.JustPrint() {
		mlog.Logit(mlog.Action, "would extract deb package", map[string]interface{}{
			"target": lbl.String(), "deb": debPath, "dest": dest,
		})
		return nil
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return merrors.NewGiveUp("creating %s: %v", dest, err)
	}

	mlog.Logit(mlog.Action, "extracting deb package", map[string]interface{}{
		"target": lbl.String(), "deb": debPath, "dest": dest,
	})
	cmd := exec.CommandContext(ctx, "dpkg-deb", "-x", debPath, dest)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return merrors.NewGiveUp("extracting %s: %v", debPath, err)
	}
	return nil
}

func (DebExtract) RequiresMaster() bool { return false }
func (DebExtract) Name() string         { return "deb-extract" }
