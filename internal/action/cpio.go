package action

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/muddle-build/muddle/internal/instructions"
	"github.com/muddle-build/muddle/internal/label"
	"github.com/muddle-build/muddle/internal/layout"
	"github.com/muddle-build/muddle/internal/merrors"
	"github.com/muddle-build/muddle/internal/mlog"
)

// CPIODeployment realises a "deployment" label by applying every role's
// instructions documents to a staging tree and archiving the result with
// the system `cpio` binary, per SPEC_FULL.md's deployments/cpio.py
// supplement. Per spec.md §1, deployments/cpio.py's own archive-writing
// logic is out of core scope; this is the thin, testable stand-in the
// supplement calls for - it shells out to `cpio` rather than reimplementing
// the archive format.
type CPIODeployment struct {
	// Roles lists the install/<role> directories to stage, in order.
	Roles []string
	// ArchivePath is the deploy-relative output path, e.g. "rootfs.cpio".
	ArchivePath string
	// InstructionsRoot is the directory holding the <role>.xml and
	// _default.xml instruction documents applied to the staged tree before
	// archiving. Only those two files directly inside it are read; its
	// subdirectories (such as per-package ones) are not searched.
	InstructionsRoot string
}

func (c CPIODeployment) BuildLabel(ctx context.Context, b Builder, target Label) error {
	lbl, ok := target.(label.Label)
	if !ok {
		return merrors.NewMuddleBug("cpio action received a non-label.Label target: %v", target)
	}
	tree := layout.Tree{Root: b.RootPath()}
	stageDir := filepath.Join(tree.Deploy(), ".staging-"+lbl.Name)
	archivePath := filepath.Join(tree.Deploy(), c.ArchivePath)

	if b.JustPrint() {
		mlog.Logit(mlog.Action, "would build cpio deployment", map[string]interface{}{
			"target": lbl.String(), "archive": archivePath, "roles": c.Roles,
		})
		return nil
	}

	if err := os.RemoveAll(stageDir); err != nil {
		return merrors.NewGiveUp("clearing staging directory %s: %v", stageDir, err)
	}
	for _, role := range c.Roles {
		src := filepath.Join(tree.Install(), role)
		if err := copyRoleInto(src, stageDir); err != nil {
			return err
		}
		if err := applyRoleInstructions(tree, c.InstructionsRoot, role, stageDir); err != nil {
			return err
		}
	}

	return writeCPIOArchive(ctx, stageDir, archivePath)
}

func (CPIODeployment) RequiresMaster() bool { return true }
func (CPIODeployment) Name() string         { return "cpio-deployment" }

func copyRoleInto(src, stageDir string) error {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(stageDir, rel)
		if info.IsDir() {
			return os.MkdirAll(dest, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(dest, data, info.Mode())
	})
}

func applyRoleInstructions(tree layout.Tree, instructionsRoot, role, stageDir string) error {
	candidates := []string{
		filepath.Join(instructionsRoot, role+".xml"),
		filepath.Join(instructionsRoot, "_default.xml"),
	}
	var docs []*instructions.Document
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		doc, err := instructions.Load(path)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	instructions.SortByPriority(docs)
	for _, doc := range docs {
		if err := instructions.Apply(doc, stageDir); err != nil {
			return err
		}
	}
	return nil
}

// writeCPIOArchive shells out to the system `cpio` binary (newc format, the
// format Linux initramfs images use), piping a find-style file list on
// stdin the way deployments/cpio.py itself drives the `cpio` command line.
func writeCPIOArchive(ctx context.Context, stageDir, archivePath string) error {
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return merrors.NewGiveUp("creating %s: %v", filepath.Dir(archivePath), err)
	}
	out, err := os.Create(archivePath)
	if err != nil {
		return merrors.NewGiveUp("creating archive %s: %v", archivePath, err)
	}
	defer out.Close()

	find := exec.CommandContext(ctx, "find", ".", "-depth", "-print")
	find.Dir = stageDir
	fileList, err := find.StdoutPipe()
	if err != nil {
		return merrors.NewGiveUp("preparing file list for %s: %v", archivePath, err)
	}

	cpio := exec.CommandContext(ctx, "cpio", "-o", "-H", "newc")
	cpio.Dir = stageDir
	cpio.Stdin = fileList
	cpio.Stdout = out
	cpio.Stderr = os.Stderr

	mlog.Logit(mlog.Action, "writing cpio archive", map[string]interface{}{"archive": archivePath, "stage": stageDir})

	if err := cpio.Start(); err != nil {
		return merrors.NewGiveUp("starting cpio for %s: %v", archivePath, err)
	}
	if err := find.Run(); err != nil {
		return merrors.NewGiveUp("listing %s for cpio: %v", stageDir, err)
	}
	if err := cpio.Wait(); err != nil {
		return merrors.NewGiveUp("cpio failed writing %s: %v", archivePath, err)
	}
	return nil
}
