package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muddle-build/muddle/internal/label"
	"github.com/muddle-build/muddle/internal/layout"
	"github.com/muddle-build/muddle/internal/repo"
	"github.com/muddle-build/muddle/internal/stamp"
)

// shellRevisionResolver asks the working copy itself for its current
// revision, per spec.md §4.6's three-way Force/JustUseHead/ordinary
// resolution: git/bzr/svn each have their own "what revision am I at"
// incantation.
type shellRevisionResolver struct{ tree layout.Tree }

func (r shellRevisionResolver) Revision(ctx context.Context, target label.Label, cd *repo.CheckoutData, opts stamp.ResolveOptions) (string, error) {
	if opts.Force && cd.Repo.Revision != "" {
		return cd.Repo.Revision, nil
	}
	dir := filepath.Join(r.tree.Src(), cd.Dir, cd.Leaf)
	switch cd.Repo.VCS {
	case "git":
		ref := "HEAD"
		if !opts.JustUseHead && cd.Repo.Branch != "" {
			ref = cd.Repo.Branch
		}
		return revParse(ctx, dir, ref)
	case "bzr":
		return shellOutput(ctx, dir, "bzr", "revno")
	case "svn":
		return shellOutput(ctx, dir, "svnversion")
	default:
		return "", fmt.Errorf("cannot resolve a revision for VCS %q", cd.Repo.VCS)
	}
}

func revParse(ctx context.Context, dir, ref string) (string, error) {
	return shellOutput(ctx, dir, "git", "rev-parse", ref)
}

func shellOutput(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s %v (in %s): %w", name, args, dir, err)
	}
	return strings.TrimSpace(out.String()), nil
}

// restoreCheckout drives a fresh checkout at its stamped revision during
// `muddle stamp restore`, per spec.md §4.6/§7.
func restoreCheckout(ctx context.Context, entry stamp.CheckoutEntry, destPath string) error {
	r := repo.Repository{VCS: entry.VCS, BaseURL: entry.RepoURL, Branch: entry.Branch}
	if err := (shellVCS{}).Checkout(ctx, r, destPath); err != nil {
		return err
	}
	if entry.Revision == "" {
		return nil
	}
	switch entry.VCS {
	case "git":
		return runIn(ctx, destPath, "git", "checkout", entry.Revision)
	case "svn":
		return runIn(ctx, destPath, "svn", "update", "-r", entry.Revision)
	default:
		return nil
	}
}

func newStampCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stamp",
		Short: "Save, restore, and diff version stamps of a build tree",
	}
	cmd.AddCommand(newStampSaveCmd(flags), newStampRestoreCmd(flags), newStampDiffCmd(flags))
	return cmd
}

func newStampSaveCmd(flags *globalFlags) *cobra.Command {
	var force, justUseHead bool
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Write a version stamp of the current build tree to versions/",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBuilder(flags, "")
			if err != nil {
				return err
			}
			defer b.Close()

			resolver := shellRevisionResolver{tree: b.Tree}
			s, problems, err := stamp.Build(cmdContext(), b, resolver, stamp.ResolveOptions{Force: force, JustUseHead: justUseHead})
			if err != nil {
				return err
			}
			path, sha1Hex, err := stamp.Save(s, problems, b.Tree.Versions(), "every")
			if err != nil {
				return err
			}
			for _, p := range problems {
				fmt.Fprintf(cmd.ErrOrStderr(), "stamp: %s left as .partial: %s\n", p.Checkout, p.Reason)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stamp written to %s (sha1 %s)\n", path, sha1Hex)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "use the build description's revision when a working copy disagrees")
	cmd.Flags().BoolVar(&justUseHead, "head", false, "stamp every checkout at HEAD regardless of its recorded branch")
	return cmd
}

func newStampRestoreCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <stamp-file> <destination>",
		Short: "Reconstruct a build tree from a version stamp",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			s, err := stamp.Restore(cmdContext(), string(text), args[1], restoreCheckout)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %d checkout(s) to %s\n", len(s.Checkouts), args[1])
			return nil
		},
	}
	return cmd
}

func newStampDiffCmd(flags *globalFlags) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "diff <stamp-file-a> <stamp-file-b>",
		Short: "Diff two version stamps",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := readStamp(args[0])
			if err != nil {
				return err
			}
			b, err := readStamp(args[1])
			if err != nil {
				return err
			}
			diffMode, err := parseDiffMode(mode)
			if err != nil {
				return err
			}
			text, err := stamp.Diff(a, b, args[0], args[1], diffMode)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "unified", "diff mode: unified, context, ndiff, or html")
	return cmd
}

func readStamp(path string) (*stamp.Stamp, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return stamp.Parse(string(text))
}

func parseDiffMode(mode string) (stamp.Mode, error) {
	switch mode {
	case "unified", "":
		return stamp.Unified, nil
	case "context":
		return stamp.Context, nil
	case "ndiff":
		return stamp.NDiff, nil
	case "html":
		return stamp.HTML, nil
	default:
		return "", fmt.Errorf("unknown diff mode %q", mode)
	}
}
