package action

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/muddle-build/muddle/internal/label"
	"github.com/muddle-build/muddle/internal/layout"
	"github.com/muddle-build/muddle/internal/merrors"
	"github.com/muddle-build/muddle/internal/mlog"
	"github.com/muddle-build/muddle/internal/shelltext"
)

// Make runs a Makefile-driven build in a checkout's source directory, one
// shell command per package tag - spec.md §1's "make" action, the most
// common concrete Action a build description registers. Grounded on
// original_source/muddled/action.py's (inferred) RunInRoleDir/make wrapper,
// using the teacher's own runProcess idiom (surgeon/inner.go:
// shlex.Split + exec.Command + Stdin/Stdout/Stderr passthrough) for command
// execution.
type Make struct {
	// SourceDir is the checkout-relative directory containing the
	// Makefile, e.g. "my_checkout" for src/my_checkout.
	SourceDir string

	// Commands overrides the shell command run for a given tag; any tag
	// absent from this map falls back to DefaultCommands.
	Commands map[string]string
}

// DefaultCommands is the command run for each build tag when Commands
// doesn't override it, per original_source's default Makefile targets.
var DefaultCommands = map[string]string{
	label.PreConfig:   "make config",
	label.Configured:  "make configure",
	label.Built:       "make",
	label.Installed:   "make install",
	label.Clean:       "make clean",
	label.DistClean:   "make distclean",
}

func (m Make) commandFor(tag string) (string, bool) {
	if cmd, ok := m.Commands[tag]; ok {
		return cmd, true
	}
	cmd, ok := DefaultCommands[tag]
	return cmd, ok
}

// BuildLabel runs the command registered for target's tag inside
// <root>/src/<SourceDir>. The command inherits this process's environment
// unchanged; no MUDDLE_* variables are added to it.
func (m Make) BuildLabel(ctx context.Context, b Builder, target Label) error {
	lbl, ok := target.(label.Label)
	if !ok {
		return merrors.NewMuddleBug("make action received a non-label.Label target: %v", target)
	}
	cmd, ok := m.commandFor(lbl.Tag)
	if !ok {
		return merrors.NewUnsupported("make action has no command registered for tag %q of %s", lbl.Tag, lbl)
	}

	tree := layout.Tree{Root: b.RootPath()}
	dir := filepath.Join(tree.Src(), m.SourceDir)

	if b.JustPrint() {
		mlog.Logit(mlog.Action, "would run make command", map[string]interface{}{
			"target": lbl.String(), "dir": dir, "command": cmd,
		})
		return nil
	}

	return runInDir(ctx, dir, cmd, fmt.Sprintf("building %s", lbl))
}

func (Make) RequiresMaster() bool { return false }
func (Make) Name() string         { return "make" }

// runInDir shells out to command in dir, streaming stdio the way the
// teacher's runProcess does, reporting failure as a GiveUp (spec.md §4.4's
// taxonomy: a failed build step is a user-level error, not an internal bug).
func runInDir(ctx context.Context, dir, command, legend string) error {
	words, err := shelltext.Split(command)
	if err != nil {
		return err
	}
	if len(words) == 0 {
		return merrors.NewGiveUp("empty command for %s", legend)
	}
	mlog.Logit(mlog.Action, "executing", map[string]interface{}{"dir": dir, "command": command})

	cmd := exec.CommandContext(ctx, words[0], words[1:]...)
	cmd.Dir = dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return merrors.NewGiveUp("%s: command %q failed: %v", legend, command, err)
	}
	return nil
}
