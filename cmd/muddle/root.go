package main

import (
	"github.com/spf13/cobra"

	"github.com/muddle-build/muddle/internal/builder"
	"github.com/muddle-build/muddle/internal/layout"
	"github.com/muddle-build/muddle/internal/mlog"
)

// globalFlags carries the persistent flags every subcommand reads, the Go
// analogue of the teacher's package-level `control` state
// (surgeon/reposurgeon.go), kept here instead as an explicit struct since
// cobra commands are plain functions rather than methods on a REPL object.
type globalFlags struct {
	justPrint bool
	verbose   bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "muddle",
		Short: "Build and deploy a tree of checkouts, packages and deployments",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.verbose {
				mlog.Enable(mlog.Scheduler, mlog.Store, mlog.VCS, mlog.Stamp, mlog.License, mlog.DSL, mlog.Action)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&flags.justPrint, "just-print", "n", false,
		"report what would be done without doing it")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false,
		"enable verbose logging across every subsystem")

	root.AddCommand(newInitCmd(flags))
	root.AddCommand(newCheckoutCmd(flags))
	root.AddCommand(newBuildCmd(flags))
	root.AddCommand(newDeployCmd(flags))
	root.AddCommand(newStampCmd(flags))
	root.AddCommand(newQueryCmd(flags))
	root.AddCommand(newMiscCmd(flags))
	return root
}

// openBuilder finds the enclosing build tree from the working directory,
// opens its tag store and loads its build description, per spec.md §4.5 -
// the shared setup every non-init subcommand needs.
func openBuilder(flags *globalFlags, descriptionPath string) (*builder.Builder, error) {
	tree, err := layout.FindRoot(".")
	if err != nil {
		return nil, err
	}
	b, err := builder.New(tree, flags.justPrint)
	if err != nil {
		return nil, err
	}
	if descriptionPath == "" {
		descriptionPath, err = tree.Description()
		if err != nil {
			return nil, err
		}
	}
	host := dslHost()
	if err := b.LoadDescription(cmdContext(), host.LoadFunc(descriptionPath)); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}
