package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muddle-build/muddle/internal/builder"
	"github.com/muddle-build/muddle/internal/label"
	"github.com/muddle-build/muddle/internal/scheduler"
)

func newBuildCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [label ...]",
		Short: "Build the named labels, or the default roles if none are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBuilder(flags, "")
			if err != nil {
				return err
			}
			defer b.Close()

			targets, err := resolveTargets(b, args, label.Package, label.PostInstall)
			if err != nil {
				return err
			}
			for _, target := range targets {
				failures, err := b.BuildLabel(cmdContext(), target, false)
				if err != nil {
					return err
				}
				if len(failures) > 0 {
					fmt.Fprint(cmd.OutOrStdout(), scheduler.FailureReport(failures))
					return fmt.Errorf("build of %s failed", target)
				}
			}
			return nil
		},
	}
	return cmd
}

func newDeployCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy [deployment ...]",
		Short: "Run the named deployments, or the default deployments if none are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBuilder(flags, "")
			if err != nil {
				return err
			}
			defer b.Close()

			names := args
			if len(names) == 0 {
				names = b.DefaultDeployments()
			}
			if len(names) == 0 {
				return fmt.Errorf("no deployments named and no default deployments registered")
			}
			for _, name := range names {
				target := label.New(label.Deployment, name, "", label.Deployed, "")
				failures, err := b.BuildLabel(cmdContext(), target, false)
				if err != nil {
					return err
				}
				if len(failures) > 0 {
					fmt.Fprint(cmd.OutOrStdout(), scheduler.FailureReport(failures))
					return fmt.Errorf("deployment %s failed", name)
				}
			}
			return nil
		},
	}
	return cmd
}

// resolveTargets turns positional label-text arguments into concrete
// labels, defaulting to defaultType/defaultTag applied to each of the
// build's default roles when no arguments are given, per spec.md §6's
// "build with no arguments builds the default roles" behaviour.
func resolveTargets(b *builder.Builder, args []string, defaultType label.Type, defaultTag string) ([]label.Label, error) {
	if len(args) == 0 {
		var targets []label.Label
		for _, role := range b.DefaultRoles() {
			targets = append(targets, label.New(defaultType, label.Wildcard, role, defaultTag, ""))
		}
		if len(targets) == 0 {
			return nil, fmt.Errorf("no labels named and no default roles registered")
		}
		return targets, nil
	}
	var targets []label.Label
	for _, arg := range args {
		l, err := label.Parse(arg, label.Defaults{Type: defaultType, Tag: defaultTag})
		if err != nil {
			return nil, err
		}
		targets = append(targets, l)
	}
	return targets, nil
}
