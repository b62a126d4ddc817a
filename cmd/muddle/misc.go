package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newMiscCmd groups spec.md §6's misc category: commands that don't fit
// init/checkout/package/deployment/query/stamp, grounded on the teacher's
// own "one-off" commands (DoWhoami, DoStats) living alongside the
// structured ones.
func newMiscCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "misc", Short: "One-off diagnostics: whereami, licenses"}
	cmd.AddCommand(newWhereAmICmd(flags), newLicensesCmd(flags))
	return cmd
}

func newWhereAmICmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whereami [path]",
		Short: "Classify a path relative to the build tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBuilder(flags, "")
			if err != nil {
				return err
			}
			defer b.Close()

			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			kind, l, rel, err := b.FindLocationInTree(path)
			if err != nil {
				return err
			}
			if l != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", kind, *l, rel)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", kind, rel)
			}
			return nil
		},
	}
}

func newLicensesCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "licenses",
		Short: "Report implicit GPL propagation and license clashes",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBuilder(flags, "")
			if err != nil {
				return err
			}
			defer b.Close()

			out := cmd.OutOrStdout()
			implicit := b.Licenses().ImplicitGPL(b.RuleSet())
			fmt.Fprintf(out, "implicit GPL (%d):\n", len(implicit))
			for _, l := range implicit {
				fmt.Fprintf(out, "  %s\n", l)
			}

			clashes := b.Licenses().DetectGPLClashes(b.RuleSet())
			fmt.Fprintf(out, "GPL/proprietary clashes (%d):\n", len(clashes))
			for _, c := range clashes {
				fmt.Fprintf(out, "  %s: %s\n", c.Label, c.Category)
			}

			mixes := b.Licenses().DetectRoleMixing()
			fmt.Fprintf(out, "role-mixing clashes (%d):\n", len(mixes))
			for _, m := range mixes {
				fmt.Fprintf(out, "  role %s\n", m.Role)
			}
			return nil
		},
	}
}
