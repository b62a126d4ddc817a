package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muddle-build/muddle/internal/label"
)

// newCheckoutCmd groups the checkout-category operations of spec.md §6:
// pulling, merging and committing against the checkouts a build description
// registered, each just a BuildLabel/KillLabel call against the relevant tag.
func newCheckoutCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Operate on checkouts: pull, merge, or re-run a checkout",
	}
	cmd.AddCommand(
		newCheckoutTagCmd(flags, "pull", label.Pulled, "Pull the named checkouts (or every checkout) up to date"),
		newCheckoutTagCmd(flags, "merge", label.Merged, "Merge upstream changes into the named checkouts"),
		newCheckoutTagCmd(flags, "redo", label.CheckedOut, "Re-run the checkout step for the named checkouts"),
	)
	return cmd
}

func newCheckoutTagCmd(flags *globalFlags, use, tag, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [checkout ...]",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBuilder(flags, "")
			if err != nil {
				return err
			}
			defer b.Close()

			var targets []label.Label
			if len(args) == 0 {
				targets = []label.Label{label.New(label.Checkout, label.Wildcard, "", tag, "")}
			} else {
				for _, arg := range args {
					l, err := label.Parse(arg, label.Defaults{Type: label.Checkout, Tag: tag})
					if err != nil {
						return err
					}
					targets = append(targets, l)
				}
			}
			if tag == label.CheckedOut {
				for i, target := range targets {
					if err := b.KillLabel(cmdContext(), target); err != nil {
						return err
					}
					targets[i] = target
				}
			}
			for _, target := range targets {
				if _, err := b.BuildLabel(cmdContext(), target, false); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: done\n", use)
			return nil
		},
	}
}
