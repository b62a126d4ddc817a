package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muddle-build/muddle/internal/layout"
)

func newInitCmd(flags *globalFlags) *cobra.Command {
	var branch string
	cmd := &cobra.Command{
		Use:   "init <repository-url> <description-path>",
		Short: "Lay out a new build tree in the current directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repoURL, descriptionPath := args[0], args[1]
			tree, err := layout.Init(".")
			if err != nil {
				return err
			}
			if err := tree.SetRootRepository(repoURL); err != nil {
				return err
			}
			if err := tree.SetDescription(descriptionPath); err != nil {
				return err
			}
			if branch != "" {
				if err := tree.SetDescriptionBranch(branch); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialised muddle tree at %s\n", tree.Root)
			return nil
		},
	}
	cmd.Flags().StringVar(&branch, "branch", "", "branch holding the root build description")
	return cmd
}
