package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agentic-research/stratum/internal/tree"
)

var (
	setAsDefault   bool
	unsetAsDefault bool
)

func init() {
	setCmd.Flags().BoolVar(&setAsDefault, "default", false, "Set the key in defaults instead of properties")
	unsetCmd.Flags().BoolVar(&unsetAsDefault, "default", false, "Remove the key from defaults instead of properties")
	rootCmd.AddCommand(setCmd, unsetCmd)
}

var setCmd = &cobra.Command{
	Use:   "set ID KEY VALUE",
	Short: "Set one property (or default) key on a node",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, owner, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }() // safe to ignore

		value := parseValueArg(args[2])
		setter := tree.SetProperty
		if setAsDefault {
			setter = tree.SetDefault
		}
		node, err := setter(cmd.Context(), s, owner, args[0], args[1], value)
		if err != nil {
			return err
		}
		return printJSON(node)
	},
}

var unsetCmd = &cobra.Command{
	Use:   "unset ID KEY",
	Short: "Remove one property (or default) key from a node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, owner, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }() // safe to ignore

		remover := tree.RemoveProperty
		if unsetAsDefault {
			remover = tree.RemoveDefault
		}
		node, err := remover(cmd.Context(), s, owner, args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(node)
	},
}
