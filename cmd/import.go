package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/stratum/internal/tree"
)

var importParent string

func init() {
	importCmd.Flags().StringVarP(&importParent, "parent", "p", "", "Attach imported top-level nodes under this node")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Create a whole tree from a YAML document, atomically",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		s, owner, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }() // safe to ignore

		created, err := tree.Import(cmd.Context(), s, owner, data, importParent)
		if err != nil {
			return err
		}
		for _, n := range created {
			fmt.Printf("%s\t%s\t%s\n", n.ID, n.Type, n.Name)
		}
		fmt.Printf("imported %d node(s)\n", len(created))
		return nil
	},
}
