package cmd

import (
	"fmt"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/spf13/cobra"

	"github.com/agentic-research/stratum/internal/tree"
)

var resolveQuery string

func init() {
	resolveCmd.Flags().StringVarP(&resolveQuery, "query", "q", "", "JSONPath expression evaluated against the resolved properties")
	rootCmd.AddCommand(resolveCmd, pathCmd)
}

var resolveCmd = &cobra.Command{
	Use:   "resolve ID",
	Short: "Compute the effective configuration of a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, owner, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }() // safe to ignore

		resolved, err := tree.Resolve(cmd.Context(), s, owner, args[0])
		if err != nil {
			return err
		}

		if resolveQuery == "" {
			return printJSON(resolved)
		}

		expr, err := jp.ParseString(resolveQuery)
		if err != nil {
			return fmt.Errorf("parse query %q: %w", resolveQuery, err)
		}
		data := make(map[string]any, len(resolved.Properties))
		for k, v := range resolved.Properties {
			data[k] = v.Interface()
		}
		return printJSON(expr.Get(data))
	},
}

var pathCmd = &cobra.Command{
	Use:   "path ID",
	Short: "Show the root-first ancestor path of a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, owner, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }() // safe to ignore

		path, err := tree.ResolvePath(cmd.Context(), s, owner, args[0])
		if err != nil {
			return err
		}
		for depth, n := range path {
			fmt.Printf("%s%s\t%s\n", strings.Repeat("  ", depth), n.ID, n.Name)
		}
		return nil
	},
}
