package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/stratum/api"
	"github.com/agentic-research/stratum/internal/tree"
)

var (
	createType        string
	createParent      string
	createDescription string
	createProps       []string
	createDefaults    []string
)

func init() {
	createCmd.Flags().StringVarP(&createType, "type", "t", string(api.NodeTypeTerritory), "Node type (territory, center, user)")
	createCmd.Flags().StringVarP(&createParent, "parent", "p", "", "Parent node ID (empty creates a root)")
	createCmd.Flags().StringVar(&createDescription, "description", "", "Free-text description")
	createCmd.Flags().StringArrayVar(&createProps, "prop", nil, "Initial property as key=value (repeatable; value parsed as JSON)")
	createCmd.Flags().StringArrayVar(&createDefaults, "default", nil, "Initial default as key=value (repeatable; value parsed as JSON)")
	rootCmd.AddCommand(createCmd, getCmd, lsCmd, updateCmd, rmCmd)
}

var createCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a configuration node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, owner, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }() // safe to ignore

		props, err := parseKeyValues(createProps)
		if err != nil {
			return err
		}
		defs, err := parseKeyValues(createDefaults)
		if err != nil {
			return err
		}
		node, err := s.Create(cmd.Context(), owner, api.CreateNode{
			Name:        args[0],
			Type:        api.NodeType(createType),
			ParentID:    createParent,
			Description: createDescription,
			Properties:  props,
			Defaults:    defs,
		})
		if err != nil {
			return err
		}
		return printJSON(node)
	},
}

var getCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show one node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, owner, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }() // safe to ignore

		node, err := s.Get(cmd.Context(), owner, args[0])
		if err != nil {
			return err
		}
		return printJSON(node)
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls [PARENT_ID]",
	Short: "List root nodes, or the children of a node",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, owner, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }() // safe to ignore

		var nodes []api.Node
		if len(args) == 0 {
			nodes, err = s.ListRoots(cmd.Context(), owner)
		} else {
			if _, err := s.Get(cmd.Context(), owner, args[0]); err != nil {
				return err
			}
			nodes, err = s.ListChildren(cmd.Context(), owner, args[0])
		}
		if err != nil {
			return err
		}
		for _, n := range nodes {
			fmt.Printf("%s\t%s\t%s\n", n.ID, n.Type, n.Name)
		}
		return nil
	},
}

var (
	updateName        string
	updateDescription string
	updateProps       []string
	updateDefaults    []string
)

func init() {
	updateCmd.Flags().StringVar(&updateName, "name", "", "New display name")
	updateCmd.Flags().StringVar(&updateDescription, "description", "", "New description")
	updateCmd.Flags().StringArrayVar(&updateProps, "prop", nil, "Replacement property map as key=value (repeatable; replaces the whole map)")
	updateCmd.Flags().StringArrayVar(&updateDefaults, "default", nil, "Replacement default map as key=value (repeatable; replaces the whole map)")
}

var updateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Partially update a node (supplied maps replace wholesale)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, owner, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }() // safe to ignore

		var req api.UpdateNode
		if cmd.Flags().Changed("name") {
			req.Name = &updateName
		}
		if cmd.Flags().Changed("description") {
			req.Description = &updateDescription
		}
		if cmd.Flags().Changed("prop") {
			if req.Properties, err = parseKeyValues(updateProps); err != nil {
				return err
			}
			if req.Properties == nil {
				req.Properties = map[string]api.Value{}
			}
		}
		if cmd.Flags().Changed("default") {
			if req.Defaults, err = parseKeyValues(updateDefaults); err != nil {
				return err
			}
			if req.Defaults == nil {
				req.Defaults = map[string]api.Value{}
			}
		}
		node, err := s.Update(cmd.Context(), owner, args[0], req)
		if err != nil {
			return err
		}
		return printJSON(node)
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a node and its entire subtree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, owner, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }() // safe to ignore

		count, err := tree.DeleteSubtree(cmd.Context(), s, owner, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d node(s)\n", count)
		return nil
	},
}
