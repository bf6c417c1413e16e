package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/agentic-research/stratum/internal/store"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the node database and a starter config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.OpenSQLiteStore(cfg.DBPath, log.Logger)
		if err != nil {
			return err
		}
		if err := s.Close(); err != nil {
			return err
		}
		fmt.Printf("database ready at %s\n", cfg.DBPath)

		if _, err := os.Stat(cfgPath); err == nil {
			return nil
		}
		starter := fmt.Sprintf("db_path   = %q\nowner     = %q\nlog_level = %q\n",
			cfg.DBPath, cfg.Owner, cfg.LogLevel)
		if err := os.WriteFile(cfgPath, []byte(starter), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", cfgPath, err)
		}
		fmt.Printf("wrote %s\n", cfgPath)
		return nil
	},
}
