package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ohler55/ojg/oj"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/agentic-research/stratum/api"
	"github.com/agentic-research/stratum/internal/config"
	"github.com/agentic-research/stratum/internal/store"
)

var (
	cfgPath string
	dbPath  string
	ownerID string
	verbose bool

	cfg config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "stratum.hcl", "Path to HCL config file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the node database (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&ownerID, "owner", "o", "", "Caller identity (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

var rootCmd = &cobra.Command{
	Use:           "stratum",
	Short:         "Stratum: hierarchical configuration trees with inheritance",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.DBPath = dbPath
		}
		if ownerID != "" {
			cfg.Owner = ownerID
		}

		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
		}
		if verbose {
			level = zerolog.DebugLevel
		}
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).With().Timestamp().Logger()
		// The tree layer logs through the context, not the global.
		cmd.SetContext(log.Logger.WithContext(cmd.Context()))
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openStore opens the configured database and resolves the caller identity.
func openStore() (*store.SQLiteStore, string, error) {
	if cfg.Owner == "" {
		return nil, "", fmt.Errorf("owner identity required (set --owner or owner in %s)", cfgPath)
	}
	s, err := store.OpenSQLiteStore(cfg.DBPath, log.Logger)
	if err != nil {
		return nil, "", err
	}
	return s, cfg.Owner, nil
}

// printJSON renders v as indented JSON on stdout. Marshaling goes through
// encoding/json first so the api types' custom codecs apply, then ojg
// re-indents without touching number forms.
func printJSON(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	parsed, err := oj.Parse(raw)
	if err != nil {
		return err
	}
	fmt.Println(oj.JSON(parsed, 2))
	return nil
}

// parseValueArg decodes a CLI value argument: valid JSON is taken as-is
// (numbers, booleans, objects), anything else becomes a string.
func parseValueArg(raw string) api.Value {
	if v, err := api.ParseValue([]byte(raw)); err == nil {
		return v
	}
	return api.String(raw)
}

// parseKeyValues decodes repeated key=value flags into a value map.
func parseKeyValues(pairs []string) (map[string]api.Value, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]api.Value, len(pairs))
	for _, pair := range pairs {
		key, val, ok := splitKeyValue(pair)
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		out[key] = parseValueArg(val)
	}
	return out, nil
}

func splitKeyValue(pair string) (key, val string, ok bool) {
	for i := 0; i < len(pair); i++ {
		if pair[i] == '=' {
			return pair[:i], pair[i+1:], i > 0
		}
	}
	return "", "", false
}
