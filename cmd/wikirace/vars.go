package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neboloop/wikirace/internal/config"
	"github.com/neboloop/wikirace/internal/logging"
)

// Shared CLI flags (used across multiple command files)
var (
	cfgFile  string
	logLevel string
	verbose  bool
)

// ServerConfig holds the loaded configuration (set by main, replaced by
// --config).
var ServerConfig *config.Config

// SetupRootCmd configures the root command with all subcommands and flags
func SetupRootCmd(c *config.Config) *cobra.Command {
	ServerConfig = c

	rootCmd := &cobra.Command{
		Use:   "wikirace",
		Short: "wikirace - race an AI agent across Wikipedia",
		Long: `wikirace pits you against an AI agent: both start on the same Wikipedia
article and race to a target article by following links only.

Just type 'wikirace' to start the server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				loaded, err := config.LoadFile(cfgFile)
				if err != nil {
					return fmt.Errorf("load %s: %w", cfgFile, err)
				}
				*ServerConfig = loaded
			}
			opts := ServerConfig.LogOptions()
			if logLevel != "" {
				opts.Level = logLevel
			}
			if verbose {
				opts.Level = "debug"
			}
			return logging.Setup(opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunServe(cmd.Context(), false)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: embedded etc/wikirace.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add commands
	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(RaceCmd())
	rootCmd.AddCommand(PickCmd())
	rootCmd.AddCommand(KeysCmd())

	return rootCmd
}
