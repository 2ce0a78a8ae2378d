package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	// A broken profile still yields usable defaults; the error surfaces once a command runs
	var profileErr error
	cfg, profileErr = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "allfence",
		Short: "CLI tool for the allfence ranking API",
		Long: `allfence is a CLI tool for the allfence JSON API.

It manages fencers, clubs and tournaments, records results and corrections,
and reads or maintains the rankings. Reads need no session; writes need an
admin token obtained with "allfence login".

Defaults come from ALLFENCE_* environment variables, then from the dotenv
profile at ~/.allfence/config (or ALLFENCE_PROFILE).`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if profileErr != nil {
				return profileErr
			}
			if cfg.Output != "text" && cfg.Output != "json" {
				return fmt.Errorf("invalid output format %q: must be text or json", cfg.Output)
			}

			// Load token from file if not provided via flag/env
			if err := cfg.LoadToken(); err != nil {
				return err
			}

			// Create HTTP client
			client = NewClient(cfg.ServerURL, cfg.Token, cfg.Timeout)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: ALLFENCE_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.Token, "token", cfg.Token, "Session token (env: ALLFENCE_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&cfg.TokenFile, "token-file", cfg.TokenFile, "Token file path (env: ALLFENCE_TOKEN_FILE)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json (env: ALLFENCE_OUTPUT)")
	rootCmd.PersistentFlags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Request timeout (env: ALLFENCE_TIMEOUT)")

	// Add subcommands
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newFencerCmd())
	rootCmd.AddCommand(newClubCmd())
	rootCmd.AddCommand(newTournamentCmd())
	rootCmd.AddCommand(newRankingsCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// output returns a formatter writing to the command's stdout
func output(cmd *cobra.Command) *Output {
	return NewOutput(cfg.Output, cmd.OutOrStdout())
}
