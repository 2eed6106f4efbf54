package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

type rootOptions struct {
	configPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "sakhi",
		Short: "Sakhi maternal wellness companion",
		Long: `Sakhi serves the maternal wellness web app: the chat companion, learning content,
reminders, period tracker and emergency contacts.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Disable completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"config file path (default is <user config dir>/sakhi/config.yaml)")

	rootCmd.AddCommand(newServeCmd(opts), newAskCmd(opts))

	return rootCmd
}
