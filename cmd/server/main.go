// Command beacon runs the SMS alert relay and its directory tooling.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath is the optional YAML config file
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "beacon",
	Short: "SMS alert relay with a role-based contact directory",
	Long: `beacon relays inbound SMS: trusted staff broadcast to subscribers,
everything else is escalated to administrators.

Configuration comes from built-in defaults, the optional --config YAML file
and BEACON_* environment variables, in that order.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(contactsCmd)
}
