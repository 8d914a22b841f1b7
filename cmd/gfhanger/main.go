// Gfhanger controls GoFull smart clothes hangers through their cloud
// gateway.
//
// It logs in with the mobile app account, lists devices, sends raise,
// lower and stop commands, follows live status in a terminal dashboard and
// bridges everything to MQTT. A local gateway simulator is included for
// testing.
//
// Usage:
//
//	gfhanger [command] [flags]
//
// See 'gfhanger --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/gfhanger/internal/logging"
	"github.com/muurk/gfhanger/internal/version"
)

func main() {
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gfhanger",
	Short: "GoFull Smart Hanger Controller",
	Long: `Control GoFull smart clothes hangers through the vendor gateway.

Credentials are read from the config file (see 'gfhanger config path'),
with --mobile and --client-id overriding it. The password is prompted for
when it is not configured.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Global flags
var (
	configPath   string
	hostFlag     string
	portFlag     int
	logLevel     string
	mobileFlag   string
	clientIDFlag string
)

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: OS config dir)")
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "Gateway host (overrides config)")
	rootCmd.PersistentFlags().IntVar(&portFlag, "port", 0, "Gateway port (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")
	rootCmd.PersistentFlags().StringVar(&mobileFlag, "mobile", "", "Account mobile number (overrides config)")
	rootCmd.PersistentFlags().StringVar(&clientIDFlag, "client-id", "", "Client id sent at login (overrides config)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gfhanger %s\n", version.Full())
	},
}
