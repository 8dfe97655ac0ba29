// Formrelay binds to the contact forms of an HTML page and submits them to
// a Formspree-style JSON endpoint.
//
// It can inspect a page (scan), submit one of its forms from the terminal
// (send), or serve the page and relay browser submissions while streaming
// each form's state over a websocket (serve). Relays started with
// --advertise can be found on the local network with discover.
//
// Usage:
//
//	formrelay [command] [flags]
//
// See 'formrelay --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/formrelay/internal/config"
	"github.com/muurk/formrelay/internal/logging"
	"github.com/muurk/formrelay/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
)

// cfg is loaded by the root PersistentPreRunE before any subcommand runs
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "formrelay",
	Short: "Contact form submission relay",
	Long: `Formrelay drives the contact forms of an HTML page the way a browser would.

Each form whose class and action match the configured selector is submitted
as multipart/form-data with Accept: application/json. While the request is
in flight the loading region is shown and the submit button is disabled;
afterwards either the success region (form reset) or the error region (with
the provider's message) is shown and hidden again automatically.`,
	Version:           version.Version,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/formrelay/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file and sets up logging. The --log-level
// flag wins over FORMRELAY_LOG_LEVEL, which wins over log_level in the file.
func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = c
	return initLogging(cfg.LogLevel)
}

func initLogging(fallback string) error {
	level := logLevel
	if level == "" {
		level = os.Getenv(logging.LogLevelEnvVar)
	}
	if level == "" {
		level = fallback
	}
	return logging.Initialize(level)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "formrelay %s\n", version.Full())
	},
}
