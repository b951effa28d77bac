// Trellis-server is a configurable HTTP/1.1 and WebSocket server.
//
// Connections are served by a fixed pool of workers sharing one I/O context.
// Handlers (static files, canned responses, redirects, e-mail forms, S3
// objects) are mounted at URL paths by a YAML configuration file.
//
// Usage:
//
//	trellis-server serve [flags]
//
// See 'trellis-server --help' for available commands.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/trellis/internal/ui"
	"github.com/muurk/trellis/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if ui.IsTerminal() {
			ui.NewPrinter(os.Stderr).PrintError("trellis-server failed", err, "Run 'trellis-server --help' for usage.")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "trellis-server",
	Short: "Trellis HTTP and WebSocket server",
	Long: `A small HTTP/1.1 and WebSocket server driven by a worker pool.

Handlers are mounted at URL paths by the configuration file. Run
'trellis-server config init' to write a commented default configuration.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default $XDG_CONFIG_HOME/trellis/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(version.Get())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "trellis-server %s\n", version.Full())
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print version information as JSON")
}
