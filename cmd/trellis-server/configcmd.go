package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muurk/trellis/internal/config"
	"github.com/muurk/trellis/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var forceInit bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a commented default configuration to --config, or to
$XDG_CONFIG_HOME/trellis/config.yaml when --config is not given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.WriteDefault(configPath, forceInit)
		if err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Configuration written", map[string]string{
			"Path": path,
			"Next": "trellis-server serve --config " + path,
		})
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the default configuration path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
		return err
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}
