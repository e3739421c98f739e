package cmd

import (
	"github.com/spf13/cobra"

	"github.com/pawprintlabs/pawprint/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a pawprint configuration with an interactive wizard",
	Long:  `Runs an interactive wizard for the listen address, data directory and geolocation settings, then writes the configuration file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, download, err := config.RunWizard(cfgFile)
		if err != nil {
			return err
		}
		if download {
			return downloadDatabases(cmd, cfg)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
