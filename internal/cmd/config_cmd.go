package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/Digital-Shane/episode-tidy/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the active configuration and where it lives",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}

		// Don't leak credentials into terminal scrollback.
		display := *cfg
		if display.TVDBAPIKey != "" {
			display.TVDBAPIKey = "********"
		}
		if display.TVDBUserKey != "" {
			display.TVDBUserKey = "********"
		}

		data, err := json.MarshalIndent(&display, "", "  ")
		if err != nil {
			return err
		}
		fmt.Printf("%s\n\n%s\n", path, data)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file if none exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
