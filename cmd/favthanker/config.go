package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"favthanker/pkg/config"
	"favthanker/pkg/models"
	"favthanker/pkg/ui"
)

var initProfile bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage Fav Thanker configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (FAVTHANKER_*)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	RunE:  runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd, showCmd)
	initCmd.Flags().BoolVar(&initProfile, "profile", false, "also write an example message profile")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		ui.PrintWarning("Configuration file already exists", path)
	} else {
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		ui.PrintSuccess("Configuration file created: " + path)
	}

	if !initProfile {
		return nil
	}
	profile := cfg.ProfilePath()
	if profile == "" {
		return fmt.Errorf("pass --user or --profile to name the message profile")
	}
	if _, err := os.Stat(profile); err == nil {
		ui.PrintWarning("Profile already exists", profile)
		return nil
	}
	example := &config.Profile{
		Username: cfg.Account.Username,
		Messages: []string{
			"Thanks so much for the fav!",
			"Thank you for the fave, hope you enjoy the rest of my gallery!",
		},
		Groups: []models.Group{{
			Name:     "Friends",
			Users:    []string{"some_friend"},
			Messages: []string{"Thanks for the fav, friend!"},
		}},
	}
	if err := config.SaveProfile(profile, example); err != nil {
		return err
	}
	ui.PrintSuccess("Message profile created: " + profile)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (FAVTHANKER_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (searched default locations)")
	}
	fmt.Println("4. Default values")
	if p := cfg.ProfilePath(); p != "" {
		fmt.Printf("\nMessage profile: %s\n", strings.TrimSpace(p))
	}
	return nil
}
