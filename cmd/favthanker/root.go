package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"favthanker/pkg/config"
	"favthanker/pkg/logger"
	"favthanker/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	username      string
	profilePath   string
	noColor       bool
	notifications bool
	verbose       bool

	// cfg is loaded once per invocation before any subcommand runs
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "favthanker",
	Short: "Thank everyone who favorited your art with a shout",
	Long: `Fav Thanker reads your favorite notifications, leaves a short thank-you shout
on each new fan's profile and clears the notifications afterwards.

Features:
  - Password login with captcha support, or reuse of browser cookies
  - Per-group messages chosen at random for friends and regulars
  - Skips people you already thanked or whose shout box is closed
  - Respects the site's shout limit with an automatic cooldown
  - Audit trail in CSV or SQLite and resumable progress
  - Scheduled runs with cron expressions`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.SetColor(!noColor && term.IsTerminal(int(os.Stdout.Fd())))

		flags := map[string]interface{}{
			"username": username,
			"profile":  profilePath,
		}
		if cmd.Flags().Changed("log-level") {
			flags["log-level"] = logLevel
		}
		if cmd.Flags().Changed("notifications") {
			flags["notifications"] = notifications
		}
		if verbose {
			flags["log-level"] = "debug"
		}

		loaded, err := config.Load(configFile, flags)
		if err != nil {
			return err
		}
		cfg = loaded

		if err := logger.Initialize(&cfg.Logging); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger.GetLogger().WithField("version", version).Debug("favthanker starting")

		if cmd.Name() == "run" || cmd.Name() == "watch" {
			ui.PrintLogo()
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.config/favthanker/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&username, "user", "u", "", "account to act as (default is the most recently stored one)")
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", "", "message profile file (default is <user>.json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", true, "enable desktop notifications")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show debug logs")

	rootCmd.SetVersionTemplate(`Fav Thanker {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
