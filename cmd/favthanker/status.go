package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"favthanker/pkg/audit"
	"favthanker/pkg/auth"
	"favthanker/pkg/checkpoint"
	"favthanker/pkg/ui"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show site reachability, the stored account and run history",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	online := newSessionManager(cfg, client, nil).VerifyOnline(cmd.Context())
	if online {
		ui.PrintInfo("Site", cfg.Site.BaseURL+" (online)")
	} else {
		ui.PrintInfo("Site", cfg.Site.BaseURL+" (unreachable)")
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	account, err := storedAccount(manager, cfg.Account.Username)
	if err != nil {
		return err
	}
	if account == nil {
		ui.PrintInfo("Account", "none stored")
		return nil
	}
	ui.PrintInfo("Account", account.Username)
	ui.PrintInfo("Session stored", account.LastModified.Format("2006-01-02 15:04:05"))
	ui.PrintInfo("Cookie rotations", strconv.Itoa(account.Rotations))

	if cfg.Audit.Format == "sqlite" || cfg.Audit.Format == "both" {
		db, err := audit.NewSQLiteWriter(filepath.Join(cfg.Audit.Directory, cfg.Audit.Database))
		if err != nil {
			return err
		}
		defer db.Close()
		stats, err := db.Stats(cmd.Context())
		if err != nil {
			return err
		}
		ui.PrintInfo("Shouts recorded", strconv.Itoa(stats.Shouts))
		ui.PrintInfo("Favorites cleared", strconv.Itoa(stats.Favorites))
		if stats.LastShout != nil {
			ui.PrintInfo("Last shout", stats.LastShout.Local().Format("2006-01-02 15:04:05"))
		}
	}

	cps, err := checkpoint.NewManager(account.Username, cfg.Checkpoint.Directory)
	if err != nil {
		return err
	}
	cp, err := cps.Load()
	if err != nil {
		return err
	}
	if cp != nil {
		ui.PrintWarning(fmt.Sprintf("Unfinished run %s: %d of %d processed; 'favthanker run' resumes it while the notifications are unchanged", cp.RunID, cp.Processed, cp.Total))
	}
	return nil
}
