package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"favthanker/internal/scheduler"
	"favthanker/pkg/logger"
	"favthanker/pkg/ui"
)

var (
	watchCron     string
	watchTimezone string
	watchNow      bool
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run on a schedule",
	Long: `Keep running and start a run on every tick of a cron schedule. A tick
that arrives while a run is still going is skipped. Scheduled runs only use the
stored session; log in with 'favthanker auth login' first.`,
	Example: `  # Every day at 09:00
  favthanker watch --cron "0 9 * * *"

  # Every six hours, starting now
  favthanker watch --cron "@every 6h" --now`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchCron, "cron", "@every 6h", "cron expression or descriptor")
	watchCmd.Flags().StringVar(&watchTimezone, "timezone", "", "timezone for the schedule (default local)")
	watchCmd.Flags().BoolVar(&watchNow, "now", false, "also run once immediately")
}

func runWatch(cmd *cobra.Command, args []string) error {
	log := logger.GetLogger().WithField("component", "watch")

	sched, err := scheduler.New(watchTimezone, log)
	if err != nil {
		return err
	}

	job := func(ctx context.Context) {
		j := newRunJob(cfg, false)
		stop := context.AfterFunc(ctx, j.stop)
		defer stop()
		// in-flight requests finish; the stop takes effect at the next suspension point
		if _, err := j.run(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Error("scheduled run failed")
			j.notifier.Failed(cfg.Account.Username, err)
		}
	}
	if err := sched.Schedule(watchCron, job); err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	sched.Start()
	if watchNow {
		if err := sched.RunNow(); err != nil {
			return err
		}
	}
	ui.PrintInfo("Schedule", watchCron)
	ui.PrintInfo("Next run", sched.Next().Format("2006-01-02 15:04:05 MST"))

	<-sigs
	ui.PrintWarning("Stopping; waiting for the current run to finish its request...")
	sched.Stop()
	return nil
}
