package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"favthanker/pkg/audit"
	"favthanker/pkg/auth"
	"favthanker/pkg/config"
	"favthanker/pkg/dispatch"
	"favthanker/pkg/logger"
	"favthanker/pkg/models"
	"favthanker/pkg/session"
	"favthanker/pkg/thanker"
	"favthanker/pkg/ui"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Thank everyone in your favorite notifications",
	Long: `Run once: log in, thank every pending fan and clear the notifications.

Press Ctrl+C to stop after the current request; press it again to abort.
A stopped run resumes where it left off the next time.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	job := newRunJob(cfg, true)

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-sigs:
			ui.PrintWarning("\nStopping after the current request...")
			job.stop()
		case <-ctx.Done():
			return
		}
		select {
		case <-sigs:
			cancel()
		case <-ctx.Done():
		}
	}()

	out, err := job.run(ctx)
	if err != nil {
		return err
	}
	if out.Kind == thanker.Failed {
		return out.Err
	}
	return nil
}

// runJob performs one complete run. Interactive jobs may prompt for a
// password and a captcha; scheduled jobs only use stored cookies.
type runJob struct {
	cfg         *config.Config
	interactive bool
	notifier    *ui.Notifier
	log         logger.Logger

	mu      sync.Mutex
	runner  *thanker.Runner
	stopped bool
}

func newRunJob(c *config.Config, interactive bool) *runJob {
	return &runJob{
		cfg:         c,
		interactive: interactive,
		notifier:    ui.NewNotifier(c.Notifications),
		log:         logger.GetLogger().WithField("component", "cli"),
	}
}

// stop asks the current run to stop; a run that has not started yet stops at once
func (j *runJob) stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.stopped = true
	if j.runner != nil {
		j.runner.Stop()
	}
}

func (j *runJob) run(ctx context.Context) (thanker.Outcome, error) {
	manager, err := auth.NewManager()
	if err != nil {
		return thanker.Outcome{}, fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	account, err := storedAccount(manager, j.cfg.Account.Username)
	if err != nil {
		return thanker.Outcome{}, err
	}

	creds := session.Credentials{Username: j.cfg.Account.Username}
	if account != nil {
		creds = session.Credentials{Username: account.Username, CookieA: account.CookieA, CookieB: account.CookieB}
	}
	if creds.Username == "" {
		if !j.interactive {
			return thanker.Outcome{}, fmt.Errorf("no stored account; run 'favthanker auth login' first")
		}
		if creds.Username, err = readLine("Username: "); err != nil {
			return thanker.Outcome{}, err
		}
	}
	if account == nil {
		if !j.interactive {
			return thanker.Outcome{}, fmt.Errorf("no stored session for %s; run 'favthanker auth login' first", creds.Username)
		}
		if creds.Password, err = readPassword("Password: "); err != nil {
			return thanker.Outcome{}, err
		}
	}

	profile, err := loadProfile(j.cfg, creds.Username)
	if err != nil {
		return thanker.Outcome{}, err
	}

	writer, err := audit.Open(j.cfg.Audit)
	if err != nil {
		return thanker.Outcome{}, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			j.log.WithError(err).Warn("failed to close audit log")
		}
	}()

	client, err := newClient(j.cfg)
	if err != nil {
		return thanker.Outcome{}, err
	}

	sink := dispatch.NewChanSink(256)
	display := ui.NewProgressDisplay(os.Stdout, creds.Username, j.cfg.Logging.Level == "debug")
	display.OnCooldown = func() { j.notifier.Cooldown(creds.Username) }

	runner := thanker.NewRunner(j.cfg, newSessionManager(j.cfg, client, manager),
		thanker.WithAudit(writer),
		thanker.WithSink(sink),
	)
	j.mu.Lock()
	j.runner = runner
	stopped := j.stopped
	j.mu.Unlock()

	req := thanker.Request{Credentials: creds, Messages: profile.Messages, Groups: profile.Groups}

	var out thanker.Outcome
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer sink.Close()
		if stopped {
			out = thanker.Outcome{Kind: thanker.Stopped, Progress: models.RunProgress{StopRequested: true}}
			return nil
		}
		out = runner.Start(ctx, req)
		if out.Kind == thanker.NeedsCaptcha && j.interactive {
			answer, err := askCaptcha(out.Resume.Challenge)
			if err != nil {
				return err
			}
			out = runner.ResumeWithCaptcha(ctx, *out.Resume, answer)
		}
		return nil
	})
	g.Go(func() error {
		return display.Consume(gctx, sink.Events())
	})
	if err := g.Wait(); err != nil {
		return out, err
	}

	if dropped := sink.Dropped(); dropped > 0 {
		j.log.WithField("dropped", dropped).Debug("display fell behind")
	}
	j.report(creds.Username, out)
	return out, nil
}

func (j *runJob) report(user string, out thanker.Outcome) {
	fields := map[string]interface{}{
		"outcome":   out.Kind.String(),
		"processed": out.Progress.Processed,
		"total":     out.Progress.Total,
		"run_id":    out.RunID,
	}
	switch out.Kind {
	case thanker.Completed:
		j.log.InfoWithFields("run completed", fields)
		j.notifier.Completed(user, out.Progress.Processed)
	case thanker.Stopped:
		j.log.InfoWithFields("run stopped", fields)
		j.notifier.Stopped(user, out.Progress.Processed, out.Progress.Total)
	case thanker.NeedsCaptcha:
		err := fmt.Errorf("login needs a captcha; run 'favthanker auth login' interactively")
		j.log.WithError(err).ErrorWithFields("run not started", fields)
		j.notifier.Failed(user, err)
	default:
		j.log.WithError(out.Err).ErrorWithFields("run failed", fields)
		j.notifier.Failed(user, out.Err)
	}
}
