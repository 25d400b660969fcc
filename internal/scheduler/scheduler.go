package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"favthanker/pkg/logger"
)

// Job is one scheduled run. ctx is cancelled when the scheduler stops.
type Job func(ctx context.Context)

// Scheduler runs a job on a cron schedule, never two at once. A tick or an
// immediate run that fires while the previous run is still going is skipped.
type Scheduler struct {
	cron     *cron.Cron
	chain    cron.Chain
	location *time.Location
	logger   logger.Logger

	mu      sync.Mutex
	entryID cron.EntryID
	job     cron.Job
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	extra   sync.WaitGroup
}

// New creates a scheduler for the given timezone; empty means local time
func New(timezone string, log logger.Logger) (*Scheduler, error) {
	loc := time.Local
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
	}
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("component", "scheduler")

	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{log}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc), cron.WithLogger(cl)),
		chain:    cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		location: loc,
		logger:   log,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Schedule replaces the job with one run on spec, a five field cron
// expression or a descriptor such as @hourly or @every 2h
func (s *Scheduler) Schedule(spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
		s.entryID = 0
	}

	wrapped := s.chain.Then(cron.FuncJob(func() {
		if s.ctx.Err() != nil {
			return
		}
		s.logger.InfoWithFields("scheduled run starting", map[string]interface{}{"spec": spec})
		job(s.ctx)
	}))
	id, err := s.cron.AddJob(spec, wrapped)
	if err != nil {
		return fmt.Errorf("add cron job %q: %w", spec, err)
	}
	s.entryID = id
	s.job = wrapped
	return nil
}

// RunNow starts the scheduled job immediately in the background. It shares
// the schedule's overlap guard, so it is skipped while a run is in progress,
// and Stop waits for it like any scheduled run.
func (s *Scheduler) RunNow() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return fmt.Errorf("no job scheduled")
	}
	if s.ctx.Err() != nil {
		return fmt.Errorf("scheduler stopped")
	}

	job := s.job
	s.extra.Add(1)
	go func() {
		defer s.extra.Done()
		job.Run()
	}()
	return nil
}

// Next returns the next activation, or the zero time when nothing is scheduled
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Start begins the scheduler
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.cron.Start()
		s.started = true
	}
}

// Stop cancels the running job's context and waits for it to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.cancel()
	s.mu.Unlock()

	if started {
		<-s.cron.Stop().Done()
	}
	s.extra.Wait()
}

// cronLogger adapts the application logger to cron's logger interface
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.DebugWithFields(msg, pairs(keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.WithError(err).ErrorWithFields(msg, pairs(keysAndValues))
}

func pairs(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
