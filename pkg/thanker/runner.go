package thanker

import (
	"context"
	"fmt"
	"sync"

	"favthanker/pkg/audit"
	"favthanker/pkg/checkpoint"
	"favthanker/pkg/config"
	"favthanker/pkg/dispatch"
	errs "favthanker/pkg/errors"
	"favthanker/pkg/logger"
	"favthanker/pkg/models"
	"favthanker/pkg/ratelimit"
	"favthanker/pkg/selector"
	"favthanker/pkg/session"
)

// OutcomeKind is how a Start or ResumeWithCaptcha call ended
type OutcomeKind int

const (
	Completed OutcomeKind = iota
	Stopped
	NeedsCaptcha
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Completed:
		return "completed"
	case Stopped:
		return "stopped"
	case NeedsCaptcha:
		return "needs_captcha"
	default:
		return "failed"
	}
}

// Request is everything a run needs from the operator
type Request struct {
	Credentials session.Credentials
	Messages    []string
	Groups      []models.Group
}

// ResumeState carries a suspended password login to the next worker. It is
// passed by value; nothing else survives the captcha round trip.
type ResumeState struct {
	Username  string
	Password  string
	Messages  []string
	Groups    []models.Group
	Challenge *session.Challenge
}

// Outcome is the tagged result of a run. Resume is set only for
// NeedsCaptcha and Err only for Failed.
type Outcome struct {
	Kind     OutcomeKind
	Progress models.RunProgress
	RunID    string
	Resume   *ResumeState
	Err      error
}

// Runner wires a session, the pacing controller and the dispatch engine
// together for one operator. Callers must not start two runs at once and
// should use a fresh Runner for each scheduled run.
type Runner struct {
	cfg      *config.Config
	sessions *session.Manager
	audit    audit.Writer
	sink     dispatch.Sink
	logger   logger.Logger
	seed     *int64

	mu     sync.Mutex
	engine *dispatch.Engine
	stop   bool
}

// Option customises a Runner
type Option func(*Runner)

// WithAudit sets where shouts and cleared favorites are recorded
func WithAudit(w audit.Writer) Option {
	return func(r *Runner) { r.audit = w }
}

// WithSink sets where run events are pushed
func WithSink(s dispatch.Sink) Option {
	return func(r *Runner) { r.sink = s }
}

// WithLogger sets the runner's logger
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithSeed makes message selection deterministic
func WithSeed(seed int64) Option {
	return func(r *Runner) { r.seed = &seed }
}

// NewRunner creates a runner
func NewRunner(cfg *config.Config, sessions *session.Manager, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		sessions: sessions,
		audit:    audit.Discard,
		sink:     dispatch.Discard,
		logger:   logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithField("component", "thanker")
	return r
}

// Start checks the site is reachable, logs in and runs the dispatch loop.
// A password login that meets a captcha returns NeedsCaptcha without running.
func (r *Runner) Start(ctx context.Context, req Request) Outcome {
	r.reset()

	if !r.sessions.VerifyOnline(ctx) {
		return failed(errs.New(errs.ErrorTypeNetwork, "start", "site is not reachable"))
	}

	res, err := r.sessions.Login(ctx, req.Credentials)
	if err != nil {
		return failed(err)
	}
	if res.Challenge != nil {
		r.logger.InfoWithFields("login suspended for captcha", map[string]interface{}{
			"username": req.Credentials.Username,
		})
		return Outcome{
			Kind: NeedsCaptcha,
			Resume: &ResumeState{
				Username:  req.Credentials.Username,
				Password:  req.Credentials.Password,
				Messages:  append([]string(nil), req.Messages...),
				Groups:    append([]models.Group(nil), req.Groups...),
				Challenge: res.Challenge,
			},
		}
	}
	return r.dispatch(ctx, res.Session, req.Messages, req.Groups)
}

// ResumeWithCaptcha completes a suspended login with the operator's answer and runs
func (r *Runner) ResumeWithCaptcha(ctx context.Context, state ResumeState, answer string) Outcome {
	r.reset()

	s, err := r.sessions.CompleteLogin(ctx, state.Challenge, state.Password, answer)
	if err != nil {
		return failed(err)
	}
	return r.dispatch(ctx, s, state.Messages, state.Groups)
}

// Stop asks the active run to stop at its next suspension point. It returns
// immediately and is safe to call from any goroutine. A stopped Runner stops
// every later run before its first recipient.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stop = true
	if r.engine != nil {
		r.engine.RequestStop()
	}
}

func (r *Runner) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engine = nil
}

func (r *Runner) dispatch(ctx context.Context, s *session.Session, messages []string, groups []models.Group) Outcome {
	sel, err := selector.New(s.Username(), messages, groups)
	if err != nil {
		return failed(errs.Wrap(errs.ErrorTypeUnknown, "messages", err))
	}
	if r.seed != nil {
		sel.Seed(*r.seed)
	}

	var cps *checkpoint.Manager
	if r.cfg.Checkpoint.Enabled {
		cps, err = checkpoint.NewManager(s.Username(), r.cfg.Checkpoint.Directory)
		if err != nil {
			r.logger.WithError(err).Warn("checkpoints disabled")
			cps = nil
		}
	}

	pacer := ratelimit.NewController(r.cfg.Pacing, nil)
	engine := dispatch.New(dispatch.Deps{
		Browser:     s,
		Chooser:     sel,
		Pacer:       pacer,
		Audit:       r.audit,
		Checkpoints: cps,
		Sink:        r.sink,
		Logger:      r.logger,
	})
	pacer.SetHeartbeat(engine.OnHeartbeat)

	r.mu.Lock()
	r.engine = engine
	if r.stop {
		engine.RequestStop()
	}
	r.mu.Unlock()

	result, err := engine.Run(ctx)
	out := Outcome{Progress: result.Progress, RunID: result.RunID}
	switch result.State {
	case dispatch.StateCompleted:
		out.Kind = Completed
	case dispatch.StateStopped:
		out.Kind = Stopped
	default:
		out.Kind = Failed
		out.Err = err
		if out.Err == nil {
			out.Err = fmt.Errorf("run ended in state %s", result.State)
		}
	}
	return out
}

func failed(err error) Outcome {
	return Outcome{Kind: Failed, Err: err}
}
