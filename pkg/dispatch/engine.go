package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"favthanker/pkg/audit"
	"favthanker/pkg/checkpoint"
	errs "favthanker/pkg/errors"
	"favthanker/pkg/favorites"
	"favthanker/pkg/logger"
	"favthanker/pkg/models"
	"favthanker/pkg/ratelimit"
	"favthanker/pkg/selector"
	"favthanker/pkg/site"
	"favthanker/pkg/web"
)

// Browser is the authenticated page capability the engine drives
type Browser interface {
	Username() string
	Fetch(ctx context.Context, ref string) (*web.Page, error)
	Submit(ctx context.Context, page *web.Page, form *web.Form, values url.Values) (*web.Page, error)
}

// Chooser decides eligibility and the message for a recipient
type Chooser interface {
	Decide(recipient string, profile *web.Page) selector.Decision
}

// Pacer applies the delays and the cooldown between attempts
type Pacer interface {
	PreAttempt(ctx context.Context) error
	PostSuccess(ctx context.Context, moreRemaining bool) error
	Cooldown(ctx context.Context) error
}

// Deps are the collaborators of an Engine. Audit, Checkpoints, Sink and
// Logger are optional.
type Deps struct {
	Browser     Browser
	Chooser     Chooser
	Pacer       Pacer
	Audit       audit.Writer
	Checkpoints *checkpoint.Manager
	Sink        Sink
	Logger      logger.Logger
}

// Result is how a run ended
type Result struct {
	State    State
	Progress models.RunProgress
	RunID    string
}

// Engine runs the dispatch state machine on the calling goroutine
type Engine struct {
	browser     Browser
	chooser     Chooser
	pacer       Pacer
	audit       audit.Writer
	checkpoints *checkpoint.Manager
	sink        Sink
	logger      logger.Logger
	now         func() time.Time

	stop        atomic.Bool
	mu          sync.Mutex
	cancelWaits context.CancelFunc

	state    State
	progress models.RunProgress
	runID    string
	cp       *checkpoint.Checkpoint
	batchIDs map[string][]string
}

// New creates an engine
func New(d Deps) *Engine {
	e := &Engine{
		browser:     d.Browser,
		chooser:     d.Chooser,
		pacer:       d.Pacer,
		audit:       d.Audit,
		checkpoints: d.Checkpoints,
		sink:        d.Sink,
		logger:      d.Logger,
		now:         time.Now,
		state:       StateIdle,
	}
	if e.audit == nil {
		e.audit = audit.Discard
	}
	if e.sink == nil {
		e.sink = Discard
	}
	if e.logger == nil {
		e.logger = logger.GetLogger()
	}
	e.logger = e.logger.WithField("component", "dispatch")
	return e
}

// RequestStop asks the run to stop at the next suspension point. Pending
// waits end immediately; in-flight requests are allowed to finish.
func (e *Engine) RequestStop() {
	e.stop.Store(true)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelWaits != nil {
		e.cancelWaits()
	}
}

// StopRequested reports whether RequestStop was called
func (e *Engine) StopRequested() bool {
	return e.stop.Load()
}

// OnHeartbeat forwards a cooldown heartbeat to the sink
func (e *Engine) OnHeartbeat(h ratelimit.Heartbeat) {
	hb := h
	e.sink.Emit(Event{
		Kind:      EventHeartbeat,
		Time:      e.now(),
		Processed: e.progress.Processed,
		Total:     e.progress.Total,
		Text:      "...",
		Heartbeat: &hb,
	})
	e.logger.DebugWithFields("cooldown heartbeat", map[string]interface{}{
		"elapsed":   h.Elapsed,
		"remaining": h.Remaining,
		"in_window": h.ShoutsInWindow,
		"capacity":  h.WindowCapacity,
	})
}

// errStopped unwinds the state machine once a stop is observed
var errStopped = errors.New("stop requested")

// Run executes one dispatch run to a terminal state. A non-nil error always
// comes with StateFailed.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.mu.Lock()
	e.cancelWaits = cancel
	e.mu.Unlock()
	if e.stop.Load() {
		cancel()
	}

	err := e.run(ctx, waitCtx)
	switch {
	case err == nil:
		e.complete()
	case errors.Is(err, errStopped) || (e.stop.Load() && errs.Is(err, errs.ErrorTypeCanceled)):
		e.progress.StopRequested = true
		e.logf("Stopped", nil)
		e.transition(StateStopped)
		err = nil
	default:
		e.logger.WithError(err).ErrorWithFields("run failed", map[string]interface{}{
			"processed": e.progress.Processed,
			"total":     e.progress.Total,
			"state":     string(e.state),
		})
		e.transition(StateFailed)
	}

	return Result{State: e.state, Progress: e.progress, RunID: e.runID}, err
}

func (e *Engine) run(ctx, waitCtx context.Context) error {
	if e.stop.Load() {
		return errStopped
	}

	e.transition(StateDiscovering)
	page, err := e.browser.Fetch(ctx, site.NotificationsPath)
	if err != nil {
		return fmt.Errorf("failed to load notifications: %w", err)
	}
	total, err := favorites.PendingCount(page)
	if err != nil {
		return fmt.Errorf("failed to read pending count: %w", err)
	}
	e.begin(total, favorites.Parse(page))

	for e.progress.Processed < e.progress.Total || e.progress.Total == 0 {
		if e.stop.Load() {
			return errStopped
		}

		favs := favorites.Parse(page)
		if len(favs) == 0 || e.progress.Total == 0 {
			return nil
		}

		e.transition(StateGroupingBatch)
		pending := e.pendingFor(favs)

		e.transition(StateProcessingRecipient)
		if err := e.processBatch(ctx, waitCtx, pending); err != nil {
			return err
		}
		if e.stop.Load() {
			return errStopped
		}

		e.transition(StateClearingBatch)
		page, err = e.clearBatch(ctx, page, favs)
		if err != nil {
			return err
		}
		e.transition(StateDiscovering)
	}
	return nil
}

// begin fixes the run's total, resuming from a checkpoint only when it
// describes the batch currently on the notifications page
func (e *Engine) begin(total int, favs []models.Favorite) {
	e.progress = models.RunProgress{Total: total}
	e.runID = ""
	e.cp = nil

	if e.checkpoints != nil {
		cp, err := e.checkpoints.Load()
		if err != nil {
			e.logger.WithError(err).Warn("ignoring unreadable checkpoint")
		}
		switch {
		case cp != nil && total > 0 && cp.Resumable(total, favoriteIDs(favs)):
			e.cp = cp
			e.runID = cp.RunID
			e.progress.Total = cp.Total
			e.progress.Processed = cp.Processed
			e.logf(fmt.Sprintf("Resuming run at %d of %d", cp.Processed, cp.Total), nil)
		case total > 0:
			if cp != nil {
				e.logger.InfoWithFields("discarding stale checkpoint", map[string]interface{}{
					"run_id":    cp.RunID,
					"processed": cp.Processed,
					"total":     cp.Total,
				})
			}
			cp, err := e.checkpoints.Create(e.browser.Username(), total)
			if err != nil {
				e.logger.WithError(err).Warn("checkpointing disabled for this run")
			} else {
				e.cp = cp
				e.runID = cp.RunID
			}
		}
	}
	if e.runID == "" {
		e.runID = uuid.NewString()
	}

	e.logf(fmt.Sprintf("%d favorites to process", e.progress.Total), nil)
	e.emitProgress()
}

// pendingFor groups the batch and drops recipients whose favorites a resumed
// checkpoint already resolved
func (e *Engine) pendingFor(favs []models.Favorite) []models.PendingRecipient {
	grouped := favorites.Group(favs)
	e.batchIDs = make(map[string][]string, len(grouped))
	for _, f := range favs {
		e.batchIDs[f.RecipientName] = append(e.batchIDs[f.RecipientName], f.ArtworkURL)
	}
	if e.cp == nil {
		return grouped
	}
	if err := e.checkpoints.StartBatch(e.cp, favoriteIDs(favs)); err != nil {
		e.logger.WithError(err).Warn("failed to checkpoint batch")
	}

	pending := grouped[:0]
	for _, r := range grouped {
		if e.resolved(r) {
			e.logf("Already handled "+r.Name, map[string]interface{}{"recipient": r.Name})
			continue
		}
		pending = append(pending, r)
	}
	return pending
}

func (e *Engine) resolved(r models.PendingRecipient) bool {
	ids := e.batchIDs[r.Name]
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if !e.cp.IsResolved(id) {
			return false
		}
	}
	return true
}

func favoriteIDs(favs []models.Favorite) []string {
	ids := make([]string, 0, len(favs))
	for _, f := range favs {
		ids = append(ids, f.ArtworkURL)
	}
	return ids
}

type attempt int

const (
	attemptRetry attempt = iota
	attemptSkipped
	attemptShouted
)

func (e *Engine) processBatch(ctx, waitCtx context.Context, pending []models.PendingRecipient) error {
	for len(pending) > 0 {
		for i := 0; i < len(pending); {
			if e.stop.Load() {
				return errStopped
			}
			if err := e.pacer.PreAttempt(waitCtx); err != nil {
				return e.waitErr(err)
			}

			r := pending[i]
			outcome, err := e.attempt(ctx, waitCtx, r.Name)
			if err != nil {
				return err
			}
			if outcome == attemptRetry {
				i++
				continue
			}

			pending = append(pending[:i], pending[i+1:]...)
			e.advance(r)

			if outcome == attemptShouted {
				if err := e.pacer.PostSuccess(waitCtx, e.progress.Processed < e.progress.Total); err != nil {
					return e.waitErr(err)
				}
			}
		}
	}
	return nil
}

// attempt processes one recipient once
func (e *Engine) attempt(ctx, waitCtx context.Context, name string) (attempt, error) {
	fields := map[string]interface{}{"recipient": name}
	e.logf("Processing "+name, fields)

	profile, err := e.browser.Fetch(ctx, site.ProfilePath(name))
	if err != nil {
		if errs.Is(err, errs.ErrorTypeNotFound) {
			e.logf("Skipping "+name+": profile not found", fields)
			return attemptSkipped, nil
		}
		return attemptRetry, fmt.Errorf("failed to load profile of %s: %w", name, err)
	}

	decision := e.chooser.Decide(name, profile)
	if decision.Skip {
		e.logf("Skipping "+name, map[string]interface{}{"recipient": name, "reason": decision.Reason})
		return attemptSkipped, nil
	}

	form, err := profile.FormByIndex(site.ShoutFormIndex)
	if err != nil || !form.HasField(site.ShoutField) {
		e.logf("Skipping "+name+": "+selector.ReasonNoShoutBox, fields)
		return attemptSkipped, nil
	}

	values := form.Values(map[string]string{site.ShoutField: decision.Encoded}, "", site.ShoutSubmitBtn)
	result, err := e.browser.Submit(ctx, profile, form, values)
	if err != nil {
		return attemptRetry, fmt.Errorf("failed to shout at %s: %w", name, err)
	}

	if site.HasCommentFrom(result.Body(), e.browser.Username()) {
		e.logf("Shouted at "+name, map[string]interface{}{"recipient": name, "group": decision.Group})
		rec := models.ShoutRecord{
			RunID:      e.runID,
			Recipient:  name,
			Group:      decision.Group,
			Message:    decision.Message,
			ProfileURL: profile.URL.String(),
			Timestamp:  e.now(),
		}
		if err := e.audit.RecordShout(rec); err != nil {
			e.logger.WithError(err).WarnWithFields("failed to record shout", fields)
		}
		return attemptShouted, nil
	}

	e.logf("Shout failed for "+name, fields)
	if site.IsRateLimited(result.Body()) {
		e.logf("Too many shouts within the window!", fields)
		e.logf("Cooldown period beginning...", fields)
		if err := e.pacer.Cooldown(waitCtx); err != nil {
			return attemptRetry, e.waitErr(err)
		}
		e.logf("Proceeding...", fields)
	}
	// stays pending; retried on the next pass
	return attemptRetry, nil
}

// advance counts a resolved recipient, never past the total
func (e *Engine) advance(r models.PendingRecipient) {
	e.progress.Processed += r.FavoriteCount
	if e.progress.Processed > e.progress.Total {
		e.progress.Processed = e.progress.Total
	}
	e.emitProgress()

	if e.cp != nil {
		if err := e.checkpoints.RecordResolved(e.cp, e.batchIDs[r.Name], e.progress.Processed); err != nil {
			e.logger.WithError(err).Warn("failed to checkpoint progress")
		}
	}
}

// clearBatch logs every favorite in the batch and removes them server-side
func (e *Engine) clearBatch(ctx context.Context, page *web.Page, favs []models.Favorite) (*web.Page, error) {
	for _, f := range favs {
		if err := e.audit.RecordFavorite(models.NewFavoriteRecord(e.runID, f, e.now())); err != nil {
			e.logger.WithError(err).WarnWithFields("failed to record favorite", map[string]interface{}{
				"recipient": f.RecipientName,
				"artwork":   f.ArtworkURL,
			})
		}
	}

	form, err := page.FormByIndex(site.ClearFormIndex)
	if err != nil || !form.HasField(site.RemoveFavoritesBtn) {
		return nil, errs.New(errs.ErrorTypeParsing, "clear favorites", "remove form not found on notifications page")
	}

	next, err := e.browser.Submit(ctx, page, form, form.Values(nil, site.FavoriteCheckbox, site.RemoveFavoritesBtn))
	if err != nil {
		return nil, fmt.Errorf("failed to clear favorites: %w", err)
	}

	if e.cp != nil {
		if err := e.checkpoints.BatchCleared(e.cp); err != nil {
			e.logger.WithError(err).Warn("failed to checkpoint cleared batch")
		}
	}
	e.logf("Cleared favorite notifications", map[string]interface{}{"favorites": len(favs)})
	return next, nil
}

func (e *Engine) complete() {
	e.progress.Processed = e.progress.Total
	e.emitProgress()
	if e.checkpoints != nil {
		if err := e.checkpoints.Delete(); err != nil {
			e.logger.WithError(err).Warn("failed to delete checkpoint")
		}
	}
	e.logf(fmt.Sprintf("Done: %d favorites processed", e.progress.Total), nil)
	e.transition(StateCompleted)
}

// waitErr maps an interrupted wait to a stop, or passes other errors through
func (e *Engine) waitErr(err error) error {
	if e.stop.Load() {
		return errStopped
	}
	return errs.Wrap(errs.ErrorTypeCanceled, "wait", err)
}

func (e *Engine) transition(s State) {
	if e.state == s {
		return
	}
	e.state = s
	e.sink.Emit(Event{Kind: EventState, Time: e.now(), State: s, Processed: e.progress.Processed, Total: e.progress.Total})
	e.logger.DebugWithFields("state changed", map[string]interface{}{"state": string(s)})
}

func (e *Engine) emitProgress() {
	e.sink.Emit(Event{Kind: EventProgress, Time: e.now(), Processed: e.progress.Processed, Total: e.progress.Total})
}

func (e *Engine) logf(text string, fields map[string]interface{}) {
	e.sink.Emit(Event{Kind: EventLog, Time: e.now(), Text: text, Processed: e.progress.Processed, Total: e.progress.Total})
	merged := map[string]interface{}{
		"processed": e.progress.Processed,
		"total":     e.progress.Total,
	}
	for k, v := range fields {
		merged[k] = v
	}
	e.logger.InfoWithFields(text, merged)
}
