package submit

import (
	"context"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/formrelay/internal/logging"
	"github.com/muurk/formrelay/internal/page"
)

// Registration binds one form to the controller and carries its state.
//
// At most one of the loading, success and error regions is visible at any
// moment. Every attempt bumps the generation; responses and timers that
// belong to an older generation are ignored.
type Registration struct {
	ctrl *Controller
	form *page.Form

	loading *page.Region
	success *page.Region
	failure *page.Region
	button  *page.Button

	mu         sync.Mutex
	state      State
	message    string
	generation uint64
	changedAt  time.Time

	// memento is the button content captured on the first loading
	// transition. hasMemento stays false until then.
	memento    string
	hasMemento bool

	timerSeq uint64
	timers   map[uint64]Timer
}

func newRegistration(c *Controller, f *page.Form) *Registration {
	return &Registration{
		ctrl:      c,
		form:      f,
		loading:   f.Region(c.opts.LoadingClass),
		success:   f.Region(c.opts.SuccessClass),
		failure:   f.Region(c.opts.ErrorClass),
		button:    f.SubmitButton(),
		changedAt: c.opts.Clock.Now(),
		timers:    make(map[uint64]Timer),
	}
}

// ID returns the form's ID
func (r *Registration) ID() string { return r.form.ID() }

// Form returns the registered form
func (r *Registration) Form() *page.Form { return r.form }

// State returns the current state
func (r *Registration) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Snapshot returns the current state with its message and generation.
func (r *Registration) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Submit performs one submission attempt. The returned error is the
// SubmissionError that was displayed, or nil on success. The outcome is
// always non-nil.
func (r *Registration) Submit(ctx context.Context) (*Outcome, error) {
	return r.submit(ctx, nil)
}

// SubmitValues fills the form with values and submits it. Writing the values
// and reading them back for the attempt happen under one lock; concurrent
// callers each post their own values.
func (r *Registration) SubmitValues(ctx context.Context, values url.Values) (*Outcome, error) {
	if values == nil {
		values = url.Values{}
	}
	return r.submit(ctx, values)
}

func (r *Registration) submit(ctx context.Context, values url.Values) (*Outcome, error) {
	action := r.form.Action()
	if action == "" {
		attempt := r.nextAttempt(action, values)
		err := NewConfigurationError(MsgMissingAction)
		logging.Warn("Form has no action URL",
			zap.String("form", attempt.FormID),
			zap.Uint64("generation", attempt.Generation),
		)
		return r.resolve(attempt, nil, err), err
	}

	attempt := r.beginLoading(action, values)
	logging.LogSubmission(attempt.FormID, attempt.Action, attempt.Values, attempt.Generation)

	result, err := r.ctrl.opts.Poster.Post(ctx, action, attempt.Values)
	r.endLoading(attempt.Generation)

	return r.resolve(attempt, result, err), err
}

// HideAll hides every region, restores the button and returns to idle.
// Calling it repeatedly has the same effect as calling it once.
func (r *Registration) HideAll() {
	r.mu.Lock()
	r.hideAllLocked()
	from := r.state
	changed := r.setStateLocked(StateIdle, "")
	snap := r.snapshotLocked()
	r.mu.Unlock()

	if changed {
		r.notifyState(from, snap)
	}
}

// nextAttempt starts a generation without touching the UI.
func (r *Registration) nextAttempt(action string, values url.Values) Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	if values != nil {
		r.form.SetValues(values)
	}
	r.generation++
	return Attempt{
		FormID:     r.form.ID(),
		Generation: r.generation,
		Action:     action,
		StartedAt:  r.ctrl.opts.Clock.Now(),
	}
}

// beginLoading applies values, if any, and snapshots the form in the same
// critical section that starts the new generation.
func (r *Registration) beginLoading(action string, values url.Values) Attempt {
	r.mu.Lock()
	if values != nil {
		r.form.SetValues(values)
	}
	r.generation++
	attempt := Attempt{
		FormID:     r.form.ID(),
		Generation: r.generation,
		Action:     action,
		Values:     r.form.Values(),
		StartedAt:  r.ctrl.opts.Clock.Now(),
	}

	r.hideAllLocked()
	r.loading.Show()
	if r.button != nil && !r.hasMemento {
		r.memento = r.button.Label()
		r.hasMemento = true
	}
	r.button.SetDisabled(true)
	if err := r.button.SetLabel(r.ctrl.opts.BusyLabel); err != nil {
		logging.Warn("Failed to set busy label", zap.String("form", attempt.FormID), zap.Error(err))
	}

	from := r.state
	r.setStateLocked(StateLoading, "")
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.notifyState(from, snap)
	return attempt
}

// endLoading hides the indicator and restores the button, unless a newer
// attempt has taken over.
func (r *Registration) endLoading(generation uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if generation != r.generation {
		return
	}
	r.loading.Hide()
	r.restoreButtonLocked()
}

func (r *Registration) resolve(attempt Attempt, result *Result, err error) *Outcome {
	out := &Outcome{
		Attempt:  attempt,
		Duration: r.ctrl.opts.Clock.Now().Sub(attempt.StartedAt),
		Err:      err,
	}
	if result != nil {
		out.StatusCode = result.StatusCode
	}
	if err != nil {
		out.State = StateError
		out.Message = UserMessage(err)
	} else {
		out.State = StateSuccess
	}

	r.mu.Lock()
	out.Stale = attempt.Generation != r.generation
	from := r.state
	var snap Snapshot
	if !out.Stale {
		if err != nil {
			r.showErrorLocked(attempt.Generation, out.Message)
		} else {
			r.showSuccessLocked(attempt.Generation)
		}
		snap = r.snapshotLocked()
	}
	r.mu.Unlock()

	logging.LogSubmissionResult(attempt.FormID, attempt.Generation, out.StatusCode, out.Duration, err)
	if out.Stale {
		logging.Debug("Discarded superseded response",
			zap.String("form", attempt.FormID),
			zap.Uint64("generation", attempt.Generation),
		)
	} else {
		r.notifyState(from, snap)
	}
	r.notifyOutcome(*out)
	return out
}

func (r *Registration) showSuccessLocked(generation uint64) {
	r.hideAllLocked()
	r.success.Show()
	r.form.Reset()
	r.setStateLocked(StateSuccess, "")
	r.scheduleLocked(r.ctrl.opts.SuccessHideDelay, func() {
		r.expire(generation, StateSuccess)
	})
}

func (r *Registration) showErrorLocked(generation uint64, message string) {
	r.hideAllLocked()
	if err := r.failure.SetMessage(message); err != nil {
		logging.Warn("Failed to write error message", zap.String("form", r.form.ID()), zap.Error(err))
	}
	r.failure.Show()
	r.setStateLocked(StateError, message)
	r.scheduleLocked(r.ctrl.opts.ErrorHideDelay, func() {
		r.expire(generation, StateError)
	})
}

// expire is the auto-hide callback. It only acts if the attempt that armed
// it is still the current one and still showing the same result.
func (r *Registration) expire(generation uint64, want State) {
	r.mu.Lock()
	if generation != r.generation || r.state != want {
		r.mu.Unlock()
		logging.Debug("Ignored stale auto-hide",
			zap.String("form", r.form.ID()),
			zap.Uint64("generation", generation),
		)
		return
	}

	switch want {
	case StateSuccess:
		r.success.Hide()
	case StateError:
		r.failure.Hide()
	}
	from := r.state
	r.setStateLocked(StateIdle, "")
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.notifyState(from, snap)
}

func (r *Registration) hideAllLocked() {
	r.loading.Hide()
	r.failure.Hide()
	r.success.Hide()
	r.restoreButtonLocked()
}

func (r *Registration) restoreButtonLocked() {
	r.button.SetDisabled(false)
	if !r.hasMemento {
		return
	}
	if err := r.button.RestoreLabel(r.memento); err != nil {
		logging.Warn("Failed to restore button label", zap.String("form", r.form.ID()), zap.Error(err))
	}
}

func (r *Registration) setStateLocked(s State, message string) bool {
	changed := r.state != s || r.message != message
	r.state = s
	r.message = message
	if changed {
		r.changedAt = r.ctrl.opts.Clock.Now()
	}
	return changed
}

func (r *Registration) snapshotLocked() Snapshot {
	return Snapshot{
		FormID:     r.form.ID(),
		State:      r.state,
		Message:    r.message,
		Generation: r.generation,
		At:         r.changedAt,
	}
}

// scheduleLocked arms a timer and tracks it until it fires. The callback
// takes r.mu, so it cannot run before the timer is recorded.
func (r *Registration) scheduleLocked(d time.Duration, fn func()) {
	r.timerSeq++
	seq := r.timerSeq
	r.timers[seq] = r.ctrl.opts.Clock.AfterFunc(d, func() {
		r.mu.Lock()
		delete(r.timers, seq)
		r.mu.Unlock()
		fn()
	})
}

func (r *Registration) stopTimers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for seq, t := range r.timers {
		t.Stop()
		delete(r.timers, seq)
	}
}

func (r *Registration) notifyState(from State, snap Snapshot) {
	logging.LogTransition(snap.FormID, from.String(), snap.State.String(), snap.Generation)
	for _, o := range r.ctrl.currentObservers() {
		o.StateChanged(snap)
	}
}

func (r *Registration) notifyOutcome(out Outcome) {
	for _, o := range r.ctrl.currentObservers() {
		o.AttemptFinished(out)
	}
}

// RegionStatus describes one feedback region for display.
type RegionStatus struct {
	Name    string `json:"name"` // loading, success or error
	Present bool   `json:"present"`
	Visible bool   `json:"visible"`
	Text    string `json:"text,omitempty"`
}

// Regions reports the loading, success and error regions in that order.
func (r *Registration) Regions() []RegionStatus {
	status := func(name string, region *page.Region) RegionStatus {
		return RegionStatus{
			Name:    name,
			Present: region != nil,
			Visible: region.Visible(),
			Text:    region.Text(),
		}
	}
	return []RegionStatus{
		status("loading", r.loading),
		status("success", r.success),
		status("error", r.failure),
	}
}
