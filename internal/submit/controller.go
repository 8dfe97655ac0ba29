package submit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/formrelay/internal/config"
	"github.com/muurk/formrelay/internal/logging"
	"github.com/muurk/formrelay/internal/page"
)

// Options configures a Controller. Zero values fall back to the defaults in
// internal/config.
type Options struct {
	Selector page.Selector

	LoadingClass string
	SuccessClass string
	ErrorClass   string

	// BusyLabel replaces the submit button's content while loading
	BusyLabel string

	SuccessHideDelay time.Duration
	ErrorHideDelay   time.Duration

	Poster    Poster
	Clock     Clock
	Observers []Observer
}

// OptionsFromConfig maps a loaded config file onto controller options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Selector: page.Selector{
			Class:          cfg.Selector.FormClass,
			ActionContains: cfg.Selector.ProviderDomain,
		},
		LoadingClass:     cfg.Regions.Loading,
		SuccessClass:     cfg.Regions.Success,
		ErrorClass:       cfg.Regions.Error,
		BusyLabel:        cfg.Labels.Busy,
		SuccessHideDelay: cfg.Timing.SuccessHide,
		ErrorHideDelay:   cfg.Timing.ErrorHide,
	}
}

// DefaultOptions returns options for the stock contact-form template.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default())
}

func (o *Options) applyDefaults() {
	d := DefaultOptions()
	if o.Selector.Class == "" && o.Selector.ActionContains == "" {
		o.Selector = d.Selector
	}
	if o.LoadingClass == "" {
		o.LoadingClass = d.LoadingClass
	}
	if o.SuccessClass == "" {
		o.SuccessClass = d.SuccessClass
	}
	if o.ErrorClass == "" {
		o.ErrorClass = d.ErrorClass
	}
	if o.BusyLabel == "" {
		o.BusyLabel = d.BusyLabel
	}
	if o.SuccessHideDelay <= 0 {
		o.SuccessHideDelay = d.SuccessHideDelay
	}
	if o.ErrorHideDelay <= 0 {
		o.ErrorHideDelay = d.ErrorHideDelay
	}
	if o.Poster == nil {
		o.Poster = NewClient()
	}
	if o.Clock == nil {
		o.Clock = SystemClock{}
	}
}

// Controller owns the registrations for every matching form of a document.
type Controller struct {
	opts Options

	mu        sync.Mutex
	regs      []*Registration
	byID      map[string]*Registration
	observers []Observer
}

// NewController creates a controller. Nothing is registered until Attach or
// Bind is called.
func NewController(opts Options) *Controller {
	opts.applyDefaults()
	c := &Controller{
		opts: opts,
		byID: make(map[string]*Registration),
	}
	c.observers = append(c.observers, opts.Observers...)
	return c
}

// Selector returns the selector used by Attach
func (c *Controller) Selector() page.Selector {
	return c.opts.Selector
}

// Attach registers every form in doc that matches the selector. A document
// with no matching forms is not an error; the result is simply empty.
func (c *Controller) Attach(doc *page.Document) []*Registration {
	forms := doc.Forms(c.opts.Selector)
	regs := c.Bind(forms)
	logging.Info("Attached to document",
		zap.String("selector", c.opts.Selector.String()),
		zap.Int("forms", len(regs)),
	)
	return regs
}

// Bind registers the given forms. A form whose ID is already registered
// keeps its existing registration, so binding twice never doubles up.
func (c *Controller) Bind(forms []*page.Form) []*Registration {
	c.mu.Lock()
	defer c.mu.Unlock()

	regs := make([]*Registration, 0, len(forms))
	for _, f := range forms {
		if existing, ok := c.byID[f.ID()]; ok {
			regs = append(regs, existing)
			continue
		}
		r := newRegistration(c, f)
		c.byID[f.ID()] = r
		c.regs = append(c.regs, r)
		regs = append(regs, r)
		logging.Debug("Registered form",
			zap.String("form", f.ID()),
			zap.String("action", f.Action()),
			zap.Bool("has_button", r.button != nil),
		)
	}
	return regs
}

// Registrations returns every registration in document order
func (c *Controller) Registrations() []*Registration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Registration, len(c.regs))
	copy(out, c.regs)
	return out
}

// Lookup finds a registration by form ID
func (c *Controller) Lookup(id string) (*Registration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.byID[id]
	return r, ok
}

// Submit submits the form with the given ID.
func (c *Controller) Submit(ctx context.Context, id string) (*Outcome, error) {
	r, ok := c.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("form %q is not registered", id)
	}
	return r.Submit(ctx)
}

// Observe adds an observer for every registration.
func (c *Controller) Observe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

func (c *Controller) currentObservers() []Observer {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Observer, len(c.observers))
	copy(out, c.observers)
	return out
}

// Close stops every pending auto-hide timer. Regions stay as they are.
func (c *Controller) Close() {
	for _, r := range c.Registrations() {
		r.stopTimers()
	}
}
