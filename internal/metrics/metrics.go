package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/muurk/formrelay/internal/submit"
)

// Config configures the collectors.
type Config struct {
	// Namespace prefixes every metric name (default: "formrelay")
	Namespace string

	// Buckets are the histogram buckets for provider round trips.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry receives the collectors.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "formrelay",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics counts submissions and state changes. It implements
// submit.Observer.
type Metrics struct {
	submissions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	stale       *prometheus.CounterVec
	transitions *prometheus.CounterVec
	state       *prometheus.GaugeVec
}

var states = []submit.State{submit.StateIdle, submit.StateLoading, submit.StateSuccess, submit.StateError}

// New registers the collectors and returns them.
func New(opts ...Option) *Metrics {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "submissions_total",
			Help:      "Total number of finished submission attempts",
		}, []string{"form", "result"}),

		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "submission_errors_total",
			Help:      "Total number of failed submissions by error type",
		}, []string{"form", "error_type"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "submission_duration_seconds",
			Help:      "Time from submit to provider answer in seconds",
			Buckets:   cfg.Buckets,
		}, []string{"form"}),

		stale: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "stale_responses_total",
			Help:      "Responses discarded because a newer attempt had started",
		}, []string{"form"}),

		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "state_transitions_total",
			Help:      "Total number of state changes by target state",
		}, []string{"form", "state"}),

		state: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "form_state",
			Help:      "1 for the state each form is currently in, 0 otherwise",
		}, []string{"form", "state"}),
	}
}

// StateChanged implements submit.Observer
func (m *Metrics) StateChanged(s submit.Snapshot) {
	m.transitions.WithLabelValues(s.FormID, s.State.String()).Inc()
	for _, st := range states {
		v := 0.0
		if st == s.State {
			v = 1
		}
		m.state.WithLabelValues(s.FormID, st.String()).Set(v)
	}
}

// AttemptFinished implements submit.Observer
func (m *Metrics) AttemptFinished(o submit.Outcome) {
	form := o.Attempt.FormID
	m.submissions.WithLabelValues(form, o.State.String()).Inc()
	m.duration.WithLabelValues(form).Observe(o.Duration.Seconds())

	if o.Stale {
		m.stale.WithLabelValues(form).Inc()
	}
	if o.Err != nil {
		m.failures.WithLabelValues(form, errorLabel(o.Err)).Inc()
	}
}

func errorLabel(err error) string {
	var subErr *submit.SubmissionError
	if errors.As(err, &subErr) {
		return subErr.Type.Label()
	}
	return "unknown"
}
