package submit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/muurk/formrelay/internal/page"
)

const originalLabel = `<i class="bi bi-envelope me-2"></i>Send Message`

const contactTemplate = `<!DOCTYPE html>
<html><body>
<form id="contact" class="php-email-form" action="%s" method="post">
  <input type="text" name="name" value="">
  <input type="email" name="email" value="">
  <textarea name="message"></textarea>
  <div class="loading">Loading</div>
  <div class="error-message"></div>
  <div class="sent-message">Your message has been sent. Thank you!</div>
  <button type="submit">` + originalLabel + `</button>
</form>
</body></html>`

var start = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// posterFunc adapts a function to Poster
type posterFunc func(ctx context.Context, action string, values url.Values) (*Result, error)

func (f posterFunc) Post(ctx context.Context, action string, values url.Values) (*Result, error) {
	return f(ctx, action, values)
}

type recorder struct {
	mu       sync.Mutex
	states   []State
	outcomes []Outcome
}

func (r *recorder) StateChanged(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s.State)
}

func (r *recorder) AttemptFinished(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recorder) States() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

type fixture struct {
	doc   *page.Document
	ctrl  *Controller
	reg   *Registration
	clock *ManualClock
	rec   *recorder
}

func newFixture(t *testing.T, action string, poster Poster) *fixture {
	t.Helper()

	doc, err := page.ParseString(fmt.Sprintf(contactTemplate, action))
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	clock := NewManualClock(start)
	rec := &recorder{}
	opts := DefaultOptions()
	opts.Selector = page.Selector{Class: "php-email-form"}
	opts.Clock = clock
	opts.Poster = poster
	opts.Observers = []Observer{rec}

	ctrl := NewController(opts)
	regs := ctrl.Attach(doc)
	if len(regs) != 1 {
		t.Fatalf("Attach() registered %d forms, want 1", len(regs))
	}
	t.Cleanup(ctrl.Close)

	return &fixture{doc: doc, ctrl: ctrl, reg: regs[0], clock: clock, rec: rec}
}

func (f *fixture) visible() []string {
	var out []string
	for _, class := range []string{"loading", "sent-message", "error-message"} {
		if f.reg.Form().Region(class).Visible() {
			out = append(out, class)
		}
	}
	return out
}

func (f *fixture) assertVisible(t *testing.T, want ...string) {
	t.Helper()
	if diff := cmp.Diff(want, f.visible()); diff != "" {
		t.Errorf("visible regions mismatch (-want +got):\n%s", diff)
	}
}

func (f *fixture) assertButtonRestored(t *testing.T) {
	t.Helper()
	btn := f.reg.Form().SubmitButton()
	if btn.Disabled() {
		t.Error("button should be enabled")
	}
	if got := btn.Label(); got != originalLabel {
		t.Errorf("button label = %q, want %q", got, originalLabel)
	}
}

func jsonServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSubmit_Success(t *testing.T) {
	server := jsonServer(t, http.StatusOK, `{"ok":true}`)
	f := newFixture(t, server.URL, NewClient())

	f.reg.Form().SetValues(url.Values{"name": {"Jane"}, "email": {"jane@example.com"}, "message": {"Hi"}})

	out, err := f.reg.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if out.State != StateSuccess || out.Stale || out.StatusCode != http.StatusOK {
		t.Errorf("outcome = %+v", out)
	}
	if out.Attempt.Values.Get("email") != "jane@example.com" {
		t.Errorf("submitted values = %v", out.Attempt.Values)
	}

	f.assertVisible(t, "sent-message")
	f.assertButtonRestored(t)
	if got := f.reg.Form().Values().Get("email"); got != "" {
		t.Errorf("form not reset after success, email = %q", got)
	}
	if f.reg.State() != StateSuccess {
		t.Errorf("State() = %v", f.reg.State())
	}

	f.clock.Advance(DefaultOptions().SuccessHideDelay - time.Millisecond)
	f.assertVisible(t, "sent-message")

	f.clock.Advance(time.Millisecond)
	f.assertVisible(t)
	if f.reg.State() != StateIdle {
		t.Errorf("State() after auto-hide = %v, want idle", f.reg.State())
	}

	want := []State{StateLoading, StateSuccess, StateIdle}
	if diff := cmp.Diff(want, f.rec.States()); diff != "" {
		t.Errorf("observed states mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmit_MissingActionMakesNoRequest(t *testing.T) {
	for _, action := range []string{"", "   "} {
		t.Run(fmt.Sprintf("action=%q", action), func(t *testing.T) {
			var calls atomic.Int32
			poster := posterFunc(func(ctx context.Context, action string, values url.Values) (*Result, error) {
				calls.Add(1)
				return &Result{StatusCode: 200}, nil
			})
			f := newFixture(t, action, poster)

			out, err := f.reg.Submit(context.Background())
			if !IsConfigurationError(err) {
				t.Fatalf("Submit() error = %v, want configuration error", err)
			}
			if calls.Load() != 0 {
				t.Errorf("poster called %d times, want 0", calls.Load())
			}
			if out.Message != MsgMissingAction {
				t.Errorf("Message = %q", out.Message)
			}

			f.assertVisible(t, "error-message")
			if got := f.reg.Form().Region("error-message").Text(); got != MsgMissingAction {
				t.Errorf("error text = %q", got)
			}
			f.assertButtonRestored(t)

			want := []State{StateError}
			if diff := cmp.Diff(want, f.rec.States()); diff != "" {
				t.Errorf("observed states mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSubmit_ProviderErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"error field", 422, `{"error":"Invalid email"}`, "Invalid email"},
		{"errors list", 422, `{"errors":[{"message":"Email is required"}]}`, "Email is required"},
		{"bare status", 500, `{}`, "HTTP Error: 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := jsonServer(t, tt.status, tt.body)
			f := newFixture(t, server.URL, NewClient())
			f.reg.Form().SetValues(url.Values{"email": {"kept@example.com"}})

			_, err := f.reg.Submit(context.Background())
			if !IsProviderError(err) {
				t.Fatalf("Submit() error = %v, want provider error", err)
			}

			f.assertVisible(t, "error-message")
			f.assertButtonRestored(t)
			if got := f.reg.Form().Region("error-message").Text(); got != tt.want {
				t.Errorf("error text = %q, want %q", got, tt.want)
			}
			if got := f.reg.Snapshot().Message; got != tt.want {
				t.Errorf("snapshot message = %q, want %q", got, tt.want)
			}
			if got := f.reg.Form().Values().Get("email"); got != "kept@example.com" {
				t.Errorf("values should survive a failure, email = %q", got)
			}

			f.clock.Advance(DefaultOptions().ErrorHideDelay - time.Millisecond)
			f.assertVisible(t, "error-message")
			f.clock.Advance(time.Millisecond)
			f.assertVisible(t)
		})
	}
}

func TestSubmit_NonJSONFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<h1>upstream down</h1>"))
	}))
	defer server.Close()

	f := newFixture(t, server.URL, NewClient())
	out, _ := f.reg.Submit(context.Background())

	if out.Message != "HTTP Error: 502 Bad Gateway" {
		t.Errorf("Message = %q", out.Message)
	}
	f.assertVisible(t, "error-message")
}

func TestSubmit_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	action := server.URL
	server.Close()

	f := newFixture(t, action, NewClient())
	out, err := f.reg.Submit(context.Background())

	if !IsTransportError(err) {
		t.Fatalf("Submit() error = %v, want transport error", err)
	}
	if out.Message == "" {
		t.Error("transport failure should carry a message")
	}
	f.assertVisible(t, "error-message")
	f.assertButtonRestored(t)
}

func TestSubmit_LoadingState(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	poster := posterFunc(func(ctx context.Context, action string, values url.Values) (*Result, error) {
		close(entered)
		<-release
		return &Result{StatusCode: 200}, nil
	})
	f := newFixture(t, "https://formspree.io/f/abc", poster)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.reg.Submit(context.Background())
	}()

	<-entered
	f.assertVisible(t, "loading")
	btn := f.reg.Form().SubmitButton()
	if !btn.Disabled() {
		t.Error("button should be disabled while loading")
	}
	if got := btn.Label(); got != DefaultOptions().BusyLabel {
		t.Errorf("busy label = %q", got)
	}
	if f.reg.State() != StateLoading {
		t.Errorf("State() = %v, want loading", f.reg.State())
	}

	close(release)
	<-done
	f.assertVisible(t, "sent-message")
	f.assertButtonRestored(t)
}

func TestSubmit_SupersededResponseIsIgnored(t *testing.T) {
	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})

	poster := posterFunc(func(ctx context.Context, action string, values url.Values) (*Result, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
			return &Result{StatusCode: 200}, nil
		}
		return &Result{StatusCode: 422}, NewProviderError(422, "Unprocessable Entity", "Invalid email")
	})
	f := newFixture(t, "https://formspree.io/f/abc", poster)
	f.reg.Form().SetValues(url.Values{"email": {"typed@example.com"}})

	first := make(chan *Outcome, 1)
	go func() {
		out, _ := f.reg.Submit(context.Background())
		first <- out
	}()
	<-entered

	second, err := f.reg.Submit(context.Background())
	if err == nil || second.Stale {
		t.Fatalf("second outcome = %+v, err = %v", second, err)
	}
	f.assertVisible(t, "error-message")

	close(release)
	stale := <-first
	if !stale.Stale {
		t.Error("first outcome should be marked stale")
	}
	if stale.State != StateSuccess {
		t.Errorf("stale outcome state = %v, want success", stale.State)
	}

	f.assertVisible(t, "error-message")
	f.assertButtonRestored(t)
	if got := f.reg.Form().Values().Get("email"); got != "typed@example.com" {
		t.Errorf("stale success must not reset the form, email = %q", got)
	}
	if f.reg.Snapshot().Generation != 2 {
		t.Errorf("Generation = %d, want 2", f.reg.Snapshot().Generation)
	}
}

func TestSubmit_StaleTimerDoesNotHideNewerResult(t *testing.T) {
	var calls atomic.Int32
	poster := posterFunc(func(ctx context.Context, action string, values url.Values) (*Result, error) {
		if calls.Add(1) == 1 {
			return &Result{StatusCode: 200}, nil
		}
		return nil, ClassifyTransportError(errors.New("connection reset"), action)
	})
	f := newFixture(t, "https://formspree.io/f/abc", poster)

	if _, err := f.reg.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(3 * time.Second)

	if _, err := f.reg.Submit(context.Background()); err == nil {
		t.Fatal("second Submit() should fail")
	}
	f.assertVisible(t, "error-message")

	// The success timer from the first attempt comes due here.
	f.clock.Advance(2 * time.Second)
	f.assertVisible(t, "error-message")
	if f.reg.State() != StateError {
		t.Errorf("State() = %v, want error", f.reg.State())
	}

	f.clock.Advance(6 * time.Second)
	f.assertVisible(t)
	if f.reg.State() != StateIdle {
		t.Errorf("State() = %v, want idle", f.reg.State())
	}
}

func TestSubmit_MementoCapturedOnce(t *testing.T) {
	poster := posterFunc(func(ctx context.Context, action string, values url.Values) (*Result, error) {
		return &Result{StatusCode: 200}, nil
	})
	f := newFixture(t, "https://formspree.io/f/abc", poster)

	for i := 0; i < 3; i++ {
		if _, err := f.reg.Submit(context.Background()); err != nil {
			t.Fatal(err)
		}
		f.assertButtonRestored(t)
	}
}

func TestHideAll_Idempotent(t *testing.T) {
	f := newFixture(t, "", nil)
	_, _ = f.reg.Submit(context.Background())

	f.reg.HideAll()
	once := f.doc.String()
	f.reg.HideAll()
	if f.doc.String() != once {
		t.Error("HideAll() twice should match HideAll() once")
	}
	f.assertVisible(t)
	if f.reg.State() != StateIdle {
		t.Errorf("State() = %v", f.reg.State())
	}

	// The error timer is still armed but its state is gone.
	f.clock.Advance(DefaultOptions().ErrorHideDelay)
	f.assertVisible(t)
}

func TestController_BindIsIdempotent(t *testing.T) {
	f := newFixture(t, "https://formspree.io/f/abc", nil)

	again := f.ctrl.Attach(f.doc)
	if len(again) != 1 || again[0] != f.reg {
		t.Error("re-attaching should return the existing registration")
	}
	if n := len(f.ctrl.Registrations()); n != 1 {
		t.Errorf("Registrations() = %d, want 1", n)
	}

	if _, ok := f.ctrl.Lookup("contact"); !ok {
		t.Error("Lookup(contact) should succeed")
	}
	if _, err := f.ctrl.Submit(context.Background(), "missing"); err == nil {
		t.Error("Submit() for an unknown id should fail")
	}
}

func TestController_NoMatchingForms(t *testing.T) {
	doc, err := page.ParseString(`<html><body><form class="other"></form></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	ctrl := NewController(DefaultOptions())
	if regs := ctrl.Attach(doc); len(regs) != 0 {
		t.Errorf("Attach() = %d registrations, want 0", len(regs))
	}
}

func TestController_MissingRegionsAreTolerated(t *testing.T) {
	doc, err := page.ParseString(`<form class="php-email-form" action="https://formspree.io/f/x"><input name="email"></form>`)
	if err != nil {
		t.Fatal(err)
	}
	clock := NewManualClock(start)
	ctrl := NewController(Options{
		Clock: clock,
		Poster: posterFunc(func(ctx context.Context, action string, values url.Values) (*Result, error) {
			return &Result{StatusCode: 200}, nil
		}),
	})
	regs := ctrl.Attach(doc)
	if len(regs) != 1 {
		t.Fatalf("Attach() = %d registrations", len(regs))
	}

	out, err := regs[0].Submit(context.Background())
	if err != nil || out.State != StateSuccess {
		t.Fatalf("Submit() = %+v, %v", out, err)
	}
	clock.Advance(time.Minute)
	if regs[0].State() != StateIdle {
		t.Errorf("State() = %v", regs[0].State())
	}
}

func TestController_CloseStopsTimers(t *testing.T) {
	f := newFixture(t, "", nil)
	_, _ = f.reg.Submit(context.Background())
	if f.clock.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", f.clock.Pending())
	}
	f.ctrl.Close()
	if f.clock.Pending() != 0 {
		t.Errorf("Pending() after Close = %d", f.clock.Pending())
	}
}

func TestState_String(t *testing.T) {
	names := map[State]string{
		StateIdle:    "idle",
		StateLoading: "loading",
		StateSuccess: "success",
		StateError:   "error",
		State(9):     "State(9)",
	}
	for s, want := range names {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(s), s.String(), want)
		}
	}
}

func TestRegistration_Regions(t *testing.T) {
	f := newFixture(t, "", nil)
	_, _ = f.reg.Submit(context.Background())

	got := f.reg.Regions()
	want := []RegionStatus{
		{Name: "loading", Present: true, Visible: false, Text: "Loading"},
		{Name: "success", Present: true, Visible: false, Text: "Your message has been sent. Thank you!"},
		{Name: "error", Present: true, Visible: true, Text: MsgMissingAction},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Regions() mismatch (-want +got):\n%s", diff)
	}
}

const twoFormsTemplate = `<!DOCTYPE html>
<html><body>
<form id="quote" class="php-email-form" action="https://formspree.io/f/quote">
  <input type="email" name="email">
  <div class="loading">Loading</div>
  <div class="error-message"></div>
  <div class="sent-message">Quote requested</div>
  <button type="submit">Request quote</button>
</form>
<form id="contact" class="php-email-form" action="https://formspree.io/f/contact">
  <input type="email" name="email">
  <div class="loading">Loading</div>
  <div class="error-message"></div>
  <div class="sent-message">Your message has been sent. Thank you!</div>
  <button type="submit">` + originalLabel + `</button>
</form>
</body></html>`

func visibleIn(reg *Registration) []string {
	var out []string
	for _, class := range []string{"loading", "sent-message", "error-message"} {
		if reg.Form().Region(class).Visible() {
			out = append(out, class)
		}
	}
	return out
}

func assertRegistration(t *testing.T, reg *Registration, state State, label string, visible ...string) {
	t.Helper()
	if got := reg.State(); got != state {
		t.Errorf("%s: State() = %v, want %v", reg.ID(), got, state)
	}
	if diff := cmp.Diff(visible, visibleIn(reg)); diff != "" {
		t.Errorf("%s: visible regions mismatch (-want +got):\n%s", reg.ID(), diff)
	}
	if got := reg.Form().SubmitButton().Label(); got != label {
		t.Errorf("%s: button label = %q, want %q", reg.ID(), got, label)
	}
}

func TestController_FormsOperateIndependently(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	poster := posterFunc(func(ctx context.Context, action string, values url.Values) (*Result, error) {
		if action == "https://formspree.io/f/quote" {
			return &Result{StatusCode: 422}, NewProviderError(422, "Unprocessable Entity", "Quotes are closed")
		}
		close(entered)
		<-release
		return &Result{StatusCode: 200}, nil
	})

	doc, err := page.ParseString(twoFormsTemplate)
	if err != nil {
		t.Fatal(err)
	}
	clock := NewManualClock(start)
	opts := DefaultOptions()
	opts.Selector = page.Selector{Class: "php-email-form"}
	opts.Clock = clock
	opts.Poster = poster
	ctrl := NewController(opts)
	t.Cleanup(ctrl.Close)

	regs := ctrl.Attach(doc)
	if len(regs) != 2 {
		t.Fatalf("Attach() = %d registrations, want 2", len(regs))
	}
	quote, contact := regs[0], regs[1]

	if _, err := quote.Submit(context.Background()); err == nil {
		t.Fatal("quote Submit() should fail")
	}
	if got := quote.Form().Region("error-message").Text(); got != "Quotes are closed" {
		t.Errorf("quote error text = %q", got)
	}
	clock.Advance(2 * time.Second)

	done := make(chan *Outcome, 1)
	go func() {
		out, _ := contact.Submit(context.Background())
		done <- out
	}()
	<-entered

	assertRegistration(t, quote, StateError, "Request quote", "error-message")
	assertRegistration(t, contact, StateLoading, DefaultOptions().BusyLabel, "loading")
	if quote.Form().SubmitButton().Disabled() {
		t.Error("quote button should stay enabled while contact loads")
	}

	close(release)
	if out := <-done; out.State != StateSuccess {
		t.Fatalf("contact outcome = %+v", out)
	}
	assertRegistration(t, quote, StateError, "Request quote", "error-message")
	assertRegistration(t, contact, StateSuccess, originalLabel, "sent-message")

	// contact hides at 2s+5s, quote at 0s+8s.
	clock.Advance(DefaultOptions().SuccessHideDelay)
	assertRegistration(t, quote, StateError, "Request quote", "error-message")
	assertRegistration(t, contact, StateIdle, originalLabel)

	clock.Advance(time.Second)
	assertRegistration(t, quote, StateIdle, "Request quote")
	assertRegistration(t, contact, StateIdle, originalLabel)
}

func TestController_BindsFormsWithClashingIDs(t *testing.T) {
	doc, err := page.ParseString(`<html><body>
<form id="c" class="php-email-form" action="https://formspree.io/f/1"></form>
<form id="c" class="php-email-form" action="https://formspree.io/f/2"></form>
<form class="php-email-form" action="https://formspree.io/f/3"></form>
<form id="form-3" class="php-email-form" action="https://formspree.io/f/4"></form>
</body></html>`)
	if err != nil {
		t.Fatal(err)
	}

	ctrl := NewController(Options{Clock: NewManualClock(start)})
	regs := ctrl.Attach(doc)
	if len(regs) != 4 {
		t.Fatalf("Attach() = %d registrations, want 4", len(regs))
	}

	var actions []string
	for _, reg := range regs {
		got, ok := ctrl.Lookup(reg.ID())
		if !ok || got != reg {
			t.Errorf("Lookup(%q) = %v, %v", reg.ID(), got, ok)
		}
		actions = append(actions, reg.Form().Action())
	}
	want := []string{
		"https://formspree.io/f/1",
		"https://formspree.io/f/2",
		"https://formspree.io/f/3",
		"https://formspree.io/f/4",
	}
	if diff := cmp.Diff(want, actions); diff != "" {
		t.Errorf("registered actions mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitValues_PostsItsOwnValues(t *testing.T) {
	var mu sync.Mutex
	var posted []string
	poster := posterFunc(func(ctx context.Context, action string, values url.Values) (*Result, error) {
		mu.Lock()
		posted = append(posted, values.Get("email"))
		mu.Unlock()
		return &Result{StatusCode: 200}, nil
	})
	f := newFixture(t, "https://formspree.io/f/abc", poster)

	const callers = 50
	want := make([]string, 0, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		email := fmt.Sprintf("user%02d@example.com", i)
		want = append(want, email)
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.reg.SubmitValues(context.Background(), url.Values{"email": {email}})
			if err != nil {
				t.Errorf("SubmitValues(%s) error = %v", email, err)
				return
			}
			if got := out.Attempt.Values.Get("email"); got != email {
				t.Errorf("attempt values email = %q, want %q", got, email)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	sort.Strings(posted)
	if diff := cmp.Diff(want, posted); diff != "" {
		t.Errorf("posted emails mismatch (-want +got):\n%s", diff)
	}
}
