package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"

	"github.com/muurk/formrelay/internal/page"
	"github.com/muurk/formrelay/internal/submit"
)

const relayPage = `<!DOCTYPE html>
<html><body>
<form id="contact" class="php-email-form" action="%s">
  <input type="email" name="email" value="">
  <input type="checkbox" name="copy" value="yes">
  <textarea name="message"></textarea>
  <div class="loading">Loading</div>
  <div class="error-message"></div>
  <div class="sent-message">Thanks!</div>
  <button type="submit">Send</button>
</form>
</body></html>`

type relayFixture struct {
	relay    *httptest.Server
	server   *Server
	ctrl     *submit.Controller
	received atomic.Value // url.Values last seen by the provider

	mu     sync.Mutex
	emails []string // every email the provider saw, in arrival order
}

func (f *relayFixture) receivedEmails() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.emails...)
	sort.Strings(out)
	return out
}

func newRelay(t *testing.T, providerStatus int, providerBody string) *relayFixture {
	t.Helper()
	f := &relayFixture{}

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			f.received.Store(url.Values(r.MultipartForm.Value))
			f.mu.Lock()
			f.emails = append(f.emails, r.MultipartForm.Value["email"]...)
			f.mu.Unlock()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(providerStatus)
		_, _ = io.WriteString(w, providerBody)
	}))
	t.Cleanup(provider.Close)

	doc, err := page.ParseString(fmt.Sprintf(relayPage, provider.URL))
	if err != nil {
		t.Fatal(err)
	}

	opts := submit.DefaultOptions()
	opts.Selector = page.Selector{Class: "php-email-form"}
	opts.Clock = submit.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	f.ctrl = submit.NewController(opts)
	f.ctrl.Attach(doc)

	f.server, err = New(&Config{Host: "127.0.0.1"}, doc, f.ctrl)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.relay = httptest.NewServer(f.server.Handler())
	t.Cleanup(f.relay.Close)
	t.Cleanup(func() { _ = f.server.Shutdown(context.Background()) })
	return f
}

func (f *relayFixture) postJSON(t *testing.T, id string, values url.Values) (*http.Response, submitResponse) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.relay.URL+"/forms/"+id, strings.NewReader(values.Encode()))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, body
}

func TestHealthz(t *testing.T) {
	f := newRelay(t, 200, `{"ok":true}`)

	resp, err := http.Get(f.relay.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" || body["forms"] != float64(1) {
		t.Errorf("healthz = %d %v", resp.StatusCode, body)
	}
}

func TestListForms(t *testing.T) {
	f := newRelay(t, 200, `{"ok":true}`)

	resp, err := http.Get(f.relay.URL + "/forms")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var views []formView
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 || views[0].ID != "contact" {
		t.Fatalf("forms = %+v", views)
	}
	if views[0].Snapshot.State != submit.StateIdle {
		t.Errorf("state = %v, want idle", views[0].Snapshot.State)
	}
}

func TestSubmit_JSONSuccess(t *testing.T) {
	f := newRelay(t, 200, `{"ok":true}`)

	resp, body := f.postJSON(t, "contact", url.Values{"email": {"jane@example.com"}, "message": {"Hi"}})
	if resp.StatusCode != http.StatusOK || !body.OK {
		t.Fatalf("response = %d %+v", resp.StatusCode, body)
	}
	if body.State != submit.StateSuccess {
		t.Errorf("state = %v, want success", body.State)
	}

	got, _ := f.received.Load().(url.Values)
	if got.Get("email") != "jane@example.com" || got.Get("message") != "Hi" {
		t.Errorf("provider received %v", got)
	}
	if _, ok := got["copy"]; ok {
		t.Error("unchecked checkbox should not be submitted")
	}

	pageResp, err := http.Get(f.relay.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer pageResp.Body.Close()
	html, _ := io.ReadAll(pageResp.Body)
	if !strings.Contains(string(html), `class="sent-message d-block"`) {
		t.Errorf("rendered page should show the success region:\n%s", html)
	}
}

func TestSubmit_ConcurrentPostsKeepTheirOwnValues(t *testing.T) {
	f := newRelay(t, 200, `{"ok":true}`)

	const posts = 20
	var want []string
	var wg sync.WaitGroup
	for i := 0; i < posts; i++ {
		email := fmt.Sprintf("user%02d@example.com", i)
		want = append(want, email)
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := url.Values{"email": {email}, "message": {"Hi"}}
			req, _ := http.NewRequest(http.MethodPost, f.relay.URL+"/forms/contact", strings.NewReader(body.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.Header.Set("Accept", "application/json")
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Errorf("post %s: %v", email, err)
				return
			}
			resp.Body.Close()
		}()
	}
	wg.Wait()

	if diff := cmp.Diff(want, f.receivedEmails()); diff != "" {
		t.Errorf("provider emails mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmit_JSONProviderError(t *testing.T) {
	f := newRelay(t, 422, `{"errors":[{"message":"Email is invalid"}]}`)

	resp, body := f.postJSON(t, "contact", url.Values{"email": {"nope"}})
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	if body.OK || body.ErrorType != "provider" || body.Message != "Email is invalid" {
		t.Errorf("response = %+v", body)
	}
}

func TestSubmit_BrowserPostRedirects(t *testing.T) {
	f := newRelay(t, 200, `{"ok":true}`)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.PostForm(f.relay.URL+"/forms/contact", url.Values{"email": {"a@b.c"}})
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Errorf("response = %d Location=%q", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestSubmit_UnknownForm(t *testing.T) {
	f := newRelay(t, 200, `{"ok":true}`)

	resp, err := http.PostForm(f.relay.URL+"/forms/missing", url.Values{})
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newRelay(t, 200, `{"ok":true}`)
	f.postJSON(t, "contact", url.Values{"email": {"a@b.c"}})

	resp, err := http.Get(f.relay.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`formrelay_submissions_total{form="contact",result="success"} 1`,
		`formrelay_form_state{form="contact",state="success"} 1`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestEventsStream(t *testing.T) {
	f := newRelay(t, 200, `{"ok":true}`)

	wsURL := "ws" + strings.TrimPrefix(f.relay.URL, "http") + "/forms/contact/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	read := func() submit.Snapshot {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var snap submit.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		return snap
	}

	if snap := read(); snap.FormID != "contact" || snap.State != submit.StateIdle {
		t.Fatalf("initial snapshot = %+v", snap)
	}

	f.postJSON(t, "contact", url.Values{"email": {"a@b.c"}})

	if snap := read(); snap.State != submit.StateLoading {
		t.Errorf("second snapshot = %v, want loading", snap.State)
	}
	if snap := read(); snap.State != submit.StateSuccess {
		t.Errorf("third snapshot = %v, want success", snap.State)
	}
}

func TestEventsUnknownForm(t *testing.T) {
	f := newRelay(t, 200, `{}`)
	resp, err := http.Get(f.relay.URL + "/forms/missing/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestTLSInfo(t *testing.T) {
	if TLSInfo(nil)["enabled"] != false {
		t.Error("TLSInfo(nil) should report disabled")
	}
	if _, err := NewTLSConfig("missing.pem", "missing.key"); err == nil {
		t.Error("NewTLSConfig() should fail for missing files")
	}
}
