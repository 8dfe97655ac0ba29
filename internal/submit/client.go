package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/muurk/formrelay/internal/version"
)

const (
	// DefaultMaxBodyBytes caps how much of a provider response is read.
	DefaultMaxBodyBytes = 1 << 20

	tracerName = "github.com/muurk/formrelay/internal/submit"
)

// Poster sends one form submission to a provider.
type Poster interface {
	Post(ctx context.Context, action string, values url.Values) (*Result, error)
}

// Result describes the provider's answer. It is returned alongside provider
// and parse errors so callers can still see the status code.
type Result struct {
	StatusCode  int
	StatusText  string
	ContentType string
	JSON        bool
	Body        any // decoded JSON payload, nil when the response was not JSON
}

// OK reports whether the status is 2xx.
func (r *Result) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Client posts form data to a provider endpoint.
type Client struct {
	// HTTPClient is the underlying HTTP client. It carries no timeout:
	// only the caller's context ends a pending submission.
	HTTPClient *http.Client

	// UserAgent is sent with every request
	UserAgent string

	// MaxBodyBytes limits how much of a response body is read
	MaxBodyBytes int64

	tracer trace.Tracer
}

// NewClient creates a provider client
func NewClient() *Client {
	return &Client{
		HTTPClient:   &http.Client{},
		UserAgent:    version.UserAgent(),
		MaxBodyBytes: DefaultMaxBodyBytes,
		tracer:       otel.Tracer(tracerName),
	}
}

// Post sends values to action as multipart/form-data with
// Accept: application/json. Exactly one request is made; there are no
// retries.
func (c *Client) Post(ctx context.Context, action string, values url.Values) (*Result, error) {
	tracer := c.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	ctx, span := tracer.Start(ctx, "provider.post",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.url", action),
			attribute.Int("form.fields", len(values)),
		),
	)
	defer span.End()

	result, err := c.post(ctx, action, values)
	if result != nil {
		span.SetAttributes(attribute.Int("http.status_code", result.StatusCode))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, UserMessage(err))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return result, err
}

func (c *Client) post(ctx context.Context, action string, values url.Values) (*Result, error) {
	body, contentType, err := encodeMultipart(values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode form data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action, body)
	if err != nil {
		return nil, ClassifyTransportError(err, action)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", contentType)
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, ClassifyTransportError(err, action)
	}
	defer func() { _ = resp.Body.Close() }()

	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	return interpretResponse(resp, action, limit)
}

// encodeMultipart writes fields in sorted name order so request bodies are
// reproducible.
func encodeMultipart(values url.Values) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, v := range values[name] {
			if err := w.WriteField(name, v); err != nil {
				return nil, "", err
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// interpretResponse applies the provider contract:
//
//	2xx + JSON      -> decode, success
//	2xx + other     -> success
//	non-2xx + JSON  -> error, message from error / errors[0].message / "HTTP Error: N"
//	non-2xx + other -> error, "HTTP Error: N Reason"
//
// A JSON body that does not decode is a failure regardless of status.
func interpretResponse(resp *http.Response, action string, limit int64) (*Result, error) {
	result := &Result{
		StatusCode:  resp.StatusCode,
		StatusText:  statusText(resp),
		ContentType: resp.Header.Get("Content-Type"),
	}
	result.JSON = strings.Contains(strings.ToLower(result.ContentType), "application/json")

	if !result.JSON {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, limit))
		if result.OK() {
			return result, nil
		}
		message := strings.TrimSpace(fmt.Sprintf("HTTP Error: %d %s", result.StatusCode, result.StatusText))
		return result, NewProviderError(result.StatusCode, result.StatusText, message)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return result, ClassifyTransportError(err, action)
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return result, NewParseError(result.StatusCode, err)
	}
	result.Body = payload

	if result.OK() {
		return result, nil
	}
	return result, NewProviderError(result.StatusCode, result.StatusText, providerMessage(payload, result.StatusCode))
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

// providerMessage extracts the most specific message from an error payload.
func providerMessage(payload any, statusCode int) string {
	obj, _ := payload.(map[string]any)

	if msg := truthyString(obj["error"]); msg != "" {
		return msg
	}
	if list, ok := obj["errors"].([]any); ok && len(list) > 0 {
		if first, ok := list[0].(map[string]any); ok {
			if msg := truthyString(first["message"]); msg != "" {
				return msg
			}
		}
	}
	return fmt.Sprintf("HTTP Error: %d", statusCode)
}

// truthyString renders a JSON value as a message, or "" for values that
// carry nothing (null, false, 0, "").
func truthyString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if !val {
			return ""
		}
		return "true"
	case float64:
		if val == 0 {
			return ""
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
