package submit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

const (
	// MsgMissingAction is shown when a registered form has no action URL.
	MsgMissingAction = "The form action property is not set!"

	// MsgGenericFailure is shown when a failure carries no description.
	MsgGenericFailure = "Something went wrong. Please try again."
)

// ErrorType represents the category of a submission failure
type ErrorType int

const (
	// ErrTypeConfiguration means the form cannot be submitted as written
	// (missing action URL). Detected before any network activity.
	ErrTypeConfiguration ErrorType = iota
	// ErrTypeTransport means the request could not complete
	ErrTypeTransport
	// ErrTypeProvider means the provider answered with a non-2xx status
	ErrTypeProvider
	// ErrTypeParse means the provider claimed JSON but sent something else
	ErrTypeParse
)

// TransportSubtype narrows down a transport failure
type TransportSubtype int

const (
	TransportGeneral TransportSubtype = iota
	TransportTimeout
	TransportConnectionRefused
	TransportDNS
	TransportHostUnreachable
	TransportNetworkUnreachable
	TransportCanceled
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeConfiguration:
		return "Configuration Error"
	case ErrTypeTransport:
		return "Transport Error"
	case ErrTypeProvider:
		return "Provider Error"
	case ErrTypeParse:
		return "Parse Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Label is the lowercase form used in metrics and JSON.
func (et ErrorType) Label() string {
	switch et {
	case ErrTypeConfiguration:
		return "configuration"
	case ErrTypeTransport:
		return "transport"
	case ErrTypeProvider:
		return "provider"
	case ErrTypeParse:
		return "parse"
	default:
		return "unknown"
	}
}

// SubmissionError is a failed submission attempt. Message is exactly the
// text displayed in the form's error region.
type SubmissionError struct {
	Type       ErrorType
	Message    string
	StatusCode int    // HTTP status (provider and parse errors)
	StatusText string // HTTP reason phrase
	Subtype    TransportSubtype
	Action     string // URL the form posts to
	Err        error  // underlying cause, if any
}

// Error implements the error interface
func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates an error for a form that cannot be submitted.
func NewConfigurationError(message string) *SubmissionError {
	return &SubmissionError{
		Type:    ErrTypeConfiguration,
		Message: message,
	}
}

// NewProviderError creates an error for a non-2xx provider response.
func NewProviderError(statusCode int, statusText, message string) *SubmissionError {
	return &SubmissionError{
		Type:       ErrTypeProvider,
		Message:    message,
		StatusCode: statusCode,
		StatusText: statusText,
	}
}

// NewParseError creates an error for an undecodable JSON body.
func NewParseError(statusCode int, err error) *SubmissionError {
	return &SubmissionError{
		Type:       ErrTypeParse,
		Message:    describe(err),
		StatusCode: statusCode,
		Err:        err,
	}
}

// ClassifyTransportError turns an error from http.Client.Do into a
// SubmissionError. The message is the innermost description of what went
// wrong, without the "Post <url>:" prefix net/http adds.
func ClassifyTransportError(err error, action string) *SubmissionError {
	if err == nil {
		return nil
	}

	subErr := &SubmissionError{
		Type:    ErrTypeTransport,
		Action:  action,
		Err:     err,
		Subtype: TransportGeneral,
	}

	cause := err
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		cause = urlErr.Err
	}
	subErr.Message = describe(cause)

	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.Canceled):
		subErr.Subtype = TransportCanceled
	case os.IsTimeout(cause) || errors.Is(err, context.DeadlineExceeded):
		subErr.Subtype = TransportTimeout
	case errors.As(err, &dnsErr):
		subErr.Subtype = TransportDNS
	case errors.As(err, &opErr):
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			subErr.Subtype = TransportConnectionRefused
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			subErr.Subtype = TransportHostUnreachable
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			subErr.Subtype = TransportNetworkUnreachable
		}
	}

	return subErr
}

func describe(err error) string {
	if err == nil {
		return MsgGenericFailure
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return MsgGenericFailure
	}
	return msg
}

func asSubmissionError(err error) (*SubmissionError, bool) {
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return subErr, true
	}
	return nil, false
}

// IsConfigurationError checks if an error is a configuration error
func IsConfigurationError(err error) bool {
	subErr, ok := asSubmissionError(err)
	return ok && subErr.Type == ErrTypeConfiguration
}

// IsTransportError checks if an error is a transport error
func IsTransportError(err error) bool {
	subErr, ok := asSubmissionError(err)
	return ok && subErr.Type == ErrTypeTransport
}

// IsProviderError checks if an error is a provider error
func IsProviderError(err error) bool {
	subErr, ok := asSubmissionError(err)
	return ok && subErr.Type == ErrTypeProvider
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	subErr, ok := asSubmissionError(err)
	return ok && subErr.Type == ErrTypeParse
}

// UserMessage returns the text displayed in the error region for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if subErr, ok := asSubmissionError(err); ok {
		if strings.TrimSpace(subErr.Message) == "" {
			return MsgGenericFailure
		}
		return subErr.Message
	}
	return describe(err)
}

// TroubleshootingHints returns advice for the CLI failure box.
func TroubleshootingHints(err error) []string {
	subErr, ok := asSubmissionError(err)
	if !ok {
		return nil
	}

	switch subErr.Type {
	case ErrTypeConfiguration:
		return []string{
			"Set the form's action attribute to the provider endpoint",
			"Check the selector in the config file matches the intended form",
		}
	case ErrTypeTransport:
		switch subErr.Subtype {
		case TransportDNS:
			return []string{"Check the provider hostname in the form action", "Check your DNS settings"}
		case TransportConnectionRefused:
			return []string{"The endpoint refused the connection; verify the action URL and port"}
		case TransportTimeout:
			return []string{"The provider did not answer in time; try again later"}
		case TransportCanceled:
			return []string{"The submission was canceled before the provider answered"}
		default:
			return []string{"Check your network connection", "Verify the action URL is reachable"}
		}
	case ErrTypeProvider:
		if subErr.StatusCode >= 500 {
			return []string{fmt.Sprintf("The provider failed (HTTP %d); try again later", subErr.StatusCode)}
		}
		return []string{
			"The provider rejected the submission; check the field values",
			"Verify the form id in the action URL",
		}
	case ErrTypeParse:
		return []string{"The provider sent a malformed JSON response"}
	default:
		return nil
	}
}
