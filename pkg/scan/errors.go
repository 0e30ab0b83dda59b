package scan

import (
	"errors"
	"fmt"
)

// Error codes. Retryability is carried per error, but these defaults
// hold: validation and the two not-found codes are terminal, everything
// else can plausibly succeed on a later attempt.
const (
	CodeValidation          = "validation"
	CodePlatformNotFound    = "platform_not_found"
	CodeScraperNotAvailable = "scraper_not_available"
	CodeNetwork             = "network"
	CodeRateLimit           = "rate_limit"
	CodeParsing             = "parsing"
	CodeNoSettingsFound     = "no_settings_found"
	CodeAuthentication      = "authentication"
	CodeScraping            = "scraping_error"
	CodeUnknown             = "unknown"
)

// Error is the failure type surfaced by every scan path. It carries a
// machine code, a human message, whether the caller may retry, and
// optional structured details for diagnostics.
type Error struct {
	Code      string
	Message   string
	Retryable bool
	Details   map[string]any
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WithDetail attaches a single diagnostic key/value and returns e.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause records the underlying error and returns e.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// NewError builds a scan error.
func NewError(code, message string, retryable bool) *Error {
	return &Error{Code: code, Message: message, Retryable: retryable}
}

// Wrap coerces any error into a *Error. Scan errors pass through
// unchanged; everything else becomes an unknown, retryable by default.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return &Error{Code: CodeUnknown, Message: err.Error(), Retryable: true, cause: err}
}

// IsRetryable reports whether err carries a retryable scan error.
// Unknown error values default to retryable, matching Wrap.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Retryable
	}
	return true
}
