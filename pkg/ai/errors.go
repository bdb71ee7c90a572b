// Package ai holds the provider-neutral error classification shared by the
// service interfaces. Providers wrap API failures as recoverable or fatal;
// callers on the speech path use the class to decide whether one more
// attempt is worth the latency.
package ai

import "errors"

var (
	// ErrRecoverable marks transient failures such as rate limits and
	// upstream 5xx. Worth one retry.
	ErrRecoverable = errors.New("recoverable AI provider error")

	// ErrFatal marks failures no retry fixes, such as bad credentials or a
	// malformed request.
	ErrFatal = errors.New("fatal AI provider error")
)

// IsRecoverable reports whether err carries the transient class.
func IsRecoverable(err error) bool { return errors.Is(err, ErrRecoverable) }

// IsFatal reports whether err carries the permanent class.
func IsFatal(err error) bool { return errors.Is(err, ErrFatal) }

// RetryableError attaches a retry class to a provider error. Unwrap yields
// the class sentinel, so errors.Is sees the class through further wrapping;
// the underlying error survives in the message only.
type RetryableError struct {
	Underlying error
	Retryable  bool
	Message    string
}

func (e *RetryableError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Underlying.Error()
}

func (e *RetryableError) Unwrap() error {
	if e.Retryable {
		return ErrRecoverable
	}
	return ErrFatal
}

// NewRecoverableError classifies err as transient.
func NewRecoverableError(underlying error, message string) error {
	return &RetryableError{Underlying: underlying, Retryable: true, Message: message}
}

// NewFatalError classifies err as permanent.
func NewFatalError(underlying error, message string) error {
	return &RetryableError{Underlying: underlying, Retryable: false, Message: message}
}
