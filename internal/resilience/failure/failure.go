package failure

import (
	"errors"
	"fmt"
	"time"
)

// Category is the retry-relevant classification of a failed backend call.
type Category string

const (
	CategoryTimeout       Category = "timeout"
	CategoryRateLimited   Category = "rate_limited"
	CategoryQuotaExceeded Category = "quota_exceeded"
	CategorySafetyBlocked Category = "safety_blocked"
	CategoryAuthFailed    Category = "auth_failed"
	CategoryNetwork       Category = "network"
	CategoryInvalidInput  Category = "invalid_input"
	CategoryServerError   Category = "server_error"
	CategoryUnknown       Category = "unknown"
)

// ErrEmptyResponse is returned when the backend answered with no usable text.
var ErrEmptyResponse = errors.New("backend returned empty response")

// Transient reports whether the category describes a condition of the backend
// rather than of the caller's input. Transient failures are retried locally and
// absorbed into a fallback by the orchestrator.
func (c Category) Transient() bool {
	switch c {
	case CategoryTimeout, CategoryNetwork, CategoryRateLimited, CategoryQuotaExceeded, CategoryServerError:
		return true
	default:
		return false
	}
}

func (c Category) String() string { return string(c) }

// Error is a failure tagged with its category at the point where it was first
// observed.
type Error struct {
	Category  Category
	Retryable bool
	// Soft marks responses that arrived but were unusable (empty, truncated,
	// undecodable). They are retried at most once.
	Soft bool
	// RetryAfter is the backend's hint on when to try again, zero when absent.
	RetryAfter time.Duration
	Message    string
	Err        error
}

// New creates an Error whose retryability follows the category.
func New(category Category, message string) *Error {
	return &Error{
		Category:  category,
		Retryable: category.Transient(),
		Message:   message,
	}
}

// Wrap tags err with the category.
func Wrap(category Category, err error) *Error {
	e := New(category, "")
	e.Err = err
	return e
}

// SoftFailure builds a retryable server_error for a response that cannot be used.
func SoftFailure(err error) *Error {
	e := Wrap(CategoryServerError, err)
	e.Soft = true
	return e
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Category, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Category, e.Err)
	default:
		return string(e.Category)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Verdict is the classifier's answer for a single error.
type Verdict struct {
	Retryable bool
	Category  Category
}
