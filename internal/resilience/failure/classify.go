package failure

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strings"
)

type rule struct {
	category Category
	keywords []string
	codes    *regexp.Regexp
}

// rules are evaluated in order, first match wins. Permanent categories come
// first so a message mentioning both "blocked" and "500" is not retried.
var rules = []rule{
	{
		category: CategorySafetyBlocked,
		keywords: []string{"safety", "content policy", "blocked", "prohibited content", "harm category", "recitation"},
	},
	{
		category: CategoryAuthFailed,
		keywords: []string{"api key", "api_key", "unauthorized", "unauthenticated", "permission denied", "permission_denied", "forbidden", "invalid credentials"},
		codes:    regexp.MustCompile(`\b(401|403)\b`),
	},
	{
		category: CategoryInvalidInput,
		keywords: []string{"invalid argument", "invalid_argument", "invalid input", "malformed", "bad request", "failed_precondition", "unsupported mime"},
		codes:    regexp.MustCompile(`\b(400|413|422)\b`),
	},
	{
		category: CategoryTimeout,
		keywords: []string{"timeout", "timed out", "deadline exceeded", "deadline_exceeded"},
		codes:    regexp.MustCompile(`\b(408|504)\b`),
	},
	{
		category: CategoryNetwork,
		keywords: []string{"connection refused", "connection reset", "no such host", "network is unreachable", "broken pipe", "unexpected eof", "tls handshake", "econnreset", "econnrefused"},
	},
	{
		category: CategoryQuotaExceeded,
		keywords: []string{"quota"},
	},
	{
		category: CategoryRateLimited,
		keywords: []string{"rate limit", "rate-limit", "too many requests", "resource_exhausted", "resource exhausted"},
		codes:    regexp.MustCompile(`\b429\b`),
	},
	{
		category: CategoryServerError,
		keywords: []string{"internal error", "internal server error", "service unavailable", "unavailable", "overloaded", "bad gateway", "server error"},
		codes:    regexp.MustCompile(`\b(500|502|503)\b`),
	},
}

// Classify maps an error to a retry verdict. Typed *Error values keep the
// category attached at their origin. Everything else is matched against a
// fixed keyword table; unmatched errors are unknown and not retried.
func Classify(err error) Verdict {
	if err == nil {
		return Verdict{Category: CategoryUnknown}
	}

	var typed *Error
	if errors.As(err, &typed) {
		return Verdict{Retryable: typed.Retryable, Category: typed.Category}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Verdict{Retryable: true, Category: CategoryTimeout}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Verdict{Retryable: true, Category: CategoryTimeout}
		}
		return Verdict{Retryable: true, Category: CategoryNetwork}
	}

	return classifyMessage(err.Error())
}

func classifyMessage(msg string) Verdict {
	lower := strings.ToLower(msg)
	for _, r := range rules {
		if r.matches(lower) {
			return Verdict{Retryable: r.category.Transient(), Category: r.category}
		}
	}
	return Verdict{Category: CategoryUnknown}
}

func (r rule) matches(lower string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return r.codes != nil && r.codes.MatchString(lower)
}

// AsError returns err as a typed *Error, classifying it when it carries no tag.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	verdict := Classify(err)
	return &Error{Category: verdict.Category, Retryable: verdict.Retryable, Err: err}
}
