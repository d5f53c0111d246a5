package orchestrator

import (
	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/resilience/failure"
)

// Source tells where the data of an envelope came from.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
	SourceNone     Source = "none"
)

// Reason explains why a fallback was served.
type Reason string

const (
	ReasonDegraded    Reason = "degraded"
	ReasonRateLimited Reason = "rate_limited_locally"
)

// Envelope is the JSON-serializable result of an operation.
type Envelope struct {
	RequestID      string       `json:"requestId,omitempty"`
	Operation      ai.Operation `json:"operation,omitempty"`
	Success        bool         `json:"success"`
	Data           any          `json:"data"`
	Source         Source       `json:"source"`
	FallbackReason Reason       `json:"fallbackReason,omitempty"`
	Error          *ErrorInfo   `json:"error,omitempty"`
}

// ErrorInfo is the user-facing description of a failed operation.
type ErrorInfo struct {
	Category          failure.Category `json:"category"`
	Message           string           `json:"message"`
	RetryAfterMs      int64            `json:"retryAfterMs,omitempty"`
	FallbackAvailable bool             `json:"fallbackAvailable"`
}

const messageNoFallback = "The AI service is temporarily unavailable and no substitute result exists for this request. Please try again later."

func userMessage(c failure.Category) string {
	switch c {
	case failure.CategorySafetyBlocked:
		return "The request was blocked by the content safety policy. Please rephrase your input and try again."
	case failure.CategoryAuthFailed:
		return "The AI service is not configured correctly. Please contact support."
	case failure.CategoryInvalidInput:
		return "The request could not be processed. Please check your input and try again."
	case failure.CategoryTimeout, failure.CategoryNetwork, failure.CategoryServerError:
		return "The AI service is temporarily unavailable. Please try again later."
	case failure.CategoryRateLimited, failure.CategoryQuotaExceeded:
		return "The AI service is receiving too many requests. Please try again later."
	default:
		return "Something went wrong while processing the request. Please try again."
	}
}
