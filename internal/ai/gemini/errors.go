package gemini

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/spigell/interview-coach/internal/resilience/failure"
)

var retryAfterText = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*(s|sec|secs|seconds?)\b`)

// translateError attaches a failure category to an error returned by the
// genai client. Errors that are not API errors are left to the generic
// classifier.
func translateError(err error) error {
	apiErr, ok := asAPIError(err)
	if !ok {
		return err
	}

	category := apiCategory(apiErr, err)
	out := failure.Wrap(category, err)
	out.RetryAfter = retryDelay(apiErr)
	return out
}

func asAPIError(err error) (genai.APIError, bool) {
	var value genai.APIError
	if errors.As(err, &value) {
		return value, true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return genai.APIError{}, false
}

func apiCategory(apiErr genai.APIError, err error) failure.Category {
	message := strings.ToLower(apiErr.Message)
	status := strings.ToUpper(apiErr.Status)

	switch {
	case strings.Contains(message, "api key"):
		return failure.CategoryAuthFailed
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
		return failure.CategoryAuthFailed
	case apiErr.Code == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED":
		if strings.Contains(message, "quota") {
			return failure.CategoryQuotaExceeded
		}
		return failure.CategoryRateLimited
	case apiErr.Code == http.StatusRequestTimeout || apiErr.Code == http.StatusGatewayTimeout || status == "DEADLINE_EXCEEDED":
		return failure.CategoryTimeout
	case apiErr.Code == http.StatusBadRequest || apiErr.Code == http.StatusRequestEntityTooLarge || apiErr.Code == http.StatusUnprocessableEntity:
		return failure.CategoryInvalidInput
	case apiErr.Code >= http.StatusInternalServerError:
		return failure.CategoryServerError
	default:
		return failure.Classify(err).Category
	}
}

// retryDelay reads the server's retry hint from a google.rpc.RetryInfo detail
// or from the message text.
func retryDelay(apiErr genai.APIError) time.Duration {
	for _, detail := range apiErr.Details {
		raw, ok := detail["retryDelay"].(string)
		if !ok {
			continue
		}
		if d, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil && d > 0 {
			return d
		}
	}

	if m := retryAfterText.FindStringSubmatch(apiErr.Message); m != nil {
		seconds, err := strconv.ParseFloat(m[1], 64)
		if err == nil && seconds > 0 {
			return time.Duration(seconds * float64(time.Second))
		}
	}
	return 0
}
