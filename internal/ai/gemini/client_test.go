package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/spigell/interview-coach/internal/resilience/failure"
)

type fakeModels struct {
	mu    sync.Mutex
	calls []modelCall
	resp  *genai.GenerateContentResponse
	err   error
}

type modelCall struct {
	model  string
	prompt string
	config *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var prompt string
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		prompt = contents[0].Parts[0].Text
	}
	f.calls = append(f.calls, modelCall{model: model, prompt: prompt, config: config})
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func TestGenerateContentJoinsParts(t *testing.T) {
	models := &fakeModels{resp: textResponse(" first ", "", "second")}
	g := newGenerator(models, Config{Model: "gemini-pro", Temperature: 0.4}, nil)

	output, err := g.GenerateContent(context.Background(), "  hello  ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if output != "first\nsecond" {
		t.Fatalf("unexpected output: %q", output)
	}

	if len(models.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(models.calls))
	}
	call := models.calls[0]
	if call.model != "gemini-pro" || call.prompt != "hello" {
		t.Fatalf("unexpected call: %+v", call)
	}
	if call.config == nil || call.config.Temperature == nil || *call.config.Temperature != 0.4 {
		t.Fatalf("expected temperature to be set, got %+v", call.config)
	}
}

func TestGeneratorDefaults(t *testing.T) {
	g := newGenerator(&fakeModels{resp: textResponse("ok")}, Config{}, nil)
	if g.Model() != DefaultModel {
		t.Fatalf("expected default model, got %q", g.Model())
	}
	if g.maxLogLen != defaultMaxLogLength {
		t.Fatalf("unexpected max log length %d", g.maxLogLen)
	}

	var nilGenerator *Generator
	if nilGenerator.Model() != "" {
		t.Fatal("nil generator must report empty model")
	}
	_, err := nilGenerator.GenerateContent(context.Background(), "x")
	if failure.Classify(err).Category != failure.CategoryAuthFailed {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestGenerateContentRejectsEmptyPrompt(t *testing.T) {
	models := &fakeModels{resp: textResponse("ok")}
	g := newGenerator(models, Config{}, nil)

	_, err := g.GenerateContent(context.Background(), "   ")
	if got := failure.Classify(err); got.Category != failure.CategoryInvalidInput || got.Retryable {
		t.Fatalf("unexpected verdict %+v", got)
	}
	if len(models.calls) != 0 {
		t.Fatal("empty prompt must not reach the backend")
	}
}

func TestNewGeneratorRequiresKey(t *testing.T) {
	if _, err := NewGenerator(context.Background(), Config{APIKey: "  "}, nil); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestGenerateContentTranslatesAPIErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		category  failure.Category
		retryable bool
		retryIn   time.Duration
	}{
		{
			name:      "server error",
			err:       genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"},
			category:  failure.CategoryServerError,
			retryable: true,
		},
		{
			name:      "overloaded pointer",
			err:       &genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE", Message: "The model is overloaded."},
			category:  failure.CategoryServerError,
			retryable: true,
		},
		{
			name:     "bad api key",
			err:      genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT", Message: "API key not valid. Please pass a valid API key."},
			category: failure.CategoryAuthFailed,
		},
		{
			name:     "permission denied",
			err:      genai.APIError{Code: http.StatusForbidden, Status: "PERMISSION_DENIED"},
			category: failure.CategoryAuthFailed,
		},
		{
			name:     "invalid argument",
			err:      genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT", Message: "Request contains an invalid argument."},
			category: failure.CategoryInvalidInput,
		},
		{
			name:      "deadline",
			err:       genai.APIError{Code: http.StatusGatewayTimeout, Status: "DEADLINE_EXCEEDED"},
			category:  failure.CategoryTimeout,
			retryable: true,
		},
		{
			name:      "rate limited",
			err:       genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED", Message: "Too many requests"},
			category:  failure.CategoryRateLimited,
			retryable: true,
		},
		{
			name: "quota with retry info",
			err: genai.APIError{
				Code:    http.StatusTooManyRequests,
				Status:  "RESOURCE_EXHAUSTED",
				Message: "You exceeded your current quota.",
				Details: []map[string]any{
					{"@type": "type.googleapis.com/google.rpc.QuotaFailure"},
					{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "37s"},
				},
			},
			category:  failure.CategoryQuotaExceeded,
			retryable: true,
			retryIn:   37 * time.Second,
		},
		{
			name:      "quota with textual hint",
			err:       fmt.Errorf("generate: %w", genai.APIError{Code: http.StatusTooManyRequests, Message: "quota exhausted, retry after 60 seconds"}),
			category:  failure.CategoryQuotaExceeded,
			retryable: true,
			retryIn:   time.Minute,
		},
		{
			name:      "plain network error",
			err:       errors.New("dial tcp: connection refused"),
			category:  failure.CategoryNetwork,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGenerator(&fakeModels{err: tt.err}, Config{}, nil)

			_, err := g.GenerateContent(context.Background(), "prompt")
			if err == nil {
				t.Fatal("expected error")
			}

			verdict := failure.Classify(err)
			if verdict.Category != tt.category || verdict.Retryable != tt.retryable {
				t.Fatalf("unexpected verdict %+v for %v", verdict, err)
			}
			if tt.retryIn > 0 {
				typed := failure.AsError(err)
				if typed.RetryAfter != tt.retryIn {
					t.Fatalf("expected retry hint %s, got %s", tt.retryIn, typed.RetryAfter)
				}
			}
		})
	}
}

func TestGenerateContentSafetyBlocks(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
	}{
		{
			name: "prompt feedback",
			resp: &genai.GenerateContentResponse{
				PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
			},
		},
		{
			name: "finish reason",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGenerator(&fakeModels{resp: tt.resp}, Config{}, nil)

			_, err := g.GenerateContent(context.Background(), "prompt")
			verdict := failure.Classify(err)
			if verdict.Category != failure.CategorySafetyBlocked || verdict.Retryable {
				t.Fatalf("unexpected verdict %+v", verdict)
			}
		})
	}
}

func TestGenerateContentUnusableResponsesAreSoft(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
	}{
		{name: "nil response"},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}},
		{name: "blank text", resp: textResponse("   ")},
		{
			name: "truncated",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonMaxTokens}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGenerator(&fakeModels{resp: tt.resp}, Config{}, nil)

			_, err := g.GenerateContent(context.Background(), "prompt")
			typed := failure.AsError(err)
			if typed == nil || !typed.Soft || typed.Category != failure.CategoryServerError {
				t.Fatalf("expected soft server error, got %v", err)
			}
		})
	}
}

func TestTruncatedResponseWithTextIsSoftFailure(t *testing.T) {
	resp := textResponse(`{"questions": [{"id": 1, "question": "Tell me about`)
	resp.Candidates[0].FinishReason = genai.FinishReasonMaxTokens

	g := newGenerator(&fakeModels{resp: resp}, Config{}, nil)
	output, err := g.GenerateContent(context.Background(), "prompt")
	if output != "" {
		t.Fatalf("truncated text must not be returned, got %q", output)
	}
	typed := failure.AsError(err)
	if typed == nil || !typed.Soft || !typed.Retryable || typed.Category != failure.CategoryServerError {
		t.Fatalf("expected retryable soft server error, got %v", err)
	}
}
