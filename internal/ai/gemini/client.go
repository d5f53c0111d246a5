package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	applog "github.com/spigell/interview-coach/internal/logger"
	"github.com/spigell/interview-coach/internal/resilience/failure"
	"github.com/spigell/interview-coach/internal/utils"
)

const (
	DefaultModel        = "gemini-2.5-flash"
	defaultMaxLogLength = 200
)

// models is the slice of the genai client the generator needs.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config configures the Gemini generator.
type Config struct {
	APIKey string
	Model  string
	// Temperature is passed to the model when positive.
	Temperature float32
	MaxLogLen   int
}

// Generator wraps the Google GenAI client to provide simple prompt-based interactions.
// Every error it returns carries a failure category.
type Generator struct {
	models      models
	modelName   string
	temperature float32
	logger      *zap.Logger
	maxLogLen   int
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, cfg Config, logger *zap.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(client.Models, cfg, logger), nil
}

func newGenerator(m models, cfg Config, logger *zap.Logger) *Generator {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	maxLogLen := cfg.MaxLogLen
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	return &Generator{
		models:      m,
		modelName:   model,
		temperature: cfg.Temperature,
		logger:      applog.WithCommonFields(logger, "gemini", model).Named("gemini"),
		maxLogLen:   maxLogLen,
	}
}

// GenerateContent sends the prompt to Gemini and returns the textual response.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", failure.New(failure.CategoryAuthFailed, "gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", failure.New(failure.CategoryInvalidInput, "prompt must not be empty")
	}

	var config *genai.GenerateContentConfig
	if g.temperature > 0 {
		temperature := g.temperature
		config = &genai.GenerateContentConfig{Temperature: &temperature}
	}

	g.logger.Debug("gemini generate content request",
		zap.Int("prompt_length", len(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, g.maxLogLen)),
	)

	resp, err := g.models.GenerateContent(ctx, g.modelName, genai.Text(prompt), config)
	if err != nil {
		return "", translateError(err)
	}

	output, err := responseText(resp)
	if err != nil {
		return "", err
	}

	g.logger.Debug("gemini generate content response",
		zap.Int("response_length", len(output)),
		zap.String("response_preview", utils.TruncateForLog(output, g.maxLogLen)),
	)

	return output, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", failure.SoftFailure(failure.ErrEmptyResponse)
	}

	if fb := resp.PromptFeedback; fb != nil {
		reason := string(fb.BlockReason)
		if reason != "" && reason != string(genai.BlockedReasonUnspecified) {
			return "", failure.New(failure.CategorySafetyBlocked, fmt.Sprintf("prompt blocked: %s %s", reason, fb.BlockReasonMessage))
		}
	}

	var (
		builder   strings.Builder
		truncated bool
	)
	for _, candidate := range resp.Candidates {
		if candidate == nil {
			continue
		}
		switch candidate.FinishReason {
		case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist, genai.FinishReasonSPII:
			return "", failure.New(failure.CategorySafetyBlocked, fmt.Sprintf("response blocked: finish reason %s", candidate.FinishReason))
		case genai.FinishReasonMaxTokens:
			truncated = true
		}
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if truncated {
		return "", failure.SoftFailure(fmt.Errorf("gemini response truncated by the token limit after %d characters", len(output)))
	}
	if output == "" {
		return "", failure.SoftFailure(failure.ErrEmptyResponse)
	}

	return output, nil
}
