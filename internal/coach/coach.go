package coach

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/ai"
	applog "github.com/spigell/interview-coach/internal/logger"
	"github.com/spigell/interview-coach/internal/resilience/fallback"
	"github.com/spigell/interview-coach/internal/resilience/orchestrator"
)

//go:embed prompts/*.md
var promptFS embed.FS

// ErrUnknownOperation is returned by Dispatch for names outside ai.Operations.
var ErrUnknownOperation = errors.New("unknown operation")

// Runner runs an operation through the resilience layer.
type Runner interface {
	Run(ctx context.Context, call orchestrator.Call) orchestrator.Envelope
}

// Service turns feature requests into prompts and model replies into typed
// results. It never calls the backend directly.
type Service struct {
	generator ai.Generator
	runner    Runner
	logger    *zap.Logger
	prompts   map[ai.Operation]string
}

func New(generator ai.Generator, runner Runner, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	prompts := make(map[ai.Operation]string, len(ai.Operations))
	for _, op := range ai.Operations {
		data, err := promptFS.ReadFile("prompts/" + string(op) + ".md")
		if err != nil {
			return nil, fmt.Errorf("load %s prompt: %w", op, err)
		}
		prompts[op] = string(data)
	}

	return &Service{
		generator: generator,
		runner:    runner,
		logger:    logger.Named("coach"),
		prompts:   prompts,
	}, nil
}

// Cacheable reports whether live results of op may be served from the
// response cache. Answer evaluations are unique per input and never cached.
func Cacheable(op ai.Operation) bool {
	return op != ai.OpInterviewEvaluation
}

// Dispatch decodes params for op and runs it. Input errors are typed
// invalid_input failures and no call is attempted.
func (s *Service) Dispatch(ctx context.Context, op ai.Operation, params map[string]any) (orchestrator.Envelope, error) {
	switch op {
	case ai.OpResumeAnalysis:
		var in ResumeAnalysisInput
		if err := decodeParams(params, &in); err != nil {
			return orchestrator.Envelope{}, err
		}
		return s.AnalyzeResume(ctx, in)
	case ai.OpContentGeneration:
		var in ContentInput
		if err := decodeParams(params, &in); err != nil {
			return orchestrator.Envelope{}, err
		}
		return s.GenerateContent(ctx, in)
	case ai.OpInterviewGeneration:
		var in InterviewInput
		if err := decodeParams(params, &in); err != nil {
			return orchestrator.Envelope{}, err
		}
		return s.GenerateInterview(ctx, in)
	case ai.OpInterviewEvaluation:
		var in EvaluationInput
		if err := decodeParams(params, &in); err != nil {
			return orchestrator.Envelope{}, err
		}
		return s.EvaluateAnswer(ctx, in)
	case ai.OpAssessmentGeneration:
		var in AssessmentInput
		if err := decodeParams(params, &in); err != nil {
			return orchestrator.Envelope{}, err
		}
		return s.GenerateAssessment(ctx, in)
	default:
		return orchestrator.Envelope{}, fmt.Errorf("%w %q", ErrUnknownOperation, op)
	}
}

func (s *Service) AnalyzeResume(ctx context.Context, in ResumeAnalysisInput) (orchestrator.Envelope, error) {
	if err := in.normalize(); err != nil {
		return orchestrator.Envelope{}, err
	}

	prompt := s.render(ai.OpResumeAnalysis, map[string]string{
		"TARGET_ROLE": orDefault(in.TargetRole, unspecifiedRole),
		"RESUME":      in.Resume,
	})
	return s.run(ctx, ai.OpResumeAnalysis, prompt, fallback.Params{Role: in.TargetRole}, resumeAnalysisDecoder(in)), nil
}

func (s *Service) GenerateContent(ctx context.Context, in ContentInput) (orchestrator.Envelope, error) {
	if err := in.normalize(); err != nil {
		return orchestrator.Envelope{}, err
	}

	prompt := s.render(ai.OpContentGeneration, map[string]string{
		"TOPIC": in.Topic,
		"LEVEL": in.Level,
	})
	return s.run(ctx, ai.OpContentGeneration, prompt, fallback.Params{Topic: in.Topic}, contentDecoder(in)), nil
}

func (s *Service) GenerateInterview(ctx context.Context, in InterviewInput) (orchestrator.Envelope, error) {
	if err := in.normalize(); err != nil {
		return orchestrator.Envelope{}, err
	}

	prompt := s.render(ai.OpInterviewGeneration, map[string]string{
		"ROLE":       in.Role,
		"DIFFICULTY": in.Difficulty,
		"COUNT":      strconv.Itoa(in.Count),
		"FOCUS":      orDefault(strings.Join(in.Focus, ", "), "none"),
	})
	params := fallback.Params{Role: in.Role, Difficulty: in.Difficulty, Count: in.Count}
	return s.run(ctx, ai.OpInterviewGeneration, prompt, params, interviewDecoder(in)), nil
}

func (s *Service) EvaluateAnswer(ctx context.Context, in EvaluationInput) (orchestrator.Envelope, error) {
	if err := in.normalize(); err != nil {
		return orchestrator.Envelope{}, err
	}

	prompt := s.render(ai.OpInterviewEvaluation, map[string]string{
		"ROLE":     orDefault(in.Role, unspecifiedRole),
		"QUESTION": in.Question,
		"ANSWER":   in.Answer,
	})
	params := fallback.Params{Role: in.Role, Question: in.Question}
	return s.run(ctx, ai.OpInterviewEvaluation, prompt, params, evaluationDecoder(in)), nil
}

func (s *Service) GenerateAssessment(ctx context.Context, in AssessmentInput) (orchestrator.Envelope, error) {
	if err := in.normalize(); err != nil {
		return orchestrator.Envelope{}, err
	}

	prompt := s.render(ai.OpAssessmentGeneration, map[string]string{
		"SKILL":      in.Skill,
		"DIFFICULTY": in.Difficulty,
		"COUNT":      strconv.Itoa(in.Count),
	})
	params := fallback.Params{Skill: in.Skill, Difficulty: in.Difficulty, Count: in.Count}
	return s.run(ctx, ai.OpAssessmentGeneration, prompt, params, assessmentDecoder(in)), nil
}

func (s *Service) run(ctx context.Context, op ai.Operation, prompt string, params fallback.Params, decode func(string) (any, error)) orchestrator.Envelope {
	env := s.runner.Run(ctx, orchestrator.Call{
		Operation: op,
		Prompt:    prompt,
		Live: func(ctx context.Context) (string, error) {
			return s.generator.GenerateContent(ctx, prompt)
		},
		Cacheable: Cacheable(op),
		Params:    params,
		Decode:    decode,
	})

	applog.WithOperation(s.logger, string(op), env.RequestID).Debug("operation finished",
		applog.Source(env.Source),
		zap.Bool("success", env.Success),
	)
	return env
}

func (s *Service) render(op ai.Operation, values map[string]string) string {
	pairs := make([]string, 0, 2*len(values))
	for key, value := range values {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	// Single pass, so placeholders inside user input stay literal.
	return strings.NewReplacer(pairs...).Replace(s.prompts[op])
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
