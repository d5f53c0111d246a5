package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/ai"
	applog "github.com/spigell/interview-coach/internal/logger"
	"github.com/spigell/interview-coach/internal/metrics"
	"github.com/spigell/interview-coach/internal/resilience/executor"
	"github.com/spigell/interview-coach/internal/resilience/failure"
	"github.com/spigell/interview-coach/internal/resilience/fallback"
)

// HealthGate tells whether the backend is trusted enough for live calls.
type HealthGate interface {
	IsHealthyEnough() bool
}

// Admitter is the advisory admission control.
type Admitter interface {
	Allow(key string) bool
}

// Runner executes backend calls.
type Runner interface {
	Execute(ctx context.Context, req executor.Request) (string, error)
}

// Fallbacks supplies canned results.
type Fallbacks interface {
	Has(op ai.Operation) bool
	Get(op ai.Operation, params fallback.Params) (any, error)
}

// Call is one operation request from a feature.
type Call struct {
	Operation ai.Operation
	// Prompt keys the response cache.
	Prompt    string
	Live      executor.LiveCall
	Cacheable bool
	// Params shape the fallback payload.
	Params fallback.Params
	// Decode turns model text into the operation's result type. When nil the
	// raw text is returned as data.
	Decode func(text string) (any, error)

	Timeout time.Duration
	// MaxRetries overrides the executor default when set.
	MaxRetries *int
}

// Orchestrator is the single entry point for model-backed operations. It
// decides whether a live call is made and what to return when it cannot be
// trusted.
type Orchestrator struct {
	health    HealthGate
	limiter   Admitter
	runner    Runner
	fallbacks Fallbacks
	logger    *zap.Logger
	newID     func() string
}

// New composes an orchestrator. limiter may be nil to disable admission control.
func New(health HealthGate, limiter Admitter, runner Runner, fallbacks Fallbacks, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		health:    health,
		limiter:   limiter,
		runner:    runner,
		fallbacks: fallbacks,
		logger:    logger.Named("orchestrator"),
		newID:     uuid.NewString,
	}
}

// Run applies the decision protocol: a severely degraded backend or an
// exhausted admission budget is answered with a fallback without a live call;
// otherwise the call is executed, and a transient failure is absorbed into a
// fallback while a permanent one is surfaced as a typed error.
func (o *Orchestrator) Run(ctx context.Context, call Call) Envelope {
	env := Envelope{RequestID: o.newID(), Operation: call.Operation}
	logger := applog.WithOperation(o.logger, string(call.Operation), env.RequestID)

	if !o.health.IsHealthyEnough() {
		logger.Info("backend severely degraded, skipping live call")
		return o.substitute(env, call, ReasonDegraded, nil, logger)
	}

	if o.limiter != nil && !o.limiter.Allow(string(call.Operation)) {
		metrics.RateLimited.WithLabelValues(string(call.Operation)).Inc()
		logger.Info("admission budget exhausted, serving fallback")
		return o.substitute(env, call, ReasonRateLimited, nil, logger)
	}

	var validate func(string) error
	if call.Decode != nil {
		validate = func(text string) error {
			_, err := call.Decode(text)
			return err
		}
	}

	text, err := o.runner.Execute(ctx, executor.Request{
		Operation:  string(call.Operation),
		Prompt:     call.Prompt,
		Call:       call.Live,
		Cacheable:  call.Cacheable,
		Validate:   validate,
		Timeout:    call.Timeout,
		MaxRetries: call.MaxRetries,
	})
	if err == nil {
		data, decodeErr := o.decode(call, text)
		if decodeErr == nil {
			env.Success = true
			env.Source = SourceLive
			env.Data = data
			metrics.Results.WithLabelValues(string(call.Operation), string(SourceLive), "").Inc()
			return env
		}
		err = failure.SoftFailure(decodeErr)
	}

	classified := failure.AsError(err)
	if classified.Category.Transient() {
		logger.Warn("live call failed, serving fallback",
			applog.Category(classified.Category),
			zap.Error(err),
		)
		return o.substitute(env, call, Reason(classified.Category), classified, logger)
	}

	logger.Warn("live call failed permanently",
		applog.Category(classified.Category),
		zap.Error(err),
	)
	return o.fail(env, call, classified)
}

func (o *Orchestrator) decode(call Call, text string) (any, error) {
	if call.Decode == nil {
		return text, nil
	}
	return call.Decode(text)
}

func (o *Orchestrator) substitute(env Envelope, call Call, reason Reason, cause *failure.Error, logger *zap.Logger) Envelope {
	payload, err := o.fallbacks.Get(call.Operation, call.Params)
	if err != nil {
		logger.Error("fallback unavailable", zap.Error(err))
		if cause == nil {
			cause = failure.New(failure.CategoryServerError, string(reason))
		}
		env = o.fail(env, call, cause)
		env.Error.FallbackAvailable = false
		if errors.Is(err, fallback.ErrNoFallback) {
			env.Error.Message = messageNoFallback
		}
		return env
	}

	env.Success = true
	env.Source = SourceFallback
	env.Data = payload
	env.FallbackReason = reason
	logger.Debug("serving fallback", applog.Source(SourceFallback), zap.String("reason", string(reason)))
	metrics.Results.WithLabelValues(string(call.Operation), string(SourceFallback), string(reason)).Inc()
	return env
}

func (o *Orchestrator) fail(env Envelope, call Call, cause *failure.Error) Envelope {
	env.Success = false
	env.Source = SourceNone
	env.Data = nil
	env.Error = &ErrorInfo{
		Category:          cause.Category,
		Message:           userMessage(cause.Category),
		RetryAfterMs:      cause.RetryAfter.Milliseconds(),
		FallbackAvailable: o.fallbacks.Has(call.Operation),
	}
	metrics.Results.WithLabelValues(string(call.Operation), string(SourceNone), string(cause.Category)).Inc()
	return env
}
