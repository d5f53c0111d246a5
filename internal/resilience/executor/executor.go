package executor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/metrics"
	"github.com/spigell/interview-coach/internal/resilience/cache"
	"github.com/spigell/interview-coach/internal/resilience/failure"
	"github.com/spigell/interview-coach/internal/resilience/health"
	"github.com/spigell/interview-coach/internal/utils"
)

// LiveCall performs one request against the inference backend.
type LiveCall func(ctx context.Context) (string, error)

// Recorder receives one outcome per Execute call.
type Recorder interface {
	Record(o health.Outcome)
}

// Request describes one unit of backend work.
type Request struct {
	Operation string
	// Prompt is only used to derive the cache key.
	Prompt string
	Call   LiveCall
	// Cacheable opts the request into the response cache.
	Cacheable bool
	// Validate rejects responses that arrived but are unusable. A validation
	// error is a soft failure.
	Validate func(text string) error
	// Timeout overrides the executor default when positive.
	Timeout time.Duration
	// MaxRetries overrides the executor default when set. Zero disables retries.
	MaxRetries *int
}

// Retries returns n as a MaxRetries override.
func Retries(n int) *int { return &n }

// Config holds the retry policy.
type Config struct {
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxJitter  time.Duration
}

// Executor runs backend calls with a per-attempt timeout and classified retries.
type Executor struct {
	cfg      Config
	cache    *cache.Cache
	recorder Recorder
	logger   *zap.Logger

	jitter func(max time.Duration) time.Duration
	wait   func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

// New creates an executor. cache and recorder may be nil.
func New(cfg Config, c *cache.Cache, recorder Recorder, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &Executor{
		cfg:      cfg,
		cache:    c,
		recorder: recorder,
		logger:   logger.Named("executor"),
		jitter:   randomJitter,
		wait:     utils.WaitFor,
		now:      time.Now,
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max + 1)
}

// Backoff returns the delay before the retry following attempt.
func (e *Executor) Backoff(attempt int) time.Duration {
	var delay time.Duration
	if attempt > 32 {
		delay = e.cfg.MaxDelay
	} else if delay = e.cfg.BaseDelay << attempt; delay < e.cfg.BaseDelay {
		delay = e.cfg.MaxDelay
	}
	delay += e.jitter(e.cfg.MaxJitter)
	if e.cfg.MaxDelay > 0 && delay > e.cfg.MaxDelay {
		delay = e.cfg.MaxDelay
	}
	return delay
}

// Execute runs req until it succeeds, fails permanently or exhausts its
// retries. Cache hits return without touching the backend. Every call that
// reaches the backend reports exactly one outcome to the recorder, unless the
// caller's context ends first.
func (e *Executor) Execute(ctx context.Context, req Request) (string, error) {
	if req.Call == nil {
		return "", failure.New(failure.CategoryInvalidInput, "no live call provided")
	}

	logger := e.logger.With(zap.String("operation", req.Operation))

	var key string
	if req.Cacheable && e.cache != nil {
		key = cache.Key(req.Operation, req.Prompt)
		if text, ok := e.cache.Get(key); ok {
			metrics.CacheLookups.WithLabelValues(req.Operation, "hit").Inc()
			logger.Debug("serving response from cache")
			return text, nil
		}
		metrics.CacheLookups.WithLabelValues(req.Operation, "miss").Inc()
	}

	timeout := e.cfg.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	maxRetries := e.cfg.MaxRetries
	if req.MaxRetries != nil && *req.MaxRetries >= 0 {
		maxRetries = *req.MaxRetries
	}

	start := e.now()
	softSeen := false
	var lastErr *failure.Error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		text, err := e.attempt(ctx, req, timeout)
		if err == nil {
			metrics.BackendAttempts.WithLabelValues(req.Operation, "success").Inc()
			latency := e.now().Sub(start)
			e.record(health.Outcome{Success: true, Latency: latency, Timestamp: e.now()})
			metrics.BackendLatency.WithLabelValues(req.Operation).Observe(latency.Seconds())
			if key != "" {
				e.cache.Put(key, text)
			}
			if attempt > 0 {
				logger.Info("backend call succeeded after retries", zap.Int("attempt", attempt+1))
			}
			return text, nil
		}

		metrics.BackendAttempts.WithLabelValues(req.Operation, "failure").Inc()

		if ctx.Err() != nil {
			logger.Debug("caller context ended, abandoning retries", zap.Error(ctx.Err()))
			return "", failure.Wrap(failure.CategoryTimeout, ctx.Err())
		}

		lastErr = failure.AsError(err)

		if stop, reason := e.shouldStop(lastErr, attempt, maxRetries, softSeen); stop {
			logger.Debug("not retrying backend call",
				zap.String("error_category", string(lastErr.Category)),
				zap.Int("attempt", attempt+1),
				zap.String("reason", reason),
			)
			break
		}
		if lastErr.Soft {
			softSeen = true
		}

		delay := e.Backoff(attempt)
		logger.Warn("backend call failed, retrying",
			zap.String("error_category", string(lastErr.Category)),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)

		if err := e.wait(ctx, delay); err != nil {
			return "", failure.Wrap(failure.CategoryTimeout, err)
		}
	}

	e.record(health.Outcome{Success: false, Category: lastErr.Category, Err: lastErr, Timestamp: e.now()})
	metrics.BackendErrors.WithLabelValues(req.Operation, string(lastErr.Category)).Inc()
	metrics.BackendLatency.WithLabelValues(req.Operation).Observe(e.now().Sub(start).Seconds())

	return "", lastErr
}

func (e *Executor) shouldStop(err *failure.Error, attempt, maxRetries int, softSeen bool) (bool, string) {
	switch {
	case !err.Retryable:
		return true, "error is not retryable"
	case attempt >= maxRetries:
		return true, "retries exhausted"
	case err.Soft && softSeen:
		return true, "unusable response repeated"
	case err.RetryAfter > 0 && e.cfg.MaxDelay > 0 && err.RetryAfter > e.cfg.MaxDelay:
		return true, fmt.Sprintf("backend asked to wait %s", err.RetryAfter)
	default:
		return false, ""
	}
}

// Probe performs a single attempt with no retries, no cache and no outcome
// recording. The caller is expected to record the result.
func (e *Executor) Probe(ctx context.Context, call LiveCall) (string, error) {
	if call == nil {
		return "", failure.New(failure.CategoryInvalidInput, "no live call provided")
	}
	text, err := e.attempt(ctx, Request{Operation: "probe", Call: call}, e.cfg.Timeout)
	if err != nil {
		return "", failure.AsError(err)
	}
	return text, nil
}

type callResult struct {
	text string
	err  error
}

// attempt races the call against the timeout. A call that outlives the timeout
// keeps running in the background and its result is dropped.
func (e *Executor) attempt(ctx context.Context, req Request, timeout time.Duration) (string, error) {
	var (
		attemptCtx context.Context
		cancel     context.CancelFunc
	)
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		attemptCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	results := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- callResult{err: failure.Wrap(failure.CategoryUnknown, fmt.Errorf("live call panicked: %v", r))}
			}
		}()
		text, err := req.Call(attemptCtx)
		results <- callResult{text: text, err: err}
	}()

	select {
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", failure.Wrap(failure.CategoryTimeout, fmt.Errorf("no response within %s: %w", timeout, context.DeadlineExceeded))
	case res := <-results:
		if res.err != nil {
			return "", res.err
		}
		return validate(res.text, req.Validate)
	}
}

func validate(text string, check func(string) error) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", failure.SoftFailure(failure.ErrEmptyResponse)
	}
	if check != nil {
		if err := check(text); err != nil {
			var typed *failure.Error
			if errors.As(err, &typed) {
				return "", typed
			}
			return "", failure.SoftFailure(fmt.Errorf("unusable response: %w", err))
		}
	}
	return text, nil
}

func (e *Executor) record(o health.Outcome) {
	if e.recorder != nil {
		e.recorder.Record(o)
	}
}
