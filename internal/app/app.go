package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/coach"
	"github.com/spigell/interview-coach/internal/config"
	"github.com/spigell/interview-coach/internal/resilience/cache"
	"github.com/spigell/interview-coach/internal/resilience/executor"
	"github.com/spigell/interview-coach/internal/resilience/fallback"
	"github.com/spigell/interview-coach/internal/resilience/health"
	"github.com/spigell/interview-coach/internal/resilience/orchestrator"
	"github.com/spigell/interview-coach/internal/resilience/ratelimit"
)

const probePrompt = "Reply with the single word OK."

// App owns every long-lived component. Each App is independent, so tests may
// build as many as they need.
type App struct {
	logger    *zap.Logger
	generator ai.Generator

	monitor   *health.Monitor
	limiter   *ratelimit.Limiter
	cache     *cache.Cache
	executor  *executor.Executor
	fallbacks *fallback.Provider

	Orchestrator *orchestrator.Orchestrator
	Coach        *coach.Service
}

// AdminSnapshot is the operational view served to operators.
type AdminSnapshot struct {
	health.Snapshot
	Cache           cache.Stats          `json:"cache"`
	RateRemaining   map[ai.Operation]int `json:"rateLimitRemaining"`
	FallbackVersion string               `json:"fallbackVersion"`
	Model           string               `json:"model"`
}

// New wires the resilience layer around generator.
func New(cfg config.Resilience, generator ai.Generator, logger *zap.Logger) (*App, error) {
	if generator == nil {
		return nil, errors.New("an AI generator is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid resilience config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fallbacks, err := fallback.New()
	if err != nil {
		return nil, err
	}

	a := &App{
		logger:    logger,
		generator: generator,
		limiter:   ratelimit.New(cfg.RateLimit, cfg.RateWindow()),
		cache:     cache.New(cfg.CacheTTL(), cfg.CacheMaxEntries),
		fallbacks: fallbacks,
	}

	// The probe goes through the executor for its timeout and panic handling,
	// but the monitor records the result itself.
	healthCfg := cfg.Health()
	healthCfg.Name = generator.Model()
	a.monitor = health.New(healthCfg, health.ProberFunc(a.probe), logger)
	a.executor = executor.New(cfg.Executor(), a.cache, a.monitor, logger)
	a.Orchestrator = orchestrator.New(a.monitor, a.limiter, a.executor, a.fallbacks, logger)

	a.Coach, err = coach.New(generator, a.Orchestrator, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("resilience layer ready",
		zap.String("ai_model", generator.Model()),
		zap.String("fallback_version", fallbacks.Version()),
		zap.Int("rate_limit", cfg.RateLimit),
		zap.Duration("rate_window", cfg.RateWindow()),
		zap.Int("max_consecutive_failures", cfg.MaxConsecutiveFailures),
	)
	return a, nil
}

func (a *App) probe(ctx context.Context) error {
	_, err := a.executor.Probe(ctx, func(ctx context.Context) (string, error) {
		return a.generator.GenerateContent(ctx, probePrompt)
	})
	return err
}

// HealthSnapshot returns a read-only copy of the operational state.
func (a *App) HealthSnapshot() AdminSnapshot {
	remaining := make(map[ai.Operation]int, len(ai.Operations))
	for _, op := range ai.Operations {
		remaining[op] = a.limiter.Remaining(string(op))
	}

	return AdminSnapshot{
		Snapshot:        a.monitor.Snapshot(),
		Cache:           a.cache.Stats(),
		RateRemaining:   remaining,
		FallbackVersion: a.fallbacks.Version(),
		Model:           a.generator.Model(),
	}
}

// ResetHealthMonitor clears health counters and the degradation level.
func (a *App) ResetHealthMonitor() {
	a.monitor.Reset()
}

// ProbeNow runs one active probe immediately and records its outcome.
func (a *App) ProbeNow(ctx context.Context) {
	a.monitor.ProbeOnce(ctx)
}

// StartMonitoring starts active probing. Probing outlives ctx's cancellation
// and runs until StopMonitoring or Close.
func (a *App) StartMonitoring(ctx context.Context) error {
	return a.monitor.Start(context.WithoutCancel(ctx))
}

// StopMonitoring stops active probing. It is safe to call when not running.
func (a *App) StopMonitoring() {
	a.monitor.Stop()
}

// MonitoringActive reports whether active probing is running.
func (a *App) MonitoringActive() bool {
	return a.monitor.Running()
}

// Close releases background work.
func (a *App) Close() {
	a.StopMonitoring()
}
