package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/metrics"
	"github.com/spigell/interview-coach/internal/resilience/failure"
)

// Level is the coarse backend health classification.
type Level string

const (
	LevelNone    Level = "none"
	LevelPartial Level = "partial"
	LevelSevere  Level = "severe"
)

const (
	defaultMaxConsecutiveFailures = 5
	defaultProbeInterval          = time.Minute
	defaultProbeTimeout           = 10 * time.Second
	defaultName                   = "default"
)

var (
	ErrAlreadyRunning = errors.New("health monitoring is already running")
	ErrNoProber       = errors.New("health monitor has no prober configured")
)

func (l Level) value() float64 {
	switch l {
	case LevelPartial:
		return 1
	case LevelSevere:
		return 2
	default:
		return 0
	}
}

// Outcome is the result of one executor call as seen by the monitor.
type Outcome struct {
	Success   bool
	Latency   time.Duration
	Category  failure.Category
	Err       error
	Timestamp time.Time
}

// LastError describes the most recent recorded failure.
type LastError struct {
	Category failure.Category `json:"category"`
	Message  string           `json:"message"`
	At       time.Time        `json:"at"`
}

// Snapshot is a read-only copy of the monitor state.
type Snapshot struct {
	TotalRequests         int64      `json:"totalRequests"`
	SuccessfulRequests    int64      `json:"successfulRequests"`
	FailedRequests        int64      `json:"failedRequests"`
	ConsecutiveFailures   int        `json:"consecutiveFailures"`
	AverageResponseTimeMs float64    `json:"averageResponseTimeMs"`
	LastError             *LastError `json:"lastError,omitempty"`
	DegradationLevel      Level      `json:"degradationLevel"`
	LastProbeAt           *time.Time `json:"lastProbeAt,omitempty"`
	Monitoring            bool       `json:"monitoring"`
}

// Prober issues one synthetic backend request.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// Config tunes the monitor.
type Config struct {
	// Name labels the degradation gauge of this monitor.
	Name string
	// MaxConsecutiveFailures is the streak length at which the level becomes severe.
	MaxConsecutiveFailures int
	ProbeInterval          time.Duration
	ProbeTimeout           time.Duration
}

// Monitor tracks backend outcomes and derives the degradation level.
//
// The level is severe when the consecutive failure streak reaches the
// threshold, partial when the streak is longer than one but below the
// threshold, none otherwise. Any success ends the streak.
type Monitor struct {
	mu                  sync.RWMutex
	total               int64
	successful          int64
	failed              int64
	consecutiveFailures int
	avgResponseMs       float64
	lastError           *LastError
	level               Level
	lastProbeAt         time.Time

	threshold     int
	probeInterval time.Duration
	probeTimeout  time.Duration
	prober        Prober
	degradation   prometheus.Gauge
	logger        *zap.Logger
	now           func() time.Time

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a monitor in the none state. prober may be nil when active
// probing is not wanted; Start then fails with ErrNoProber.
func New(cfg Config, prober Prober, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = defaultMaxConsecutiveFailures
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = defaultProbeInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.Name == "" {
		cfg.Name = defaultName
	}

	degradation := metrics.Degradation.WithLabelValues(cfg.Name)
	degradation.Set(LevelNone.value())

	return &Monitor{
		level:         LevelNone,
		threshold:     cfg.MaxConsecutiveFailures,
		probeInterval: cfg.ProbeInterval,
		probeTimeout:  cfg.ProbeTimeout,
		prober:        prober,
		degradation:   degradation,
		logger:        logger.Named("health"),
		now:           time.Now,
	}
}

// Record applies an executor outcome.
func (m *Monitor) Record(o Outcome) {
	if o.Success {
		m.RecordSuccess(o.Latency)
		return
	}
	m.RecordFailure(o.Category, o.Err)
}

// RecordSuccess ends the failure streak and folds latency into the running mean.
func (m *Monitor) RecordSuccess(latency time.Duration) {
	m.mu.Lock()
	m.total++
	m.successful++
	m.consecutiveFailures = 0
	ms := float64(latency) / float64(time.Millisecond)
	m.avgResponseMs += (ms - m.avgResponseMs) / float64(m.successful)
	prev := m.setLevelLocked()
	level := m.level
	m.mu.Unlock()

	m.logTransition(prev, level, 0)
}

// RecordFailure extends the failure streak and remembers err as the last error.
func (m *Monitor) RecordFailure(category failure.Category, err error) {
	if category == "" {
		category = failure.CategoryUnknown
	}

	msg := string(category)
	if err != nil {
		msg = err.Error()
	}

	m.mu.Lock()
	m.total++
	m.failed++
	m.consecutiveFailures++
	m.lastError = &LastError{Category: category, Message: msg, At: m.now()}
	prev := m.setLevelLocked()
	level := m.level
	streak := m.consecutiveFailures
	m.mu.Unlock()

	m.logTransition(prev, level, streak)
}

// setLevelLocked recomputes the level and returns the previous one.
func (m *Monitor) setLevelLocked() Level {
	prev := m.level
	switch {
	case m.consecutiveFailures >= m.threshold:
		m.level = LevelSevere
	case m.consecutiveFailures > 1:
		m.level = LevelPartial
	default:
		m.level = LevelNone
	}
	return prev
}

func (m *Monitor) logTransition(prev, next Level, streak int) {
	if prev == next {
		return
	}
	m.degradation.Set(next.value())

	fields := []zap.Field{
		zap.String("from", string(prev)),
		zap.String("degradation", string(next)),
		zap.Int("consecutive_failures", streak),
	}
	if next == LevelNone {
		m.logger.Info("backend recovered", fields...)
		return
	}
	m.logger.Warn("backend degradation changed", fields...)
}

// IsHealthyEnough reports whether live calls should be attempted.
func (m *Monitor) IsHealthyEnough() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level != LevelSevere
}

// Level returns the current degradation level.
func (m *Monitor) Level() Level {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level
}

// Snapshot returns a copy of the current state.
func (m *Monitor) Snapshot() Snapshot {
	running := m.Running()

	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Snapshot{
		TotalRequests:         m.total,
		SuccessfulRequests:    m.successful,
		FailedRequests:        m.failed,
		ConsecutiveFailures:   m.consecutiveFailures,
		AverageResponseTimeMs: m.avgResponseMs,
		DegradationLevel:      m.level,
		Monitoring:            running,
	}
	if m.lastError != nil {
		last := *m.lastError
		s.LastError = &last
	}
	if !m.lastProbeAt.IsZero() {
		probedAt := m.lastProbeAt
		s.LastProbeAt = &probedAt
	}
	return s
}

// Reset returns the monitor to its initial state. Probing is left as it was.
func (m *Monitor) Reset() {
	m.mu.Lock()
	prev := m.level
	m.total = 0
	m.successful = 0
	m.failed = 0
	m.consecutiveFailures = 0
	m.avgResponseMs = 0
	m.lastError = nil
	m.lastProbeAt = time.Time{}
	m.level = LevelNone
	m.mu.Unlock()

	m.logTransition(prev, LevelNone, 0)
	m.logger.Info("health monitor reset")
}

// Start launches periodic probing bound to ctx. It fails when probing is
// already running or no prober is configured.
func (m *Monitor) Start(ctx context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.prober == nil {
		return ErrNoProber
	}
	if m.cancel != nil {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	go m.loop(loopCtx, done)

	m.logger.Info("health monitoring started", zap.Duration("interval", m.probeInterval))
	return nil
}

// Stop cancels probing and waits for the loop to exit. It is safe to call
// when monitoring is not running.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.cancel == nil {
		return
	}

	m.cancel()
	<-m.done
	m.cancel = nil
	m.done = nil

	m.logger.Info("health monitoring stopped")
}

// Running reports whether periodic probing is active.
func (m *Monitor) Running() bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.cancel != nil
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ProbeOnce(ctx)
		}
	}
}

// ProbeOnce runs a single active probe and records its result. A probe
// abandoned because ctx was cancelled is not recorded.
func (m *Monitor) ProbeOnce(ctx context.Context) {
	if m.prober == nil {
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	start := m.now()
	err := m.safeProbe(probeCtx)
	latency := m.now().Sub(start)

	if ctx.Err() != nil {
		return
	}

	m.mu.Lock()
	m.lastProbeAt = start
	m.mu.Unlock()

	if err != nil {
		verdict := failure.Classify(err)
		metrics.Probes.WithLabelValues("failure").Inc()
		m.logger.Warn("health probe failed",
			zap.String("error_category", string(verdict.Category)),
			zap.Error(err),
		)
		m.RecordFailure(verdict.Category, err)
		return
	}

	metrics.Probes.WithLabelValues("success").Inc()
	m.logger.Debug("health probe succeeded", zap.Duration("latency", latency))
	m.RecordSuccess(latency)
}

func (m *Monitor) safeProbe(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = failure.Wrap(failure.CategoryUnknown, fmt.Errorf("probe panicked: %v", r))
		}
	}()
	return m.prober.Probe(ctx)
}
