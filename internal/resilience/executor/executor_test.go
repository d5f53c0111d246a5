package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/interview-coach/internal/resilience/cache"
	"github.com/spigell/interview-coach/internal/resilience/failure"
	"github.com/spigell/interview-coach/internal/resilience/health"
)

type recorder struct {
	mu       sync.Mutex
	outcomes []health.Outcome
}

func (r *recorder) Record(o health.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recorder) all() []health.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]health.Outcome(nil), r.outcomes...)
}

type scriptedCall struct {
	mu      sync.Mutex
	calls   int
	results []callResult
}

func (s *scriptedCall) call(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	s.calls++
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	return s.results[idx].text, s.results[idx].err
}

func (s *scriptedCall) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestExecutor(cfg Config, c *cache.Cache, rec Recorder) (*Executor, *[]time.Duration) {
	e := New(cfg, c, rec, nil)
	delays := &[]time.Duration{}
	var mu sync.Mutex
	e.wait = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		*delays = append(*delays, d)
		return nil
	}
	return e, delays
}

var testConfig = Config{
	Timeout:    time.Second,
	MaxRetries: 3,
	BaseDelay:  100 * time.Millisecond,
	MaxDelay:   2 * time.Second,
	MaxJitter:  50 * time.Millisecond,
}

func TestExecuteRetriesTransientErrors(t *testing.T) {
	serverErr := errors.New("Error 503, Status: UNAVAILABLE")
	script := &scriptedCall{results: []callResult{{err: serverErr}, {err: serverErr}, {text: "ok"}}}
	rec := &recorder{}
	e, delays := newTestExecutor(testConfig, nil, rec)

	text, err := e.Execute(context.Background(), Request{Operation: "content_generation", Call: script.call})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, script.count())
	assert.Len(t, *delays, 2)

	outcomes := rec.all()
	require.Len(t, outcomes, 1, "exactly one outcome per execution")
	assert.True(t, outcomes[0].Success)
}

func TestExecuteStopsAfterMaxRetries(t *testing.T) {
	script := &scriptedCall{results: []callResult{{err: errors.New("connection refused")}}}
	rec := &recorder{}
	e, delays := newTestExecutor(testConfig, nil, rec)

	_, err := e.Execute(context.Background(), Request{Operation: "resume_analysis", Call: script.call})
	require.Error(t, err)

	var typed *failure.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, failure.CategoryNetwork, typed.Category)
	assert.Equal(t, testConfig.MaxRetries+1, script.count())
	assert.Len(t, *delays, testConfig.MaxRetries)

	outcomes := rec.all()
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Success)
	assert.Equal(t, failure.CategoryNetwork, outcomes[0].Category)
}

func TestExecuteReportsLastErrorCategory(t *testing.T) {
	script := &scriptedCall{results: []callResult{
		{err: errors.New("connection refused")},
		{err: errors.New("rate limit exceeded")},
	}}
	rec := &recorder{}
	e, _ := newTestExecutor(Config{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Second}, nil, rec)

	_, err := e.Execute(context.Background(), Request{Operation: "op", Call: script.call})
	require.Error(t, err)
	require.Len(t, rec.all(), 1)
	assert.Equal(t, failure.CategoryRateLimited, rec.all()[0].Category)
}

func TestExecuteDoesNotRetryPermanentErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category failure.Category
	}{
		{"safety tag", failure.New(failure.CategorySafetyBlocked, "finish reason SAFETY"), failure.CategorySafetyBlocked},
		{"auth", errors.New("API key not valid"), failure.CategoryAuthFailed},
		{"invalid input", errors.New("Request contains an invalid argument"), failure.CategoryInvalidInput},
		{"unknown", errors.New("mysterious"), failure.CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := &scriptedCall{results: []callResult{{err: tt.err}, {text: "never"}}}
			e, delays := newTestExecutor(testConfig, nil, nil)

			_, err := e.Execute(context.Background(), Request{Operation: "op", Call: script.call})
			require.Error(t, err)
			assert.Equal(t, 1, script.count())
			assert.Empty(t, *delays)

			var typed *failure.Error
			require.ErrorAs(t, err, &typed)
			assert.Equal(t, tt.category, typed.Category)
		})
	}
}

func TestBackoffBounds(t *testing.T) {
	e := New(testConfig, nil, nil, nil)

	for attempt := 0; attempt < 8; attempt++ {
		base := testConfig.BaseDelay << attempt
		for i := 0; i < 50; i++ {
			d := e.Backoff(attempt)
			lower := min(base, testConfig.MaxDelay)
			upper := min(base+testConfig.MaxJitter, testConfig.MaxDelay)
			require.GreaterOrEqual(t, d, lower, "attempt %d", attempt)
			require.LessOrEqual(t, d, upper, "attempt %d", attempt)
		}
	}

	assert.Equal(t, testConfig.MaxDelay, e.Backoff(64))
}

func TestExecuteDelaysFollowBackoff(t *testing.T) {
	script := &scriptedCall{results: []callResult{{err: errors.New("timed out")}}}
	e, delays := newTestExecutor(testConfig, nil, nil)
	e.jitter = func(time.Duration) time.Duration { return 10 * time.Millisecond }

	_, err := e.Execute(context.Background(), Request{Operation: "op", Call: script.call})
	require.Error(t, err)

	assert.Equal(t, []time.Duration{
		110 * time.Millisecond,
		210 * time.Millisecond,
		410 * time.Millisecond,
	}, *delays)
}

func TestExecuteTimesOutSlowCalls(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	var calls atomic.Int32
	slow := func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "late", nil
	}

	rec := &recorder{}
	e, _ := newTestExecutor(Config{Timeout: 10 * time.Millisecond, MaxRetries: 1, BaseDelay: time.Millisecond}, nil, rec)

	_, err := e.Execute(context.Background(), Request{Operation: "op", Call: slow})
	require.Error(t, err)

	var typed *failure.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, failure.CategoryTimeout, typed.Category)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, failure.CategoryTimeout, rec.all()[0].Category)
}

func TestExecuteAbandonsRetriesOnCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	script := &scriptedCall{results: []callResult{{err: errors.New("connection refused")}}}
	rec := &recorder{}

	e := New(Config{Timeout: time.Second, MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}, nil, rec, nil)

	done := make(chan error, 1)
	go func() {
		_, err := e.Execute(ctx, Request{Operation: "op", Call: script.call})
		done <- err
	}()

	require.Eventually(t, func() bool { return script.count() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("executor kept waiting after cancellation")
	}
	assert.Equal(t, 1, script.count())
	assert.Empty(t, rec.all(), "abandoned calls do not count against backend health")
}

func TestExecuteSoftFailureRetriedOnce(t *testing.T) {
	script := &scriptedCall{results: []callResult{{text: "  "}, {text: ""}, {text: "never reached"}}}
	e, delays := newTestExecutor(testConfig, nil, nil)

	_, err := e.Execute(context.Background(), Request{Operation: "op", Call: script.call})
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrEmptyResponse)
	assert.Equal(t, 2, script.count())
	assert.Len(t, *delays, 1)
}

func TestExecuteValidateRejectsResponse(t *testing.T) {
	script := &scriptedCall{results: []callResult{{text: "not json"}, {text: `{"ok":true}`}}}
	e, _ := newTestExecutor(testConfig, nil, nil)

	validate := func(text string) error {
		if text[0] != '{' {
			return errors.New("not an object")
		}
		return nil
	}

	text, err := e.Execute(context.Background(), Request{Operation: "op", Call: script.call, Validate: validate})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)
	assert.Equal(t, 2, script.count())
}

func TestExecuteStopsOnLongRetryHint(t *testing.T) {
	quota := failure.New(failure.CategoryQuotaExceeded, "quota exhausted")
	quota.RetryAfter = time.Minute
	script := &scriptedCall{results: []callResult{{err: quota}}}
	e, delays := newTestExecutor(testConfig, nil, nil)

	_, err := e.Execute(context.Background(), Request{Operation: "op", Call: script.call})
	require.Error(t, err)
	assert.Equal(t, 1, script.count())
	assert.Empty(t, *delays)
}

func TestExecuteUsesCache(t *testing.T) {
	c := cache.New(time.Hour, 10)
	script := &scriptedCall{results: []callResult{{text: "fresh"}}}
	rec := &recorder{}
	e, _ := newTestExecutor(testConfig, c, rec)

	req := Request{Operation: "content_generation", Prompt: "explain goroutines", Call: script.call, Cacheable: true}

	first, err := e.Execute(context.Background(), req)
	require.NoError(t, err)
	second, err := e.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, script.count())
	assert.Len(t, rec.all(), 1, "cache hits do not reach the backend")

	req.Cacheable = false
	_, err = e.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, script.count())
}

func TestExecuteDoesNotCacheFailures(t *testing.T) {
	c := cache.New(time.Hour, 10)
	script := &scriptedCall{results: []callResult{{err: errors.New("malformed request")}}}
	e, _ := newTestExecutor(testConfig, c, nil)

	_, err := e.Execute(context.Background(), Request{Operation: "op", Prompt: "p", Call: script.call, Cacheable: true})
	require.Error(t, err)
	assert.Zero(t, c.Len())
}

func TestExecuteRecoversPanickingCall(t *testing.T) {
	e, _ := newTestExecutor(testConfig, nil, nil)

	_, err := e.Execute(context.Background(), Request{Operation: "op", Call: func(context.Context) (string, error) {
		panic("nil map")
	}})

	var typed *failure.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, failure.CategoryUnknown, typed.Category)
}

func TestExecuteRequestOverrides(t *testing.T) {
	script := &scriptedCall{results: []callResult{{err: errors.New("connection reset")}}}
	e, _ := newTestExecutor(testConfig, nil, nil)

	_, err := e.Execute(context.Background(), Request{Operation: "op", Call: script.call, MaxRetries: Retries(1)})
	require.Error(t, err)
	assert.Equal(t, 2, script.count())
}

func TestExecuteZeroRetriesOverride(t *testing.T) {
	script := &scriptedCall{results: []callResult{{err: errors.New("connection reset")}}}
	rec := &recorder{}
	e, delays := newTestExecutor(testConfig, nil, rec)

	_, err := e.Execute(context.Background(), Request{Operation: "op", Call: script.call, MaxRetries: Retries(0)})
	require.Error(t, err)
	assert.Equal(t, 1, script.count(), "a single attempt despite the default of three retries")
	assert.Empty(t, *delays)
	assert.Len(t, rec.all(), 1)
}

func TestProbeSingleAttemptWithoutRecording(t *testing.T) {
	rec := &recorder{}
	e, _ := newTestExecutor(testConfig, cache.New(time.Hour, 10), rec)

	var calls atomic.Int32
	_, err := e.Probe(context.Background(), func(context.Context) (string, error) {
		calls.Add(1)
		return "", errors.New("Error 500, Status: INTERNAL")
	})

	var typed *failure.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, failure.CategoryServerError, typed.Category)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, rec.all())

	text, err := e.Probe(context.Background(), func(context.Context) (string, error) { return "OK", nil })
	require.NoError(t, err)
	assert.Equal(t, "OK", text)
}

func TestExecuteRequiresCall(t *testing.T) {
	e := New(testConfig, nil, nil, nil)
	_, err := e.Execute(context.Background(), Request{Operation: "op"})
	require.Error(t, err)
}
