package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/spigell/interview-coach/internal/resilience/executor"
	"github.com/spigell/interview-coach/internal/resilience/health"
)

type Config struct {
	Debug      bool       `mapstructure:"debug"`
	JSON       bool       `mapstructure:"json"`
	Resilience Resilience `mapstructure:"resilience"`
	AI         AI         `mapstructure:"ai"`
	Server     Server     `mapstructure:"server"`
}

type AI struct {
	Provider string `mapstructure:"provider"`
	Gemini   Gemini `mapstructure:"gemini"`
}

type Gemini struct {
	APIKey       string  `mapstructure:"api-key"`
	APIKeyFile   string  `mapstructure:"api-key-file"`
	Model        string  `mapstructure:"model"`
	Temperature  float32 `mapstructure:"temperature"`
	MaxLogLength int     `mapstructure:"max-log-length"`
}

type Server struct {
	Addr string `mapstructure:"addr"`
}

// Resilience holds the tunables of the resilience layer. The defaults are
// starting points, not measured limits.
type Resilience struct {
	RequestTimeoutMs       int `mapstructure:"request-timeout-ms"`
	MaxRetries             int `mapstructure:"max-retries"`
	BaseDelayMs            int `mapstructure:"base-delay-ms"`
	MaxDelayMs             int `mapstructure:"max-delay-ms"`
	MaxJitterMs            int `mapstructure:"max-jitter-ms"`
	RateLimit              int `mapstructure:"rate-limit"`
	RateWindowS            int `mapstructure:"rate-window-s"`
	CacheTTLS              int `mapstructure:"cache-ttl-s"`
	CacheMaxEntries        int `mapstructure:"cache-max-entries"`
	MaxConsecutiveFailures int `mapstructure:"max-consecutive-failures"`
	ProbeIntervalS         int `mapstructure:"probe-interval-s"`
}

type binding struct {
	key   string
	env   string
	value any
}

var bindings = []binding{
	{"resilience.request-timeout-ms", "AI_REQUEST_TIMEOUT_MS", 30000},
	{"resilience.max-retries", "AI_MAX_RETRIES", 3},
	{"resilience.base-delay-ms", "AI_BASE_DELAY_MS", 1000},
	{"resilience.max-delay-ms", "AI_MAX_DELAY_MS", 10000},
	{"resilience.max-jitter-ms", "AI_MAX_JITTER_MS", 1000},
	{"resilience.rate-limit", "AI_RATE_LIMIT", 100},
	{"resilience.rate-window-s", "AI_RATE_WINDOW_S", 60},
	{"resilience.cache-ttl-s", "AI_CACHE_TTL_S", 3600},
	{"resilience.cache-max-entries", "AI_CACHE_MAX_ENTRIES", 1000},
	{"resilience.max-consecutive-failures", "AI_MAX_CONSECUTIVE_FAILURES", 5},
	{"resilience.probe-interval-s", "AI_PROBE_INTERVAL_S", 60},
	{"ai.provider", "AI_PROVIDER", "gemini"},
	{"ai.gemini.api-key", "GEMINI_API_KEY", ""},
	{"ai.gemini.api-key-file", "GEMINI_API_KEY_FILE", ""},
	{"ai.gemini.model", "GEMINI_MODEL", "gemini-2.5-flash"},
	{"ai.gemini.temperature", "GEMINI_TEMPERATURE", 0},
	{"ai.gemini.max-log-length", "GEMINI_MAX_LOG_LENGTH", 200},
	{"server.addr", "COACH_SERVER_ADDR", ":8080"},
}

// Bind registers defaults and environment variables on v.
func Bind(v *viper.Viper) error {
	for _, b := range bindings {
		v.SetDefault(b.key, b.value)
		if err := v.BindEnv(b.key, b.env); err != nil {
			return fmt.Errorf("binding %s environment variable: %w", b.env, err)
		}
	}
	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Resilience.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultResilience returns the built-in resilience settings.
func DefaultResilience() Resilience {
	return Resilience{
		RequestTimeoutMs:       30000,
		MaxRetries:             3,
		BaseDelayMs:            1000,
		MaxDelayMs:             10000,
		MaxJitterMs:            1000,
		RateLimit:              100,
		RateWindowS:            60,
		CacheTTLS:              3600,
		CacheMaxEntries:        1000,
		MaxConsecutiveFailures: 5,
		ProbeIntervalS:         60,
	}
}

// Validate rejects settings the resilience layer cannot run with.
func (r Resilience) Validate() error {
	var errs []error
	positive := []struct {
		name  string
		value int
	}{
		{"request-timeout-ms", r.RequestTimeoutMs},
		{"base-delay-ms", r.BaseDelayMs},
		{"max-delay-ms", r.MaxDelayMs},
		{"rate-limit", r.RateLimit},
		{"rate-window-s", r.RateWindowS},
		{"cache-ttl-s", r.CacheTTLS},
		{"max-consecutive-failures", r.MaxConsecutiveFailures},
		{"probe-interval-s", r.ProbeIntervalS},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("resilience.%s must be positive, got %d", p.name, p.value))
		}
	}

	if r.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("resilience.max-retries must not be negative, got %d", r.MaxRetries))
	}
	if r.MaxJitterMs < 0 {
		errs = append(errs, fmt.Errorf("resilience.max-jitter-ms must not be negative, got %d", r.MaxJitterMs))
	}
	if r.CacheMaxEntries < 0 {
		errs = append(errs, fmt.Errorf("resilience.cache-max-entries must not be negative, got %d", r.CacheMaxEntries))
	}
	if r.MaxDelayMs > 0 && r.MaxDelayMs < r.BaseDelayMs {
		errs = append(errs, fmt.Errorf("resilience.max-delay-ms (%d) must not be below base-delay-ms (%d)", r.MaxDelayMs, r.BaseDelayMs))
	}

	return errors.Join(errs...)
}

func (r Resilience) Executor() executor.Config {
	return executor.Config{
		Timeout:    millis(r.RequestTimeoutMs),
		MaxRetries: r.MaxRetries,
		BaseDelay:  millis(r.BaseDelayMs),
		MaxDelay:   millis(r.MaxDelayMs),
		MaxJitter:  millis(r.MaxJitterMs),
	}
}

func (r Resilience) Health() health.Config {
	return health.Config{
		MaxConsecutiveFailures: r.MaxConsecutiveFailures,
		ProbeInterval:          seconds(r.ProbeIntervalS),
		ProbeTimeout:           millis(r.RequestTimeoutMs),
	}
}

func (r Resilience) RateWindow() time.Duration { return seconds(r.RateWindowS) }

func (r Resilience) CacheTTL() time.Duration { return seconds(r.CacheTTLS) }

func millis(n int) time.Duration  { return time.Duration(n) * time.Millisecond }
func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
