package modelrelay

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelrelay/modelrelay/internal/cache"
	"github.com/modelrelay/modelrelay/internal/config"
	"github.com/modelrelay/modelrelay/internal/pricing"
	"github.com/modelrelay/modelrelay/internal/ratelimit"
	"github.com/modelrelay/modelrelay/internal/retry"
	"github.com/modelrelay/modelrelay/pkg/types"
)

// RequestRecord is the per-call audit record handed to a RequestLogger
// after every pipeline invocation, successful or not.
type RequestRecord struct {
	RequestID  string      `json:"request_id"`
	Preset     string      `json:"preset"`
	Provider   string      `json:"provider"`
	Model      string      `json:"model"`
	CallerID   string      `json:"caller_id,omitempty"`
	Usage      types.Usage `json:"usage"`
	Cost       float64     `json:"cost"`
	Cached     bool        `json:"cached"`
	DurationMs int64       `json:"duration_ms"`
	Error      string      `json:"error,omitempty"`
}

// RequestLogger receives one record per completed call. Implementations
// must be safe for concurrent use and should not block.
type RequestLogger interface {
	LogRequest(ctx context.Context, rec *RequestRecord)
}

// ClientConfig holds all configuration for the pipeline client.
type ClientConfig struct {
	// Providers configuration
	Providers []ProviderConfig

	// ProviderSource resolves provider configs not registered statically.
	// Lookups go through it on every call, so a reloading source changes
	// dispatch without rebuilding the client.
	ProviderSource config.ProviderSource

	// Presets and resolution
	Presets  config.PresetSource
	Defaults map[string]any

	// Caching
	CacheStore  cache.Store
	CacheTTL    time.Duration
	CachePrefix string

	// Rate limiting
	CounterStore ratelimit.CounterStore
	RateLimits   []ratelimit.Rule

	// Pricing
	Pricing       pricing.Table
	CurrencyRate  float64
	CostPrecision int

	// Retry
	Retry retry.Policy

	// HTTP
	Timeout time.Duration

	// Batch fan-out
	BatchConcurrency int
	BatchRPS         float64
	BatchBurst       int

	// Logging
	Logger        *slog.Logger
	RequestLogger RequestLogger

	// MetricsEnabled controls Prometheus counter updates.
	MetricsEnabled bool
}

// Option is a function that configures the Client.
type Option func(*ClientConfig)

// defaultConfig returns sensible defaults.
func defaultConfig() *ClientConfig {
	return &ClientConfig{
		CacheTTL:         time.Hour,
		CachePrefix:      "modelrelay",
		Retry:            retry.DefaultPolicy(),
		Timeout:          30 * time.Second,
		BatchConcurrency: 4,
		CurrencyRate:     1.0,
		CostPrecision:    6,
		Logger:           slog.Default(),
		MetricsEnabled:   true,
	}
}

// WithProvider adds a provider configuration. The adapter is selected by
// the Type field, falling back to Name.
func WithProvider(cfg ProviderConfig) Option {
	return func(c *ClientConfig) {
		c.Providers = append(c.Providers, cfg)
	}
}

// WithPreset registers a named preset. Presets added this way are merged
// into a static source; use WithPresetSource for dynamic backends.
func WithPreset(name string, preset Preset) Option {
	return func(c *ClientConfig) {
		static, ok := c.Presets.(config.StaticPresets)
		if !ok || static == nil {
			static = config.StaticPresets{}
			c.Presets = static
		}
		static[name] = preset
	}
}

// WithPresetSource sets the preset repository. It overrides any presets
// registered via WithPreset.
func WithPresetSource(src config.PresetSource) Option {
	return func(c *ClientConfig) {
		c.Presets = src
	}
}

// WithDefaults sets the lowest-precedence option layer applied to every
// request.
func WithDefaults(defaults map[string]any) Option {
	return func(c *ClientConfig) {
		c.Defaults = defaults
	}
}

// WithCache enables response caching on the given store.
func WithCache(store cache.Store) Option {
	return func(c *ClientConfig) {
		c.CacheStore = store
	}
}

// WithCacheTTL sets the default TTL for cached responses.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *ClientConfig) {
		c.CacheTTL = ttl
	}
}

// WithCachePrefix sets the key prefix for cache entries. Useful when
// several applications share one Redis.
func WithCachePrefix(prefix string) Option {
	return func(c *ClientConfig) {
		c.CachePrefix = prefix
	}
}

// WithRateLimits enables admission control with the given rules, counted
// on the given store.
func WithRateLimits(store ratelimit.CounterStore, rules ...ratelimit.Rule) Option {
	return func(c *ClientConfig) {
		c.CounterStore = store
		c.RateLimits = append(c.RateLimits, rules...)
	}
}

// WithPricing sets the model pricing table. A nil table uses the built-in
// defaults.
func WithPricing(table pricing.Table) Option {
	return func(c *ClientConfig) {
		c.Pricing = table
	}
}

// WithCurrency sets the USD exchange rate and rounding precision for
// reported costs.
func WithCurrency(rate float64, precision int) Option {
	return func(c *ClientConfig) {
		c.CurrencyRate = rate
		c.CostPrecision = precision
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *ClientConfig) {
		c.Retry = p
	}
}

// WithTimeout sets the HTTP client timeout for provider calls.
func WithTimeout(d time.Duration) Option {
	return func(c *ClientConfig) {
		c.Timeout = d
	}
}

// WithBatchConcurrency sets the worker count for CompleteBatch.
func WithBatchConcurrency(n int) Option {
	return func(c *ClientConfig) {
		if n > 0 {
			c.BatchConcurrency = n
		}
	}
}

// WithBatchPacing rate-limits batch dispatch to rps requests per second
// with the given burst. Zero disables pacing.
func WithBatchPacing(rps float64, burst int) Option {
	return func(c *ClientConfig) {
		c.BatchRPS = rps
		c.BatchBurst = burst
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ClientConfig) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithRequestLogger sets the per-call audit sink.
func WithRequestLogger(rl RequestLogger) Option {
	return func(c *ClientConfig) {
		c.RequestLogger = rl
	}
}

// WithMetrics toggles Prometheus counter updates.
func WithMetrics(enabled bool) Option {
	return func(c *ClientConfig) {
		c.MetricsEnabled = enabled
	}
}

// WithProviderSource sets a dynamic provider config source consulted
// when a resolved provider has no statically registered adapter.
func WithProviderSource(src config.ProviderSource) Option {
	return func(c *ClientConfig) {
		c.ProviderSource = src
	}
}

// WithConfigFile wires presets, providers, rate limits, pricing, retry,
// and cost settings from a loaded configuration manager. The manager is
// used live as both preset and provider source, so a reload changes
// resolution and dispatch without rebuilding the client.
func WithConfigFile(m *config.Manager) Option {
	return func(c *ClientConfig) {
		f := m.Get()
		c.Presets = m
		c.ProviderSource = m
		c.Defaults = f.Defaults
		c.RateLimits = append(c.RateLimits, f.RateLimits...)
		if len(f.Pricing) > 0 {
			c.Pricing = f.Pricing
		}
		if f.Cost.CurrencyRate > 0 {
			c.CurrencyRate = f.Cost.CurrencyRate
		}
		if f.Cost.Precision > 0 {
			c.CostPrecision = f.Cost.Precision
		}
		if f.Retry.MaxAttempts > 0 {
			c.Retry = f.Retry
			if len(c.Retry.RetryOn) == 0 {
				c.Retry.RetryOn = retry.DefaultPolicy().RetryOn
			}
		}
		if f.CacheTTL > 0 {
			c.CacheTTL = f.CacheTTL
		}
	}
}
