package modelrelay

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"maps"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/modelrelay/modelrelay/internal/cache"
	"github.com/modelrelay/modelrelay/internal/config"
	"github.com/modelrelay/modelrelay/internal/metrics"
	"github.com/modelrelay/modelrelay/internal/observability"
	"github.com/modelrelay/modelrelay/internal/pricing"
	"github.com/modelrelay/modelrelay/internal/provider"
	"github.com/modelrelay/modelrelay/internal/provider/registry"
	"github.com/modelrelay/modelrelay/internal/ratelimit"
	"github.com/modelrelay/modelrelay/internal/retry"
	gwerrors "github.com/modelrelay/modelrelay/pkg/errors"
	"github.com/modelrelay/modelrelay/pkg/types"
)

// maxErrorBodyBytes caps how much of an upstream error body is read for
// diagnostics.
const maxErrorBodyBytes = 64 << 10

// Client is the main entry point. It executes requests through the full
// pipeline: resolve, cache, rate limit, dispatch with retries, cost.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	config     *ClientConfig
	resolver   *config.Resolver
	providers  map[string]provider.Provider
	cache      *cache.Manager
	limiter    *ratelimit.Limiter
	calculator *pricing.Calculator
	httpClient *http.Client
	logger     *observability.Logger

	mu sync.RWMutex
}

// New creates a client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	logger := &observability.Logger{Logger: cfg.Logger}

	c := &Client{
		config:    cfg,
		providers: make(map[string]provider.Provider),
		resolver:  config.NewResolver(cfg.Presets, cfg.Defaults),
		logger:    logger,
		calculator: pricing.NewCalculator(cfg.Pricing,
			pricing.WithCurrencyRate(cfg.CurrencyRate),
			pricing.WithPrecision(cfg.CostPrecision)),
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: cfg.Timeout,
		},
	}

	for _, pcfg := range cfg.Providers {
		prov, err := registry.New(pcfg)
		if err != nil {
			return nil, fmt.Errorf("add provider %s: %w", pcfg.Name, err)
		}
		c.providers[pcfg.Name] = prov
	}

	if cfg.CacheStore != nil {
		c.cache = cache.NewManager(cfg.CacheStore, cache.ManagerConfig{
			DefaultTTL: cfg.CacheTTL,
			KeyPrefix:  cfg.CachePrefix,
		}, cfg.Logger)
	}

	if cfg.CounterStore != nil && len(cfg.RateLimits) > 0 {
		c.limiter = ratelimit.NewLimiter(cfg.CounterStore, cfg.RateLimits, cfg.Logger)
	}

	return c, nil
}

// AddProvider registers or replaces a provider at runtime.
func (c *Client) AddProvider(pcfg ProviderConfig) error {
	prov, err := registry.New(pcfg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.providers[pcfg.Name] = prov
	c.mu.Unlock()
	return nil
}

// provider resolves an adapter: statically registered ones first, then
// the dynamic source. Source-backed adapters are rebuilt per call so a
// config reload (new key, new base URL) takes effect immediately.
func (c *Client) provider(name string) (provider.Provider, error) {
	c.mu.RLock()
	p, ok := c.providers[name]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	if c.config.ProviderSource != nil {
		pcfg, err := c.config.ProviderSource.Provider(name)
		if err != nil {
			return nil, err
		}
		return registry.New(*pcfg)
	}
	return nil, gwerrors.NewProviderConfigMissing(name)
}

// Complete executes one request through the pipeline. The returned
// response is never nil; on failure its Error field carries the message
// and the same error is returned alongside.
func (c *Client) Complete(ctx context.Context, spec *RequestSpec) (*NormalizedResponse, error) {
	start := time.Now()
	ctx, requestID := observability.GetOrCreateRequestID(ctx)
	log := c.logger.WithRequestID(ctx)

	if spec == nil || strings.TrimSpace(spec.Prompt) == "" {
		return c.fail(ctx, start, requestID, spec, "", "",
			gwerrors.NewInvalidRequest("prompt must not be empty"))
	}

	resolved, err := c.resolver.Resolve(spec)
	if err != nil {
		return c.fail(ctx, start, requestID, spec, spec.Provider, spec.Model, err)
	}
	log = log.WithFields("provider", resolved.Provider, "model", resolved.Model)

	// Cache read. Hits bypass rate limiting entirely.
	if c.cache != nil && !spec.NoCache && !spec.Stream {
		if entry := c.cache.Lookup(ctx, resolved, spec.CacheNamespace); entry != nil {
			if c.config.MetricsEnabled {
				metrics.CacheHits.WithLabelValues(resolved.Provider, resolved.Model).Inc()
			}
			resp := &NormalizedResponse{
				Content: entry.Content,
				Usage:   entry.Usage,
				Cost:    entry.Cost,
				// Callers own the response; never hand out the entry's map.
				Meta:           maps.Clone(entry.Meta),
				Cached:         true,
				ResponseTimeMs: time.Since(start).Milliseconds(),
				Provider:       resolved.Provider,
				Model:          resolved.Model,
			}
			c.finish(ctx, requestID, spec, resolved, resp)
			return resp, nil
		}
		if c.config.MetricsEnabled {
			metrics.CacheMisses.WithLabelValues(resolved.Provider, resolved.Model).Inc()
		}
	}

	// Admission control before any provider traffic.
	if c.limiter != nil {
		estimated := ratelimit.EstimateTokens(resolved.SystemPrompt + resolved.Prompt)
		decision := c.limiter.Check(ctx, resolved.Provider, resolved.Model, spec.CallerID, estimated)
		if !decision.Allowed {
			if c.config.MetricsEnabled {
				metrics.RateLimitDenials.WithLabelValues(
					resolved.Provider, resolved.Model, string(decision.Denied)).Inc()
			}
			log.Warn("request rate limited", "dimension", string(decision.Denied))
			return c.fail(ctx, start, requestID, spec, resolved.Provider, resolved.Model,
				gwerrors.NewRateLimitExceeded(resolved.Provider, resolved.Model, string(decision.Denied)))
		}
	}

	prov, err := c.provider(resolved.Provider)
	if err != nil {
		return c.fail(ctx, start, requestID, spec, resolved.Provider, resolved.Model, err)
	}

	var attempts int
	completion, err := retry.Do(ctx, c.config.Retry, resolved.Provider, resolved.Model,
		func(ctx context.Context) (*provider.Completion, error) {
			attempts++
			return c.executeOnce(ctx, prov, resolved)
		})
	if c.config.MetricsEnabled && attempts > 1 {
		metrics.RetryAttempts.WithLabelValues(resolved.Provider, resolved.Model).
			Add(float64(attempts - 1))
	}
	if err != nil {
		return c.fail(ctx, start, requestID, spec, resolved.Provider, resolved.Model, err)
	}

	cost := c.calculator.Cost(resolved.Model, completion.Usage)
	resp := &NormalizedResponse{
		Content:        completion.Content,
		Usage:          completion.Usage,
		Cost:           cost,
		Meta:           completion.Meta,
		ResponseTimeMs: time.Since(start).Milliseconds(),
		Provider:       resolved.Provider,
		Model:          resolved.Model,
	}

	if c.cache != nil && !spec.NoStore && !spec.Stream {
		c.cache.Store(ctx, resolved, &cache.Entry{
			Content: completion.Content,
			Usage:   completion.Usage,
			Cost:    cost,
			Meta:    completion.Meta,
		}, spec.CacheTTL, spec.CacheNamespace)
	}

	if c.limiter != nil {
		if err := c.limiter.Record(ctx, resolved.Provider, resolved.Model,
			spec.CallerID, int64(completion.Usage.TotalTokens)); err != nil {
			log.Warn("rate limit record failed", "error", err)
		}
	}

	c.finish(ctx, requestID, spec, resolved, resp)
	return resp, nil
}

// executeOnce performs a single provider round trip.
func (c *Client) executeOnce(ctx context.Context, prov provider.Provider, cfg *types.ResolvedConfig) (*provider.Completion, error) {
	if cancel := applyCallTimeout(&ctx, cfg.Options); cancel != nil {
		defer cancel()
	}

	req, err := prov.BuildRequest(ctx, cfg)
	if err != nil {
		return nil, gwerrors.NewInvalidRequest(fmt.Sprintf("build request: %v", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if (stderrors.As(err, &netErr) && netErr.Timeout()) || stderrors.Is(err, context.DeadlineExceeded) {
			return nil, gwerrors.NewTimeout(cfg.Provider, cfg.Model, err)
		}
		return nil, gwerrors.NewProviderRequestError(cfg.Provider, cfg.Model,
			http.StatusBadGateway, nil, fmt.Sprintf("transport: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, prov.MapError(resp.StatusCode, body)
	}
	return prov.ParseResponse(resp)
}

// applyCallTimeout honors a per-request "timeout" option, in seconds.
func applyCallTimeout(ctx *context.Context, options map[string]any) context.CancelFunc {
	raw, ok := options["timeout"]
	if !ok {
		return nil
	}
	var seconds float64
	switch v := raw.(type) {
	case int:
		seconds = float64(v)
	case int64:
		seconds = float64(v)
	case float64:
		seconds = v
	default:
		return nil
	}
	if seconds <= 0 {
		return nil
	}
	next, cancel := context.WithTimeout(*ctx, time.Duration(seconds*float64(time.Second)))
	*ctx = next
	return cancel
}

// fail builds the uniform failure response, emits the audit record, and
// returns the error unchanged.
func (c *Client) fail(ctx context.Context, start time.Time, requestID string, spec *RequestSpec, providerName, model string, err error) (*NormalizedResponse, error) {
	resp := &NormalizedResponse{
		Error:          err.Error(),
		ResponseTimeMs: time.Since(start).Milliseconds(),
		Provider:       providerName,
		Model:          model,
	}

	if c.config.MetricsEnabled {
		metrics.RequestsTotal.WithLabelValues(providerName, model, gwerrors.Kind(err)).Inc()
	}

	if c.config.RequestLogger != nil && spec != nil {
		c.config.RequestLogger.LogRequest(ctx, &RequestRecord{
			RequestID:  requestID,
			Preset:     spec.PresetName(),
			Provider:   providerName,
			Model:      model,
			CallerID:   spec.CallerID,
			DurationMs: resp.ResponseTimeMs,
			Error:      resp.Error,
		})
	}
	return resp, err
}

// finish emits metrics and the audit record for a successful call.
func (c *Client) finish(ctx context.Context, requestID string, spec *RequestSpec, resolved *types.ResolvedConfig, resp *NormalizedResponse) {
	if c.config.MetricsEnabled {
		metrics.RequestsTotal.WithLabelValues(resolved.Provider, resolved.Model, "ok").Inc()
		metrics.RequestLatency.WithLabelValues(resolved.Provider, resolved.Model).
			Observe(float64(resp.ResponseTimeMs) / 1000)
		if !resp.Cached {
			metrics.ObserveUsage(resolved.Provider, resolved.Model,
				resp.Usage.InputTokens, resp.Usage.OutputTokens)
			metrics.CostTotal.WithLabelValues(resolved.Provider, resolved.Model).Add(resp.Cost)
		}
	}

	if c.config.RequestLogger != nil {
		c.config.RequestLogger.LogRequest(ctx, &RequestRecord{
			RequestID:  requestID,
			Preset:     spec.PresetName(),
			Provider:   resolved.Provider,
			Model:      resolved.Model,
			CallerID:   spec.CallerID,
			Usage:      resp.Usage,
			Cost:       resp.Cost,
			Cached:     resp.Cached,
			DurationMs: resp.ResponseTimeMs,
		})
	}
}

// InvalidateCache removes cached responses by tag, for example
// "provider:openai" or "model:gpt-4o". An empty tag flushes everything.
func (c *Client) InvalidateCache(ctx context.Context, tag string) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Invalidate(ctx, tag)
}

// CacheStats returns hit/miss counters, or zeros when caching is off.
func (c *Client) CacheStats() cache.Stats {
	if c.cache == nil {
		return cache.Stats{}
	}
	return c.cache.Stats()
}

// Close releases the cache backend and idle HTTP connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}
