package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Dimension identifies one limited axis.
type Dimension string

const (
	DimRequestsPerMinute Dimension = "requests_minute"
	DimTokensPerMinute   Dimension = "tokens_minute"
	DimRequestsPerDay    Dimension = "requests_day"
)

// Window TTLs give counters comfortable slack beyond the window itself;
// rollover is driven by the window id in the key, not by expiry.
const (
	minuteCounterTTL = 2 * time.Minute
	dayCounterTTL    = 48 * time.Hour
)

// Rule defines limits for a scope. A rule with Model set is the most
// specific; Provider-only next; a rule with neither is the default.
// A value of 0 leaves that dimension to the next less specific rule, and
// ultimately unenforced.
type Rule struct {
	Provider          string `yaml:"provider,omitempty" json:"provider,omitempty"`
	Model             string `yaml:"model,omitempty" json:"model,omitempty"`
	RequestsPerMinute int64  `yaml:"requests_per_minute,omitempty" json:"requests_per_minute,omitempty"`
	TokensPerMinute   int64  `yaml:"tokens_per_minute,omitempty" json:"tokens_per_minute,omitempty"`
	RequestsPerDay    int64  `yaml:"requests_per_day,omitempty" json:"requests_per_day,omitempty"`
}

func (r Rule) limit(dim Dimension) int64 {
	switch dim {
	case DimRequestsPerMinute:
		return r.RequestsPerMinute
	case DimTokensPerMinute:
		return r.TokensPerMinute
	case DimRequestsPerDay:
		return r.RequestsPerDay
	}
	return 0
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool `json:"allowed"`

	// Denied names the first dimension over limit when Allowed is false.
	Denied Dimension `json:"denied,omitempty"`

	// Remaining holds per-dimension headroom for every enforced
	// dimension, before this request is recorded.
	Remaining map[Dimension]int64 `json:"remaining,omitempty"`
}

// Limiter performs fixed-window admission control. Check reads current
// counts without incrementing; Record increments after a successful
// dispatch.
type Limiter struct {
	store  CounterStore
	rules  []Rule
	logger *slog.Logger
	now    func() time.Time
}

// NewLimiter creates a limiter over the given counter store and rules.
func NewLimiter(store CounterStore, rules []Rule, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		store:  store,
		rules:  rules,
		logger: logger,
		now:    time.Now,
	}
}

var dimensions = []Dimension{DimRequestsPerMinute, DimTokensPerMinute, DimRequestsPerDay}

// Check reports whether a request may proceed. estimatedTokens is the
// pre-dispatch token estimate; the true count is unknown until the
// provider answers. Counter store errors fail open for the affected
// dimension so a degraded store never blocks all traffic.
func (l *Limiter) Check(ctx context.Context, provider, model, callerID string, estimatedTokens int64) *Decision {
	decision := &Decision{Allowed: true, Remaining: make(map[Dimension]int64)}
	if l.store == nil {
		return decision
	}

	for _, dim := range dimensions {
		limit := l.resolveLimit(provider, model, dim)
		if limit <= 0 {
			continue
		}

		count, err := l.store.Get(ctx, l.counterKey(provider, model, callerID, dim))
		if err != nil {
			l.logger.Warn("rate limit check failed, allowing",
				"dimension", string(dim), "error", err)
			continue
		}

		needed := int64(1)
		if dim == DimTokensPerMinute {
			needed = estimatedTokens
		}

		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		decision.Remaining[dim] = remaining

		if count+needed > limit && decision.Allowed {
			decision.Allowed = false
			decision.Denied = dim
		}
	}

	return decision
}

// Record counts a successfully dispatched request with its actual token
// usage. Increments use the store's atomic increment-or-initialize so
// concurrent callers never lose updates.
func (l *Limiter) Record(ctx context.Context, provider, model, callerID string, actualTokens int64) error {
	if l.store == nil {
		return nil
	}

	for _, dim := range dimensions {
		if l.resolveLimit(provider, model, dim) <= 0 {
			continue
		}

		n := int64(1)
		ttl := minuteCounterTTL
		switch dim {
		case DimTokensPerMinute:
			n = actualTokens
		case DimRequestsPerDay:
			ttl = dayCounterTTL
		}
		if n <= 0 {
			continue
		}

		if _, err := l.store.Incr(ctx, l.counterKey(provider, model, callerID, dim), n, ttl); err != nil {
			return fmt.Errorf("record %s: %w", dim, err)
		}
	}
	return nil
}

// resolveLimit finds the limit for one dimension, most specific rule
// first: model > provider > default.
func (l *Limiter) resolveLimit(provider, model string, dim Dimension) int64 {
	var providerLevel, defaultLevel int64
	for _, r := range l.rules {
		switch {
		case r.Model != "":
			if r.Model == model && (r.Provider == "" || r.Provider == provider) {
				if v := r.limit(dim); v > 0 {
					return v
				}
			}
		case r.Provider != "":
			if r.Provider == provider && providerLevel == 0 {
				providerLevel = r.limit(dim)
			}
		default:
			if defaultLevel == 0 {
				defaultLevel = r.limit(dim)
			}
		}
	}
	if providerLevel > 0 {
		return providerLevel
	}
	return defaultLevel
}

// counterKey buckets counters by fixed window: floor(now/60s) for minute
// dimensions, the UTC calendar date for daily ones. Rollover is lazy; a
// new window simply addresses a fresh key.
func (l *Limiter) counterKey(provider, model, callerID string, dim Dimension) string {
	if callerID == "" {
		callerID = "anon"
	}
	var window string
	if dim == DimRequestsPerDay {
		window = l.now().UTC().Format("2006-01-02")
	} else {
		window = fmt.Sprintf("%d", l.now().Unix()/60)
	}
	return fmt.Sprintf("rl:%s:%s:%s:%s:%s", provider, model, callerID, dim, window)
}

// EstimateTokens is the pre-dispatch token heuristic: one token per four
// characters of prompt, minimum one.
func EstimateTokens(text string) int64 {
	n := int64(len(text) / 4)
	if n < 1 {
		n = 1
	}
	return n
}
