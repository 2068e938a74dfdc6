// Package pricing turns token usage into monetary cost. Pricing is
// resolved from a model table with wildcard support; unknown models cost 0
// so an unpriced model never fails a request.
package pricing

import (
	"math"
	"strings"

	"github.com/modelrelay/modelrelay/pkg/types"
)

// Entry defines per-model pricing. Text rates are USD per 1M tokens.
// Image models use a quality -> size -> per-image price table instead.
type Entry struct {
	InputPerMTok       float64 `yaml:"input" json:"input"`
	OutputPerMTok      float64 `yaml:"output" json:"output"`
	CachedInputPerMTok float64 `yaml:"cached_input,omitempty" json:"cached_input,omitempty"`
	ReasoningPerMTok   float64 `yaml:"reasoning,omitempty" json:"reasoning,omitempty"`

	Image map[string]map[string]float64 `yaml:"image,omitempty" json:"image,omitempty"`
}

// Table maps model names to pricing entries. Keys ending in "*" match by
// prefix; the longest matching prefix wins.
type Table map[string]Entry

// DefaultTable contains pricing for common models, USD per 1M tokens.
var DefaultTable = Table{
	"gpt-4o":        {InputPerMTok: 2.50, OutputPerMTok: 10.00, CachedInputPerMTok: 1.25},
	"gpt-4o-mini":   {InputPerMTok: 0.15, OutputPerMTok: 0.60, CachedInputPerMTok: 0.075},
	"gpt-4.1*":      {InputPerMTok: 2.00, OutputPerMTok: 8.00, CachedInputPerMTok: 0.50},
	"o1*":           {InputPerMTok: 15.00, OutputPerMTok: 60.00, ReasoningPerMTok: 60.00},
	"o3-mini*":      {InputPerMTok: 1.10, OutputPerMTok: 4.40, ReasoningPerMTok: 4.40},
	"grok-2*":       {InputPerMTok: 2.00, OutputPerMTok: 10.00},
	"grok-3*":       {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-3-5-haiku*":  {InputPerMTok: 0.80, OutputPerMTok: 4.00, CachedInputPerMTok: 0.08},
	"claude-3-5-sonnet*": {InputPerMTok: 3.00, OutputPerMTok: 15.00, CachedInputPerMTok: 0.30},
	"claude-sonnet-4*":   {InputPerMTok: 3.00, OutputPerMTok: 15.00, CachedInputPerMTok: 0.30},
	"claude-opus-4*":     {InputPerMTok: 15.00, OutputPerMTok: 75.00, CachedInputPerMTok: 1.50},
	"gemini-1.5-pro*":    {InputPerMTok: 1.25, OutputPerMTok: 5.00},
	"gemini-1.5-flash*":  {InputPerMTok: 0.075, OutputPerMTok: 0.30},
	"gemini-2.0-flash*":  {InputPerMTok: 0.10, OutputPerMTok: 0.40},
	"dall-e-3": {Image: map[string]map[string]float64{
		"standard": {"1024x1024": 0.040, "1024x1792": 0.080, "1792x1024": 0.080},
		"hd":       {"1024x1024": 0.080, "1024x1792": 0.120, "1792x1024": 0.120},
	}},
}

// Calculator converts usage into cost in the configured display currency.
type Calculator struct {
	table        Table
	currencyRate float64 // units of display currency per USD
	precision    int     // decimal places for rounding
}

// Option customizes a Calculator.
type Option func(*Calculator)

// WithCurrencyRate sets the fixed USD -> display currency exchange rate.
func WithCurrencyRate(rate float64) Option {
	return func(c *Calculator) {
		if rate > 0 {
			c.currencyRate = rate
		}
	}
}

// WithPrecision sets the number of decimal places costs are rounded to.
func WithPrecision(digits int) Option {
	return func(c *Calculator) {
		if digits >= 0 {
			c.precision = digits
		}
	}
}

// NewCalculator creates a calculator over the given table.
// A nil table falls back to DefaultTable.
func NewCalculator(table Table, opts ...Option) *Calculator {
	if table == nil {
		table = DefaultTable
	}
	c := &Calculator{
		table:        table,
		currencyRate: 1.0,
		precision:    6,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cost returns the cost for a text completion. Unknown models cost 0.
func (c *Calculator) Cost(model string, usage types.Usage) float64 {
	entry, ok := c.find(model)
	if !ok {
		return 0
	}

	cost := float64(usage.InputTokens)/1e6*entry.InputPerMTok +
		float64(usage.OutputTokens)/1e6*entry.OutputPerMTok
	if entry.CachedInputPerMTok > 0 {
		cost += float64(usage.CachedTokens) / 1e6 * entry.CachedInputPerMTok
	}
	if entry.ReasoningPerMTok > 0 {
		cost += float64(usage.ReasoningTokens) / 1e6 * entry.ReasoningPerMTok
	}

	return c.round(cost * c.currencyRate)
}

// ImageCost returns the cost for an image generation. Unknown models,
// qualities, or sizes cost 0.
func (c *Calculator) ImageCost(model, quality, size string, count int) float64 {
	entry, ok := c.find(model)
	if !ok || entry.Image == nil {
		return 0
	}
	sizes, ok := entry.Image[quality]
	if !ok {
		return 0
	}
	price, ok := sizes[size]
	if !ok {
		return 0
	}
	if count < 1 {
		count = 1
	}
	return c.round(price * float64(count) * c.currencyRate)
}

// Lookup returns the pricing entry for a model.
func (c *Calculator) Lookup(model string) (Entry, bool) {
	return c.find(model)
}

// find resolves a model to a pricing entry: exact match first, then the
// longest matching "*" prefix.
func (c *Calculator) find(model string) (Entry, bool) {
	if entry, ok := c.table[model]; ok {
		return entry, true
	}

	modelLower := strings.ToLower(model)
	var best *Entry
	bestLen := -1
	for pattern, entry := range c.table {
		if !strings.HasSuffix(pattern, "*") {
			if strings.EqualFold(pattern, model) {
				e := entry
				return e, true
			}
			continue
		}
		prefix := strings.ToLower(strings.TrimSuffix(pattern, "*"))
		if strings.HasPrefix(modelLower, prefix) && len(prefix) > bestLen {
			e := entry
			best = &e
			bestLen = len(prefix)
		}
	}
	if best != nil {
		return *best, true
	}
	return Entry{}, false
}

func (c *Calculator) round(v float64) float64 {
	p := math.Pow10(c.precision)
	return math.Round(v*p) / p
}
