package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelrelay/modelrelay/pkg/types"
)

func testTable() Table {
	return Table{
		"gpt-4o": {InputPerMTok: 2.50, OutputPerMTok: 10.00, CachedInputPerMTok: 1.25},
		"o1*":    {InputPerMTok: 15.00, OutputPerMTok: 60.00, ReasoningPerMTok: 60.00},
		"dall-e-3": {Image: map[string]map[string]float64{
			"standard": {"1024x1024": 0.040},
			"hd":       {"1024x1024": 0.080},
		}},
	}
}

func TestCalculator_Cost(t *testing.T) {
	calc := NewCalculator(testTable())

	t.Run("basic input and output", func(t *testing.T) {
		cost := calc.Cost("gpt-4o", types.Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000})
		assert.InDelta(t, 12.50, cost, 1e-9)
	})

	t.Run("linearity", func(t *testing.T) {
		double := calc.Cost("gpt-4o", types.Usage{InputTokens: 2000, OutputTokens: 1000})
		single := calc.Cost("gpt-4o", types.Usage{InputTokens: 1000, OutputTokens: 500})
		assert.InDelta(t, 2*single, double, 1e-9)
	})

	t.Run("unknown model costs zero", func(t *testing.T) {
		cost := calc.Cost("nonexistent-model", types.Usage{InputTokens: 1000, OutputTokens: 1000})
		assert.Zero(t, cost)
	})

	t.Run("cached tokens priced when rate defined", func(t *testing.T) {
		withCached := calc.Cost("gpt-4o", types.Usage{InputTokens: 1000, CachedTokens: 1_000_000})
		withoutCached := calc.Cost("gpt-4o", types.Usage{InputTokens: 1000})
		assert.InDelta(t, 1.25, withCached-withoutCached, 1e-9)
	})

	t.Run("reasoning tokens via wildcard match", func(t *testing.T) {
		cost := calc.Cost("o1-preview", types.Usage{InputTokens: 1_000_000, ReasoningTokens: 1_000_000})
		assert.InDelta(t, 75.00, cost, 1e-9)
	})
}

func TestCalculator_CurrencyAndPrecision(t *testing.T) {
	calc := NewCalculator(testTable(), WithCurrencyRate(7.2), WithPrecision(4))

	// 1000 in + 500 out on gpt-4o = 0.0075 USD, converted at 7.2.
	cost := calc.Cost("gpt-4o", types.Usage{InputTokens: 1000, OutputTokens: 500})
	assert.InDelta(t, 0.054, cost, 1e-9)
}

func TestCalculator_ImageCost(t *testing.T) {
	calc := NewCalculator(testTable())

	assert.InDelta(t, 0.080, calc.ImageCost("dall-e-3", "standard", "1024x1024", 2), 1e-9)
	assert.InDelta(t, 0.080, calc.ImageCost("dall-e-3", "hd", "1024x1024", 1), 1e-9)
	assert.Zero(t, calc.ImageCost("dall-e-3", "ultra", "1024x1024", 1))
	assert.Zero(t, calc.ImageCost("dall-e-3", "standard", "512x512", 1))
	assert.Zero(t, calc.ImageCost("unknown", "standard", "1024x1024", 1))

	// Count below one is treated as a single image.
	assert.InDelta(t, 0.040, calc.ImageCost("dall-e-3", "standard", "1024x1024", 0), 1e-9)
}

func TestCalculator_WildcardResolution(t *testing.T) {
	table := Table{
		"gpt-4*":       {InputPerMTok: 30.0, OutputPerMTok: 60.0},
		"gpt-4-turbo*": {InputPerMTok: 10.0, OutputPerMTok: 30.0},
	}
	calc := NewCalculator(table)

	// Longest prefix wins.
	entry, ok := calc.Lookup("gpt-4-turbo-2024")
	require.True(t, ok)
	assert.Equal(t, 10.0, entry.InputPerMTok)

	entry, ok = calc.Lookup("gpt-4-0613")
	require.True(t, ok)
	assert.Equal(t, 30.0, entry.InputPerMTok)
}

func TestCalculator_DefaultTable(t *testing.T) {
	calc := NewCalculator(nil)
	_, ok := calc.Lookup("gpt-4o")
	assert.True(t, ok)
}
