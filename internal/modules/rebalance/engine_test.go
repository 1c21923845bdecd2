package rebalance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meowney/meowney/internal/domain"
)

var usdToKRW = domain.ExchangeRate{From: "USD", To: "KRW", Rate: 1350}

func TestToBaseCurrency(t *testing.T) {
	tests := []struct {
		name     string
		holding  domain.Holding
		expected float64
	}{
		{
			name:     "KRW passes through",
			holding:  domain.Holding{Currency: "KRW", MarketValue: fv(1000000)},
			expected: 1000000,
		},
		{
			name:     "USD converts at rate",
			holding:  domain.Holding{Currency: "USD", MarketValue: fv(100)},
			expected: 135000,
		},
		{
			name:     "nil market value contributes zero",
			holding:  domain.Holding{Currency: "USD", MarketValue: nil},
			expected: 0,
		},
		{
			name:     "NaN market value contributes zero",
			holding:  domain.Holding{Currency: "KRW", MarketValue: fv(math.NaN())},
			expected: 0,
		},
		{
			name:     "empty currency treated as base",
			holding:  domain.Holding{Currency: "", MarketValue: fv(42)},
			expected: 42,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToBaseCurrency(tt.holding, usdToKRW))
		})
	}
}

func TestToBaseCurrency_ZeroRateDegradesForeignToZero(t *testing.T) {
	degraded := domain.ExchangeRate{From: "USD", To: "KRW", Rate: 0}

	assert.Equal(t, 0.0, ToBaseCurrency(domain.Holding{Currency: "USD", MarketValue: fv(100)}, degraded))
	assert.Equal(t, 500.0, ToBaseCurrency(domain.Holding{Currency: "KRW", MarketValue: fv(500)}, degraded))
}

func TestValidateTargets(t *testing.T) {
	tests := []struct {
		name      string
		items     []float64
		groups    []float64
		wantTotal float64
		wantValid bool
	}{
		{
			name:      "exact 100",
			items:     []float64{60, 40},
			wantTotal: 100,
			wantValid: true,
		},
		{
			name:      "99.95 within tolerance",
			items:     []float64{33.3, 33.3, 33.35},
			wantTotal: 99.95,
			wantValid: true,
		},
		{
			name:      "99.8 outside tolerance",
			items:     []float64{33.3, 33.3, 33.2},
			wantTotal: 99.8,
			wantValid: false,
		},
		{
			name:      "items and groups sum together",
			items:     []float64{50},
			groups:    []float64{30, 20},
			wantTotal: 100,
			wantValid: true,
		},
		{
			name:      "empty plan is invalid",
			wantTotal: 0,
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var items []AllocationItem
			for _, pct := range tt.items {
				items = append(items, AllocationItem{TargetPercentage: pct})
			}
			var groups []AllocationGroup
			for _, pct := range tt.groups {
				groups = append(groups, AllocationGroup{TargetPercentage: pct})
			}

			validation := ValidateTargets(items, groups)
			assert.InDelta(t, tt.wantTotal, validation.Total, 1e-9)
			assert.Equal(t, tt.wantValid, validation.IsValid)
		})
	}
}

func TestComputeRebalance_SixtyFortyToFiftyFifty(t *testing.T) {
	entries := []Entry{
		{Name: "Stocks", CurrentValue: 600000, TargetPercentage: 50},
		{Name: "Bonds", CurrentValue: 400000, TargetPercentage: 50},
	}

	suggestions := ComputeRebalance(entries, 1000000)
	require.Len(t, suggestions, 2)

	assert.InDelta(t, 60, suggestions[0].CurrentPercentage, 1e-9)
	assert.InDelta(t, -10, suggestions[0].DifferencePercentage, 1e-9)
	assert.InDelta(t, -100000, suggestions[0].SuggestedAmount, 1e-6)

	assert.InDelta(t, 40, suggestions[1].CurrentPercentage, 1e-9)
	assert.InDelta(t, 10, suggestions[1].DifferencePercentage, 1e-9)
	assert.InDelta(t, 100000, suggestions[1].SuggestedAmount, 1e-6)

	// Targets summing to 100% mean the trades net out.
	assert.InDelta(t, 0, suggestions[0].SuggestedAmount+suggestions[1].SuggestedAmount, 1e-6)
}

func TestComputeRebalance_ZeroTotalNeverNaN(t *testing.T) {
	entries := []Entry{
		{Name: "A", CurrentValue: 0, TargetPercentage: 50},
		{Name: "B", CurrentValue: 0, TargetPercentage: 50},
	}

	for _, total := range []float64{0, -100} {
		for _, s := range ComputeRebalance(entries, total) {
			assert.False(t, math.IsNaN(s.CurrentPercentage), "current percentage must not be NaN")
			assert.False(t, math.IsNaN(s.SuggestedAmount), "suggested amount must not be NaN")
			assert.Equal(t, 0.0, s.CurrentPercentage)
		}
	}

	// Empty portfolio: nothing owned, nothing to trade yet.
	for _, s := range ComputeRebalance(entries, 0) {
		assert.Equal(t, 0.0, s.SuggestedAmount)
	}
}

func TestComputeRebalance_UnmatchedGetsFullTargetBuy(t *testing.T) {
	// An entry with zero current value (e.g. unmatched ticker) is suggested
	// a buy of its entire target slice.
	suggestions := ComputeRebalance([]Entry{
		{Name: "ZZZZ", CurrentValue: 0, TargetPercentage: 10},
	}, 1000000)

	require.Len(t, suggestions, 1)
	assert.Equal(t, 0.0, suggestions[0].CurrentPercentage)
	assert.InDelta(t, 10, suggestions[0].DifferencePercentage, 1e-9)
	assert.InDelta(t, 100000, suggestions[0].SuggestedAmount, 1e-6)
}

func TestComputeRebalance_Idempotent(t *testing.T) {
	entries := []Entry{
		{Name: "A", CurrentValue: 300000, TargetPercentage: 25},
		{Name: "B", CurrentValue: 700000, TargetPercentage: 75},
	}

	first := ComputeRebalance(entries, 1000000)
	second := ComputeRebalance(entries, 1000000)
	assert.Equal(t, first, second)
}

func TestAggregateGroup(t *testing.T) {
	holdings := []domain.Holding{
		{ID: "h1", Ticker: "069500", Name: "KODEX 200", Currency: "KRW", MarketValue: fv(1000000)},
		{ID: "h2", Ticker: "MSFT", Name: "Microsoft", Currency: "USD", MarketValue: fv(100)},
	}

	group := AllocationGroup{
		ID:   "g1",
		Name: "Equities",
		Items: []GroupItem{
			{ID: "i1", AssetID: "h1"},
			{ID: "i2", Ticker: "MSFT"},
			{ID: "i3", Ticker: "GONE"},
		},
	}

	result := AggregateGroup(group, holdings, usdToKRW)

	assert.InDelta(t, 1135000, result.GroupValue, 1e-6)
	assert.Equal(t, 1000000.0, result.MemberValues["i1"])
	assert.Equal(t, 135000.0, result.MemberValues["i2"])
	assert.Equal(t, 0.0, result.MemberValues["i3"])
}

func TestEqualDistribution(t *testing.T) {
	tests := []struct {
		n        int
		expected float64
	}{
		{1, 100},
		{2, 50},
		{3, 33.3},
		{4, 25},
		{6, 16.7},
		{7, 14.3},
		{0, 0},
		{-1, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, EqualDistribution(tt.n), "n=%d", tt.n)
	}
}

func TestEqualDistribution_ResidualNotReconciled(t *testing.T) {
	// 3 entries at 33.3 sum to 99.9: outside tolerance on purpose, the
	// validator surfaces the residual instead of patching one entry.
	share := EqualDistribution(3)
	validation := ValidateTargets([]AllocationItem{
		{TargetPercentage: share},
		{TargetPercentage: share},
		{TargetPercentage: share},
	}, nil)

	assert.InDelta(t, 99.9, validation.Total, 1e-9)
	assert.False(t, validation.IsValid)
}

func TestCurrentRatio(t *testing.T) {
	assert.Equal(t, 33.3, CurrentRatio(1, 3))
	assert.Equal(t, 50.0, CurrentRatio(500, 1000))
	assert.Equal(t, 0.0, CurrentRatio(100, 0))
	assert.Equal(t, 0.0, CurrentRatio(100, -5))
}

func TestSuggestionIsHold(t *testing.T) {
	assert.True(t, Suggestion{DifferencePercentage: 0.49}.IsHold())
	assert.True(t, Suggestion{DifferencePercentage: -0.49}.IsHold())
	assert.False(t, Suggestion{DifferencePercentage: 0.5}.IsHold())
	assert.False(t, Suggestion{DifferencePercentage: -3}.IsHold())
}
