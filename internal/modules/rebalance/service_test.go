package rebalance

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meowney/meowney/internal/domain"
)

type fakeHoldings struct {
	holdings []domain.Holding
	err      error
}

func (f *fakeHoldings) Holdings(portfolioID string) ([]domain.Holding, error) {
	return f.holdings, f.err
}

type fakeRates struct {
	rate domain.ExchangeRate
	err  error
}

func (f *fakeRates) GetRate(from, to string) (domain.ExchangeRate, error) {
	if f.err != nil {
		return domain.ExchangeRate{}, f.err
	}
	return f.rate, nil
}

func newTestService(t *testing.T, holdings []domain.Holding, rates RateProvider) *Service {
	return NewService(newTestRepo(t), &fakeHoldings{holdings: holdings}, rates, "KRW", zerolog.Nop())
}

func krwRates() *fakeRates {
	return &fakeRates{rate: domain.ExchangeRate{From: "USD", To: "KRW", Rate: 1350}}
}

func TestService_CalculatePlan_SixtyFortyToFiftyFifty(t *testing.T) {
	holdings := []domain.Holding{
		{ID: "h1", Ticker: "069500", Name: "KODEX 200", Currency: "KRW", MarketValue: fv(600000), Quantity: 20},
		{ID: "h2", Ticker: "148070", Name: "KOSEF 국고채10년", Currency: "KRW", MarketValue: fv(400000), Quantity: 4},
	}
	svc := newTestService(t, holdings, krwRates())

	plan := &Plan{
		Name: "50/50",
		Allocations: []AllocationItem{
			{Ticker: "069500", TargetPercentage: 50},
			{Ticker: "148070", TargetPercentage: 50},
		},
	}
	require.NoError(t, svc.CreatePlan(plan))

	result, err := svc.CalculatePlan(plan.ID)
	require.NoError(t, err)

	assert.Equal(t, plan.ID, result.PlanID)
	assert.InDelta(t, 1000000, result.TotalValue, 1e-6)
	assert.True(t, result.Validation.IsValid)
	require.Len(t, result.Suggestions, 2)

	stocks := result.Suggestions[0]
	assert.Equal(t, "KODEX 200", stocks.Name)
	assert.True(t, stocks.IsMatched)
	assert.Equal(t, "h1", stocks.AssetID)
	assert.InDelta(t, -100000, stocks.SuggestedAmount, 1e-6)
	require.NotNil(t, stocks.SuggestedQuantity)
	// 600000 KRW over 20 units = 30000/unit, sell 100000 => -3.33 units
	assert.InDelta(t, -100000.0/30000.0, *stocks.SuggestedQuantity, 1e-9)

	bonds := result.Suggestions[1]
	assert.InDelta(t, 100000, bonds.SuggestedAmount, 1e-6)
	assert.False(t, bonds.IsHold())
}

func TestService_CalculatePlan_CurrencyConversion(t *testing.T) {
	holdings := []domain.Holding{
		{ID: "h1", Ticker: "MSFT", Name: "Microsoft", Currency: "USD", MarketValue: fv(100), Quantity: 2},
	}
	svc := newTestService(t, holdings, krwRates())

	plan := &Plan{
		Name:        "US only",
		Allocations: []AllocationItem{{Ticker: "MSFT", TargetPercentage: 100}},
	}
	require.NoError(t, svc.CreatePlan(plan))

	result, err := svc.CalculatePlan(plan.ID)
	require.NoError(t, err)

	assert.InDelta(t, 135000, result.TotalValue, 1e-6)
	require.Len(t, result.Suggestions, 1)
	assert.InDelta(t, 135000, result.Suggestions[0].CurrentValue, 1e-6)
	assert.InDelta(t, 0, result.Suggestions[0].SuggestedAmount, 1e-6)
}

func TestService_CalculatePlan_RateFailureDegradesToZero(t *testing.T) {
	holdings := []domain.Holding{
		{ID: "h1", Ticker: "MSFT", Name: "Microsoft", Currency: "USD", MarketValue: fv(100)},
		{ID: "h2", Ticker: "069500", Name: "KODEX 200", Currency: "KRW", MarketValue: fv(500000)},
	}
	svc := newTestService(t, holdings, &fakeRates{err: fmt.Errorf("api down")})

	plan := &Plan{
		Name: "mixed",
		Allocations: []AllocationItem{
			{Ticker: "MSFT", TargetPercentage: 50},
			{Ticker: "069500", TargetPercentage: 50},
		},
	}
	require.NoError(t, svc.CreatePlan(plan))

	result, err := svc.CalculatePlan(plan.ID)
	require.NoError(t, err)

	// USD holding is valued at zero, KRW holding unaffected.
	assert.InDelta(t, 500000, result.TotalValue, 1e-6)
	assert.Equal(t, 0.0, result.Suggestions[0].CurrentValue)
	assert.InDelta(t, 500000, result.Suggestions[1].CurrentValue, 1e-6)
}

func TestService_CalculatePlan_UnmatchedTicker(t *testing.T) {
	holdings := []domain.Holding{
		{ID: "h1", Ticker: "069500", Name: "KODEX 200", Currency: "KRW", MarketValue: fv(900000)},
	}
	svc := newTestService(t, holdings, krwRates())

	plan := &Plan{
		Name: "with unmatched",
		Allocations: []AllocationItem{
			{Ticker: "069500", TargetPercentage: 90},
			{Ticker: "ZZZZ", TargetPercentage: 10},
		},
	}
	require.NoError(t, svc.CreatePlan(plan))

	result, err := svc.CalculatePlan(plan.ID)
	require.NoError(t, err)
	require.Len(t, result.Suggestions, 2)

	unmatched := result.Suggestions[1]
	assert.False(t, unmatched.IsMatched)
	assert.Equal(t, "ZZZZ", unmatched.Name)
	assert.Equal(t, 0.0, unmatched.CurrentValue)
	assert.InDelta(t, 90000, unmatched.SuggestedAmount, 1e-6)
	assert.Nil(t, unmatched.SuggestedQuantity)
}

func TestService_CalculatePlan_EmptyPortfolio(t *testing.T) {
	svc := newTestService(t, nil, krwRates())

	plan := &Plan{
		Name:        "empty",
		Allocations: []AllocationItem{{Ticker: "069500", TargetPercentage: 100}},
	}
	require.NoError(t, svc.CreatePlan(plan))

	result, err := svc.CalculatePlan(plan.ID)
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.TotalValue)
	require.Len(t, result.Suggestions, 1)
	assert.Equal(t, 0.0, result.Suggestions[0].CurrentPercentage)
	assert.Equal(t, 0.0, result.Suggestions[0].SuggestedAmount)
}

func TestService_CalculatePlan_GroupSuggestions(t *testing.T) {
	holdings := []domain.Holding{
		{ID: "h1", Ticker: "069500", Name: "KODEX 200", Currency: "KRW", MarketValue: fv(600000)},
		{ID: "h2", Ticker: "MSFT", Name: "Microsoft", Currency: "USD", MarketValue: fv(100)},
		{ID: "h3", Ticker: "148070", Name: "KOSEF 국고채10년", Currency: "KRW", MarketValue: fv(265000)},
	}
	svc := newTestService(t, holdings, krwRates())

	plan := &Plan{
		Name: "grouped",
		Groups: []AllocationGroup{
			{
				Name:             "Equities",
				TargetPercentage: 70,
				Items: []GroupItem{
					{Ticker: "069500"},
					{Ticker: "MSFT"},
				},
			},
			{
				Name:             "Bonds",
				TargetPercentage: 30,
				Items:            []GroupItem{{Alias: "국고채"}},
			},
		},
	}
	require.NoError(t, svc.CreatePlan(plan))

	result, err := svc.CalculatePlan(plan.ID)
	require.NoError(t, err)
	require.Len(t, result.GroupSuggestions, 2)

	equities := result.GroupSuggestions[0]
	assert.Equal(t, "Equities", equities.GroupName)
	assert.InDelta(t, 735000, equities.CurrentValue, 1e-6) // 600000 + 135000
	assert.InDelta(t, 73.5, equities.CurrentPercentage, 1e-6)
	require.Len(t, equities.Items, 2)
	assert.True(t, equities.Items[0].IsMatched)
	assert.Equal(t, "KODEX 200", equities.Items[0].AssetName)

	bonds := result.GroupSuggestions[1]
	assert.InDelta(t, 265000, bonds.CurrentValue, 1e-6)
	assert.InDelta(t, 300000, bonds.TargetValue, 1e-6)
	assert.InDelta(t, 35000, bonds.SuggestedAmount, 1e-6)
}

func TestService_SaveAllocations_GatesInvalidSum(t *testing.T) {
	svc := newTestService(t, nil, krwRates())

	plan := &Plan{Name: "gated"}
	require.NoError(t, svc.CreatePlan(plan))

	err := svc.SaveAllocations(plan.ID, []AllocationItem{
		{Ticker: "069500", TargetPercentage: 60},
		{Ticker: "148070", TargetPercentage: 30},
	})
	require.Error(t, err)

	var invalidSum *InvalidTargetSumError
	require.ErrorAs(t, err, &invalidSum)
	assert.InDelta(t, 90, invalidSum.Total, 1e-9)

	// Nothing was persisted.
	loaded, getErr := svc.GetPlan(plan.ID)
	require.NoError(t, getErr)
	assert.Empty(t, loaded.Allocations)
}

func TestService_SaveAllocations_CountsExistingGroups(t *testing.T) {
	svc := newTestService(t, nil, krwRates())

	plan := &Plan{
		Name:   "items plus groups",
		Groups: []AllocationGroup{{Name: "Bonds", TargetPercentage: 40}},
	}
	require.NoError(t, svc.CreatePlan(plan))

	require.NoError(t, svc.SaveAllocations(plan.ID, []AllocationItem{
		{Ticker: "069500", TargetPercentage: 60},
	}))

	loaded, err := svc.GetPlan(plan.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Allocations, 1)
	require.Len(t, loaded.Groups, 1)
}

func TestService_SaveGroups_GatesInvalidSum(t *testing.T) {
	svc := newTestService(t, nil, krwRates())

	plan := &Plan{Name: "gated groups"}
	require.NoError(t, svc.CreatePlan(plan))

	err := svc.SaveGroups(plan.ID, []AllocationGroup{
		{Name: "Everything", TargetPercentage: 110},
	})

	var invalidSum *InvalidTargetSumError
	require.ErrorAs(t, err, &invalidSum)
	assert.InDelta(t, 110, invalidSum.Total, 1e-9)
}

func TestService_ProposeEqualDistribution(t *testing.T) {
	svc := newTestService(t, nil, krwRates())

	plan := &Plan{
		Name: "to equalize",
		Allocations: []AllocationItem{
			{Ticker: "A", TargetPercentage: 90},
			{Ticker: "B", TargetPercentage: 10},
		},
		Groups: []AllocationGroup{{Name: "G", TargetPercentage: 0}},
	}
	require.NoError(t, svc.CreatePlan(plan))

	proposal, err := svc.ProposeEqualDistribution(plan.ID)
	require.NoError(t, err)

	require.Len(t, proposal.Allocations, 2)
	require.Len(t, proposal.Groups, 1)
	assert.Equal(t, 33.3, proposal.Allocations[0].TargetPercentage)
	assert.Equal(t, 33.3, proposal.Allocations[1].TargetPercentage)
	assert.Equal(t, 33.3, proposal.Groups[0].TargetPercentage)
	// 3 x 33.3 leaves a residual; the proposal reports it as invalid.
	assert.False(t, proposal.Validation.IsValid)
}

func TestService_ProposeCurrentRatios(t *testing.T) {
	holdings := []domain.Holding{
		{ID: "h1", Ticker: "069500", Name: "KODEX 200", Currency: "KRW", MarketValue: fv(750000)},
		{ID: "h2", Ticker: "148070", Name: "KOSEF 국고채10년", Currency: "KRW", MarketValue: fv(250000)},
	}
	svc := newTestService(t, holdings, krwRates())

	plan := &Plan{
		Name: "snapshot",
		Allocations: []AllocationItem{
			{Ticker: "069500", TargetPercentage: 50},
			{Ticker: "148070", TargetPercentage: 50},
		},
	}
	require.NoError(t, svc.CreatePlan(plan))

	proposal, err := svc.ProposeCurrentRatios(plan.ID)
	require.NoError(t, err)

	require.Len(t, proposal.Allocations, 2)
	assert.Equal(t, 75.0, proposal.Allocations[0].TargetPercentage)
	assert.Equal(t, 25.0, proposal.Allocations[1].TargetPercentage)
	assert.True(t, proposal.Validation.IsValid)
}

func TestService_DisplayNamePriority(t *testing.T) {
	holdings := []domain.Holding{
		{ID: "h1", Ticker: "069500", Name: "KODEX 200", Currency: "KRW", MarketValue: fv(100)},
	}
	svc := newTestService(t, holdings, krwRates())

	plan := &Plan{
		Name: "names",
		Allocations: []AllocationItem{
			{Ticker: "069500", DisplayName: "Korean Stocks", TargetPercentage: 25},
			{Ticker: "069500", TargetPercentage: 25},
			{Ticker: "ZZZZ", TargetPercentage: 25},
			{Alias: "없는자산", TargetPercentage: 25},
		},
	}
	require.NoError(t, svc.CreatePlan(plan))

	result, err := svc.CalculatePlan(plan.ID)
	require.NoError(t, err)
	require.Len(t, result.Suggestions, 4)

	assert.Equal(t, "Korean Stocks", result.Suggestions[0].Name)
	assert.Equal(t, "KODEX 200", result.Suggestions[1].Name)
	assert.Equal(t, "ZZZZ", result.Suggestions[2].Name)
	assert.Equal(t, "없는자산", result.Suggestions[3].Name)
}

func TestService_CalculateMainPlan_NoMainPlan(t *testing.T) {
	svc := newTestService(t, nil, krwRates())

	_, err := svc.CalculateMainPlan("default")
	assert.Error(t, err)
}

func TestService_NilDependencies(t *testing.T) {
	svc := NewService(nil, nil, nil, "KRW", zerolog.Nop())

	_, err := svc.GetPlans("default")
	assert.Error(t, err)

	_, err = svc.CalculatePlan("x")
	assert.Error(t, err)

	assert.Error(t, svc.CreatePlan(&Plan{Name: "x"}))
}
