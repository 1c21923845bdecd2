package portfolio

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meowney/meowney/internal/clients/quotes"
	"github.com/meowney/meowney/internal/domain"
)

type fakeQuotes struct {
	quotes map[string]*quotes.Quote
}

func (f *fakeQuotes) GetQuotes(tickers []string) map[string]*quotes.Quote {
	result := make(map[string]*quotes.Quote)
	for _, t := range tickers {
		if q, ok := f.quotes[t]; ok {
			result[t] = q
		}
	}
	return result
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

func krwRates() *fakeRates {
	return &fakeRates{rate: domain.ExchangeRate{From: "USD", To: "KRW", Rate: 1350}}
}

func newTestService(t *testing.T, quoteMap map[string]*quotes.Quote, rates RateProvider) *Service {
	return NewService(newTestRepo(t), &fakeQuotes{quotes: quoteMap}, rates, "KRW", zerolog.Nop())
}

func TestService_GetEnrichedAssets_QuotePricing(t *testing.T) {
	svc := newTestService(t, map[string]*quotes.Quote{
		"069500": {Ticker: "069500", Price: 35000, Currency: "KRW"},
	}, krwRates())

	require.NoError(t, svc.CreateAsset(&Asset{
		Name:         "KODEX 200",
		Ticker:       "069500",
		Quantity:     10,
		AveragePrice: 32000,
	}))

	enriched, err := svc.GetEnrichedAssets("default")
	require.NoError(t, err)
	require.Len(t, enriched, 1)

	got := enriched[0]
	assert.Equal(t, PriceSourceQuote, got.PriceSource)
	assert.InDelta(t, 350000, got.MarketValue, 1e-6)
	assert.InDelta(t, 320000, got.Principal, 1e-6)
	assert.InDelta(t, 30000, got.Profit, 1e-6)
	assert.InDelta(t, 9.375, got.ProfitRate, 1e-6)
}

func TestService_GetEnrichedAssets_USDConversion(t *testing.T) {
	svc := newTestService(t, map[string]*quotes.Quote{
		"MSFT": {Ticker: "MSFT", Price: 50, Currency: "USD"},
	}, krwRates())

	purchaseRate := 1300.0
	require.NoError(t, svc.CreateAsset(&Asset{
		Name:                 "Microsoft",
		Ticker:               "MSFT",
		Quantity:             2,
		AveragePrice:         40,
		Currency:             "USD",
		PurchaseExchangeRate: &purchaseRate,
	}))

	enriched, err := svc.GetEnrichedAssets("default")
	require.NoError(t, err)
	require.Len(t, enriched, 1)

	got := enriched[0]
	// Market value at the current rate, principal at the purchase rate.
	assert.InDelta(t, 2*50*1350, got.MarketValue, 1e-6)
	assert.InDelta(t, 2*40*1300, got.Principal, 1e-6)
	assert.InDelta(t, 135000-104000, got.Profit, 1e-6)
}

func TestService_GetEnrichedAssets_ManualValueFallback(t *testing.T) {
	svc := newTestService(t, nil, krwRates())

	value := 5000000.0
	require.NoError(t, svc.CreateAsset(&Asset{
		Name:         "Savings",
		AssetType:    "cash",
		CurrentValue: &value,
	}))

	enriched, err := svc.GetEnrichedAssets("default")
	require.NoError(t, err)
	require.Len(t, enriched, 1)
	assert.Equal(t, PriceSourceManual, enriched[0].PriceSource)
	assert.Equal(t, 5000000.0, enriched[0].MarketValue)
}

func TestService_GetEnrichedAssets_NoPriceAtAll(t *testing.T) {
	svc := newTestService(t, nil, krwRates())

	require.NoError(t, svc.CreateAsset(&Asset{
		Name:     "Mystery",
		Ticker:   "UNPRICED",
		Quantity: 5,
	}))

	enriched, err := svc.GetEnrichedAssets("default")
	require.NoError(t, err)
	require.Len(t, enriched, 1)
	assert.Equal(t, PriceSourceNone, enriched[0].PriceSource)
	assert.Equal(t, 0.0, enriched[0].MarketValue)
	assert.Equal(t, 0.0, enriched[0].Profit)
}

func TestService_Holdings(t *testing.T) {
	svc := newTestService(t, map[string]*quotes.Quote{
		"MSFT": {Ticker: "MSFT", Price: 50, Currency: "USD"},
	}, krwRates())

	require.NoError(t, svc.CreateAsset(&Asset{
		Name: "Microsoft", Ticker: "MSFT", Quantity: 2, Currency: "USD",
	}))
	manualValue := 1000000.0
	require.NoError(t, svc.CreateAsset(&Asset{
		Name: "Savings", AssetType: "cash", CurrentValue: &manualValue,
	}))
	require.NoError(t, svc.CreateAsset(&Asset{
		Name: "Mystery", Ticker: "UNPRICED", Quantity: 1,
	}))

	holdings, err := svc.Holdings("default")
	require.NoError(t, err)
	require.Len(t, holdings, 3)

	// Quote-priced holding keeps its native currency value.
	msft := holdings[0]
	assert.Equal(t, "USD", msft.Currency)
	require.NotNil(t, msft.MarketValue)
	assert.InDelta(t, 100, *msft.MarketValue, 1e-9)

	savings := holdings[1]
	require.NotNil(t, savings.MarketValue)
	assert.Equal(t, 1000000.0, *savings.MarketValue)

	// No quote and no manual value means no market value.
	assert.Nil(t, holdings[2].MarketValue)
}

func TestService_GetEnrichedAssets_RateFailure(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(repo, &fakeQuotes{quotes: map[string]*quotes.Quote{
		"MSFT": {Ticker: "MSFT", Price: 50, Currency: "USD"},
	}}, &fakeRates{err: fmt.Errorf("api down")}, "KRW", zerolog.Nop())

	require.NoError(t, svc.CreateAsset(&Asset{
		Name: "Microsoft", Ticker: "MSFT", Quantity: 2, Currency: "USD", AveragePrice: 40,
	}))

	enriched, err := svc.GetEnrichedAssets("default")
	require.NoError(t, err)
	require.Len(t, enriched, 1)
	// Degraded rate values USD positions at zero rather than failing.
	assert.Equal(t, 0.0, enriched[0].MarketValue)
}

func TestService_CreateAssetValidation(t *testing.T) {
	svc := newTestService(t, nil, krwRates())

	assert.Error(t, svc.CreateAsset(&Asset{}))
	assert.Error(t, svc.CreateAsset(&Asset{Name: "x", Quantity: -1}))
}
