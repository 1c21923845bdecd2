package portfolio

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meowney/meowney/internal/clients/quotes"
	"github.com/meowney/meowney/internal/domain"
)

// QuoteProvider supplies market quotes for tickers.
type QuoteProvider interface {
	GetQuotes(tickers []string) map[string]*quotes.Quote
}

// RateProvider supplies exchange rates.
type RateProvider interface {
	GetRate(fromCurrency, toCurrency string) (domain.ExchangeRate, error)
}

// Service enriches stored assets with live market values. It is also the
// holdings source for rebalancing calculations.
type Service struct {
	repo         *Repository
	quotes       QuoteProvider
	rates        RateProvider
	baseCurrency string
	log          zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(
	repo *Repository,
	quoteProvider QuoteProvider,
	rates RateProvider,
	baseCurrency string,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:         repo,
		quotes:       quoteProvider,
		rates:        rates,
		baseCurrency: baseCurrency,
		log:          log.With().Str("service", "portfolio").Logger(),
	}
}

// GetAssets returns the raw stored assets.
func (s *Service) GetAssets(portfolioID string) ([]Asset, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("portfolio repository not available")
	}
	return s.repo.GetAssets(portfolioID)
}

// CreateAsset stores a new asset.
func (s *Service) CreateAsset(asset *Asset) error {
	if s.repo == nil {
		return fmt.Errorf("portfolio repository not available")
	}
	if asset.Name == "" {
		return fmt.Errorf("asset name is required")
	}
	if asset.Quantity < 0 {
		return fmt.Errorf("quantity must not be negative")
	}
	return s.repo.CreateAsset(asset)
}

// UpdateAsset applies a partial update.
func (s *Service) UpdateAsset(assetID string, update AssetUpdate) error {
	if s.repo == nil {
		return fmt.Errorf("portfolio repository not available")
	}
	return s.repo.UpdateAsset(assetID, update)
}

// DeleteAsset soft-deletes an asset.
func (s *Service) DeleteAsset(assetID string) error {
	if s.repo == nil {
		return fmt.Errorf("portfolio repository not available")
	}
	return s.repo.SoftDeleteAsset(assetID)
}

// GetCategories returns all categories.
func (s *Service) GetCategories() ([]Category, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("portfolio repository not available")
	}
	return s.repo.GetCategories()
}

// SaveCategory upserts a category.
func (s *Service) SaveCategory(category *Category) error {
	if s.repo == nil {
		return fmt.Errorf("portfolio repository not available")
	}
	if category.Name == "" {
		return fmt.Errorf("category name is required")
	}
	return s.repo.UpsertCategory(category)
}

// DeleteCategory removes a category.
func (s *Service) DeleteCategory(categoryID string) error {
	if s.repo == nil {
		return fmt.Errorf("portfolio repository not available")
	}
	return s.repo.DeleteCategory(categoryID)
}

// GetEnrichedAssets returns all active assets valued in the base currency.
// Quote or rate failures degrade individual valuations, never the list.
func (s *Service) GetEnrichedAssets(portfolioID string) ([]EnrichedAsset, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("portfolio repository not available")
	}

	assets, err := s.repo.GetAssets(portfolioID)
	if err != nil {
		return nil, err
	}

	quoteMap := s.fetchQuotes(assets)
	rate := s.usdRate()

	enriched := make([]EnrichedAsset, 0, len(assets))
	for _, asset := range assets {
		enriched = append(enriched, s.enrich(asset, quoteMap, rate))
	}

	return enriched, nil
}

// Holdings returns the portfolio as a holdings snapshot for rebalancing.
// Market values stay in each holding's native currency; the engine
// normalizes them.
func (s *Service) Holdings(portfolioID string) ([]domain.Holding, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("portfolio repository not available")
	}

	assets, err := s.repo.GetAssets(portfolioID)
	if err != nil {
		return nil, err
	}

	quoteMap := s.fetchQuotes(assets)

	holdings := make([]domain.Holding, 0, len(assets))
	for _, asset := range assets {
		holding := domain.Holding{
			ID:           asset.ID,
			Ticker:       asset.Ticker,
			Name:         asset.Name,
			Currency:     asset.Currency,
			Quantity:     asset.Quantity,
			AveragePrice: asset.AveragePrice,
		}

		if quote, ok := quoteMap[asset.Ticker]; ok && quote != nil {
			value := quote.Price * asset.Quantity
			holding.MarketValue = &value
			if quote.Currency != "" {
				holding.Currency = quote.Currency
			}
		} else if asset.CurrentValue != nil {
			holding.MarketValue = asset.CurrentValue
		}

		holdings = append(holdings, holding)
	}

	return holdings, nil
}

// fetchQuotes batch-fetches quotes for all tickered assets.
func (s *Service) fetchQuotes(assets []Asset) map[string]*quotes.Quote {
	if s.quotes == nil {
		return nil
	}

	var tickers []string
	seen := make(map[string]bool)
	for _, asset := range assets {
		if asset.Ticker != "" && !seen[asset.Ticker] {
			seen[asset.Ticker] = true
			tickers = append(tickers, asset.Ticker)
		}
	}
	if len(tickers) == 0 {
		return nil
	}

	return s.quotes.GetQuotes(tickers)
}

// usdRate fetches USD to base, degrading to zero on failure.
func (s *Service) usdRate() domain.ExchangeRate {
	degraded := domain.ExchangeRate{From: "USD", To: s.baseCurrency, Rate: 0}

	if s.rates == nil {
		return degraded
	}

	rate, err := s.rates.GetRate("USD", s.baseCurrency)
	if err != nil {
		s.log.Warn().Err(err).Msg("Exchange rate unavailable, foreign assets valued at zero")
		return degraded
	}

	return rate
}

// enrich values one asset in the base currency.
func (s *Service) enrich(asset Asset, quoteMap map[string]*quotes.Quote, rate domain.ExchangeRate) EnrichedAsset {
	enriched := EnrichedAsset{Asset: asset, PriceSource: PriceSourceNone}

	toBase := func(value float64, currency string) float64 {
		if currency == rate.From {
			return value * rate.Rate
		}
		return value
	}

	if quote, ok := quoteMap[asset.Ticker]; ok && quote != nil && asset.Ticker != "" {
		currency := quote.Currency
		if currency == "" {
			currency = asset.Currency
		}
		enriched.UnitPrice = toBase(quote.Price, currency)
		enriched.MarketValue = toBase(quote.Price*asset.Quantity, currency)
		enriched.PriceSource = PriceSourceQuote
	} else if asset.CurrentValue != nil {
		enriched.MarketValue = toBase(*asset.CurrentValue, asset.Currency)
		enriched.PriceSource = PriceSourceManual
	}

	// Principal in base currency. USD purchases recorded with their
	// historical rate use it; otherwise the current rate applies.
	principal := asset.Quantity * asset.AveragePrice
	if asset.Currency == rate.From {
		if asset.PurchaseExchangeRate != nil && *asset.PurchaseExchangeRate > 0 {
			principal *= *asset.PurchaseExchangeRate
		} else {
			principal *= rate.Rate
		}
	}
	enriched.Principal = principal

	if enriched.PriceSource != PriceSourceNone {
		enriched.Profit = enriched.MarketValue - principal
		if principal > 0 {
			enriched.ProfitRate = enriched.Profit / principal * 100
		}
	}

	return enriched
}
