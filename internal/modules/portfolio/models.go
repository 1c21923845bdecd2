// Package portfolio manages user assets: CRUD, categories and
// market-value enrichment from live quotes.
package portfolio

import "time"

// Asset is a user-entered portfolio position.
type Asset struct {
	ID                   string    `json:"id"`
	PortfolioID          string    `json:"portfolio_id"`
	CategoryID           string    `json:"category_id,omitempty"`
	Name                 string    `json:"name"`
	Ticker               string    `json:"ticker,omitempty"`
	AssetType            string    `json:"asset_type"`
	Quantity             float64   `json:"quantity"`
	AveragePrice         float64   `json:"average_price"`
	Currency             string    `json:"currency"`
	CurrentValue         *float64  `json:"current_value,omitempty"`
	PurchaseExchangeRate *float64  `json:"purchase_exchange_rate,omitempty"`
	Notes                string    `json:"notes,omitempty"`
	IsActive             bool      `json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Category groups assets for dashboard breakdowns.
type Category struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Color        string `json:"color"`
	Icon         string `json:"icon,omitempty"`
	DisplayOrder int    `json:"display_order"`
}

// Price sources recorded on enriched assets.
const (
	PriceSourceQuote  = "quote"  // live market price x quantity
	PriceSourceManual = "manual" // user-entered current value
	PriceSourceNone   = "none"   // no price available
)

// EnrichedAsset is an asset with computed valuation fields. Values are in
// the base currency.
type EnrichedAsset struct {
	Asset
	MarketValue float64 `json:"market_value"`
	Principal   float64 `json:"principal"`
	Profit      float64 `json:"profit"`
	ProfitRate  float64 `json:"profit_rate"`
	UnitPrice   float64 `json:"unit_price,omitempty"`
	PriceSource string  `json:"price_source"`
}

// AssetUpdate carries optional field updates. Nil pointers leave the
// stored value unchanged.
type AssetUpdate struct {
	CategoryID           *string
	Name                 *string
	Ticker               *string
	AssetType            *string
	Quantity             *float64
	AveragePrice         *float64
	Currency             *string
	CurrentValue         *float64
	PurchaseExchangeRate *float64
	Notes                *string
}
