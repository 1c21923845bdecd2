// Package domain contains pure shared types with no infrastructure
// dependencies. Everything here is safe to use from any layer.
package domain

import "time"

// Holding is an immutable snapshot of a user-owned position as seen by the
// rebalancing engine for a single computation call. MarketValue is in the
// holding's native currency; nil means the position is unpriced.
type Holding struct {
	ID           string   `json:"id"`
	Ticker       string   `json:"ticker,omitempty"`
	Name         string   `json:"name"`
	Currency     string   `json:"currency"`
	MarketValue  *float64 `json:"market_value,omitempty"`
	Quantity     float64  `json:"quantity"`
	AveragePrice float64  `json:"average_price"`
}

// ExchangeRate is a spot rate quote: To-currency units per one unit of
// the From currency (e.g. From=USD, To=KRW, Rate=1350).
type ExchangeRate struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Rate      float64   `json:"rate"`
	Timestamp time.Time `json:"timestamp"`
}
