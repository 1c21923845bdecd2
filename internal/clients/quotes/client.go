// Package quotes fetches current market prices for tickers, with
// cache-first behavior and stale fallback when the upstream API is down.
package quotes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/meowney/meowney/internal/clientdata"
)

// Quote is a single ticker quote in its native trading currency.
type Quote struct {
	Ticker   string  `msgpack:"ticker" json:"ticker"`
	Price    float64 `msgpack:"price" json:"price"`
	Currency string  `msgpack:"currency" json:"currency"`
	AsOf     int64   `msgpack:"as_of" json:"as_of"`
}

// Client fetches quotes from the Yahoo Finance chart API.
type Client struct {
	baseURL   string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new quote client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(baseURL string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log.With().Str("client", "quotes").Logger(),
		cacheRepo: cacheRepo,
	}
}

// chartResponse is the subset of the Yahoo chart payload we care about.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
		} `json:"result"`
	} `json:"chart"`
}

// GetQuote fetches the current quote for a single ticker.
func (c *Client) GetQuote(ticker string) (*Quote, error) {
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}

	// Check persistent cache for fresh data
	if c.cacheRepo != nil {
		var cached Quote
		found, err := c.cacheRepo.GetIfFresh("quotes", ticker, &cached)
		if err == nil && found {
			c.log.Debug().Str("ticker", ticker).Float64("price", cached.Price).Msg("Cache hit")
			return &cached, nil
		}
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, ticker)
	resp, err := c.client.Get(url)
	if err != nil {
		if stale, ok := c.getStaleFromCache(ticker); ok {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("API failed, using stale cached quote")
			return stale, nil
		}
		return nil, fmt.Errorf("quote request failed for %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if stale, ok := c.getStaleFromCache(ticker); ok {
			c.log.Warn().Int("status", resp.StatusCode).Str("ticker", ticker).Msg("API error, using stale cached quote")
			return stale, nil
		}
		return nil, fmt.Errorf("quote API returned status %d for %s", resp.StatusCode, ticker)
	}

	var parsed chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		if stale, ok := c.getStaleFromCache(ticker); ok {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to parse quote response, using stale cached quote")
			return stale, nil
		}
		return nil, fmt.Errorf("failed to parse quote response for %s: %w", ticker, err)
	}

	if len(parsed.Chart.Result) == 0 {
		if stale, ok := c.getStaleFromCache(ticker); ok {
			return stale, nil
		}
		return nil, fmt.Errorf("no quote data for %s", ticker)
	}

	meta := parsed.Chart.Result[0].Meta
	quote := &Quote{
		Ticker:   ticker,
		Price:    meta.RegularMarketPrice,
		Currency: meta.Currency,
		AsOf:     meta.RegularMarketTime,
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("quotes", ticker, quote, clientdata.TTLQuote); err != nil {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache quote")
		}
	}

	c.log.Debug().Str("ticker", ticker).Float64("price", quote.Price).Msg("Fetched quote")
	return quote, nil
}

// GetQuotes fetches quotes for multiple tickers. Failures for individual
// tickers are logged and skipped so one bad symbol does not abort the
// whole batch.
func (c *Client) GetQuotes(tickers []string) map[string]*Quote {
	quotes := make(map[string]*Quote, len(tickers))
	for _, ticker := range tickers {
		quote, err := c.GetQuote(ticker)
		if err != nil {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to fetch quote, skipping")
			continue
		}
		quotes[ticker] = quote
	}
	return quotes
}

// getStaleFromCache retrieves a cached quote even if expired.
func (c *Client) getStaleFromCache(ticker string) (*Quote, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}

	var cached Quote
	found, err := c.cacheRepo.Get("quotes", ticker, &cached)
	if err != nil || !found {
		return nil, false
	}

	return &cached, true
}
