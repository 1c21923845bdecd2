// Package exchangerate provides currency exchange rate fetching and caching functionality.
package exchangerate

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/meowney/meowney/internal/clientdata"
	"github.com/meowney/meowney/internal/domain"
)

// Client for exchangerate-api.com
type Client struct {
	baseURL   string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new exchangerate-api.com client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(baseURL string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log.With().Str("client", "exchangerate-api").Logger(),
		cacheRepo: cacheRepo,
	}
}

// cachedExchangeRate is the structure stored in the cache
type cachedExchangeRate struct {
	Rate      float64 `msgpack:"rate"`
	FetchedAt int64   `msgpack:"fetched_at"`
}

// GetRate fetches an exchange rate with cache.
// If the API fails, returns stale cached data if available (stale data > no data).
func (c *Client) GetRate(fromCurrency, toCurrency string) (domain.ExchangeRate, error) {
	if fromCurrency == toCurrency {
		return domain.ExchangeRate{
			From:      fromCurrency,
			To:        toCurrency,
			Rate:      1.0,
			Timestamp: time.Now(),
		}, nil
	}

	cacheKey := fromCurrency + ":" + toCurrency

	// Check persistent cache for fresh data
	if c.cacheRepo != nil {
		var cached cachedExchangeRate
		found, err := c.cacheRepo.GetIfFresh("exchangerate", cacheKey, &cached)
		if err == nil && found {
			c.log.Debug().
				Str("from", fromCurrency).
				Str("to", toCurrency).
				Float64("rate", cached.Rate).
				Msg("Cache hit")
			return domain.ExchangeRate{
				From:      fromCurrency,
				To:        toCurrency,
				Rate:      cached.Rate,
				Timestamp: time.Unix(cached.FetchedAt, 0).UTC(),
			}, nil
		}
	}

	// Fetch from API
	url := fmt.Sprintf("%s/%s", c.baseURL, fromCurrency)
	c.log.Debug().Str("url", url).Msg("Fetching rates")

	resp, err := c.client.Get(url)
	if err != nil {
		if stale, ok := c.getStaleFromCache(fromCurrency, toCurrency, cacheKey); ok {
			c.log.Warn().Err(err).
				Str("from", fromCurrency).
				Str("to", toCurrency).
				Float64("rate", stale.Rate).
				Msg("API failed, using stale cached rate")
			return stale, nil
		}
		return domain.ExchangeRate{}, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if stale, ok := c.getStaleFromCache(fromCurrency, toCurrency, cacheKey); ok {
			c.log.Warn().
				Int("status", resp.StatusCode).
				Str("from", fromCurrency).
				Str("to", toCurrency).
				Float64("rate", stale.Rate).
				Msg("API error, using stale cached rate")
			return stale, nil
		}
		return domain.ExchangeRate{}, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var result struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if stale, ok := c.getStaleFromCache(fromCurrency, toCurrency, cacheKey); ok {
			c.log.Warn().Err(err).
				Str("from", fromCurrency).
				Str("to", toCurrency).
				Float64("rate", stale.Rate).
				Msg("Failed to parse API response, using stale cached rate")
			return stale, nil
		}
		return domain.ExchangeRate{}, fmt.Errorf("failed to parse response: %w", err)
	}

	rate, exists := result.Rates[toCurrency]
	if !exists {
		if stale, ok := c.getStaleFromCache(fromCurrency, toCurrency, cacheKey); ok {
			c.log.Warn().
				Str("from", fromCurrency).
				Str("to", toCurrency).
				Float64("rate", stale.Rate).
				Msg("Rate not in API response, using stale cached rate")
			return stale, nil
		}
		return domain.ExchangeRate{}, fmt.Errorf("rate not found for %s->%s", fromCurrency, toCurrency)
	}

	now := time.Now()

	// Cache persistently
	if c.cacheRepo != nil {
		cached := cachedExchangeRate{Rate: rate, FetchedAt: now.Unix()}
		if err := c.cacheRepo.Store("exchangerate", cacheKey, cached, clientdata.TTLExchangeRate); err != nil {
			c.log.Warn().Err(err).Str("pair", cacheKey).Msg("Failed to cache exchange rate")
		}
	}

	c.log.Info().
		Str("from", fromCurrency).
		Str("to", toCurrency).
		Float64("rate", rate).
		Msg("Fetched rate")

	return domain.ExchangeRate{
		From:      fromCurrency,
		To:        toCurrency,
		Rate:      rate,
		Timestamp: now,
	}, nil
}

// getStaleFromCache retrieves a cached rate even if expired.
// Used as a fallback when API calls fail.
func (c *Client) getStaleFromCache(from, to, cacheKey string) (domain.ExchangeRate, bool) {
	if c.cacheRepo == nil {
		return domain.ExchangeRate{}, false
	}

	var cached cachedExchangeRate
	found, err := c.cacheRepo.Get("exchangerate", cacheKey, &cached)
	if err != nil || !found {
		return domain.ExchangeRate{}, false
	}

	return domain.ExchangeRate{
		From:      from,
		To:        to,
		Rate:      cached.Rate,
		Timestamp: time.Unix(cached.FetchedAt, 0).UTC(),
	}, true
}
