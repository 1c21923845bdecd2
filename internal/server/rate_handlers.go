package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/meowney/meowney/internal/clients/exchangerate"
)

// RateHandlers exposes the current exchange rate
type RateHandlers struct {
	client       *exchangerate.Client
	baseCurrency string
	log          zerolog.Logger
}

// NewRateHandlers creates new rate handlers
func NewRateHandlers(client *exchangerate.Client, baseCurrency string, log zerolog.Logger) *RateHandlers {
	return &RateHandlers{
		client:       client,
		baseCurrency: baseCurrency,
		log:          log.With().Str("handler", "exchange_rate").Logger(),
	}
}

// HandleGetExchangeRate handles GET /api/exchange-rate
func (h *RateHandlers) HandleGetExchangeRate(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		http.Error(w, "Exchange rate client not available", http.StatusServiceUnavailable)
		return
	}

	from := r.URL.Query().Get("from")
	if from == "" {
		from = "USD"
	}
	to := r.URL.Query().Get("to")
	if to == "" {
		to = h.baseCurrency
	}

	rate, err := h.client.GetRate(from, to)
	if err != nil {
		h.log.Warn().Err(err).Str("from", from).Str("to", to).Msg("Failed to get exchange rate")
		http.Error(w, "Failed to get exchange rate", http.StatusBadGateway)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"from":       rate.From,
			"to":         rate.To,
			"rate":       rate.Rate,
			"fetched_at": rate.Timestamp.Format(time.RFC3339),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (h *RateHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
