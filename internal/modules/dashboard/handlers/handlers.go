// Package handlers provides HTTP handlers for dashboard operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/meowney/meowney/internal/modules/dashboard"
)

// Handler handles dashboard HTTP requests
type Handler struct {
	service *dashboard.Service
	log     zerolog.Logger
}

// NewHandler creates a new dashboard handler
func NewHandler(service *dashboard.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "dashboard").Logger(),
	}
}

// HandleGetSummary handles GET /api/dashboard/summary
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetSummary(portfolioID(r))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get dashboard summary")
		http.Error(w, "Failed to get dashboard summary", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": summary,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetHistory handles GET /api/dashboard/history?days=N
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	days := 90
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "days must be a non-negative integer", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	history, err := h.service.GetHistory(portfolioID(r), days)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get history")
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}

	if history == nil {
		history = []dashboard.Snapshot{}
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"history": history,
			"count":   len(history),
			"days":    days,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleTakeSnapshot handles POST /api/dashboard/snapshot
func (h *Handler) HandleTakeSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.TakeSnapshot(portfolioID(r))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to take snapshot")
		http.Error(w, "Failed to take snapshot", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"snapshot": snapshot,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusCreated, response)
}

// portfolioID extracts the portfolio scope from the query string.
func portfolioID(r *http.Request) string {
	if id := r.URL.Query().Get("portfolio_id"); id != "" {
		return id
	}
	return "default"
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
