// Package handlers provides HTTP handlers for asset and category operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/meowney/meowney/internal/modules/portfolio"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	service *portfolio.Service
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// CreateAssetRequest represents a request to create an asset
type CreateAssetRequest struct {
	CategoryID           string   `json:"category_id"`
	Name                 string   `json:"name"`
	Ticker               string   `json:"ticker"`
	AssetType            string   `json:"asset_type"`
	Quantity             float64  `json:"quantity"`
	AveragePrice         float64  `json:"average_price"`
	Currency             string   `json:"currency"`
	CurrentValue         *float64 `json:"current_value"`
	PurchaseExchangeRate *float64 `json:"purchase_exchange_rate"`
	Notes                string   `json:"notes"`
}

// UpdateAssetRequest represents a partial asset update
type UpdateAssetRequest struct {
	CategoryID           *string  `json:"category_id"`
	Name                 *string  `json:"name"`
	Ticker               *string  `json:"ticker"`
	AssetType            *string  `json:"asset_type"`
	Quantity             *float64 `json:"quantity"`
	AveragePrice         *float64 `json:"average_price"`
	Currency             *string  `json:"currency"`
	CurrentValue         *float64 `json:"current_value"`
	PurchaseExchangeRate *float64 `json:"purchase_exchange_rate"`
	Notes                *string  `json:"notes"`
}

// SaveCategoryRequest represents a category upsert
type SaveCategoryRequest struct {
	Name         string `json:"name"`
	Color        string `json:"color"`
	Icon         string `json:"icon"`
	DisplayOrder int    `json:"display_order"`
}

// HandleGetAssets handles GET /api/assets
func (h *Handler) HandleGetAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.service.GetEnrichedAssets(portfolioID(r))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get assets")
		http.Error(w, "Failed to get assets", http.StatusInternalServerError)
		return
	}

	if assets == nil {
		assets = []portfolio.EnrichedAsset{}
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"assets": assets,
			"count":  len(assets),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleCreateAsset handles POST /api/assets
func (h *Handler) HandleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var req CreateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	asset := &portfolio.Asset{
		PortfolioID:          portfolioID(r),
		CategoryID:           req.CategoryID,
		Name:                 req.Name,
		Ticker:               req.Ticker,
		AssetType:            req.AssetType,
		Quantity:             req.Quantity,
		AveragePrice:         req.AveragePrice,
		Currency:             req.Currency,
		CurrentValue:         req.CurrentValue,
		PurchaseExchangeRate: req.PurchaseExchangeRate,
		Notes:                req.Notes,
	}

	if err := h.service.CreateAsset(asset); err != nil {
		h.log.Error().Err(err).Msg("Failed to create asset")
		http.Error(w, "Failed to create asset", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"asset": asset,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusCreated, response)
}

// HandleUpdateAsset handles PATCH /api/assets/{id}
func (h *Handler) HandleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "id")

	var req UpdateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	update := portfolio.AssetUpdate{
		CategoryID:           req.CategoryID,
		Name:                 req.Name,
		Ticker:               req.Ticker,
		AssetType:            req.AssetType,
		Quantity:             req.Quantity,
		AveragePrice:         req.AveragePrice,
		Currency:             req.Currency,
		CurrentValue:         req.CurrentValue,
		PurchaseExchangeRate: req.PurchaseExchangeRate,
		Notes:                req.Notes,
	}

	if err := h.service.UpdateAsset(assetID, update); err != nil {
		h.log.Error().Err(err).Str("asset_id", assetID).Msg("Failed to update asset")
		http.Error(w, "Failed to update asset", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"updated":  true,
			"asset_id": assetID,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleDeleteAsset handles DELETE /api/assets/{id}
func (h *Handler) HandleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "id")

	if err := h.service.DeleteAsset(assetID); err != nil {
		h.log.Error().Err(err).Str("asset_id", assetID).Msg("Failed to delete asset")
		http.Error(w, "Failed to delete asset", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"deleted":  true,
			"asset_id": assetID,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetCategories handles GET /api/categories
func (h *Handler) HandleGetCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.GetCategories()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get categories")
		http.Error(w, "Failed to get categories", http.StatusInternalServerError)
		return
	}

	if categories == nil {
		categories = []portfolio.Category{}
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"categories": categories,
			"count":      len(categories),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleSaveCategory handles POST /api/categories
func (h *Handler) HandleSaveCategory(w http.ResponseWriter, r *http.Request) {
	var req SaveCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	category := &portfolio.Category{
		Name:         req.Name,
		Color:        req.Color,
		Icon:         req.Icon,
		DisplayOrder: req.DisplayOrder,
	}

	if err := h.service.SaveCategory(category); err != nil {
		h.log.Error().Err(err).Msg("Failed to save category")
		http.Error(w, "Failed to save category", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"category": category,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusCreated, response)
}

// HandleDeleteCategory handles DELETE /api/categories/{id}
func (h *Handler) HandleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "id")

	if err := h.service.DeleteCategory(categoryID); err != nil {
		h.log.Error().Err(err).Str("category_id", categoryID).Msg("Failed to delete category")
		http.Error(w, "Failed to delete category", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"deleted":     true,
			"category_id": categoryID,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
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
