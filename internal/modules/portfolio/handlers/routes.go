package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all asset and category routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/assets", func(r chi.Router) {
		r.Get("/", h.HandleGetAssets)
		r.Post("/", h.HandleCreateAsset)
		r.Patch("/{id}", h.HandleUpdateAsset)
		r.Delete("/{id}", h.HandleDeleteAsset)
	})

	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.HandleGetCategories)
		r.Post("/", h.HandleSaveCategory)
		r.Delete("/{id}", h.HandleDeleteCategory)
	})
}
