package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all rebalance routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/rebalance", func(r chi.Router) {
		r.Route("/plans", func(r chi.Router) {
			r.Get("/", h.HandleGetPlans)
			r.Post("/", h.HandleCreatePlan)
			r.Get("/main", h.HandleGetMainPlan)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.HandleGetPlan)
				r.Patch("/", h.HandleUpdatePlan)
				r.Delete("/", h.HandleDeletePlan)
				r.Post("/main", h.HandleSetMainPlan)
				r.Put("/allocations", h.HandleSaveAllocations)
				r.Put("/groups", h.HandleSaveGroups)
				r.Post("/calculate", h.HandleCalculate)
				r.Get("/equal-distribution", h.HandleEqualDistribution)
				r.Get("/current-ratios", h.HandleCurrentRatios)
			})
		})
	})
}
