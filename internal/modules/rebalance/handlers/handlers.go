// Package handlers provides HTTP handlers for rebalancing plan operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/meowney/meowney/internal/modules/rebalance"
)

// Handler handles rebalance HTTP requests
type Handler struct {
	service *rebalance.Service
	log     zerolog.Logger
}

// NewHandler creates a new rebalance handler
func NewHandler(service *rebalance.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "rebalance").Logger(),
	}
}

// CreatePlanRequest represents a request to create a plan
type CreatePlanRequest struct {
	Name           string                      `json:"name"`
	Description    string                      `json:"description"`
	StrategyPrompt string                      `json:"strategy_prompt"`
	IsMain         bool                        `json:"is_main"`
	Allocations    []rebalance.AllocationItem  `json:"allocations"`
	Groups         []rebalance.AllocationGroup `json:"groups"`
}

// UpdatePlanRequest represents a partial plan metadata update
type UpdatePlanRequest struct {
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	StrategyPrompt *string `json:"strategy_prompt"`
	IsMain         *bool   `json:"is_main"`
}

// SaveAllocationsRequest replaces a plan's allocation items
type SaveAllocationsRequest struct {
	Allocations []rebalance.AllocationItem `json:"allocations"`
}

// SaveGroupsRequest replaces a plan's allocation groups
type SaveGroupsRequest struct {
	Groups []rebalance.AllocationGroup `json:"groups"`
}

// HandleGetPlans handles GET /api/rebalance/plans
func (h *Handler) HandleGetPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.GetPlans(portfolioID(r))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get plans")
		http.Error(w, "Failed to get plans", http.StatusInternalServerError)
		return
	}

	if plans == nil {
		plans = []rebalance.Plan{}
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"plans": plans,
			"count": len(plans),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleCreatePlan handles POST /api/rebalance/plans
func (h *Handler) HandleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	plan := &rebalance.Plan{
		PortfolioID:    portfolioID(r),
		Name:           req.Name,
		Description:    req.Description,
		StrategyPrompt: req.StrategyPrompt,
		IsMain:         req.IsMain,
		Allocations:    req.Allocations,
		Groups:         req.Groups,
	}

	if err := h.service.CreatePlan(plan); err != nil {
		h.log.Error().Err(err).Msg("Failed to create plan")
		http.Error(w, "Failed to create plan", http.StatusInternalServerError)
		return
	}

	created, err := h.service.GetPlan(plan.ID)
	if err != nil || created == nil {
		h.log.Error().Err(err).Str("plan_id", plan.ID).Msg("Failed to reload created plan")
		http.Error(w, "Failed to create plan", http.StatusInternalServerError)
		return
	}

	h.writePlan(w, http.StatusCreated, created)
}

// HandleGetMainPlan handles GET /api/rebalance/plans/main
func (h *Handler) HandleGetMainPlan(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.CalculateMainPlan(portfolioID(r))
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to calculate main plan")
		response := map[string]interface{}{
			"data": nil,
			"metadata": map[string]interface{}{
				"timestamp": time.Now().Format(time.RFC3339),
				"note":      err.Error(),
			},
		}
		h.writeJSON(w, http.StatusOK, response)
		return
	}

	h.writeResult(w, result)
}

// HandleGetPlan handles GET /api/rebalance/plans/{id}
func (h *Handler) HandleGetPlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "id")

	plan, err := h.service.GetPlan(planID)
	if err != nil {
		h.log.Error().Err(err).Str("plan_id", planID).Msg("Failed to get plan")
		http.Error(w, "Failed to get plan", http.StatusInternalServerError)
		return
	}
	if plan == nil {
		http.Error(w, "Plan not found", http.StatusNotFound)
		return
	}

	h.writePlan(w, http.StatusOK, plan)
}

// HandleUpdatePlan handles PATCH /api/rebalance/plans/{id}
func (h *Handler) HandleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "id")

	var req UpdatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	update := rebalance.PlanUpdate{
		Name:           req.Name,
		Description:    req.Description,
		StrategyPrompt: req.StrategyPrompt,
		IsMain:         req.IsMain,
	}

	if err := h.service.UpdatePlan(planID, update); err != nil {
		h.log.Error().Err(err).Str("plan_id", planID).Msg("Failed to update plan")
		http.Error(w, "Failed to update plan", http.StatusInternalServerError)
		return
	}

	plan, err := h.service.GetPlan(planID)
	if err != nil || plan == nil {
		http.Error(w, "Plan not found", http.StatusNotFound)
		return
	}

	h.writePlan(w, http.StatusOK, plan)
}

// HandleDeletePlan handles DELETE /api/rebalance/plans/{id}
func (h *Handler) HandleDeletePlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "id")

	if err := h.service.DeletePlan(planID); err != nil {
		h.log.Error().Err(err).Str("plan_id", planID).Msg("Failed to delete plan")
		http.Error(w, "Failed to delete plan", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"deleted": true,
			"plan_id": planID,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleSetMainPlan handles POST /api/rebalance/plans/{id}/main
func (h *Handler) HandleSetMainPlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "id")

	if err := h.service.SetMainPlan(planID); err != nil {
		h.log.Error().Err(err).Str("plan_id", planID).Msg("Failed to set main plan")
		http.Error(w, "Failed to set main plan", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"plan_id": planID,
			"is_main": true,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleSaveAllocations handles PUT /api/rebalance/plans/{id}/allocations
func (h *Handler) HandleSaveAllocations(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "id")

	var req SaveAllocationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.SaveAllocations(planID, req.Allocations); err != nil {
		h.writeSaveError(w, planID, err, "allocations")
		return
	}

	plan, err := h.service.GetPlan(planID)
	if err != nil || plan == nil {
		http.Error(w, "Plan not found", http.StatusNotFound)
		return
	}

	h.writePlan(w, http.StatusOK, plan)
}

// HandleSaveGroups handles PUT /api/rebalance/plans/{id}/groups
func (h *Handler) HandleSaveGroups(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "id")

	var req SaveGroupsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.SaveGroups(planID, req.Groups); err != nil {
		h.writeSaveError(w, planID, err, "groups")
		return
	}

	plan, err := h.service.GetPlan(planID)
	if err != nil || plan == nil {
		http.Error(w, "Plan not found", http.StatusNotFound)
		return
	}

	h.writePlan(w, http.StatusOK, plan)
}

// HandleCalculate handles POST /api/rebalance/plans/{id}/calculate
func (h *Handler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "id")

	result, err := h.service.CalculatePlan(planID)
	if err != nil {
		h.log.Error().Err(err).Str("plan_id", planID).Msg("Failed to calculate plan")
		http.Error(w, "Failed to calculate plan", http.StatusInternalServerError)
		return
	}

	h.writeResult(w, result)
}

// HandleEqualDistribution handles GET /api/rebalance/plans/{id}/equal-distribution
func (h *Handler) HandleEqualDistribution(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "id")

	proposal, err := h.service.ProposeEqualDistribution(planID)
	if err != nil {
		h.log.Error().Err(err).Str("plan_id", planID).Msg("Failed to propose equal distribution")
		http.Error(w, "Failed to propose equal distribution", http.StatusInternalServerError)
		return
	}

	h.writeProposal(w, proposal)
}

// HandleCurrentRatios handles GET /api/rebalance/plans/{id}/current-ratios
func (h *Handler) HandleCurrentRatios(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "id")

	proposal, err := h.service.ProposeCurrentRatios(planID)
	if err != nil {
		h.log.Error().Err(err).Str("plan_id", planID).Msg("Failed to propose current ratios")
		http.Error(w, "Failed to propose current ratios", http.StatusInternalServerError)
		return
	}

	h.writeProposal(w, proposal)
}

// writeSaveError distinguishes invalid target sums (client error with the
// offending total) from storage failures.
func (h *Handler) writeSaveError(w http.ResponseWriter, planID string, err error, what string) {
	var invalidSum *rebalance.InvalidTargetSumError
	if errors.As(err, &invalidSum) {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error": map[string]interface{}{
				"message": invalidSum.Error(),
				"code":    "INVALID_TARGET_SUM",
				"details": map[string]interface{}{
					"total": invalidSum.Total,
				},
			},
		})
		return
	}

	h.log.Error().Err(err).Str("plan_id", planID).Msgf("Failed to save %s", what)
	http.Error(w, "Failed to save "+what, http.StatusInternalServerError)
}

func (h *Handler) writePlan(w http.ResponseWriter, status int, plan *rebalance.Plan) {
	response := map[string]interface{}{
		"data": map[string]interface{}{
			"plan": plan,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, status, response)
}

func (h *Handler) writeResult(w http.ResponseWriter, result *rebalance.Result) {
	response := map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"timestamp":      time.Now().Format(time.RFC3339),
			"hold_threshold": rebalance.HoldThreshold,
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handler) writeProposal(w http.ResponseWriter, proposal *rebalance.TargetProposal) {
	response := map[string]interface{}{
		"data": proposal,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// portfolioID extracts the portfolio scope from the query string,
// defaulting to the single-user portfolio.
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
