package rebalance

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meowney/meowney/internal/domain"
)

// HoldingsProvider supplies the current holdings snapshot for a portfolio.
type HoldingsProvider interface {
	Holdings(portfolioID string) ([]domain.Holding, error)
}

// RateProvider supplies exchange rates for currency normalization.
type RateProvider interface {
	GetRate(fromCurrency, toCurrency string) (domain.ExchangeRate, error)
}

// InvalidTargetSumError is returned when a plan's targets are persisted
// with a total that is not 100% within tolerance.
type InvalidTargetSumError struct {
	Total float64
}

func (e *InvalidTargetSumError) Error() string {
	return fmt.Sprintf("target percentages total %.2f%%, expected 100%%", e.Total)
}

// Service orchestrates plan management and rebalancing calculations.
type Service struct {
	planRepo     *PlanRepository
	holdings     HoldingsProvider
	rates        RateProvider
	baseCurrency string
	log          zerolog.Logger
}

// NewService creates a new rebalance service
func NewService(
	planRepo *PlanRepository,
	holdings HoldingsProvider,
	rates RateProvider,
	baseCurrency string,
	log zerolog.Logger,
) *Service {
	return &Service{
		planRepo:     planRepo,
		holdings:     holdings,
		rates:        rates,
		baseCurrency: baseCurrency,
		log:          log.With().Str("service", "rebalance").Logger(),
	}
}

// GetPlans returns all active plans for a portfolio.
func (s *Service) GetPlans(portfolioID string) ([]Plan, error) {
	if s.planRepo == nil {
		return nil, fmt.Errorf("plan repository not available")
	}
	return s.planRepo.GetPlans(portfolioID)
}

// GetPlan returns a single plan, or (nil, nil) if it does not exist.
func (s *Service) GetPlan(planID string) (*Plan, error) {
	if s.planRepo == nil {
		return nil, fmt.Errorf("plan repository not available")
	}
	return s.planRepo.GetPlan(planID)
}

// CreatePlan creates a new plan. Targets are not gated at creation time so
// users can build a plan incrementally; SaveAllocations enforces the sum.
func (s *Service) CreatePlan(plan *Plan) error {
	if s.planRepo == nil {
		return fmt.Errorf("plan repository not available")
	}
	if plan.Name == "" {
		return fmt.Errorf("plan name is required")
	}
	return s.planRepo.CreatePlan(plan)
}

// UpdatePlan applies a partial metadata update.
func (s *Service) UpdatePlan(planID string, update PlanUpdate) error {
	if s.planRepo == nil {
		return fmt.Errorf("plan repository not available")
	}
	return s.planRepo.UpdatePlan(planID, update)
}

// DeletePlan soft-deletes a plan.
func (s *Service) DeletePlan(planID string) error {
	if s.planRepo == nil {
		return fmt.Errorf("plan repository not available")
	}
	return s.planRepo.SoftDeletePlan(planID)
}

// SetMainPlan marks a plan as the portfolio's main plan.
func (s *Service) SetMainPlan(planID string) error {
	if s.planRepo == nil {
		return fmt.Errorf("plan repository not available")
	}
	return s.planRepo.SetMain(planID)
}

// SaveAllocations replaces a plan's allocation items after validating that
// the new items plus the plan's existing groups total 100%.
func (s *Service) SaveAllocations(planID string, items []AllocationItem) error {
	if s.planRepo == nil {
		return fmt.Errorf("plan repository not available")
	}

	plan, err := s.planRepo.GetPlan(planID)
	if err != nil {
		return err
	}
	if plan == nil {
		return fmt.Errorf("plan not found: %s", planID)
	}

	validation := ValidateTargets(items, plan.Groups)
	if !validation.IsValid {
		return &InvalidTargetSumError{Total: validation.Total}
	}

	return s.planRepo.ReplaceAllocations(planID, items)
}

// SaveGroups replaces a plan's allocation groups after validating that the
// new groups plus the plan's existing items total 100%.
func (s *Service) SaveGroups(planID string, groups []AllocationGroup) error {
	if s.planRepo == nil {
		return fmt.Errorf("plan repository not available")
	}

	plan, err := s.planRepo.GetPlan(planID)
	if err != nil {
		return err
	}
	if plan == nil {
		return fmt.Errorf("plan not found: %s", planID)
	}

	validation := ValidateTargets(plan.Allocations, groups)
	if !validation.IsValid {
		return &InvalidTargetSumError{Total: validation.Total}
	}

	return s.planRepo.ReplaceGroups(planID, groups)
}

// TargetProposal is a non-persisted set of proposed target percentages.
// Callers review and save through SaveAllocations / SaveGroups, which
// re-validate the sum.
type TargetProposal struct {
	Allocations []AllocationItem  `json:"allocations"`
	Groups      []AllocationGroup `json:"groups"`
	Validation  TargetValidation  `json:"validation"`
}

// ProposeEqualDistribution returns the plan's targets reset to an equal
// split across all items and groups. One-decimal rounding means the sum
// can miss 100% (e.g. 3 entries at 33.3%); the proposal carries its own
// validation result so callers can surface the residual.
func (s *Service) ProposeEqualDistribution(planID string) (*TargetProposal, error) {
	if s.planRepo == nil {
		return nil, fmt.Errorf("plan repository not available")
	}

	plan, err := s.planRepo.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("plan not found: %s", planID)
	}

	share := EqualDistribution(len(plan.Allocations) + len(plan.Groups))

	proposal := &TargetProposal{
		Allocations: make([]AllocationItem, len(plan.Allocations)),
		Groups:      make([]AllocationGroup, len(plan.Groups)),
	}
	copy(proposal.Allocations, plan.Allocations)
	copy(proposal.Groups, plan.Groups)

	for i := range proposal.Allocations {
		proposal.Allocations[i].TargetPercentage = share
	}
	for i := range proposal.Groups {
		proposal.Groups[i].TargetPercentage = share
	}

	proposal.Validation = ValidateTargets(proposal.Allocations, proposal.Groups)
	return proposal, nil
}

// ProposeCurrentRatios returns the plan's targets reset to each entry's
// current share of the portfolio, locking in today's allocation.
func (s *Service) ProposeCurrentRatios(planID string) (*TargetProposal, error) {
	if s.planRepo == nil {
		return nil, fmt.Errorf("plan repository not available")
	}
	if s.holdings == nil {
		return nil, fmt.Errorf("holdings provider not available")
	}

	plan, err := s.planRepo.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("plan not found: %s", planID)
	}

	holdings, err := s.holdings.Holdings(plan.PortfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}

	rate := s.usdRate()

	totalValue := 0.0
	for _, h := range holdings {
		totalValue += ToBaseCurrency(h, rate)
	}

	proposal := &TargetProposal{
		Allocations: make([]AllocationItem, len(plan.Allocations)),
		Groups:      make([]AllocationGroup, len(plan.Groups)),
	}
	copy(proposal.Allocations, plan.Allocations)
	copy(proposal.Groups, plan.Groups)

	for i := range proposal.Allocations {
		currentValue := 0.0
		if holding, ok := Resolve(proposal.Allocations[i].Ref(), holdings); ok {
			currentValue = ToBaseCurrency(*holding, rate)
		}
		proposal.Allocations[i].TargetPercentage = CurrentRatio(currentValue, totalValue)
	}
	for i := range proposal.Groups {
		aggregate := AggregateGroup(proposal.Groups[i], holdings, rate)
		proposal.Groups[i].TargetPercentage = CurrentRatio(aggregate.GroupValue, totalValue)
	}

	proposal.Validation = ValidateTargets(proposal.Allocations, proposal.Groups)
	return proposal, nil
}

// CalculatePlan computes rebalancing suggestions for a plan against the
// current holdings snapshot. A rate fetch failure degrades foreign-currency
// values to zero instead of failing the whole calculation.
func (s *Service) CalculatePlan(planID string) (*Result, error) {
	if s.planRepo == nil {
		return nil, fmt.Errorf("plan repository not available")
	}
	if s.holdings == nil {
		return nil, fmt.Errorf("holdings provider not available")
	}

	plan, err := s.planRepo.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("plan not found: %s", planID)
	}

	return s.calculate(plan)
}

// CalculateMainPlan computes suggestions for the portfolio's main plan.
func (s *Service) CalculateMainPlan(portfolioID string) (*Result, error) {
	if s.planRepo == nil {
		return nil, fmt.Errorf("plan repository not available")
	}
	if s.holdings == nil {
		return nil, fmt.Errorf("holdings provider not available")
	}

	plan, err := s.planRepo.GetMainPlan(portfolioID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("no main plan set for portfolio %s", portfolioID)
	}

	return s.calculate(plan)
}

func (s *Service) calculate(plan *Plan) (*Result, error) {
	holdings, err := s.holdings.Holdings(plan.PortfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}

	rate := s.usdRate()

	totalValue := 0.0
	for _, h := range holdings {
		totalValue += ToBaseCurrency(h, rate)
	}

	result := &Result{
		PlanID:           plan.ID,
		PlanName:         plan.Name,
		TotalValue:       totalValue,
		Validation:       ValidateTargets(plan.Allocations, plan.Groups),
		Suggestions:      make([]Suggestion, 0, len(plan.Allocations)),
		GroupSuggestions: make([]GroupSuggestion, 0, len(plan.Groups)),
	}

	for _, item := range plan.Allocations {
		result.Suggestions = append(result.Suggestions, s.itemSuggestion(item, holdings, rate, totalValue))
	}

	for _, group := range plan.Groups {
		result.GroupSuggestions = append(result.GroupSuggestions, s.groupSuggestion(group, holdings, rate, totalValue))
	}

	s.log.Debug().
		Str("plan_id", plan.ID).
		Float64("total_value", totalValue).
		Int("suggestions", len(result.Suggestions)).
		Int("group_suggestions", len(result.GroupSuggestions)).
		Msg("Plan calculated")

	return result, nil
}

// usdRate fetches the USD to base currency rate. On failure the rate
// degrades to zero so foreign holdings contribute nothing rather than
// aborting the calculation.
func (s *Service) usdRate() domain.ExchangeRate {
	degraded := domain.ExchangeRate{From: "USD", To: s.baseCurrency, Rate: 0}

	if s.rates == nil {
		return degraded
	}

	rate, err := s.rates.GetRate("USD", s.baseCurrency)
	if err != nil {
		s.log.Warn().Err(err).
			Str("base_currency", s.baseCurrency).
			Msg("Exchange rate unavailable, foreign holdings valued at zero")
		return degraded
	}

	return rate
}

func (s *Service) itemSuggestion(item AllocationItem, holdings []domain.Holding, rate domain.ExchangeRate, totalValue float64) Suggestion {
	holding, matched := Resolve(item.Ref(), holdings)

	currentValue := 0.0
	if matched {
		currentValue = ToBaseCurrency(*holding, rate)
	}

	base := ComputeRebalance([]Entry{{
		CurrentValue:     currentValue,
		TargetPercentage: item.TargetPercentage,
	}}, totalValue)[0]

	suggestion := Suggestion{
		Ticker:               item.Ticker,
		Alias:                item.Alias,
		CurrentValue:         currentValue,
		CurrentPercentage:    base.CurrentPercentage,
		TargetPercentage:     item.TargetPercentage,
		DifferencePercentage: base.DifferencePercentage,
		SuggestedAmount:      base.SuggestedAmount,
		IsMatched:            matched,
	}

	if matched {
		suggestion.AssetID = holding.ID
		if holding.Ticker != "" {
			suggestion.Ticker = holding.Ticker
		}
		suggestion.SuggestedQuantity = suggestedQuantity(base.SuggestedAmount, *holding, currentValue)
	}

	suggestion.Name = displayName(item, holding)
	return suggestion
}

func (s *Service) groupSuggestion(group AllocationGroup, holdings []domain.Holding, rate domain.ExchangeRate, totalValue float64) GroupSuggestion {
	aggregate := AggregateGroup(group, holdings, rate)

	base := ComputeRebalance([]Entry{{
		CurrentValue:     aggregate.GroupValue,
		TargetPercentage: group.TargetPercentage,
	}}, totalValue)[0]

	suggestion := GroupSuggestion{
		GroupID:              group.ID,
		GroupName:            group.Name,
		CurrentValue:         aggregate.GroupValue,
		CurrentPercentage:    base.CurrentPercentage,
		TargetPercentage:     group.TargetPercentage,
		DifferencePercentage: base.DifferencePercentage,
		TargetValue:          group.TargetPercentage / 100 * totalValue,
		SuggestedAmount:      base.SuggestedAmount,
		Items:                make([]GroupMemberDetail, 0, len(group.Items)),
	}

	for _, item := range group.Items {
		detail := GroupMemberDetail{
			ItemID:       item.ID,
			Ticker:       item.Ticker,
			Alias:        item.Alias,
			CurrentValue: aggregate.MemberValues[item.ID],
		}
		if holding, ok := Resolve(item.Ref(), holdings); ok {
			detail.AssetID = holding.ID
			detail.AssetName = holding.Name
			if holding.Ticker != "" {
				detail.Ticker = holding.Ticker
			}
			detail.IsMatched = true
		}
		suggestion.Items = append(suggestion.Items, detail)
	}

	return suggestion
}

// suggestedQuantity converts a suggested amount into units of the holding,
// priced at the holding's current base-currency unit value. Nil when the
// holding has no usable quantity or value.
func suggestedQuantity(suggestedAmount float64, holding domain.Holding, baseValue float64) *float64 {
	if holding.Quantity <= 0 || baseValue <= 0 {
		return nil
	}
	unitPrice := baseValue / holding.Quantity
	quantity := suggestedAmount / unitPrice
	return &quantity
}

// displayName picks the label for a suggestion row: an explicit display
// name wins, then the matched holding's name, then the configured ticker
// or alias, then a fallback for fully unlinked rows.
func displayName(item AllocationItem, holding *domain.Holding) string {
	if item.DisplayName != "" {
		return item.DisplayName
	}
	if holding != nil && holding.Name != "" {
		return holding.Name
	}
	if item.Ticker != "" {
		return item.Ticker
	}
	if item.Alias != "" {
		return item.Alias
	}
	return "unlinked"
}
