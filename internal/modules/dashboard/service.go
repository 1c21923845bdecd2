package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/meowney/meowney/internal/modules/portfolio"
	"github.com/meowney/meowney/internal/modules/rebalance"
)

// AssetProvider supplies enriched assets and categories.
type AssetProvider interface {
	GetEnrichedAssets(portfolioID string) ([]portfolio.EnrichedAsset, error)
	GetCategories() ([]portfolio.Category, error)
}

// MainPlanProvider supplies the portfolio's main rebalancing plan.
type MainPlanProvider interface {
	GetMainPlan(portfolioID string) (*rebalance.Plan, error)
}

// Service builds dashboard summaries and daily snapshots.
type Service struct {
	assets   AssetProvider
	mainPlan MainPlanProvider
	history  *HistoryRepository
	log      zerolog.Logger
}

// NewService creates a new dashboard service
func NewService(
	assets AssetProvider,
	mainPlan MainPlanProvider,
	history *HistoryRepository,
	log zerolog.Logger,
) *Service {
	return &Service{
		assets:   assets,
		mainPlan: mainPlan,
		history:  history,
		log:      log.With().Str("service", "dashboard").Logger(),
	}
}

// GetSummary computes the dashboard overview: totals plus the per-category
// allocation, with target percentages from the main plan where a plan
// entry's name matches a category.
func (s *Service) GetSummary(portfolioID string) (*Summary, error) {
	if s.assets == nil {
		return nil, fmt.Errorf("asset provider not available")
	}

	assets, err := s.assets.GetEnrichedAssets(portfolioID)
	if err != nil {
		return nil, err
	}

	categories, err := s.assets.GetCategories()
	if err != nil {
		return nil, err
	}

	summary := &Summary{AssetCount: len(assets)}

	categoryValues := make(map[string]float64)
	for _, asset := range assets {
		summary.TotalValue += asset.MarketValue
		summary.TotalPrincipal += asset.Principal
		categoryValues[asset.CategoryID] += asset.MarketValue
	}

	summary.TotalProfit = summary.TotalValue - summary.TotalPrincipal
	if summary.TotalPrincipal > 0 {
		summary.ProfitRate = summary.TotalProfit / summary.TotalPrincipal * 100
	}

	targets := s.mainPlanTargets(portfolioID)

	for _, category := range categories {
		value := categoryValues[category.ID]
		allocation := CategoryAllocation{
			CategoryID: category.ID,
			Name:       category.Name,
			Color:      category.Color,
			Value:      value,
		}
		if summary.TotalValue > 0 {
			allocation.Percentage = value / summary.TotalValue * 100
		}
		if target, ok := targets[strings.ToLower(category.Name)]; ok {
			allocation.TargetPercentage = &target
		}
		summary.Categories = append(summary.Categories, allocation)
		delete(categoryValues, category.ID)
	}

	// Assets without a category roll into one residual slice.
	if value, ok := categoryValues[""]; ok && value > 0 {
		allocation := CategoryAllocation{Name: "Uncategorized", Value: value}
		if summary.TotalValue > 0 {
			allocation.Percentage = value / summary.TotalValue * 100
		}
		summary.Categories = append(summary.Categories, allocation)
	}

	return summary, nil
}

// mainPlanTargets maps lowercase plan entry names to target percentages.
// Groups and display-named items both participate.
func (s *Service) mainPlanTargets(portfolioID string) map[string]float64 {
	if s.mainPlan == nil {
		return nil
	}

	plan, err := s.mainPlan.GetMainPlan(portfolioID)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to load main plan for dashboard targets")
		return nil
	}
	if plan == nil {
		return nil
	}

	targets := make(map[string]float64)
	for _, group := range plan.Groups {
		if group.Name != "" {
			targets[strings.ToLower(group.Name)] = group.TargetPercentage
		}
	}
	for _, item := range plan.Allocations {
		if item.DisplayName != "" {
			targets[strings.ToLower(item.DisplayName)] = item.TargetPercentage
		}
	}
	return targets
}

// GetHistory returns daily snapshots for the requested window.
func (s *Service) GetHistory(portfolioID string, days int) ([]Snapshot, error) {
	if s.history == nil {
		return nil, fmt.Errorf("history repository not available")
	}
	return s.history.GetHistory(portfolioID, days)
}

// TakeSnapshot records today's totals. Called by the daily cron job and
// safe to re-run: same-day snapshots overwrite.
func (s *Service) TakeSnapshot(portfolioID string) (*Snapshot, error) {
	if s.history == nil {
		return nil, fmt.Errorf("history repository not available")
	}

	summary, err := s.GetSummary(portfolioID)
	if err != nil {
		return nil, err
	}

	breakdown := make(map[string]float64, len(summary.Categories))
	for _, c := range summary.Categories {
		breakdown[c.Name] = c.Value
	}

	snapshot := &Snapshot{
		PortfolioID:       portfolioID,
		SnapshotDate:      time.Now().Format("2006-01-02"),
		TotalValue:        summary.TotalValue,
		TotalPrincipal:    summary.TotalPrincipal,
		TotalProfit:       summary.TotalProfit,
		ProfitRate:        summary.ProfitRate,
		CategoryBreakdown: breakdown,
	}

	if err := s.history.Upsert(snapshot); err != nil {
		return nil, err
	}

	return snapshot, nil
}
