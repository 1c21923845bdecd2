// Package dashboard aggregates portfolio totals and daily history
// snapshots for the overview UI.
package dashboard

import "time"

// CategoryAllocation is one slice of the dashboard allocation chart.
type CategoryAllocation struct {
	CategoryID       string   `json:"category_id,omitempty"`
	Name             string   `json:"name"`
	Color            string   `json:"color,omitempty"`
	Value            float64  `json:"value"`
	Percentage       float64  `json:"percentage"`
	TargetPercentage *float64 `json:"target_percentage,omitempty"`
}

// Summary is the dashboard overview payload. Values are in base currency.
type Summary struct {
	TotalValue     float64              `json:"total_value"`
	TotalPrincipal float64              `json:"total_principal"`
	TotalProfit    float64              `json:"total_profit"`
	ProfitRate     float64              `json:"profit_rate"`
	AssetCount     int                  `json:"asset_count"`
	Categories     []CategoryAllocation `json:"categories"`
}

// Snapshot is one daily record of portfolio totals.
type Snapshot struct {
	ID                string             `json:"id"`
	PortfolioID       string             `json:"portfolio_id"`
	SnapshotDate      string             `json:"snapshot_date"` // YYYY-MM-DD
	TotalValue        float64            `json:"total_value"`
	TotalPrincipal    float64            `json:"total_principal"`
	TotalProfit       float64            `json:"total_profit"`
	ProfitRate        float64            `json:"profit_rate"`
	CategoryBreakdown map[string]float64 `json:"category_breakdown,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}
