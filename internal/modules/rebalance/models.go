// Package rebalance implements the allocation engine: matching plan lines
// to holdings, aggregating group values, validating target weights and
// computing deviation / suggested-trade amounts.
package rebalance

import (
	"math"
	"time"
)

// Policy constants. These encode product decisions carried over from the
// original UI, not mathematical necessities.
const (
	// SumTolerance is the band within which a target set counts as a
	// valid 100% allocation (absorbs one-decimal UI rounding).
	SumTolerance = 0.1

	// HoldThreshold is the absolute deviation (in percentage points)
	// below which a suggestion is presented as "hold" rather than an
	// actionable trade. The engine still returns the exact amount.
	HoldThreshold = 0.5
)

// MatchKind discriminates how a plan line binds to a holding.
type MatchKind int

const (
	// MatchNone means no discriminant is set.
	MatchNone MatchKind = iota
	// MatchByID binds to one specific holding by its stable identifier.
	MatchByID
	// MatchByTicker binds to any holding sharing a ticker symbol.
	MatchByTicker
	// MatchByAlias binds by fuzzy name containment.
	MatchByAlias
)

// MatchBy is a tagged union of the three match discriminants. Constructing
// items through it guarantees exactly one discriminant is set.
type MatchBy struct {
	kind  MatchKind
	value string
}

// ByID creates a match-by-identifier discriminant.
func ByID(assetID string) MatchBy { return MatchBy{kind: MatchByID, value: assetID} }

// ByTicker creates a match-by-ticker discriminant.
func ByTicker(ticker string) MatchBy { return MatchBy{kind: MatchByTicker, value: ticker} }

// ByAlias creates a match-by-alias discriminant.
func ByAlias(alias string) MatchBy { return MatchBy{kind: MatchByAlias, value: alias} }

// Kind returns the discriminant kind.
func (m MatchBy) Kind() MatchKind { return m.kind }

// Value returns the discriminant value.
func (m MatchBy) Value() string { return m.value }

// MatchRef is the resolver's view of a plan line. Rows loaded from storage
// may be malformed (several discriminants set); Resolve enforces the
// id > ticker > alias priority regardless.
type MatchRef struct {
	AssetID string
	Ticker  string
	Alias   string
}

// AllocationItem is a single line in a rebalancing plan: one match
// discriminant plus a target percentage.
type AllocationItem struct {
	ID               string  `json:"id"`
	AssetID          string  `json:"asset_id,omitempty"`
	Ticker           string  `json:"ticker,omitempty"`
	Alias            string  `json:"alias,omitempty"`
	DisplayName      string  `json:"display_name,omitempty"`
	TargetPercentage float64 `json:"target_percentage"`
	DisplayOrder     int     `json:"display_order"`
}

// NewAllocationItem creates an item with exactly one discriminant set.
func NewAllocationItem(match MatchBy, targetPercentage float64) AllocationItem {
	item := AllocationItem{TargetPercentage: targetPercentage}
	switch match.kind {
	case MatchByID:
		item.AssetID = match.value
	case MatchByTicker:
		item.Ticker = match.value
	case MatchByAlias:
		item.Alias = match.value
	}
	return item
}

// Ref returns the item's match reference.
func (it AllocationItem) Ref() MatchRef {
	return MatchRef{AssetID: it.AssetID, Ticker: it.Ticker, Alias: it.Alias}
}

// GroupItem is a membership entry of an allocation group. Membership is a
// plain list: group items carry no individual target weight.
type GroupItem struct {
	ID      string `json:"id"`
	AssetID string `json:"asset_id,omitempty"`
	Ticker  string `json:"ticker,omitempty"`
	Alias   string `json:"alias,omitempty"`
}

// NewGroupItem creates a group member with exactly one discriminant set.
func NewGroupItem(match MatchBy) GroupItem {
	item := GroupItem{}
	switch match.kind {
	case MatchByID:
		item.AssetID = match.value
	case MatchByTicker:
		item.Ticker = match.value
	case MatchByAlias:
		item.Alias = match.value
	}
	return item
}

// Ref returns the member's match reference.
func (gi GroupItem) Ref() MatchRef {
	return MatchRef{AssetID: gi.AssetID, Ticker: gi.Ticker, Alias: gi.Alias}
}

// AllocationGroup is a named bundle of holdings sharing one target
// percentage. Members are not double-counted across groups by convention;
// that constraint belongs to the plan author and is not enforced here.
type AllocationGroup struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	TargetPercentage float64     `json:"target_percentage"`
	DisplayOrder     int         `json:"display_order"`
	Items            []GroupItem `json:"items"`
}

// Plan is a rebalancing plan: ordered allocation items and groups plus
// metadata. Exactly one plan per portfolio may be the main plan.
type Plan struct {
	ID             string            `json:"id"`
	PortfolioID    string            `json:"portfolio_id"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	StrategyPrompt string            `json:"strategy_prompt,omitempty"`
	IsMain         bool              `json:"is_main"`
	IsActive       bool              `json:"is_active"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Allocations    []AllocationItem  `json:"allocations"`
	Groups         []AllocationGroup `json:"groups"`
}

// TargetValidation is the outcome of checking a plan's target weights.
type TargetValidation struct {
	Total   float64 `json:"total"`
	IsValid bool    `json:"is_valid"`
}

// Entry is one row fed to ComputeRebalance: a display name, a current
// value in base currency and a target percentage.
type Entry struct {
	Name             string
	CurrentValue     float64
	TargetPercentage float64
}

// Suggestion is the engine output for a single allocation item.
// SuggestedAmount is in base currency: positive = buy, negative = sell.
type Suggestion struct {
	AssetID              string   `json:"asset_id,omitempty"`
	Name                 string   `json:"name"`
	Ticker               string   `json:"ticker,omitempty"`
	Alias                string   `json:"alias,omitempty"`
	CurrentValue         float64  `json:"current_value"`
	CurrentPercentage    float64  `json:"current_percentage"`
	TargetPercentage     float64  `json:"target_percentage"`
	DifferencePercentage float64  `json:"difference_percentage"`
	SuggestedAmount      float64  `json:"suggested_amount"`
	SuggestedQuantity    *float64 `json:"suggested_quantity,omitempty"`
	IsMatched            bool     `json:"is_matched"`
}

// IsHold reports whether the deviation is below the actionable threshold.
// Presentation policy only: the exact SuggestedAmount is always populated.
func (s Suggestion) IsHold() bool {
	return math.Abs(s.DifferencePercentage) < HoldThreshold
}

// GroupMemberDetail is the per-member breakdown of a group suggestion.
type GroupMemberDetail struct {
	ItemID       string  `json:"item_id"`
	AssetID      string  `json:"asset_id,omitempty"`
	AssetName    string  `json:"asset_name,omitempty"`
	Ticker       string  `json:"ticker,omitempty"`
	Alias        string  `json:"alias,omitempty"`
	CurrentValue float64 `json:"current_value"`
	IsMatched    bool    `json:"is_matched"`
}

// GroupSuggestion is the engine output for an allocation group.
type GroupSuggestion struct {
	GroupID              string              `json:"group_id"`
	GroupName            string              `json:"group_name"`
	CurrentValue         float64             `json:"current_value"`
	CurrentPercentage    float64             `json:"current_percentage"`
	TargetPercentage     float64             `json:"target_percentage"`
	DifferencePercentage float64             `json:"difference_percentage"`
	TargetValue          float64             `json:"target_value"`
	SuggestedAmount      float64             `json:"suggested_amount"`
	Items                []GroupMemberDetail `json:"items"`
}

// Result is the full output of a plan calculation.
type Result struct {
	PlanID           string            `json:"plan_id"`
	PlanName         string            `json:"plan_name"`
	TotalValue       float64           `json:"total_value"`
	Validation       TargetValidation  `json:"validation"`
	Suggestions      []Suggestion      `json:"suggestions"`
	GroupSuggestions []GroupSuggestion `json:"group_suggestions"`
}
