package rebalance

import (
	"math"

	"github.com/meowney/meowney/internal/domain"
)

// ToBaseCurrency converts a holding's native-currency market value into
// the base currency named by rate.To. Holdings already in the base
// currency pass through unchanged; holdings in rate.From are multiplied
// by rate.Rate. An unpriced holding (nil or NaN market value) contributes
// zero so one bad price never aborts a whole computation. Currencies
// outside {rate.To, rate.From} pass through unconverted; KRW and USD are
// the only supported currencies today.
func ToBaseCurrency(h domain.Holding, rate domain.ExchangeRate) float64 {
	value := 0.0
	if h.MarketValue != nil && !math.IsNaN(*h.MarketValue) {
		value = *h.MarketValue
	}

	if h.Currency == "" || h.Currency == rate.To {
		return value
	}
	if h.Currency == rate.From {
		return value * rate.Rate
	}
	return value
}

// ValidateTargets checks whether the configured targets form a valid 100%
// allocation. The check is advisory for suggestion display but mandatory
// before a plan is persisted.
func ValidateTargets(items []AllocationItem, groups []AllocationGroup) TargetValidation {
	total := 0.0
	for _, item := range items {
		total += item.TargetPercentage
	}
	for _, group := range groups {
		total += group.TargetPercentage
	}

	return TargetValidation{
		Total:   total,
		IsValid: math.Abs(total-100) < SumTolerance,
	}
}

// ComputeRebalance computes deviation and suggested trade amounts for a
// set of entries against a total portfolio value. Entries are independent;
// no cross-entry normalization is performed. When targets sum to exactly
// 100% and totalValue > 0, the suggested amounts sum to zero up to
// floating error.
//
// totalValue <= 0 yields current_percentage = 0 for every entry rather
// than NaN; the arithmetic otherwise applies unchanged. Target
// percentages are not range-checked here (see ValidateTargets).
func ComputeRebalance(entries []Entry, totalValue float64) []Suggestion {
	suggestions := make([]Suggestion, 0, len(entries))

	for _, e := range entries {
		currentPct := 0.0
		if totalValue > 0 {
			currentPct = e.CurrentValue / totalValue * 100
		}

		suggestions = append(suggestions, Suggestion{
			Name:                 e.Name,
			CurrentValue:         e.CurrentValue,
			CurrentPercentage:    currentPct,
			TargetPercentage:     e.TargetPercentage,
			DifferencePercentage: e.TargetPercentage - currentPct,
			SuggestedAmount:      e.TargetPercentage/100*totalValue - e.CurrentValue,
		})
	}

	return suggestions
}

// GroupValue is the aggregate of a group's resolved member values.
type GroupValue struct {
	GroupValue   float64
	MemberValues map[string]float64 // keyed by group item id
}

// AggregateGroup computes a group's current value as the sum of its
// resolved members' base-currency values. Unmatched or unpriced members
// contribute zero. Pure: identical inputs yield identical outputs.
func AggregateGroup(group AllocationGroup, holdings []domain.Holding, rate domain.ExchangeRate) GroupValue {
	result := GroupValue{
		MemberValues: make(map[string]float64, len(group.Items)),
	}

	for _, item := range group.Items {
		value := 0.0
		if holding, ok := Resolve(item.Ref(), holdings); ok {
			value = ToBaseCurrency(*holding, rate)
		}
		result.MemberValues[item.ID] = value
		result.GroupValue += value
	}

	return result
}

// EqualDistribution returns the per-entry target percentage that splits
// 100% across n entries at one-decimal precision. The sum may land at
// 99.9 or 100.2 when n does not divide evenly; the residual is left for
// the validator to flag rather than silently patched onto one entry.
func EqualDistribution(n int) float64 {
	if n <= 0 {
		return 0
	}
	return round(100/float64(n), 1)
}

// CurrentRatio returns a value's share of the total as a one-decimal
// percentage, used to snapshot today's allocation as the new target.
func CurrentRatio(currentValue, totalValue float64) float64 {
	if totalValue <= 0 {
		return 0
	}
	return round(currentValue/totalValue*100, 1)
}

// round rounds a float64 to n decimal places
func round(val float64, decimals int) float64 {
	multiplier := math.Pow(10, float64(decimals))
	return math.Round(val*multiplier) / multiplier
}
