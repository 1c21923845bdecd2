// Package analytics computes return and risk statistics over portfolio
// history snapshots.
package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization factor for daily volatility.
const TradingDaysPerYear = 252

// Stats summarizes a portfolio value series. Percentages are in
// percentage points.
type Stats struct {
	StartDate            string  `json:"start_date,omitempty"`
	EndDate              string  `json:"end_date,omitempty"`
	DataPoints           int     `json:"data_points"`
	StartValue           float64 `json:"start_value"`
	EndValue             float64 `json:"end_value"`
	CumulativeReturn     float64 `json:"cumulative_return"`
	MeanDailyReturn      float64 `json:"mean_daily_return"`
	DailyReturnStdDev    float64 `json:"daily_return_std_dev"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	MaxDrawdown          float64 `json:"max_drawdown"`
}

// dailyReturns computes simple returns between consecutive values.
// Pairs with a non-positive base are skipped so a zero-valued snapshot
// never produces Inf.
func dailyReturns(values []float64) []float64 {
	var returns []float64
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 {
			continue
		}
		returns = append(returns, values[i]/values[i-1]-1)
	}
	return returns
}

// maxDrawdown returns the largest peak-to-trough decline as a positive
// fraction (0.25 = 25% drawdown).
func maxDrawdown(values []float64) float64 {
	peak := math.Inf(-1)
	worst := 0.0

	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			drawdown := (peak - v) / peak
			if drawdown > worst {
				worst = drawdown
			}
		}
	}

	return worst
}

// Compute derives statistics from an ordered value series. Fewer than two
// usable points yields a zeroed Stats with just the endpoints filled in.
func Compute(dates []string, values []float64) Stats {
	stats := Stats{DataPoints: len(values)}
	if len(values) == 0 {
		return stats
	}

	stats.StartValue = values[0]
	stats.EndValue = values[len(values)-1]
	if len(dates) == len(values) {
		stats.StartDate = dates[0]
		stats.EndDate = dates[len(dates)-1]
	}

	if stats.StartValue > 0 {
		stats.CumulativeReturn = (stats.EndValue/stats.StartValue - 1) * 100
	}

	returns := dailyReturns(values)
	if len(returns) > 0 {
		stats.MeanDailyReturn = stat.Mean(returns, nil) * 100
	}
	if len(returns) > 1 {
		std := stat.StdDev(returns, nil)
		stats.DailyReturnStdDev = std * 100
		stats.AnnualizedVolatility = std * math.Sqrt(TradingDaysPerYear) * 100
	}

	stats.MaxDrawdown = maxDrawdown(values) * 100

	return stats
}
