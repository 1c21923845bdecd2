package rebalance

import (
	"strings"

	"github.com/meowney/meowney/internal/domain"
)

// Resolve finds at most one holding for a plan line, using a deterministic
// priority order: asset id, then ticker, then alias. Malformed refs with
// several discriminants set still resolve in that order.
//
// Ticker matching is case-insensitive and exact (no partial tickers); if
// no holding carries the ticker, a holding whose name equals the ticker
// text matches instead - users sometimes type a name into the ticker
// field. Alias matching is case-insensitive bidirectional substring
// containment, so a partial name like "금현물" links to "KRX금현물ETF".
//
// When several holdings match, the first in provider-supplied order wins.
// An unmatched ref returns (nil, false); it is never an error.
func Resolve(ref MatchRef, holdings []domain.Holding) (*domain.Holding, bool) {
	if ref.AssetID != "" {
		for i := range holdings {
			if holdings[i].ID == ref.AssetID {
				return &holdings[i], true
			}
		}
		// Explicit binding to a holding that no longer exists: unmatched.
		return nil, false
	}

	if ref.Ticker != "" {
		for i := range holdings {
			if holdings[i].Ticker != "" && strings.EqualFold(holdings[i].Ticker, ref.Ticker) {
				return &holdings[i], true
			}
		}
		for i := range holdings {
			if holdings[i].Name == ref.Ticker {
				return &holdings[i], true
			}
		}
		return nil, false
	}

	if ref.Alias != "" {
		alias := strings.ToLower(ref.Alias)
		for i := range holdings {
			name := strings.ToLower(holdings[i].Name)
			if name == "" {
				continue
			}
			if strings.Contains(name, alias) || strings.Contains(alias, name) {
				return &holdings[i], true
			}
		}
		return nil, false
	}

	return nil, false
}
