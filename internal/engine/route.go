package engine

import (
	"github.com/shopspring/decimal"

	"github.com/helioswap/dca-engine/internal/asset"
)

// Hop is one leg of an executor-submitted swap route. Routes arrive from
// untrusted third parties and are validated structurally before any value
// moves. Pool optionally pins the swap to a specific pool; Spread is the
// hop's declared spread, zero when the executor leaves it to the router.
type Hop struct {
	Offer  asset.Ref       `json:"offer_asset"`
	Ask    asset.Ref       `json:"ask_asset"`
	Pool   string          `json:"pool,omitempty"`
	Spread decimal.Decimal `json:"spread"`
}

// validateRoute checks an executor-submitted hop list against the order and
// the effective policy. It is pure: it reads nothing but its arguments and
// mutates nothing.
//
// Check order follows the purchase pipeline: hop count cap, continuity from
// initial to target asset, whitelist membership of every intermediate node,
// then per-hop spread. Initial and target assets are exempt from the
// whitelist check since the owner chose them explicitly.
func validateRoute(hops []Hop, initial, target asset.Ref, cfg GlobalConfig, maxHops int, maxSpread decimal.Decimal) error {
	if len(hops) == 0 {
		return ErrInvalidRoute
	}
	if len(hops) > maxHops {
		return ErrExceedsMaxHops
	}

	if hops[0].Offer != initial {
		return ErrInvalidRoute
	}
	if hops[len(hops)-1].Ask != target {
		return ErrInvalidRoute
	}
	for i := 0; i < len(hops)-1; i++ {
		if hops[i].Ask != hops[i+1].Offer {
			return ErrInvalidRoute
		}
	}

	for i, hop := range hops {
		if i < len(hops)-1 && !cfg.IsWhitelisted(hop.Ask) {
			return ErrNotWhitelisted
		}
		if i > 0 && !cfg.IsWhitelisted(hop.Offer) {
			return ErrNotWhitelisted
		}
	}

	for _, hop := range hops {
		if hop.Spread.GreaterThan(maxSpread) {
			return ErrExceedsMaxSpread
		}
	}
	return nil
}
