package engine

import (
	"github.com/shopspring/decimal"

	"github.com/helioswap/dca-engine/internal/asset"
)

// GlobalConfig is the contract-wide policy record. It is read by every order
// operation and mutated only by the configured administrator.
type GlobalConfig struct {
	Admin           string          `json:"admin"`
	RouterEndpoint  string          `json:"router_endpoint"`
	FactoryEndpoint string          `json:"factory_endpoint"`
	MaxHops         int             `json:"max_hops"`
	MaxSpread       decimal.Decimal `json:"max_spread"`
	PerHopFee       decimal.Decimal `json:"per_hop_fee"`
	TipAsset        asset.Ref       `json:"tip_asset"`
	Whitelist       []asset.Ref     `json:"whitelisted_assets"`
}

func (c GlobalConfig) IsWhitelisted(ref asset.Ref) bool {
	for _, a := range c.Whitelist {
		if a == ref {
			return true
		}
	}
	return false
}

// GlobalConfigUpdate carries a partial update. A nil field leaves the stored
// value unchanged; this is the opposite of UserConfigUpdate, where a nil
// field resets the override.
type GlobalConfigUpdate struct {
	MaxHops   *int             `json:"max_hops,omitempty"`
	MaxSpread *decimal.Decimal `json:"max_spread,omitempty"`
	PerHopFee *decimal.Decimal `json:"per_hop_fee,omitempty"`
	Whitelist []asset.Ref      `json:"whitelisted_assets,omitempty"`
}

// UserConfig holds a user's optional policy overrides and their prepaid tip
// balance. Overrides are stored raw; resolution against GlobalConfig happens
// at purchase time, never by caching merged values.
type UserConfig struct {
	MaxHops    *int             `json:"max_hops,omitempty"`
	MaxSpread  *decimal.Decimal `json:"max_spread,omitempty"`
	TipBalance decimal.Decimal  `json:"tip_balance"`
}

// UserConfigUpdate replaces both overrides: an absent field resets that
// override to "use global default".
type UserConfigUpdate struct {
	MaxHops   *int             `json:"max_hops,omitempty"`
	MaxSpread *decimal.Decimal `json:"max_spread,omitempty"`
}

func (c UserConfig) effectiveMaxHops(g GlobalConfig) int {
	if c.MaxHops != nil {
		return *c.MaxHops
	}
	return g.MaxHops
}

func (c UserConfig) effectiveMaxSpread(g GlobalConfig) decimal.Decimal {
	if c.MaxSpread != nil {
		return *c.MaxSpread
	}
	return g.MaxSpread
}
