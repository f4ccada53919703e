package engine

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/helioswap/dca-engine/internal/asset"
)

func TestValidateRoute(t *testing.T) {
	uusd := asset.Native("uusd")
	uluna := asset.Native("uluna")
	ukrw := asset.Native("ukrw")
	dai := asset.Token("0x6B175474E89094C44Da98b954EedeAC495271d0F")

	cfg := GlobalConfig{
		Whitelist: []asset.Ref{uluna, dai},
	}
	maxSpread := decimal.RequireFromString("0.05")

	hop := func(offer, ask asset.Ref) Hop {
		return Hop{Offer: offer, Ask: ask}
	}

	tests := []struct {
		name    string
		hops    []Hop
		maxHops int
		want    error
	}{
		{
			name:    "single hop direct",
			hops:    []Hop{hop(uusd, ukrw)},
			maxHops: 3,
		},
		{
			name:    "two hops via whitelisted",
			hops:    []Hop{hop(uusd, uluna), hop(uluna, ukrw)},
			maxHops: 3,
		},
		{
			name:    "empty route",
			hops:    nil,
			maxHops: 3,
			want:    ErrInvalidRoute,
		},
		{
			name:    "too many hops",
			hops:    []Hop{hop(uusd, uluna), hop(uluna, dai), hop(dai, ukrw)},
			maxHops: 2,
			want:    ErrExceedsMaxHops,
		},
		{
			name:    "first hop does not offer initial asset",
			hops:    []Hop{hop(uluna, ukrw)},
			maxHops: 3,
			want:    ErrInvalidRoute,
		},
		{
			name:    "last hop does not ask target asset",
			hops:    []Hop{hop(uusd, uluna)},
			maxHops: 3,
			want:    ErrInvalidRoute,
		},
		{
			name:    "broken continuity",
			hops:    []Hop{hop(uusd, uluna), hop(dai, ukrw)},
			maxHops: 3,
			want:    ErrInvalidRoute,
		},
		{
			name:    "non whitelisted intermediate",
			hops:    []Hop{hop(uusd, asset.Native("uatom")), hop(asset.Native("uatom"), ukrw)},
			maxHops: 3,
			want:    ErrNotWhitelisted,
		},
		{
			name: "spread above bound",
			hops: []Hop{
				{Offer: uusd, Ask: uluna, Spread: decimal.RequireFromString("0.06")},
				hop(uluna, ukrw),
			},
			maxHops: 3,
			want:    ErrExceedsMaxSpread,
		},
		{
			name: "spread at bound",
			hops: []Hop{
				{Offer: uusd, Ask: uluna, Spread: decimal.RequireFromString("0.05")},
				hop(uluna, ukrw),
			},
			maxHops: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRoute(tt.hops, uusd, ukrw, cfg, tt.maxHops, maxSpread)
			if !errors.Is(err, tt.want) {
				t.Errorf("validateRoute() = %v, want %v", err, tt.want)
			}
		})
	}
}

// The whitelist check applies to intermediates independently of spread and
// hop count limits.
func TestNonWhitelistedIntermediateAlwaysRejected(t *testing.T) {
	uusd := asset.Native("uusd")
	ukrw := asset.Native("ukrw")
	uatom := asset.Native("uatom")
	cfg := GlobalConfig{Whitelist: []asset.Ref{}}

	hops := []Hop{
		{Offer: uusd, Ask: uatom},
		{Offer: uatom, Ask: ukrw},
	}
	for _, spread := range []string{"0", "0.01", "1"} {
		err := validateRoute(hops, uusd, ukrw, cfg, 10, decimal.RequireFromString(spread))
		if !errors.Is(err, ErrNotWhitelisted) {
			t.Errorf("maxSpread=%s: got %v, want ErrNotWhitelisted", spread, err)
		}
	}
}
