package types

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/helioswap/dca-engine/internal/asset"
	"github.com/helioswap/dca-engine/internal/engine"
)

// AssetAmount pairs an asset reference with an amount, mirroring the shape
// deposits and escrows arrive in.
type AssetAmount struct {
	Info   asset.Ref       `json:"info" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type CreateOrderRequest struct {
	InitialAsset AssetAmount `json:"initial_asset" validate:"required"`
	TargetAsset  asset.Ref   `json:"target_asset" validate:"required"`
	DCAAmount    decimal.Decimal `json:"dca_amount"`
	// Interval between purchases in seconds.
	Interval int64 `json:"interval"`
}

// ModifyOrderRequest updates the order keyed by OldInitialAsset. Nil fields
// keep the stored values. NewInitialAsset's amount is the order's new total
// escrow, whether or not the asset itself changes.
type ModifyOrderRequest struct {
	OldInitialAsset         asset.Ref        `json:"old_initial_asset" validate:"required"`
	NewInitialAsset         *AssetAmount     `json:"new_initial_asset,omitempty"`
	NewTargetAsset          *asset.Ref       `json:"new_target_asset,omitempty"`
	NewDCAAmount            *decimal.Decimal `json:"new_dca_amount,omitempty"`
	NewInterval             *int64           `json:"new_interval,omitempty"`
	ShouldResetPurchaseTime bool             `json:"should_reset_purchase_time"`
}

type CancelOrderRequest struct {
	InitialAsset asset.Ref `json:"initial_asset" validate:"required"`
}

type DepositTipRequest struct {
	Payment AssetAmount `json:"payment" validate:"required"`
}

type WithdrawTipRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type UpdateConfigRequest struct {
	MaxHops           *int             `json:"max_hops,omitempty"`
	MaxSpread         *decimal.Decimal `json:"max_spread,omitempty"`
	PerHopFee         *decimal.Decimal `json:"per_hop_fee,omitempty"`
	WhitelistedAssets []asset.Ref      `json:"whitelisted_assets,omitempty"`
}

type UpdateUserConfigRequest struct {
	MaxHops   *int             `json:"max_hops,omitempty"`
	MaxSpread *decimal.Decimal `json:"max_spread,omitempty"`
}

type PerformPurchaseRequest struct {
	User         string       `json:"user" validate:"required"`
	InitialAsset asset.Ref    `json:"initial_asset" validate:"required"`
	Hops         []engine.Hop `json:"hops"`
	// Nonce deduplicates resubmissions of the same proposal; optional.
	Nonce string `json:"nonce,omitempty"`
}

// OrderResponse enriches a stored order with its computed due time so bots
// and front-ends need not re-derive it.
type OrderResponse struct {
	Owner        string          `json:"owner"`
	InitialAsset asset.Ref       `json:"initial_asset"`
	Remaining    decimal.Decimal `json:"remaining_amount"`
	TargetAsset  asset.Ref       `json:"target_asset"`
	DCAAmount    decimal.Decimal `json:"dca_amount"`
	Interval     int64           `json:"interval"`
	LastPurchase time.Time       `json:"last_purchase"`
	DueAt        time.Time       `json:"due_at"`
	Exhausted    bool            `json:"exhausted"`
}

func NewOrderResponse(o engine.Order) OrderResponse {
	return OrderResponse{
		Owner:        o.Owner,
		InitialAsset: o.InitialAsset,
		Remaining:    o.Remaining,
		TargetAsset:  o.TargetAsset,
		DCAAmount:    o.DCAAmount,
		Interval:     int64(o.Interval / time.Second),
		LastPurchase: o.LastPurchase,
		DueAt:        o.DueAt(),
		Exhausted:    o.Exhausted(),
	}
}

// UserConfigResponse exposes the raw override-or-absent state; effective
// resolution happens only inside the purchase path.
type UserConfigResponse struct {
	MaxHops    *int             `json:"max_hops,omitempty"`
	MaxSpread  *decimal.Decimal `json:"max_spread,omitempty"`
	TipBalance decimal.Decimal  `json:"tip_balance"`
}
