package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/helioswap/dca-engine/internal/asset"
)

// Order is a recurring instruction to convert DCAAmount of InitialAsset into
// TargetAsset once per Interval. Orders are keyed by (Owner, InitialAsset);
// at most one order per source asset exists for a user at any time.
type Order struct {
	Owner        string          `json:"owner"`
	InitialAsset asset.Ref       `json:"initial_asset"`
	Remaining    decimal.Decimal `json:"remaining_amount"`
	TargetAsset  asset.Ref       `json:"target_asset"`
	DCAAmount    decimal.Decimal `json:"dca_amount"`
	Interval     time.Duration   `json:"interval"`
	LastPurchase time.Time       `json:"last_purchase"`
}

// DueAt is the earliest time the next purchase may execute.
func (o Order) DueAt() time.Time {
	return o.LastPurchase.Add(o.Interval)
}

// Exhausted reports whether the remaining escrow can no longer fund a full
// purchase. An exhausted order is removed from the book; leftover dust stays
// escrowed until the owner cancels.
func (o Order) Exhausted() bool {
	return o.Remaining.LessThan(o.DCAAmount)
}

// CreateOrderRequest carries the parameters of a new order. Amount is the
// full deposit escrowed up front.
type CreateOrderRequest struct {
	InitialAsset asset.Ref
	Amount       decimal.Decimal
	TargetAsset  asset.Ref
	DCAAmount    decimal.Decimal
	Interval     time.Duration
}

// ModifyOrderRequest mutates an existing order keyed by OldInitialAsset.
// Nil fields keep the stored value. NewAmount, when set, is the new total
// escrow for the order: the engine pulls or refunds only the delta against
// the current remaining balance.
type ModifyOrderRequest struct {
	OldInitialAsset asset.Ref
	NewInitialAsset *asset.Ref
	NewAmount       *decimal.Decimal
	NewTargetAsset  *asset.Ref
	NewDCAAmount    *decimal.Decimal
	NewInterval     *time.Duration
	ResetLast       bool
}
