package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/helioswap/dca-engine/internal/asset"
)

// Router is the external routing collaborator. It settles a validated swap
// plan and credits the output to the plan's recipient. The engine trusts it
// only with parameters it has already validated.
type Router interface {
	ExecuteSwap(ctx context.Context, plan SwapPlan) (SwapResult, error)
}

// SwapResult reports what the routing collaborator settled.
type SwapResult struct {
	AmountOut decimal.Decimal `json:"amount_out"`
	Reference string          `json:"reference,omitempty"`
}

// Ledger is the token-transfer collaborator holding the contract's balance
// sheet. Pull moves funds from a party into escrow, Send releases escrowed
// funds to a party.
type Ledger interface {
	Pull(ctx context.Context, from string, ref asset.Ref, amount decimal.Decimal) error
	Send(ctx context.Context, to string, ref asset.Ref, amount decimal.Decimal) error
}

// SettleTransfers executes an Outcome's transfers against the ledger in
// order. The caller must not Apply the Outcome if settlement fails.
func SettleTransfers(ctx context.Context, l Ledger, transfers []Transfer) error {
	for _, t := range transfers {
		var err error
		switch t.Kind {
		case TransferEscrowPull:
			err = l.Pull(ctx, t.Party, t.Asset, t.Amount)
		case TransferRefund, TransferTipPayout:
			err = l.Send(ctx, t.Party, t.Asset, t.Amount)
		default:
			err = fmt.Errorf("unknown transfer kind: %q", t.Kind)
		}
		if err != nil {
			return fmt.Errorf("settle %s of %s %s for %s: %w", t.Kind, t.Amount, t.Asset, t.Party, err)
		}
	}
	return nil
}
