package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/helioswap/dca-engine/internal/asset"
)

type ExecutionStatus string

const (
	ExecutionCompleted ExecutionStatus = "COMPLETED"
	ExecutionRejected  ExecutionStatus = "REJECTED"
	ExecutionFailed    ExecutionStatus = "FAILED"
)

// ExecutionRecord is the history row written for every purchase attempt,
// successful or not. Reason carries the rejection kind for rejected
// attempts so executors can inspect why a proposal was refused.
type ExecutionRecord struct {
	ID           uuid.UUID       `json:"id"`
	Owner        string          `json:"owner"`
	Executor     string          `json:"executor"`
	InitialAsset asset.Ref       `json:"initial_asset"`
	TargetAsset  asset.Ref       `json:"target_asset,omitempty"`
	AmountIn     decimal.Decimal `json:"amount_in"`
	AmountOut    decimal.Decimal `json:"amount_out"`
	HopCount     int             `json:"hop_count"`
	Tip          decimal.Decimal `json:"tip"`
	Status       ExecutionStatus `json:"status"`
	Reason       string          `json:"reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
