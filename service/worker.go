package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/helioswap/dca-engine/internal/asset"
	"github.com/helioswap/dca-engine/internal/engine"
	"github.com/helioswap/dca-engine/internal/tasks"
	"github.com/helioswap/dca-engine/internal/types"
)

// PurchaseAPI is the slice of the DCA surface a purchase worker needs. The
// in-process service satisfies it, as does the HTTP client used when the
// worker runs as its own binary.
type PurchaseAPI interface {
	GetOrder(ctx context.Context, owner string, initial asset.Ref) (engine.Order, error)
	PerformPurchase(ctx context.Context, executor string, req types.PerformPurchaseRequest) (*engine.PurchaseReceipt, error)
}

// WorkerService consumes purchase attempt tasks as the in-house executor.
// It proposes the direct single-hop route; multi-hop routing stays with
// external executor bots who can quote their own paths.
type WorkerService struct {
	dca        PurchaseAPI
	executorID string
	logger     *logrus.Logger
}

func NewWorker(dca PurchaseAPI, executorID string, logger *logrus.Logger) (*WorkerService, error) {
	if dca == nil {
		return nil, fmt.Errorf("dca service cannot be nil")
	}
	if executorID == "" {
		return nil, fmt.Errorf("executor id cannot be empty")
	}
	return &WorkerService{
		dca:        dca,
		executorID: executorID,
		logger:     logger,
	}, nil
}

func (s *WorkerService) HandlePurchaseAttempt(ctx context.Context, t *asynq.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var p tasks.PurchaseAttemptPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	initial, err := asset.ParseRef(p.InitialAsset)
	if err != nil {
		return fmt.Errorf("invalid initial asset in payload: %v: %w", err, asynq.SkipRetry)
	}

	order, err := s.dca.GetOrder(ctx, p.Owner, initial)
	if err != nil {
		// order drained or cancelled since the task was enqueued
		return fmt.Errorf("order lookup failed: %v: %w", err, asynq.SkipRetry)
	}

	s.logger.WithFields(logrus.Fields{
		"owner":   p.Owner,
		"initial": p.InitialAsset,
		"target":  order.TargetAsset.String(),
		"nonce":   p.Nonce,
	}).Info("attempting purchase")

	req := types.PerformPurchaseRequest{
		User:         p.Owner,
		InitialAsset: initial,
		Hops: []engine.Hop{{
			Offer: order.InitialAsset,
			Ask:   order.TargetAsset,
		}},
		Nonce: p.Nonce,
	}

	receipt, err := s.dca.PerformPurchase(ctx, s.executorID, req)
	if err != nil {
		if engine.IsRejection(err) {
			// a rejected proposal will not pass on retry with the same route
			return fmt.Errorf("purchase rejected: %v: %w", err, asynq.SkipRetry)
		}
		s.logger.Errorf("purchase attempt failed: %v", err)
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"owner":     receipt.Owner,
		"amount_in": receipt.AmountIn,
		"tip":       receipt.Tip,
	}).Info("purchase attempt completed")
	return nil
}
