package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/helioswap/dca-engine/internal/asset"
	"github.com/helioswap/dca-engine/internal/engine"
	"github.com/helioswap/dca-engine/internal/types"
	"github.com/helioswap/dca-engine/storage"
)

// purchase nonce claims outlive any sane retry window
const purchaseClaimTTL = 24 * time.Hour

type DCA interface {
	Config(ctx context.Context) engine.GlobalConfig
	UpdateConfig(ctx context.Context, caller string, upd engine.GlobalConfigUpdate) (engine.GlobalConfig, error)
	UserConfig(ctx context.Context, owner string) engine.UserConfig
	UpdateUserConfig(ctx context.Context, owner string, upd engine.UserConfigUpdate) (engine.UserConfig, error)
	DepositTip(ctx context.Context, owner string, payment asset.Ref, amount decimal.Decimal) (engine.UserConfig, error)
	WithdrawTip(ctx context.Context, owner string, amount decimal.Decimal) (engine.UserConfig, error)
	CreateOrder(ctx context.Context, owner string, req engine.CreateOrderRequest) (engine.Order, error)
	ModifyOrder(ctx context.Context, owner string, req engine.ModifyOrderRequest) (engine.Order, error)
	CancelOrder(ctx context.Context, owner string, initial asset.Ref) error
	GetOrder(ctx context.Context, owner string, initial asset.Ref) (engine.Order, error)
	GetOrders(ctx context.Context, owner string) []engine.Order
	DueOrders(ctx context.Context, now time.Time) []engine.Order
	PerformPurchase(ctx context.Context, executor string, req types.PerformPurchaseRequest) (*engine.PurchaseReceipt, error)
	GetExecutions(ctx context.Context, owner string, sort string, take int, skip int) ([]types.ExecutionRecord, error)
}

var _ DCA = (*DCAService)(nil)

// DCAService serializes all mutations through a single in-memory book, and
// persists each operation's outcome to postgres before applying it. Funds
// movements settle through the ledger collaborator between the two steps.
type DCAService struct {
	mu sync.Mutex

	book     *engine.Book
	db       storage.DatabaseStorage
	redis    *storage.RedisStorage
	receipts *storage.BlockStorage
	ledger   engine.Ledger
	router   engine.Router
	sdClient *statsd.Client
	logger   *logrus.Logger
}

func NewDCAService(
	db storage.DatabaseStorage,
	redis *storage.RedisStorage,
	receipts *storage.BlockStorage,
	ledger engine.Ledger,
	router engine.Router,
	bootstrap engine.GlobalConfig,
	sdClient *statsd.Client,
	logger *logrus.Logger,
) (*DCAService, error) {
	if db == nil {
		return nil, fmt.Errorf("database storage cannot be nil")
	}

	ctx := context.Background()
	cfg, err := db.GetGlobalConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load global config: %w", err)
	}
	if cfg == nil {
		// first start against an empty database
		if err := persistBootstrap(ctx, db, bootstrap); err != nil {
			return nil, err
		}
		cfg = &bootstrap
	}

	book, err := engine.NewBook(*cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build order book: %w", err)
	}

	userConfigs, err := db.ListUserConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load user configs: %w", err)
	}
	orders, err := db.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	if err := book.Restore(*cfg, userConfigs, orders); err != nil {
		return nil, fmt.Errorf("failed to restore order book: %w", err)
	}

	s := &DCAService{
		book:     book,
		db:       db,
		redis:    redis,
		receipts: receipts,
		ledger:   ledger,
		router:   router,
		sdClient: sdClient,
		logger:   logger,
	}

	logger.WithFields(logrus.Fields{
		"users":  len(userConfigs),
		"orders": len(orders),
	}).Info("dca service restored from storage")
	return s, nil
}

func persistBootstrap(ctx context.Context, db storage.DatabaseStorage, cfg engine.GlobalConfig) error {
	tx, err := db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := db.UpsertGlobalConfigTx(ctx, tx, cfg); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *DCAService) handleRollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		s.logger.WithError(err).Error("failed to rollback transaction")
	}
}

func (s *DCAService) incCounter(name string, tags []string) {
	if s.sdClient == nil {
		return
	}
	if err := s.sdClient.Count(name, 1, tags, 1); err != nil {
		s.logger.Errorf("fail to count metric, err: %v", err)
	}
}

func (s *DCAService) measureTime(name string, start time.Time, tags []string) {
	if s.sdClient == nil {
		return
	}
	if err := s.sdClient.Timing(name, time.Since(start), tags, 1); err != nil {
		s.logger.Errorf("fail to measure time metric, err: %v", err)
	}
}

// commit persists every changed field of out in one transaction, then applies
// out to the in-memory book. rec, when non-nil, joins the same transaction.
// Callers must hold s.mu.
func (s *DCAService) commit(ctx context.Context, out *engine.Outcome, rec *types.ExecutionRecord) error {
	tx, err := s.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.handleRollback(ctx, tx)

	if out.Config != nil {
		if err := s.db.UpsertGlobalConfigTx(ctx, tx, *out.Config); err != nil {
			return err
		}
	}
	if out.UserConfig != nil {
		if err := s.db.UpsertUserConfigTx(ctx, tx, out.Owner, *out.UserConfig); err != nil {
			return err
		}
	}
	if out.PutOrder != nil {
		if err := s.db.UpsertOrderTx(ctx, tx, *out.PutOrder); err != nil {
			return err
		}
	}
	if out.DeleteOrder != nil {
		if err := s.db.DeleteOrderTx(ctx, tx, out.Owner, *out.DeleteOrder); err != nil {
			return err
		}
	}
	if rec != nil {
		if err := s.db.CreateExecutionTx(ctx, tx, *rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.book.Apply(out)
	return nil
}

// settle moves the outcome's transfers through the ledger. It runs before
// commit: a failed transfer aborts the operation with the book untouched.
func (s *DCAService) settle(ctx context.Context, out *engine.Outcome) error {
	if err := engine.SettleTransfers(ctx, s.ledger, out.Transfers); err != nil {
		return fmt.Errorf("failed to settle transfers: %w", err)
	}
	return nil
}

// settleAndCommit runs settle then commit. A commit failure at this point
// strands funds the ledger has already moved; logStrandedTransfers leaves an
// audit trail for manual reconciliation. Callers must hold s.mu.
func (s *DCAService) settleAndCommit(ctx context.Context, out *engine.Outcome, rec *types.ExecutionRecord) error {
	if err := s.settle(ctx, out); err != nil {
		return err
	}
	if err := s.commit(ctx, out, rec); err != nil {
		s.logStrandedTransfers(out, err)
		return err
	}
	return nil
}

// logStrandedTransfers records every transfer of an outcome whose commit
// failed after settlement. The ledger has moved these funds but the book and
// database have not; reconciliation is manual.
func (s *DCAService) logStrandedTransfers(out *engine.Outcome, commitErr error) {
	for _, t := range out.Transfers {
		s.logger.WithError(commitErr).WithFields(logrus.Fields{
			"op":     out.Op,
			"owner":  out.Owner,
			"kind":   string(t.Kind),
			"party":  t.Party,
			"asset":  t.Asset.String(),
			"amount": t.Amount,
		}).Error("settled transfer stranded by failed commit, manual reconciliation required")
	}
	s.incCounter("dca.commit.stranded", []string{"op:" + out.Op})
}

func (s *DCAService) Config(ctx context.Context) engine.GlobalConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Config()
}

func (s *DCAService) UpdateConfig(ctx context.Context, caller string, upd engine.GlobalConfigUpdate) (engine.GlobalConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.book.UpdateConfig(caller, upd)
	if err != nil {
		return engine.GlobalConfig{}, err
	}
	if err := s.commit(ctx, out, nil); err != nil {
		return engine.GlobalConfig{}, err
	}
	return *out.Config, nil
}

func (s *DCAService) UserConfig(ctx context.Context, owner string) engine.UserConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.UserConfigFor(owner)
}

func (s *DCAService) UpdateUserConfig(ctx context.Context, owner string, upd engine.UserConfigUpdate) (engine.UserConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.book.UpdateUserConfig(owner, upd)
	if err != nil {
		return engine.UserConfig{}, err
	}
	if err := s.commit(ctx, out, nil); err != nil {
		return engine.UserConfig{}, err
	}
	return *out.UserConfig, nil
}

func (s *DCAService) DepositTip(ctx context.Context, owner string, payment asset.Ref, amount decimal.Decimal) (engine.UserConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.book.DepositTip(owner, payment, amount)
	if err != nil {
		return engine.UserConfig{}, err
	}
	if err := s.settleAndCommit(ctx, out, nil); err != nil {
		return engine.UserConfig{}, err
	}
	return *out.UserConfig, nil
}

func (s *DCAService) WithdrawTip(ctx context.Context, owner string, amount decimal.Decimal) (engine.UserConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.book.WithdrawTip(owner, amount)
	if err != nil {
		return engine.UserConfig{}, err
	}
	if err := s.settleAndCommit(ctx, out, nil); err != nil {
		return engine.UserConfig{}, err
	}
	return *out.UserConfig, nil
}

func (s *DCAService) CreateOrder(ctx context.Context, owner string, req engine.CreateOrderRequest) (engine.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.book.CreateOrder(owner, req)
	if err != nil {
		return engine.Order{}, err
	}
	if err := s.settleAndCommit(ctx, out, nil); err != nil {
		return engine.Order{}, err
	}
	s.incCounter("dca.order.created", nil)
	return *out.PutOrder, nil
}

func (s *DCAService) ModifyOrder(ctx context.Context, owner string, req engine.ModifyOrderRequest) (engine.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.book.ModifyOrder(owner, req)
	if err != nil {
		return engine.Order{}, err
	}
	if err := s.settleAndCommit(ctx, out, nil); err != nil {
		return engine.Order{}, err
	}
	return *out.PutOrder, nil
}

func (s *DCAService) CancelOrder(ctx context.Context, owner string, initial asset.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.book.CancelOrder(owner, initial)
	if err != nil {
		return err
	}
	if err := s.settleAndCommit(ctx, out, nil); err != nil {
		return err
	}
	s.incCounter("dca.order.cancelled", nil)
	return nil
}

func (s *DCAService) GetOrder(ctx context.Context, owner string, initial asset.Ref) (engine.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.book.Order(owner, initial)
	if !ok {
		return engine.Order{}, engine.ErrOrderNotFound
	}
	return order, nil
}

func (s *DCAService) GetOrders(ctx context.Context, owner string) []engine.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.OrdersFor(owner)
}

func (s *DCAService) DueOrders(ctx context.Context, now time.Time) []engine.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.DueOrders(now)
}

// PerformPurchase runs the full execution pipeline for one proposal: claim
// the nonce, validate against the book, execute the swap through the router,
// settle the escrow and tip transfers, then persist and apply atomically.
// Every attempt, rejected or not, leaves an execution record.
func (s *DCAService) PerformPurchase(ctx context.Context, executor string, req types.PerformPurchaseRequest) (*engine.PurchaseReceipt, error) {
	start := time.Now()

	if req.Nonce != "" && s.redis != nil {
		key := fmt.Sprintf("dca:purchase:%s:%s:%s", req.User, req.InitialAsset.String(), req.Nonce)
		claimed, err := s.redis.Claim(ctx, key, purchaseClaimTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to claim purchase nonce: %w", err)
		}
		if !claimed {
			return nil, fmt.Errorf("purchase %s already attempted", req.Nonce)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.book.PreparePurchase(executor, req.User, req.InitialAsset, req.Hops)
	if err != nil {
		if engine.IsRejection(err) {
			s.recordAttempt(ctx, executor, req, types.ExecutionRejected, engine.Kind(err))
			s.incCounter("dca.purchase.rejected", []string{"reason:" + engine.Kind(err)})
		}
		return nil, err
	}

	result, err := s.router.ExecuteSwap(ctx, *out.Swap)
	if err != nil {
		s.recordAttempt(ctx, executor, req, types.ExecutionFailed, "swap execution failed")
		s.incCounter("dca.purchase.failed", []string{"stage:swap"})
		return nil, fmt.Errorf("failed to execute swap: %w", err)
	}

	if err := s.settle(ctx, out); err != nil {
		s.recordAttempt(ctx, executor, req, types.ExecutionFailed, "transfer settlement failed")
		s.incCounter("dca.purchase.failed", []string{"stage:settlement"})
		return nil, err
	}

	receipt := out.Receipt
	rec := types.ExecutionRecord{
		ID:           receipt.ID,
		Owner:        receipt.Owner,
		Executor:     receipt.Executor,
		InitialAsset: receipt.InitialAsset,
		TargetAsset:  receipt.TargetAsset,
		AmountIn:     receipt.AmountIn,
		AmountOut:    result.AmountOut,
		HopCount:     receipt.HopCount,
		Tip:          receipt.Tip,
		Status:       types.ExecutionCompleted,
		CreatedAt:    receipt.ExecutedAt,
	}
	if err := s.commit(ctx, out, &rec); err != nil {
		// the swap and the tip payout have already settled
		s.logStrandedTransfers(out, err)
		return nil, err
	}

	s.archiveReceipt(receipt, result)
	s.incCounter("dca.purchase.success", nil)
	s.measureTime("dca.purchase.latency", start, nil)

	s.logger.WithFields(logrus.Fields{
		"owner":      receipt.Owner,
		"executor":   receipt.Executor,
		"amount_in":  receipt.AmountIn,
		"amount_out": result.AmountOut,
		"tip":        receipt.Tip,
	}).Info("purchase executed")
	return receipt, nil
}

// recordAttempt writes a non-completed execution row outside any transaction.
// Failures are logged only; history must never mask the primary error.
func (s *DCAService) recordAttempt(ctx context.Context, executor string, req types.PerformPurchaseRequest, status types.ExecutionStatus, reason string) {
	rec := types.ExecutionRecord{
		ID:           uuid.New(),
		Owner:        req.User,
		Executor:     executor,
		InitialAsset: req.InitialAsset,
		HopCount:     len(req.Hops),
		Status:       status,
		Reason:       reason,
		CreatedAt:    time.Now().UTC(),
	}
	if order, ok := s.book.Order(req.User, req.InitialAsset); ok {
		rec.TargetAsset = order.TargetAsset
		rec.AmountIn = order.DCAAmount
	}
	if err := s.db.CreateExecution(ctx, rec); err != nil {
		s.logger.WithError(err).Error("failed to record purchase attempt")
	}
}

// archiveReceipt uploads the receipt JSON to block storage. Best effort: the
// purchase has already committed, so failures are only logged.
func (s *DCAService) archiveReceipt(receipt *engine.PurchaseReceipt, result engine.SwapResult) {
	if s.receipts == nil {
		return
	}
	doc := struct {
		engine.PurchaseReceipt
		AmountOut decimal.Decimal `json:"amount_out"`
		Reference string          `json:"reference,omitempty"`
	}{*receipt, result.AmountOut, result.Reference}

	buf, err := json.Marshal(doc)
	if err != nil {
		s.logger.WithError(err).Error("failed to marshal purchase receipt")
		return
	}
	name := storage.ReceiptKey(receipt.Owner, receipt.ID.String())
	if err := s.receipts.UploadFile(buf, name); err != nil {
		s.logger.WithError(err).Error("failed to archive purchase receipt")
	}
}

func (s *DCAService) GetExecutions(ctx context.Context, owner string, sort string, take int, skip int) ([]types.ExecutionRecord, error) {
	records, err := s.db.GetExecutions(ctx, owner, sort, take, skip)
	if err != nil {
		return nil, fmt.Errorf("failed to get executions: %w", err)
	}
	return records, nil
}
