package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/helioswap/dca-engine/internal/asset"
)

// Book is the order-book state machine: global policy, per-user
// configuration and tip balances, and the active orders keyed by
// (owner, initial asset).
//
// Every operation is split in two: a prepare method that validates the
// request and computes the complete post-state as an Outcome without
// touching the book, and Apply, which commits an Outcome. Callers execute
// the Outcome's transfers and swap through the external collaborators
// between the two steps, so a failure anywhere leaves the book untouched.
// The Book itself is not locked; the caller serializes operations.
type Book struct {
	logger logrus.FieldLogger
	now    func() time.Time

	cfg   GlobalConfig
	users map[string]*userState
}

type userState struct {
	cfg    UserConfig
	orders map[asset.Ref]*Order
}

func newUserState() *userState {
	return &userState{
		cfg:    UserConfig{TipBalance: decimal.Zero},
		orders: make(map[asset.Ref]*Order),
	}
}

// Option configures a Book.
type Option func(*Book)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(b *Book) { b.now = now }
}

func NewBook(cfg GlobalConfig, logger logrus.FieldLogger, opts ...Option) (*Book, error) {
	if err := validateGlobalConfig(cfg); err != nil {
		return nil, err
	}
	b := &Book{
		logger: logger,
		now:    time.Now,
		cfg:    cfg,
		users:  make(map[string]*userState),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func validateGlobalConfig(cfg GlobalConfig) error {
	if cfg.MaxHops < 1 {
		return fmt.Errorf("%w: max_hops must be at least 1, got %d", ErrInvalidConfig, cfg.MaxHops)
	}
	if cfg.MaxSpread.IsNegative() || cfg.MaxSpread.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: max_spread must be within [0,1], got %s", ErrInvalidConfig, cfg.MaxSpread)
	}
	if cfg.PerHopFee.IsNegative() {
		return fmt.Errorf("%w: per_hop_fee must not be negative, got %s", ErrInvalidConfig, cfg.PerHopFee)
	}
	if err := cfg.TipAsset.Validate(); err != nil {
		return fmt.Errorf("%w: tip asset: %s", ErrInvalidConfig, err)
	}
	return nil
}

// TransferKind identifies how a Transfer moves value relative to escrow.
type TransferKind string

const (
	// TransferEscrowPull pulls funds from the counterparty into escrow.
	TransferEscrowPull TransferKind = "escrow_pull"
	// TransferRefund returns escrowed funds to the counterparty.
	TransferRefund TransferKind = "refund"
	// TransferTipPayout pays an executor from the owner's escrowed tips.
	TransferTipPayout TransferKind = "tip_payout"
)

// Transfer is one value movement the caller must settle through the ledger
// collaborator before applying the Outcome.
type Transfer struct {
	Kind   TransferKind    `json:"kind"`
	Party  string          `json:"party"`
	Asset  asset.Ref       `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

// SwapPlan is the validated instruction handed to the external routing
// collaborator. The engine never inspects the router's pricing, only the
// declared hop assets and the spread bound it asks the router to respect.
type SwapPlan struct {
	Recipient string          `json:"recipient"`
	Asset     asset.Ref       `json:"asset"`
	Amount    decimal.Decimal `json:"amount"`
	Hops      []Hop           `json:"hops"`
	MaxSpread decimal.Decimal `json:"max_spread"`
}

// PurchaseReceipt summarizes one executed purchase.
type PurchaseReceipt struct {
	ID           uuid.UUID       `json:"id"`
	Owner        string          `json:"owner"`
	Executor     string          `json:"executor"`
	InitialAsset asset.Ref       `json:"initial_asset"`
	TargetAsset  asset.Ref       `json:"target_asset"`
	AmountIn     decimal.Decimal `json:"amount_in"`
	HopCount     int             `json:"hop_count"`
	Tip          decimal.Decimal `json:"tip"`
	ExecutedAt   time.Time       `json:"executed_at"`
}

// Outcome is the fully computed post-state of a single operation. Only
// fields that the operation changes are set; Apply commits them
// all-or-nothing and cannot fail.
type Outcome struct {
	Op    string
	Owner string

	Config      *GlobalConfig
	UserConfig  *UserConfig
	PutOrder    *Order
	DeleteOrder *asset.Ref

	Transfers []Transfer
	Swap      *SwapPlan
	Receipt   *PurchaseReceipt
}

// Apply commits a prepared Outcome to the book.
func (b *Book) Apply(out *Outcome) {
	if out.Config != nil {
		b.cfg = *out.Config
	}
	if out.Owner != "" && (out.UserConfig != nil || out.PutOrder != nil || out.DeleteOrder != nil) {
		us := b.userOrCreate(out.Owner)
		if out.UserConfig != nil {
			us.cfg = *out.UserConfig
		}
		if out.PutOrder != nil {
			order := *out.PutOrder
			us.orders[order.InitialAsset] = &order
		}
		if out.DeleteOrder != nil {
			delete(us.orders, *out.DeleteOrder)
		}
	}
	b.logger.WithFields(logrus.Fields{
		"op":    out.Op,
		"owner": out.Owner,
	}).Debug("outcome applied")
}

func (b *Book) userOrCreate(owner string) *userState {
	us, ok := b.users[owner]
	if !ok {
		us = newUserState()
		b.users[owner] = us
	}
	return us
}

func (b *Book) userConfig(owner string) UserConfig {
	if us, ok := b.users[owner]; ok {
		return us.cfg
	}
	return UserConfig{TipBalance: decimal.Zero}
}

// Config returns a snapshot of the global configuration.
func (b *Book) Config() GlobalConfig {
	cfg := b.cfg
	cfg.Whitelist = append([]asset.Ref(nil), b.cfg.Whitelist...)
	return cfg
}

// UserConfigFor returns the raw override-or-absent state for owner.
// Effective values are resolved only inside the purchase path.
func (b *Book) UserConfigFor(owner string) UserConfig {
	return b.userConfig(owner)
}

// Order returns the order keyed by (owner, initialAsset), if present.
func (b *Book) Order(owner string, initial asset.Ref) (Order, bool) {
	us, ok := b.users[owner]
	if !ok {
		return Order{}, false
	}
	o, ok := us.orders[initial]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// OrdersFor returns the owner's active orders in a stable order.
func (b *Book) OrdersFor(owner string) []Order {
	us, ok := b.users[owner]
	if !ok {
		return nil
	}
	orders := make([]Order, 0, len(us.orders))
	for _, o := range us.orders {
		orders = append(orders, *o)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].InitialAsset.String() < orders[j].InitialAsset.String()
	})
	return orders
}

// DueOrders returns every order across all owners that is due for a
// purchase and still holds a full purchase amount, in a stable order.
func (b *Book) DueOrders(now time.Time) []Order {
	var due []Order
	for _, us := range b.users {
		for _, o := range us.orders {
			if !now.Before(o.DueAt()) && !o.Exhausted() {
				due = append(due, *o)
			}
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].Owner != due[j].Owner {
			return due[i].Owner < due[j].Owner
		}
		return due[i].InitialAsset.String() < due[j].InitialAsset.String()
	})
	return due
}

// UpdateConfig prepares a partial update of the global configuration. A nil
// field keeps the stored value.
func (b *Book) UpdateConfig(caller string, upd GlobalConfigUpdate) (*Outcome, error) {
	if caller != b.cfg.Admin {
		return nil, ErrUnauthorized
	}
	cfg := b.Config()
	if upd.MaxHops != nil {
		cfg.MaxHops = *upd.MaxHops
	}
	if upd.MaxSpread != nil {
		cfg.MaxSpread = *upd.MaxSpread
	}
	if upd.PerHopFee != nil {
		cfg.PerHopFee = *upd.PerHopFee
	}
	if upd.Whitelist != nil {
		for _, ref := range upd.Whitelist {
			if err := ref.Validate(); err != nil {
				return nil, fmt.Errorf("%w: %s", ErrInvalidAsset, err)
			}
		}
		cfg.Whitelist = append([]asset.Ref(nil), upd.Whitelist...)
	}
	if err := validateGlobalConfig(cfg); err != nil {
		return nil, err
	}
	return &Outcome{Op: "update_config", Config: &cfg}, nil
}

// UpdateUserConfig prepares a replacement of the owner's overrides. An
// absent field explicitly resets that override to the global default.
func (b *Book) UpdateUserConfig(owner string, upd UserConfigUpdate) (*Outcome, error) {
	if upd.MaxHops != nil && *upd.MaxHops < 1 {
		return nil, fmt.Errorf("%w: max_hops override must be at least 1, got %d", ErrInvalidConfig, *upd.MaxHops)
	}
	if upd.MaxSpread != nil && (upd.MaxSpread.IsNegative() || upd.MaxSpread.GreaterThan(decimal.NewFromInt(1))) {
		return nil, fmt.Errorf("%w: max_spread override must be within [0,1], got %s", ErrInvalidConfig, upd.MaxSpread)
	}
	cfg := b.userConfig(owner)
	cfg.MaxHops = upd.MaxHops
	cfg.MaxSpread = upd.MaxSpread
	return &Outcome{Op: "update_user_config", Owner: owner, UserConfig: &cfg}, nil
}

// DepositTip prepares a tip deposit. The attached payment must be of the
// designated tip asset and match the credited amount exactly.
func (b *Book) DepositTip(owner string, payment asset.Ref, amount decimal.Decimal) (*Outcome, error) {
	if payment != b.cfg.TipAsset {
		return nil, ErrInvalidAsset
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidZeroAmount
	}
	cfg := b.userConfig(owner)
	cfg.TipBalance = cfg.TipBalance.Add(amount)
	return &Outcome{
		Op:         "deposit_tip",
		Owner:      owner,
		UserConfig: &cfg,
		Transfers: []Transfer{
			{Kind: TransferEscrowPull, Party: owner, Asset: payment, Amount: amount},
		},
	}, nil
}

// WithdrawTip prepares a tip withdrawal. Failure leaves the balance
// untouched; there is no partial withdrawal.
func (b *Book) WithdrawTip(owner string, amount decimal.Decimal) (*Outcome, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidZeroAmount
	}
	cfg := b.userConfig(owner)
	if amount.GreaterThan(cfg.TipBalance) {
		return nil, ErrInsufficientBalance
	}
	cfg.TipBalance = cfg.TipBalance.Sub(amount)
	return &Outcome{
		Op:         "withdraw_tip",
		Owner:      owner,
		UserConfig: &cfg,
		Transfers: []Transfer{
			{Kind: TransferRefund, Party: owner, Asset: b.cfg.TipAsset, Amount: amount},
		},
	}, nil
}

// CreateOrder prepares a new order, escrowing the full deposit.
func (b *Book) CreateOrder(owner string, req CreateOrderRequest) (*Outcome, error) {
	if err := req.InitialAsset.Validate(); err != nil {
		return nil, fmt.Errorf("%w: initial asset: %s", ErrInvalidAsset, err)
	}
	if err := req.TargetAsset.Validate(); err != nil {
		return nil, fmt.Errorf("%w: target asset: %s", ErrInvalidAsset, err)
	}
	if req.InitialAsset == req.TargetAsset {
		return nil, ErrInvalidAsset
	}
	if !req.Amount.IsPositive() || !req.DCAAmount.IsPositive() || req.Interval <= 0 {
		return nil, ErrInvalidZeroAmount
	}
	if req.DCAAmount.GreaterThan(req.Amount) {
		return nil, ErrDepositTooSmall
	}
	if _, exists := b.Order(owner, req.InitialAsset); exists {
		return nil, ErrDuplicateOrder
	}

	order := Order{
		Owner:        owner,
		InitialAsset: req.InitialAsset,
		Remaining:    req.Amount,
		TargetAsset:  req.TargetAsset,
		DCAAmount:    req.DCAAmount,
		Interval:     req.Interval,
		LastPurchase: b.now(),
	}
	return &Outcome{
		Op:       "create_order",
		Owner:    owner,
		PutOrder: &order,
		Transfers: []Transfer{
			{Kind: TransferEscrowPull, Party: owner, Asset: req.InitialAsset, Amount: req.Amount},
		},
	}, nil
}

// ModifyOrder prepares an in-place update of an existing order. Escrow is
// reconciled against the order's current remaining balance so that
// already-escrowed funds are never charged twice.
func (b *Book) ModifyOrder(owner string, req ModifyOrderRequest) (*Outcome, error) {
	current, ok := b.Order(owner, req.OldInitialAsset)
	if !ok {
		return nil, ErrOrderNotFound
	}

	next := current
	if req.NewDCAAmount != nil {
		if !req.NewDCAAmount.IsPositive() {
			return nil, ErrInvalidZeroAmount
		}
		next.DCAAmount = *req.NewDCAAmount
	}
	if req.NewInterval != nil {
		if *req.NewInterval <= 0 {
			return nil, ErrInvalidZeroAmount
		}
		next.Interval = *req.NewInterval
	}
	if req.NewTargetAsset != nil {
		if err := req.NewTargetAsset.Validate(); err != nil {
			return nil, fmt.Errorf("%w: target asset: %s", ErrInvalidAsset, err)
		}
		next.TargetAsset = *req.NewTargetAsset
	}

	var transfers []Transfer
	switch {
	case req.NewInitialAsset != nil && *req.NewInitialAsset != current.InitialAsset:
		// Switching source asset: the old escrow is refunded in full and a
		// fresh escrow is taken for the new asset.
		if err := req.NewInitialAsset.Validate(); err != nil {
			return nil, fmt.Errorf("%w: initial asset: %s", ErrInvalidAsset, err)
		}
		if _, exists := b.Order(owner, *req.NewInitialAsset); exists {
			return nil, ErrDuplicateOrder
		}
		amount := current.Remaining
		if req.NewAmount != nil {
			amount = *req.NewAmount
		}
		if !amount.IsPositive() {
			return nil, ErrInvalidZeroAmount
		}
		next.InitialAsset = *req.NewInitialAsset
		next.Remaining = amount
		if current.Remaining.IsPositive() {
			transfers = append(transfers, Transfer{
				Kind: TransferRefund, Party: owner, Asset: current.InitialAsset, Amount: current.Remaining,
			})
		}
		transfers = append(transfers, Transfer{
			Kind: TransferEscrowPull, Party: owner, Asset: *req.NewInitialAsset, Amount: amount,
		})
	case req.NewAmount != nil:
		// Same source asset: the supplied amount is the new total, only the
		// delta against the current escrow moves.
		if !req.NewAmount.IsPositive() {
			return nil, ErrInvalidZeroAmount
		}
		delta := req.NewAmount.Sub(current.Remaining)
		next.Remaining = *req.NewAmount
		if delta.IsPositive() {
			transfers = append(transfers, Transfer{
				Kind: TransferEscrowPull, Party: owner, Asset: current.InitialAsset, Amount: delta,
			})
		} else if delta.IsNegative() {
			transfers = append(transfers, Transfer{
				Kind: TransferRefund, Party: owner, Asset: current.InitialAsset, Amount: delta.Neg(),
			})
		}
	}

	if next.InitialAsset == next.TargetAsset {
		return nil, ErrInvalidAsset
	}
	if next.DCAAmount.GreaterThan(next.Remaining) {
		return nil, ErrDepositTooSmall
	}
	if req.ResetLast {
		next.LastPurchase = b.now()
	}

	out := &Outcome{
		Op:        "modify_order",
		Owner:     owner,
		PutOrder:  &next,
		Transfers: transfers,
	}
	if next.InitialAsset != current.InitialAsset {
		old := current.InitialAsset
		out.DeleteOrder = &old
	}
	return out, nil
}

// CancelOrder prepares deletion of an order, refunding exactly what remains
// escrowed at cancellation time.
func (b *Book) CancelOrder(owner string, initial asset.Ref) (*Outcome, error) {
	current, ok := b.Order(owner, initial)
	if !ok {
		return nil, ErrOrderNotFound
	}
	out := &Outcome{
		Op:          "cancel_order",
		Owner:       owner,
		DeleteOrder: &initial,
	}
	if current.Remaining.IsPositive() {
		out.Transfers = []Transfer{
			{Kind: TransferRefund, Party: owner, Asset: initial, Amount: current.Remaining},
		}
	}
	return out, nil
}

// PreparePurchase validates an executor-submitted route against the order
// and the effective policy, then computes the full purchase state
// transition. All checks run before the Outcome is built; any rejection
// leaves order, escrow and tip ledger untouched.
func (b *Book) PreparePurchase(executor, owner string, initial asset.Ref, hops []Hop) (*Outcome, error) {
	order, ok := b.Order(owner, initial)
	if !ok {
		return nil, ErrOrderNotFound
	}

	now := b.now()
	if now.Before(order.DueAt()) {
		return nil, ErrOrderNotDue
	}

	userCfg := b.userConfig(owner)
	maxHops := userCfg.effectiveMaxHops(b.cfg)
	maxSpread := userCfg.effectiveMaxSpread(b.cfg)

	if err := validateRoute(hops, order.InitialAsset, order.TargetAsset, b.cfg, maxHops, maxSpread); err != nil {
		return nil, err
	}

	requiredTip := b.cfg.PerHopFee.Mul(decimal.NewFromInt(int64(len(hops))))
	if userCfg.TipBalance.LessThan(requiredTip) {
		return nil, ErrInsufficientTipBalance
	}

	if order.Remaining.LessThan(order.DCAAmount) {
		return nil, ErrInsufficientOrderBalance
	}

	next := order
	next.Remaining = order.Remaining.Sub(order.DCAAmount)
	next.LastPurchase = now

	nextCfg := userCfg
	nextCfg.TipBalance = userCfg.TipBalance.Sub(requiredTip)

	receipt := &PurchaseReceipt{
		ID:           uuid.New(),
		Owner:        owner,
		Executor:     executor,
		InitialAsset: order.InitialAsset,
		TargetAsset:  order.TargetAsset,
		AmountIn:     order.DCAAmount,
		HopCount:     len(hops),
		Tip:          requiredTip,
		ExecutedAt:   now,
	}

	out := &Outcome{
		Op:         "perform_purchase",
		Owner:      owner,
		UserConfig: &nextCfg,
		Swap: &SwapPlan{
			Recipient: owner,
			Asset:     order.InitialAsset,
			Amount:    order.DCAAmount,
			Hops:      hops,
			MaxSpread: maxSpread,
		},
		Receipt: receipt,
	}
	if requiredTip.IsPositive() {
		out.Transfers = []Transfer{
			{Kind: TransferTipPayout, Party: executor, Asset: b.cfg.TipAsset, Amount: requiredTip},
		}
	}
	// A drained order is removed; one left with dust stays on the book,
	// flagged exhausted, until the owner cancels and reclaims the dust.
	if next.Remaining.IsZero() {
		key := order.InitialAsset
		out.DeleteOrder = &key
	} else {
		out.PutOrder = &next
	}
	return out, nil
}

// Restore rebuilds the book from persisted state. It replaces any current
// contents and is intended for startup hydration only.
func (b *Book) Restore(cfg GlobalConfig, userConfigs map[string]UserConfig, orders []Order) error {
	if err := validateGlobalConfig(cfg); err != nil {
		return err
	}
	users := make(map[string]*userState)
	get := func(owner string) *userState {
		us, ok := users[owner]
		if !ok {
			us = newUserState()
			users[owner] = us
		}
		return us
	}
	for owner, uc := range userConfigs {
		get(owner).cfg = uc
	}
	for _, o := range orders {
		order := o
		us := get(order.Owner)
		if _, dup := us.orders[order.InitialAsset]; dup {
			return fmt.Errorf("duplicate persisted order for %s/%s", order.Owner, order.InitialAsset)
		}
		us.orders[order.InitialAsset] = &order
	}
	b.cfg = cfg
	b.users = users
	return nil
}
