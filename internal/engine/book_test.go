package engine

import (
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/helioswap/dca-engine/internal/asset"
)

var (
	uusd  = asset.Native("uusd")
	uluna = asset.Native("uluna")
	ukrw  = asset.Native("ukrw")
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testConfig() GlobalConfig {
	return GlobalConfig{
		Admin:           "admin",
		RouterEndpoint:  "http://router.local",
		FactoryEndpoint: "http://factory.local",
		MaxHops:         3,
		MaxSpread:       dec("0.05"),
		PerHopFee:       dec("100000"),
		TipAsset:        uusd,
		Whitelist:       []asset.Ref{uluna},
	}
}

func newTestBook(t *testing.T) (*Book, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0).UTC()}
	b, err := NewBook(testConfig(), testLogger(), WithClock(clk.Now))
	require.NoError(t, err)
	return b, clk
}

func mustApply(t *testing.T, b *Book, out *Outcome, err error) *Outcome {
	t.Helper()
	require.NoError(t, err)
	b.Apply(out)
	return out
}

func fundTips(t *testing.T, b *Book, owner, amount string) {
	t.Helper()
	out, err := b.DepositTip(owner, uusd, dec(amount))
	mustApply(t, b, out, err)
}

func createOrder(t *testing.T, b *Book, owner string, amount, dcaAmount string, interval time.Duration) {
	t.Helper()
	out, err := b.CreateOrder(owner, CreateOrderRequest{
		InitialAsset: uusd,
		Amount:       dec(amount),
		TargetAsset:  uluna,
		DCAAmount:    dec(dcaAmount),
		Interval:     interval,
	})
	mustApply(t, b, out, err)
}

func directHop() []Hop {
	return []Hop{{Offer: uusd, Ask: uluna}}
}

func TestCreateOrderValidation(t *testing.T) {
	b, _ := newTestBook(t)

	tests := []struct {
		name string
		req  CreateOrderRequest
		want error
	}{
		{
			name: "zero dca amount",
			req:  CreateOrderRequest{InitialAsset: uusd, Amount: dec("10"), TargetAsset: uluna, DCAAmount: decimal.Zero, Interval: time.Hour},
			want: ErrInvalidZeroAmount,
		},
		{
			name: "zero deposit",
			req:  CreateOrderRequest{InitialAsset: uusd, Amount: decimal.Zero, TargetAsset: uluna, DCAAmount: dec("10"), Interval: time.Hour},
			want: ErrInvalidZeroAmount,
		},
		{
			name: "zero interval",
			req:  CreateOrderRequest{InitialAsset: uusd, Amount: dec("10"), TargetAsset: uluna, DCAAmount: dec("10"), Interval: 0},
			want: ErrInvalidZeroAmount,
		},
		{
			name: "initial equals target",
			req:  CreateOrderRequest{InitialAsset: uusd, Amount: dec("10"), TargetAsset: uusd, DCAAmount: dec("10"), Interval: time.Hour},
			want: ErrInvalidAsset,
		},
		{
			name: "dca amount exceeds deposit",
			req:  CreateOrderRequest{InitialAsset: uusd, Amount: dec("10"), TargetAsset: uluna, DCAAmount: dec("20"), Interval: time.Hour},
			want: ErrDepositTooSmall,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.CreateOrder("alice", tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreateOrderEscrowsDeposit(t *testing.T) {
	b, clk := newTestBook(t)

	out, err := b.CreateOrder("alice", CreateOrderRequest{
		InitialAsset: uusd,
		Amount:       dec("15000000"),
		TargetAsset:  uluna,
		DCAAmount:    dec("5000000"),
		Interval:     24 * time.Hour,
	})
	require.NoError(t, err)
	require.Len(t, out.Transfers, 1)
	require.Equal(t, TransferEscrowPull, out.Transfers[0].Kind)
	require.Equal(t, "alice", out.Transfers[0].Party)
	require.True(t, out.Transfers[0].Amount.Equal(dec("15000000")))
	b.Apply(out)

	order, ok := b.Order("alice", uusd)
	require.True(t, ok)
	require.True(t, order.Remaining.Equal(dec("15000000")))
	require.Equal(t, clk.Now(), order.LastPurchase)

	_, err = b.CreateOrder("alice", CreateOrderRequest{
		InitialAsset: uusd,
		Amount:       dec("1000000"),
		TargetAsset:  ukrw,
		DCAAmount:    dec("1000000"),
		Interval:     time.Hour,
	})
	require.ErrorIs(t, err, ErrDuplicateOrder)
}

func TestModifyOrderTopUpPullsOnlyDelta(t *testing.T) {
	b, _ := newTestBook(t)
	createOrder(t, b, "alice", "15000000", "5000000", 24*time.Hour)

	amount := dec("30000000")
	out, err := b.ModifyOrder("alice", ModifyOrderRequest{
		OldInitialAsset: uusd,
		NewAmount:       &amount,
	})
	require.NoError(t, err)
	require.Len(t, out.Transfers, 1)
	require.Equal(t, TransferEscrowPull, out.Transfers[0].Kind)
	require.True(t, out.Transfers[0].Amount.Equal(dec("15000000")), "only the delta is pulled")
	b.Apply(out)

	order, _ := b.Order("alice", uusd)
	require.True(t, order.Remaining.Equal(dec("30000000")))
}

func TestModifyOrderShrinkRefundsDelta(t *testing.T) {
	b, _ := newTestBook(t)
	createOrder(t, b, "alice", "15000000", "5000000", 24*time.Hour)

	amount := dec("10000000")
	out, err := b.ModifyOrder("alice", ModifyOrderRequest{
		OldInitialAsset: uusd,
		NewAmount:       &amount,
	})
	require.NoError(t, err)
	require.Len(t, out.Transfers, 1)
	require.Equal(t, TransferRefund, out.Transfers[0].Kind)
	require.True(t, out.Transfers[0].Amount.Equal(dec("5000000")))
}

func TestModifyOrderSwitchAssetRefundsOldEscrow(t *testing.T) {
	b, _ := newTestBook(t)
	createOrder(t, b, "alice", "15000000", "5000000", 24*time.Hour)

	newInitial := ukrw
	amount := dec("8000000")
	out, err := b.ModifyOrder("alice", ModifyOrderRequest{
		OldInitialAsset: uusd,
		NewInitialAsset: &newInitial,
		NewAmount:       &amount,
	})
	require.NoError(t, err)
	require.Len(t, out.Transfers, 2)
	require.Equal(t, TransferRefund, out.Transfers[0].Kind)
	require.Equal(t, uusd, out.Transfers[0].Asset)
	require.True(t, out.Transfers[0].Amount.Equal(dec("15000000")))
	require.Equal(t, TransferEscrowPull, out.Transfers[1].Kind)
	require.Equal(t, ukrw, out.Transfers[1].Asset)
	require.True(t, out.Transfers[1].Amount.Equal(dec("8000000")))
	b.Apply(out)

	_, ok := b.Order("alice", uusd)
	require.False(t, ok, "old key must be gone")
	order, ok := b.Order("alice", ukrw)
	require.True(t, ok)
	require.True(t, order.Remaining.Equal(dec("8000000")))
}

func TestModifyOrderResetPurchaseTime(t *testing.T) {
	b, clk := newTestBook(t)
	createOrder(t, b, "alice", "15000000", "5000000", 24*time.Hour)
	created := clk.Now()

	clk.Advance(10 * time.Second)

	interval := 12 * time.Hour
	out, err := b.ModifyOrder("alice", ModifyOrderRequest{
		OldInitialAsset: uusd,
		NewInterval:     &interval,
		ResetLast:       false,
	})
	mustApply(t, b, out, err)
	order, _ := b.Order("alice", uusd)
	require.Equal(t, created, order.LastPurchase, "lastPurchase preserved without reset")

	out, err = b.ModifyOrder("alice", ModifyOrderRequest{
		OldInitialAsset: uusd,
		ResetLast:       true,
	})
	mustApply(t, b, out, err)
	order, _ = b.Order("alice", uusd)
	require.Equal(t, clk.Now(), order.LastPurchase, "lastPurchase reset to now")
}

func TestModifyOrderNotFound(t *testing.T) {
	b, _ := newTestBook(t)
	_, err := b.ModifyOrder("alice", ModifyOrderRequest{OldInitialAsset: uusd})
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCancelOrderRefundsRemaining(t *testing.T) {
	b, clk := newTestBook(t)
	createOrder(t, b, "alice", "15000000", "5000000", 24*time.Hour)
	fundTips(t, b, "alice", "1000000")

	clk.Advance(24 * time.Hour)
	pOut, pErr := b.PreparePurchase("bot", "alice", uusd, directHop())
	mustApply(t, b, pOut, pErr)

	out, err := b.CancelOrder("alice", uusd)
	require.NoError(t, err)
	require.Len(t, out.Transfers, 1)
	require.True(t, out.Transfers[0].Amount.Equal(dec("10000000")),
		"refund equals remaining at cancellation time, not the original deposit")
	b.Apply(out)

	require.Empty(t, b.OrdersFor("alice"))

	_, err = b.CancelOrder("alice", uusd)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestTipDepositAndWithdraw(t *testing.T) {
	b, _ := newTestBook(t)

	_, err := b.DepositTip("alice", uluna, dec("100"))
	require.ErrorIs(t, err, ErrInvalidAsset)

	_, err = b.DepositTip("alice", uusd, decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidZeroAmount)

	fundTips(t, b, "alice", "500000")
	require.True(t, b.UserConfigFor("alice").TipBalance.Equal(dec("500000")))

	_, err = b.WithdrawTip("alice", dec("600000"))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.True(t, b.UserConfigFor("alice").TipBalance.Equal(dec("500000")),
		"failed withdrawal must leave the balance unchanged")

	wOut, wErr := b.WithdrawTip("alice", dec("200000"))
	out := mustApply(t, b, wOut, wErr)
	require.Equal(t, TransferRefund, out.Transfers[0].Kind)
	require.True(t, b.UserConfigFor("alice").TipBalance.Equal(dec("300000")))
}

func TestUpdateConfig(t *testing.T) {
	b, _ := newTestBook(t)

	_, err := b.UpdateConfig("mallory", GlobalConfigUpdate{})
	require.ErrorIs(t, err, ErrUnauthorized)

	hops := 5
	out, err := b.UpdateConfig("admin", GlobalConfigUpdate{MaxHops: &hops})
	require.NoError(t, err)
	b.Apply(out)

	cfg := b.Config()
	require.Equal(t, 5, cfg.MaxHops)
	require.True(t, cfg.MaxSpread.Equal(dec("0.05")), "absent fields stay unchanged")
	require.Equal(t, []asset.Ref{uluna}, cfg.Whitelist)
}

func TestUpdateConfigRejectsInvalidValues(t *testing.T) {
	b, _ := newTestBook(t)

	zeroHops := 0
	_, err := b.UpdateConfig("admin", GlobalConfigUpdate{MaxHops: &zeroHops})
	require.ErrorIs(t, err, ErrInvalidConfig)

	spread := dec("2")
	_, err = b.UpdateConfig("admin", GlobalConfigUpdate{MaxSpread: &spread})
	require.ErrorIs(t, err, ErrInvalidConfig)

	fee := dec("-1")
	_, err = b.UpdateConfig("admin", GlobalConfigUpdate{PerHopFee: &fee})
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.Equal(t, "InvalidConfig", Kind(err))
}

func TestUpdateUserConfigRejectsInvalidOverrides(t *testing.T) {
	b, _ := newTestBook(t)

	zeroHops := 0
	_, err := b.UpdateUserConfig("alice", UserConfigUpdate{MaxHops: &zeroHops})
	require.ErrorIs(t, err, ErrInvalidConfig)

	spread := dec("1.5")
	_, err = b.UpdateUserConfig("alice", UserConfigUpdate{MaxSpread: &spread})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestUpdateUserConfigAbsentFieldResets(t *testing.T) {
	b, _ := newTestBook(t)

	hops := 1
	spread := dec("0.01")
	out, err := b.UpdateUserConfig("alice", UserConfigUpdate{MaxHops: &hops, MaxSpread: &spread})
	mustApply(t, b, out, err)
	cfg := b.UserConfigFor("alice")
	require.NotNil(t, cfg.MaxHops)
	require.NotNil(t, cfg.MaxSpread)

	// Unlike the global update, an absent field resets the override.
	out, err = b.UpdateUserConfig("alice", UserConfigUpdate{MaxHops: &hops})
	mustApply(t, b, out, err)
	cfg = b.UserConfigFor("alice")
	require.NotNil(t, cfg.MaxHops)
	require.Nil(t, cfg.MaxSpread)
}

func TestUpdateUserConfigKeepsTipBalance(t *testing.T) {
	b, _ := newTestBook(t)
	fundTips(t, b, "alice", "500000")
	out, err := b.UpdateUserConfig("alice", UserConfigUpdate{})
	mustApply(t, b, out, err)
	require.True(t, b.UserConfigFor("alice").TipBalance.Equal(dec("500000")))
}

func TestPurchaseScenario(t *testing.T) {
	// Create order with dcaAmount=5,000,000, amount=15,000,000 uusd,
	// interval=86,400s, target uluna.
	b, clk := newTestBook(t)
	createOrder(t, b, "alice", "15000000", "5000000", 86400*time.Second)
	fundTips(t, b, "alice", "1000000")

	_, err := b.PreparePurchase("bot", "alice", uusd, directHop())
	require.ErrorIs(t, err, ErrOrderNotDue)

	clk.Advance(86400 * time.Second)
	out, err := b.PreparePurchase("bot", "alice", uusd, directHop())
	require.NoError(t, err)
	require.NotNil(t, out.Swap)
	require.True(t, out.Swap.Amount.Equal(dec("5000000")))
	require.Equal(t, "alice", out.Swap.Recipient)
	require.True(t, out.Swap.MaxSpread.Equal(dec("0.05")))
	require.NotNil(t, out.Receipt)
	require.True(t, out.Receipt.Tip.Equal(dec("100000")), "one hop, one per-hop fee")
	b.Apply(out)

	order, ok := b.Order("alice", uusd)
	require.True(t, ok)
	require.True(t, order.Remaining.Equal(dec("10000000")))
	require.Equal(t, clk.Now(), order.LastPurchase)
	require.True(t, b.UserConfigFor("alice").TipBalance.Equal(dec("900000")))
}

func TestPurchaseNotDueLeavesStateUnchanged(t *testing.T) {
	b, clk := newTestBook(t)
	createOrder(t, b, "alice", "15000000", "5000000", 86400*time.Second)
	fundTips(t, b, "alice", "1000000")
	before, _ := b.Order("alice", uusd)
	beforeTips := b.UserConfigFor("alice").TipBalance

	clk.Advance(86399 * time.Second)
	_, err := b.PreparePurchase("bot", "alice", uusd, directHop())
	require.ErrorIs(t, err, ErrOrderNotDue)

	after, _ := b.Order("alice", uusd)
	require.Equal(t, before, after)
	require.True(t, b.UserConfigFor("alice").TipBalance.Equal(beforeTips))
}

func TestPurchaseExhaustionScenario(t *testing.T) {
	// remaining=8,000,000 and dcaAmount=3,000,000: two purchases leave
	// 2,000,000, the third is rejected and the order stays flagged
	// exhausted with its dust escrowed.
	b, clk := newTestBook(t)
	createOrder(t, b, "alice", "8000000", "3000000", time.Hour)
	fundTips(t, b, "alice", "10000000")

	clk.Advance(time.Hour)
	pOut, pErr := b.PreparePurchase("bot", "alice", uusd, directHop())
	mustApply(t, b, pOut, pErr)
	clk.Advance(time.Hour)
	pOut, pErr = b.PreparePurchase("bot", "alice", uusd, directHop())
	mustApply(t, b, pOut, pErr)

	order, ok := b.Order("alice", uusd)
	require.True(t, ok)
	require.True(t, order.Remaining.Equal(dec("2000000")))
	require.True(t, order.Exhausted())

	clk.Advance(time.Hour)
	_, err := b.PreparePurchase("bot", "alice", uusd, directHop())
	require.ErrorIs(t, err, ErrInsufficientOrderBalance)

	// Dust is not auto-refunded; an explicit cancel reclaims it.
	out, err := b.CancelOrder("alice", uusd)
	require.NoError(t, err)
	require.True(t, out.Transfers[0].Amount.Equal(dec("2000000")))
}

func TestPurchaseDrainedOrderIsRemoved(t *testing.T) {
	b, clk := newTestBook(t)
	createOrder(t, b, "alice", "5000000", "5000000", time.Hour)
	fundTips(t, b, "alice", "1000000")

	clk.Advance(time.Hour)
	out, err := b.PreparePurchase("bot", "alice", uusd, directHop())
	require.NoError(t, err)
	require.Nil(t, out.PutOrder)
	require.NotNil(t, out.DeleteOrder)
	b.Apply(out)

	require.Empty(t, b.OrdersFor("alice"))
}

func TestPurchaseTipAccounting(t *testing.T) {
	b, clk := newTestBook(t)
	createOrder(t, b, "alice", "15000000", "5000000", time.Hour)
	fundTips(t, b, "alice", "250000")

	clk.Advance(time.Hour)
	out, err := b.PreparePurchase("bot", "alice", uusd, directHop())
	require.NoError(t, err)
	require.Len(t, out.Transfers, 1)
	tip := out.Transfers[0]
	require.Equal(t, TransferTipPayout, tip.Kind)
	require.Equal(t, "bot", tip.Party)
	require.Equal(t, uusd, tip.Asset)
	require.True(t, tip.Amount.Equal(dec("100000")))
	b.Apply(out)

	// 150,000 left still covers one hop; drain once more to get below the fee.
	clk.Advance(time.Hour)
	out, err = b.PreparePurchase("bot", "alice", uusd, directHop())
	require.NoError(t, err)
	b.Apply(out)

	clk.Advance(time.Hour)
	_, err = b.PreparePurchase("bot", "alice", uusd, directHop())
	require.ErrorIs(t, err, ErrInsufficientTipBalance)
}

func TestPurchaseHonorsUserOverrides(t *testing.T) {
	b, clk := newTestBook(t)
	createOrder(t, b, "alice", "15000000", "5000000", time.Hour)
	fundTips(t, b, "alice", "1000000")

	one := 1
	uOut, uErr := b.UpdateUserConfig("alice", UserConfigUpdate{MaxHops: &one})
	mustApply(t, b, uOut, uErr)

	clk.Advance(time.Hour)
	twoHops := []Hop{{Offer: uusd, Ask: uluna}, {Offer: uluna, Ask: uluna}}
	_, err := b.PreparePurchase("bot", "alice", uusd, twoHops)
	require.ErrorIs(t, err, ErrExceedsMaxHops)

	tight := dec("0.001")
	uOut, uErr = b.UpdateUserConfig("alice", UserConfigUpdate{MaxSpread: &tight})
	mustApply(t, b, uOut, uErr)
	_, err = b.PreparePurchase("bot", "alice", uusd, []Hop{{Offer: uusd, Ask: uluna, Spread: dec("0.01")}})
	require.ErrorIs(t, err, ErrExceedsMaxSpread)

	// Clearing the overrides falls back to global policy.
	uOut, uErr = b.UpdateUserConfig("alice", UserConfigUpdate{})
	mustApply(t, b, uOut, uErr)
	out, err := b.PreparePurchase("bot", "alice", uusd, []Hop{{Offer: uusd, Ask: uluna, Spread: dec("0.01")}})
	require.NoError(t, err)
	require.True(t, out.Swap.MaxSpread.Equal(dec("0.05")))
}

func TestPurchaseUnknownOrder(t *testing.T) {
	b, _ := newTestBook(t)
	_, err := b.PreparePurchase("bot", "alice", uusd, directHop())
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestRestoreRoundTrip(t *testing.T) {
	b, clk := newTestBook(t)
	createOrder(t, b, "alice", "15000000", "5000000", 24*time.Hour)
	fundTips(t, b, "alice", "500000")

	restored, err := NewBook(testConfig(), testLogger(), WithClock(clk.Now))
	require.NoError(t, err)
	err = restored.Restore(b.Config(), map[string]UserConfig{
		"alice": b.UserConfigFor("alice"),
	}, b.OrdersFor("alice"))
	require.NoError(t, err)

	require.Equal(t, b.OrdersFor("alice"), restored.OrdersFor("alice"))
	require.True(t, restored.UserConfigFor("alice").TipBalance.Equal(dec("500000")))
}

func TestKindMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrOrderNotFound, "OrderNotFound"},
		{ErrOrderNotDue, "OrderNotDue"},
		{ErrNotWhitelisted, "NotWhitelisted"},
		{ErrInsufficientTipBalance, "InsufficientTipBalance"},
		{io.EOF, ""},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
