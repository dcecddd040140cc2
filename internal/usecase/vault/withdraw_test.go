package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/simaogato/cellar-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRedeem_SharedGrowthIsSplitEvenly(t *testing.T) {
	ctx := context.Background()
	// Setup: two equal deposits, deployed, index up 25%
	h := newHarness(t, nil)
	h.deposit(t, alice, 100)
	h.deposit(t, bob, 100)
	_, err := h.svc.EnterStrategy(ctx, owner)
	require.NoError(t, err)
	h.setIndex(t, usdc, 12_500)
	assert.Equal(t, uint64(250), h.totalAssets(t))

	// Execute
	first, err := h.svc.Redeem(ctx, WithdrawInput{Caller: alice, Amount: amt(100)})
	require.NoError(t, err)
	second, err := h.svc.Redeem(ctx, WithdrawInput{Caller: bob, Amount: amt(100)})
	require.NoError(t, err)

	// Assert: a 5% fee on a 25 gain rounds to zero shares
	assert.Equal(t, uint64(125), first.Assets.Uint64())
	assert.Equal(t, uint64(125), second.Assets.Uint64())
	assert.Equal(t, uint64(25), first.Gain.Uint64())
	assert.Equal(t, uint64(125), h.balance(t, usdc, alice))
	assert.Equal(t, uint64(125), h.balance(t, usdc, bob))
	assert.True(t, h.vault.TotalShares.IsZero())
	h.requireInvariants(t)
}

func TestRedeem_PerformanceFeeCarvedFromBurnedShares(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.deposit(t, alice, 1000)
	_, err := h.svc.EnterStrategy(ctx, owner)
	require.NoError(t, err)
	h.setIndex(t, usdc, 12_500)
	require.NoError(t, h.svc.Shutdown(ctx, owner))
	assert.Equal(t, uint64(1250), h.vault.InactiveAssets.Uint64())

	res, err := h.svc.Redeem(ctx, WithdrawInput{Caller: alice, Amount: amt(1000)})

	require.NoError(t, err)
	// gain 250, fee 12 assets = 9 shares, payout 991 * 1.25
	assert.Equal(t, uint64(9), res.FeeShares.Uint64())
	assert.Equal(t, uint64(1238), res.Assets.Uint64())
	assert.Equal(t, uint64(1238), h.balance(t, usdc, alice))
	assert.Equal(t, uint64(9), h.vault.FeeShares.Uint64())
	assert.Equal(t, uint64(9), h.vault.TotalShares.Uint64())
	assert.Equal(t, uint64(9), h.svc.BalanceOf(ctx, cellar).Uint64())
	assert.Contains(t, h.eventKinds(t), domain.EventPerformanceFee)
	h.requireInvariants(t)

	fees, err := h.svc.TransferFees(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), fees.Shares.Uint64())
	assert.Equal(t, uint64(12), fees.Assets.Uint64())
	assert.Equal(t, uint64(12), h.balance(t, usdc, collector))
	assert.True(t, h.vault.TotalShares.IsZero())
	assert.True(t, h.vault.InactiveAssets.IsZero())
}

func TestWithdraw_RoundsSharesUpAndRedeemsShortfall(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(p *domain.VaultParams) { p.PerformanceFeeBps = 0 })
	h.deposit(t, alice, 100)
	_, err := h.svc.EnterStrategy(ctx, owner)
	require.NoError(t, err)
	h.setIndex(t, usdc, 12_500)

	res, err := h.svc.Withdraw(ctx, WithdrawInput{Caller: alice, Amount: amt(101)})

	require.NoError(t, err)
	// ceil(101 * 100 / 125) = 81 shares, worth 101
	assert.Equal(t, uint64(81), res.Shares.Uint64())
	assert.Equal(t, uint64(101), res.Assets.Uint64())
	assert.Equal(t, uint64(19), h.vault.Ledger.BalanceOf(alice).Uint64())
	assert.Contains(t, h.eventKinds(t), domain.EventRedeemFromAave)
	h.requireInvariants(t)
}

func TestWithdraw_CapsAtOwnerBalance(t *testing.T) {
	h := newHarness(t, nil)
	h.deposit(t, alice, 100)

	res, err := h.svc.Withdraw(context.Background(), WithdrawInput{Caller: alice, Amount: amt(500)})

	require.NoError(t, err)
	assert.Equal(t, uint64(100), res.Shares.Uint64())
	assert.Equal(t, uint64(100), res.Assets.Uint64())
	assert.True(t, h.vault.Ledger.BalanceOf(alice).IsZero())
}

func TestRedeem_ZeroSharesFails(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.Redeem(context.Background(), WithdrawInput{Caller: alice, Amount: amt(10)})

	assert.ErrorIs(t, err, domain.ErrZeroShares)
}

func TestRedeem_ConsumesLotsOldestFirst(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.deposit(t, alice, 100)
	h.advance(time.Minute)
	h.deposit(t, alice, 50)

	_, err := h.svc.Redeem(ctx, WithdrawInput{Caller: alice, Amount: amt(100)})
	require.NoError(t, err)
	account, err := h.svc.Account(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, account.Cursor)
	assert.True(t, account.Lots[0].Shares.IsZero())
	assert.Equal(t, uint64(50), account.Shares.Uint64())

	_, err = h.svc.Redeem(ctx, WithdrawInput{Caller: alice, Amount: amt(20)})
	require.NoError(t, err)
	account, err = h.svc.Account(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, account.Cursor)
	assert.Equal(t, uint64(30), account.Lots[1].Shares.Uint64())
	assert.Equal(t, uint64(30), account.CostBasis.Uint64())
	h.requireInvariants(t)
}

func TestRedeem_ThirdPartyNeedsAllowance(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.deposit(t, alice, 100)

	_, err := h.svc.Redeem(ctx, WithdrawInput{Caller: bob, Owner: alice, Amount: amt(40)})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, h.svc.Approve(ctx, alice, bob, amt(40)))
	res, err := h.svc.Redeem(ctx, WithdrawInput{Caller: bob, Owner: alice, Amount: amt(40)})
	require.NoError(t, err)
	assert.Equal(t, uint64(40), res.Assets.Uint64())
	assert.Equal(t, uint64(40), h.balance(t, usdc, bob))
	assert.True(t, h.svc.Allowance(ctx, alice, bob).IsZero())

	_, err = h.svc.Redeem(ctx, WithdrawInput{Caller: bob, Owner: alice, Amount: amt(1)})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRedeem_AllowedWhilePaused(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.deposit(t, alice, 100)
	require.NoError(t, h.svc.SetPause(ctx, owner, true))

	res, err := h.svc.Redeem(ctx, WithdrawInput{Caller: alice, Amount: amt(100)})

	require.NoError(t, err)
	assert.Equal(t, uint64(100), res.Assets.Uint64())
}

func TestRedeem_YieldSourceFailureCommitsNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	yield := new(MockYieldSource)
	yield.On("BalanceOf", mock.Anything, cellar, usdc).Return(amt(100), nil)
	yield.On("Withdraw", mock.Anything, cellar, usdc, mock.Anything).Return(nil, errors.New("pool frozen"))
	h.svc = NewVaultService(h.vault, h.bank, yield, h.router, h.rewards, h.recorder)
	h.vault.Ledger.MintLot(alice, amt(100), amt(100), start)
	h.vault.TotalShares = amt(100)

	res, err := h.svc.Redeem(ctx, WithdrawInput{Caller: alice, Amount: amt(100)})

	assert.Nil(t, res)
	assert.ErrorContains(t, err, "pool frozen")
	assert.Equal(t, uint64(100), h.vault.Ledger.BalanceOf(alice).Uint64())
	assert.Equal(t, uint64(100), h.vault.TotalShares.Uint64())
	assert.Empty(t, h.eventKinds(t))
	yield.AssertExpectations(t)
}

func TestTransfer_PreservesCostBasis(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.deposit(t, alice, 100)
	_, err := h.svc.EnterStrategy(ctx, owner)
	require.NoError(t, err)
	h.setIndex(t, usdc, 12_500)

	require.NoError(t, h.svc.Transfer(ctx, alice, bob, amt(50)))
	assert.Equal(t, uint64(50), h.vault.Ledger.CostBasisOf(bob).Uint64())
	assert.Equal(t, []domain.DepositLot{{Assets: amt(50), Shares: amt(50), Timestamp: start}}, h.vault.Ledger.Lots(bob))

	res, err := h.svc.Redeem(ctx, WithdrawInput{Caller: bob, Amount: amt(50)})
	require.NoError(t, err)
	assert.Equal(t, uint64(12), res.Gain.Uint64())
	assert.Equal(t, uint64(62), res.Assets.Uint64())
	h.requireInvariants(t)
}

func TestTransferFrom_SpendsAllowance(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.deposit(t, alice, 100)

	err := h.svc.TransferFrom(ctx, bob, alice, bob, amt(10))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, h.svc.Approve(ctx, alice, bob, amt(30)))
	require.NoError(t, h.svc.TransferFrom(ctx, bob, alice, bob, amt(10)))
	assert.Equal(t, uint64(20), h.svc.Allowance(ctx, alice, bob).Uint64())
	assert.Equal(t, uint64(10), h.svc.BalanceOf(ctx, bob).Uint64())

	err = h.svc.Transfer(ctx, alice, cellar, amt(1))
	assert.ErrorIs(t, err, domain.ErrInvalidReceiver)
	err = h.svc.Transfer(ctx, alice, bob, amt(1_000))
	assert.ErrorIs(t, err, domain.ErrInsufficientShares)
}

func TestRedeem_PayoutFailureRestoresYieldPosition(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.deposit(t, alice, 100)
	_, err := h.svc.EnterStrategy(ctx, owner)
	require.NoError(t, err)
	h.svc = NewVaultService(h.vault, &payoutFailingBank{TokenBank: h.bank}, h.pool, h.router, h.rewards, h.recorder)

	res, err := h.svc.Redeem(ctx, WithdrawInput{Caller: alice, Amount: amt(100)})

	assert.Nil(t, res)
	assert.ErrorContains(t, err, "transfer frozen")
	assert.True(t, h.vault.InactiveAssets.IsZero())
	active, err := h.pool.BalanceOf(ctx, cellar, usdc)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), active.Uint64())
	assert.Equal(t, uint64(0), h.balance(t, usdc, cellar))
	assert.Equal(t, uint64(100), h.vault.Ledger.BalanceOf(alice).Uint64())
	assert.Equal(t, uint64(100), h.vault.TotalShares.Uint64())
	h.requireInvariants(t)
}

func TestTransferFees_PayoutFailureRestoresYieldPosition(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.deposit(t, alice, 1_000_000)
	_, err := h.svc.EnterStrategy(ctx, owner)
	require.NoError(t, err)
	h.advance(24 * time.Hour)
	_, err = h.svc.AccruePlatformFee(ctx)
	require.NoError(t, err)
	h.svc = NewVaultService(h.vault, &payoutFailingBank{TokenBank: h.bank}, h.pool, h.router, h.rewards, h.recorder)

	fees, err := h.svc.TransferFees(ctx)

	assert.Nil(t, fees)
	assert.ErrorContains(t, err, "transfer frozen")
	assert.True(t, h.vault.InactiveAssets.IsZero())
	assert.Equal(t, uint64(27), h.vault.FeeShares.Uint64())
	assert.Equal(t, uint64(1_000_000), h.totalAssets(t))
}

func TestRedeem_ThirdPartyAllowanceCheckedBeforeBalance(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	_, err := h.svc.Redeem(ctx, WithdrawInput{Caller: bob, Owner: alice, Amount: amt(10)})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, h.svc.Approve(ctx, alice, bob, amt(10)))
	_, err = h.svc.Redeem(ctx, WithdrawInput{Caller: bob, Owner: alice, Amount: amt(10)})
	assert.ErrorIs(t, err, domain.ErrZeroShares)
}
