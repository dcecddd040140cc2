package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/simaogato/cellar-backend/internal/adapter/rewards"
	"github.com/simaogato/cellar-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestEnterStrategy_DeploysInactiveAssets(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.deposit(t, alice, 300)

	deployed, err := h.svc.EnterStrategy(ctx, owner)

	require.NoError(t, err)
	assert.Equal(t, uint64(300), deployed.Uint64())
	assert.True(t, h.vault.InactiveAssets.IsZero())
	assert.Equal(t, uint64(300), h.totalAssets(t))

	snapshot, err := h.svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), snapshot.ActiveAssets.Uint64())
	assert.Equal(t, domain.VaultStatusActive, snapshot.Status)
}

func TestRedeemFromYieldSource(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.deposit(t, alice, 300)
	_, err := h.svc.EnterStrategy(ctx, owner)
	require.NoError(t, err)

	returned, err := h.svc.RedeemFromYieldSource(ctx, owner, usdc, amt(120))
	require.NoError(t, err)
	assert.Equal(t, uint64(120), returned.Uint64())
	assert.Equal(t, uint64(120), h.vault.InactiveAssets.Uint64())
	assert.Equal(t, uint64(300), h.totalAssets(t))

	_, err = h.svc.RedeemFromYieldSource(ctx, owner, dai, amt(1))
	assert.ErrorIs(t, err, domain.ErrUnsupportedAsset)
}

func TestRebalance_SameAssetFails(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.Rebalance(context.Background(), owner, usdc, nil)

	assert.ErrorIs(t, err, domain.ErrSameLendingToken)
}

func TestRebalance_MovesPositionToNewAsset(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.deposit(t, alice, 1000)
	_, err := h.svc.EnterStrategy(ctx, owner)
	require.NoError(t, err)
	h.router.SetRate(usdc, dai, 9_500)

	out, err := h.svc.Rebalance(ctx, owner, dai, amt(900))

	require.NoError(t, err)
	assert.Equal(t, uint64(950), out.Uint64())
	status, asset := h.svc.Status(ctx)
	assert.Equal(t, domain.VaultStatusActive, status)
	assert.Equal(t, dai, asset)
	assert.True(t, h.vault.InactiveAssets.IsZero())
	assert.Equal(t, uint64(950), h.totalAssets(t))
	assert.Equal(t, uint64(1000), h.vault.TotalShares.Uint64())
	assert.Contains(t, h.eventKinds(t), domain.EventRebalance)

	res, err := h.svc.Redeem(ctx, WithdrawInput{Caller: alice, Amount: amt(1000)})
	require.NoError(t, err)
	assert.Equal(t, uint64(950), res.Assets.Uint64())
	assert.Equal(t, uint64(950), h.balance(t, dai, alice))
}

func TestRebalance_SwapFailureRestoresPosition(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.deposit(t, alice, 1000)
	_, err := h.svc.EnterStrategy(ctx, owner)
	require.NoError(t, err)
	h.router.SetRate(usdc, dai, 9_500)

	_, err = h.svc.Rebalance(ctx, owner, dai, amt(1000))

	var slippage *domain.SlippageExceededError
	require.True(t, errors.As(err, &slippage))
	_, asset := h.svc.Status(ctx)
	assert.Equal(t, usdc, asset)
	assert.True(t, h.vault.InactiveAssets.IsZero())
	active, err := h.pool.BalanceOf(ctx, cellar, usdc)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), active.Uint64())
}

func TestReinvest_SwapsRewardsIntoStrategy(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.deposit(t, alice, 1000)
	_, err := h.svc.EnterStrategy(ctx, owner)
	require.NoError(t, err)
	h.rewards.AddRewards(cellar, amt(100))
	h.router.SetRate(aave, usdc, 9_500)

	claimed, err := h.svc.ClaimAndUnstake(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), claimed.Uint64())

	_, err = h.svc.Reinvest(ctx, owner, amt(95))
	assert.ErrorIs(t, err, domain.ErrCooldownActive)

	h.advance(10 * 24 * time.Hour)
	out, err := h.svc.Reinvest(ctx, owner, amt(95))

	require.NoError(t, err)
	assert.Equal(t, uint64(95), out.Uint64())
	assert.Equal(t, uint64(1095), h.totalAssets(t))
	assert.True(t, h.vault.InactiveAssets.IsZero())
	assert.Equal(t, uint64(0), h.balance(t, aave, cellar))
	assert.Contains(t, h.eventKinds(t), domain.EventReinvest)
}

func TestReinvest_MultihopPath(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.svc.SetRewardSwapPath([]domain.Asset{weth})
	h.rewards.AddRewards(cellar, amt(1000))
	h.router.SetRate(aave, weth, 9_500)
	h.router.SetRate(weth, usdc, 10_000)
	_, err := h.svc.ClaimAndUnstake(ctx, owner)
	require.NoError(t, err)
	h.advance(rewards.DefaultCooldown)

	out, err := h.svc.Reinvest(ctx, owner, amt(950))

	require.NoError(t, err)
	assert.Equal(t, uint64(950), out.Uint64())
	assert.Equal(t, uint64(950), h.totalAssets(t))
}

func TestReinvest_BlockedAfterShutdown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	require.NoError(t, h.svc.Shutdown(ctx, owner))

	_, err := h.svc.Reinvest(ctx, owner, nil)

	assert.ErrorIs(t, err, domain.ErrContractShutdown)
}

func TestTreasurySwap(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.bank.Mint(weth, cellar, amt(10))
	h.router.SetRate(weth, usdc, 20_000)

	out, err := h.svc.Swap(ctx, owner, weth, usdc, amt(10), amt(20))
	require.NoError(t, err)
	assert.Equal(t, uint64(20), out.Uint64())
	assert.Equal(t, uint64(20), h.vault.InactiveAssets.Uint64())

	_, err = h.svc.Swap(ctx, owner, weth, usdc, amt(10), nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = h.svc.Swap(ctx, owner, usdc, dai, amt(21), nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = h.svc.MultihopSwap(ctx, owner, []domain.Asset{usdc}, amt(1), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidPath)
}

func TestAccruePlatformFee(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.deposit(t, alice, 1_000_000)
	h.advance(24 * time.Hour)

	minted, err := h.svc.AccruePlatformFee(ctx)
	require.NoError(t, err)
	// 1% a year over one day
	assert.Equal(t, uint64(27), minted.Uint64())
	assert.Equal(t, uint64(27), h.vault.FeeShares.Uint64())

	again, err := h.svc.AccruePlatformFee(ctx)
	require.NoError(t, err)
	assert.True(t, again.IsZero())
	assert.Equal(t, uint64(1_000_027), h.vault.TotalShares.Uint64())
	h.requireInvariants(t)
}

func TestAccruePlatformFee_TwoPercentAfterEnteringStrategy(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(p *domain.VaultParams) { p.PlatformFeeBps = 200 })
	h.deposit(t, alice, 1_000_000)
	_, err := h.svc.EnterStrategy(ctx, owner)
	require.NoError(t, err)
	h.advance(24 * time.Hour)

	minted, err := h.svc.AccruePlatformFee(ctx)

	require.NoError(t, err)
	// 1,000,000 * 86400 / 31,536,000 * 0.02, rounded down
	assert.Equal(t, uint64(54), minted.Uint64())
	assert.Contains(t, h.eventKinds(t), domain.EventPlatformFee)
	h.requireInvariants(t)
}

func TestRebalance_SupplyFailureUnwindsSwap(t *testing.T) {
	ctx := context.Background()
	// Setup: the pool has no WETH reserve, so re-entry fails after the swap
	h := newHarness(t, nil)
	h.deposit(t, alice, 1000)
	_, err := h.svc.EnterStrategy(ctx, owner)
	require.NoError(t, err)

	// Execute
	out, err := h.svc.Rebalance(ctx, owner, weth, nil)

	// Assert
	assert.Nil(t, out)
	assert.ErrorIs(t, err, domain.ErrUnsupportedAsset)
	_, asset := h.svc.Status(ctx)
	assert.Equal(t, usdc, asset)
	assert.True(t, h.vault.InactiveAssets.IsZero())
	active, err := h.pool.BalanceOf(ctx, cellar, usdc)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), active.Uint64())
	assert.Equal(t, uint64(0), h.balance(t, weth, cellar))
	assert.Equal(t, uint64(0), h.balance(t, usdc, cellar))
	assert.NotContains(t, h.eventKinds(t), domain.EventRebalance)
	h.requireInvariants(t)
}

func TestRebalance_SupplyFailureWithMockedYieldSource(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.deposit(t, alice, 500)
	yield := new(MockYieldSource)
	yield.On("BalanceOf", mock.Anything, cellar, usdc).Return(amt(0), nil)
	yield.On("Deposit", mock.Anything, cellar, dai, amt(500)).Return(nil, errors.New("reserve frozen"))
	h.svc = NewVaultService(h.vault, h.bank, yield, h.router, h.rewards, h.recorder)

	_, err := h.svc.Rebalance(ctx, owner, dai, nil)

	assert.ErrorContains(t, err, "reserve frozen")
	_, asset := h.svc.Status(ctx)
	assert.Equal(t, usdc, asset)
	assert.Equal(t, uint64(500), h.vault.InactiveAssets.Uint64())
	assert.Equal(t, uint64(500), h.balance(t, usdc, cellar))
	assert.Equal(t, uint64(0), h.balance(t, dai, cellar))
	yield.AssertExpectations(t)
}

func TestReinvest_SupplyFailureReturnsRewards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	yield := new(MockYieldSource)
	yield.On("Deposit", mock.Anything, cellar, usdc, amt(95)).Return(nil, errors.New("reserve frozen"))
	h.svc = NewVaultService(h.vault, h.bank, yield, h.router, h.rewards, h.recorder)
	h.rewards.AddRewards(cellar, amt(100))
	h.router.SetRate(aave, usdc, 9_500)
	_, err := h.svc.ClaimAndUnstake(ctx, owner)
	require.NoError(t, err)
	h.advance(rewards.DefaultCooldown)

	out, err := h.svc.Reinvest(ctx, owner, amt(95))

	assert.Nil(t, out)
	assert.ErrorContains(t, err, "reserve frozen")
	assert.True(t, h.vault.InactiveAssets.IsZero())
	assert.Equal(t, uint64(0), h.balance(t, usdc, cellar))
	// swapped back at the router's default 1:1 rate
	assert.Equal(t, uint64(95), h.balance(t, aave, cellar))
	assert.NotContains(t, h.eventKinds(t), domain.EventReinvest)
	yield.AssertExpectations(t)
}
