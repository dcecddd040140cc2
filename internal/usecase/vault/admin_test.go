package vault

import (
	"context"
	"errors"
	"testing"

	"github.com/simaogato/cellar-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmin_RequiresOwner(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		call func(s *VaultService) error
	}{
		{name: "SetPause", call: func(s *VaultService) error { return s.SetPause(ctx, alice, true) }},
		{name: "Shutdown", call: func(s *VaultService) error { return s.Shutdown(ctx, alice) }},
		{name: "EnterStrategy", call: func(s *VaultService) error { _, err := s.EnterStrategy(ctx, alice); return err }},
		{name: "Rebalance", call: func(s *VaultService) error { _, err := s.Rebalance(ctx, alice, dai, nil); return err }},
		{name: "Sweep", call: func(s *VaultService) error { _, err := s.Sweep(ctx, alice, weth, alice); return err }},
		{name: "ClaimAndUnstake", call: func(s *VaultService) error { _, err := s.ClaimAndUnstake(ctx, alice); return err }},
		{name: "Reinvest", call: func(s *VaultService) error { _, err := s.Reinvest(ctx, alice, nil); return err }},
		{name: "Swap", call: func(s *VaultService) error { _, err := s.Swap(ctx, alice, weth, usdc, amt(1), nil); return err }},
		{name: "SetInputAsset", call: func(s *VaultService) error { return s.SetInputAsset(ctx, alice, weth, true) }},
		{name: "SetLiquidityLimit", call: func(s *VaultService) error { return s.SetLiquidityLimit(ctx, alice, amt(1)) }},
		{name: "RemoveLiquidityRestriction", call: func(s *VaultService) error { return s.RemoveLiquidityRestriction(ctx, alice) }},
		{name: "SetDepositLimit", call: func(s *VaultService) error { return s.SetDepositLimit(ctx, alice, amt(1)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)

			err := tt.call(h.svc)

			assert.ErrorIs(t, err, domain.ErrUnauthorized)
			assert.Equal(t, domain.VaultStatusActive, h.vault.Status())
		})
	}
}

func TestLifecycle_PauseAndShutdown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.deposit(t, alice, 100)
	_, err := h.svc.EnterStrategy(ctx, owner)
	require.NoError(t, err)

	require.NoError(t, h.svc.SetPause(ctx, owner, true))
	h.bank.Mint(usdc, bob, amt(10))
	_, err = h.svc.Deposit(ctx, DepositInput{Caller: bob, Amount: amt(10)})
	assert.ErrorIs(t, err, domain.ErrContractPaused)

	require.NoError(t, h.svc.SetPause(ctx, owner, false))
	_, err = h.svc.Deposit(ctx, DepositInput{Caller: bob, Amount: amt(10)})
	require.NoError(t, err)

	require.NoError(t, h.svc.Shutdown(ctx, owner))
	status, _ := h.svc.Status(ctx)
	assert.Equal(t, domain.VaultStatusShutdown, status)
	assert.Equal(t, uint64(110), h.vault.InactiveAssets.Uint64())
	assert.Equal(t, uint64(110), h.totalAssets(t))

	assert.ErrorIs(t, h.svc.Shutdown(ctx, owner), domain.ErrContractShutdown)
	assert.ErrorIs(t, h.svc.SetPause(ctx, owner, true), domain.ErrContractShutdown)
	_, err = h.svc.EnterStrategy(ctx, owner)
	assert.ErrorIs(t, err, domain.ErrContractShutdown)
	_, err = h.svc.Deposit(ctx, DepositInput{Caller: bob, Amount: amt(1)})
	assert.ErrorIs(t, err, domain.ErrContractShutdown)

	res, err := h.svc.Redeem(ctx, WithdrawInput{Caller: alice, Amount: amt(100)})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), res.Assets.Uint64())
	h.requireInvariants(t)
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.deposit(t, alice, 100)
	h.bank.Mint(weth, cellar, amt(5))

	swept, err := h.svc.Sweep(ctx, owner, weth, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), swept.Uint64())
	assert.Equal(t, uint64(5), h.balance(t, weth, owner))

	for _, asset := range []domain.Asset{usdc, "aUSDC"} {
		_, err = h.svc.Sweep(ctx, owner, asset, owner)
		var protected *domain.ProtectedTokenError
		require.True(t, errors.As(err, &protected))
		assert.Equal(t, asset, protected.Asset)
		assert.ErrorIs(t, err, domain.ErrProtectedToken)
	}
	assert.Equal(t, uint64(100), h.balance(t, usdc, cellar))
}

func TestSetInputAsset(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.bank.Mint(weth, alice, amt(10))
	h.router.SetRate(weth, usdc, 20_000)

	_, err := h.svc.Deposit(ctx, DepositInput{Caller: alice, Asset: weth, Amount: amt(10)})
	assert.ErrorIs(t, err, domain.ErrUnsupportedAsset)

	require.NoError(t, h.svc.SetInputAsset(ctx, owner, weth, true))
	res, err := h.svc.Deposit(ctx, DepositInput{Caller: alice, Asset: weth, Amount: amt(10)})
	require.NoError(t, err)
	assert.Equal(t, uint64(20), res.Assets.Uint64())

	require.NoError(t, h.svc.SetInputAsset(ctx, owner, dai, false))
	assert.False(t, h.vault.AcceptsInput(dai))
}

func TestSetLimits(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	require.NoError(t, h.svc.SetLiquidityLimit(ctx, owner, amt(50)))
	require.NoError(t, h.svc.SetDepositLimit(ctx, owner, amt(40)))
	h.bank.Mint(usdc, alice, amt(100))

	res, err := h.svc.Deposit(ctx, DepositInput{Caller: alice, Amount: amt(100)})
	require.NoError(t, err)
	assert.Equal(t, uint64(40), res.Assets.Uint64())

	h.bank.Mint(usdc, bob, amt(20))
	_, err = h.svc.Deposit(ctx, DepositInput{Caller: bob, Amount: amt(20)})
	assert.ErrorIs(t, err, domain.ErrLiquidityRestricted)

	require.NoError(t, h.svc.SetLiquidityLimit(ctx, owner, nil))
	_, err = h.svc.Deposit(ctx, DepositInput{Caller: bob, Amount: amt(20)})
	require.NoError(t, err)
}
