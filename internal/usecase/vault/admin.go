package vault

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/simaogato/cellar-backend/internal/domain"
)

// SetPause toggles the pause flag. Paused vaults reject deposits but allow withdrawals.
func (s *VaultService) SetPause(ctx context.Context, caller domain.Address, paused bool) error {
	ctx, unlock, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.requireOwner(caller); err != nil {
		return err
	}
	if s.vault.Shutdown {
		return domain.ErrContractShutdown
	}
	s.vault.Paused = paused

	e := s.newEvent(domain.EventPause)
	e.Caller = caller
	e.Flag = paused
	s.emit(ctx, e)
	s.logger.Info("pause state changed", "paused", paused)
	return nil
}

// Shutdown exits the yield position and permanently blocks deposits and strategy entry
func (s *VaultService) Shutdown(ctx context.Context, caller domain.Address) error {
	ctx, unlock, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.requireOwner(caller); err != nil {
		return err
	}
	v := s.vault
	if v.Shutdown {
		return domain.ErrContractShutdown
	}

	var events []*domain.Event
	active, err := s.activeAssets(ctx)
	if err != nil {
		return err
	}
	if !active.IsZero() {
		returned, err := s.redeem(ctx, active)
		if err != nil {
			return err
		}
		events = append(events, s.redeemEvent(caller, returned))
	}
	v.Shutdown = true

	e := s.newEvent(domain.EventShutdown)
	e.Caller = caller
	events = append(events, e)
	s.emit(ctx, events...)
	s.logger.Warn("vault shut down", "inactive_assets", v.InactiveAssets.Dec())
	return nil
}

// Sweep sends stray tokens held by the vault to the given address. The vault asset and
// its yield receipt token are protected.
func (s *VaultService) Sweep(ctx context.Context, caller domain.Address, asset domain.Asset, to domain.Address) (*uint256.Int, error) {
	ctx, unlock, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.requireOwner(caller); err != nil {
		return nil, err
	}
	v := s.vault
	if asset == v.Asset || asset == s.yield.ReceiptAsset(v.Asset) {
		return nil, &domain.ProtectedTokenError{Asset: asset}
	}
	if to == "" {
		to = caller
	}
	balance, err := s.bank.BalanceOf(ctx, asset, v.Address)
	if err != nil {
		return nil, fmt.Errorf("query sweep balance: %w", err)
	}
	balance = domain.Copy(balance)
	if !balance.IsZero() {
		if err := s.bank.Transfer(ctx, asset, v.Address, to, balance); err != nil {
			return nil, fmt.Errorf("sweep %s: %w", asset, err)
		}
	}

	e := s.newEvent(domain.EventSweep)
	e.Caller, e.Receiver = caller, to
	e.AssetOut = asset
	e.AmountOut = domain.Copy(balance)
	s.emit(ctx, e)
	return balance, nil
}

// SetInputAsset marks asset as eligible or ineligible for deposits
func (s *VaultService) SetInputAsset(ctx context.Context, caller domain.Address, asset domain.Asset, eligible bool) error {
	_, unlock, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.requireOwner(caller); err != nil {
		return err
	}
	if asset == "" {
		return domain.ErrUnsupportedAsset
	}
	if eligible {
		s.vault.InputAssets[asset] = true
	} else {
		delete(s.vault.InputAssets, asset)
	}
	return nil
}

// SetLiquidityLimit caps total assets; nil removes the cap
func (s *VaultService) SetLiquidityLimit(ctx context.Context, caller domain.Address, limit *uint256.Int) error {
	_, unlock, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.requireOwner(caller); err != nil {
		return err
	}
	if limit == nil {
		s.vault.MaxLiquidity = nil
	} else {
		s.vault.MaxLiquidity = domain.Copy(limit)
	}
	return nil
}

// RemoveLiquidityRestriction lifts both the liquidity cap and the per-user deposit cap
func (s *VaultService) RemoveLiquidityRestriction(ctx context.Context, caller domain.Address) error {
	_, unlock, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.requireOwner(caller); err != nil {
		return err
	}
	s.vault.MaxLiquidity = nil
	s.vault.MaxDepositPerUser = nil
	s.logger.Info("liquidity restrictions removed")
	return nil
}

// SetDepositLimit caps each user's running deposits; nil removes the cap
func (s *VaultService) SetDepositLimit(ctx context.Context, caller domain.Address, limit *uint256.Int) error {
	_, unlock, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.requireOwner(caller); err != nil {
		return err
	}
	if limit == nil {
		s.vault.MaxDepositPerUser = nil
	} else {
		s.vault.MaxDepositPerUser = domain.Copy(limit)
	}
	return nil
}
