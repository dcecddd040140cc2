package vault

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/simaogato/cellar-backend/internal/domain"
)

// FeeTransfer reports a fee payout to the collector
type FeeTransfer struct {
	Shares *uint256.Int
	Assets *uint256.Int
}

// AccruePlatformFee mints the time-based platform fee for the interval since the last
// accrual. Calling it twice at the same instant mints nothing the second time.
func (s *VaultService) AccruePlatformFee(ctx context.Context) (*uint256.Int, error) {
	ctx, unlock, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	totalAssets, err := s.totalAssets(ctx)
	if err != nil {
		return nil, err
	}
	feeAssets, feeShares, err := s.fees.Accrue(s.vault, totalAssets, s.clock())
	if err != nil {
		return nil, fmt.Errorf("accrue platform fee: %w", err)
	}
	if feeShares.IsZero() {
		return feeShares, nil
	}

	e := s.newEvent(domain.EventPlatformFee)
	e.Receiver = s.vault.Address
	e.AmountIn = domain.Copy(feeAssets)
	e.Shares = domain.Copy(feeShares)
	s.emit(ctx, e)

	s.logger.Info("platform fee accrued", "assets", feeAssets.Dec(), "shares", feeShares.Dec())
	return feeShares, nil
}

// TransferFees converts the vault's fee shares into assets at the current price, pays
// them to the fee collector and burns the shares
func (s *VaultService) TransferFees(ctx context.Context) (*FeeTransfer, error) {
	ctx, unlock, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	v := s.vault
	totalAssets, err := s.totalAssets(ctx)
	if err != nil {
		return nil, err
	}
	shares, assets, err := s.fees.Collect(v, totalAssets)
	if err != nil {
		return nil, err
	}
	if shares.IsZero() {
		return &FeeTransfer{Shares: shares, Assets: assets}, nil
	}

	var events []*domain.Event
	redeemed, err := s.ensureInactive(ctx, assets)
	if err != nil {
		return nil, err
	}
	events = append(events, redeemed)
	if !assets.IsZero() {
		if err := s.bank.Transfer(ctx, v.Asset, v.Address, v.FeeCollector, assets); err != nil {
			s.undoRedeem(ctx, redeemed)
			return nil, fmt.Errorf("pay fee collector: %w", err)
		}
	}
	v.InactiveAssets = domain.SubFloor(v.InactiveAssets, assets)
	s.fees.Burn(v, shares)

	e := s.newEvent(domain.EventTransferFees)
	e.Receiver = v.FeeCollector
	e.AssetOut = v.Asset
	e.AmountOut = domain.Copy(assets)
	e.Shares = domain.Copy(shares)
	events = append(events, e)
	s.emit(ctx, events...)

	s.logger.Info("fees transferred", "collector", string(v.FeeCollector), "shares", shares.Dec(), "assets", assets.Dec())
	return &FeeTransfer{Shares: shares, Assets: assets}, nil
}
