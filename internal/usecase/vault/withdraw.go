package vault

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/simaogato/cellar-backend/internal/domain"
)

// WithdrawInput describes a withdraw or redeem request.
// Amount is in assets for Withdraw and in shares for Redeem.
type WithdrawInput struct {
	Caller   domain.Address
	Receiver domain.Address // defaults to Caller
	Owner    domain.Address // defaults to Caller
	Amount   *uint256.Int
}

// WithdrawResult reports the payout and the shares burned from the owner's lots
type WithdrawResult struct {
	Assets    *uint256.Int
	Shares    *uint256.Int
	FeeShares *uint256.Int
	Gain      *uint256.Int
}

// Withdraw burns the shares worth Amount assets, rounding up, capped at the owner's balance
func (s *VaultService) Withdraw(ctx context.Context, in WithdrawInput) (*WithdrawResult, error) {
	ctx, unlock, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if domain.IsZero(in.Amount) {
		return nil, domain.ErrInvalidAmount
	}
	totalAssets, err := s.totalAssets(ctx)
	if err != nil {
		return nil, err
	}
	shares, err := s.vault.PreviewWithdrawShares(in.Amount, totalAssets)
	if err != nil {
		return nil, err
	}
	return s.withdrawShares(ctx, in, shares, totalAssets)
}

// Redeem burns Amount shares, capped at the owner's balance
func (s *VaultService) Redeem(ctx context.Context, in WithdrawInput) (*WithdrawResult, error) {
	ctx, unlock, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if domain.IsZero(in.Amount) {
		return nil, domain.ErrInvalidAmount
	}
	totalAssets, err := s.totalAssets(ctx)
	if err != nil {
		return nil, err
	}
	return s.withdrawShares(ctx, in, in.Amount, totalAssets)
}

// withdrawShares consumes the owner's lots oldest first. The performance fee on the
// realized gain is carved out of the burned shares and kept by the vault; the
// remaining shares are paid out, redeeming any shortfall from the yield source.
// Nothing is committed until the payout transfer succeeds.
func (s *VaultService) withdrawShares(ctx context.Context, in WithdrawInput, requested, totalAssets *uint256.Int) (*WithdrawResult, error) {
	v := s.vault
	owner := in.Owner
	if owner == "" {
		owner = in.Caller
	}
	receiver := in.Receiver
	if receiver == "" {
		receiver = in.Caller
	}

	balance := v.Ledger.BalanceOf(owner)
	shares := domain.Min(requested, balance)
	if in.Caller != owner {
		allowance := v.Allowance(owner, in.Caller)
		if allowance.IsZero() || allowance.Lt(shares) {
			return nil, domain.ErrUnauthorized
		}
	}
	if balance.IsZero() {
		return nil, domain.ErrZeroShares
	}

	totalShares := domain.Copy(v.TotalShares)
	release, err := v.Ledger.PreviewConsume(owner, shares, totalAssets, totalShares)
	if err != nil {
		return nil, err
	}
	feeAssets, feeShares, err := s.fees.PerformanceFee(v, release.Gain, totalAssets)
	if err != nil {
		return nil, err
	}
	feeShares = domain.Min(feeShares, release.Shares)
	payoutShares := new(uint256.Int).Sub(release.Shares, feeShares)
	payout, err := v.ConvertToAssets(payoutShares, totalAssets)
	if err != nil {
		return nil, err
	}

	var events []*domain.Event
	redeemed, err := s.ensureInactive(ctx, payout)
	if err != nil {
		return nil, err
	}
	events = append(events, redeemed)

	if !payout.IsZero() {
		if err := s.bank.Transfer(ctx, v.Asset, v.Address, receiver, payout); err != nil {
			s.undoRedeem(ctx, redeemed)
			return nil, fmt.Errorf("pay out withdrawal: %w", err)
		}
	}

	if _, err := v.Ledger.ConsumeForWithdrawal(owner, shares, totalAssets, totalShares); err != nil {
		s.logger.Error("ledger rejected previewed withdrawal", "owner", string(owner), "error", err)
		return nil, err
	}
	v.InactiveAssets = domain.SubFloor(v.InactiveAssets, payout)
	v.TotalShares = domain.SubFloor(v.TotalShares, release.Shares)
	v.MintFeeShares(feeShares)
	if in.Caller != owner {
		v.SetAllowance(owner, in.Caller, domain.SubFloor(v.Allowance(owner, in.Caller), shares))
	}

	e := s.newEvent(domain.EventWithdraw)
	e.Caller, e.Receiver, e.Owner = in.Caller, receiver, owner
	e.AssetOut = v.Asset
	e.AmountOut = domain.Copy(payout)
	e.Shares = domain.Copy(release.Shares)
	events = append(events, e)
	if !feeShares.IsZero() {
		fee := s.newEvent(domain.EventPerformanceFee)
		fee.Owner = owner
		fee.AmountIn = domain.Copy(feeAssets)
		fee.Shares = domain.Copy(feeShares)
		events = append(events, fee)
	}
	s.emit(ctx, events...)

	s.logger.Info("withdrawal committed",
		"caller", string(in.Caller),
		"owner", string(owner),
		"receiver", string(receiver),
		"shares", release.Shares.Dec(),
		"assets", payout.Dec(),
		"gain", release.Gain.Dec(),
		"fee_shares", feeShares.Dec(),
	)
	return &WithdrawResult{
		Assets:    payout,
		Shares:    domain.Copy(release.Shares),
		FeeShares: domain.Copy(feeShares),
		Gain:      domain.Copy(release.Gain),
	}, nil
}
