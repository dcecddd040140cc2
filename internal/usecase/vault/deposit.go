package vault

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/simaogato/cellar-backend/internal/domain"
)

// DepositInput describes a deposit request
type DepositInput struct {
	Caller    domain.Address
	Receiver  domain.Address // defaults to Caller
	Asset     domain.Asset   // defaults to the vault asset
	Amount    *uint256.Int
	MinOutput *uint256.Int // swap floor when Asset differs from the vault asset
}

// DepositResult reports the assets credited and the shares minted
type DepositResult struct {
	Assets *uint256.Int
	Shares *uint256.Int
}

// Deposit pulls up to Amount from the caller, converts it into the vault asset when
// needed and mints shares to the receiver as a new lot priced at the current share price.
// The credited amount is truncated to the caller's balance and to the receiver's
// remaining per-user allowance before the liquidity cap is checked. For a swapped input
// both caps apply to the swap proceeds and any excess goes back to the caller.
func (s *VaultService) Deposit(ctx context.Context, in DepositInput) (*DepositResult, error) {
	ctx, unlock, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	v := s.vault
	if err := v.CheckDepositAllowed(); err != nil {
		return nil, err
	}
	if domain.IsZero(in.Amount) {
		return nil, domain.ErrInvalidAmount
	}
	receiver := in.Receiver
	if receiver == "" {
		receiver = in.Caller
	}
	if receiver == "" || receiver == v.Address {
		return nil, domain.ErrInvalidReceiver
	}
	asset := in.Asset
	if asset == "" {
		asset = v.Asset
	}
	if !v.AcceptsInput(asset) {
		return nil, domain.ErrUnsupportedAsset
	}

	held, err := s.bank.BalanceOf(ctx, asset, in.Caller)
	if err != nil {
		return nil, fmt.Errorf("query depositor balance: %w", err)
	}
	amount := domain.Min(in.Amount, held)
	if amount.IsZero() {
		return nil, domain.ErrInsufficientBalance
	}

	remaining := v.RemainingDeposit(receiver)
	if remaining != nil {
		if remaining.IsZero() {
			return nil, &domain.DepositRestrictedError{Assets: domain.Copy(in.Amount), MaxDeposit: domain.Copy(v.MaxDepositPerUser)}
		}
		if asset == v.Asset {
			amount = domain.Min(amount, remaining)
		}
	}

	totalAssets, err := s.totalAssets(ctx)
	if err != nil {
		return nil, err
	}
	if asset == v.Asset {
		if err := s.checkLiquidity(totalAssets, amount); err != nil {
			return nil, err
		}
	}

	if err := s.bank.Transfer(ctx, asset, in.Caller, v.Address, amount); err != nil {
		return nil, fmt.Errorf("pull deposit: %w", err)
	}

	var events []*domain.Event
	credited := amount
	if asset != v.Asset {
		out, err := s.router.Swap(ctx, v.Address, asset, v.Asset, amount, in.MinOutput)
		if err != nil {
			return nil, s.refund(ctx, asset, in.Caller, amount, fmt.Errorf("swap deposit: %w", err))
		}
		credited = domain.Copy(out)
		swapped := s.newEvent(domain.EventSwapped)
		swapped.AssetIn, swapped.AssetOut = asset, v.Asset
		swapped.AmountIn, swapped.AmountOut = domain.Copy(amount), domain.Copy(credited)
		events = append(events, swapped)

		if remaining != nil && credited.Gt(remaining) {
			excess := new(uint256.Int).Sub(credited, remaining)
			if err := s.bank.Transfer(ctx, v.Asset, v.Address, in.Caller, excess); err != nil {
				return nil, s.refund(ctx, v.Asset, in.Caller, credited, fmt.Errorf("return deposit excess: %w", err))
			}
			credited = domain.Copy(remaining)
		}
		if err := s.checkLiquidity(totalAssets, credited); err != nil {
			return nil, s.refund(ctx, v.Asset, in.Caller, credited, err)
		}
	}

	shares, err := v.ConvertToShares(credited, totalAssets)
	if err != nil {
		return nil, s.refund(ctx, v.Asset, in.Caller, credited, err)
	}
	if shares.IsZero() {
		return nil, s.refund(ctx, v.Asset, in.Caller, credited, domain.ErrInvalidAmount)
	}

	v.Ledger.MintLot(receiver, credited, shares, s.clock())
	v.InactiveAssets.Add(v.InactiveAssets, credited)
	v.TotalShares.Add(v.TotalShares, shares)

	e := s.newEvent(domain.EventDeposit)
	e.Caller, e.Receiver, e.Owner = in.Caller, receiver, receiver
	e.AssetIn = v.Asset
	e.AmountIn = domain.Copy(credited)
	e.AmountOut = domain.Copy(shares)
	e.Shares = domain.Copy(shares)
	events = append(events, e)
	s.emit(ctx, events...)

	s.logger.Info("deposit committed",
		"caller", string(in.Caller),
		"receiver", string(receiver),
		"input_asset", string(asset),
		"assets", credited.Dec(),
		"shares", shares.Dec(),
	)
	return &DepositResult{Assets: domain.Copy(credited), Shares: domain.Copy(shares)}, nil
}

// checkLiquidity rejects deposits that would lift total assets above the cap
func (s *VaultService) checkLiquidity(totalAssets, amount *uint256.Int) error {
	limit := s.vault.MaxLiquidity
	if limit == nil {
		return nil
	}
	after, err := domain.Add(totalAssets, amount)
	if err != nil || after.Gt(limit) {
		return &domain.LiquidityRestrictedError{TotalAssets: domain.Copy(totalAssets), MaxLiquidity: domain.Copy(limit)}
	}
	return nil
}
