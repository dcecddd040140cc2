package vault

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/simaogato/cellar-backend/internal/domain"
)

// Transfer moves shares from the caller to another holder, carrying lot cost basis
func (s *VaultService) Transfer(ctx context.Context, from, to domain.Address, shares *uint256.Int) error {
	ctx, unlock, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return s.transfer(ctx, from, from, to, shares)
}

// TransferFrom moves shares on behalf of from, spending the spender's allowance
func (s *VaultService) TransferFrom(ctx context.Context, spender, from, to domain.Address, shares *uint256.Int) error {
	ctx, unlock, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	v := s.vault
	if spender != from {
		allowed := v.Allowance(from, spender)
		if allowed.Lt(domain.Copy(shares)) {
			return domain.ErrUnauthorized
		}
	}
	if err := s.transfer(ctx, spender, from, to, shares); err != nil {
		return err
	}
	if spender != from {
		v.SetAllowance(from, spender, domain.SubFloor(v.Allowance(from, spender), shares))
	}
	return nil
}

func (s *VaultService) transfer(ctx context.Context, caller, from, to domain.Address, shares *uint256.Int) error {
	v := s.vault
	if to == "" || to == v.Address {
		return domain.ErrInvalidReceiver
	}
	if err := v.Ledger.TransferLots(from, to, shares); err != nil {
		return err
	}

	e := s.newEvent(domain.EventTransfer)
	e.Caller, e.Owner, e.Receiver = caller, from, to
	e.Shares = domain.Copy(shares)
	s.emit(ctx, e)

	s.logger.Debug("shares transferred", "from", string(from), "to", string(to), "shares", shares.Dec())
	return nil
}

// Approve sets the number of the owner's shares spender may move or redeem
func (s *VaultService) Approve(ctx context.Context, owner, spender domain.Address, shares *uint256.Int) error {
	ctx, unlock, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if owner == "" || spender == "" {
		return domain.ErrInvalidReceiver
	}
	s.vault.SetAllowance(owner, spender, shares)

	e := s.newEvent(domain.EventApproval)
	e.Owner, e.Receiver = owner, spender
	e.Shares = domain.Copy(shares)
	s.emit(ctx, e)
	return nil
}
