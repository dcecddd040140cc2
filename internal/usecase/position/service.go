package position

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/simaogato/cellar-backend/internal/domain"
	"github.com/simaogato/cellar-backend/internal/usecase/vault"
)

// AccountReader exposes a holder's shares, lots and their current value
type AccountReader interface {
	Account(ctx context.Context, owner domain.Address) (*vault.AccountView, error)
}

// Position summarizes a holder's stake in display units
type Position struct {
	Owner     domain.Address
	Shares    decimal.Decimal
	Value     decimal.Decimal
	CostBasis decimal.Decimal
	Profit    decimal.Decimal
	OpenLots  int
	Cursor    int
}

// PositionService handles position and profit reporting
type PositionService struct {
	Accounts AccountReader
	Decimals int32
}

// NewPositionService creates a new PositionService instance.
// decimals shifts base units into display units (18 for most ERC-20 assets).
func NewPositionService(accounts AccountReader, decimals int32) *PositionService {
	return &PositionService{
		Accounts: accounts,
		Decimals: decimals,
	}
}

// CalculateProfit calculates the unrealized profit/loss for a holder
// Logic: Profit = Value of shares at current price - remaining cost basis
func (s *PositionService) CalculateProfit(ctx context.Context, owner domain.Address) (decimal.Decimal, error) {
	account, err := s.Accounts.Account(ctx, owner)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load account: %w", err)
	}

	// No shares means nothing at risk
	if domain.IsZero(account.Shares) {
		return decimal.Zero, nil
	}

	return s.display(account.Value).Sub(s.display(account.CostBasis)), nil
}

// GetPosition returns the holder's shares, value, cost basis and profit
func (s *PositionService) GetPosition(ctx context.Context, owner domain.Address) (*Position, error) {
	account, err := s.Accounts.Account(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	value := s.display(account.Value)
	costBasis := s.display(account.CostBasis)

	return &Position{
		Owner:     owner,
		Shares:    s.display(account.Shares),
		Value:     value,
		CostBasis: costBasis,
		Profit:    value.Sub(costBasis),
		OpenLots:  len(account.Lots) - account.Cursor,
		Cursor:    account.Cursor,
	}, nil
}

func (s *PositionService) display(x *uint256.Int) decimal.Decimal {
	return domain.ToDecimal(x).Shift(-s.Decimals)
}
