package dashboard

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/simaogato/cellar-backend/internal/domain"
)

// sharePricePrecision is the number of decimal places kept in the share price
const sharePricePrecision = 18

// TotalsReader captures the vault's global totals
type TotalsReader interface {
	Totals(ctx context.Context) (*domain.VaultSnapshot, error)
}

// VaultSummary represents the vault-wide dashboard figures
type VaultSummary struct {
	Asset          domain.Asset
	Status         domain.VaultStatus
	TotalAssets    decimal.Decimal
	ActiveAssets   decimal.Decimal
	InactiveAssets decimal.Decimal
	TotalShares    decimal.Decimal
	FeeShares      decimal.Decimal
	SharePrice     decimal.Decimal
}

// DashboardService handles dashboard-related operations
type DashboardService struct {
	Vault TotalsReader
}

// NewDashboardService creates a new DashboardService instance
func NewDashboardService(vault TotalsReader) *DashboardService {
	return &DashboardService{
		Vault: vault,
	}
}

// GetVaultSummary calculates the vault summary
// Logic:
//   - TotalAssets: inactive assets + yield source balance
//   - SharePrice: TotalAssets / TotalShares, 1 while no shares exist
func (s *DashboardService) GetVaultSummary(ctx context.Context) (*VaultSummary, error) {
	totals, err := s.Vault.Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read vault totals: %w", err)
	}

	totalAssets := domain.ToDecimal(totals.TotalAssets)
	totalShares := domain.ToDecimal(totals.TotalShares)

	sharePrice := decimal.NewFromInt(1)
	if !totalShares.IsZero() {
		sharePrice = totalAssets.DivRound(totalShares, sharePricePrecision)
	}

	return &VaultSummary{
		Asset:          totals.Asset,
		Status:         totals.Status,
		TotalAssets:    totalAssets,
		ActiveAssets:   domain.ToDecimal(totals.ActiveAssets),
		InactiveAssets: domain.ToDecimal(totals.InactiveAssets),
		TotalShares:    totalShares,
		FeeShares:      domain.ToDecimal(totals.FeeShares),
		SharePrice:     sharePrice,
	}, nil
}
