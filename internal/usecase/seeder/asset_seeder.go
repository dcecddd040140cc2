package seeder

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/simaogato/cellar-backend/internal/domain"
)

// InputAssetRegistry manages the assets accepted for deposit
type InputAssetRegistry interface {
	AcceptsInput(ctx context.Context, asset domain.Asset) bool
	SetInputAsset(ctx context.Context, caller domain.Address, asset domain.Asset, eligible bool) error
}

// Minter credits tokens in a local bank
type Minter interface {
	Mint(asset domain.Asset, holder domain.Address, amount *uint256.Int)
	BalanceOf(ctx context.Context, asset domain.Asset, holder domain.Address) (*uint256.Int, error)
}

// GenesisBalance is a token balance a holder should start with
type GenesisBalance struct {
	Holder domain.Address
	Asset  domain.Asset
	Amount *uint256.Int
}

// AssetSeeder handles seeding of eligible input assets and starting balances
type AssetSeeder struct {
	registry InputAssetRegistry
	minter   Minter
	owner    domain.Address
}

// NewAssetSeeder creates a new AssetSeeder instance
func NewAssetSeeder(registry InputAssetRegistry, minter Minter, owner domain.Address) *AssetSeeder {
	return &AssetSeeder{
		registry: registry,
		minter:   minter,
		owner:    owner,
	}
}

// Seed ensures every configured input asset is eligible and every genesis
// holder owns at least its configured balance. Running it twice is a no-op.
func (s *AssetSeeder) Seed(ctx context.Context, inputAssets []domain.Asset, genesis []GenesisBalance) error {
	for _, asset := range inputAssets {
		if s.registry.AcceptsInput(ctx, asset) {
			continue
		}
		if err := s.registry.SetInputAsset(ctx, s.owner, asset, true); err != nil {
			return fmt.Errorf("failed to register input asset %s: %w", asset, err)
		}
	}

	if s.minter == nil {
		return nil
	}
	for _, g := range genesis {
		current, err := s.minter.BalanceOf(ctx, g.Asset, g.Holder)
		if err != nil {
			return fmt.Errorf("failed to read genesis balance: %w", err)
		}
		// Top up only the missing part
		if missing := domain.SubFloor(g.Amount, current); !missing.IsZero() {
			s.minter.Mint(g.Asset, g.Holder, missing)
		}
	}

	return nil
}
