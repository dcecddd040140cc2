package bank

import (
	"context"
	"sync"

	"github.com/holiman/uint256"
	"github.com/simaogato/cellar-backend/internal/domain"
)

// MemoryBank is an in-process token ledger keyed by asset and holder
type MemoryBank struct {
	mu       sync.RWMutex
	balances map[domain.Asset]map[domain.Address]*uint256.Int
}

// NewMemoryBank creates an empty bank
func NewMemoryBank() *MemoryBank {
	return &MemoryBank{balances: make(map[domain.Asset]map[domain.Address]*uint256.Int)}
}

// Mint credits amount of asset to holder
func (b *MemoryBank) Mint(asset domain.Asset, holder domain.Address, amount *uint256.Int) {
	if domain.IsZero(amount) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	bal := b.balance(asset, holder)
	bal.Add(bal, amount)
}

// BalanceOf returns a copy of holder's balance of asset
func (b *MemoryBank) BalanceOf(_ context.Context, asset domain.Asset, holder domain.Address) (*uint256.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if holders, ok := b.balances[asset]; ok {
		if bal, ok := holders[holder]; ok {
			return bal.Clone(), nil
		}
	}
	return domain.Zero(), nil
}

// Transfer moves amount of asset from one holder to another
func (b *MemoryBank) Transfer(ctx context.Context, asset domain.Asset, from, to domain.Address, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if domain.IsZero(amount) {
		return domain.ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	src := b.balance(asset, from)
	if src.Lt(amount) {
		return domain.ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	dst := b.balance(asset, to)
	src.Sub(src, amount)
	dst.Add(dst, amount)
	return nil
}

func (b *MemoryBank) balance(asset domain.Asset, holder domain.Address) *uint256.Int {
	holders, ok := b.balances[asset]
	if !ok {
		holders = make(map[domain.Address]*uint256.Int)
		b.balances[asset] = holders
	}
	bal, ok := holders[holder]
	if !ok {
		bal = domain.Zero()
		holders[holder] = bal
	}
	return bal
}
