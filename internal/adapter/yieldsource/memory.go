package yieldsource

import (
	"context"
	"sync"

	"github.com/holiman/uint256"
	"github.com/simaogato/cellar-backend/internal/domain"
)

// Ray is the fixed-point scale of the liquidity index
var Ray = domain.MustParseAmount("1000000000000000000000000000")

type reserve struct {
	index  *uint256.Int
	scaled map[domain.Address]*uint256.Int
}

// LendingPool is an in-memory lending market. Positions are stored as scaled balances
// and valued at scaled * index / Ray, so raising the index accrues interest to every
// supplier. Underlying tokens live in the bank under the pool's own address.
type LendingPool struct {
	mu       sync.Mutex
	bank     domain.TokenBank
	address  domain.Address
	reserves map[domain.Asset]*reserve
}

// NewLendingPool creates a pool holding its liquidity at address
func NewLendingPool(bank domain.TokenBank, address domain.Address) *LendingPool {
	return &LendingPool{
		bank:     bank,
		address:  address,
		reserves: make(map[domain.Asset]*reserve),
	}
}

// Address returns the holder address of the pool's liquidity
func (p *LendingPool) Address() domain.Address {
	return p.address
}

// InitReserve lists asset with an index of one Ray. Listing twice is a no-op.
func (p *LendingPool) InitReserve(asset domain.Asset) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.reserves[asset]; ok {
		return
	}
	p.reserves[asset] = &reserve{index: Ray.Clone(), scaled: make(map[domain.Address]*uint256.Int)}
}

// SetLiquidityIndex moves the reserve's index, ray-scaled
func (p *LendingPool) SetLiquidityIndex(asset domain.Asset, index *uint256.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.reserves[asset]
	if !ok {
		return domain.ErrUnsupportedAsset
	}
	if domain.IsZero(index) {
		return domain.ErrInvalidAmount
	}
	r.index = index.Clone()
	return nil
}

// ReceiptAsset names the interest-bearing token of asset
func (p *LendingPool) ReceiptAsset(asset domain.Asset) domain.Asset {
	return "a" + asset
}

// Deposit pulls amount from holder and credits the scaled position
func (p *LendingPool) Deposit(ctx context.Context, holder domain.Address, asset domain.Asset, amount *uint256.Int) (*uint256.Int, error) {
	if domain.IsZero(amount) {
		return nil, domain.ErrInvalidAmount
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.reserves[asset]
	if !ok {
		return nil, domain.ErrUnsupportedAsset
	}
	scaled, err := domain.MulDivDown(amount, Ray, r.index)
	if err != nil {
		return nil, err
	}
	if err := p.bank.Transfer(ctx, asset, holder, p.address, amount); err != nil {
		return nil, err
	}
	bal := p.scaledOf(r, holder)
	bal.Add(bal, scaled)
	return amount.Clone(), nil
}

// Withdraw burns the scaled position worth amount and returns the underlying
func (p *LendingPool) Withdraw(ctx context.Context, holder domain.Address, asset domain.Asset, amount *uint256.Int) (*uint256.Int, error) {
	if domain.IsZero(amount) {
		return nil, domain.ErrInvalidAmount
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.reserves[asset]
	if !ok {
		return nil, domain.ErrUnsupportedAsset
	}
	scaled := p.scaledOf(r, holder)
	value, err := domain.MulDivDown(scaled, r.index, Ray)
	if err != nil {
		return nil, err
	}
	if amount.Gt(value) {
		return nil, domain.ErrInsufficientBalance
	}

	burn := scaled.Clone()
	if amount.Lt(value) {
		burn, err = domain.MulDivUp(amount, Ray, r.index)
		if err != nil {
			return nil, err
		}
		burn = domain.Min(burn, scaled)
	}
	if err := p.bank.Transfer(ctx, asset, p.address, holder, amount); err != nil {
		return nil, err
	}
	scaled.Sub(scaled, burn)
	return amount.Clone(), nil
}

// BalanceOf values holder's position at the current index
func (p *LendingPool) BalanceOf(_ context.Context, holder domain.Address, asset domain.Asset) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.reserves[asset]
	if !ok {
		return domain.Zero(), nil
	}
	bal, ok := r.scaled[holder]
	if !ok {
		return domain.Zero(), nil
	}
	return domain.MulDivDown(bal, r.index, Ray)
}

func (p *LendingPool) scaledOf(r *reserve, holder domain.Address) *uint256.Int {
	bal, ok := r.scaled[holder]
	if !ok {
		bal = domain.Zero()
		r.scaled[holder] = bal
	}
	return bal
}
