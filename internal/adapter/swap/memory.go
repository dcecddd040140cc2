package swap

import (
	"context"
	"sync"

	"github.com/holiman/uint256"
	"github.com/simaogato/cellar-backend/internal/domain"
)

type pair struct {
	in  domain.Asset
	out domain.Asset
}

// Router is an in-memory exchange quoting each pair at a fixed rate in basis points of
// the input amount. Output liquidity is held in the bank under the router's address.
type Router struct {
	mu          sync.RWMutex
	bank        domain.TokenBank
	address     domain.Address
	defaultRate uint64
	rates       map[pair]uint64
}

// NewRouter creates a router; pairs without an explicit rate use defaultRateBps
func NewRouter(bank domain.TokenBank, address domain.Address, defaultRateBps uint64) *Router {
	return &Router{
		bank:        bank,
		address:     address,
		defaultRate: defaultRateBps,
		rates:       make(map[pair]uint64),
	}
}

// Address returns the holder address of the router's liquidity
func (r *Router) Address() domain.Address {
	return r.address
}

// SetRate quotes assetIn -> assetOut at rateBps / 10000
func (r *Router) SetRate(assetIn, assetOut domain.Asset, rateBps uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rates[pair{in: assetIn, out: assetOut}] = rateBps
}

// Quote returns the output for amountIn along path without moving funds
func (r *Router) Quote(path []domain.Asset, amountIn *uint256.Int) (*uint256.Int, error) {
	if len(path) < 2 {
		return nil, domain.ErrInvalidPath
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := domain.Copy(amountIn)
	for i := 0; i+1 < len(path); i++ {
		if path[i] == path[i+1] || path[i] == "" || path[i+1] == "" {
			return nil, domain.ErrInvalidPath
		}
		rate, ok := r.rates[pair{in: path[i], out: path[i+1]}]
		if !ok {
			rate = r.defaultRate
		}
		next, err := domain.ApplyBps(out, rate)
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}

// Swap converts amountIn of assetIn held by holder into assetOut
func (r *Router) Swap(ctx context.Context, holder domain.Address, assetIn, assetOut domain.Asset, amountIn, minAmountOut *uint256.Int) (*uint256.Int, error) {
	return r.MultihopSwap(ctx, holder, []domain.Asset{assetIn, assetOut}, amountIn, minAmountOut)
}

// MultihopSwap converts amountIn along path; intermediate hops never leave the router
func (r *Router) MultihopSwap(ctx context.Context, holder domain.Address, path []domain.Asset, amountIn, minAmountOut *uint256.Int) (*uint256.Int, error) {
	if domain.IsZero(amountIn) {
		return nil, domain.ErrInvalidAmount
	}
	out, err := r.Quote(path, amountIn)
	if err != nil {
		return nil, err
	}
	floor := domain.Copy(minAmountOut)
	if out.Lt(floor) || out.IsZero() {
		return nil, &domain.SlippageExceededError{AmountOut: out, MinAmountOut: floor}
	}

	assetIn, assetOut := path[0], path[len(path)-1]
	if err := r.bank.Transfer(ctx, assetIn, holder, r.address, amountIn); err != nil {
		return nil, err
	}
	if err := r.bank.Transfer(ctx, assetOut, r.address, holder, out); err != nil {
		// give the input back before reporting the shortfall
		if rerr := r.bank.Transfer(ctx, assetIn, r.address, holder, amountIn); rerr != nil {
			return nil, rerr
		}
		return nil, domain.ErrInsufficientLiquidity
	}
	return out, nil
}
