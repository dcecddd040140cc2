package domain

import (
	"context"

	"github.com/holiman/uint256"
)

// TokenBank holds token balances for every address, the vault included
type TokenBank interface {
	// BalanceOf returns holder's balance of asset
	BalanceOf(ctx context.Context, asset Asset, holder Address) (*uint256.Int, error)

	// Transfer moves amount of asset between holders, failing with ErrInsufficientBalance
	Transfer(ctx context.Context, asset Asset, from, to Address, amount *uint256.Int) error
}

// YieldSource is the external lending protocol receiving active assets.
// Its reported balance is untrusted input and is only used for pricing.
type YieldSource interface {
	// Deposit supplies amount of asset on behalf of holder and returns the receipt amount
	Deposit(ctx context.Context, holder Address, asset Asset, amount *uint256.Int) (*uint256.Int, error)

	// Withdraw redeems amount of asset for holder and returns the underlying actually returned
	Withdraw(ctx context.Context, holder Address, asset Asset, amount *uint256.Int) (*uint256.Int, error)

	// BalanceOf returns the current redeemable value of holder's position in asset
	BalanceOf(ctx context.Context, holder Address, asset Asset) (*uint256.Int, error)

	// ReceiptAsset names the receipt token minted for deposits of asset
	ReceiptAsset(asset Asset) Asset
}

// SwapRouter converts holder's assets, failing with ErrSlippageExceeded below the floor
type SwapRouter interface {
	Swap(ctx context.Context, holder Address, assetIn, assetOut Asset, amountIn, minAmountOut *uint256.Int) (*uint256.Int, error)
	MultihopSwap(ctx context.Context, holder Address, path []Asset, amountIn, minAmountOut *uint256.Int) (*uint256.Int, error)
}

// RewardsController is the external incentives and staking mechanism
type RewardsController interface {
	// ClaimAndBeginUnstake claims accrued staked rewards and starts the cooldown
	ClaimAndBeginUnstake(ctx context.Context, holder Address) (*uint256.Int, error)

	// Unstake converts staked rewards into the reward asset once the cooldown elapsed
	Unstake(ctx context.Context, holder Address) (Asset, *uint256.Int, error)
}

// EventRecorder persists observable events
type EventRecorder interface {
	RecordEvent(ctx context.Context, event *Event) error
	ListEvents(ctx context.Context, limit, offset int) ([]*Event, error)
}

// SnapshotRecorder persists periodic vault snapshots
type SnapshotRecorder interface {
	RecordSnapshot(ctx context.Context, snapshot *VaultSnapshot) error
	GetLatestSnapshot(ctx context.Context) (*VaultSnapshot, error)
}

// Recorder is the persistence surface consumed by the service and scheduler
type Recorder interface {
	EventRecorder
	SnapshotRecorder
	Close() error
}
