package domain

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

var (
	ErrLiquidityRestricted   = errors.New("deposit would exceed the vault liquidity limit")
	ErrDepositRestricted     = errors.New("deposit limit for this account is exhausted")
	ErrZeroShares            = errors.New("owner holds no shares")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrSameLendingToken      = errors.New("vault is already deployed in this asset")
	ErrProtectedToken        = errors.New("asset is managed by the vault and cannot be swept")
	ErrSlippageExceeded      = errors.New("swap output below minimum")
	ErrContractPaused        = errors.New("vault is paused")
	ErrContractShutdown      = errors.New("vault is shut down")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInsufficientShares    = errors.New("insufficient shares")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientLiquidity = errors.New("yield source returned less than the shortfall")
	ErrUnsupportedAsset      = errors.New("asset is not eligible for deposit")
	ErrReentrantCall         = errors.New("reentrant call into vault")
	ErrInvalidPath           = errors.New("swap path must contain at least two assets")
	ErrCooldownActive        = errors.New("unstake cooldown has not elapsed")
	ErrNothingToClaim        = errors.New("nothing to claim")
	ErrInvalidReceiver       = errors.New("invalid receiver")
	ErrAmountOverflow        = errors.New("amount overflows 256 bits")
	ErrInvalidSharePrice     = errors.New("vault has shares outstanding but no assets")
	ErrSnapshotNotFound      = errors.New("no vault snapshot recorded")
)

// LiquidityRestrictedError reports the vault total and the configured ceiling
type LiquidityRestrictedError struct {
	TotalAssets  *uint256.Int
	MaxLiquidity *uint256.Int
}

func (e *LiquidityRestrictedError) Error() string {
	return fmt.Sprintf("liquidity restricted: total assets %s, max liquidity %s", e.TotalAssets.Dec(), e.MaxLiquidity.Dec())
}

func (e *LiquidityRestrictedError) Is(target error) bool { return target == ErrLiquidityRestricted }

// DepositRestrictedError reports the requested deposit and the per-account ceiling
type DepositRestrictedError struct {
	Assets     *uint256.Int
	MaxDeposit *uint256.Int
}

func (e *DepositRestrictedError) Error() string {
	return fmt.Sprintf("deposit restricted: requested %s, max deposit %s", e.Assets.Dec(), e.MaxDeposit.Dec())
}

func (e *DepositRestrictedError) Is(target error) bool { return target == ErrDepositRestricted }

// ProtectedTokenError names the managed asset a sweep was attempted on
type ProtectedTokenError struct {
	Asset Asset
}

func (e *ProtectedTokenError) Error() string {
	return fmt.Sprintf("protected token %q", string(e.Asset))
}

func (e *ProtectedTokenError) Is(target error) bool { return target == ErrProtectedToken }

// SlippageExceededError reports the delivered output against the floor
type SlippageExceededError struct {
	AmountOut    *uint256.Int
	MinAmountOut *uint256.Int
}

func (e *SlippageExceededError) Error() string {
	return fmt.Sprintf("slippage exceeded: received %s, minimum %s", e.AmountOut.Dec(), e.MinAmountOut.Dec())
}

func (e *SlippageExceededError) Is(target error) bool { return target == ErrSlippageExceeded }
