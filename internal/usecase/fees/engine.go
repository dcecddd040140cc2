package fees

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/simaogato/cellar-backend/internal/domain"
)

// Engine computes platform and performance fees and credits them as vault-owned shares
type Engine struct {
	PlatformFeeBps    uint64
	PerformanceFeeBps uint64
}

// NewEngine creates a new fee Engine
func NewEngine(platformFeeBps, performanceFeeBps uint64) *Engine {
	return &Engine{
		PlatformFeeBps:    platformFeeBps,
		PerformanceFeeBps: performanceFeeBps,
	}
}

// PlatformFeeAssets returns totalAssets * rate * elapsed / (10000 * secondsPerYear), rounded down.
// Sub-second elapsed time counts as zero.
func (e *Engine) PlatformFeeAssets(totalAssets *uint256.Int, elapsed time.Duration) (*uint256.Int, error) {
	seconds := uint64(0)
	if elapsed > 0 {
		seconds = uint64(elapsed / time.Second)
	}
	if seconds == 0 || e.PlatformFeeBps == 0 {
		return domain.Zero(), nil
	}
	rateTime := new(uint256.Int).Mul(uint256.NewInt(e.PlatformFeeBps), uint256.NewInt(seconds))
	denominator := uint256.NewInt(domain.BasisPoints * domain.SecondsPerYear)
	return domain.MulDivDown(totalAssets, rateTime, denominator)
}

// PerformanceFeeAssets returns gain * rate / 10000, rounded down
func (e *Engine) PerformanceFeeAssets(gain *uint256.Int) (*uint256.Int, error) {
	return domain.ApplyBps(gain, e.PerformanceFeeBps)
}

// PerformanceFee prices the fee on a realized gain in shares at the current price
func (e *Engine) PerformanceFee(v *domain.Vault, gain, totalAssets *uint256.Int) (feeAssets, feeShares *uint256.Int, err error) {
	feeAssets, err = e.PerformanceFeeAssets(gain)
	if err != nil {
		return nil, nil, err
	}
	if feeAssets.IsZero() {
		return feeAssets, domain.Zero(), nil
	}
	feeShares, err = v.ConvertToShares(feeAssets, totalAssets)
	if err != nil {
		return nil, nil, err
	}
	return feeAssets, feeShares, nil
}

// Accrue mints platform-fee shares for the time since the last accrual and moves the
// accrual clock to now. A second call at the same instant mints nothing.
func (e *Engine) Accrue(v *domain.Vault, totalAssets *uint256.Int, now time.Time) (feeAssets, feeShares *uint256.Int, err error) {
	elapsed := now.Sub(v.LastFeeAccrual)
	if elapsed <= 0 {
		return domain.Zero(), domain.Zero(), nil
	}
	feeAssets, err = e.PlatformFeeAssets(totalAssets, elapsed)
	if err != nil {
		return nil, nil, err
	}
	feeShares = domain.Zero()
	if !feeAssets.IsZero() && !v.TotalShares.IsZero() {
		feeShares, err = v.ConvertToShares(feeAssets, totalAssets)
		if err != nil {
			return nil, nil, err
		}
	}
	v.MintFeeShares(feeShares)
	v.LastFeeAccrual = now
	return feeAssets, feeShares, nil
}

// Collect prices the vault's fee shares in assets. The caller burns them once paid out.
func (e *Engine) Collect(v *domain.Vault, totalAssets *uint256.Int) (shares, assets *uint256.Int, err error) {
	shares = domain.Copy(v.FeeShares)
	if shares.IsZero() {
		return shares, domain.Zero(), nil
	}
	assets, err = v.ConvertToAssets(shares, totalAssets)
	if err != nil {
		return nil, nil, err
	}
	return shares, assets, nil
}

// Burn removes collected fee shares from the vault's totals
func (e *Engine) Burn(v *domain.Vault, shares *uint256.Int) {
	burn := domain.Min(shares, v.FeeShares)
	v.FeeShares = domain.SubFloor(v.FeeShares, burn)
	v.TotalShares = domain.SubFloor(v.TotalShares, burn)
}
