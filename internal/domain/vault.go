package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
)

// VaultStatus is the lifecycle state of the vault
type VaultStatus string

const (
	VaultStatusActive   VaultStatus = "ACTIVE"
	VaultStatusPaused   VaultStatus = "PAUSED"
	VaultStatusShutdown VaultStatus = "SHUTDOWN"
)

// VaultParams configures a new vault
type VaultParams struct {
	Address           Address // holder address of the vault in the token bank
	Owner             Address // admin allowed to run lifecycle and strategy operations
	FeeCollector      Address
	Asset             Asset // asset the vault accounts in and deploys to the yield source
	PlatformFeeBps    uint64
	PerformanceFeeBps uint64
	MaxLiquidity      *uint256.Int // nil means unrestricted
	MaxDepositPerUser *uint256.Int // nil means unrestricted
	InputAssets       []Asset
	CreatedAt         time.Time
}

// Validate ensures the parameters describe a usable vault
func (p *VaultParams) Validate() error {
	if p.Address == "" {
		return errors.New("vault address cannot be empty")
	}
	if p.Owner == "" {
		return errors.New("vault owner cannot be empty")
	}
	if p.FeeCollector == "" {
		return errors.New("fee collector cannot be empty")
	}
	if p.Asset == "" {
		return errors.New("vault asset cannot be empty")
	}
	if p.PlatformFeeBps > BasisPoints || p.PerformanceFeeBps > BasisPoints {
		return errors.New("fee rates cannot exceed 10000 bps")
	}
	return nil
}

// Vault is the aggregate holding every global total and the lot ledger.
// It is owned and mutated by a single accounting service instance.
type Vault struct {
	Address           Address
	Owner             Address
	FeeCollector      Address
	Asset             Asset
	TotalShares       *uint256.Int
	InactiveAssets    *uint256.Int
	FeeShares         *uint256.Int
	LastFeeAccrual    time.Time
	PlatformFeeBps    uint64
	PerformanceFeeBps uint64
	MaxLiquidity      *uint256.Int
	MaxDepositPerUser *uint256.Int
	Paused            bool
	Shutdown          bool
	InputAssets       map[Asset]bool
	Ledger            *Ledger

	allowances map[Address]map[Address]*uint256.Int
}

// NewVault builds an empty vault from validated parameters
func NewVault(p VaultParams) (*Vault, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	v := &Vault{
		Address:           p.Address,
		Owner:             p.Owner,
		FeeCollector:      p.FeeCollector,
		Asset:             p.Asset,
		TotalShares:       Zero(),
		InactiveAssets:    Zero(),
		FeeShares:         Zero(),
		LastFeeAccrual:    p.CreatedAt,
		PlatformFeeBps:    p.PlatformFeeBps,
		PerformanceFeeBps: p.PerformanceFeeBps,
		InputAssets:       make(map[Asset]bool),
		Ledger:            NewLedger(),
		allowances:        make(map[Address]map[Address]*uint256.Int),
	}
	if p.MaxLiquidity != nil {
		v.MaxLiquidity = p.MaxLiquidity.Clone()
	}
	if p.MaxDepositPerUser != nil {
		v.MaxDepositPerUser = p.MaxDepositPerUser.Clone()
	}
	for _, asset := range p.InputAssets {
		v.InputAssets[asset] = true
	}
	return v, nil
}

// Status derives the lifecycle state from the flags
func (v *Vault) Status() VaultStatus {
	switch {
	case v.Shutdown:
		return VaultStatusShutdown
	case v.Paused:
		return VaultStatusPaused
	default:
		return VaultStatusActive
	}
}

// CheckDepositAllowed guards deposit-class operations
func (v *Vault) CheckDepositAllowed() error {
	if v.Shutdown {
		return ErrContractShutdown
	}
	if v.Paused {
		return ErrContractPaused
	}
	return nil
}

// AcceptsInput reports whether asset may be deposited
func (v *Vault) AcceptsInput(asset Asset) bool {
	return asset == v.Asset || v.InputAssets[asset]
}

// ConvertToShares prices assets in shares at totalAssets/TotalShares, rounding down.
// The first deposit mints one share per asset unit.
func (v *Vault) ConvertToShares(assets, totalAssets *uint256.Int) (*uint256.Int, error) {
	if v.TotalShares.IsZero() {
		return Copy(assets), nil
	}
	if IsZero(totalAssets) {
		return nil, ErrInvalidSharePrice
	}
	return MulDivDown(assets, v.TotalShares, totalAssets)
}

// PreviewWithdrawShares prices assets in shares rounding up, so burning the result
// always covers the requested assets
func (v *Vault) PreviewWithdrawShares(assets, totalAssets *uint256.Int) (*uint256.Int, error) {
	if v.TotalShares.IsZero() {
		return Copy(assets), nil
	}
	if IsZero(totalAssets) {
		return nil, ErrInvalidSharePrice
	}
	return MulDivUp(assets, v.TotalShares, totalAssets)
}

// ConvertToAssets values shares at totalAssets/TotalShares, rounding down
func (v *Vault) ConvertToAssets(shares, totalAssets *uint256.Int) (*uint256.Int, error) {
	if v.TotalShares.IsZero() {
		return Copy(shares), nil
	}
	return MulDivDown(shares, totalAssets, v.TotalShares)
}

// RemainingDeposit returns how much more the user may deposit under the per-user cap,
// or nil when no cap is configured
func (v *Vault) RemainingDeposit(user Address) *uint256.Int {
	if v.MaxDepositPerUser == nil {
		return nil
	}
	return SubFloor(v.MaxDepositPerUser, v.Ledger.CostBasisOf(user))
}

// MintFeeShares credits shares to the vault's own fee balance
func (v *Vault) MintFeeShares(shares *uint256.Int) {
	if IsZero(shares) {
		return
	}
	v.FeeShares.Add(v.FeeShares, shares)
	v.TotalShares.Add(v.TotalShares, shares)
}

// Allowance returns how many of owner's shares spender may move
func (v *Vault) Allowance(owner, spender Address) *uint256.Int {
	if byOwner, ok := v.allowances[owner]; ok {
		if amount, ok := byOwner[spender]; ok {
			return amount.Clone()
		}
	}
	return Zero()
}

// SetAllowance overwrites the allowance granted by owner to spender
func (v *Vault) SetAllowance(owner, spender Address, shares *uint256.Int) {
	byOwner, ok := v.allowances[owner]
	if !ok {
		byOwner = make(map[Address]*uint256.Int)
		v.allowances[owner] = byOwner
	}
	byOwner[spender] = Copy(shares)
}

// Validate checks the conservation invariants of the aggregate
func (v *Vault) Validate() error {
	if v.FeeShares.Gt(v.TotalShares) {
		return fmt.Errorf("fee shares %s exceed total shares %s", v.FeeShares.Dec(), v.TotalShares.Dec())
	}
	userShares := new(uint256.Int).Sub(v.TotalShares, v.FeeShares)
	lotShares := v.Ledger.TotalLotShares()
	if !userShares.Eq(lotShares) {
		return fmt.Errorf("lot shares %s do not match user shares %s", lotShares.Dec(), userShares.Dec())
	}
	return nil
}
