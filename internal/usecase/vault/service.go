package vault

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/simaogato/cellar-backend/internal/domain"
	"github.com/simaogato/cellar-backend/internal/usecase/fees"
)

// Metrics receives observations about committed operations
type Metrics interface {
	ObserveDeposit(asset domain.Asset, assets *uint256.Int)
	ObserveWithdraw(asset domain.Asset, assets *uint256.Int)
	ObserveFee(kind domain.EventKind, shares *uint256.Int)
	ObserveSnapshot(snapshot *domain.VaultSnapshot)
}

// VaultService owns the vault aggregate and is the only entry point that mutates it.
// Every mutating operation runs inside a single critical section; adapters that call
// back into the service with the operation's context are rejected with ErrReentrantCall.
type VaultService struct {
	mu sync.Mutex

	vault    *domain.Vault
	fees     *fees.Engine
	bank     domain.TokenBank
	yield    domain.YieldSource
	router   domain.SwapRouter
	rewards  domain.RewardsController
	recorder domain.EventRecorder

	rewardPath []domain.Asset
	clock      func() time.Time
	logger     *slog.Logger
	metrics    Metrics
}

// NewVaultService creates a new VaultService instance
func NewVaultService(
	vault *domain.Vault,
	bank domain.TokenBank,
	yieldSource domain.YieldSource,
	router domain.SwapRouter,
	rewards domain.RewardsController,
	recorder domain.EventRecorder,
) *VaultService {
	return &VaultService{
		vault:    vault,
		fees:     fees.NewEngine(vault.PlatformFeeBps, vault.PerformanceFeeBps),
		bank:     bank,
		yield:    yieldSource,
		router:   router,
		rewards:  rewards,
		recorder: recorder,
		clock:    time.Now,
		logger:   slog.Default(),
	}
}

// SetClock replaces the time source used for lot timestamps and fee accrual
func (s *VaultService) SetClock(clock func() time.Time) {
	if s == nil || clock == nil {
		return
	}
	s.clock = clock
}

// SetLogger replaces the service logger
func (s *VaultService) SetLogger(logger *slog.Logger) {
	if s == nil || logger == nil {
		return
	}
	s.logger = logger
}

// SetMetrics wires a metrics sink
func (s *VaultService) SetMetrics(m Metrics) {
	if s == nil {
		return
	}
	s.metrics = m
}

// SetRewardSwapPath configures the intermediate hops used when reinvesting rewards
func (s *VaultService) SetRewardSwapPath(hops []domain.Asset) {
	if s == nil {
		return
	}
	s.rewardPath = append([]domain.Asset(nil), hops...)
}

type operationKey struct{}

// begin enters the critical section. The returned context marks the operation so a
// callback carrying it fails closed instead of deadlocking.
func (s *VaultService) begin(ctx context.Context) (context.Context, func(), error) {
	if owner, ok := ctx.Value(operationKey{}).(*VaultService); ok && owner == s {
		return nil, nil, domain.ErrReentrantCall
	}
	s.mu.Lock()
	return context.WithValue(ctx, operationKey{}, s), s.mu.Unlock, nil
}

// view takes the lock for read-only queries unless already inside an operation
func (s *VaultService) view(ctx context.Context) func() {
	if owner, ok := ctx.Value(operationKey{}).(*VaultService); ok && owner == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *VaultService) requireOwner(caller domain.Address) error {
	if caller != s.vault.Owner {
		return domain.ErrUnauthorized
	}
	return nil
}

// activeAssets queries the yield source for the vault's deployed value
func (s *VaultService) activeAssets(ctx context.Context) (*uint256.Int, error) {
	active, err := s.yield.BalanceOf(ctx, s.vault.Address, s.vault.Asset)
	if err != nil {
		return nil, fmt.Errorf("query yield source balance: %w", err)
	}
	return domain.Copy(active), nil
}

func (s *VaultService) totalAssets(ctx context.Context) (*uint256.Int, error) {
	active, err := s.activeAssets(ctx)
	if err != nil {
		return nil, err
	}
	return domain.Add(s.vault.InactiveAssets, active)
}

// ensureInactive redeems the shortfall from the yield source so that at least needed
// assets are held idle
func (s *VaultService) ensureInactive(ctx context.Context, needed *uint256.Int) (*domain.Event, error) {
	v := s.vault
	if needed.Cmp(v.InactiveAssets) <= 0 {
		return nil, nil
	}
	shortfall := new(uint256.Int).Sub(needed, v.InactiveAssets)
	returned, err := s.yield.Withdraw(ctx, v.Address, v.Asset, shortfall)
	if err != nil {
		return nil, fmt.Errorf("redeem shortfall from yield source: %w", err)
	}
	returned = domain.Copy(returned)
	v.InactiveAssets.Add(v.InactiveAssets, returned)
	e := s.newEvent(domain.EventRedeemFromAave)
	e.AssetOut = v.Asset
	e.AmountIn = returned
	if returned.Lt(shortfall) {
		s.undoRedeem(ctx, e)
		return nil, domain.ErrInsufficientLiquidity
	}
	return e, nil
}

// undoRedeem supplies assets pulled by ensureInactive back to the yield source when
// the operation that needed them aborts
func (s *VaultService) undoRedeem(ctx context.Context, redeemed *domain.Event) {
	if redeemed == nil || domain.IsZero(redeemed.AmountIn) {
		return
	}
	if err := s.supply(ctx, redeemed.AmountIn); err != nil {
		s.logger.Error("failed to restore yield position after aborted payout",
			"asset", string(s.vault.Asset), "amount", redeemed.AmountIn.Dec(), "error", err)
	}
}

// refund returns assets pulled into the vault during an aborted deposit
func (s *VaultService) refund(ctx context.Context, asset domain.Asset, to domain.Address, amount *uint256.Int, cause error) error {
	if domain.IsZero(amount) {
		return cause
	}
	if err := s.bank.Transfer(ctx, asset, s.vault.Address, to, amount); err != nil {
		s.logger.Error("refund failed", "asset", string(asset), "to", string(to), "amount", amount.Dec(), "error", err)
		return fmt.Errorf("%w (refund failed: %v)", cause, err)
	}
	s.logger.Warn("deposit aborted and refunded", "asset", string(asset), "to", string(to), "amount", amount.Dec(), "reason", cause.Error())
	return cause
}

func (s *VaultService) newEvent(kind domain.EventKind) *domain.Event {
	return domain.NewEvent(kind, s.clock())
}

// emit records committed events; recording failures never undo the operation
func (s *VaultService) emit(ctx context.Context, events ...*domain.Event) {
	for _, e := range events {
		if e == nil {
			continue
		}
		if s.recorder != nil {
			if err := s.recorder.RecordEvent(ctx, e); err != nil {
				s.logger.Warn("failed to record event", "kind", string(e.Kind), "id", e.ID.String(), "error", err)
			}
		}
		if s.metrics != nil {
			switch e.Kind {
			case domain.EventDeposit:
				s.metrics.ObserveDeposit(e.AssetIn, e.AmountIn)
			case domain.EventWithdraw:
				s.metrics.ObserveWithdraw(e.AssetOut, e.AmountOut)
			case domain.EventPlatformFee, domain.EventPerformanceFee, domain.EventTransferFees:
				s.metrics.ObserveFee(e.Kind, e.Shares)
			}
		}
	}
}

// AccountView is a read-only projection of one holder's position
type AccountView struct {
	Owner     domain.Address
	Shares    *uint256.Int
	CostBasis *uint256.Int
	Value     *uint256.Int
	Lots      []domain.DepositLot
	Cursor    int
}

// TotalAssets returns inactive assets plus the yield source's reported balance
func (s *VaultService) TotalAssets(ctx context.Context) (*uint256.Int, error) {
	unlock := s.view(ctx)
	defer unlock()
	return s.totalAssets(ctx)
}

// Totals captures the current global totals
func (s *VaultService) Totals(ctx context.Context) (*domain.VaultSnapshot, error) {
	unlock := s.view(ctx)
	defer unlock()

	v := s.vault
	active, err := s.activeAssets(ctx)
	if err != nil {
		return nil, err
	}
	total, err := domain.Add(v.InactiveAssets, active)
	if err != nil {
		return nil, err
	}
	return &domain.VaultSnapshot{
		ID:             uuid.New(),
		Timestamp:      s.clock(),
		Asset:          v.Asset,
		Status:         v.Status(),
		TotalAssets:    total,
		InactiveAssets: domain.Copy(v.InactiveAssets),
		ActiveAssets:   active,
		TotalShares:    domain.Copy(v.TotalShares),
		FeeShares:      domain.Copy(v.FeeShares),
	}, nil
}

// Snapshot captures the totals and reports them to the metrics sink
func (s *VaultService) Snapshot(ctx context.Context) (*domain.VaultSnapshot, error) {
	snapshot, err := s.Totals(ctx)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveSnapshot(snapshot)
	}
	return snapshot, nil
}

// Account returns the owner's shares, lots and their current value
func (s *VaultService) Account(ctx context.Context, owner domain.Address) (*AccountView, error) {
	unlock := s.view(ctx)
	defer unlock()

	v := s.vault
	total, err := s.totalAssets(ctx)
	if err != nil {
		return nil, err
	}
	shares := v.Ledger.BalanceOf(owner)
	value, err := v.ConvertToAssets(shares, total)
	if err != nil {
		return nil, err
	}
	return &AccountView{
		Owner:     owner,
		Shares:    shares,
		CostBasis: v.Ledger.CostBasisOf(owner),
		Value:     value,
		Lots:      v.Ledger.Lots(owner),
		Cursor:    v.Ledger.Cursor(owner),
	}, nil
}

// BalanceOf returns the owner's share balance; the vault's own address reports fee shares
func (s *VaultService) BalanceOf(ctx context.Context, owner domain.Address) *uint256.Int {
	unlock := s.view(ctx)
	defer unlock()
	if owner == s.vault.Address {
		return domain.Copy(s.vault.FeeShares)
	}
	return s.vault.Ledger.BalanceOf(owner)
}

// Allowance returns the shares spender may move on behalf of owner
func (s *VaultService) Allowance(ctx context.Context, owner, spender domain.Address) *uint256.Int {
	unlock := s.view(ctx)
	defer unlock()
	return s.vault.Allowance(owner, spender)
}

// ConvertToAssets values shares at the current price
func (s *VaultService) ConvertToAssets(ctx context.Context, shares *uint256.Int) (*uint256.Int, error) {
	unlock := s.view(ctx)
	defer unlock()
	total, err := s.totalAssets(ctx)
	if err != nil {
		return nil, err
	}
	return s.vault.ConvertToAssets(shares, total)
}

// Status returns the lifecycle state and the asset currently deployed
func (s *VaultService) Status(ctx context.Context) (domain.VaultStatus, domain.Asset) {
	unlock := s.view(ctx)
	defer unlock()
	return s.vault.Status(), s.vault.Asset
}

// CheckInvariants validates the conservation invariants of the aggregate
func (s *VaultService) CheckInvariants(ctx context.Context) error {
	unlock := s.view(ctx)
	defer unlock()
	return s.vault.Validate()
}

// AcceptsInput reports whether asset may currently be deposited
func (s *VaultService) AcceptsInput(ctx context.Context, asset domain.Asset) bool {
	unlock := s.view(ctx)
	defer unlock()
	return s.vault.AcceptsInput(asset)
}
