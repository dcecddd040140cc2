package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/simaogato/cellar-backend/internal/adapter/bank"
	"github.com/simaogato/cellar-backend/internal/adapter/repository/memory"
	"github.com/simaogato/cellar-backend/internal/adapter/rewards"
	"github.com/simaogato/cellar-backend/internal/adapter/swap"
	"github.com/simaogato/cellar-backend/internal/adapter/yieldsource"
	"github.com/simaogato/cellar-backend/internal/domain"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	owner      domain.Address = "owner"
	cellar     domain.Address = "cellar"
	collector  domain.Address = "collector"
	alice      domain.Address = "alice"
	bob        domain.Address = "bob"
	poolAddr   domain.Address = "pool"
	routerAddr domain.Address = "router"

	usdc domain.Asset = "USDC"
	dai  domain.Asset = "DAI"
	aave domain.Asset = "AAVE"
	weth domain.Asset = "WETH"
)

var start = time.Unix(1_700_000_000, 0)

func amt(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

type harness struct {
	svc      *VaultService
	vault    *domain.Vault
	bank     *bank.MemoryBank
	pool     *yieldsource.LendingPool
	router   *swap.Router
	rewards  *rewards.Controller
	recorder *memory.Recorder
	now      time.Time
}

func newHarness(t *testing.T, mutate func(p *domain.VaultParams)) *harness {
	t.Helper()
	params := domain.VaultParams{
		Address:           cellar,
		Owner:             owner,
		FeeCollector:      collector,
		Asset:             usdc,
		PlatformFeeBps:    100,
		PerformanceFeeBps: 500,
		InputAssets:       []domain.Asset{dai},
		CreatedAt:         start,
	}
	if mutate != nil {
		mutate(&params)
	}
	v, err := domain.NewVault(params)
	require.NoError(t, err)

	h := &harness{
		vault:    v,
		bank:     bank.NewMemoryBank(),
		recorder: memory.NewRecorder(),
		now:      start,
	}
	h.pool = yieldsource.NewLendingPool(h.bank, poolAddr)
	h.pool.InitReserve(usdc)
	h.pool.InitReserve(dai)
	h.router = swap.NewRouter(h.bank, routerAddr, domain.BasisPoints)
	h.rewards = rewards.NewController(h.bank, aave, rewards.DefaultCooldown)
	h.rewards.SetClock(h.clock)

	// spare liquidity so the pool can pay interest and the router can fill swaps
	for _, asset := range []domain.Asset{usdc, dai, weth} {
		h.bank.Mint(asset, poolAddr, amt(1_000_000_000))
		h.bank.Mint(asset, routerAddr, amt(1_000_000_000))
	}

	h.svc = NewVaultService(v, h.bank, h.pool, h.router, h.rewards, h.recorder)
	h.svc.SetClock(h.clock)
	return h
}

func (h *harness) clock() time.Time {
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

// setIndex sets the liquidity index to bps / 10000 of one ray
func (h *harness) setIndex(t *testing.T, asset domain.Asset, bps uint64) {
	t.Helper()
	index, err := domain.MulDivDown(yieldsource.Ray, amt(bps), amt(domain.BasisPoints))
	require.NoError(t, err)
	require.NoError(t, h.pool.SetLiquidityIndex(asset, index))
}

func (h *harness) balance(t *testing.T, asset domain.Asset, holder domain.Address) uint64 {
	t.Helper()
	bal, err := h.bank.BalanceOf(context.Background(), asset, holder)
	require.NoError(t, err)
	return bal.Uint64()
}

func (h *harness) deposit(t *testing.T, who domain.Address, amount uint64) *DepositResult {
	t.Helper()
	h.bank.Mint(usdc, who, amt(amount))
	res, err := h.svc.Deposit(context.Background(), DepositInput{Caller: who, Amount: amt(amount)})
	require.NoError(t, err)
	return res
}

func (h *harness) totalAssets(t *testing.T) uint64 {
	t.Helper()
	total, err := h.svc.TotalAssets(context.Background())
	require.NoError(t, err)
	return total.Uint64()
}

func (h *harness) eventKinds(t *testing.T) []domain.EventKind {
	t.Helper()
	events, err := h.recorder.ListEvents(context.Background(), 0, 0)
	require.NoError(t, err)
	kinds := make([]domain.EventKind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func (h *harness) requireInvariants(t *testing.T) {
	t.Helper()
	require.NoError(t, h.svc.CheckInvariants(context.Background()))
}

// MockYieldSource is a mock implementation of YieldSource for testing
type MockYieldSource struct {
	mock.Mock
}

func (m *MockYieldSource) Deposit(ctx context.Context, holder domain.Address, asset domain.Asset, amount *uint256.Int) (*uint256.Int, error) {
	args := m.Called(ctx, holder, asset, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*uint256.Int), args.Error(1)
}

func (m *MockYieldSource) Withdraw(ctx context.Context, holder domain.Address, asset domain.Asset, amount *uint256.Int) (*uint256.Int, error) {
	args := m.Called(ctx, holder, asset, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*uint256.Int), args.Error(1)
}

func (m *MockYieldSource) BalanceOf(ctx context.Context, holder domain.Address, asset domain.Asset) (*uint256.Int, error) {
	args := m.Called(ctx, holder, asset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*uint256.Int), args.Error(1)
}

func (m *MockYieldSource) ReceiptAsset(asset domain.Asset) domain.Asset {
	args := m.Called(asset)
	return args.Get(0).(domain.Asset)
}

// MockEventRecorder is a mock implementation of EventRecorder for testing
type MockEventRecorder struct {
	mock.Mock
}

func (m *MockEventRecorder) RecordEvent(ctx context.Context, event *domain.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventRecorder) ListEvents(ctx context.Context, limit, offset int) ([]*domain.Event, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Event), args.Error(1)
}

// reentrantYield calls back into the service from inside Deposit
type reentrantYield struct {
	domain.YieldSource
	svc       *VaultService
	nestedErr error
	viewErr   error
}

func (r *reentrantYield) Deposit(ctx context.Context, holder domain.Address, asset domain.Asset, amount *uint256.Int) (*uint256.Int, error) {
	_, r.nestedErr = r.svc.Deposit(ctx, DepositInput{Caller: alice, Amount: amt(1)})
	_, r.viewErr = r.svc.TotalAssets(ctx)
	return r.YieldSource.Deposit(ctx, holder, asset, amount)
}

// payoutFailingBank rejects every transfer out of the vault
type payoutFailingBank struct {
	domain.TokenBank
}

func (b *payoutFailingBank) Transfer(ctx context.Context, asset domain.Asset, from, to domain.Address, amount *uint256.Int) error {
	if from == cellar {
		return errors.New("transfer frozen")
	}
	return b.TokenBank.Transfer(ctx, asset, from, to, amount)
}
