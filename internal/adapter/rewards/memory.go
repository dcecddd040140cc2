package rewards

import (
	"context"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/simaogato/cellar-backend/internal/domain"
)

// DefaultCooldown is the wait between claiming staked rewards and unstaking them
const DefaultCooldown = 10 * 24 * time.Hour

// Minter credits newly issued tokens
type Minter interface {
	Mint(asset domain.Asset, holder domain.Address, amount *uint256.Int)
}

// Controller is an in-memory incentives program. Accrued rewards are claimed into a
// staked position that can be converted to the reward asset once the cooldown elapsed.
type Controller struct {
	mu          sync.Mutex
	minter      Minter
	rewardAsset domain.Asset
	cooldown    time.Duration
	clock       func() time.Time

	accrued       map[domain.Address]*uint256.Int
	staked        map[domain.Address]*uint256.Int
	cooldownStart map[domain.Address]time.Time
}

// NewController creates a controller paying rewardAsset
func NewController(minter Minter, rewardAsset domain.Asset, cooldown time.Duration) *Controller {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Controller{
		minter:        minter,
		rewardAsset:   rewardAsset,
		cooldown:      cooldown,
		clock:         time.Now,
		accrued:       make(map[domain.Address]*uint256.Int),
		staked:        make(map[domain.Address]*uint256.Int),
		cooldownStart: make(map[domain.Address]time.Time),
	}
}

// SetClock replaces the time source
func (c *Controller) SetClock(clock func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if clock != nil {
		c.clock = clock
	}
}

// RewardAsset returns the asset paid out on unstake
func (c *Controller) RewardAsset() domain.Asset {
	return c.rewardAsset
}

// AddRewards accrues amount of unclaimed rewards to holder
func (c *Controller) AddRewards(holder domain.Address, amount *uint256.Int) {
	if domain.IsZero(amount) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	bal := amountOf(c.accrued, holder)
	bal.Add(bal, amount)
}

// ClaimAndBeginUnstake stakes accrued rewards and restarts the cooldown
func (c *Controller) ClaimAndBeginUnstake(_ context.Context, holder domain.Address) (*uint256.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	accrued := amountOf(c.accrued, holder)
	staked := amountOf(c.staked, holder)
	if accrued.IsZero() && staked.IsZero() {
		return nil, domain.ErrNothingToClaim
	}
	claimed := accrued.Clone()
	staked.Add(staked, accrued)
	accrued.Clear()
	c.cooldownStart[holder] = c.clock()
	return claimed, nil
}

// Unstake pays the staked position in the reward asset once the cooldown elapsed
func (c *Controller) Unstake(_ context.Context, holder domain.Address) (domain.Asset, *uint256.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	staked := amountOf(c.staked, holder)
	if staked.IsZero() {
		return c.rewardAsset, nil, domain.ErrNothingToClaim
	}
	started, ok := c.cooldownStart[holder]
	if !ok || c.clock().Before(started.Add(c.cooldown)) {
		return c.rewardAsset, nil, domain.ErrCooldownActive
	}
	amount := staked.Clone()
	c.minter.Mint(c.rewardAsset, holder, amount)
	staked.Clear()
	delete(c.cooldownStart, holder)
	return c.rewardAsset, amount, nil
}

func amountOf(m map[domain.Address]*uint256.Int, holder domain.Address) *uint256.Int {
	bal, ok := m[holder]
	if !ok {
		bal = domain.Zero()
		m[holder] = bal
	}
	return bal
}
