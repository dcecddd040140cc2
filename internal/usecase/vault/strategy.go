package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/simaogato/cellar-backend/internal/domain"
)

// EnterStrategy deploys every inactive asset into the yield source
func (s *VaultService) EnterStrategy(ctx context.Context, caller domain.Address) (*uint256.Int, error) {
	ctx, unlock, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.requireOwner(caller); err != nil {
		return nil, err
	}
	v := s.vault
	if v.Shutdown {
		return nil, domain.ErrContractShutdown
	}
	amount := domain.Copy(v.InactiveAssets)
	if amount.IsZero() {
		return amount, nil
	}
	if err := s.supply(ctx, amount); err != nil {
		return nil, err
	}
	s.emit(ctx, s.depositToYieldEvent(caller, amount))
	s.logger.Info("entered strategy", "asset", string(v.Asset), "amount", amount.Dec())
	return amount, nil
}

// RedeemFromYieldSource pulls amount of the current asset back into inactive assets
func (s *VaultService) RedeemFromYieldSource(ctx context.Context, caller domain.Address, asset domain.Asset, amount *uint256.Int) (*uint256.Int, error) {
	ctx, unlock, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.requireOwner(caller); err != nil {
		return nil, err
	}
	if asset != s.vault.Asset {
		return nil, domain.ErrUnsupportedAsset
	}
	if domain.IsZero(amount) {
		return nil, domain.ErrInvalidAmount
	}
	returned, err := s.redeem(ctx, amount)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, s.redeemEvent(caller, returned))
	return returned, nil
}

// Rebalance exits the current yield position, converts every held unit of the current
// asset into newAsset and re-enters the yield source with the proceeds. A failed swap
// re-supplies whatever was exited; a failed re-entry swaps the proceeds back first. The
// vault only switches asset once the new position is in place.
func (s *VaultService) Rebalance(ctx context.Context, caller domain.Address, newAsset domain.Asset, minOutput *uint256.Int) (*uint256.Int, error) {
	ctx, unlock, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.requireOwner(caller); err != nil {
		return nil, err
	}
	v := s.vault
	if v.Shutdown {
		return nil, domain.ErrContractShutdown
	}
	if newAsset == "" {
		return nil, domain.ErrUnsupportedAsset
	}
	if newAsset == v.Asset {
		return nil, domain.ErrSameLendingToken
	}

	oldAsset := v.Asset
	var events []*domain.Event
	active, err := s.activeAssets(ctx)
	if err != nil {
		return nil, err
	}
	exited := domain.Zero()
	if !active.IsZero() {
		exited, err = s.redeem(ctx, active)
		if err != nil {
			return nil, err
		}
		events = append(events, s.redeemEvent(caller, exited))
	}

	amount := domain.Copy(v.InactiveAssets)
	out := domain.Zero()
	if !amount.IsZero() {
		out, err = s.router.Swap(ctx, v.Address, oldAsset, newAsset, amount, minOutput)
		if err != nil {
			if !exited.IsZero() {
				if rerr := s.supply(ctx, exited); rerr != nil {
					s.logger.Error("failed to restore yield position after aborted rebalance", "asset", string(oldAsset), "amount", exited.Dec(), "error", rerr)
					return nil, errors.Join(fmt.Errorf("rebalance swap: %w", err), rerr)
				}
			}
			return nil, fmt.Errorf("rebalance swap: %w", err)
		}
		out = domain.Copy(out)
		swapped := s.newEvent(domain.EventSwapped)
		swapped.Caller = caller
		swapped.AssetIn, swapped.AssetOut = oldAsset, newAsset
		swapped.AmountIn, swapped.AmountOut = amount, domain.Copy(out)
		events = append(events, swapped)
	}

	if !out.IsZero() {
		if _, err := s.yield.Deposit(ctx, v.Address, newAsset, out); err != nil {
			cause := fmt.Errorf("supply %s to yield source: %w", newAsset, err)
			return nil, s.unwindRebalance(ctx, oldAsset, newAsset, out, exited, cause)
		}
	}
	v.Asset = newAsset
	v.InactiveAssets = domain.Zero()
	if !out.IsZero() {
		events = append(events, s.depositToYieldEvent(caller, out))
	}

	e := s.newEvent(domain.EventRebalance)
	e.Caller = caller
	e.AssetIn, e.AssetOut = oldAsset, newAsset
	e.AmountIn, e.AmountOut = amount, domain.Copy(out)
	events = append(events, e)
	s.emit(ctx, events...)

	s.logger.Info("rebalanced", "from", string(oldAsset), "to", string(newAsset), "amount_in", amount.Dec(), "amount_out", out.Dec())
	return out, nil
}

// unwindRebalance swaps proceeds that could not be supplied back into oldAsset and
// re-supplies up to what was exited. If the swap back fails the vault keeps the proceeds
// idle in newAsset and switches to it so the holdings stay accounted for.
func (s *VaultService) unwindRebalance(ctx context.Context, oldAsset, newAsset domain.Asset, out, exited *uint256.Int, cause error) error {
	v := s.vault
	back, err := s.router.Swap(ctx, v.Address, newAsset, oldAsset, out, nil)
	if err != nil {
		s.logger.Error("failed to swap rebalance proceeds back", "asset", string(newAsset), "amount", out.Dec(), "error", err)
		v.Asset = newAsset
		v.InactiveAssets = domain.Copy(out)
		return errors.Join(cause, fmt.Errorf("swap proceeds back: %w", err))
	}
	v.InactiveAssets = domain.Copy(back)

	restore := domain.Min(exited, v.InactiveAssets)
	if !restore.IsZero() {
		if err := s.supply(ctx, restore); err != nil {
			s.logger.Error("failed to restore yield position after aborted rebalance", "asset", string(oldAsset), "amount", restore.Dec(), "error", err)
			return errors.Join(cause, err)
		}
	}
	s.logger.Warn("rebalance aborted and unwound", "from", string(oldAsset), "to", string(newAsset), "reason", cause.Error())
	return cause
}

// ClaimAndUnstake claims staked incentive rewards and starts their cooldown
func (s *VaultService) ClaimAndUnstake(ctx context.Context, caller domain.Address) (*uint256.Int, error) {
	ctx, unlock, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.requireOwner(caller); err != nil {
		return nil, err
	}
	claimed, err := s.rewards.ClaimAndBeginUnstake(ctx, s.vault.Address)
	if err != nil {
		return nil, fmt.Errorf("claim rewards: %w", err)
	}
	e := s.newEvent(domain.EventClaimRewards)
	e.Caller = caller
	e.AmountIn = domain.Copy(claimed)
	s.emit(ctx, e)
	return domain.Copy(claimed), nil
}

// Reinvest unstakes cooled-down rewards, swaps them into the vault asset along the
// configured path and supplies the proceeds to the yield source. If the swap or the
// supply fails the reward tokens stay with the vault and can be converted with Swap.
func (s *VaultService) Reinvest(ctx context.Context, caller domain.Address, minOutput *uint256.Int) (*uint256.Int, error) {
	ctx, unlock, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.requireOwner(caller); err != nil {
		return nil, err
	}
	v := s.vault
	if v.Shutdown {
		return nil, domain.ErrContractShutdown
	}

	rewardAsset, unstaked, err := s.rewards.Unstake(ctx, v.Address)
	if err != nil {
		return nil, fmt.Errorf("unstake rewards: %w", err)
	}
	if domain.IsZero(unstaked) {
		return nil, domain.ErrNothingToClaim
	}
	held := domain.Copy(unstaked)

	path := make([]domain.Asset, 0, len(s.rewardPath)+2)
	path = append(path, rewardAsset)
	path = append(path, s.rewardPath...)
	path = append(path, v.Asset)
	out, err := s.swapPath(ctx, path, held, minOutput)
	if err != nil {
		return nil, fmt.Errorf("swap rewards: %w", err)
	}
	out = domain.Copy(out)

	if _, err := s.yield.Deposit(ctx, v.Address, v.Asset, out); err != nil {
		return nil, s.unwindReinvest(ctx, path, out, fmt.Errorf("supply to yield source: %w", err))
	}

	events := []*domain.Event{}
	swapped := s.newEvent(domain.EventSwapped)
	swapped.Caller = caller
	swapped.AssetIn, swapped.AssetOut = rewardAsset, v.Asset
	swapped.AmountIn, swapped.AmountOut = held, domain.Copy(out)
	events = append(events, swapped, s.depositToYieldEvent(caller, out))

	e := s.newEvent(domain.EventReinvest)
	e.Caller = caller
	e.AssetIn, e.AssetOut = rewardAsset, v.Asset
	e.AmountIn, e.AmountOut = domain.Copy(held), domain.Copy(out)
	events = append(events, e)
	s.emit(ctx, events...)

	s.logger.Info("rewards reinvested", "reward_asset", string(rewardAsset), "rewards", held.Dec(), "assets", out.Dec())
	return out, nil
}

// unwindReinvest swaps proceeds that could not be supplied back into the reward asset.
// If that fails too the proceeds are kept as inactive assets.
func (s *VaultService) unwindReinvest(ctx context.Context, path []domain.Asset, out *uint256.Int, cause error) error {
	reverse := make([]domain.Asset, len(path))
	for i, asset := range path {
		reverse[len(path)-1-i] = asset
	}
	if _, err := s.swapPath(ctx, reverse, out, nil); err != nil {
		s.logger.Error("failed to swap reinvest proceeds back", "amount", out.Dec(), "error", err)
		s.vault.InactiveAssets.Add(s.vault.InactiveAssets, out)
		return errors.Join(cause, fmt.Errorf("swap proceeds back: %w", err))
	}
	s.logger.Warn("reinvest aborted and unwound", "reward_asset", string(reverse[len(reverse)-1]), "reason", cause.Error())
	return cause
}

// Swap converts treasury holdings held by the vault
func (s *VaultService) Swap(ctx context.Context, caller domain.Address, assetIn, assetOut domain.Asset, amountIn, minOutput *uint256.Int) (*uint256.Int, error) {
	return s.treasurySwap(ctx, caller, []domain.Asset{assetIn, assetOut}, amountIn, minOutput)
}

// MultihopSwap converts treasury holdings along path
func (s *VaultService) MultihopSwap(ctx context.Context, caller domain.Address, path []domain.Asset, amountIn, minOutput *uint256.Int) (*uint256.Int, error) {
	return s.treasurySwap(ctx, caller, path, amountIn, minOutput)
}

func (s *VaultService) treasurySwap(ctx context.Context, caller domain.Address, path []domain.Asset, amountIn, minOutput *uint256.Int) (*uint256.Int, error) {
	ctx, unlock, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.requireOwner(caller); err != nil {
		return nil, err
	}
	if len(path) < 2 {
		return nil, domain.ErrInvalidPath
	}
	if domain.IsZero(amountIn) {
		return nil, domain.ErrInvalidAmount
	}
	v := s.vault
	assetIn, assetOut := path[0], path[len(path)-1]
	if assetIn == v.Asset && amountIn.Gt(v.InactiveAssets) {
		return nil, domain.ErrInsufficientBalance
	}

	out, err := s.swapPath(ctx, path, amountIn, minOutput)
	if err != nil {
		return nil, err
	}
	out = domain.Copy(out)
	if assetIn == v.Asset {
		v.InactiveAssets = domain.SubFloor(v.InactiveAssets, amountIn)
	}
	if assetOut == v.Asset {
		v.InactiveAssets.Add(v.InactiveAssets, out)
	}

	e := s.newEvent(domain.EventSwapped)
	e.Caller = caller
	e.AssetIn, e.AssetOut = assetIn, assetOut
	e.AmountIn, e.AmountOut = domain.Copy(amountIn), domain.Copy(out)
	s.emit(ctx, e)
	return out, nil
}

// swapPath converts the vault's amountIn along path, using a direct swap for one hop
func (s *VaultService) swapPath(ctx context.Context, path []domain.Asset, amountIn, minOutput *uint256.Int) (*uint256.Int, error) {
	if len(path) == 2 {
		return s.router.Swap(ctx, s.vault.Address, path[0], path[1], amountIn, minOutput)
	}
	return s.router.MultihopSwap(ctx, s.vault.Address, path, amountIn, minOutput)
}

// supply moves amount of inactive assets into the yield source
func (s *VaultService) supply(ctx context.Context, amount *uint256.Int) error {
	v := s.vault
	if _, err := s.yield.Deposit(ctx, v.Address, v.Asset, amount); err != nil {
		return fmt.Errorf("supply to yield source: %w", err)
	}
	v.InactiveAssets = domain.SubFloor(v.InactiveAssets, amount)
	return nil
}

// redeem pulls amount out of the yield source into inactive assets
func (s *VaultService) redeem(ctx context.Context, amount *uint256.Int) (*uint256.Int, error) {
	v := s.vault
	returned, err := s.yield.Withdraw(ctx, v.Address, v.Asset, amount)
	if err != nil {
		return nil, fmt.Errorf("redeem from yield source: %w", err)
	}
	returned = domain.Copy(returned)
	v.InactiveAssets.Add(v.InactiveAssets, returned)
	return returned, nil
}

func (s *VaultService) depositToYieldEvent(caller domain.Address, amount *uint256.Int) *domain.Event {
	e := s.newEvent(domain.EventDepositToAave)
	e.Caller = caller
	e.AssetIn = s.vault.Asset
	e.AmountIn = domain.Copy(amount)
	return e
}

func (s *VaultService) redeemEvent(caller domain.Address, amount *uint256.Int) *domain.Event {
	e := s.newEvent(domain.EventRedeemFromAave)
	e.Caller = caller
	e.AssetOut = s.vault.Asset
	e.AmountIn = domain.Copy(amount)
	return e
}
