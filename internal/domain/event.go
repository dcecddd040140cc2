package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// EventKind names an observable vault event
type EventKind string

const (
	EventDeposit        EventKind = "Deposit"
	EventWithdraw       EventKind = "Withdraw"
	EventSwapped        EventKind = "Swapped"
	EventDepositToAave  EventKind = "DepositToAave"
	EventRedeemFromAave EventKind = "RedeemFromAave"
	EventPause          EventKind = "Pause"
	EventShutdown       EventKind = "Shutdown"
	EventSweep          EventKind = "Sweep"
	EventTransfer       EventKind = "Transfer"
	EventApproval       EventKind = "Approval"
	EventPlatformFee    EventKind = "PlatformFee"
	EventPerformanceFee EventKind = "PerformanceFee"
	EventTransferFees   EventKind = "TransferFees"
	EventRebalance      EventKind = "Rebalance"
	EventClaimRewards   EventKind = "ClaimRewards"
	EventReinvest       EventKind = "Reinvest"
)

// Event is a record of a committed vault operation.
// Fields that do not apply to a kind are left empty.
type Event struct {
	ID        uuid.UUID
	Kind      EventKind
	Timestamp time.Time
	Caller    Address
	Receiver  Address
	Owner     Address
	AssetIn   Asset
	AssetOut  Asset
	AmountIn  *uint256.Int // assets in, or the only amount for single-amount events
	AmountOut *uint256.Int // shares out for deposits, assets out for withdrawals and swaps
	Shares    *uint256.Int
	Flag      bool // pause state for Pause events
}

// NewEvent stamps a new event with a fresh ID
func NewEvent(kind EventKind, at time.Time) *Event {
	return &Event{
		ID:        uuid.New(),
		Kind:      kind,
		Timestamp: at,
		AmountIn:  Zero(),
		AmountOut: Zero(),
		Shares:    Zero(),
	}
}

// VaultSnapshot captures the global totals at a point in time
type VaultSnapshot struct {
	ID             uuid.UUID
	Timestamp      time.Time
	Asset          Asset
	Status         VaultStatus
	TotalAssets    *uint256.Int
	InactiveAssets *uint256.Int
	ActiveAssets   *uint256.Int
	TotalShares    *uint256.Int
	FeeShares      *uint256.Int
}
