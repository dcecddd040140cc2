package domain

import (
	"time"

	"github.com/holiman/uint256"
)

// Address identifies an account holding assets or shares
type Address string

// Asset identifies a token
type Asset string

// DepositLot is a single deposit record with its own cost basis.
// Shares only ever decrease after creation.
type DepositLot struct {
	Assets    *uint256.Int // cost basis still attributed to the lot
	Shares    *uint256.Int // shares still held from the lot
	Timestamp time.Time
}

// IsEmpty reports whether every share of the lot has been consumed
func (l *DepositLot) IsEmpty() bool {
	return IsZero(l.Shares)
}

// UserAccount is an append-only FIFO of lots plus a cursor to the oldest non-empty lot.
// The cursor never moves backwards.
type UserAccount struct {
	Lots   []*DepositLot
	Cursor int
}

// Balance returns the sum of remaining lot shares
func (a *UserAccount) Balance() *uint256.Int {
	total := Zero()
	for i := a.Cursor; i < len(a.Lots); i++ {
		total.Add(total, a.Lots[i].Shares)
	}
	return total
}

// CostBasis returns the sum of remaining lot assets
func (a *UserAccount) CostBasis() *uint256.Int {
	total := Zero()
	for i := a.Cursor; i < len(a.Lots); i++ {
		total.Add(total, a.Lots[i].Assets)
	}
	return total
}

func (a *UserAccount) advance() {
	for a.Cursor < len(a.Lots) && a.Lots[a.Cursor].IsEmpty() {
		a.Cursor++
	}
}

// Release is the outcome of consuming shares from an account's lots
type Release struct {
	Shares    *uint256.Int // shares consumed
	Assets    *uint256.Int // value of the consumed shares at the supplied price
	CostBasis *uint256.Int // cost basis removed from the lots
	Gain      *uint256.Int // sum of per-lot gains; losses are ignored
}

// lotSlice is the part of a lot taken by a walk
type lotSlice struct {
	index  int
	shares *uint256.Int
	basis  *uint256.Int
}

// slices walks lots from the cursor and splits shares across them without mutating anything
func (a *UserAccount) slices(shares *uint256.Int) ([]lotSlice, error) {
	remaining := Copy(shares)
	out := make([]lotSlice, 0)
	for i := a.Cursor; i < len(a.Lots) && !remaining.IsZero(); i++ {
		lot := a.Lots[i]
		if lot.IsEmpty() {
			continue
		}
		take := Min(remaining, lot.Shares)
		basis := Copy(lot.Assets)
		if !take.Eq(lot.Shares) {
			var err error
			basis, err = MulDivDown(lot.Assets, take, lot.Shares)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, lotSlice{index: i, shares: take, basis: basis})
		remaining.Sub(remaining, take)
	}
	if !remaining.IsZero() {
		return nil, ErrInsufficientShares
	}
	return out, nil
}

func (a *UserAccount) shrink(parts []lotSlice) {
	for _, p := range parts {
		lot := a.Lots[p.index]
		lot.Shares = SubFloor(lot.Shares, p.shares)
		lot.Assets = SubFloor(lot.Assets, p.basis)
		if lot.Shares.IsZero() {
			lot.Assets = Zero()
		}
	}
	a.advance()
}

// Ledger owns every account's lot sequence
type Ledger struct {
	accounts map[Address]*UserAccount
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{accounts: make(map[Address]*UserAccount)}
}

func (l *Ledger) account(user Address) *UserAccount {
	acc, ok := l.accounts[user]
	if !ok {
		acc = &UserAccount{}
		l.accounts[user] = acc
	}
	return acc
}

// MintLot appends a new lot to the user's sequence
func (l *Ledger) MintLot(user Address, assets, shares *uint256.Int, at time.Time) {
	acc := l.account(user)
	acc.Lots = append(acc.Lots, &DepositLot{
		Assets:    Copy(assets),
		Shares:    Copy(shares),
		Timestamp: at,
	})
}

// BalanceOf returns the user's remaining shares
func (l *Ledger) BalanceOf(user Address) *uint256.Int {
	acc, ok := l.accounts[user]
	if !ok {
		return Zero()
	}
	return acc.Balance()
}

// CostBasisOf returns the assets still attributed to the user's lots
func (l *Ledger) CostBasisOf(user Address) *uint256.Int {
	acc, ok := l.accounts[user]
	if !ok {
		return Zero()
	}
	return acc.CostBasis()
}

// Cursor returns the index of the user's oldest non-empty lot
func (l *Ledger) Cursor(user Address) int {
	acc, ok := l.accounts[user]
	if !ok {
		return 0
	}
	return acc.Cursor
}

// Lots returns copies of every lot the user ever held, including exhausted ones
func (l *Ledger) Lots(user Address) []DepositLot {
	acc, ok := l.accounts[user]
	if !ok {
		return nil
	}
	out := make([]DepositLot, 0, len(acc.Lots))
	for _, lot := range acc.Lots {
		out = append(out, DepositLot{Assets: Copy(lot.Assets), Shares: Copy(lot.Shares), Timestamp: lot.Timestamp})
	}
	return out
}

// Holders returns every address with an account, in no particular order
func (l *Ledger) Holders() []Address {
	out := make([]Address, 0, len(l.accounts))
	for addr := range l.accounts {
		out = append(out, addr)
	}
	return out
}

// TotalLotShares sums remaining shares over every account
func (l *Ledger) TotalLotShares() *uint256.Int {
	total := Zero()
	for _, acc := range l.accounts {
		total.Add(total, acc.Balance())
	}
	return total
}

// PreviewConsume computes what ConsumeForWithdrawal would release without touching the lots.
// Shares above the user's balance are capped to the balance.
func (l *Ledger) PreviewConsume(user Address, shares, totalAssets, totalShares *uint256.Int) (*Release, error) {
	acc, ok := l.accounts[user]
	if !ok {
		return nil, ErrZeroShares
	}
	_, release, err := l.preview(acc, shares, totalAssets, totalShares)
	return release, err
}

func (l *Ledger) preview(acc *UserAccount, shares, totalAssets, totalShares *uint256.Int) ([]lotSlice, *Release, error) {
	balance := acc.Balance()
	if balance.IsZero() {
		return nil, nil, ErrZeroShares
	}
	burn := Min(shares, balance)
	if burn.IsZero() {
		return nil, nil, ErrInvalidAmount
	}
	parts, err := acc.slices(burn)
	if err != nil {
		return nil, nil, err
	}

	release := &Release{Shares: burn, Assets: Zero(), CostBasis: Zero(), Gain: Zero()}
	for _, p := range parts {
		value, err := MulDivDown(p.shares, totalAssets, totalShares)
		if err != nil {
			return nil, nil, err
		}
		release.CostBasis.Add(release.CostBasis, p.basis)
		if value.Gt(p.basis) {
			release.Gain.Add(release.Gain, new(uint256.Int).Sub(value, p.basis))
		}
	}
	release.Assets, err = MulDivDown(burn, totalAssets, totalShares)
	if err != nil {
		return nil, nil, err
	}
	return parts, release, nil
}

// ConsumeForWithdrawal burns shares from the user's lots in FIFO order, valuing them at
// totalAssets/totalShares. The request is capped at the user's balance.
func (l *Ledger) ConsumeForWithdrawal(user Address, shares, totalAssets, totalShares *uint256.Int) (*Release, error) {
	acc, ok := l.accounts[user]
	if !ok {
		return nil, ErrZeroShares
	}
	parts, release, err := l.preview(acc, shares, totalAssets, totalShares)
	if err != nil {
		return nil, err
	}
	acc.shrink(parts)
	return release, nil
}

// TransferLots moves shares from one account to another in FIFO order. Every consumed
// slice becomes a lot in the recipient's sequence with the sender's cost basis and timestamp.
func (l *Ledger) TransferLots(from, to Address, shares *uint256.Int) error {
	if IsZero(shares) {
		return ErrInvalidAmount
	}
	if from == to {
		if l.BalanceOf(from).Lt(shares) {
			return ErrInsufficientShares
		}
		return nil
	}
	src, ok := l.accounts[from]
	if !ok {
		return ErrInsufficientShares
	}
	parts, err := src.slices(shares)
	if err != nil {
		return err
	}
	timestamps := make([]time.Time, len(parts))
	for i, p := range parts {
		timestamps[i] = src.Lots[p.index].Timestamp
	}
	src.shrink(parts)
	for i, p := range parts {
		l.MintLot(to, p.basis, p.shares, timestamps[i])
	}
	return nil
}
