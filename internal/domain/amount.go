package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const (
	// BasisPoints is the denominator for every bps-denominated rate
	BasisPoints = 10_000

	// SecondsPerYear is the year length used for time-proportional fees (365 days)
	SecondsPerYear = 31_536_000
)

// Zero returns a freshly allocated zero amount
func Zero() *uint256.Int {
	return new(uint256.Int)
}

// NewAmount returns an amount holding v
func NewAmount(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

// ParseAmount parses a base-10 integer string into an amount
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("invalid amount: empty string")
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

// MustParseAmount is ParseAmount for constants and tests
func MustParseAmount(s string) *uint256.Int {
	v, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Copy returns an independent copy of x, treating nil as zero
func Copy(x *uint256.Int) *uint256.Int {
	if x == nil {
		return Zero()
	}
	return x.Clone()
}

// IsZero reports whether x is nil or zero
func IsZero(x *uint256.Int) bool {
	return x == nil || x.IsZero()
}

// Add returns x + y, failing on overflow
func Add(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(Copy(x), Copy(y))
	if overflow {
		return nil, ErrAmountOverflow
	}
	return z, nil
}

// SubFloor returns x - y, or zero when y > x
func SubFloor(x, y *uint256.Int) *uint256.Int {
	if Copy(y).Cmp(Copy(x)) >= 0 {
		return Zero()
	}
	return new(uint256.Int).Sub(Copy(x), Copy(y))
}

// Min returns a copy of the smaller of x and y
func Min(x, y *uint256.Int) *uint256.Int {
	if Copy(x).Cmp(Copy(y)) <= 0 {
		return Copy(x)
	}
	return Copy(y)
}

// MulDivDown returns floor(x * y / d) using a 512-bit intermediate.
// A zero divisor yields zero.
func MulDivDown(x, y, d *uint256.Int) (*uint256.Int, error) {
	if IsZero(d) || IsZero(x) || IsZero(y) {
		return Zero(), nil
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return z, nil
}

// MulDivUp returns ceil(x * y / d)
func MulDivUp(x, y, d *uint256.Int) (*uint256.Int, error) {
	if IsZero(d) || IsZero(x) || IsZero(y) {
		return Zero(), nil
	}
	z, err := MulDivDown(x, y, d)
	if err != nil {
		return nil, err
	}
	rem := new(big.Int).Mul(x.ToBig(), y.ToBig())
	if rem.Mod(rem, d.ToBig()).Sign() == 0 {
		return z, nil
	}
	return Add(z, uint256.NewInt(1))
}

// ApplyBps returns floor(x * bps / 10000)
func ApplyBps(x *uint256.Int, bps uint64) (*uint256.Int, error) {
	return MulDivDown(x, uint256.NewInt(bps), uint256.NewInt(BasisPoints))
}

// ToDecimal converts an amount for display purposes
func ToDecimal(x *uint256.Int) decimal.Decimal {
	if x == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(x.ToBig(), 0)
}
