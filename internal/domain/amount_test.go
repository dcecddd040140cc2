package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name     string
		x, y, d  uint64
		wantDown uint64
		wantUp   uint64
	}{
		{name: "Exact division", x: 125, y: 200, d: 250, wantDown: 100, wantUp: 100},
		{name: "Fractional result", x: 101, y: 100, d: 125, wantDown: 80, wantUp: 81},
		{name: "Zero divisor", x: 10, y: 10, d: 0, wantDown: 0, wantUp: 0},
		{name: "Zero operand", x: 0, y: 10, d: 3, wantDown: 0, wantUp: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			down, err := MulDivDown(amt(tt.x), amt(tt.y), amt(tt.d))
			require.NoError(t, err)
			assert.Equal(t, tt.wantDown, down.Uint64())

			up, err := MulDivUp(amt(tt.x), amt(tt.y), amt(tt.d))
			require.NoError(t, err)
			assert.Equal(t, tt.wantUp, up.Uint64())
		})
	}
}

func TestMulDivDown_WideIntermediate(t *testing.T) {
	// ray-scaled product of an 18-decimal liquidity cap
	x := MustParseAmount("5000000000000000000000000")
	ray := MustParseAmount("1000000000000000000000000000")

	got, err := MulDivDown(x, ray, ray)

	require.NoError(t, err)
	assert.Equal(t, x.Dec(), got.Dec())
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount(" 1000000 ")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), v.Uint64())

	_, err = ParseAmount("")
	assert.Error(t, err)

	_, err = ParseAmount("-5")
	assert.Error(t, err)

	_, err = ParseAmount("12.5")
	assert.Error(t, err)
}

func TestSubFloorAndMin(t *testing.T) {
	assert.Equal(t, uint64(3), SubFloor(amt(10), amt(7)).Uint64())
	assert.True(t, SubFloor(amt(7), amt(10)).IsZero())
	assert.True(t, SubFloor(nil, amt(1)).IsZero())
	assert.Equal(t, uint64(7), Min(amt(10), amt(7)).Uint64())
}

func TestApplyBps(t *testing.T) {
	fee, err := ApplyBps(amt(250), 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), fee.Uint64())
}

func TestToDecimal(t *testing.T) {
	assert.Equal(t, "1250", ToDecimal(amt(1250)).String())
	assert.Equal(t, "0", ToDecimal(nil).String())
}
