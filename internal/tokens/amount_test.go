package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundIsIdempotent(t *testing.T) {
	cases := []struct {
		amount   float64
		decimals uint8
	}{
		{0.1000000001, 6},
		{1.5, 9},
		{0.123456789, 8},
		{42, 11},
		{0.000001, 6},
	}

	for _, tc := range cases {
		once := Round(tc.amount, tc.decimals)
		twice := Round(once, tc.decimals)
		assert.Equal(t, once, twice, "rounding %v at %d decimals", tc.amount, tc.decimals)
	}
}

func TestToBaseUnits(t *testing.T) {
	// Excess precision is snapped to the token's decimals before conversion.
	units, err := ToBaseUnits(0.1000000001, 6)
	require.NoError(t, err)
	assert.Equal(t, uint64(100000), units)

	units, err = ToBaseUnits(1.5, 9)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), units)

	// Amounts that round to zero are rejected before any network call.
	_, err = ToBaseUnits(0.0000001, 6)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ToBaseUnits(0, 9)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ToBaseUnits(-1, 9)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestFromBaseUnitsRoundTrip(t *testing.T) {
	units, err := ToBaseUnits(0.25, 9)
	require.NoError(t, err)
	assert.Equal(t, 0.25, FromBaseUnits(units, 9))
}

func TestLookup(t *testing.T) {
	tok, err := Lookup("usdc")
	require.NoError(t, err)
	assert.Equal(t, "USDC", tok.Symbol)
	assert.Equal(t, uint8(6), tok.Decimals)
	assert.False(t, tok.IsNative())

	sol, err := Lookup("SOL")
	require.NoError(t, err)
	assert.True(t, sol.IsNative())

	_, err = Lookup("DOGE")
	assert.Error(t, err)
}

func TestSymbolForMint(t *testing.T) {
	sym, ok := SymbolForMint(Registry["USDT"].Mint)
	require.True(t, ok)
	assert.Equal(t, "USDT", sym)
}
