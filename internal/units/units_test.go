package units

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapEngine/internal/model"
)

func TestParseUnits(t *testing.T) {
	tests := []struct {
		amount   string
		decimals uint8
		want     string
	}{
		{"1", 18, "1000000000000000000"},
		{"1.5", 6, "1500000"},
		{"0.000001", 6, "1"},
		{"100", 0, "100"},
		{"2.500000000", 6, "2500000"},
		{" 42.1 ", 2, "4210"},
	}
	for _, tt := range tests {
		got, err := ParseUnits(tt.amount, tt.decimals)
		require.NoError(t, err, tt.amount)
		assert.Equal(t, tt.want, got.String(), tt.amount)
	}
}

func TestParseUnitsRejectsExcessPrecision(t *testing.T) {
	for _, amount := range []string{"0.0000001", "1.1234567", "1.5"} {
		decimals := uint8(6)
		if amount == "1.5" {
			decimals = 0
		}
		_, err := ParseUnits(amount, decimals)
		require.Error(t, err, amount)
		assert.ErrorIs(t, err, model.ErrInvalidAmount)
	}
}

func TestParseUnitsRejectsGarbage(t *testing.T) {
	for _, amount := range []string{"", "abc", "1.2.3"} {
		_, err := ParseUnits(amount, 18)
		assert.ErrorIs(t, err, model.ErrInvalidAmount, amount)
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	cases := []struct {
		amount   string
		decimals uint8
	}{
		{"1", 18},
		{"0.123456", 6},
		{"123456.789", 9},
		{"0.000000000000000001", 18},
		{"1.10", 6},
	}
	for _, c := range cases {
		raw, err := ParseUnits(c.amount, c.decimals)
		require.NoError(t, err)
		back := FormatUnits(raw, c.decimals)
		assert.True(t, decimal.RequireFromString(c.amount).Equal(decimal.RequireFromString(back)), "%s -> %s", c.amount, back)
	}
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "1.5", FormatUnits(big.NewInt(1500000), 6))
	assert.Equal(t, "0", FormatUnits(nil, 6))
	assert.Equal(t, "0.000001", FormatUnits(big.NewInt(1), 6))
	assert.Equal(t, "42", FormatUnits(big.NewInt(42), 0))
}

// 0.5% slippage must become 50 bps and keep 99.5% of the expected output.
func TestSlippageWorkedExample(t *testing.T) {
	bps, err := PercentToBps(decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	assert.Equal(t, uint32(50), bps)

	minOut := MinimumOut(big.NewInt(1_000_000), bps)
	assert.Equal(t, "995000", minOut.String())

	assert.True(t, BpsToPercent(bps).Equal(decimal.RequireFromString("0.5")))
}

func TestPercentToBpsBounds(t *testing.T) {
	bps, err := PercentToBps(decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, uint32(10000), bps)

	bps, err = PercentToBps(decimal.RequireFromString("0.123"))
	require.NoError(t, err)
	assert.Equal(t, uint32(12), bps)

	_, err = PercentToBps(decimal.RequireFromString("100.01"))
	assert.Error(t, err)
	_, err = PercentToBps(decimal.NewFromInt(-1))
	assert.Error(t, err)

	_, err = PercentToBps(decimal.RequireFromString("0.004"))
	assert.ErrorContains(t, err, "resolution")
	bps, err = PercentToBps(decimal.Zero)
	require.NoError(t, err)
	assert.Zero(t, bps)
	bps, err = PercentToBps(decimal.RequireFromString("0.01"))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), bps)
}

func TestMinimumOut(t *testing.T) {
	assert.Equal(t, "0", MinimumOut(big.NewInt(1000), 10000).String())
	assert.Equal(t, "1000", MinimumOut(big.NewInt(1000), 0).String())
	assert.Equal(t, "999", MinimumOut(big.NewInt(1000), 1).String())
}

func TestGasWithBuffer(t *testing.T) {
	assert.Equal(t, uint64(120000), GasWithBuffer(100000))
	assert.Equal(t, uint64(2), GasWithBuffer(1))
	assert.Equal(t, uint64(14), GasWithBuffer(11))
	assert.Equal(t, uint64(0), GasWithBuffer(0))
}
