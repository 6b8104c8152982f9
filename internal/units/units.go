// Package units converts between human token amounts and smallest-unit integers.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"swapEngine/internal/model"
)

const bpsDenominator = 10000

var hundred = decimal.NewFromInt(100)

// ParseUnits converts a decimal literal into smallest units for the given precision.
// Trailing zeros past the precision are accepted; any other digit there is an error.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("%w: empty amount", model.ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidAmount, amount)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: %q has more than %d fractional digits", model.ErrInvalidAmount, amount, decimals)
	}
	return scaled.BigInt(), nil
}

// FormatUnits renders a smallest-unit integer as a decimal string without trailing zeros.
func FormatUnits(raw *big.Int, decimals uint8) string {
	if raw == nil {
		return "0"
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)).String()
}

// ToDecimal converts a smallest-unit integer into a decimal value.
func ToDecimal(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// PercentToBps converts a slippage percentage into basis points: 0.5 (%) -> 50.
// Fractions of a basis point are floored; a non-zero percent that floors to 0 is rejected.
func PercentToBps(percent decimal.Decimal) (uint32, error) {
	if percent.IsNegative() {
		return 0, fmt.Errorf("slippage must not be negative: %s", percent)
	}
	bps := percent.Mul(hundred).Floor()
	if bps.IsZero() && percent.IsPositive() {
		return 0, fmt.Errorf("slippage %s%% is below the 0.01%% resolution", percent)
	}
	if bps.GreaterThan(decimal.NewFromInt(bpsDenominator)) {
		return 0, fmt.Errorf("slippage %s%% exceeds 100%%", percent)
	}
	return uint32(bps.IntPart()), nil
}

// BpsToPercent renders basis points as a percentage.
func BpsToPercent(bps uint32) decimal.Decimal {
	return decimal.NewFromInt(int64(bps)).Div(hundred)
}

// MinimumOut applies a slippage tolerance to an expected output: out * (10000 - bps) / 10000.
func MinimumOut(expected *big.Int, bps uint32) *big.Int {
	if expected == nil {
		return new(big.Int)
	}
	if bps > bpsDenominator {
		bps = bpsDenominator
	}
	out := new(big.Int).Mul(expected, big.NewInt(int64(bpsDenominator-bps)))
	return out.Quo(out, big.NewInt(bpsDenominator))
}

// GasWithBuffer adds a 20% buffer to a gas estimate, rounding up.
func GasWithBuffer(estimate uint64) uint64 {
	return (estimate*12 + 9) / 10
}
