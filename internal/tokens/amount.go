package tokens

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidAmount is returned when an amount does not convert to a
// positive integer number of base units.
var ErrInvalidAmount = errors.New("invalid amount")

// Round snaps a decimal amount to the token's precision. The downstream
// proof system rejects deposits whose base-unit amount is not an integer,
// so every user-supplied amount passes through here first. Rounding an
// already-rounded amount is a no-op.
func Round(amount float64, decimals uint8) float64 {
	scale := math.Pow10(int(decimals))
	return math.Round(amount*scale) / scale
}

// ToBaseUnits converts a decimal amount to integer base units, rounding
// to the token's precision first.
func ToBaseUnits(amount float64, decimals uint8) (uint64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	units := math.Round(Round(amount, decimals) * math.Pow10(int(decimals)))
	if units <= 0 || units > math.MaxUint64 {
		return 0, fmt.Errorf("%w: %v does not yield a positive base-unit amount", ErrInvalidAmount, amount)
	}
	return uint64(units), nil
}

// FromBaseUnits converts integer base units back to a decimal amount.
func FromBaseUnits(units uint64, decimals uint8) float64 {
	return float64(units) / math.Pow10(int(decimals))
}
