package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Money is an amount in minor currency units (paise). Integer arithmetic keeps
// totals and tie comparisons exact.
type Money int64

// PriceUnavailable is the sentinel price of a matrix cell with no available observation.
const PriceUnavailable = Money(math.MaxInt64)

// MaxAmount is the largest accepted price or delivery fee (1e9 rupees).
// Plan totals stay within int64 while every input is at most MaxAmount.
const MaxAmount = Money(1_000_000_000 * 100)

// MoneyFromFloat converts a decimal amount in major units to Money, rounding to the nearest paisa.
func MoneyFromFloat(amount float64) (Money, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("amount %v is not a finite number", amount)
	}
	if amount < 0 {
		return 0, fmt.Errorf("amount %v is negative", amount)
	}
	if amount > MaxAmount.Float64() {
		return 0, fmt.Errorf("amount %v exceeds the maximum of %s", amount, MaxAmount)
	}
	return Money(math.Round(amount * 100)), nil
}

// Float64 returns the amount in major units.
func (m Money) Float64() float64 {
	return float64(m) / 100
}

// String formats the amount with two decimals, e.g. "40.50".
func (m Money) String() string {
	if m == PriceUnavailable {
		return "unavailable"
	}
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON encodes the amount as a decimal number in major units.
func (m Money) MarshalJSON() ([]byte, error) {
	if m == PriceUnavailable {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(m.Float64(), 'f', -1, 64)), nil
}

// UnmarshalJSON decodes a decimal number in major units.
func (m *Money) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = PriceUnavailable
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	v, err := MoneyFromFloat(f)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
