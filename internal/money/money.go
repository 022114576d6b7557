// Package money provides the integer minor-unit amount used for bills, item
// prices and the per-minute rate.
package money

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrInvalidAmount is returned when a decimal amount cannot be parsed.
	ErrInvalidAmount = errors.New("money: invalid amount")
	// ErrOverflow is returned when an amount does not fit in int64 cents.
	ErrOverflow = errors.New("money: amount out of range")
)

// maxWhole is the largest whole-unit part whose cents fit in int64.
const maxWhole = math.MaxInt64 / 100

// Money is an amount in the smallest currency unit (cents).
// All arithmetic is integer-only.
type Money int64

// Zero is the zero amount.
const Zero Money = 0

// FromCents creates a Money value from minor units.
func FromCents(cents int64) Money { return Money(cents) }

// Cents returns the amount in minor units.
func (m Money) Cents() int64 { return int64(m) }

// Add returns m + other. It wraps on overflow; use CheckedAdd for
// amounts that are not already bounded.
func (m Money) Add(other Money) Money { return m + other }

// Mul multiplies the amount by an integer quantity. It wraps on overflow;
// use CheckedMul for amounts that are not already bounded.
func (m Money) Mul(qty int64) Money { return Money(int64(m) * qty) }

// CheckedAdd returns m + other, or ErrOverflow.
func (m Money) CheckedAdd(other Money) (Money, error) {
	sum := m + other
	if (other > 0 && sum < m) || (other < 0 && sum > m) {
		return 0, fmt.Errorf("%w: %s + %s", ErrOverflow, m, other)
	}
	return sum, nil
}

// CheckedMul returns m * qty, or ErrOverflow.
func (m Money) CheckedMul(qty int64) (Money, error) {
	a := int64(m)
	if a == 0 || qty == 0 {
		return 0, nil
	}
	p := a * qty
	if p/qty != a || (a == -1 && qty == math.MinInt64) || (qty == -1 && a == math.MinInt64) {
		return 0, fmt.Errorf("%w: %s x %d", ErrOverflow, m, qty)
	}
	return Money(p), nil
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m < 0 }

// String formats the amount as a decimal with two fraction digits, e.g. "15.00".
func (m Money) String() string {
	cents := int64(m)
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// Parse parses a decimal string such as "3.5", "3.50" or "-12" into Money.
// At most two fraction digits are accepted.
func Parse(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" && (!hasFrac || frac == "") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("%w: %q has more than two decimals", ErrInvalidAmount, s)
	}
	if whole == "" {
		whole = "0"
	}

	units, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("%w: %q: %w", ErrInvalidAmount, s, ErrOverflow)
		}
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if units > maxWhole {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidAmount, s, ErrOverflow)
	}

	var cents uint64
	if frac != "" {
		for len(frac) < 2 {
			frac += "0"
		}
		cents, err = strconv.ParseUint(frac, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
	}

	sum := units*100 + cents
	if sum > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidAmount, s, ErrOverflow)
	}
	total := int64(sum)
	if negative {
		total = -total
	}
	return Money(total), nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number, a quoted decimal string, or null.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}
	s := strings.Trim(string(data), `"`)
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
