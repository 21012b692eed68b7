// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents. The JSON form is a plain decimal number
// so blobs written by earlier clients (which stored floats) load unchanged.
package core

import (
	"bytes"
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Money is an amount in cents. Negative values only appear as unvalidated input.
type Money struct {
	Cents int64
}

// MaxTargetAmount is the ceiling for a goal's target (1,000,000.00).
var MaxTargetAmount = Money{Cents: 1_000_000 * 100}

// MaxBalance is the ceiling for a goal's saved amount, a thousand times
// the largest target.
var MaxBalance = Money{Cents: MaxTargetAmount.Cents * 1000}

var ErrInvalidAmount = errors.New("invalid amount")

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. The result is always positive cents.
// Returns an error for invalid formats, negative values, or zero amounts.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil (rounds up)
//	ParseDecimalToCents("12.344") -> 1234, nil (rounds down)
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only positive values allowed
		return 0, ErrInvalidAmount
	}
	cents, err := parseUnsignedCents(s)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseAmount parses a signed decimal string into Money. Zero and negative
// values are accepted so callers can report them as invalid amounts with
// their own message.
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	cents, err := parseUnsignedCents(s)
	if err != nil {
		// JSON numbers may use exponent notation (1e3, 2.5E-1).
		if strings.ContainsAny(s, "eE") {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil || math.IsInf(f, 0) || math.IsNaN(f) || f*100 > math.MaxInt64 {
				return Money{}, ErrInvalidAmount
			}
			cents = int64(math.Round(f * 100))
		} else {
			return Money{}, err
		}
	}
	if neg {
		cents = -cents
	}
	return Money{Cents: cents}, nil
}

func parseUnsignedCents(s string) (int64, error) {
	if s == "" {
		return 0, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	// Split into integer and fractional part
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return 0, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Prevent overflow when multiplying by 100
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64-1 {
		return 0, ErrInvalidAmount
	}
	// Take first two fractional digits; then half-up rounding on third
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return iv*100 + fracCents, nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// IsPositive reports whether the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Cents > 0 }

// AddChecked returns m+o, or false when the sum overflows int64.
func (m Money) AddChecked(o Money) (Money, bool) {
	sum := m.Cents + o.Cents
	if (o.Cents > 0 && sum < m.Cents) || (o.Cents < 0 && sum > m.Cents) {
		return Money{}, false
	}
	return Money{Cents: sum}, true
}

// Add returns m+o, saturating at the int64 bounds.
func (m Money) Add(o Money) Money {
	if sum, ok := m.AddChecked(o); ok {
		return sum
	}
	if o.Cents > 0 {
		return Money{Cents: math.MaxInt64}
	}
	return Money{Cents: math.MinInt64}
}

// Sub subtracts o, clamping the result at zero.
func (m Money) Sub(o Money) Money {
	if o.Cents >= m.Cents {
		return Money{}
	}
	return Money{Cents: m.Cents - o.Cents}
}

// Float returns the value as a float64 for display purposes.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount as a minimal decimal ("500", "12.5", "0.05").
func (m Money) String() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	rem := cents % 100
	switch {
	case rem == 0:
		return sign + whole
	case rem%10 == 0:
		return sign + whole + "." + strconv.FormatInt(rem/10, 10)
	case rem < 10:
		return sign + whole + ".0" + strconv.FormatInt(rem, 10)
	default:
		return sign + whole + "." + strconv.FormatInt(rem, 10)
	}
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Money{}
		return nil
	}
	s := string(data)
	if len(data) >= 2 && data[0] == '"' {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return ErrInvalidAmount
		}
		s = unq
	}
	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
