// Package money represents prices as integer minor units (centavos).
package money

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/Rodrigo-Schwindt/Backend-Render/pkg/errors"
)

// Amount is a count of minor units. 12345 is 123.45.
type Amount int64

const unit = 100

// FromMajor converts whole currency units.
func FromMajor(v int64) Amount {
	return Amount(v * unit)
}

// Parse reads a non-negative decimal with at most two fractional digits,
// e.g. "200", "200.5", "200.50". Exponents, signs and extra precision are
// rejected so that a claimed amount is never rounded into a match.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, apperrors.InvalidInput("amount is required")
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || !digits(whole) || (hasFrac && (frac == "" || !digits(frac))) {
		return 0, apperrors.InvalidInput(fmt.Sprintf("invalid amount %q", s))
	}
	if len(frac) > 2 {
		return 0, apperrors.InvalidInput(fmt.Sprintf("amount %q has more than two decimals", s))
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > (1<<62)/unit {
		return 0, apperrors.InvalidInput(fmt.Sprintf("amount %q out of range", s))
	}

	var f int64
	if frac != "" {
		f, _ = strconv.ParseInt(frac, 10, 64)
		if len(frac) == 1 {
			f *= 10
		}
	}
	return Amount(w*unit + f), nil
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Mul returns a * qty.
func (a Amount) Mul(qty int) Amount {
	return a * Amount(qty)
}

// Float64 is the decimal value for APIs that only accept JSON floats.
func (a Amount) Float64() float64 {
	return float64(a) / unit
}

// String formats with exactly two decimals.
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/unit, v%unit)
}

// MarshalJSON renders a JSON number in major units, e.g. 200.00.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or numeric string in major units.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		return nil
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
