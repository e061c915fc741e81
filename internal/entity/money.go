package entity

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Cents is a monetary amount in hundredths of the currency unit. It maps to a
// NUMERIC(10,2) column.
type Cents int64

// ParseCents parses a decimal string ("15000", "9999.99", "1.5e3") exactly,
// rounding half away from zero to two decimal places. Blank input, anything
// that is not plain decimal notation (NaN, Inf, hex) and values outside the
// Cents range are rejected.
func ParseCents(s string) (Cents, bool) {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	mantissa, exp := s, 0
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		e, err := strconv.Atoi(s[i+1:])
		if err != nil || e > maxExponent || e < -maxExponent {
			return 0, false
		}
		mantissa, exp = s[:i], e
	}

	intPart, fracPart, _ := strings.Cut(mantissa, ".")
	if intPart == "" && fracPart == "" {
		return 0, false
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return 0, false
	}

	digits := strings.TrimLeft(intPart+fracPart, "0")
	if digits == "" {
		return 0, true
	}
	// point counts the digits left of the decimal point; keep is the number of
	// leading digits that form whole cents.
	leading := len(intPart) + len(fracPart) - len(digits)
	point := len(intPart) - leading + exp
	keep := point + 2
	shift := keep - len(digits)
	if keep > maxCentsDigits {
		return 0, false
	}

	var kept string
	roundUp := false
	switch {
	case shift >= 0:
		kept = digits + strings.Repeat("0", shift)
	case keep <= 0:
		roundUp = keep == 0 && digits[0] >= '5'
	default:
		kept = digits[:keep]
		roundUp = digits[keep] >= '5'
	}

	var v int64
	if kept != "" {
		var err error
		if v, err = strconv.ParseInt(kept, 10, 64); err != nil {
			return 0, false
		}
	}
	if roundUp {
		if v == math.MaxInt64 {
			return 0, false
		}
		v++
	}
	if neg {
		v = -v
	}
	return Cents(v), true
}

const (
	maxExponent    = 1 << 16
	maxCentsDigits = 19
)

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MustParseCents is ParseCents for constants and tests.
func MustParseCents(s string) Cents {
	c, ok := ParseCents(s)
	if !ok {
		panic(fmt.Sprintf("entity: invalid amount %q", s))
	}
	return c
}

func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Float64 is the amount in currency units, for JSON fields that carry a number.
func (c Cents) Float64() float64 {
	return float64(c) / 100
}

// Value renders the amount as numeric text so both pgx and lib/pq bind it to
// NUMERIC without float rounding.
func (c Cents) Value() (driver.Value, error) {
	return c.String(), nil
}
