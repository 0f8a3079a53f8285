// Package price converts the decimal price strings Binance sends in each
// bookTicker frame into fixed-point i64 values, scaled by 10^8. It is
// allocation-free and float-free: every digit is accumulated by hand in
// base 10, with overflow checks at each step.
package price

import (
	"errors"
	"math"
)

// Scale is the fixed-point multiplier applied to the integer part (10^8).
const Scale = 100_000_000

var (
	ErrEmpty            = errors.New("price: empty string")
	ErrInvalidChar      = errors.New("price: invalid character")
	ErrMultipleDecimals = errors.New("price: multiple decimal points")
	ErrOverflow         = errors.New("price: overflow")
)

// Parse converts a non-empty ASCII decimal string into its value scaled by
// 10^8, rounding the 9th fractional digit half-up and ignoring any digits
// beyond it.
//
//go:nosplit
//go:inline
func Parse(s []byte) (int64, error) {
	if len(s) == 0 {
		return 0, ErrEmpty
	}

	dot := -1
	for i, c := range s {
		if c == '.' {
			if dot != -1 {
				return 0, ErrMultipleDecimals
			}
			dot = i
		}
	}

	var intPart, fracPart []byte
	if dot == -1 {
		intPart = s
	} else {
		intPart = s[:dot]
		fracPart = s[dot+1:]
	}
	if len(intPart) == 0 && len(fracPart) == 0 {
		// dot present but no digits on either side, e.g. "."
		return 0, ErrInvalidChar
	}

	var acc uint64
	for _, c := range intPart {
		if c < '0' || c > '9' {
			return 0, ErrInvalidChar
		}
		d := uint64(c - '0')
		next := acc*10 + d
		if next < acc { // overflowed uint64 — integer part alone can't be a valid price
			return 0, ErrOverflow
		}
		acc = next
	}

	// Scale the integer part by 10^8, checking for overflow against i64's range.
	scaled := acc * Scale
	if acc != 0 && scaled/acc != Scale {
		return 0, ErrOverflow
	}
	if scaled > math.MaxInt64 {
		return 0, ErrOverflow
	}
	result := int64(scaled)

	if len(fracPart) == 0 {
		return result, nil
	}

	var frac int64
	roundUp := false
	for i, c := range fracPart {
		if c < '0' || c > '9' {
			return 0, ErrInvalidChar
		}
		d := int64(c - '0')
		switch {
		case i < 8:
			frac = frac*10 + d
		case i == 8:
			roundUp = d >= 5
		default:
			// digits beyond the 9th are ignored
		}
	}
	// Left-pad frac to 8 digits (it was accumulated left-to-right, so a
	// short fractional part like "5" -> 5 needs scaling up to 50000000).
	for i := len(fracPart); i < 8; i++ {
		frac *= 10
	}
	if roundUp {
		frac++
	}

	sum := result + frac
	if sum < result { // overflow
		return 0, ErrOverflow
	}
	return sum, nil
}
