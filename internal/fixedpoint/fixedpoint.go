// Package fixedpoint implements the system-wide base·price fixed-point
// conversions: floor for fill credits, ceil for taker quote locks, both
// overflow-checked over 256-bit unsigned integers.
package fixedpoint

import (
	"errors"

	"github.com/holiman/uint256"
)

// Precision is the system-wide price precision, P = 10^30. It is a
// single named constant: markets never override it per-instance.
var Precision = uint256.MustFromDecimal("1000000000000000000000000000000")

// ErrMulOverflow is returned when base*price overflows 256 bits.
var ErrMulOverflow = errors.New("fixedpoint: multiplication overflow")

// ErrAddOverflow is returned when a carry overflows 256 bits.
var ErrAddOverflow = errors.New("fixedpoint: addition overflow")

// QuoteFloor computes floor(base*price / Precision).
func QuoteFloor(base, price *uint256.Int) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(base, price)
	if overflow {
		return nil, ErrMulOverflow
	}
	return new(uint256.Int).Div(product, Precision), nil
}

// QuoteCeil computes ceil(base*price / Precision).
func QuoteCeil(base, price *uint256.Int) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(base, price)
	if overflow {
		return nil, ErrMulOverflow
	}
	quotient := new(uint256.Int).Div(product, Precision)
	remainder := new(uint256.Int).Mod(product, Precision)
	if remainder.IsZero() {
		return quotient, nil
	}
	sum, overflow := new(uint256.Int).AddOverflow(quotient, uint256.NewInt(1))
	if overflow {
		return nil, ErrAddOverflow
	}
	return sum, nil
}
