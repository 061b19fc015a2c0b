package common

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var errU256Overflow = errors.New("amount exceeds uint256")

// MaxUint256 is the largest representable token amount.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// CheckU256 rejects negative values and values wider than 256 bits.
func CheckU256(v *big.Int) error {
	if v == nil {
		return nil
	}
	if v.Sign() < 0 {
		return errU256Overflow
	}
	if _, overflow := uint256.FromBig(v); overflow {
		return errU256Overflow
	}
	return nil
}

// Positive reports whether v is non-nil, strictly positive and fits u256.
func Positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0 && CheckU256(v) == nil
}

// IsMaxUint256 reports whether v equals 2^256-1, the conventional
// "everything" sentinel for allowances and withdrawals.
func IsMaxUint256(v *big.Int) bool {
	return v != nil && v.Cmp(MaxUint256) == 0
}

// MulDiv computes floor(a*b/c) using 512-bit intermediate precision. c must be
// non-zero.
func MulDiv(a, b, c *big.Int) *big.Int {
	x, overflowA := uint256.FromBig(a)
	y, overflowB := uint256.FromBig(b)
	z, overflowC := uint256.FromBig(c)
	if !overflowA && !overflowB && !overflowC && !z.IsZero() {
		out, overflow := new(uint256.Int).MulDivOverflow(x, y, z)
		if !overflow {
			return out.ToBig()
		}
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, c)
}

// CloneInt returns a copy of v, treating nil as zero.
func CloneInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
