package campaign

import (
	"math/big"

	"github.com/holiman/uint256"
)

var basisPoints = uint256.NewInt(BasisPoints)

// toUint256 converts a non-negative amount that fits in 256 bits.
func toUint256(v *big.Int) (*uint256.Int, bool) {
	if v == nil || v.Sign() < 0 {
		return nil, false
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, false
	}
	return out, true
}

// applyBps returns amount*bps/BasisPoints truncated toward zero.
func applyBps(amount *big.Int, bps uint32) (*big.Int, error) {
	amt, ok := toUint256(amount)
	if !ok {
		return nil, ErrInvalidAmount
	}
	z, overflow := new(uint256.Int).MulDivOverflow(amt, uint256.NewInt(uint64(bps)), basisPoints)
	if overflow {
		return nil, ErrInvalidAmount
	}
	return z.ToBig(), nil
}

// validAmount reports whether v is a positive 256-bit amount.
func validAmount(v *big.Int) bool {
	_, ok := toUint256(v)
	return ok && v.Sign() > 0
}
