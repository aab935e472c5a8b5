// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"
	"math"
	"math/big"
)

// normalizeWordBits is the width of the words a target is shifted by while
// normalizing it into a 64-bit mantissa.
const normalizeWordBits = 32

// compactSignBit is the sign flag of a signed compact number.
const compactSignBit = 0x00800000

// CompactToBig converts a compact representation of a whole number N to an
// unsigned 32-bit number.  The representation is similar to IEEE754 floating
// point numbers.
//
// Like IEEE754 floating point, there are three basic components: the sign,
// the exponent, and the mantissa.  The most significant 8 bits hold the
// unsigned base 256 exponent, bit 23 is the sign bit and the low 23 bits hold
// the mantissa:
//
//	-------------------------------------------------
//	|   Exponent     |    Sign    |    Mantissa     |
//	-------------------------------------------------
//	| 8 bits [31-24] | 1 bit [23] | 23 bits [22-00] |
//	-------------------------------------------------
//
// The formula to calculate N is:
//
//	N = (-1^sign) * mantissa * 256^(exponent-3)
func CompactToBig(compact uint32) *big.Int {
	bn := CompactToTarget(compact &^ compactSignBit)
	if compact&compactSignBit != 0 {
		bn.Neg(bn)
	}
	return bn
}

// BigToCompact converts a whole number N to a compact representation using
// an unsigned 32-bit number.  The compact representation only provides 23 bits
// of precision, so values larger than (2^23 - 1) only encode the most
// significant digits of the number.  See CompactToBig for details.
func BigToCompact(n *big.Int) uint32 {
	if n.Sign() == 0 {
		return 0
	}

	// The exponent is the byte length of the magnitude; the mantissa is
	// its three most significant bytes.
	mag := new(big.Int).Abs(n)
	exponent := uint((mag.BitLen() + 7) / 8)
	if exponent <= 3 {
		mag.Lsh(mag, 8*(3-exponent))
	} else {
		mag.Rsh(mag, 8*(exponent-3))
	}
	mantissa := uint32(mag.Uint64())

	// A mantissa reaching the sign bit drops its low byte.
	if mantissa&compactSignBit != 0 {
		mantissa >>= 8
		exponent++
	}

	compact := uint32(exponent<<24) | mantissa
	if n.Sign() < 0 {
		compact |= compactSignBit
	}
	return compact
}

// CompactToTarget converts compact bits to a staking target.  Unlike
// CompactToBig, bit 23 is treated as part of the mantissa rather than as a
// sign: targets are never negative and the full 24 bits carry precision.
func CompactToTarget(compact uint32) *big.Int {
	mantissa := compact & 0x00ffffff
	exponent := uint(compact >> 24)

	if exponent <= 3 {
		return big.NewInt(int64(mantissa >> (8 * (3 - exponent))))
	}
	bn := big.NewInt(int64(mantissa))
	return bn.Lsh(bn, 8*(exponent-3))
}

// normalizeTarget shifts n right by whole 32-bit words until it fits in 64
// bits and returns the remaining value with the number of words dropped.
func normalizeTarget(n *big.Int) (uint64, int) {
	v := new(big.Int).Set(n)
	var shift int
	for v.BitLen() > 64 {
		v.Rsh(v, normalizeWordBits)
		shift++
	}
	return v.Uint64(), shift
}

// DifficultyRatio returns difficultyOne / target as a float64.
//
// Both operands are normalized into 64-bit mantissas before the division and
// the quotient is rescaled by the difference of their word shifts, which
// keeps the result accurate from tiny proof-of-stake targets up to the
// largest permitted ones.
func DifficultyRatio(target, difficultyOne *big.Int) (float64, error) {
	if target == nil || target.Sign() <= 0 {
		str := fmt.Sprintf("target %v is not a positive value", target)
		return 0, ruleError(ErrInvalidTarget, str)
	}
	if difficultyOne == nil || difficultyOne.Sign() <= 0 {
		str := fmt.Sprintf("difficulty one target %v is not a positive "+
			"value", difficultyOne)
		return 0, ruleError(ErrInvalidTarget, str)
	}

	num, numShift := normalizeTarget(difficultyOne)
	den, denShift := normalizeTarget(target)
	ratio := float64(num) / float64(den)
	return math.Ldexp(ratio, normalizeWordBits*(numShift-denShift)), nil
}

// CompactDifficulty returns the difficulty of the compact target bits
// measured against the compact difficulty-one target.  A zero target fails
// with ErrInvalidTarget.
func CompactDifficulty(bits, difficultyOneBits uint32) (float64, error) {
	return DifficultyRatio(CompactToTarget(bits),
		CompactToTarget(difficultyOneBits))
}
