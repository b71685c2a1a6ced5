// Package numeric holds the pure integer and floating-point helpers the
// interpreter needs: bit reinterpretation, trapping and saturating
// float-to-int truncation, checked division and the IEEE-754 operations
// whose wasm semantics differ from Go's operators.
package numeric

import (
	"math"
	"math/bits"
)

// Reinterpretation between integer bit patterns and floats.
// These are exact: NaN payloads and signed zeros are preserved.

func F32FromBits(b uint32) float32 { return math.Float32frombits(b) }
func F64FromBits(b uint64) float64 { return math.Float64frombits(b) }
func F32Bits(f float32) uint32     { return math.Float32bits(f) }
func F64Bits(f float64) uint64     { return math.Float64bits(f) }

// Signed/unsigned views of the same bits.

func U32(v int32) uint32 { return uint32(v) }
func U64(v int64) uint64 { return uint64(v) }
func S32(v uint32) int32 { return int32(v) }
func S64(v uint64) int64 { return int64(v) }

// Integer is the set of truncation targets.
type Integer interface {
	~int32 | ~int64 | ~uint32 | ~uint64
}

// bounds returns the open interval (lo, hi) of float64 values whose
// truncation fits in T. Both ends are exactly representable.
func bounds[T Integer]() (lo, hi float64) {
	var zero T
	switch any(zero).(type) {
	case int32:
		return -2147483649.0, 2147483648.0
	case uint32:
		return -1.0, 4294967296.0
	case int64:
		// -2^63 itself is representable and valid, so lo is just below it.
		return math.Nextafter(-9223372036854775808.0, math.Inf(-1)), 9223372036854775808.0
	default:
		return -1.0, 18446744073709551616.0
	}
}

// TruncError tells why a trapping truncation failed.
type TruncError uint8

const (
	TruncOK TruncError = iota
	TruncNaN
	TruncOverflow
)

// Trunc converts f toward zero into T, reporting NaN or out-of-range input.
func Trunc[T Integer](f float64) (T, TruncError) {
	if math.IsNaN(f) {
		return 0, TruncNaN
	}
	lo, hi := bounds[T]()
	t := math.Trunc(f)
	if t <= lo || t >= hi {
		return 0, TruncOverflow
	}
	return convert[T](t), TruncOK
}

// TruncSat converts f toward zero into T, saturating out-of-range input
// and mapping NaN to zero.
func TruncSat[T Integer](f float64) T {
	if math.IsNaN(f) {
		return 0
	}
	lo, hi := bounds[T]()
	t := math.Trunc(f)
	switch {
	case t <= lo:
		return minOf[T]()
	case t >= hi:
		return maxOf[T]()
	}
	return convert[T](t)
}

func convert[T Integer](t float64) T {
	var zero T
	switch any(zero).(type) {
	case uint64:
		return T(uint64(t))
	case uint32:
		return T(uint32(t))
	default:
		return T(int64(t))
	}
}

func minOf[T Integer]() T {
	var zero T
	switch any(zero).(type) {
	case int32:
		v := int64(math.MinInt32)
		return T(v)
	case int64:
		v := int64(math.MinInt64)
		return T(v)
	default:
		return 0
	}
}

func maxOf[T Integer]() T {
	var zero T
	switch any(zero).(type) {
	case int32:
		v := uint64(math.MaxInt32)
		return T(v)
	case int64:
		v := uint64(math.MaxInt64)
		return T(v)
	case uint32:
		v := uint64(math.MaxUint32)
		return T(v)
	default:
		v := uint64(math.MaxUint64)
		return T(v)
	}
}

// DivError tells why an integer division failed.
type DivError uint8

const (
	DivOK DivError = iota
	DivByZero
	DivOverflow
)

// DivS32 is signed division truncating toward zero.
func DivS32(a, b int32) (int32, DivError) {
	if b == 0 {
		return 0, DivByZero
	}
	if a == math.MinInt32 && b == -1 {
		return 0, DivOverflow
	}
	return a / b, DivOK
}

// DivS64 is signed division truncating toward zero.
func DivS64(a, b int64) (int64, DivError) {
	if b == 0 {
		return 0, DivByZero
	}
	if a == math.MinInt64 && b == -1 {
		return 0, DivOverflow
	}
	return a / b, DivOK
}

// RemS32 is the signed remainder; MinInt32 % -1 is 0 rather than a trap.
func RemS32(a, b int32) (int32, DivError) {
	if b == 0 {
		return 0, DivByZero
	}
	if b == -1 {
		return 0, DivOK
	}
	return a % b, DivOK
}

// RemS64 is the signed remainder; MinInt64 % -1 is 0 rather than a trap.
func RemS64(a, b int64) (int64, DivError) {
	if b == 0 {
		return 0, DivByZero
	}
	if b == -1 {
		return 0, DivOK
	}
	return a % b, DivOK
}

// Unsigned division and remainder only fail on a zero divisor.

func DivU32(a, b uint32) (uint32, DivError) {
	if b == 0 {
		return 0, DivByZero
	}
	return a / b, DivOK
}

func DivU64(a, b uint64) (uint64, DivError) {
	if b == 0 {
		return 0, DivByZero
	}
	return a / b, DivOK
}

func RemU32(a, b uint32) (uint32, DivError) {
	if b == 0 {
		return 0, DivByZero
	}
	return a % b, DivOK
}

func RemU64(a, b uint64) (uint64, DivError) {
	if b == 0 {
		return 0, DivByZero
	}
	return a % b, DivOK
}

// Shifts and rotations take the count modulo the operand width.

func Shl32(a, n int32) int32    { return a << (uint32(n) & 31) }
func ShrS32(a, n int32) int32   { return a >> (uint32(n) & 31) }
func ShrU32(a, n int32) int32   { return int32(uint32(a) >> (uint32(n) & 31)) }
func Rotl32(a, n int32) int32   { return int32(bits.RotateLeft32(uint32(a), int(uint32(n)&31))) }
func Rotr32(a, n int32) int32   { return int32(bits.RotateLeft32(uint32(a), -int(uint32(n)&31))) }
func Shl64(a, n int64) int64    { return a << (uint64(n) & 63) }
func ShrS64(a, n int64) int64   { return a >> (uint64(n) & 63) }
func ShrU64(a, n int64) int64   { return int64(uint64(a) >> (uint64(n) & 63)) }
func Rotl64(a, n int64) int64   { return int64(bits.RotateLeft64(uint64(a), int(uint64(n)&63))) }
func Rotr64(a, n int64) int64   { return int64(bits.RotateLeft64(uint64(a), -int(uint64(n)&63))) }
func Clz32(a int32) int32       { return int32(bits.LeadingZeros32(uint32(a))) }
func Ctz32(a int32) int32       { return int32(bits.TrailingZeros32(uint32(a))) }
func Popcnt32(a int32) int32    { return int32(bits.OnesCount32(uint32(a))) }
func Clz64(a int64) int64       { return int64(bits.LeadingZeros64(uint64(a))) }
func Ctz64(a int64) int64       { return int64(bits.TrailingZeros64(uint64(a))) }
func Popcnt64(a int64) int64    { return int64(bits.OnesCount64(uint64(a))) }
func Extend8S32(a int32) int32  { return int32(int8(a)) }
func Extend16S32(a int32) int32 { return int32(int16(a)) }
func Extend8S64(a int64) int64  { return int64(int8(a)) }
func Extend16S64(a int64) int64 { return int64(int16(a)) }
func Extend32S64(a int64) int64 { return int64(int32(a)) }

// Float is the set of IEEE-754 operand types.
type Float interface {
	~float32 | ~float64
}

// Min follows wasm fmin: NaN if either operand is NaN, and -0 < +0.
func Min[F Float](a, b F) F {
	return F(math.Min(float64(a), float64(b)))
}

// Max follows wasm fmax: NaN if either operand is NaN, and -0 < +0.
func Max[F Float](a, b F) F {
	return F(math.Max(float64(a), float64(b)))
}

// Nearest rounds to the nearest integer, ties to even.
func Nearest[F Float](a F) F {
	return F(math.RoundToEven(float64(a)))
}

func Ceil[F Float](a F) F  { return F(math.Ceil(float64(a))) }
func Floor[F Float](a F) F { return F(math.Floor(float64(a))) }
func TruncFloat[F Float](a F) F {
	return F(math.Trunc(float64(a)))
}

// Sqrt32 computes a correctly rounded single-precision square root.
func Sqrt32(a float32) float32 { return float32(math.Sqrt(float64(a))) }

// Abs, Neg and Copysign act on the sign bit only, so NaN payloads survive.

func Abs32(a float32) float32 { return math.Float32frombits(math.Float32bits(a) &^ (1 << 31)) }
func Neg32(a float32) float32 { return math.Float32frombits(math.Float32bits(a) ^ (1 << 31)) }
func Copysign32(a, b float32) float32 {
	const sign = uint32(1) << 31
	return math.Float32frombits(math.Float32bits(a)&^sign | math.Float32bits(b)&sign)
}
func Abs64(a float64) float64 { return math.Float64frombits(math.Float64bits(a) &^ (1 << 63)) }
func Neg64(a float64) float64 { return math.Float64frombits(math.Float64bits(a) ^ (1 << 63)) }
func Copysign64(a, b float64) float64 {
	return math.Copysign(a, b)
}

// Bool converts a comparison result to the wasm i32 encoding.
func Bool(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
