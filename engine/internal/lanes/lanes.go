// Package lanes implements 128-bit vector operations over the
// little-endian lane layout. A vector is viewed as 16 8-bit, 8 16-bit,
// 4 32-bit or 2 64-bit lanes; lane 0 occupies the lowest bytes.
package lanes

import (
	"encoding/binary"
	"math"
)

// V128 is the raw byte image of a vector.
type V128 = [16]byte

// Width is a lane width in bits.
type Width int

const (
	W8  Width = 8
	W16 Width = 16
	W32 Width = 32
	W64 Width = 64
)

// Count returns the number of lanes of width w.
func (w Width) Count() int { return 128 / int(w) }

func (w Width) bytes() int { return int(w) / 8 }

// Get returns lane i zero-extended to 64 bits.
func Get(v V128, w Width, i int) uint64 {
	off := i * w.bytes()
	switch w {
	case W8:
		return uint64(v[off])
	case W16:
		return uint64(binary.LittleEndian.Uint16(v[off:]))
	case W32:
		return uint64(binary.LittleEndian.Uint32(v[off:]))
	default:
		return binary.LittleEndian.Uint64(v[off:])
	}
}

// GetSigned returns lane i sign-extended to 64 bits.
func GetSigned(v V128, w Width, i int) int64 {
	x := Get(v, w, i)
	switch w {
	case W8:
		return int64(int8(x))
	case W16:
		return int64(int16(x))
	case W32:
		return int64(int32(x))
	default:
		return int64(x)
	}
}

// Set returns v with lane i replaced by the low w bits of x.
func Set(v V128, w Width, i int, x uint64) V128 {
	off := i * w.bytes()
	switch w {
	case W8:
		v[off] = byte(x)
	case W16:
		binary.LittleEndian.PutUint16(v[off:], uint16(x))
	case W32:
		binary.LittleEndian.PutUint32(v[off:], uint32(x))
	default:
		binary.LittleEndian.PutUint64(v[off:], x)
	}
	return v
}

// Splat fills every lane with the low w bits of x.
func Splat(w Width, x uint64) V128 {
	var v V128
	for i := 0; i < w.Count(); i++ {
		v = Set(v, w, i, x)
	}
	return v
}

// AllTrue reports whether every lane is nonzero.
func AllTrue(v V128, w Width) bool {
	for i := 0; i < w.Count(); i++ {
		if Get(v, w, i) == 0 {
			return false
		}
	}
	return true
}

// AnyTrue reports whether any bit is set.
func AnyTrue(v V128) bool {
	return v != V128{}
}

// Bitmask collects the high bit of each lane, lane 0 in bit 0.
func Bitmask(v V128, w Width) uint32 {
	var m uint32
	for i := 0; i < w.Count(); i++ {
		if GetSigned(v, w, i) < 0 {
			m |= 1 << i
		}
	}
	return m
}

// Add adds lanes with wrap-around.
func Add(a, b V128, w Width) V128 {
	var r V128
	for i := 0; i < w.Count(); i++ {
		r = Set(r, w, i, Get(a, w, i)+Get(b, w, i))
	}
	return r
}

// Sub subtracts lanes with wrap-around.
func Sub(a, b V128, w Width) V128 {
	var r V128
	for i := 0; i < w.Count(); i++ {
		r = Set(r, w, i, Get(a, w, i)-Get(b, w, i))
	}
	return r
}

// Narrow packs the lanes of a then b, each of width 2*to, into lanes of
// width to with signed or unsigned saturation. Inputs are always read as
// signed.
func Narrow(a, b V128, to Width, signed bool) V128 {
	from := to * 2
	n := from.Count()
	lo, hi := int64(0), int64(1)<<to-1
	if signed {
		lo, hi = -(int64(1) << (to - 1)), int64(1)<<(to-1)-1
	}
	var r V128
	for i := 0; i < 2*n; i++ {
		src := a
		j := i
		if i >= n {
			src, j = b, i-n
		}
		x := GetSigned(src, from, j)
		x = max(lo, min(hi, x))
		r = Set(r, to, i, uint64(x))
	}
	return r
}

// Extend widens the low or high half of v's lanes of width from into
// lanes of width 2*from.
func Extend(v V128, from Width, high, signed bool) V128 {
	to := from * 2
	n := to.Count()
	base := 0
	if high {
		base = n
	}
	var r V128
	for i := 0; i < n; i++ {
		var x uint64
		if signed {
			x = uint64(GetSigned(v, from, base+i))
		} else {
			x = Get(v, from, base+i)
		}
		r = Set(r, to, i, x)
	}
	return r
}

// Bitwise operations.

func Not(a V128) V128 {
	for i := range a {
		a[i] = ^a[i]
	}
	return a
}

func And(a, b V128) V128 {
	for i := range a {
		a[i] &= b[i]
	}
	return a
}

func AndNot(a, b V128) V128 {
	for i := range a {
		a[i] &^= b[i]
	}
	return a
}

func Or(a, b V128) V128 {
	for i := range a {
		a[i] |= b[i]
	}
	return a
}

func Xor(a, b V128) V128 {
	for i := range a {
		a[i] ^= b[i]
	}
	return a
}

// Bitselect takes bits of a where c is set and bits of b elsewhere.
func Bitselect(a, b, c V128) V128 {
	var r V128
	for i := range r {
		r[i] = a[i]&c[i] | b[i]&^c[i]
	}
	return r
}

// Swizzle selects bytes of a by the indices in s; indices >= 16 yield 0.
func Swizzle(a, s V128) V128 {
	var r V128
	for i, idx := range s {
		if idx < 16 {
			r[i] = a[idx]
		}
	}
	return r
}

// Shuffle selects bytes from the 32-byte concatenation of a and b.
func Shuffle(a, b V128, idx [16]byte) V128 {
	var r V128
	for i, j := range idx {
		if j < 16 {
			r[i] = a[j]
		} else {
			r[i] = b[j-16]
		}
	}
	return r
}

// Float lane views.

func F32(v V128, i int) float32 { return math.Float32frombits(uint32(Get(v, W32, i))) }
func F64(v V128, i int) float64 { return math.Float64frombits(Get(v, W64, i)) }

func SetF32(v V128, i int, f float32) V128 {
	return Set(v, W32, i, uint64(math.Float32bits(f)))
}

func SetF64(v V128, i int, f float64) V128 {
	return Set(v, W64, i, math.Float64bits(f))
}

// ConvertI32x4 converts each i32 lane to f32.
func ConvertI32x4(v V128, signed bool) V128 {
	var r V128
	for i := 0; i < 4; i++ {
		var f float32
		if signed {
			f = float32(int32(Get(v, W32, i)))
		} else {
			f = float32(uint32(Get(v, W32, i)))
		}
		r = SetF32(r, i, f)
	}
	return r
}

// TruncSatF32x4 converts each f32 lane to i32 with saturation; NaN becomes 0.
func TruncSatF32x4(v V128, signed bool) V128 {
	var r V128
	for i := 0; i < 4; i++ {
		f := float64(F32(v, i))
		var x uint64
		switch {
		case math.IsNaN(f):
		case signed:
			x = uint64(uint32(satS32(f)))
		default:
			x = uint64(satU32(f))
		}
		r = Set(r, W32, i, x)
	}
	return r
}

func satS32(f float64) int32 {
	switch {
	case f <= math.MinInt32:
		return math.MinInt32
	case f >= math.MaxInt32:
		return math.MaxInt32
	}
	return int32(f)
}

func satU32(f float64) uint32 {
	switch {
	case f <= 0:
		return 0
	case f >= math.MaxUint32:
		return math.MaxUint32
	}
	return uint32(f)
}

// PromoteLowF32x4 widens the two low f32 lanes to f64.
func PromoteLowF32x4(v V128) V128 {
	var r V128
	r = SetF64(r, 0, float64(F32(v, 0)))
	r = SetF64(r, 1, float64(F32(v, 1)))
	return r
}

// DemoteF64x2Zero narrows both f64 lanes to f32 and zeroes the high lanes.
func DemoteF64x2Zero(v V128) V128 {
	var r V128
	r = SetF32(r, 0, float32(F64(v, 0)))
	r = SetF32(r, 1, float32(F64(v, 1)))
	return r
}
