package engine

import (
	"encoding/binary"

	"github.com/wippyai/wasm-vm/engine/internal/lanes"
	"github.com/wippyai/wasm-vm/wasm"
)

// simdHandlers dispatches 0xFD instructions by sub-opcode.
var simdHandlers = map[uint32]opHandler{}

func registerSIMD(sub uint32, h opHandler) { simdHandlers[sub] = h }

func execSIMD(e *Executor, in *wasm.Instruction) (Exit, error) {
	imm, _ := in.Imm.(wasm.SIMDImm)
	h, ok := simdHandlers[imm.SubOpcode]
	if !ok {
		return normal, trap("unsupported 0xFD sub-opcode 0x%02x", imm.SubOpcode)
	}
	return h(e, in)
}

func simdImm(in *wasm.Instruction) wasm.SIMDImm {
	imm, _ := in.Imm.(wasm.SIMDImm)
	return imm
}

// vecUnary and vecBinary lift lane functions over V128 operands.
func vecUnary(f func(lanes.V128) lanes.V128) opHandler {
	return unary(func(a V128) V128 { return V128(f(lanes.V128(a))) })
}

func vecBinary(f func(a, b lanes.V128) lanes.V128) opHandler {
	return binop(func(a, b V128) V128 { return V128(f(lanes.V128(a), lanes.V128(b))) })
}

func vecTest(f func(lanes.V128) uint32) opHandler {
	return unary(func(a V128) I32 { return I32(int32(f(lanes.V128(a)))) })
}

// vecLoad reads n bytes and builds the vector from them.
func vecLoad(n uint64, build func([]byte) lanes.V128) opHandler {
	return func(e *Executor, in *wasm.Instruction) (Exit, error) {
		imm := simdImm(in)
		var offset uint64
		if imm.MemArg != nil {
			offset = imm.MemArg.Offset
		}
		b, err := e.access(offset, n)
		if err != nil {
			return normal, err
		}
		e.stack.Push(V128(build(b)))
		return normal, nil
	}
}

func extendLoad(w lanes.Width, signed bool) opHandler {
	return vecLoad(8, func(b []byte) lanes.V128 {
		var v lanes.V128
		copy(v[:8], b)
		return lanes.Extend(v, w, false, signed)
	})
}

func splatLoad(w lanes.Width) opHandler {
	return vecLoad(uint64(w/8), func(b []byte) lanes.V128 {
		var v lanes.V128
		copy(v[:], b)
		return lanes.Splat(w, lanes.Get(v, w, 0))
	})
}

func zeroLoad(n uint64) opHandler {
	return vecLoad(n, func(b []byte) lanes.V128 {
		var v lanes.V128
		copy(v[:], b)
		return v
	})
}

func execV128Store(e *Executor, in *wasm.Instruction) (Exit, error) {
	imm := simdImm(in)
	v, ok := pop[V128](e)
	if !ok {
		return normal, errStackUnderflow
	}
	var offset uint64
	if imm.MemArg != nil {
		offset = imm.MemArg.Offset
	}
	b, err := e.access(offset, 16)
	if err != nil {
		return normal, err
	}
	copy(b, v[:])
	return normal, nil
}

func execV128Const(e *Executor, in *wasm.Instruction) (Exit, error) {
	imm := simdImm(in)
	var v V128
	if imm.Bytes != nil {
		v = V128(*imm.Bytes)
	}
	e.stack.Push(v)
	return normal, nil
}

func execShuffle(e *Executor, in *wasm.Instruction) (Exit, error) {
	imm := simdImm(in)
	b, ok1 := pop[V128](e)
	a, ok2 := pop[V128](e)
	if !ok1 || !ok2 || imm.Bytes == nil {
		return normal, errStackUnderflow
	}
	e.stack.Push(V128(lanes.Shuffle(lanes.V128(a), lanes.V128(b), *imm.Bytes)))
	return normal, nil
}

func execBitselect(e *Executor, _ *wasm.Instruction) (Exit, error) {
	c, ok1 := pop[V128](e)
	b, ok2 := pop[V128](e)
	a, ok3 := pop[V128](e)
	if !ok1 || !ok2 || !ok3 {
		return normal, errStackUnderflow
	}
	e.stack.Push(V128(lanes.Bitselect(lanes.V128(a), lanes.V128(b), lanes.V128(c))))
	return normal, nil
}

// splat pops a scalar of type T and fills every lane of width w with its bits.
func splat[T Value](w lanes.Width, bits func(T) uint64) opHandler {
	return unary(func(a T) V128 { return V128(lanes.Splat(w, bits(a))) })
}

// laneOf returns the lane immediate of in, checked against the shape w.
func laneOf(in *wasm.Instruction, w lanes.Width) (int, error) {
	i := int(simdImm(in).Lane)
	if i >= w.Count() {
		return 0, trap("lane %d out of range for %d lanes", i, w.Count())
	}
	return i, nil
}

// extract pushes lane imm.Lane converted by conv.
func extract(w lanes.Width, conv func(v lanes.V128, lane int) Value) opHandler {
	return func(e *Executor, in *wasm.Instruction) (Exit, error) {
		i, err := laneOf(in, w)
		if err != nil {
			return normal, err
		}
		v, ok := pop[V128](e)
		if !ok {
			return normal, errStackUnderflow
		}
		e.stack.Push(conv(lanes.V128(v), i))
		return normal, nil
	}
}

// replace pops a scalar then a vector and overwrites one lane.
func replace[T Value](w lanes.Width, bits func(T) uint64) opHandler {
	return func(e *Executor, in *wasm.Instruction) (Exit, error) {
		i, err := laneOf(in, w)
		if err != nil {
			return normal, err
		}
		x, ok1 := pop[T](e)
		v, ok2 := pop[V128](e)
		if !ok1 || !ok2 {
			return normal, errStackUnderflow
		}
		e.stack.Push(V128(lanes.Set(lanes.V128(v), w, i, bits(x))))
		return normal, nil
	}
}

func i32Bits(v I32) uint64 { return uint64(uint32(v)) }
func i64Bits(v I64) uint64 { return uint64(v) }
func f32Bits(v F32) uint64 { return uint64(v) }
func f64Bits(v F64) uint64 { return uint64(v) }

func init() {
	register(wasm.OpPrefixSIMD, "simd", execSIMD)

	registerSIMD(wasm.SimdV128Load, vecLoad(16, func(b []byte) lanes.V128 { return lanes.V128(b) }))
	registerSIMD(wasm.SimdV128Load8x8S, extendLoad(lanes.W8, true))
	registerSIMD(wasm.SimdV128Load8x8U, extendLoad(lanes.W8, false))
	registerSIMD(wasm.SimdV128Load16x4S, extendLoad(lanes.W16, true))
	registerSIMD(wasm.SimdV128Load16x4U, extendLoad(lanes.W16, false))
	registerSIMD(wasm.SimdV128Load32x2S, extendLoad(lanes.W32, true))
	registerSIMD(wasm.SimdV128Load32x2U, extendLoad(lanes.W32, false))
	registerSIMD(wasm.SimdV128Load8Splat, splatLoad(lanes.W8))
	registerSIMD(wasm.SimdV128Load16Splat, splatLoad(lanes.W16))
	registerSIMD(wasm.SimdV128Load32Splat, splatLoad(lanes.W32))
	registerSIMD(wasm.SimdV128Load64Splat, splatLoad(lanes.W64))
	registerSIMD(wasm.SimdV128Load32Zero, zeroLoad(4))
	registerSIMD(wasm.SimdV128Load64Zero, zeroLoad(8))
	registerSIMD(wasm.SimdV128Store, execV128Store)
	registerSIMD(wasm.SimdV128Const, execV128Const)
	registerSIMD(wasm.SimdI8x16Shuffle, execShuffle)
	registerSIMD(wasm.SimdI8x16Swizzle, vecBinary(lanes.Swizzle))

	registerSIMD(wasm.SimdI8x16Splat, splat(lanes.W8, i32Bits))
	registerSIMD(wasm.SimdI16x8Splat, splat(lanes.W16, i32Bits))
	registerSIMD(wasm.SimdI32x4Splat, splat(lanes.W32, i32Bits))
	registerSIMD(wasm.SimdI64x2Splat, splat(lanes.W64, i64Bits))
	registerSIMD(wasm.SimdF32x4Splat, splat(lanes.W32, f32Bits))
	registerSIMD(wasm.SimdF64x2Splat, splat(lanes.W64, f64Bits))

	registerSIMD(wasm.SimdI8x16ExtractLaneS, extract(lanes.W8, func(v lanes.V128, i int) Value { return I32(lanes.GetSigned(v, lanes.W8, i)) }))
	registerSIMD(wasm.SimdI8x16ExtractLaneU, extract(lanes.W8, func(v lanes.V128, i int) Value { return I32(lanes.Get(v, lanes.W8, i)) }))
	registerSIMD(wasm.SimdI16x8ExtractLaneS, extract(lanes.W16, func(v lanes.V128, i int) Value { return I32(lanes.GetSigned(v, lanes.W16, i)) }))
	registerSIMD(wasm.SimdI16x8ExtractLaneU, extract(lanes.W16, func(v lanes.V128, i int) Value { return I32(lanes.Get(v, lanes.W16, i)) }))
	registerSIMD(wasm.SimdI32x4ExtractLane, extract(lanes.W32, func(v lanes.V128, i int) Value { return I32(int32(lanes.Get(v, lanes.W32, i))) }))
	registerSIMD(wasm.SimdI64x2ExtractLane, extract(lanes.W64, func(v lanes.V128, i int) Value { return I64(lanes.Get(v, lanes.W64, i)) }))
	registerSIMD(wasm.SimdF32x4ExtractLane, extract(lanes.W32, func(v lanes.V128, i int) Value { return F32(lanes.Get(v, lanes.W32, i)) }))
	registerSIMD(wasm.SimdF64x2ExtractLane, extract(lanes.W64, func(v lanes.V128, i int) Value { return F64(lanes.Get(v, lanes.W64, i)) }))

	registerSIMD(wasm.SimdI8x16ReplaceLane, replace(lanes.W8, i32Bits))
	registerSIMD(wasm.SimdI16x8ReplaceLane, replace(lanes.W16, i32Bits))
	registerSIMD(wasm.SimdI32x4ReplaceLane, replace(lanes.W32, i32Bits))
	registerSIMD(wasm.SimdI64x2ReplaceLane, replace(lanes.W64, i64Bits))
	registerSIMD(wasm.SimdF32x4ReplaceLane, replace(lanes.W32, f32Bits))
	registerSIMD(wasm.SimdF64x2ReplaceLane, replace(lanes.W64, f64Bits))

	registerSIMD(wasm.SimdV128Not, vecUnary(lanes.Not))
	registerSIMD(wasm.SimdV128And, vecBinary(lanes.And))
	registerSIMD(wasm.SimdV128AndNot, vecBinary(lanes.AndNot))
	registerSIMD(wasm.SimdV128Or, vecBinary(lanes.Or))
	registerSIMD(wasm.SimdV128Xor, vecBinary(lanes.Xor))
	registerSIMD(wasm.SimdV128Bitselect, execBitselect)
	registerSIMD(wasm.SimdV128AnyTrue, vecTest(func(v lanes.V128) uint32 { return uint32(boolI32(lanes.AnyTrue(v))) }))

	for _, s := range []struct {
		w                          lanes.Width
		allTrue, bitmask, add, sub uint32
	}{
		{lanes.W8, wasm.SimdI8x16AllTrue, wasm.SimdI8x16Bitmask, wasm.SimdI8x16Add, wasm.SimdI8x16Sub},
		{lanes.W16, wasm.SimdI16x8AllTrue, wasm.SimdI16x8Bitmask, wasm.SimdI16x8Add, wasm.SimdI16x8Sub},
		{lanes.W32, wasm.SimdI32x4AllTrue, wasm.SimdI32x4Bitmask, wasm.SimdI32x4Add, wasm.SimdI32x4Sub},
		{lanes.W64, wasm.SimdI64x2AllTrue, wasm.SimdI64x2Bitmask, wasm.SimdI64x2Add, wasm.SimdI64x2Sub},
	} {
		w := s.w
		registerSIMD(s.allTrue, vecTest(func(v lanes.V128) uint32 { return uint32(boolI32(lanes.AllTrue(v, w))) }))
		registerSIMD(s.bitmask, vecTest(func(v lanes.V128) uint32 { return lanes.Bitmask(v, w) }))
		registerSIMD(s.add, vecBinary(func(a, b lanes.V128) lanes.V128 { return lanes.Add(a, b, w) }))
		registerSIMD(s.sub, vecBinary(func(a, b lanes.V128) lanes.V128 { return lanes.Sub(a, b, w) }))
	}

	narrow := func(to lanes.Width, signed bool) opHandler {
		return vecBinary(func(a, b lanes.V128) lanes.V128 { return lanes.Narrow(a, b, to, signed) })
	}
	registerSIMD(wasm.SimdI8x16NarrowI16x8S, narrow(lanes.W8, true))
	registerSIMD(wasm.SimdI8x16NarrowI16x8U, narrow(lanes.W8, false))
	registerSIMD(wasm.SimdI16x8NarrowI32x4S, narrow(lanes.W16, true))
	registerSIMD(wasm.SimdI16x8NarrowI32x4U, narrow(lanes.W16, false))

	extend := func(from lanes.Width, high, signed bool) opHandler {
		return vecUnary(func(v lanes.V128) lanes.V128 { return lanes.Extend(v, from, high, signed) })
	}
	registerSIMD(wasm.SimdI16x8ExtendLowI8x16S, extend(lanes.W8, false, true))
	registerSIMD(wasm.SimdI16x8ExtendHighI8x16S, extend(lanes.W8, true, true))
	registerSIMD(wasm.SimdI16x8ExtendLowI8x16U, extend(lanes.W8, false, false))
	registerSIMD(wasm.SimdI16x8ExtendHighI8x16U, extend(lanes.W8, true, false))
	registerSIMD(wasm.SimdI32x4ExtendLowI16x8S, extend(lanes.W16, false, true))
	registerSIMD(wasm.SimdI32x4ExtendHighI16x8S, extend(lanes.W16, true, true))
	registerSIMD(wasm.SimdI32x4ExtendLowI16x8U, extend(lanes.W16, false, false))
	registerSIMD(wasm.SimdI32x4ExtendHighI16x8U, extend(lanes.W16, true, false))
	registerSIMD(wasm.SimdI64x2ExtendLowI32x4S, extend(lanes.W32, false, true))
	registerSIMD(wasm.SimdI64x2ExtendHighI32x4S, extend(lanes.W32, true, true))
	registerSIMD(wasm.SimdI64x2ExtendLowI32x4U, extend(lanes.W32, false, false))
	registerSIMD(wasm.SimdI64x2ExtendHighI32x4U, extend(lanes.W32, true, false))

	registerSIMD(wasm.SimdI32x4TruncSatF32x4S, vecUnary(func(v lanes.V128) lanes.V128 { return lanes.TruncSatF32x4(v, true) }))
	registerSIMD(wasm.SimdI32x4TruncSatF32x4U, vecUnary(func(v lanes.V128) lanes.V128 { return lanes.TruncSatF32x4(v, false) }))
	registerSIMD(wasm.SimdF32x4ConvertI32x4S, vecUnary(func(v lanes.V128) lanes.V128 { return lanes.ConvertI32x4(v, true) }))
	registerSIMD(wasm.SimdF32x4ConvertI32x4U, vecUnary(func(v lanes.V128) lanes.V128 { return lanes.ConvertI32x4(v, false) }))
	registerSIMD(wasm.SimdF64x2PromoteLowF32x4, vecUnary(lanes.PromoteLowF32x4))
	registerSIMD(wasm.SimdF32x4DemoteF64x2Zero, vecUnary(lanes.DemoteF64x2Zero))
}

// Lanes64 splits v into its low and high 64-bit halves.
func (v V128) Lanes64() (lo, hi uint64) {
	return binary.LittleEndian.Uint64(v[:8]), binary.LittleEndian.Uint64(v[8:])
}
