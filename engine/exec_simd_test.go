package engine

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/wasm-vm/wasm"
)

func seq() [16]byte {
	var b [16]byte
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestSIMD(t *testing.T) {
	// lanes as little-endian i16: 0x7fff, -1, 0x0100, 0 ...
	wide := [16]byte{0xff, 0x7f, 0xff, 0xff, 0x00, 0x01}
	tests := []struct {
		name    string
		results []wasm.ValType
		body    []wasm.Instruction
		want    Value
	}{
		{"const extract_lane_u", types(i32), []wasm.Instruction{v128c(seq()), simdLane(wasm.SimdI8x16ExtractLaneU, 15)}, I32(15)},
		{"extract_lane_s sign extends", types(i32), []wasm.Instruction{v128c(wide), simdLane(wasm.SimdI16x8ExtractLaneS, 1)}, I32(-1)},
		{"i32x4 extract", types(i32), []wasm.Instruction{v128c(seq()), simdLane(wasm.SimdI32x4ExtractLane, 1)}, I32(0x07060504)},
		{"replace lane", types(i64), []wasm.Instruction{
			v128c(seq()), i64c(-1), simdLane(wasm.SimdI64x2ReplaceLane, 0),
			simdLane(wasm.SimdI64x2ExtractLane, 0),
		}, I64(-1)},
		{"splat", types(v128), []wasm.Instruction{i32c(0x0102), simd(wasm.SimdI16x8Splat)},
			V128{2, 1, 2, 1, 2, 1, 2, 1, 2, 1, 2, 1, 2, 1, 2, 1}},
		{"bitmask", types(i32), []wasm.Instruction{v128c(wide), simd(wasm.SimdI8x16Bitmask)}, I32(0b1101)},
		{"all_true", types(i32), []wasm.Instruction{v128c(seq()), simd(wasm.SimdI8x16AllTrue)}, I32(0)},
		{"any_true", types(i32), []wasm.Instruction{v128c(seq()), simd(wasm.SimdV128AnyTrue)}, I32(1)},
		{"add wraps", types(i32), []wasm.Instruction{
			v128c(wide), v128c(wide), simd(wasm.SimdI16x8Add),
			simdLane(wasm.SimdI16x8ExtractLaneU, 0),
		}, I32(0xfffe)},
		{"narrow saturates", types(v128), []wasm.Instruction{
			v128c(wide), v128c([16]byte{}), simd(wasm.SimdI8x16NarrowI16x8S),
		}, V128{0x7f, 0xff, 0x7f}},
		{"narrow unsigned clamps negatives", types(v128), []wasm.Instruction{
			v128c(wide), v128c([16]byte{}), simd(wasm.SimdI8x16NarrowI16x8U),
		}, V128{0xff, 0x00, 0xff}},
		{"extend low signed", types(i32), []wasm.Instruction{
			v128c([16]byte{0x80}), simd(wasm.SimdI16x8ExtendLowI8x16S),
			simdLane(wasm.SimdI16x8ExtractLaneS, 0),
		}, I32(-128)},
		{"shuffle", types(i32), []wasm.Instruction{
			v128c(seq()), v128c(seq()),
			{Opcode: wasm.OpPrefixSIMD, Imm: wasm.SIMDImm{SubOpcode: wasm.SimdI8x16Shuffle, Bytes: &[16]byte{31, 0}}},
			simdLane(wasm.SimdI8x16ExtractLaneU, 0),
		}, I32(15)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := run(t, tt.results, tt.body...)
			if err != nil {
				t.Fatalf("invoke: %v", err)
			}
			if diff := cmp.Diff([]Value{tt.want}, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSIMD_LaneOutOfRange(t *testing.T) {
	tests := []struct {
		name    string
		results []wasm.ValType
		body    []wasm.Instruction
	}{
		{"i8x16 extract", types(i32), []wasm.Instruction{v128c(seq()), simdLane(wasm.SimdI8x16ExtractLaneU, 16)}},
		{"i64x2 extract", types(i64), []wasm.Instruction{v128c(seq()), simdLane(wasm.SimdI64x2ExtractLane, 2)}},
		{"f32x4 replace", types(v128), []wasm.Instruction{
			v128c(seq()), {Opcode: wasm.OpF32Const, Imm: wasm.F32Imm{}}, simdLane(wasm.SimdF32x4ReplaceLane, 4),
		}},
		{"i16x8 replace", types(v128), []wasm.Instruction{v128c(seq()), i32c(1), simdLane(wasm.SimdI16x8ReplaceLane, 255)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.results, tt.body...); !errors.Is(err, ErrTrap) {
				t.Errorf("expected trap, got %v", err)
			}
		})
	}
}

func TestSIMD_Memory(t *testing.T) {
	m := newTestModule(DefaultOptions())
	memArg := func(sub uint32, offset uint64) wasm.Instruction {
		return wasm.Instruction{Opcode: wasm.OpPrefixSIMD, Imm: wasm.SIMDImm{SubOpcode: sub, MemArg: &wasm.MemoryImm{Offset: offset}}}
	}
	f := m.addFunc(sig(nil, types(v128, v128)), nil,
		i32c(0), v128c(seq()), memArg(wasm.SimdV128Store, 16),
		i32c(16), memArg(wasm.SimdV128Load32Splat, 4),
		i32c(0), memArg(wasm.SimdV128Load8x8U, 24),
	)
	got, err := m.invoke(t, f)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	want := []Value{
		V128{4, 5, 6, 7, 4, 5, 6, 7, 4, 5, 6, 7, 4, 5, 6, 7},
		V128{8, 0, 9, 0, 10, 0, 11, 0, 12, 0, 13, 0, 14, 0, 15, 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	oob := m.addFunc(sig(nil, types(v128)), nil, i32c(65530), memArg(wasm.SimdV128Load, 0))
	if _, err := m.invoke(t, oob); !errors.Is(err, ErrTrap) {
		t.Errorf("expected out of bounds trap, got %v", err)
	}
}

func TestV128_Lanes64(t *testing.T) {
	lo, hi := V128(seq()).Lanes64()
	if lo != 0x0706050403020100 || hi != 0x0f0e0d0c0b0a0908 {
		t.Errorf("Lanes64 = %#x, %#x", lo, hi)
	}
	if got, want := V128(seq()).String(), "v128:0706050403020100_0f0e0d0c0b0a0908"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
