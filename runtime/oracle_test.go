package runtime_test

import (
	"context"
	stderrors "errors"
	"math"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tetratelabs/wazero"
	"pgregory.net/rapid"

	"github.com/wippyai/wasm-vm/engine"
	"github.com/wippyai/wasm-vm/runtime"
	"github.com/wippyai/wasm-vm/wasm"
)

// pair runs one encoded module on wazero and on this runtime side by side.
type pair struct {
	ctx  context.Context
	call func(name string, args ...uint64) ([]uint64, error)
	inst *runtime.Instance
}

type reporter interface {
	Helper()
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

func newPair(t *testing.T, m *wasm.Module) *pair {
	t.Helper()
	ctx := context.Background()
	bin := m.Encode()

	ref := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	t.Cleanup(func() { ref.Close(ctx) })
	refMod, err := ref.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("wazero rejected module: %v", err)
	}

	opts := runtime.DefaultOptions()
	opts.Engine.Select = engine.SelectBottomOnTrue
	rt := runtime.New(opts)
	inst, err := rt.Instantiate(ctx, bin, "")
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	return &pair{
		ctx: ctx,
		call: func(name string, args ...uint64) ([]uint64, error) {
			return refMod.ExportedFunction(name).Call(ctx, args...)
		},
		inst: inst,
	}
}

// check calls name on both engines and fails on any difference in
// results or in whether the call trapped.
func (p *pair) check(t reporter, name string, args ...uint64) {
	t.Helper()
	ft, ok := p.inst.Module().Signature(name)
	if !ok {
		t.Fatalf("no exported function %q", name)
	}
	want, refErr := p.call(name, args...)

	vals := make([]engine.Value, len(args))
	for i, a := range args {
		vals[i] = fromBits(ft.Params[i], a)
	}
	got, err := p.inst.Call(p.ctx, name, vals...)

	if refErr != nil {
		if !stderrors.Is(err, engine.ErrTrap) {
			t.Errorf("%s%v: wazero trapped (%v), got %v, %v", name, args, refErr, got, err)
		}
		return
	}
	if err != nil {
		t.Errorf("%s%v: unexpected error %v, wazero returned %v", name, args, err, want)
		return
	}
	bits := make([]uint64, len(got))
	for i, v := range got {
		bits[i] = toBits(v)
	}
	if diff := cmp.Diff(want, bits); diff != "" {
		t.Errorf("%s%v mismatch (-wazero +ours):\n%s", name, args, diff)
	}
}

func fromBits(t wasm.ValType, b uint64) engine.Value {
	switch t {
	case wasm.ValI32:
		return engine.I32(int32(uint32(b)))
	case wasm.ValI64:
		return engine.I64(int64(b))
	case wasm.ValF32:
		return engine.F32(uint32(b))
	case wasm.ValF64:
		return engine.F64(b)
	}
	return nil
}

func toBits(v engine.Value) uint64 {
	switch v := v.(type) {
	case engine.I32:
		return uint64(uint32(v))
	case engine.I64:
		return uint64(v)
	case engine.F32:
		return uint64(v)
	case engine.F64:
		return uint64(v)
	}
	return 0
}

func u32(v int32) uint64 { return uint64(uint32(v)) }

func f32b(f float32) uint64 { return uint64(math.Float32bits(f)) }

func f64b(f float64) uint64 { return math.Float64bits(f) }

func TestOracle_Control(t *testing.T) {
	void := wasm.BlockTypeVoid

	// iterative factorial over a loop with a conditional exit
	fac := single(wasm.FuncType{Params: vts(i64), Results: vts(i64)}, vts(i64),
		i64c(1), localSet(1),
		block(void,
			loop(void,
				localGet(0), op(wasm.OpI64Eqz), brIf(1),
				localGet(1), localGet(0), op(wasm.OpI64Mul), localSet(1),
				localGet(0), i64c(1), op(wasm.OpI64Sub), localSet(0),
				br(0),
			),
		),
		localGet(1),
	)
	p := newPair(t, fac)
	for _, n := range []uint64{0, 1, 5, 20, 25} {
		p.check(t, "f", n)
	}

	sel := single(wasm.FuncType{Params: vts(i32, i32, i32), Results: vts(i32)}, nil,
		localGet(0), localGet(1), localGet(2), op(wasm.OpSelect))
	p = newPair(t, sel)
	p.check(t, "f", 1, 2, 0)
	p.check(t, "f", 1, 2, 7)

	brTable := wasm.Instruction{Opcode: wasm.OpBrTable, Imm: wasm.BrTableImm{Labels: []uint32{0, 1}, Default: 2}}
	ret := op(wasm.OpReturn)
	sw := single(wasm.FuncType{Params: vts(i32), Results: vts(i32)}, nil,
		block(void,
			block(void,
				block(void, localGet(0), brTable),
				i32c(10), ret,
			),
			i32c(20), ret,
		),
		i32c(30),
	)
	p = newPair(t, sw)
	for _, i := range []int32{0, 1, 2, 3, 5, -1} {
		p.check(t, "f", u32(i))
	}
}

func TestOracle_CallIndirect(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{
			{Results: vts(i32)},
			{Results: vts(i64)},
			{Params: vts(i32), Results: vts(i32)},
		},
		Funcs: []uint32{0, 0, 1, 2},
		Code: []wasm.FuncBody{
			{Body: []wasm.Instruction{i32c(1)}},
			{Body: []wasm.Instruction{i32c(2)}},
			{Body: []wasm.Instruction{i64c(3)}},
			{Body: []wasm.Instruction{
				localGet(0),
				{Opcode: wasm.OpCallIndirect, Imm: wasm.CallIndirectImm{TypeIdx: 0}},
			}},
		},
		Tables: []wasm.TableType{{ElemType: wasm.ValFuncRef, Limits: wasm.Limits{Min: 4}}},
		Elements: []wasm.Element{{
			Mode: wasm.SegmentActive, Type: wasm.ValFuncRef,
			Offset: []wasm.Instruction{i32c(0)}, FuncIdxs: []uint32{0, 1, 2},
		}},
		Exports: []wasm.Export{{Name: "dispatch", Kind: wasm.KindFunc, Idx: 3}},
	}
	p := newPair(t, m)
	// type mismatch, null entry and out of range trap on both
	for _, i := range []uint64{0, 1, 2, 3, 9} {
		p.check(t, "dispatch", i)
	}
}

func TestOracle_Memory(t *testing.T) {
	two, three := uint64(2), uint64(3)
	rw := single(wasm.FuncType{Params: vts(i32, i32), Results: vts(i32)}, nil,
		localGet(0), localGet(1), mem(wasm.OpI32Store, 4),
		localGet(0), mem(wasm.OpI32Load8U, 5),
	)
	rw.Memories = []wasm.MemoryType{{Limits: wasm.Limits{Min: 1, Max: &two}}}
	p := newPair(t, rw)
	p.check(t, "f", 0, 0x11223344)
	p.check(t, "f", 100, u32(-1))
	p.check(t, "f", 65528, 7)
	p.check(t, "f", 65529, 7)
	p.check(t, "f", u32(-1), 7)

	memIdx := wasm.MemoryIdxImm{}
	grow := single(wasm.FuncType{Params: vts(i32), Results: vts(i32)}, nil,
		localGet(0), wasm.Instruction{Opcode: wasm.OpMemoryGrow, Imm: memIdx},
		wasm.Instruction{Opcode: wasm.OpMemorySize, Imm: memIdx},
		op(wasm.OpI32Add),
	)
	grow.Memories = []wasm.MemoryType{{Limits: wasm.Limits{Min: 1, Max: &three}}}
	p = newPair(t, grow)
	for _, n := range []uint64{0, 1, 5, 1, 1} {
		p.check(t, "f", n)
	}
}

func TestOracle_Numeric(t *testing.T) {
	div := single(wasm.FuncType{Params: vts(i32, i32), Results: vts(i32)}, nil,
		localGet(0), localGet(1), op(wasm.OpI32DivS))
	p := newPair(t, div)
	p.check(t, "f", 7, 2)
	p.check(t, "f", u32(-7), 2)
	p.check(t, "f", 1, 0)
	p.check(t, "f", u32(math.MinInt32), u32(-1))

	fmin := single(wasm.FuncType{Params: vts(f64, f64), Results: vts(f64)}, nil,
		localGet(0), localGet(1), op(wasm.OpF64Min))
	p = newPair(t, fmin)
	p.check(t, "f", f64b(0), f64b(math.Copysign(0, -1)))
	p.check(t, "f", f64b(1.5), f64b(-2))
	p.check(t, "f", f64b(math.Inf(-1)), f64b(3))

	nearest := single(wasm.FuncType{Params: vts(f32), Results: vts(f32)}, nil,
		localGet(0), op(wasm.OpF32Nearest))
	p = newPair(t, nearest)
	for _, f := range []float32{2.5, 3.5, -0.5, 1e20, -7.49} {
		p.check(t, "f", f32b(f))
	}

	trunc := single(wasm.FuncType{Params: vts(f64), Results: vts(i32)}, nil,
		localGet(0), op(wasm.OpI32TruncF64S))
	p = newPair(t, trunc)
	for _, f := range []float64{-1.9, 2147483647.9, 2147483648, -2147483648.9, math.NaN()} {
		p.check(t, "f", f64b(f))
	}
}

func TestOracle_SIMD(t *testing.T) {
	bitmask := single(wasm.FuncType{Params: vts(i32), Results: vts(i32)}, nil,
		localGet(0), simd(wasm.SimdI32x4Splat), simd(wasm.SimdI8x16Bitmask))
	p := newPair(t, bitmask)
	for _, v := range []int32{0, math.MinInt32, -1, 0x00800080} {
		p.check(t, "f", u32(v))
	}

	narrow := single(wasm.FuncType{Params: vts(i32), Results: vts(i32)}, nil,
		localGet(0), simd(wasm.SimdI16x8Splat),
		localGet(0), simd(wasm.SimdI16x8Splat),
		simd(wasm.SimdI8x16NarrowI16x8S),
		simdLane(wasm.SimdI8x16ExtractLaneS, 3),
	)
	p = newPair(t, narrow)
	for _, v := range []int32{5, 300, -300, 127, -129} {
		p.check(t, "f", u32(v))
	}
}

// Integer ops agree with wazero for all operand pairs.
func TestOracle_I32Ops(t *testing.T) {
	ops := map[string]byte{
		"add":   wasm.OpI32Add,
		"sub":   wasm.OpI32Sub,
		"mul":   wasm.OpI32Mul,
		"rem_s": wasm.OpI32RemS,
		"xor":   wasm.OpI32Xor,
		"shl":   wasm.OpI32Shl,
		"shr_s": wasm.OpI32ShrS,
		"rotl":  wasm.OpI32Rotl,
		"lt_u":  wasm.OpI32LtU,
	}
	m := &wasm.Module{Types: []wasm.FuncType{{Params: vts(i32, i32), Results: vts(i32)}}}
	var names []string
	for name, code := range ops {
		m.Funcs = append(m.Funcs, 0)
		m.Code = append(m.Code, wasm.FuncBody{Body: []wasm.Instruction{localGet(0), localGet(1), op(code)}})
		m.Exports = append(m.Exports, wasm.Export{Name: name, Kind: wasm.KindFunc, Idx: uint32(len(m.Funcs) - 1)})
		names = append(names, name)
	}
	sort.Strings(names)
	p := newPair(t, m)

	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.Int32().Draw(rt, "a")
		b := rapid.Int32().Draw(rt, "b")
		name := rapid.SampledFrom(names).Draw(rt, "op")
		p.check(rt, name, u32(a), u32(b))
	})
}
