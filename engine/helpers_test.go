package engine

import (
	"context"
	"testing"

	"github.com/wippyai/wasm-vm/wasm"
)

func op(code byte) wasm.Instruction { return wasm.Instruction{Opcode: code} }

func i32c(v int32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: v}}
}

func i64c(v int64) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: v}}
}

func f32c(f float32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpF32Const, Imm: wasm.F32Imm{Bits: uint32(F32Of(f))}}
}

func block(bt int32, body ...wasm.Instruction) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: bt}, Body: body}
}

func loop(bt int32, body ...wasm.Instruction) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpLoop, Imm: wasm.BlockImm{Type: bt}, Body: body}
}

func ifElse(bt int32, then, els []wasm.Instruction) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpIf, Imm: wasm.BlockImm{Type: bt}, Body: then, Else: els}
}

func br(d uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpBr, Imm: wasm.BranchImm{LabelIdx: d}}
}

func brIf(d uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpBrIf, Imm: wasm.BranchImm{LabelIdx: d}}
}

func localGet(i uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: i}}
}

func localSet(i uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: i}}
}

func call(i uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: i}}
}

func mem(code byte, offset uint64) wasm.Instruction {
	return wasm.Instruction{Opcode: code, Imm: wasm.MemoryImm{Offset: offset}}
}

func misc(sub uint32, operands ...uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: sub, Operands: operands}}
}

func simd(sub uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpPrefixSIMD, Imm: wasm.SIMDImm{SubOpcode: sub}}
}

func simdLane(sub uint32, lane byte) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpPrefixSIMD, Imm: wasm.SIMDImm{SubOpcode: sub, Lane: lane}}
}

func v128c(b [16]byte) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpPrefixSIMD, Imm: wasm.SIMDImm{SubOpcode: wasm.SimdV128Const, Bytes: &b}}
}

func sig(params, results []wasm.ValType) wasm.FuncType {
	return wasm.FuncType{Params: params, Results: results}
}

var (
	i32  = wasm.ValI32
	i64  = wasm.ValI64
	f32  = wasm.ValF32
	v128 = wasm.ValV128
)

func types(ts ...wasm.ValType) []wasm.ValType { return ts }

// testModule is a hand-assembled module instance with one memory page.
type testModule struct {
	store *Store
	inst  *ModuleInstance
	exec  *Executor
}

func newTestModule(opts Options) *testModule {
	store := NewStore()
	inst := &ModuleInstance{Exports: map[string]ExternVal{}}
	inst.MemAddrs = append(inst.MemAddrs, store.AllocMem(wasm.MemoryType{Limits: wasm.Limits{Min: 1}}))
	return &testModule{store: store, inst: inst, exec: NewExecutor(store, opts)}
}

// addFunc defines a module function and returns its function index.
func (m *testModule) addFunc(ft wasm.FuncType, locals []wasm.ValType, body ...wasm.Instruction) uint32 {
	m.inst.Types = append(m.inst.Types, ft)
	addr := m.store.AllocFunc(&ModuleFunc{Module: m.inst, Type: ft, Locals: locals, Body: body})
	m.inst.FuncAddrs = append(m.inst.FuncAddrs, addr)
	return uint32(len(m.inst.FuncAddrs) - 1)
}

func (m *testModule) addHost(name string, ft wasm.FuncType, fn HostFunc) uint32 {
	m.inst.Types = append(m.inst.Types, ft)
	m.inst.FuncAddrs = append(m.inst.FuncAddrs, m.store.AllocHostFunc(name, ft, fn))
	return uint32(len(m.inst.FuncAddrs) - 1)
}

func (m *testModule) invoke(t *testing.T, idx uint32, args ...Value) ([]Value, error) {
	t.Helper()
	return m.exec.Invoke(context.Background(), m.inst.FuncAddrs[idx], args)
}

// run invokes a [] -> results function built from body.
func run(t *testing.T, results []wasm.ValType, body ...wasm.Instruction) ([]Value, error) {
	t.Helper()
	m := newTestModule(DefaultOptions())
	idx := m.addFunc(sig(nil, results), nil, body...)
	return m.invoke(t, idx)
}
