package runtime_test

import (
	"github.com/wippyai/wasm-vm/wasm"
)

var (
	i32 = wasm.ValI32
	i64 = wasm.ValI64
	f32 = wasm.ValF32
	f64 = wasm.ValF64
)

func vts(ts ...wasm.ValType) []wasm.ValType { return ts }

func op(code byte) wasm.Instruction { return wasm.Instruction{Opcode: code} }

func i32c(v int32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: v}}
}

func i64c(v int64) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: v}}
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

func block(bt int32, body ...wasm.Instruction) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: bt}, Body: body}
}

func loop(bt int32, body ...wasm.Instruction) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpLoop, Imm: wasm.BlockImm{Type: bt}, Body: body}
}

func br(d uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpBr, Imm: wasm.BranchImm{LabelIdx: d}}
}

func brIf(d uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpBrIf, Imm: wasm.BranchImm{LabelIdx: d}}
}

func mem(code byte, offset uint64) wasm.Instruction {
	return wasm.Instruction{Opcode: code, Imm: wasm.MemoryImm{Offset: offset}}
}

func simd(sub uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpPrefixSIMD, Imm: wasm.SIMDImm{SubOpcode: sub}}
}

func simdLane(sub uint32, lane byte) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpPrefixSIMD, Imm: wasm.SIMDImm{SubOpcode: sub, Lane: lane}}
}

// single builds a module exporting one function "f" of type ft.
func single(ft wasm.FuncType, locals []wasm.ValType, body ...wasm.Instruction) *wasm.Module {
	m := &wasm.Module{
		Types:   []wasm.FuncType{ft},
		Funcs:   []uint32{0},
		Exports: []wasm.Export{{Name: "f", Kind: wasm.KindFunc, Idx: 0}},
	}
	fb := wasm.FuncBody{Body: body}
	for _, l := range locals {
		fb.Locals = append(fb.Locals, wasm.LocalEntry{Count: 1, ValType: l})
	}
	m.Code = []wasm.FuncBody{fb}
	return m
}
