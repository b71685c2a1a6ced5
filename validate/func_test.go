package validate

import (
	"errors"
	"testing"

	"pgregory.net/rapid"

	"github.com/wippyai/wasm-vm/wasm"
)

func op(code byte) wasm.Instruction { return wasm.Instruction{Opcode: code} }

func i32c(v int32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: v}}
}

func i64c(v int64) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: v}}
}

func block(code byte, bt int32, body ...wasm.Instruction) wasm.Instruction {
	return wasm.Instruction{Opcode: code, Imm: wasm.BlockImm{Type: bt}, Body: body}
}

func br(code byte, d uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: code, Imm: wasm.BranchImm{LabelIdx: d}}
}

func local(code byte, i uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: code, Imm: wasm.LocalImm{LocalIdx: i}}
}

func funcCtx(params, results []wasm.ValType, locals ...wasm.ValType) *Context {
	base := &Context{
		Types: []wasm.FuncType{{Params: []wasm.ValType{i32}, Results: []wasm.ValType{i32, i32}}},
		Funcs: []wasm.FuncType{{Params: []wasm.ValType{i32}, Results: []wasm.ValType{i64}}},
		Mems:  []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		Refs:  map[uint32]bool{},
	}
	return base.ForFunc(wasm.FuncType{Params: params, Results: results}, locals)
}

func TestFunction(t *testing.T) {
	tests := []struct {
		name    string
		params  []wasm.ValType
		results []wasm.ValType
		body    []wasm.Instruction
		wantErr error
	}{
		{"empty body no results", nil, nil, nil, nil},
		{"empty body with result", nil, vt(i32), nil, ErrInsufficientOperandStack},
		{"add", nil, vt(i32), []wasm.Instruction{i32c(1), i32c(2), op(wasm.OpI32Add)}, nil},
		{"add underflow", nil, vt(i32), []wasm.Instruction{i32c(1), op(wasm.OpI32Add)}, ErrInsufficientOperandStack},
		{"add wrong type", nil, vt(i32), []wasm.Instruction{i32c(1), i64c(2), op(wasm.OpI32Add)}, ErrInsufficientOperandStack},
		{"leftover value", nil, nil, []wasm.Instruction{i32c(1)}, ErrInsufficientOperandStack},
		{"unreachable fills results", nil, vt(i32, i64), []wasm.Instruction{op(wasm.OpUnreachable)}, nil},
		{"unreachable then add", nil, vt(i32), []wasm.Instruction{op(wasm.OpUnreachable), op(wasm.OpI32Add)}, nil},
		{"unreachable still types pushes", nil, vt(i32), []wasm.Instruction{op(wasm.OpUnreachable), i64c(1)}, ErrInsufficientOperandStack},
		{"unreachable discards operands", nil, vt(i32), []wasm.Instruction{i64c(1), op(wasm.OpUnreachable)}, nil},
		{"unreachable ends with block", nil, vt(i32), []wasm.Instruction{
			block(wasm.OpBlock, wasm.BlockTypeVoid, op(wasm.OpUnreachable)),
			op(wasm.OpI32Add),
		}, ErrInsufficientOperandStack},
		{"block result", nil, vt(i32), []wasm.Instruction{block(wasm.OpBlock, wasm.BlockTypeI32, i32c(1))}, nil},
		{"block missing result", nil, vt(i32), []wasm.Instruction{block(wasm.OpBlock, wasm.BlockTypeI32)}, ErrInsufficientOperandStack},
		{"block cannot see outer operands", nil, vt(i32), []wasm.Instruction{
			i32c(1), block(wasm.OpBlock, wasm.BlockTypeI32, op(wasm.OpI32Eqz)),
			op(wasm.OpI32Add),
		}, ErrInsufficientOperandStack},
		{"block params", nil, vt(i32, i32), []wasm.Instruction{i32c(1), block(wasm.OpBlock, 0, i32c(2))}, nil},
		{"br carries label types", nil, vt(i32), []wasm.Instruction{
			block(wasm.OpBlock, wasm.BlockTypeI32, i32c(7), br(wasm.OpBr, 0), i64c(1)),
		}, ErrInsufficientOperandStack},
		{"br then dead code", nil, vt(i32), []wasm.Instruction{
			block(wasm.OpBlock, wasm.BlockTypeI32, i32c(7), br(wasm.OpBr, 0), op(wasm.OpI32Add)),
		}, nil},
		{"br to loop uses params", nil, nil, []wasm.Instruction{
			block(wasm.OpLoop, wasm.BlockTypeI32, br(wasm.OpBr, 0)),
			op(wasm.OpDrop),
		}, nil},
		{"br unknown label", nil, nil, []wasm.Instruction{br(wasm.OpBr, 1)}, ErrUnknownLabel},
		{"br_if keeps operands", nil, vt(i32), []wasm.Instruction{
			block(wasm.OpBlock, wasm.BlockTypeI32, i32c(1), i32c(0), br(wasm.OpBrIf, 0)),
		}, nil},
		{"br_table arity mismatch", nil, nil, []wasm.Instruction{
			block(wasm.OpBlock, wasm.BlockTypeVoid,
				block(wasm.OpBlock, wasm.BlockTypeI32,
					i32c(1), i32c(0),
					wasm.Instruction{Opcode: wasm.OpBrTable, Imm: wasm.BrTableImm{Labels: []uint32{0}, Default: 1}},
				),
				op(wasm.OpDrop),
			),
		}, ErrInsufficientOperandStack},
		{"return", nil, vt(i32), []wasm.Instruction{i64c(1), i32c(1), op(wasm.OpReturn), op(wasm.OpI32Add)}, nil},
		{"if without else must balance", nil, vt(i32), []wasm.Instruction{
			i32c(1), block(wasm.OpIf, wasm.BlockTypeI32, i32c(1)),
		}, ErrInsufficientOperandStack},
		{"if else", nil, vt(i32), []wasm.Instruction{
			i32c(1), {Opcode: wasm.OpIf, Imm: wasm.BlockImm{Type: wasm.BlockTypeI32}, Body: []wasm.Instruction{i32c(1)}, Else: []wasm.Instruction{i32c(2)}},
		}, nil},
		{"call", nil, vt(i64), []wasm.Instruction{i32c(1), {Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: 0}}}, nil},
		{"call unknown", nil, nil, []wasm.Instruction{{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: 3}}}, ErrUnknownIndex},
		{"local get", vt(i64), vt(i64), []wasm.Instruction{local(wasm.OpLocalGet, 0)}, nil},
		{"local missing", vt(i64), vt(i64), []wasm.Instruction{local(wasm.OpLocalGet, 1)}, ErrNoLocalFound},
		{"local set type", vt(i64), nil, []wasm.Instruction{i32c(1), local(wasm.OpLocalSet, 0)}, ErrInsufficientOperandStack},
		{"select", nil, vt(i64), []wasm.Instruction{i64c(1), i64c(2), i32c(0), op(wasm.OpSelect)}, nil},
		{"select mismatched", nil, vt(i64), []wasm.Instruction{i32c(1), i64c(2), i32c(0), op(wasm.OpSelect)}, ErrInsufficientOperandStack},
		{"load", nil, vt(i64), []wasm.Instruction{i32c(0), {Opcode: wasm.OpI64Load, Imm: wasm.MemoryImm{Align: 3}}}, nil},
		{"load overaligned", nil, vt(i32), []wasm.Instruction{i32c(0), {Opcode: wasm.OpI32Load8U, Imm: wasm.MemoryImm{Align: 1}}}, ErrInvalidAlignment},
		{"ref.func undeclared", nil, vt(wasm.ValFuncRef), []wasm.Instruction{{Opcode: wasm.OpRefFunc, Imm: wasm.RefFuncImm{FuncIdx: 0}}}, ErrCannotFindRefFunc},
		{"v128 lanes", nil, vt(i32), []wasm.Instruction{
			i32c(3), {Opcode: wasm.OpPrefixSIMD, Imm: wasm.SIMDImm{SubOpcode: wasm.SimdI32x4Splat}},
			{Opcode: wasm.OpPrefixSIMD, Imm: wasm.SIMDImm{SubOpcode: wasm.SimdI32x4ExtractLane, Lane: 3}},
		}, nil},
		{"v128 lane out of range", nil, vt(i32), []wasm.Instruction{
			i32c(3), {Opcode: wasm.OpPrefixSIMD, Imm: wasm.SIMDImm{SubOpcode: wasm.SimdI32x4Splat}},
			{Opcode: wasm.OpPrefixSIMD, Imm: wasm.SIMDImm{SubOpcode: wasm.SimdI32x4ExtractLane, Lane: 4}},
		}, ErrInsufficientOperandStack},
		{"unsupported simd", nil, nil, []wasm.Instruction{{Opcode: wasm.OpPrefixSIMD, Imm: wasm.SIMDImm{SubOpcode: 0xFF}}}, ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Function(funcCtx(tt.params, tt.results), tt.body)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFunction_RefFuncDeclared(t *testing.T) {
	ctx := funcCtx(nil, vt(wasm.ValFuncRef))
	ctx.Refs[0] = true
	body := []wasm.Instruction{{Opcode: wasm.OpRefFunc, Imm: wasm.RefFuncImm{FuncIdx: 0}}}
	if err := Function(ctx, body); err != nil {
		t.Fatalf("declared ref.func rejected: %v", err)
	}
}

func TestFunction_GlobalsAndTables(t *testing.T) {
	ctx := funcCtx(nil, nil)
	ctx.Globals = []wasm.GlobalType{{ValType: i32}, {ValType: i64, Mutable: true}}
	ctx.Tables = []wasm.TableType{{ElemType: wasm.ValFuncRef}}

	global := func(code byte, i uint32) wasm.Instruction {
		return wasm.Instruction{Opcode: code, Imm: wasm.GlobalImm{GlobalIdx: i}}
	}
	tests := []struct {
		name    string
		body    []wasm.Instruction
		wantErr error
	}{
		{"set mutable", []wasm.Instruction{i64c(1), global(wasm.OpGlobalSet, 1)}, nil},
		{"set immutable", []wasm.Instruction{i32c(1), global(wasm.OpGlobalSet, 0)}, ErrImmutableGlobal},
		{"unknown global", []wasm.Instruction{global(wasm.OpGlobalGet, 2), op(wasm.OpDrop)}, ErrUnknownIndex},
		{"table.get", []wasm.Instruction{
			i32c(0), {Opcode: wasm.OpTableGet, Imm: wasm.TableImm{}}, op(wasm.OpRefIsNull), op(wasm.OpDrop),
		}, nil},
		{"table.grow", []wasm.Instruction{
			{Opcode: wasm.OpRefNull, Imm: wasm.RefNullImm{Type: wasm.ValFuncRef}}, i32c(1),
			{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscTableGrow, Operands: []uint32{0}}},
			op(wasm.OpDrop),
		}, nil},
		{"table.fill wrong ref", []wasm.Instruction{
			i32c(0), {Opcode: wasm.OpRefNull, Imm: wasm.RefNullImm{Type: wasm.ValExtern}}, i32c(1),
			{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscTableFill, Operands: []uint32{0}}},
		}, ErrInsufficientOperandStack},
		{"memory.init without data", []wasm.Instruction{
			i32c(0), i32c(0), i32c(0),
			{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscMemoryInit, Operands: []uint32{0, 0}}},
		}, ErrUnknownIndex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Function(ctx, tt.body)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// After unreachable, any sequence of numeric instructions validates as long
// as what it pushes is consumed by the block result.
func TestFunction_UnreachableAcceptsAnyPops(t *testing.T) {
	binops := []byte{wasm.OpI32Add, wasm.OpI32Mul, wasm.OpI32And, wasm.OpI32Eq}
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "n")
		body := []wasm.Instruction{op(wasm.OpUnreachable)}
		for i := 0; i < n; i++ {
			body = append(body, op(rapid.SampledFrom(binops).Draw(t, "op")))
		}
		if err := Function(funcCtx(nil, vt(i32)), body); err != nil {
			t.Fatalf("unreachable body rejected: %v", err)
		}
		// Without unreachable the first binop underflows.
		if err := Function(funcCtx(nil, vt(i32)), body[1:]); !errors.Is(err, ErrInsufficientOperandStack) {
			t.Fatalf("reachable body error = %v", err)
		}
	})
}
