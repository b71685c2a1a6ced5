package linker

import (
	"github.com/wippyai/wasm-vm/engine"
	"github.com/wippyai/wasm-vm/wasm"
)

// evalConst evaluates a constant expression in the context of inst, whose
// function and global addresses must already cover what expr references.
func (l *Linker) evalConst(inst *engine.ModuleInstance, expr []wasm.Instruction) (engine.Value, error) {
	var stack []engine.Value
	for _, in := range expr {
		var v engine.Value
		switch in.Opcode {
		case wasm.OpI32Const:
			imm, _ := in.Imm.(wasm.I32Imm)
			v = engine.I32(imm.Value)
		case wasm.OpI64Const:
			imm, _ := in.Imm.(wasm.I64Imm)
			v = engine.I64(imm.Value)
		case wasm.OpF32Const:
			imm, _ := in.Imm.(wasm.F32Imm)
			v = engine.F32(imm.Bits)
		case wasm.OpF64Const:
			imm, _ := in.Imm.(wasm.F64Imm)
			v = engine.F64(imm.Bits)
		case wasm.OpRefNull:
			imm, _ := in.Imm.(wasm.RefNullImm)
			v = engine.NullRef{RefType: imm.Type}
		case wasm.OpRefFunc:
			imm, _ := in.Imm.(wasm.RefFuncImm)
			if int(imm.FuncIdx) >= len(inst.FuncAddrs) {
				return nil, instError("const", nil, "ref.func %d out of range", imm.FuncIdx)
			}
			v = engine.FuncRef(inst.FuncAddrs[imm.FuncIdx])
		case wasm.OpGlobalGet:
			imm, _ := in.Imm.(wasm.GlobalImm)
			if int(imm.GlobalIdx) >= len(inst.GlobalAddrs) {
				return nil, instError("const", nil, "global.get %d out of range", imm.GlobalIdx)
			}
			v = l.store.Globals[inst.GlobalAddrs[imm.GlobalIdx]].Value
		case wasm.OpPrefixSIMD:
			imm, _ := in.Imm.(wasm.SIMDImm)
			if imm.SubOpcode != wasm.SimdV128Const || imm.Bytes == nil {
				return nil, instError("const", nil, "unsupported vector instruction in constant expression")
			}
			v = engine.V128(*imm.Bytes)
		default:
			return nil, instError("const", nil, "opcode 0x%02x is not constant", in.Opcode)
		}
		stack = append(stack, v)
	}
	if len(stack) != 1 {
		return nil, instError("const", nil, "constant expression produced %d values", len(stack))
	}
	return stack[0], nil
}

// evalOffset evaluates a segment offset expression to an i32.
func (l *Linker) evalOffset(inst *engine.ModuleInstance, expr []wasm.Instruction) (uint32, error) {
	v, err := l.evalConst(inst, expr)
	if err != nil {
		return 0, err
	}
	off, ok := v.(engine.I32)
	if !ok {
		return 0, instError("const", nil, "segment offset is %s, want i32", v.Type())
	}
	return uint32(off), nil
}
