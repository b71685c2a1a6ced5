package validate

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/wippyai/wasm-vm/errors"
	"github.com/wippyai/wasm-vm/wasm"
)

// Module checks m completely before it may be instantiated: the structural
// index checks of wasm.Module.Validate, every constant expression, and every
// function body. Structural failures are returned alone. Otherwise one error
// per failing item is combined with multierr; multierr.Errors recovers them.
func Module(m *wasm.Module) error {
	if err := m.Validate(); err != nil {
		return errors.Wrap(errors.PhaseValidate, errors.KindUnknownIndex, err, "module structure")
	}
	ctx := NewContext(m)
	var errs error

	imported := m.NumImportedGlobals()
	for i, g := range m.Globals {
		// Initialisers may only read imported globals.
		if err := constExpr(ctx, g.Init, g.Type.ValType, imported); err != nil {
			errs = multierr.Append(errs, at(err, "global", imported+i))
		}
	}
	for i := range m.Elements {
		e := &m.Elements[i]
		if e.Mode == wasm.SegmentActive {
			if int(e.TableIdx) >= len(ctx.Tables) {
				errs = multierr.Append(errs, at(unknownIndex("table", e.TableIdx), "elem", i))
				continue
			}
			if ctx.Tables[e.TableIdx].ElemType != e.Type {
				errs = multierr.Append(errs, at(fail(errors.KindInsufficientOperandStack,
					"segment type %s does not match table type %s", e.Type, ctx.Tables[e.TableIdx].ElemType), "elem", i))
				continue
			}
			if err := constExpr(ctx, e.Offset, wasm.ValI32, len(ctx.Globals)); err != nil {
				errs = multierr.Append(errs, at(err, "elem", i))
			}
		}
		for _, expr := range e.Exprs {
			if err := constExpr(ctx, expr, e.Type, len(ctx.Globals)); err != nil {
				errs = multierr.Append(errs, at(err, "elem", i))
				break
			}
		}
	}
	for i := range m.Data {
		d := &m.Data[i]
		if d.Mode != wasm.SegmentActive {
			continue
		}
		if int(d.MemIdx) >= len(ctx.Mems) {
			errs = multierr.Append(errs, at(unknownIndex("memory", d.MemIdx), "data", i))
			continue
		}
		if err := constExpr(ctx, d.Offset, wasm.ValI32, len(ctx.Globals)); err != nil {
			errs = multierr.Append(errs, at(err, "data", i))
		}
	}

	base := m.NumImportedFuncs()
	for i := range m.Code {
		fctx := ctx.ForFunc(ctx.Funcs[base+i], m.Code[i].ExpandLocals())
		if err := Function(fctx, m.Code[i].Body); err != nil {
			errs = multierr.Append(errs, at(err, "func", base+i))
		}
	}
	return errs
}

// at prefixes the error's path with the failing item.
func at(err error, space string, idx int) error {
	if e, ok := err.(*errors.Error); ok {
		e.Path = append([]string{fmt.Sprintf("%s[%d]", space, idx)}, e.Path...)
	}
	return err
}

// constExpr checks a constant expression producing a single value of type
// want. Only the first nglobals globals may be read, and they must be
// immutable.
func constExpr(ctx *Context, expr []wasm.Instruction, want wasm.ValType, nglobals int) error {
	var stack []wasm.ValType
	for _, in := range expr {
		switch in.Opcode {
		case wasm.OpI32Const:
			stack = append(stack, wasm.ValI32)
		case wasm.OpI64Const:
			stack = append(stack, wasm.ValI64)
		case wasm.OpF32Const:
			stack = append(stack, wasm.ValF32)
		case wasm.OpF64Const:
			stack = append(stack, wasm.ValF64)
		case wasm.OpRefNull:
			imm, _ := in.Imm.(wasm.RefNullImm)
			stack = append(stack, imm.Type)
		case wasm.OpRefFunc:
			imm, _ := in.Imm.(wasm.RefFuncImm)
			if int(imm.FuncIdx) >= len(ctx.Funcs) {
				return unknownIndex("function", imm.FuncIdx)
			}
			stack = append(stack, wasm.ValFuncRef)
		case wasm.OpGlobalGet:
			imm, _ := in.Imm.(wasm.GlobalImm)
			if int(imm.GlobalIdx) >= nglobals {
				return unknownIndex("global", imm.GlobalIdx)
			}
			g := ctx.Globals[imm.GlobalIdx]
			if g.Mutable {
				return fail(errors.KindImmutableGlobal, "constant expression reads mutable global %d", imm.GlobalIdx)
			}
			stack = append(stack, g.ValType)
		case wasm.OpPrefixSIMD:
			imm, _ := in.Imm.(wasm.SIMDImm)
			if imm.SubOpcode != wasm.SimdV128Const {
				return fail(errors.KindUnsupported, "constant expression uses 0xFD sub-opcode 0x%02x", imm.SubOpcode)
			}
			stack = append(stack, wasm.ValV128)
		default:
			return fail(errors.KindUnsupported, "constant expression uses %s", opName(in.Opcode))
		}
	}
	if len(stack) != 1 || stack[0] != want {
		return insufficient(wasm.OpEnd, "constant expression must produce one %s, got %v", want, stack)
	}
	return nil
}
