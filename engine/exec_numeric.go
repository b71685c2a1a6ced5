package engine

import (
	"math"

	"github.com/wippyai/wasm-vm/engine/internal/numeric"
	"github.com/wippyai/wasm-vm/errors"
	"github.com/wippyai/wasm-vm/wasm"
)

var (
	errDivByZero      = errors.Trap("integer divide by zero")
	errIntOverflow    = errors.Trap("integer overflow")
	errInvalidConvert = errors.Trap("invalid conversion to integer")
)

func boolI32(b bool) I32 { return I32(numeric.Bool(b)) }

// pop removes the top value and asserts its variant.
func pop[T Value](e *Executor) (T, bool) {
	v, ok := e.stack.PopValue()
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// unary adapts a one-operand function into a handler.
func unary[A, R Value](f func(A) R) opHandler {
	return func(e *Executor, _ *wasm.Instruction) (Exit, error) {
		a, ok := pop[A](e)
		if !ok {
			return normal, errStackUnderflow
		}
		e.stack.Push(f(a))
		return normal, nil
	}
}

// binop adapts a two-operand function; b is on top of the stack.
func binop[A, R Value](f func(a, b A) R) opHandler {
	return func(e *Executor, _ *wasm.Instruction) (Exit, error) {
		b, ok1 := pop[A](e)
		a, ok2 := pop[A](e)
		if !ok1 || !ok2 {
			return normal, errStackUnderflow
		}
		e.stack.Push(f(a, b))
		return normal, nil
	}
}

func unaryTrap[A, R Value](f func(A) (R, error)) opHandler {
	return func(e *Executor, _ *wasm.Instruction) (Exit, error) {
		a, ok := pop[A](e)
		if !ok {
			return normal, errStackUnderflow
		}
		r, err := f(a)
		if err != nil {
			return normal, err
		}
		e.stack.Push(r)
		return normal, nil
	}
}

func binaryTrap[A Value](f func(a, b A) (A, error)) opHandler {
	return func(e *Executor, _ *wasm.Instruction) (Exit, error) {
		b, ok1 := pop[A](e)
		a, ok2 := pop[A](e)
		if !ok1 || !ok2 {
			return normal, errStackUnderflow
		}
		r, err := f(a, b)
		if err != nil {
			return normal, err
		}
		e.stack.Push(r)
		return normal, nil
	}
}

func divError(d numeric.DivError) error {
	switch d {
	case numeric.DivByZero:
		return errDivByZero
	case numeric.DivOverflow:
		return errIntOverflow
	}
	return nil
}

func truncError(t numeric.TruncError) error {
	switch t {
	case numeric.TruncNaN:
		return errInvalidConvert
	case numeric.TruncOverflow:
		return errIntOverflow
	}
	return nil
}

func init() {
	register(wasm.OpI32Const, "i32.const", func(e *Executor, in *wasm.Instruction) (Exit, error) {
		imm, _ := in.Imm.(wasm.I32Imm)
		e.stack.Push(I32(imm.Value))
		return normal, nil
	})
	register(wasm.OpI64Const, "i64.const", func(e *Executor, in *wasm.Instruction) (Exit, error) {
		imm, _ := in.Imm.(wasm.I64Imm)
		e.stack.Push(I64(imm.Value))
		return normal, nil
	})
	register(wasm.OpF32Const, "f32.const", func(e *Executor, in *wasm.Instruction) (Exit, error) {
		imm, _ := in.Imm.(wasm.F32Imm)
		e.stack.Push(F32(imm.Bits))
		return normal, nil
	})
	register(wasm.OpF64Const, "f64.const", func(e *Executor, in *wasm.Instruction) (Exit, error) {
		imm, _ := in.Imm.(wasm.F64Imm)
		e.stack.Push(F64(imm.Bits))
		return normal, nil
	})

	registerI32()
	registerI64()
	registerF32()
	registerF64()
	registerConversions()
}

func registerI32() {
	register(wasm.OpI32Eqz, "i32.eqz", unary(func(a I32) I32 { return boolI32(a == 0) }))
	register(wasm.OpI32Eq, "i32.eq", binop(func(a, b I32) I32 { return boolI32(a == b) }))
	register(wasm.OpI32Ne, "i32.ne", binop(func(a, b I32) I32 { return boolI32(a != b) }))
	register(wasm.OpI32LtS, "i32.lt_s", binop(func(a, b I32) I32 { return boolI32(a < b) }))
	register(wasm.OpI32LtU, "i32.lt_u", binop(func(a, b I32) I32 { return boolI32(uint32(a) < uint32(b)) }))
	register(wasm.OpI32GtS, "i32.gt_s", binop(func(a, b I32) I32 { return boolI32(a > b) }))
	register(wasm.OpI32GtU, "i32.gt_u", binop(func(a, b I32) I32 { return boolI32(uint32(a) > uint32(b)) }))
	register(wasm.OpI32LeS, "i32.le_s", binop(func(a, b I32) I32 { return boolI32(a <= b) }))
	register(wasm.OpI32LeU, "i32.le_u", binop(func(a, b I32) I32 { return boolI32(uint32(a) <= uint32(b)) }))
	register(wasm.OpI32GeS, "i32.ge_s", binop(func(a, b I32) I32 { return boolI32(a >= b) }))
	register(wasm.OpI32GeU, "i32.ge_u", binop(func(a, b I32) I32 { return boolI32(uint32(a) >= uint32(b)) }))

	register(wasm.OpI32Clz, "i32.clz", unary(func(a I32) I32 { return I32(numeric.Clz32(int32(a))) }))
	register(wasm.OpI32Ctz, "i32.ctz", unary(func(a I32) I32 { return I32(numeric.Ctz32(int32(a))) }))
	register(wasm.OpI32Popcnt, "i32.popcnt", unary(func(a I32) I32 { return I32(numeric.Popcnt32(int32(a))) }))
	register(wasm.OpI32Add, "i32.add", binop(func(a, b I32) I32 { return a + b }))
	register(wasm.OpI32Sub, "i32.sub", binop(func(a, b I32) I32 { return a - b }))
	register(wasm.OpI32Mul, "i32.mul", binop(func(a, b I32) I32 { return a * b }))
	register(wasm.OpI32DivS, "i32.div_s", binaryTrap(func(a, b I32) (I32, error) {
		r, d := numeric.DivS32(int32(a), int32(b))
		return I32(r), divError(d)
	}))
	register(wasm.OpI32DivU, "i32.div_u", binaryTrap(func(a, b I32) (I32, error) {
		r, d := numeric.DivU32(uint32(a), uint32(b))
		return I32(r), divError(d)
	}))
	register(wasm.OpI32RemS, "i32.rem_s", binaryTrap(func(a, b I32) (I32, error) {
		r, d := numeric.RemS32(int32(a), int32(b))
		return I32(r), divError(d)
	}))
	register(wasm.OpI32RemU, "i32.rem_u", binaryTrap(func(a, b I32) (I32, error) {
		r, d := numeric.RemU32(uint32(a), uint32(b))
		return I32(r), divError(d)
	}))
	register(wasm.OpI32And, "i32.and", binop(func(a, b I32) I32 { return a & b }))
	register(wasm.OpI32Or, "i32.or", binop(func(a, b I32) I32 { return a | b }))
	register(wasm.OpI32Xor, "i32.xor", binop(func(a, b I32) I32 { return a ^ b }))
	register(wasm.OpI32Shl, "i32.shl", binop(func(a, b I32) I32 { return I32(numeric.Shl32(int32(a), int32(b))) }))
	register(wasm.OpI32ShrS, "i32.shr_s", binop(func(a, b I32) I32 { return I32(numeric.ShrS32(int32(a), int32(b))) }))
	register(wasm.OpI32ShrU, "i32.shr_u", binop(func(a, b I32) I32 { return I32(numeric.ShrU32(int32(a), int32(b))) }))
	register(wasm.OpI32Rotl, "i32.rotl", binop(func(a, b I32) I32 { return I32(numeric.Rotl32(int32(a), int32(b))) }))
	register(wasm.OpI32Rotr, "i32.rotr", binop(func(a, b I32) I32 { return I32(numeric.Rotr32(int32(a), int32(b))) }))

	register(wasm.OpI32Extend8S, "i32.extend8_s", unary(func(a I32) I32 { return I32(numeric.Extend8S32(int32(a))) }))
	register(wasm.OpI32Extend16S, "i32.extend16_s", unary(func(a I32) I32 { return I32(numeric.Extend16S32(int32(a))) }))
}

func registerI64() {
	register(wasm.OpI64Eqz, "i64.eqz", unary(func(a I64) I32 { return boolI32(a == 0) }))
	register(wasm.OpI64Eq, "i64.eq", binop(func(a, b I64) I32 { return boolI32(a == b) }))
	register(wasm.OpI64Ne, "i64.ne", binop(func(a, b I64) I32 { return boolI32(a != b) }))
	register(wasm.OpI64LtS, "i64.lt_s", binop(func(a, b I64) I32 { return boolI32(a < b) }))
	register(wasm.OpI64LtU, "i64.lt_u", binop(func(a, b I64) I32 { return boolI32(uint64(a) < uint64(b)) }))
	register(wasm.OpI64GtS, "i64.gt_s", binop(func(a, b I64) I32 { return boolI32(a > b) }))
	register(wasm.OpI64GtU, "i64.gt_u", binop(func(a, b I64) I32 { return boolI32(uint64(a) > uint64(b)) }))
	register(wasm.OpI64LeS, "i64.le_s", binop(func(a, b I64) I32 { return boolI32(a <= b) }))
	register(wasm.OpI64LeU, "i64.le_u", binop(func(a, b I64) I32 { return boolI32(uint64(a) <= uint64(b)) }))
	register(wasm.OpI64GeS, "i64.ge_s", binop(func(a, b I64) I32 { return boolI32(a >= b) }))
	register(wasm.OpI64GeU, "i64.ge_u", binop(func(a, b I64) I32 { return boolI32(uint64(a) >= uint64(b)) }))

	register(wasm.OpI64Clz, "i64.clz", unary(func(a I64) I64 { return I64(numeric.Clz64(int64(a))) }))
	register(wasm.OpI64Ctz, "i64.ctz", unary(func(a I64) I64 { return I64(numeric.Ctz64(int64(a))) }))
	register(wasm.OpI64Popcnt, "i64.popcnt", unary(func(a I64) I64 { return I64(numeric.Popcnt64(int64(a))) }))
	register(wasm.OpI64Add, "i64.add", binop(func(a, b I64) I64 { return a + b }))
	register(wasm.OpI64Sub, "i64.sub", binop(func(a, b I64) I64 { return a - b }))
	register(wasm.OpI64Mul, "i64.mul", binop(func(a, b I64) I64 { return a * b }))
	register(wasm.OpI64DivS, "i64.div_s", binaryTrap(func(a, b I64) (I64, error) {
		r, d := numeric.DivS64(int64(a), int64(b))
		return I64(r), divError(d)
	}))
	register(wasm.OpI64DivU, "i64.div_u", binaryTrap(func(a, b I64) (I64, error) {
		r, d := numeric.DivU64(uint64(a), uint64(b))
		return I64(r), divError(d)
	}))
	register(wasm.OpI64RemS, "i64.rem_s", binaryTrap(func(a, b I64) (I64, error) {
		r, d := numeric.RemS64(int64(a), int64(b))
		return I64(r), divError(d)
	}))
	register(wasm.OpI64RemU, "i64.rem_u", binaryTrap(func(a, b I64) (I64, error) {
		r, d := numeric.RemU64(uint64(a), uint64(b))
		return I64(r), divError(d)
	}))
	register(wasm.OpI64And, "i64.and", binop(func(a, b I64) I64 { return a & b }))
	register(wasm.OpI64Or, "i64.or", binop(func(a, b I64) I64 { return a | b }))
	register(wasm.OpI64Xor, "i64.xor", binop(func(a, b I64) I64 { return a ^ b }))
	register(wasm.OpI64Shl, "i64.shl", binop(func(a, b I64) I64 { return I64(numeric.Shl64(int64(a), int64(b))) }))
	register(wasm.OpI64ShrS, "i64.shr_s", binop(func(a, b I64) I64 { return I64(numeric.ShrS64(int64(a), int64(b))) }))
	register(wasm.OpI64ShrU, "i64.shr_u", binop(func(a, b I64) I64 { return I64(numeric.ShrU64(int64(a), int64(b))) }))
	register(wasm.OpI64Rotl, "i64.rotl", binop(func(a, b I64) I64 { return I64(numeric.Rotl64(int64(a), int64(b))) }))
	register(wasm.OpI64Rotr, "i64.rotr", binop(func(a, b I64) I64 { return I64(numeric.Rotr64(int64(a), int64(b))) }))

	register(wasm.OpI64Extend8S, "i64.extend8_s", unary(func(a I64) I64 { return I64(numeric.Extend8S64(int64(a))) }))
	register(wasm.OpI64Extend16S, "i64.extend16_s", unary(func(a I64) I64 { return I64(numeric.Extend16S64(int64(a))) }))
	register(wasm.OpI64Extend32S, "i64.extend32_s", unary(func(a I64) I64 { return I64(numeric.Extend32S64(int64(a))) }))
}

func registerF32() {
	cmp := func(f func(a, b float32) bool) opHandler {
		return binop(func(a, b F32) I32 { return boolI32(f(a.Float(), b.Float())) })
	}
	register(wasm.OpF32Eq, "f32.eq", cmp(func(a, b float32) bool { return a == b }))
	register(wasm.OpF32Ne, "f32.ne", cmp(func(a, b float32) bool { return a != b }))
	register(wasm.OpF32Lt, "f32.lt", cmp(func(a, b float32) bool { return a < b }))
	register(wasm.OpF32Gt, "f32.gt", cmp(func(a, b float32) bool { return a > b }))
	register(wasm.OpF32Le, "f32.le", cmp(func(a, b float32) bool { return a <= b }))
	register(wasm.OpF32Ge, "f32.ge", cmp(func(a, b float32) bool { return a >= b }))

	un := func(f func(float32) float32) opHandler {
		return unary(func(a F32) F32 { return F32Of(f(a.Float())) })
	}
	bin := func(f func(a, b float32) float32) opHandler {
		return binop(func(a, b F32) F32 { return F32Of(f(a.Float(), b.Float())) })
	}
	register(wasm.OpF32Abs, "f32.abs", un(numeric.Abs32))
	register(wasm.OpF32Neg, "f32.neg", un(numeric.Neg32))
	register(wasm.OpF32Ceil, "f32.ceil", un(numeric.Ceil[float32]))
	register(wasm.OpF32Floor, "f32.floor", un(numeric.Floor[float32]))
	register(wasm.OpF32Trunc, "f32.trunc", un(numeric.TruncFloat[float32]))
	register(wasm.OpF32Nearest, "f32.nearest", un(numeric.Nearest[float32]))
	register(wasm.OpF32Sqrt, "f32.sqrt", un(numeric.Sqrt32))
	register(wasm.OpF32Add, "f32.add", bin(func(a, b float32) float32 { return a + b }))
	register(wasm.OpF32Sub, "f32.sub", bin(func(a, b float32) float32 { return a - b }))
	register(wasm.OpF32Mul, "f32.mul", bin(func(a, b float32) float32 { return a * b }))
	register(wasm.OpF32Div, "f32.div", bin(func(a, b float32) float32 { return a / b }))
	register(wasm.OpF32Min, "f32.min", bin(numeric.Min[float32]))
	register(wasm.OpF32Max, "f32.max", bin(numeric.Max[float32]))
	register(wasm.OpF32Copysign, "f32.copysign", bin(numeric.Copysign32))
}

func registerF64() {
	cmp := func(f func(a, b float64) bool) opHandler {
		return binop(func(a, b F64) I32 { return boolI32(f(a.Float(), b.Float())) })
	}
	register(wasm.OpF64Eq, "f64.eq", cmp(func(a, b float64) bool { return a == b }))
	register(wasm.OpF64Ne, "f64.ne", cmp(func(a, b float64) bool { return a != b }))
	register(wasm.OpF64Lt, "f64.lt", cmp(func(a, b float64) bool { return a < b }))
	register(wasm.OpF64Gt, "f64.gt", cmp(func(a, b float64) bool { return a > b }))
	register(wasm.OpF64Le, "f64.le", cmp(func(a, b float64) bool { return a <= b }))
	register(wasm.OpF64Ge, "f64.ge", cmp(func(a, b float64) bool { return a >= b }))

	un := func(f func(float64) float64) opHandler {
		return unary(func(a F64) F64 { return F64Of(f(a.Float())) })
	}
	bin := func(f func(a, b float64) float64) opHandler {
		return binop(func(a, b F64) F64 { return F64Of(f(a.Float(), b.Float())) })
	}
	register(wasm.OpF64Abs, "f64.abs", un(numeric.Abs64))
	register(wasm.OpF64Neg, "f64.neg", un(numeric.Neg64))
	register(wasm.OpF64Ceil, "f64.ceil", un(numeric.Ceil[float64]))
	register(wasm.OpF64Floor, "f64.floor", un(numeric.Floor[float64]))
	register(wasm.OpF64Trunc, "f64.trunc", un(numeric.TruncFloat[float64]))
	register(wasm.OpF64Nearest, "f64.nearest", un(numeric.Nearest[float64]))
	register(wasm.OpF64Sqrt, "f64.sqrt", un(math.Sqrt))
	register(wasm.OpF64Add, "f64.add", bin(func(a, b float64) float64 { return a + b }))
	register(wasm.OpF64Sub, "f64.sub", bin(func(a, b float64) float64 { return a - b }))
	register(wasm.OpF64Mul, "f64.mul", bin(func(a, b float64) float64 { return a * b }))
	register(wasm.OpF64Div, "f64.div", bin(func(a, b float64) float64 { return a / b }))
	register(wasm.OpF64Min, "f64.min", bin(numeric.Min[float64]))
	register(wasm.OpF64Max, "f64.max", bin(numeric.Max[float64]))
	register(wasm.OpF64Copysign, "f64.copysign", bin(numeric.Copysign64))
}

func registerConversions() {
	register(wasm.OpI32WrapI64, "i32.wrap_i64", unary(func(a I64) I32 { return I32(int32(a)) }))
	register(wasm.OpI32TruncF32S, "i32.trunc_f32_s", unaryTrap(func(a F32) (I32, error) {
		r, t := numeric.Trunc[int32](float64(a.Float()))
		return I32(r), truncError(t)
	}))
	register(wasm.OpI32TruncF32U, "i32.trunc_f32_u", unaryTrap(func(a F32) (I32, error) {
		r, t := numeric.Trunc[uint32](float64(a.Float()))
		return I32(int32(r)), truncError(t)
	}))
	register(wasm.OpI32TruncF64S, "i32.trunc_f64_s", unaryTrap(func(a F64) (I32, error) {
		r, t := numeric.Trunc[int32](a.Float())
		return I32(r), truncError(t)
	}))
	register(wasm.OpI32TruncF64U, "i32.trunc_f64_u", unaryTrap(func(a F64) (I32, error) {
		r, t := numeric.Trunc[uint32](a.Float())
		return I32(int32(r)), truncError(t)
	}))
	register(wasm.OpI64ExtendI32S, "i64.extend_i32_s", unary(func(a I32) I64 { return I64(int64(a)) }))
	register(wasm.OpI64ExtendI32U, "i64.extend_i32_u", unary(func(a I32) I64 { return I64(int64(uint32(a))) }))
	register(wasm.OpI64TruncF32S, "i64.trunc_f32_s", unaryTrap(func(a F32) (I64, error) {
		r, t := numeric.Trunc[int64](float64(a.Float()))
		return I64(r), truncError(t)
	}))
	register(wasm.OpI64TruncF32U, "i64.trunc_f32_u", unaryTrap(func(a F32) (I64, error) {
		r, t := numeric.Trunc[uint64](float64(a.Float()))
		return I64(int64(r)), truncError(t)
	}))
	register(wasm.OpI64TruncF64S, "i64.trunc_f64_s", unaryTrap(func(a F64) (I64, error) {
		r, t := numeric.Trunc[int64](a.Float())
		return I64(r), truncError(t)
	}))
	register(wasm.OpI64TruncF64U, "i64.trunc_f64_u", unaryTrap(func(a F64) (I64, error) {
		r, t := numeric.Trunc[uint64](a.Float())
		return I64(int64(r)), truncError(t)
	}))

	register(wasm.OpF32ConvertI32S, "f32.convert_i32_s", unary(func(a I32) F32 { return F32Of(float32(int32(a))) }))
	register(wasm.OpF32ConvertI32U, "f32.convert_i32_u", unary(func(a I32) F32 { return F32Of(float32(uint32(a))) }))
	register(wasm.OpF32ConvertI64S, "f32.convert_i64_s", unary(func(a I64) F32 { return F32Of(float32(int64(a))) }))
	register(wasm.OpF32ConvertI64U, "f32.convert_i64_u", unary(func(a I64) F32 { return F32Of(float32(uint64(a))) }))
	register(wasm.OpF32DemoteF64, "f32.demote_f64", unary(func(a F64) F32 { return F32Of(float32(a.Float())) }))
	register(wasm.OpF64ConvertI32S, "f64.convert_i32_s", unary(func(a I32) F64 { return F64Of(float64(int32(a))) }))
	register(wasm.OpF64ConvertI32U, "f64.convert_i32_u", unary(func(a I32) F64 { return F64Of(float64(uint32(a))) }))
	register(wasm.OpF64ConvertI64S, "f64.convert_i64_s", unary(func(a I64) F64 { return F64Of(float64(int64(a))) }))
	register(wasm.OpF64ConvertI64U, "f64.convert_i64_u", unary(func(a I64) F64 { return F64Of(float64(uint64(a))) }))
	register(wasm.OpF64PromoteF32, "f64.promote_f32", unary(func(a F32) F64 { return F64Of(float64(a.Float())) }))

	register(wasm.OpI32ReinterpretF32, "i32.reinterpret_f32", unary(func(a F32) I32 { return I32(numeric.S32(uint32(a))) }))
	register(wasm.OpI64ReinterpretF64, "i64.reinterpret_f64", unary(func(a F64) I64 { return I64(numeric.S64(uint64(a))) }))
	register(wasm.OpF32ReinterpretI32, "f32.reinterpret_i32", unary(func(a I32) F32 { return F32(numeric.U32(int32(a))) }))
	register(wasm.OpF64ReinterpretI64, "f64.reinterpret_i64", unary(func(a I64) F64 { return F64(numeric.U64(int64(a))) }))
}

// truncSat implements the saturating 0xFC 0x00-0x07 conversions.
func truncSat(e *Executor, sub uint32) error {
	v, ok := e.stack.PopValue()
	if !ok {
		return errStackUnderflow
	}
	var f float64
	switch x := v.(type) {
	case F32:
		f = float64(x.Float())
	case F64:
		f = x.Float()
	default:
		return errStackUnderflow
	}
	var r Value
	switch sub {
	case wasm.MiscI32TruncSatF32S, wasm.MiscI32TruncSatF64S:
		r = I32(numeric.TruncSat[int32](f))
	case wasm.MiscI32TruncSatF32U, wasm.MiscI32TruncSatF64U:
		r = I32(int32(numeric.TruncSat[uint32](f)))
	case wasm.MiscI64TruncSatF32S, wasm.MiscI64TruncSatF64S:
		r = I64(numeric.TruncSat[int64](f))
	default:
		r = I64(int64(numeric.TruncSat[uint64](f)))
	}
	e.stack.Push(r)
	return nil
}
