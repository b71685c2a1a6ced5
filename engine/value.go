package engine

import (
	"fmt"
	"math"

	"github.com/wippyai/wasm-vm/wasm"
)

// Entry is one slot of the Stack. The variants are the Value types,
// *Label and *Frame; the set is closed by the unexported marker method.
type Entry interface {
	isEntry()
}

// Value is a runtime value. Variants: I32, I64, F32, F64, V128, NullRef,
// FuncRef and ExternRef.
type Value interface {
	Entry
	Type() wasm.ValType
	String() string
}

// Ref is the reference subset of Value: NullRef, FuncRef and ExternRef.
type Ref interface {
	Value
	isRef()
}

// Addr is an index into one of the Store's collections.
type Addr uint32

type (
	I32 int32
	I64 int64
	// F32 holds the IEEE-754 bit pattern so NaN payloads are preserved.
	F32 uint32
	// F64 holds the IEEE-754 bit pattern so NaN payloads are preserved.
	F64  uint64
	V128 [16]byte

	// NullRef is the null reference of a given reference type.
	NullRef struct {
		RefType wasm.ValType
	}
	// FuncRef refers to a function by Store address.
	FuncRef Addr
	// ExternRef is an opaque host reference.
	ExternRef uint32
)

func (I32) isEntry()       {}
func (I64) isEntry()       {}
func (F32) isEntry()       {}
func (F64) isEntry()       {}
func (V128) isEntry()      {}
func (NullRef) isEntry()   {}
func (FuncRef) isEntry()   {}
func (ExternRef) isEntry() {}

func (NullRef) isRef()   {}
func (FuncRef) isRef()   {}
func (ExternRef) isRef() {}

func (I32) Type() wasm.ValType       { return wasm.ValI32 }
func (I64) Type() wasm.ValType       { return wasm.ValI64 }
func (F32) Type() wasm.ValType       { return wasm.ValF32 }
func (F64) Type() wasm.ValType       { return wasm.ValF64 }
func (V128) Type() wasm.ValType      { return wasm.ValV128 }
func (r NullRef) Type() wasm.ValType { return r.RefType }
func (FuncRef) Type() wasm.ValType   { return wasm.ValFuncRef }
func (ExternRef) Type() wasm.ValType { return wasm.ValExtern }

// F32Of and F64Of build float values from Go floats.
func F32Of(f float32) F32 { return F32(math.Float32bits(f)) }
func F64Of(f float64) F64 { return F64(math.Float64bits(f)) }

// Float returns the value as a Go float.
func (v F32) Float() float32 { return math.Float32frombits(uint32(v)) }
func (v F64) Float() float64 { return math.Float64frombits(uint64(v)) }

func (v I32) String() string { return fmt.Sprintf("i32:%d", int32(v)) }
func (v I64) String() string { return fmt.Sprintf("i64:%d", int64(v)) }
func (v F32) String() string { return fmt.Sprintf("f32:%v", v.Float()) }
func (v F64) String() string { return fmt.Sprintf("f64:%v", v.Float()) }

// String prints v as its two i64 lanes, low lane first.
func (v V128) String() string {
	lo, hi := v.Lanes64()
	return fmt.Sprintf("v128:%016x_%016x", lo, hi)
}

func (r NullRef) String() string   { return "ref.null " + r.RefType.String() }
func (r FuncRef) String() string   { return fmt.Sprintf("ref.func %d", uint32(r)) }
func (r ExternRef) String() string { return fmt.Sprintf("ref.extern %d", uint32(r)) }

// IsNull reports whether r is a null reference.
func IsNull(r Ref) bool {
	_, ok := r.(NullRef)
	return ok
}

// Zero returns the default value of t: zero for numbers and vectors, null
// for references.
func Zero(t wasm.ValType) (Value, bool) {
	switch t {
	case wasm.ValI32:
		return I32(0), true
	case wasm.ValI64:
		return I64(0), true
	case wasm.ValF32:
		return F32(0), true
	case wasm.ValF64:
		return F64(0), true
	case wasm.ValV128:
		return V128{}, true
	case wasm.ValFuncRef, wasm.ValExtern:
		return NullRef{RefType: t}, true
	}
	return nil, false
}

// CheckTypes reports whether vals match types one to one.
func CheckTypes(vals []Value, types []wasm.ValType) bool {
	if len(vals) != len(types) {
		return false
	}
	for i, v := range vals {
		if v == nil || v.Type() != types[i] {
			return false
		}
	}
	return true
}
