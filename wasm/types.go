package wasm

// Module represents a parsed WebAssembly module.
// Function bodies and constant expressions are decoded into structured
// instruction trees; raw bytecode is not retained.
type Module struct {
	Types    []FuncType
	Imports  []Import
	Funcs    []uint32 // Type indices for declared functions
	Tables   []TableType
	Memories []MemoryType
	Globals  []Global
	Exports  []Export
	Start    *uint32
	Elements []Element
	Code     []FuncBody
	Data     []DataSegment

	// DataCount holds the count from the DataCount section (ID 12).
	// Required when data indices appear in code (bulk memory operations).
	DataCount *uint32

	CustomSections []CustomSection
}

// FuncType represents a WebAssembly function signature with parameter and result types.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Equal reports whether two signatures have identical parameter and result types.
func (f FuncType) Equal(other FuncType) bool {
	if len(f.Params) != len(other.Params) || len(f.Results) != len(other.Results) {
		return false
	}
	for i := range f.Params {
		if f.Params[i] != other.Params[i] {
			return false
		}
	}
	for i := range f.Results {
		if f.Results[i] != other.Results[i] {
			return false
		}
	}
	return true
}

// ValType represents a WebAssembly value type.
// See constants.go for ValI32, ValI64, ValF32, ValF64, etc.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValV128:
		return "v128"
	case ValFuncRef:
		return "funcref"
	case ValExtern:
		return "externref"
	default:
		return "unknown"
	}
}

// IsRef reports whether v is a reference type.
func (v ValType) IsRef() bool {
	return v == ValFuncRef || v == ValExtern
}

// IsValid reports whether v is one of the value types this package decodes.
func (v ValType) IsValid() bool {
	switch v {
	case ValI32, ValI64, ValF32, ValF64, ValV128, ValFuncRef, ValExtern:
		return true
	}
	return false
}

// Import represents an imported function, table, memory, or global.
type Import struct {
	Desc   ImportDesc
	Module string
	Name   string
}

// ImportDesc describes an imported item.
// Kind uses KindFunc, KindTable, KindMemory, or KindGlobal constants.
type ImportDesc struct {
	Table   *TableType
	Memory  *MemoryType
	Global  *GlobalType
	TypeIdx uint32
	Kind    byte
}

// TableType describes a table with element type and size limits.
type TableType struct {
	Limits   Limits
	ElemType ValType
}

// MemoryType describes a linear memory with size limits.
type MemoryType struct {
	Limits Limits
}

// Limits describes size constraints for tables and memories.
type Limits struct {
	Max *uint64
	Min uint64
}

// Matches reports whether limits l can be supplied where want is expected:
// l.Min must cover want.Min and, if want has a maximum, l must have one no larger.
func (l Limits) Matches(want Limits) bool {
	if l.Min < want.Min {
		return false
	}
	if want.Max == nil {
		return true
	}
	return l.Max != nil && *l.Max <= *want.Max
}

// GlobalType describes a global variable's type and mutability.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// Global represents a global variable with type and initialization.
type Global struct {
	Type GlobalType
	Init []Instruction // Constant expression, without the trailing end
}

// Export describes an exported item.
// Kind uses KindFunc, KindTable, KindMemory, or KindGlobal constants.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// SegmentMode tells how an element or data segment is applied at instantiation.
type SegmentMode byte

const (
	SegmentActive      SegmentMode = iota // copied into a table/memory at instantiation
	SegmentPassive                        // available to table.init / memory.init
	SegmentDeclarative                    // elements only: declares ref.func targets
)

// Element represents an element segment.
// Flags determine the binary format:
//   - 0: active, tableIdx=0, offset expr, vec(funcidx)
//   - 1: passive, elemkind, vec(funcidx)
//   - 2: active, tableIdx, offset expr, elemkind, vec(funcidx)
//   - 3: declarative, elemkind, vec(funcidx)
//   - 4: active, tableIdx=0, offset expr, vec(expr)
//   - 5: passive, reftype, vec(expr)
//   - 6: active, tableIdx, offset expr, reftype, vec(expr)
//   - 7: declarative, reftype, vec(expr)
//
// Exactly one of FuncIdxs and Exprs is populated.
type Element struct {
	Offset   []Instruction
	FuncIdxs []uint32
	Exprs    [][]Instruction
	Flags    uint32
	TableIdx uint32
	Mode     SegmentMode
	Type     ValType
}

// Len returns the number of entries in the segment.
func (e *Element) Len() int {
	if e.Exprs != nil {
		return len(e.Exprs)
	}
	return len(e.FuncIdxs)
}

// FuncBody represents a function's local declarations and decoded body.
type FuncBody struct {
	Locals []LocalEntry
	Body   []Instruction // Without the trailing end
}

// LocalEntry represents a group of local variables with the same type.
type LocalEntry struct {
	Count   uint32
	ValType ValType
}

// DataSegment represents a data segment.
// Flags determine the format:
//   - 0: active, memIdx=0, offset expr, vec(byte)
//   - 1: passive, vec(byte)
//   - 2: active, memIdx, offset expr, vec(byte)
type DataSegment struct {
	Offset []Instruction
	Init   []byte
	Flags  uint32
	MemIdx uint32
	Mode   SegmentMode
}

// CustomSection holds a named custom section's data.
type CustomSection struct {
	Name string
	Data []byte
}

// NumImportedFuncs returns the number of imported functions
func (m *Module) NumImportedFuncs() int {
	return m.numImported(KindFunc)
}

// NumImportedGlobals returns the number of imported globals
func (m *Module) NumImportedGlobals() int {
	return m.numImported(KindGlobal)
}

// NumImportedTables returns the number of imported tables
func (m *Module) NumImportedTables() int {
	return m.numImported(KindTable)
}

// NumImportedMemories returns the number of imported memories
func (m *Module) NumImportedMemories() int {
	return m.numImported(KindMemory)
}

func (m *Module) numImported(kind byte) int {
	count := 0
	for _, imp := range m.Imports {
		if imp.Desc.Kind == kind {
			count++
		}
	}
	return count
}

// GetFuncType returns the type of a function by its index in the function
// index space (imports first), or nil when the index is out of range.
func (m *Module) GetFuncType(funcIdx uint32) *FuncType {
	numImported := uint32(m.NumImportedFuncs())
	if funcIdx < numImported {
		for i, imp := range m.Imports {
			if imp.Desc.Kind == KindFunc {
				if funcIdx == 0 {
					return m.typeAt(m.Imports[i].Desc.TypeIdx)
				}
				funcIdx--
			}
		}
	}
	localIdx := funcIdx - numImported
	if int(localIdx) >= len(m.Funcs) {
		return nil
	}
	return m.typeAt(m.Funcs[localIdx])
}

func (m *Module) typeAt(typeIdx uint32) *FuncType {
	if int(typeIdx) >= len(m.Types) {
		return nil
	}
	return &m.Types[typeIdx]
}

// BlockSignature resolves a block type immediate to its parameter and result types.
// Negative values are the single-result shorthands; non-negative values index Types.
func BlockSignature(types []FuncType, bt int32) (params, results []ValType, ok bool) {
	switch bt {
	case BlockTypeVoid:
		return nil, nil, true
	case BlockTypeI32:
		return nil, []ValType{ValI32}, true
	case BlockTypeI64:
		return nil, []ValType{ValI64}, true
	case BlockTypeF32:
		return nil, []ValType{ValF32}, true
	case BlockTypeF64:
		return nil, []ValType{ValF64}, true
	case BlockTypeV128:
		return nil, []ValType{ValV128}, true
	case BlockTypeFuncRef:
		return nil, []ValType{ValFuncRef}, true
	case BlockTypeExternRef:
		return nil, []ValType{ValExtern}, true
	}
	if bt < 0 || int(bt) >= len(types) {
		return nil, nil, false
	}
	ft := types[bt]
	return ft.Params, ft.Results, true
}

// AddType adds a function type and returns its index, reusing existing if equal
func (m *Module) AddType(ft FuncType) uint32 {
	for i, t := range m.Types {
		if t.Equal(ft) {
			return uint32(i)
		}
	}
	idx := uint32(len(m.Types))
	m.Types = append(m.Types, ft)
	return idx
}

// ExpandLocals flattens grouped local declarations into one type per local.
func (b *FuncBody) ExpandLocals() []ValType {
	var n uint32
	for _, l := range b.Locals {
		n += l.Count
	}
	out := make([]ValType, 0, n)
	for _, l := range b.Locals {
		for i := uint32(0); i < l.Count; i++ {
			out = append(out, l.ValType)
		}
	}
	return out
}
