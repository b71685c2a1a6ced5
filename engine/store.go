package engine

import (
	"context"
	"slices"

	"github.com/wippyai/wasm-vm/wasm"
)

// HostFunc implements an imported function in Go. A returned error traps.
type HostFunc func(ctx context.Context, args []Value) ([]Value, error)

// FuncInst is a function in the Store: *ModuleFunc or *HostFuncInst.
type FuncInst interface {
	FuncType() wasm.FuncType
	isFunc()
}

// ModuleFunc is a function defined by a module.
type ModuleFunc struct {
	Module *ModuleInstance
	Locals []wasm.ValType
	Body   []wasm.Instruction
	Type   wasm.FuncType
}

// HostFuncInst is a function supplied by the embedder.
type HostFuncInst struct {
	Fn   HostFunc
	Name string
	Type wasm.FuncType
}

func (f *ModuleFunc) FuncType() wasm.FuncType   { return f.Type }
func (f *HostFuncInst) FuncType() wasm.FuncType { return f.Type }
func (*ModuleFunc) isFunc()                     {}
func (*HostFuncInst) isFunc()                   {}

// TableInst is a table of references.
type TableInst struct {
	Elems []Ref
	Type  wasm.TableType
}

// MaxTableElems caps every table regardless of its declared maximum.
const MaxTableElems = 1 << 27

// Grow appends n copies of init and returns the previous size, or -1 when
// the table's maximum or MaxTableElems would be exceeded.
func (t *TableInst) Grow(n uint32, init Ref) int32 {
	old := uint64(len(t.Elems))
	size := old + uint64(n)
	limit := uint64(MaxTableElems)
	if t.Type.Limits.Max != nil && *t.Type.Limits.Max < limit {
		limit = *t.Type.Limits.Max
	}
	if size > limit {
		return -1
	}
	t.Elems = slices.Grow(t.Elems, int(n))
	for i := uint32(0); i < n; i++ {
		t.Elems = append(t.Elems, init)
	}
	return int32(old)
}

// MemInst is a linear memory.
type MemInst struct {
	Data []byte
	Type wasm.MemoryType
}

// Pages returns the current size in pages.
func (m *MemInst) Pages() uint32 {
	return uint32(uint64(len(m.Data)) / wasm.PageSize)
}

// Grow extends the memory by n zeroed pages and returns the previous page
// count, or -1 when the maximum would be exceeded.
func (m *MemInst) Grow(n uint32) int32 {
	old := uint64(m.Pages())
	size := old + uint64(n)
	limit := wasm.MemoryMaxPages32
	if m.Type.Limits.Max != nil && *m.Type.Limits.Max < limit {
		limit = *m.Type.Limits.Max
	}
	if size > limit {
		return -1
	}
	m.Data = append(m.Data, make([]byte, uint64(n)*wasm.PageSize)...)
	return int32(old)
}

// GlobalInst is a global variable.
type GlobalInst struct {
	Value Value
	Type  wasm.GlobalType
}

// ElemInst is an element segment. Dropping it empties Refs.
type ElemInst struct {
	Refs []Ref
	Type wasm.ValType
}

// DataInst is a data segment. Dropping it empties Data.
type DataInst struct {
	Data []byte
}

// Store owns every runtime resource. Collections are append-only and
// addresses stay valid for the Store's lifetime.
type Store struct {
	Funcs   []FuncInst
	Tables  []*TableInst
	Mems    []*MemInst
	Globals []*GlobalInst
	Elems   []*ElemInst
	Datas   []*DataInst
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

func (s *Store) AllocFunc(f FuncInst) Addr {
	s.Funcs = append(s.Funcs, f)
	return Addr(len(s.Funcs) - 1)
}

// AllocHostFunc allocates a host function with the given signature.
func (s *Store) AllocHostFunc(name string, ft wasm.FuncType, fn HostFunc) Addr {
	return s.AllocFunc(&HostFuncInst{Name: name, Type: ft, Fn: fn})
}

// AllocTable allocates a table of Min null references.
func (s *Store) AllocTable(tt wasm.TableType) Addr {
	elems := make([]Ref, tt.Limits.Min)
	for i := range elems {
		elems[i] = NullRef{RefType: tt.ElemType}
	}
	s.Tables = append(s.Tables, &TableInst{Type: tt, Elems: elems})
	return Addr(len(s.Tables) - 1)
}

// AllocMem allocates a zeroed memory of Min pages.
func (s *Store) AllocMem(mt wasm.MemoryType) Addr {
	data := make([]byte, mt.Limits.Min*wasm.PageSize)
	s.Mems = append(s.Mems, &MemInst{Type: mt, Data: data})
	return Addr(len(s.Mems) - 1)
}

func (s *Store) AllocGlobal(gt wasm.GlobalType, v Value) Addr {
	s.Globals = append(s.Globals, &GlobalInst{Type: gt, Value: v})
	return Addr(len(s.Globals) - 1)
}

func (s *Store) AllocElem(t wasm.ValType, refs []Ref) Addr {
	s.Elems = append(s.Elems, &ElemInst{Type: t, Refs: refs})
	return Addr(len(s.Elems) - 1)
}

func (s *Store) AllocData(data []byte) Addr {
	s.Datas = append(s.Datas, &DataInst{Data: data})
	return Addr(len(s.Datas) - 1)
}
