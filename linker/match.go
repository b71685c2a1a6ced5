package linker

import (
	"github.com/wippyai/wasm-vm/engine"
	"github.com/wippyai/wasm-vm/errors"
	"github.com/wippyai/wasm-vm/wasm"
)

// match checks the export at ev against the type imp declares. Tables and
// memories are compared by their current size, so an instance that grew
// can satisfy a larger minimum.
func (l *Linker) match(m *wasm.Module, imp wasm.Import, ev engine.ExternVal) error {
	switch imp.Desc.Kind {
	case wasm.KindFunc:
		if int(imp.Desc.TypeIdx) >= len(m.Types) {
			return importError(errors.KindImportTypeMismatch, imp, "type index %d out of range", imp.Desc.TypeIdx)
		}
		want := m.Types[imp.Desc.TypeIdx]
		got := l.store.Funcs[ev.Addr].FuncType()
		if !got.Equal(want) {
			return importError(errors.KindImportTypeMismatch, imp,
				"signature %v -> %v, want %v -> %v", got.Params, got.Results, want.Params, want.Results)
		}

	case wasm.KindTable:
		want := imp.Desc.Table
		t := l.store.Tables[ev.Addr]
		if want == nil {
			return importError(errors.KindImportTypeMismatch, imp, "missing table type")
		}
		if t.Type.ElemType != want.ElemType {
			return importError(errors.KindImportTypeMismatch, imp,
				"element type %s, want %s", t.Type.ElemType, want.ElemType)
		}
		have := wasm.Limits{Min: uint64(len(t.Elems)), Max: t.Type.Limits.Max}
		if !have.Matches(want.Limits) {
			return importError(errors.KindImportTypeMismatch, imp, "table limits do not match")
		}

	case wasm.KindMemory:
		want := imp.Desc.Memory
		mem := l.store.Mems[ev.Addr]
		if want == nil {
			return importError(errors.KindImportTypeMismatch, imp, "missing memory type")
		}
		have := wasm.Limits{Min: uint64(mem.Pages()), Max: mem.Type.Limits.Max}
		if !have.Matches(want.Limits) {
			return importError(errors.KindImportTypeMismatch, imp, "memory limits do not match")
		}

	case wasm.KindGlobal:
		want := imp.Desc.Global
		g := l.store.Globals[ev.Addr]
		if want == nil {
			return importError(errors.KindImportTypeMismatch, imp, "missing global type")
		}
		if g.Type != *want {
			return importError(errors.KindImportTypeMismatch, imp,
				"global %s (mutable=%t), want %s (mutable=%t)",
				g.Type.ValType, g.Type.Mutable, want.ValType, want.Mutable)
		}
	}
	return nil
}
