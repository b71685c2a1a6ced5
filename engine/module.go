package engine

import "github.com/wippyai/wasm-vm/wasm"

// ExternVal is an exported entity: a kind (wasm.KindFunc, KindTable,
// KindMemory or KindGlobal) and a Store address of that kind.
type ExternVal struct {
	Kind byte
	Addr Addr
}

// ModuleInstance maps a module's local indices to Store addresses. It is
// shared by every function it defines and every Frame running its code.
type ModuleInstance struct {
	Exports     map[string]ExternVal
	Name        string
	Types       []wasm.FuncType
	FuncAddrs   []Addr
	TableAddrs  []Addr
	MemAddrs    []Addr
	GlobalAddrs []Addr
	ElemAddrs   []Addr
	DataAddrs   []Addr
}

// Export looks up an export by name.
func (m *ModuleInstance) Export(name string) (ExternVal, bool) {
	ev, ok := m.Exports[name]
	return ev, ok
}

// ExportedFunc returns the Store address of an exported function.
func (m *ModuleInstance) ExportedFunc(name string) (Addr, bool) {
	ev, ok := m.Exports[name]
	if !ok || ev.Kind != wasm.KindFunc {
		return 0, false
	}
	return ev.Addr, true
}
