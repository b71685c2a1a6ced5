package linker

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-vm/engine"
	"github.com/wippyai/wasm-vm/wasm"
)

// HostModuleBuilder collects Go-implemented exports for a host module.
type HostModuleBuilder struct {
	linker *Linker
	name   string
	defs   []hostDef
}

type hostDef struct {
	fn     engine.HostFunc
	table  *wasm.TableType
	memory *wasm.MemoryType
	global *wasm.GlobalType
	value  engine.Value
	name   string
	sig    wasm.FuncType
	kind   byte
}

// NewHostModule starts building a host module importable as name.
func (l *Linker) NewHostModule(name string) *HostModuleBuilder {
	return &HostModuleBuilder{linker: l, name: name}
}

// Func adds a function export with signature ft.
func (b *HostModuleBuilder) Func(name string, ft wasm.FuncType, fn engine.HostFunc) *HostModuleBuilder {
	b.defs = append(b.defs, hostDef{kind: wasm.KindFunc, name: name, sig: ft, fn: fn})
	return b
}

// Table adds a table export filled with null references.
func (b *HostModuleBuilder) Table(name string, tt wasm.TableType) *HostModuleBuilder {
	b.defs = append(b.defs, hostDef{kind: wasm.KindTable, name: name, table: &tt})
	return b
}

// Memory adds a zeroed memory export.
func (b *HostModuleBuilder) Memory(name string, mt wasm.MemoryType) *HostModuleBuilder {
	b.defs = append(b.defs, hostDef{kind: wasm.KindMemory, name: name, memory: &mt})
	return b
}

// Global adds a global export holding v.
func (b *HostModuleBuilder) Global(name string, gt wasm.GlobalType, v engine.Value) *HostModuleBuilder {
	b.defs = append(b.defs, hostDef{kind: wasm.KindGlobal, name: name, global: &gt, value: v})
	return b
}

// Build allocates the definitions in the linker's Store and registers the
// resulting instance. A later definition with the same name wins. Nothing is
// allocated when a definition is invalid.
func (b *HostModuleBuilder) Build() (*engine.ModuleInstance, error) {
	for _, d := range b.defs {
		switch {
		case d.kind == wasm.KindFunc && d.fn == nil:
			return nil, instError("host", nil, "function %s.%s has no implementation", b.name, d.name)
		case d.kind == wasm.KindGlobal && (d.value == nil || d.value.Type() != d.global.ValType):
			return nil, instError("host", nil, "global %s.%s value does not match %s", b.name, d.name, d.global.ValType)
		}
	}

	store := b.linker.store
	inst := &engine.ModuleInstance{
		Name:    b.name,
		Exports: make(map[string]engine.ExternVal, len(b.defs)),
	}
	for _, d := range b.defs {
		var ev engine.ExternVal
		switch d.kind {
		case wasm.KindFunc:
			ev = engine.ExternVal{Kind: wasm.KindFunc, Addr: store.AllocHostFunc(b.name+"."+d.name, d.sig, d.fn)}
			inst.Types = append(inst.Types, d.sig)
			inst.FuncAddrs = append(inst.FuncAddrs, ev.Addr)
		case wasm.KindTable:
			ev = engine.ExternVal{Kind: wasm.KindTable, Addr: store.AllocTable(*d.table)}
			inst.TableAddrs = append(inst.TableAddrs, ev.Addr)
		case wasm.KindMemory:
			ev = engine.ExternVal{Kind: wasm.KindMemory, Addr: store.AllocMem(*d.memory)}
			inst.MemAddrs = append(inst.MemAddrs, ev.Addr)
		case wasm.KindGlobal:
			ev = engine.ExternVal{Kind: wasm.KindGlobal, Addr: store.AllocGlobal(*d.global, d.value)}
			inst.GlobalAddrs = append(inst.GlobalAddrs, ev.Addr)
		}
		inst.Exports[d.name] = ev
	}
	b.linker.Register(b.name, inst)
	Logger().Debug("host module registered", zap.String("module", b.name), zap.Int("exports", len(inst.Exports)))
	return inst, nil
}
