package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-vm/engine"
	"github.com/wippyai/wasm-vm/wasm"
)

// Module is a decoded and validated module, ready to instantiate any
// number of times.
type Module struct {
	runtime *Runtime
	module  *wasm.Module
}

// Export names one export of a module.
type Export struct {
	Name string
	Kind byte
}

func (m *Module) Exports() []Export {
	exports := make([]Export, len(m.module.Exports))
	for i, e := range m.module.Exports {
		exports[i] = Export{Name: e.Name, Kind: e.Kind}
	}
	return exports
}

// Wasm returns the decoded module.
func (m *Module) Wasm() *wasm.Module {
	return m.module
}

// Signature returns the type of the exported function name.
func (m *Module) Signature(name string) (wasm.FuncType, bool) {
	for _, e := range m.module.Exports {
		if e.Name == name && e.Kind == wasm.KindFunc {
			if ft := m.module.GetFuncType(e.Idx); ft != nil {
				return *ft, true
			}
		}
	}
	return wasm.FuncType{}, false
}

// Instantiate binds pending host functions, links m against the registered
// modules and runs its start function. A non-empty name registers the
// instance so later modules can import from it.
func (m *Module) Instantiate(ctx context.Context, name string) (*Instance, error) {
	if err := m.runtime.bindHosts(); err != nil {
		return nil, err
	}
	inst, err := m.runtime.linker.Instantiate(ctx, m.module, name)
	if err != nil {
		Logger().Debug("instantiation failed", zap.String("module", name), zap.Error(err))
		return nil, err
	}
	return &Instance{runtime: m.runtime, module: m, inst: inst}, nil
}

// instanceOf wraps an already instantiated module instance.
func instanceOf(r *Runtime, inst *engine.ModuleInstance) *Instance {
	return &Instance{runtime: r, inst: inst}
}
