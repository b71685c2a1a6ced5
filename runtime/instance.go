package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-vm/engine"
	"github.com/wippyai/wasm-vm/errors"
	"github.com/wippyai/wasm-vm/wasm"
)

// Instance is an instantiated module.
type Instance struct {
	runtime *Runtime
	module  *Module
	inst    *engine.ModuleInstance
}

// Module returns the module this instance was created from, or nil for
// instances looked up by name.
func (i *Instance) Module() *Module {
	return i.module
}

// Engine returns the underlying module instance.
func (i *Instance) Engine() *engine.ModuleInstance {
	return i.inst
}

// Call invokes the exported function name. A trap aborts the call and is
// returned as an error matching engine.ErrTrap.
func (i *Instance) Call(ctx context.Context, name string, args ...engine.Value) ([]engine.Value, error) {
	addr, ok := i.inst.ExportedFunc(name)
	if !ok {
		return nil, errors.NotFound(errors.PhaseRuntime, "exported function", name)
	}
	results, err := i.runtime.exec.Invoke(ctx, addr, args)
	if err != nil {
		Logger().Debug("call failed", zap.String("func", name), zap.Error(err))
		return nil, err
	}
	return results, nil
}

// HasFunc reports whether name is an exported function.
func (i *Instance) HasFunc(name string) bool {
	_, ok := i.inst.ExportedFunc(name)
	return ok
}

// Memory returns the exported memory name.
func (i *Instance) Memory(name string) (*engine.MemInst, bool) {
	ev, ok := i.inst.Export(name)
	if !ok || ev.Kind != wasm.KindMemory {
		return nil, false
	}
	return i.runtime.store.Mems[ev.Addr], true
}

// Global returns the current value of the exported global name.
func (i *Instance) Global(name string) (engine.Value, bool) {
	ev, ok := i.inst.Export(name)
	if !ok || ev.Kind != wasm.KindGlobal {
		return nil, false
	}
	return i.runtime.store.Globals[ev.Addr].Value, true
}

// Lookup returns the instance registered under name.
func (r *Runtime) Lookup(name string) (*Instance, bool) {
	inst, ok := r.linker.Module(name)
	if !ok {
		return nil, false
	}
	return instanceOf(r, inst), true
}
