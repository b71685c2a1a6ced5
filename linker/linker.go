package linker

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-vm/engine"
	"github.com/wippyai/wasm-vm/errors"
	"github.com/wippyai/wasm-vm/wasm"
)

// Linker is the module registry. It resolves imports against the exports
// of registered instances and instantiates modules into one Store.
// Thread-safe for registration and lookup; instantiation runs code on the
// shared Executor and must not overlap with other calls on it.
type Linker struct {
	store   *engine.Store
	exec    *engine.Executor
	modules map[string]*engine.ModuleInstance
	mu      sync.RWMutex
}

// New creates a Linker that allocates into exec's Store and runs start
// functions on exec.
func New(exec *engine.Executor) *Linker {
	return &Linker{
		store:   exec.Store(),
		exec:    exec,
		modules: make(map[string]*engine.ModuleInstance),
	}
}

// Store returns the store instances are allocated in.
func (l *Linker) Store() *engine.Store {
	return l.store
}

// Executor returns the executor start functions run on.
func (l *Linker) Executor() *engine.Executor {
	return l.exec
}

// Register makes inst's exports importable under name, replacing any
// instance registered earlier under the same name.
func (l *Linker) Register(name string, inst *engine.ModuleInstance) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.modules[name]; ok {
		Logger().Debug("replacing registered module", zap.String("module", name))
	}
	l.modules[name] = inst
}

// Module returns the instance registered under name.
func (l *Linker) Module(name string) (*engine.ModuleInstance, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	inst, ok := l.modules[name]
	return inst, ok
}

// Modules returns the registered module names.
func (l *Linker) Modules() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.modules))
	for name := range l.modules {
		names = append(names, name)
	}
	return names
}

// Resolve binds every import of m, in declaration order, to an export of
// a registered module. The first import that fails stops resolution.
func (l *Linker) Resolve(m *wasm.Module) ([]engine.ExternVal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	externs := make([]engine.ExternVal, 0, len(m.Imports))
	for _, imp := range m.Imports {
		ev, err := l.resolveImport(m, imp)
		if err != nil {
			Logger().Debug("import failed",
				zap.String("module", imp.Module),
				zap.String("name", imp.Name),
				zap.Error(err))
			return nil, err
		}
		externs = append(externs, ev)
	}
	return externs, nil
}

func (l *Linker) resolveImport(m *wasm.Module, imp wasm.Import) (engine.ExternVal, error) {
	inst, ok := l.modules[imp.Module]
	if !ok {
		return engine.ExternVal{}, errors.New(errors.PhaseLink, errors.KindModuleNotFound).
			Path(imp.Module, imp.Name).
			Detail("module %q is not registered", imp.Module).
			Build()
	}
	ev, ok := inst.Export(imp.Name)
	if !ok {
		return engine.ExternVal{}, importError(errors.KindImportNotFound, imp,
			"module %q has no export %q", imp.Module, imp.Name)
	}
	if ev.Kind != imp.Desc.Kind {
		return engine.ExternVal{}, importError(errors.KindImportTypeMismatch, imp,
			"expected %s, found %s", kindName(imp.Desc.Kind), kindName(ev.Kind))
	}
	if err := l.match(m, imp, ev); err != nil {
		return engine.ExternVal{}, err
	}
	Logger().Debug("import resolved",
		zap.String("module", imp.Module),
		zap.String("name", imp.Name),
		zap.String("kind", kindName(ev.Kind)),
		zap.Uint32("addr", uint32(ev.Addr)))
	return ev, nil
}
