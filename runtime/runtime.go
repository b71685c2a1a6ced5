package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-vm/engine"
	"github.com/wippyai/wasm-vm/errors"
	"github.com/wippyai/wasm-vm/linker"
	"github.com/wippyai/wasm-vm/validate"
	"github.com/wippyai/wasm-vm/wasm"
)

// Options configures a Runtime.
type Options struct {
	Engine engine.Options
}

// DefaultOptions returns the default runtime configuration.
func DefaultOptions() Options {
	return Options{Engine: engine.DefaultOptions()}
}

// Runtime owns one Store, the Executor that runs code against it and the
// module registry. It is not safe for concurrent calls.
type Runtime struct {
	store  *engine.Store
	exec   *engine.Executor
	linker *linker.Linker
	hosts  *HostRegistry
	opts   Options
}

func New(opts Options) *Runtime {
	store := engine.NewStore()
	exec := engine.NewExecutor(store, opts.Engine)
	return &Runtime{
		store:  store,
		exec:   exec,
		linker: linker.New(exec),
		hosts:  NewHostRegistry(),
		opts:   opts,
	}
}

// Options returns the configuration.
func (r *Runtime) Options() Options {
	return r.opts
}

func (r *Runtime) Store() *engine.Store {
	return r.store
}

func (r *Runtime) Linker() *linker.Linker {
	return r.linker
}

func (r *Runtime) Hosts() *HostRegistry {
	return r.hosts
}

// RegisterFunc registers a typed Go function as namespace.name.
// See HostRegistry.RegisterFunc for the accepted signatures.
func (r *Runtime) RegisterFunc(namespace, name string, fn any) error {
	return r.hosts.RegisterFunc(namespace, name, fn)
}

// RegisterHost registers all exported methods of h under h.Namespace().
// Method names are converted from PascalCase to snake_case (PrintI32 -> print_i32).
func (r *Runtime) RegisterHost(h Host) error {
	return r.hosts.RegisterHost(h)
}

// Load decodes a binary module and validates it.
func (r *Runtime) Load(data []byte) (*Module, error) {
	m, err := wasm.ParseModule(data)
	if err != nil {
		if errors.IsPhase(err, errors.PhaseParse) {
			return nil, err
		}
		return nil, errors.ParseFailed("module", err)
	}
	return r.LoadModule(m)
}

// LoadModule validates an already decoded module.
func (r *Runtime) LoadModule(m *wasm.Module) (*Module, error) {
	if err := validate.Module(m); err != nil {
		Logger().Debug("module rejected", zap.Error(err))
		return nil, err
	}
	return &Module{runtime: r, module: m}, nil
}

// Instantiate validates, links and instantiates m in one step.
func (r *Runtime) Instantiate(ctx context.Context, data []byte, name string) (*Instance, error) {
	mod, err := r.Load(data)
	if err != nil {
		return nil, err
	}
	return mod.Instantiate(ctx, name)
}

// bindHosts builds a host module for every namespace registered or
// changed since it was last bound. A namespace that fails to build stays
// pending.
func (r *Runtime) bindHosts() error {
	for _, ns := range r.hosts.pending() {
		b := r.linker.NewHostModule(ns)
		for _, hf := range r.hosts.funcs(ns) {
			b.Func(hf.Name, hf.Type, hf.Fn)
		}
		if _, err := b.Build(); err != nil {
			return err
		}
		r.hosts.bound(ns)
		Logger().Debug("host module bound", zap.String("namespace", ns))
	}
	return nil
}
