package runtime

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/wippyai/wasm-vm/engine"
	"github.com/wippyai/wasm-vm/errors"
	"github.com/wippyai/wasm-vm/wasm"
)

// Host is the interface for struct-based host modules.
// All exported methods (except Namespace) are registered as host functions.
type Host interface {
	// Namespace returns the import module name, e.g. "env".
	Namespace() string
}

// HostFunc is a registered host function with its derived signature.
type HostFunc struct {
	Fn   engine.HostFunc
	Name string
	Type wasm.FuncType
}

type HostRegistry struct {
	byNS  map[string]map[string]*HostFunc
	dirty map[string]bool
	mu    sync.RWMutex
}

func NewHostRegistry() *HostRegistry {
	return &HostRegistry{
		byNS:  make(map[string]map[string]*HostFunc),
		dirty: make(map[string]bool),
	}
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// RegisterFunc registers fn as namespace.name. fn may take a leading
// context.Context, then parameters of type int32, uint32, int64, uint64,
// float32 or float64, and may return values of those types followed by an
// optional error. A returned error traps the calling code.
func (r *HostRegistry) RegisterFunc(namespace, name string, fn any) error {
	if namespace == "" {
		return errors.InvalidInput(errors.PhaseLink, "namespace cannot be empty")
	}
	if name == "" {
		return errors.InvalidInput(errors.PhaseLink, "function name cannot be empty")
	}
	hf, err := adapt(name, reflect.ValueOf(fn))
	if err != nil {
		return err
	}
	r.put(namespace, hf)
	return nil
}

// RegisterRaw registers an engine.HostFunc with an explicit signature.
func (r *HostRegistry) RegisterRaw(namespace, name string, ft wasm.FuncType, fn engine.HostFunc) error {
	if namespace == "" || name == "" {
		return errors.InvalidInput(errors.PhaseLink, "namespace and function name are required")
	}
	r.put(namespace, &HostFunc{Name: name, Type: ft, Fn: fn})
	return nil
}

func (r *HostRegistry) RegisterHost(h Host) error {
	ns := h.Namespace()
	if ns == "" {
		return errors.InvalidInput(errors.PhaseLink, "namespace cannot be empty")
	}

	rv := reflect.ValueOf(h)
	rt := rv.Type()
	for i := 0; i < rt.NumMethod(); i++ {
		method := rt.Method(i)
		if !method.IsExported() || method.Name == "Namespace" {
			continue
		}
		hf, err := adapt(toSnakeCase(method.Name), rv.Method(i))
		if err != nil {
			return err
		}
		r.put(ns, hf)
	}
	return nil
}

func (r *HostRegistry) put(ns string, hf *HostFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byNS[ns] == nil {
		r.byNS[ns] = make(map[string]*HostFunc)
	}
	r.byNS[ns][hf.Name] = hf
	r.dirty[ns] = true
}

// Namespaces returns the registered namespaces in sorted order.
func (r *HostRegistry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byNS))
	for ns := range r.byNS {
		names = append(names, ns)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the function registered as namespace.name.
func (r *HostRegistry) Lookup(namespace, name string) (*HostFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hf, ok := r.byNS[namespace][name]
	return hf, ok
}

// funcs returns the namespace's functions sorted by name.
func (r *HostRegistry) funcs(ns string) []*HostFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*HostFunc, 0, len(r.byNS[ns]))
	for _, hf := range r.byNS[ns] {
		out = append(out, hf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// pending returns the namespaces changed since they were last bound.
func (r *HostRegistry) pending() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.dirty))
	for ns := range r.dirty {
		names = append(names, ns)
	}
	sort.Strings(names)
	return names
}

// bound clears the pending mark of ns.
func (r *HostRegistry) bound(ns string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.dirty, ns)
}

func valTypeOf(t reflect.Type) (wasm.ValType, bool) {
	switch t.Kind() {
	case reflect.Int32, reflect.Uint32:
		return wasm.ValI32, true
	case reflect.Int64, reflect.Uint64:
		return wasm.ValI64, true
	case reflect.Float32:
		return wasm.ValF32, true
	case reflect.Float64:
		return wasm.ValF64, true
	}
	return 0, false
}

// adapt wraps a Go function in an engine.HostFunc.
func adapt(name string, fn reflect.Value) (*HostFunc, error) {
	if fn.Kind() != reflect.Func {
		return nil, errors.New(errors.PhaseLink, errors.KindInvalidInput).
			Path(name).
			Detail("handler must be a function, got %s", fn.Kind()).
			Build()
	}
	ft := fn.Type()

	in := 0
	withCtx := ft.NumIn() > 0 && ft.In(0) == contextType
	if withCtx {
		in = 1
	}
	var sig wasm.FuncType
	for i := in; i < ft.NumIn(); i++ {
		vt, ok := valTypeOf(ft.In(i))
		if !ok {
			return nil, unsupportedType(name, ft.In(i))
		}
		sig.Params = append(sig.Params, vt)
	}
	out := ft.NumOut()
	withErr := out > 0 && ft.Out(out-1) == errorType
	if withErr {
		out--
	}
	for i := 0; i < out; i++ {
		vt, ok := valTypeOf(ft.Out(i))
		if !ok {
			return nil, unsupportedType(name, ft.Out(i))
		}
		sig.Results = append(sig.Results, vt)
	}

	call := func(ctx context.Context, args []engine.Value) ([]engine.Value, error) {
		argv := make([]reflect.Value, 0, ft.NumIn())
		if withCtx {
			argv = append(argv, reflect.ValueOf(ctx))
		}
		for i, a := range args {
			argv = append(argv, toGo(a, ft.In(in+i)))
		}
		outv := fn.Call(argv)
		if withErr {
			if err, _ := outv[out].Interface().(error); err != nil {
				return nil, err
			}
		}
		results := make([]engine.Value, out)
		for i := 0; i < out; i++ {
			results[i] = fromGo(outv[i])
		}
		return results, nil
	}
	return &HostFunc{Name: name, Type: sig, Fn: call}, nil
}

func unsupportedType(name string, t reflect.Type) error {
	return errors.New(errors.PhaseLink, errors.KindUnsupported).
		Path(name).
		Detail("type %s has no value type", t).
		Build()
}

func toGo(v engine.Value, t reflect.Type) reflect.Value {
	switch v := v.(type) {
	case engine.I32:
		return reflect.ValueOf(int32(v)).Convert(t)
	case engine.I64:
		return reflect.ValueOf(int64(v)).Convert(t)
	case engine.F32:
		return reflect.ValueOf(v.Float()).Convert(t)
	case engine.F64:
		return reflect.ValueOf(v.Float()).Convert(t)
	}
	return reflect.Zero(t)
}

func fromGo(v reflect.Value) engine.Value {
	switch v.Kind() {
	case reflect.Int32:
		return engine.I32(v.Int())
	case reflect.Uint32:
		return engine.I32(int32(uint32(v.Uint())))
	case reflect.Int64:
		return engine.I64(v.Int())
	case reflect.Uint64:
		return engine.I64(int64(v.Uint()))
	case reflect.Float32:
		return engine.F32Of(float32(v.Float()))
	case reflect.Float64:
		return engine.F64Of(v.Float())
	}
	return nil
}

// toSnakeCase converts PascalCase to snake_case.
// Handles acronyms: GetHTTPServer -> get_http_server
func toSnakeCase(s string) string {
	if len(s) == 0 {
		return ""
	}

	runes := []rune(s)
	var result strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if unicode.IsUpper(r) {
			acronymEnd := i + 1
			for acronymEnd < len(runes) && unicode.IsUpper(runes[acronymEnd]) {
				acronymEnd++
			}
			// the last capital of a run starts the next word
			if acronymEnd > i+1 && acronymEnd < len(runes) && unicode.IsLower(runes[acronymEnd]) {
				acronymEnd--
			}
			if i > 0 {
				result.WriteByte('_')
			}
			for j := i; j < acronymEnd; j++ {
				result.WriteRune(unicode.ToLower(runes[j]))
			}
			i = acronymEnd - 1
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
