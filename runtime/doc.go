// Package runtime is the high-level API: decode, validate, link and call.
//
// # Quick Start
//
//	rt := runtime.New(runtime.DefaultOptions())
//	rt.RegisterFunc("env", "print_i32", func(v int32) { fmt.Println(v) })
//
//	inst, err := rt.Instantiate(ctx, wasmBytes, "app")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	results, err := inst.Call(ctx, "add", engine.I32(1), engine.I32(2))
//
// # Loading
//
// Load decodes a binary module and runs the validator over it; LoadModule
// accepts a module that is already decoded. Both return a Module that can
// be instantiated many times in the same Runtime.
//
// # Host Functions
//
// Typed Go functions are adapted by reflection. int32 and uint32 map to
// i32, int64 and uint64 to i64, float32 and float64 to f32 and f64. A
// leading context.Context receives the caller's context and a trailing
// error traps the calling code:
//
//	rt.RegisterFunc("env", "div", func(a, b int32) (int32, error) { ... })
//
// RegisterHost registers every exported method of a struct, converting
// PascalCase method names to snake_case:
//
//	type env struct{}
//	func (env) Namespace() string     { return "env" }
//	func (env) PrintI32(v int32)      { fmt.Println(v) }
//
// Host modules are built into the Store the next time a module is
// instantiated.
//
// # Errors
//
// Failures keep their phase: decoding errors are errors.PhaseParse,
// rejected modules errors.PhaseValidate (one error per failing function,
// see multierr.Errors), import and start-function failures
// errors.PhaseLink, and traps match engine.ErrTrap.
package runtime
