// Package linker registers module instances by name and instantiates
// modules against them.
//
// # Main Types
//
//   - Linker: the module registry over one engine.Store and Executor
//   - HostModuleBuilder: defines Go-implemented modules to import from
//
// # Thread Safety
//
// Registration and lookup are safe for concurrent use. Instantiate runs the
// start function on the shared Executor and must not run concurrently.
//
// # Import Resolution
//
// Imports are resolved in declaration order and the first failure wins:
//
//  1. the module name must be registered (ErrModuleNotFound)
//  2. the module must export the name (ErrImportNotFound)
//  3. the export kind and type must match (ErrImportTypeMismatch)
//
// Functions need identical signatures, globals identical value type and
// mutability, tables the same element type, and tables and memories limits
// that fit the import's limits.
//
// # Example
//
//	l := linker.New(engine.NewExecutor(engine.NewStore(), engine.DefaultOptions()))
//	l.NewHostModule("env").Func("log", sig, logFn).Build()
//	inst, err := l.Instantiate(ctx, module, "app")
package linker
