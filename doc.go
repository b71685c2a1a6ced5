// Package wasmvm is an interpreter for WebAssembly core modules built around
// an explicit operand and control stack.
//
// # Architecture Overview
//
//	wasmvm/          Memory interfaces shared by embedders
//	├── wasm/        Binary decoder and encoder, structural checks, opcodes
//	├── validate/    Static type checking of function bodies and modules
//	├── engine/      Store, stack machine and instruction execution
//	├── linker/      Module registry, import resolution, instantiation
//	├── runtime/     High-level API: load, instantiate, call
//	├── errors/      Structured errors with phase and kind
//	└── cmd/run      Command-line runner
//
// # Quick Start
//
//	rt := runtime.New(runtime.DefaultOptions())
//	inst, err := rt.Instantiate(ctx, wasmBytes, "app")
//	if err != nil {
//	    return err
//	}
//	results, err := inst.Call(ctx, "main")
//
// # Execution Model
//
// Every function body is a tree: block, loop and if carry their nested
// instructions. The engine runs a body against one Stack holding values,
// labels and frames, and each instruction reports how control continues:
// fall through, branch to an enclosing label, or return. Traps are plain
// errors matching engine.ErrTrap and unwind the whole invocation.
//
// Modules are validated before instantiation, so the engine only traps on
// conditions that depend on runtime values.
package wasmvm
