// Package engine is the WebAssembly interpreter: runtime values, the unified
// operand/control stack, the Store of runtime resources and the Executor.
//
// # Data model
//
// Value is a closed sum type: I32, I64, F32, F64 (floats kept as raw bits),
// V128, and the references NullRef, FuncRef and ExternRef. The Stack holds
// Values together with *Label and *Frame entries:
//
//	Frame  locals + owning ModuleInstance + result arity, one per call
//	Label  branch target; arity = results for block/if, params for loop
//
// The Store owns functions, tables, memories, globals, element segments and
// data segments. Its collections only grow, so an Addr stays valid for the
// Store's lifetime. A ModuleInstance maps module-local indices to Addrs and
// is shared by the functions it defines and the frames running them.
//
// # Control flow
//
// Every instruction handler returns an Exit alongside its error:
//
//	ExitNormal    continue with the next instruction
//	ExitBranch    br/br_if/br_table to the label at Exit.Depth
//	ExitReturned  return has already unwound the frame
//
// br moves the target label's arity values over everything down to and
// including the label before signalling ExitBranch. A block receiving
// Branch(0) simply ends; a loop re-enters its body; deeper branches are
// passed outward with the depth reduced by one. Returned passes through
// every enclosing block up to the call.
//
// # Traps
//
// Every runtime failure is a trap matching ErrTrap with errors.Is. A trap
// aborts the whole invocation and Invoke restores the stack to its height
// at entry.
//
// # Usage
//
//	store := engine.NewStore()
//	exec := engine.NewExecutor(store, engine.DefaultOptions())
//	results, err := exec.Invoke(ctx, addr, []engine.Value{engine.I32(2)})
//	if errors.Is(err, engine.ErrTrap) {
//	    ...
//	}
//
// Modules are normally instantiated into a Store by the linker package.
package engine
