// Package errors provides structured error types for the wasm-vm module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// Runtime failures have a single kind, KindTrap. Validation failures use the
// validation kinds (KindNoLocalFound, KindInsufficientOperandStack,
// KindCannotFindRefFunc and the index/label kinds).
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseValidate, errors.KindNoLocalFound).
//		Path("func[2]", "instr[7]").
//		Detail("local index %d out of range", 9).
//		Build()
//
// Error.Is compares Phase and Kind only, so a bare value works as an errors.Is target:
//
//	if errors.Is(err, errors.Sentinel(errors.PhaseRuntime, errors.KindTrap)) { ... }
package errors
