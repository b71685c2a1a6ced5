// Package validate type-checks modules before instantiation.
//
// Function walks a structured body keeping an operand type stack and a stack
// of control frames, one per enclosing block, loop, if or else arm plus one
// for the function itself. Each frame records its label types and the
// operand height at entry. After unreachable, br, br_table or return the
// current frame turns unreachable: its operands are discarded and pops below
// its entry height produce an unknown type that matches anything. Leaving
// the frame checks the declared results again and clears the state.
//
// Errors carry the validate phase and one of the validation kinds:
//
//	ErrNoLocalFound             local index out of range
//	ErrInsufficientOperandStack too few operands, or operands of the wrong type
//	ErrCannotFindRefFunc        ref.func names an undeclared function
//
// plus ErrUnknownLabel, ErrUnknownIndex, ErrImmutableGlobal,
// ErrInvalidAlignment and ErrUnsupported for the rest of the instruction set.
//
// Module runs the structural checks, every constant expression and every
// function, and joins the failures with go.uber.org/multierr.
package validate
