package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseParse    Phase = "parse"    // binary decoding
	PhaseValidate Phase = "validate" // static type checking
	PhaseLink     Phase = "link"     // import resolution and instantiation
	PhaseRuntime  Phase = "runtime"  // execution
)

// Kind categorizes the error
type Kind string

// Runtime kinds. Every execution failure is a trap.
const (
	KindTrap Kind = "trap"
)

// Validation kinds.
const (
	KindNoLocalFound             Kind = "no_local_found"
	KindInsufficientOperandStack Kind = "insufficient_operand_stack_for_instruction"
	KindCannotFindRefFunc        Kind = "cannot_find_ref_func_in_validation_context"
	KindUnknownLabel             Kind = "unknown_label"
	KindUnknownIndex             Kind = "unknown_index"
	KindImmutableGlobal          Kind = "immutable_global"
	KindInvalidAlignment         Kind = "invalid_alignment"
)

// Link kinds.
const (
	KindModuleNotFound     Kind = "module_not_found"
	KindImportNotFound     Kind = "import_not_found"
	KindImportTypeMismatch Kind = "import_type_mismatch"
	KindInstantiation      Kind = "instantiation"
	KindNotFound           Kind = "not_found"
)

// Shared kinds.
const (
	KindInvalidData  Kind = "invalid_data"
	KindUnsupported  Kind = "unsupported"
	KindInvalidInput Kind = "invalid_input"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// Two errors match when Phase and Kind are equal.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Sentinel returns a bare error usable as an errors.Is target.
func Sentinel(phase Phase, kind Kind) *Error {
	return &Error{Phase: phase, Kind: kind}
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the location path, e.g. "func[3]", "instr[12]"
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Trap creates a runtime trap
func Trap(detail string, args ...any) *Error {
	return New(PhaseRuntime, KindTrap).Detail(detail, args...).Build()
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}

// IsPhase reports whether any *Error in err's tree was raised in the given phase.
func IsPhase(err error, phase Phase) bool {
	switch e := err.(type) {
	case nil:
		return false
	case *Error:
		if e.Phase == phase {
			return true
		}
		return IsPhase(e.Cause, phase)
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if IsPhase(inner, phase) {
				return true
			}
		}
		return false
	case interface{ Unwrap() error }:
		return IsPhase(e.Unwrap(), phase)
	}
	return false
}
