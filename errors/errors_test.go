package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/multierr"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseValidate,
				Kind:   KindInsufficientOperandStack,
				Path:   []string{"func[3]", "instr[12]"},
				Detail: "i32.add needs 2 operands",
			},
			contains: []string{"[validate]", "insufficient_operand_stack_for_instruction", "func[3].instr[12]", "i32.add needs 2 operands"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseRuntime,
				Kind:  KindTrap,
			},
			contains: []string{"[runtime]", "trap"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseLink,
				Kind:   KindInstantiation,
				Detail: "start function failed",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[link]", "instantiation", "start function failed", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(PhaseLink, KindInstantiation, cause, "start")

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if (&Error{Phase: PhaseParse}).Unwrap() != nil {
		t.Error("Unwrap without cause should be nil")
	}
}

func TestError_IsMatchesPhaseAndKind(t *testing.T) {
	trap := Trap("integer divide by zero")
	if !errors.Is(trap, Sentinel(PhaseRuntime, KindTrap)) {
		t.Error("trap should match runtime/trap sentinel")
	}
	if errors.Is(trap, Sentinel(PhaseValidate, KindTrap)) {
		t.Error("trap should not match a different phase")
	}
	if errors.Is(trap, Sentinel(PhaseRuntime, KindUnsupported)) {
		t.Error("trap should not match a different kind")
	}

	wrapped := fmt.Errorf("call main: %w", trap)
	if !errors.Is(wrapped, Sentinel(PhaseRuntime, KindTrap)) {
		t.Error("fmt-wrapped trap should still match")
	}

	var target *Error
	if !errors.As(wrapped, &target) || target.Detail != "integer divide by zero" {
		t.Errorf("errors.As failed: %+v", target)
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("bad byte")
	err := New(PhaseValidate, KindUnknownLabel).
		Path("func[0]", "br").
		Value(uint32(7)).
		Cause(cause).
		Detail("label %d out of range", 7).
		Build()

	if err.Phase != PhaseValidate || err.Kind != KindUnknownLabel {
		t.Errorf("unexpected phase/kind: %s/%s", err.Phase, err.Kind)
	}
	if len(err.Path) != 2 || err.Path[1] != "br" {
		t.Errorf("unexpected path: %v", err.Path)
	}
	if err.Value != uint32(7) {
		t.Errorf("unexpected value: %v", err.Value)
	}
	if err.Detail != "label 7 out of range" {
		t.Errorf("unexpected detail: %q", err.Detail)
	}
	if !errors.Is(err, cause) {
		t.Error("builder cause not wrapped")
	}

	plain := New(PhaseParse, KindInvalidData).Detail("%%d literal").Build()
	if plain.Detail != "%%d literal" {
		t.Errorf("detail without args must not be formatted: %q", plain.Detail)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name  string
		err   *Error
		phase Phase
		kind  Kind
		text  string
	}{
		{"trap", Trap("out of bounds memory access at %d", 65536), PhaseRuntime, KindTrap, "65536"},
		{"unsupported", Unsupported(PhaseParse, "opcode 0xfe"), PhaseParse, KindUnsupported, "opcode 0xfe"},
		{"invalid data", InvalidData(PhaseParse, []string{"code"}, "size mismatch"), PhaseParse, KindInvalidData, "code: size mismatch"},
		{"not found", NotFound(PhaseLink, "export", "main"), PhaseLink, KindNotFound, `export "main" not found`},
		{"invalid input", InvalidInput(PhaseRuntime, "argument count"), PhaseRuntime, KindInvalidInput, "argument count"},
		{"parse failed", ParseFailed("module", errors.New("eof")), PhaseParse, KindInvalidData, "parse module"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Phase != tt.phase || tt.err.Kind != tt.kind {
				t.Errorf("got %s/%s, want %s/%s", tt.err.Phase, tt.err.Kind, tt.phase, tt.kind)
			}
			if !strings.Contains(tt.err.Error(), tt.text) {
				t.Errorf("%q does not contain %q", tt.err.Error(), tt.text)
			}
		})
	}
}

func TestIsPhase(t *testing.T) {
	trap := Trap("unreachable")
	link := Wrap(PhaseLink, KindInstantiation, trap, "start function")

	if !IsPhase(link, PhaseLink) {
		t.Error("link error should be in link phase")
	}
	if !IsPhase(link, PhaseRuntime) {
		t.Error("wrapped trap should be found through Cause")
	}
	if IsPhase(link, PhaseValidate) {
		t.Error("no validate error in tree")
	}
	if IsPhase(nil, PhaseParse) {
		t.Error("nil error has no phase")
	}
	if IsPhase(errors.New("plain"), PhaseParse) {
		t.Error("plain error has no phase")
	}

	combined := multierr.Combine(
		errors.New("plain"),
		New(PhaseValidate, KindNoLocalFound).Build(),
	)
	if !IsPhase(combined, PhaseValidate) {
		t.Error("IsPhase should search multierr members")
	}
	if !IsPhase(fmt.Errorf("outer: %w", combined), PhaseValidate) {
		t.Error("IsPhase should search through single wrappers")
	}
}
