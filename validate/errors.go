package validate

import (
	"fmt"

	"github.com/wippyai/wasm-vm/errors"
)

// Sentinels for errors.Is. Every validation error matches exactly one.
var (
	ErrNoLocalFound             = errors.Sentinel(errors.PhaseValidate, errors.KindNoLocalFound)
	ErrInsufficientOperandStack = errors.Sentinel(errors.PhaseValidate, errors.KindInsufficientOperandStack)
	ErrCannotFindRefFunc        = errors.Sentinel(errors.PhaseValidate, errors.KindCannotFindRefFunc)
	ErrUnknownLabel             = errors.Sentinel(errors.PhaseValidate, errors.KindUnknownLabel)
	ErrUnknownIndex             = errors.Sentinel(errors.PhaseValidate, errors.KindUnknownIndex)
	ErrImmutableGlobal          = errors.Sentinel(errors.PhaseValidate, errors.KindImmutableGlobal)
	ErrInvalidAlignment         = errors.Sentinel(errors.PhaseValidate, errors.KindInvalidAlignment)
	ErrUnsupported              = errors.Sentinel(errors.PhaseValidate, errors.KindUnsupported)
)

func fail(kind errors.Kind, format string, args ...any) error {
	return errors.New(errors.PhaseValidate, kind).Detail(format, args...).Build()
}

func opName(op byte) string {
	return fmt.Sprintf("opcode 0x%02x", op)
}

func insufficient(op byte, format string, args ...any) error {
	return fail(errors.KindInsufficientOperandStack, "%s: %s", opName(op), fmt.Sprintf(format, args...))
}

func unknownIndex(space string, idx uint32) error {
	return fail(errors.KindUnknownIndex, "unknown %s %d", space, idx)
}
