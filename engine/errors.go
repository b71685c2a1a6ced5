package engine

import "github.com/wippyai/wasm-vm/errors"

// ErrTrap matches every runtime trap with errors.Is.
var ErrTrap = errors.Sentinel(errors.PhaseRuntime, errors.KindTrap)

func trap(detail string, args ...any) error {
	return errors.Trap(detail, args...)
}

var (
	errStackUnderflow = errors.Trap("operand stack underflow or type mismatch")
	errNoFrame        = errors.Trap("no active frame")
	errOutOfBounds    = errors.Trap("out of bounds memory access")
)
