package engine

// SelectOrder decides which operand select keeps when its condition is
// nonzero. The condition is popped first, then two operands.
type SelectOrder uint8

const (
	// SelectTopOnTrue keeps the first operand popped (the one pushed last).
	SelectTopOnTrue SelectOrder = iota
	// SelectBottomOnTrue keeps the operand pushed first, matching wazero
	// and compiler output for the core binary format.
	SelectBottomOnTrue
)

func (o SelectOrder) String() string {
	if o == SelectBottomOnTrue {
		return "bottom-on-true"
	}
	return "top-on-true"
}

// Options configures an Executor.
type Options struct {
	// MaxCallDepth bounds nested calls; exceeding it traps.
	MaxCallDepth int
	Select       SelectOrder
}

// DefaultOptions returns the default executor configuration.
func DefaultOptions() Options {
	return Options{MaxCallDepth: 1000, Select: SelectTopOnTrue}
}
