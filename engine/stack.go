package engine

import "github.com/wippyai/wasm-vm/wasm"

// Label is a branch target. Arity is the number of values a branch to it
// carries: the result count for block and if, the parameter count for
// loop. Continuation is the loop body for loops and nil otherwise.
type Label struct {
	Continuation []wasm.Instruction
	Arity        int
}

// Frame is the activation record of a module function.
type Frame struct {
	Module *ModuleInstance
	Locals []Value
	Arity  int
}

func (*Label) isEntry() {}
func (*Frame) isEntry() {}

// Stack is the unified operand and control stack.
type Stack struct {
	entries []Entry
}

// NewStack returns an empty stack.
func NewStack() *Stack {
	return &Stack{entries: make([]Entry, 0, 256)}
}

// Len returns the number of entries.
func (s *Stack) Len() int { return len(s.entries) }

// Entries returns a copy of the entries, bottom first.
func (s *Stack) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Push appends e.
func (s *Stack) Push(e Entry) {
	s.entries = append(s.entries, e)
}

// PushValues appends vals in order.
func (s *Stack) PushValues(vals []Value) {
	for _, v := range vals {
		s.entries = append(s.entries, v)
	}
}

// Pop removes and returns the top entry.
func (s *Stack) Pop() (Entry, bool) {
	n := len(s.entries)
	if n == 0 {
		return nil, false
	}
	e := s.entries[n-1]
	s.entries[n-1] = nil
	s.entries = s.entries[:n-1]
	return e, true
}

// PopValue pops the top entry if it is a Value. The stack is left
// untouched otherwise.
func (s *Stack) PopValue() (Value, bool) {
	n := len(s.entries)
	if n == 0 {
		return nil, false
	}
	v, ok := s.entries[n-1].(Value)
	if !ok {
		return nil, false
	}
	s.entries[n-1] = nil
	s.entries = s.entries[:n-1]
	return v, true
}

// PopI32 pops the top entry if it is an I32.
func (s *Stack) PopI32() (I32, bool) {
	n := len(s.entries)
	if n == 0 {
		return 0, false
	}
	v, ok := s.entries[n-1].(I32)
	if !ok {
		return 0, false
	}
	s.entries[n-1] = nil
	s.entries = s.entries[:n-1]
	return v, true
}

// PopValues pops n values and returns them in the order they were pushed.
// It fails without modifying the stack if fewer than n values sit above
// the nearest Label or Frame.
func (s *Stack) PopValues(n int) ([]Value, bool) {
	top := len(s.entries)
	if n > top {
		return nil, false
	}
	out := make([]Value, n)
	for i := 0; i < n; i++ {
		v, ok := s.entries[top-n+i].(Value)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	s.truncate(top - n)
	return out, true
}

// CurrentFrame returns the nearest Frame without removing anything.
func (s *Stack) CurrentFrame() (*Frame, bool) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if f, ok := s.entries[i].(*Frame); ok {
			return f, true
		}
	}
	return nil, false
}

// LabelAt returns the label at depth d, innermost first, and its position.
// The search does not cross the current Frame.
func (s *Stack) LabelAt(d int) (*Label, int, bool) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		switch e := s.entries[i].(type) {
		case *Label:
			if d == 0 {
				return e, i, true
			}
			d--
		case *Frame:
			return nil, 0, false
		}
	}
	return nil, 0, false
}

// frameIndex returns the position of the nearest Frame.
func (s *Stack) frameIndex() (int, bool) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if _, ok := s.entries[i].(*Frame); ok {
			return i, true
		}
	}
	return 0, false
}

func (s *Stack) truncate(n int) {
	clear(s.entries[n:])
	s.entries = s.entries[:n]
}
