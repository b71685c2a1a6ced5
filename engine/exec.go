package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-vm/errors"
	"github.com/wippyai/wasm-vm/wasm"
)

// ExitKind tells how an instruction sequence finished.
type ExitKind uint8

const (
	ExitNormal   ExitKind = iota // fell through to the end
	ExitReturned                 // return unwound the current frame
	ExitBranch                   // br to the label at Exit.Depth
)

// Exit is the control-transfer result threaded through nested sequences.
type Exit struct {
	Kind  ExitKind
	Depth int
}

var normal = Exit{}

// opHandler executes one instruction.
type opHandler func(e *Executor, in *wasm.Instruction) (Exit, error)

// Opcode dispatch table, filled by the register calls in init functions.
var (
	handlers [256]opHandler
	opNames  [256]string
)

func register(op byte, name string, h opHandler) {
	handlers[op] = h
	opNames[op] = name
}

func registerBulk(ops []byte, name string, h opHandler) {
	for _, op := range ops {
		register(op, name, h)
	}
}

// Executor interprets function bodies against a Store. It is not safe for
// concurrent use.
type Executor struct {
	ctx   context.Context
	store *Store
	stack *Stack
	frame *Frame
	opts  Options
	depth int
	// fault names the innermost instruction of the current trap.
	fault string
}

// NewExecutor returns an executor over store.
func NewExecutor(store *Store, opts Options) *Executor {
	if opts.MaxCallDepth <= 0 {
		opts.MaxCallDepth = DefaultOptions().MaxCallDepth
	}
	return &Executor{
		ctx:   context.Background(),
		store: store,
		stack: NewStack(),
		opts:  opts,
	}
}

// Stack returns the executor's stack.
func (e *Executor) Stack() *Stack { return e.stack }

// Store returns the store the executor runs against.
func (e *Executor) Store() *Store { return e.store }

// Invoke calls the function at addr with args and returns its results.
// A trap unwinds everything the call pushed.
func (e *Executor) Invoke(ctx context.Context, addr Addr, args []Value) ([]Value, error) {
	if int(addr) >= len(e.store.Funcs) {
		return nil, errors.InvalidInput(errors.PhaseRuntime, "function address out of range")
	}
	ft := e.store.Funcs[addr].FuncType()
	if !CheckTypes(args, ft.Params) {
		return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Detail("arguments %v do not match parameters %v", args, ft.Params).Build()
	}

	savedCtx, savedFrame, savedFault, base := e.ctx, e.frame, e.fault, e.stack.Len()
	e.ctx, e.fault = ctx, ""
	defer func() {
		e.ctx, e.frame, e.fault = savedCtx, savedFrame, savedFault
	}()

	log := Logger()
	log.Debug("invoke", zap.Uint32("addr", uint32(addr)), zap.Int("args", len(args)))

	e.stack.PushValues(args)
	if err := e.call(addr); err != nil {
		e.stack.truncate(base)
		log.Debug("trap", zap.Uint32("addr", uint32(addr)), zap.String("op", e.fault), zap.Error(err))
		return nil, err
	}
	results, ok := e.stack.PopValues(len(ft.Results))
	if !ok || e.stack.Len() != base {
		e.stack.truncate(base)
		return nil, errStackUnderflow
	}
	log.Debug("return", zap.Uint32("addr", uint32(addr)), zap.Int("results", len(results)))
	return results, nil
}

func (e *Executor) call(addr Addr) error {
	if int(addr) >= len(e.store.Funcs) {
		return trap("call to undefined function %d", addr)
	}
	if e.depth >= e.opts.MaxCallDepth {
		return trap("call stack exhausted")
	}
	e.depth++
	defer func() { e.depth-- }()

	switch f := e.store.Funcs[addr].(type) {
	case *ModuleFunc:
		return e.callModule(f)
	case *HostFuncInst:
		return e.callHost(f)
	}
	return trap("unknown function kind")
}

func (e *Executor) callModule(f *ModuleFunc) error {
	args, ok := e.stack.PopValues(len(f.Type.Params))
	if !ok {
		return errStackUnderflow
	}
	locals := make([]Value, len(args)+len(f.Locals))
	copy(locals, args)
	for i, t := range f.Locals {
		z, ok := Zero(t)
		if !ok {
			return trap("local of unknown type %s", t)
		}
		locals[len(args)+i] = z
	}

	frame := &Frame{Module: f.Module, Locals: locals, Arity: len(f.Type.Results)}
	height := e.stack.Len()
	e.stack.Push(frame)
	e.stack.Push(&Label{Arity: frame.Arity})

	caller := e.frame
	e.frame = frame
	exit, err := e.runSeq(f.Body)
	e.frame = caller
	if err != nil {
		return err
	}
	switch exit.Kind {
	case ExitReturned:
		return nil
	case ExitBranch:
		if exit.Depth != 0 {
			return trap("branch depth escapes function")
		}
	}
	return e.unwind(height, frame.Arity)
}

func (e *Executor) callHost(f *HostFuncInst) error {
	args, ok := e.stack.PopValues(len(f.Type.Params))
	if !ok {
		return errStackUnderflow
	}
	results, err := f.Fn(e.ctx, args)
	if err != nil {
		return errors.New(errors.PhaseRuntime, errors.KindTrap).
			Detail("host function %s failed", f.Name).Cause(err).Build()
	}
	if !CheckTypes(results, f.Type.Results) {
		return trap("host function %s returned %v, want %v", f.Name, results, f.Type.Results)
	}
	e.stack.PushValues(results)
	return nil
}

// unwind keeps the top arity values and drops everything from height up.
func (e *Executor) unwind(height, arity int) error {
	vals, ok := e.stack.PopValues(arity)
	if !ok || e.stack.Len() < height {
		return errStackUnderflow
	}
	e.stack.truncate(height)
	e.stack.PushValues(vals)
	return nil
}

func (e *Executor) runSeq(body []wasm.Instruction) (Exit, error) {
	for i := range body {
		in := &body[i]
		h := handlers[in.Opcode]
		if h == nil {
			return normal, trap("unsupported opcode 0x%02x", in.Opcode)
		}
		exit, err := h(e, in)
		if err != nil {
			if e.fault == "" {
				e.fault = opNames[in.Opcode]
			}
			return exit, err
		}
		if exit.Kind != ExitNormal {
			return exit, nil
		}
	}
	return normal, nil
}

// module returns the module of the running frame.
func (e *Executor) module() (*ModuleInstance, error) {
	if e.frame == nil || e.frame.Module == nil {
		return nil, errNoFrame
	}
	return e.frame.Module, nil
}
