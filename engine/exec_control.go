package engine

import "github.com/wippyai/wasm-vm/wasm"

func init() {
	register(wasm.OpUnreachable, "unreachable", execUnreachable)
	register(wasm.OpNop, "nop", func(*Executor, *wasm.Instruction) (Exit, error) { return normal, nil })
	register(wasm.OpBlock, "block", execBlock)
	register(wasm.OpLoop, "loop", execLoop)
	register(wasm.OpIf, "if", execIf)
	register(wasm.OpBr, "br", execBr)
	register(wasm.OpBrIf, "br_if", execBrIf)
	register(wasm.OpBrTable, "br_table", execBrTable)
	register(wasm.OpReturn, "return", execReturn)
	register(wasm.OpCall, "call", execCall)
	register(wasm.OpCallIndirect, "call_indirect", execCallIndirect)
	register(wasm.OpDrop, "drop", execDrop)
	registerBulk([]byte{wasm.OpSelect, wasm.OpSelectType}, "select", execSelect)
}

func execUnreachable(*Executor, *wasm.Instruction) (Exit, error) {
	return normal, trap("unreachable")
}

func execBlock(e *Executor, in *wasm.Instruction) (Exit, error) {
	return e.structured(in, in.Body, false)
}

func execLoop(e *Executor, in *wasm.Instruction) (Exit, error) {
	return e.structured(in, in.Body, true)
}

func execIf(e *Executor, in *wasm.Instruction) (Exit, error) {
	cond, ok := e.stack.PopI32()
	if !ok {
		return normal, errStackUnderflow
	}
	body := in.Body
	if cond == 0 {
		body = in.Else
	}
	return e.structured(in, body, false)
}

// structured runs body under a fresh label. Branch(0) ends a block and
// restarts a loop; deeper branches propagate one level shallower.
func (e *Executor) structured(in *wasm.Instruction, body []wasm.Instruction, loop bool) (Exit, error) {
	params, results, err := e.blockType(in)
	if err != nil {
		return normal, err
	}
	label := &Label{Arity: len(results)}
	if loop {
		label.Arity = len(params)
		label.Continuation = body
	}

	seq := body
	for {
		args, ok := e.stack.PopValues(len(params))
		if !ok {
			return normal, errStackUnderflow
		}
		height := e.stack.Len()
		e.stack.Push(label)
		e.stack.PushValues(args)

		exit, err := e.runSeq(seq)
		if err != nil {
			return exit, err
		}
		switch {
		case exit.Kind == ExitNormal:
			return normal, e.endLabel(label, height, len(results))
		case exit.Kind == ExitReturned:
			return exit, nil
		case exit.Depth > 0:
			return Exit{Kind: ExitBranch, Depth: exit.Depth - 1}, nil
		case !loop:
			return normal, nil
		}
		seq = label.Continuation
	}
}

// endLabel removes label from below its n result values.
func (e *Executor) endLabel(label *Label, height, n int) error {
	vals, ok := e.stack.PopValues(n)
	if !ok || e.stack.Len() <= height || e.stack.entries[height] != Entry(label) {
		return errStackUnderflow
	}
	e.stack.truncate(height)
	e.stack.PushValues(vals)
	return nil
}

func (e *Executor) blockType(in *wasm.Instruction) (params, results []wasm.ValType, err error) {
	imm, ok := in.Imm.(wasm.BlockImm)
	if !ok {
		return nil, nil, trap("missing block type")
	}
	var types []wasm.FuncType
	if e.frame != nil && e.frame.Module != nil {
		types = e.frame.Module.Types
	}
	params, results, ok = wasm.BlockSignature(types, imm.Type)
	if !ok {
		return nil, nil, trap("invalid block type %d", imm.Type)
	}
	return params, results, nil
}

// branch carries the target label's arity values over everything down to
// and including the label.
func (e *Executor) branch(d int) (Exit, error) {
	label, idx, ok := e.stack.LabelAt(d)
	if !ok {
		return normal, trap("unknown label %d", d)
	}
	vals, ok := e.stack.PopValues(label.Arity)
	if !ok || e.stack.Len() < idx {
		return normal, errStackUnderflow
	}
	e.stack.truncate(idx)
	e.stack.PushValues(vals)
	return Exit{Kind: ExitBranch, Depth: d}, nil
}

func execBr(e *Executor, in *wasm.Instruction) (Exit, error) {
	imm, _ := in.Imm.(wasm.BranchImm)
	return e.branch(int(imm.LabelIdx))
}

func execBrIf(e *Executor, in *wasm.Instruction) (Exit, error) {
	cond, ok := e.stack.PopI32()
	if !ok {
		return normal, errStackUnderflow
	}
	if cond == 0 {
		return normal, nil
	}
	imm, _ := in.Imm.(wasm.BranchImm)
	return e.branch(int(imm.LabelIdx))
}

// BrTableTarget picks the label for index i: labels[i] when in range,
// def otherwise.
func BrTableTarget(labels []uint32, def uint32, i uint32) uint32 {
	if uint64(i) < uint64(len(labels)) {
		return labels[i]
	}
	return def
}

func execBrTable(e *Executor, in *wasm.Instruction) (Exit, error) {
	i, ok := e.stack.PopI32()
	if !ok {
		return normal, errStackUnderflow
	}
	imm, _ := in.Imm.(wasm.BrTableImm)
	return e.branch(int(BrTableTarget(imm.Labels, imm.Default, uint32(i))))
}

func execReturn(e *Executor, _ *wasm.Instruction) (Exit, error) {
	idx, ok := e.stack.frameIndex()
	if !ok {
		return normal, errNoFrame
	}
	arity := e.stack.entries[idx].(*Frame).Arity
	vals, ok := e.stack.PopValues(arity)
	if !ok || e.stack.Len() < idx {
		return normal, errStackUnderflow
	}
	e.stack.truncate(idx)
	e.stack.PushValues(vals)
	return Exit{Kind: ExitReturned}, nil
}

func execCall(e *Executor, in *wasm.Instruction) (Exit, error) {
	m, err := e.module()
	if err != nil {
		return normal, err
	}
	imm, _ := in.Imm.(wasm.CallImm)
	if int(imm.FuncIdx) >= len(m.FuncAddrs) {
		return normal, trap("call to undefined function %d", imm.FuncIdx)
	}
	return normal, e.call(m.FuncAddrs[imm.FuncIdx])
}

func execCallIndirect(e *Executor, in *wasm.Instruction) (Exit, error) {
	m, err := e.module()
	if err != nil {
		return normal, err
	}
	imm, _ := in.Imm.(wasm.CallIndirectImm)
	if int(imm.TypeIdx) >= len(m.Types) {
		return normal, trap("call_indirect type %d out of range", imm.TypeIdx)
	}
	tab, err := e.table(imm.TableIdx)
	if err != nil {
		return normal, err
	}
	i, ok := e.stack.PopI32()
	if !ok {
		return normal, errStackUnderflow
	}
	if uint64(uint32(i)) >= uint64(len(tab.Elems)) {
		return normal, trap("undefined element %d", uint32(i))
	}
	ref, ok := tab.Elems[uint32(i)].(FuncRef)
	if !ok {
		return normal, trap("uninitialized element %d", uint32(i))
	}
	addr := Addr(ref)
	if int(addr) >= len(e.store.Funcs) {
		return normal, trap("call to undefined function %d", addr)
	}
	if !e.store.Funcs[addr].FuncType().Equal(m.Types[imm.TypeIdx]) {
		return normal, trap("indirect call type mismatch")
	}
	return normal, e.call(addr)
}

func execDrop(e *Executor, _ *wasm.Instruction) (Exit, error) {
	if _, ok := e.stack.PopValue(); !ok {
		return normal, errStackUnderflow
	}
	return normal, nil
}

// execSelect pops the condition, then val1, then val2.
func execSelect(e *Executor, _ *wasm.Instruction) (Exit, error) {
	cond, ok := e.stack.PopI32()
	if !ok {
		return normal, errStackUnderflow
	}
	val1, ok1 := e.stack.PopValue()
	val2, ok2 := e.stack.PopValue()
	if !ok1 || !ok2 {
		return normal, errStackUnderflow
	}
	if e.opts.Select == SelectBottomOnTrue {
		val1, val2 = val2, val1
	}
	if cond != 0 {
		e.stack.Push(val1)
	} else {
		e.stack.Push(val2)
	}
	return normal, nil
}
