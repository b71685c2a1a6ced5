package engine

import "github.com/wippyai/wasm-vm/wasm"

func init() {
	register(wasm.OpLocalGet, "local.get", execLocalGet)
	register(wasm.OpLocalSet, "local.set", execLocalSet)
	register(wasm.OpLocalTee, "local.tee", execLocalTee)
	register(wasm.OpGlobalGet, "global.get", execGlobalGet)
	register(wasm.OpGlobalSet, "global.set", execGlobalSet)
	register(wasm.OpRefNull, "ref.null", execRefNull)
	register(wasm.OpRefIsNull, "ref.is_null", execRefIsNull)
	register(wasm.OpRefFunc, "ref.func", execRefFunc)
	register(wasm.OpTableGet, "table.get", execTableGet)
	register(wasm.OpTableSet, "table.set", execTableSet)
}

func (e *Executor) local(in *wasm.Instruction) (int, error) {
	if e.frame == nil {
		return 0, errNoFrame
	}
	imm, _ := in.Imm.(wasm.LocalImm)
	if int(imm.LocalIdx) >= len(e.frame.Locals) {
		return 0, trap("local %d out of range", imm.LocalIdx)
	}
	return int(imm.LocalIdx), nil
}

func execLocalGet(e *Executor, in *wasm.Instruction) (Exit, error) {
	i, err := e.local(in)
	if err != nil {
		return normal, err
	}
	e.stack.Push(e.frame.Locals[i])
	return normal, nil
}

func execLocalSet(e *Executor, in *wasm.Instruction) (Exit, error) {
	i, err := e.local(in)
	if err != nil {
		return normal, err
	}
	v, ok := e.stack.PopValue()
	if !ok {
		return normal, errStackUnderflow
	}
	e.frame.Locals[i] = v
	return normal, nil
}

func execLocalTee(e *Executor, in *wasm.Instruction) (Exit, error) {
	i, err := e.local(in)
	if err != nil {
		return normal, err
	}
	v, ok := e.stack.PopValue()
	if !ok {
		return normal, errStackUnderflow
	}
	e.frame.Locals[i] = v
	e.stack.Push(v)
	return normal, nil
}

func (e *Executor) global(in *wasm.Instruction) (*GlobalInst, error) {
	m, err := e.module()
	if err != nil {
		return nil, err
	}
	imm, _ := in.Imm.(wasm.GlobalImm)
	if int(imm.GlobalIdx) >= len(m.GlobalAddrs) {
		return nil, trap("global %d out of range", imm.GlobalIdx)
	}
	return e.store.Globals[m.GlobalAddrs[imm.GlobalIdx]], nil
}

func execGlobalGet(e *Executor, in *wasm.Instruction) (Exit, error) {
	g, err := e.global(in)
	if err != nil {
		return normal, err
	}
	e.stack.Push(g.Value)
	return normal, nil
}

func execGlobalSet(e *Executor, in *wasm.Instruction) (Exit, error) {
	g, err := e.global(in)
	if err != nil {
		return normal, err
	}
	v, ok := e.stack.PopValue()
	if !ok || v.Type() != g.Type.ValType {
		return normal, errStackUnderflow
	}
	if !g.Type.Mutable {
		return normal, trap("global is immutable")
	}
	g.Value = v
	return normal, nil
}

func execRefNull(e *Executor, in *wasm.Instruction) (Exit, error) {
	imm, _ := in.Imm.(wasm.RefNullImm)
	e.stack.Push(NullRef{RefType: imm.Type})
	return normal, nil
}

func execRefIsNull(e *Executor, _ *wasm.Instruction) (Exit, error) {
	v, ok := e.stack.PopValue()
	if !ok {
		return normal, errStackUnderflow
	}
	r, ok := v.(Ref)
	if !ok {
		return normal, errStackUnderflow
	}
	e.stack.Push(boolI32(IsNull(r)))
	return normal, nil
}

func execRefFunc(e *Executor, in *wasm.Instruction) (Exit, error) {
	m, err := e.module()
	if err != nil {
		return normal, err
	}
	imm, _ := in.Imm.(wasm.RefFuncImm)
	if int(imm.FuncIdx) >= len(m.FuncAddrs) {
		return normal, trap("function %d out of range", imm.FuncIdx)
	}
	e.stack.Push(FuncRef(m.FuncAddrs[imm.FuncIdx]))
	return normal, nil
}

func (e *Executor) table(idx uint32) (*TableInst, error) {
	m, err := e.module()
	if err != nil {
		return nil, err
	}
	if int(idx) >= len(m.TableAddrs) {
		return nil, trap("table %d out of range", idx)
	}
	return e.store.Tables[m.TableAddrs[idx]], nil
}

func (e *Executor) popRef() (Ref, bool) {
	v, ok := e.stack.PopValue()
	if !ok {
		return nil, false
	}
	r, ok := v.(Ref)
	return r, ok
}

func execTableGet(e *Executor, in *wasm.Instruction) (Exit, error) {
	imm, _ := in.Imm.(wasm.TableImm)
	tab, err := e.table(imm.TableIdx)
	if err != nil {
		return normal, err
	}
	i, ok := e.stack.PopI32()
	if !ok {
		return normal, errStackUnderflow
	}
	if uint64(uint32(i)) >= uint64(len(tab.Elems)) {
		return normal, trap("out of bounds table access")
	}
	e.stack.Push(tab.Elems[uint32(i)])
	return normal, nil
}

func execTableSet(e *Executor, in *wasm.Instruction) (Exit, error) {
	imm, _ := in.Imm.(wasm.TableImm)
	tab, err := e.table(imm.TableIdx)
	if err != nil {
		return normal, err
	}
	r, ok := e.popRef()
	if !ok {
		return normal, errStackUnderflow
	}
	i, ok := e.stack.PopI32()
	if !ok {
		return normal, errStackUnderflow
	}
	if uint64(uint32(i)) >= uint64(len(tab.Elems)) {
		return normal, trap("out of bounds table access")
	}
	tab.Elems[uint32(i)] = r
	return normal, nil
}
