package validate

import (
	"github.com/wippyai/wasm-vm/errors"
	"github.com/wippyai/wasm-vm/wasm"
)

// unknown is the type of an operand conjured from an unreachable stack. It
// matches every expected type.
const unknown wasm.ValType = 0

// ctrl is one enclosing structured construct. height is the operand stack
// depth at entry; values below it belong to outer constructs.
type ctrl struct {
	params      []wasm.ValType
	results     []wasm.ValType
	height      int
	op          byte
	unreachable bool
}

// labelTypes are the operands a branch to this construct carries.
func (c *ctrl) labelTypes() []wasm.ValType {
	if c.op == wasm.OpLoop {
		return c.params
	}
	return c.results
}

type funcValidator struct {
	ctx   *Context
	vals  []wasm.ValType
	ctrls []ctrl
}

// Function type-checks a function body against ctx, which must have been
// prepared with ForFunc. It stops at the first error.
func Function(ctx *Context, body []wasm.Instruction) error {
	v := &funcValidator{ctx: ctx}
	v.pushCtrl(wasm.OpBlock, nil, ctx.Results)
	if err := v.seq(body); err != nil {
		return err
	}
	_, err := v.popCtrl(wasm.OpEnd)
	return err
}

func (v *funcValidator) push(ts ...wasm.ValType) {
	v.vals = append(v.vals, ts...)
}

func (v *funcValidator) top() *ctrl {
	return &v.ctrls[len(v.ctrls)-1]
}

func (v *funcValidator) pop(op byte) (wasm.ValType, error) {
	c := v.top()
	if len(v.vals) == c.height {
		if c.unreachable {
			return unknown, nil
		}
		return 0, insufficient(op, "operand stack is empty")
	}
	t := v.vals[len(v.vals)-1]
	v.vals = v.vals[:len(v.vals)-1]
	return t, nil
}

func (v *funcValidator) popExpect(op byte, want wasm.ValType) (wasm.ValType, error) {
	got, err := v.pop(op)
	if err != nil {
		return 0, err
	}
	if got == unknown {
		return want, nil
	}
	if want != unknown && got != want {
		return 0, insufficient(op, "expected %s, found %s", want, got)
	}
	return got, nil
}

func (v *funcValidator) popAll(op byte, ts []wasm.ValType) error {
	for i := len(ts) - 1; i >= 0; i-- {
		if _, err := v.popExpect(op, ts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (v *funcValidator) pushCtrl(op byte, params, results []wasm.ValType) {
	v.ctrls = append(v.ctrls, ctrl{op: op, params: params, results: results, height: len(v.vals)})
	v.push(params...)
}

func (v *funcValidator) popCtrl(op byte) (ctrl, error) {
	c := *v.top()
	if err := v.popAll(op, c.results); err != nil {
		return c, err
	}
	if len(v.vals) != c.height {
		return c, insufficient(op, "%d values left at end of block", len(v.vals)-c.height)
	}
	v.ctrls = v.ctrls[:len(v.ctrls)-1]
	return c, nil
}

// setUnreachable discards the current construct's operands; pops past its
// entry height now yield unknown until the construct ends.
func (v *funcValidator) setUnreachable() {
	c := v.top()
	v.vals = v.vals[:c.height]
	c.unreachable = true
}

func (v *funcValidator) label(d uint32) (*ctrl, error) {
	if int(d) >= len(v.ctrls) {
		return nil, fail(errors.KindUnknownLabel, "unknown label %d", d)
	}
	return &v.ctrls[len(v.ctrls)-1-int(d)], nil
}

func (v *funcValidator) seq(body []wasm.Instruction) error {
	for i := range body {
		if err := v.instr(&body[i]); err != nil {
			return err
		}
	}
	return nil
}

func (v *funcValidator) blockType(in *wasm.Instruction) (params, results []wasm.ValType, err error) {
	imm, _ := in.Imm.(wasm.BlockImm)
	params, results, ok := wasm.BlockSignature(v.ctx.Types, imm.Type)
	if !ok {
		return nil, nil, unknownIndex("type", uint32(imm.Type))
	}
	return params, results, nil
}

func (v *funcValidator) instr(in *wasm.Instruction) error {
	op := in.Opcode
	if e := effects[op]; e != nil {
		if err := v.popAll(op, e.pops); err != nil {
			return err
		}
		v.push(e.pushes...)
		return nil
	}
	if acc, ok := memOps[op]; ok {
		imm, _ := in.Imm.(wasm.MemoryImm)
		return v.memory(op, imm, acc)
	}

	switch op {
	case wasm.OpUnreachable:
		v.setUnreachable()
	case wasm.OpNop:
	case wasm.OpBlock, wasm.OpLoop:
		params, results, err := v.blockType(in)
		if err != nil {
			return err
		}
		if err := v.structured(op, params, results, in.Body); err != nil {
			return err
		}
		v.push(results...)
	case wasm.OpIf:
		params, results, err := v.blockType(in)
		if err != nil {
			return err
		}
		if _, err := v.popExpect(op, wasm.ValI32); err != nil {
			return err
		}
		if err := v.structured(op, params, results, in.Body); err != nil {
			return err
		}
		// An absent else arm is empty, so it only checks when params equal results.
		v.push(params...)
		if err := v.structured(wasm.OpElse, params, results, in.Else); err != nil {
			return err
		}
		v.push(results...)
	case wasm.OpBr:
		imm, _ := in.Imm.(wasm.BranchImm)
		l, err := v.label(imm.LabelIdx)
		if err != nil {
			return err
		}
		if err := v.popAll(op, l.labelTypes()); err != nil {
			return err
		}
		v.setUnreachable()
	case wasm.OpBrIf:
		imm, _ := in.Imm.(wasm.BranchImm)
		l, err := v.label(imm.LabelIdx)
		if err != nil {
			return err
		}
		if _, err := v.popExpect(op, wasm.ValI32); err != nil {
			return err
		}
		ts := l.labelTypes()
		if err := v.popAll(op, ts); err != nil {
			return err
		}
		v.push(ts...)
	case wasm.OpBrTable:
		return v.brTable(in)
	case wasm.OpReturn:
		if err := v.popAll(op, v.ctx.Results); err != nil {
			return err
		}
		v.setUnreachable()
	case wasm.OpCall:
		imm, _ := in.Imm.(wasm.CallImm)
		if int(imm.FuncIdx) >= len(v.ctx.Funcs) {
			return unknownIndex("function", imm.FuncIdx)
		}
		ft := v.ctx.Funcs[imm.FuncIdx]
		if err := v.popAll(op, ft.Params); err != nil {
			return err
		}
		v.push(ft.Results...)
	case wasm.OpCallIndirect:
		imm, _ := in.Imm.(wasm.CallIndirectImm)
		if int(imm.TableIdx) >= len(v.ctx.Tables) {
			return unknownIndex("table", imm.TableIdx)
		}
		if v.ctx.Tables[imm.TableIdx].ElemType != wasm.ValFuncRef {
			return insufficient(op, "table %d is not a funcref table", imm.TableIdx)
		}
		if int(imm.TypeIdx) >= len(v.ctx.Types) {
			return unknownIndex("type", imm.TypeIdx)
		}
		ft := v.ctx.Types[imm.TypeIdx]
		if _, err := v.popExpect(op, wasm.ValI32); err != nil {
			return err
		}
		if err := v.popAll(op, ft.Params); err != nil {
			return err
		}
		v.push(ft.Results...)
	case wasm.OpDrop:
		_, err := v.pop(op)
		return err
	case wasm.OpSelect:
		return v.selectUntyped()
	case wasm.OpSelectType:
		imm, _ := in.Imm.(wasm.SelectTypeImm)
		if len(imm.Types) != 1 {
			return insufficient(op, "typed select needs exactly one type")
		}
		t := imm.Types[0]
		if _, err := v.popExpect(op, wasm.ValI32); err != nil {
			return err
		}
		if err := v.popAll(op, []wasm.ValType{t, t}); err != nil {
			return err
		}
		v.push(t)
	case wasm.OpLocalGet, wasm.OpLocalSet, wasm.OpLocalTee:
		return v.local(in)
	case wasm.OpGlobalGet, wasm.OpGlobalSet:
		return v.global(in)
	case wasm.OpTableGet, wasm.OpTableSet:
		imm, _ := in.Imm.(wasm.TableImm)
		if int(imm.TableIdx) >= len(v.ctx.Tables) {
			return unknownIndex("table", imm.TableIdx)
		}
		et := v.ctx.Tables[imm.TableIdx].ElemType
		if op == wasm.OpTableGet {
			if _, err := v.popExpect(op, wasm.ValI32); err != nil {
				return err
			}
			v.push(et)
			return nil
		}
		return v.popAll(op, []wasm.ValType{wasm.ValI32, et})
	case wasm.OpMemorySize, wasm.OpMemoryGrow:
		if len(v.ctx.Mems) == 0 {
			return unknownIndex("memory", 0)
		}
		if op == wasm.OpMemoryGrow {
			if _, err := v.popExpect(op, wasm.ValI32); err != nil {
				return err
			}
		}
		v.push(wasm.ValI32)
	case wasm.OpRefNull:
		imm, _ := in.Imm.(wasm.RefNullImm)
		if !imm.Type.IsRef() {
			return insufficient(op, "%s is not a reference type", imm.Type)
		}
		v.push(imm.Type)
	case wasm.OpRefIsNull:
		t, err := v.pop(op)
		if err != nil {
			return err
		}
		if t != unknown && !t.IsRef() {
			return insufficient(op, "expected a reference, found %s", t)
		}
		v.push(wasm.ValI32)
	case wasm.OpRefFunc:
		imm, _ := in.Imm.(wasm.RefFuncImm)
		if int(imm.FuncIdx) >= len(v.ctx.Funcs) {
			return unknownIndex("function", imm.FuncIdx)
		}
		if !v.ctx.Refs[imm.FuncIdx] {
			return fail(errors.KindCannotFindRefFunc, "function %d is not declared for ref.func", imm.FuncIdx)
		}
		v.push(wasm.ValFuncRef)
	case wasm.OpPrefixMisc:
		return v.misc(in)
	case wasm.OpPrefixSIMD:
		return v.simd(in)
	default:
		return fail(errors.KindUnsupported, "unsupported %s", opName(op))
	}
	return nil
}

// structured checks body as a construct of the given signature. The params
// must already be on the stack; they are consumed here.
func (v *funcValidator) structured(op byte, params, results []wasm.ValType, body []wasm.Instruction) error {
	if err := v.popAll(op, params); err != nil {
		return err
	}
	v.pushCtrl(op, params, results)
	if err := v.seq(body); err != nil {
		return err
	}
	_, err := v.popCtrl(wasm.OpEnd)
	return err
}

func (v *funcValidator) brTable(in *wasm.Instruction) error {
	op := in.Opcode
	imm, _ := in.Imm.(wasm.BrTableImm)
	if _, err := v.popExpect(op, wasm.ValI32); err != nil {
		return err
	}
	def, err := v.label(imm.Default)
	if err != nil {
		return err
	}
	arity := len(def.labelTypes())
	for _, d := range imm.Labels {
		l, err := v.label(d)
		if err != nil {
			return err
		}
		ts := l.labelTypes()
		if len(ts) != arity {
			return insufficient(op, "label %d has arity %d, default has %d", d, len(ts), arity)
		}
		// Check against this label without consuming the operands.
		saved := append([]wasm.ValType(nil), v.vals...)
		if err := v.popAll(op, ts); err != nil {
			return err
		}
		v.vals = saved
	}
	if err := v.popAll(op, def.labelTypes()); err != nil {
		return err
	}
	v.setUnreachable()
	return nil
}

func (v *funcValidator) selectUntyped() error {
	op := wasm.OpSelect
	if _, err := v.popExpect(op, wasm.ValI32); err != nil {
		return err
	}
	t1, err := v.pop(op)
	if err != nil {
		return err
	}
	t2, err := v.pop(op)
	if err != nil {
		return err
	}
	if t1.IsRef() || t2.IsRef() {
		return insufficient(op, "untyped select on reference operands")
	}
	switch {
	case t1 == unknown:
		v.push(t2)
	case t2 == unknown || t1 == t2:
		v.push(t1)
	default:
		return insufficient(op, "operands differ: %s and %s", t2, t1)
	}
	return nil
}

func (v *funcValidator) local(in *wasm.Instruction) error {
	op := in.Opcode
	imm, _ := in.Imm.(wasm.LocalImm)
	if int(imm.LocalIdx) >= len(v.ctx.Locals) {
		return fail(errors.KindNoLocalFound, "local %d not found (function has %d)", imm.LocalIdx, len(v.ctx.Locals))
	}
	t := v.ctx.Locals[imm.LocalIdx]
	switch op {
	case wasm.OpLocalGet:
		v.push(t)
	case wasm.OpLocalSet:
		_, err := v.popExpect(op, t)
		return err
	default:
		if _, err := v.popExpect(op, t); err != nil {
			return err
		}
		v.push(t)
	}
	return nil
}

func (v *funcValidator) global(in *wasm.Instruction) error {
	op := in.Opcode
	imm, _ := in.Imm.(wasm.GlobalImm)
	if int(imm.GlobalIdx) >= len(v.ctx.Globals) {
		return unknownIndex("global", imm.GlobalIdx)
	}
	g := v.ctx.Globals[imm.GlobalIdx]
	if op == wasm.OpGlobalGet {
		v.push(g.ValType)
		return nil
	}
	if !g.Mutable {
		return fail(errors.KindImmutableGlobal, "global %d is immutable", imm.GlobalIdx)
	}
	_, err := v.popExpect(op, g.ValType)
	return err
}

func (v *funcValidator) memory(op byte, imm wasm.MemoryImm, acc memAccess) error {
	if len(v.ctx.Mems) == 0 {
		return unknownIndex("memory", 0)
	}
	if imm.Align >= 32 || uint32(1)<<imm.Align > acc.width {
		return fail(errors.KindInvalidAlignment, "%s: alignment 2^%d exceeds natural alignment %d", opName(op), imm.Align, acc.width)
	}
	if acc.store {
		return v.popAll(op, []wasm.ValType{wasm.ValI32, acc.typ})
	}
	if _, err := v.popExpect(op, wasm.ValI32); err != nil {
		return err
	}
	v.push(acc.typ)
	return nil
}

func (v *funcValidator) misc(in *wasm.Instruction) error {
	op := in.Opcode
	imm, _ := in.Imm.(wasm.MiscImm)
	if e := miscEffects[imm.SubOpcode]; e != nil {
		if err := v.popAll(op, e.pops); err != nil {
			return err
		}
		v.push(e.pushes...)
		return nil
	}
	operand := func(i int) uint32 {
		if i < len(imm.Operands) {
			return imm.Operands[i]
		}
		return 0
	}
	table := func(idx uint32) (wasm.TableType, error) {
		if int(idx) >= len(v.ctx.Tables) {
			return wasm.TableType{}, unknownIndex("table", idx)
		}
		return v.ctx.Tables[idx], nil
	}
	three := []wasm.ValType{wasm.ValI32, wasm.ValI32, wasm.ValI32}

	switch imm.SubOpcode {
	case wasm.MiscMemoryInit, wasm.MiscDataDrop:
		if int(operand(0)) >= v.ctx.Datas {
			return unknownIndex("data segment", operand(0))
		}
		if imm.SubOpcode == wasm.MiscDataDrop {
			return nil
		}
		if len(v.ctx.Mems) == 0 {
			return unknownIndex("memory", 0)
		}
		return v.popAll(op, three)
	case wasm.MiscMemoryCopy, wasm.MiscMemoryFill:
		if len(v.ctx.Mems) == 0 {
			return unknownIndex("memory", 0)
		}
		return v.popAll(op, three)
	case wasm.MiscTableInit:
		if int(operand(0)) >= len(v.ctx.Elems) {
			return unknownIndex("element segment", operand(0))
		}
		t, err := table(operand(1))
		if err != nil {
			return err
		}
		if t.ElemType != v.ctx.Elems[operand(0)] {
			return insufficient(op, "element segment type %s does not match table type %s", v.ctx.Elems[operand(0)], t.ElemType)
		}
		return v.popAll(op, three)
	case wasm.MiscElemDrop:
		if int(operand(0)) >= len(v.ctx.Elems) {
			return unknownIndex("element segment", operand(0))
		}
		return nil
	case wasm.MiscTableCopy:
		dst, err := table(operand(0))
		if err != nil {
			return err
		}
		src, err := table(operand(1))
		if err != nil {
			return err
		}
		if dst.ElemType != src.ElemType {
			return insufficient(op, "table types differ: %s and %s", dst.ElemType, src.ElemType)
		}
		return v.popAll(op, three)
	case wasm.MiscTableGrow:
		t, err := table(operand(0))
		if err != nil {
			return err
		}
		if err := v.popAll(op, []wasm.ValType{t.ElemType, wasm.ValI32}); err != nil {
			return err
		}
		v.push(wasm.ValI32)
	case wasm.MiscTableSize:
		if _, err := table(operand(0)); err != nil {
			return err
		}
		v.push(wasm.ValI32)
	case wasm.MiscTableFill:
		t, err := table(operand(0))
		if err != nil {
			return err
		}
		return v.popAll(op, []wasm.ValType{wasm.ValI32, t.ElemType, wasm.ValI32})
	default:
		return fail(errors.KindUnsupported, "unsupported 0xFC sub-opcode 0x%02x", imm.SubOpcode)
	}
	return nil
}

func (v *funcValidator) simd(in *wasm.Instruction) error {
	op := in.Opcode
	imm, _ := in.Imm.(wasm.SIMDImm)
	if acc, ok := simdMemOps[imm.SubOpcode]; ok {
		var mem wasm.MemoryImm
		if imm.MemArg != nil {
			mem = *imm.MemArg
		}
		return v.memory(op, mem, acc)
	}
	if l, ok := laneOps[imm.SubOpcode]; ok {
		if imm.Lane >= l.count {
			return insufficient(op, "lane %d out of range for %d lanes", imm.Lane, l.count)
		}
		if l.replace {
			if err := v.popAll(op, []wasm.ValType{wasm.ValV128, l.scalar}); err != nil {
				return err
			}
			v.push(wasm.ValV128)
			return nil
		}
		if _, err := v.popExpect(op, wasm.ValV128); err != nil {
			return err
		}
		v.push(l.scalar)
		return nil
	}
	e := simdEffects[imm.SubOpcode]
	if e == nil {
		return fail(errors.KindUnsupported, "unsupported 0xFD sub-opcode 0x%02x", imm.SubOpcode)
	}
	if imm.SubOpcode == wasm.SimdI8x16Shuffle {
		if imm.Bytes == nil {
			return insufficient(op, "shuffle without lane indices")
		}
		for _, idx := range imm.Bytes {
			if idx >= 32 {
				return insufficient(op, "shuffle lane index %d out of range", idx)
			}
		}
	}
	if err := v.popAll(op, e.pops); err != nil {
		return err
	}
	v.push(e.pushes...)
	return nil
}
