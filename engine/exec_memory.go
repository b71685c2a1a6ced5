package engine

import (
	"encoding/binary"

	"github.com/wippyai/wasm-vm/wasm"
)

func init() {
	register(wasm.OpI32Load, "i32.load", load(4, func(b []byte) Value { return I32(binary.LittleEndian.Uint32(b)) }))
	register(wasm.OpI64Load, "i64.load", load(8, func(b []byte) Value { return I64(binary.LittleEndian.Uint64(b)) }))
	register(wasm.OpF32Load, "f32.load", load(4, func(b []byte) Value { return F32(binary.LittleEndian.Uint32(b)) }))
	register(wasm.OpF64Load, "f64.load", load(8, func(b []byte) Value { return F64(binary.LittleEndian.Uint64(b)) }))
	register(wasm.OpI32Load8S, "i32.load8_s", load(1, func(b []byte) Value { return I32(int8(b[0])) }))
	register(wasm.OpI32Load8U, "i32.load8_u", load(1, func(b []byte) Value { return I32(b[0]) }))
	register(wasm.OpI32Load16S, "i32.load16_s", load(2, func(b []byte) Value { return I32(int16(binary.LittleEndian.Uint16(b))) }))
	register(wasm.OpI32Load16U, "i32.load16_u", load(2, func(b []byte) Value { return I32(binary.LittleEndian.Uint16(b)) }))
	register(wasm.OpI64Load8S, "i64.load8_s", load(1, func(b []byte) Value { return I64(int8(b[0])) }))
	register(wasm.OpI64Load8U, "i64.load8_u", load(1, func(b []byte) Value { return I64(b[0]) }))
	register(wasm.OpI64Load16S, "i64.load16_s", load(2, func(b []byte) Value { return I64(int16(binary.LittleEndian.Uint16(b))) }))
	register(wasm.OpI64Load16U, "i64.load16_u", load(2, func(b []byte) Value { return I64(binary.LittleEndian.Uint16(b)) }))
	register(wasm.OpI64Load32S, "i64.load32_s", load(4, func(b []byte) Value { return I64(int32(binary.LittleEndian.Uint32(b))) }))
	register(wasm.OpI64Load32U, "i64.load32_u", load(4, func(b []byte) Value { return I64(binary.LittleEndian.Uint32(b)) }))

	register(wasm.OpI32Store, "i32.store", store(4, func(b []byte, v I32) { binary.LittleEndian.PutUint32(b, uint32(v)) }))
	register(wasm.OpI64Store, "i64.store", store(8, func(b []byte, v I64) { binary.LittleEndian.PutUint64(b, uint64(v)) }))
	register(wasm.OpF32Store, "f32.store", store(4, func(b []byte, v F32) { binary.LittleEndian.PutUint32(b, uint32(v)) }))
	register(wasm.OpF64Store, "f64.store", store(8, func(b []byte, v F64) { binary.LittleEndian.PutUint64(b, uint64(v)) }))
	register(wasm.OpI32Store8, "i32.store8", store(1, func(b []byte, v I32) { b[0] = byte(v) }))
	register(wasm.OpI32Store16, "i32.store16", store(2, func(b []byte, v I32) { binary.LittleEndian.PutUint16(b, uint16(v)) }))
	register(wasm.OpI64Store8, "i64.store8", store(1, func(b []byte, v I64) { b[0] = byte(v) }))
	register(wasm.OpI64Store16, "i64.store16", store(2, func(b []byte, v I64) { binary.LittleEndian.PutUint16(b, uint16(v)) }))
	register(wasm.OpI64Store32, "i64.store32", store(4, func(b []byte, v I64) { binary.LittleEndian.PutUint32(b, uint32(v)) }))

	register(wasm.OpMemorySize, "memory.size", execMemorySize)
	register(wasm.OpMemoryGrow, "memory.grow", execMemoryGrow)
	register(wasm.OpPrefixMisc, "misc", execMisc)
}

func (e *Executor) memory(idx uint32) (*MemInst, error) {
	m, err := e.module()
	if err != nil {
		return nil, err
	}
	if int(idx) >= len(m.MemAddrs) {
		return nil, trap("memory %d out of range", idx)
	}
	return e.store.Mems[m.MemAddrs[idx]], nil
}

// access pops the i32 base address and returns the n bytes at base+offset.
func (e *Executor) access(offset uint64, n uint64) ([]byte, error) {
	mem, err := e.memory(0)
	if err != nil {
		return nil, err
	}
	base, ok := e.stack.PopI32()
	if !ok {
		return nil, errStackUnderflow
	}
	return slice(mem.Data, uint64(uint32(base))+offset, n)
}

// slice bounds-checks [ea, ea+n) against data.
func slice(data []byte, ea, n uint64) ([]byte, error) {
	if ea+n < ea || ea+n > uint64(len(data)) {
		return nil, errOutOfBounds
	}
	return data[ea : ea+n], nil
}

func load(n uint64, decode func([]byte) Value) opHandler {
	return func(e *Executor, in *wasm.Instruction) (Exit, error) {
		imm, _ := in.Imm.(wasm.MemoryImm)
		b, err := e.access(imm.Offset, n)
		if err != nil {
			return normal, err
		}
		e.stack.Push(decode(b))
		return normal, nil
	}
}

func store[T Value](n uint64, encode func([]byte, T)) opHandler {
	return func(e *Executor, in *wasm.Instruction) (Exit, error) {
		imm, _ := in.Imm.(wasm.MemoryImm)
		v, ok := pop[T](e)
		if !ok {
			return normal, errStackUnderflow
		}
		b, err := e.access(imm.Offset, n)
		if err != nil {
			return normal, err
		}
		encode(b, v)
		return normal, nil
	}
}

func execMemorySize(e *Executor, _ *wasm.Instruction) (Exit, error) {
	mem, err := e.memory(0)
	if err != nil {
		return normal, err
	}
	e.stack.Push(I32(mem.Pages()))
	return normal, nil
}

func execMemoryGrow(e *Executor, _ *wasm.Instruction) (Exit, error) {
	mem, err := e.memory(0)
	if err != nil {
		return normal, err
	}
	n, ok := e.stack.PopI32()
	if !ok {
		return normal, errStackUnderflow
	}
	e.stack.Push(I32(mem.Grow(uint32(n))))
	return normal, nil
}

// popU32s pops n i32 operands, returning them in push order.
func (e *Executor) popU32s(n int) ([]uint32, error) {
	vals, ok := e.stack.PopValues(n)
	if !ok {
		return nil, errStackUnderflow
	}
	out := make([]uint32, n)
	for i, v := range vals {
		x, ok := v.(I32)
		if !ok {
			return nil, errStackUnderflow
		}
		out[i] = uint32(x)
	}
	return out, nil
}

func execMisc(e *Executor, in *wasm.Instruction) (Exit, error) {
	imm, _ := in.Imm.(wasm.MiscImm)
	operand := func(i int) uint32 {
		if i < len(imm.Operands) {
			return imm.Operands[i]
		}
		return 0
	}
	var err error
	switch imm.SubOpcode {
	case wasm.MiscI32TruncSatF32S, wasm.MiscI32TruncSatF32U, wasm.MiscI32TruncSatF64S, wasm.MiscI32TruncSatF64U,
		wasm.MiscI64TruncSatF32S, wasm.MiscI64TruncSatF32U, wasm.MiscI64TruncSatF64S, wasm.MiscI64TruncSatF64U:
		err = truncSat(e, imm.SubOpcode)
	case wasm.MiscMemoryInit:
		err = e.memoryInit(operand(0))
	case wasm.MiscDataDrop:
		err = e.dataDrop(operand(0))
	case wasm.MiscMemoryCopy:
		err = e.memoryCopy()
	case wasm.MiscMemoryFill:
		err = e.memoryFill()
	case wasm.MiscTableInit:
		err = e.tableInit(operand(0), operand(1))
	case wasm.MiscElemDrop:
		err = e.elemDrop(operand(0))
	case wasm.MiscTableCopy:
		err = e.tableCopy(operand(0), operand(1))
	case wasm.MiscTableGrow:
		err = e.tableGrow(operand(0))
	case wasm.MiscTableSize:
		err = e.tableSize(operand(0))
	case wasm.MiscTableFill:
		err = e.tableFill(operand(0))
	default:
		err = trap("unsupported 0xFC sub-opcode 0x%02x", imm.SubOpcode)
	}
	return normal, err
}

func (e *Executor) memoryInit(dataIdx uint32) error {
	m, err := e.module()
	if err != nil {
		return err
	}
	if int(dataIdx) >= len(m.DataAddrs) {
		return trap("data segment %d out of range", dataIdx)
	}
	mem, err := e.memory(0)
	if err != nil {
		return err
	}
	ops, err := e.popU32s(3)
	if err != nil {
		return err
	}
	d, s, n := ops[0], ops[1], ops[2]
	src, err := slice(e.store.Datas[m.DataAddrs[dataIdx]].Data, uint64(s), uint64(n))
	if err != nil {
		return err
	}
	dst, err := slice(mem.Data, uint64(d), uint64(n))
	if err != nil {
		return err
	}
	copy(dst, src)
	return nil
}

func (e *Executor) dataDrop(dataIdx uint32) error {
	m, err := e.module()
	if err != nil {
		return err
	}
	if int(dataIdx) >= len(m.DataAddrs) {
		return trap("data segment %d out of range", dataIdx)
	}
	e.store.Datas[m.DataAddrs[dataIdx]].Data = nil
	return nil
}

func (e *Executor) memoryCopy() error {
	mem, err := e.memory(0)
	if err != nil {
		return err
	}
	ops, err := e.popU32s(3)
	if err != nil {
		return err
	}
	d, s, n := ops[0], ops[1], ops[2]
	src, err := slice(mem.Data, uint64(s), uint64(n))
	if err != nil {
		return err
	}
	dst, err := slice(mem.Data, uint64(d), uint64(n))
	if err != nil {
		return err
	}
	copy(dst, src)
	return nil
}

func (e *Executor) memoryFill() error {
	mem, err := e.memory(0)
	if err != nil {
		return err
	}
	ops, err := e.popU32s(3)
	if err != nil {
		return err
	}
	d, val, n := ops[0], byte(ops[1]), ops[2]
	dst, err := slice(mem.Data, uint64(d), uint64(n))
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i] = val
	}
	return nil
}
