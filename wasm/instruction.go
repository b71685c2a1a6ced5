package wasm

import (
	"fmt"
	"math"

	"github.com/wippyai/wasm-vm/wasm/internal/binary"
)

// Opcode constants are defined in constants.go

// Instruction represents a decoded WebAssembly instruction.
//
// Structured instructions carry their nested bodies: Body holds the
// instructions of a block or loop and the then-arm of an if, Else holds the
// else-arm. Neither includes the terminating end/else opcode.
type Instruction struct {
	Imm    interface{}
	Body   []Instruction
	Else   []Instruction
	Opcode byte
}

// BlockImm holds the block type for block, loop and if instructions.
type BlockImm struct {
	Type int32 // Block type: -64=void, -1=i32, -2=i64, -3=f32, -4=f64, -5=v128, >=0=type index
}

// BranchImm holds the label index for br and br_if instructions.
type BranchImm struct {
	LabelIdx uint32
}

// BrTableImm holds the label table for br_table instruction.
type BrTableImm struct {
	Labels  []uint32
	Default uint32
}

// CallImm holds the function index for call instruction.
type CallImm struct {
	FuncIdx uint32
}

// CallIndirectImm holds type and table indices for call_indirect instruction.
type CallIndirectImm struct {
	TypeIdx  uint32
	TableIdx uint32
}

// LocalImm holds the local index for local.get, local.set, local.tee.
type LocalImm struct {
	LocalIdx uint32
}

// GlobalImm holds the global index for global.get and global.set.
type GlobalImm struct {
	GlobalIdx uint32
}

// MemoryImm holds memory access parameters for load and store instructions.
type MemoryImm struct {
	Offset uint64
	Align  uint32
}

// MemoryIdxImm holds memory index for memory.size, memory.grow
type MemoryIdxImm struct {
	MemIdx uint32
}

// I32Imm holds the constant value for i32.const instruction.
type I32Imm struct {
	Value int32
}

// I64Imm holds the constant value for i64.const instruction.
type I64Imm struct {
	Value int64
}

// F32Imm holds the constant value for f32.const instruction.
// The raw bits are kept so NaN payloads survive decoding.
type F32Imm struct {
	Bits uint32
}

// F64Imm holds the constant value for f64.const instruction.
type F64Imm struct {
	Bits uint64
}

// MiscImm holds the sub-opcode and immediates for 0xFC prefix instructions
type MiscImm struct {
	Operands  []uint32
	SubOpcode uint32
}

// TableImm holds table index for table.get/table.set
type TableImm struct {
	TableIdx uint32
}

// RefNullImm holds the reference type for ref.null
type RefNullImm struct {
	Type ValType
}

// RefFuncImm holds the function index for ref.func
type RefFuncImm struct {
	FuncIdx uint32
}

// SelectTypeImm holds value types for typed select
type SelectTypeImm struct {
	Types []ValType
}

// SIMDImm holds SIMD instruction immediates.
// MemArg is set for loads/stores, Lane for lane accessors, Bytes for
// v128.const and i8x16.shuffle.
type SIMDImm struct {
	MemArg    *MemoryImm
	Bytes     *[16]byte
	SubOpcode uint32
	Lane      byte
}

// GetCallTarget returns the callee index for direct calls.
func (i Instruction) GetCallTarget() (uint32, bool) {
	if i.Opcode == OpCall {
		if imm, ok := i.Imm.(CallImm); ok {
			return imm.FuncIdx, true
		}
	}
	return 0, false
}

// IsIndirectCall reports whether the instruction is call_indirect.
func (i Instruction) IsIndirectCall() bool {
	return i.Opcode == OpCallIndirect
}

// DecodeExpr decodes a complete expression terminated by end.
func DecodeExpr(code []byte) ([]Instruction, error) {
	r := binary.NewReaderBytes(code)
	instrs, err := decodeExpr(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after end", r.Len())
	}
	return instrs, nil
}

// decodeExpr reads instructions until the end opcode that closes the expression.
func decodeExpr(r *binary.Reader) ([]Instruction, error) {
	instrs, term, err := decodeSeq(r, 0)
	if err != nil {
		return nil, err
	}
	if term != OpEnd {
		return nil, r.WrapError("expr", fmt.Errorf("unexpected else"))
	}
	return instrs, nil
}

// maxNesting bounds block nesting so hostile input cannot exhaust the Go stack.
const maxNesting = 1024

// decodeSeq reads instructions until end or else, returning the terminator.
func decodeSeq(r *binary.Reader, depth int) ([]Instruction, byte, error) {
	if depth > maxNesting {
		return nil, 0, r.WrapError("code", fmt.Errorf("nesting deeper than %d", maxNesting))
	}
	var instrs []Instruction
	for {
		op, err := r.ReadByte()
		if err != nil {
			return nil, 0, r.WrapError("code", err)
		}
		if op == OpEnd || op == OpElse {
			return instrs, op, nil
		}
		instr, err := decodeInstruction(r, op, depth)
		if err != nil {
			return nil, 0, err
		}
		instrs = append(instrs, instr)
	}
}

func decodeInstruction(r *binary.Reader, op byte, depth int) (Instruction, error) {
	instr := Instruction{Opcode: op}
	var err error

	switch op {
	case OpBlock, OpLoop, OpIf:
		var bt int32
		bt, err = readBlockType(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = BlockImm{Type: bt}
		var term byte
		instr.Body, term, err = decodeSeq(r, depth+1)
		if err != nil {
			return instr, err
		}
		if term == OpElse {
			if op != OpIf {
				return instr, r.WrapError("code", fmt.Errorf("else outside if"))
			}
			instr.Else, term, err = decodeSeq(r, depth+1)
			if err != nil {
				return instr, err
			}
			if term != OpEnd {
				return instr, r.WrapError("code", fmt.Errorf("duplicate else"))
			}
		}

	case OpBr, OpBrIf:
		var idx uint32
		idx, err = r.ReadU32()
		instr.Imm = BranchImm{LabelIdx: idx}

	case OpBrTable:
		var n uint32
		n, err = r.ReadU32()
		if err != nil {
			break
		}
		if int(n) > r.Len() {
			return instr, r.WrapError("br_table", fmt.Errorf("label count %d exceeds input", n))
		}
		labels := make([]uint32, n)
		for i := range labels {
			if labels[i], err = r.ReadU32(); err != nil {
				break
			}
		}
		if err != nil {
			break
		}
		var def uint32
		def, err = r.ReadU32()
		instr.Imm = BrTableImm{Labels: labels, Default: def}

	case OpCall:
		var idx uint32
		idx, err = r.ReadU32()
		instr.Imm = CallImm{FuncIdx: idx}

	case OpCallIndirect:
		var typeIdx, tableIdx uint32
		if typeIdx, err = r.ReadU32(); err != nil {
			break
		}
		tableIdx, err = r.ReadU32()
		instr.Imm = CallIndirectImm{TypeIdx: typeIdx, TableIdx: tableIdx}

	case OpUnreachable, OpNop, OpReturn, OpDrop, OpSelect, OpRefIsNull:
		// no immediates

	case OpSelectType:
		var n uint32
		if n, err = r.ReadU32(); err != nil {
			break
		}
		if n != 1 {
			return instr, r.WrapError("select", fmt.Errorf("typed select expects 1 type, got %d", n))
		}
		var vt ValType
		vt, err = readValType(r)
		instr.Imm = SelectTypeImm{Types: []ValType{vt}}

	case OpLocalGet, OpLocalSet, OpLocalTee:
		var idx uint32
		idx, err = r.ReadU32()
		instr.Imm = LocalImm{LocalIdx: idx}

	case OpGlobalGet, OpGlobalSet:
		var idx uint32
		idx, err = r.ReadU32()
		instr.Imm = GlobalImm{GlobalIdx: idx}

	case OpTableGet, OpTableSet:
		var idx uint32
		idx, err = r.ReadU32()
		instr.Imm = TableImm{TableIdx: idx}

	case OpMemorySize, OpMemoryGrow:
		var idx uint32
		idx, err = r.ReadU32()
		instr.Imm = MemoryIdxImm{MemIdx: idx}

	case OpI32Const:
		var v int32
		v, err = r.ReadS32()
		instr.Imm = I32Imm{Value: v}

	case OpI64Const:
		var v int64
		v, err = r.ReadS64()
		instr.Imm = I64Imm{Value: v}

	case OpF32Const:
		var v uint32
		v, err = r.ReadU32LE()
		instr.Imm = F32Imm{Bits: v}

	case OpF64Const:
		var v uint64
		v, err = r.ReadU64LE()
		instr.Imm = F64Imm{Bits: v}

	case OpRefNull:
		var vt ValType
		vt, err = readValType(r)
		if err == nil && !vt.IsRef() {
			err = fmt.Errorf("ref.null of non-reference type 0x%02x", byte(vt))
		}
		instr.Imm = RefNullImm{Type: vt}

	case OpRefFunc:
		var idx uint32
		idx, err = r.ReadU32()
		instr.Imm = RefFuncImm{FuncIdx: idx}

	case OpPrefixMisc:
		instr.Imm, err = decodeMiscImmediate(r)

	case OpPrefixSIMD:
		instr.Imm, err = decodeSIMDImmediate(r)

	default:
		switch {
		case op >= OpI32Load && op <= OpI64Store32:
			instr.Imm, err = readMemArg(r)
		case op >= OpI32Eqz && op <= OpI64Extend32S:
			// numeric instructions carry no immediates
		default:
			return instr, r.WrapError("code", fmt.Errorf("unsupported opcode 0x%02x", op))
		}
	}

	if err != nil {
		return instr, r.WrapError("code", err)
	}
	return instr, nil
}

func readBlockType(r *binary.Reader) (int32, error) {
	v, err := r.ReadS33()
	if err != nil {
		return 0, err
	}
	if v < 0 {
		switch int32(v) {
		case BlockTypeVoid, BlockTypeI32, BlockTypeI64, BlockTypeF32, BlockTypeF64,
			BlockTypeV128, BlockTypeFuncRef, BlockTypeExternRef:
			return int32(v), nil
		}
		return 0, fmt.Errorf("invalid block type %d", v)
	}
	if v > math.MaxInt32 {
		return 0, fmt.Errorf("block type index %d too large", v)
	}
	return int32(v), nil
}

func readValType(r *binary.Reader) (ValType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	vt := ValType(b)
	if !vt.IsValid() {
		return 0, fmt.Errorf("invalid value type 0x%02x", b)
	}
	return vt, nil
}

func decodeMiscImmediate(r *binary.Reader) (MiscImm, error) {
	sub, err := r.ReadU32()
	if err != nil {
		return MiscImm{}, err
	}
	imm := MiscImm{SubOpcode: sub}

	var n int
	switch sub {
	case MiscI32TruncSatF32S, MiscI32TruncSatF32U, MiscI32TruncSatF64S, MiscI32TruncSatF64U,
		MiscI64TruncSatF32S, MiscI64TruncSatF32U, MiscI64TruncSatF64S, MiscI64TruncSatF64U:
		n = 0
	case MiscDataDrop, MiscMemoryFill, MiscElemDrop, MiscTableGrow, MiscTableSize, MiscTableFill:
		n = 1
	case MiscMemoryInit, MiscMemoryCopy, MiscTableInit, MiscTableCopy:
		n = 2
	default:
		return imm, fmt.Errorf("unsupported 0xFC sub-opcode 0x%02x", sub)
	}

	for i := 0; i < n; i++ {
		v, err := r.ReadU32()
		if err != nil {
			return imm, err
		}
		imm.Operands = append(imm.Operands, v)
	}
	return imm, nil
}

func decodeSIMDImmediate(r *binary.Reader) (SIMDImm, error) {
	sub, err := r.ReadU32()
	if err != nil {
		return SIMDImm{}, err
	}
	imm := SIMDImm{SubOpcode: sub}

	switch {
	case sub <= SimdV128Store, sub == SimdV128Load32Zero, sub == SimdV128Load64Zero:
		ma, err := readMemArg(r)
		if err != nil {
			return imm, err
		}
		imm.MemArg = &ma

	case sub == SimdV128Const, sub == SimdI8x16Shuffle:
		buf, err := r.ReadBytes(16)
		if err != nil {
			return imm, err
		}
		var b [16]byte
		copy(b[:], buf)
		imm.Bytes = &b

	case sub >= SimdI8x16ExtractLaneS && sub <= SimdF64x2ReplaceLane:
		lane, err := r.ReadByte()
		if err != nil {
			return imm, err
		}
		if lane >= laneCount(sub) {
			return imm, fmt.Errorf("lane index %d out of range", lane)
		}
		imm.Lane = lane

	default:
		if !simdNoImmediate(sub) {
			return imm, fmt.Errorf("unsupported 0xFD sub-opcode 0x%02x", sub)
		}
	}
	return imm, nil
}

// laneCount returns the lane count of the shape a lane accessor works on.
func laneCount(sub uint32) byte {
	switch sub {
	case SimdI8x16ExtractLaneS, SimdI8x16ExtractLaneU, SimdI8x16ReplaceLane:
		return 16
	case SimdI16x8ExtractLaneS, SimdI16x8ExtractLaneU, SimdI16x8ReplaceLane:
		return 8
	case SimdI32x4ExtractLane, SimdI32x4ReplaceLane, SimdF32x4ExtractLane, SimdF32x4ReplaceLane:
		return 4
	default:
		return 2
	}
}

func simdNoImmediate(sub uint32) bool {
	switch sub {
	case SimdI8x16Swizzle,
		SimdI8x16Splat, SimdI16x8Splat, SimdI32x4Splat, SimdI64x2Splat, SimdF32x4Splat, SimdF64x2Splat,
		SimdV128Not, SimdV128And, SimdV128AndNot, SimdV128Or, SimdV128Xor, SimdV128Bitselect, SimdV128AnyTrue,
		SimdF32x4DemoteF64x2Zero, SimdF64x2PromoteLowF32x4,
		SimdI8x16AllTrue, SimdI8x16Bitmask, SimdI8x16NarrowI16x8S, SimdI8x16NarrowI16x8U, SimdI8x16Add, SimdI8x16Sub,
		SimdI16x8AllTrue, SimdI16x8Bitmask, SimdI16x8NarrowI32x4S, SimdI16x8NarrowI32x4U,
		SimdI16x8ExtendLowI8x16S, SimdI16x8ExtendHighI8x16S, SimdI16x8ExtendLowI8x16U, SimdI16x8ExtendHighI8x16U,
		SimdI16x8Add, SimdI16x8Sub,
		SimdI32x4AllTrue, SimdI32x4Bitmask,
		SimdI32x4ExtendLowI16x8S, SimdI32x4ExtendHighI16x8S, SimdI32x4ExtendLowI16x8U, SimdI32x4ExtendHighI16x8U,
		SimdI32x4Add, SimdI32x4Sub,
		SimdI64x2AllTrue, SimdI64x2Bitmask,
		SimdI64x2ExtendLowI32x4S, SimdI64x2ExtendHighI32x4S, SimdI64x2ExtendLowI32x4U, SimdI64x2ExtendHighI32x4U,
		SimdI64x2Add, SimdI64x2Sub,
		SimdI32x4TruncSatF32x4S, SimdI32x4TruncSatF32x4U, SimdF32x4ConvertI32x4S, SimdF32x4ConvertI32x4U:
		return true
	}
	return false
}

func readMemArg(r *binary.Reader) (MemoryImm, error) {
	align, err := r.ReadU32()
	if err != nil {
		return MemoryImm{}, err
	}
	if align >= 64 {
		return MemoryImm{}, fmt.Errorf("memory alignment %d too large", align)
	}
	offset, err := r.ReadU32()
	if err != nil {
		return MemoryImm{}, err
	}
	return MemoryImm{Align: align, Offset: uint64(offset)}, nil
}

// EncodeInstructionTo appends the binary encoding of instr, including the
// nested bodies and closing end of structured instructions.
func EncodeInstructionTo(w *binary.Writer, instr *Instruction) {
	w.Byte(instr.Opcode)

	switch imm := instr.Imm.(type) {
	case BlockImm:
		w.WriteS64(int64(imm.Type))
		EncodeInstructionsTo(w, instr.Body)
		if instr.Opcode == OpIf && len(instr.Else) > 0 {
			w.Byte(OpElse)
			EncodeInstructionsTo(w, instr.Else)
		}
		w.Byte(OpEnd)
	case BranchImm:
		w.WriteU32(imm.LabelIdx)
	case BrTableImm:
		w.WriteU32(uint32(len(imm.Labels)))
		for _, l := range imm.Labels {
			w.WriteU32(l)
		}
		w.WriteU32(imm.Default)
	case CallImm:
		w.WriteU32(imm.FuncIdx)
	case CallIndirectImm:
		w.WriteU32(imm.TypeIdx)
		w.WriteU32(imm.TableIdx)
	case SelectTypeImm:
		w.WriteU32(uint32(len(imm.Types)))
		for _, t := range imm.Types {
			w.Byte(byte(t))
		}
	case LocalImm:
		w.WriteU32(imm.LocalIdx)
	case GlobalImm:
		w.WriteU32(imm.GlobalIdx)
	case TableImm:
		w.WriteU32(imm.TableIdx)
	case MemoryIdxImm:
		w.WriteU32(imm.MemIdx)
	case MemoryImm:
		writeMemArg(w, imm)
	case I32Imm:
		w.WriteS64(int64(imm.Value))
	case I64Imm:
		w.WriteS64(imm.Value)
	case F32Imm:
		w.WriteU32LE(imm.Bits)
	case F64Imm:
		w.WriteU64LE(imm.Bits)
	case RefNullImm:
		w.Byte(byte(imm.Type))
	case RefFuncImm:
		w.WriteU32(imm.FuncIdx)
	case MiscImm:
		w.WriteU32(imm.SubOpcode)
		for _, op := range imm.Operands {
			w.WriteU32(op)
		}
	case SIMDImm:
		w.WriteU32(imm.SubOpcode)
		if imm.MemArg != nil {
			writeMemArg(w, *imm.MemArg)
		}
		if imm.Bytes != nil {
			w.WriteBytes(imm.Bytes[:])
		}
		if imm.SubOpcode >= SimdI8x16ExtractLaneS && imm.SubOpcode <= SimdF64x2ReplaceLane {
			w.Byte(imm.Lane)
		}
	}
}

// EncodeInstructionsTo encodes a sequence without a trailing end.
func EncodeInstructionsTo(w *binary.Writer, instrs []Instruction) {
	for i := range instrs {
		EncodeInstructionTo(w, &instrs[i])
	}
}

// EncodeExpr encodes instrs followed by the end opcode.
func EncodeExpr(instrs []Instruction) []byte {
	w := binary.NewWriter()
	EncodeInstructionsTo(w, instrs)
	w.Byte(OpEnd)
	return w.Bytes()
}

func writeMemArg(w *binary.Writer, imm MemoryImm) {
	w.WriteU32(imm.Align)
	w.WriteU64(imm.Offset)
}
