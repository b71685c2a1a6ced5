package validate

import "github.com/wippyai/wasm-vm/wasm"

// effect is the fixed operand signature of an instruction whose typing does
// not depend on its immediates or on the context.
type effect struct {
	pops   []wasm.ValType
	pushes []wasm.ValType
}

var (
	effects     [256]*effect
	simdEffects = map[uint32]*effect{}
	miscEffects = map[uint32]*effect{}
)

func vt(ts ...wasm.ValType) []wasm.ValType { return ts }

func setEffect(pops, pushes []wasm.ValType, ops ...byte) {
	e := &effect{pops: pops, pushes: pushes}
	for _, op := range ops {
		effects[op] = e
	}
}

func setSIMD(pops, pushes []wasm.ValType, subs ...uint32) {
	e := &effect{pops: pops, pushes: pushes}
	for _, sub := range subs {
		simdEffects[sub] = e
	}
}

const (
	i32  = wasm.ValI32
	i64  = wasm.ValI64
	f32  = wasm.ValF32
	f64  = wasm.ValF64
	v128 = wasm.ValV128
)

func init() {
	setEffect(nil, vt(i32), wasm.OpI32Const)
	setEffect(nil, vt(i64), wasm.OpI64Const)
	setEffect(nil, vt(f32), wasm.OpF32Const)
	setEffect(nil, vt(f64), wasm.OpF64Const)

	// i32
	setEffect(vt(i32), vt(i32), wasm.OpI32Eqz, wasm.OpI32Clz, wasm.OpI32Ctz, wasm.OpI32Popcnt,
		wasm.OpI32Extend8S, wasm.OpI32Extend16S)
	setEffect(vt(i32, i32), vt(i32),
		wasm.OpI32Eq, wasm.OpI32Ne, wasm.OpI32LtS, wasm.OpI32LtU, wasm.OpI32GtS, wasm.OpI32GtU,
		wasm.OpI32LeS, wasm.OpI32LeU, wasm.OpI32GeS, wasm.OpI32GeU,
		wasm.OpI32Add, wasm.OpI32Sub, wasm.OpI32Mul, wasm.OpI32DivS, wasm.OpI32DivU,
		wasm.OpI32RemS, wasm.OpI32RemU, wasm.OpI32And, wasm.OpI32Or, wasm.OpI32Xor,
		wasm.OpI32Shl, wasm.OpI32ShrS, wasm.OpI32ShrU, wasm.OpI32Rotl, wasm.OpI32Rotr)

	// i64
	setEffect(vt(i64), vt(i32), wasm.OpI64Eqz)
	setEffect(vt(i64), vt(i64), wasm.OpI64Clz, wasm.OpI64Ctz, wasm.OpI64Popcnt,
		wasm.OpI64Extend8S, wasm.OpI64Extend16S, wasm.OpI64Extend32S)
	setEffect(vt(i64, i64), vt(i32),
		wasm.OpI64Eq, wasm.OpI64Ne, wasm.OpI64LtS, wasm.OpI64LtU, wasm.OpI64GtS, wasm.OpI64GtU,
		wasm.OpI64LeS, wasm.OpI64LeU, wasm.OpI64GeS, wasm.OpI64GeU)
	setEffect(vt(i64, i64), vt(i64),
		wasm.OpI64Add, wasm.OpI64Sub, wasm.OpI64Mul, wasm.OpI64DivS, wasm.OpI64DivU,
		wasm.OpI64RemS, wasm.OpI64RemU, wasm.OpI64And, wasm.OpI64Or, wasm.OpI64Xor,
		wasm.OpI64Shl, wasm.OpI64ShrS, wasm.OpI64ShrU, wasm.OpI64Rotl, wasm.OpI64Rotr)

	// f32
	setEffect(vt(f32, f32), vt(i32), wasm.OpF32Eq, wasm.OpF32Ne, wasm.OpF32Lt, wasm.OpF32Gt, wasm.OpF32Le, wasm.OpF32Ge)
	setEffect(vt(f32), vt(f32), wasm.OpF32Abs, wasm.OpF32Neg, wasm.OpF32Ceil, wasm.OpF32Floor,
		wasm.OpF32Trunc, wasm.OpF32Nearest, wasm.OpF32Sqrt)
	setEffect(vt(f32, f32), vt(f32), wasm.OpF32Add, wasm.OpF32Sub, wasm.OpF32Mul, wasm.OpF32Div,
		wasm.OpF32Min, wasm.OpF32Max, wasm.OpF32Copysign)

	// f64
	setEffect(vt(f64, f64), vt(i32), wasm.OpF64Eq, wasm.OpF64Ne, wasm.OpF64Lt, wasm.OpF64Gt, wasm.OpF64Le, wasm.OpF64Ge)
	setEffect(vt(f64), vt(f64), wasm.OpF64Abs, wasm.OpF64Neg, wasm.OpF64Ceil, wasm.OpF64Floor,
		wasm.OpF64Trunc, wasm.OpF64Nearest, wasm.OpF64Sqrt)
	setEffect(vt(f64, f64), vt(f64), wasm.OpF64Add, wasm.OpF64Sub, wasm.OpF64Mul, wasm.OpF64Div,
		wasm.OpF64Min, wasm.OpF64Max, wasm.OpF64Copysign)

	// conversions
	setEffect(vt(i64), vt(i32), wasm.OpI32WrapI64)
	setEffect(vt(f32), vt(i32), wasm.OpI32TruncF32S, wasm.OpI32TruncF32U, wasm.OpI32ReinterpretF32)
	setEffect(vt(f64), vt(i32), wasm.OpI32TruncF64S, wasm.OpI32TruncF64U)
	setEffect(vt(i32), vt(i64), wasm.OpI64ExtendI32S, wasm.OpI64ExtendI32U)
	setEffect(vt(f32), vt(i64), wasm.OpI64TruncF32S, wasm.OpI64TruncF32U)
	setEffect(vt(f64), vt(i64), wasm.OpI64TruncF64S, wasm.OpI64TruncF64U, wasm.OpI64ReinterpretF64)
	setEffect(vt(i32), vt(f32), wasm.OpF32ConvertI32S, wasm.OpF32ConvertI32U, wasm.OpF32ReinterpretI32)
	setEffect(vt(i64), vt(f32), wasm.OpF32ConvertI64S, wasm.OpF32ConvertI64U)
	setEffect(vt(f64), vt(f32), wasm.OpF32DemoteF64)
	setEffect(vt(i32), vt(f64), wasm.OpF64ConvertI32S, wasm.OpF64ConvertI32U)
	setEffect(vt(i64), vt(f64), wasm.OpF64ConvertI64S, wasm.OpF64ConvertI64U, wasm.OpF64ReinterpretI64)
	setEffect(vt(f32), vt(f64), wasm.OpF64PromoteF32)

	for sub, e := range map[uint32]*effect{
		wasm.MiscI32TruncSatF32S: {vt(f32), vt(i32)},
		wasm.MiscI32TruncSatF32U: {vt(f32), vt(i32)},
		wasm.MiscI32TruncSatF64S: {vt(f64), vt(i32)},
		wasm.MiscI32TruncSatF64U: {vt(f64), vt(i32)},
		wasm.MiscI64TruncSatF32S: {vt(f32), vt(i64)},
		wasm.MiscI64TruncSatF32U: {vt(f32), vt(i64)},
		wasm.MiscI64TruncSatF64S: {vt(f64), vt(i64)},
		wasm.MiscI64TruncSatF64U: {vt(f64), vt(i64)},
	} {
		miscEffects[sub] = e
	}

	setSIMD(vt(i32), vt(v128), wasm.SimdI8x16Splat, wasm.SimdI16x8Splat, wasm.SimdI32x4Splat)
	setSIMD(vt(i64), vt(v128), wasm.SimdI64x2Splat)
	setSIMD(vt(f32), vt(v128), wasm.SimdF32x4Splat)
	setSIMD(vt(f64), vt(v128), wasm.SimdF64x2Splat)
	setSIMD(vt(v128), vt(v128), wasm.SimdV128Not,
		wasm.SimdI16x8ExtendLowI8x16S, wasm.SimdI16x8ExtendHighI8x16S, wasm.SimdI16x8ExtendLowI8x16U, wasm.SimdI16x8ExtendHighI8x16U,
		wasm.SimdI32x4ExtendLowI16x8S, wasm.SimdI32x4ExtendHighI16x8S, wasm.SimdI32x4ExtendLowI16x8U, wasm.SimdI32x4ExtendHighI16x8U,
		wasm.SimdI64x2ExtendLowI32x4S, wasm.SimdI64x2ExtendHighI32x4S, wasm.SimdI64x2ExtendLowI32x4U, wasm.SimdI64x2ExtendHighI32x4U,
		wasm.SimdI32x4TruncSatF32x4S, wasm.SimdI32x4TruncSatF32x4U, wasm.SimdF32x4ConvertI32x4S, wasm.SimdF32x4ConvertI32x4U,
		wasm.SimdF64x2PromoteLowF32x4, wasm.SimdF32x4DemoteF64x2Zero)
	setSIMD(vt(v128, v128), vt(v128), wasm.SimdV128And, wasm.SimdV128AndNot, wasm.SimdV128Or, wasm.SimdV128Xor,
		wasm.SimdI8x16Swizzle, wasm.SimdI8x16Shuffle,
		wasm.SimdI8x16NarrowI16x8S, wasm.SimdI8x16NarrowI16x8U, wasm.SimdI16x8NarrowI32x4S, wasm.SimdI16x8NarrowI32x4U,
		wasm.SimdI8x16Add, wasm.SimdI8x16Sub, wasm.SimdI16x8Add, wasm.SimdI16x8Sub,
		wasm.SimdI32x4Add, wasm.SimdI32x4Sub, wasm.SimdI64x2Add, wasm.SimdI64x2Sub)
	setSIMD(vt(v128, v128, v128), vt(v128), wasm.SimdV128Bitselect)
	setSIMD(vt(v128), vt(i32), wasm.SimdV128AnyTrue,
		wasm.SimdI8x16AllTrue, wasm.SimdI16x8AllTrue, wasm.SimdI32x4AllTrue, wasm.SimdI64x2AllTrue,
		wasm.SimdI8x16Bitmask, wasm.SimdI16x8Bitmask, wasm.SimdI32x4Bitmask, wasm.SimdI64x2Bitmask)
	setSIMD(nil, vt(v128), wasm.SimdV128Const)
}

// lane describes a lane accessor: its lane count and scalar type.
type lane struct {
	count   byte
	scalar  wasm.ValType
	replace bool
}

var laneOps = map[uint32]lane{
	wasm.SimdI8x16ExtractLaneS: {16, i32, false},
	wasm.SimdI8x16ExtractLaneU: {16, i32, false},
	wasm.SimdI8x16ReplaceLane:  {16, i32, true},
	wasm.SimdI16x8ExtractLaneS: {8, i32, false},
	wasm.SimdI16x8ExtractLaneU: {8, i32, false},
	wasm.SimdI16x8ReplaceLane:  {8, i32, true},
	wasm.SimdI32x4ExtractLane:  {4, i32, false},
	wasm.SimdI32x4ReplaceLane:  {4, i32, true},
	wasm.SimdI64x2ExtractLane:  {2, i64, false},
	wasm.SimdI64x2ReplaceLane:  {2, i64, true},
	wasm.SimdF32x4ExtractLane:  {4, f32, false},
	wasm.SimdF32x4ReplaceLane:  {4, f32, true},
	wasm.SimdF64x2ExtractLane:  {2, f64, false},
	wasm.SimdF64x2ReplaceLane:  {2, f64, true},
}

// memAccess describes a load or store: its natural width in bytes and the
// value type moved.
type memAccess struct {
	width uint32
	typ   wasm.ValType
	store bool
}

var memOps = map[byte]memAccess{
	wasm.OpI32Load:    {4, i32, false},
	wasm.OpI64Load:    {8, i64, false},
	wasm.OpF32Load:    {4, f32, false},
	wasm.OpF64Load:    {8, f64, false},
	wasm.OpI32Load8S:  {1, i32, false},
	wasm.OpI32Load8U:  {1, i32, false},
	wasm.OpI32Load16S: {2, i32, false},
	wasm.OpI32Load16U: {2, i32, false},
	wasm.OpI64Load8S:  {1, i64, false},
	wasm.OpI64Load8U:  {1, i64, false},
	wasm.OpI64Load16S: {2, i64, false},
	wasm.OpI64Load16U: {2, i64, false},
	wasm.OpI64Load32S: {4, i64, false},
	wasm.OpI64Load32U: {4, i64, false},
	wasm.OpI32Store:   {4, i32, true},
	wasm.OpI64Store:   {8, i64, true},
	wasm.OpF32Store:   {4, f32, true},
	wasm.OpF64Store:   {8, f64, true},
	wasm.OpI32Store8:  {1, i32, true},
	wasm.OpI32Store16: {2, i32, true},
	wasm.OpI64Store8:  {1, i64, true},
	wasm.OpI64Store16: {2, i64, true},
	wasm.OpI64Store32: {4, i64, true},
}

var simdMemOps = map[uint32]memAccess{
	wasm.SimdV128Load:        {16, v128, false},
	wasm.SimdV128Load8x8S:    {8, v128, false},
	wasm.SimdV128Load8x8U:    {8, v128, false},
	wasm.SimdV128Load16x4S:   {8, v128, false},
	wasm.SimdV128Load16x4U:   {8, v128, false},
	wasm.SimdV128Load32x2S:   {8, v128, false},
	wasm.SimdV128Load32x2U:   {8, v128, false},
	wasm.SimdV128Load8Splat:  {1, v128, false},
	wasm.SimdV128Load16Splat: {2, v128, false},
	wasm.SimdV128Load32Splat: {4, v128, false},
	wasm.SimdV128Load64Splat: {8, v128, false},
	wasm.SimdV128Load32Zero:  {4, v128, false},
	wasm.SimdV128Load64Zero:  {8, v128, false},
	wasm.SimdV128Store:       {16, v128, true},
}
