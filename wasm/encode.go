package wasm

import (
	"github.com/wippyai/wasm-vm/wasm/internal/binary"
)

// Encode encodes the module to WebAssembly binary format.
// Sections are emitted in canonical order; empty sections are omitted.
func (m *Module) Encode() []byte {
	w := binary.NewWriter()

	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	if len(m.Types) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Types)))
		for _, ft := range m.Types {
			sec.Byte(FuncTypeByte)
			writeValTypes(sec, ft.Params)
			writeValTypes(sec, ft.Results)
		}
		w.Section(SectionType, sec.Bytes())
	}

	if len(m.Imports) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			sec.WriteName(imp.Module)
			sec.WriteName(imp.Name)
			sec.Byte(imp.Desc.Kind)
			switch imp.Desc.Kind {
			case KindFunc:
				sec.WriteU32(imp.Desc.TypeIdx)
			case KindTable:
				if imp.Desc.Table != nil {
					writeTableType(sec, *imp.Desc.Table)
				}
			case KindMemory:
				if imp.Desc.Memory != nil {
					writeLimits(sec, imp.Desc.Memory.Limits)
				}
			case KindGlobal:
				if imp.Desc.Global != nil {
					writeGlobalType(sec, *imp.Desc.Global)
				}
			}
		}
		w.Section(SectionImport, sec.Bytes())
	}

	if len(m.Funcs) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Funcs)))
		for _, typeIdx := range m.Funcs {
			sec.WriteU32(typeIdx)
		}
		w.Section(SectionFunction, sec.Bytes())
	}

	if len(m.Tables) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Tables)))
		for _, t := range m.Tables {
			writeTableType(sec, t)
		}
		w.Section(SectionTable, sec.Bytes())
	}

	if len(m.Memories) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Memories)))
		for _, mem := range m.Memories {
			writeLimits(sec, mem.Limits)
		}
		w.Section(SectionMemory, sec.Bytes())
	}

	if len(m.Globals) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Globals)))
		for i := range m.Globals {
			writeGlobalType(sec, m.Globals[i].Type)
			writeExpr(sec, m.Globals[i].Init)
		}
		w.Section(SectionGlobal, sec.Bytes())
	}

	if len(m.Exports) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Exports)))
		for _, exp := range m.Exports {
			sec.WriteName(exp.Name)
			sec.Byte(exp.Kind)
			sec.WriteU32(exp.Idx)
		}
		w.Section(SectionExport, sec.Bytes())
	}

	if m.Start != nil {
		sec := binary.NewWriter()
		sec.WriteU32(*m.Start)
		w.Section(SectionStart, sec.Bytes())
	}

	if len(m.Elements) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Elements)))
		for i := range m.Elements {
			writeElement(sec, &m.Elements[i])
		}
		w.Section(SectionElement, sec.Bytes())
	}

	if m.DataCount != nil {
		sec := binary.NewWriter()
		sec.WriteU32(*m.DataCount)
		w.Section(SectionDataCount, sec.Bytes())
	}

	if len(m.Code) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Code)))
		for _, body := range m.Code {
			fw := binary.NewWriter()
			fw.WriteU32(uint32(len(body.Locals)))
			for _, l := range body.Locals {
				fw.WriteU32(l.Count)
				fw.Byte(byte(l.ValType))
			}
			writeExpr(fw, body.Body)
			sec.WriteU32(uint32(fw.Len()))
			sec.WriteBytes(fw.Bytes())
		}
		w.Section(SectionCode, sec.Bytes())
	}

	if len(m.Data) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Data)))
		for _, seg := range m.Data {
			writeDataSegment(sec, seg)
		}
		w.Section(SectionData, sec.Bytes())
	}

	for _, cs := range m.CustomSections {
		sec := binary.NewWriter()
		sec.WriteName(cs.Name)
		sec.WriteBytes(cs.Data)
		w.Section(SectionCustom, sec.Bytes())
	}

	return w.Bytes()
}

func writeExpr(w *binary.Writer, instrs []Instruction) {
	EncodeInstructionsTo(w, instrs)
	w.Byte(OpEnd)
}

// writeElement picks the flags encoding from Mode, TableIdx and whether
// the segment carries expressions, so hand-built segments need not set Flags.
func writeElement(w *binary.Writer, e *Element) {
	var flags uint32
	switch e.Mode {
	case SegmentPassive:
		flags = 1
	case SegmentDeclarative:
		flags = 3
	default:
		if e.TableIdx != 0 || (e.Exprs != nil && e.Type != ValFuncRef && e.Type != 0) {
			flags = 2
		}
	}
	if e.Exprs != nil {
		flags |= 0x04
	}
	w.WriteU32(flags)

	if e.Mode == SegmentActive {
		if flags&0x02 != 0 {
			w.WriteU32(e.TableIdx)
		}
		writeExpr(w, e.Offset)
	}
	if flags&0x03 != 0 {
		if e.Exprs != nil {
			t := e.Type
			if t == 0 {
				t = ValFuncRef
			}
			w.Byte(byte(t))
		} else {
			w.Byte(ElemKindFuncRef)
		}
	}

	if e.Exprs != nil {
		w.WriteU32(uint32(len(e.Exprs)))
		for _, expr := range e.Exprs {
			writeExpr(w, expr)
		}
		return
	}
	w.WriteU32(uint32(len(e.FuncIdxs)))
	for _, idx := range e.FuncIdxs {
		w.WriteU32(idx)
	}
}

func writeDataSegment(w *binary.Writer, seg DataSegment) {
	switch {
	case seg.Mode == SegmentPassive:
		w.WriteU32(1)
	case seg.MemIdx != 0:
		w.WriteU32(2)
		w.WriteU32(seg.MemIdx)
		writeExpr(w, seg.Offset)
	default:
		w.WriteU32(0)
		writeExpr(w, seg.Offset)
	}
	w.WriteU32(uint32(len(seg.Init)))
	w.WriteBytes(seg.Init)
}

func writeValTypes(w *binary.Writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

func writeLimits(w *binary.Writer, l Limits) {
	if l.Max == nil {
		w.Byte(LimitsNoMax)
		w.WriteU32(uint32(l.Min))
		return
	}
	w.Byte(LimitsHasMax)
	w.WriteU32(uint32(l.Min))
	w.WriteU32(uint32(*l.Max))
}

func writeTableType(w *binary.Writer, t TableType) {
	w.Byte(byte(t.ElemType))
	writeLimits(w, t.Limits)
}

func writeGlobalType(w *binary.Writer, g GlobalType) {
	w.Byte(byte(g.ValType))
	if g.Mutable {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}
