package validate

import "github.com/wippyai/wasm-vm/wasm"

// Context is everything a function body may refer to: the module's index
// spaces, the locals and results of the function being checked, and the set
// of functions that ref.func is allowed to name.
type Context struct {
	Types   []wasm.FuncType
	Funcs   []wasm.FuncType
	Tables  []wasm.TableType
	Mems    []wasm.MemoryType
	Globals []wasm.GlobalType
	Elems   []wasm.ValType
	Datas   int

	// Locals holds the parameters followed by the declared locals.
	Locals  []wasm.ValType
	Results []wasm.ValType

	// Refs is the declared-reference function set.
	Refs map[uint32]bool
}

// NewContext builds the module-level context for m. Imports come first in
// every index space.
func NewContext(m *wasm.Module) *Context {
	ctx := &Context{Types: m.Types, Refs: map[uint32]bool{}}
	for _, imp := range m.Imports {
		switch imp.Desc.Kind {
		case wasm.KindFunc:
			ctx.Funcs = append(ctx.Funcs, typeAt(m.Types, imp.Desc.TypeIdx))
		case wasm.KindTable:
			if imp.Desc.Table != nil {
				ctx.Tables = append(ctx.Tables, *imp.Desc.Table)
			}
		case wasm.KindMemory:
			if imp.Desc.Memory != nil {
				ctx.Mems = append(ctx.Mems, *imp.Desc.Memory)
			}
		case wasm.KindGlobal:
			if imp.Desc.Global != nil {
				ctx.Globals = append(ctx.Globals, *imp.Desc.Global)
			}
		}
	}
	for _, ti := range m.Funcs {
		ctx.Funcs = append(ctx.Funcs, typeAt(m.Types, ti))
	}
	ctx.Tables = append(ctx.Tables, m.Tables...)
	ctx.Mems = append(ctx.Mems, m.Memories...)
	for _, g := range m.Globals {
		ctx.Globals = append(ctx.Globals, g.Type)
	}
	for i := range m.Elements {
		ctx.Elems = append(ctx.Elems, m.Elements[i].Type)
	}
	ctx.Datas = len(m.Data)
	if m.DataCount != nil {
		ctx.Datas = int(*m.DataCount)
	}

	for i := range m.Elements {
		e := &m.Elements[i]
		for _, f := range e.FuncIdxs {
			ctx.Refs[f] = true
		}
		for _, expr := range e.Exprs {
			declareRefs(ctx.Refs, expr)
		}
	}
	for _, exp := range m.Exports {
		if exp.Kind == wasm.KindFunc {
			ctx.Refs[exp.Idx] = true
		}
	}
	for _, g := range m.Globals {
		declareRefs(ctx.Refs, g.Init)
	}
	return ctx
}

func declareRefs(refs map[uint32]bool, expr []wasm.Instruction) {
	for _, in := range expr {
		if imm, ok := in.Imm.(wasm.RefFuncImm); ok && in.Opcode == wasm.OpRefFunc {
			refs[imm.FuncIdx] = true
		}
	}
}

func typeAt(types []wasm.FuncType, idx uint32) wasm.FuncType {
	if int(idx) < len(types) {
		return types[idx]
	}
	return wasm.FuncType{}
}

// ForFunc returns a copy of ctx set up to check a function of type ft with
// the given declared locals.
func (c *Context) ForFunc(ft wasm.FuncType, locals []wasm.ValType) *Context {
	fc := *c
	fc.Locals = make([]wasm.ValType, 0, len(ft.Params)+len(locals))
	fc.Locals = append(fc.Locals, ft.Params...)
	fc.Locals = append(fc.Locals, locals...)
	fc.Results = ft.Results
	return &fc
}
