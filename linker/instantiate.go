package linker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-vm/engine"
	"github.com/wippyai/wasm-vm/errors"
	"github.com/wippyai/wasm-vm/wasm"
)

// Instantiate resolves m's imports, allocates its functions, tables,
// memories, globals and segments, applies active segments, binds exports
// and runs the start function. m must already be validated. When name is
// not empty the new instance is registered under it, after the start
// function has returned.
//
// Index spaces list imports first, then the module's own definitions.
// Active and declarative segments are dropped once applied. A trap while
// applying a segment or in the start function is returned as an
// ErrInstantiation error whose cause is the trap; writes made before the
// failure stay in the Store.
func (l *Linker) Instantiate(ctx context.Context, m *wasm.Module, name string) (*engine.ModuleInstance, error) {
	start := time.Now()
	log := Logger().With(zap.String("module", name))

	externs, err := l.Resolve(m)
	if err != nil {
		return nil, err
	}

	inst := &engine.ModuleInstance{
		Name:    name,
		Types:   m.Types,
		Exports: make(map[string]engine.ExternVal, len(m.Exports)),
	}
	for _, ev := range externs {
		switch ev.Kind {
		case wasm.KindFunc:
			inst.FuncAddrs = append(inst.FuncAddrs, ev.Addr)
		case wasm.KindTable:
			inst.TableAddrs = append(inst.TableAddrs, ev.Addr)
		case wasm.KindMemory:
			inst.MemAddrs = append(inst.MemAddrs, ev.Addr)
		case wasm.KindGlobal:
			inst.GlobalAddrs = append(inst.GlobalAddrs, ev.Addr)
		}
	}

	if err := l.allocate(inst, m); err != nil {
		return nil, err
	}
	for _, exp := range m.Exports {
		ev, err := exportOf(inst, exp)
		if err != nil {
			return nil, err
		}
		inst.Exports[exp.Name] = ev
	}

	if err := l.initElems(inst, m); err != nil {
		log.Warn("element segment initialisation failed", zap.Error(err))
		return nil, err
	}
	if err := l.initData(inst, m); err != nil {
		log.Warn("data segment initialisation failed", zap.Error(err))
		return nil, err
	}

	if m.Start != nil {
		idx := *m.Start
		if int(idx) >= len(inst.FuncAddrs) {
			return nil, instError("start", nil, "start function %d out of range", idx)
		}
		log.Debug("running start function", zap.Uint32("func", idx))
		if _, err := l.exec.Invoke(ctx, inst.FuncAddrs[idx], nil); err != nil {
			return nil, instError("start", err, "start function %d trapped", idx)
		}
	}

	if name != "" {
		l.Register(name, inst)
	}
	log.Debug("instantiated",
		zap.Int("imports", len(externs)),
		zap.Int("funcs", len(inst.FuncAddrs)),
		zap.Int("exports", len(inst.Exports)),
		zap.Duration("took", time.Since(start)))
	return inst, nil
}

// allocate creates the module's own instances in the Store and appends
// their addresses after the imported ones.
func (l *Linker) allocate(inst *engine.ModuleInstance, m *wasm.Module) error {
	if len(m.Funcs) != len(m.Code) {
		return instError("alloc", nil, "%d function declarations but %d bodies", len(m.Funcs), len(m.Code))
	}
	for i, typeIdx := range m.Funcs {
		if int(typeIdx) >= len(m.Types) {
			return instError("alloc", nil, "function %d has type index %d out of range", i, typeIdx)
		}
		body := &m.Code[i]
		addr := l.store.AllocFunc(&engine.ModuleFunc{
			Module: inst,
			Type:   m.Types[typeIdx],
			Locals: body.ExpandLocals(),
			Body:   body.Body,
		})
		inst.FuncAddrs = append(inst.FuncAddrs, addr)
	}
	for _, tt := range m.Tables {
		inst.TableAddrs = append(inst.TableAddrs, l.store.AllocTable(tt))
	}
	for _, mt := range m.Memories {
		inst.MemAddrs = append(inst.MemAddrs, l.store.AllocMem(mt))
	}
	for i, g := range m.Globals {
		v, err := l.evalConst(inst, g.Init)
		if err != nil {
			return err
		}
		if v.Type() != g.Type.ValType {
			return instError("alloc", nil, "global %d initialiser is %s, want %s", i, v.Type(), g.Type.ValType)
		}
		inst.GlobalAddrs = append(inst.GlobalAddrs, l.store.AllocGlobal(g.Type, v))
	}
	for i := range m.Elements {
		refs, err := l.elemRefs(inst, &m.Elements[i])
		if err != nil {
			return err
		}
		inst.ElemAddrs = append(inst.ElemAddrs, l.store.AllocElem(m.Elements[i].Type, refs))
	}
	for _, d := range m.Data {
		inst.DataAddrs = append(inst.DataAddrs, l.store.AllocData(d.Init))
	}
	return nil
}

func (l *Linker) elemRefs(inst *engine.ModuleInstance, e *wasm.Element) ([]engine.Ref, error) {
	if len(e.Exprs) > 0 {
		refs := make([]engine.Ref, 0, len(e.Exprs))
		for _, expr := range e.Exprs {
			v, err := l.evalConst(inst, expr)
			if err != nil {
				return nil, err
			}
			r, ok := v.(engine.Ref)
			if !ok {
				return nil, instError("alloc", nil, "element expression produced %s", v.Type())
			}
			refs = append(refs, r)
		}
		return refs, nil
	}
	refs := make([]engine.Ref, 0, len(e.FuncIdxs))
	for _, idx := range e.FuncIdxs {
		if int(idx) >= len(inst.FuncAddrs) {
			return nil, instError("alloc", nil, "element function %d out of range", idx)
		}
		refs = append(refs, engine.FuncRef(inst.FuncAddrs[idx]))
	}
	return refs, nil
}

func (l *Linker) initElems(inst *engine.ModuleInstance, m *wasm.Module) error {
	for i := range m.Elements {
		e := &m.Elements[i]
		seg := l.store.Elems[inst.ElemAddrs[i]]
		switch e.Mode {
		case wasm.SegmentActive:
			if int(e.TableIdx) >= len(inst.TableAddrs) {
				return instError("elem", nil, "segment %d names table %d out of range", i, e.TableIdx)
			}
			off, err := l.evalOffset(inst, e.Offset)
			if err != nil {
				return err
			}
			table := l.store.Tables[inst.TableAddrs[e.TableIdx]]
			if uint64(off)+uint64(len(seg.Refs)) > uint64(len(table.Elems)) {
				return instError("elem", errors.Trap("out of bounds table access"),
					"segment %d does not fit table %d at offset %d", i, e.TableIdx, off)
			}
			copy(table.Elems[off:], seg.Refs)
			seg.Refs = nil
		case wasm.SegmentDeclarative:
			seg.Refs = nil
		}
	}
	return nil
}

func (l *Linker) initData(inst *engine.ModuleInstance, m *wasm.Module) error {
	for i := range m.Data {
		d := &m.Data[i]
		if d.Mode != wasm.SegmentActive {
			continue
		}
		seg := l.store.Datas[inst.DataAddrs[i]]
		if int(d.MemIdx) >= len(inst.MemAddrs) {
			return instError("data", nil, "segment %d names memory %d out of range", i, d.MemIdx)
		}
		off, err := l.evalOffset(inst, d.Offset)
		if err != nil {
			return err
		}
		mem := l.store.Mems[inst.MemAddrs[d.MemIdx]]
		if uint64(off)+uint64(len(seg.Data)) > uint64(len(mem.Data)) {
			return instError("data", errors.Trap("out of bounds memory access"),
				"segment %d does not fit memory %d at offset %d", i, d.MemIdx, off)
		}
		copy(mem.Data[off:], seg.Data)
		seg.Data = nil
	}
	return nil
}

func exportOf(inst *engine.ModuleInstance, exp wasm.Export) (engine.ExternVal, error) {
	var addrs []engine.Addr
	switch exp.Kind {
	case wasm.KindFunc:
		addrs = inst.FuncAddrs
	case wasm.KindTable:
		addrs = inst.TableAddrs
	case wasm.KindMemory:
		addrs = inst.MemAddrs
	case wasm.KindGlobal:
		addrs = inst.GlobalAddrs
	}
	if int(exp.Idx) >= len(addrs) {
		return engine.ExternVal{}, instError("export", nil, "export %q: %s %d out of range", exp.Name, kindName(exp.Kind), exp.Idx)
	}
	return engine.ExternVal{Kind: exp.Kind, Addr: addrs[exp.Idx]}, nil
}
