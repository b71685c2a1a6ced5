package engine

func (e *Executor) tableInit(elemIdx, tableIdx uint32) error {
	m, err := e.module()
	if err != nil {
		return err
	}
	if int(elemIdx) >= len(m.ElemAddrs) {
		return trap("element segment %d out of range", elemIdx)
	}
	tab, err := e.table(tableIdx)
	if err != nil {
		return err
	}
	ops, err := e.popU32s(3)
	if err != nil {
		return err
	}
	d, s, n := uint64(ops[0]), uint64(ops[1]), uint64(ops[2])
	src := e.store.Elems[m.ElemAddrs[elemIdx]].Refs
	if s+n > uint64(len(src)) || d+n > uint64(len(tab.Elems)) {
		return trap("out of bounds table access")
	}
	copy(tab.Elems[d:d+n], src[s:s+n])
	return nil
}

func (e *Executor) elemDrop(elemIdx uint32) error {
	m, err := e.module()
	if err != nil {
		return err
	}
	if int(elemIdx) >= len(m.ElemAddrs) {
		return trap("element segment %d out of range", elemIdx)
	}
	e.store.Elems[m.ElemAddrs[elemIdx]].Refs = nil
	return nil
}

func (e *Executor) tableCopy(dstIdx, srcIdx uint32) error {
	dst, err := e.table(dstIdx)
	if err != nil {
		return err
	}
	src, err := e.table(srcIdx)
	if err != nil {
		return err
	}
	ops, err := e.popU32s(3)
	if err != nil {
		return err
	}
	d, s, n := uint64(ops[0]), uint64(ops[1]), uint64(ops[2])
	if s+n > uint64(len(src.Elems)) || d+n > uint64(len(dst.Elems)) {
		return trap("out of bounds table access")
	}
	copy(dst.Elems[d:d+n], src.Elems[s:s+n])
	return nil
}

func (e *Executor) tableGrow(tableIdx uint32) error {
	tab, err := e.table(tableIdx)
	if err != nil {
		return err
	}
	n, ok := e.stack.PopI32()
	if !ok {
		return errStackUnderflow
	}
	init, ok := e.popRef()
	if !ok {
		return errStackUnderflow
	}
	e.stack.Push(I32(tab.Grow(uint32(n), init)))
	return nil
}

func (e *Executor) tableSize(tableIdx uint32) error {
	tab, err := e.table(tableIdx)
	if err != nil {
		return err
	}
	e.stack.Push(I32(int32(len(tab.Elems))))
	return nil
}

func (e *Executor) tableFill(tableIdx uint32) error {
	tab, err := e.table(tableIdx)
	if err != nil {
		return err
	}
	n, ok := e.stack.PopI32()
	if !ok {
		return errStackUnderflow
	}
	val, ok := e.popRef()
	if !ok {
		return errStackUnderflow
	}
	i, ok := e.stack.PopI32()
	if !ok {
		return errStackUnderflow
	}
	start, count := uint64(uint32(i)), uint64(uint32(n))
	if start+count > uint64(len(tab.Elems)) {
		return trap("out of bounds table access")
	}
	for j := start; j < start+count; j++ {
		tab.Elems[j] = val
	}
	return nil
}
