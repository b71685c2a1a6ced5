package runtime

import (
	"encoding/binary"

	wasmvm "github.com/wippyai/wasm-vm"
	"github.com/wippyai/wasm-vm/engine"
	"github.com/wippyai/wasm-vm/errors"
)

var (
	_ wasmvm.Memory      = (*MemoryView)(nil)
	_ wasmvm.MemorySizer = (*MemoryView)(nil)
)

// MemoryView gives host code bounds-checked access to an exported memory.
// It follows the memory through memory.grow.
type MemoryView struct {
	mem *engine.MemInst
}

// MemoryView returns a view of the exported memory name.
func (i *Instance) MemoryView(name string) (*MemoryView, bool) {
	mem, ok := i.Memory(name)
	if !ok {
		return nil, false
	}
	return &MemoryView{mem: mem}, true
}

// Size returns the length in bytes.
func (v *MemoryView) Size() uint32 {
	return uint32(len(v.mem.Data))
}

// Pages returns the length in 64 KiB pages.
func (v *MemoryView) Pages() uint32 {
	return v.mem.Pages()
}

func (v *MemoryView) slice(offset, length uint32) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(v.mem.Data)) {
		return nil, errors.Trap("out of bounds memory access at %d+%d (size %d)", offset, length, len(v.mem.Data))
	}
	return v.mem.Data[offset:end], nil
}

// Read returns a copy of length bytes at offset.
func (v *MemoryView) Read(offset, length uint32) ([]byte, error) {
	b, err := v.slice(offset, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, b)
	return out, nil
}

func (v *MemoryView) Write(offset uint32, data []byte) error {
	b, err := v.slice(offset, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(b, data)
	return nil
}

func (v *MemoryView) ReadU8(offset uint32) (uint8, error) {
	b, err := v.slice(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (v *MemoryView) ReadU16(offset uint32) (uint16, error) {
	b, err := v.slice(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (v *MemoryView) ReadU32(offset uint32) (uint32, error) {
	b, err := v.slice(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (v *MemoryView) ReadU64(offset uint32) (uint64, error) {
	b, err := v.slice(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (v *MemoryView) WriteU8(offset uint32, value uint8) error {
	b, err := v.slice(offset, 1)
	if err != nil {
		return err
	}
	b[0] = value
	return nil
}

func (v *MemoryView) WriteU16(offset uint32, value uint16) error {
	b, err := v.slice(offset, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b, value)
	return nil
}

func (v *MemoryView) WriteU32(offset uint32, value uint32) error {
	b, err := v.slice(offset, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, value)
	return nil
}

func (v *MemoryView) WriteU64(offset uint32, value uint64) error {
	b, err := v.slice(offset, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, value)
	return nil
}

// Grow adds delta pages and returns the previous page count, or false
// when the memory's maximum would be exceeded.
func (v *MemoryView) Grow(delta uint32) (uint32, bool) {
	old := v.mem.Grow(delta)
	if old < 0 {
		return 0, false
	}
	return uint32(old), true
}
