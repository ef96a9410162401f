package bootload

import "fmt"

// FlatMemory is a Memory backed by one contiguous byte slice starting at
// Base, the host/test stand-in for the linker-defined physical address
// space a real target loads into.
type FlatMemory struct {
	Base uint32
	Data []byte
}

// NewFlatMemory allocates size zeroed bytes starting at base.
func NewFlatMemory(base uint32, size int) *FlatMemory {
	return &FlatMemory{Base: base, Data: make([]byte, size)}
}

func (m *FlatMemory) offset(addr uint32) (int, error) {
	if addr < m.Base || int(addr-m.Base) > len(m.Data) {
		return 0, fmt.Errorf("bootload: address %#x out of range", addr)
	}
	return int(addr - m.Base), nil
}

func (m *FlatMemory) WriteAt(addr uint32, data []byte) error {
	off, err := m.offset(addr)
	if err != nil {
		return err
	}
	if off+len(data) > len(m.Data) {
		return fmt.Errorf("bootload: write at %#x overruns memory", addr)
	}
	copy(m.Data[off:], data)
	return nil
}

func (m *FlatMemory) ZeroAt(addr uint32, n int) error {
	off, err := m.offset(addr)
	if err != nil {
		return err
	}
	if off+n > len(m.Data) {
		return fmt.Errorf("bootload: zero-fill at %#x overruns memory", addr)
	}
	clear(m.Data[off : off+n])
	return nil
}
