package engine

import (
	"github.com/tetratelabs/wazero/api"

	wasminterp "github.com/wippyai/wasm-interp"
	"github.com/wippyai/wasm-interp/errors"
)

// WazeroMemory wraps wazero memory to implement wasminterp.Memory. Unlike
// the interpreter's memory it never grows implicitly; a module without a
// memory section has none.
type WazeroMemory struct {
	mem api.Memory
}

func (m *WazeroMemory) outOfBounds(offset uint32, length int) error {
	return errors.New(errors.PhaseRuntime, errors.KindOutOfBounds).
		Path("memory").
		Detail("access of %d bytes at %d exceeds %d bytes", length, offset, m.Size()).
		Value(offset).
		Build()
}

func (m *WazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	if m.mem == nil {
		return nil, m.outOfBounds(offset, int(length))
	}
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, m.outOfBounds(offset, int(length))
	}
	return append([]byte(nil), data...), nil
}

func (m *WazeroMemory) Write(offset uint32, data []byte) error {
	if m.mem == nil || !m.mem.Write(offset, data) {
		return m.outOfBounds(offset, len(data))
	}
	return nil
}

func (m *WazeroMemory) ReadU8(offset uint32) (uint8, error) {
	if m.mem == nil {
		return 0, m.outOfBounds(offset, 1)
	}
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 1)
	}
	return v, nil
}

func (m *WazeroMemory) ReadU16(offset uint32) (uint16, error) {
	if m.mem == nil {
		return 0, m.outOfBounds(offset, 2)
	}
	v, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 2)
	}
	return v, nil
}

func (m *WazeroMemory) ReadU32(offset uint32) (uint32, error) {
	if m.mem == nil {
		return 0, m.outOfBounds(offset, 4)
	}
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 4)
	}
	return v, nil
}

func (m *WazeroMemory) ReadU64(offset uint32) (uint64, error) {
	if m.mem == nil {
		return 0, m.outOfBounds(offset, 8)
	}
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 8)
	}
	return v, nil
}

func (m *WazeroMemory) WriteU8(offset uint32, value uint8) error {
	if m.mem == nil || !m.mem.WriteByte(offset, value) {
		return m.outOfBounds(offset, 1)
	}
	return nil
}

func (m *WazeroMemory) WriteU16(offset uint32, value uint16) error {
	if m.mem == nil || !m.mem.WriteUint16Le(offset, value) {
		return m.outOfBounds(offset, 2)
	}
	return nil
}

func (m *WazeroMemory) WriteU32(offset uint32, value uint32) error {
	if m.mem == nil || !m.mem.WriteUint32Le(offset, value) {
		return m.outOfBounds(offset, 4)
	}
	return nil
}

func (m *WazeroMemory) WriteU64(offset uint32, value uint64) error {
	if m.mem == nil || !m.mem.WriteUint64Le(offset, value) {
		return m.outOfBounds(offset, 8)
	}
	return nil
}

// Size returns the memory size in bytes, or 0 if the module has no memory.
func (m *WazeroMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

var (
	_ wasminterp.Memory      = (*WazeroMemory)(nil)
	_ wasminterp.MemorySizer = (*WazeroMemory)(nil)
)
