package runtime

import (
	"encoding/binary"

	"github.com/wippyai/wasm-interp/errors"
)

// PageSize is the unit of memory.size and memory.grow.
const PageSize = 64 * 1024

// Memory is a single growable linear memory. Accesses past the current
// length grow it by doubling; new bytes are zero. It never shrinks.
type Memory struct {
	data     []byte
	maxPages uint32
}

// NewMemory creates an empty memory that may grow to maxPages pages.
// A zero maxPages allows the full 32-bit address space.
func NewMemory(maxPages uint32) *Memory {
	if maxPages == 0 || maxPages > 65536 {
		maxPages = 65536
	}
	return &Memory{maxPages: maxPages}
}

func (m *Memory) limit() uint64 {
	return uint64(m.maxPages) * PageSize
}

// Len returns the current length in bytes.
func (m *Memory) Len() int { return len(m.data) }

// Size returns the current length in bytes.
func (m *Memory) Size() uint32 { return uint32(min(uint64(len(m.data)), 1<<32-1)) }

// Pages returns the current length in pages, rounded up.
func (m *Memory) Pages() uint32 {
	return uint32((uint64(len(m.data)) + PageSize - 1) / PageSize)
}

// Grow adds delta pages and returns the previous page count. It fails,
// leaving memory unchanged, when the result would exceed the page limit.
func (m *Memory) Grow(delta uint32) (uint32, bool) {
	prev := m.Pages()
	next := uint64(prev) + uint64(delta)
	if next > uint64(m.maxPages) {
		return prev, false
	}
	m.resize(next * PageSize)
	return prev, true
}

// ensure grows memory so that [0, end) is addressable.
func (m *Memory) ensure(end uint64) error {
	if end <= uint64(len(m.data)) {
		return nil
	}
	if end > m.limit() {
		return errors.New(errors.PhaseRuntime, errors.KindOutOfBounds).
			Path("memory").
			Detail("access up to byte %d exceeds the limit of %d pages", end, m.maxPages).
			Value(end).
			Build()
	}
	n := max(uint64(len(m.data)), 8)
	for n < end {
		n *= 2
	}
	m.resize(min(n, m.limit()))
	return nil
}

func (m *Memory) resize(n uint64) {
	if n <= uint64(len(m.data)) {
		return
	}
	if n <= uint64(cap(m.data)) {
		m.data = m.data[:n]
		return
	}
	data := make([]byte, n)
	copy(data, m.data)
	m.data = data
}

// slice returns the n bytes at addr, growing memory to cover them.
func (m *Memory) slice(addr uint64, n int) ([]byte, error) {
	end := addr + uint64(n)
	if err := m.ensure(end); err != nil {
		return nil, err
	}
	return m.data[addr:end], nil
}

func (m *Memory) loadN(addr uint64, n int) (uint64, error) {
	b, err := m.slice(addr, n)
	if err != nil {
		return 0, err
	}
	var raw uint64
	for i := n - 1; i >= 0; i-- {
		raw = raw<<8 | uint64(b[i])
	}
	return raw, nil
}

func (m *Memory) storeN(addr uint64, n int, raw uint64) error {
	b, err := m.slice(addr, n)
	if err != nil {
		return err
	}
	for i := range b {
		b[i] = byte(raw)
		raw >>= 8
	}
	return nil
}

// Read returns a copy of length bytes at offset.
func (m *Memory) Read(offset uint32, length uint32) ([]byte, error) {
	b, err := m.slice(uint64(offset), int(length))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// Write copies data to offset.
func (m *Memory) Write(offset uint32, data []byte) error {
	b, err := m.slice(uint64(offset), len(data))
	if err != nil {
		return err
	}
	copy(b, data)
	return nil
}

func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	v, err := m.loadN(uint64(offset), 1)
	return uint8(v), err
}

func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	b, err := m.slice(uint64(offset), 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	b, err := m.slice(uint64(offset), 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	b, err := m.slice(uint64(offset), 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (m *Memory) WriteU8(offset uint32, value uint8) error {
	return m.storeN(uint64(offset), 1, uint64(value))
}

func (m *Memory) WriteU16(offset uint32, value uint16) error {
	b, err := m.slice(uint64(offset), 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b, value)
	return nil
}

func (m *Memory) WriteU32(offset uint32, value uint32) error {
	b, err := m.slice(uint64(offset), 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, value)
	return nil
}

func (m *Memory) WriteU64(offset uint32, value uint64) error {
	b, err := m.slice(uint64(offset), 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, value)
	return nil
}
