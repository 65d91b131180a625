package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrOverflow is returned when a LEB128 value exceeds the maximum size.
var ErrOverflow = errors.New("leb128: overflow")

// ErrInvalidUTF8 is returned by ReadName for names that are not valid UTF-8.
var ErrInvalidUTF8 = errors.New("invalid UTF-8 in name")

// Reader is a cursor over a byte slice with WASM-specific read methods.
// It never reads past the slice it was given: running out of input yields
// io.EOF (nothing read) or io.ErrUnexpectedEOF (a value was cut short).
type Reader struct {
	data []byte
	pos  int
	base int
}

// NewReader creates a new Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Position returns the current byte position, relative to the outermost reader.
func (r *Reader) Position() int {
	return r.base + r.pos
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.data) - r.pos
}

// ReadByte reads a single byte and advances the position.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes reads exactly n bytes. The returned slice is a copy.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, r.wrapError(io.ErrUnexpectedEOF)
	}
	buf := make([]byte, n)
	copy(buf, r.data[r.pos:r.pos+n])
	r.pos += n
	return buf, nil
}

// Sub returns a reader scoped to the next n bytes and advances past them.
func (r *Reader) Sub(n int) (*Reader, error) {
	if n < 0 || n > r.Len() {
		return nil, r.wrapError(io.ErrUnexpectedEOF)
	}
	sub := &Reader{data: r.data[r.pos : r.pos+n], base: r.Position()}
	r.pos += n
	return sub, nil
}

// ReadRemaining reads all remaining bytes.
func (r *Reader) ReadRemaining() ([]byte, error) {
	return r.ReadBytes(r.Len())
}

// DecodeULEB128 reads an unsigned LEB128 value of at most width bits from r.
// The final byte a width allows may not set the continuation bit or any bit
// past width. Running out of input mid-value yields io.ErrUnexpectedEOF.
func DecodeULEB128(r io.ByteReader, width uint) (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, lebEOF(err, shift)
		}
		if shift+7 >= width && b>>(width-shift) != 0 {
			return 0, ErrOverflow
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// DecodeSLEB128 reads a signed LEB128 value of at most width bits from r.
// In the final byte, the bits past width must repeat the sign bit.
func DecodeSLEB128(r io.ByteReader, width uint) (int64, error) {
	var result int64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, lebEOF(err, shift)
		}
		if shift+7 >= width {
			if b&0x80 != 0 {
				return 0, ErrOverflow
			}
			s := width - shift - 1
			if high := b >> s; high != 0 && high != 0x7f>>s {
				return 0, ErrOverflow
			}
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= int64(-1) << shift
			}
			return result, nil
		}
	}
}

func lebEOF(err error, shift uint) error {
	if shift > 0 && err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// leb attaches the position to a LEB128 failure. A clean io.EOF before the
// first byte is returned as is so callers can detect the end of input.
func (r *Reader) leb(err error) error {
	if err == io.EOF {
		return err
	}
	return r.wrapError(err)
}

// ReadU32 reads an unsigned LEB128 encoded uint32.
func (r *Reader) ReadU32() (uint32, error) {
	v, err := DecodeULEB128(r, 32)
	if err != nil {
		return 0, r.leb(err)
	}
	return uint32(v), nil
}

// ReadS32 reads a signed LEB128 encoded int32.
func (r *Reader) ReadS32() (int32, error) {
	v, err := DecodeSLEB128(r, 32)
	if err != nil {
		return 0, r.leb(err)
	}
	return int32(v), nil
}

// ReadS64 reads a signed LEB128 encoded int64.
func (r *Reader) ReadS64() (int64, error) {
	v, err := DecodeSLEB128(r, 64)
	if err != nil {
		return 0, r.leb(err)
	}
	return v, nil
}

// ReadU8 reads one byte that must be present, such as a type tag or an
// immediate. Unlike ReadByte it reports exhaustion as io.ErrUnexpectedEOF.
func (r *Reader) ReadU8() (byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, r.wrapError(io.ErrUnexpectedEOF)
	}
	return b, nil
}

// ReadName reads a UTF-8 encoded name (length-prefixed byte sequence).
func (r *Reader) ReadName() (string, error) {
	length, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	data, err := r.ReadBytes(int(length))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", r.wrapError(ErrInvalidUTF8)
	}
	return string(data), nil
}

// ReadU32LE reads a little-endian uint32 (fixed 4 bytes).
func (r *Reader) ReadU32LE() (uint32, error) {
	buf, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// ReadU64LE reads a little-endian uint64 (fixed 8 bytes).
func (r *Reader) ReadU64LE() (uint64, error) {
	buf, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

func (r *Reader) wrapError(err error) error {
	return &ParseError{Position: r.Position(), Err: err}
}

// ParseError represents an error during binary parsing with position information.
type ParseError struct {
	Err      error
	Section  string
	Position int
}

func (e *ParseError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("wasm: %s at position %d: %v", e.Section, e.Position, e.Err)
	}
	return fmt.Sprintf("wasm: at position %d: %v", e.Position, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// WrapError creates a ParseError with the current position. A ParseError
// from this reader keeps its own position and gains the section name.
func (r *Reader) WrapError(section string, err error) error {
	if pe, ok := err.(*ParseError); ok {
		if pe.Section == "" {
			return &ParseError{Position: pe.Position, Section: section, Err: pe.Err}
		}
		return pe
	}
	return &ParseError{
		Position: r.Position(),
		Section:  section,
		Err:      err,
	}
}
