package wasm

import (
	"bytes"
	stderrors "errors"
	"io"

	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/wasm/internal/binary"
)

// LEB128 encoding/decoding utilities for the binary format.
// Decoders fail with KindInvalidNumeric when a value does not fit its width
// and with KindIO when input ends inside a value.

func lebError(err error, bits int) error {
	if stderrors.Is(err, binary.ErrOverflow) {
		return errors.InvalidNumeric(bits)
	}
	return errors.IO(errors.PhaseDecode, err)
}

// ReadLEB128u reads an unsigned LEB128 value
func ReadLEB128u(r io.ByteReader) (uint32, error) {
	v, err := binary.DecodeULEB128(r, 32)
	if err != nil {
		return 0, lebError(err, 32)
	}
	return uint32(v), nil
}

// ReadLEB128u64 reads an unsigned 64-bit LEB128 value
func ReadLEB128u64(r io.ByteReader) (uint64, error) {
	v, err := binary.DecodeULEB128(r, 64)
	if err != nil {
		return 0, lebError(err, 64)
	}
	return v, nil
}

// ReadLEB128s reads a signed LEB128 value (32-bit)
func ReadLEB128s(r io.ByteReader) (int32, error) {
	v, err := binary.DecodeSLEB128(r, 32)
	if err != nil {
		return 0, lebError(err, 32)
	}
	return int32(v), nil
}

// ReadLEB128s64 reads a signed 64-bit LEB128 value
func ReadLEB128s64(r io.ByteReader) (int64, error) {
	v, err := binary.DecodeSLEB128(r, 64)
	if err != nil {
		return 0, lebError(err, 64)
	}
	return v, nil
}

// WriteLEB128u writes an unsigned LEB128 value
func WriteLEB128u(w *bytes.Buffer, v uint32) {
	w.Write(binary.AppendULEB128(nil, uint64(v)))
}

// WriteLEB128u64 writes an unsigned 64-bit LEB128 value
func WriteLEB128u64(w *bytes.Buffer, v uint64) {
	w.Write(binary.AppendULEB128(nil, v))
}

// WriteLEB128s writes a signed LEB128 value
func WriteLEB128s(w *bytes.Buffer, v int32) {
	w.Write(binary.AppendSLEB128(nil, int64(v)))
}

// WriteLEB128s64 writes a signed 64-bit LEB128 value
func WriteLEB128s64(w *bytes.Buffer, v int64) {
	w.Write(binary.AppendSLEB128(nil, v))
}

// EncodeLEB128u encodes an unsigned 32-bit LEB128 value to bytes.
func EncodeLEB128u(v uint32) []byte {
	return binary.AppendULEB128(nil, uint64(v))
}

// EncodeLEB128s encodes a signed 32-bit LEB128 value to bytes.
func EncodeLEB128s(v int32) []byte {
	return binary.AppendSLEB128(nil, int64(v))
}
