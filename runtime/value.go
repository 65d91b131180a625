package runtime

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/wasm"
)

// TypeV128 tags 128-bit vector values. No decoded instruction produces one,
// but hosts may pass them through.
const TypeV128 wasm.ValType = 0x7B

// Value is a typed runtime value. I32 and F32 keep their bit pattern in the
// low 32 bits of bits; V128 uses hi for the upper half.
type Value struct {
	bits uint64
	hi   uint64
	typ  wasm.ValType
}

// ValueI32 creates an i32 value.
func ValueI32(v int32) Value { return Value{typ: wasm.ValI32, bits: uint64(uint32(v))} }

// ValueI64 creates an i64 value.
func ValueI64(v int64) Value { return Value{typ: wasm.ValI64, bits: uint64(v)} }

// ValueF32 creates an f32 value.
func ValueF32(v float32) Value { return Value{typ: wasm.ValF32, bits: uint64(math.Float32bits(v))} }

// ValueF64 creates an f64 value.
func ValueF64(v float64) Value { return Value{typ: wasm.ValF64, bits: math.Float64bits(v)} }

// ValueV128 creates a v128 value from its low and high halves.
func ValueV128(lo, hi uint64) Value { return Value{typ: TypeV128, bits: lo, hi: hi} }

// ValueFromRaw creates a value of type t from the raw uint64 encoding used by
// wazero's api package.
func ValueFromRaw(t wasm.ValType, raw uint64) Value {
	switch t {
	case wasm.ValI32, wasm.ValF32:
		return Value{typ: t, bits: uint64(uint32(raw))}
	default:
		return Value{typ: t, bits: raw}
	}
}

// zeroValue returns the zero value of a local slot of type t.
func zeroValue(t wasm.ValType) (Value, error) {
	switch t {
	case wasm.ValI32, wasm.ValI64, wasm.ValF32, wasm.ValF64, TypeV128:
		return Value{typ: t}, nil
	default:
		return Value{}, errors.Unexpected(errors.PhaseRuntime, "local type", byte(t))
	}
}

func (v Value) Type() wasm.ValType { return v.typ }
func (v Value) I32() int32         { return int32(uint32(v.bits)) }
func (v Value) U32() uint32        { return uint32(v.bits) }
func (v Value) I64() int64         { return int64(v.bits) }
func (v Value) U64() uint64        { return v.bits }
func (v Value) F32() float32       { return math.Float32frombits(uint32(v.bits)) }
func (v Value) F64() float64       { return math.Float64frombits(v.bits) }
func (v Value) V128() (lo, hi uint64) {
	return v.bits, v.hi
}

// Raw returns the value in wazero's uint64 encoding.
func (v Value) Raw() uint64 { return v.bits }

// Bool reinterprets the bit pattern as a uint32 and reports whether it is non-zero.
func (v Value) Bool() bool { return uint32(v.bits) != 0 }

func (v Value) String() string {
	switch v.typ {
	case wasm.ValI32:
		return "i32:" + strconv.FormatInt(int64(v.I32()), 10)
	case wasm.ValI64:
		return "i64:" + strconv.FormatInt(v.I64(), 10)
	case wasm.ValF32:
		return "f32:" + strconv.FormatFloat(float64(v.F32()), 'g', -1, 32)
	case wasm.ValF64:
		return "f64:" + strconv.FormatFloat(v.F64(), 'g', -1, 64)
	case TypeV128:
		return fmt.Sprintf("v128:%016x%016x", v.hi, v.bits)
	default:
		return "unknown"
	}
}

func typeName(t wasm.ValType) string {
	if t == TypeV128 {
		return "v128"
	}
	return t.String()
}

func typeList(types []wasm.ValType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = typeName(t)
	}
	return strings.Join(parts, ", ")
}

// Types returns the type of each value.
func Types(vals []Value) []wasm.ValType {
	types := make([]wasm.ValType, len(vals))
	for i, v := range vals {
		types[i] = v.typ
	}
	return types
}

// ParseValue parses "type:literal" (i32:5, f64:-1.5) or a bare literal of
// type hint. Integers accept any base strconv understands and unsigned
// spellings up to the type's width.
func ParseValue(s string, hint wasm.ValType) (Value, error) {
	t := hint
	lit := s
	if prefix, rest, ok := strings.Cut(s, ":"); ok {
		switch prefix {
		case "i32":
			t = wasm.ValI32
		case "i64":
			t = wasm.ValI64
		case "f32":
			t = wasm.ValF32
		case "f64":
			t = wasm.ValF64
		default:
			return Value{}, parseError(s, "unknown type prefix %q", prefix)
		}
		lit = rest
	}

	switch t {
	case wasm.ValI32:
		n, err := parseInt(lit, 32)
		if err != nil {
			return Value{}, parseError(s, "%v", err)
		}
		return ValueI32(int32(n)), nil
	case wasm.ValI64:
		n, err := parseInt(lit, 64)
		if err != nil {
			return Value{}, parseError(s, "%v", err)
		}
		return ValueI64(n), nil
	case wasm.ValF32:
		f, err := strconv.ParseFloat(lit, 32)
		if err != nil {
			return Value{}, parseError(s, "%v", err)
		}
		return ValueF32(float32(f)), nil
	case wasm.ValF64:
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return Value{}, parseError(s, "%v", err)
		}
		return ValueF64(f), nil
	default:
		return Value{}, parseError(s, "no type for literal")
	}
}

func parseInt(s string, bits int) (int64, error) {
	n, err := strconv.ParseInt(s, 0, bits)
	if err == nil {
		return n, nil
	}
	u, uerr := strconv.ParseUint(s, 0, bits)
	if uerr != nil {
		return 0, err
	}
	return int64(u), nil
}

func parseError(s, format string, args ...any) error {
	return errors.New(errors.PhaseCall, errors.KindInvalidArgs).
		Actual(s).
		Detail(format, args...).
		Build()
}
