package runtime

import (
	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/wasm"
)

// maxFrameLocals bounds how far local.set may grow a frame's locals.
const maxFrameLocals = 1 << 16

type labelKind uint8

const (
	labelBlock labelKind = iota
	labelLoop
	labelIf
)

func (k labelKind) String() string {
	switch k {
	case labelLoop:
		return "loop"
	case labelIf:
		return "if"
	default:
		return "block"
	}
}

// label is an entry of a frame's control stack. For loops pc is the first
// instruction of the body, the branch target.
type label struct {
	pc     int
	height int
	arity  int
	kind   labelKind
}

// frame is one activation.
type frame struct {
	fn     *Function
	locals []Value
	labels []label
	pc     int
	base   int
}

func newFrame(fn *Function, args []Value, base int) (*frame, error) {
	locals := make([]Value, len(args), len(args)+len(fn.Locals))
	copy(locals, args)
	for _, t := range fn.Locals {
		z, err := zeroValue(t)
		if err != nil {
			return nil, err
		}
		locals = append(locals, z)
	}
	return &frame{fn: fn, locals: locals, base: base}, nil
}

func (f *frame) local(idx uint32) (Value, error) {
	if uint64(idx) >= uint64(len(f.locals)) || f.locals[idx].typ == wasm.ValUnknown {
		return Value{}, errors.OutOfBounds(errors.PhaseRuntime, []string{"local"}, int(idx), len(f.locals))
	}
	return f.locals[idx], nil
}

// setLocal stores v, growing the locals when idx is past the end.
// Slots skipped over by the growth stay unset and cannot be read.
func (f *frame) setLocal(idx uint32, v Value) error {
	if uint64(idx) >= maxFrameLocals {
		return errors.OutOfBounds(errors.PhaseRuntime, []string{"local"}, int(idx), maxFrameLocals)
	}
	if int(idx) >= len(f.locals) {
		f.locals = append(f.locals, make([]Value, int(idx)+1-len(f.locals))...)
	}
	f.locals[idx] = v
	return nil
}

func (f *frame) pushLabel(kind labelKind, arity, height int) {
	f.labels = append(f.labels, label{pc: f.pc, kind: kind, arity: arity, height: height})
}

func (f *frame) popLabel() {
	if n := len(f.labels); n > 0 {
		f.labels = f.labels[:n-1]
	}
}
