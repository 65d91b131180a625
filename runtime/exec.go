package runtime

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/wasm"
)

// ctxPollInterval is how many instructions run between context checks.
const ctxPollInterval = 1024

// Runtime executes functions of a FunctionTable against a Memory. It is not
// safe for concurrent use; Instance serializes access.
type Runtime struct {
	table  *FunctionTable
	mem    *Memory
	log    *zap.Logger
	stack  []Value
	frames []*frame
	cfg    Config
	steps  uint64

	// While skipping, instructions are scanned but not executed until the
	// current frame's label stack shrinks to skipDepth. With stopAtElse an
	// else at skipDepth+1 resumes execution too.
	skipping   bool
	stopAtElse bool
	skipDepth  int
}

type ctlKind uint8

const (
	ctlNext ctlKind = iota
	ctlBranch
	ctlReturn
	ctlCall
)

// control is the transfer requested by one instruction.
type control struct {
	fn    *Function
	depth uint32
	kind  ctlKind
}

var next = control{kind: ctlNext}

// NewRuntime creates a runtime over table and mem.
func NewRuntime(table *FunctionTable, mem *Memory, cfg Config) *Runtime {
	return &Runtime{
		table: table,
		mem:   mem,
		cfg:   cfg.withDefaults(),
	}
}

// Steps returns the number of instructions fetched by the last Execute.
func (r *Runtime) Steps() uint64 { return r.steps }

func (r *Runtime) reset() {
	r.stack = r.stack[:0]
	r.frames = r.frames[:0]
	r.steps = 0
	r.skipping = false
}

// Execute runs function idx with args and returns the resulting values.
// Arguments are checked against the declared parameters before any
// instruction runs.
func (r *Runtime) Execute(ctx context.Context, idx uint32, args []Value) ([]Value, error) {
	r.reset()

	fn, err := r.table.Lookup(idx)
	if err != nil {
		return nil, err
	}
	if err := checkArgs(fn.Type.Params, args); err != nil {
		return nil, err
	}

	f, err := newFrame(fn, args, 0)
	if err != nil {
		return nil, err
	}
	r.frames = append(r.frames, f)
	r.log = Logger()

	return r.run(ctx)
}

func checkArgs(params []wasm.ValType, args []Value) error {
	ok := len(params) == len(args)
	for i := 0; ok && i < len(params); i++ {
		ok = params[i] != wasm.ValUnknown && params[i] == args[i].typ
	}
	if !ok {
		return errors.InvalidArgs(typeList(params), typeList(Types(args)))
	}
	return nil
}

func (r *Runtime) run(ctx context.Context) ([]Value, error) {
	for {
		f := r.frames[len(r.frames)-1]
		if f.pc >= len(f.fn.Code) {
			results, done, err := r.leave(f, false)
			if done || err != nil {
				return results, err
			}
			continue
		}

		if err := r.tick(ctx); err != nil {
			return nil, annotate(err, f, f.pc)
		}

		pc := f.pc
		instr := &f.fn.Code[pc]
		f.pc++

		if r.skipping {
			r.scan(f, instr)
			continue
		}
		if r.cfg.TraceInstructions {
			r.trace(f, pc, instr)
		}

		ctl, err := r.step(f, instr)
		if err != nil {
			return nil, annotate(err, f, pc)
		}

		switch ctl.kind {
		case ctlBranch:
			results, done, err := r.branch(f, ctl.depth)
			if err != nil {
				return nil, annotate(err, f, pc)
			}
			if done {
				return results, nil
			}
		case ctlReturn:
			results, done, err := r.leave(f, true)
			if err != nil {
				return nil, annotate(err, f, pc)
			}
			if done {
				return results, nil
			}
		case ctlCall:
			if err := r.call(ctl.fn); err != nil {
				return nil, annotate(err, f, pc)
			}
		}
	}
}

// tick charges one instruction of fuel and polls ctx periodically.
func (r *Runtime) tick(ctx context.Context) error {
	if r.steps%ctxPollInterval == 0 {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(errors.PhaseRuntime, errors.KindCanceled, err, "execution canceled")
		}
	}
	if r.cfg.Fuel != 0 && r.steps >= r.cfg.Fuel {
		return errors.New(errors.PhaseRuntime, errors.KindFuelExhausted).
			Detail("fuel of %d instructions spent", r.cfg.Fuel).
			Build()
	}
	r.steps++
	return nil
}

func (r *Runtime) trace(f *frame, pc int, instr *wasm.Instruction) {
	if ce := r.log.Check(zap.DebugLevel, "exec"); ce != nil {
		ce.Write(
			zap.Uint32("func", f.fn.Index),
			zap.Int("pc", pc),
			zap.Stringer("instr", instr),
			zap.Int("stack", len(r.stack)),
			zap.Int("labels", len(f.labels)),
		)
	}
}

// annotate prefixes the error path with the faulting function and pc.
func annotate(err error, f *frame, pc int) error {
	e, ok := err.(*errors.Error)
	if !ok {
		return err
	}
	where := []string{"func " + strconv.FormatUint(uint64(f.fn.Index), 10), "pc " + strconv.Itoa(pc)}
	e.Path = append(where, e.Path...)
	return e
}

// leave pops frame f. Falling off the end of the entry frame returns the
// value stack as is; otherwise the declared results replace the frame's
// part of the stack. done reports that the entry frame returned.
func (r *Runtime) leave(f *frame, explicit bool) (results []Value, done bool, err error) {
	r.skipping = false
	entry := len(r.frames) == 1
	if entry && !explicit {
		return append([]Value(nil), r.stack...), true, nil
	}

	n := len(f.fn.Type.Results)
	if len(r.stack)-f.base < n {
		return nil, true, errors.StackUnderflow("value")
	}
	results = append([]Value(nil), r.stack[len(r.stack)-n:]...)
	r.frames = r.frames[:len(r.frames)-1]
	r.stack = append(r.stack[:f.base], results...)
	if entry {
		return results, true, nil
	}
	return nil, false, nil
}

// branch transfers control to the label depth levels up. A branch to a loop
// re-enters it; a branch to a block or if keeps the label's results and skips
// to its end. Depth equal to the label count targets the function itself.
func (r *Runtime) branch(f *frame, depth uint32) ([]Value, bool, error) {
	n := len(f.labels)
	if uint64(depth) == uint64(n) {
		return r.leave(f, true)
	}
	if uint64(depth) > uint64(n) {
		return nil, true, errors.OutOfBounds(errors.PhaseRuntime, []string{"label"}, int(depth), n)
	}

	at := n - 1 - int(depth)
	target := f.labels[at]

	if target.kind == labelLoop {
		if err := r.unwind(target.height, 0); err != nil {
			return nil, true, err
		}
		f.labels = f.labels[:at+1]
		f.pc = target.pc
		return nil, false, nil
	}

	// Inner labels stay so their ends are consumed while skipping.
	if err := r.unwind(target.height, target.arity); err != nil {
		return nil, true, err
	}
	r.skipUntil(at, false)
	return nil, false, nil
}

// unwind drops values down to height, keeping the top keep values.
func (r *Runtime) unwind(height, keep int) error {
	if len(r.stack)-keep < height {
		return errors.StackUnderflow("value")
	}
	kept := r.stack[len(r.stack)-keep:]
	r.stack = append(r.stack[:height], kept...)
	return nil
}

func (r *Runtime) skipUntil(depth int, stopAtElse bool) {
	r.skipping = true
	r.skipDepth = depth
	r.stopAtElse = stopAtElse
}

// scan tracks nesting while skipping. Nested blocks push placeholder labels
// so their ends are not mistaken for the end being searched for.
func (r *Runtime) scan(f *frame, instr *wasm.Instruction) {
	switch instr.Opcode {
	case wasm.OpBlock, wasm.OpLoop, wasm.OpIf:
		f.pushLabel(labelBlock, 0, len(r.stack))
	case wasm.OpElse:
		if r.stopAtElse && len(f.labels) == r.skipDepth+1 {
			r.skipping = false
		}
	case wasm.OpEnd:
		f.popLabel()
		if len(f.labels) <= r.skipDepth {
			r.skipping = false
		}
	}
}

func (r *Runtime) call(fn *Function) error {
	if len(r.frames) >= r.cfg.MaxCallDepth {
		return errors.New(errors.PhaseRuntime, errors.KindCallStack).
			Detail("call depth exceeds %d", r.cfg.MaxCallDepth).
			Build()
	}

	caller := r.frames[len(r.frames)-1]
	n := len(fn.Type.Params)
	if len(r.stack)-caller.base < n {
		return errors.StackUnderflow("value")
	}
	base := len(r.stack) - n
	args := r.stack[base:]
	for i, p := range fn.Type.Params {
		if args[i].typ != p {
			return errors.TypeMismatch(typeList(fn.Type.Params), typeList(Types(args)))
		}
	}

	f, err := newFrame(fn, args, base)
	if err != nil {
		return err
	}
	r.stack = r.stack[:base]
	r.frames = append(r.frames, f)
	return nil
}

func (r *Runtime) push(v Value) {
	r.stack = append(r.stack, v)
}

// pop removes the top value. Values below the current frame's base belong
// to the caller and cannot be popped.
func (r *Runtime) pop() (Value, error) {
	f := r.frames[len(r.frames)-1]
	n := len(r.stack)
	if n <= f.base {
		return Value{}, errors.StackUnderflow("value")
	}
	v := r.stack[n-1]
	r.stack = r.stack[:n-1]
	return v, nil
}

func (r *Runtime) popType(t wasm.ValType) (Value, error) {
	v, err := r.pop()
	if err != nil {
		return Value{}, err
	}
	if v.typ != t {
		return Value{}, errors.TypeMismatch(typeName(t), typeName(v.typ))
	}
	return v, nil
}

// pop2 pops the right operand b, then the left operand a.
func (r *Runtime) pop2(t wasm.ValType) (b, a Value, err error) {
	if b, err = r.popType(t); err != nil {
		return
	}
	a, err = r.popType(t)
	return
}

func immediate[T any](instr *wasm.Instruction) (T, error) {
	imm, ok := instr.Imm.(T)
	if !ok {
		return imm, errors.New(errors.PhaseRuntime, errors.KindUnexpected).
			Detail("%s has immediate %T", instr.Opcode, instr.Imm).
			Build()
	}
	return imm, nil
}

// step executes one instruction.
func (r *Runtime) step(f *frame, instr *wasm.Instruction) (control, error) {
	switch op := instr.Opcode; op {
	case wasm.OpUnreachable:
		return next, errors.New(errors.PhaseRuntime, errors.KindUnreachable).
			Detail("unreachable executed").
			Build()

	case wasm.OpNop:

	case wasm.OpBlock, wasm.OpLoop:
		imm, err := immediate[wasm.BlockImm](instr)
		if err != nil {
			return next, err
		}
		kind := labelBlock
		if op == wasm.OpLoop {
			kind = labelLoop
		}
		f.pushLabel(kind, imm.Type.Results(), len(r.stack))

	case wasm.OpIf:
		imm, err := immediate[wasm.BlockImm](instr)
		if err != nil {
			return next, err
		}
		cond, err := r.pop()
		if err != nil {
			return next, err
		}
		f.pushLabel(labelIf, imm.Type.Results(), len(r.stack))
		if !cond.Bool() {
			r.skipUntil(len(f.labels)-1, true)
		}

	case wasm.OpElse:
		// reached at the end of a taken then-branch
		if n := len(f.labels); n == 0 || f.labels[n-1].kind != labelIf {
			return next, errors.New(errors.PhaseRuntime, errors.KindUnexpected).
				Detail("else outside if").
				Build()
		}
		r.skipUntil(len(f.labels)-1, false)

	case wasm.OpEnd:
		f.popLabel()

	case wasm.OpBr:
		imm, err := immediate[wasm.BranchImm](instr)
		if err != nil {
			return next, err
		}
		return control{kind: ctlBranch, depth: imm.LabelIdx}, nil

	case wasm.OpBrIf:
		imm, err := immediate[wasm.BranchImm](instr)
		if err != nil {
			return next, err
		}
		cond, err := r.pop()
		if err != nil {
			return next, err
		}
		if cond.Bool() {
			return control{kind: ctlBranch, depth: imm.LabelIdx}, nil
		}

	case wasm.OpBrTable:
		imm, err := immediate[wasm.BrTableImm](instr)
		if err != nil {
			return next, err
		}
		sel, err := r.popType(wasm.ValI32)
		if err != nil {
			return next, err
		}
		depth := imm.Default
		if i := sel.U32(); uint64(i) < uint64(len(imm.Labels)) {
			depth = imm.Labels[i]
		}
		return control{kind: ctlBranch, depth: depth}, nil

	case wasm.OpReturn:
		return control{kind: ctlReturn}, nil

	case wasm.OpCall:
		imm, err := immediate[wasm.CallImm](instr)
		if err != nil {
			return next, err
		}
		fn, err := r.table.Lookup(imm.FuncIdx)
		if err != nil {
			return next, err
		}
		return control{kind: ctlCall, fn: fn}, nil

	case wasm.OpCallIndirect, wasm.OpGlobalGet, wasm.OpGlobalSet:
		return next, errors.Unimplemented(op)

	case wasm.OpDrop:
		if _, err := r.pop(); err != nil {
			return next, err
		}

	case wasm.OpSelect:
		cond, err := r.popType(wasm.ValI32)
		if err != nil {
			return next, err
		}
		b, err := r.pop()
		if err != nil {
			return next, err
		}
		a, err := r.pop()
		if err != nil {
			return next, err
		}
		if cond.Bool() {
			r.push(a)
		} else {
			r.push(b)
		}

	case wasm.OpLocalGet:
		imm, err := immediate[wasm.LocalImm](instr)
		if err != nil {
			return next, err
		}
		v, err := f.local(imm.LocalIdx)
		if err != nil {
			return next, err
		}
		r.push(v)

	case wasm.OpLocalSet, wasm.OpLocalTee:
		imm, err := immediate[wasm.LocalImm](instr)
		if err != nil {
			return next, err
		}
		v, err := r.pop()
		if err != nil {
			return next, err
		}
		if err := f.setLocal(imm.LocalIdx, v); err != nil {
			return next, err
		}
		if op == wasm.OpLocalTee {
			r.push(v)
		}

	case wasm.OpI32Const:
		imm, err := immediate[wasm.I32Imm](instr)
		if err != nil {
			return next, err
		}
		r.push(ValueI32(imm.Value))

	case wasm.OpI64Const:
		imm, err := immediate[wasm.I64Imm](instr)
		if err != nil {
			return next, err
		}
		r.push(ValueI64(imm.Value))

	case wasm.OpF32Const:
		imm, err := immediate[wasm.F32Imm](instr)
		if err != nil {
			return next, err
		}
		r.push(ValueF32(imm.Value))

	case wasm.OpF64Const:
		imm, err := immediate[wasm.F64Imm](instr)
		if err != nil {
			return next, err
		}
		r.push(ValueF64(imm.Value))

	case wasm.OpMemorySize:
		r.push(ValueI32(int32(r.mem.Pages())))

	case wasm.OpMemoryGrow:
		delta, err := r.popType(wasm.ValI32)
		if err != nil {
			return next, err
		}
		prev, ok := r.mem.Grow(delta.U32())
		if !ok {
			r.push(ValueI32(-1))
		} else {
			r.push(ValueI32(int32(prev)))
		}

	default:
		if m, ok := memoryOps[op]; ok {
			imm, err := immediate[wasm.MemoryImm](instr)
			if err != nil {
				return next, err
			}
			return next, r.access(m, imm)
		}
		if n, ok := numericOps[op]; ok {
			return next, r.apply(n)
		}
		return next, errors.Unimplemented(op)
	}
	return next, nil
}

// memInstr describes a load or store: the value type on the stack, the
// number of bytes accessed and, for narrow loads, sign extension.
type memInstr struct {
	typ    wasm.ValType
	width  int
	signed bool
	store  bool
}

var memoryOps = map[wasm.Opcode]memInstr{
	wasm.OpI32Load:    {typ: wasm.ValI32, width: 4},
	wasm.OpI64Load:    {typ: wasm.ValI64, width: 8},
	wasm.OpF32Load:    {typ: wasm.ValF32, width: 4},
	wasm.OpF64Load:    {typ: wasm.ValF64, width: 8},
	wasm.OpI32Load8S:  {typ: wasm.ValI32, width: 1, signed: true},
	wasm.OpI32Load8U:  {typ: wasm.ValI32, width: 1},
	wasm.OpI32Load16S: {typ: wasm.ValI32, width: 2, signed: true},
	wasm.OpI32Load16U: {typ: wasm.ValI32, width: 2},
	wasm.OpI64Load8S:  {typ: wasm.ValI64, width: 1, signed: true},
	wasm.OpI64Load8U:  {typ: wasm.ValI64, width: 1},
	wasm.OpI64Load16S: {typ: wasm.ValI64, width: 2, signed: true},
	wasm.OpI64Load16U: {typ: wasm.ValI64, width: 2},
	wasm.OpI64Load32S: {typ: wasm.ValI64, width: 4, signed: true},
	wasm.OpI64Load32U: {typ: wasm.ValI64, width: 4},
	wasm.OpI32Store:   {typ: wasm.ValI32, width: 4, store: true},
	wasm.OpI64Store:   {typ: wasm.ValI64, width: 8, store: true},
	wasm.OpF32Store:   {typ: wasm.ValF32, width: 4, store: true},
	wasm.OpF64Store:   {typ: wasm.ValF64, width: 8, store: true},
	wasm.OpI32Store8:  {typ: wasm.ValI32, width: 1, store: true},
	wasm.OpI32Store16: {typ: wasm.ValI32, width: 2, store: true},
	wasm.OpI64Store8:  {typ: wasm.ValI64, width: 1, store: true},
	wasm.OpI64Store16: {typ: wasm.ValI64, width: 2, store: true},
	wasm.OpI64Store32: {typ: wasm.ValI64, width: 4, store: true},
}

// access executes a load or store. The effective address is computed in
// 64 bits so base+offset cannot wrap.
func (r *Runtime) access(m memInstr, imm wasm.MemoryImm) error {
	var v Value
	if m.store {
		var err error
		if v, err = r.popType(m.typ); err != nil {
			return err
		}
	}
	base, err := r.popType(wasm.ValI32)
	if err != nil {
		return err
	}
	addr := uint64(base.U32()) + uint64(imm.Offset)

	if m.store {
		return r.mem.storeN(addr, m.width, v.bits)
	}

	raw, err := r.mem.loadN(addr, m.width)
	if err != nil {
		return err
	}
	if m.signed {
		shift := 64 - 8*m.width
		raw = uint64(int64(raw<<shift) >> shift)
	}
	r.push(ValueFromRaw(m.typ, raw))
	return nil
}
