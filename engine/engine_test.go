package engine_test

import (
	"context"
	stderrors "errors"
	"math"
	"testing"
	"time"

	"github.com/wippyai/wasm-interp/engine"
	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/runtime"
	"github.com/wippyai/wasm-interp/wasm"
)

type call struct {
	args []runtime.Value
	want []runtime.Value
	err  error
}

func i32s(vs ...int32) []runtime.Value {
	out := make([]runtime.Value, len(vs))
	for i, v := range vs {
		out[i] = runtime.ValueI32(v)
	}
	return out
}

func i64s(vs ...int64) []runtime.Value {
	out := make([]runtime.Value, len(vs))
	for i, v := range vs {
		out[i] = runtime.ValueI64(v)
	}
	return out
}

func f64s(vs ...float64) []runtime.Value {
	out := make([]runtime.Value, len(vs))
	for i, v := range vs {
		out[i] = runtime.ValueF64(v)
	}
	return out
}

func factorial() testFunc {
	return testFunc{
		export:  "f",
		params:  types(tI64),
		results: types(tI64),
		code: code(
			localGet(0),
			op(wasm.OpI64Eqz),
			block(wasm.OpIf, wasm.BlockI64),
			i64c(1),
			op(wasm.OpElse),
			localGet(0),
			localGet(0),
			i64c(1),
			op(wasm.OpI64Sub),
			wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: 0}},
			op(wasm.OpI64Mul),
			end,
			end,
		),
	}
}

func loopSum() testFunc {
	return testFunc{
		export:  "f",
		params:  types(tI32),
		results: types(tI32),
		locals:  types(tI32),
		code: code(
			block(wasm.OpBlock, wasm.BlockEmpty),
			block(wasm.OpLoop, wasm.BlockEmpty),
			localGet(0),
			op(wasm.OpI32Eqz),
			br(wasm.OpBrIf, 1),
			localGet(1),
			localGet(0),
			op(wasm.OpI32Add),
			localSet(1),
			localGet(0),
			i32c(1),
			op(wasm.OpI32Sub),
			localSet(0),
			br(wasm.OpBr, 0),
			end,
			end,
			localGet(1),
			end,
		),
	}
}

func brTable() testFunc {
	return testFunc{
		export:  "f",
		params:  types(tI32),
		results: types(tI32),
		code: code(
			block(wasm.OpBlock, wasm.BlockEmpty),
			block(wasm.OpBlock, wasm.BlockEmpty),
			localGet(0),
			wasm.Instruction{Opcode: wasm.OpBrTable, Imm: wasm.BrTableImm{Labels: []uint32{0}, Default: 1}},
			end,
			i32c(10),
			op(wasm.OpReturn),
			end,
			i32c(20),
			end,
		),
	}
}

func storeLoad() testFunc {
	return testFunc{
		export:  "f",
		params:  types(tI32, tI32),
		results: types(tI32),
		code: code(
			localGet(0),
			localGet(1),
			mem(wasm.OpI32Store16, 1, 0),
			localGet(0),
			mem(wasm.OpI32Load8S, 0, 1),
			end,
		),
	}
}

func TestDifferential(t *testing.T) {
	nan := math.NaN()
	negZero := math.Copysign(0, -1)

	tests := []struct {
		name   string
		memory []byte
		fn     testFunc
		calls  []call
	}{
		{"i32.add", nil, binary(wasm.OpI32Add, tI32, tI32), []call{
			{args: i32s(2, 3), want: i32s(5)},
			{args: i32s(math.MaxInt32, 1), want: i32s(math.MinInt32)},
		}},
		{"i32.div_s", nil, binary(wasm.OpI32DivS, tI32, tI32), []call{
			{args: i32s(-7, 2), want: i32s(-3)},
			{args: i32s(1, 0), err: errors.ErrDivisionByZero},
			{args: i32s(math.MinInt32, -1), err: errors.ErrIntegerOverflow},
		}},
		{"i32.rem_s", nil, binary(wasm.OpI32RemS, tI32, tI32), []call{
			{args: i32s(math.MinInt32, -1), want: i32s(0)},
			{args: i32s(-7, 2), want: i32s(-1)},
		}},
		{"i32.div_u", nil, binary(wasm.OpI32DivU, tI32, tI32), []call{
			{args: i32s(-1, 2), want: i32s(math.MaxInt32)},
		}},
		{"i32.lt_u", nil, binary(wasm.OpI32LtU, tI32, tI32), []call{
			{args: i32s(-1, 1), want: i32s(0)},
			{args: i32s(1, -1), want: i32s(1)},
		}},
		{"i64.rotl", nil, binary(wasm.OpI64Rotl, tI64, tI64), []call{
			{args: i64s(math.MinInt64, 65), want: i64s(1)},
		}},
		{"i64.shr_s", nil, binary(wasm.OpI64ShrS, tI64, tI64), []call{
			{args: i64s(-8, 1), want: i64s(-4)},
		}},
		{"i32.clz", nil, unary(wasm.OpI32Clz, tI32, tI32), []call{
			{args: i32s(0), want: i32s(32)},
			{args: i32s(1), want: i32s(31)},
		}},
		{"i64.popcnt", nil, unary(wasm.OpI64Popcnt, tI64, tI64), []call{
			{args: i64s(-1), want: i64s(64)},
		}},
		{"i64.extend_i32_u", nil, unary(wasm.OpI64ExtendI32U, tI32, tI64), []call{
			{args: i32s(-1), want: i64s(0xFFFFFFFF)},
		}},
		{"f64.min", nil, binary(wasm.OpF64Min, tF64, tF64), []call{
			{args: f64s(0, negZero), want: f64s(negZero)},
			{args: f64s(1, nan), want: f64s(nan)},
			{args: f64s(-2, 3), want: f64s(-2)},
		}},
		{"f64.copysign", nil, binary(wasm.OpF64Copysign, tF64, tF64), []call{
			{args: f64s(2, -0.5), want: f64s(-2)},
		}},
		{"f64.nearest", nil, unary(wasm.OpF64Nearest, tF64, tF64), []call{
			{args: f64s(2.5), want: f64s(2)},
			{args: f64s(-3.5), want: f64s(-4)},
		}},
		{"f32.demote", nil, unary(wasm.OpF32DemoteF64, tF64, tF32), []call{
			{args: f64s(0.1), want: []runtime.Value{runtime.ValueF32(0.1)}},
		}},
		{"i32.trunc_f64_s", nil, unary(wasm.OpI32TruncF64S, tF64, tI32), []call{
			{args: f64s(-3.9), want: i32s(-3)},
			{args: f64s(3e9), err: errors.ErrIntegerOverflow},
			{args: f64s(nan), err: errors.ErrInvalidConversion},
		}},
		{"factorial", nil, factorial(), []call{
			{args: i64s(0), want: i64s(1)},
			{args: i64s(10), want: i64s(3628800)},
		}},
		{"loop", nil, loopSum(), []call{
			{args: i32s(0), want: i32s(0)},
			{args: i32s(100), want: i32s(5050)},
		}},
		{"br_table", nil, brTable(), []call{
			{args: i32s(0), want: i32s(10)},
			{args: i32s(1), want: i32s(20)},
			{args: i32s(-1), want: i32s(20)},
		}},
		{"unreachable", nil, testFunc{export: "f", code: code(op(wasm.OpUnreachable), end)}, []call{
			{err: errors.ErrUnreachable},
		}},
		{"memory", oneMemoryPage, storeLoad(), []call{
			{args: i32s(100, 0x80FF), want: i32s(-128)},
			{args: i32s(200, 0x7F01), want: i32s(127)},
		}},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interp, wz := backends(t, nil, encodeModule(tt.memory, tt.fn))
			for _, c := range tt.calls {
				got, err := engine.Compare(ctx, interp, wz, "f", c.args)
				if c.err != nil {
					if !stderrors.Is(err, c.err) {
						t.Errorf("%v: got %v, want %v", c.args, err, c.err)
					}
					continue
				}
				if err != nil {
					t.Errorf("%v: %v", c.args, err)
					continue
				}
				if len(got) != len(c.want) {
					t.Errorf("%v: got %v, want %v", c.args, got, c.want)
					continue
				}
				for i := range got {
					if got[i].String() != c.want[i].String() {
						t.Errorf("%v: result %d: got %v, want %v", c.args, i, got[i], c.want[i])
					}
				}
			}
		})
	}
}

func TestMemoryBoundsAgreeWithPageLimit(t *testing.T) {
	interp, wz := backends(t, &runtime.Config{MaxMemoryPages: 1}, encodeModule(oneMemoryPage, storeLoad()))

	_, err := engine.Compare(context.Background(), interp, wz, "f", i32s(runtime.PageSize, 1))
	if !stderrors.Is(err, errors.ErrOutOfBounds) {
		t.Errorf("got %v, want out of bounds from both backends", err)
	}
}

func TestWazeroExports(t *testing.T) {
	_, wz := backends(t, nil, encodeModule(nil,
		testFunc{export: "b", params: types(tI32), results: types(tF64), code: code(op(wasm.OpDrop), wasm.Instruction{Opcode: wasm.OpF64Const, Imm: wasm.F64Imm{Value: 1}}, end)},
		testFunc{export: "a", code: code(end)},
	))

	exports := wz.Exports()
	if len(exports) != 2 {
		t.Fatalf("got %d exports, want 2", len(exports))
	}
	if exports[0].Name != "b" || exports[0].Type.String() != "(i32) -> (f64)" {
		t.Errorf("export 0: got %s %s", exports[0].Name, exports[0].Type)
	}
	if exports[1].Name != "a" || exports[1].Index != 1 {
		t.Errorf("export 1: got %+v", exports[1])
	}
}

func TestWazeroInvokeErrors(t *testing.T) {
	ctx := context.Background()
	_, wz := backends(t, nil, encodeModule(nil, binary(wasm.OpI32Add, tI32, tI32)))

	if _, err := wz.Invoke(ctx, "missing", nil); !stderrors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing export: got %v, want not found", err)
	}
	_, err := wz.Invoke(ctx, "f", i64s(1, 2))
	if !stderrors.Is(err, errors.ErrInvalidArgs) {
		t.Fatalf("wrong args: got %v, want invalid args", err)
	}
	var e *errors.Error
	if stderrors.As(err, &e) && (e.Expected != "i32, i32" || e.Actual != "i64, i64") {
		t.Errorf("wrong args: got expected %q actual %q", e.Expected, e.Actual)
	}
}

func TestWazeroMemory(t *testing.T) {
	ctx := context.Background()

	_, noMem := backends(t, nil, encodeModule(nil, testFunc{export: "f", code: code(end)}))
	if size := noMem.Memory().(interface{ Size() uint32 }).Size(); size != 0 {
		t.Errorf("size without memory: got %d, want 0", size)
	}
	if _, err := noMem.Memory().ReadU8(0); !stderrors.Is(err, errors.ErrOutOfBounds) {
		t.Errorf("read without memory: got %v, want out of bounds", err)
	}

	_, wz := backends(t, nil, encodeModule(oneMemoryPage, storeLoad()))
	if _, err := wz.Invoke(ctx, "f", i32s(8, 0x1234)); err != nil {
		t.Fatal(err)
	}
	if v, err := wz.Memory().ReadU16(8); err != nil || v != 0x1234 {
		t.Errorf("ReadU16: got %#x, %v", v, err)
	}
	if err := wz.Memory().WriteU64(runtime.PageSize-4, 1); !stderrors.Is(err, errors.ErrOutOfBounds) {
		t.Errorf("write past the page: got %v, want out of bounds", err)
	}
}

func TestWazeroRejectsInvalidModule(t *testing.T) {
	ctx := context.Background()
	// i32.add with no operands does not validate
	data := encodeModule(nil, testFunc{export: "f", code: code(op(wasm.OpI32Add), end)})
	_, err := engine.NewWazero(ctx, data, &engine.Config{MemoryLimitPages: 16})
	if !stderrors.Is(err, errors.ErrIO) {
		t.Errorf("got %v, want a load failure", err)
	}
}

func TestWazeroCanceled(t *testing.T) {
	_, wz := backends(t, nil, encodeModule(nil, testFunc{
		export: "f",
		code:   code(block(wasm.OpLoop, wasm.BlockEmpty), br(wasm.OpBr, 0), end, end),
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := wz.Invoke(ctx, "f", nil); !stderrors.Is(err, errors.ErrCanceled) {
		t.Errorf("got %v, want canceled", err)
	}
}

func TestCloseAll(t *testing.T) {
	ctx := context.Background()
	data := encodeModule(nil, testFunc{export: "f", code: code(end)})
	m, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatal(err)
	}
	wz, err := engine.NewWazero(ctx, data, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.CloseAll(ctx, engine.NewInterpreter(m, nil), wz); err != nil {
		t.Errorf("CloseAll: %v", err)
	}
	if err := wz.Close(ctx); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
