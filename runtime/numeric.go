package runtime

import (
	"math"
	"math/bits"

	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/wasm"
)

type numKind uint8

const (
	numTest numKind = iota + 1 // eqz
	numRel                     // two operands, i32 result
	numBin                     // two operands, same-typed result
	numUn                      // one operand, same-typed result
	numCvt                     // one operand, result of another type
)

type relOp uint8

const (
	relEq relOp = iota
	relNe
	relLtS
	relLtU
	relGtS
	relGtU
	relLeS
	relLeU
	relGeS
	relGeU
)

type binOp uint8

const (
	binAdd binOp = iota
	binSub
	binMul
	binDivS
	binDivU
	binRemS
	binRemU
	binAnd
	binOr
	binXor
	binShl
	binShrS
	binShrU
	binRotl
	binRotr
	binDiv
	binMin
	binMax
	binCopysign
)

type unOp uint8

const (
	unClz unOp = iota
	unCtz
	unPopcnt
	unAbs
	unNeg
	unCeil
	unFloor
	unTrunc
	unNearest
	unSqrt
)

type cvtOp uint8

const (
	cvtWrap cvtOp = iota
	cvtExtendS
	cvtExtendU
	cvtTruncS
	cvtTruncU
	cvtConvertS
	cvtConvertU
	cvtDemote
	cvtPromote
	cvtReinterpret
)

// numInstr describes a numeric opcode: its family, operand type, operation
// and, for conversions, result type.
type numInstr struct {
	kind numKind
	op   uint8
	typ  wasm.ValType
	to   wasm.ValType
}

var (
	i32 = wasm.ValI32
	i64 = wasm.ValI64
	f32 = wasm.ValF32
	f64 = wasm.ValF64
)

func test(t wasm.ValType) numInstr          { return numInstr{kind: numTest, typ: t} }
func rel(t wasm.ValType, op relOp) numInstr  { return numInstr{kind: numRel, typ: t, op: uint8(op)} }
func bin(t wasm.ValType, op binOp) numInstr  { return numInstr{kind: numBin, typ: t, op: uint8(op)} }
func un(t wasm.ValType, op unOp) numInstr    { return numInstr{kind: numUn, typ: t, op: uint8(op)} }
func cvt(from, to wasm.ValType, op cvtOp) numInstr {
	return numInstr{kind: numCvt, typ: from, to: to, op: uint8(op)}
}

// numericOps maps each numeric opcode to its generic implementation.
var numericOps = map[wasm.Opcode]numInstr{
	wasm.OpI32Eqz: test(i32),
	wasm.OpI32Eq:  rel(i32, relEq), wasm.OpI32Ne: rel(i32, relNe),
	wasm.OpI32LtS: rel(i32, relLtS), wasm.OpI32LtU: rel(i32, relLtU),
	wasm.OpI32GtS: rel(i32, relGtS), wasm.OpI32GtU: rel(i32, relGtU),
	wasm.OpI32LeS: rel(i32, relLeS), wasm.OpI32LeU: rel(i32, relLeU),
	wasm.OpI32GeS: rel(i32, relGeS), wasm.OpI32GeU: rel(i32, relGeU),

	wasm.OpI64Eqz: test(i64),
	wasm.OpI64Eq:  rel(i64, relEq), wasm.OpI64Ne: rel(i64, relNe),
	wasm.OpI64LtS: rel(i64, relLtS), wasm.OpI64LtU: rel(i64, relLtU),
	wasm.OpI64GtS: rel(i64, relGtS), wasm.OpI64GtU: rel(i64, relGtU),
	wasm.OpI64LeS: rel(i64, relLeS), wasm.OpI64LeU: rel(i64, relLeU),
	wasm.OpI64GeS: rel(i64, relGeS), wasm.OpI64GeU: rel(i64, relGeU),

	wasm.OpF32Eq: rel(f32, relEq), wasm.OpF32Ne: rel(f32, relNe),
	wasm.OpF32Lt: rel(f32, relLtS), wasm.OpF32Gt: rel(f32, relGtS),
	wasm.OpF32Le: rel(f32, relLeS), wasm.OpF32Ge: rel(f32, relGeS),

	wasm.OpF64Eq: rel(f64, relEq), wasm.OpF64Ne: rel(f64, relNe),
	wasm.OpF64Lt: rel(f64, relLtS), wasm.OpF64Gt: rel(f64, relGtS),
	wasm.OpF64Le: rel(f64, relLeS), wasm.OpF64Ge: rel(f64, relGeS),

	wasm.OpI32Clz: un(i32, unClz), wasm.OpI32Ctz: un(i32, unCtz), wasm.OpI32Popcnt: un(i32, unPopcnt),
	wasm.OpI32Add: bin(i32, binAdd), wasm.OpI32Sub: bin(i32, binSub), wasm.OpI32Mul: bin(i32, binMul),
	wasm.OpI32DivS: bin(i32, binDivS), wasm.OpI32DivU: bin(i32, binDivU),
	wasm.OpI32RemS: bin(i32, binRemS), wasm.OpI32RemU: bin(i32, binRemU),
	wasm.OpI32And: bin(i32, binAnd), wasm.OpI32Or: bin(i32, binOr), wasm.OpI32Xor: bin(i32, binXor),
	wasm.OpI32Shl: bin(i32, binShl), wasm.OpI32ShrS: bin(i32, binShrS), wasm.OpI32ShrU: bin(i32, binShrU),
	wasm.OpI32Rotl: bin(i32, binRotl), wasm.OpI32Rotr: bin(i32, binRotr),

	wasm.OpI64Clz: un(i64, unClz), wasm.OpI64Ctz: un(i64, unCtz), wasm.OpI64Popcnt: un(i64, unPopcnt),
	wasm.OpI64Add: bin(i64, binAdd), wasm.OpI64Sub: bin(i64, binSub), wasm.OpI64Mul: bin(i64, binMul),
	wasm.OpI64DivS: bin(i64, binDivS), wasm.OpI64DivU: bin(i64, binDivU),
	wasm.OpI64RemS: bin(i64, binRemS), wasm.OpI64RemU: bin(i64, binRemU),
	wasm.OpI64And: bin(i64, binAnd), wasm.OpI64Or: bin(i64, binOr), wasm.OpI64Xor: bin(i64, binXor),
	wasm.OpI64Shl: bin(i64, binShl), wasm.OpI64ShrS: bin(i64, binShrS), wasm.OpI64ShrU: bin(i64, binShrU),
	wasm.OpI64Rotl: bin(i64, binRotl), wasm.OpI64Rotr: bin(i64, binRotr),

	wasm.OpF32Abs: un(f32, unAbs), wasm.OpF32Neg: un(f32, unNeg),
	wasm.OpF32Ceil: un(f32, unCeil), wasm.OpF32Floor: un(f32, unFloor),
	wasm.OpF32Trunc: un(f32, unTrunc), wasm.OpF32Nearest: un(f32, unNearest), wasm.OpF32Sqrt: un(f32, unSqrt),
	wasm.OpF32Add: bin(f32, binAdd), wasm.OpF32Sub: bin(f32, binSub), wasm.OpF32Mul: bin(f32, binMul),
	wasm.OpF32Div: bin(f32, binDiv), wasm.OpF32Min: bin(f32, binMin), wasm.OpF32Max: bin(f32, binMax),
	wasm.OpF32Copysign: bin(f32, binCopysign),

	wasm.OpF64Abs: un(f64, unAbs), wasm.OpF64Neg: un(f64, unNeg),
	wasm.OpF64Ceil: un(f64, unCeil), wasm.OpF64Floor: un(f64, unFloor),
	wasm.OpF64Trunc: un(f64, unTrunc), wasm.OpF64Nearest: un(f64, unNearest), wasm.OpF64Sqrt: un(f64, unSqrt),
	wasm.OpF64Add: bin(f64, binAdd), wasm.OpF64Sub: bin(f64, binSub), wasm.OpF64Mul: bin(f64, binMul),
	wasm.OpF64Div: bin(f64, binDiv), wasm.OpF64Min: bin(f64, binMin), wasm.OpF64Max: bin(f64, binMax),
	wasm.OpF64Copysign: bin(f64, binCopysign),

	wasm.OpI32WrapI64:        cvt(i64, i32, cvtWrap),
	wasm.OpI32TruncF32S:      cvt(f32, i32, cvtTruncS),
	wasm.OpI32TruncF32U:      cvt(f32, i32, cvtTruncU),
	wasm.OpI32TruncF64S:      cvt(f64, i32, cvtTruncS),
	wasm.OpI32TruncF64U:      cvt(f64, i32, cvtTruncU),
	wasm.OpI64ExtendI32S:     cvt(i32, i64, cvtExtendS),
	wasm.OpI64ExtendI32U:     cvt(i32, i64, cvtExtendU),
	wasm.OpI64TruncF32S:      cvt(f32, i64, cvtTruncS),
	wasm.OpI64TruncF32U:      cvt(f32, i64, cvtTruncU),
	wasm.OpI64TruncF64S:      cvt(f64, i64, cvtTruncS),
	wasm.OpI64TruncF64U:      cvt(f64, i64, cvtTruncU),
	wasm.OpF32ConvertI32S:    cvt(i32, f32, cvtConvertS),
	wasm.OpF32ConvertI32U:    cvt(i32, f32, cvtConvertU),
	wasm.OpF32ConvertI64S:    cvt(i64, f32, cvtConvertS),
	wasm.OpF32ConvertI64U:    cvt(i64, f32, cvtConvertU),
	wasm.OpF32DemoteF64:      cvt(f64, f32, cvtDemote),
	wasm.OpF64ConvertI32S:    cvt(i32, f64, cvtConvertS),
	wasm.OpF64ConvertI32U:    cvt(i32, f64, cvtConvertU),
	wasm.OpF64ConvertI64S:    cvt(i64, f64, cvtConvertS),
	wasm.OpF64ConvertI64U:    cvt(i64, f64, cvtConvertU),
	wasm.OpF64PromoteF32:     cvt(f32, f64, cvtPromote),
	wasm.OpI32ReinterpretF32: cvt(f32, i32, cvtReinterpret),
	wasm.OpI64ReinterpretF64: cvt(f64, i64, cvtReinterpret),
	wasm.OpF32ReinterpretI32: cvt(i32, f32, cvtReinterpret),
	wasm.OpF64ReinterpretI64: cvt(i64, f64, cvtReinterpret),
}

type signed interface{ ~int32 | ~int64 }

type unsigned interface{ ~uint32 | ~uint64 }

type float interface{ ~float32 | ~float64 }

func boolValue(b bool) Value {
	if b {
		return ValueI32(1)
	}
	return ValueI32(0)
}

// apply executes a numeric instruction against the value stack.
func (r *Runtime) apply(n numInstr) error {
	switch n.kind {
	case numTest:
		a, err := r.popType(n.typ)
		if err != nil {
			return err
		}
		r.push(boolValue(a.bits == 0))
		return nil

	case numRel:
		b, a, err := r.pop2(n.typ)
		if err != nil {
			return err
		}
		var res bool
		switch n.typ {
		case wasm.ValI32:
			res = intRel[int32, uint32](relOp(n.op), a.I32(), b.I32())
		case wasm.ValI64:
			res = intRel[int64, uint64](relOp(n.op), a.I64(), b.I64())
		case wasm.ValF32:
			res = floatRel(relOp(n.op), a.F32(), b.F32())
		case wasm.ValF64:
			res = floatRel(relOp(n.op), a.F64(), b.F64())
		}
		r.push(boolValue(res))
		return nil

	case numBin:
		b, a, err := r.pop2(n.typ)
		if err != nil {
			return err
		}
		var v Value
		switch n.typ {
		case wasm.ValI32:
			var x int32
			x, err = intBin[int32, uint32](binOp(n.op), a.I32(), b.I32(), 32)
			v = ValueI32(x)
		case wasm.ValI64:
			var x int64
			x, err = intBin[int64, uint64](binOp(n.op), a.I64(), b.I64(), 64)
			v = ValueI64(x)
		case wasm.ValF32:
			v = ValueF32(floatBin(binOp(n.op), a.F32(), b.F32()))
		case wasm.ValF64:
			v = ValueF64(floatBin(binOp(n.op), a.F64(), b.F64()))
		}
		if err != nil {
			return err
		}
		r.push(v)
		return nil

	case numUn:
		a, err := r.popType(n.typ)
		if err != nil {
			return err
		}
		switch n.typ {
		case wasm.ValI32:
			r.push(ValueI32(int32(intUn(unOp(n.op), a.U32(), 32))))
		case wasm.ValI64:
			r.push(ValueI64(int64(intUn(unOp(n.op), a.U64(), 64))))
		case wasm.ValF32:
			r.push(ValueF32(floatUn(unOp(n.op), a.F32())))
		case wasm.ValF64:
			r.push(ValueF64(floatUn(unOp(n.op), a.F64())))
		}
		return nil

	case numCvt:
		a, err := r.popType(n.typ)
		if err != nil {
			return err
		}
		v, err := convert(cvtOp(n.op), a, n.to)
		if err != nil {
			return err
		}
		r.push(v)
		return nil
	}
	return errors.New(errors.PhaseRuntime, errors.KindUnexpected).Detail("numeric family %d", n.kind).Build()
}

func intRel[S signed, U unsigned](op relOp, a, b S) bool {
	switch op {
	case relEq:
		return a == b
	case relNe:
		return a != b
	case relLtS:
		return a < b
	case relLtU:
		return U(a) < U(b)
	case relGtS:
		return a > b
	case relGtU:
		return U(a) > U(b)
	case relLeS:
		return a <= b
	case relLeU:
		return U(a) <= U(b)
	case relGeS:
		return a >= b
	case relGeU:
		return U(a) >= U(b)
	}
	return false
}

func floatRel[F float](op relOp, a, b F) bool {
	switch op {
	case relEq:
		return a == b
	case relNe:
		return a != b
	case relLtS:
		return a < b
	case relGtS:
		return a > b
	case relLeS:
		return a <= b
	case relGeS:
		return a >= b
	}
	return false
}

// intBin applies op at the given bit width. Arithmetic wraps; shift and
// rotate counts are taken modulo width.
func intBin[S signed, U unsigned](op binOp, a, b S, width uint) (S, error) {
	ua, ub := U(a), U(b)
	k := ub % U(width)
	switch op {
	case binAdd:
		return a + b, nil
	case binSub:
		return a - b, nil
	case binMul:
		return a * b, nil
	case binDivS:
		if b == 0 {
			return 0, errors.DivisionByZero()
		}
		if b == -1 && a == S(1)<<(width-1) {
			return 0, errors.IntegerOverflow()
		}
		return a / b, nil
	case binDivU:
		if b == 0 {
			return 0, errors.DivisionByZero()
		}
		return S(ua / ub), nil
	case binRemS:
		if b == 0 {
			return 0, errors.DivisionByZero()
		}
		if b == -1 {
			return 0, nil
		}
		return a % b, nil
	case binRemU:
		if b == 0 {
			return 0, errors.DivisionByZero()
		}
		return S(ua % ub), nil
	case binAnd:
		return a & b, nil
	case binOr:
		return a | b, nil
	case binXor:
		return a ^ b, nil
	case binShl:
		return S(ua << k), nil
	case binShrS:
		return a >> k, nil
	case binShrU:
		return S(ua >> k), nil
	case binRotl:
		return S(ua<<k | ua>>(U(width)-k)), nil
	case binRotr:
		return S(ua>>k | ua<<(U(width)-k)), nil
	}
	return 0, errors.New(errors.PhaseRuntime, errors.KindUnexpected).Detail("integer operation %d", op).Build()
}

func intUn[U unsigned](op unOp, a U, width int) U {
	x := uint64(a)
	switch op {
	case unClz:
		return U(bits.LeadingZeros64(x) - (64 - width))
	case unCtz:
		if x == 0 {
			return U(width)
		}
		return U(bits.TrailingZeros64(x))
	case unPopcnt:
		return U(bits.OnesCount64(x))
	}
	return a
}

func floatBin[F float](op binOp, a, b F) F {
	switch op {
	case binAdd:
		return a + b
	case binSub:
		return a - b
	case binMul:
		return a * b
	case binDiv:
		return a / b
	case binMin:
		return fmin(a, b)
	case binMax:
		return fmax(a, b)
	case binCopysign:
		return F(math.Copysign(float64(a), float64(b)))
	}
	return a
}

// fmin and fmax propagate NaN and order -0 below +0.
func fmin[F float](a, b F) F {
	switch {
	case math.IsNaN(float64(a)):
		return a
	case math.IsNaN(float64(b)):
		return b
	case a == 0 && b == 0:
		if math.Signbit(float64(a)) {
			return a
		}
		return b
	case a < b:
		return a
	default:
		return b
	}
}

func fmax[F float](a, b F) F {
	switch {
	case math.IsNaN(float64(a)):
		return a
	case math.IsNaN(float64(b)):
		return b
	case a == 0 && b == 0:
		if math.Signbit(float64(a)) {
			return b
		}
		return a
	case a > b:
		return a
	default:
		return b
	}
}

func floatUn[F float](op unOp, a F) F {
	x := float64(a)
	switch op {
	case unAbs:
		return F(math.Abs(x))
	case unNeg:
		return -a
	case unCeil:
		return F(math.Ceil(x))
	case unFloor:
		return F(math.Floor(x))
	case unTrunc:
		return F(math.Trunc(x))
	case unNearest:
		return F(math.RoundToEven(x))
	case unSqrt:
		return F(math.Sqrt(x))
	}
	return a
}

func convert(op cvtOp, a Value, to wasm.ValType) (Value, error) {
	switch op {
	case cvtWrap:
		return ValueI32(int32(a.I64())), nil
	case cvtExtendS:
		return ValueI64(int64(a.I32())), nil
	case cvtExtendU:
		return ValueI64(int64(a.U32())), nil
	case cvtTruncS, cvtTruncU:
		return truncate(op == cvtTruncS, a, to)
	case cvtConvertS, cvtConvertU:
		return convertInt(op == cvtConvertS, a, to), nil
	case cvtDemote:
		return ValueF32(float32(a.F64())), nil
	case cvtPromote:
		return ValueF64(float64(a.F32())), nil
	case cvtReinterpret:
		return ValueFromRaw(to, a.bits), nil
	}
	return Value{}, errors.New(errors.PhaseRuntime, errors.KindUnexpected).Detail("conversion %d", op).Build()
}

// truncate converts a float to an integer, trapping on NaN and on results
// outside the target range.
func truncate(sign bool, a Value, to wasm.ValType) (Value, error) {
	x := a.F64()
	if a.typ == wasm.ValF32 {
		x = float64(a.F32())
	}
	if math.IsNaN(x) {
		return Value{}, errors.InvalidConversion()
	}
	t := math.Trunc(x)

	switch {
	case to == wasm.ValI32 && sign:
		if t < math.MinInt32 || t > math.MaxInt32 {
			return Value{}, errors.IntegerOverflow()
		}
		return ValueI32(int32(t)), nil
	case to == wasm.ValI32:
		if t < 0 || t > math.MaxUint32 {
			return Value{}, errors.IntegerOverflow()
		}
		return ValueI32(int32(uint32(t))), nil
	case sign:
		if t < math.MinInt64 || t >= math.MaxInt64 {
			return Value{}, errors.IntegerOverflow()
		}
		return ValueI64(int64(t)), nil
	default:
		if t < 0 || t >= math.MaxUint64 {
			return Value{}, errors.IntegerOverflow()
		}
		return ValueI64(int64(uint64(t))), nil
	}
}

func convertInt(sign bool, a Value, to wasm.ValType) Value {
	var f64v float64
	var f32v float32
	switch {
	case a.typ == wasm.ValI32 && sign:
		f64v, f32v = float64(a.I32()), float32(a.I32())
	case a.typ == wasm.ValI32:
		f64v, f32v = float64(a.U32()), float32(a.U32())
	case sign:
		f64v, f32v = float64(a.I64()), float32(a.I64())
	default:
		f64v, f32v = float64(a.U64()), float32(a.U64())
	}
	if to == wasm.ValF32 {
		return ValueF32(f32v)
	}
	return ValueF64(f64v)
}
