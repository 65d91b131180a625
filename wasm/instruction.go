package wasm

import (
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/wasm/internal/binary"
)

// Instruction represents a decoded instruction. Imm holds exactly the
// immediates its opcode's encoding defines, or nil when there are none.
type Instruction struct {
	Imm    any
	Opcode Opcode
}

// BlockImm holds the block type for block, loop and if.
type BlockImm struct {
	Type BlockType
}

// BranchImm holds the label depth for br and br_if.
type BranchImm struct {
	LabelIdx uint32
}

// BrTableImm holds the label table for br_table.
type BrTableImm struct {
	Labels  []uint32
	Default uint32
}

// CallImm holds the function index for call.
type CallImm struct {
	FuncIdx uint32
}

// CallIndirectImm holds type and table indices for call_indirect.
type CallIndirectImm struct {
	TypeIdx  uint32
	TableIdx byte
}

// LocalImm holds the local index for local.get, local.set, local.tee.
type LocalImm struct {
	LocalIdx uint32
}

// GlobalImm holds the global index for global.get and global.set.
type GlobalImm struct {
	GlobalIdx uint32
}

// MemoryImm holds the memarg of loads and stores.
type MemoryImm struct {
	Align  uint32
	Offset uint32
}

// MemoryIdxImm holds the reserved memory byte of memory.size and memory.grow.
type MemoryIdxImm struct {
	MemIdx byte
}

// I32Imm holds the constant value for i32.const.
type I32Imm struct {
	Value int32
}

// I64Imm holds the constant value for i64.const.
type I64Imm struct {
	Value int64
}

// F32Imm holds the constant value for f32.const.
type F32Imm struct {
	Value float32
}

// F64Imm holds the constant value for f64.const.
type F64Imm struct {
	Value float64
}

// Equal reports whether two instructions have the same opcode and immediates.
// Float constants compare by bit pattern, so NaN constants are equal to themselves.
func (i Instruction) Equal(o Instruction) bool {
	if i.Opcode != o.Opcode {
		return false
	}
	switch a := i.Imm.(type) {
	case BrTableImm:
		b, ok := o.Imm.(BrTableImm)
		return ok && a.Default == b.Default && slices.Equal(a.Labels, b.Labels)
	case F32Imm:
		b, ok := o.Imm.(F32Imm)
		return ok && math.Float32bits(a.Value) == math.Float32bits(b.Value)
	case F64Imm:
		b, ok := o.Imm.(F64Imm)
		return ok && math.Float64bits(a.Value) == math.Float64bits(b.Value)
	default:
		return i.Imm == o.Imm
	}
}

func (i Instruction) String() string {
	switch imm := i.Imm.(type) {
	case nil:
		return i.Opcode.String()
	case BlockImm:
		return fmt.Sprintf("%s %s", i.Opcode, imm.Type)
	case BranchImm:
		return fmt.Sprintf("%s %d", i.Opcode, imm.LabelIdx)
	case BrTableImm:
		return fmt.Sprintf("%s %v %d", i.Opcode, imm.Labels, imm.Default)
	case CallImm:
		return fmt.Sprintf("%s %d", i.Opcode, imm.FuncIdx)
	case LocalImm:
		return fmt.Sprintf("%s %d", i.Opcode, imm.LocalIdx)
	case GlobalImm:
		return fmt.Sprintf("%s %d", i.Opcode, imm.GlobalIdx)
	case MemoryImm:
		return fmt.Sprintf("%s offset=%d align=%d", i.Opcode, imm.Offset, imm.Align)
	case I32Imm:
		return fmt.Sprintf("%s %d", i.Opcode, imm.Value)
	case I64Imm:
		return fmt.Sprintf("%s %d", i.Opcode, imm.Value)
	case F32Imm:
		return fmt.Sprintf("%s %g", i.Opcode, imm.Value)
	case F64Imm:
		return fmt.Sprintf("%s %g", i.Opcode, imm.Value)
	default:
		return fmt.Sprintf("%s %v", i.Opcode, imm)
	}
}

// DecodeInstructions decodes instructions until code is exhausted.
func DecodeInstructions(code []byte) ([]Instruction, error) {
	r := binary.NewReader(code)
	instrs, err := decodeInstructions(r)
	if err != nil {
		return nil, decodeError(r, "code", err)
	}
	return instrs, nil
}

// DecodeInstruction decodes the instruction at the start of code and
// returns it with the number of bytes it occupies.
func DecodeInstruction(code []byte) (Instruction, int, error) {
	r := binary.NewReader(code)
	instr, err := decodeInstruction(r)
	if err != nil {
		return Instruction{}, 0, decodeError(r, "code", err)
	}
	return instr, r.Position(), nil
}

func decodeInstructions(r *binary.Reader) ([]Instruction, error) {
	instrs := make([]Instruction, 0, r.Len()/2)
	for r.Len() > 0 {
		instr, err := decodeInstruction(r)
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, instr)
	}
	return instrs, nil
}

func decodeInstruction(r *binary.Reader) (Instruction, error) {
	instr, err := readInstruction(r)
	if err == io.EOF {
		err = r.WrapError("", io.ErrUnexpectedEOF)
	}
	return instr, err
}

func readInstruction(r *binary.Reader) (Instruction, error) {
	b, err := r.ReadU8()
	if err != nil {
		return Instruction{}, err
	}
	op := LookupOpcode(b)
	if op == OpUnknown {
		return Instruction{}, errors.Unexpected(errors.PhaseDecode, "opcode", b)
	}

	instr := Instruction{Opcode: op}
	switch op.immediates() {
	case immNone:

	case immBlock:
		t, err := readBlockType(r)
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = BlockImm{Type: t}

	case immLabel:
		idx, err := r.ReadU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = BranchImm{LabelIdx: idx}

	case immBrTable:
		count, err := r.ReadU32()
		if err != nil {
			return Instruction{}, err
		}
		labels := make([]uint32, 0, min(int(count), r.Len()))
		for i := uint32(0); i < count; i++ {
			l, err := r.ReadU32()
			if err != nil {
				return Instruction{}, err
			}
			labels = append(labels, l)
		}
		dflt, err := r.ReadU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = BrTableImm{Labels: labels, Default: dflt}

	case immFunc:
		idx, err := r.ReadU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = CallImm{FuncIdx: idx}

	case immCallIndirect:
		typeIdx, err := r.ReadU32()
		if err != nil {
			return Instruction{}, err
		}
		table, err := r.ReadU8()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = CallIndirectImm{TypeIdx: typeIdx, TableIdx: table}

	case immLocal:
		idx, err := r.ReadU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = LocalImm{LocalIdx: idx}

	case immGlobal:
		idx, err := r.ReadU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = GlobalImm{GlobalIdx: idx}

	case immMemArg:
		align, err := r.ReadU32()
		if err != nil {
			return Instruction{}, err
		}
		offset, err := r.ReadU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = MemoryImm{Align: align, Offset: offset}

	case immMemIdx:
		mem, err := r.ReadU8()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = MemoryIdxImm{MemIdx: mem}

	case immI32:
		v, err := r.ReadS32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = I32Imm{Value: v}

	case immI64:
		v, err := r.ReadS64()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = I64Imm{Value: v}

	case immF32:
		bits, err := r.ReadU32LE()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = F32Imm{Value: math.Float32frombits(bits)}

	case immF64:
		bits, err := r.ReadU64LE()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = F64Imm{Value: math.Float64frombits(bits)}
	}

	return instr, nil
}

func readBlockType(r *binary.Reader) (BlockType, error) {
	b, err := r.ReadU8()
	if err != nil {
		return 0, err
	}
	switch t := BlockType(b); t {
	case BlockEmpty, BlockI32, BlockI64, BlockF32, BlockF64:
		return t, nil
	default:
		return 0, errors.Unexpected(errors.PhaseDecode, "block type", b)
	}
}

// encodeInstruction writes the binary encoding of instr to w.
// It panics if Imm does not match the opcode, like a failed type assertion.
func encodeInstruction(w *binary.Writer, instr *Instruction) {
	w.Byte(byte(instr.Opcode))

	switch instr.Opcode.immediates() {
	case immBlock:
		w.Byte(byte(instr.Imm.(BlockImm).Type))
	case immLabel:
		w.WriteU32(instr.Imm.(BranchImm).LabelIdx)
	case immBrTable:
		imm := instr.Imm.(BrTableImm)
		w.WriteU32(uint32(len(imm.Labels)))
		for _, l := range imm.Labels {
			w.WriteU32(l)
		}
		w.WriteU32(imm.Default)
	case immFunc:
		w.WriteU32(instr.Imm.(CallImm).FuncIdx)
	case immCallIndirect:
		imm := instr.Imm.(CallIndirectImm)
		w.WriteU32(imm.TypeIdx)
		w.Byte(imm.TableIdx)
	case immLocal:
		w.WriteU32(instr.Imm.(LocalImm).LocalIdx)
	case immGlobal:
		w.WriteU32(instr.Imm.(GlobalImm).GlobalIdx)
	case immMemArg:
		imm := instr.Imm.(MemoryImm)
		w.WriteU32(imm.Align)
		w.WriteU32(imm.Offset)
	case immMemIdx:
		var mem byte
		if imm, ok := instr.Imm.(MemoryIdxImm); ok {
			mem = imm.MemIdx
		}
		w.Byte(mem)
	case immI32:
		w.WriteS32(instr.Imm.(I32Imm).Value)
	case immI64:
		w.WriteS64(instr.Imm.(I64Imm).Value)
	case immF32:
		w.WriteF32(instr.Imm.(F32Imm).Value)
	case immF64:
		w.WriteF64(instr.Imm.(F64Imm).Value)
	}
}

// EncodeInstructions encodes instructions to bytecode.
func EncodeInstructions(instrs []Instruction) []byte {
	w := binary.NewWriter()
	for i := range instrs {
		encodeInstruction(w, &instrs[i])
	}
	return w.Bytes()
}
