package runtime_test

import (
	"github.com/wippyai/wasm-interp/wasm"
)

// testFunc declares one function of a test module. A non-empty export name
// exports it.
type testFunc struct {
	export  string
	params  []wasm.ValType
	results []wasm.ValType
	locals  []wasm.ValType
	code    []wasm.Instruction
}

// buildModule assembles the functions into a module, one type per function,
// and round-trips it through the binary encoding.
func buildModule(funcs ...testFunc) *wasm.Module {
	m := &wasm.Module{
		Type:     &wasm.TypeSection{},
		Function: &wasm.FunctionSection{},
		Export:   &wasm.ExportSection{},
		Code:     &wasm.CodeSection{},
	}
	for i, f := range funcs {
		m.Type.Entries = append(m.Type.Entries, wasm.FuncType{Params: f.params, Results: f.results})
		m.Function.TypeIndices = append(m.Function.TypeIndices, uint32(i))
		m.Code.Bodies = append(m.Code.Bodies, wasm.FuncBody{Locals: f.locals, Code: f.code})
		if f.export != "" {
			m.Export.Entries = append(m.Export.Entries, wasm.Export{Name: f.export, Kind: wasm.ExternFunction, Index: uint32(i)})
		}
	}

	parsed, err := wasm.ParseModule(m.Encode())
	if err != nil {
		panic(err)
	}
	return parsed
}

func types(ts ...wasm.ValType) []wasm.ValType { return ts }

var (
	tI32 = wasm.ValI32
	tI64 = wasm.ValI64
	tF32 = wasm.ValF32
	tF64 = wasm.ValF64
)

func op(o wasm.Opcode) wasm.Instruction { return wasm.Instruction{Opcode: o} }

func i32c(v int32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: v}}
}

func i64c(v int64) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: v}}
}

func f32c(v float32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpF32Const, Imm: wasm.F32Imm{Value: v}}
}

func f64c(v float64) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpF64Const, Imm: wasm.F64Imm{Value: v}}
}

func localGet(i uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: i}}
}

func localSet(i uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: i}}
}

func localTee(i uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpLocalTee, Imm: wasm.LocalImm{LocalIdx: i}}
}

func block(t wasm.BlockType) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: t}}
}

func loop(t wasm.BlockType) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpLoop, Imm: wasm.BlockImm{Type: t}}
}

func ifOp(t wasm.BlockType) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpIf, Imm: wasm.BlockImm{Type: t}}
}

func br(d uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpBr, Imm: wasm.BranchImm{LabelIdx: d}}
}

func brIf(d uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpBrIf, Imm: wasm.BranchImm{LabelIdx: d}}
}

func brTable(def uint32, labels ...uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpBrTable, Imm: wasm.BrTableImm{Labels: labels, Default: def}}
}

func call(idx uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: idx}}
}

func mem(o wasm.Opcode, offset uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: o, Imm: wasm.MemoryImm{Offset: offset}}
}

func memIdx(o wasm.Opcode) wasm.Instruction {
	return wasm.Instruction{Opcode: o, Imm: wasm.MemoryIdxImm{}}
}

var (
	end    = op(wasm.OpEnd)
	elseOp = op(wasm.OpElse)
)

func code(instrs ...wasm.Instruction) []wasm.Instruction { return instrs }
