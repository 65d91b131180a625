package engine_test

import (
	"context"
	"testing"

	"github.com/wippyai/wasm-interp/engine"
	"github.com/wippyai/wasm-interp/runtime"
	"github.com/wippyai/wasm-interp/wasm"
)

type testFunc struct {
	export  string
	params  []wasm.ValType
	results []wasm.ValType
	locals  []wasm.ValType
	code    []wasm.Instruction
}

// oneMemoryPage is a memory section payload declaring one memory of one page.
var oneMemoryPage = []byte{0x01, 0x00, 0x01}

func encodeModule(memory []byte, funcs ...testFunc) []byte {
	m := &wasm.Module{
		Version:  wasm.Version,
		Type:     &wasm.TypeSection{},
		Function: &wasm.FunctionSection{},
		Export:   &wasm.ExportSection{},
		Code:     &wasm.CodeSection{},
	}
	if memory != nil {
		m.SetOpaque(wasm.SectionMemory, memory)
	}
	for i, f := range funcs {
		m.Type.Entries = append(m.Type.Entries, wasm.FuncType{Params: f.params, Results: f.results})
		m.Function.TypeIndices = append(m.Function.TypeIndices, uint32(i))
		m.Code.Bodies = append(m.Code.Bodies, wasm.FuncBody{Locals: f.locals, Code: f.code})
		if f.export != "" {
			m.Export.Entries = append(m.Export.Entries, wasm.Export{Name: f.export, Kind: wasm.ExternFunction, Index: uint32(i)})
		}
	}
	return m.Encode()
}

// backends instantiates the module on both backends.
func backends(t *testing.T, cfg *runtime.Config, data []byte) (*engine.Interpreter, *engine.Wazero) {
	t.Helper()
	m, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	ctx := context.Background()
	wz, err := engine.NewWazero(ctx, data, nil)
	if err != nil {
		t.Fatalf("NewWazero: %v", err)
	}
	t.Cleanup(func() { _ = wz.Close(ctx) })
	return engine.NewInterpreter(m, cfg), wz
}

var (
	tI32 = wasm.ValI32
	tI64 = wasm.ValI64
	tF32 = wasm.ValF32
	tF64 = wasm.ValF64
)

func types(ts ...wasm.ValType) []wasm.ValType { return ts }

func code(instrs ...wasm.Instruction) []wasm.Instruction { return instrs }

func op(o wasm.Opcode) wasm.Instruction { return wasm.Instruction{Opcode: o} }

func i32c(v int32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: v}}
}

func i64c(v int64) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: v}}
}

func localGet(i uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: i}}
}

func localSet(i uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: i}}
}

func block(o wasm.Opcode, t wasm.BlockType) wasm.Instruction {
	return wasm.Instruction{Opcode: o, Imm: wasm.BlockImm{Type: t}}
}

func br(o wasm.Opcode, d uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: o, Imm: wasm.BranchImm{LabelIdx: d}}
}

func mem(o wasm.Opcode, align, offset uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: o, Imm: wasm.MemoryImm{Align: align, Offset: offset}}
}

var end = op(wasm.OpEnd)

// binary returns a function applying o to its two parameters.
func binary(o wasm.Opcode, param, result wasm.ValType) testFunc {
	return testFunc{
		export:  "f",
		params:  types(param, param),
		results: types(result),
		code:    code(localGet(0), localGet(1), op(o), end),
	}
}

// unary returns a function applying o to its parameter.
func unary(o wasm.Opcode, param, result wasm.ValType) testFunc {
	return testFunc{
		export:  "f",
		params:  types(param),
		results: types(result),
		code:    code(localGet(0), op(o), end),
	}
}
