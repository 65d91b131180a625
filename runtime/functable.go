package runtime

import (
	"strconv"

	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/wasm"
)

// Function is a module function ready to execute.
type Function struct {
	Type   wasm.FuncType
	Locals []wasm.ValType
	Code   []wasm.Instruction
	Index  uint32
}

// FunctionTable pairs each function's signature with its body.
type FunctionTable struct {
	funcs []Function
}

// NewFunctionTable derives the function table of m. A module missing its
// type, function or code section yields an empty table.
func NewFunctionTable(m *wasm.Module) (*FunctionTable, error) {
	if m.Type == nil || m.Function == nil || m.Code == nil {
		return &FunctionTable{}, nil
	}

	indices := m.Function.TypeIndices
	bodies := m.Code.Bodies
	if len(indices) != len(bodies) {
		return nil, errors.InconsistentModule("%d functions declared, %d bodies", len(indices), len(bodies))
	}

	funcs := make([]Function, len(indices))
	for i, ti := range indices {
		if int(ti) >= len(m.Type.Entries) {
			return nil, errors.New(errors.PhaseResolve, errors.KindInconsistentModule).
				Path("function", strconv.Itoa(i)).
				Detail("type index %d out of range (%d types)", ti, len(m.Type.Entries)).
				Build()
		}
		funcs[i] = Function{
			Index:  uint32(i),
			Type:   m.Type.Entries[ti],
			Locals: bodies[i].Locals,
			Code:   bodies[i].Code,
		}
	}
	return &FunctionTable{funcs: funcs}, nil
}

// Len returns the number of functions.
func (t *FunctionTable) Len() int { return len(t.funcs) }

// Lookup returns function idx.
func (t *FunctionTable) Lookup(idx uint32) (*Function, error) {
	if uint64(idx) >= uint64(len(t.funcs)) {
		return nil, errors.New(errors.PhaseResolve, errors.KindNotFound).
			Path("function", strconv.FormatUint(uint64(idx), 10)).
			Detail("function index %d out of range (%d functions)", idx, len(t.funcs)).
			Build()
	}
	return &t.funcs[idx], nil
}
