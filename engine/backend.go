package engine

import (
	"context"

	"go.uber.org/multierr"

	wasminterp "github.com/wippyai/wasm-interp"
	"github.com/wippyai/wasm-interp/runtime"
	"github.com/wippyai/wasm-interp/wasm"
)

// Backend executes the exported functions of one instantiated module.
type Backend interface {
	Name() string
	Exports() []runtime.ExportedFunc
	Invoke(ctx context.Context, name string, args []runtime.Value) ([]runtime.Value, error)
	Memory() wasminterp.Memory
	Close(ctx context.Context) error
}

// Interpreter is the Backend backed by the runtime package.
type Interpreter struct {
	inst *runtime.Instance
}

// NewInterpreter instantiates m on the interpreter. A nil cfg means
// runtime.DefaultConfig.
func NewInterpreter(m *wasm.Module, cfg *runtime.Config) *Interpreter {
	return &Interpreter{inst: runtime.NewInstanceWithConfig(m, cfg)}
}

func (i *Interpreter) Name() string { return "interpreter" }

func (i *Interpreter) Exports() []runtime.ExportedFunc { return i.inst.Exports() }

func (i *Interpreter) Invoke(ctx context.Context, name string, args []runtime.Value) ([]runtime.Value, error) {
	return i.inst.Invoke(ctx, name, args)
}

func (i *Interpreter) Memory() wasminterp.Memory { return i.inst.Memory() }

// Instance returns the underlying runtime instance.
func (i *Interpreter) Instance() *runtime.Instance { return i.inst }

func (i *Interpreter) Close(context.Context) error { return nil }

// CloseAll closes every backend and combines their errors.
func CloseAll(ctx context.Context, backends ...Backend) error {
	var err error
	for _, b := range backends {
		if b == nil {
			continue
		}
		err = multierr.Append(err, b.Close(ctx))
	}
	return err
}

var (
	_ Backend = (*Interpreter)(nil)
	_ Backend = (*Wazero)(nil)
)
