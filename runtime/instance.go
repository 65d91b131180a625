package runtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	wasminterp "github.com/wippyai/wasm-interp"
	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/wasm"
)

// Instance binds a decoded module to its own memory. Invocations on one
// Instance are serialized; memory persists between them.
type Instance struct {
	module *wasm.Module
	mem    *Memory
	rt     *Runtime
	cfg    Config
	mu     sync.Mutex
}

// ExportedFunc describes an exported function.
type ExportedFunc struct {
	Name  string
	Type  wasm.FuncType
	Index uint32
}

// NewInstance creates an instance with DefaultConfig.
func NewInstance(m *wasm.Module) *Instance {
	return NewInstanceWithConfig(m, nil)
}

// NewInstanceWithConfig creates an instance. A nil cfg means DefaultConfig.
func NewInstanceWithConfig(m *wasm.Module, cfg *Config) *Instance {
	c := DefaultConfig()
	if cfg != nil {
		c = cfg.withDefaults()
	}
	return &Instance{
		module: m,
		mem:    NewMemory(c.MaxMemoryPages),
		cfg:    c,
	}
}

// Module returns the decoded module.
func (i *Instance) Module() *wasm.Module { return i.module }

// Memory returns the instance's linear memory.
func (i *Instance) Memory() wasminterp.Memory { return i.mem }

// Steps returns the number of instructions the last invocation fetched.
func (i *Instance) Steps() uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.rt == nil {
		return 0
	}
	return i.rt.Steps()
}

// FunctionTableDerived reports whether an invocation has derived the
// function table yet.
func (i *Instance) FunctionTableDerived() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.rt != nil
}

// Exports lists the exported functions with their signatures. Exports whose
// function index does not resolve are listed with an empty signature.
func (i *Instance) Exports() []ExportedFunc {
	exports := i.module.FunctionExports()
	out := make([]ExportedFunc, 0, len(exports))
	for _, exp := range exports {
		ft, _ := i.module.FunctionType(exp.Index)
		out = append(out, ExportedFunc{Name: exp.Name, Index: exp.Index, Type: ft})
	}
	return out
}

// Invoke calls the exported function name with args. An unknown name fails
// with KindNotFound before the function table is derived or memory touched.
func (i *Instance) Invoke(ctx context.Context, name string, args []Value) ([]Value, error) {
	exp, ok := i.module.ResolveExport(name)
	if !ok || exp.Kind != wasm.ExternFunction {
		return nil, errors.NotFound(errors.PhaseResolve, "export", name)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.rt == nil {
		table, err := NewFunctionTable(i.module)
		if err != nil {
			return nil, err
		}
		i.rt = NewRuntime(table, i.mem, i.cfg)
	}

	log := Logger()
	log.Debug("invoke",
		zap.String("export", name),
		zap.Uint32("func", exp.Index),
		zap.Stringers("args", args),
	)

	results, err := i.rt.Execute(ctx, exp.Index, args)
	if err != nil {
		log.Warn("invocation failed",
			zap.String("export", name),
			zap.Uint64("steps", i.rt.Steps()),
			zap.Error(err),
		)
		return nil, err
	}

	log.Info("invocation finished",
		zap.String("export", name),
		zap.Uint64("steps", i.rt.Steps()),
		zap.Stringers("results", results),
	)
	return results, nil
}
