package engine

import (
	"context"
	"slices"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	wasminterp "github.com/wippyai/wasm-interp"
	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/runtime"
	"github.com/wippyai/wasm-interp/wasm"
)

// Config holds configuration for the wazero backend.
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means wazero's default (65536 pages = 4GB).
	MemoryLimitPages uint32
}

// Wazero is the Backend backed by the wazero runtime. It serves as the
// reference implementation in comparisons.
type Wazero struct {
	runtime wazero.Runtime
	module  api.Module
	memory  *WazeroMemory
	exports []runtime.ExportedFunc
}

// NewWazero compiles and instantiates wasmBytes on a fresh wazero runtime.
// Modules with imports fail to instantiate.
func NewWazero(ctx context.Context, wasmBytes []byte, cfg *Config) (*Wazero, error) {
	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, multierr.Append(errors.Load("wazero compile failed", err), rt.Close(ctx))
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, multierr.Append(errors.Load("wazero instantiate failed", err), rt.Close(ctx))
	}

	w := &Wazero{
		runtime: rt,
		module:  mod,
		memory:  &WazeroMemory{mem: mod.Memory()},
	}
	for name, def := range compiled.ExportedFunctions() {
		w.exports = append(w.exports, runtime.ExportedFunc{
			Name:  name,
			Index: def.Index(),
			Type: wasm.FuncType{
				Params:  valTypes(def.ParamTypes()),
				Results: valTypes(def.ResultTypes()),
			},
		})
	}
	slices.SortFunc(w.exports, func(a, b runtime.ExportedFunc) int {
		if a.Index != b.Index {
			return int(a.Index) - int(b.Index)
		}
		return strings.Compare(a.Name, b.Name)
	})

	Logger().Debug("wazero module instantiated", zap.Int("exports", len(w.exports)))
	return w, nil
}

func valTypes(ts []api.ValueType) []wasm.ValType {
	out := make([]wasm.ValType, len(ts))
	for i, t := range ts {
		out[i] = wasm.ValType(t)
	}
	return out
}

func (w *Wazero) Name() string { return "wazero" }

func (w *Wazero) Exports() []runtime.ExportedFunc { return w.exports }

func (w *Wazero) Memory() wasminterp.Memory { return w.memory }

// Invoke calls the exported function name. Traps are mapped onto the same
// error kinds the interpreter reports.
func (w *Wazero) Invoke(ctx context.Context, name string, args []runtime.Value) ([]runtime.Value, error) {
	fn := w.module.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseResolve, "export", name)
	}
	def := fn.Definition()

	params := valTypes(def.ParamTypes())
	if !slices.Equal(params, runtime.Types(args)) {
		return nil, errors.InvalidArgs(wasm.JoinTypes(params), wasm.JoinTypes(runtime.Types(args)))
	}

	raw := make([]uint64, len(args))
	for i, a := range args {
		raw[i] = a.Raw()
	}

	out, err := fn.Call(ctx, raw...)
	if err != nil {
		return nil, trapError(ctx, err)
	}

	results := valTypes(def.ResultTypes())
	values := make([]runtime.Value, len(out))
	for i, r := range out {
		values[i] = runtime.ValueFromRaw(results[i], r)
	}
	return values, nil
}

// trapMessages maps wazero's trap messages to error kinds.
var trapMessages = []struct {
	text string
	kind errors.Kind
}{
	{"integer divide by zero", errors.KindDivisionByZero},
	{"integer overflow", errors.KindIntegerOverflow},
	{"invalid conversion to integer", errors.KindInvalidConversion},
	{"unreachable", errors.KindUnreachable},
	{"out of bounds memory access", errors.KindOutOfBounds},
	{"stack overflow", errors.KindCallStack},
}

func trapError(ctx context.Context, err error) *errors.Error {
	if ctx.Err() != nil {
		return errors.Wrap(errors.PhaseRuntime, errors.KindCanceled, err, "execution canceled")
	}
	msg := err.Error()
	for _, t := range trapMessages {
		if strings.Contains(msg, t.text) {
			return errors.Wrap(errors.PhaseRuntime, t.kind, err, "wazero trap")
		}
	}
	return errors.Wrap(errors.PhaseRuntime, errors.KindUnexpected, err, "wazero call failed")
}

// Close closes the module and its runtime.
func (w *Wazero) Close(ctx context.Context) error {
	var err error
	if w.module != nil {
		err = multierr.Append(err, w.module.Close(ctx))
		w.module = nil
	}
	if w.runtime != nil {
		err = multierr.Append(err, w.runtime.Close(ctx))
		w.runtime = nil
	}
	w.memory = &WazeroMemory{}
	return err
}
