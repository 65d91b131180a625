// Package wasminterp is a small interpreter for WebAssembly-style binary
// modules.
//
// A module is decoded into structured sections, and its exported functions
// run on a stack machine with structured control flow and a single growable
// linear memory.
//
// # Architecture Overview
//
//	wasminterp/          Root package with the Memory interface
//	├── wasm/            Binary decoding and encoding, opcode table, instructions
//	├── runtime/         Function table, execution engine, Instance
//	├── engine/          Interchangeable backends (interpreter, wazero) and differential comparison
//	├── errors/          Structured error types
//	└── cmd/wai/         Command line runner and interactive mode
//
// # Quick Start
//
//	data, _ := os.ReadFile("add.wasm")
//	mod, err := wasm.ParseModule(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst := runtime.NewInstance(mod)
//	results, err := inst.Invoke(ctx, "add", []runtime.Value{
//	    runtime.ValueI32(2), runtime.ValueI32(3),
//	})
//	fmt.Println(results) // [i32:5]
//
// # Resource Limits
//
// runtime.Config bounds each invocation: a fuel budget in instructions, the
// call depth, and the number of memory pages. Cancellation of the context
// passed to Invoke stops execution.
//
// # Errors
//
// All failures are *errors.Error values carrying a phase (decode, resolve,
// call, runtime, load) and a kind. Match them with the standard library:
//
//	if errors.Is(err, wasmerrors.ErrDivisionByZero) {
//	    // ...
//	}
package wasminterp
