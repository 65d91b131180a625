// Package runtime executes decoded modules.
//
// # Quick Start
//
//	mod, err := wasm.ParseModule(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst := runtime.NewInstance(mod)
//	results, err := inst.Invoke(ctx, "add", []runtime.Value{
//	    runtime.ValueI32(2), runtime.ValueI32(3),
//	})
//
// # Execution Model
//
// Each invocation runs on a fresh value stack and activation stack. Every
// activation owns its locals (arguments followed by the zeroed declared
// locals) and its own label stack for block, loop and if.
//
// The program counter advances before an instruction takes effect. Branches
// to a loop jump back to its first instruction; branches to a block or if
// keep the block's results and scan forward to its end without executing
// anything. A branch past the outermost label returns from the function.
//
// Falling off the end of the invoked function returns the value stack as it
// stands. Returning from a callee keeps only its declared results.
//
// # Memory
//
// Linear memory starts empty and grows by doubling whenever an access runs
// past its length, so out-of-range reads see zeros. memory.size and
// memory.grow work in 64 KiB pages. Growth is bounded by
// Config.MaxMemoryPages.
//
// # Limits
//
// Config.Fuel caps the instructions one invocation may execute and
// Config.MaxCallDepth caps recursion. The context passed to Invoke is polled
// every 1024 instructions.
//
// # Logging
//
// The package logs through a zap logger installed with SetLogger. With
// Config.TraceInstructions every executed instruction is logged at debug level.
package runtime
