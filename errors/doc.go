// Package errors provides structured error types for the interpreter.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes context such as a location path, expected and actual
// shapes (for signature mismatches), the offending value and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCall, errors.KindInvalidArgs).
//		Expected("i32, i32").
//		Actual("i32").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NotFound(errors.PhaseResolve, "export", "add")
//	err := errors.OutOfBounds(errors.PhaseRuntime, []string{"local"}, 3, 2)
//
// The package-level Err* sentinels carry no Phase, so errors.Is(err, ErrNotFound)
// matches a not-found error raised in any phase.
package errors
