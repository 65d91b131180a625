package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDecode  Phase = "decode"  // binary to Module
	PhaseResolve Phase = "resolve" // export lookup, function table derivation
	PhaseCall    Phase = "call"    // argument checking before execution
	PhaseRuntime Phase = "runtime" // instruction execution
	PhaseLoad    Phase = "load"    // reading module bytes, creating backends
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidWasmFile    Kind = "invalid_wasm_file"
	KindInvalidNumeric     Kind = "invalid_numeric"
	KindUnexpected         Kind = "unexpected"
	KindIO                 Kind = "io"
	KindNotFound           Kind = "not_found"
	KindInconsistentModule Kind = "inconsistent_module"
	KindInvalidArgs        Kind = "invalid_args"
	KindStackUnderflow     Kind = "stack_underflow"
	KindTypeMismatch       Kind = "type_mismatch"
	KindDivisionByZero     Kind = "division_by_zero"
	KindIntegerOverflow    Kind = "integer_overflow"
	KindInvalidConversion  Kind = "invalid_conversion"
	KindUnimplemented      Kind = "unimplemented"
	KindOutOfBounds        Kind = "out_of_bounds"
	KindUnreachable        Kind = "unreachable"
	KindFuelExhausted      Kind = "fuel_exhausted"
	KindCallStack          Kind = "call_stack_exhausted"
	KindCanceled           Kind = "canceled"
	KindMismatch           Kind = "result_mismatch"
)

// Sentinels for errors.Is. They carry no phase, so they match a Kind raised in any phase.
var (
	ErrInvalidWasmFile    = &Error{Kind: KindInvalidWasmFile}
	ErrInvalidNumeric     = &Error{Kind: KindInvalidNumeric}
	ErrUnexpected         = &Error{Kind: KindUnexpected}
	ErrIO                 = &Error{Kind: KindIO}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInconsistentModule = &Error{Kind: KindInconsistentModule}
	ErrInvalidArgs        = &Error{Kind: KindInvalidArgs}
	ErrStackUnderflow     = &Error{Kind: KindStackUnderflow}
	ErrTypeMismatch       = &Error{Kind: KindTypeMismatch}
	ErrDivisionByZero     = &Error{Kind: KindDivisionByZero}
	ErrIntegerOverflow    = &Error{Kind: KindIntegerOverflow}
	ErrInvalidConversion  = &Error{Kind: KindInvalidConversion}
	ErrUnimplemented      = &Error{Kind: KindUnimplemented}
	ErrOutOfBounds        = &Error{Kind: KindOutOfBounds}
	ErrUnreachable        = &Error{Kind: KindUnreachable}
	ErrFuelExhausted      = &Error{Kind: KindFuelExhausted}
	ErrCallStackExhausted = &Error{Kind: KindCallStack}
	ErrCanceled           = &Error{Kind: KindCanceled}
	ErrMismatch           = &Error{Kind: KindMismatch}
)

// Error is the structured error type used throughout the interpreter
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Expected string
	Actual   string
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Expected != "" || e.Actual != "" {
		b.WriteString(": expected (")
		b.WriteString(e.Expected)
		b.WriteString("), got (")
		b.WriteString(e.Actual)
		b.WriteByte(')')
	}

	if e.Detail != "" {
		if e.Expected != "" || e.Actual != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the location path, e.g. section and entry
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Expected sets the expected shape
func (b *Builder) Expected(s string) *Builder {
	b.err.Expected = s
	return b
}

// Actual sets the observed shape
func (b *Builder) Actual(s string) *Builder {
	b.err.Actual = s
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidWasmFile reports a bad magic prefix or header
func InvalidWasmFile(detail string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInvalidWasmFile,
		Detail: detail,
	}
}

// InvalidNumeric reports a LEB128 value wider than its target type
func InvalidNumeric(bits int) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInvalidNumeric,
		Detail: fmt.Sprintf("leb128 value exceeds %d bits", bits),
	}
}

// Unexpected reports a byte where a fixed marker or type tag was required
func Unexpected(phase Phase, what string, got byte) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnexpected,
		Detail: fmt.Sprintf("unexpected %s 0x%02x", what, got),
		Value:  got,
	}
}

// IO wraps a failed read
func IO(phase Phase, cause error) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindIO,
		Cause: cause,
	}
}

// NotFound creates a not found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
		Value:  name,
	}
}

// InconsistentModule reports sections whose contents do not line up
func InconsistentModule(detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindInconsistentModule,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// InvalidArgs reports an argument list that does not match a signature
func InvalidArgs(expected, actual string) *Error {
	return &Error{
		Phase:    PhaseCall,
		Kind:     KindInvalidArgs,
		Expected: expected,
		Actual:   actual,
	}
}

// StackUnderflow reports a pop from an empty stack
func StackUnderflow(stack string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindStackUnderflow,
		Detail: stack + " stack is empty",
	}
}

// TypeMismatch reports an operand of the wrong type
func TypeMismatch(expected, actual string) *Error {
	return &Error{
		Phase:    PhaseRuntime,
		Kind:     KindTypeMismatch,
		Expected: expected,
		Actual:   actual,
	}
}

// DivisionByZero reports an integer division or remainder by zero
func DivisionByZero() *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindDivisionByZero,
		Detail: "integer divide by zero",
	}
}

// IntegerOverflow reports a signed division whose result is not representable
func IntegerOverflow() *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindIntegerOverflow,
		Detail: "integer overflow",
	}
}

// InvalidConversion reports a float to integer truncation of NaN
func InvalidConversion() *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInvalidConversion,
		Detail: "invalid conversion to integer",
	}
}

// Unimplemented reports an opcode the engine does not execute
func Unimplemented(opcode fmt.Stringer) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindUnimplemented,
		Detail: fmt.Sprintf("instruction %s is not implemented", opcode),
		Value:  opcode,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load wraps a failure to read or prepare a module
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindIO,
		Detail: detail,
		Cause:  cause,
	}
}
