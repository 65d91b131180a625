// Package engine runs decoded modules behind a common Backend interface.
//
// Two backends are provided:
//
//	Interpreter - the stack-machine interpreter from the runtime package
//	Wazero      - the wazero runtime, used as a reference implementation
//
// Compare invokes the same export on two backends and reports any
// disagreement in results or trap kind as a KindMismatch error. Wazero traps
// are mapped onto the interpreter's error kinds so that, for example, an
// integer division by zero counts as agreement.
//
// # Memory
//
// The interpreter's memory starts empty and grows implicitly on access.
// wazero follows the memory section of the module and never grows
// implicitly, so comparisons involving memory should use modules that
// declare one and stay within its bounds.
//
// # Thread Safety
//
// Interpreter serializes invocations. Wazero is NOT safe for concurrent use.
package engine
