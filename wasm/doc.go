// Package wasm decodes and encodes the binary module format.
//
// Only the sections needed to run exported functions are decoded into
// structured form: type, function, export and code. All other sections,
// including ids outside the defined range, are kept as raw payloads and can
// be read back with Module.Opaque.
//
// # Parsing
//
//	data, _ := os.ReadFile("module.wasm")
//	module, err := wasm.ParseModule(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Input that does not begin with the "\0asm" magic is rejected with
// errors.KindInvalidWasmFile. The version word is recorded but not checked.
// When a section kind appears more than once, the last occurrence wins.
//
// # Instructions
//
// Function bodies are decoded into []Instruction. Each Instruction carries
// its Opcode and an Imm value whose concrete type depends on the opcode:
//
//	block, loop, if      BlockImm
//	br, br_if            BranchImm
//	br_table             BrTableImm
//	call                 CallImm
//	call_indirect        CallIndirectImm
//	local.*              LocalImm
//	global.*             GlobalImm
//	loads, stores        MemoryImm
//	memory.size/grow     MemoryIdxImm
//	i32.const            I32Imm (signed LEB128)
//	i64.const            I64Imm (signed LEB128)
//	f32.const            F32Imm (4 bytes little-endian)
//	f64.const            F64Imm (8 bytes little-endian)
//
// Bytes that are not a known opcode fail decoding, since their immediates
// cannot be skipped.
//
// # Encoding
//
// Module.Encode writes a module back to binary form. Decoding the result
// yields an equal module as long as every value type was known.
package wasm
