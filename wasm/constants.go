package wasm

// WebAssembly binary format magic number and version.
const (
	// Magic is the WebAssembly binary magic number ("\0asm" in little-endian).
	Magic uint32 = 0x6D736100

	// Version is the binary format version other tools expect.
	Version uint32 = 0x01
)

// magicBytes is Magic as it appears at the start of a module.
var magicBytes = [4]byte{0x00, 0x61, 0x73, 0x6D}

// SectionID is the one-byte discriminant that precedes every section.
type SectionID byte

// Section IDs define the binary identifiers for each module section.
const (
	SectionCustom   SectionID = 0  // Custom section (can appear anywhere)
	SectionType     SectionID = 1  // Type section (function signatures)
	SectionImport   SectionID = 2  // Import section
	SectionFunction SectionID = 3  // Function section (type indices)
	SectionTable    SectionID = 4  // Table section
	SectionMemory   SectionID = 5  // Memory section
	SectionGlobal   SectionID = 6  // Global section
	SectionExport   SectionID = 7  // Export section
	SectionStart    SectionID = 8  // Start section
	SectionElement  SectionID = 9  // Element section
	SectionCode     SectionID = 10 // Code section (function bodies)
	SectionData     SectionID = 11 // Data section
)

// numSections is the count of defined section kinds.
const numSections = 12

var sectionNames = [numSections]string{
	"custom", "type", "import", "function", "table", "memory",
	"global", "export", "start", "element", "code", "data",
}

// Supported reports whether id is one of the twelve defined section kinds.
func (id SectionID) Supported() bool {
	return id < numSections
}

func (id SectionID) String() string {
	if id.Supported() {
		return sectionNames[id]
	}
	return "unsupported"
}

// FuncTypeByte marks the start of a function type in the type section.
const FuncTypeByte byte = 0x60

// ValType represents a value type.
type ValType byte

// Value type encodings. ValUnknown stands in for any unrecognized type byte.
const (
	ValUnknown ValType = 0x00
	ValI32     ValType = 0x7F // 32-bit integer
	ValI64     ValType = 0x7E // 64-bit integer
	ValF32     ValType = 0x7D // 32-bit float
	ValF64     ValType = 0x7C // 64-bit float
)

// ValTypeOf maps a type byte to its ValType. Unrecognized bytes map to ValUnknown.
func ValTypeOf(b byte) ValType {
	switch t := ValType(b); t {
	case ValI32, ValI64, ValF32, ValF64:
		return t
	default:
		return ValUnknown
	}
}

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	default:
		return "unknown"
	}
}

// BlockType is the declared result of a block, loop or if.
type BlockType byte

// Block type encodings
const (
	BlockEmpty BlockType = 0x40
	BlockI32   BlockType = BlockType(ValI32)
	BlockI64   BlockType = BlockType(ValI64)
	BlockF32   BlockType = BlockType(ValF32)
	BlockF64   BlockType = BlockType(ValF64)
)

// Results returns the number of values a block of this type leaves on the stack.
func (b BlockType) Results() int {
	if b == BlockEmpty {
		return 0
	}
	return 1
}

func (b BlockType) String() string {
	if b == BlockEmpty {
		return "empty"
	}
	return ValType(b).String()
}

// ExternKind identifies what an export refers to.
type ExternKind byte

// Export descriptor kinds
const (
	ExternFunction ExternKind = 0
	ExternTable    ExternKind = 1
	ExternMemory   ExternKind = 2
	ExternGlobal   ExternKind = 3
	ExternUnknown  ExternKind = 0xFF
)

func externKindOf(v uint32) ExternKind {
	if v <= uint32(ExternGlobal) {
		return ExternKind(v)
	}
	return ExternUnknown
}

func (k ExternKind) String() string {
	switch k {
	case ExternFunction:
		return "func"
	case ExternTable:
		return "table"
	case ExternMemory:
		return "memory"
	case ExternGlobal:
		return "global"
	default:
		return "unknown"
	}
}
