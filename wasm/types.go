package wasm

import "strings"

// Module is a decoded module. It is not modified after decoding.
// A nil section pointer means the module did not contain that section.
type Module struct {
	Type     *TypeSection
	Function *FunctionSection
	Export   *ExportSection
	Code     *CodeSection

	// opaque holds the raw payloads of sections that are not decoded,
	// keyed by section id (including ids outside the defined range).
	opaque map[SectionID][]byte

	Version uint32
}

// TypeSection lists the function signatures of a module.
type TypeSection struct {
	Entries []FuncType
}

// FunctionSection lists, per defined function, an index into the type section.
type FunctionSection struct {
	TypeIndices []uint32
}

// ExportSection is the export directory. Names need not be unique.
type ExportSection struct {
	Entries []Export
}

// CodeSection holds one body per defined function, aligned with FunctionSection.
type CodeSection struct {
	Bodies []FuncBody
}

// FuncType represents a function signature with parameter and result types.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (f FuncType) String() string {
	return "(" + JoinTypes(f.Params) + ") -> (" + JoinTypes(f.Results) + ")"
}

// JoinTypes renders a type list as "i32, i64".
func JoinTypes(types []ValType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// Export describes an exported item.
type Export struct {
	Name  string
	Kind  ExternKind
	Index uint32
}

// FuncBody is a decoded function body. Locals has one entry per declared slot.
type FuncBody struct {
	Locals []ValType
	Code   []Instruction
}

// Opaque returns the raw payload of a section that is stored undecoded.
func (m *Module) Opaque(id SectionID) ([]byte, bool) {
	data, ok := m.opaque[id]
	return data, ok
}

// SetOpaque stores a raw section payload, replacing any earlier one.
// Type, Function, Export and Code are always decoded and cannot be set here.
func (m *Module) SetOpaque(id SectionID, data []byte) {
	if id.structured() {
		return
	}
	if m.opaque == nil {
		m.opaque = make(map[SectionID][]byte)
	}
	m.opaque[id] = data
}

// Sections returns the ids of the sections present in m, in ascending order.
func (m *Module) Sections() []SectionID {
	var ids []SectionID
	for id := 0; id < 256; id++ {
		if m.has(SectionID(id)) {
			ids = append(ids, SectionID(id))
		}
	}
	return ids
}

func (m *Module) has(id SectionID) bool {
	switch id {
	case SectionType:
		return m.Type != nil
	case SectionFunction:
		return m.Function != nil
	case SectionExport:
		return m.Export != nil
	case SectionCode:
		return m.Code != nil
	}
	_, ok := m.opaque[id]
	return ok
}

func (id SectionID) structured() bool {
	return id == SectionType || id == SectionFunction || id == SectionExport || id == SectionCode
}
