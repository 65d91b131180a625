package wasm

import (
	"github.com/wippyai/wasm-interp/wasm/internal/binary"
)

// Encode encodes the module to binary format. Sections are written in id
// order, opaque payloads verbatim. Version is written as is, so a module
// built by hand for other tools should set it to wasm.Version. Value types
// decoded as ValUnknown do not round-trip since their original byte is not kept.
func (m *Module) Encode() []byte {
	w := binary.NewWriter()

	w.WriteBytes(magicBytes[:])
	w.WriteU32LE(m.Version)

	for _, id := range m.Sections() {
		switch id {
		case SectionType:
			w.WriteSection(byte(id), encodeTypeSection(m.Type))
		case SectionFunction:
			w.WriteSection(byte(id), encodeFunctionSection(m.Function))
		case SectionExport:
			w.WriteSection(byte(id), encodeExportSection(m.Export))
		case SectionCode:
			w.WriteSection(byte(id), encodeCodeSection(m.Code))
		default:
			data, _ := m.Opaque(id)
			w.WriteSection(byte(id), data)
		}
	}

	return w.Bytes()
}

func encodeTypeSection(sec *TypeSection) []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(sec.Entries)))
	for _, ft := range sec.Entries {
		w.Byte(FuncTypeByte)
		writeValTypes(w, ft.Params)
		writeValTypes(w, ft.Results)
	}
	return w.Bytes()
}

func writeValTypes(w *binary.Writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

func encodeFunctionSection(sec *FunctionSection) []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(sec.TypeIndices)))
	for _, idx := range sec.TypeIndices {
		w.WriteU32(idx)
	}
	return w.Bytes()
}

func encodeExportSection(sec *ExportSection) []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(sec.Entries)))
	for _, exp := range sec.Entries {
		w.WriteName(exp.Name)
		w.WriteU32(uint32(exp.Kind))
		w.WriteU32(exp.Index)
	}
	return w.Bytes()
}

func encodeCodeSection(sec *CodeSection) []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(sec.Bodies)))
	for i := range sec.Bodies {
		body := encodeFuncBody(&sec.Bodies[i])
		w.WriteU32(uint32(len(body)))
		w.WriteBytes(body)
	}
	return w.Bytes()
}

// encodeFuncBody compresses consecutive locals of one type into a single declaration.
func encodeFuncBody(body *FuncBody) []byte {
	type run struct {
		count uint32
		typ   ValType
	}
	var runs []run
	for _, t := range body.Locals {
		if n := len(runs); n > 0 && runs[n-1].typ == t {
			runs[n-1].count++
			continue
		}
		runs = append(runs, run{count: 1, typ: t})
	}

	w := binary.NewWriter()
	w.WriteU32(uint32(len(runs)))
	for _, r := range runs {
		w.WriteU32(r.count)
		w.Byte(byte(r.typ))
	}
	w.WriteBytes(EncodeInstructions(body.Code))
	return w.Bytes()
}
