package wasm

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/wasm/internal/binary"
)

// maxLocals bounds the expanded local slots of one function body.
const maxLocals = 50000

// ParseModuleReader reads r to the end and parses the result.
func ParseModuleReader(r io.Reader) (*Module, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Load("read module", err)
	}
	return ParseModule(data)
}

// ParseModule parses a binary module. Sections are folded into the Module by
// kind; when a kind occurs more than once the last occurrence wins.
func ParseModule(data []byte) (*Module, error) {
	r := binary.NewReader(data)

	magic, err := r.ReadBytes(len(magicBytes))
	if err != nil || [4]byte(magic) != magicBytes {
		return nil, errors.InvalidWasmFile("missing \\0asm magic")
	}

	version, err := r.ReadU32LE()
	if err != nil {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidWasmFile).
			Detail("truncated version").
			Cause(r.WrapError("header", err)).
			Build()
	}

	m := &Module{Version: version}

	for {
		id, err := r.ReadByte()
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				break
			}
			return nil, decodeError(r, "section header", err)
		}
		sectionID := SectionID(id)
		name := sectionID.String() + " section"

		size, err := r.ReadU32()
		if err != nil {
			return nil, decodeError(r, name, err)
		}

		sr, err := r.Sub(int(size))
		if err != nil {
			return nil, decodeError(r, name, err)
		}

		if err := parseSection(sectionID, sr, m); err != nil {
			return nil, decodeError(sr, name, err)
		}
	}

	return m, nil
}

func parseSection(id SectionID, sr *binary.Reader, m *Module) error {
	var err error
	switch id {
	case SectionType:
		err = parseTypeSection(sr, m)
	case SectionFunction:
		err = parseFunctionSection(sr, m)
	case SectionExport:
		err = parseExportSection(sr, m)
	case SectionCode:
		err = parseCodeSection(sr, m)
	default:
		data, rerr := sr.ReadRemaining()
		if rerr != nil {
			return rerr
		}
		m.SetOpaque(id, data)
		return nil
	}
	if err != nil {
		return err
	}
	if sr.Len() != 0 {
		return errors.New(errors.PhaseDecode, errors.KindUnexpected).
			Detail("%d trailing bytes", sr.Len()).
			Build()
	}
	return nil
}

// decodeError converts reader failures into the decode error taxonomy and
// records which section was being read.
func decodeError(r *binary.Reader, section string, err error) error {
	var e *errors.Error
	if stderrors.As(err, &e) {
		if len(e.Path) == 0 {
			e.Path = []string{section}
		}
		return e
	}

	kind := errors.KindIO
	switch {
	case stderrors.Is(err, binary.ErrOverflow):
		kind = errors.KindInvalidNumeric
	case stderrors.Is(err, binary.ErrInvalidUTF8):
		kind = errors.KindUnexpected
	case stderrors.Is(err, io.EOF):
		err = io.ErrUnexpectedEOF
	}
	return errors.New(errors.PhaseDecode, kind).
		Path(section).
		Cause(r.WrapError(section, err)).
		Build()
}

// capacity bounds a preallocation by the bytes left, since every entry takes at least one.
func capacity(count uint32, r *binary.Reader) int {
	return min(int(count), r.Len())
}

func parseTypeSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	sec := &TypeSection{Entries: make([]FuncType, 0, capacity(count, r))}
	for i := uint32(0); i < count; i++ {
		marker, err := r.ReadByte()
		if err != nil {
			return err
		}
		if marker != FuncTypeByte {
			return errors.Unexpected(errors.PhaseDecode, "function type marker", marker)
		}
		params, err := readValTypes(r)
		if err != nil {
			return err
		}
		results, err := readValTypes(r)
		if err != nil {
			return err
		}
		sec.Entries = append(sec.Entries, FuncType{Params: params, Results: results})
	}
	m.Type = sec
	return nil
}

func readValTypes(r *binary.Reader) ([]ValType, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	raw, err := r.ReadBytes(int(count))
	if err != nil {
		return nil, err
	}
	types := make([]ValType, len(raw))
	for i, b := range raw {
		types[i] = ValTypeOf(b)
	}
	return types, nil
}

func parseFunctionSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	sec := &FunctionSection{TypeIndices: make([]uint32, 0, capacity(count, r))}
	for i := uint32(0); i < count; i++ {
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		sec.TypeIndices = append(sec.TypeIndices, idx)
	}
	m.Function = sec
	return nil
}

func parseExportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	sec := &ExportSection{Entries: make([]Export, 0, capacity(count, r))}
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadU32()
		if err != nil {
			return err
		}
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		sec.Entries = append(sec.Entries, Export{Name: name, Kind: externKindOf(kind), Index: idx})
	}
	m.Export = sec
	return nil
}

func parseCodeSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	sec := &CodeSection{Bodies: make([]FuncBody, 0, capacity(count, r))}
	for i := uint32(0); i < count; i++ {
		bodySize, err := r.ReadU32()
		if err != nil {
			return err
		}
		br, err := r.Sub(int(bodySize))
		if err != nil {
			return err
		}
		body, err := parseFuncBody(br)
		if err != nil {
			return decodeError(br, fmt.Sprintf("code section body %d", i), err)
		}
		sec.Bodies = append(sec.Bodies, body)
	}
	m.Code = sec
	return nil
}

func parseFuncBody(r *binary.Reader) (FuncBody, error) {
	declCount, err := r.ReadU32()
	if err != nil {
		return FuncBody{}, err
	}
	var locals []ValType
	for j := uint32(0); j < declCount; j++ {
		n, err := r.ReadU32()
		if err != nil {
			return FuncBody{}, err
		}
		t, err := r.ReadByte()
		if err != nil {
			return FuncBody{}, err
		}
		if uint64(len(locals))+uint64(n) > maxLocals {
			return FuncBody{}, errors.New(errors.PhaseDecode, errors.KindInvalidNumeric).
				Detail("more than %d locals", maxLocals).
				Build()
		}
		vt := ValTypeOf(t)
		for k := uint32(0); k < n; k++ {
			locals = append(locals, vt)
		}
	}

	instrs, err := decodeInstructions(r)
	if err != nil {
		return FuncBody{}, err
	}
	return FuncBody{Locals: locals, Code: instrs}, nil
}
