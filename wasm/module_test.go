package wasm_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/wippyai/wasm-interp/wasm"
)

func TestResolveExportFirstMatchWins(t *testing.T) {
	m := &wasm.Module{
		Export: &wasm.ExportSection{Entries: []wasm.Export{
			{Name: "f", Kind: wasm.ExternFunction, Index: 0},
			{Name: "mem", Kind: wasm.ExternMemory, Index: 0},
			{Name: "f", Kind: wasm.ExternFunction, Index: 1},
		}},
	}

	exp, ok := m.ResolveExport("f")
	if !ok {
		t.Fatal("export f not found")
	}
	if exp.Index != 0 {
		t.Errorf("index: got %d, want 0", exp.Index)
	}

	if _, ok := m.ResolveExport("missing"); ok {
		t.Error("expected missing export to be absent")
	}

	funcs := m.FunctionExports()
	if len(funcs) != 1 || funcs[0].Name != "f" || funcs[0].Index != 0 {
		t.Errorf("FunctionExports: got %+v", funcs)
	}
}

func TestResolveExportNoSection(t *testing.T) {
	var m wasm.Module
	if _, ok := m.ResolveExport("f"); ok {
		t.Error("expected no export without an export section")
	}
	if got := m.FunctionExports(); got != nil {
		t.Errorf("FunctionExports: got %v, want nil", got)
	}
}

func TestFunctionType(t *testing.T) {
	m := &wasm.Module{
		Type: &wasm.TypeSection{Entries: []wasm.FuncType{
			{Params: []wasm.ValType{wasm.ValI64}},
			{Results: []wasm.ValType{wasm.ValF32}},
		}},
		Function: &wasm.FunctionSection{TypeIndices: []uint32{1, 0, 9}},
	}

	tests := []struct {
		idx    uint32
		want   string
		wantOK bool
	}{
		{0, "() -> (f32)", true},
		{1, "(i64) -> ()", true},
		{2, "", false},
		{3, "", false},
	}
	for _, tt := range tests {
		ft, ok := m.FunctionType(tt.idx)
		if ok != tt.wantOK {
			t.Errorf("FunctionType(%d): ok = %v, want %v", tt.idx, ok, tt.wantOK)
			continue
		}
		if ok && ft.String() != tt.want {
			t.Errorf("FunctionType(%d): got %q, want %q", tt.idx, ft.String(), tt.want)
		}
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	m := &wasm.Module{
		Version: wasm.Version,
		Type: &wasm.TypeSection{Entries: []wasm.FuncType{
			{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}},
		}},
		Function: &wasm.FunctionSection{TypeIndices: []uint32{0}},
		Export: &wasm.ExportSection{Entries: []wasm.Export{
			{Name: "add", Kind: wasm.ExternFunction},
		}},
		Code: &wasm.CodeSection{Bodies: []wasm.FuncBody{{
			Locals: []wasm.ValType{wasm.ValI64, wasm.ValI64, wasm.ValF32, wasm.ValI64},
			Code: []wasm.Instruction{
				{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
				{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 1}},
				{Opcode: wasm.OpI32Add},
				{Opcode: wasm.OpEnd},
			},
		}}},
	}
	m.SetOpaque(wasm.SectionCustom, []byte{0x04, 'n', 'a', 'm', 'e'})
	m.SetOpaque(wasm.SectionMemory, []byte{0x01, 0x00, 0x01})

	data := m.Encode()
	if !bytes.HasPrefix(data, header) {
		t.Fatalf("header: got %x", data[:8])
	}

	parsed, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if got := parsed.Type.Entries[0].String(); got != "(i32, i32) -> (i32)" {
		t.Errorf("type: got %q", got)
	}
	if exp, ok := parsed.ResolveExport("add"); !ok || exp.Index != 0 {
		t.Errorf("export: got %+v, %v", exp, ok)
	}
	body := parsed.Code.Bodies[0]
	if len(body.Locals) != 4 || body.Locals[2] != wasm.ValF32 || body.Locals[3] != wasm.ValI64 {
		t.Errorf("locals: got %v", body.Locals)
	}
	for i, instr := range m.Code.Bodies[0].Code {
		if !body.Code[i].Equal(instr) {
			t.Errorf("code[%d]: got %v, want %v", i, body.Code[i], instr)
		}
	}
	for _, id := range []wasm.SectionID{wasm.SectionCustom, wasm.SectionMemory} {
		want, _ := m.Opaque(id)
		got, ok := parsed.Opaque(id)
		if !ok || !bytes.Equal(got, want) {
			t.Errorf("section %v: got %x, want %x", id, got, want)
		}
	}

	if again := parsed.Encode(); !bytes.Equal(again, data) {
		t.Error("re-encoding a decoded module changed its bytes")
	}
}

func TestEncodeParsedAddModule(t *testing.T) {
	m, err := wasm.ParseModule(addModule)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if got := m.Encode(); !bytes.Equal(got, addModule) {
		t.Errorf("Encode:\ngot  %x\nwant %x", got, addModule)
	}
}

func TestEncodeKeepsVersion(t *testing.T) {
	for _, version := range []uint32{0, 1, 0x0001000D} {
		data := concat([]byte{0x00, 0x61, 0x73, 0x6D}, binary.LittleEndian.AppendUint32(nil, version))
		m, err := wasm.ParseModule(data)
		if err != nil {
			t.Fatalf("version %#x: %v", version, err)
		}
		if got := m.Encode(); !bytes.Equal(got, data) {
			t.Errorf("version %#x: got %x, want %x", version, got, data)
		}
	}
}

func TestSetOpaqueIgnoresStructuredSections(t *testing.T) {
	var m wasm.Module
	m.SetOpaque(wasm.SectionType, []byte{0x00})
	if _, ok := m.Opaque(wasm.SectionType); ok {
		t.Error("type section stored as opaque")
	}
	if len(m.Sections()) != 0 {
		t.Errorf("Sections: got %v, want none", m.Sections())
	}
}

func TestLookupOpcode(t *testing.T) {
	tests := []struct {
		b    byte
		want wasm.Opcode
		name string
	}{
		{0x00, wasm.OpUnreachable, "unreachable"},
		{0x0B, wasm.OpEnd, "end"},
		{0x20, wasm.OpLocalGet, "local.get"},
		{0x45, wasm.OpI32Eqz, "i32.eqz"},
		{0x6A, wasm.OpI32Add, "i32.add"},
		{0x7C, wasm.OpI64Add, "i64.add"},
		{0x92, wasm.OpF32Add, "f32.add"},
		{0xA7, wasm.OpI32WrapI64, "i32.wrap_i64"},
		{0xBF, wasm.OpF64ReinterpretI64, "f64.reinterpret_i64"},
		{0x06, wasm.OpUnknown, "unknown"},
		{0x1C, wasm.OpUnknown, "unknown"},
		{0xC0, wasm.OpUnknown, "unknown"},
		{0xFF, wasm.OpUnknown, "unknown"},
	}
	for _, tt := range tests {
		got := wasm.LookupOpcode(tt.b)
		if got != tt.want {
			t.Errorf("LookupOpcode(%#02x): got %v, want %v", tt.b, got, tt.want)
		}
		if got.String() != tt.name {
			t.Errorf("LookupOpcode(%#02x).String(): got %q, want %q", tt.b, got.String(), tt.name)
		}
	}
}

func TestSectionIDString(t *testing.T) {
	if got := wasm.SectionCode.String(); got != "code" {
		t.Errorf("got %q, want code", got)
	}
	if got := wasm.SectionID(12).String(); got != "unsupported" {
		t.Errorf("got %q, want unsupported", got)
	}
	if wasm.SectionID(12).Supported() {
		t.Error("section 12 reported as supported")
	}
}
