package wasm

// ResolveExport returns the first export named name. Later exports with the
// same name are shadowed.
func (m *Module) ResolveExport(name string) (Export, bool) {
	if m.Export == nil {
		return Export{}, false
	}
	for _, exp := range m.Export.Entries {
		if exp.Name == name {
			return exp, true
		}
	}
	return Export{}, false
}

// FunctionExports returns the function exports in declaration order,
// skipping names already seen.
func (m *Module) FunctionExports() []Export {
	if m.Export == nil {
		return nil
	}
	seen := make(map[string]bool, len(m.Export.Entries))
	var out []Export
	for _, exp := range m.Export.Entries {
		if seen[exp.Name] {
			continue
		}
		seen[exp.Name] = true
		if exp.Kind == ExternFunction {
			out = append(out, exp)
		}
	}
	return out
}

// FunctionType returns the signature of function idx, or false when either
// index is out of range or the sections are missing.
func (m *Module) FunctionType(idx uint32) (FuncType, bool) {
	if m.Function == nil || m.Type == nil || int(idx) >= len(m.Function.TypeIndices) {
		return FuncType{}, false
	}
	ti := m.Function.TypeIndices[idx]
	if int(ti) >= len(m.Type.Entries) {
		return FuncType{}, false
	}
	return m.Type.Entries[ti], true
}
