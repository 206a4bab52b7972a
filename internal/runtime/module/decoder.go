package module

import (
	"fmt"

	"github.com/wippyai/wasm-runtime/wasm"
)

// WasmDecoder decodes the WebAssembly binary format. It keeps every memory
// entry the binary declares so that count checks happen in the validator
// rather than being folded into a parse failure.
type WasmDecoder struct{}

var _ Decoder = WasmDecoder{}

// Decode implements Decoder.
func (WasmDecoder) Decode(code []byte) (*Module, error) {
	parsed, err := wasm.ParseModule(code)
	if err != nil {
		return nil, err
	}
	return fromWasm(parsed)
}

func fromWasm(parsed *wasm.Module) (*Module, error) {
	m := &Module{}

	// ParseModule leaves Memories nil when there is no memory section.
	if parsed.Memories != nil {
		m.Memory = &MemorySection{Entries: make([]MemoryInfo, len(parsed.Memories))}
		for i, mem := range parsed.Memories {
			info := MemoryInfo{InitialPages: mem.Limits.Min}
			if mem.Limits.Max != nil {
				maxPages := *mem.Limits.Max
				info.MaximumPages = &maxPages
			}
			m.Memory.Entries[i] = info
		}
	}

	m.Exports = make([]ExportEntry, len(parsed.Exports))
	for i, exp := range parsed.Exports {
		m.Exports[i] = ExportEntry{Name: exp.Name, IsFunction: exp.Kind == wasm.KindFunc}
	}

	m.Imports = make([]ImportEntry, len(parsed.Imports))
	for i, imp := range parsed.Imports {
		kind, err := importKind(imp.Desc.Kind)
		if err != nil {
			return nil, fmt.Errorf("import %q.%q: %w", imp.Module, imp.Name, err)
		}
		m.Imports[i] = ImportEntry{Module: imp.Module, Name: imp.Name, Kind: kind}
	}
	return m, nil
}

func importKind(kind byte) (ImportKind, error) {
	switch kind {
	case wasm.KindFunc:
		return ImportFunction, nil
	case wasm.KindTable:
		return ImportTable, nil
	case wasm.KindMemory:
		return ImportMemory, nil
	case wasm.KindGlobal:
		return ImportGlobal, nil
	case wasm.KindTag:
		return ImportTag, nil
	default:
		return 0, fmt.Errorf("unknown import kind 0x%02x", kind)
	}
}
