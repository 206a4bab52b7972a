// Package module is the boundary between raw contract bytecode and the
// static validators. A Decoder turns bytes into a Module; validators only
// ever look at the Module.
package module

import "fmt"

// ImportKind is the kind of capability an import requests from the host.
type ImportKind uint8

const (
	ImportFunction ImportKind = iota
	ImportTable
	ImportMemory
	ImportGlobal
	ImportTag
)

func (k ImportKind) String() string {
	switch k {
	case ImportFunction:
		return "function"
	case ImportTable:
		return "table"
	case ImportMemory:
		return "memory"
	case ImportGlobal:
		return "global"
	case ImportTag:
		return "tag"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// MemoryInfo holds the limits of a single memory entry, in pages.
type MemoryInfo struct {
	InitialPages uint64
	// MaximumPages is nil when the module leaves the maximum to the host.
	MaximumPages *uint64
}

// MemorySection is the module's memory section. A nil *MemorySection means
// the section is absent; an empty Entries slice means it is present but empty.
type MemorySection struct {
	Entries []MemoryInfo
}

// ExportEntry is one named export.
type ExportEntry struct {
	Name string
	// IsFunction is false for exported memories, tables, globals and tags.
	IsFunction bool
}

// ImportEntry is one declared import.
type ImportEntry struct {
	Module string
	Name   string
	Kind   ImportKind
}

// FullName returns the qualified "module.name" form used by the import allow-lists.
func (i ImportEntry) FullName() string {
	return i.Module + "." + i.Name
}

// Module is the structural view of a contract the validators need.
// It is created per validation call and never mutated.
type Module struct {
	Memory  *MemorySection
	Exports []ExportEntry
	Imports []ImportEntry
}

// ExportNames returns the names of all exports in declaration order.
func (m *Module) ExportNames() []string {
	names := make([]string, len(m.Exports))
	for i, e := range m.Exports {
		names[i] = e.Name
	}
	return names
}

// HasExport reports whether an export with exactly this name exists.
func (m *Module) HasExport(name string) bool {
	for _, e := range m.Exports {
		if e.Name == name {
			return true
		}
	}
	return false
}

// Decoder deserializes contract bytecode. Implementations must not retain
// or mutate the input.
type Decoder interface {
	Decode(code []byte) (*Module, error)
}

// DecoderFunc adapts a plain function to the Decoder interface.
type DecoderFunc func(code []byte) (*Module, error)

func (f DecoderFunc) Decode(code []byte) (*Module, error) {
	return f(code)
}
