package validation

import (
	"github.com/scrtlabs/wasmgate/internal/runtime/module"
	"github.com/scrtlabs/wasmgate/types"
)

// ImportSet is an allow-list of fully qualified "module.name" imports.
// It remembers declaration order for diagnostics.
type ImportSet struct {
	names []string
	index map[string]struct{}
}

// NewImportSet builds an allow-list. Duplicates are collapsed.
func NewImportSet(names ...string) ImportSet {
	s := ImportSet{index: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if _, dup := s.index[n]; dup {
			continue
		}
		s.index[n] = struct{}{}
		s.names = append(s.names, n)
	}
	return s
}

// Contains reports whether fullName is allowed.
func (s ImportSet) Contains(fullName string) bool {
	_, ok := s.index[fullName]
	return ok
}

// Names returns the allowed imports in declaration order.
func (s ImportSet) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of allowed imports.
func (s ImportSet) Len() int {
	return len(s.names)
}

// CheckImports requires every import to be on the allow-list and to be a
// function. The host offers nothing but functions, so a memory, table,
// global or tag import is rejected even when its name is allowed.
func CheckImports(m *module.Module, supported ImportSet) error {
	imp, kind, rejected := firstRejectedImport(m, supported)
	if !rejected {
		return nil
	}

	fullName := imp.FullName()
	var err *types.ValidationError
	switch kind {
	case types.ErrUnsupportedImport:
		err = types.NewValidationError(kind,
			"Wasm contract requires unsupported import: %s. Imports supported by VM: %s.",
			types.Quote(fullName), types.FormatList(supported.names))
	default:
		err = types.NewValidationError(kind,
			"Wasm contract requires non-function import: %s. Right now, all supported imports are functions.",
			types.Quote(fullName))
	}
	err.Subject = fullName
	return err
}

func firstRejectedImport(m *module.Module, supported ImportSet) (module.ImportEntry, types.ErrorKind, bool) {
	for _, imp := range m.Imports {
		if !supported.Contains(imp.FullName()) {
			return imp, types.ErrUnsupportedImport, true
		}
		if imp.Kind != module.ImportFunction {
			return imp, types.ErrNonFunctionImport, true
		}
	}
	return module.ImportEntry{}, 0, false
}
