package validation

import (
	"github.com/scrtlabs/wasmgate/internal/runtime/module"
	"github.com/scrtlabs/wasmgate/types"
)

// CheckExports requires every name in required to be exported, compared exactly.
// The first missing name is reported together with the whole required list.
func CheckExports(m *module.Module, required []string) error {
	name, missing := firstMissingExport(m, required)
	if !missing {
		return nil
	}
	err := types.NewValidationError(types.ErrMissingExport,
		"Wasm contract doesn't have required export: %s. Exports required by VM: %s.",
		types.Quote(name), types.FormatList(required))
	err.Subject = name
	return err
}

// CheckIBCExports requires the full set of IBC channel and packet entry points.
func CheckIBCExports(m *module.Module) error {
	return CheckExports(m, RequiredIBCExports)
}

func firstMissingExport(m *module.Module, required []string) (string, bool) {
	available := make(map[string]struct{}, len(m.Exports))
	for _, e := range m.Exports {
		available[e.Name] = struct{}{}
	}
	for _, name := range required {
		if _, ok := available[name]; !ok {
			return name, true
		}
	}
	return "", false
}
