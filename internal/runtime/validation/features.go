package validation

import (
	"strings"

	"github.com/scrtlabs/wasmgate/internal/runtime/constants"
	"github.com/scrtlabs/wasmgate/internal/runtime/module"
	"github.com/scrtlabs/wasmgate/types"
)

// RequiredFeatures collects the features a module asks for through
// "requires_<feature>" exports. Matching is lexical and case-sensitive;
// the export kind is not looked at. A bare "requires_" names no feature.
func RequiredFeatures(m *module.Module) types.FeatureSet {
	required := types.FeatureSet{}
	for _, e := range m.Exports {
		feature, ok := strings.CutPrefix(e.Name, constants.RequiresPrefix)
		if ok && feature != "" {
			required.Add(feature)
		}
	}
	return required
}

// CheckFeatures requires every feature the module asks for to be enabled.
func CheckFeatures(m *module.Module, enabled types.FeatureSet) error {
	required := RequiredFeatures(m)
	if required.IsSubset(enabled) {
		return nil
	}

	unsupported := required.Difference(enabled)
	err := types.NewValidationError(types.ErrUnsupportedFeatures,
		"Wasm contract requires unsupported features: %s", types.FormatSet(unsupported))
	err.Features = unsupported
	return err
}
