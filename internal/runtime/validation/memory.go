package validation

import (
	"github.com/scrtlabs/wasmgate/internal/runtime/module"
	"github.com/scrtlabs/wasmgate/types"
)

// CheckMemories requires exactly one memory whose initial size is within
// pageLimit and whose maximum is left to the host.
func CheckMemories(m *module.Module, pageLimit uint32) error {
	if m.Memory == nil {
		return types.NewValidationError(types.ErrMissingMemorySection,
			"Wasm contract doesn't have a memory section")
	}

	// An empty section is reachable with a hand-written binary and lands here too.
	if len(m.Memory.Entries) != 1 {
		return types.NewValidationError(types.ErrInvalidMemoryCount,
			"Wasm contract must contain exactly one memory")
	}

	memory := m.Memory.Entries[0]
	if memory.InitialPages > uint64(pageLimit) {
		return types.NewValidationError(types.ErrMemoryTooLarge,
			"Wasm contract memory's minimum must not exceed %d pages.", pageLimit)
	}

	if memory.MaximumPages != nil {
		return types.NewValidationError(types.ErrMemoryMaximumMustBeUnset,
			"Wasm contract memory's maximum must be unset. The host will set it for you.")
	}
	return nil
}
