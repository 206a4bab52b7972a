package types

import (
	"github.com/shamaton/msgpack/v2"
)

// AnalysisReport describes a stored contract beyond the accept/reject decision.
type AnalysisReport struct {
	HasIBCEntryPoints bool
	// RequiredCapabilities is a sorted, comma separated list of the features the contract requires.
	RequiredCapabilities string
	// Entrypoints lists the known entry points the contract exports, sorted.
	Entrypoints []string
	// Generations lists the API generations the contract satisfies, in the order they are tried.
	Generations []string
}

type Metrics struct {
	HitsPinnedMemoryCache     uint32
	HitsMemoryCache           uint32
	Misses                    uint32
	ElementsPinnedMemoryCache uint64
	ElementsMemoryCache       uint64
	// Cumulative size of all elements in pinned memory cache (in bytes)
	SizePinnedMemoryCache uint64
	// Cumulative size of all elements in memory cache (in bytes)
	SizeMemoryCache uint64
}

type PerModuleMetrics struct {
	Hits uint32 `msgpack:"hits"`
	Size uint64 `msgpack:"size"`
}

type PerModuleEntry struct {
	Checksum Checksum
	Metrics  PerModuleMetrics
}

type PinnedMetrics struct {
	PerModule []PerModuleEntry `msgpack:"per_module"`
}

// MarshalMessagePack encodes the metrics in the compact array form.
func (pm *PinnedMetrics) MarshalMessagePack() ([]byte, error) {
	return msgpack.MarshalAsArray(pm)
}

func (pm *PinnedMetrics) UnmarshalMessagePack(data []byte) error {
	return msgpack.UnmarshalAsArray(data, pm)
}
