package constants

const (
	// WasmPageSize is the size of one linear memory page in bytes.
	WasmPageSize = 65536

	// MemoryPageLimit is the largest initial memory (in pages) a contract may declare.
	MemoryPageLimit uint32 = 512
)

// RequiresPrefix marks an export as a feature requirement rather than an entry point.
// Everything after the prefix (case-sensitive) is the feature identifier.
const RequiresPrefix = "requires_"

// Names of the contract API generations, in the order they are tried.
const (
	GenerationV010 = "v0.10"
	GenerationV1   = "v1"
)
