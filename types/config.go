package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/scrtlabs/wasmgate/internal/runtime/constants"
)

// Storage backends understood by CacheOptions.Backend. They map onto cometbft-db backends.
const (
	BackendMemDB     = "memdb"
	BackendGoLevelDB = "goleveldb"
)

// GateConfig defines the configuration for a Gate.
type GateConfig struct {
	WasmLimits WasmLimits   `json:"wasm_limits"`
	Build      BuildOptions `json:"build"`
	Cache      CacheOptions `json:"cache"`
}

// WasmLimits bounds what a contract may declare.
type WasmLimits struct {
	// InitialMemoryLimit is the largest initial memory in pages. Defaults to 512.
	InitialMemoryLimit *uint32 `json:"initial_memory_limit,omitempty"`
}

// BuildOptions selects which optional host imports this deployment provides.
type BuildOptions struct {
	Iterator   bool `json:"iterator"`
	DebugPrint bool `json:"debug_print"`
}

// Flags returns the enabled build flags.
func (b BuildOptions) Flags() map[string]bool {
	return map[string]bool{
		constants.FlagIterator:   b.Iterator,
		constants.FlagDebugPrint: b.DebugPrint,
	}
}

type CacheOptions struct {
	// BaseDir holds the code database. Empty keeps everything in memory.
	BaseDir string `json:"base_dir"`
	// Backend is BackendMemDB or BackendGoLevelDB. Empty picks one from BaseDir.
	Backend string `json:"backend,omitempty"`
	// MemoryCacheEntries bounds the unpinned compiled modules kept in memory. 0 picks the default.
	MemoryCacheEntries    int      `json:"memory_cache_entries,omitempty"`
	AvailableCapabilities []string `json:"available_capabilities"`
}

// DefaultGateConfig returns an in-memory configuration with the iterator imports enabled.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		Build: BuildOptions{Iterator: true},
	}
}

// ParseGateConfig decodes a JSON configuration on top of DefaultGateConfig.
// Unknown fields are an error.
func ParseGateConfig(data []byte) (GateConfig, error) {
	return ParseGateConfigOnto(DefaultGateConfig(), data)
}

// ParseGateConfigOnto decodes a JSON configuration on top of base. Fields
// missing from data keep their value from base; a present list replaces
// the base list.
func ParseGateConfigOnto(base GateConfig, data []byte) (GateConfig, error) {
	cfg := base
	cfg.Cache.AvailableCapabilities = append([]string(nil), base.Cache.AvailableCapabilities...)
	if base.WasmLimits.InitialMemoryLimit != nil {
		limit := *base.WasmLimits.InitialMemoryLimit
		cfg.WasmLimits.InitialMemoryLimit = &limit
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return GateConfig{}, fmt.Errorf("invalid gate config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return GateConfig{}, err
	}
	return cfg, nil
}

// MemoryPageLimit returns the configured page limit or the host default.
func (c GateConfig) MemoryPageLimit() uint32 {
	if c.WasmLimits.InitialMemoryLimit != nil {
		return *c.WasmLimits.InitialMemoryLimit
	}
	return constants.MemoryPageLimit
}

// StorageBackend resolves the backend to use for the code database.
func (c GateConfig) StorageBackend() string {
	if c.Cache.Backend != "" {
		return c.Cache.Backend
	}
	if c.Cache.BaseDir == "" {
		return BackendMemDB
	}
	return BackendGoLevelDB
}

// EnabledFeatures returns the available capabilities as a set.
func (c GateConfig) EnabledFeatures() FeatureSet {
	return NewFeatureSet(c.Cache.AvailableCapabilities...)
}

// Validate checks the configuration for values the gate cannot work with.
func (c GateConfig) Validate() error {
	if c.WasmLimits.InitialMemoryLimit != nil && *c.WasmLimits.InitialMemoryLimit == 0 {
		return fmt.Errorf("initial_memory_limit must be positive")
	}
	if c.Cache.MemoryCacheEntries < 0 {
		return fmt.Errorf("memory_cache_entries must not be negative")
	}
	caps := make(Capabilities, len(c.Cache.AvailableCapabilities))
	for i, v := range c.Cache.AvailableCapabilities {
		caps[i] = Capability(v)
	}
	if err := caps.Validate(); err != nil {
		return fmt.Errorf("available_capabilities: %w", err)
	}
	switch backend := c.StorageBackend(); backend {
	case BackendMemDB:
	case BackendGoLevelDB:
		if c.Cache.BaseDir == "" {
			return fmt.Errorf("backend %s requires base_dir", backend)
		}
	default:
		return fmt.Errorf("unknown backend %q, expected %s or %s", backend, BackendMemDB, BackendGoLevelDB)
	}
	return nil
}
