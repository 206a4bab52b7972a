// Package wasmgate decides whether CosmWasm contract bytecode may be handed
// to the host VM, and keeps the code it accepted.
//
// Use CheckWasm for a one-off decision. A Gate adds a code store on top of
// the same checks: accepted code is compiled, persisted by checksum and can
// be pinned, analyzed and removed later.
package wasmgate

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/scrtlabs/wasmgate/internal/runtime/cache"
	"github.com/scrtlabs/wasmgate/internal/runtime/constants"
	"github.com/scrtlabs/wasmgate/internal/runtime/validation"
	"github.com/scrtlabs/wasmgate/types"
)

var defaultChecker = validation.NewChecker(validation.Config{})

// CheckWasm statically validates code with the default host limits and
// profiles. It returns nil when the code is acceptable and a
// *ValidationError otherwise.
func CheckWasm(code WasmCode, enabled FeatureSet) error {
	return defaultChecker.Check(code, enabled)
}

// Gate is the main entry point to this library.
// You should create one per base directory and route every code upload through it.
type Gate struct {
	checker  *validation.Checker
	cache    *cache.Cache
	features types.FeatureSet
	logger   zerolog.Logger
}

// NewGate resolves cfg, opens the code store and returns a ready Gate.
// Configuration is fixed for the lifetime of the Gate.
func NewGate(cfg types.GateConfig, logger zerolog.Logger) (*Gate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	checker := validation.NewChecker(validation.Config{
		MemoryPageLimit: cfg.MemoryPageLimit(),
		Profiles:        validation.ResolveProfiles(cfg.Build.Flags()),
	})

	c, err := cache.New(context.Background(), cache.Options{
		BaseDir:            cfg.Cache.BaseDir,
		Backend:            cfg.StorageBackend(),
		MemoryLimitPages:   cfg.MemoryPageLimit(),
		MemoryCacheEntries: cfg.Cache.MemoryCacheEntries,
		Logger:             logger,
	})
	if err != nil {
		return nil, err
	}

	profiles := checker.Profiles()
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
	}
	logger.Info().
		Strs("generations", names).
		Uint32("memory_page_limit", checker.MemoryPageLimit()).
		Uint64("memory_limit_bytes", uint64(checker.MemoryPageLimit())*constants.WasmPageSize).
		Str("backend", cfg.StorageBackend()).
		Strs("capabilities", cfg.EnabledFeatures().Sorted()).
		Msg("wasm gate initialized")

	return &Gate{
		checker:  checker,
		cache:    c,
		features: cfg.EnabledFeatures(),
		logger:   logger,
	}, nil
}

// Cleanup closes the code store and releases the lock on the base directory.
func (g *Gate) Cleanup() {
	if err := g.cache.Close(context.Background()); err != nil {
		g.logger.Error().Err(err).Msg("closing code store")
	}
}

// Check validates code against this Gate's limits, profiles and capabilities.
func (g *Gate) Check(code WasmCode) error {
	err := g.checker.Check(code, g.features)
	if err != nil {
		g.logRejection(code, err)
	}
	return err
}

// StoreCode validates code, compiles it and stores it under its checksum.
// Rejected code is never stored.
func (g *Gate) StoreCode(ctx context.Context, code WasmCode) (Checksum, error) {
	if err := g.Check(code); err != nil {
		return Checksum{}, err
	}
	return g.store(ctx, code)
}

// SimulateStoreCode runs every check StoreCode runs, including compilation,
// without writing anything.
func (g *Gate) SimulateStoreCode(ctx context.Context, code WasmCode) (Checksum, error) {
	if err := g.Check(code); err != nil {
		return Checksum{}, err
	}
	if err := g.cache.Compile(ctx, code); err != nil {
		return Checksum{}, err
	}
	return types.ComputeChecksum(code), nil
}

// StoreCodeUnchecked is the same as StoreCode but skips static validation.
// Use this for adding code that was checked before, particularly in the case of state sync.
func (g *Gate) StoreCodeUnchecked(ctx context.Context, code WasmCode) (Checksum, error) {
	return g.store(ctx, code)
}

func (g *Gate) store(ctx context.Context, code WasmCode) (Checksum, error) {
	checksum, err := g.cache.Save(ctx, code)
	if err != nil {
		return Checksum{}, err
	}
	g.logger.Debug().Str("checksum", checksum.String()).Int("size", len(code)).Msg("stored code")
	return checksum, nil
}

// GetCode loads the original Wasm code for the given checksum.
func (g *Gate) GetCode(checksum Checksum) (WasmCode, error) {
	return g.cache.Load(checksum)
}

// RemoveCode deletes stored code. Pinned code must be unpinned first.
func (g *Gate) RemoveCode(checksum Checksum) error {
	if err := g.cache.Remove(checksum); err != nil {
		return err
	}
	g.logger.Debug().Str("checksum", checksum.String()).Msg("removed code")
	return nil
}

// Pin keeps the compiled module in memory, including across restarts.
// Pin is idempotent.
func (g *Gate) Pin(ctx context.Context, checksum Checksum) error {
	return g.cache.Pin(ctx, checksum)
}

// Unpin lets the compiled module be evicted again. Unpin is idempotent.
func (g *Gate) Unpin(checksum Checksum) error {
	return g.cache.Unpin(checksum)
}

// Instantiate instantiates stored code for the host VM. Imports are resolved
// against host modules registered through NewHostModuleBuilder. The instance
// belongs to the caller, stays usable when the code is evicted or removed,
// and is closed with it or by Cleanup. Loads are counted in GetMetrics.
func (g *Gate) Instantiate(ctx context.Context, checksum Checksum, cfg wazero.ModuleConfig) (api.Module, error) {
	return g.cache.Instantiate(ctx, checksum, cfg)
}

// NewHostModuleBuilder starts a host module, such as "env", in the runtime
// that instantiates stored code.
func (g *Gate) NewHostModuleBuilder(moduleName string) wazero.HostModuleBuilder {
	return g.cache.NewHostModuleBuilder(moduleName)
}

// AnalyzeCode reports entry points, required capabilities and the API
// generations stored code satisfies.
func (g *Gate) AnalyzeCode(checksum Checksum) (*AnalysisReport, error) {
	code, err := g.cache.Load(checksum)
	if err != nil {
		return nil, err
	}
	m, err := g.checker.Decode(code)
	if err != nil {
		return nil, err
	}
	return g.checker.Analyze(m), nil
}

// GetMetrics returns cache hit counters and occupancy for monitoring.
func (g *Gate) GetMetrics() (*Metrics, error) {
	m := g.cache.Metrics()
	return &m, nil
}

// GetPinnedMetrics returns per-module metrics of pinned code, ordered by checksum.
// The values are node-specific. Don't use this in consensus-critical contexts.
func (g *Gate) GetPinnedMetrics() (*PinnedMetrics, error) {
	pm := g.cache.PinnedMetrics()
	return &pm, nil
}

func (g *Gate) logRejection(code WasmCode, err error) {
	ev := g.logger.Info().Str("checksum", types.ComputeChecksum(code).String())
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		ev = ev.Stringer("kind", verr.Kind)
	}
	ev.Msg(err.Error())
}
