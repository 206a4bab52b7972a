// Package cache stores accepted contract code by checksum and keeps the
// compiled form of recently used and pinned contracts.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	dbm "github.com/cometbft/cometbft-db"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"golang.org/x/sys/unix"

	"github.com/scrtlabs/wasmgate/types"
)

const (
	dbName   = "codes"
	lockName = "exclusive.lock"

	// DefaultMemoryCacheEntries bounds the number of unpinned compiled modules kept in memory.
	DefaultMemoryCacheEntries = 100
)

var (
	codePrefix = []byte("c/")
	pinPrefix  = []byte("p/")
	pinMarker  = []byte{1}
)

// Options configures a Cache.
type Options struct {
	// BaseDir holds the code database and the lock file. Empty keeps everything in memory.
	BaseDir string
	// Backend is types.BackendMemDB or types.BackendGoLevelDB.
	Backend string
	// MemoryLimitPages caps the memory of every compiled module.
	MemoryLimitPages uint32
	// MemoryCacheEntries bounds the unpinned compiled modules; 0 means DefaultMemoryCacheEntries.
	MemoryCacheEntries int
	Logger             zerolog.Logger
}

type entry struct {
	module wazero.CompiledModule
	size   uint64
	hits   uint32
}

// Cache persists code blobs in a cometbft-db database and keeps compiled
// modules either pinned (never evicted) or in a bounded LRU. Compiled
// modules are only used under c.mu, so eviction can close them safely.
type Cache struct {
	mu      sync.Mutex
	ctx     context.Context
	runtime wazero.Runtime
	db      dbm.DB
	codes   dbm.DB
	pins    dbm.DB
	memory  *lru.Cache
	pinned  map[types.Checksum]*entry
	metrics types.Metrics
	logger  zerolog.Logger
	// lockfile holds the exclusive lock on BaseDir
	lockfile *os.File
}

// New opens the code database, takes the directory lock and recompiles every
// module that was pinned when the cache was last closed.
func New(ctx context.Context, opts Options) (*Cache, error) {
	c := &Cache{
		ctx:    ctx,
		pinned: make(map[types.Checksum]*entry),
		logger: opts.Logger,
	}

	switch opts.Backend {
	case "", types.BackendMemDB:
		c.db = dbm.NewMemDB()
	case types.BackendGoLevelDB:
		if opts.BaseDir == "" {
			return nil, fmt.Errorf("backend %s requires a base directory", opts.Backend)
		}
		if err := os.MkdirAll(opts.BaseDir, 0o755); err != nil {
			return nil, fmt.Errorf("could not create base directory: %w", err)
		}
		lf, err := lockDir(opts.BaseDir)
		if err != nil {
			return nil, err
		}
		c.lockfile = lf
		c.db, err = dbm.NewDB(dbName, dbm.GoLevelDBBackend, opts.BaseDir)
		if err != nil {
			c.unlock()
			return nil, fmt.Errorf("could not open code database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown backend %q", opts.Backend)
	}
	c.codes = dbm.NewPrefixDB(c.db, codePrefix)
	c.pins = dbm.NewPrefixDB(c.db, pinPrefix)

	size := opts.MemoryCacheEntries
	if size <= 0 {
		size = DefaultMemoryCacheEntries
	}
	memory, err := lru.NewWithEvict(size, c.onEvict)
	if err != nil {
		c.closeStorage()
		return nil, err
	}
	c.memory = memory

	cfg := wazero.NewRuntimeConfig()
	if opts.MemoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(opts.MemoryLimitPages)
	}
	c.runtime = wazero.NewRuntimeWithConfig(ctx, cfg)

	if err := c.restorePins(ctx); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	return c, nil
}

func lockDir(baseDir string) (*os.File, error) {
	lf, err := os.OpenFile(filepath.Join(baseDir, lockName), os.O_WRONLY|os.O_CREATE, 0o666)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", lockName, err)
	}
	if _, err := lf.WriteString("exclusive lock for wasmgate code store\n"); err != nil {
		lf.Close()
		return nil, fmt.Errorf("error writing to %s: %w", lockName, err)
	}
	if err := unix.Flock(int(lf.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		lf.Close()
		return nil, fmt.Errorf("could not lock %s; is another gate running? %w", lockName, err)
	}
	return lf, nil
}

func (c *Cache) restorePins(ctx context.Context) error {
	it, err := c.pins.Iterator(nil, nil)
	if err != nil {
		return fmt.Errorf("could not list pinned codes: %w", err)
	}
	var checksums []types.Checksum
	for ; it.Valid(); it.Next() {
		cs, err := types.NewChecksum(it.Key())
		if err != nil {
			it.Close()
			return fmt.Errorf("corrupt pin record: %w", err)
		}
		checksums = append(checksums, cs)
	}
	if err := it.Error(); err != nil {
		it.Close()
		return err
	}
	if err := it.Close(); err != nil {
		return err
	}

	for _, cs := range checksums {
		code, err := c.codes.Get(cs.Bytes())
		if err != nil {
			return err
		}
		if code == nil {
			return fmt.Errorf("pinned code %s is missing from the store", cs)
		}
		mod, err := c.runtime.CompileModule(ctx, code)
		if err != nil {
			return fmt.Errorf("could not compile pinned code %s: %w", cs, err)
		}
		c.pinned[cs] = &entry{module: mod, size: uint64(len(code))}
	}
	if len(checksums) > 0 {
		c.logger.Info().Int("count", len(checksums)).Msg("restored pinned codes")
	}
	return nil
}

// Compile compiles code without storing anything.
func (c *Cache) Compile(ctx context.Context, code []byte) error {
	mod, err := c.runtime.CompileModule(ctx, code)
	if err != nil {
		return fmt.Errorf("could not compile code: %w", err)
	}
	return mod.Close(ctx)
}

// Save compiles and persists code and returns its checksum. Saving the
// same code twice is a no-op.
func (c *Cache) Save(ctx context.Context, code []byte) (types.Checksum, error) {
	checksum := types.ComputeChecksum(code)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isCached(checksum) {
		return checksum, nil
	}
	mod, err := c.runtime.CompileModule(ctx, code)
	if err != nil {
		return types.Checksum{}, fmt.Errorf("could not compile code: %w", err)
	}
	if err := c.codes.SetSync(checksum.Bytes(), code); err != nil {
		_ = mod.Close(ctx)
		return types.Checksum{}, fmt.Errorf("could not store code: %w", err)
	}
	c.memory.Add(checksum, &entry{module: mod, size: uint64(len(code))})
	return checksum, nil
}

// Has reports whether code with the given checksum is stored.
func (c *Cache) Has(checksum types.Checksum) (bool, error) {
	return c.codes.Has(checksum.Bytes())
}

// Load returns a copy of the stored code.
func (c *Cache) Load(checksum types.Checksum) ([]byte, error) {
	code, err := c.codes.Get(checksum.Bytes())
	if err != nil {
		return nil, fmt.Errorf("could not read code: %w", err)
	}
	if code == nil {
		return nil, types.NoSuchCode{Checksum: checksum}
	}
	return append([]byte(nil), code...), nil
}

// Instantiate instantiates stored code in the cache's runtime, compiling
// it from the store on a miss. The compiled module never leaves the cache;
// the returned instance stays valid after the compiled module is evicted
// and until the caller closes it or the cache is closed.
func (c *Cache) Instantiate(ctx context.Context, checksum types.Checksum, cfg wazero.ModuleConfig) (api.Module, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mod, err := c.compiled(ctx, checksum)
	if err != nil {
		return nil, err
	}
	inst, err := c.runtime.InstantiateModule(ctx, mod, cfg)
	if err != nil {
		return nil, fmt.Errorf("could not instantiate code %s: %w", checksum, err)
	}
	return inst, nil
}

// NewHostModuleBuilder starts a host module in the cache's runtime. Host
// modules must be instantiated before the contracts importing them.
func (c *Cache) NewHostModuleBuilder(moduleName string) wazero.HostModuleBuilder {
	return c.runtime.NewHostModuleBuilder(moduleName)
}

// compiled looks the module up and counts the hit or miss. It runs with c.mu held.
func (c *Cache) compiled(ctx context.Context, checksum types.Checksum) (wazero.CompiledModule, error) {
	if e, ok := c.pinned[checksum]; ok {
		e.hits++
		c.metrics.HitsPinnedMemoryCache++
		return e.module, nil
	}
	if v, ok := c.memory.Get(checksum); ok {
		e := v.(*entry)
		e.hits++
		c.metrics.HitsMemoryCache++
		return e.module, nil
	}

	e, err := c.compileStored(ctx, checksum)
	if err != nil {
		return nil, err
	}
	c.metrics.Misses++
	c.memory.Add(checksum, e)
	return e.module, nil
}

// Remove deletes the code and its compiled module. Pinned code is refused.
func (c *Cache) Remove(checksum types.Checksum) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pinned[checksum]; ok {
		return types.PinnedCode{Checksum: checksum}
	}
	if err := c.requireStored(checksum); err != nil {
		return err
	}
	if err := c.codes.DeleteSync(checksum.Bytes()); err != nil {
		return fmt.Errorf("could not delete code: %w", err)
	}
	c.memory.Remove(checksum)
	return nil
}

// Pin keeps the compiled module in memory until Unpin and across restarts.
func (c *Cache) Pin(ctx context.Context, checksum types.Checksum) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pinned[checksum]; ok {
		return nil
	}
	if err := c.requireStored(checksum); err != nil {
		return err
	}

	var e *entry
	if v, ok := c.memory.Peek(checksum); ok {
		e = v.(*entry)
	} else {
		var err error
		if e, err = c.compileStored(ctx, checksum); err != nil {
			return err
		}
	}
	if err := c.pins.SetSync(checksum.Bytes(), pinMarker); err != nil {
		if _, cached := c.memory.Peek(checksum); !cached {
			_ = e.module.Close(ctx)
		}
		return fmt.Errorf("could not persist pin: %w", err)
	}
	c.pinned[checksum] = e
	// onEvict sees the pinned entry and leaves the module open
	c.memory.Remove(checksum)
	return nil
}

// Unpin moves the compiled module back into the evictable cache.
func (c *Cache) Unpin(checksum types.Checksum) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireStored(checksum); err != nil {
		return err
	}
	e, ok := c.pinned[checksum]
	if !ok {
		return nil
	}
	if err := c.pins.DeleteSync(checksum.Bytes()); err != nil {
		return fmt.Errorf("could not delete pin: %w", err)
	}
	delete(c.pinned, checksum)
	c.memory.Add(checksum, e)
	return nil
}

// IsPinned reports whether the checksum is pinned.
func (c *Cache) IsPinned(checksum types.Checksum) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pinned[checksum]
	return ok
}

// Checksums lists every stored checksum in ascending byte order.
func (c *Cache) Checksums() ([]types.Checksum, error) {
	it, err := c.codes.Iterator(nil, nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []types.Checksum
	for ; it.Valid(); it.Next() {
		cs, err := types.NewChecksum(it.Key())
		if err != nil {
			return nil, fmt.Errorf("corrupt code record: %w", err)
		}
		out = append(out, cs)
	}
	return out, it.Error()
}

// Metrics returns a snapshot of the hit counters and cache occupancy.
func (c *Cache) Metrics() types.Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.metrics
	m.ElementsPinnedMemoryCache = uint64(len(c.pinned))
	for _, e := range c.pinned {
		m.SizePinnedMemoryCache += e.size
	}
	m.ElementsMemoryCache = uint64(c.memory.Len())
	for _, k := range c.memory.Keys() {
		if v, ok := c.memory.Peek(k); ok {
			m.SizeMemoryCache += v.(*entry).size
		}
	}
	return m
}

// PinnedMetrics returns per-module hits and sizes of pinned code, ordered by checksum.
func (c *Cache) PinnedMetrics() types.PinnedMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := types.PinnedMetrics{PerModule: make([]types.PerModuleEntry, 0, len(c.pinned))}
	for cs, e := range c.pinned {
		out.PerModule = append(out.PerModule, types.PerModuleEntry{
			Checksum: cs,
			Metrics:  types.PerModuleMetrics{Hits: e.hits, Size: e.size},
		})
	}
	sort.Slice(out.PerModule, func(i, j int) bool {
		a, b := out.PerModule[i].Checksum, out.PerModule[j].Checksum
		return string(a[:]) < string(b[:])
	})
	return out
}

// Close releases the compiled modules, the database and the directory lock.
func (c *Cache) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.runtime != nil {
		// closing the runtime closes every compiled module with it
		errs = append(errs, c.runtime.Close(ctx))
		c.runtime = nil
	}
	c.pinned = make(map[types.Checksum]*entry)
	if c.memory != nil {
		c.memory.Purge()
	}
	errs = append(errs, c.closeStorage())
	return errors.Join(errs...)
}

func (c *Cache) closeStorage() error {
	var err error
	if c.db != nil {
		err = c.db.Close()
		c.db = nil
	}
	c.unlock()
	return err
}

func (c *Cache) unlock() {
	if c.lockfile != nil {
		c.lockfile.Close()
		c.lockfile = nil
	}
}

func (c *Cache) isCached(checksum types.Checksum) bool {
	if _, ok := c.pinned[checksum]; ok {
		return true
	}
	return c.memory.Contains(checksum)
}

func (c *Cache) requireStored(checksum types.Checksum) error {
	ok, err := c.codes.Has(checksum.Bytes())
	if err != nil {
		return fmt.Errorf("could not read code: %w", err)
	}
	if !ok {
		return types.NoSuchCode{Checksum: checksum}
	}
	return nil
}

func (c *Cache) compileStored(ctx context.Context, checksum types.Checksum) (*entry, error) {
	code, err := c.codes.Get(checksum.Bytes())
	if err != nil {
		return nil, fmt.Errorf("could not read code: %w", err)
	}
	if code == nil {
		return nil, types.NoSuchCode{Checksum: checksum}
	}
	mod, err := c.runtime.CompileModule(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("could not compile stored code %s: %w", checksum, err)
	}
	return &entry{module: mod, size: uint64(len(code))}, nil
}

// onEvict runs with c.mu held, from inside memory.Add, Remove or Purge.
func (c *Cache) onEvict(key, value interface{}) {
	checksum := key.(types.Checksum)
	if _, ok := c.pinned[checksum]; ok {
		return
	}
	if c.runtime == nil {
		return
	}
	e := value.(*entry)
	if err := e.module.Close(c.ctx); err != nil {
		c.logger.Warn().Err(err).Str("checksum", checksum.String()).Msg("closing evicted module")
	}
	c.logger.Debug().Str("checksum", checksum.String()).Msg("evicted compiled module")
}
