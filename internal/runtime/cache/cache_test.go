package cache

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/wippyai/wasm-runtime/wat"

	"github.com/scrtlabs/wasmgate/types"
)

func contract(t *testing.T, name string) []byte {
	t.Helper()
	code, err := wat.Compile(`(module
		(memory 1)
		(func (export "` + name + `"))
		(func (export "echo") (param i32) (result i32) local.get 0))`)
	require.NoError(t, err)
	return code
}

func instantiate(t *testing.T, c *Cache, checksum types.Checksum) api.Module {
	t.Helper()
	inst, err := c.Instantiate(context.Background(), checksum, wazero.NewModuleConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Close(context.Background()) })
	return inst
}

func callEcho(t *testing.T, inst api.Module, v uint64) {
	t.Helper()
	out, err := inst.ExportedFunction("echo").Call(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, []uint64{v}, out)
}

func newMemCache(t *testing.T, entries int) *Cache {
	t.Helper()
	c, err := New(context.Background(), Options{
		Backend:            types.BackendMemDB,
		MemoryLimitPages:   512,
		MemoryCacheEntries: entries,
		Logger:             zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	c := newMemCache(t, 0)
	code := contract(t, "a")

	checksum, err := c.Save(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, types.ComputeChecksum(code), checksum)

	loaded, err := c.Load(checksum)
	require.NoError(t, err)
	assert.Equal(t, code, loaded)

	// stored bytes are not shared with the caller
	loaded[0] = 0xff
	again, err := c.Load(checksum)
	require.NoError(t, err)
	assert.Equal(t, code, again)

	ok, err := c.Has(checksum)
	require.NoError(t, err)
	assert.True(t, ok)

	// idempotent
	second, err := c.Save(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, checksum, second)
	assert.Equal(t, uint64(1), c.Metrics().ElementsMemoryCache)
}

func TestSaveRejectsUncompilable(t *testing.T) {
	c := newMemCache(t, 0)
	_, err := c.Save(context.Background(), []byte("not wasm"))
	require.Error(t, err)

	checksums, err := c.Checksums()
	require.NoError(t, err)
	assert.Empty(t, checksums)
}

func TestLoadUnknown(t *testing.T) {
	c := newMemCache(t, 0)
	var missing types.Checksum
	_, err := c.Load(missing)
	assert.ErrorIs(t, err, types.NoSuchCode{Checksum: missing})

	_, err = c.Instantiate(context.Background(), missing, wazero.NewModuleConfig())
	assert.ErrorIs(t, err, types.NoSuchCode{Checksum: missing})
}

func TestModuleMetrics(t *testing.T) {
	ctx := context.Background()
	c := newMemCache(t, 1)

	a, err := c.Save(ctx, contract(t, "a"))
	require.NoError(t, err)
	instantiate(t, c, a)
	assert.Equal(t, uint32(1), c.Metrics().HitsMemoryCache)

	// saving b evicts a from the single slot
	b, err := c.Save(ctx, contract(t, "b"))
	require.NoError(t, err)
	instantiate(t, c, a)

	m := c.Metrics()
	assert.Equal(t, uint32(1), m.Misses)
	assert.Equal(t, uint64(1), m.ElementsMemoryCache)

	require.NoError(t, c.Pin(ctx, b))
	callEcho(t, instantiate(t, c, b), 3)

	m = c.Metrics()
	assert.Equal(t, uint32(1), m.HitsPinnedMemoryCache)
	assert.Equal(t, uint64(1), m.ElementsPinnedMemoryCache)
	assert.Equal(t, uint64(len(contract(t, "b"))), m.SizePinnedMemoryCache)
}

func TestPinUnpinRemove(t *testing.T) {
	ctx := context.Background()
	c := newMemCache(t, 0)

	checksum, err := c.Save(ctx, contract(t, "a"))
	require.NoError(t, err)

	require.NoError(t, c.Pin(ctx, checksum))
	require.NoError(t, c.Pin(ctx, checksum))
	assert.True(t, c.IsPinned(checksum))
	assert.Equal(t, uint64(0), c.Metrics().ElementsMemoryCache)

	err = c.Remove(checksum)
	assert.ErrorIs(t, err, types.PinnedCode{Checksum: checksum})

	require.NoError(t, c.Unpin(checksum))
	require.NoError(t, c.Unpin(checksum))
	assert.False(t, c.IsPinned(checksum))
	assert.Equal(t, uint64(1), c.Metrics().ElementsMemoryCache)

	require.NoError(t, c.Remove(checksum))
	_, err = c.Load(checksum)
	assert.ErrorIs(t, err, types.NoSuchCode{Checksum: checksum})
	assert.Equal(t, uint64(0), c.Metrics().ElementsMemoryCache)

	err = c.Remove(checksum)
	assert.ErrorIs(t, err, types.NoSuchCode{Checksum: checksum})
	assert.ErrorIs(t, c.Pin(ctx, checksum), types.NoSuchCode{Checksum: checksum})
	assert.ErrorIs(t, c.Unpin(checksum), types.NoSuchCode{Checksum: checksum})
}

func TestPinnedMetricsOrdered(t *testing.T) {
	ctx := context.Background()
	c := newMemCache(t, 0)

	var pinned []types.Checksum
	for _, name := range []string{"a", "b", "c"} {
		cs, err := c.Save(ctx, contract(t, name))
		require.NoError(t, err)
		require.NoError(t, c.Pin(ctx, cs))
		pinned = append(pinned, cs)
	}
	instantiate(t, c, pinned[1])

	pm := c.PinnedMetrics()
	require.Len(t, pm.PerModule, 3)
	for i := 1; i < len(pm.PerModule); i++ {
		prev, cur := pm.PerModule[i-1].Checksum, pm.PerModule[i].Checksum
		assert.Less(t, prev.String(), cur.String())
	}
	var hits uint32
	for _, e := range pm.PerModule {
		hits += e.Metrics.Hits
		if e.Checksum == pinned[1] {
			assert.Equal(t, uint32(1), e.Metrics.Hits)
		}
	}
	assert.Equal(t, uint32(1), hits)
}

func TestChecksums(t *testing.T) {
	ctx := context.Background()
	c := newMemCache(t, 0)

	a, err := c.Save(ctx, contract(t, "a"))
	require.NoError(t, err)
	b, err := c.Save(ctx, contract(t, "b"))
	require.NoError(t, err)
	require.NoError(t, c.Pin(ctx, b))

	checksums, err := c.Checksums()
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.Checksum{a, b}, checksums)
}

func TestGoLevelDBPersistsCodeAndPins(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	opts := Options{BaseDir: dir, Backend: types.BackendGoLevelDB, Logger: zerolog.Nop()}

	c, err := New(ctx, opts)
	require.NoError(t, err)

	// the directory is locked while the cache is open
	_, err = New(ctx, opts)
	require.Error(t, err)

	a, err := c.Save(ctx, contract(t, "a"))
	require.NoError(t, err)
	b, err := c.Save(ctx, contract(t, "b"))
	require.NoError(t, err)
	require.NoError(t, c.Pin(ctx, b))
	require.NoError(t, c.Close(ctx))

	c, err = New(ctx, opts)
	require.NoError(t, err)
	defer c.Close(ctx)

	code, err := c.Load(a)
	require.NoError(t, err)
	assert.Equal(t, contract(t, "a"), code)
	assert.True(t, c.IsPinned(b))
	assert.False(t, c.IsPinned(a))
	assert.Equal(t, uint64(1), c.Metrics().ElementsPinnedMemoryCache)
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(context.Background(), Options{Backend: types.BackendGoLevelDB})
	require.Error(t, err)

	_, err = New(context.Background(), Options{Backend: "rocksdb"})
	require.Error(t, err)
}

func TestInstancesOutliveEviction(t *testing.T) {
	ctx := context.Background()
	c := newMemCache(t, 1)

	a, err := c.Save(ctx, contract(t, "a"))
	require.NoError(t, err)
	before := instantiate(t, c, a)
	callEcho(t, before, 1)

	// b takes the only slot and a's compiled module is closed
	b, err := c.Save(ctx, contract(t, "b"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), c.Metrics().ElementsMemoryCache)
	callEcho(t, before, 2)

	// a is recompiled from the store on the next instantiation
	after := instantiate(t, c, a)
	callEcho(t, after, 3)
	assert.Equal(t, uint32(1), c.Metrics().Misses)

	callEcho(t, instantiate(t, c, b), 4)
	callEcho(t, before, 5)

	require.NoError(t, c.Remove(a))
	callEcho(t, after, 6)
}

func TestInstantiateWithHostModule(t *testing.T) {
	ctx := context.Background()
	c := newMemCache(t, 0)

	code, err := wat.Compile(`(module
		(import "env" "db_read" (func (param i32) (result i32)))
		(memory 1)
		(func (export "read") (param i32) (result i32) local.get 0 call 0))`)
	require.NoError(t, err)
	checksum, err := c.Save(ctx, code)
	require.NoError(t, err)

	// env is not there yet
	_, err = c.Instantiate(ctx, checksum, wazero.NewModuleConfig())
	require.Error(t, err)

	_, err = c.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, key uint32) uint32 { return key * 2 }).
		Export("db_read").
		Instantiate(ctx)
	require.NoError(t, err)

	inst := instantiate(t, c, checksum)
	out, err := inst.ExportedFunction("read").Call(ctx, 21)
	require.NoError(t, err)
	assert.Equal(t, []uint64{42}, out)
}
