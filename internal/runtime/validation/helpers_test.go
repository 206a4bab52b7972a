package validation

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wippyai/wasm-runtime/wat"

	"github.com/scrtlabs/wasmgate/internal/runtime/module"
	"github.com/scrtlabs/wasmgate/types"
)

func compileWat(t *testing.T, source string) []byte {
	t.Helper()
	code, err := wat.Compile(source)
	require.NoError(t, err)
	return code
}

func decodeWat(t *testing.T, source string) *module.Module {
	t.Helper()
	m, err := module.WasmDecoder{}.Decode(compileWat(t, source))
	require.NoError(t, err)
	return m
}

func decodeHex(t *testing.T, s string) *module.Module {
	t.Helper()
	code, err := hex.DecodeString(s)
	require.NoError(t, err)
	m, err := module.WasmDecoder{}.Decode(code)
	require.NoError(t, err)
	return m
}

func requireKind(t *testing.T, err error, kind types.ErrorKind) *types.ValidationError {
	t.Helper()
	require.Error(t, err)
	verr, ok := err.(*types.ValidationError)
	require.True(t, ok, "unexpected error type %T", err)
	require.Equal(t, kind, verr.Kind, verr.Msg)
	return verr
}

const watFeatureExports = `(module
	(type (func))
	(func (type 0) nop)
	(export "requires_water" (func 0))
	(export "requires_" (func 0))
	(export "requires_nutrients" (func 0))
	(export "require_milk" (func 0))
	(export "REQUIRES_air" (func 0))
	(export "requires_sun" (func 0))
)`

const watContractV010 = `(module
	(import "env" "db_read" (func (param i32) (result i32)))
	(import "env" "db_write" (func (param i32 i32)))
	(import "env" "canonicalize_address" (func (param i32 i32) (result i32)))
	(memory 3)
	(export "memory" (memory 0))
	(func (export "cosmwasm_vm_version_3"))
	(func (export "query") (param i32) (result i32) local.get 0)
	(func (export "init") (param i32 i32) (result i32) local.get 0)
	(func (export "handle") (param i32 i32) (result i32) local.get 0)
	(func (export "allocate") (param i32) (result i32) local.get 0)
	(func (export "deallocate") (param i32))
)`

const watContractV1 = `(module
	(import "env" "db_read" (func (param i32) (result i32)))
	(import "env" "addr_validate" (func (param i32) (result i32)))
	(import "env" "gas_evaporate" (func (param i32) (result i32)))
	(memory 17)
	(export "memory" (memory 0))
	(func (export "interface_version_8"))
	(func (export "allocate") (param i32) (result i32) local.get 0)
	(func (export "deallocate") (param i32))
	(func (export "instantiate") (param i32 i32 i32) (result i32) local.get 0)
	(func (export "execute") (param i32 i32 i32) (result i32) local.get 0)
	(func (export "query") (param i32 i32) (result i32) local.get 0)
	(func (export "requires_staking"))
)`
