package gofuzz

import (
	"testing"

	"github.com/wippyai/wasm-runtime/wat"
)

var testingCapabilities = []string{"staking", "stargate", "iterator"}

var seedSources = []string{
	`(module
		(import "env" "db_read" (func (param i32) (result i32)))
		(memory 17)
		(func (export "interface_version_8"))
		(func (export "requires_staking"))
		(func (export "allocate") (param i32) (result i32) local.get 0)
		(func (export "deallocate") (param i32))
		(func (export "instantiate") (param i32 i32 i32) (result i32) local.get 0))`,
	`(module
		(import "env" "canonicalize_address" (func (param i32 i32) (result i32)))
		(memory 2)
		(func (export "cosmwasm_vm_version_3"))
		(func (export "query") (param i32) (result i32) local.get 0)
		(func (export "init") (param i32 i32) (result i32) local.get 0)
		(func (export "handle") (param i32 i32) (result i32) local.get 0)
		(func (export "allocate") (param i32) (result i32) local.get 0)
		(func (export "deallocate") (param i32)))`,
	`(module (memory 1) (func (export "add_one") (param i32) (result i32) local.get 0))`,
	`(module (import "env" "db_read" (memory 1 1)))`,
	`(module (memory 600 700))`,
}

func seeds(tb testing.TB) [][]byte {
	tb.Helper()
	out := make([][]byte, 0, len(seedSources))
	for _, src := range seedSources {
		code, err := wat.Compile(src)
		if err != nil {
			tb.Fatal(err)
		}
		out = append(out, code)
	}
	return out
}
