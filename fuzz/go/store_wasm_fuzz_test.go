package gofuzz

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/scrtlabs/wasmgate"
	"github.com/scrtlabs/wasmgate/types"
)

func newGate(t *testing.T) *wasmgate.Gate {
	t.Helper()
	cfg := types.DefaultGateConfig()
	cfg.Cache.AvailableCapabilities = testingCapabilities
	gate, err := wasmgate.NewGate(cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(gate.Cleanup)
	return gate
}

func FuzzStoreCode(f *testing.F) {
	for _, code := range seeds(f) {
		f.Add(code)
	}
	f.Add([]byte{})
	f.Add([]byte("foobar"))

	f.Fuzz(func(t *testing.T, wasm []byte) {
		gate := newGate(t)
		ctx := context.Background()

		simulated, simErr := gate.SimulateStoreCode(ctx, wasm)
		stored, storeErr := gate.StoreCode(ctx, wasm)
		if (simErr == nil) != (storeErr == nil) {
			t.Fatalf("simulate and store disagree: %v vs %v", simErr, storeErr)
		}
		if storeErr != nil {
			if _, err := gate.GetCode(types.ComputeChecksum(wasm)); err == nil {
				t.Fatal("rejected code was stored")
			}
			return
		}
		if simulated != stored {
			t.Fatalf("checksum mismatch: %s vs %s", simulated, stored)
		}
		if _, err := gate.GetCode(stored); err != nil {
			t.Fatal(err)
		}
	})
}
