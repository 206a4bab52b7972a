package wasmgate

import (
	"github.com/scrtlabs/wasmgate/types"
)

// WasmCode is an alias for raw bytes of the wasm compiled code
type WasmCode []byte

// Checksum is the SHA-256 of a WasmCode and identifies it in the code store
type Checksum = types.Checksum

// FeatureSet is a set of capabilities, enabled by the host or required by a contract
type FeatureSet = types.FeatureSet

// ValidationError is the error returned for rejected code
type ValidationError = types.ValidationError

// ErrorKind classifies a ValidationError
type ErrorKind = types.ErrorKind

type (
	AnalysisReport = types.AnalysisReport
	Metrics        = types.Metrics
	PinnedMetrics  = types.PinnedMetrics
	GateConfig     = types.GateConfig
)
