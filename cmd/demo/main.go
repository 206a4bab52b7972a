package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/scrtlabs/wasmgate"
	"github.com/scrtlabs/wasmgate/types"
)

const (
	SupportedCapabilities = "staking"
	BaseDir               = "tmp"
)

// This is just a demo to ensure we can compile a static go binary.
// Usage: demo <contract.wasm> [config.json]
func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	if len(os.Args) < 2 {
		logger.Fatal().Msg("usage: demo <contract.wasm> [config.json]")
	}
	file := os.Args[1]
	logger.Info().Str("file", file).Msg("running")
	bz, err := os.ReadFile(file)
	if err != nil {
		logger.Fatal().Err(err).Msg("reading contract")
	}

	cfg := types.DefaultGateConfig()
	cfg.Cache.BaseDir = BaseDir
	cfg.Cache.AvailableCapabilities = types.ParseFeatureSet(SupportedCapabilities).Sorted()
	if len(os.Args) > 2 {
		raw, err := os.ReadFile(os.Args[2])
		if err != nil {
			logger.Fatal().Err(err).Msg("reading config")
		}
		// the file only overrides what it mentions
		if cfg, err = types.ParseGateConfigOnto(cfg, raw); err != nil {
			logger.Fatal().Err(err).Msg("parsing config")
		}
	}

	gate, err := wasmgate.NewGate(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("creating gate")
	}
	defer gate.Cleanup()

	checksum, err := gate.StoreCode(context.Background(), bz)
	if err != nil {
		logger.Error().Err(err).Msg("code rejected")
		return
	}
	fmt.Printf("Stored code with checksum: %s\n", checksum)

	report, err := gate.AnalyzeCode(checksum)
	if err != nil {
		logger.Error().Err(err).Msg("analyzing code")
		return
	}
	fmt.Printf("Generations: %v\nEntry points: %v\nRequired capabilities: %q\n",
		report.Generations, report.Entrypoints, report.RequiredCapabilities)
}
