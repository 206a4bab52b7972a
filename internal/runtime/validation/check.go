// Package validation decides whether contract bytecode may be handed to the
// host VM. Every check is a pure function of the decoded module and the
// arguments; nothing is cached between calls, so a Checker is safe for
// concurrent use.
package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scrtlabs/wasmgate/internal/runtime/constants"
	"github.com/scrtlabs/wasmgate/internal/runtime/module"
	"github.com/scrtlabs/wasmgate/types"
)

// Config assembles a Checker. Zero values select the host defaults.
type Config struct {
	Decoder         module.Decoder
	MemoryPageLimit uint32
	// Profiles defaults to ResolveProfiles with only the iterator flag set.
	Profiles []Profile
}

// Checker runs the full static validation pipeline.
type Checker struct {
	decoder   module.Decoder
	pageLimit uint32
	profiles  []Profile
}

// NewChecker resolves cfg into a ready Checker.
func NewChecker(cfg Config) *Checker {
	c := &Checker{
		decoder:   cfg.Decoder,
		pageLimit: cfg.MemoryPageLimit,
		profiles:  cfg.Profiles,
	}
	if c.decoder == nil {
		c.decoder = module.WasmDecoder{}
	}
	if c.pageLimit == 0 {
		c.pageLimit = constants.MemoryPageLimit
	}
	if c.profiles == nil {
		c.profiles = ResolveProfiles(map[string]bool{constants.FlagIterator: true})
	}
	return c
}

// Profiles returns the generation profiles in the order they are tried.
func (c *Checker) Profiles() []Profile {
	return append([]Profile(nil), c.profiles...)
}

// MemoryPageLimit returns the initial memory ceiling in pages.
func (c *Checker) MemoryPageLimit() uint32 {
	return c.pageLimit
}

// Decode deserializes code, mapping any failure to ErrMalformedInput.
func (c *Checker) Decode(code []byte) (*module.Module, error) {
	m, err := c.decoder.Decode(code)
	if err != nil {
		return nil, types.NewValidationError(types.ErrMalformedInput,
			"Wasm bytecode could not be deserialized. Deserialization error: \"%s\"", err)
	}
	return m, nil
}

// Check decodes code and validates it. It returns nil when the contract
// may be instantiated and a *types.ValidationError otherwise.
func (c *Checker) Check(code []byte, enabled types.FeatureSet) error {
	m, err := c.Decode(code)
	if err != nil {
		return err
	}
	return c.CheckModule(m, enabled)
}

// CheckModule validates an already decoded module. Memory and feature
// failures are final; export and import failures only reject the contract
// once no generation accepts it.
func (c *Checker) CheckModule(m *module.Module, enabled types.FeatureSet) error {
	if err := CheckMemories(m, c.pageLimit); err != nil {
		return err
	}
	if err := CheckFeatures(m, enabled); err != nil {
		return err
	}

	for _, p := range c.profiles {
		if passes(m, p) {
			return nil
		}
	}
	return c.aggregate(m)
}

// Trials checks m against every profile and keeps both halves of each result.
func (c *Checker) Trials(m *module.Module) []types.GenerationTrial {
	trials := make([]types.GenerationTrial, len(c.profiles))
	for i, p := range c.profiles {
		trials[i] = types.GenerationTrial{
			Generation: p.Name,
			Exports:    CheckExports(m, p.RequiredExports),
			Imports:    CheckImports(m, p.SupportedImports),
		}
	}
	return trials
}

// Generations returns the names of the profiles m satisfies.
func (c *Checker) Generations(m *module.Module) []string {
	var names []string
	for _, p := range c.profiles {
		if passes(m, p) {
			names = append(names, p.Name)
		}
	}
	return names
}

// Analyze reports entry points, required capabilities and matching generations of m.
func (c *Checker) Analyze(m *module.Module) *types.AnalysisReport {
	var entrypoints []string
	for _, name := range knownEntrypoints {
		if m.HasExport(name) {
			entrypoints = append(entrypoints, name)
		}
	}
	sort.Strings(entrypoints)

	return &types.AnalysisReport{
		HasIBCEntryPoints:    CheckIBCExports(m) == nil,
		RequiredCapabilities: strings.Join(RequiredFeatures(m).Sorted(), ","),
		Entrypoints:          entrypoints,
		Generations:          c.Generations(m),
	}
}

// passes is the cheap path: no messages are formatted.
func passes(m *module.Module, p Profile) bool {
	if _, missing := firstMissingExport(m, p.RequiredExports); missing {
		return false
	}
	_, _, rejected := firstRejectedImport(m, p.SupportedImports)
	return !rejected
}

func (c *Checker) aggregate(m *module.Module) error {
	trials := c.Trials(m)

	names := make([]string, len(trials))
	parts := make([]string, 0, 2*len(trials))
	for i, t := range trials {
		names[i] = t.Generation
		parts = append(parts,
			fmt.Sprintf("%s exports: %s", t.Generation, describe(t.Exports)),
			fmt.Sprintf("%s imports: %s", t.Generation, describe(t.Imports)))
	}

	err := types.NewValidationError(types.ErrNoCompatibleGeneration,
		"Contract is not CosmWasm %s. To support a generation, fix both of its errors: [%s]",
		joinOr(names), strings.Join(parts, "; "))
	err.Trials = trials
	return err
}

func describe(err error) string {
	if err == nil {
		return "ok"
	}
	return err.Error()
}

// joinOr renders ["a", "b", "c"] as "a, b or c".
func joinOr(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " or " + names[len(names)-1]
	}
}
