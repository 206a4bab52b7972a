package validation

import (
	"github.com/scrtlabs/wasmgate/internal/runtime/constants"
)

// hostImport is an import the host provides. A non-empty flag means the
// import only exists when that build flag is enabled.
type hostImport struct {
	name string
	flag string
}

type generation struct {
	name            string
	requiredExports []string
	imports         []hostImport
}

// generations lists the contract API generations in the order they are tried.
// The required exports are frozen: changing them breaks deployed contracts.
var generations = []generation{
	{
		name: constants.GenerationV010,
		requiredExports: []string{
			"cosmwasm_vm_version_3",
			"query",
			"init",
			"handle",
			"allocate",
			"deallocate",
		},
		imports: []hostImport{
			{name: "env.db_read"},
			{name: "env.db_write"},
			{name: "env.db_remove"},
			{name: "env.canonicalize_address"},
			{name: "env.humanize_address"},
			{name: "env.query_chain"},
			{name: "env.secp256k1_verify"},
			{name: "env.secp256k1_recover_pubkey"},
			{name: "env.secp256k1_sign"},
			{name: "env.ed25519_verify"},
			{name: "env.ed25519_batch_verify"},
			{name: "env.ed25519_sign"},
			{name: "env.db_scan", flag: constants.FlagIterator},
			{name: "env.db_next", flag: constants.FlagIterator},
			{name: "env.debug_print", flag: constants.FlagDebugPrint},
		},
	},
	{
		name: constants.GenerationV1,
		requiredExports: []string{
			"interface_version_8",
			"allocate",
			"deallocate",
			"instantiate",
		},
		imports: []hostImport{
			{name: "env.db_read"},
			{name: "env.db_write"},
			{name: "env.db_remove"},
			{name: "env.addr_validate"},
			{name: "env.addr_canonicalize"},
			{name: "env.addr_humanize"},
			{name: "env.secp256k1_verify"},
			{name: "env.secp256k1_recover_pubkey"},
			{name: "env.secp256k1_sign"},
			{name: "env.ed25519_verify"},
			{name: "env.ed25519_batch_verify"},
			{name: "env.ed25519_sign"},
			{name: "env.dcap_quote_verify"},
			{name: "env.debug"},
			{name: "env.query_chain"},
			{name: "env.db_scan", flag: constants.FlagIterator},
			{name: "env.db_next", flag: constants.FlagIterator},
			{name: "env.gas_evaporate"},
			{name: "env.check_gas"},
		},
	},
}

// RequiredIBCExports are the entry points of a contract that speaks IBC.
// They are not part of any generation and are checked separately.
var RequiredIBCExports = []string{
	"ibc_channel_open",
	"ibc_channel_connect",
	"ibc_channel_close",
	"ibc_packet_receive",
	"ibc_packet_ack",
	"ibc_packet_timeout",
}

// knownEntrypoints are exports reported by analysis when present.
var knownEntrypoints = []string{
	"init",
	"handle",
	"instantiate",
	"execute",
	"migrate",
	"sudo",
	"reply",
	"query",
	"ibc_channel_open",
	"ibc_channel_connect",
	"ibc_channel_close",
	"ibc_packet_receive",
	"ibc_packet_ack",
	"ibc_packet_timeout",
}

// Profile is a fully resolved generation: what a contract must export and
// what it may import.
type Profile struct {
	Name             string
	RequiredExports  []string
	SupportedImports ImportSet
}

// ResolveProfiles resolves every generation against the enabled build flags.
// The result is independent of any contract and can be shared freely.
func ResolveProfiles(flags map[string]bool) []Profile {
	profiles := make([]Profile, 0, len(generations))
	for _, g := range generations {
		names := make([]string, 0, len(g.imports))
		for _, imp := range g.imports {
			if imp.flag != "" && !flags[imp.flag] {
				continue
			}
			names = append(names, imp.name)
		}
		profiles = append(profiles, Profile{
			Name:             g.name,
			RequiredExports:  append([]string(nil), g.requiredExports...),
			SupportedImports: NewImportSet(names...),
		})
	}
	return profiles
}
