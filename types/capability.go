package types

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Capability is an optional host feature a contract may require through a
// "requires_<capability>" export.
type Capability string

const (
	CapIterator     Capability = "iterator"
	CapStaking      Capability = "staking"
	CapStargate     Capability = "stargate"
	CapRandom       Capability = "random"
	CapCosmwasmV1_1 Capability = "cosmwasm_1_1"
	CapCosmwasmV1_2 Capability = "cosmwasm_1_2"
)

// Capabilities defines a list of capabilities
type Capabilities []Capability

// Validate ensures the list contains no empty, comma-containing or duplicate entries.
func (c Capabilities) Validate() error {
	idx := make(map[Capability]struct{}, len(c))
	for _, v := range c {
		if v == "" {
			return fmt.Errorf("empty capability")
		}
		if strings.Contains(string(v), ",") {
			return fmt.Errorf("capability must not contain a comma: %q", v)
		}
		if _, exists := idx[v]; exists {
			return fmt.Errorf("duplicate: %q", v)
		}
		idx[v] = struct{}{}
	}
	return nil
}

// Serialize converts the capabilities into a comma separated string representation
func (c Capabilities) Serialize() string {
	s := make([]string, len(c))
	for i, v := range c {
		s[i] = string(v)
	}
	return strings.Join(s, ",")
}

// FeatureSet returns the capabilities as a set.
func (c Capabilities) FeatureSet() FeatureSet {
	fs := make(FeatureSet, len(c))
	for _, v := range c {
		fs[string(v)] = struct{}{}
	}
	return fs
}

// FeatureSet is an unordered set of feature identifiers. Identifiers are
// compared byte for byte; no case folding happens anywhere.
type FeatureSet map[string]struct{}

// NewFeatureSet builds a set from the given identifiers.
func NewFeatureSet(features ...string) FeatureSet {
	fs := make(FeatureSet, len(features))
	for _, f := range features {
		fs[f] = struct{}{}
	}
	return fs
}

// ParseFeatureSet parses a comma separated list such as "staking,stargate".
// Surrounding whitespace is trimmed and empty items are skipped.
func ParseFeatureSet(csv string) FeatureSet {
	fs := FeatureSet{}
	for _, item := range strings.Split(csv, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			fs[item] = struct{}{}
		}
	}
	return fs
}

// Contains reports whether feature is in the set.
func (fs FeatureSet) Contains(feature string) bool {
	_, ok := fs[feature]
	return ok
}

// Add inserts feature into the set.
func (fs FeatureSet) Add(feature string) {
	fs[feature] = struct{}{}
}

// Difference returns the members of fs that are not in other, sorted.
func (fs FeatureSet) Difference(other FeatureSet) []string {
	var out []string
	for f := range fs {
		if !other.Contains(f) {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// IsSubset reports whether every member of fs is in other.
func (fs FeatureSet) IsSubset(other FeatureSet) bool {
	for f := range fs {
		if !other.Contains(f) {
			return false
		}
	}
	return true
}

// Sorted returns the members in lexical order.
func (fs FeatureSet) Sorted() []string {
	out := make([]string, 0, len(fs))
	for f := range fs {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// String renders the set the way rejection messages do: {"a", "b"}.
func (fs FeatureSet) String() string {
	return FormatSet(fs.Sorted())
}

// FormatSet renders items as a brace delimited, quoted, comma separated set.
func FormatSet(items []string) string {
	return "{" + quoteJoin(items) + "}"
}

// FormatList renders items as a bracket delimited, quoted, comma separated list.
func FormatList(items []string) string {
	return "[" + quoteJoin(items) + "]"
}

func quoteJoin(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = Quote(item)
	}
	return strings.Join(quoted, ", ")
}

// Quote renders s in double quotes the way rejection messages have always
// shown names: \0 \t \r \n \" and \\ are escaped, non-printable characters
// and combining marks become \u{hex}, everything else is kept as is.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case 0:
			b.WriteString(`\0`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '\n':
			b.WriteString(`\n`)
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			if unicode.IsPrint(r) && !unicode.In(r, unicode.Mn, unicode.Me) {
				b.WriteRune(r)
			} else {
				fmt.Fprintf(&b, `\u{%x}`, r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
