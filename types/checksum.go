package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// ChecksumLen is the length of a checksum in bytes.
const ChecksumLen = 32

// Checksum identifies a stored code blob: the SHA-256 hash of its bytecode.
type Checksum [ChecksumLen]byte

// ComputeChecksum hashes the given bytecode.
func ComputeChecksum(code []byte) Checksum {
	return sha256.Sum256(code)
}

// NewChecksum creates a Checksum from a byte slice of length ChecksumLen.
func NewChecksum(b []byte) (Checksum, error) {
	if len(b) != ChecksumLen {
		return Checksum{}, errors.New("got wrong number of bytes for checksum")
	}
	var cs Checksum
	copy(cs[:], b)
	return cs, nil
}

// ParseChecksum decodes a hex encoded checksum.
func ParseChecksum(s string) (Checksum, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return Checksum{}, fmt.Errorf("invalid checksum hex: %w", err)
	}
	return NewChecksum(data)
}

func (cs Checksum) String() string {
	return hex.EncodeToString(cs[:])
}

// Bytes returns the checksum as a byte slice.
func (cs Checksum) Bytes() []byte {
	return cs[:]
}

// MarshalJSON encodes the checksum as a hex string.
func (cs Checksum) MarshalJSON() ([]byte, error) {
	return json.Marshal(cs.String())
}

// UnmarshalJSON decodes a hex string into the checksum.
func (cs *Checksum) UnmarshalJSON(input []byte) error {
	var s string
	if err := json.Unmarshal(input, &s); err != nil {
		return err
	}
	parsed, err := ParseChecksum(s)
	if err != nil {
		return err
	}
	*cs = parsed
	return nil
}
