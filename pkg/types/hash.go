// Package types defines the primitive value types shared by the ledger,
// the host and the RPC surface.
package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HashSize is the length of a hash in bytes.
const HashSize = 32

// Hash is a 256-bit BLAKE3 digest (call digests, deployment hashes).
type Hash [HashSize]byte

// IsZero reports whether every byte is zero.
func (h Hash) IsZero() bool { return h == Hash{} }

// String returns the hex-encoded hash.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// Short returns the first 8 bytes in hex, for log lines.
func (h Hash) Short() string { return hex.EncodeToString(h[:8]) }

// MarshalText encodes the hash as hex. JSON uses it too.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes hex, with or without a 0x prefix. Empty input is
// the zero hash.
func (h *Hash) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*h = Hash{}
		return nil
	}
	parsed, err := HexToHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// HexToHash parses a 64-char hex string, optionally 0x-prefixed.
func HexToHash(s string) (Hash, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 2*HashSize {
		return Hash{}, fmt.Errorf("hash must be %d hex chars, got %d", 2*HashSize, len(s))
	}
	var h Hash
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return Hash{}, fmt.Errorf("invalid hex: %w", err)
	}
	return h, nil
}
