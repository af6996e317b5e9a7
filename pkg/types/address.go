package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// AddressSize is the length of an account address in bytes.
const AddressSize = 20

// Address HRPs for bech32 rendering.
const (
	MainnetHRP = "mbx"
	TestnetHRP = "tmbx"
)

// activeHRP is used by String and the text/JSON encoders.
// Set once at startup via SetAddressHRP.
var activeHRP = MainnetHRP

// SetAddressHRP sets the active address HRP (call once at startup).
func SetAddressHRP(hrp string) {
	activeHRP = hrp
}

// GetAddressHRP returns the currently active address HRP.
func GetAddressHRP() string {
	return activeHRP
}

// Address identifies an account: BLAKE3(compressed secp256k1 pubkey)[:20].
type Address [AddressSize]byte

// IsZero returns true if the address is all zeros.
func (a Address) IsZero() bool {
	return a == Address{}
}

// String returns the bech32 form (e.g. "mbx1...").
func (a Address) String() string {
	s, err := encodeBech32(activeHRP, a[:])
	if err != nil {
		return activeHRP + ":" + hex.EncodeToString(a[:])
	}
	return s
}

// Hex returns the raw hex-encoded address.
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

// Bytes returns a copy of the address as a byte slice.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressSize)
	copy(b, a[:])
	return b
}

// MarshalText lets addresses be used as JSON object keys (payout maps).
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses the bech32 or hex form.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON encodes the address as a bech32 string.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes a bech32 or raw hex string. The empty string yields the zero address.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*a = Address{}
		return nil
	}
	return a.UnmarshalText([]byte(s))
}

// ParseAddress accepts bech32 ("mbx1...", "tmbx1...") or raw 40-char hex.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("empty address")
	}
	if len(s) == AddressSize*2 {
		if b, err := hex.DecodeString(s); err == nil {
			var a Address
			copy(a[:], b)
			return a, nil
		}
	}

	hrp, data, err := decodeBech32(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if hrp != MainnetHRP && hrp != TestnetHRP {
		return Address{}, fmt.Errorf("invalid address %q: unknown prefix %q", s, hrp)
	}
	if len(data) != AddressSize {
		return Address{}, fmt.Errorf("address must be %d bytes, got %d", AddressSize, len(data))
	}
	var a Address
	copy(a[:], data)
	return a, nil
}

// HexToAddress converts a raw 40-char hex string to an Address.
func HexToAddress(s string) (Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != AddressSize {
		return Address{}, fmt.Errorf("address must be %d bytes, got %d", AddressSize, len(b))
	}
	var a Address
	copy(a[:], b)
	return a, nil
}
