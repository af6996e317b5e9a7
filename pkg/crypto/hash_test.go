package crypto

import (
	"testing"

	"github.com/Klingon-tech/mysterybox/pkg/types"
)

func TestHash_KnownVectors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"empty input", []byte{}, "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"},
		{"hello", []byte("hello"), "ea8f163db38682925e4491c5e58d4bb3506ef8c14eb78a86e908c5624a67200f"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Hash(tt.input).String(); got != tt.want {
				t.Errorf("Hash(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestTaggedHash_DomainSeparation(t *testing.T) {
	a := TaggedHash("mysterybox call", []byte("buy"), []byte{1})
	b := TaggedHash("mysterybox other", []byte("buy"), []byte{1})
	if a == b {
		t.Error("different tags produced the same digest")
	}
	if a != TaggedHash("mysterybox call", []byte("buy"), []byte{1}) {
		t.Error("TaggedHash is not deterministic")
	}
	if a == Hash(append([]byte("buy"), 1)) {
		t.Error("tagged hash equals plain hash")
	}
}

func TestAddressFromPubKey(t *testing.T) {
	pub := make([]byte, PublicKeySize)
	pub[0] = 0x02
	addr := AddressFromPubKey(pub)
	h := Hash(pub)
	if types.Address(h[:types.AddressSize]) != addr {
		t.Errorf("address = %x, want prefix of %s", addr, h)
	}
}
