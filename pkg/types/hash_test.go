package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestHash_IsZero(t *testing.T) {
	var zero Hash
	if !zero.IsZero() {
		t.Error("zero-value Hash should be zero")
	}
	if (Hash{0x01}).IsZero() {
		t.Error("non-zero Hash should not be zero")
	}
}

func TestHexToHash(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"valid", strings.Repeat("ab", HashSize), false},
		{"too short", "abcd", true},
		{"not hex", strings.Repeat("zz", HashSize), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := HexToHash(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("HexToHash() err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && h.String() != tt.in {
				t.Errorf("String() = %s, want %s", h, tt.in)
			}
		})
	}
}

func TestHash_JSON(t *testing.T) {
	h := Hash{0xde, 0xad}
	data, err := json.Marshal(h)
	if err != nil {
		t.Fatal(err)
	}
	var got Hash
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Errorf("round trip = %s, want %s", got, h)
	}
}

func TestHash_Text(t *testing.T) {
	h := Hash{0x01, 0x02}
	var got Hash
	if err := got.UnmarshalText([]byte("0x" + h.String())); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if got != h {
		t.Errorf("0x-prefixed parse = %s, want %s", got, h)
	}
	if err := got.UnmarshalText(nil); err != nil || !got.IsZero() {
		t.Errorf("empty text = %s, %v; want zero hash", got, err)
	}
	if h.Short() != "0102000000000000" {
		t.Errorf("Short() = %s", h.Short())
	}

	// Hash works as a JSON map key.
	data, err := json.Marshal(map[Hash]int{h: 1})
	if err != nil {
		t.Fatal(err)
	}
	var m map[Hash]int
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m[h] != 1 {
		t.Errorf("map round trip = %v", m)
	}
}
