// Package crypto provides the hashing and signature primitives that give
// callers a cryptographic account identity.
package crypto

import (
	"github.com/Klingon-tech/mysterybox/pkg/types"
	"github.com/zeebo/blake3"
)

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// TaggedHash hashes the concatenation of parts under a domain tag, so digests
// computed for different purposes never collide.
func TaggedHash(tag string, parts ...[]byte) types.Hash {
	h := blake3.NewDeriveKey(tag)
	for _, p := range parts {
		h.Write(p)
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// AddressFromPubKey derives an account address from a compressed public key.
// Address = BLAKE3(compressed_pubkey)[:20].
func AddressFromPubKey(pubKey []byte) types.Address {
	h := Hash(pubKey)
	var addr types.Address
	copy(addr[:], h[:types.AddressSize])
	return addr
}
