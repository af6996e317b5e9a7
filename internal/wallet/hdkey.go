package wallet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Klingon-tech/mysterybox/pkg/crypto"
	"github.com/Klingon-tech/mysterybox/pkg/types"
	"github.com/tyler-smith/go-bip32"
)

// BIP-44 path m/44'/CoinType'/account'/0/index.
const (
	PurposeBIP44       = bip32.FirstHardenedChild + 44
	CoinTypeMysteryBox = bip32.FirstHardenedChild + 8890
)

// AccountPath renders the derivation path DeriveAccount uses.
func AccountPath(account, index uint32) string {
	return fmt.Sprintf("m/44'/%d'/%d'/0/%d", CoinTypeMysteryBox-bip32.FirstHardenedChild, account, index)
}

// ParsePath parses a path such as "m/44'/8890'/0'/0/3" into child indices.
// A trailing ' or h marks a hardened index.
func ParsePath(path string) ([]uint32, error) {
	parts := strings.Split(strings.TrimSpace(path), "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, fmt.Errorf("path %q must start with m/", path)
	}
	out := make([]uint32, 0, len(parts)-1)
	for _, p := range parts[1:] {
		hardened := strings.HasSuffix(p, "'") || strings.HasSuffix(p, "h")
		p = strings.TrimRight(p, "'h")
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil || v >= uint64(bip32.FirstHardenedChild) {
			return nil, fmt.Errorf("path %q: bad element %q", path, p)
		}
		idx := uint32(v)
		if hardened {
			idx += bip32.FirstHardenedChild
		}
		out = append(out, idx)
	}
	return out, nil
}

// HDKey is a BIP-32 extended key.
type HDKey struct {
	key *bip32.Key
}

// NewMasterKey creates the master key for a 64-byte seed.
func NewMasterKey(seed []byte) (*HDKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	return &HDKey{key: master}, nil
}

// DerivePath walks the given child indices from k.
func (k *HDKey) DerivePath(indices ...uint32) (*HDKey, error) {
	cur := k.key
	for _, idx := range indices {
		child, err := cur.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", idx, err)
		}
		cur = child
	}
	return &HDKey{key: cur}, nil
}

// DeriveAccount returns the external key at index of the given account.
func (k *HDKey) DeriveAccount(account, index uint32) (*HDKey, error) {
	return k.DerivePath(PurposeBIP44, CoinTypeMysteryBox, bip32.FirstHardenedChild+account, 0, index)
}

// Signer returns the secp256k1 private key.
func (k *HDKey) Signer() (*crypto.PrivateKey, error) {
	if !k.key.IsPrivate {
		return nil, fmt.Errorf("cannot create signer from public key")
	}
	// bip32 stores private keys as 33 bytes with a leading zero.
	raw := k.key.Key
	if len(raw) == 33 && raw[0] == 0 {
		raw = raw[1:]
	}
	return crypto.PrivateKeyFromBytes(raw)
}

// PublicKeyBytes returns the compressed public key.
func (k *HDKey) PublicKeyBytes() []byte {
	return k.key.PublicKey().Key
}

// Address returns the account address of k.
func (k *HDKey) Address() types.Address {
	return crypto.AddressFromPubKey(k.PublicKeyBytes())
}

// SignerFromMnemonic derives the signing key of account/index in one step.
func SignerFromMnemonic(mnemonic, passphrase string, account, index uint32) (*crypto.PrivateKey, error) {
	seed, err := SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	child, err := master.DeriveAccount(account, index)
	if err != nil {
		return nil, err
	}
	return child.Signer()
}
