package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Klingon-tech/mysterybox/pkg/crypto"
	"github.com/Klingon-tech/mysterybox/pkg/types"
)

const keyfileVersion = 1

// ErrKeyfileExists is returned when Save would overwrite a key file.
var ErrKeyfileExists = errors.New("key file already exists")

// Keyfile is the on-disk form of one encrypted signing key.
type Keyfile struct {
	Version   int       `json:"version"`
	Address   string    `json:"address"` // hex, independent of the network prefix
	CreatedAt time.Time `json:"created_at"`
	// Path records where the key was derived from, if it came from a mnemonic.
	Path   string  `json:"path,omitempty"`
	Crypto *Sealed `json:"crypto"`
}

// NewKeyfile encrypts key under password.
func NewKeyfile(key *crypto.PrivateKey, password []byte, params EncryptionParams) (*Keyfile, error) {
	secret := key.Serialize()
	defer clear(secret)
	addr := key.Address().Hex()
	sealed, err := Seal(secret, password, []byte(addr), params)
	if err != nil {
		return nil, fmt.Errorf("encrypt key: %w", err)
	}
	return &Keyfile{
		Version:   keyfileVersion,
		Address:   addr,
		CreatedAt: time.Now().UTC(),
		Crypto:    sealed,
	}, nil
}

// Account returns the address the key file controls.
func (kf *Keyfile) Account() (types.Address, error) {
	return types.HexToAddress(kf.Address)
}

// Unlock decrypts the key and checks it still matches the recorded address.
// The address is bound into the ciphertext, so editing it fails as a wrong
// password would.
func (kf *Keyfile) Unlock(password []byte) (*crypto.PrivateKey, error) {
	if kf.Crypto == nil {
		return nil, errors.New("key file has no encrypted key")
	}
	secret, err := kf.Crypto.Open(password, []byte(kf.Address))
	if err != nil {
		return nil, err
	}
	defer clear(secret)
	key, err := crypto.PrivateKeyFromBytes(secret)
	if err != nil {
		return nil, err
	}
	if key.Address().Hex() != kf.Address {
		key.Zero()
		return nil, fmt.Errorf("key file address mismatch: recorded %s, key %s", kf.Address, key.Address().Hex())
	}
	return key, nil
}

// Save writes the key file with owner-only permissions. It never overwrites.
func (kf *Keyfile) Save(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrKeyfileExists, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal key file: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

// LoadKeyfile reads a key file written by Save.
func LoadKeyfile(path string) (*Keyfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	var kf Keyfile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse key file: %w", err)
	}
	if kf.Version != keyfileVersion {
		return nil, fmt.Errorf("unsupported key file version: %d", kf.Version)
	}
	return &kf, nil
}
