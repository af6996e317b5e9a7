package wallet

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrWrongPassword is returned when authentication of a key file fails.
var ErrWrongPassword = errors.New("wrong password or corrupted key file")

const (
	kdfArgon2id = "argon2id"
	saltSize    = 32

	// Ceilings applied when opening a file from disk.
	maxMemoryKiB  = 1 << 21 // 2 GiB
	maxIterations = 64
)

// EncryptionParams holds Argon2id parameters.
type EncryptionParams struct {
	Memory      uint32 `json:"memory"` // KiB
	Iterations  uint32 `json:"iterations"`
	Parallelism uint8  `json:"parallelism"`
}

// DefaultParams returns the Argon2id parameters used for new key files.
func DefaultParams() EncryptionParams {
	return EncryptionParams{Memory: 64 * 1024, Iterations: 3, Parallelism: 4}
}

func (p EncryptionParams) check() error {
	switch {
	case p.Memory == 0 || p.Memory > maxMemoryKiB:
		return fmt.Errorf("argon2 memory %d KiB out of range", p.Memory)
	case p.Iterations == 0 || p.Iterations > maxIterations:
		return fmt.Errorf("argon2 iterations %d out of range", p.Iterations)
	case p.Parallelism == 0:
		return errors.New("argon2 parallelism must be positive")
	}
	return nil
}

// Sealed is a secret encrypted with XChaCha20-Poly1305 under an Argon2id
// key. Byte fields are base64 in JSON.
type Sealed struct {
	KDF        string           `json:"kdf"`
	Params     EncryptionParams `json:"params"`
	Salt       []byte           `json:"salt"`
	Nonce      []byte           `json:"nonce"`
	Ciphertext []byte           `json:"ciphertext"`
}

func (p EncryptionParams) key(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, p.Iterations, p.Memory, p.Parallelism, chacha20poly1305.KeySize)
}

// Seal encrypts secret under password. ad is authenticated but not stored;
// the same ad must be given to Open.
func Seal(secret, password, ad []byte, params EncryptionParams) (*Sealed, error) {
	if err := params.check(); err != nil {
		return nil, err
	}
	s := &Sealed{
		KDF:    kdfArgon2id,
		Params: params,
		Salt:   make([]byte, saltSize),
		Nonce:  make([]byte, chacha20poly1305.NonceSizeX),
	}
	if _, err := rand.Read(s.Salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if _, err := rand.Read(s.Nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	key := params.key(password, s.Salt)
	defer clear(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	s.Ciphertext = aead.Seal(nil, s.Nonce, secret, ad)
	return s, nil
}

// Open decrypts the secret. Any authentication failure, including a wrong
// ad, is reported as ErrWrongPassword.
func (s *Sealed) Open(password, ad []byte) ([]byte, error) {
	if s.KDF != kdfArgon2id {
		return nil, fmt.Errorf("unsupported kdf %q", s.KDF)
	}
	if err := s.Params.check(); err != nil {
		return nil, err
	}
	if len(s.Salt) != saltSize {
		return nil, fmt.Errorf("salt is %d bytes, want %d", len(s.Salt), saltSize)
	}
	if len(s.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("nonce is %d bytes, want %d", len(s.Nonce), chacha20poly1305.NonceSizeX)
	}
	if len(s.Ciphertext) < chacha20poly1305.Overhead {
		return nil, errors.New("ciphertext too short")
	}

	key := s.Params.key(password, s.Salt)
	defer clear(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	plain, err := aead.Open(nil, s.Nonce, s.Ciphertext, ad)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plain, nil
}
