// derive_key.go prints the public key and both network addresses for a
// hex-encoded private key file, or for a BIP-39 mnemonic read from stdin.
// Usage:
//
//	go run scripts/derive_key.go <keyfile>
//	echo "<mnemonic>" | go run scripts/derive_key.go - [path]
//
// The path defaults to m/44'/8890'/0'/0/0.
package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/mysterybox/internal/wallet"
	"github.com/Klingon-tech/mysterybox/pkg/crypto"
	"github.com/Klingon-tech/mysterybox/pkg/types"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: derive_key <keyfile | -> [path]")
		os.Exit(1)
	}
	key, err := loadKey(os.Args[1], os.Args[2:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer key.Zero()

	fmt.Printf("pubkey=%s\n", hex.EncodeToString(key.PublicKey()))
	fmt.Printf("hex=%s\n", key.Address().Hex())
	for _, hrp := range []string{types.MainnetHRP, types.TestnetHRP} {
		types.SetAddressHRP(hrp)
		fmt.Printf("%s=%s\n", hrp, key.Address())
	}
}

func loadKey(src string, rest []string) (*crypto.PrivateKey, error) {
	if src != "-" {
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, err
		}
		keyBytes, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, err
		}
		return crypto.PrivateKeyFromBytes(keyBytes)
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return nil, fmt.Errorf("read mnemonic: %w", err)
	}
	path := wallet.AccountPath(0, 0)
	if len(rest) > 0 {
		path = rest[0]
	}
	indices, err := wallet.ParsePath(path)
	if err != nil {
		return nil, err
	}
	mnemonic := strings.Join(strings.Fields(line), " ")
	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		return nil, err
	}
	master, err := wallet.NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	child, err := master.DerivePath(indices...)
	if err != nil {
		return nil, err
	}
	fmt.Printf("path=%s\n", path)
	return child.Signer()
}
