package config

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"os"

	"github.com/Klingon-tech/mysterybox/internal/contract"
	"github.com/Klingon-tech/mysterybox/internal/wallet"
	"github.com/Klingon-tech/mysterybox/pkg/crypto"
	"github.com/Klingon-tech/mysterybox/pkg/types"
)

// Denomination constants.
// 1 coin = 10^12 base units. All amounts are in base units.
const (
	Decimals  = 12
	Coin      = 1_000_000_000_000
	MilliCoin = 1_000_000_000
	MicroCoin = 1_000_000
)

// contractAccountTag separates contract account derivation from every
// other use of the deployment hash.
const contractAccountTag = "mysterybox contract account v1"

// TestnetMnemonic is the well-known BIP-39 phrase funding the testnet
// deployment. Never use it on mainnet.
const TestnetMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"

// Deployment holds the contract constants and initial balances.
// It is immutable once the contract has state.
type Deployment struct {
	ContractID string `json:"contract_id"`

	Metadata           contract.Metadata `json:"metadata"`
	Capacity           uint64            `json:"capacity"`
	UnitPrice          uint64            `json:"unit_price"`
	StorageFeePerToken uint64            `json:"storage_fee_per_token"`

	// Royalty is omitted to disable payouts and income retention.
	Royalty *RoyaltyConfig `json:"royalty,omitempty"`

	// Alloc seeds account balances (address -> base units).
	Alloc map[string]uint64 `json:"alloc"`
}

// RoyaltyConfig is the deployment form of the royalty table.
type RoyaltyConfig struct {
	RateBP  uint16         `json:"rate_bp"`
	Entries []RoyaltyShare `json:"entries"`
}

// RoyaltyShare is one beneficiary entry.
type RoyaltyShare struct {
	Account string `json:"account"`
	ShareBP uint16 `json:"share_bp"`
}

// TestnetAccount returns the account derived from TestnetMnemonic at
// m/44'/8890'/0'/0/0.
func TestnetAccount() (types.Address, error) {
	key, err := wallet.SignerFromMnemonic(TestnetMnemonic, "", 0, 0)
	if err != nil {
		return types.Address{}, err
	}
	defer key.Zero()
	return key.Address(), nil
}

// MainnetDeployment returns the built-in mainnet deployment.
func MainnetDeployment() *Deployment {
	return &Deployment{
		ContractID: "mysterybox-mainnet-1",
		Metadata: contract.Metadata{
			Spec:   contract.MetadataSpec,
			Name:   "Mystery Box",
			Symbol: "MBOX",
		},
		Capacity:  10_000,
		UnitPrice: Coin,
		Alloc:     map[string]uint64{},
	}
}

// TestnetDeployment returns the testnet deployment: a small cheap drop whose
// royalty goes to the well-known testnet account, which is also funded.
func TestnetDeployment() (*Deployment, error) {
	acct, err := TestnetAccount()
	if err != nil {
		return nil, fmt.Errorf("derive testnet account: %w", err)
	}
	d := MainnetDeployment()
	d.ContractID = "mysterybox-testnet-1"
	d.Metadata.Name = "Mystery Box Testnet"
	d.Capacity = 1_000
	d.UnitPrice = 10 * MilliCoin
	d.StorageFeePerToken = 10 * MicroCoin
	d.Royalty = &RoyaltyConfig{
		RateBP:  1000,
		Entries: []RoyaltyShare{{Account: acct.Hex(), ShareBP: 10_000}},
	}
	d.Alloc = map[string]uint64{acct.Hex(): 1_000_000 * Coin}
	return d, nil
}

// DeploymentFor returns the built-in deployment for the given network.
func DeploymentFor(network NetworkType) (*Deployment, error) {
	if network == Testnet {
		return TestnetDeployment()
	}
	return MainnetDeployment(), nil
}

// LoadDeployment loads and validates a deployment file.
func LoadDeployment(path string) (*Deployment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading deployment file: %w", err)
	}
	var d Deployment
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing deployment file: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid deployment: %w", err)
	}
	return &d, nil
}

// Save writes the deployment to a file.
func (d *Deployment) Save(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding deployment: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing deployment file: %w", err)
	}
	return nil
}

// ContractConfig converts the deployment into validated contract constants.
func (d *Deployment) ContractConfig() (contract.Config, error) {
	cfg := contract.Config{
		Metadata: d.Metadata,
		Capacity: d.Capacity,
		Pricing: contract.Pricing{
			UnitPrice:          d.UnitPrice,
			StorageFeePerToken: d.StorageFeePerToken,
		},
	}
	if d.Royalty != nil {
		entries := make([]contract.RoyaltyEntry, len(d.Royalty.Entries))
		for i, e := range d.Royalty.Entries {
			addr, err := types.ParseAddress(e.Account)
			if err != nil {
				return contract.Config{}, fmt.Errorf("royalty entry %d: %w", i, err)
			}
			entries[i] = contract.RoyaltyEntry{Beneficiary: addr, ShareBP: e.ShareBP}
		}
		r, err := contract.NewRoyalty(entries, d.Royalty.RateBP)
		if err != nil {
			return contract.Config{}, err
		}
		cfg.Royalty = r
	}
	return cfg, nil
}

// Balances returns the parsed initial allocations.
func (d *Deployment) Balances() (map[types.Address]uint64, error) {
	out := make(map[types.Address]uint64, len(d.Alloc))
	var total uint64
	for s, v := range d.Alloc {
		addr, err := types.ParseAddress(s)
		if err != nil {
			return nil, fmt.Errorf("invalid alloc address %q: %w", s, err)
		}
		if _, dup := out[addr]; dup {
			return nil, fmt.Errorf("alloc lists %s twice", addr)
		}
		var carry uint64
		total, carry = bits.Add64(total, v, 0)
		if carry != 0 {
			return nil, fmt.Errorf("alloc total overflows")
		}
		out[addr] = v
	}
	return out, nil
}

// Validate checks that the deployment can be deployed.
func (d *Deployment) Validate() error {
	if d.ContractID == "" {
		return fmt.Errorf("contract_id is required")
	}
	cfg, err := d.ContractConfig()
	if err != nil {
		return err
	}
	if _, err := contract.New(cfg); err != nil {
		return err
	}
	if _, err := d.Balances(); err != nil {
		return err
	}
	return nil
}

// Hash returns a BLAKE3 hash of the deployment. It identifies the contract
// and detects a state directory opened with a different deployment.
func (d *Deployment) Hash() (types.Hash, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Hash(data), nil
}

// ContractAccount returns the address that holds the contract's funds.
func (d *Deployment) ContractAccount() (types.Address, error) {
	h, err := d.Hash()
	if err != nil {
		return types.Address{}, err
	}
	tagged := crypto.TaggedHash(contractAccountTag, h[:])
	var addr types.Address
	copy(addr[:], tagged[:types.AddressSize])
	return addr, nil
}
