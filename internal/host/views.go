package host

import (
	"github.com/Klingon-tech/mysterybox/internal/contract"
	"github.com/Klingon-tech/mysterybox/pkg/types"
)

// Info identifies the deployed contract. Clients need DeploymentHash to
// sign calls.
type Info struct {
	ContractID     string            `json:"contract_id"`
	Account        types.Address     `json:"account"`
	DeploymentHash types.Hash        `json:"deployment_hash"`
	Metadata       contract.Metadata `json:"metadata"`
}

// Supply summarizes the collection.
type Supply struct {
	Capacity  uint64 `json:"capacity"`
	Minted    uint64 `json:"minted"`
	Remaining uint64 `json:"remaining"`
	NextID    uint64 `json:"next_id"`
}

// RoyaltyView is the public form of the royalty configuration.
type RoyaltyView struct {
	Enabled bool                    `json:"enabled"`
	RateBP  uint16                  `json:"rate_bp"`
	Entries []contract.RoyaltyEntry `json:"entries"`
}

// Info returns the contract identity.
func (h *Host) Info() Info {
	return Info{
		ContractID:     h.deployment.ContractID,
		Account:        h.account,
		DeploymentHash: h.deployHash,
		Metadata:       h.contract.Metadata(),
	}
}

// DeploymentHash returns the hash callers sign against.
func (h *Host) DeploymentHash() types.Hash { return h.deployHash }

// Account returns the contract account.
func (h *Host) Account() types.Address { return h.account }

// Metadata returns the collection metadata.
func (h *Host) Metadata() contract.Metadata { return h.contract.Metadata() }

// UnitPrice returns the price of one token.
func (h *Host) UnitPrice() uint64 { return h.contract.UnitPrice() }

// CostFor returns the mint price of n tokens.
func (h *Host) CostFor(n int64) (uint64, error) { return h.contract.CostFor(n) }

// RequiredDeposit returns the minimum deposit buy accepts for n tokens.
func (h *Host) RequiredDeposit(n int64) (uint64, error) { return h.contract.RequiredDeposit(n) }

// State returns the committed contract state.
func (h *Host) State() contract.State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// PendingIncome returns the income not yet distributed.
func (h *Host) PendingIncome() uint64 {
	return h.State().PendingIncome
}

// Supply returns the collection counters.
func (h *Host) Supply() Supply {
	c := h.State().Collection
	return Supply{Capacity: c.Capacity, Minted: c.Minted, Remaining: c.Remaining(), NextID: c.NextID}
}

// Royalty returns the royalty configuration.
func (h *Host) Royalty() RoyaltyView {
	r := h.contract.Royalty()
	if r == nil {
		return RoyaltyView{Entries: []contract.RoyaltyEntry{}}
	}
	return RoyaltyView{Enabled: r.Enabled(), RateBP: r.RateBP, Entries: r.Table.Entries()}
}

// Payout computes the royalty split of balance for a sale of tokenID.
func (h *Host) Payout(tokenID, balance uint64) (contract.Payout, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.contract.Payout(h.tokens, tokenID, balance)
}

// Token returns a minted token.
func (h *Host) Token(id uint64) (*contract.Token, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.tokens.Get(id)
}

// IsApproved reports whether account may transfer token id on its owner's
// behalf. A non-nil approvalID must match as well.
func (h *Host) IsApproved(id uint64, account types.Address, approvalID *uint64) (bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, err := h.tokens.OwnerOf(id); err != nil {
		return false, err
	}
	a, err := h.tokens.Approvals(id)
	if err != nil {
		return false, err
	}
	return a.IsApproved(account, approvalID), nil
}

// TokensForOwner lists the tokens held by owner.
func (h *Host) TokensForOwner(owner types.Address, from, limit int) ([]contract.Token, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.tokens.ForOwner(owner, from, limit)
}

// Balance returns the balance of an account.
func (h *Host) Balance(a types.Address) (uint64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.bank.Balance(a)
}

// Nonce returns the last nonce accepted from an account.
func (h *Host) Nonce(a types.Address) (uint64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.bank.Nonce(a)
}
