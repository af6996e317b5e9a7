package contract

import (
	"fmt"
	"maps"

	"github.com/Klingon-tech/mysterybox/pkg/types"
)

// Approvals are the accounts allowed to transfer one token on its owner's
// behalf. Each approval gets a fresh id so a marketplace can tell a stale
// approval from a renewed one.
type Approvals struct {
	// LastID is the most recent approval id issued for the token. It
	// survives revocation and transfer, so ids are never reused.
	LastID   uint64                   `json:"last_approval_id"`
	Accounts map[types.Address]uint64 `json:"approved_account_ids,omitempty"`
}

// Approve returns a copy of a with account approved under a new id.
// Approving an account again replaces its id.
func (a Approvals) Approve(account types.Address) (Approvals, uint64) {
	out := Approvals{LastID: a.LastID + 1, Accounts: maps.Clone(a.Accounts)}
	if out.Accounts == nil {
		out.Accounts = make(map[types.Address]uint64, 1)
	}
	out.Accounts[account] = out.LastID
	return out, out.LastID
}

// Revoke returns a copy of a without account.
func (a Approvals) Revoke(account types.Address) Approvals {
	out := Approvals{LastID: a.LastID, Accounts: maps.Clone(a.Accounts)}
	delete(out.Accounts, account)
	if len(out.Accounts) == 0 {
		out.Accounts = nil
	}
	return out
}

// RevokeAll drops every approval and keeps the id counter.
func (a Approvals) RevokeAll() Approvals {
	return Approvals{LastID: a.LastID}
}

// IsApproved reports whether account may transfer the token. A non-nil
// approvalID must also match the id the account was approved under.
func (a Approvals) IsApproved(account types.Address, approvalID *uint64) bool {
	id, ok := a.Accounts[account]
	if !ok {
		return false
	}
	return approvalID == nil || *approvalID == id
}

// AuthorizeTransfer checks that sender may move a token held by owner. The
// owner always may; anyone else needs an approval, matching approvalID
// when one is given.
func AuthorizeTransfer(owner, sender types.Address, a Approvals, approvalID *uint64) error {
	if sender == owner {
		return nil
	}
	id, ok := a.Accounts[sender]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotApproved, sender)
	}
	if approvalID != nil && *approvalID != id {
		return fmt.Errorf("%w: need %d, got %d", ErrApprovalMismatch, id, *approvalID)
	}
	return nil
}
