package rpcclient

import (
	"fmt"

	"github.com/Klingon-tech/mysterybox/internal/contract"
	"github.com/Klingon-tech/mysterybox/internal/host"
	"github.com/Klingon-tech/mysterybox/internal/rpc"
	"github.com/Klingon-tech/mysterybox/pkg/crypto"
	"github.com/Klingon-tech/mysterybox/pkg/types"
)

// Info returns the identity of the deployed contract.
func (c *Client) Info() (*host.Info, error) {
	var info host.Info
	if err := c.Call("contract_info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// UnitPrice returns the price of one token.
func (c *Client) UnitPrice() (uint64, error) {
	var v uint64
	err := c.Call("contract_unitPrice", nil, &v)
	return v, err
}

// CostFor returns the mint price of n tokens.
func (c *Client) CostFor(n int64) (uint64, error) {
	var v uint64
	err := c.Call("contract_costFor", rpc.QuantityParam{N: contract.Quantity(n)}, &v)
	return v, err
}

// RequiredDeposit returns the minimum deposit for buying n tokens.
func (c *Client) RequiredDeposit(n int64) (uint64, error) {
	var v uint64
	err := c.Call("contract_requiredDeposit", rpc.QuantityParam{N: contract.Quantity(n)}, &v)
	return v, err
}

// PendingIncome returns the undistributed income.
func (c *Client) PendingIncome() (uint64, error) {
	var v uint64
	err := c.Call("contract_pendingIncome", nil, &v)
	return v, err
}

// Metadata returns the collection metadata.
func (c *Client) Metadata() (*contract.Metadata, error) {
	var md contract.Metadata
	if err := c.Call("nft_metadata", nil, &md); err != nil {
		return nil, err
	}
	return &md, nil
}

// Payout returns the royalty split of balance for a sale of tokenID.
func (c *Client) Payout(tokenID, balance uint64) (contract.Payout, error) {
	var res rpc.PayoutResult
	if err := c.Call("nft_payout", rpc.PayoutParam{TokenID: tokenID, Balance: balance}, &res); err != nil {
		return nil, err
	}
	return res.Payout, nil
}

// Token returns a minted token.
func (c *Client) Token(id uint64) (*contract.Token, error) {
	var tok contract.Token
	if err := c.Call("nft_token", rpc.TokenParam{TokenID: id}, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// TokensForOwner lists tokens held by owner. A zero limit means all.
func (c *Client) TokensForOwner(owner types.Address, from, limit int) ([]contract.Token, error) {
	var tokens []contract.Token
	p := rpc.TokensForOwnerParam{Account: owner.String(), From: from, Limit: limit}
	if err := c.Call("nft_tokensForOwner", p, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// Supply returns the collection counters.
func (c *Client) Supply() (*host.Supply, error) {
	var s host.Supply
	if err := c.Call("nft_supply", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Royalty returns the royalty configuration.
func (c *Client) Royalty() (*host.RoyaltyView, error) {
	var r host.RoyaltyView
	if err := c.Call("royalty_get", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Balance returns the balance of account.
func (c *Client) Balance(account types.Address) (uint64, error) {
	var res rpc.BalanceResult
	if err := c.Call("account_getBalance", rpc.AccountParam{Account: account.String()}, &res); err != nil {
		return 0, err
	}
	return res.Balance, nil
}

// Nonce returns the last nonce accepted from account.
func (c *Client) Nonce(account types.Address) (uint64, error) {
	var res rpc.NonceResult
	if err := c.Call("account_getNonce", rpc.AccountParam{Account: account.String()}, &res); err != nil {
		return 0, err
	}
	return res.Nonce, nil
}

// DeploymentHash returns the hash of the node's deployment. It is fetched
// once and cached; calls are signed over it.
func (c *Client) DeploymentHash() (types.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.deployHash.IsZero() {
		return c.deployHash, nil
	}
	info, err := c.Info()
	if err != nil {
		return types.Hash{}, fmt.Errorf("contract info: %w", err)
	}
	c.deployHash = info.DeploymentHash
	return c.deployHash, nil
}

// sign builds a call for key with the next nonce.
func (c *Client) sign(key *crypto.PrivateKey, method string, args any, deposit uint64) (*host.Call, error) {
	hash, err := c.DeploymentHash()
	if err != nil {
		return nil, err
	}
	last, err := c.Nonce(key.Address())
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return host.SignCall(key, hash, method, args, deposit, last+1)
}

// Buy purchases n tokens, attaching deposit.
func (c *Client) Buy(key *crypto.PrivateKey, n int64, deposit uint64) (*rpc.BuyResult, error) {
	call, err := c.sign(key, host.MethodBuy, host.BuyArgs{N: contract.Quantity(n)}, deposit)
	if err != nil {
		return nil, err
	}
	var res rpc.BuyResult
	if err := c.Call("contract_buy", call, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DistributeIncome pays the pending income out to the royalty table.
func (c *Client) DistributeIncome(key *crypto.PrivateKey) (*rpc.DistributeResult, error) {
	call, err := c.sign(key, host.MethodDistributeIncome, nil, 0)
	if err != nil {
		return nil, err
	}
	var res rpc.DistributeResult
	if err := c.Call("contract_distributeIncome", call, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Transfer moves a token owned by key to receiver.
func (c *Client) Transfer(key *crypto.PrivateKey, receiver types.Address, tokenID uint64, memo string) (*rpc.TransferResult, error) {
	args := host.TransferArgs{ReceiverID: receiver, TokenID: tokenID, Memo: memo}
	call, err := c.sign(key, host.MethodNFTTransfer, args, 0)
	if err != nil {
		return nil, err
	}
	var res rpc.TransferResult
	if err := c.Call("nft_transfer", call, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// TransferApproved moves a token key was approved for. approvalID, when
// non-nil, must match the approval the owner granted.
func (c *Client) TransferApproved(key *crypto.PrivateKey, receiver types.Address, tokenID uint64, approvalID *uint64, memo string) (*rpc.TransferResult, error) {
	args := host.TransferArgs{ReceiverID: receiver, TokenID: tokenID, ApprovalID: approvalID, Memo: memo}
	call, err := c.sign(key, host.MethodNFTTransfer, args, 0)
	if err != nil {
		return nil, err
	}
	var res rpc.TransferResult
	if err := c.Call("nft_transfer", call, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Approve lets account transfer a token owned by key.
func (c *Client) Approve(key *crypto.PrivateKey, tokenID uint64, account types.Address, msg string) (*rpc.ApprovalResult, error) {
	return c.approval(key, host.MethodNFTApprove, "nft_approve", host.ApproveArgs{TokenID: tokenID, AccountID: account, Msg: msg})
}

// Revoke withdraws account's approval on a token owned by key.
func (c *Client) Revoke(key *crypto.PrivateKey, tokenID uint64, account types.Address) (*rpc.ApprovalResult, error) {
	return c.approval(key, host.MethodNFTRevoke, "nft_revoke", host.RevokeArgs{TokenID: tokenID, AccountID: account})
}

// RevokeAll withdraws every approval on a token owned by key.
func (c *Client) RevokeAll(key *crypto.PrivateKey, tokenID uint64) (*rpc.ApprovalResult, error) {
	return c.approval(key, host.MethodNFTRevokeAll, "nft_revokeAll", host.RevokeAllArgs{TokenID: tokenID})
}

func (c *Client) approval(key *crypto.PrivateKey, method, rpcMethod string, args any) (*rpc.ApprovalResult, error) {
	call, err := c.sign(key, method, args, 0)
	if err != nil {
		return nil, err
	}
	var res rpc.ApprovalResult
	if err := c.Call(rpcMethod, call, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// IsApproved reports whether account may transfer a token. A nil
// approvalID matches any approval.
func (c *Client) IsApproved(tokenID uint64, account types.Address, approvalID *uint64) (bool, error) {
	var ok bool
	p := rpc.IsApprovedParam{TokenID: tokenID, ApprovedAccountID: account.String(), ApprovalID: approvalID}
	err := c.Call("nft_isApproved", p, &ok)
	return ok, err
}
