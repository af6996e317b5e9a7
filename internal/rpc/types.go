package rpc

import (
	"github.com/Klingon-tech/mysterybox/internal/contract"
	"github.com/Klingon-tech/mysterybox/internal/host"
	"github.com/Klingon-tech/mysterybox/pkg/types"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
	CodeUnauthorized   = -32001
	CodeRejected       = -32010
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// QuantityParam is used by contract_costFor and contract_requiredDeposit.
type QuantityParam struct {
	N contract.Quantity `json:"n"`
}

// TokenParam is used by nft_token.
type TokenParam struct {
	TokenID uint64 `json:"token_id"`
}

// PayoutParam is used by nft_payout.
type PayoutParam struct {
	TokenID uint64 `json:"token_id"`
	Balance uint64 `json:"balance"`
}

// AccountParam is used by account_getBalance and account_getNonce.
type AccountParam struct {
	Account string `json:"account"`
}

// IsApprovedParam is used by nft_isApproved. ApprovalID is optional.
type IsApprovedParam struct {
	TokenID           uint64  `json:"token_id"`
	ApprovedAccountID string  `json:"approved_account_id"`
	ApprovalID        *uint64 `json:"approval_id,omitempty"`
}

// TokensForOwnerParam is used by nft_tokensForOwner. A zero Limit returns
// every token from From on.
type TokensForOwnerParam struct {
	Account string `json:"account"`
	From    int    `json:"from,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// ── Result types ────────────────────────────────────────────────────────

// PayoutResult is returned by nft_payout.
type PayoutResult struct {
	Payout contract.Payout `json:"payout"`
}

// BalanceResult is returned by account_getBalance.
type BalanceResult struct {
	Account types.Address `json:"account"`
	Balance uint64        `json:"balance"`
}

// NonceResult is returned by account_getNonce.
type NonceResult struct {
	Account types.Address `json:"account"`
	Nonce   uint64        `json:"nonce"`
}

// BuyResult is returned by contract_buy.
type BuyResult struct {
	Caller      types.Address          `json:"caller"`
	Nonce       uint64                 `json:"nonce"`
	Tokens      []contract.Token       `json:"tokens"`
	Cost        uint64                 `json:"cost"`
	StorageCost uint64                 `json:"storage_cost"`
	Refund      uint64                 `json:"refund"`
	Income      uint64                 `json:"income"`
	Transfers   []contract.Transfer    `json:"transfers"`
	Failed      []host.TransferFailure `json:"failed,omitempty"`
}

// DistributeResult is returned by contract_distributeIncome.
type DistributeResult struct {
	Caller      types.Address          `json:"caller"`
	Nonce       uint64                 `json:"nonce"`
	Pool        uint64                 `json:"pool"`
	Payouts     []contract.Transfer    `json:"payouts"`
	Distributed uint64                 `json:"distributed"`
	Retained    uint64                 `json:"retained"`
	Failed      []host.TransferFailure `json:"failed"`
}

// TransferResult is returned by nft_transfer.
type TransferResult struct {
	Caller types.Address   `json:"caller"`
	Nonce  uint64          `json:"nonce"`
	Token  *contract.Token `json:"token"`
}

// ApprovalResult is returned by nft_approve, nft_revoke and nft_revokeAll.
// ApprovalID is set by nft_approve only.
type ApprovalResult struct {
	Caller     types.Address   `json:"caller"`
	Nonce      uint64          `json:"nonce"`
	Token      *contract.Token `json:"token"`
	ApprovalID uint64          `json:"approval_id,omitempty"`
}
