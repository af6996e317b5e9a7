package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/mysterybox/internal/bank"
	"github.com/Klingon-tech/mysterybox/internal/contract"
	"github.com/Klingon-tech/mysterybox/internal/host"
	"github.com/Klingon-tech/mysterybox/pkg/types"
)

// rejections are caller mistakes the contract or host refused. They are
// reported with CodeRejected and the error text.
var rejections = []error{
	contract.ErrInvalidQuantity,
	contract.ErrInsufficientDeposit,
	contract.ErrSupplyExhausted,
	contract.ErrUnknownToken,
	contract.ErrAmountOverflow,
	host.ErrBadNonce,
	contract.ErrNotApproved,
	contract.ErrApprovalMismatch,
	host.ErrNotOwner,
	host.ErrSelfTransfer,
	host.ErrUnexpectedDeposit,
	bank.ErrInsufficientBalance,
	bank.ErrBalanceOverflow,
}

// toError maps a host or contract error to a JSON-RPC error.
func toError(err error) *Error {
	switch {
	case errors.Is(err, host.ErrBadSignature):
		return &Error{Code: CodeUnauthorized, Message: err.Error()}
	case errors.Is(err, host.ErrBadArgs), errors.Is(err, host.ErrUnknownMethod):
		return &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	for _, r := range rejections {
		if errors.Is(err, r) {
			return &Error{Code: CodeRejected, Message: err.Error()}
		}
	}
	return &Error{Code: CodeInternalError, Message: err.Error()}
}

func parseAccount(s string) (types.Address, *Error) {
	addr, err := types.ParseAddress(s)
	if err != nil {
		return types.Address{}, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	return addr, nil
}

// ── Views ───────────────────────────────────────────────────────────────

func (s *Server) handleContractInfo(_ json.RawMessage) (interface{}, *Error) {
	return s.host.Info(), nil
}

func (s *Server) handleContractUnitPrice(_ json.RawMessage) (interface{}, *Error) {
	return s.host.UnitPrice(), nil
}

func (s *Server) handleContractCostFor(params json.RawMessage) (interface{}, *Error) {
	var p QuantityParam
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	cost, err := s.host.CostFor(int64(p.N))
	if err != nil {
		return nil, toError(err)
	}
	return cost, nil
}

func (s *Server) handleContractRequiredDeposit(params json.RawMessage) (interface{}, *Error) {
	var p QuantityParam
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	amount, err := s.host.RequiredDeposit(int64(p.N))
	if err != nil {
		return nil, toError(err)
	}
	return amount, nil
}

func (s *Server) handleContractPendingIncome(_ json.RawMessage) (interface{}, *Error) {
	return s.host.PendingIncome(), nil
}

func (s *Server) handleNFTMetadata(_ json.RawMessage) (interface{}, *Error) {
	return s.host.Metadata(), nil
}

func (s *Server) handleNFTPayout(params json.RawMessage) (interface{}, *Error) {
	var p PayoutParam
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	payout, err := s.host.Payout(p.TokenID, p.Balance)
	if err != nil {
		return nil, toError(err)
	}
	return &PayoutResult{Payout: payout}, nil
}

func (s *Server) handleNFTToken(params json.RawMessage) (interface{}, *Error) {
	var p TokenParam
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	tok, err := s.host.Token(p.TokenID)
	if err != nil {
		return nil, toError(err)
	}
	return tok, nil
}

func (s *Server) handleNFTIsApproved(params json.RawMessage) (interface{}, *Error) {
	var p IsApprovedParam
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	account, rpcErr := parseAccount(p.ApprovedAccountID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	ok, err := s.host.IsApproved(p.TokenID, account, p.ApprovalID)
	if err != nil {
		return nil, toError(err)
	}
	return ok, nil
}

func (s *Server) handleNFTTokensForOwner(params json.RawMessage) (interface{}, *Error) {
	var p TokensForOwnerParam
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if p.From < 0 || p.Limit < 0 {
		return nil, &Error{Code: CodeInvalidParams, Message: "from and limit must not be negative"}
	}
	owner, rpcErr := parseAccount(p.Account)
	if rpcErr != nil {
		return nil, rpcErr
	}
	tokens, err := s.host.TokensForOwner(owner, p.From, p.Limit)
	if err != nil {
		return nil, toError(err)
	}
	if tokens == nil {
		tokens = []contract.Token{}
	}
	return tokens, nil
}

func (s *Server) handleNFTSupply(_ json.RawMessage) (interface{}, *Error) {
	return s.host.Supply(), nil
}

func (s *Server) handleRoyaltyGet(_ json.RawMessage) (interface{}, *Error) {
	return s.host.Royalty(), nil
}

func (s *Server) handleAccountGetBalance(params json.RawMessage) (interface{}, *Error) {
	var p AccountParam
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	addr, rpcErr := parseAccount(p.Account)
	if rpcErr != nil {
		return nil, rpcErr
	}
	bal, err := s.host.Balance(addr)
	if err != nil {
		return nil, toError(err)
	}
	return &BalanceResult{Account: addr, Balance: bal}, nil
}

func (s *Server) handleAccountGetNonce(params json.RawMessage) (interface{}, *Error) {
	var p AccountParam
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	addr, rpcErr := parseAccount(p.Account)
	if rpcErr != nil {
		return nil, rpcErr
	}
	nonce, err := s.host.Nonce(addr)
	if err != nil {
		return nil, toError(err)
	}
	return &NonceResult{Account: addr, Nonce: nonce}, nil
}

// ── Signed calls ────────────────────────────────────────────────────────

// execute decodes the signed call envelope and runs it. An envelope without
// a method gets the one implied by the RPC method; a different one is
// refused.
func (s *Server) execute(params json.RawMessage, method string) (*host.Receipt, *Error) {
	var call host.Call
	if err := parseParams(params, &call); err != nil {
		return nil, err
	}
	if call.Method == "" {
		call.Method = method
	}
	if call.Method != method {
		return nil, &Error{
			Code:    CodeInvalidParams,
			Message: fmt.Sprintf("expected call method %q, got %q", method, call.Method),
		}
	}
	rcpt, err := s.host.Execute(&call)
	if err != nil {
		return nil, toError(err)
	}
	return rcpt, nil
}

func (s *Server) handleContractBuy(params json.RawMessage) (interface{}, *Error) {
	rcpt, rpcErr := s.execute(params, host.MethodBuy)
	if rpcErr != nil {
		return nil, rpcErr
	}
	st := rcpt.Buy.Settlement
	return &BuyResult{
		Caller:      rcpt.Caller,
		Nonce:       rcpt.Nonce,
		Tokens:      rcpt.Buy.Tokens,
		Cost:        st.Cost,
		StorageCost: st.StorageCost,
		Refund:      st.Refund,
		Income:      st.Income,
		Transfers:   rcpt.Transfers,
		Failed:      rcpt.Failed,
	}, nil
}

func (s *Server) handleContractDistributeIncome(params json.RawMessage) (interface{}, *Error) {
	rcpt, rpcErr := s.execute(params, host.MethodDistributeIncome)
	if rpcErr != nil {
		return nil, rpcErr
	}
	d := rcpt.Distribution
	payouts := d.Payouts
	if payouts == nil {
		payouts = []contract.Transfer{}
	}
	failed := rcpt.Failed
	if failed == nil {
		failed = []host.TransferFailure{}
	}
	return &DistributeResult{
		Caller:      rcpt.Caller,
		Nonce:       rcpt.Nonce,
		Pool:        d.Pool,
		Payouts:     payouts,
		Distributed: d.Distributed,
		Retained:    d.Retained,
		Failed:      failed,
	}, nil
}

func (s *Server) handleNFTTransfer(params json.RawMessage) (interface{}, *Error) {
	rcpt, rpcErr := s.execute(params, host.MethodNFTTransfer)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return &TransferResult{Caller: rcpt.Caller, Nonce: rcpt.Nonce, Token: rcpt.Token}, nil
}

func (s *Server) handleNFTApprove(params json.RawMessage) (interface{}, *Error) {
	return s.approval(params, host.MethodNFTApprove)
}

func (s *Server) handleNFTRevoke(params json.RawMessage) (interface{}, *Error) {
	return s.approval(params, host.MethodNFTRevoke)
}

func (s *Server) handleNFTRevokeAll(params json.RawMessage) (interface{}, *Error) {
	return s.approval(params, host.MethodNFTRevokeAll)
}

func (s *Server) approval(params json.RawMessage, method string) (interface{}, *Error) {
	rcpt, rpcErr := s.execute(params, method)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return &ApprovalResult{Caller: rcpt.Caller, Nonce: rcpt.Nonce, Token: rcpt.Token, ApprovalID: rcpt.ApprovalID}, nil
}
