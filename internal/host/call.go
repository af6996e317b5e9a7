package host

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/mysterybox/internal/contract"
	"github.com/Klingon-tech/mysterybox/pkg/crypto"
	"github.com/Klingon-tech/mysterybox/pkg/types"
)

// Contract methods accepted by Execute.
const (
	MethodBuy              = "buy"
	MethodDistributeIncome = "distribute_income"
	MethodNFTTransfer      = "nft_transfer"
	MethodNFTApprove       = "nft_approve"
	MethodNFTRevoke        = "nft_revoke"
	MethodNFTRevokeAll     = "nft_revoke_all"
)

const callTag = "mysterybox call v1"

// Call is a signed request to run a mutating contract method.
type Call struct {
	Method    string          `json:"method"`
	Args      json.RawMessage `json:"args,omitempty"`
	Deposit   uint64          `json:"deposit"`
	Nonce     uint64          `json:"nonce"`
	PublicKey string          `json:"public_key"`
	Signature string          `json:"signature"`
}

// BuyArgs are the arguments of buy.
type BuyArgs struct {
	N contract.Quantity `json:"n"`
}

// TransferArgs are the arguments of nft_transfer. ApprovalID is checked
// only when an approved account sends the token.
type TransferArgs struct {
	ReceiverID types.Address `json:"receiver_id"`
	TokenID    uint64        `json:"token_id"`
	ApprovalID *uint64       `json:"approval_id,omitempty"`
	Memo       string        `json:"memo,omitempty"`
}

// ApproveArgs are the arguments of nft_approve.
type ApproveArgs struct {
	TokenID   uint64        `json:"token_id"`
	AccountID types.Address `json:"account_id"`
	Msg       string        `json:"msg,omitempty"`
}

// RevokeArgs are the arguments of nft_revoke.
type RevokeArgs struct {
	TokenID   uint64        `json:"token_id"`
	AccountID types.Address `json:"account_id"`
}

// RevokeAllArgs are the arguments of nft_revoke_all.
type RevokeAllArgs struct {
	TokenID uint64 `json:"token_id"`
}

// CallDigest returns the message a caller signs. The deployment hash binds
// the signature to one contract; variable-length fields are length-prefixed.
func CallDigest(deployment types.Hash, method string, args []byte, deposit, nonce uint64) types.Hash {
	var nums [16]byte
	binary.BigEndian.PutUint64(nums[:8], deposit)
	binary.BigEndian.PutUint64(nums[8:], nonce)
	return crypto.TaggedHash(callTag,
		deployment[:],
		lengthPrefixed([]byte(method)),
		lengthPrefixed(args),
		nums[:],
	)
}

func lengthPrefixed(b []byte) []byte {
	return append(binary.BigEndian.AppendUint32(nil, uint32(len(b))), b...)
}

// SignCall encodes args and signs a call with key.
func SignCall(key *crypto.PrivateKey, deployment types.Hash, method string, args any, deposit, nonce uint64) (*Call, error) {
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encode args: %w", err)
		}
		raw = b
	}
	digest := CallDigest(deployment, method, raw, deposit, nonce)
	sig, err := key.Sign(digest[:])
	if err != nil {
		return nil, err
	}
	return &Call{
		Method:    method,
		Args:      raw,
		Deposit:   deposit,
		Nonce:     nonce,
		PublicKey: hex.EncodeToString(key.PublicKey()),
		Signature: hex.EncodeToString(sig),
	}, nil
}

// Verify checks the signature and returns the calling account.
func (c *Call) Verify(deployment types.Hash) (types.Address, error) {
	pub, err := hex.DecodeString(c.PublicKey)
	if err != nil || len(pub) != crypto.PublicKeySize {
		return types.Address{}, fmt.Errorf("%w: malformed public key", ErrBadSignature)
	}
	sig, err := hex.DecodeString(c.Signature)
	if err != nil {
		return types.Address{}, fmt.Errorf("%w: malformed signature", ErrBadSignature)
	}
	digest := CallDigest(deployment, c.Method, c.Args, c.Deposit, c.Nonce)
	if !crypto.VerifySignature(digest[:], sig, pub) {
		return types.Address{}, ErrBadSignature
	}
	return crypto.AddressFromPubKey(pub), nil
}

// decodeArgs unmarshals call arguments, treating absent args as {}.
// A malformed quantity is reported as the contract's own error.
func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		if errors.Is(err, contract.ErrInvalidQuantity) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrBadArgs, err)
	}
	return nil
}
