package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/Klingon-tech/mysterybox/config"
	"github.com/Klingon-tech/mysterybox/internal/contract"
	"github.com/Klingon-tech/mysterybox/internal/host"
	klog "github.com/Klingon-tech/mysterybox/internal/log"
	"github.com/Klingon-tech/mysterybox/internal/storage"
	"github.com/Klingon-tech/mysterybox/pkg/crypto"
	"github.com/Klingon-tech/mysterybox/pkg/types"
)

const testPrice = 10_010

var (
	benefA = types.Address{0xa1}
	benefB = types.Address{0xb2}
)

func TestMain(m *testing.M) {
	klog.Silence()
	os.Exit(m.Run())
}

// testEnv holds all components for an RPC test.
type testEnv struct {
	server *Server
	host   *host.Host
	key    *crypto.PrivateKey
	buyer  types.Address
	url    string
}

func testDeployment(buyer types.Address) *config.Deployment {
	return &config.Deployment{
		ContractID: "rpc-test",
		Metadata:   contract.Metadata{Spec: contract.MetadataSpec, Name: "RPC Box", Symbol: "RBOX"},
		Capacity:   10,
		UnitPrice:  testPrice,
		Royalty: &config.RoyaltyConfig{
			RateBP: 1000,
			Entries: []config.RoyaltyShare{
				{Account: benefA.Hex(), ShareBP: 4000},
				{Account: benefB.Hex(), ShareBP: 6000},
			},
		},
		Alloc: map[string]uint64{buyer.Hex(): 100 * testPrice},
	}
}

func setupTestEnv(t *testing.T) *testEnv {
	return setupTestEnvWithConfig(t, config.RPCConfig{})
}

func setupTestEnvWithConfig(t *testing.T, rpcCfg config.RPCConfig, opts ...host.Option) *testEnv {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	h, err := host.Deploy(storage.NewMemory(), testDeployment(key.Address()), opts...)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}

	srv := New("127.0.0.1:0", h, rpcCfg)
	if err := srv.Start(); err != nil {
		t.Fatalf("start rpc: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	return &testEnv{
		server: srv,
		host:   h,
		key:    key,
		buyer:  key.Address(),
		url:    fmt.Sprintf("http://%s/", srv.Addr()),
	}
}

func rpcCall(t *testing.T, url, method string, params interface{}) Response {
	t.Helper()
	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", method, err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rpcResp
}

// decodeResult re-decodes a generic result into target.
func decodeResult(t *testing.T, resp Response, target interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	data, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

// signedCall signs method for key with the next nonce.
func (e *testEnv) signedCall(t *testing.T, key *crypto.PrivateKey, method string, args any, deposit uint64) *host.Call {
	t.Helper()
	n, err := e.host.Nonce(key.Address())
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	call, err := host.SignCall(key, e.host.DeploymentHash(), method, args, deposit, n+1)
	if err != nil {
		t.Fatalf("sign call: %v", err)
	}
	return call
}

// ── Views ───────────────────────────────────────────────────────────────

func TestRPC_ContractInfo(t *testing.T) {
	env := setupTestEnv(t)

	var info host.Info
	decodeResult(t, rpcCall(t, env.url, "contract_info", nil), &info)

	if info.ContractID != "rpc-test" {
		t.Errorf("contract_id = %q, want %q", info.ContractID, "rpc-test")
	}
	if info.DeploymentHash != env.host.DeploymentHash() {
		t.Errorf("deployment hash = %s, want %s", info.DeploymentHash, env.host.DeploymentHash())
	}
	if info.Account != env.host.Account() {
		t.Errorf("account = %s, want %s", info.Account, env.host.Account())
	}
}

func TestRPC_UnitPriceAndCostFor(t *testing.T) {
	env := setupTestEnv(t)

	var price uint64
	decodeResult(t, rpcCall(t, env.url, "contract_unitPrice", nil), &price)
	if price != testPrice {
		t.Errorf("unit price = %d, want %d", price, testPrice)
	}

	tests := []struct {
		n    int64
		want uint64
	}{
		{1, testPrice},
		{3, 3 * testPrice},
		{10, 10 * testPrice},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d", tt.n), func(t *testing.T) {
			var cost uint64
			decodeResult(t, rpcCall(t, env.url, "contract_costFor", QuantityParam{N: contract.Quantity(tt.n)}), &cost)
			if cost != tt.want {
				t.Errorf("cost_for(%d) = %d, want %d", tt.n, cost, tt.want)
			}
		})
	}
}

func TestRPC_CostFor_InvalidQuantity(t *testing.T) {
	env := setupTestEnv(t)

	resp := rpcCall(t, env.url, "contract_costFor", QuantityParam{N: 0})
	if resp.Error == nil {
		t.Fatal("expected error for n=0")
	}
	if resp.Error.Code != CodeRejected {
		t.Errorf("error code = %d, want %d", resp.Error.Code, CodeRejected)
	}
}

func TestRPC_CostFor_NonInteger(t *testing.T) {
	env := setupTestEnv(t)

	for _, params := range []string{`{"n":1.5}`, `{"n":"two"}`, `{"n":true}`} {
		resp := rpcCall(t, env.url, "contract_costFor", json.RawMessage(params))
		if resp.Error == nil {
			t.Fatalf("%s: expected error", params)
		}
		if resp.Error.Code != CodeRejected {
			t.Errorf("%s: error code = %d, want %d", params, resp.Error.Code, CodeRejected)
		}
	}
}

func TestRPC_Buy_FractionalQuantity(t *testing.T) {
	env := setupTestEnv(t)

	call := env.signedCall(t, env.key, host.MethodBuy, json.RawMessage(`{"n":0.5}`), testPrice)
	resp := rpcCall(t, env.url, "contract_buy", call)
	if resp.Error == nil {
		t.Fatal("expected error for n=0.5")
	}
	if resp.Error.Code != CodeRejected {
		t.Errorf("error code = %d, want %d", resp.Error.Code, CodeRejected)
	}
	if env.host.Supply().Minted != 0 {
		t.Errorf("minted = %d after rejected buy", env.host.Supply().Minted)
	}
}

func TestRPC_NFTMetadata(t *testing.T) {
	env := setupTestEnv(t)

	var md contract.Metadata
	decodeResult(t, rpcCall(t, env.url, "nft_metadata", nil), &md)
	if md.Spec != contract.MetadataSpec || md.Name != "RPC Box" || md.Symbol != "RBOX" {
		t.Errorf("metadata = %+v", md)
	}
}

func TestRPC_RoyaltyGet(t *testing.T) {
	env := setupTestEnv(t)

	var r host.RoyaltyView
	decodeResult(t, rpcCall(t, env.url, "royalty_get", nil), &r)
	if !r.Enabled || r.RateBP != 1000 {
		t.Errorf("royalty = %+v", r)
	}
	if len(r.Entries) != 2 || r.Entries[0].Beneficiary != benefA || r.Entries[1].ShareBP != 6000 {
		t.Errorf("entries = %+v", r.Entries)
	}
}

func TestRPC_AccountBalanceAndNonce(t *testing.T) {
	env := setupTestEnv(t)

	var bal BalanceResult
	decodeResult(t, rpcCall(t, env.url, "account_getBalance", AccountParam{Account: env.buyer.String()}), &bal)
	if bal.Balance != 100*testPrice {
		t.Errorf("balance = %d, want %d", bal.Balance, 100*testPrice)
	}
	if bal.Account != env.buyer {
		t.Errorf("account = %s, want %s", bal.Account, env.buyer)
	}

	var nonce NonceResult
	decodeResult(t, rpcCall(t, env.url, "account_getNonce", AccountParam{Account: env.buyer.Hex()}), &nonce)
	if nonce.Nonce != 0 {
		t.Errorf("nonce = %d, want 0", nonce.Nonce)
	}
}

func TestRPC_InvalidAccount(t *testing.T) {
	env := setupTestEnv(t)

	resp := rpcCall(t, env.url, "account_getBalance", AccountParam{Account: "xyz"})
	if resp.Error == nil {
		t.Fatal("expected error for invalid account")
	}
	if resp.Error.Code != CodeInvalidParams {
		t.Errorf("error code = %d, want %d", resp.Error.Code, CodeInvalidParams)
	}
}

func TestRPC_NFTToken_Unknown(t *testing.T) {
	env := setupTestEnv(t)

	resp := rpcCall(t, env.url, "nft_token", TokenParam{TokenID: 7})
	if resp.Error == nil {
		t.Fatal("expected error for unknown token")
	}
	if resp.Error.Code != CodeRejected {
		t.Errorf("error code = %d, want %d", resp.Error.Code, CodeRejected)
	}
}

// ── Signed calls ────────────────────────────────────────────────────────

func TestRPC_BuyFlow(t *testing.T) {
	env := setupTestEnv(t)

	call := env.signedCall(t, env.key, host.MethodBuy, host.BuyArgs{N: 3}, 3*testPrice+5)
	var res BuyResult
	decodeResult(t, rpcCall(t, env.url, "contract_buy", call), &res)

	if len(res.Tokens) != 3 {
		t.Fatalf("minted %d tokens, want 3", len(res.Tokens))
	}
	for i, tok := range res.Tokens {
		if tok.ID != uint64(i+1) || tok.Owner != env.buyer {
			t.Errorf("token[%d] = %+v", i, tok)
		}
	}
	if res.Cost != 3*testPrice || res.Refund != 5 {
		t.Errorf("cost = %d refund = %d", res.Cost, res.Refund)
	}
	if res.Income != 3*testPrice/10 {
		t.Errorf("income = %d, want %d", res.Income, 3*testPrice/10)
	}
	if len(res.Transfers) != 1 || res.Transfers[0].Kind != contract.TransferRefund {
		t.Errorf("transfers = %+v", res.Transfers)
	}

	var supply host.Supply
	decodeResult(t, rpcCall(t, env.url, "nft_supply", nil), &supply)
	if supply != (host.Supply{Capacity: 10, Minted: 3, Remaining: 7, NextID: 4}) {
		t.Errorf("supply = %+v", supply)
	}

	var bal BalanceResult
	decodeResult(t, rpcCall(t, env.url, "account_getBalance", AccountParam{Account: env.buyer.String()}), &bal)
	if bal.Balance != 97*testPrice {
		t.Errorf("balance = %d, want %d", bal.Balance, 97*testPrice)
	}

	var owned []contract.Token
	decodeResult(t, rpcCall(t, env.url, "nft_tokensForOwner", TokensForOwnerParam{Account: env.buyer.String()}), &owned)
	if len(owned) != 3 {
		t.Errorf("owner holds %d tokens, want 3", len(owned))
	}

	var pending uint64
	decodeResult(t, rpcCall(t, env.url, "contract_pendingIncome", nil), &pending)
	if pending != res.Income {
		t.Errorf("pending = %d, want %d", pending, res.Income)
	}
}

func TestRPC_Buy_InsufficientDeposit(t *testing.T) {
	env := setupTestEnv(t)

	call := env.signedCall(t, env.key, host.MethodBuy, host.BuyArgs{N: 2}, 2*testPrice-1)
	resp := rpcCall(t, env.url, "contract_buy", call)
	if resp.Error == nil {
		t.Fatal("expected rejection")
	}
	if resp.Error.Code != CodeRejected {
		t.Errorf("error code = %d, want %d", resp.Error.Code, CodeRejected)
	}

	var supply host.Supply
	decodeResult(t, rpcCall(t, env.url, "nft_supply", nil), &supply)
	if supply.Minted != 0 {
		t.Errorf("minted = %d after rejected buy", supply.Minted)
	}
	var nonce NonceResult
	decodeResult(t, rpcCall(t, env.url, "account_getNonce", AccountParam{Account: env.buyer.String()}), &nonce)
	if nonce.Nonce != 0 {
		t.Errorf("nonce = %d after rejected buy", nonce.Nonce)
	}
}

func TestRPC_Buy_BadSignature(t *testing.T) {
	env := setupTestEnv(t)

	call := env.signedCall(t, env.key, host.MethodBuy, host.BuyArgs{N: 1}, testPrice)
	call.Deposit++
	resp := rpcCall(t, env.url, "contract_buy", call)
	if resp.Error == nil {
		t.Fatal("expected signature error")
	}
	if resp.Error.Code != CodeUnauthorized {
		t.Errorf("error code = %d, want %d", resp.Error.Code, CodeUnauthorized)
	}
}

func TestRPC_Buy_MethodMismatch(t *testing.T) {
	env := setupTestEnv(t)

	call := env.signedCall(t, env.key, host.MethodDistributeIncome, nil, 0)
	resp := rpcCall(t, env.url, "contract_buy", call)
	if resp.Error == nil {
		t.Fatal("expected error for mismatched call method")
	}
	if resp.Error.Code != CodeInvalidParams {
		t.Errorf("error code = %d, want %d", resp.Error.Code, CodeInvalidParams)
	}
}

func TestRPC_PayoutAndDistribute(t *testing.T) {
	env := setupTestEnv(t)

	buy := env.signedCall(t, env.key, host.MethodBuy, host.BuyArgs{N: 1}, testPrice)
	decodeResult(t, rpcCall(t, env.url, "contract_buy", buy), &BuyResult{})

	var payout PayoutResult
	decodeResult(t, rpcCall(t, env.url, "nft_payout", PayoutParam{TokenID: 1, Balance: 100_000_000}), &payout)
	want := map[types.Address]uint64{
		benefA:    4_000_000,
		benefB:    6_000_000,
		env.buyer: 90_000_000,
	}
	for addr, amount := range want {
		if payout.Payout[addr] != amount {
			t.Errorf("payout[%s] = %d, want %d", addr, payout.Payout[addr], amount)
		}
	}

	dist := env.signedCall(t, env.key, host.MethodDistributeIncome, nil, 0)
	var res DistributeResult
	decodeResult(t, rpcCall(t, env.url, "contract_distributeIncome", dist), &res)

	// 10% of 10010 is 1001; 40% and 60% of it floor to 400 and 600.
	if res.Pool != 1001 || res.Distributed != 1000 || res.Retained != 1 {
		t.Errorf("distribution = %+v", res)
	}
	if len(res.Payouts) != 2 || len(res.Failed) != 0 {
		t.Errorf("payouts = %+v failed = %+v", res.Payouts, res.Failed)
	}

	var bal BalanceResult
	decodeResult(t, rpcCall(t, env.url, "account_getBalance", AccountParam{Account: benefA.Hex()}), &bal)
	if bal.Balance != 400 {
		t.Errorf("beneficiary balance = %d, want 400", bal.Balance)
	}
}

func TestRPC_DistributeIncome_ReportsUndelivered(t *testing.T) {
	env := setupTestEnvWithConfig(t, config.RPCConfig{}, host.WithTransfer(func(from, to types.Address, amount uint64) error {
		if to == benefB {
			return errors.New("receiver unavailable")
		}
		return nil
	}))

	buy := env.signedCall(t, env.key, host.MethodBuy, host.BuyArgs{N: 1}, testPrice)
	decodeResult(t, rpcCall(t, env.url, "contract_buy", buy), &BuyResult{})

	dist := env.signedCall(t, env.key, host.MethodDistributeIncome, nil, 0)
	var res DistributeResult
	decodeResult(t, rpcCall(t, env.url, "contract_distributeIncome", dist), &res)

	// Both shares were debited from pending income, so both are listed.
	if len(res.Payouts) != 2 {
		t.Fatalf("payouts = %+v, want both beneficiaries", res.Payouts)
	}
	if res.Payouts[0].To != benefA || res.Payouts[0].Amount != 400 ||
		res.Payouts[1].To != benefB || res.Payouts[1].Amount != 600 {
		t.Errorf("payouts = %+v", res.Payouts)
	}
	if len(res.Failed) != 1 || res.Failed[0].Transfer.To != benefB {
		t.Errorf("failed = %+v, want the transfer to %s", res.Failed, benefB)
	}
	if env.host.PendingIncome() != 1 {
		t.Errorf("pending = %d, want 1", env.host.PendingIncome())
	}
}

func TestRPC_NFTTransfer(t *testing.T) {
	env := setupTestEnv(t)

	buy := env.signedCall(t, env.key, host.MethodBuy, host.BuyArgs{N: 1}, testPrice)
	decodeResult(t, rpcCall(t, env.url, "contract_buy", buy), &BuyResult{})

	receiver := types.Address{0xcc}
	args := host.TransferArgs{ReceiverID: receiver, TokenID: 1, Memo: "gift"}
	call := env.signedCall(t, env.key, host.MethodNFTTransfer, args, 0)
	var res TransferResult
	decodeResult(t, rpcCall(t, env.url, "nft_transfer", call), &res)
	if res.Token == nil || res.Token.Owner != receiver {
		t.Fatalf("token = %+v", res.Token)
	}

	var tok contract.Token
	decodeResult(t, rpcCall(t, env.url, "nft_token", TokenParam{TokenID: 1}), &tok)
	if tok.Owner != receiver {
		t.Errorf("owner = %s, want %s", tok.Owner, receiver)
	}

	// The previous owner can no longer move it.
	again := env.signedCall(t, env.key, host.MethodNFTTransfer, args, 0)
	resp := rpcCall(t, env.url, "nft_transfer", again)
	if resp.Error == nil || resp.Error.Code != CodeRejected {
		t.Errorf("expected rejection, got %+v", resp.Error)
	}
}

func TestRPC_NFTApproveAndTransfer(t *testing.T) {
	env := setupTestEnv(t)

	buy := env.signedCall(t, env.key, host.MethodBuy, host.BuyArgs{N: 1}, testPrice)
	var bought BuyResult
	decodeResult(t, rpcCall(t, env.url, "contract_buy", buy), &bought)
	if len(bought.Tokens) != 1 || bought.Tokens[0].Metadata == nil || bought.Tokens[0].Metadata.Title != "1" {
		t.Fatalf("bought = %+v", bought.Tokens)
	}

	market, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	approve := env.signedCall(t, env.key, host.MethodNFTApprove, host.ApproveArgs{TokenID: 1, AccountID: market.Address()}, 0)
	var appr ApprovalResult
	decodeResult(t, rpcCall(t, env.url, "nft_approve", approve), &appr)
	if appr.ApprovalID != 1 || appr.Token.Approvals[market.Address()] != 1 {
		t.Fatalf("approval = %+v", appr)
	}

	var ok bool
	param := IsApprovedParam{TokenID: 1, ApprovedAccountID: market.Address().String(), ApprovalID: &appr.ApprovalID}
	decodeResult(t, rpcCall(t, env.url, "nft_isApproved", param), &ok)
	if !ok {
		t.Error("nft_isApproved = false, want true")
	}

	receiver := types.Address{0xcc}
	stale := appr.ApprovalID + 1
	bad := env.signedCall(t, market, host.MethodNFTTransfer, host.TransferArgs{ReceiverID: receiver, TokenID: 1, ApprovalID: &stale}, 0)
	if resp := rpcCall(t, env.url, "nft_transfer", bad); resp.Error == nil || resp.Error.Code != CodeRejected {
		t.Fatalf("stale approval id: got %+v, want rejection", resp.Error)
	}

	good := env.signedCall(t, market, host.MethodNFTTransfer, host.TransferArgs{ReceiverID: receiver, TokenID: 1, ApprovalID: &appr.ApprovalID}, 0)
	var res TransferResult
	decodeResult(t, rpcCall(t, env.url, "nft_transfer", good), &res)
	if res.Token.Owner != receiver || len(res.Token.Approvals) != 0 {
		t.Errorf("token = %+v", res.Token)
	}

	param.ApprovalID = nil
	decodeResult(t, rpcCall(t, env.url, "nft_isApproved", param), &ok)
	if ok {
		t.Error("approval survived the transfer")
	}
}

func TestRPC_NFTRevoke_NotOwner(t *testing.T) {
	env := setupTestEnv(t)

	buy := env.signedCall(t, env.key, host.MethodBuy, host.BuyArgs{N: 1}, testPrice)
	decodeResult(t, rpcCall(t, env.url, "contract_buy", buy), &BuyResult{})

	other, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	call := env.signedCall(t, other, host.MethodNFTRevokeAll, host.RevokeAllArgs{TokenID: 1}, 0)
	resp := rpcCall(t, env.url, "nft_revokeAll", call)
	if resp.Error == nil || resp.Error.Code != CodeRejected {
		t.Errorf("expected rejection, got %+v", resp.Error)
	}
}

// ── Protocol ────────────────────────────────────────────────────────────

func TestRPC_MethodNotFound(t *testing.T) {
	env := setupTestEnv(t)

	resp := rpcCall(t, env.url, "nonexistent_method", nil)
	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != CodeMethodNotFound {
		t.Errorf("error code = %d, want %d", resp.Error.Code, CodeMethodNotFound)
	}
}

func TestRPC_InvalidParams(t *testing.T) {
	env := setupTestEnv(t)

	// contract_costFor requires params.
	resp := rpcCall(t, env.url, "contract_costFor", nil)
	if resp.Error == nil {
		t.Fatal("expected error for missing params")
	}
	if resp.Error.Code != CodeInvalidParams {
		t.Errorf("error code = %d, want %d", resp.Error.Code, CodeInvalidParams)
	}
}

func TestRPC_InvalidJSON(t *testing.T) {
	env := setupTestEnv(t)

	resp, err := http.Post(env.url, "application/json", bytes.NewReader([]byte("not json")))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	json.NewDecoder(resp.Body).Decode(&rpcResp)

	if rpcResp.Error == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if rpcResp.Error.Code != CodeParseError {
		t.Errorf("error code = %d, want %d", rpcResp.Error.Code, CodeParseError)
	}
}

func TestRPC_WrongVersion(t *testing.T) {
	env := setupTestEnv(t)

	body := []byte(`{"jsonrpc":"1.0","method":"contract_unitPrice","id":1}`)
	resp, err := http.Post(env.url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	json.NewDecoder(resp.Body).Decode(&rpcResp)
	if rpcResp.Error == nil || rpcResp.Error.Code != CodeInvalidRequest {
		t.Errorf("expected invalid request, got %+v", rpcResp.Error)
	}
}

func TestRPC_GetMethodNotAllowed(t *testing.T) {
	env := setupTestEnv(t)

	resp, err := http.Get(env.url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	json.NewDecoder(resp.Body).Decode(&rpcResp)

	if rpcResp.Error == nil {
		t.Fatal("expected error for GET request")
	}
	if rpcResp.Error.Code != CodeInvalidRequest {
		t.Errorf("error code = %d, want %d", rpcResp.Error.Code, CodeInvalidRequest)
	}
}

func TestRPC_BodyTooLarge(t *testing.T) {
	env := setupTestEnv(t)

	body := bytes.Repeat([]byte(" "), maxBodySize+10)
	resp, err := http.Post(env.url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	json.NewDecoder(resp.Body).Decode(&rpcResp)
	if rpcResp.Error == nil || rpcResp.Error.Code != CodeInvalidRequest {
		t.Errorf("expected invalid request, got %+v", rpcResp.Error)
	}
}

// --- IP Filtering ---

func TestRPC_IPFilter_Allowed(t *testing.T) {
	env := setupTestEnvWithConfig(t, config.RPCConfig{
		AllowedIPs: []string{"127.0.0.1"},
	})

	resp := rpcCall(t, env.url, "contract_unitPrice", nil)
	if resp.Error != nil {
		t.Errorf("expected success for 127.0.0.1, got error: %s", resp.Error.Message)
	}
}

func TestRPC_IPFilter_Blocked(t *testing.T) {
	env := setupTestEnvWithConfig(t, config.RPCConfig{
		AllowedIPs: []string{"10.0.0.0/8"},
	})

	req := Request{JSONRPC: "2.0", Method: "contract_unitPrice", ID: 1}
	body, _ := json.Marshal(req)
	resp, err := http.Post(env.url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", resp.StatusCode)
	}
}

func TestParseAllowedIPs(t *testing.T) {
	prefixes := parseAllowedIPs([]string{"127.0.0.1", "10.1.2.3/8", "::1", "garbage"})
	if len(prefixes) != 3 {
		t.Fatalf("parsed %d prefixes, want 3", len(prefixes))
	}
	if prefixes[0].Bits() != 32 {
		t.Errorf("single IPv4 prefix = /%d", prefixes[0].Bits())
	}
	if got := prefixes[1].String(); got != "10.0.0.0/8" {
		t.Errorf("CIDR prefix = %s, want 10.0.0.0/8", got)
	}
	if prefixes[2].Bits() != 128 {
		t.Errorf("single IPv6 prefix = /%d", prefixes[2].Bits())
	}
}

func TestServer_RemoteAllowed(t *testing.T) {
	s := &Server{allowed: parseAllowedIPs([]string{"10.0.0.0/8", "::1"})}
	tests := []struct {
		remote string
		want   bool
	}{
		{"10.9.8.7:5555", true},
		{"[::ffff:10.0.0.1]:80", true},
		{"[::1]:1234", true},
		{"192.168.1.1:80", false},
		{"not-an-addr", false},
	}
	for _, tt := range tests {
		if got := s.remoteAllowed(tt.remote); got != tt.want {
			t.Errorf("remoteAllowed(%q) = %v, want %v", tt.remote, got, tt.want)
		}
	}
}

// --- Batches ---

func postRaw(t *testing.T, url string, body string) []byte {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read: %v", err)
	}
	return buf.Bytes()
}

func TestRPC_Batch(t *testing.T) {
	env := setupTestEnv(t)

	body := `[
		{"jsonrpc":"2.0","method":"contract_unitPrice","id":1},
		{"jsonrpc":"2.0","method":"contract_costFor","params":{"n":2},"id":"two"},
		{"jsonrpc":"2.0","method":"nope","id":3},
		42
	]`
	var out []Response
	if err := json.Unmarshal(postRaw(t, env.url, body), &out); err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("got %d responses, want 4", len(out))
	}
	if out[0].Error != nil || out[0].Result != float64(testPrice) {
		t.Errorf("first = %+v", out[0])
	}
	if out[1].ID != "two" || out[1].Result != float64(2*testPrice) {
		t.Errorf("second = %+v", out[1])
	}
	if out[2].Error == nil || out[2].Error.Code != CodeMethodNotFound {
		t.Errorf("third = %+v", out[2])
	}
	if out[3].Error == nil || out[3].Error.Code != CodeInvalidRequest {
		t.Errorf("fourth = %+v", out[3])
	}
}

func TestRPC_Batch_Limits(t *testing.T) {
	env := setupTestEnv(t)

	var resp Response
	if err := json.Unmarshal(postRaw(t, env.url, "[]"), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != CodeInvalidRequest {
		t.Errorf("empty batch = %+v", resp)
	}

	calls := make([]string, maxBatch+1)
	for i := range calls {
		calls[i] = `{"jsonrpc":"2.0","method":"contract_unitPrice","id":1}`
	}
	body := "[" + strings.Join(calls, ",") + "]"
	resp = Response{}
	if err := json.Unmarshal(postRaw(t, env.url, body), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != CodeInvalidRequest {
		t.Errorf("oversized batch = %+v", resp)
	}
}

func TestRPC_UnknownParamField(t *testing.T) {
	env := setupTestEnv(t)

	resp := rpcCall(t, env.url, "contract_costFor", map[string]int{"n": 1, "count": 2})
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Errorf("expected invalid params, got %+v", resp.Error)
	}
}

func TestRPC_Methods(t *testing.T) {
	env := setupTestEnv(t)

	var names []string
	decodeResult(t, rpcCall(t, env.url, "rpc_methods", nil), &names)
	if len(names) != len(env.server.methods) {
		t.Fatalf("listed %d methods, want %d", len(names), len(env.server.methods))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("methods not sorted: %v", names)
		}
	}
}

// --- CORS ---

func TestRPC_CORS(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		want    string
	}{
		{"wildcard", []string{"*"}, "http://example.com", "*"},
		{"match", []string{"http://myapp.com"}, "http://myapp.com", "http://myapp.com"},
		{"no match", []string{"http://myapp.com"}, "http://evil.com", ""},
		{"disabled", nil, "http://example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnvWithConfig(t, config.RPCConfig{CORSOrigins: tt.origins})

			req := Request{JSONRPC: "2.0", Method: "contract_unitPrice", ID: 1}
			body, _ := json.Marshal(req)
			httpReq, _ := http.NewRequest("POST", env.url, bytes.NewReader(body))
			httpReq.Header.Set("Content-Type", "application/json")
			httpReq.Header.Set("Origin", tt.origin)

			resp, err := http.DefaultClient.Do(httpReq)
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			defer resp.Body.Close()

			if got := resp.Header.Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("CORS origin = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRPC_CORS_Preflight(t *testing.T) {
	env := setupTestEnvWithConfig(t, config.RPCConfig{
		CORSOrigins: []string{"*"},
	})

	httpReq, _ := http.NewRequest("OPTIONS", env.url, nil)
	httpReq.Header.Set("Origin", "http://example.com")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Methods") == "" {
		t.Error("preflight should have Allow-Methods header")
	}
}
