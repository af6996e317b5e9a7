// Package host runs the contract against durable storage. It authenticates
// callers, moves attached deposits, persists every effect of a call in one
// atomic batch and executes the resulting transfers after commit.
package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/mysterybox/config"
	"github.com/Klingon-tech/mysterybox/internal/bank"
	"github.com/Klingon-tech/mysterybox/internal/contract"
	"github.com/Klingon-tech/mysterybox/internal/log"
	"github.com/Klingon-tech/mysterybox/internal/storage"
	"github.com/Klingon-tech/mysterybox/internal/token"
	"github.com/Klingon-tech/mysterybox/pkg/types"
)

// Namespaces inside the state database.
var (
	nsContract = []byte("c/")
	nsTokens   = []byte("nft/")
	nsAccounts = []byte("acct/")
)

var (
	keyState      = []byte("state")
	keyDeployment = []byte("deployment")
)

// TransferFunc moves funds out of the contract account.
type TransferFunc func(from, to types.Address, amount uint64) error

// Option configures a Host.
type Option func(*Host)

// WithTransfer replaces the outbound transfer primitive.
func WithTransfer(fn TransferFunc) Option {
	return func(h *Host) { h.transfer = fn }
}

// WithClock replaces the clock used to stamp minted tokens.
func WithClock(now func() time.Time) Option {
	return func(h *Host) { h.now = now }
}

// Host owns the contract state.
type Host struct {
	mu sync.RWMutex

	db       storage.DB
	stateDB  *storage.PrefixDB
	tokenDB  *storage.PrefixDB
	bankDB   *storage.PrefixDB
	tokens   *token.Store
	bank     *bank.Bank
	contract *contract.Contract

	deployment *config.Deployment
	deployHash types.Hash
	account    types.Address
	state      contract.State
	transfer   TransferFunc
	now        func() time.Time

	logger zerolog.Logger
	events zerolog.Logger
}

// TransferFailure records a post-commit transfer that did not go through.
// The committed state is not rolled back and the transfer is not retried.
type TransferFailure struct {
	Transfer contract.Transfer `json:"transfer"`
	Error    string            `json:"error"`
}

// Receipt is the outcome of an executed call.
type Receipt struct {
	Method       string                 `json:"method"`
	Caller       types.Address          `json:"caller"`
	Nonce        uint64                 `json:"nonce"`
	Buy          *contract.BuyResult    `json:"buy,omitempty"`
	Distribution *contract.Distribution `json:"distribution,omitempty"`
	Token        *contract.Token        `json:"token,omitempty"`
	ApprovalID   uint64                 `json:"approval_id,omitempty"`
	Transfers    []contract.Transfer    `json:"transfers"`
	Failed       []TransferFailure      `json:"failed,omitempty"`
}

func newHost(db storage.DB, dep *config.Deployment, opts []Option) (*Host, error) {
	if err := dep.Validate(); err != nil {
		return nil, fmt.Errorf("invalid deployment: %w", err)
	}
	cfg, err := dep.ContractConfig()
	if err != nil {
		return nil, err
	}
	c, err := contract.New(cfg)
	if err != nil {
		return nil, err
	}
	hash, err := dep.Hash()
	if err != nil {
		return nil, fmt.Errorf("hash deployment: %w", err)
	}
	account, err := dep.ContractAccount()
	if err != nil {
		return nil, err
	}

	h := &Host{
		db:         db,
		stateDB:    storage.NewPrefixDB(db, nsContract),
		tokenDB:    storage.NewPrefixDB(db, nsTokens),
		bankDB:     storage.NewPrefixDB(db, nsAccounts),
		contract:   c,
		deployment: dep,
		deployHash: hash,
		account:    account,
		logger:     log.Host,
		events:     log.WithContract(account.String()),
	}
	h.tokens = token.NewStore(h.tokenDB)
	h.bank = bank.New(h.bankDB)
	h.transfer = h.bank.Transfer
	h.now = time.Now
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Deploy opens the contract in db, initializing it from dep on first use.
// Reopening with a different deployment fails with ErrDeploymentMismatch.
func Deploy(db storage.DB, dep *config.Deployment, opts ...Option) (*Host, error) {
	h, err := newHost(db, dep, opts)
	if err != nil {
		return nil, err
	}
	if err := h.load(); err == nil {
		return h, nil
	} else if !errors.Is(err, ErrNotDeployed) {
		return nil, err
	}

	balances, err := dep.Balances()
	if err != nil {
		return nil, err
	}
	batch := db.NewBatch()
	ledger := h.bank.Begin(h.bankDB.Wrap(batch))
	for addr, v := range balances {
		if err := ledger.Credit(addr, v); err != nil {
			return nil, err
		}
	}
	st := h.contract.Genesis()
	sb := h.stateDB.Wrap(batch)
	if err := sb.Put(keyDeployment, hash32(h.deployHash)); err != nil {
		return nil, err
	}
	if err := putState(sb, st); err != nil {
		return nil, err
	}
	if err := batch.Commit(); err != nil {
		return nil, fmt.Errorf("commit deployment: %w", err)
	}
	h.state = st

	log.Contract.Info().
		Str("contract_id", dep.ContractID).
		Str("account", h.account.String()).
		Str("deployment", h.deployHash.String()).
		Uint64("capacity", dep.Capacity).
		Uint64("unit_price", dep.UnitPrice).
		Int("alloc", len(balances)).
		Msg("Contract deployed")
	return h, nil
}

// Open opens a contract previously written by Deploy.
func Open(db storage.DB, dep *config.Deployment, opts ...Option) (*Host, error) {
	h, err := newHost(db, dep, opts)
	if err != nil {
		return nil, err
	}
	if err := h.load(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Host) load() error {
	stored, err := h.stateDB.Get(keyDeployment)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotDeployed
	}
	if err != nil {
		return fmt.Errorf("read deployment hash: %w", err)
	}
	if string(stored) != string(h.deployHash[:]) {
		return fmt.Errorf("%w: stored %x, have %s", ErrDeploymentMismatch, stored, h.deployHash)
	}
	data, err := h.stateDB.Get(keyState)
	if err != nil {
		return fmt.Errorf("read contract state: %w", err)
	}
	var st contract.State
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decode contract state: %w", err)
	}
	if err := h.verifyTokens(st.Collection); err != nil {
		return err
	}
	h.state = st
	return nil
}

// verifyTokens checks that the token records run from the first id to
// NextID-1 without gaps and that their count matches Minted.
func (h *Host) verifyTokens(c contract.Collection) error {
	want := contract.FirstTokenID
	err := h.tokens.ForEach(func(t contract.Token) error {
		if t.ID != want {
			return fmt.Errorf("%w: token %d found where %d expected", ErrCorruptState, t.ID, want)
		}
		want++
		return nil
	})
	if err != nil {
		return err
	}
	if n := want - contract.FirstTokenID; n != c.Minted || want != c.NextID {
		return fmt.Errorf("%w: %d token records, collection minted %d next %d", ErrCorruptState, n, c.Minted, c.NextID)
	}
	return nil
}

func hash32(h types.Hash) []byte {
	return append([]byte(nil), h[:]...)
}

func putState(b storage.Batch, st contract.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode contract state: %w", err)
	}
	return b.Put(keyState, data)
}

// Execute authenticates and runs a signed call. A call that returns an
// error has written nothing, its nonce included.
func (h *Host) Execute(call *Call) (*Receipt, error) {
	caller, err := call.Verify(h.deployHash)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	batch := h.db.NewBatch()
	ledger := h.bank.Begin(h.bankDB.Wrap(batch))

	last, err := ledger.Nonce(caller)
	if err != nil {
		return nil, err
	}
	if call.Nonce != last+1 {
		return nil, fmt.Errorf("%w: need %d, got %d", ErrBadNonce, last+1, call.Nonce)
	}
	if err := ledger.SetNonce(caller, call.Nonce); err != nil {
		return nil, err
	}
	if call.Deposit > 0 {
		if err := ledger.Move(caller, h.account, call.Deposit); err != nil {
			return nil, err
		}
	}

	rcpt := &Receipt{Method: call.Method, Caller: caller, Nonce: call.Nonce}
	var (
		next      contract.State
		transfers []contract.Transfer
		events    []contract.Event
	)
	switch call.Method {
	case MethodBuy:
		next, transfers, events, err = h.buy(batch, rcpt, caller, call)
	case MethodDistributeIncome:
		next, transfers, events, err = h.distribute(rcpt, call)
	case MethodNFTTransfer:
		next, events, err = h.nftTransfer(batch, rcpt, caller, call)
	case MethodNFTApprove, MethodNFTRevoke, MethodNFTRevokeAll:
		next, err = h.state, h.nftApproval(batch, rcpt, caller, call)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownMethod, call.Method)
	}
	if err != nil {
		h.logger.Debug().Err(err).Str("method", call.Method).Str("caller", caller.String()).Msg("Call rejected")
		return nil, err
	}

	if err := putState(h.stateDB.Wrap(batch), next); err != nil {
		return nil, err
	}
	if err := batch.Commit(); err != nil {
		return nil, fmt.Errorf("commit %s: %w", call.Method, err)
	}
	h.state = next

	h.logger.Info().
		Str("method", call.Method).
		Str("caller", caller.String()).
		Uint64("nonce", call.Nonce).
		Uint64("deposit", call.Deposit).
		Msg("Call executed")
	h.emit(events)
	h.settle(rcpt, transfers)
	return rcpt, nil
}

func (h *Host) buy(batch storage.Batch, rcpt *Receipt, caller types.Address, call *Call) (contract.State, []contract.Transfer, []contract.Event, error) {
	var args BuyArgs
	if err := decodeArgs(call.Args, &args); err != nil {
		return h.state, nil, nil, err
	}
	next, res, err := h.contract.Buy(h.state, caller, call.Deposit, int64(args.N))
	if err != nil {
		return h.state, nil, nil, err
	}
	issued := h.now()
	for i := range res.Tokens {
		res.Tokens[i].Metadata = contract.NewTokenMetadata(res.Tokens[i].ID, issued)
	}
	if err := h.tokens.StageMint(h.tokenDB.Wrap(batch), res.Tokens); err != nil {
		return h.state, nil, nil, err
	}
	rcpt.Buy = res
	return next, res.Transfers, res.Events, nil
}

func (h *Host) distribute(rcpt *Receipt, call *Call) (contract.State, []contract.Transfer, []contract.Event, error) {
	if call.Deposit != 0 {
		return h.state, nil, nil, fmt.Errorf("%w: %s", ErrUnexpectedDeposit, call.Method)
	}
	var args struct{}
	if err := decodeArgs(call.Args, &args); err != nil {
		return h.state, nil, nil, err
	}
	next, d := h.contract.DistributeIncome(h.state)
	rcpt.Distribution = d
	var events []contract.Event
	if len(d.Payouts) > 0 {
		events = append(events, contract.NewIncomeEvent(d))
	}
	return next, d.Payouts, events, nil
}

func (h *Host) nftTransfer(batch storage.Batch, rcpt *Receipt, caller types.Address, call *Call) (contract.State, []contract.Event, error) {
	if call.Deposit != 0 {
		return h.state, nil, fmt.Errorf("%w: %s", ErrUnexpectedDeposit, call.Method)
	}
	var args TransferArgs
	if err := decodeArgs(call.Args, &args); err != nil {
		return h.state, nil, err
	}
	if args.ReceiverID.IsZero() {
		return h.state, nil, fmt.Errorf("%w: receiver_id is required", ErrBadArgs)
	}
	tok, err := h.tokens.Get(args.TokenID)
	if err != nil {
		return h.state, nil, err
	}
	approvals, err := h.tokens.Approvals(tok.ID)
	if err != nil {
		return h.state, nil, err
	}
	if err := contract.AuthorizeTransfer(tok.Owner, caller, approvals, args.ApprovalID); err != nil {
		return h.state, nil, fmt.Errorf("token %d: %w", tok.ID, err)
	}
	if args.ReceiverID == tok.Owner {
		return h.state, nil, ErrSelfTransfer
	}
	owner := tok.Owner
	moved, err := h.tokens.StageTransfer(h.tokenDB.Wrap(batch), *tok, args.ReceiverID)
	if err != nil {
		return h.state, nil, err
	}
	rcpt.Token = &moved
	var authorized *types.Address
	if caller != owner {
		authorized = &caller
	}
	ev := contract.NewTransferEvent(owner, args.ReceiverID, moved.ID, args.Memo, authorized)
	return h.state, []contract.Event{ev}, nil
}

// nftApproval grants or revokes transfer approvals. Only the owner may
// change them; none of these methods accept a deposit.
func (h *Host) nftApproval(batch storage.Batch, rcpt *Receipt, caller types.Address, call *Call) error {
	if call.Deposit != 0 {
		return fmt.Errorf("%w: %s", ErrUnexpectedDeposit, call.Method)
	}
	var args RevokeArgs
	var msg string
	if call.Method == MethodNFTApprove {
		var a ApproveArgs
		if err := decodeArgs(call.Args, &a); err != nil {
			return err
		}
		args, msg = RevokeArgs{TokenID: a.TokenID, AccountID: a.AccountID}, a.Msg
	} else if err := decodeArgs(call.Args, &args); err != nil {
		return err
	}
	if call.Method != MethodNFTRevokeAll && args.AccountID.IsZero() {
		return fmt.Errorf("%w: account_id is required", ErrBadArgs)
	}

	tok, err := h.tokens.Get(args.TokenID)
	if err != nil {
		return err
	}
	if tok.Owner != caller {
		return fmt.Errorf("%w: token %d", ErrNotOwner, tok.ID)
	}
	if call.Method == MethodNFTApprove && args.AccountID == caller {
		return fmt.Errorf("%w: owner cannot approve itself", ErrBadArgs)
	}
	approvals, err := h.tokens.Approvals(tok.ID)
	if err != nil {
		return err
	}

	switch call.Method {
	case MethodNFTApprove:
		approvals, rcpt.ApprovalID = approvals.Approve(args.AccountID)
		h.logger.Debug().
			Uint64("token", tok.ID).
			Str("account", args.AccountID.String()).
			Uint64("approval_id", rcpt.ApprovalID).
			Str("msg", msg).
			Msg("Token approved")
	case MethodNFTRevoke:
		approvals = approvals.Revoke(args.AccountID)
	default:
		approvals = approvals.RevokeAll()
	}
	if err := h.tokens.StageApprovals(h.tokenDB.Wrap(batch), tok.ID, approvals); err != nil {
		return err
	}
	tok.Approvals = approvals.Accounts
	rcpt.Token = tok
	return nil
}

// settle executes transfers one by one. A failure is recorded and logged;
// it never affects the other transfers or the committed state.
func (h *Host) settle(rcpt *Receipt, transfers []contract.Transfer) {
	rcpt.Transfers = []contract.Transfer{}
	for _, t := range transfers {
		if err := h.transfer(h.account, t.To, t.Amount); err != nil {
			h.logger.Warn().
				Err(err).
				Str("kind", string(t.Kind)).
				Str("to", t.To.String()).
				Uint64("amount", t.Amount).
				Msg("Transfer failed")
			rcpt.Failed = append(rcpt.Failed, TransferFailure{Transfer: t, Error: err.Error()})
			continue
		}
		rcpt.Transfers = append(rcpt.Transfers, t)
	}
}

func (h *Host) emit(events []contract.Event) {
	for _, ev := range events {
		raw, err := ev.JSON()
		if err != nil {
			h.logger.Error().Err(err).Str("event", ev.Event).Msg("Encode event")
			continue
		}
		log.Event(h.events, ev.Event, raw)
	}
}
