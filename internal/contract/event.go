package contract

import (
	"encoding/json"
	"strconv"

	"github.com/Klingon-tech/mysterybox/pkg/types"
)

// Event standards and versions.
const (
	NFTStandard    = "nep171"
	NFTVersion     = "1.0.0"
	IncomeStandard = "mysterybox"
	IncomeVersion  = "1.0.0"
)

// Event kinds.
const (
	EventMint     = "nft_mint"
	EventTransfer = "nft_transfer"
	EventIncome   = "income_distributed"
)

// Event is a structured log record describing a state change.
type Event struct {
	Standard string `json:"standard"`
	Version  string `json:"version"`
	Event    string `json:"event"`
	Data     any    `json:"data"`
}

// MintData is the payload of an nft_mint event.
type MintData struct {
	OwnerID  types.Address `json:"owner_id"`
	TokenIDs []string      `json:"token_ids"`
	Memo     string        `json:"memo,omitempty"`
}

// TransferData is the payload of an nft_transfer event.
type TransferData struct {
	// AuthorizedID is set when an approved account moved the token.
	AuthorizedID *types.Address `json:"authorized_id,omitempty"`
	OldOwnerID   types.Address  `json:"old_owner_id"`
	NewOwnerID types.Address `json:"new_owner_id"`
	TokenIDs   []string      `json:"token_ids"`
	Memo       string        `json:"memo,omitempty"`
}

// JSON encodes the event.
func (e Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}

func tokenIDStrings(ids ...uint64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatUint(id, 10)
	}
	return out
}

// NewMintEvent records tokens minted to owner.
func NewMintEvent(owner types.Address, tokens []Token) Event {
	ids := make([]uint64, len(tokens))
	for i, t := range tokens {
		ids[i] = t.ID
	}
	return Event{
		Standard: NFTStandard,
		Version:  NFTVersion,
		Event:    EventMint,
		Data:     []MintData{{OwnerID: owner, TokenIDs: tokenIDStrings(ids...)}},
	}
}

// NewTransferEvent records a token changing hands. authorized is the
// approved sender, or nil when the owner sent it.
func NewTransferEvent(from, to types.Address, tokenID uint64, memo string, authorized *types.Address) Event {
	return Event{
		Standard: NFTStandard,
		Version:  NFTVersion,
		Event:    EventTransfer,
		Data: []TransferData{{
			AuthorizedID: authorized,
			OldOwnerID:   from,
			NewOwnerID: to,
			TokenIDs:   tokenIDStrings(tokenID),
			Memo:       memo,
		}},
	}
}

// NewIncomeEvent records a distribution cycle.
func NewIncomeEvent(d *Distribution) Event {
	return Event{
		Standard: IncomeStandard,
		Version:  IncomeVersion,
		Event:    EventIncome,
		Data:     []*Distribution{d},
	}
}
