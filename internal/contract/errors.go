package contract

import "errors"

// Contract errors. Callers match them with errors.Is; the wrapped text
// carries the amounts involved.
var (
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInsufficientDeposit  = errors.New("E03: no enough deposit")
	ErrSupplyExhausted      = errors.New("E01: no enough tokens to draw")
	ErrUnknownToken         = errors.New("E04: token not exist")
	ErrInvalidRoyaltyConfig = errors.New("invalid royalty config")
	ErrInvalidMetadata      = errors.New("invalid metadata")
	ErrInvalidConfig        = errors.New("invalid contract config")
	ErrAmountOverflow       = errors.New("amount overflow")
	ErrNotApproved          = errors.New("sender is neither owner nor approved")
	ErrApprovalMismatch     = errors.New("approval id does not match")
)
