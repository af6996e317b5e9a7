package host

import "errors"

var (
	ErrNotDeployed        = errors.New("contract not deployed")
	ErrDeploymentMismatch = errors.New("state belongs to a different deployment")
	ErrCorruptState       = errors.New("stored state is inconsistent")
	ErrBadSignature       = errors.New("bad signature")
	ErrBadNonce           = errors.New("bad nonce")
	ErrUnknownMethod      = errors.New("unknown method")
	ErrBadArgs            = errors.New("bad arguments")
	ErrUnexpectedDeposit  = errors.New("method does not accept a deposit")
	ErrNotOwner           = errors.New("caller does not own token")
	ErrSelfTransfer       = errors.New("current and next owner must differ")
)
