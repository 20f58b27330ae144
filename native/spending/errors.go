package spending

import (
	"errors"
	"fmt"

	coreerrors "crowdfund/core/errors"
)

var (
	errNilState  = errors.New("spending workflow: state not configured")
	errNilLedger = errors.New("spending workflow: ledger not configured")
	errNilRoles  = errors.New("spending workflow: roles not configured")
	errNilEscrow = errors.New("spending workflow: escrow not configured")

	ErrNotManager         = fmt.Errorf("%w: caller is not a campaign manager", coreerrors.ErrUnauthorized)
	ErrNotReviewer        = fmt.Errorf("%w: caller is not a campaign reviewer", coreerrors.ErrUnauthorized)
	ErrZeroRecipient      = fmt.Errorf("%w: recipient must not be the zero address", coreerrors.ErrInvalidRecipient)
	ErrInvalidValue       = fmt.Errorf("%w: value must not be negative", coreerrors.ErrValueMismatch)
	ErrRequestNotFound    = fmt.Errorf("%w: spending request not found", coreerrors.ErrStateConflict)
	ErrRequestNotPending  = fmt.Errorf("%w: spending request is not pending", coreerrors.ErrStateConflict)
	ErrRequestNotApproved = fmt.Errorf("%w: spending request is not approved", coreerrors.ErrStateConflict)
	ErrAlreadyVoted       = fmt.Errorf("%w: reviewer already voted", coreerrors.ErrStateConflict)
)
