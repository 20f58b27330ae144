// Package errors defines the failure classes shared by the campaign engines.
// Every specific error returned by the ledger, the spending workflow and the
// payments escrow wraps exactly one of these classes.
package errors

import stderrors "errors"

var (
	ErrTimingViolation   = stderrors.New("timing violation")
	ErrValueMismatch     = stderrors.New("value mismatch")
	ErrUnauthorized      = stderrors.New("authorization failure")
	ErrStateConflict     = stderrors.New("state conflict")
	ErrInsufficientFunds = stderrors.New("insufficient funds")
	ErrInvalidRecipient  = stderrors.New("invalid recipient")
)

// Class labels err with the name of the class it wraps, or "internal" when it
// wraps none of them.
func Class(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, ErrTimingViolation):
		return "timing"
	case stderrors.Is(err, ErrValueMismatch):
		return "value"
	case stderrors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case stderrors.Is(err, ErrStateConflict):
		return "state"
	case stderrors.Is(err, ErrInsufficientFunds):
		return "funds"
	case stderrors.Is(err, ErrInvalidRecipient):
		return "recipient"
	default:
		return "internal"
	}
}
