package campaign

import (
	"errors"
	"fmt"

	coreerrors "crowdfund/core/errors"
)

var (
	errNilState  = errors.New("campaign ledger: state not configured")
	errNilEscrow = errors.New("campaign ledger: escrow not configured")

	ErrCampaignNotStarted    = fmt.Errorf("%w: campaign has not started", coreerrors.ErrTimingViolation)
	ErrCampaignEnded         = fmt.Errorf("%w: campaign has ended", coreerrors.ErrTimingViolation)
	ErrCampaignInProgress    = fmt.Errorf("%w: campaign still in progress", coreerrors.ErrTimingViolation)
	ErrRefundWindowClosed    = fmt.Errorf("%w: funding goal reached, refunds closed", coreerrors.ErrTimingViolation)
	ErrAmountMismatch        = fmt.Errorf("%w: attached value does not match amount", coreerrors.ErrValueMismatch)
	ErrBelowMinContribution  = fmt.Errorf("%w: amount below minimum contribution", coreerrors.ErrValueMismatch)
	ErrInvalidAmount         = fmt.Errorf("%w: amount must be positive", coreerrors.ErrValueMismatch)
	ErrNothingToRefund       = fmt.Errorf("%w: no contribution to refund", coreerrors.ErrStateConflict)
	ErrInsufficientPending   = fmt.Errorf("%w: value exceeds pending balance", coreerrors.ErrInsufficientFunds)
	ErrInsufficientHoldings  = fmt.Errorf("%w: value exceeds held balance", coreerrors.ErrInsufficientFunds)
	ErrReservationUnderflow  = fmt.Errorf("%w: release exceeds reserved balance", coreerrors.ErrStateConflict)
	ErrCampaignNotConfigured = fmt.Errorf("%w: campaign params not found", coreerrors.ErrStateConflict)
)
