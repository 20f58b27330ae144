package events

import (
	"math/big"
	"strconv"

	"crowdfund/core/types"
	"crowdfund/crypto"
)

// TypeSpendingRequestState is emitted with a full snapshot of a spending
// request after every state change, including its creation.
const TypeSpendingRequestState = "spending.request.state"

// SpendingRequestState snapshots a spending request after a transition.
type SpendingRequestState struct {
	Key             uint64
	Description     string
	Recipient       [20]byte
	Value           *big.Int
	ApprovalsCount  uint64
	RejectionsCount uint64
	Status          string
	Actor           [20]byte
	Timestamp       int64
}

// EventType satisfies the events.Event interface.
func (SpendingRequestState) EventType() string { return TypeSpendingRequestState }

// Event converts the snapshot into a wire-friendly representation.
func (e SpendingRequestState) Event() *types.Event {
	return &types.Event{
		Type: TypeSpendingRequestState,
		Attributes: map[string]string{
			"key":             strconv.FormatUint(e.Key, 10),
			"description":     e.Description,
			"recipient":       crypto.Format(crypto.PrincipalPrefix, e.Recipient),
			"value":           formatAmount(e.Value),
			"approvalsCount":  strconv.FormatUint(e.ApprovalsCount, 10),
			"rejectionsCount": strconv.FormatUint(e.RejectionsCount, 10),
			"status":          e.Status,
			"actor":           crypto.Format(crypto.PrincipalPrefix, e.Actor),
			"timestamp":       intToString(e.Timestamp),
		},
	}
}
