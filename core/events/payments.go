package events

import (
	"math/big"

	"crowdfund/core/types"
	"crowdfund/crypto"
)

const (
	// TypeCreditQueued is emitted when a pull-payment credit is recorded for a
	// payee.
	TypeCreditQueued = "payments.credit.queued"
	// TypeWithdrawn is emitted when a payee drains their accumulated credits.
	TypeWithdrawn = "payments.withdrawn"
)

// CreditQueued represents value owed to Payee that they may withdraw later.
type CreditQueued struct {
	Payee   [20]byte
	Amount  *big.Int
	Balance *big.Int
}

// EventType satisfies the events.Event interface.
func (CreditQueued) EventType() string { return TypeCreditQueued }

// Event converts the structured payload into a wire-friendly representation.
func (e CreditQueued) Event() *types.Event {
	return &types.Event{
		Type: TypeCreditQueued,
		Attributes: map[string]string{
			"payee":   crypto.Format(crypto.PrincipalPrefix, e.Payee),
			"amount":  formatAmount(e.Amount),
			"balance": formatAmount(e.Balance),
		},
	}
}

// Withdrawn records a completed withdrawal of every queued credit.
type Withdrawn struct {
	Payee  [20]byte
	Amount *big.Int
}

// EventType satisfies the events.Event interface.
func (Withdrawn) EventType() string { return TypeWithdrawn }

// Event converts the structured payload into a wire-friendly representation.
func (e Withdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeWithdrawn,
		Attributes: map[string]string{
			"payee":  crypto.Format(crypto.PrincipalPrefix, e.Payee),
			"amount": formatAmount(e.Amount),
		},
	}
}
