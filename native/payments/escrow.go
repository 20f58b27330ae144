package payments

import (
	"errors"
	"fmt"
	"math/big"

	coreerrors "crowdfund/core/errors"
	"crowdfund/core/events"
	nativecommon "crowdfund/native/common"
)

var (
	errNilState = errors.New("payments: state not configured")

	ErrInvalidPayee      = fmt.Errorf("%w: payee must not be the zero address", coreerrors.ErrInvalidRecipient)
	ErrInvalidAmount     = fmt.Errorf("%w: credit amount must not be negative", coreerrors.ErrValueMismatch)
	ErrNothingToWithdraw = fmt.Errorf("%w: no queued credit", coreerrors.ErrStateConflict)
)

type escrowState interface {
	PaymentCreditGet(payee [20]byte) (*big.Int, error)
	PaymentCreditPut(payee [20]byte, amount *big.Int) error
}

// Escrow holds pull-payment credits owed by a campaign instance. Payees
// withdraw their accumulated credit themselves; moving the value out of the
// node is the caller's concern.
type Escrow struct {
	state   escrowState
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

// NewEscrow returns an escrow with a no-op emitter.
func NewEscrow() *Escrow {
	return &Escrow{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend.
func (e *Escrow) SetState(state escrowState) { e.state = state }

// SetPauses configures the module circuit breaker. It only applies to
// withdrawals; crediting always succeeds so refunds and completions are never
// blocked by it.
func (e *Escrow) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Escrow) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// QueueCredit adds amount to the credit owed to payee. Zero amounts are
// accepted and ignored.
func (e *Escrow) QueueCredit(payee [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	var zero [20]byte
	if payee == zero {
		return ErrInvalidPayee
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	balance, err := e.state.PaymentCreditGet(payee)
	if err != nil {
		return err
	}
	balance = new(big.Int).Add(balance, amount)
	if err := e.state.PaymentCreditPut(payee, balance); err != nil {
		return err
	}
	e.emitter.Emit(events.CreditQueued{
		Payee:   payee,
		Amount:  new(big.Int).Set(amount),
		Balance: new(big.Int).Set(balance),
	})
	return nil
}

// PaymentsOf returns the credit currently owed to payee.
func (e *Escrow) PaymentsOf(payee [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.PaymentCreditGet(payee)
}

// Withdraw clears the credit owed to payee and returns it.
func (e *Escrow) Withdraw(payee [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, nativecommon.ModulePayments); err != nil {
		return nil, err
	}
	balance, err := e.state.PaymentCreditGet(payee)
	if err != nil {
		return nil, err
	}
	if balance.Sign() == 0 {
		return nil, ErrNothingToWithdraw
	}
	if err := e.state.PaymentCreditPut(payee, big.NewInt(0)); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.Withdrawn{Payee: payee, Amount: new(big.Int).Set(balance)})
	return balance, nil
}
