package payments

import (
	"errors"
	"math/big"
	"testing"

	coreerrors "crowdfund/core/errors"
	"crowdfund/core/events"
	nativecommon "crowdfund/native/common"
)

type mockState struct {
	credits map[[20]byte]*big.Int
}

func (m *mockState) PaymentCreditGet(payee [20]byte) (*big.Int, error) {
	if v, ok := m.credits[payee]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) PaymentCreditPut(payee [20]byte, amount *big.Int) error {
	m.credits[payee] = new(big.Int).Set(amount)
	return nil
}

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func newTestEscrow() (*Escrow, *captureEmitter) {
	escrow := NewEscrow()
	escrow.SetState(&mockState{credits: make(map[[20]byte]*big.Int)})
	emitter := &captureEmitter{}
	escrow.SetEmitter(emitter)
	return escrow, emitter
}

func TestQueueCreditAccumulates(t *testing.T) {
	escrow, emitter := newTestEscrow()
	payee := [20]byte{0x01}

	if err := escrow.QueueCredit(payee, big.NewInt(30)); err != nil {
		t.Fatalf("queue: %v", err)
	}
	if err := escrow.QueueCredit(payee, big.NewInt(12)); err != nil {
		t.Fatalf("queue: %v", err)
	}
	if err := escrow.QueueCredit(payee, big.NewInt(0)); err != nil {
		t.Fatalf("zero credit: %v", err)
	}
	balance, err := escrow.PaymentsOf(payee)
	if err != nil {
		t.Fatalf("payments of: %v", err)
	}
	if balance.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("expected 42, got %s", balance)
	}
	if len(emitter.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(emitter.events))
	}
	evt := emitter.events[1].(events.CreditQueued)
	if evt.Balance.Cmp(big.NewInt(42)) != 0 || evt.Amount.Cmp(big.NewInt(12)) != 0 {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestQueueCreditValidation(t *testing.T) {
	escrow, _ := newTestEscrow()
	if err := escrow.QueueCredit([20]byte{}, big.NewInt(1)); !errors.Is(err, coreerrors.ErrInvalidRecipient) {
		t.Fatalf("expected invalid recipient, got %v", err)
	}
	if err := escrow.QueueCredit([20]byte{0x01}, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestWithdraw(t *testing.T) {
	escrow, emitter := newTestEscrow()
	payee := [20]byte{0x02}
	if err := escrow.QueueCredit(payee, big.NewInt(25)); err != nil {
		t.Fatalf("queue: %v", err)
	}
	amount, err := escrow.Withdraw(payee)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("expected 25, got %s", amount)
	}
	if _, ok := emitter.events[len(emitter.events)-1].(events.Withdrawn); !ok {
		t.Fatalf("expected withdrawn event")
	}
	if _, err := escrow.Withdraw(payee); !errors.Is(err, ErrNothingToWithdraw) {
		t.Fatalf("expected ErrNothingToWithdraw, got %v", err)
	}
}

func TestWithdrawPaused(t *testing.T) {
	escrow, _ := newTestEscrow()
	payee := [20]byte{0x03}
	escrow.SetPauses(nativecommon.StaticPauses{nativecommon.ModulePayments: true})
	if err := escrow.QueueCredit(payee, big.NewInt(5)); err != nil {
		t.Fatalf("crediting must ignore the pause: %v", err)
	}
	if _, err := escrow.Withdraw(payee); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
}
