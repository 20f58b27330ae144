package campaign

import (
	"math/big"
	"time"

	"crowdfund/core/events"
	nativecommon "crowdfund/native/common"
)

type ledgerState interface {
	CampaignParamsGet() (*Params, bool, error)
	CampaignCountersGet() (*Counters, error)
	CampaignCountersPut(*Counters) error
	CampaignContributionGet(addr [20]byte) (*big.Int, error)
	CampaignContributionPut(addr [20]byte, amount *big.Int) error
}

// CreditQueue records a pull-payment credit for later withdrawal by payee.
type CreditQueue interface {
	QueueCredit(payee [20]byte, amount *big.Int) error
}

// Ledger owns the pooled-fund accounting of one campaign instance: the
// aggregate counters and the per-contributor balances. It is not safe for
// concurrent use; callers serialise operations per instance.
type Ledger struct {
	state   ledgerState
	escrow  CreditQueue
	emitter events.Emitter
	pauses  nativecommon.PauseView
	guard   *nativecommon.ReentrancyGuard
	nowFn   func() int64
}

// NewLedger constructs a ledger with a no-op emitter, the wall clock and its
// own reentrancy guard.
func NewLedger() *Ledger {
	return &Ledger{
		emitter: events.NoopEmitter{},
		guard:   new(nativecommon.ReentrancyGuard),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetEscrow configures the pull-payment collaborator that receives refunds.
func (l *Ledger) SetEscrow(escrow CreditQueue) { l.escrow = escrow }

// SetPauses configures the module circuit breaker.
func (l *Ledger) SetPauses(p nativecommon.PauseView) { l.pauses = p }

// SetEmitter configures the event emitter used by the ledger. Passing nil
// resets the emitter to a no-op implementation.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (l *Ledger) SetNowFunc(now func() int64) {
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

// Guard returns the instance-wide reentrancy guard. The spending workflow
// shares it so that refunds and completions exclude each other.
func (l *Ledger) Guard() *nativecommon.ReentrancyGuard { return l.guard }

// Now returns the ledger clock.
func (l *Ledger) Now() int64 {
	if l == nil || l.nowFn == nil {
		return time.Now().Unix()
	}
	return l.nowFn()
}

func (l *Ledger) emit(evt events.Event) {
	if l == nil || l.emitter == nil || evt == nil {
		return
	}
	l.emitter.Emit(evt)
}

// Params returns a copy of the campaign parameters.
func (l *Ledger) Params() (*Params, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	params, ok, err := l.state.CampaignParamsGet()
	if err != nil {
		return nil, err
	}
	if !ok || params == nil {
		return nil, ErrCampaignNotConfigured
	}
	return params.Clone(), nil
}

func (l *Ledger) counters() (*Counters, error) {
	counters, err := l.state.CampaignCountersGet()
	if err != nil {
		return nil, err
	}
	return counters.Clone(), nil
}

// Summary returns the params together with a snapshot of the counters.
func (l *Ledger) Summary() (*Summary, error) {
	params, err := l.Params()
	if err != nil {
		return nil, err
	}
	counters, err := l.counters()
	if err != nil {
		return nil, err
	}
	return &Summary{Params: params, Counters: counters}, nil
}

// BalanceOf returns the recorded contribution of addr. Zero means the
// principal never contributed or has been refunded.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	balance, err := l.state.CampaignContributionGet(addr)
	if err != nil {
		return nil, err
	}
	return newBigInt(balance), nil
}

// Contribute records amount from sender. value is the amount actually
// attached to the call and must equal amount.
func (l *Ledger) Contribute(sender [20]byte, amount, value *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(l.pauses, nativecommon.ModuleCampaign); err != nil {
		return err
	}
	params, err := l.Params()
	if err != nil {
		return err
	}
	now := l.Now()
	if now <= params.StartsAt {
		return ErrCampaignNotStarted
	}
	if now >= params.EndsAt {
		return ErrCampaignEnded
	}
	amt := newBigInt(amount)
	if value == nil || amt.Cmp(value) != 0 {
		return ErrAmountMismatch
	}
	if amt.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if amt.Cmp(params.MinContribution) < 0 {
		return ErrBelowMinContribution
	}
	counters, err := l.counters()
	if err != nil {
		return err
	}
	balance, err := l.BalanceOf(sender)
	if err != nil {
		return err
	}
	if balance.Sign() == 0 {
		counters.ContributorsCount++
	}
	balance.Add(balance, amt)
	counters.Raised.Add(counters.Raised, amt)
	counters.Held.Add(counters.Held, amt)
	if err := l.state.CampaignContributionPut(sender, balance); err != nil {
		return err
	}
	if err := l.state.CampaignCountersPut(counters); err != nil {
		return err
	}
	l.emit(events.Contribution{Contributor: sender, Amount: new(big.Int).Set(amt), Timestamp: now})
	return nil
}

// Refund queues the sender's full contribution back to them. Refunds are open
// from the start of the campaign until its end, and indefinitely afterwards
// when the funding goal was missed. The balance and counters are updated
// before the escrow is called, under the instance reentrancy guard.
func (l *Ledger) Refund(sender [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	if l.escrow == nil {
		return nil, errNilEscrow
	}
	if err := nativecommon.Guard(l.pauses, nativecommon.ModuleCampaign); err != nil {
		return nil, err
	}
	release, err := l.guard.Enter()
	if err != nil {
		return nil, err
	}
	defer release()

	params, err := l.Params()
	if err != nil {
		return nil, err
	}
	counters, err := l.counters()
	if err != nil {
		return nil, err
	}
	now := l.Now()
	if now <= params.StartsAt {
		return nil, ErrCampaignNotStarted
	}
	if now >= params.EndsAt && counters.Raised.Cmp(params.MinFundingGoal) >= 0 {
		return nil, ErrRefundWindowClosed
	}
	amount, err := l.BalanceOf(sender)
	if err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return nil, ErrNothingToRefund
	}
	if counters.Held.Cmp(amount) < 0 {
		return nil, ErrInsufficientHoldings
	}

	counters.Refunded.Add(counters.Refunded, amount)
	counters.Held.Sub(counters.Held, amount)
	if counters.ContributorsCount > 0 {
		counters.ContributorsCount--
	}
	if err := l.state.CampaignContributionPut(sender, big.NewInt(0)); err != nil {
		return nil, err
	}
	if err := l.state.CampaignCountersPut(counters); err != nil {
		return nil, err
	}
	if err := l.escrow.QueueCredit(sender, new(big.Int).Set(amount)); err != nil {
		return nil, err
	}
	l.emit(events.Refund{Contributor: sender, Amount: new(big.Int).Set(amount), Timestamp: now})
	return amount, nil
}

// FinalizeCampaign refreshes the pending balance after the campaign ended. It
// may be called by anyone, any number of times. The pending balance becomes
// the held balance minus the value already reserved by approved requests, so
// a refresh never releases a reservation.
func (l *Ledger) FinalizeCampaign() (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(l.pauses, nativecommon.ModuleCampaign); err != nil {
		return nil, err
	}
	params, err := l.Params()
	if err != nil {
		return nil, err
	}
	now := l.Now()
	if now <= params.EndsAt {
		return nil, ErrCampaignInProgress
	}
	counters, err := l.counters()
	if err != nil {
		return nil, err
	}
	pending := new(big.Int).Sub(counters.Held, counters.Reserved)
	if pending.Sign() < 0 {
		pending = big.NewInt(0)
	}
	counters.PendingBalance = pending
	if err := l.state.CampaignCountersPut(counters); err != nil {
		return nil, err
	}
	l.emit(events.CampaignFinalized{
		PendingBalance: new(big.Int).Set(pending),
		Held:           new(big.Int).Set(counters.Held),
		Timestamp:      now,
	})
	return new(big.Int).Set(pending), nil
}

// PendingBalance returns the live pending balance.
func (l *Ledger) PendingBalance() (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	counters, err := l.counters()
	if err != nil {
		return nil, err
	}
	return counters.PendingBalance, nil
}

// HeldBalance returns the value the instance currently holds.
func (l *Ledger) HeldBalance() (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	counters, err := l.counters()
	if err != nil {
		return nil, err
	}
	return counters.Held, nil
}

// NextRequestKey allocates the next spending request key. Keys start at zero
// and are never reused.
func (l *Ledger) NextRequestKey() (uint64, error) {
	if l == nil || l.state == nil {
		return 0, errNilState
	}
	counters, err := l.counters()
	if err != nil {
		return 0, err
	}
	key := counters.SpendingRequestsCount
	counters.SpendingRequestsCount++
	if err := l.state.CampaignCountersPut(counters); err != nil {
		return 0, err
	}
	return key, nil
}

// ReservePending debits value from the live pending balance and moves it to
// the reserved total. It fails without side effects when value exceeds the
// pending balance.
func (l *Ledger) ReservePending(value *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	counters, err := l.counters()
	if err != nil {
		return err
	}
	amt := newBigInt(value)
	if amt.Cmp(counters.PendingBalance) > 0 {
		return ErrInsufficientPending
	}
	counters.PendingBalance.Sub(counters.PendingBalance, amt)
	counters.Reserved.Add(counters.Reserved, amt)
	return l.state.CampaignCountersPut(counters)
}

// RecordSpend accounts for a completed request: value leaves the holdings and
// its reservation is released. It fails when the instance holds less than
// value.
func (l *Ledger) RecordSpend(value *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	counters, err := l.counters()
	if err != nil {
		return err
	}
	amt := newBigInt(value)
	if amt.Cmp(counters.Held) > 0 {
		return ErrInsufficientHoldings
	}
	if amt.Cmp(counters.Reserved) > 0 {
		return ErrReservationUnderflow
	}
	counters.Spent.Add(counters.Spent, amt)
	counters.Held.Sub(counters.Held, amt)
	counters.Reserved.Sub(counters.Reserved, amt)
	return l.state.CampaignCountersPut(counters)
}
