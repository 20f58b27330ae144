package core

import (
	"log/slog"
	"math/big"
	"sync"

	coreerrors "crowdfund/core/errors"
	"crowdfund/core/events"
	"crowdfund/core/state"
	"crowdfund/core/types"
	"crowdfund/crypto"
	"crowdfund/native/campaign"
	nativecommon "crowdfund/native/common"
	"crowdfund/native/payments"
	"crowdfund/native/spending"
	"crowdfund/observability/metrics"
)

// Operation names used in logs and metrics.
const (
	OpContribute = "contribute"
	OpRefund     = "refund"
	OpFinalize   = "finalize"
	OpCreate     = "spending_create"
	OpAccept     = "spending_accept"
	OpReject     = "spending_reject"
	OpComplete   = "spending_complete"
	OpWithdraw   = "payments_withdraw"
)

// Instance is one campaign deployment: its ledger, spending workflow and
// payments escrow over a namespaced view of the node state. Every operation
// holds the instance lock and is applied all-or-nothing: engine writes land in
// the state overlay and emitted records in a buffer, and both are kept only
// when the operation succeeds.
type Instance struct {
	mu sync.Mutex

	address [20]byte
	label   string
	state   *state.Manager

	ledger   *campaign.Ledger
	workflow *spending.Workflow
	escrow   *payments.Escrow

	buffer     *events.Buffer
	downstream events.Emitter
	logger     *slog.Logger
	metrics    *metrics.CampaignMetrics
}

func newInstance(addr [20]byte, mgr *state.Manager, logger *slog.Logger) *Instance {
	inst := &Instance{
		address:    addr,
		label:      crypto.Format(crypto.CampaignPrefix, addr),
		state:      mgr,
		ledger:     campaign.NewLedger(),
		workflow:   spending.NewWorkflow(),
		escrow:     payments.NewEscrow(),
		buffer:     &events.Buffer{},
		downstream: events.NoopEmitter{},
		metrics:    metrics.Campaign(),
	}
	if logger == nil {
		logger = slog.Default()
	}
	inst.logger = logger.With(slog.String("campaign", inst.label))

	inst.escrow.SetState(mgr)
	inst.escrow.SetEmitter(inst.buffer)

	inst.ledger.SetState(mgr)
	inst.ledger.SetEscrow(inst.escrow)
	inst.ledger.SetEmitter(inst.buffer)

	inst.workflow.SetState(mgr)
	inst.workflow.SetLedger(inst.ledger)
	inst.workflow.SetRoles(mgr)
	inst.workflow.SetEscrow(inst.escrow)
	inst.workflow.SetEmitter(inst.buffer)
	return inst
}

func (i *Instance) setPauses(p nativecommon.PauseView) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ledger.SetPauses(p)
	i.workflow.SetPauses(p)
	i.escrow.SetPauses(p)
}

func (i *Instance) setNowFunc(now func() int64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ledger.SetNowFunc(now)
}

func (i *Instance) setEmitter(emitter events.Emitter) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	i.downstream = emitter
}

// Address returns the raw instance address.
func (i *Instance) Address() [20]byte { return i.address }

// String returns the bech32 instance address.
func (i *Instance) String() string { return i.label }

// execute runs fn as one transaction. The caller must not hold i.mu.
func (i *Instance) execute(op string, fn func() error) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.buffer.Reset()
	if err := fn(); err != nil {
		i.rollback(op, err)
		return err
	}
	emitted := i.buffer.Drain()
	for _, evt := range emitted {
		payload := events.Render(evt)
		if payload == nil {
			continue
		}
		if _, err := i.state.AppendEvent(payload); err != nil {
			i.rollback(op, err)
			return err
		}
	}
	if err := i.state.Commit(); err != nil {
		i.rollback(op, err)
		return err
	}
	for _, evt := range emitted {
		i.observe(evt)
		i.downstream.Emit(evt)
	}
	if pending, err := i.ledger.PendingBalance(); err == nil {
		i.metrics.SetPendingBalance(i.label, pending)
	}
	i.logger.Debug("campaign operation committed",
		slog.String("operation", op),
		slog.Int("events", len(emitted)))
	return nil
}

func (i *Instance) rollback(op string, err error) {
	i.state.Discard()
	i.buffer.Reset()
	class := coreerrors.Class(err)
	i.metrics.ObserveRejected(op, class)
	i.logger.Info("campaign operation rejected",
		slog.String("operation", op),
		slog.String("class", class),
		slog.Any("error", err))
}

func (i *Instance) observe(evt events.Event) {
	i.metrics.ObservePublished(evt.EventType())
	switch e := evt.(type) {
	case events.Contribution:
		i.metrics.ObserveContribution(i.label, e.Amount)
	case events.Refund:
		i.metrics.ObserveRefund(i.label, e.Amount)
	case events.SpendingRequestState:
		i.metrics.ObserveRequestState(i.label, e.Status)
	}
}

// query runs a read-only fn under the instance lock.
func (i *Instance) query(fn func() error) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return fn()
}

// Contribute records amount from sender; value is the amount attached.
func (i *Instance) Contribute(sender [20]byte, amount, value *big.Int) error {
	return i.execute(OpContribute, func() error {
		return i.ledger.Contribute(sender, amount, value)
	})
}

// Refund queues sender's full contribution as a withdrawable credit.
func (i *Instance) Refund(sender [20]byte) (*big.Int, error) {
	var amount *big.Int
	err := i.execute(OpRefund, func() error {
		var err error
		amount, err = i.ledger.Refund(sender)
		return err
	})
	return amount, err
}

// Finalize refreshes the pending balance after the campaign ended.
func (i *Instance) Finalize() (*big.Int, error) {
	var pending *big.Int
	err := i.execute(OpFinalize, func() error {
		var err error
		pending, err = i.ledger.FinalizeCampaign()
		return err
	})
	return pending, err
}

// CreateSpendingRequest stores a new PENDING request and returns its key.
func (i *Instance) CreateSpendingRequest(caller [20]byte, description string, recipient [20]byte, value *big.Int) (uint64, error) {
	var key uint64
	err := i.execute(OpCreate, func() error {
		var err error
		key, err = i.workflow.CreateSpendingRequest(caller, description, recipient, value)
		return err
	})
	return key, err
}

// AcceptSpendingRequest records an approval vote from caller.
func (i *Instance) AcceptSpendingRequest(caller [20]byte, key uint64) error {
	err := i.execute(OpAccept, func() error {
		return i.workflow.AcceptSpendingRequest(caller, key)
	})
	if err == nil {
		i.metrics.ObserveVote(i.label, "approve")
	}
	return err
}

// RejectSpendingRequest records a rejection vote from caller.
func (i *Instance) RejectSpendingRequest(caller [20]byte, key uint64) error {
	err := i.execute(OpReject, func() error {
		return i.workflow.RejectSpendingRequest(caller, key)
	})
	if err == nil {
		i.metrics.ObserveVote(i.label, "reject")
	}
	return err
}

// CompleteSpendingRequest pays out an approved request to its recipient's
// credit.
func (i *Instance) CompleteSpendingRequest(caller [20]byte, key uint64) error {
	return i.execute(OpComplete, func() error {
		return i.workflow.CompleteSpendingRequest(caller, key)
	})
}

// Withdraw drains the credit queued for payee.
func (i *Instance) Withdraw(payee [20]byte) (*big.Int, error) {
	var amount *big.Int
	err := i.execute(OpWithdraw, func() error {
		var err error
		amount, err = i.escrow.Withdraw(payee)
		return err
	})
	return amount, err
}

// Summary returns the campaign params and counters.
func (i *Instance) Summary() (*campaign.Summary, error) {
	var summary *campaign.Summary
	err := i.query(func() error {
		var err error
		summary, err = i.ledger.Summary()
		return err
	})
	return summary, err
}

// BalanceOf returns the recorded contribution of addr.
func (i *Instance) BalanceOf(addr [20]byte) (*big.Int, error) {
	var balance *big.Int
	err := i.query(func() error {
		var err error
		balance, err = i.ledger.BalanceOf(addr)
		return err
	})
	return balance, err
}

// Request returns the spending request stored at key.
func (i *Instance) Request(key uint64) (*spending.Request, error) {
	var req *spending.Request
	err := i.query(func() error {
		var err error
		req, err = i.workflow.Request(key)
		return err
	})
	return req, err
}

// Requests returns every spending request in key order.
func (i *Instance) Requests() ([]*spending.Request, error) {
	var reqs []*spending.Request
	err := i.query(func() error {
		var err error
		reqs, err = i.workflow.Requests()
		return err
	})
	return reqs, err
}

// HasVoted reports whether voter already voted on the request at key.
func (i *Instance) HasVoted(key uint64, voter [20]byte) (bool, error) {
	var voted bool
	err := i.query(func() error {
		var err error
		voted, err = i.workflow.HasVoted(key, voter)
		return err
	})
	return voted, err
}

// PaymentsOf returns the credit queued for payee.
func (i *Instance) PaymentsOf(payee [20]byte) (*big.Int, error) {
	var amount *big.Int
	err := i.query(func() error {
		var err error
		amount, err = i.escrow.PaymentsOf(payee)
		return err
	})
	return amount, err
}

// Events returns committed records starting at sequence from.
func (i *Instance) Events(from uint64, limit int) ([]*types.Event, error) {
	var out []*types.Event
	err := i.query(func() error {
		var err error
		out, err = i.state.Events(from, limit)
		return err
	})
	return out, err
}
