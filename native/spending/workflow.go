package spending

import (
	"math/big"

	"crowdfund/core/events"
	"crowdfund/native/campaign"
	nativecommon "crowdfund/native/common"
)

type workflowState interface {
	SpendingRequestGet(key uint64) (*Request, bool, error)
	SpendingRequestPut(req *Request) error
}

// LedgerHandle is the slice of the campaign ledger the workflow relies on. The
// pending balance is always read live through it.
type LedgerHandle interface {
	Params() (*campaign.Params, error)
	Summary() (*campaign.Summary, error)
	Now() int64
	PendingBalance() (*big.Int, error)
	HeldBalance() (*big.Int, error)
	NextRequestKey() (uint64, error)
	ReservePending(value *big.Int) error
	RecordSpend(value *big.Int) error
	Guard() *nativecommon.ReentrancyGuard
}

// RoleChecker answers role membership for the campaign instance.
type RoleChecker interface {
	HasRole(role string, addr []byte) bool
}

// Workflow drives spending requests through reviewer votes and manager
// completion. It is not safe for concurrent use.
type Workflow struct {
	state   workflowState
	ledger  LedgerHandle
	roles   RoleChecker
	escrow  campaign.CreditQueue
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

// NewWorkflow constructs a workflow with a no-op emitter.
func NewWorkflow() *Workflow {
	return &Workflow{emitter: events.NoopEmitter{}}
}

func (w *Workflow) SetState(state workflowState) { w.state = state }
func (w *Workflow) SetLedger(ledger LedgerHandle) { w.ledger = ledger }
func (w *Workflow) SetRoles(roles RoleChecker) { w.roles = roles }
func (w *Workflow) SetEscrow(escrow campaign.CreditQueue) { w.escrow = escrow }
func (w *Workflow) SetPauses(p nativecommon.PauseView) { w.pauses = p }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (w *Workflow) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		w.emitter = events.NoopEmitter{}
		return
	}
	w.emitter = emitter
}

func (w *Workflow) emit(evt events.Event) {
	if w == nil || w.emitter == nil || evt == nil {
		return
	}
	w.emitter.Emit(evt)
}

func (w *Workflow) ready() error {
	if w == nil || w.state == nil {
		return errNilState
	}
	if w.ledger == nil {
		return errNilLedger
	}
	if w.roles == nil {
		return errNilRoles
	}
	return nil
}

func (w *Workflow) requireRole(role string, caller [20]byte, failure error) error {
	if !w.roles.HasRole(role, caller[:]) {
		return failure
	}
	return nil
}

func (w *Workflow) load(key uint64) (*Request, error) {
	req, ok, err := w.state.SpendingRequestGet(key)
	if err != nil {
		return nil, err
	}
	if !ok || req == nil {
		return nil, ErrRequestNotFound
	}
	return req.Clone(), nil
}

func (w *Workflow) snapshot(req *Request, actor [20]byte) events.SpendingRequestState {
	return events.SpendingRequestState{
		Key:             req.Key,
		Description:     req.Description,
		Recipient:       req.Recipient,
		Value:           new(big.Int).Set(req.Value),
		ApprovalsCount:  req.ApprovalsCount,
		RejectionsCount: req.RejectionsCount,
		Status:          req.Status.String(),
		Actor:           actor,
		Timestamp:       w.ledger.Now(),
	}
}

// CreateSpendingRequest stores a new PENDING request once the campaign has
// ended. The pending balance is checked but not debited.
func (w *Workflow) CreateSpendingRequest(caller [20]byte, description string, recipient [20]byte, value *big.Int) (uint64, error) {
	if err := w.ready(); err != nil {
		return 0, err
	}
	if err := nativecommon.Guard(w.pauses, nativecommon.ModuleSpending); err != nil {
		return 0, err
	}
	params, err := w.ledger.Params()
	if err != nil {
		return 0, err
	}
	now := w.ledger.Now()
	if now <= params.EndsAt {
		return 0, campaign.ErrCampaignInProgress
	}
	if err := w.requireRole(campaign.RoleManager, caller, ErrNotManager); err != nil {
		return 0, err
	}
	var zero [20]byte
	if recipient == zero {
		return 0, ErrZeroRecipient
	}
	amount := big.NewInt(0)
	if value != nil {
		amount.Set(value)
	}
	if amount.Sign() < 0 {
		return 0, ErrInvalidValue
	}
	pending, err := w.ledger.PendingBalance()
	if err != nil {
		return 0, err
	}
	if amount.Cmp(pending) > 0 {
		return 0, campaign.ErrInsufficientPending
	}
	key, err := w.ledger.NextRequestKey()
	if err != nil {
		return 0, err
	}
	req := &Request{
		Key:         key,
		Description: description,
		Recipient:   recipient,
		Value:       amount,
		Status:      StatusPending,
		CreatedAt:   now,
	}
	if err := w.state.SpendingRequestPut(req); err != nil {
		return 0, err
	}
	w.emit(w.snapshot(req, caller))
	return key, nil
}

// RejectSpendingRequest records a rejection vote. The request becomes
// REJECTED once the rejections reach the quorum.
func (w *Workflow) RejectSpendingRequest(caller [20]byte, key uint64) error {
	if err := w.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(w.pauses, nativecommon.ModuleSpending); err != nil {
		return err
	}
	if err := w.requireRole(campaign.RoleReviewer, caller, ErrNotReviewer); err != nil {
		return err
	}
	params, err := w.ledger.Params()
	if err != nil {
		return err
	}
	req, err := w.load(key)
	if err != nil {
		return err
	}
	if req.Status != StatusPending {
		return ErrRequestNotPending
	}
	if !req.addVoter(caller) {
		return ErrAlreadyVoted
	}
	req.RejectionsCount++
	if req.RejectionsCount >= params.MinReviewsRequired {
		req.Status = StatusRejected
	}
	if err := w.state.SpendingRequestPut(req); err != nil {
		return err
	}
	w.emit(w.snapshot(req, caller))
	return nil
}

// AcceptSpendingRequest records an approval vote. Every call re-reads the live
// pending balance; the vote that reaches the quorum reserves the request value
// and moves the request to APPROVED.
func (w *Workflow) AcceptSpendingRequest(caller [20]byte, key uint64) error {
	if err := w.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(w.pauses, nativecommon.ModuleSpending); err != nil {
		return err
	}
	if err := w.requireRole(campaign.RoleReviewer, caller, ErrNotReviewer); err != nil {
		return err
	}
	params, err := w.ledger.Params()
	if err != nil {
		return err
	}
	req, err := w.load(key)
	if err != nil {
		return err
	}
	if req.Status != StatusPending {
		return ErrRequestNotPending
	}
	pending, err := w.ledger.PendingBalance()
	if err != nil {
		return err
	}
	if req.Value.Cmp(pending) > 0 {
		return campaign.ErrInsufficientPending
	}
	if !req.addVoter(caller) {
		return ErrAlreadyVoted
	}
	req.ApprovalsCount++
	if req.ApprovalsCount >= params.MinReviewsRequired {
		if err := w.ledger.ReservePending(req.Value); err != nil {
			return err
		}
		req.Status = StatusApproved
	}
	if err := w.state.SpendingRequestPut(req); err != nil {
		return err
	}
	w.emit(w.snapshot(req, caller))
	return nil
}

// CompleteSpendingRequest pays out an APPROVED request. Accounting and the
// status change are written before the credit is queued for the recipient,
// all under the instance reentrancy guard.
func (w *Workflow) CompleteSpendingRequest(caller [20]byte, key uint64) error {
	if err := w.ready(); err != nil {
		return err
	}
	if w.escrow == nil {
		return errNilEscrow
	}
	if err := nativecommon.Guard(w.pauses, nativecommon.ModuleSpending); err != nil {
		return err
	}
	release, err := w.ledger.Guard().Enter()
	if err != nil {
		return err
	}
	defer release()

	if err := w.requireRole(campaign.RoleManager, caller, ErrNotManager); err != nil {
		return err
	}
	req, err := w.load(key)
	if err != nil {
		return err
	}
	if req.Status != StatusApproved {
		return ErrRequestNotApproved
	}
	held, err := w.ledger.HeldBalance()
	if err != nil {
		return err
	}
	if req.Value.Cmp(held) > 0 {
		return campaign.ErrInsufficientHoldings
	}
	if err := w.ledger.RecordSpend(req.Value); err != nil {
		return err
	}
	req.Status = StatusCompleted
	if err := w.state.SpendingRequestPut(req); err != nil {
		return err
	}
	if err := w.escrow.QueueCredit(req.Recipient, new(big.Int).Set(req.Value)); err != nil {
		return err
	}
	w.emit(w.snapshot(req, caller))
	return nil
}

// Request returns a copy of the request stored at key.
func (w *Workflow) Request(key uint64) (*Request, error) {
	if w == nil || w.state == nil {
		return nil, errNilState
	}
	return w.load(key)
}

// Requests returns every request in key order.
func (w *Workflow) Requests() ([]*Request, error) {
	if err := w.ready(); err != nil {
		return nil, err
	}
	summary, err := w.ledger.Summary()
	if err != nil {
		return nil, err
	}
	count := summary.Counters.SpendingRequestsCount
	out := make([]*Request, 0, count)
	for key := uint64(0); key < count; key++ {
		req, ok, err := w.state.SpendingRequestGet(key)
		if err != nil {
			return nil, err
		}
		if !ok || req == nil {
			continue
		}
		out = append(out, req.Clone())
	}
	return out, nil
}

// HasVoted reports whether voter already voted on the request at key.
func (w *Workflow) HasVoted(key uint64, voter [20]byte) (bool, error) {
	req, err := w.Request(key)
	if err != nil {
		return false, err
	}
	return req.HasVoted(voter), nil
}
